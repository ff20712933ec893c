package ledger

import (
	"time"

	"github.com/google/uuid"
)

// Interval is the recurring billing unit of a plan.
type Interval string

const (
	IntervalMonth Interval = "MONTH"
	IntervalYear  Interval = "YEAR"
)

// Day counts used for expiry arithmetic. Calendar months are not used.
const (
	DaysInMonth = 30
	DaysInYear  = 365
)

// Valid reports whether the interval is one of the supported units.
func (i Interval) Valid() bool {
	return i == IntervalMonth || i == IntervalYear
}

// Plan is an immutable catalog entry. The lifecycle engine references plans but never mutates them.
type Plan struct {
	ID              uuid.UUID
	Name            string
	Description     string
	Price           int64 // minor currency units
	Currency        string
	Interval        Interval
	IntervalCount   int
	PermissionRank  int
	IsActive        bool
	ProviderPriceID string // catalog price for hosted-checkout providers, optional
}

// Days returns the length of one billing period in days.
// Unknown intervals yield zero.
func (p Plan) Days() int {
	switch p.Interval {
	case IntervalMonth:
		return DaysInMonth * p.IntervalCount
	case IntervalYear:
		return DaysInYear * p.IntervalCount
	default:
		return 0
	}
}

// Provider is a payment provider known to the ledger.
type Provider struct {
	ID   uuid.UUID
	Name string
}

// PaymentMethodType enumerates supported saved method kinds.
type PaymentMethodType string

const PaymentMethodCard PaymentMethodType = "card"

// PaymentMethod is a saved provider-side payment instrument of a user.
type PaymentMethod struct {
	ID               uuid.UUID
	UserID           uuid.UUID
	ProviderID       uuid.UUID
	ProviderMethodID string
	Type             PaymentMethodType
	Payload          map[string]any // opaque display data, e.g. card brand and last4
	IsDefault        bool
	IsActive         bool
	CreatedAt        time.Time
}

// Subscription is a user's subscription row.
// At most one row per user has IsActive set.
type Subscription struct {
	ID        uuid.UUID
	UserID    uuid.UUID
	PlanID    uuid.UUID
	CreatedAt time.Time
	ExpiredAt *time.Time // date precision, UTC midnight
	RenewTo   *uuid.UUID // plan to move to at expiry, nil disables renewal
	IsActive  bool
}

// AutoRenews reports whether the subscription is set to renew at expiry.
func (s Subscription) AutoRenews() bool {
	return s.RenewTo != nil
}

// TransactionStatus is the provider-confirmed state of a charge.
type TransactionStatus string

const (
	StatusDraft      TransactionStatus = "DRAFT"
	StatusProcessing TransactionStatus = "PROCESSING"
	StatusSucceeded  TransactionStatus = "SUCCEEDED"
	StatusFailed     TransactionStatus = "FAILED"
	StatusRefunded   TransactionStatus = "REFUNDED"
)

func (s TransactionStatus) String() string {
	return string(s)
}

// Transaction is a charge attempt. Its ID doubles as the provider idempotency key.
type Transaction struct {
	ID                    uuid.UUID
	UserID                uuid.UUID
	PlanID                uuid.UUID
	PaymentMethodID       uuid.UUID
	ProviderID            uuid.UUID
	ProviderTransactionID *string
	Amount                int64
	Currency              string
	Status                TransactionStatus
	CreatedAt             time.Time
}

// Date truncates t to a UTC calendar date.
func Date(t time.Time) time.Time {
	y, m, d := t.UTC().Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}
