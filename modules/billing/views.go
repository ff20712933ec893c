package billing

import (
	"time"

	"github.com/google/uuid"

	"github.com/dmitrymomot/billing/pkg/ledger"
	"github.com/dmitrymomot/billing/pkg/subscription"
)

const dateLayout = time.DateOnly

type planView struct {
	ID             uuid.UUID `json:"id"`
	Name           string    `json:"name"`
	Description    string    `json:"description,omitempty"`
	Price          int64     `json:"price"`
	Currency       string    `json:"currency"`
	Interval       string    `json:"interval"`
	IntervalCount  int       `json:"interval_count"`
	PermissionRank int       `json:"permission_rank"`
}

func newPlanView(p ledger.Plan) planView {
	return planView{
		ID:             p.ID,
		Name:           p.Name,
		Description:    p.Description,
		Price:          p.Price,
		Currency:       p.Currency,
		Interval:       string(p.Interval),
		IntervalCount:  p.IntervalCount,
		PermissionRank: p.PermissionRank,
	}
}

type paymentMethodView struct {
	ID        uuid.UUID      `json:"id"`
	Type      string         `json:"type"`
	Payload   map[string]any `json:"payload,omitempty"`
	IsDefault bool           `json:"is_default"`
	CreatedAt time.Time      `json:"created_at"`
}

func newPaymentMethodView(pm ledger.PaymentMethod) paymentMethodView {
	return paymentMethodView{
		ID:        pm.ID,
		Type:      string(pm.Type),
		Payload:   pm.Payload,
		IsDefault: pm.IsDefault,
		CreatedAt: pm.CreatedAt,
	}
}

type subscriptionView struct {
	ID        uuid.UUID  `json:"id"`
	PlanID    uuid.UUID  `json:"plan_id"`
	CreatedAt time.Time  `json:"created_at"`
	ExpiredAt string     `json:"expired_at,omitempty"`
	RenewTo   *uuid.UUID `json:"renew_to,omitempty"`
	IsActive  bool       `json:"is_active"`
}

func newSubscriptionView(s *ledger.Subscription) *subscriptionView {
	if s == nil {
		return nil
	}
	v := &subscriptionView{
		ID:        s.ID,
		PlanID:    s.PlanID,
		CreatedAt: s.CreatedAt,
		RenewTo:   s.RenewTo,
		IsActive:  s.IsActive,
	}
	if s.ExpiredAt != nil {
		v.ExpiredAt = s.ExpiredAt.Format(dateLayout)
	}
	return v
}

type currentView struct {
	Subscription *subscriptionView `json:"subscription"`
	Plan         planView          `json:"plan"`
	RenewTo      *planView         `json:"renew_to_plan,omitempty"`
}

func newCurrentView(c *subscription.Current) currentView {
	v := currentView{
		Subscription: newSubscriptionView(&c.Subscription),
		Plan:         newPlanView(c.Plan),
	}
	if c.RenewTo != nil {
		next := newPlanView(*c.RenewTo)
		v.RenewTo = &next
	}
	return v
}

type transactionView struct {
	ID                    uuid.UUID `json:"id"`
	PlanID                uuid.UUID `json:"plan_id"`
	PaymentMethodID       uuid.UUID `json:"payment_method_id"`
	ProviderTransactionID *string   `json:"provider_transaction_id,omitempty"`
	Amount                int64     `json:"amount"`
	Currency              string    `json:"currency"`
	Status                string    `json:"status"`
	CreatedAt             time.Time `json:"created_at"`
}

func newTransactionView(t *ledger.Transaction) *transactionView {
	if t == nil {
		return nil
	}
	return &transactionView{
		ID:                    t.ID,
		PlanID:                t.PlanID,
		PaymentMethodID:       t.PaymentMethodID,
		ProviderTransactionID: t.ProviderTransactionID,
		Amount:                t.Amount,
		Currency:              t.Currency,
		Status:                t.Status.String(),
		CreatedAt:             t.CreatedAt,
	}
}

type subscribeView struct {
	Branch       string            `json:"branch"`
	Subscription *subscriptionView `json:"subscription,omitempty"`
	Transaction  *transactionView  `json:"transaction,omitempty"`
	CheckoutURL  string            `json:"checkout_url,omitempty"`
}

func newSubscribeView(res *subscription.SubscribeResult) subscribeView {
	return subscribeView{
		Branch:       string(res.Branch),
		Subscription: newSubscriptionView(res.Subscription),
		Transaction:  newTransactionView(res.Transaction),
		CheckoutURL:  res.CheckoutURL,
	}
}

func mapSlice[T, V any](in []T, fn func(T) V) []V {
	out := make([]V, 0, len(in))
	for _, v := range in {
		out = append(out, fn(v))
	}
	return out
}
