package pgstore

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/dmitrymomot/billing/pkg/ledger"
)

const planColumns = `id, name, description, price, currency, interval, interval_count, permission_rank, is_active, provider_price_id`

func scanPlan(row pgx.Row) (ledger.Plan, error) {
	var p ledger.Plan
	err := row.Scan(&p.ID, &p.Name, &p.Description, &p.Price, &p.Currency, &p.Interval,
		&p.IntervalCount, &p.PermissionRank, &p.IsActive, &p.ProviderPriceID)
	return p, err
}

func (t *pgTx) GetPlan(ctx context.Context, id uuid.UUID) (*ledger.Plan, error) {
	p, err := scanPlan(t.tx.QueryRow(ctx, `SELECT `+planColumns+` FROM plan WHERE id = $1`, id))
	if err != nil {
		return nil, mapError("get plan", err)
	}
	return &p, nil
}

func (t *pgTx) ListPlans(ctx context.Context, activeOnly bool) ([]ledger.Plan, error) {
	rows, err := t.tx.Query(ctx,
		`SELECT `+planColumns+` FROM plan WHERE is_active OR NOT $1 ORDER BY price, name`, activeOnly)
	if err != nil {
		return nil, mapError("list plans", err)
	}
	plans, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (ledger.Plan, error) { return scanPlan(row) })
	if err != nil {
		return nil, mapError("list plans", err)
	}
	return plans, nil
}

func (t *pgTx) GetProviderByName(ctx context.Context, name string) (*ledger.Provider, error) {
	var p ledger.Provider
	if err := t.tx.QueryRow(ctx, `SELECT id, name FROM provider WHERE name = $1`, name).Scan(&p.ID, &p.Name); err != nil {
		return nil, mapError("get provider", err)
	}
	return &p, nil
}

const methodColumns = `id, user_id, provider_id, provider_method_id, type, payload, is_default, is_active, created_at`

func scanMethod(row pgx.Row) (ledger.PaymentMethod, error) {
	var pm ledger.PaymentMethod
	err := row.Scan(&pm.ID, &pm.UserID, &pm.ProviderID, &pm.ProviderMethodID, &pm.Type,
		&pm.Payload, &pm.IsDefault, &pm.IsActive, &pm.CreatedAt)
	return pm, err
}

func (t *pgTx) getMethod(ctx context.Context, op, sql string, args ...any) (*ledger.PaymentMethod, error) {
	pm, err := scanMethod(t.tx.QueryRow(ctx, sql, args...))
	if err != nil {
		return nil, mapError(op, err)
	}
	return &pm, nil
}

func (t *pgTx) GetPaymentMethod(ctx context.Context, userID, id uuid.UUID) (*ledger.PaymentMethod, error) {
	return t.getMethod(ctx, "get payment method",
		`SELECT `+methodColumns+` FROM payment_method WHERE id = $1 AND user_id = $2 AND is_active`, id, userID)
}

func (t *pgTx) FindPaymentMethod(ctx context.Context, providerID uuid.UUID, providerMethodID string) (*ledger.PaymentMethod, error) {
	return t.getMethod(ctx, "find payment method",
		`SELECT `+methodColumns+` FROM payment_method WHERE provider_id = $1 AND provider_method_id = $2`,
		providerID, providerMethodID)
}

func (t *pgTx) ListPaymentMethods(ctx context.Context, userID uuid.UUID) ([]ledger.PaymentMethod, error) {
	rows, err := t.tx.Query(ctx,
		`SELECT `+methodColumns+` FROM payment_method WHERE user_id = $1 AND is_active ORDER BY created_at DESC`, userID)
	if err != nil {
		return nil, mapError("list payment methods", err)
	}
	methods, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (ledger.PaymentMethod, error) { return scanMethod(row) })
	if err != nil {
		return nil, mapError("list payment methods", err)
	}
	return methods, nil
}

func (t *pgTx) GetDefaultPaymentMethod(ctx context.Context, userID uuid.UUID) (*ledger.PaymentMethod, error) {
	return t.getMethod(ctx, "get default payment method",
		`SELECT `+methodColumns+` FROM payment_method WHERE user_id = $1 AND is_active AND is_default`, userID)
}

func (t *pgTx) CountPaymentMethods(ctx context.Context, userID uuid.UUID) (int, error) {
	var n int
	if err := t.tx.QueryRow(ctx,
		`SELECT count(*) FROM payment_method WHERE user_id = $1 AND is_active`, userID).Scan(&n); err != nil {
		return 0, mapError("count payment methods", err)
	}
	return n, nil
}

func (t *pgTx) CreatePaymentMethod(ctx context.Context, pm *ledger.PaymentMethod) error {
	if pm.ID == uuid.Nil {
		pm.ID = uuid.New()
	}
	if pm.Payload == nil {
		pm.Payload = map[string]any{}
	}
	err := t.tx.QueryRow(ctx, `
		INSERT INTO payment_method (id, user_id, provider_id, provider_method_id, type, payload, is_default, is_active)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING created_at`,
		pm.ID, pm.UserID, pm.ProviderID, pm.ProviderMethodID, pm.Type, pm.Payload, pm.IsDefault, pm.IsActive,
	).Scan(&pm.CreatedAt)
	return mapError("create payment method", err)
}

func (t *pgTx) SetPaymentMethodDefault(ctx context.Context, id uuid.UUID, isDefault bool) error {
	return t.execOne(ctx, "set default payment method",
		`UPDATE payment_method SET is_default = $2 WHERE id = $1`, id, isDefault)
}

func (t *pgTx) DeactivatePaymentMethod(ctx context.Context, id uuid.UUID) error {
	return t.execOne(ctx, "deactivate payment method",
		`UPDATE payment_method SET is_active = FALSE, is_default = FALSE WHERE id = $1`, id)
}

const subscriptionColumns = `id, user_id, plan_id, created_at, expired_at, renew_to, is_active`

func scanSubscription(row pgx.Row) (ledger.Subscription, error) {
	var s ledger.Subscription
	err := row.Scan(&s.ID, &s.UserID, &s.PlanID, &s.CreatedAt, &s.ExpiredAt, &s.RenewTo, &s.IsActive)
	if s.ExpiredAt != nil {
		d := ledger.Date(*s.ExpiredAt)
		s.ExpiredAt = &d
	}
	return s, err
}

func collectSubscriptions(op string, rows pgx.Rows, err error) ([]ledger.Subscription, error) {
	if err != nil {
		return nil, mapError(op, err)
	}
	subs, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (ledger.Subscription, error) { return scanSubscription(row) })
	if err != nil {
		return nil, mapError(op, err)
	}
	return subs, nil
}

func (t *pgTx) GetSubscription(ctx context.Context, id uuid.UUID) (*ledger.Subscription, error) {
	s, err := scanSubscription(t.tx.QueryRow(ctx,
		`SELECT `+subscriptionColumns+` FROM user_subscription WHERE id = $1`, id))
	if err != nil {
		return nil, mapError("get subscription", err)
	}
	return &s, nil
}

func (t *pgTx) GetActiveSubscription(ctx context.Context, userID uuid.UUID) (*ledger.Subscription, error) {
	s, err := scanSubscription(t.tx.QueryRow(ctx,
		`SELECT `+subscriptionColumns+` FROM user_subscription WHERE user_id = $1 AND is_active`, userID))
	if err != nil {
		return nil, mapError("get active subscription", err)
	}
	return &s, nil
}

func (t *pgTx) ListRollbackCandidates(ctx context.Context, userID uuid.UUID, createdBefore, today time.Time) ([]ledger.Subscription, error) {
	rows, err := t.tx.Query(ctx, `
		SELECT `+subscriptionColumns+` FROM user_subscription
		WHERE user_id = $1 AND NOT is_active AND created_at < $2 AND expired_at > $3::date
		ORDER BY created_at DESC`,
		userID, createdBefore, ledger.Date(today))
	return collectSubscriptions("list rollback candidates", rows, err)
}

func (t *pgTx) ListDueSubscriptions(ctx context.Context, today time.Time, limit int) ([]ledger.Subscription, error) {
	var lim *int
	if limit > 0 {
		lim = &limit
	}
	rows, err := t.tx.Query(ctx, `
		SELECT `+subscriptionColumns+` FROM user_subscription
		WHERE is_active AND renew_to IS NOT NULL AND expired_at <= $1::date
		ORDER BY expired_at
		LIMIT $2`,
		ledger.Date(today), lim)
	return collectSubscriptions("list due subscriptions", rows, err)
}

func (t *pgTx) ListLapsedSubscriptions(ctx context.Context, today time.Time, limit int) ([]ledger.Subscription, error) {
	var lim *int
	if limit > 0 {
		lim = &limit
	}
	rows, err := t.tx.Query(ctx, `
		SELECT `+subscriptionColumns+` FROM user_subscription
		WHERE is_active AND renew_to IS NULL AND expired_at < $1::date
		ORDER BY expired_at
		LIMIT $2`,
		ledger.Date(today), lim)
	return collectSubscriptions("list lapsed subscriptions", rows, err)
}

func (t *pgTx) CreateSubscription(ctx context.Context, s *ledger.Subscription) error {
	if s.ID == uuid.Nil {
		s.ID = uuid.New()
	}
	var createdAt *time.Time
	if !s.CreatedAt.IsZero() {
		createdAt = &s.CreatedAt
	}
	err := t.tx.QueryRow(ctx, `
		INSERT INTO user_subscription (id, user_id, plan_id, created_at, expired_at, renew_to, is_active)
		VALUES ($1, $2, $3, COALESCE($4, now()), $5, $6, $7)
		RETURNING created_at`,
		s.ID, s.UserID, s.PlanID, createdAt, s.ExpiredAt, s.RenewTo, s.IsActive,
	).Scan(&s.CreatedAt)
	return mapError("create subscription", err)
}

func (t *pgTx) UpdateSubscription(ctx context.Context, s *ledger.Subscription) error {
	return t.execOne(ctx, "update subscription", `
		UPDATE user_subscription SET plan_id = $2, expired_at = $3, renew_to = $4, is_active = $5
		WHERE id = $1`,
		s.ID, s.PlanID, s.ExpiredAt, s.RenewTo, s.IsActive)
}

const transactionColumns = `id, user_id, plan_id, payment_method_id, provider_id, provider_transaction_id, amount, currency, status, created_at`

func scanTransaction(row pgx.Row) (ledger.Transaction, error) {
	var tr ledger.Transaction
	err := row.Scan(&tr.ID, &tr.UserID, &tr.PlanID, &tr.PaymentMethodID, &tr.ProviderID,
		&tr.ProviderTransactionID, &tr.Amount, &tr.Currency, &tr.Status, &tr.CreatedAt)
	return tr, err
}

func (t *pgTx) getTransaction(ctx context.Context, op, sql string, args ...any) (*ledger.Transaction, error) {
	tr, err := scanTransaction(t.tx.QueryRow(ctx, sql, args...))
	if err != nil {
		return nil, mapError(op, err)
	}
	return &tr, nil
}

func (t *pgTx) GetTransaction(ctx context.Context, id uuid.UUID) (*ledger.Transaction, error) {
	return t.getTransaction(ctx, "get transaction",
		`SELECT `+transactionColumns+` FROM billing_transaction WHERE id = $1`, id)
}

func (t *pgTx) GetTransactionByProviderID(ctx context.Context, providerID uuid.UUID, providerTransactionID string) (*ledger.Transaction, error) {
	return t.getTransaction(ctx, "get transaction by provider id",
		`SELECT `+transactionColumns+` FROM billing_transaction WHERE provider_id = $1 AND provider_transaction_id = $2`,
		providerID, providerTransactionID)
}

func (t *pgTx) GetLatestDraft(ctx context.Context, userID, planID, paymentMethodID uuid.UUID) (*ledger.Transaction, error) {
	return t.getTransaction(ctx, "get latest draft", `
		SELECT `+transactionColumns+` FROM billing_transaction
		WHERE user_id = $1 AND plan_id = $2 AND payment_method_id = $3 AND status = 'DRAFT'
		ORDER BY created_at DESC
		LIMIT 1`,
		userID, planID, paymentMethodID)
}

func (t *pgTx) ListTransactions(ctx context.Context, userID uuid.UUID) ([]ledger.Transaction, error) {
	rows, err := t.tx.Query(ctx,
		`SELECT `+transactionColumns+` FROM billing_transaction WHERE user_id = $1 ORDER BY created_at DESC`, userID)
	return collectTransactions("list transactions", rows, err)
}

func (t *pgTx) ListPlanTransactions(ctx context.Context, userID, planID uuid.UUID, since time.Time) ([]ledger.Transaction, error) {
	rows, err := t.tx.Query(ctx, `
		SELECT `+transactionColumns+` FROM billing_transaction
		WHERE user_id = $1 AND plan_id = $2 AND created_at >= $3
		ORDER BY created_at DESC`,
		userID, planID, since)
	return collectTransactions("list plan transactions", rows, err)
}

func collectTransactions(op string, rows pgx.Rows, err error) ([]ledger.Transaction, error) {
	if err != nil {
		return nil, mapError(op, err)
	}
	txs, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (ledger.Transaction, error) { return scanTransaction(row) })
	if err != nil {
		return nil, mapError(op, err)
	}
	return txs, nil
}

func (t *pgTx) CreateTransaction(ctx context.Context, tr *ledger.Transaction) error {
	if tr.ID == uuid.Nil {
		tr.ID = uuid.New()
	}
	err := t.tx.QueryRow(ctx, `
		INSERT INTO billing_transaction (id, user_id, plan_id, payment_method_id, provider_id, provider_transaction_id, amount, currency, status)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		RETURNING created_at`,
		tr.ID, tr.UserID, tr.PlanID, tr.PaymentMethodID, tr.ProviderID, tr.ProviderTransactionID,
		tr.Amount, tr.Currency, tr.Status,
	).Scan(&tr.CreatedAt)
	return mapError("create transaction", err)
}

func (t *pgTx) UpdateTransaction(ctx context.Context, tr *ledger.Transaction) error {
	return t.execOne(ctx, "update transaction", `
		UPDATE billing_transaction SET provider_transaction_id = $2, status = $3, amount = $4
		WHERE id = $1`,
		tr.ID, tr.ProviderTransactionID, tr.Status, tr.Amount)
}
