package subscription_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/dmitrymomot/billing/pkg/ledger"
	"github.com/dmitrymomot/billing/pkg/paymentmethod"
	"github.com/dmitrymomot/billing/pkg/provider"
	"github.com/dmitrymomot/billing/pkg/provider/providertest"
	"github.com/dmitrymomot/billing/pkg/subscription"
	"github.com/dmitrymomot/billing/pkg/transaction"
)

type mockEntitlements struct {
	mock.Mock
}

func (m *mockEntitlements) SetUserPermissionRank(ctx context.Context, userID uuid.UUID, rank int) error {
	return m.Called(ctx, userID, rank).Error(0)
}

var today = time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)

func date(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

type fixture struct {
	store        *ledger.MemoryStore
	registry     *paymentmethod.Registry
	transactions *transaction.Manager
	provider     *providertest.Provider
	entitlements *mockEntitlements
	engine       *subscription.Engine

	free, lite, basic, pro ledger.Plan
}

func newFixture(t *testing.T, opts ...subscription.Option) *fixture {
	t.Helper()

	clock := func() time.Time { return today }
	f := &fixture{
		store:        ledger.NewMemoryStore([]string{provider.Stripe}, ledger.WithMemoryClock(clock)),
		provider:     &providertest.Provider{},
		entitlements: &mockEntitlements{},
	}
	plan := func(name string, price int64, rank int) ledger.Plan {
		return f.store.AddPlan(ledger.Plan{
			Name: name, Price: price, Currency: "usd", Interval: ledger.IntervalMonth,
			IntervalCount: 1, PermissionRank: rank, IsActive: true,
		})
	}
	f.free = plan("free", 0, 1)
	f.lite = plan("lite", 200, 2)
	f.basic = plan("basic", 500, 3)
	f.pro = plan("pro", 1000, 4)

	f.registry = paymentmethod.NewRegistry(f.store)
	f.transactions = transaction.NewManager(f.store)
	f.engine = subscription.NewEngine(f.store, f.registry, f.transactions, f.provider, f.entitlements,
		append([]subscription.Option{subscription.WithClock(clock)}, opts...)...)

	t.Cleanup(func() {
		f.provider.AssertExpectations(t)
		f.entitlements.AssertExpectations(t)
	})
	return f
}

func (f *fixture) addCard(t *testing.T, userID uuid.UUID, id string) *ledger.PaymentMethod {
	t.Helper()
	pm, err := f.registry.Add(context.Background(), userID, provider.Stripe, id, ledger.PaymentMethodCard, map[string]any{"last4": "4242"})
	require.NoError(t, err)
	return pm
}

func (f *fixture) seed(t *testing.T, sub ledger.Subscription) ledger.Subscription {
	t.Helper()
	err := f.store.InTx(context.Background(), sub.UserID, func(ctx context.Context, tx ledger.Tx) error {
		return tx.CreateSubscription(ctx, &sub)
	})
	require.NoError(t, err)
	return sub
}

func (f *fixture) subscription(t *testing.T, id uuid.UUID) *ledger.Subscription {
	t.Helper()
	var sub *ledger.Subscription
	err := f.store.InTx(context.Background(), uuid.Nil, func(ctx context.Context, tx ledger.Tx) error {
		var err error
		sub, err = tx.GetSubscription(ctx, id)
		return err
	})
	require.NoError(t, err)
	return sub
}

func (f *fixture) active(t *testing.T, userID uuid.UUID) *ledger.Subscription {
	t.Helper()
	var sub *ledger.Subscription
	err := f.store.InTx(context.Background(), userID, func(ctx context.Context, tx ledger.Tx) error {
		var err error
		sub, err = tx.GetActiveSubscription(ctx, userID)
		if ledger.IsNotFound(err) {
			return nil
		}
		return err
	})
	require.NoError(t, err)
	return sub
}

func (f *fixture) expectCharge(result *provider.ChargeResult, err error) *provider.ChargeRequest {
	req := &provider.ChargeRequest{}
	f.provider.On("Charge", mock.Anything, mock.Anything).
		Run(func(args mock.Arguments) { *req = args.Get(1).(provider.ChargeRequest) }).
		Return(result, err).Once()
	return req
}

func activeSub(userID uuid.UUID, plan ledger.Plan, created, expires time.Time) ledger.Subscription {
	return ledger.Subscription{
		UserID: userID, PlanID: plan.ID, CreatedAt: created,
		ExpiredAt: &expires, RenewTo: &plan.ID, IsActive: true,
	}
}

func TestNewEngine_PanicsOnMissingDependency(t *testing.T) {
	t.Parallel()

	store := ledger.NewMemoryStore(nil)
	registry := paymentmethod.NewRegistry(store)
	manager := transaction.NewManager(store)
	assert.Panics(t, func() { subscription.NewEngine(nil, registry, manager, &providertest.Provider{}, &mockEntitlements{}) })
	assert.Panics(t, func() { subscription.NewEngine(store, registry, manager, nil, &mockEntitlements{}) })
	assert.Panics(t, func() { subscription.NewEngine(store, registry, manager, &providertest.Provider{}, nil) })
}

func TestEngine_Subscribe_New(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	f := newFixture(t)
	userID := uuid.New()
	card := f.addCard(t, userID, "pm_1")

	req := f.expectCharge(&provider.ChargeResult{ProviderTransactionID: "pi_1"}, nil)
	res, err := f.engine.Subscribe(ctx, userID, f.basic.ID, nil)
	require.NoError(t, err)

	assert.Equal(t, subscription.BranchNew, res.Branch)
	require.NotNil(t, res.Transaction)
	assert.Equal(t, ledger.StatusDraft, res.Transaction.Status)
	assert.Equal(t, int64(500), res.Transaction.Amount)
	assert.Equal(t, card.ID, res.Transaction.PaymentMethodID)

	assert.Equal(t, res.Transaction.ID.String(), req.IdempotencyKey)
	assert.Equal(t, "pm_1", req.ProviderMethodID)
	assert.Equal(t, int64(500), req.Amount)
	assert.Equal(t, res.Transaction.ID.String(), req.Metadata["transaction_id"])

	assert.Nil(t, f.active(t, userID), "settlement waits for the webhook")

	stored, err := f.transactions.Get(ctx, res.Transaction.ID)
	require.NoError(t, err)
	require.NotNil(t, stored.ProviderTransactionID)
	assert.Equal(t, "pi_1", *stored.ProviderTransactionID)

	t.Run("retry reuses the draft", func(t *testing.T) {
		retry := f.expectCharge(&provider.ChargeResult{ProviderTransactionID: "pi_1"}, nil)
		again, err := f.engine.Subscribe(ctx, userID, f.basic.ID, nil)
		require.NoError(t, err)
		assert.Equal(t, res.Transaction.ID, again.Transaction.ID)
		assert.Equal(t, req.IdempotencyKey, retry.IdempotencyKey)

		list, err := f.transactions.List(ctx, userID)
		require.NoError(t, err)
		assert.Len(t, list, 1)
	})
}

func TestEngine_Subscribe_ThenPaymentSucceeded(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	f := newFixture(t)
	userID := uuid.New()
	f.addCard(t, userID, "pm_1")

	f.expectCharge(&provider.ChargeResult{}, nil)
	res, err := f.engine.Subscribe(ctx, userID, f.basic.ID, nil)
	require.NoError(t, err)

	result, err := f.transactions.UpdateByProviderCallback(ctx, userID, res.Transaction.ID, transaction.Update{Status: ledger.StatusSucceeded})
	require.NoError(t, err)
	require.True(t, result.Changed)

	f.entitlements.On("SetUserPermissionRank", mock.Anything, userID, f.basic.PermissionRank).Return(nil).Once()
	require.NoError(t, f.engine.Upgrade(ctx, userID, result.Transaction.PlanID))

	sub := f.active(t, userID)
	require.NotNil(t, sub)
	assert.Equal(t, f.basic.ID, sub.PlanID)
	require.NotNil(t, sub.RenewTo)
	assert.Equal(t, f.basic.ID, *sub.RenewTo)
	require.NotNil(t, sub.ExpiredAt)
	assert.Equal(t, date(2024, 7, 1), *sub.ExpiredAt)
}

func TestEngine_Subscribe_Upgrade(t *testing.T) {
	t.Parallel()

	ctx := context.Background()

	t.Run("no proration charges the price difference", func(t *testing.T) {
		t.Parallel()
		f := newFixture(t)
		userID := uuid.New()
		f.addCard(t, userID, "pm_1")
		current := f.seed(t, activeSub(userID, f.basic, date(2024, 5, 17), date(2024, 6, 16)))

		req := f.expectCharge(&provider.ChargeResult{}, nil)
		res, err := f.engine.Subscribe(ctx, userID, f.pro.ID, nil)
		require.NoError(t, err)

		assert.Equal(t, subscription.BranchUpgrade, res.Branch)
		assert.Equal(t, int64(500), res.Transaction.Amount)
		assert.Equal(t, f.pro.ID, res.Transaction.PlanID)
		assert.Equal(t, int64(500), req.Amount)

		after := f.subscription(t, current.ID)
		assert.Equal(t, current, *after, "current subscription untouched until the charge settles")
	})

	t.Run("elapsed proration credits the unused share", func(t *testing.T) {
		t.Parallel()
		f := newFixture(t, subscription.WithProration(subscription.ElapsedProration))
		userID := uuid.New()
		f.addCard(t, userID, "pm_1")
		f.seed(t, activeSub(userID, f.basic, date(2024, 5, 17), date(2024, 6, 16)))

		f.expectCharge(&provider.ChargeResult{}, nil)
		res, err := f.engine.Subscribe(ctx, userID, f.pro.ID, nil)
		require.NoError(t, err)
		assert.Equal(t, int64(1000-250), res.Transaction.Amount)
	})
}

func TestEngine_Subscribe_Downgrade(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	f := newFixture(t)
	userID := uuid.New()
	f.addCard(t, userID, "pm_1")
	current := f.seed(t, activeSub(userID, f.basic, date(2024, 5, 17), date(2024, 6, 16)))

	res, err := f.engine.Subscribe(ctx, userID, f.lite.ID, nil)
	require.NoError(t, err)
	assert.Equal(t, subscription.BranchDowngrade, res.Branch)
	assert.Nil(t, res.Transaction)

	sub := f.active(t, userID)
	require.NotNil(t, sub)
	assert.Equal(t, current.ID, sub.ID)
	assert.Equal(t, f.lite.ID, *sub.RenewTo)
	assert.Equal(t, date(2024, 6, 16), *sub.ExpiredAt)

	list, err := f.transactions.List(ctx, userID)
	require.NoError(t, err)
	assert.Empty(t, list)
	f.provider.AssertNotCalled(t, "Charge", mock.Anything, mock.Anything)
}

func TestEngine_Subscribe_SamePlanRenews(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	f := newFixture(t)
	userID := uuid.New()
	f.addCard(t, userID, "pm_1")
	current := activeSub(userID, f.basic, date(2024, 5, 17), date(2024, 6, 16))
	current.RenewTo = nil
	current = f.seed(t, current)

	res, err := f.engine.Subscribe(ctx, userID, f.basic.ID, nil)
	require.NoError(t, err)
	assert.Equal(t, subscription.BranchRenew, res.Branch)

	sub := f.subscription(t, current.ID)
	require.NotNil(t, sub.RenewTo)
	assert.Equal(t, f.basic.ID, *sub.RenewTo)
}

func TestEngine_Subscribe_FreePlan(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	f := newFixture(t)
	userID := uuid.New()
	f.addCard(t, userID, "pm_1")

	f.entitlements.On("SetUserPermissionRank", mock.Anything, userID, f.free.PermissionRank).Return(nil).Once()
	res, err := f.engine.Subscribe(ctx, userID, f.free.ID, nil)
	require.NoError(t, err)
	assert.Equal(t, subscription.BranchNew, res.Branch)
	assert.Nil(t, res.Transaction)

	sub := f.active(t, userID)
	require.NotNil(t, sub)
	assert.Equal(t, f.free.ID, sub.PlanID)
}

func TestEngine_Subscribe_Errors(t *testing.T) {
	t.Parallel()

	ctx := context.Background()

	t.Run("no default method", func(t *testing.T) {
		t.Parallel()
		f := newFixture(t)
		_, err := f.engine.Subscribe(ctx, uuid.New(), f.basic.ID, nil)
		require.ErrorIs(t, err, subscription.ErrNoDefaultPaymentMethod)
	})

	t.Run("foreign method", func(t *testing.T) {
		t.Parallel()
		f := newFixture(t)
		other := f.addCard(t, uuid.New(), "pm_other")
		_, err := f.engine.Subscribe(ctx, uuid.New(), f.basic.ID, &other.ID)
		require.ErrorIs(t, err, subscription.ErrPaymentMethodNotFound)
	})

	t.Run("unknown plan", func(t *testing.T) {
		t.Parallel()
		f := newFixture(t)
		userID := uuid.New()
		f.addCard(t, userID, "pm_1")
		_, err := f.engine.Subscribe(ctx, userID, uuid.New(), nil)
		require.ErrorIs(t, err, subscription.ErrPlanNotFound)
	})

	t.Run("inactive plan", func(t *testing.T) {
		t.Parallel()
		f := newFixture(t)
		userID := uuid.New()
		f.addCard(t, userID, "pm_1")
		retired := f.store.AddPlan(ledger.Plan{Name: "retired", Price: 100, Interval: ledger.IntervalMonth, IntervalCount: 1})
		_, err := f.engine.Subscribe(ctx, userID, retired.ID, nil)
		require.ErrorIs(t, err, subscription.ErrPlanNotFound)
	})

	t.Run("provider unavailable keeps the draft", func(t *testing.T) {
		t.Parallel()
		f := newFixture(t)
		userID := uuid.New()
		f.addCard(t, userID, "pm_1")

		f.expectCharge(nil, context.DeadlineExceeded)
		_, err := f.engine.Subscribe(ctx, userID, f.basic.ID, nil)
		require.ErrorIs(t, err, provider.ErrUpstreamUnavailable)

		list, err := f.transactions.List(ctx, userID)
		require.NoError(t, err)
		require.Len(t, list, 1)
		assert.Equal(t, ledger.StatusDraft, list[0].Status)
	})
}

func TestEngine_RenewUnsubscribe(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	f := newFixture(t)
	userID := uuid.New()

	_, err := f.engine.Renew(ctx, userID)
	require.ErrorIs(t, err, subscription.ErrNoActiveSubscription)
	_, err = f.engine.Unsubscribe(ctx, userID)
	require.ErrorIs(t, err, subscription.ErrNoActiveSubscription)

	current := f.seed(t, activeSub(userID, f.basic, date(2024, 5, 17), date(2024, 6, 16)))

	sub, err := f.engine.Unsubscribe(ctx, userID)
	require.NoError(t, err)
	assert.Nil(t, sub.RenewTo)
	assert.Nil(t, f.subscription(t, current.ID).RenewTo)
	assert.True(t, f.subscription(t, current.ID).IsActive, "access lasts until expiry")

	sub, err = f.engine.Renew(ctx, userID)
	require.NoError(t, err)
	require.NotNil(t, sub.RenewTo)
	assert.Equal(t, f.basic.ID, *f.subscription(t, current.ID).RenewTo)
}

func TestEngine_Downgrade(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	f := newFixture(t)
	userID := uuid.New()

	_, err := f.engine.Downgrade(ctx, userID, f.lite.ID)
	require.ErrorIs(t, err, subscription.ErrNoActiveSubscription)

	f.seed(t, activeSub(userID, f.basic, date(2024, 5, 17), date(2024, 6, 16)))
	_, err = f.engine.Downgrade(ctx, userID, uuid.New())
	require.ErrorIs(t, err, subscription.ErrPlanNotFound)

	sub, err := f.engine.Downgrade(ctx, userID, f.lite.ID)
	require.NoError(t, err)
	assert.Equal(t, f.lite.ID, *sub.RenewTo)
	assert.Equal(t, f.basic.ID, sub.PlanID)
}

func TestEngine_Upgrade_RenewalConfirmation(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	f := newFixture(t)
	userID := uuid.New()
	current := f.seed(t, activeSub(userID, f.basic, date(2024, 5, 2), date(2024, 6, 1)))

	require.NoError(t, f.engine.Upgrade(ctx, userID, f.basic.ID))
	sub := f.subscription(t, current.ID)
	assert.Equal(t, date(2024, 7, 1), *sub.ExpiredAt, "anchored on created_at")
	assert.True(t, sub.IsActive)

	require.NoError(t, f.engine.Upgrade(ctx, userID, f.basic.ID))
	assert.Equal(t, date(2024, 7, 31), *f.subscription(t, current.ID).ExpiredAt)

	f.entitlements.AssertNotCalled(t, "SetUserPermissionRank", mock.Anything, mock.Anything, mock.Anything)
}

func TestEngine_Upgrade_PlanSwitch(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	f := newFixture(t)
	userID := uuid.New()
	current := f.seed(t, activeSub(userID, f.basic, date(2024, 5, 17), date(2024, 6, 16)))

	f.entitlements.On("SetUserPermissionRank", mock.Anything, userID, f.pro.PermissionRank).Return(nil).Once()
	require.NoError(t, f.engine.Upgrade(ctx, userID, f.pro.ID))

	old := f.subscription(t, current.ID)
	assert.False(t, old.IsActive)
	assert.Nil(t, old.RenewTo)

	sub := f.active(t, userID)
	require.NotNil(t, sub)
	assert.Equal(t, f.pro.ID, sub.PlanID)
	assert.Equal(t, f.pro.ID, *sub.RenewTo)
	assert.Equal(t, date(2024, 7, 1), *sub.ExpiredAt)

	t.Run("unknown plan", func(t *testing.T) {
		require.ErrorIs(t, f.engine.Upgrade(ctx, userID, uuid.New()), subscription.ErrPlanNotFound)
	})
}

func TestEngine_Upgrade_EntitlementFailureIsNotReturned(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	f := newFixture(t)
	userID := uuid.New()

	f.entitlements.On("SetUserPermissionRank", mock.Anything, userID, f.pro.PermissionRank).
		Return(errors.New("auth service down")).Once()
	require.NoError(t, f.engine.Upgrade(ctx, userID, f.pro.ID))
	assert.NotNil(t, f.active(t, userID), "ledger change kept")
}

func TestEngine_Upgrade_NotifiesAfterCommit(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	f := newFixture(t)
	userID := uuid.New()
	boom := errors.New("boom")

	err := f.store.InTx(ctx, userID, func(ctx context.Context, _ ledger.Tx) error {
		require.NoError(t, f.engine.Upgrade(ctx, userID, f.pro.ID))
		return boom
	})
	require.ErrorIs(t, err, boom)
	assert.Nil(t, f.active(t, userID))
	f.entitlements.AssertNotCalled(t, "SetUserPermissionRank", mock.Anything, mock.Anything, mock.Anything)

	f.entitlements.On("SetUserPermissionRank", mock.Anything, userID, f.pro.PermissionRank).Return(nil).Once()
	err = f.store.InTx(ctx, userID, func(ctx context.Context, _ ledger.Tx) error {
		require.NoError(t, f.engine.Upgrade(ctx, userID, f.pro.ID))
		f.entitlements.AssertNotCalled(t, "SetUserPermissionRank", mock.Anything, mock.Anything, mock.Anything)
		return nil
	})
	require.NoError(t, err)
	f.entitlements.AssertNumberOfCalls(t, "SetUserPermissionRank", 1)
}

func TestEngine_Cancel(t *testing.T) {
	t.Parallel()

	ctx := context.Background()

	t.Run("rolls back to an unexpired earlier subscription", func(t *testing.T) {
		t.Parallel()
		f := newFixture(t)
		userID := uuid.New()
		f.addCard(t, userID, "pm_1")

		earlier := activeSub(userID, f.basic, date(2024, 5, 10), date(2024, 6, 9))
		earlier.IsActive, earlier.RenewTo = false, nil
		earlier = f.seed(t, earlier)
		current := f.seed(t, activeSub(userID, f.pro, date(2024, 5, 20), date(2024, 6, 19)))

		f.entitlements.On("SetUserPermissionRank", mock.Anything, userID, f.basic.PermissionRank).Return(nil).Once()
		require.NoError(t, f.engine.Cancel(ctx, userID))

		assert.False(t, f.subscription(t, current.ID).IsActive)
		restored := f.active(t, userID)
		require.NotNil(t, restored)
		assert.Equal(t, earlier.ID, restored.ID)
		require.NotNil(t, restored.RenewTo)
		assert.Equal(t, f.basic.ID, *restored.RenewTo)
	})

	t.Run("restored subscription does not renew without a default method", func(t *testing.T) {
		t.Parallel()
		f := newFixture(t)
		userID := uuid.New()

		earlier := activeSub(userID, f.basic, date(2024, 5, 10), date(2024, 6, 9))
		earlier.IsActive = false
		f.seed(t, earlier)
		f.seed(t, activeSub(userID, f.pro, date(2024, 5, 20), date(2024, 6, 19)))

		f.entitlements.On("SetUserPermissionRank", mock.Anything, userID, f.basic.PermissionRank).Return(nil).Once()
		require.NoError(t, f.engine.Cancel(ctx, userID))

		restored := f.active(t, userID)
		require.NotNil(t, restored)
		assert.Nil(t, restored.RenewTo)
	})

	t.Run("expired or later subscriptions are not restored", func(t *testing.T) {
		t.Parallel()
		f := newFixture(t)
		userID := uuid.New()

		expired := activeSub(userID, f.basic, date(2024, 4, 1), date(2024, 5, 1))
		expired.IsActive = false
		f.seed(t, expired)
		current := f.seed(t, activeSub(userID, f.pro, date(2024, 5, 20), date(2024, 6, 19)))

		f.entitlements.On("SetUserPermissionRank", mock.Anything, userID, 0).Return(nil).Once()
		require.NoError(t, f.engine.Cancel(ctx, userID))

		assert.Nil(t, f.active(t, userID))
		assert.False(t, f.subscription(t, current.ID).IsActive)
	})

	t.Run("no active subscription", func(t *testing.T) {
		t.Parallel()
		f := newFixture(t)
		require.ErrorIs(t, f.engine.Cancel(ctx, uuid.New()), subscription.ErrNoActiveSubscription)
	})
}

func TestEngine_ChargeDue(t *testing.T) {
	t.Parallel()

	ctx := context.Background()

	t.Run("charges the renewal target at full price", func(t *testing.T) {
		t.Parallel()
		f := newFixture(t)
		userID := uuid.New()
		f.addCard(t, userID, "pm_1")
		current := activeSub(userID, f.basic, date(2024, 5, 2), date(2024, 6, 1))
		current.RenewTo = &f.lite.ID
		f.seed(t, current)

		req := f.expectCharge(&provider.ChargeResult{ProviderTransactionID: "pi_due"}, nil)
		res, err := f.engine.ChargeDue(ctx, userID, f.lite.ID)
		require.NoError(t, err)
		assert.Equal(t, subscription.BranchDowngrade, res.Branch)
		assert.Equal(t, int64(200), res.Transaction.Amount)
		assert.Equal(t, f.lite.ID, res.Transaction.PlanID)
		assert.Equal(t, res.Transaction.ID.String(), req.IdempotencyKey)
	})

	t.Run("free target settles at once", func(t *testing.T) {
		t.Parallel()
		f := newFixture(t)
		userID := uuid.New()
		current := activeSub(userID, f.basic, date(2024, 5, 2), date(2024, 6, 1))
		current.RenewTo = &f.free.ID
		f.seed(t, current)

		f.entitlements.On("SetUserPermissionRank", mock.Anything, userID, f.free.PermissionRank).Return(nil).Once()
		_, err := f.engine.ChargeDue(ctx, userID, f.free.ID)
		require.NoError(t, err)
		assert.Equal(t, f.free.ID, f.active(t, userID).PlanID)
	})

	t.Run("requires a default method", func(t *testing.T) {
		t.Parallel()
		f := newFixture(t)
		userID := uuid.New()
		f.seed(t, activeSub(userID, f.basic, date(2024, 5, 2), date(2024, 6, 1)))

		_, err := f.engine.ChargeDue(ctx, userID, f.basic.ID)
		require.ErrorIs(t, err, subscription.ErrNoDefaultPaymentMethod)
	})
}

func (f *fixture) failedCharge(t *testing.T, userID uuid.UUID, plan ledger.Plan, at time.Time) {
	t.Helper()
	err := f.store.InTx(context.Background(), userID, func(ctx context.Context, tx ledger.Tx) error {
		return tx.CreateTransaction(ctx, &ledger.Transaction{
			UserID: userID, PlanID: plan.ID, Amount: plan.Price, Currency: plan.Currency,
			Status: ledger.StatusFailed, CreatedAt: at,
		})
	})
	require.NoError(t, err)
}

func TestEngine_ChargeDue_InFlight(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	f := newFixture(t)
	userID := uuid.New()
	f.addCard(t, userID, "pm_1")
	f.seed(t, activeSub(userID, f.basic, date(2024, 5, 2), date(2024, 6, 1)))

	f.expectCharge(&provider.ChargeResult{}, nil)
	res, err := f.engine.ChargeDue(ctx, userID, f.basic.ID)
	require.NoError(t, err)

	_, err = f.transactions.UpdateByProviderCallback(ctx, userID, res.Transaction.ID, transaction.Update{Status: ledger.StatusProcessing})
	require.NoError(t, err)

	_, err = f.engine.ChargeDue(ctx, userID, f.basic.ID)
	require.ErrorIs(t, err, subscription.ErrChargeInFlight)
	f.provider.AssertNumberOfCalls(t, "Charge", 1)
}

func TestEngine_ChargeDue_Retries(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	setup := func(t *testing.T, opts ...subscription.Option) (*fixture, uuid.UUID, ledger.Subscription) {
		f := newFixture(t, opts...)
		userID := uuid.New()
		f.addCard(t, userID, "pm_1")
		sub := f.seed(t, activeSub(userID, f.basic, date(2024, 4, 30), date(2024, 5, 30)))
		return f, userID, sub
	}

	t.Run("waits out the backoff after a failure", func(t *testing.T) {
		t.Parallel()
		f, userID, _ := setup(t)
		f.failedCharge(t, userID, f.basic, today.Add(-time.Hour))

		_, err := f.engine.ChargeDue(ctx, userID, f.basic.ID)
		require.ErrorIs(t, err, subscription.ErrRenewalBackoff)
	})

	t.Run("retries once the backoff passed", func(t *testing.T) {
		t.Parallel()
		f, userID, _ := setup(t)
		f.failedCharge(t, userID, f.basic, today.Add(-25*time.Hour))

		req := f.expectCharge(&provider.ChargeResult{}, nil)
		res, err := f.engine.ChargeDue(ctx, userID, f.basic.ID)
		require.NoError(t, err)
		assert.Equal(t, res.Transaction.ID.String(), req.IdempotencyKey)
	})

	t.Run("failures of an earlier period do not count", func(t *testing.T) {
		t.Parallel()
		f, userID, _ := setup(t)
		for i := range 3 {
			f.failedCharge(t, userID, f.basic, date(2024, 4, 1).AddDate(0, 0, i))
		}

		f.expectCharge(&provider.ChargeResult{}, nil)
		_, err := f.engine.ChargeDue(ctx, userID, f.basic.ID)
		require.NoError(t, err)
	})

	t.Run("gives up and switches auto-renewal off", func(t *testing.T) {
		t.Parallel()
		f, userID, sub := setup(t, subscription.WithRenewalRetry(subscription.RetryPolicy{MaxAttempts: 2, Backoff: time.Hour}))
		f.failedCharge(t, userID, f.basic, today.Add(-30*time.Hour))
		f.failedCharge(t, userID, f.basic, today.Add(-5*time.Hour))

		_, err := f.engine.ChargeDue(ctx, userID, f.basic.ID)
		require.ErrorIs(t, err, subscription.ErrRenewalExhausted)

		stored := f.subscription(t, sub.ID)
		assert.True(t, stored.IsActive)
		assert.Nil(t, stored.RenewTo)
	})
}

func TestEngine_Expire(t *testing.T) {
	t.Parallel()

	ctx := context.Background()

	t.Run("ends a lapsed subscription", func(t *testing.T) {
		t.Parallel()
		f := newFixture(t)
		userID := uuid.New()
		lapsed := activeSub(userID, f.basic, date(2024, 4, 30), date(2024, 5, 30))
		lapsed.RenewTo = nil
		lapsed = f.seed(t, lapsed)

		f.entitlements.On("SetUserPermissionRank", mock.Anything, userID, 0).Return(nil).Once()
		expired, err := f.engine.Expire(ctx, userID, lapsed.ID)
		require.NoError(t, err)
		assert.True(t, expired)
		assert.Nil(t, f.active(t, userID))
	})

	t.Run("leaves the rest alone", func(t *testing.T) {
		t.Parallel()
		f := newFixture(t)

		renewing := f.seed(t, activeSub(uuid.New(), f.basic, date(2024, 4, 30), date(2024, 5, 30)))
		endsToday := activeSub(uuid.New(), f.basic, date(2024, 5, 2), date(2024, 6, 1))
		endsToday.RenewTo = nil
		endsToday = f.seed(t, endsToday)

		for _, sub := range []ledger.Subscription{renewing, endsToday} {
			expired, err := f.engine.Expire(ctx, sub.UserID, sub.ID)
			require.NoError(t, err)
			assert.False(t, expired)
			assert.True(t, f.subscription(t, sub.ID).IsActive)
		}

		expired, err := f.engine.Expire(ctx, uuid.New(), uuid.New())
		require.NoError(t, err)
		assert.False(t, expired)
	})
}

func TestEngine_Current(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	f := newFixture(t)
	userID := uuid.New()

	_, err := f.engine.Current(ctx, userID)
	require.ErrorIs(t, err, subscription.ErrNoActiveSubscription)

	sub := activeSub(userID, f.basic, date(2024, 5, 2), date(2024, 6, 1))
	sub.RenewTo = &f.lite.ID
	f.seed(t, sub)

	cur, err := f.engine.Current(ctx, userID)
	require.NoError(t, err)
	assert.Equal(t, f.basic.ID, cur.Plan.ID)
	require.NotNil(t, cur.RenewTo)
	assert.Equal(t, f.lite.ID, cur.RenewTo.ID)
}

func TestEngine_AdminCancel(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	f := newFixture(t)
	userID := uuid.New()
	current := f.seed(t, activeSub(userID, f.basic, date(2024, 5, 2), date(2024, 6, 1)))

	_, err := f.engine.AdminCancel(ctx, uuid.New())
	require.ErrorIs(t, err, subscription.ErrSubscriptionNotFound)

	sub, err := f.engine.AdminCancel(ctx, current.ID)
	require.NoError(t, err)
	assert.Nil(t, sub.RenewTo)
	assert.True(t, f.subscription(t, current.ID).IsActive)
}

func TestEngine_Refund(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	f := newFixture(t)
	userID := uuid.New()
	f.addCard(t, userID, "pm_1")

	f.expectCharge(&provider.ChargeResult{ProviderTransactionID: "pi_1"}, nil)
	res, err := f.engine.Subscribe(ctx, userID, f.basic.ID, nil)
	require.NoError(t, err)

	_, err = f.engine.Refund(ctx, uuid.New(), "duplicate")
	require.ErrorIs(t, err, subscription.ErrTransactionNotFound)

	_, err = f.engine.Refund(ctx, res.Transaction.ID, "duplicate")
	require.ErrorIs(t, err, subscription.ErrTransactionNotRefundable, "draft charges are not refundable")

	_, err = f.transactions.UpdateByProviderCallback(ctx, userID, res.Transaction.ID, transaction.Update{Status: ledger.StatusSucceeded})
	require.NoError(t, err)

	f.provider.On("Refund", mock.Anything, "pi_1", "duplicate").Return(nil).Once()
	refunded, err := f.engine.Refund(ctx, res.Transaction.ID, "duplicate")
	require.NoError(t, err)
	assert.Equal(t, ledger.StatusSucceeded, refunded.Status, "status moves with the refund webhook")
}

func TestEngine_Catalog(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	ctx := context.Background()

	retired := f.store.AddPlan(ledger.Plan{
		Name: "legacy", Price: 300, Currency: "usd", Interval: ledger.IntervalMonth, IntervalCount: 1,
	})

	plans, err := f.engine.Plans(ctx)
	require.NoError(t, err)
	names := make([]string, 0, len(plans))
	for _, p := range plans {
		names = append(names, p.Name)
	}
	assert.Equal(t, []string{"free", "lite", "basic", "pro"}, names)

	plan, err := f.engine.Plan(ctx, f.basic.ID)
	require.NoError(t, err)
	assert.Equal(t, f.basic, *plan)

	_, err = f.engine.Plan(ctx, retired.ID)
	require.ErrorIs(t, err, subscription.ErrPlanNotFound)

	_, err = f.engine.Plan(ctx, uuid.New())
	require.ErrorIs(t, err, subscription.ErrPlanNotFound)
}
