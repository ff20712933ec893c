package ledger_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmitrymomot/billing/pkg/ledger"
)

func TestPlan_Days(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		plan ledger.Plan
		want int
	}{
		{"one month", ledger.Plan{Interval: ledger.IntervalMonth, IntervalCount: 1}, 30},
		{"quarter", ledger.Plan{Interval: ledger.IntervalMonth, IntervalCount: 3}, 90},
		{"two years", ledger.Plan{Interval: ledger.IntervalYear, IntervalCount: 2}, 730},
		{"unknown interval", ledger.Plan{Interval: "WEEK", IntervalCount: 1}, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tt.want, tt.plan.Days())
		})
	}
}

func TestDate(t *testing.T) {
	t.Parallel()

	loc := time.FixedZone("UTC+5", 5*3600)
	in := time.Date(2024, 3, 1, 2, 30, 0, 0, loc) // 2024-02-29 21:30 UTC
	assert.Equal(t, time.Date(2024, 2, 29, 0, 0, 0, 0, time.UTC), ledger.Date(in))
}

func TestMemoryStore_InTx(t *testing.T) {
	t.Parallel()

	t.Run("nil callback", func(t *testing.T) {
		t.Parallel()
		s := ledger.NewMemoryStore(nil)
		err := s.InTx(context.Background(), uuid.New(), nil)
		require.ErrorIs(t, err, ledger.ErrNilCallback)
	})

	t.Run("restores state on error", func(t *testing.T) {
		t.Parallel()
		s := ledger.NewMemoryStore([]string{"stripe"})
		ctx := context.Background()
		userID := uuid.New()
		boom := errors.New("boom")

		err := s.InTx(ctx, userID, func(ctx context.Context, tx ledger.Tx) error {
			require.NoError(t, tx.CreateSubscription(ctx, &ledger.Subscription{UserID: userID, PlanID: uuid.New(), IsActive: true}))
			return boom
		})
		require.ErrorIs(t, err, boom)

		err = s.InTx(ctx, userID, func(ctx context.Context, tx ledger.Tx) error {
			_, err := tx.GetActiveSubscription(ctx, userID)
			return err
		})
		require.ErrorIs(t, err, ledger.ErrNotFound)
	})

	t.Run("nested call joins outer transaction", func(t *testing.T) {
		t.Parallel()
		s := ledger.NewMemoryStore(nil)
		ctx := context.Background()
		userID := uuid.New()
		boom := errors.New("boom")

		err := s.InTx(ctx, userID, func(ctx context.Context, _ ledger.Tx) error {
			err := s.InTx(ctx, userID, func(ctx context.Context, tx ledger.Tx) error {
				return tx.CreateSubscription(ctx, &ledger.Subscription{UserID: userID, IsActive: true})
			})
			require.NoError(t, err)
			return boom
		})
		require.ErrorIs(t, err, boom)

		err = s.InTx(ctx, userID, func(ctx context.Context, tx ledger.Tx) error {
			_, err := tx.GetActiveSubscription(ctx, userID)
			return err
		})
		require.ErrorIs(t, err, ledger.ErrNotFound, "inner writes roll back with the outer transaction")
	})

	t.Run("commit hooks", func(t *testing.T) {
		t.Parallel()
		s := ledger.NewMemoryStore(nil)
		ctx := context.Background()
		userID := uuid.New()
		var calls []string

		err := s.InTx(ctx, userID, func(ctx context.Context, _ ledger.Tx) error {
			ledger.AfterCommit(ctx, func(context.Context) { calls = append(calls, "outer") })
			return s.InTx(ctx, userID, func(ctx context.Context, _ ledger.Tx) error {
				ledger.AfterCommit(ctx, func(ctx context.Context) {
					calls = append(calls, "inner")
					// The store is free again once hooks run.
					require.NoError(t, s.InTx(ctx, userID, func(context.Context, ledger.Tx) error { return nil }))
				})
				assert.Empty(t, calls, "nothing runs before the outer commit")
				return nil
			})
		})
		require.NoError(t, err)
		assert.Equal(t, []string{"outer", "inner"}, calls)

		calls = nil
		err = s.InTx(ctx, userID, func(ctx context.Context, _ ledger.Tx) error {
			ledger.AfterCommit(ctx, func(context.Context) { calls = append(calls, "rolled back") })
			return errors.New("boom")
		})
		require.Error(t, err)
		assert.Empty(t, calls)

		ledger.AfterCommit(ctx, func(context.Context) { calls = append(calls, "immediate") })
		assert.Equal(t, []string{"immediate"}, calls)
	})

	t.Run("cancelled context", func(t *testing.T) {
		t.Parallel()
		s := ledger.NewMemoryStore(nil)
		ctx, cancel := context.WithCancel(context.Background())
		cancel()
		err := s.InTx(ctx, uuid.New(), func(context.Context, ledger.Tx) error { return nil })
		require.ErrorIs(t, err, context.Canceled)
	})

	t.Run("serialises concurrent callbacks", func(t *testing.T) {
		t.Parallel()
		s := ledger.NewMemoryStore(nil)
		ctx := context.Background()
		userID := uuid.New()

		var wg sync.WaitGroup
		errs := make(chan error, 10)
		for range 10 {
			wg.Add(1)
			go func() {
				defer wg.Done()
				errs <- s.InTx(ctx, userID, func(ctx context.Context, tx ledger.Tx) error {
					if _, err := tx.GetActiveSubscription(ctx, userID); err == nil {
						return nil
					}
					return tx.CreateSubscription(ctx, &ledger.Subscription{UserID: userID, IsActive: true})
				})
			}()
		}
		wg.Wait()
		close(errs)
		for err := range errs {
			require.NoError(t, err)
		}
	})
}

func TestMemoryStore_PaymentMethods(t *testing.T) {
	t.Parallel()

	ctx := context.Background()

	newStore := func(t *testing.T) (*ledger.MemoryStore, *ledger.Provider) {
		t.Helper()
		s := ledger.NewMemoryStore([]string{"stripe"})
		var p *ledger.Provider
		require.NoError(t, s.InTx(ctx, uuid.Nil, func(ctx context.Context, tx ledger.Tx) error {
			var err error
			p, err = tx.GetProviderByName(ctx, "stripe")
			return err
		}))
		return s, p
	}

	t.Run("unknown provider", func(t *testing.T) {
		t.Parallel()
		s, _ := newStore(t)
		err := s.InTx(ctx, uuid.Nil, func(ctx context.Context, tx ledger.Tx) error {
			_, err := tx.GetProviderByName(ctx, "adyen")
			return err
		})
		require.ErrorIs(t, err, ledger.ErrNotFound)
	})

	t.Run("duplicate provider method id", func(t *testing.T) {
		t.Parallel()
		s, p := newStore(t)
		err := s.InTx(ctx, uuid.Nil, func(ctx context.Context, tx ledger.Tx) error {
			require.NoError(t, tx.CreatePaymentMethod(ctx, &ledger.PaymentMethod{UserID: uuid.New(), ProviderID: p.ID, ProviderMethodID: "pm_1", IsActive: true}))
			return tx.CreatePaymentMethod(ctx, &ledger.PaymentMethod{UserID: uuid.New(), ProviderID: p.ID, ProviderMethodID: "pm_1", IsActive: true})
		})
		require.ErrorIs(t, err, ledger.ErrDuplicate)
	})

	t.Run("single active default", func(t *testing.T) {
		t.Parallel()
		s, p := newStore(t)
		userID := uuid.New()
		err := s.InTx(ctx, userID, func(ctx context.Context, tx ledger.Tx) error {
			first := &ledger.PaymentMethod{UserID: userID, ProviderID: p.ID, ProviderMethodID: "pm_a", IsActive: true, IsDefault: true}
			require.NoError(t, tx.CreatePaymentMethod(ctx, first))
			second := &ledger.PaymentMethod{UserID: userID, ProviderID: p.ID, ProviderMethodID: "pm_b", IsActive: true}
			require.NoError(t, tx.CreatePaymentMethod(ctx, second))

			require.ErrorIs(t, tx.SetPaymentMethodDefault(ctx, second.ID, true), ledger.ErrDuplicate)
			require.NoError(t, tx.SetPaymentMethodDefault(ctx, first.ID, false))
			require.NoError(t, tx.SetPaymentMethodDefault(ctx, second.ID, true))

			def, err := tx.GetDefaultPaymentMethod(ctx, userID)
			require.NoError(t, err)
			assert.Equal(t, second.ID, def.ID)
			return nil
		})
		require.NoError(t, err)
	})

	t.Run("list orders newest first and hides inactive", func(t *testing.T) {
		t.Parallel()
		s, p := newStore(t)
		userID := uuid.New()
		err := s.InTx(ctx, userID, func(ctx context.Context, tx ledger.Tx) error {
			a := &ledger.PaymentMethod{UserID: userID, ProviderID: p.ID, ProviderMethodID: "pm_a", IsActive: true}
			b := &ledger.PaymentMethod{UserID: userID, ProviderID: p.ID, ProviderMethodID: "pm_b", IsActive: true}
			c := &ledger.PaymentMethod{UserID: userID, ProviderID: p.ID, ProviderMethodID: "pm_c", IsActive: true}
			for _, pm := range []*ledger.PaymentMethod{a, b, c} {
				require.NoError(t, tx.CreatePaymentMethod(ctx, pm))
			}
			require.NoError(t, tx.DeactivatePaymentMethod(ctx, b.ID))

			list, err := tx.ListPaymentMethods(ctx, userID)
			require.NoError(t, err)
			require.Len(t, list, 2)
			assert.Equal(t, c.ID, list[0].ID)
			assert.Equal(t, a.ID, list[1].ID)

			n, err := tx.CountPaymentMethods(ctx, userID)
			require.NoError(t, err)
			assert.Equal(t, 2, n)

			_, err = tx.GetPaymentMethod(ctx, userID, b.ID)
			require.ErrorIs(t, err, ledger.ErrNotFound)
			_, err = tx.GetPaymentMethod(ctx, uuid.New(), a.ID)
			require.ErrorIs(t, err, ledger.ErrNotFound)

			found, err := tx.FindPaymentMethod(ctx, p.ID, "pm_b")
			require.NoError(t, err)
			assert.False(t, found.IsActive)
			return nil
		})
		require.NoError(t, err)
	})

	t.Run("returned payloads are copies", func(t *testing.T) {
		t.Parallel()
		s, p := newStore(t)
		userID := uuid.New()
		err := s.InTx(ctx, userID, func(ctx context.Context, tx ledger.Tx) error {
			pm := &ledger.PaymentMethod{
				UserID: userID, ProviderID: p.ID, ProviderMethodID: "pm_a", IsActive: true, IsDefault: true,
				Payload: map[string]any{"last4": "4242"},
			}
			require.NoError(t, tx.CreatePaymentMethod(ctx, pm))

			got, err := tx.GetPaymentMethod(ctx, userID, pm.ID)
			require.NoError(t, err)
			got.Payload["last4"] = "0001"
			found, err := tx.FindPaymentMethod(ctx, p.ID, "pm_a")
			require.NoError(t, err)
			found.Payload["last4"] = "0002"
			list, err := tx.ListPaymentMethods(ctx, userID)
			require.NoError(t, err)
			list[0].Payload["last4"] = "0003"
			def, err := tx.GetDefaultPaymentMethod(ctx, userID)
			require.NoError(t, err)
			def.Payload["last4"] = "0004"

			again, err := tx.GetPaymentMethod(ctx, userID, pm.ID)
			require.NoError(t, err)
			assert.Equal(t, "4242", again.Payload["last4"])
			return nil
		})
		require.NoError(t, err)
	})
}

func TestMemoryStore_Subscriptions(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	today := time.Date(2024, 5, 10, 0, 0, 0, 0, time.UTC)
	date := func(d int) *time.Time {
		v := today.AddDate(0, 0, d)
		return &v
	}

	t.Run("single active subscription", func(t *testing.T) {
		t.Parallel()
		s := ledger.NewMemoryStore(nil)
		userID := uuid.New()
		err := s.InTx(ctx, userID, func(ctx context.Context, tx ledger.Tx) error {
			require.NoError(t, tx.CreateSubscription(ctx, &ledger.Subscription{UserID: userID, IsActive: true}))
			return tx.CreateSubscription(ctx, &ledger.Subscription{UserID: userID, IsActive: true})
		})
		require.ErrorIs(t, err, ledger.ErrDuplicate)
	})

	t.Run("returned rows are copies", func(t *testing.T) {
		t.Parallel()
		s := ledger.NewMemoryStore(nil)
		userID := uuid.New()
		renewTo := uuid.New()
		err := s.InTx(ctx, userID, func(ctx context.Context, tx ledger.Tx) error {
			require.NoError(t, tx.CreateSubscription(ctx, &ledger.Subscription{UserID: userID, IsActive: true, RenewTo: &renewTo, ExpiredAt: date(5)}))
			got, err := tx.GetActiveSubscription(ctx, userID)
			require.NoError(t, err)
			*got.RenewTo = uuid.New()

			again, err := tx.GetActiveSubscription(ctx, userID)
			require.NoError(t, err)
			assert.Equal(t, renewTo, *again.RenewTo)
			return nil
		})
		require.NoError(t, err)
	})

	t.Run("rollback candidates", func(t *testing.T) {
		t.Parallel()
		base := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
		s := ledger.NewMemoryStore(nil)
		userID := uuid.New()
		err := s.InTx(ctx, userID, func(ctx context.Context, tx ledger.Tx) error {
			old := &ledger.Subscription{UserID: userID, CreatedAt: base, ExpiredAt: date(10)}
			expired := &ledger.Subscription{UserID: userID, CreatedAt: base.Add(time.Hour), ExpiredAt: date(0)}
			newer := &ledger.Subscription{UserID: userID, CreatedAt: base.Add(2 * time.Hour), ExpiredAt: date(20)}
			current := &ledger.Subscription{UserID: userID, CreatedAt: base.Add(3 * time.Hour), ExpiredAt: date(30), IsActive: true}
			other := &ledger.Subscription{UserID: uuid.New(), CreatedAt: base, ExpiredAt: date(10)}
			for _, sub := range []*ledger.Subscription{old, expired, newer, current, other} {
				require.NoError(t, tx.CreateSubscription(ctx, sub))
			}

			list, err := tx.ListRollbackCandidates(ctx, userID, current.CreatedAt, today)
			require.NoError(t, err)
			require.Len(t, list, 2)
			assert.Equal(t, newer.ID, list[0].ID)
			assert.Equal(t, old.ID, list[1].ID)
			return nil
		})
		require.NoError(t, err)
	})

	t.Run("due subscriptions", func(t *testing.T) {
		t.Parallel()
		s := ledger.NewMemoryStore(nil)
		planID := uuid.New()
		var dueEarly, dueToday uuid.UUID
		err := s.InTx(ctx, uuid.Nil, func(ctx context.Context, tx ledger.Tx) error {
			subs := []*ledger.Subscription{
				{UserID: uuid.New(), IsActive: true, RenewTo: &planID, ExpiredAt: date(0)},
				{UserID: uuid.New(), IsActive: true, RenewTo: &planID, ExpiredAt: date(-3)},
				{UserID: uuid.New(), IsActive: true, RenewTo: &planID, ExpiredAt: date(1)},
				{UserID: uuid.New(), IsActive: true, ExpiredAt: date(-1)},
				{UserID: uuid.New(), RenewTo: &planID, ExpiredAt: date(-1)},
				{UserID: uuid.New(), IsActive: true, ExpiredAt: date(0)},
			}
			for _, sub := range subs {
				require.NoError(t, tx.CreateSubscription(ctx, sub))
			}
			dueToday, dueEarly = subs[0].ID, subs[1].ID

			list, err := tx.ListDueSubscriptions(ctx, today.Add(15*time.Hour), 0)
			require.NoError(t, err)
			require.Len(t, list, 2)
			assert.Equal(t, dueEarly, list[0].ID)
			assert.Equal(t, dueToday, list[1].ID)

			limited, err := tx.ListDueSubscriptions(ctx, today, 1)
			require.NoError(t, err)
			assert.Len(t, limited, 1)

			lapsed, err := tx.ListLapsedSubscriptions(ctx, today.Add(15*time.Hour), 0)
			require.NoError(t, err)
			require.Len(t, lapsed, 1, "expiring today is not lapsed yet")
			assert.Equal(t, subs[3].ID, lapsed[0].ID)
			return nil
		})
		require.NoError(t, err)
	})
}

func TestMemoryStore_Transactions(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	s := ledger.NewMemoryStore([]string{"stripe"})
	userID, planID, methodID, providerID := uuid.New(), uuid.New(), uuid.New(), uuid.New()

	err := s.InTx(ctx, userID, func(ctx context.Context, tx ledger.Tx) error {
		_, err := tx.GetLatestDraft(ctx, userID, planID, methodID)
		require.ErrorIs(t, err, ledger.ErrNotFound)

		first := &ledger.Transaction{UserID: userID, PlanID: planID, PaymentMethodID: methodID, ProviderID: providerID, Status: ledger.StatusDraft}
		second := &ledger.Transaction{UserID: userID, PlanID: planID, PaymentMethodID: methodID, ProviderID: providerID, Status: ledger.StatusDraft}
		require.NoError(t, tx.CreateTransaction(ctx, first))
		require.NoError(t, tx.CreateTransaction(ctx, second))

		latest, err := tx.GetLatestDraft(ctx, userID, planID, methodID)
		require.NoError(t, err)
		assert.Equal(t, second.ID, latest.ID)

		pid := "pi_123"
		second.ProviderTransactionID = &pid
		second.Status = ledger.StatusProcessing
		require.NoError(t, tx.UpdateTransaction(ctx, second))

		byProvider, err := tx.GetTransactionByProviderID(ctx, providerID, "pi_123")
		require.NoError(t, err)
		assert.Equal(t, second.ID, byProvider.ID)
		assert.Equal(t, ledger.StatusProcessing, byProvider.Status)

		latest, err = tx.GetLatestDraft(ctx, userID, planID, methodID)
		require.NoError(t, err)
		assert.Equal(t, first.ID, latest.ID)

		list, err := tx.ListTransactions(ctx, userID)
		require.NoError(t, err)
		assert.Len(t, list, 2)

		old := &ledger.Transaction{
			UserID: userID, PlanID: planID, PaymentMethodID: methodID, ProviderID: providerID,
			Status: ledger.StatusFailed, CreatedAt: first.CreatedAt.Add(-time.Hour),
		}
		require.NoError(t, tx.CreateTransaction(ctx, old))
		require.NoError(t, tx.CreateTransaction(ctx, &ledger.Transaction{UserID: userID, PlanID: uuid.New(), Status: ledger.StatusDraft}))

		history, err := tx.ListPlanTransactions(ctx, userID, planID, first.CreatedAt)
		require.NoError(t, err)
		require.Len(t, history, 2)
		assert.Equal(t, second.ID, history[0].ID)
		assert.Equal(t, first.ID, history[1].ID)

		require.ErrorIs(t, tx.UpdateTransaction(ctx, &ledger.Transaction{ID: uuid.New()}), ledger.ErrNotFound)
		return nil
	})
	require.NoError(t, err)
}
