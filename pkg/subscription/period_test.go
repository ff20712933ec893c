package subscription

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmitrymomot/billing/pkg/ledger"
)

func day(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func TestRenewedExpiry(t *testing.T) {
	t.Parallel()

	monthly := ledger.Plan{Interval: ledger.IntervalMonth, IntervalCount: 1}
	quarterly := ledger.Plan{Interval: ledger.IntervalMonth, IntervalCount: 3}
	yearly := ledger.Plan{Interval: ledger.IntervalYear, IntervalCount: 1}

	at := func(d time.Time) *time.Time { return &d }

	tests := []struct {
		name string
		sub  ledger.Subscription
		plan ledger.Plan
		want time.Time
	}{
		{"first renewal", ledger.Subscription{CreatedAt: day(2024, 1, 1), ExpiredAt: at(day(2024, 1, 31))}, monthly, day(2024, 3, 1)},
		{"time of day ignored", ledger.Subscription{CreatedAt: day(2024, 1, 1).Add(23 * time.Hour), ExpiredAt: at(day(2024, 1, 31))}, monthly, day(2024, 3, 1)},
		{"expiry off the grid snaps forward", ledger.Subscription{CreatedAt: day(2024, 1, 1), ExpiredAt: at(day(2024, 2, 10))}, monthly, day(2024, 3, 1)},
		{"no expiry", ledger.Subscription{CreatedAt: day(2024, 1, 1)}, monthly, day(2024, 1, 31)},
		{"interval count", ledger.Subscription{CreatedAt: day(2024, 1, 1), ExpiredAt: at(day(2024, 3, 31))}, quarterly, day(2024, 6, 29)},
		{"yearly", ledger.Subscription{CreatedAt: day(2023, 1, 1), ExpiredAt: at(day(2024, 1, 1))}, yearly, day(2024, 12, 31)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			got, err := renewedExpiry(tt.sub, tt.plan)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}

	t.Run("plan without period", func(t *testing.T) {
		t.Parallel()
		_, err := renewedExpiry(ledger.Subscription{CreatedAt: day(2024, 1, 1)}, ledger.Plan{Interval: "WEEK", IntervalCount: 1})
		require.ErrorIs(t, err, ErrInvalidPlan)
	})
}

func TestPeriodEnd(t *testing.T) {
	t.Parallel()

	got, err := periodEnd(ledger.Plan{Interval: ledger.IntervalMonth, IntervalCount: 2}, time.Date(2024, 6, 1, 18, 30, 0, 0, time.UTC))
	require.NoError(t, err)
	assert.Equal(t, day(2024, 7, 31), got)

	_, err = periodEnd(ledger.Plan{Interval: ledger.IntervalMonth}, day(2024, 6, 1))
	require.ErrorIs(t, err, ErrInvalidPlan)
}

func TestUpgradeAmount(t *testing.T) {
	t.Parallel()

	current := ledger.Plan{Price: 500}
	target := ledger.Plan{Price: 1000}

	assert.Equal(t, int64(500), upgradeAmount(current, target, 1))
	assert.Equal(t, int64(1000), upgradeAmount(current, target, 0))
	assert.Equal(t, int64(1000-166), upgradeAmount(current, target, 1.0/3), "credit is floored")
	assert.Equal(t, int64(0), upgradeAmount(ledger.Plan{Price: 2000}, target, 1), "never negative")
}

func TestProration(t *testing.T) {
	t.Parallel()

	plan := ledger.Plan{Interval: ledger.IntervalMonth, IntervalCount: 1}
	expires := day(2024, 6, 16)
	sub := ledger.Subscription{ExpiredAt: &expires}
	now := time.Date(2024, 6, 1, 20, 0, 0, 0, time.UTC)

	assert.InDelta(t, 1.0, NoProration(sub, plan, now), 1e-9)
	assert.InDelta(t, 0.5, ElapsedProration(sub, plan, now), 1e-9)
	assert.InDelta(t, 0.0, ElapsedProration(sub, plan, day(2024, 7, 1)), 1e-9, "clamped at zero")
	assert.InDelta(t, 1.0, ElapsedProration(ledger.Subscription{}, plan, now), 1e-9)

	fn, err := ProrationByName("elapsed")
	require.NoError(t, err)
	assert.InDelta(t, 0.5, fn(sub, plan, now), 1e-9)

	fn, err = ProrationByName("")
	require.NoError(t, err)
	assert.InDelta(t, 1.0, fn(sub, plan, now), 1e-9)

	_, err = ProrationByName("daily")
	require.ErrorIs(t, err, ErrUnknownProration)
}
