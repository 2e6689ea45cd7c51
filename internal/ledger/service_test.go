// AngelaMos | 2026
// service_test.go

package ledger_test

import (
	"context"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/carterperez-dev/billing-service/internal/config"
	"github.com/carterperez-dev/billing-service/internal/ledger"
)

var testBilling = config.BillingConfig{
	NormalAllotment:   1000,
	EntitledAllotment: 8000,
}

func newTestService(t *testing.T) (*ledger.Service, *ledger.MemStore) {
	t.Helper()
	store := ledger.NewMemStore()
	svc := ledger.NewService(store, testBilling, slog.New(slog.DiscardHandler))
	return svc, store
}

func seedNormalUser(store *ledger.MemStore, userID string, at time.Time) {
	store.Put(ledger.Ledger{
		UserID:       userID,
		TokenBalance: 1000,
		LastRefillAt: at,
		CreatedAt:    at,
		UpdatedAt:    at,
	})
}

func TestService_ApplyPurchase(t *testing.T) {
	t.Parallel()

	oneMonth := ledger.Effect{
		TokenBalance: 8000,
		Points:       1,
		Plan:         ledger.PlanOneMonth,
	}

	t.Run("grants entitled state and capability", func(t *testing.T) {
		t.Parallel()
		svc, store := newTestService(t)
		seedNormalUser(store, "user-1", time.Now().UTC())

		rec, err := svc.ApplyPurchase(context.Background(), "user-1", oneMonth)
		require.NoError(t, err)

		assert.Equal(t, 8000, rec.TokenBalance)
		assert.Equal(t, 1, rec.EntitlementPoints)
		assert.Equal(t, ledger.PlanOneMonth, rec.ActivePlan())
		assert.True(t, rec.Entitled())
		assert.True(t, store.HasCapability("user-1", ledger.CapabilityEntitled))
	})

	t.Run("redelivery produces identical state", func(t *testing.T) {
		t.Parallel()
		svc, store := newTestService(t)
		seedNormalUser(store, "user-1", time.Now().UTC())

		first, err := svc.ApplyPurchase(context.Background(), "user-1", oneMonth)
		require.NoError(t, err)

		second, err := svc.ApplyPurchase(context.Background(), "user-1", oneMonth)
		require.NoError(t, err)

		assert.Equal(t, first.TokenBalance, second.TokenBalance)
		assert.Equal(t, first.EntitlementPoints, second.EntitlementPoints)
		assert.Equal(t, first.PlanOneMonth, second.PlanOneMonth)
		assert.Equal(t, first.PlanSixMonths, second.PlanSixMonths)
		assert.True(t, store.HasCapability("user-1", ledger.CapabilityEntitled))
	})

	t.Run("unknown user", func(t *testing.T) {
		t.Parallel()
		svc, _ := newTestService(t)

		_, err := svc.ApplyPurchase(context.Background(), "ghost", oneMonth)
		require.ErrorIs(t, err, ledger.ErrUnknownUser)
	})

	t.Run("rejects invalid effect", func(t *testing.T) {
		t.Parallel()
		svc, store := newTestService(t)
		seedNormalUser(store, "user-1", time.Now().UTC())

		_, err := svc.ApplyPurchase(context.Background(), "user-1", ledger.Effect{
			TokenBalance: 8000,
			Points:       1,
			Plan:         ledger.PlanNone,
		})
		require.ErrorIs(t, err, ledger.ErrInvalidEffect)

		rec, err := store.GetByID(context.Background(), "user-1")
		require.NoError(t, err)
		assert.Equal(t, 1000, rec.TokenBalance, "invalid effect must not mutate")
	})
}

func TestService_RefillAndExpire_OneMonthLifecycle(t *testing.T) {
	t.Parallel()

	svc, store := newTestService(t)

	base := time.Date(2026, time.January, 15, 0, 0, 0, 0, time.UTC)
	store.Put(ledger.Ledger{
		UserID:            "user-1",
		TokenBalance:      8000,
		EntitlementPoints: 1,
		PlanOneMonth:      true,
		LastRefillAt:      base,
	})
	require.NoError(t, store.GrantCapability(
		context.Background(), "user-1", ledger.CapabilityEntitled))

	// One calendar month later the single point is consumed and the row
	// converges to the normal state in the same cycle.
	summary, err := svc.RefillAndExpire(context.Background(), base.AddDate(0, 1, 0))
	require.NoError(t, err)

	assert.Equal(t, 1, summary.EntitledCount)
	assert.Equal(t, 1, summary.TotalUpdated)

	rec, err := store.GetByID(context.Background(), "user-1")
	require.NoError(t, err)

	assert.Equal(t, 1000, rec.TokenBalance)
	assert.Equal(t, 0, rec.EntitlementPoints)
	assert.Equal(t, ledger.PlanNone, rec.ActivePlan())
	assert.False(t, store.HasCapability("user-1", ledger.CapabilityEntitled))
}

func TestService_RefillAndExpire_SixMonthLifecycle(t *testing.T) {
	t.Parallel()

	svc, store := newTestService(t)

	base := time.Date(2026, time.January, 15, 0, 0, 0, 0, time.UTC)
	store.Put(ledger.Ledger{
		UserID:            "user-1",
		TokenBalance:      8000,
		EntitlementPoints: 6,
		PlanSixMonths:     true,
		LastRefillAt:      base,
	})
	require.NoError(t, store.GrantCapability(
		context.Background(), "user-1", ledger.CapabilityEntitled))

	for month := 1; month <= 5; month++ {
		_, err := svc.RefillAndExpire(
			context.Background(), base.AddDate(0, month, 0))
		require.NoError(t, err)

		rec, err := store.GetByID(context.Background(), "user-1")
		require.NoError(t, err)

		assert.Equal(t, 8000, rec.TokenBalance, "month %d", month)
		assert.Equal(t, 6-month, rec.EntitlementPoints, "month %d", month)
		assert.Equal(t, ledger.PlanSixMonth, rec.ActivePlan(), "month %d", month)
		assert.True(t,
			store.HasCapability("user-1", ledger.CapabilityEntitled),
			"month %d", month)
	}

	// Sixth cycle consumes the last point and expires the plan.
	_, err := svc.RefillAndExpire(context.Background(), base.AddDate(0, 6, 0))
	require.NoError(t, err)

	rec, err := store.GetByID(context.Background(), "user-1")
	require.NoError(t, err)

	assert.Equal(t, 1000, rec.TokenBalance)
	assert.Equal(t, 0, rec.EntitlementPoints)
	assert.Equal(t, ledger.PlanNone, rec.ActivePlan())
	assert.False(t, store.HasCapability("user-1", ledger.CapabilityEntitled))
}

func TestService_RefillAndExpire_NonInterference(t *testing.T) {
	t.Parallel()

	svc, store := newTestService(t)

	now := time.Date(2026, time.March, 1, 0, 0, 0, 0, time.UTC)

	// Refilled two weeks ago, untouched this cycle.
	fresh := ledger.Ledger{
		UserID:            "fresh",
		TokenBalance:      3456,
		EntitlementPoints: 4,
		PlanSixMonths:     true,
		LastRefillAt:      now.AddDate(0, 0, -14),
	}
	store.Put(fresh)

	// Last refilled over a month ago, due this cycle.
	store.Put(ledger.Ledger{
		UserID:       "stale",
		TokenBalance: 12,
		LastRefillAt: now.AddDate(0, -2, 0),
	})

	summary, err := svc.RefillAndExpire(context.Background(), now)
	require.NoError(t, err)

	assert.Equal(t, 0, summary.EntitledCount)
	assert.Equal(t, 1, summary.NormalCount)

	got, err := store.GetByID(context.Background(), "fresh")
	require.NoError(t, err)
	assert.Equal(t, fresh, *got, "fresh row must be untouched")

	stale, err := store.GetByID(context.Background(), "stale")
	require.NoError(t, err)
	assert.Equal(t, 1000, stale.TokenBalance)
}

func TestService_Cleanup(t *testing.T) {
	t.Parallel()

	svc, store := newTestService(t)

	// Points drained but the flag and capability were left behind.
	store.Put(ledger.Ledger{
		UserID:       "stuck",
		TokenBalance: 8000,
		PlanOneMonth: true,
	})
	require.NoError(t, store.GrantCapability(
		context.Background(), "stuck", ledger.CapabilityEntitled))

	// Healthy normal user, not touched.
	seedNormalUser(store, "healthy", time.Now().UTC())

	processed, err := svc.Cleanup(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, processed)

	rec, err := store.GetByID(context.Background(), "stuck")
	require.NoError(t, err)

	assert.Equal(t, 1000, rec.TokenBalance)
	assert.Equal(t, ledger.PlanNone, rec.ActivePlan())
	assert.False(t, store.HasCapability("stuck", ledger.CapabilityEntitled))

	// Second pass finds nothing.
	processed, err = svc.Cleanup(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 0, processed)
}

func TestService_ExpireNow(t *testing.T) {
	t.Parallel()

	svc, store := newTestService(t)

	store.Put(ledger.Ledger{
		UserID:            "user-1",
		TokenBalance:      8000,
		EntitlementPoints: 3,
		PlanSixMonths:     true,
	})
	require.NoError(t, store.GrantCapability(
		context.Background(), "user-1", ledger.CapabilityEntitled))

	require.NoError(t, svc.ExpireNow(context.Background(), "user-1"))

	rec, err := store.GetByID(context.Background(), "user-1")
	require.NoError(t, err)

	assert.Equal(t, 1000, rec.TokenBalance)
	assert.Equal(t, 0, rec.EntitlementPoints)
	assert.False(t, rec.Entitled())
	assert.False(t, store.HasCapability("user-1", ledger.CapabilityEntitled))
}

func TestService_CreateAccount(t *testing.T) {
	t.Parallel()

	svc, store := newTestService(t)

	require.NoError(t, svc.CreateAccount(context.Background(), "user-1"))

	rec, err := store.GetByID(context.Background(), "user-1")
	require.NoError(t, err)

	assert.Equal(t, 1000, rec.TokenBalance)
	assert.Equal(t, 0, rec.EntitlementPoints)
	assert.Equal(t, ledger.PlanNone, rec.ActivePlan())

	err = svc.CreateAccount(context.Background(), "user-1")
	require.Error(t, err)
}

func TestService_Stats(t *testing.T) {
	t.Parallel()

	svc, store := newTestService(t)

	store.Put(ledger.Ledger{UserID: "a", TokenBalance: 1000})
	store.Put(ledger.Ledger{
		UserID:            "b",
		TokenBalance:      8000,
		EntitlementPoints: 3,
		PlanSixMonths:     true,
	})

	stats, err := svc.Stats(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 2, stats.TotalUsers)
	assert.Equal(t, 1, stats.EntitledUsers)
	assert.Equal(t, int64(9000), stats.TotalTokens)
	assert.InDelta(t, 4500.0, stats.AvgTokens, 0.001)
}
