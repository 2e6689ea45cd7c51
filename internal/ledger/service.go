// AngelaMos | 2026
// service.go

package ledger

import (
	"context"
	"log/slog"
	"time"

	"github.com/carterperez-dev/billing-service/internal/config"
)

// Service is the ledger transition engine. It owns all state-machine logic:
// the webhook path (ApplyPurchase), the scheduler path (RefillAndExpire) and
// the shared expiry reset (ExpireNow). Both paths converge on the same Store;
// every mutation is a single atomic conditional update so concurrent writers
// resolve last-write-wins without lost updates.
type Service struct {
	store  Store
	cfg    config.BillingConfig
	logger *slog.Logger
}

func NewService(
	store Store,
	cfg config.BillingConfig,
	logger *slog.Logger,
) *Service {
	return &Service{
		store:  store,
		cfg:    cfg,
		logger: logger,
	}
}

// ApplyPurchase applies a resolved purchase effect to a user's ledger record.
// The assignment is absolute, not additive: a redelivered notification
// produces the same end state, never a doubled grant.
func (s *Service) ApplyPurchase(
	ctx context.Context,
	userID string,
	effect Effect,
) (*Ledger, error) {
	if err := effect.Validate(); err != nil {
		return nil, err
	}

	now := time.Now().UTC()

	if err := s.store.ApplyPurchase(ctx, userID, effect, now); err != nil {
		return nil, err
	}

	if err := s.store.GrantCapability(ctx, userID, CapabilityEntitled); err != nil {
		return nil, err
	}

	rec, err := s.store.GetByID(ctx, userID)
	if err != nil {
		return nil, err
	}

	s.logger.Info("entitlement activated",
		"user_id", rec.UserID,
		"plan", rec.ActivePlan(),
		"token_balance", rec.TokenBalance,
		"entitlement_points", rec.EntitlementPoints,
	)

	return rec, nil
}

// RefillAndExpire runs one refill cycle over the whole population. Rows whose
// last refill is within the past calendar month are left untouched. Entitled
// rows lose one entitlement point and get the entitled allotment; rows that
// hit zero are reset to the normal state in the same logical transition, so
// the net balance for the expiring cycle is the normal allotment. Normal rows
// get the normal allotment.
func (s *Service) RefillAndExpire(
	ctx context.Context,
	now time.Time,
) (RefillSummary, error) {
	cutoff := now.AddDate(0, -1, 0)

	refilled, err := s.store.RefillEntitled(
		ctx,
		cutoff,
		now,
		s.cfg.EntitledAllotment,
	)
	if err != nil {
		return RefillSummary{}, err
	}

	for _, row := range refilled {
		if row.PointsLeft > 0 {
			continue
		}

		if err := s.ExpireNow(ctx, row.UserID); err != nil {
			// The row stays stale; the next cleanup pass picks it up.
			s.logger.Error("expiry reset failed",
				"user_id", row.UserID,
				"error", err,
			)
		}
	}

	normalCount, err := s.store.RefillNormal(
		ctx,
		cutoff,
		now,
		s.cfg.NormalAllotment,
	)
	if err != nil {
		return RefillSummary{}, err
	}

	summary := RefillSummary{
		TotalUpdated:  len(refilled) + normalCount,
		EntitledCount: len(refilled),
		NormalCount:   normalCount,
	}

	if summary.TotalUpdated > 0 {
		s.logger.Info("refill cycle completed",
			"total_updated", summary.TotalUpdated,
			"entitled", summary.EntitledCount,
			"normal", summary.NormalCount,
		)
	}

	return summary, nil
}

// ExpireNow forcibly resets a single user to the normal state and revokes the
// entitled capability. Shared by the expiry branch of RefillAndExpire, the
// cleanup pass, and direct administrative invocation.
func (s *Service) ExpireNow(ctx context.Context, userID string) error {
	if err := s.store.ExpireNow(ctx, userID, s.cfg.NormalAllotment); err != nil {
		return err
	}

	if err := s.store.RevokeCapability(ctx, userID, CapabilityEntitled); err != nil {
		return err
	}

	s.logger.Info("entitlement expired",
		"user_id", userID,
		"token_balance", s.cfg.NormalAllotment,
	)

	return nil
}

// Cleanup is a self-healing pass: it resets users whose entitlement points
// reached zero but whose plan flags or capability were left behind by a
// partial failure.
func (s *Service) Cleanup(ctx context.Context) (int, error) {
	userIDs, err := s.store.ListStaleEntitled(ctx)
	if err != nil {
		return 0, err
	}

	processed := 0
	for _, userID := range userIDs {
		if err := s.ExpireNow(ctx, userID); err != nil {
			s.logger.Error("cleanup reset failed",
				"user_id", userID,
				"error", err,
			)
			continue
		}
		processed++
	}

	if processed > 0 {
		s.logger.Info("cleanup completed", "users_processed", processed)
	}

	return processed, nil
}

func (s *Service) Stats(ctx context.Context) (*Stats, error) {
	return s.store.Stats(ctx)
}

// CreateAccount provisions a ledger record in the default state: the normal
// allotment, zero entitlement points, both plan flags false.
func (s *Service) CreateAccount(ctx context.Context, userID string) error {
	return s.store.Create(ctx, userID, s.cfg.NormalAllotment, time.Now().UTC())
}
