// AngelaMos | 2026
// entity.go

package ledger

import (
	"errors"
	"fmt"
	"time"
)

// Ledger is the per-user balance and entitlement record, one row per account.
// It is the single source of truth for both the webhook path and the scheduler.
type Ledger struct {
	UserID            string    `db:"user_id"`
	TokenBalance      int       `db:"token_balance"`
	EntitlementPoints int       `db:"entitlement_points"`
	PlanOneMonth      bool      `db:"plan_one_month"`
	PlanSixMonths     bool      `db:"plan_six_months"`
	LastRefillAt      time.Time `db:"last_refill_at"`
	CreatedAt         time.Time `db:"created_at"`
	UpdatedAt         time.Time `db:"updated_at"`
}

// Entitled reports whether the record carries an active paid plan.
// Zero entitlement points means the user is in the normal state.
func (l *Ledger) Entitled() bool {
	return l.EntitlementPoints > 0
}

func (l *Ledger) ActivePlan() Plan {
	switch {
	case l.PlanOneMonth:
		return PlanOneMonth
	case l.PlanSixMonths:
		return PlanSixMonth
	default:
		return PlanNone
	}
}

type Plan string

const (
	PlanNone     Plan = ""
	PlanOneMonth Plan = "one_month"
	PlanSixMonth Plan = "six_month"
)

// CapabilityEntitled is the permission tag granted alongside the entitled
// state and consumed by authorization logic outside this service.
const CapabilityEntitled = "ENTITLED"

// Effect is the resolved outcome of a confirmed purchase: the absolute target
// values a purchase assigns to a ledger record. Applying an Effect sets state
// rather than incrementing it, which is what makes redelivered webhook events
// idempotent.
type Effect struct {
	TokenBalance int
	Points       int
	Plan         Plan
}

func (e Effect) Validate() error {
	if e.TokenBalance <= 0 {
		return fmt.Errorf("effect token balance must be positive: %w", ErrInvalidEffect)
	}
	if e.Points <= 0 {
		return fmt.Errorf("effect points must be positive: %w", ErrInvalidEffect)
	}
	if e.Plan != PlanOneMonth && e.Plan != PlanSixMonth {
		return fmt.Errorf("effect plan %q not purchasable: %w", e.Plan, ErrInvalidEffect)
	}
	return nil
}

// planFlags expands the plan into the stored flag pair. Exactly one flag is
// true for a valid effect, which keeps the flag-exclusivity invariant at the
// engine boundary.
func (e Effect) planFlags() (oneMonth, sixMonths bool) {
	return e.Plan == PlanOneMonth, e.Plan == PlanSixMonth
}

var (
	ErrUnknownUser   = errors.New("unknown user")
	ErrInvalidEffect = errors.New("invalid entitlement effect")
)
