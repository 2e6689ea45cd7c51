// AngelaMos | 2026
// store.go

package ledger

import (
	"context"
	"time"
)

// Store is the persisted ledger. Every mutation is a single atomic conditional
// update: concurrent writers to the same row resolve last-write-wins without
// torn reads, and the batch operations are set-based so their cost scales with
// eligible rows, not total users.
type Store interface {
	GetByID(ctx context.Context, userID string) (*Ledger, error)

	// Create provisions a ledger record in the default state.
	Create(ctx context.Context, userID string, balance int, now time.Time) error

	// ApplyPurchase sets balance, points, plan flags and last_refill_at to the
	// effect's absolute target values. Returns ErrUnknownUser for missing rows.
	ApplyPurchase(ctx context.Context, userID string, effect Effect, now time.Time) error

	// RefillEntitled resets every entitled row whose last refill is at or
	// before cutoff: balance to allotment, points decremented by one, plan
	// flags cleared when points reach zero. Returns the touched rows with
	// their remaining points so the caller can run the expiry branch.
	RefillEntitled(ctx context.Context, cutoff, now time.Time, allotment int) ([]EntitledRefill, error)

	// RefillNormal resets every eligible normal row's balance to allotment
	// and returns the number of rows touched.
	RefillNormal(ctx context.Context, cutoff, now time.Time, allotment int) (int, error)

	// ExpireNow forces a single row back to the normal state regardless of
	// refill timing. Returns ErrUnknownUser for missing rows.
	ExpireNow(ctx context.Context, userID string, allotment int) error

	// ListStaleEntitled returns users with zero entitlement points that still
	// carry a plan flag or the entitled capability.
	ListStaleEntitled(ctx context.Context) ([]string, error)

	Stats(ctx context.Context) (*Stats, error)

	// GrantCapability and RevokeCapability are idempotent in both directions:
	// granting a held capability or revoking an absent one is a no-op.
	GrantCapability(ctx context.Context, userID, capability string) error
	RevokeCapability(ctx context.Context, userID, capability string) error
}

// EntitledRefill reports one entitled row touched by a refill pass.
type EntitledRefill struct {
	UserID     string `db:"user_id"`
	PointsLeft int    `db:"entitlement_points"`
}

type RefillSummary struct {
	TotalUpdated  int `json:"total_updated"`
	EntitledCount int `json:"entitled_count"`
	NormalCount   int `json:"normal_count"`
}

type Stats struct {
	TotalUsers    int     `db:"total_users"    json:"total_users"`
	EntitledUsers int     `db:"entitled_users" json:"entitled_users"`
	TotalTokens   int64   `db:"total_tokens"   json:"total_tokens"`
	AvgTokens     float64 `db:"avg_tokens"     json:"avg_tokens"`
}
