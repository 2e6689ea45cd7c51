// AngelaMos | 2026
// memstore.go

package ledger

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/carterperez-dev/billing-service/internal/core"
)

// MemStore is an in-memory Store mirroring the SQL semantics of the Postgres
// implementation. It backs the engine and handler tests and local development;
// it is not meant for production use.
type MemStore struct {
	mu           sync.Mutex
	records      map[string]*Ledger
	capabilities map[string]map[string]struct{}
}

func NewMemStore() *MemStore {
	return &MemStore{
		records:      make(map[string]*Ledger),
		capabilities: make(map[string]map[string]struct{}),
	}
}

// Put inserts or replaces a record verbatim, bypassing defaulting. Intended
// for seeding fixtures.
func (s *MemStore) Put(rec Ledger) {
	s.mu.Lock()
	defer s.mu.Unlock()
	clone := rec
	s.records[rec.UserID] = &clone
}

func (s *MemStore) GetByID(ctx context.Context, userID string) (*Ledger, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	rec, ok := s.records[userID]
	if !ok {
		return nil, fmt.Errorf("get ledger: %w", ErrUnknownUser)
	}

	clone := *rec
	return &clone, nil
}

func (s *MemStore) Create(
	ctx context.Context,
	userID string,
	balance int,
	now time.Time,
) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.records[userID]; ok {
		return fmt.Errorf("create ledger: %w", core.ErrDuplicateKey)
	}

	s.records[userID] = &Ledger{
		UserID:       userID,
		TokenBalance: balance,
		LastRefillAt: now,
		CreatedAt:    now,
		UpdatedAt:    now,
	}

	return nil
}

func (s *MemStore) ApplyPurchase(
	ctx context.Context,
	userID string,
	effect Effect,
	now time.Time,
) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	rec, ok := s.records[userID]
	if !ok {
		return fmt.Errorf("apply purchase: %w", ErrUnknownUser)
	}

	oneMonth, sixMonths := effect.planFlags()

	rec.TokenBalance = effect.TokenBalance
	rec.EntitlementPoints = effect.Points
	rec.PlanOneMonth = oneMonth
	rec.PlanSixMonths = sixMonths
	if now.After(rec.LastRefillAt) {
		rec.LastRefillAt = now
	}
	rec.UpdatedAt = now

	return nil
}

func (s *MemStore) RefillEntitled(
	ctx context.Context,
	cutoff, now time.Time,
	allotment int,
) ([]EntitledRefill, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var refilled []EntitledRefill
	for _, rec := range s.records {
		if rec.EntitlementPoints <= 0 || rec.LastRefillAt.After(cutoff) {
			continue
		}

		rec.TokenBalance = allotment
		rec.EntitlementPoints--
		if rec.EntitlementPoints <= 0 {
			rec.PlanOneMonth = false
			rec.PlanSixMonths = false
		}
		rec.LastRefillAt = now
		rec.UpdatedAt = now

		refilled = append(refilled, EntitledRefill{
			UserID:     rec.UserID,
			PointsLeft: rec.EntitlementPoints,
		})
	}

	sort.Slice(refilled, func(i, j int) bool {
		return refilled[i].UserID < refilled[j].UserID
	})

	return refilled, nil
}

func (s *MemStore) RefillNormal(
	ctx context.Context,
	cutoff, now time.Time,
	allotment int,
) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	count := 0
	for _, rec := range s.records {
		if rec.EntitlementPoints != 0 || rec.LastRefillAt.After(cutoff) {
			continue
		}

		rec.TokenBalance = allotment
		rec.LastRefillAt = now
		rec.UpdatedAt = now
		count++
	}

	return count, nil
}

func (s *MemStore) ExpireNow(
	ctx context.Context,
	userID string,
	allotment int,
) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	rec, ok := s.records[userID]
	if !ok {
		return fmt.Errorf("expire ledger: %w", ErrUnknownUser)
	}

	rec.TokenBalance = allotment
	rec.EntitlementPoints = 0
	rec.PlanOneMonth = false
	rec.PlanSixMonths = false
	rec.UpdatedAt = time.Now()

	return nil
}

func (s *MemStore) ListStaleEntitled(ctx context.Context) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var userIDs []string
	for _, rec := range s.records {
		if rec.EntitlementPoints != 0 {
			continue
		}

		_, hasCap := s.capabilities[rec.UserID][CapabilityEntitled]
		if hasCap || rec.PlanOneMonth || rec.PlanSixMonths {
			userIDs = append(userIDs, rec.UserID)
		}
	}

	sort.Strings(userIDs)
	return userIDs, nil
}

func (s *MemStore) Stats(ctx context.Context) (*Stats, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	stats := &Stats{}
	for _, rec := range s.records {
		stats.TotalUsers++
		if rec.EntitlementPoints > 0 {
			stats.EntitledUsers++
		}
		stats.TotalTokens += int64(rec.TokenBalance)
	}

	if stats.TotalUsers > 0 {
		stats.AvgTokens = float64(stats.TotalTokens) / float64(stats.TotalUsers)
	}

	return stats, nil
}

func (s *MemStore) GrantCapability(
	ctx context.Context,
	userID, capability string,
) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	caps, ok := s.capabilities[userID]
	if !ok {
		caps = make(map[string]struct{})
		s.capabilities[userID] = caps
	}
	caps[capability] = struct{}{}

	return nil
}

func (s *MemStore) RevokeCapability(
	ctx context.Context,
	userID, capability string,
) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.capabilities[userID], capability)
	return nil
}

// HasCapability reports whether a capability is currently granted. Exposed
// for assertions in tests.
func (s *MemStore) HasCapability(userID, capability string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, ok := s.capabilities[userID][capability]
	return ok
}

var _ Store = (*MemStore)(nil)
