// AngelaMos | 2026
// scheduler.go

package scheduler

import (
	"context"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/carterperez-dev/billing-service/internal/config"
	"github.com/carterperez-dev/billing-service/internal/ledger"
)

// Engine is the slice of the ledger transition engine the scheduler drives.
type Engine interface {
	RefillAndExpire(
		ctx context.Context,
		now time.Time,
	) (ledger.RefillSummary, error)
	Cleanup(ctx context.Context) (int, error)
}

// Scheduler fires the refill-and-expire cycle once per day at a fixed local
// time. The running flag is the explicit re-entrancy guard: a tick that is
// still in flight when the next one would fire causes the new tick to be
// skipped, never run in parallel, because the cycle is not re-entrant-safe
// against overlapping invocations on the same rows.
type Scheduler struct {
	engine  Engine
	hour    int
	minute  int
	loc     *time.Location
	logger  *slog.Logger
	running atomic.Bool

	// now is swappable for tests.
	now func() time.Time
}

func New(
	engine Engine,
	cfg config.SchedulerConfig,
	logger *slog.Logger,
) *Scheduler {
	return &Scheduler{
		engine: engine,
		hour:   cfg.Hour,
		minute: cfg.Minute,
		loc:    cfg.Location(),
		logger: logger,
		now:    time.Now,
	}
}

// Start launches the scheduling loop. It returns immediately; the loop runs
// until ctx is cancelled.
func (s *Scheduler) Start(ctx context.Context) {
	go s.loop(ctx)
}

func (s *Scheduler) loop(ctx context.Context) {
	for {
		next := s.NextRun(s.now().In(s.loc))
		timer := time.NewTimer(time.Until(next))

		s.logger.Info("refill tick scheduled", "at", next)

		select {
		case <-ctx.Done():
			timer.Stop()
			s.logger.Info("scheduler stopped")
			return
		case <-timer.C:
			s.RunTick(ctx)
		}
	}
}

// NextRun returns the next daily fire time strictly after from.
func (s *Scheduler) NextRun(from time.Time) time.Time {
	from = from.In(s.loc)
	next := time.Date(
		from.Year(), from.Month(), from.Day(),
		s.hour, s.minute, 0, 0, s.loc,
	)
	if !next.After(from) {
		next = next.AddDate(0, 0, 1)
	}
	return next
}

// RunTick executes one refill-and-expire cycle followed by the self-healing
// cleanup pass. Returns false when a previous tick is still running and this
// one was skipped. A failed tick is logged and the loop keeps going; a
// skipped or failed day is self-healing, since eligibility is driven by
// last_refill_at rather than by tick count.
func (s *Scheduler) RunTick(ctx context.Context) bool {
	if !s.running.CompareAndSwap(false, true) {
		s.logger.Warn("previous refill tick still running, skipping")
		return false
	}
	defer s.running.Store(false)

	now := s.now()

	summary, err := s.engine.RefillAndExpire(ctx, now)
	if err != nil {
		s.logger.Error("refill tick failed", "error", err)
		return true
	}

	s.logger.Info("daily refill completed",
		"total_updated", summary.TotalUpdated,
		"entitled", summary.EntitledCount,
		"normal", summary.NormalCount,
	)

	processed, err := s.engine.Cleanup(ctx)
	if err != nil {
		s.logger.Error("cleanup pass failed", "error", err)
		return true
	}

	if processed > 0 {
		s.logger.Info("cleanup pass completed", "users_processed", processed)
	}

	return true
}
