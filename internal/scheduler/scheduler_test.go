// AngelaMos | 2026
// scheduler_test.go

package scheduler_test

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/carterperez-dev/billing-service/internal/config"
	"github.com/carterperez-dev/billing-service/internal/ledger"
	"github.com/carterperez-dev/billing-service/internal/scheduler"
)

type stubEngine struct {
	mu          sync.Mutex
	refillCalls int
	cleanups    int
	refillErr   error
	cleanupErr  error

	// block, when set, holds RefillAndExpire until released.
	block chan struct{}
}

func (e *stubEngine) RefillAndExpire(
	ctx context.Context,
	now time.Time,
) (ledger.RefillSummary, error) {
	e.mu.Lock()
	e.refillCalls++
	block := e.block
	err := e.refillErr
	e.mu.Unlock()

	if block != nil {
		<-block
	}

	if err != nil {
		return ledger.RefillSummary{}, err
	}
	return ledger.RefillSummary{TotalUpdated: 1, NormalCount: 1}, nil
}

func (e *stubEngine) Cleanup(ctx context.Context) (int, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.cleanups++
	return 0, e.cleanupErr
}

func (e *stubEngine) counts() (int, int) {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.refillCalls, e.cleanups
}

func newTestScheduler(engine scheduler.Engine, hour, minute int) *scheduler.Scheduler {
	return scheduler.New(engine, config.SchedulerConfig{
		Enabled:  true,
		Hour:     hour,
		Minute:   minute,
		Timezone: "UTC",
	}, slog.New(slog.DiscardHandler))
}

func TestScheduler_NextRun(t *testing.T) {
	t.Parallel()

	s := newTestScheduler(&stubEngine{}, 0, 0)

	tests := []struct {
		name string
		from time.Time
		want time.Time
	}{
		{
			name: "mid-day rolls to next midnight",
			from: time.Date(2026, time.June, 10, 13, 30, 0, 0, time.UTC),
			want: time.Date(2026, time.June, 11, 0, 0, 0, 0, time.UTC),
		},
		{
			name: "exactly at fire time rolls a full day",
			from: time.Date(2026, time.June, 10, 0, 0, 0, 0, time.UTC),
			want: time.Date(2026, time.June, 11, 0, 0, 0, 0, time.UTC),
		},
		{
			name: "just before midnight fires within the minute",
			from: time.Date(2026, time.June, 10, 23, 59, 30, 0, time.UTC),
			want: time.Date(2026, time.June, 11, 0, 0, 0, 0, time.UTC),
		},
		{
			name: "month boundary",
			from: time.Date(2026, time.June, 30, 12, 0, 0, 0, time.UTC),
			want: time.Date(2026, time.July, 1, 0, 0, 0, 0, time.UTC),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tt.want, s.NextRun(tt.from))
		})
	}
}

func TestScheduler_NextRun_Timezone(t *testing.T) {
	t.Parallel()

	s := scheduler.New(&stubEngine{}, config.SchedulerConfig{
		Hour:     0,
		Minute:   0,
		Timezone: "Asia/Ho_Chi_Minh",
	}, slog.New(slog.DiscardHandler))

	loc, err := time.LoadLocation("Asia/Ho_Chi_Minh")
	require.NoError(t, err)

	// 18:00 UTC on June 10 is already June 11 01:00 local, so the next fire
	// is local midnight June 12.
	from := time.Date(2026, time.June, 10, 18, 0, 0, 0, time.UTC)
	want := time.Date(2026, time.June, 12, 0, 0, 0, 0, loc)

	assert.True(t, want.Equal(s.NextRun(from)))
}

func TestScheduler_RunTick(t *testing.T) {
	t.Parallel()

	t.Run("runs refill then cleanup", func(t *testing.T) {
		t.Parallel()
		engine := &stubEngine{}
		s := newTestScheduler(engine, 0, 0)

		ran := s.RunTick(context.Background())
		assert.True(t, ran)

		refills, cleanups := engine.counts()
		assert.Equal(t, 1, refills)
		assert.Equal(t, 1, cleanups)
	})

	t.Run("overlapping tick is skipped", func(t *testing.T) {
		t.Parallel()
		engine := &stubEngine{block: make(chan struct{})}
		s := newTestScheduler(engine, 0, 0)

		firstDone := make(chan bool)
		go func() {
			firstDone <- s.RunTick(context.Background())
		}()

		// Wait for the first tick to take the guard.
		require.Eventually(t, func() bool {
			refills, _ := engine.counts()
			return refills == 1
		}, time.Second, 5*time.Millisecond)

		assert.False(t, s.RunTick(context.Background()),
			"tick must be skipped while one is in flight")

		close(engine.block)
		assert.True(t, <-firstDone)

		// Guard released; the next tick runs again.
		engine.mu.Lock()
		engine.block = nil
		engine.mu.Unlock()
		assert.True(t, s.RunTick(context.Background()))
	})

	t.Run("refill error does not stop the scheduler", func(t *testing.T) {
		t.Parallel()
		engine := &stubEngine{refillErr: errors.New("store unavailable")}
		s := newTestScheduler(engine, 0, 0)

		assert.True(t, s.RunTick(context.Background()))

		_, cleanups := engine.counts()
		assert.Zero(t, cleanups, "cleanup is skipped after a failed refill")

		// Next tick proceeds normally once the store recovers.
		engine.mu.Lock()
		engine.refillErr = nil
		engine.mu.Unlock()

		assert.True(t, s.RunTick(context.Background()))
		refills, cleanups := engine.counts()
		assert.Equal(t, 2, refills)
		assert.Equal(t, 1, cleanups)
	})
}
