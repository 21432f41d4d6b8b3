package scheduler

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/parasail-network/node-agent/internal/models"
	"go.uber.org/zap"
)

type fakeActions struct {
	mu         sync.Mutex
	onboards   int
	checkins   int
	statsCalls int
	statsQueue []*models.NodeStats // consumed per call, last one repeats
}

func (f *fakeActions) Onboard(ctx context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.onboards++
	return nil
}

func (f *fakeActions) CheckIn(ctx context.Context) (*models.CheckInResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.checkins++
	points := 10.0
	return &models.CheckInResult{Points: &points}, nil
}

func (f *fakeActions) Stats(ctx context.Context) (*models.NodeStats, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.statsCalls++
	if len(f.statsQueue) == 0 {
		return &models.NodeStats{}, nil
	}
	stats := f.statsQueue[0]
	if len(f.statsQueue) > 1 {
		f.statsQueue = f.statsQueue[1:]
	}
	return stats, nil
}

func (f *fakeActions) counts() (onboards, checkins, statsCalls int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.onboards, f.checkins, f.statsCalls
}

func statsWithNext(ts int64) *models.NodeStats {
	return &models.NodeStats{NextCheckinTimestamp: &ts}
}

func newTestScheduler(actions Actions) *Scheduler {
	s := New(actions, zap.NewNop())
	s.tick = 10 * time.Millisecond
	s.statsEvery = 10 * time.Millisecond
	s.pause = time.Millisecond
	return s
}

func eventually(t *testing.T, timeout time.Duration, cond func() bool, msg string) {
	t.Helper()
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(2 * time.Millisecond)
	}
	t.Fatal(msg)
}

func TestComputeRemaining(t *testing.T) {
	now := time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)

	tests := []struct {
		name     string
		stats    *models.NodeStats
		expected time.Duration
	}{
		{"one hour out", statsWithNext(now.Add(time.Hour).UnixMilli()), time.Hour},
		{"in the past", statsWithNext(now.Add(-time.Minute).UnixMilli()), 0},
		{"exactly now", statsWithNext(now.UnixMilli()), 0},
		{"absent timestamp", &models.NodeStats{}, 12 * time.Hour},
		{"nil stats", nil, 12 * time.Hour},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := New(&fakeActions{}, zap.NewNop())
			s.now = func() time.Time { return now }

			got := s.computeRemaining(tt.stats)
			diff := got - tt.expected
			if diff < 0 {
				diff = -diff
			}
			if diff > time.Second {
				t.Errorf("computeRemaining = %v, want %v (±1s)", got, tt.expected)
			}
		})
	}
}

func TestComputeRemaining_FallbackSeconds(t *testing.T) {
	s := New(&fakeActions{}, zap.NewNop())
	if got := int64(s.computeRemaining(&models.NodeStats{}) / time.Second); got != 43200 {
		t.Errorf("fallback = %d seconds, want 43200", got)
	}
}

// Restarting the countdown cycle cancels the previous one: after two
// consecutive starts, exactly one countdown loop is alive.
func TestStart_ExactlyOneCountdown(t *testing.T) {
	far := time.Now().Add(time.Hour).UnixMilli()
	actions := &fakeActions{statsQueue: []*models.NodeStats{statsWithNext(far)}}
	s := newTestScheduler(actions)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	s.Start(ctx)
	s.Start(ctx)

	eventually(t, time.Second, func() bool {
		return s.countdowns.Load() == 1
	}, "countdown loops did not settle at exactly one")

	// Hold for a few ticks to make sure no second loop is hiding in a sleep.
	time.Sleep(50 * time.Millisecond)
	if got := s.countdowns.Load(); got != 1 {
		t.Errorf("active countdowns = %d, want 1", got)
	}
}

// A due countdown runs the routine sequence once and reschedules itself
// from fresh server state.
func TestCountdown_RunsRoutineAndReschedules(t *testing.T) {
	now := time.Now()
	far := now.Add(time.Hour).UnixMilli()
	actions := &fakeActions{statsQueue: []*models.NodeStats{
		statsWithNext(now.UnixMilli()), // due immediately
		statsWithNext(far),             // next cycle parks an hour out
	}}
	s := newTestScheduler(actions)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	s.Start(ctx)

	eventually(t, time.Second, func() bool {
		onboards, checkins, _ := actions.counts()
		return onboards == 1 && checkins == 1
	}, "routine tasks did not run")

	eventually(t, time.Second, func() bool {
		return s.Snapshot().RemainingSeconds > 3500
	}, "scheduler did not re-arm from the next check-in timestamp")

	snap := s.Snapshot()
	if snap.LastCheckinAt == nil {
		t.Error("LastCheckinAt not recorded")
	}
	if snap.LastPoints == nil || *snap.LastPoints != 10.0 {
		t.Errorf("LastPoints = %v, want 10", snap.LastPoints)
	}

	// The routine must have run exactly once; the new cycle sits an hour out.
	time.Sleep(50 * time.Millisecond)
	onboards, checkins, _ := actions.counts()
	if onboards != 1 || checkins != 1 {
		t.Errorf("routine ran %d/%d times, want exactly once", onboards, checkins)
	}
}

func TestStatsLoop_KeepsPolling(t *testing.T) {
	far := time.Now().Add(time.Hour).UnixMilli()
	actions := &fakeActions{statsQueue: []*models.NodeStats{statsWithNext(far)}}
	s := newTestScheduler(actions)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	s.Start(ctx)

	eventually(t, time.Second, func() bool {
		_, _, statsCalls := actions.counts()
		return statsCalls >= 3 // initial scheduling fetch plus ticker polls
	}, "stats loop is not polling")

	if snap := s.Snapshot(); snap.LastStats == nil {
		t.Error("LastStats not recorded")
	}
}

func TestShutdown_StopsLoops(t *testing.T) {
	far := time.Now().Add(time.Hour).UnixMilli()
	actions := &fakeActions{statsQueue: []*models.NodeStats{statsWithNext(far)}}
	s := newTestScheduler(actions)

	ctx, cancel := context.WithCancel(context.Background())
	s.Start(ctx)
	eventually(t, time.Second, func() bool { return s.countdowns.Load() == 1 },
		"countdown never started")

	cancel()
	eventually(t, time.Second, func() bool { return s.countdowns.Load() == 0 },
		"countdown loop survived cancellation")
}
