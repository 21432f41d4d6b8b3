package scheduler

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/parasail-network/node-agent/internal/models"
	"go.uber.org/zap"
)

const (
	// tickResolution is the countdown step; long waits are chopped into
	// minute-sized sleeps so cancellation is never far away.
	tickResolution = 60 * time.Second
	statsInterval  = 60 * time.Second
	fallbackDelay  = 12 * time.Hour
	actionPause    = 2 * time.Second
)

// Actions is the slice of the node service the scheduler drives.
type Actions interface {
	Onboard(ctx context.Context) error
	CheckIn(ctx context.Context) (*models.CheckInResult, error)
	Stats(ctx context.Context) (*models.NodeStats, error)
}

// Scheduler owns the countdown to the next routine cycle and a periodic
// stats poll. Each cycle runs two goroutines bound to a per-cycle context;
// rescheduling cancels the previous cycle before starting the next one, so
// there is never more than one countdown running.
type Scheduler struct {
	actions Actions
	log     *zap.Logger

	tick       time.Duration
	statsEvery time.Duration
	fallback   time.Duration
	pause      time.Duration
	now        func() time.Time

	base context.Context

	mu          sync.Mutex
	cancel      context.CancelFunc
	remaining   int64 // seconds until the routine cycle is due
	lastStats   *models.NodeStats
	lastCheckin *time.Time
	lastPoints  *float64

	countdowns atomic.Int32 // live countdown loops, must stay <= 1
}

func New(actions Actions, log *zap.Logger) *Scheduler {
	return &Scheduler{
		actions:    actions,
		log:        log,
		tick:       tickResolution,
		statsEvery: statsInterval,
		fallback:   fallbackDelay,
		pause:      actionPause,
		now:        time.Now,
	}
}

// Start computes the initial schedule from server state and launches the
// loops. ctx bounds the scheduler's whole lifetime.
func (s *Scheduler) Start(ctx context.Context) {
	s.base = ctx
	s.reschedule()
}

func (s *Scheduler) reschedule() {
	stats, err := s.actions.Stats(s.base)
	if err != nil {
		s.log.Warn("could not fetch stats for scheduling", zap.Error(err))
		stats = &models.NodeStats{}
	}

	remaining := s.computeRemaining(stats)
	if stats.NextCheckinTimestamp != nil {
		s.log.Info("next routine cycle scheduled",
			zap.Int64("remaining_seconds", int64(remaining/time.Second)),
			zap.Time("next_checkin", time.UnixMilli(*stats.NextCheckinTimestamp)),
		)
	} else {
		s.log.Info("no next check-in time from server, using fallback",
			zap.Duration("fallback", s.fallback))
	}

	s.mu.Lock()
	if s.cancel != nil {
		s.cancel()
	}
	cycleCtx, cancel := context.WithCancel(s.base)
	s.cancel = cancel
	s.remaining = int64(remaining / time.Second)
	s.lastStats = stats
	s.mu.Unlock()

	go s.countdownLoop(cycleCtx)
	go s.statsLoop(cycleCtx)
}

// computeRemaining derives the delay until the next routine cycle from the
// server-supplied timestamp, clamped at zero; absent a timestamp it falls
// back to a fixed safe interval.
func (s *Scheduler) computeRemaining(stats *models.NodeStats) time.Duration {
	if stats != nil && stats.NextCheckinTimestamp != nil {
		d := time.UnixMilli(*stats.NextCheckinTimestamp).Sub(s.now())
		if d < 0 {
			d = 0
		}
		return d
	}
	return s.fallback
}

func (s *Scheduler) countdownLoop(ctx context.Context) {
	s.countdowns.Add(1)
	defer s.countdowns.Add(-1)

	for {
		s.mu.Lock()
		rem := s.remaining
		s.mu.Unlock()
		if rem <= 0 {
			break
		}

		step := s.tick
		if remDur := time.Duration(rem) * time.Second; remDur < step {
			step = remDur
		}
		if err := sleep(ctx, step); err != nil {
			return // cycle cancelled
		}

		s.mu.Lock()
		s.remaining -= int64(step / time.Second)
		s.mu.Unlock()
	}

	s.log.Info("countdown elapsed, running routine tasks")
	if err := s.routineTasks(ctx); err != nil {
		if ctx.Err() != nil {
			return
		}
		// A failed cycle must not kill the process; the reschedule below
		// gives the next cycle its chance.
		s.log.Error("routine cycle failed", zap.Error(err))
	}
	s.reschedule()
}

// routineTasks is the strictly sequential cycle body:
// onboard -> pause -> check-in -> pause.
func (s *Scheduler) routineTasks(ctx context.Context) error {
	if err := s.actions.Onboard(ctx); err != nil {
		return err
	}
	if err := sleep(ctx, s.pause); err != nil {
		return err
	}

	result, err := s.actions.CheckIn(ctx)
	if err != nil {
		return err
	}
	now := s.now()
	s.mu.Lock()
	s.lastCheckin = &now
	if result != nil {
		s.lastPoints = result.Points
	}
	s.mu.Unlock()

	return sleep(ctx, s.pause)
}

func (s *Scheduler) statsLoop(ctx context.Context) {
	ticker := time.NewTicker(s.statsEvery)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			stats, err := s.actions.Stats(ctx)
			if err != nil {
				// Observability only; never disturbs the countdown.
				s.log.Warn("stats update failed", zap.Error(err))
				continue
			}
			s.mu.Lock()
			s.lastStats = stats
			s.mu.Unlock()
		}
	}
}

// Snapshot is a point-in-time view for the status endpoint.
type Snapshot struct {
	RemainingSeconds int64             `json:"remaining_seconds"`
	LastStats        *models.NodeStats `json:"last_stats,omitempty"`
	LastCheckinAt    *time.Time        `json:"last_checkin_at,omitempty"`
	LastPoints       *float64          `json:"last_points,omitempty"`
}

func (s *Scheduler) Snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return Snapshot{
		RemainingSeconds: s.remaining,
		LastStats:        s.lastStats,
		LastCheckinAt:    s.lastCheckin,
		LastPoints:       s.lastPoints,
	}
}

func sleep(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
