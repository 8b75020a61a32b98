package watch

import (
	"context"
	"errors"
	"sync"
	"time"

	"go.uber.org/zap"
)

// Scheduler drives the sweeper on a fixed interval. The interval and
// the enabled flag can change at runtime without restarting the loop.
type Scheduler struct {
	sweeper *Sweeper
	logger  *zap.Logger

	mu       sync.Mutex
	interval time.Duration
	enabled  bool

	reload chan struct{}
	cancel context.CancelFunc
	done   chan struct{}
}

// NewScheduler creates a scheduler with an initial interval and
// enabled state.
func NewScheduler(sweeper *Sweeper, interval time.Duration, enabled bool, logger *zap.Logger) *Scheduler {
	if interval <= 0 {
		interval = 5 * time.Second
	}
	return &Scheduler{
		sweeper:  sweeper,
		logger:   logger,
		interval: interval,
		enabled:  enabled,
		reload:   make(chan struct{}, 1),
	}
}

// Start launches the sweep loop. An enabled scheduler runs one cycle
// immediately so fresh state is available before the first tick.
func (s *Scheduler) Start(ctx context.Context) {
	ctx, s.cancel = context.WithCancel(ctx)
	s.done = make(chan struct{})
	go s.run(ctx)
}

// Stop halts the loop and waits for it to exit. An in-flight cycle is
// cancelled through its context.
func (s *Scheduler) Stop() {
	if s.cancel == nil {
		return
	}
	s.cancel()
	<-s.done
}

// Reconfigure applies a new interval and enabled state. The running
// loop picks the change up immediately.
func (s *Scheduler) Reconfigure(interval time.Duration, enabled bool) {
	s.mu.Lock()
	if interval > 0 {
		s.interval = interval
	}
	s.enabled = enabled
	s.mu.Unlock()

	select {
	case s.reload <- struct{}{}:
	default:
	}
	s.logger.Info("sweep schedule reconfigured",
		zap.Duration("interval", interval), zap.Bool("enabled", enabled))
}

func (s *Scheduler) run(ctx context.Context) {
	defer close(s.done)

	s.runOnce(ctx)

	ticker := time.NewTicker(s.snapshotInterval())
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-s.reload:
			ticker.Reset(s.snapshotInterval())
		case <-ticker.C:
			s.runOnce(ctx)
		}
	}
}

func (s *Scheduler) runOnce(ctx context.Context) {
	s.mu.Lock()
	enabled := s.enabled
	s.mu.Unlock()
	if !enabled {
		return
	}
	if _, err := s.sweeper.RunCycle(ctx); err != nil {
		if errors.Is(err, ErrCycleActive) {
			s.logger.Debug("previous sweep cycle still running, skipping tick")
			return
		}
		s.logger.Warn("sweep cycle failed", zap.Error(err))
	}
}

func (s *Scheduler) snapshotInterval() time.Duration {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.interval
}
