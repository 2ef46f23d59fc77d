// Package scheduler drives the auto-scan loop: one cycle immediately, one
// per interval after that, and a per-second countdown that ends the loop
// when the budget runs out.
package scheduler

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/sync/semaphore"

	vmetrics "patientflow/internal/verification/metrics"
	"patientflow/pkg/platform/sentinel"
)

const (
	DefaultInterval      = 3 * time.Second
	DefaultTick          = time.Second
	DefaultBudgetSeconds = 60
)

// Runner is the face-scan session the scheduler drives.
type Runner interface {
	// Ready reports whether a frame can be captured now.
	Ready() bool
	// RunCycle performs one capture, submit and evaluate round.
	RunCycle(ctx context.Context)
	// Countdown reports the budget left after a tick.
	Countdown(remaining int)
	// Deadline is called once when the budget reaches zero.
	Deadline()
}

type Config struct {
	Interval      time.Duration
	Tick          time.Duration
	BudgetSeconds int
}

func DefaultConfig() Config {
	return Config{Interval: DefaultInterval, Tick: DefaultTick, BudgetSeconds: DefaultBudgetSeconds}
}

// Scheduler runs at most one cycle at a time. A cycle that would overlap the
// one in flight is skipped, never queued.
type Scheduler struct {
	cfg     Config
	logger  *slog.Logger
	metrics *vmetrics.Metrics
	flight  *semaphore.Weighted

	mu     sync.Mutex
	cancel context.CancelFunc
	done   chan struct{}
	cycles sync.WaitGroup
}

type Option func(*Scheduler)

func WithLogger(logger *slog.Logger) Option {
	return func(s *Scheduler) {
		if logger != nil {
			s.logger = logger
		}
	}
}

func WithMetrics(m *vmetrics.Metrics) Option {
	return func(s *Scheduler) { s.metrics = m }
}

func New(cfg Config, opts ...Option) *Scheduler {
	def := DefaultConfig()
	if cfg.Interval <= 0 {
		cfg.Interval = def.Interval
	}
	if cfg.Tick <= 0 {
		cfg.Tick = def.Tick
	}
	if cfg.BudgetSeconds <= 0 {
		cfg.BudgetSeconds = def.BudgetSeconds
	}
	s := &Scheduler{
		cfg:    cfg,
		logger: slog.New(slog.NewTextHandler(io.Discard, nil)),
		flight: semaphore.NewWeighted(1),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *Scheduler) Config() Config {
	return s.cfg
}

// Start launches the loop. Cycles receive ctx itself, so Stop never aborts
// a cycle already in flight; cancelling ctx does.
func (s *Scheduler) Start(ctx context.Context, runner Runner) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.cancel != nil {
		return fmt.Errorf("scheduler already running: %w", sentinel.ErrInvalidState)
	}

	loopCtx, cancel := context.WithCancel(ctx)
	done := make(chan struct{})
	s.cancel = cancel
	s.done = done

	go s.loop(ctx, loopCtx, cancel, runner, done)
	return nil
}

func (s *Scheduler) loop(cycleCtx, loopCtx context.Context, cancel context.CancelFunc, runner Runner, done chan struct{}) {
	defer close(done)

	scan := time.NewTicker(s.cfg.Interval)
	defer scan.Stop()
	tick := time.NewTicker(s.cfg.Tick)
	defer tick.Stop()

	s.trigger(cycleCtx, loopCtx, runner)

	remaining := s.cfg.BudgetSeconds
	for {
		select {
		case <-loopCtx.Done():
			return
		case <-scan.C:
			s.trigger(cycleCtx, loopCtx, runner)
		case <-tick.C:
			remaining--
			if loopCtx.Err() != nil {
				return
			}
			runner.Countdown(remaining)
			if remaining <= 0 {
				s.logger.Info("scan budget exhausted", "budget_seconds", s.cfg.BudgetSeconds)
				runner.Deadline()
				s.release(done, cancel)
				return
			}
		}
	}
}

func (s *Scheduler) trigger(cycleCtx, loopCtx context.Context, runner Runner) {
	if loopCtx.Err() != nil {
		return
	}
	if !runner.Ready() {
		s.metrics.IncCycleSkipped("not_ready")
		s.logger.Debug("scan cycle skipped", "reason", "not_ready")
		return
	}
	if !s.flight.TryAcquire(1) {
		s.metrics.IncCycleSkipped("in_flight")
		s.logger.Debug("scan cycle skipped", "reason", "in_flight")
		return
	}

	s.cycles.Add(1)
	go func() {
		defer s.cycles.Done()
		defer s.flight.Release(1)
		runner.RunCycle(cycleCtx)
	}()
}

// Stop ends the loop without waiting for it. It is safe to call from a
// Runner callback and more than once.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.cancel != nil {
		s.cancel()
		s.cancel = nil
	}
}

// release clears the loop that owns done, leaving a newer loop untouched.
func (s *Scheduler) release(done chan struct{}, cancel context.CancelFunc) {
	s.mu.Lock()
	if s.done == done && s.cancel != nil {
		s.cancel = nil
	}
	s.mu.Unlock()
	cancel()
}

// Running reports whether the loop is active.
func (s *Scheduler) Running() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.cancel != nil
}

// Wait blocks until the loop has exited and every started cycle returned.
func (s *Scheduler) Wait() {
	s.mu.Lock()
	done := s.done
	s.mu.Unlock()
	if done != nil {
		<-done
	}
	s.cycles.Wait()
}
