package scheduler

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	vmetrics "patientflow/internal/verification/metrics"
	"patientflow/pkg/platform/sentinel"
)

type fakeRunner struct {
	ready     atomic.Bool
	cycles    atomic.Int32
	inFlight  atomic.Int32
	maxFlight atomic.Int32
	block     chan struct{}
	cycleCtx  chan context.Context

	mu         sync.Mutex
	countdown  []int
	deadlines  int
	onDeadline func()
}

func newRunner() *fakeRunner {
	r := &fakeRunner{cycleCtx: make(chan context.Context, 16)}
	r.ready.Store(true)
	return r
}

func (r *fakeRunner) Ready() bool { return r.ready.Load() }

func (r *fakeRunner) RunCycle(ctx context.Context) {
	n := r.inFlight.Add(1)
	defer r.inFlight.Add(-1)
	for {
		cur := r.maxFlight.Load()
		if n <= cur || r.maxFlight.CompareAndSwap(cur, n) {
			break
		}
	}
	r.cycles.Add(1)
	select {
	case r.cycleCtx <- ctx:
	default:
	}
	if r.block != nil {
		<-r.block
	}
}

func (r *fakeRunner) Countdown(remaining int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.countdown = append(r.countdown, remaining)
}

func (r *fakeRunner) Deadline() {
	r.mu.Lock()
	r.deadlines++
	fn := r.onDeadline
	r.mu.Unlock()
	if fn != nil {
		fn()
	}
}

func (r *fakeRunner) snapshot() ([]int, int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]int(nil), r.countdown...), r.deadlines
}

func TestScheduler_FirstCycleIsImmediate(t *testing.T) {
	s := New(Config{Interval: time.Hour, Tick: time.Hour, BudgetSeconds: 60})
	r := newRunner()

	require.NoError(t, s.Start(context.Background(), r))
	defer func() { s.Stop(); s.Wait() }()

	assert.Eventually(t, func() bool { return r.cycles.Load() == 1 }, time.Second, 5*time.Millisecond)
}

func TestScheduler_SingleFlight(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := vmetrics.New(reg)
	s := New(Config{Interval: 5 * time.Millisecond, Tick: time.Hour, BudgetSeconds: 60}, WithMetrics(m))
	r := newRunner()
	r.block = make(chan struct{})

	require.NoError(t, s.Start(context.Background(), r))

	assert.Eventually(t, func() bool {
		return testutil.ToFloat64(m.CyclesSkipped.WithLabelValues("in_flight")) >= 3
	}, time.Second, 5*time.Millisecond)
	assert.Equal(t, int32(1), r.cycles.Load())

	close(r.block)
	assert.Eventually(t, func() bool { return r.cycles.Load() >= 3 }, time.Second, 5*time.Millisecond)

	s.Stop()
	s.Wait()
	assert.Equal(t, int32(1), r.maxFlight.Load())
}

func TestScheduler_SkipsWhenNotReady(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := vmetrics.New(reg)
	s := New(Config{Interval: 5 * time.Millisecond, Tick: time.Hour, BudgetSeconds: 60}, WithMetrics(m))
	r := newRunner()
	r.ready.Store(false)

	require.NoError(t, s.Start(context.Background(), r))
	assert.Eventually(t, func() bool {
		return testutil.ToFloat64(m.CyclesSkipped.WithLabelValues("not_ready")) >= 3
	}, time.Second, 5*time.Millisecond)
	assert.Zero(t, r.cycles.Load())

	r.ready.Store(true)
	assert.Eventually(t, func() bool { return r.cycles.Load() > 0 }, time.Second, 5*time.Millisecond)

	s.Stop()
	s.Wait()
}

func TestScheduler_CountdownReachesDeadline(t *testing.T) {
	s := New(Config{Interval: time.Hour, Tick: 2 * time.Millisecond, BudgetSeconds: 3})
	r := newRunner()

	require.NoError(t, s.Start(context.Background(), r))
	s.Wait()

	countdown, deadlines := r.snapshot()
	assert.Equal(t, []int{2, 1, 0}, countdown)
	assert.Equal(t, 1, deadlines)
	assert.False(t, s.Running())
}

func TestScheduler_DeadlineMayStopAndRestart(t *testing.T) {
	s := New(Config{Interval: time.Hour, Tick: 2 * time.Millisecond, BudgetSeconds: 1})
	first := newRunner()
	second := newRunner()
	first.onDeadline = func() {
		s.Stop()
		assert.NoError(t, s.Start(context.Background(), second))
	}

	require.NoError(t, s.Start(context.Background(), first))

	assert.Eventually(t, func() bool { return second.cycles.Load() == 1 }, time.Second, 2*time.Millisecond)
	_, deadlines := second.snapshot()
	assert.LessOrEqual(t, deadlines, 1)
	s.Stop()
	s.Wait()
}

func TestScheduler_Stop(t *testing.T) {
	t.Run("idempotent and safe before start", func(t *testing.T) {
		s := New(DefaultConfig())
		assert.NotPanics(t, func() {
			s.Stop()
			s.Stop()
			s.Wait()
		})
	})

	t.Run("no cycles after stop", func(t *testing.T) {
		s := New(Config{Interval: 5 * time.Millisecond, Tick: time.Hour, BudgetSeconds: 60})
		r := newRunner()
		require.NoError(t, s.Start(context.Background(), r))
		assert.Eventually(t, func() bool { return r.cycles.Load() >= 2 }, time.Second, 2*time.Millisecond)

		s.Stop()
		s.Wait()
		after := r.cycles.Load()
		time.Sleep(30 * time.Millisecond)
		assert.Equal(t, after, r.cycles.Load())
		assert.False(t, s.Running())
	})

	t.Run("stop does not cancel the cycle in flight", func(t *testing.T) {
		s := New(Config{Interval: time.Hour, Tick: time.Hour, BudgetSeconds: 60})
		r := newRunner()
		r.block = make(chan struct{})
		require.NoError(t, s.Start(context.Background(), r))

		var ctx context.Context
		select {
		case ctx = <-r.cycleCtx:
		case <-time.After(time.Second):
			t.Fatal("cycle did not start")
		}
		s.Stop()
		assert.NoError(t, ctx.Err())

		close(r.block)
		s.Wait()
	})

	t.Run("parent cancellation reaches the cycle", func(t *testing.T) {
		s := New(Config{Interval: time.Hour, Tick: time.Hour, BudgetSeconds: 60})
		r := newRunner()
		r.block = make(chan struct{})
		parent, cancel := context.WithCancel(context.Background())
		require.NoError(t, s.Start(parent, r))

		ctx := <-r.cycleCtx
		cancel()
		assert.ErrorIs(t, ctx.Err(), context.Canceled)

		close(r.block)
		s.Stop()
		s.Wait()
	})
}

func TestScheduler_StartTwice(t *testing.T) {
	s := New(Config{Interval: time.Hour, Tick: time.Hour, BudgetSeconds: 60})
	require.NoError(t, s.Start(context.Background(), newRunner()))
	defer func() { s.Stop(); s.Wait() }()

	err := s.Start(context.Background(), newRunner())
	assert.ErrorIs(t, err, sentinel.ErrInvalidState)
}

func TestNew_AppliesDefaults(t *testing.T) {
	s := New(Config{})
	assert.Equal(t, DefaultConfig(), s.Config())
}
