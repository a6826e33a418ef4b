package scheduler

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"go-etl-scheduler/internal/model"
)

// gatedRunner blocks every run until release is closed and tracks how many
// runs overlap.
type gatedRunner struct {
	release  chan struct{}
	started  chan struct{}
	status   model.RunStatus
	calls    atomic.Int32
	active   atomic.Int32
	maxSeen  atomic.Int32
	finished atomic.Int32
}

func newGatedRunner(status model.RunStatus) *gatedRunner {
	return &gatedRunner{
		release: make(chan struct{}),
		started: make(chan struct{}, 100),
		status:  status,
	}
}

func (r *gatedRunner) RunPipeline(context.Context) model.RunResult {
	r.calls.Add(1)
	n := r.active.Add(1)
	for {
		m := r.maxSeen.Load()
		if n <= m || r.maxSeen.CompareAndSwap(m, n) {
			break
		}
	}
	r.started <- struct{}{}
	<-r.release
	r.active.Add(-1)
	r.finished.Add(1)
	return model.RunResult{ID: "run", Status: r.status, Stage: model.StageFinalized, Errors: []string{}}
}

func startScheduler(t *testing.T, runner PipelineRunner) *Scheduler {
	t.Helper()
	s := New(runner, zaptest.NewLogger(t))
	require.NoError(t, s.Start(time.Hour))
	return s
}

func waitStarted(t *testing.T, r *gatedRunner) {
	t.Helper()
	select {
	case <-r.started:
	case <-time.After(2 * time.Second):
		t.Fatal("run did not start")
	}
}

func TestTriggerNow_RejectsWhileInFlight(t *testing.T) {
	runner := newGatedRunner(model.StatusSuccess)
	s := startScheduler(t, runner)

	require.True(t, s.TriggerNow())
	waitStarted(t, runner)

	assert.False(t, s.TriggerNow())
	state := s.Status()
	assert.True(t, state.RunInFlight)
	require.NotNil(t, state.CurrentRunStartedAt)
	assert.False(t, state.CurrentRunStartedAt.IsZero())

	close(runner.release)
	require.Eventually(t, func() bool { return !s.Status().RunInFlight }, 2*time.Second, 10*time.Millisecond)

	assert.True(t, s.TriggerNow())
	s.Stop()
	assert.Equal(t, int32(2), runner.calls.Load())
	require.NotNil(t, s.Status().LastRun)
}

func TestTick_SkippedWhileInFlight(t *testing.T) {
	runner := newGatedRunner(model.StatusSuccess)
	s := startScheduler(t, runner)

	require.True(t, s.TriggerNow())
	waitStarted(t, runner)

	s.tick()
	s.tick()

	state := s.Status()
	assert.Equal(t, 2, state.SkippedTicks)
	require.Len(t, state.Notes, 2)
	assert.Contains(t, state.Notes[0], "tick skipped")
	assert.Equal(t, int32(1), runner.calls.Load())

	close(runner.release)
	s.Stop()
}

func TestNeverTwoRunsAtOnce(t *testing.T) {
	runner := newGatedRunner(model.StatusSuccess)
	s := startScheduler(t, runner)

	var wg sync.WaitGroup
	var accepted atomic.Int32
	for i := 0; i < 20; i++ {
		wg.Add(2)
		go func() {
			defer wg.Done()
			if s.TriggerNow() {
				accepted.Add(1)
			}
		}()
		go func() {
			defer wg.Done()
			s.tick()
		}()
	}

	waitStarted(t, runner)
	time.Sleep(50 * time.Millisecond)
	close(runner.release)
	wg.Wait()
	s.Stop()

	assert.Equal(t, int32(1), runner.maxSeen.Load())
	assert.GreaterOrEqual(t, runner.calls.Load(), int32(1))
}

func TestStop_WaitsForInFlightRun(t *testing.T) {
	runner := newGatedRunner(model.StatusSuccess)
	s := startScheduler(t, runner)

	require.True(t, s.TriggerNow())
	waitStarted(t, runner)

	stopped := make(chan struct{})
	go func() {
		s.Stop()
		close(stopped)
	}()

	select {
	case <-stopped:
		t.Fatal("Stop returned while a run was in flight")
	case <-time.After(100 * time.Millisecond):
	}

	close(runner.release)
	select {
	case <-stopped:
	case <-time.After(2 * time.Second):
		t.Fatal("Stop did not return after the run finished")
	}

	assert.Equal(t, int32(1), runner.finished.Load())
	assert.False(t, s.TriggerNow())
	_, ok := s.RunNow(context.Background())
	assert.False(t, ok)
	assert.False(t, s.Status().Running)
}

func TestFailedRunDoesNotStopTicks(t *testing.T) {
	runner := newGatedRunner(model.StatusFailed)
	close(runner.release)
	s := startScheduler(t, runner)
	defer s.Stop()

	s.tick()
	s.tick()

	assert.Equal(t, int32(2), runner.calls.Load())
	state := s.Status()
	require.NotNil(t, state.LastRun)
	assert.Equal(t, model.StatusFailed, state.LastRun.Status)
}

func TestRunNow(t *testing.T) {
	runner := newGatedRunner(model.StatusPartial)
	close(runner.release)
	s := startScheduler(t, runner)
	defer s.Stop()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	res, ok := s.RunNow(ctx)
	require.True(t, ok)
	assert.Equal(t, model.StatusPartial, res.Status)
	assert.False(t, s.Status().RunInFlight)
}

func TestStart_Validation(t *testing.T) {
	s := New(newGatedRunner(model.StatusSuccess), zaptest.NewLogger(t))

	assert.ErrorIs(t, s.Start(500*time.Millisecond), ErrInvalidInterval)
	assert.False(t, s.TriggerNow(), "not started")

	require.NoError(t, s.Start(time.Hour))
	defer s.Stop()
	assert.ErrorIs(t, s.Start(time.Hour), ErrAlreadyRunning)

	require.Eventually(t, func() bool { return !s.Status().NextRun.IsZero() }, 2*time.Second, 10*time.Millisecond)
	state := s.Status()
	assert.Equal(t, time.Hour, state.Interval)
	assert.True(t, state.Running)
	assert.WithinDuration(t, time.Now().Add(time.Hour), state.NextRun, 5*time.Second)
}

func TestTicksFireOnInterval(t *testing.T) {
	runner := newGatedRunner(model.StatusSuccess)
	close(runner.release)
	s := New(runner, zaptest.NewLogger(t))
	require.NoError(t, s.Start(time.Second))
	defer s.Stop()

	require.Eventually(t, func() bool { return runner.calls.Load() >= 1 }, 3*time.Second, 50*time.Millisecond)
}
