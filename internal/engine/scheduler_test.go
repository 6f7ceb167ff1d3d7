package engine

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/IshaanNene/newsdesk/internal/config"
	"github.com/IshaanNene/newsdesk/internal/events"
	"github.com/IshaanNene/newsdesk/internal/lock"
	"github.com/IshaanNene/newsdesk/internal/observability"
	"github.com/IshaanNene/newsdesk/internal/types"
)

type scriptedRunner struct {
	mu    sync.Mutex
	errs  []error
	opts  []CycleOptions
	panic bool
}

func (r *scriptedRunner) Run(_ context.Context, opts CycleOptions) (*CycleResult, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.opts = append(r.opts, opts)
	if r.panic {
		panic("selector exploded")
	}
	var err error
	if len(r.errs) > 0 {
		err, r.errs = r.errs[0], r.errs[1:]
	}
	if err != nil {
		return &CycleResult{URL: opts.URL}, err
	}
	return &CycleResult{URL: opts.URL, Extracted: 3, New: 2, Saved: 2, Duplicates: 1}, nil
}

func (r *scriptedRunner) calls() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.opts)
}

type heldLocker struct{}

func (heldLocker) Acquire(context.Context) (func(), error) { return nil, lock.ErrLocked }
func (heldLocker) Close() error                             { return nil }

type brokenLocker struct{}

func (brokenLocker) Acquire(context.Context) (func(), error) {
	return nil, errors.New("dial tcp: connection refused")
}
func (brokenLocker) Close() error { return nil }

func testSchedulerConfig() config.SchedulerConfig {
	cfg := config.DefaultConfig().Scheduler
	cfg.SourceURL = "https://n.example/list"
	cfg.MaxConsecutiveFailures = 2
	return cfg
}

func TestSchedulerTriggerUsesManualLimits(t *testing.T) {
	runner := &scriptedRunner{}
	s := NewScheduler(testSchedulerConfig(), runner, nil, nil, nil, testLogger)

	res, err := s.Trigger(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, res.Saved)

	require.Len(t, runner.opts, 1)
	assert.Equal(t, 20, runner.opts[0].MaxItems)
	assert.Equal(t, 30*time.Second, runner.opts[0].Timeout)

	scheduled := s.Options(TriggerScheduled)
	assert.Equal(t, 30, scheduled.MaxItems)
	assert.Equal(t, 45*time.Second, scheduled.Timeout)

	st := s.Status()
	assert.Equal(t, "idle", st.State)
	assert.Equal(t, "success", st.LastOutcome)
	assert.Equal(t, TriggerManual, st.LastTrigger)
	assert.EqualValues(t, 1, st.TotalRuns)
}

func TestSchedulerConsecutiveFailureAlert(t *testing.T) {
	boom := &types.FetchError{URL: "https://n.example/list", Code: types.CodeUnreachable}
	runner := &scriptedRunner{errs: []error{boom, boom, nil, boom}}
	pub := &recordingPublisher{}
	metrics := observability.NewMetrics(testLogger)
	s := NewScheduler(testSchedulerConfig(), runner, nil, pub, metrics, testLogger)
	ctx := context.Background()

	_, err := s.RunCycle(ctx, TriggerScheduled)
	require.Error(t, err)
	assert.Equal(t, 1, s.ConsecutiveFailures())

	_, err = s.RunCycle(ctx, TriggerScheduled)
	require.Error(t, err)
	assert.Equal(t, 2, s.ConsecutiveFailures())

	assert.Equal(t, []string{
		events.TypeCycleFailed,
		events.TypeCycleFailed,
		events.TypeSchedulerAlert,
	}, pub.eventTypes())

	_, err = s.RunCycle(ctx, TriggerScheduled)
	require.NoError(t, err)
	assert.Zero(t, s.ConsecutiveFailures(), "success resets the streak")

	_, err = s.RunCycle(ctx, TriggerScheduled)
	require.Error(t, err)
	st := s.Status()
	assert.Equal(t, 1, st.ConsecutiveFailures)
	assert.Equal(t, "failed", st.LastOutcome)
	assert.Contains(t, st.LastError, "unreachable")
	assert.EqualValues(t, 4, st.TotalRuns)
	assert.EqualValues(t, 3, st.TotalFailures)
}

func TestSchedulerSkipsWhenLockHeld(t *testing.T) {
	runner := &scriptedRunner{}
	s := NewScheduler(testSchedulerConfig(), runner, heldLocker{}, nil, nil, testLogger)

	_, err := s.RunCycle(context.Background(), TriggerScheduled)
	assert.ErrorIs(t, err, types.ErrCycleLocked)
	assert.Zero(t, runner.calls())
	assert.Zero(t, s.ConsecutiveFailures(), "a skipped cycle is not a failure")
}

func TestSchedulerRunsUnguardedWhenLockBackendDown(t *testing.T) {
	runner := &scriptedRunner{}
	s := NewScheduler(testSchedulerConfig(), runner, brokenLocker{}, nil, nil, testLogger)

	_, err := s.RunCycle(context.Background(), TriggerScheduled)
	require.NoError(t, err)
	assert.Equal(t, 1, runner.calls())
}

func TestSchedulerRecoversPanic(t *testing.T) {
	s := NewScheduler(testSchedulerConfig(), &scriptedRunner{panic: true}, nil, nil, nil, testLogger)

	_, err := s.RunCycle(context.Background(), TriggerScheduled)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "selector exploded")
	assert.Equal(t, "idle", s.Status().State)
}

func TestSchedulerStartRunOnStartAndTick(t *testing.T) {
	cfg := testSchedulerConfig()
	cfg.Interval = 20 * time.Millisecond
	cfg.RunOnStart = true
	runner := &scriptedRunner{}
	s := NewScheduler(cfg, runner, nil, nil, nil, testLogger)

	ctx, cancel := context.WithCancel(context.Background())
	s.Start(ctx)
	require.Eventually(t, func() bool { return runner.calls() >= 2 }, 2*time.Second, 5*time.Millisecond)
	cancel()
	s.Wait()
}

func TestSchedulerDisabledDoesNothing(t *testing.T) {
	cfg := testSchedulerConfig()
	cfg.Enabled = false
	runner := &scriptedRunner{}
	s := NewScheduler(cfg, runner, nil, nil, nil, testLogger)

	s.Start(context.Background())
	s.Wait()
	assert.Zero(t, runner.calls())
	assert.False(t, s.Status().Enabled)
}

// gatedRunner blocks each cycle until its release channel is closed.
type gatedRunner struct {
	started chan struct{}
	release []chan struct{}
	mu      sync.Mutex
	next    int
}

func (g *gatedRunner) Run(_ context.Context, opts CycleOptions) (*CycleResult, error) {
	g.mu.Lock()
	ch := g.release[g.next]
	g.next++
	g.mu.Unlock()
	g.started <- struct{}{}
	<-ch
	return &CycleResult{URL: opts.URL}, nil
}

func TestSchedulerStateStaysRunningWhileCyclesOverlap(t *testing.T) {
	runner := &gatedRunner{
		started: make(chan struct{}, 2),
		release: []chan struct{}{make(chan struct{}), make(chan struct{})},
	}
	s := NewScheduler(testSchedulerConfig(), runner, nil, nil, nil, testLogger)
	assert.Equal(t, "idle", s.Status().State)

	var wg sync.WaitGroup
	for i := 0; i < 2; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, _ = s.Trigger(context.Background())
		}()
		<-runner.started
	}
	assert.Equal(t, StateRunning, s.State())
	assert.EqualValues(t, 2, s.Status().InFlight)

	close(runner.release[0])
	require.Eventually(t, func() bool { return s.Status().InFlight == 1 }, time.Second, 5*time.Millisecond)
	st := s.Status()
	assert.Equal(t, "running", st.State)

	close(runner.release[1])
	wg.Wait()
	assert.Equal(t, "idle", s.Status().State)
	assert.EqualValues(t, 2, s.Status().TotalRuns)
}
