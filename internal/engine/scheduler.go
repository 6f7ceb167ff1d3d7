package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/IshaanNene/newsdesk/internal/config"
	"github.com/IshaanNene/newsdesk/internal/events"
	"github.com/IshaanNene/newsdesk/internal/lock"
	"github.com/IshaanNene/newsdesk/internal/observability"
	"github.com/IshaanNene/newsdesk/internal/types"
)

// State is the scheduler's lifecycle state.
type State int32

const (
	StateIdle    State = 0
	StateRunning State = 1
	StateSuccess State = 2
	StateFailed  State = 3
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateRunning:
		return "running"
	case StateSuccess:
		return "success"
	case StateFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// Trigger names what started a cycle.
type Trigger string

const (
	TriggerScheduled Trigger = "scheduled"
	TriggerManual    Trigger = "manual"
	TriggerStartup   Trigger = "startup"
)

// Runner executes one ingestion cycle.
type Runner interface {
	Run(ctx context.Context, opts CycleOptions) (*CycleResult, error)
}

// Status is a point-in-time view of the scheduler.
type Status struct {
	Enabled             bool         `json:"enabled"`
	State               string       `json:"state"`
	SourceURL           string       `json:"sourceUrl"`
	Interval            string       `json:"interval"`
	InFlight            int32        `json:"inFlight"`
	LastRunAt           *time.Time   `json:"lastRunAt,omitempty"`
	LastTrigger         Trigger      `json:"lastTrigger,omitempty"`
	LastOutcome         string       `json:"lastOutcome,omitempty"`
	LastResult          *CycleResult `json:"lastResult,omitempty"`
	LastError           string       `json:"lastError,omitempty"`
	ConsecutiveFailures int          `json:"consecutiveFailures"`
	TotalRuns           int64        `json:"totalRuns"`
	TotalFailures       int64        `json:"totalFailures"`
}

// Scheduler runs ingestion cycles on a fixed interval and on demand.
// Cycles may overlap; the optional lock only guards across processes.
type Scheduler struct {
	cfg     config.SchedulerConfig
	runner  Runner
	locker  lock.Locker
	events  events.Publisher
	metrics *observability.Metrics
	logger  *slog.Logger

	inFlight atomic.Int32
	wg       sync.WaitGroup

	mu          sync.RWMutex
	lastRunAt   time.Time
	lastTrigger Trigger
	lastOutcome State
	lastResult  *CycleResult
	lastErr     error
	consecutive int
	totalRuns   int64
	totalFails  int64
}

// NewScheduler creates a Scheduler. locker, publisher and metrics may be nil.
func NewScheduler(cfg config.SchedulerConfig, runner Runner, locker lock.Locker, publisher events.Publisher, metrics *observability.Metrics, logger *slog.Logger) *Scheduler {
	if locker == nil {
		locker = lock.Nop{}
	}
	if publisher == nil {
		publisher = events.Nop{}
	}
	return &Scheduler{
		cfg:     cfg,
		runner:  runner,
		locker:  locker,
		events:  publisher,
		metrics: metrics,
		logger:  logger.With("component", "scheduler"),
	}
}

// Start launches the ticker loop. It returns immediately; cancel ctx and
// call Wait to stop.
func (s *Scheduler) Start(ctx context.Context) {
	if !s.cfg.Enabled {
		s.logger.Info("scheduler disabled")
		return
	}
	s.logger.Info("scheduler started", "interval", s.cfg.Interval, "source", s.cfg.SourceURL, "run_on_start", s.cfg.RunOnStart)

	if s.cfg.RunOnStart {
		s.spawn(ctx, TriggerStartup)
	}

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		ticker := time.NewTicker(s.cfg.Interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				s.logger.Info("scheduler stopping")
				return
			case <-ticker.C:
				s.spawn(ctx, TriggerScheduled)
			}
		}
	}()
}

// Wait blocks until the ticker loop and every background cycle return.
func (s *Scheduler) Wait() {
	s.wg.Wait()
}

func (s *Scheduler) spawn(ctx context.Context, trigger Trigger) {
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		_, _ = s.RunCycle(ctx, trigger)
	}()
}

// Trigger runs a manual cycle and waits for it.
func (s *Scheduler) Trigger(ctx context.Context) (*CycleResult, error) {
	return s.RunCycle(ctx, TriggerManual)
}

// Options returns the cycle parameters for a trigger. Manual cycles are
// smaller and shorter than scheduled ones.
func (s *Scheduler) Options(trigger Trigger) CycleOptions {
	opts := CycleOptions{
		URL:        s.cfg.SourceURL,
		MaxItems:   s.cfg.MaxItems,
		Timeout:    s.cfg.Timeout,
		UseBrowser: s.cfg.UseBrowser,
	}
	if trigger == TriggerManual {
		opts.MaxItems = s.cfg.ManualMaxItems
		opts.Timeout = s.cfg.ManualTimeout
	}
	return opts
}

// RunCycle runs one cycle and records its outcome. Failures are logged and
// counted; a panic in the cycle is converted into an error.
func (s *Scheduler) RunCycle(ctx context.Context, trigger Trigger) (res *CycleResult, err error) {
	logger := s.logger.With("trigger", trigger)

	release, lerr := s.locker.Acquire(ctx)
	switch {
	case errors.Is(lerr, lock.ErrLocked):
		logger.Info("ingestion cycle skipped, lock held elsewhere")
		return nil, types.ErrCycleLocked
	case lerr != nil:
		logger.Warn("lock unavailable, running unguarded", "error", lerr)
	default:
		defer release()
	}

	s.inFlight.Add(1)
	start := time.Now()

	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("ingestion cycle panic: %v", r)
		}
		s.inFlight.Add(-1)
		s.finish(ctx, logger, trigger, start, res, err)
	}()

	logger.Info("ingestion cycle started", "url", s.cfg.SourceURL)
	return s.runner.Run(ctx, s.Options(trigger))
}

func (s *Scheduler) finish(ctx context.Context, logger *slog.Logger, trigger Trigger, start time.Time, res *CycleResult, err error) {
	d := time.Since(start)
	if res == nil {
		res = &CycleResult{URL: s.cfg.SourceURL}
	}
	s.metrics.RecordCycle(string(trigger), err == nil, d, res.Extracted, res.Dropped, res.Duplicates, res.Saved)

	s.mu.Lock()
	s.lastRunAt = start
	s.lastTrigger = trigger
	s.lastResult = res
	s.lastErr = err
	s.totalRuns++
	if err == nil {
		s.lastOutcome = StateSuccess
		s.consecutive = 0
	} else {
		s.lastOutcome = StateFailed
		s.consecutive++
		s.totalFails++
	}
	consecutive := s.consecutive
	s.mu.Unlock()
	s.metrics.SetConsecutiveFailures(consecutive)

	if err == nil {
		s.publish(ctx, events.TypeCycleCompleted, map[string]any{"trigger": trigger, "result": res})
		return
	}

	code := errorCode(err)
	logger.Error("ingestion cycle failed",
		"url", res.URL,
		"code", code,
		"error", err,
		"duration", d,
		"consecutive_failures", consecutive,
	)
	s.publish(ctx, events.TypeCycleFailed, map[string]any{"trigger": trigger, "code": code, "error": err.Error()})

	limit := s.cfg.MaxConsecutiveFailures
	if limit > 0 && consecutive%limit == 0 {
		logger.Error("ingestion alert: repeated cycle failures",
			"consecutive_failures", consecutive,
			"threshold", limit,
			"last_error", err,
		)
		s.metrics.RecordAlert()
		s.publish(ctx, events.TypeSchedulerAlert, map[string]any{
			"consecutiveFailures": consecutive,
			"threshold":           limit,
			"lastError":           err.Error(),
			"source":              s.cfg.SourceURL,
		})
	}
}

func (s *Scheduler) publish(ctx context.Context, typ string, data any) {
	if err := s.events.Publish(ctx, events.NewEvent(typ, data)); err != nil {
		s.logger.Warn("event publish failed", "type", typ, "error", err)
	}
}

// State reports Running while any cycle is in flight, otherwise Idle.
func (s *Scheduler) State() State {
	return stateFor(s.inFlight.Load())
}

func stateFor(inFlight int32) State {
	if inFlight > 0 {
		return StateRunning
	}
	return StateIdle
}

// ConsecutiveFailures returns the current failure streak.
func (s *Scheduler) ConsecutiveFailures() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.consecutive
}

// Status returns a snapshot of the scheduler.
func (s *Scheduler) Status() Status {
	s.mu.RLock()
	defer s.mu.RUnlock()

	inFlight := s.inFlight.Load()
	st := Status{
		Enabled:             s.cfg.Enabled,
		State:               stateFor(inFlight).String(),
		SourceURL:           s.cfg.SourceURL,
		Interval:            s.cfg.Interval.String(),
		InFlight:            inFlight,
		LastTrigger:         s.lastTrigger,
		LastResult:          s.lastResult,
		ConsecutiveFailures: s.consecutive,
		TotalRuns:           s.totalRuns,
		TotalFailures:       s.totalFails,
	}
	if !s.lastRunAt.IsZero() {
		t := s.lastRunAt
		st.LastRunAt = &t
		st.LastOutcome = s.lastOutcome.String()
	}
	if s.lastErr != nil {
		st.LastError = s.lastErr.Error()
	}
	return st
}
