// Package scheduler drives the ingest tasks on fixed cadences with a small
// shared worker pool. Retry policy lives here and only here: adapters and
// the runner classify errors, the scheduler decides what to do about them.
package scheduler

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"

	"github.com/oogsj/coastwatch/internal/domain"
	"github.com/oogsj/coastwatch/internal/observability"
	"github.com/oogsj/coastwatch/internal/store"
)

var (
	// ErrUnknownTask is returned by Trigger for names not in the registry.
	ErrUnknownTask = errors.New("unknown task")

	// ErrTaskBusy is returned by Trigger when the task already has a run
	// in flight or queued.
	ErrTaskBusy = errors.New("task already running")
)

// Task is one schedulable unit of work.
type Task struct {
	Name  string
	Every time.Duration
	Run   func(ctx context.Context) error
}

// TaskStatus is the externally visible state of one task.
type TaskStatus struct {
	Name        string     `json:"name"`
	Interval    string     `json:"interval"`
	Running     bool       `json:"running"`
	LastSuccess *time.Time `json:"last_success,omitempty"`
	LastError   string     `json:"last_error,omitempty"`
}

type taskState struct {
	task Task

	mu          sync.Mutex
	busy        bool
	lastSuccess *time.Time
	lastError   string
}

type job struct {
	id    string
	state *taskState
}

// Scheduler owns the task registry, the worker pool, and the retry loop.
type Scheduler struct {
	tasks   map[string]*taskState
	ordered []*taskState
	queue   chan job

	clock    clockwork.Clock
	runs     store.TaskRuns
	logger   *slog.Logger
	metrics  *observability.Metrics
	workers  int
	attempts int
	backoff  time.Duration
}

// Config carries the scheduler envelope.
type Config struct {
	Workers       int
	RetryAttempts int
	RetryBackoff  time.Duration
}

// New creates a Scheduler over the given registry. Task names must be
// unique.
func New(
	tasks []Task,
	cfg Config,
	runs store.TaskRuns,
	clock clockwork.Clock,
	logger *slog.Logger,
	metrics *observability.Metrics,
) (*Scheduler, error) {
	s := &Scheduler{
		tasks:    make(map[string]*taskState, len(tasks)),
		queue:    make(chan job, len(tasks)),
		clock:    clock,
		runs:     runs,
		logger:   logger,
		metrics:  metrics,
		workers:  cfg.Workers,
		attempts: cfg.RetryAttempts,
		backoff:  cfg.RetryBackoff,
	}
	for _, t := range tasks {
		if t.Every <= 0 {
			return nil, fmt.Errorf("task %q has no interval", t.Name)
		}
		if _, dup := s.tasks[t.Name]; dup {
			return nil, fmt.Errorf("duplicate task %q", t.Name)
		}
		st := &taskState{task: t}
		s.tasks[t.Name] = st
		s.ordered = append(s.ordered, st)
	}
	return s, nil
}

// Run starts the workers and tickers, fires every task once immediately, and
// blocks until the context is cancelled.
func (s *Scheduler) Run(ctx context.Context) error {
	if err := s.loadLastSuccess(ctx); err != nil {
		return err
	}

	var wg sync.WaitGroup
	for i := 0; i < s.workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			s.worker(ctx)
		}()
	}
	for _, st := range s.ordered {
		wg.Add(1)
		go func(st *taskState) {
			defer wg.Done()
			s.tick(ctx, st)
		}(st)
	}

	s.logger.Info("scheduler started", "tasks", len(s.ordered), "workers", s.workers)
	<-ctx.Done()
	wg.Wait()
	return nil
}

// Trigger enqueues an immediate run of the named task and returns its job
// id.
func (s *Scheduler) Trigger(name string) (string, error) {
	st, ok := s.tasks[name]
	if !ok {
		return "", fmt.Errorf("%w: %s", ErrUnknownTask, name)
	}
	id, ok := s.enqueue(st)
	if !ok {
		return "", fmt.Errorf("%w: %s", ErrTaskBusy, name)
	}
	return id, nil
}

// Status returns a snapshot of every task, ordered by name.
func (s *Scheduler) Status() []TaskStatus {
	out := make([]TaskStatus, 0, len(s.ordered))
	for _, st := range s.ordered {
		st.mu.Lock()
		out = append(out, TaskStatus{
			Name:        st.task.Name,
			Interval:    st.task.Every.String(),
			Running:     st.busy,
			LastSuccess: st.lastSuccess,
			LastError:   st.lastError,
		})
		st.mu.Unlock()
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// loadLastSuccess seeds the in-memory status from the persisted run
// bookkeeping so restarts do not blank the status surface.
func (s *Scheduler) loadLastSuccess(ctx context.Context) error {
	last, err := s.runs.LastSuccess(ctx)
	if err != nil {
		return err
	}
	for name, at := range last {
		st, ok := s.tasks[name]
		if !ok {
			continue
		}
		at := at
		st.lastSuccess = &at
	}
	return nil
}

func (s *Scheduler) tick(ctx context.Context, st *taskState) {
	if _, ok := s.enqueue(st); !ok {
		s.logger.Warn("initial run skipped, task busy", "task", st.task.Name)
	}

	ticker := s.clock.NewTicker(st.task.Every)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.Chan():
			if _, ok := s.enqueue(st); !ok {
				s.logger.Warn("scheduled run skipped, previous still in flight",
					"task", st.task.Name)
			}
		}
	}
}

// enqueue marks the task busy and queues it. Reports false when a run is
// already in flight or queued; the busy flag holds until execute finishes,
// so each task has at most one run in the system.
func (s *Scheduler) enqueue(st *taskState) (string, bool) {
	st.mu.Lock()
	if st.busy {
		st.mu.Unlock()
		return "", false
	}
	st.busy = true
	st.mu.Unlock()

	id := uuid.NewString()
	s.queue <- job{id: id, state: st}
	return id, true
}

func (s *Scheduler) worker(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case j := <-s.queue:
			s.execute(ctx, j)
		}
	}
}

// execute runs one job through the retry loop. Retryable failures get up to
// attempts tries with a fixed pause between them; permanent failures stop
// immediately.
func (s *Scheduler) execute(ctx context.Context, j job) {
	st := j.state
	name := st.task.Name

	s.metrics.TasksRunning.Inc()
	defer s.metrics.TasksRunning.Dec()
	defer func() {
		st.mu.Lock()
		st.busy = false
		st.mu.Unlock()
	}()

	var err error
	for attempt := 1; attempt <= s.attempts; attempt++ {
		err = st.task.Run(ctx)
		if err == nil {
			s.recordSuccess(ctx, st)
			s.metrics.RunsTotal.WithLabelValues(name, "success").Inc()
			return
		}
		if !domain.Retryable(err) {
			s.logger.Error("task failed permanently",
				"task", name, "job_id", j.id, "error", err)
			s.recordError(st, err)
			s.metrics.RunsTotal.WithLabelValues(name, "permanent").Inc()
			return
		}

		s.logger.Warn("task failed, will retry",
			"task", name, "job_id", j.id, "attempt", attempt, "error", err)
		if attempt < s.attempts && !s.sleep(ctx, s.backoff) {
			break
		}
	}

	s.logger.Error("task failed after retries",
		"task", name, "job_id", j.id, "attempts", s.attempts, "error", err)
	s.recordError(st, err)
	s.metrics.RunsTotal.WithLabelValues(name, "retryable").Inc()
}

func (s *Scheduler) recordSuccess(ctx context.Context, st *taskState) {
	now := s.clock.Now().UTC()
	if err := s.runs.RecordSuccess(ctx, st.task.Name, now); err != nil {
		s.logger.Warn("persisting run bookkeeping failed",
			"task", st.task.Name, "error", err)
	}
	st.mu.Lock()
	st.lastSuccess = &now
	st.lastError = ""
	st.mu.Unlock()
}

func (s *Scheduler) recordError(st *taskState, err error) {
	st.mu.Lock()
	st.lastError = err.Error()
	st.mu.Unlock()
}

func (s *Scheduler) sleep(ctx context.Context, d time.Duration) bool {
	timer := s.clock.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-timer.Chan():
		return true
	}
}
