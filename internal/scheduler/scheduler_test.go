package scheduler

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/oogsj/coastwatch/internal/domain"
	"github.com/oogsj/coastwatch/internal/observability"
)

type fakeRuns struct {
	mu     sync.Mutex
	last   map[string]time.Time
	loaded map[string]time.Time
}

func newFakeRuns() *fakeRuns {
	return &fakeRuns{last: make(map[string]time.Time)}
}

func (r *fakeRuns) RecordSuccess(_ context.Context, task string, at time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.last[task] = at
	return nil
}

func (r *fakeRuns) LastSuccess(context.Context) (map[string]time.Time, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make(map[string]time.Time, len(r.loaded))
	for k, v := range r.loaded {
		out[k] = v
	}
	return out, nil
}

func testScheduler(t *testing.T, tasks []Task, runs *fakeRuns) (*Scheduler, context.CancelFunc) {
	t.Helper()
	s, err := New(tasks, Config{
		Workers:       2,
		RetryAttempts: 3,
		RetryBackoff:  time.Millisecond,
	}, runs, clockwork.NewRealClock(), slog.New(slog.DiscardHandler), observability.NewMetricsForTesting())
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		_ = s.Run(ctx)
		close(done)
	}()
	t.Cleanup(func() {
		cancel()
		<-done
	})
	return s, cancel
}

func taskStatus(s *Scheduler, name string) TaskStatus {
	for _, st := range s.Status() {
		if st.Name == name {
			return st
		}
	}
	return TaskStatus{}
}

func TestSchedulerRunsTaskAndRecordsSuccess(t *testing.T) {
	var calls atomic.Int32
	runs := newFakeRuns()
	s, _ := testScheduler(t, []Task{{
		Name:  "buoy",
		Every: time.Hour,
		Run: func(context.Context) error {
			calls.Add(1)
			return nil
		},
	}}, runs)

	require.Eventually(t, func() bool {
		return taskStatus(s, "buoy").LastSuccess != nil
	}, 2*time.Second, 10*time.Millisecond)

	assert.Equal(t, int32(1), calls.Load())
	runs.mu.Lock()
	_, recorded := runs.last["buoy"]
	runs.mu.Unlock()
	assert.True(t, recorded, "success is persisted")
}

func TestSchedulerRetriesRetryableFailures(t *testing.T) {
	var calls atomic.Int32
	s, _ := testScheduler(t, []Task{{
		Name:  "buoy",
		Every: time.Hour,
		Run: func(context.Context) error {
			if calls.Add(1) < 3 {
				return &domain.NetworkError{Source: "buoy", Err: errors.New("timeout")}
			}
			return nil
		},
	}}, newFakeRuns())

	require.Eventually(t, func() bool {
		return taskStatus(s, "buoy").LastSuccess != nil
	}, 2*time.Second, 10*time.Millisecond)

	assert.Equal(t, int32(3), calls.Load(), "two retries before success")
	assert.Empty(t, taskStatus(s, "buoy").LastError)
}

func TestSchedulerStopsOnPermanentFailure(t *testing.T) {
	var calls atomic.Int32
	s, _ := testScheduler(t, []Task{{
		Name:  "weather_puerto",
		Every: time.Hour,
		Run: func(context.Context) error {
			calls.Add(1)
			return &domain.ConfigError{Err: errors.New("missing credentials")}
		},
	}}, newFakeRuns())

	require.Eventually(t, func() bool {
		return taskStatus(s, "weather_puerto").LastError != ""
	}, 2*time.Second, 10*time.Millisecond)

	assert.Equal(t, int32(1), calls.Load(), "permanent failures are not retried")
	assert.Contains(t, taskStatus(s, "weather_puerto").LastError, "missing credentials")
}

func TestSchedulerGivesUpAfterRetries(t *testing.T) {
	var calls atomic.Int32
	s, _ := testScheduler(t, []Task{{
		Name:  "buoy",
		Every: time.Hour,
		Run: func(context.Context) error {
			calls.Add(1)
			return &domain.NetworkError{Source: "buoy", Err: errors.New("down")}
		},
	}}, newFakeRuns())

	require.Eventually(t, func() bool {
		return taskStatus(s, "buoy").LastError != ""
	}, 2*time.Second, 10*time.Millisecond)

	assert.Equal(t, int32(3), calls.Load(), "attempt budget is exhausted, then the run is abandoned")
	assert.Nil(t, taskStatus(s, "buoy").LastSuccess)
}

func TestTriggerUnknownTask(t *testing.T) {
	s, _ := testScheduler(t, []Task{{
		Name:  "buoy",
		Every: time.Hour,
		Run:   func(context.Context) error { return nil },
	}}, newFakeRuns())

	_, err := s.Trigger("mareograph")
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrUnknownTask)
}

func TestTriggerWhileRunning(t *testing.T) {
	started := make(chan struct{})
	release := make(chan struct{})
	var runsSeen atomic.Int32
	s, _ := testScheduler(t, []Task{{
		Name:  "buoy",
		Every: time.Hour,
		Run: func(context.Context) error {
			if runsSeen.Add(1) == 1 {
				close(started)
				<-release
			}
			return nil
		},
	}}, newFakeRuns())

	<-started
	_, err := s.Trigger("buoy")
	assert.ErrorIs(t, err, ErrTaskBusy)
	close(release)

	// Once the run finishes, triggering works again and yields a job id.
	require.Eventually(t, func() bool {
		id, err := s.Trigger("buoy")
		return err == nil && id != ""
	}, 2*time.Second, 10*time.Millisecond)
}

func TestStatusSeededFromPersistedRuns(t *testing.T) {
	past := time.Date(2026, 8, 27, 6, 0, 0, 0, time.UTC)
	runs := newFakeRuns()
	runs.loaded = map[string]time.Time{"tide_forecast": past, "retired_task": past}

	blocked := make(chan struct{})
	s, _ := testScheduler(t, []Task{{
		Name:  "tide_forecast",
		Every: time.Hour,
		Run: func(ctx context.Context) error {
			<-blocked
			return nil
		},
	}}, runs)

	require.Eventually(t, func() bool {
		st := taskStatus(s, "tide_forecast")
		return st.LastSuccess != nil && st.LastSuccess.Equal(past)
	}, 2*time.Second, 10*time.Millisecond)
	close(blocked)

	// Unknown persisted names are ignored rather than surfaced.
	for _, st := range s.Status() {
		assert.NotEqual(t, "retired_task", st.Name)
	}
}

func TestNewRejectsBadRegistry(t *testing.T) {
	ok := Task{Name: "buoy", Every: time.Hour, Run: func(context.Context) error { return nil }}

	_, err := New([]Task{ok, ok}, Config{Workers: 1, RetryAttempts: 1, RetryBackoff: time.Second},
		newFakeRuns(), clockwork.NewRealClock(), slog.New(slog.DiscardHandler), observability.NewMetricsForTesting())
	assert.Error(t, err, "duplicate names")

	bad := ok
	bad.Every = 0
	_, err = New([]Task{bad}, Config{Workers: 1, RetryAttempts: 1, RetryBackoff: time.Second},
		newFakeRuns(), clockwork.NewRealClock(), slog.New(slog.DiscardHandler), observability.NewMetricsForTesting())
	assert.Error(t, err, "missing interval")
}
