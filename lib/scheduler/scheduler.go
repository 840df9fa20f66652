// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package scheduler

import (
	"context"
	"fmt"
	"log/slog"
	"runtime/debug"
	"sync"
	"time"

	"github.com/bureau-foundation/telemetry-agent/lib/clock"
)

// DefaultPollInterval is used when Config.PollInterval is zero.
const DefaultPollInterval = 250 * time.Millisecond

// Task is one unit of recurring work.
type Task interface {
	Run(ctx context.Context) error
}

// TaskFunc adapts a function to [Task].
type TaskFunc func(ctx context.Context) error

// Run calls f.
func (f TaskFunc) Run(ctx context.Context) error { return f(ctx) }

// Config holds the parameters for [New].
type Config struct {
	// Name identifies this scheduler in logs ("producer", "batch").
	Name string

	// Clock drives due-time checks and the polling wait. Production
	// callers pass clock.Real(); tests pass clock.Fake().
	Clock clock.Clock

	// PollInterval is the wait between polling passes. Zero means
	// DefaultPollInterval.
	PollInterval time.Duration

	// Logger receives task failures. Nil discards.
	Logger *slog.Logger
}

// Scheduler runs registered tasks on a fixed delay. Safe for
// concurrent use; tasks may be added before or after Start.
type Scheduler struct {
	name         string
	clock        clock.Clock
	pollInterval time.Duration
	logger       *slog.Logger

	mu      sync.Mutex
	tasks   []*scheduledTask
	started bool

	done chan struct{}
}

type scheduledTask struct {
	name     string
	task     Task
	interval time.Duration

	// Guarded by Scheduler.mu. Only the polling loop writes them.
	nextDue   time.Time
	runs      int
	failures  int
	lastError string
}

// TaskStatus is a snapshot of one task's schedule.
type TaskStatus struct {
	Name      string        `json:"name"`
	Interval  time.Duration `json:"interval"`
	NextDue   time.Time     `json:"next_due"`
	Runs      int           `json:"runs"`
	Failures  int           `json:"failures"`
	LastError string        `json:"last_error,omitempty"`
}

// New creates a scheduler with no tasks.
func New(config Config) (*Scheduler, error) {
	if config.Clock == nil {
		return nil, fmt.Errorf("scheduler: Clock is required")
	}
	if config.PollInterval < 0 {
		return nil, fmt.Errorf("scheduler: PollInterval must not be negative, got %s", config.PollInterval)
	}
	pollInterval := config.PollInterval
	if pollInterval == 0 {
		pollInterval = DefaultPollInterval
	}
	logger := config.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	if config.Name != "" {
		logger = logger.With("scheduler", config.Name)
	}
	return &Scheduler{
		name:         config.Name,
		clock:        config.Clock,
		pollInterval: pollInterval,
		logger:       logger,
		done:         make(chan struct{}),
	}, nil
}

// AddTask registers task to run first at firstRun (immediately if
// that is not in the future) and then every interval after each run
// completes.
func (s *Scheduler) AddTask(name string, task Task, interval time.Duration, firstRun time.Time) error {
	if name == "" {
		return fmt.Errorf("scheduler: task name is required")
	}
	if task == nil {
		return fmt.Errorf("scheduler: task %q: Task is required", name)
	}
	if interval <= 0 {
		return fmt.Errorf("scheduler: task %q: interval must be positive, got %s", name, interval)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, existing := range s.tasks {
		if existing.name == name {
			return fmt.Errorf("scheduler: task %q already registered", name)
		}
	}
	s.tasks = append(s.tasks, &scheduledTask{
		name:     name,
		task:     task,
		interval: interval,
		nextDue:  firstRun,
	})
	return nil
}

// Start runs the polling loop until ctx is cancelled. With runInline
// it blocks the caller; otherwise it starts a goroutine and returns
// immediately. Either way [Scheduler.Done] is closed when the loop
// exits. Start panics if called twice.
func (s *Scheduler) Start(ctx context.Context, runInline bool) {
	s.mu.Lock()
	if s.started {
		s.mu.Unlock()
		panic("scheduler: Start called twice")
	}
	s.started = true
	s.mu.Unlock()

	if runInline {
		s.loop(ctx)
		return
	}
	go s.loop(ctx)
}

// Done returns a channel closed after the polling loop has exited.
func (s *Scheduler) Done() <-chan struct{} {
	return s.done
}

func (s *Scheduler) loop(ctx context.Context) {
	defer close(s.done)
	s.logger.Debug("scheduler started", "poll_interval", s.pollInterval)
	for {
		if ctx.Err() != nil {
			break
		}
		s.RunPending(ctx)
		select {
		case <-ctx.Done():
		case <-s.clock.After(s.pollInterval):
		}
	}
	s.logger.Debug("scheduler stopped")
}

// RunPending performs one polling pass: every task due at the current
// clock reading is run to completion, in registration order. Returns
// the number of tasks run.
func (s *Scheduler) RunPending(ctx context.Context) int {
	taskContext := context.WithoutCancel(ctx)

	s.mu.Lock()
	now := s.clock.Now()
	var due []*scheduledTask
	for _, task := range s.tasks {
		if !now.Before(task.nextDue) {
			due = append(due, task)
		}
	}
	s.mu.Unlock()

	for _, task := range due {
		err := s.runTask(taskContext, task)
		finished := s.clock.Now()

		s.mu.Lock()
		task.runs++
		task.nextDue = finished.Add(task.interval)
		if err != nil {
			task.failures++
			task.lastError = err.Error()
		} else {
			task.lastError = ""
		}
		s.mu.Unlock()
	}
	return len(due)
}

// runTask runs one task, converting a panic into an error.
func (s *Scheduler) runTask(ctx context.Context, task *scheduledTask) (err error) {
	defer func() {
		if recovered := recover(); recovered != nil {
			err = fmt.Errorf("panic: %v", recovered)
			s.logger.Error("scheduled task panicked",
				"task", task.name,
				"panic", recovered,
				"stack", string(debug.Stack()),
			)
		}
	}()
	if err := task.task.Run(ctx); err != nil {
		s.logger.Error("scheduled task failed", "task", task.name, "error", err)
		return err
	}
	return nil
}

// Tasks returns the status of every registered task in registration
// order.
func (s *Scheduler) Tasks() []TaskStatus {
	s.mu.Lock()
	defer s.mu.Unlock()
	statuses := make([]TaskStatus, len(s.tasks))
	for i, task := range s.tasks {
		statuses[i] = TaskStatus{
			Name:      task.name,
			Interval:  task.interval,
			NextDue:   task.nextDue,
			Runs:      task.runs,
			Failures:  task.failures,
			LastError: task.lastError,
		}
	}
	return statuses
}
