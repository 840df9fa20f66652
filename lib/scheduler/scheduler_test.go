// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package scheduler

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/bureau-foundation/telemetry-agent/lib/clock"
	"github.com/bureau-foundation/telemetry-agent/lib/testutil"
)

var epoch = time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)

func newTestScheduler(t *testing.T, fake *clock.FakeClock) *Scheduler {
	t.Helper()
	scheduler, err := New(Config{Name: "test", Clock: fake, PollInterval: time.Second})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return scheduler
}

// flakyTask fails a fixed number of times, then succeeds, signaling
// on called after every run.
type flakyTask struct {
	failuresLeft int
	runs         atomic.Int32
	called       chan struct{}
}

func (f *flakyTask) Run(context.Context) error {
	f.runs.Add(1)
	defer func() { f.called <- struct{}{} }()
	if f.failuresLeft > 0 {
		f.failuresLeft--
		return errors.New("transient failure")
	}
	return nil
}

func TestNewRequiresClock(t *testing.T) {
	if _, err := New(Config{}); err == nil {
		t.Fatal("New without a clock succeeded")
	}
}

func TestAddTaskValidation(t *testing.T) {
	scheduler := newTestScheduler(t, clock.Fake(epoch))
	noop := TaskFunc(func(context.Context) error { return nil })

	if err := scheduler.AddTask("", noop, time.Second, epoch); err == nil {
		t.Error("empty name accepted")
	}
	if err := scheduler.AddTask("nil", nil, time.Second, epoch); err == nil {
		t.Error("nil task accepted")
	}
	if err := scheduler.AddTask("zero", noop, 0, epoch); err == nil {
		t.Error("zero interval accepted")
	}
	if err := scheduler.AddTask("ok", noop, time.Second, epoch); err != nil {
		t.Fatalf("AddTask: %v", err)
	}
	if err := scheduler.AddTask("ok", noop, time.Second, epoch); err == nil {
		t.Error("duplicate name accepted")
	}
}

func TestFailingTaskKeepsRunning(t *testing.T) {
	fake := clock.Fake(epoch)
	scheduler := newTestScheduler(t, fake)
	task := &flakyTask{failuresLeft: 4, called: make(chan struct{}, 1)}
	if err := scheduler.AddTask("flaky", task, time.Second, epoch); err != nil {
		t.Fatalf("AddTask: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	scheduler.Start(ctx, false)

	for run := 1; run <= 5; run++ {
		testutil.RequireReceive(t, task.called, 5*time.Second, "waiting for run %d", run)
		if run < 5 {
			fake.WaitForTimers(1)
			fake.Advance(time.Second)
		}
	}
	cancel()
	testutil.RequireClosed(t, scheduler.Done(), 5*time.Second, "waiting for scheduler to stop")

	if got := task.runs.Load(); got != 5 {
		t.Fatalf("runs = %d, want 5", got)
	}
	status := scheduler.Tasks()[0]
	if status.Runs != 5 || status.Failures != 4 || status.LastError != "" {
		t.Fatalf("status = %+v, want 5 runs, 4 failures, no last error", status)
	}
}

func TestPanickingTaskDoesNotAffectOthers(t *testing.T) {
	fake := clock.Fake(epoch)
	scheduler := newTestScheduler(t, fake)

	var healthyRuns int
	if err := scheduler.AddTask("panics", TaskFunc(func(context.Context) error {
		panic("boom")
	}), time.Second, epoch); err != nil {
		t.Fatalf("AddTask: %v", err)
	}
	if err := scheduler.AddTask("healthy", TaskFunc(func(context.Context) error {
		healthyRuns++
		return nil
	}), time.Second, epoch); err != nil {
		t.Fatalf("AddTask: %v", err)
	}

	for range 3 {
		if ran := scheduler.RunPending(context.Background()); ran != 2 {
			t.Fatalf("RunPending ran %d tasks, want 2", ran)
		}
		fake.Advance(time.Second)
	}

	if healthyRuns != 3 {
		t.Fatalf("healthy task ran %d times, want 3", healthyRuns)
	}
	status := scheduler.Tasks()[0]
	if status.Failures != 3 || status.LastError != "panic: boom" {
		t.Fatalf("panicking task status = %+v", status)
	}
}

func TestFutureTaskIsSkipped(t *testing.T) {
	fake := clock.Fake(epoch)
	scheduler := newTestScheduler(t, fake)
	runs := 0
	if err := scheduler.AddTask("later", TaskFunc(func(context.Context) error {
		runs++
		return nil
	}), time.Minute, epoch.Add(10*time.Second)); err != nil {
		t.Fatalf("AddTask: %v", err)
	}

	if ran := scheduler.RunPending(context.Background()); ran != 0 || runs != 0 {
		t.Fatalf("future task ran (RunPending=%d, runs=%d)", ran, runs)
	}
	if next := scheduler.Tasks()[0].NextDue; !next.Equal(epoch.Add(10 * time.Second)) {
		t.Fatalf("skipping changed NextDue to %s", next)
	}

	fake.Advance(10 * time.Second)
	if ran := scheduler.RunPending(context.Background()); ran != 1 || runs != 1 {
		t.Fatalf("due task did not run (RunPending=%d, runs=%d)", ran, runs)
	}
}

func TestNextDueIsMeasuredFromRunCompletion(t *testing.T) {
	fake := clock.Fake(epoch)
	scheduler := newTestScheduler(t, fake)
	if err := scheduler.AddTask("slow", TaskFunc(func(context.Context) error {
		fake.Advance(3 * time.Second)
		return nil
	}), 10*time.Second, epoch); err != nil {
		t.Fatalf("AddTask: %v", err)
	}

	scheduler.RunPending(context.Background())

	want := epoch.Add(13 * time.Second)
	if next := scheduler.Tasks()[0].NextDue; !next.Equal(want) {
		t.Fatalf("NextDue = %s, want %s", next, want)
	}
}

func TestTasksReceiveUncancelledContext(t *testing.T) {
	fake := clock.Fake(epoch)
	scheduler := newTestScheduler(t, fake)
	var taskErr error
	if err := scheduler.AddTask("observe", TaskFunc(func(ctx context.Context) error {
		taskErr = ctx.Err()
		return nil
	}), time.Second, epoch); err != nil {
		t.Fatalf("AddTask: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	scheduler.RunPending(ctx)

	if taskErr != nil {
		t.Fatalf("task saw ctx.Err() = %v, want nil", taskErr)
	}
}

func TestInlineStartBlocksUntilCancelled(t *testing.T) {
	fake := clock.Fake(epoch)
	scheduler := newTestScheduler(t, fake)
	called := make(chan struct{}, 1)
	if err := scheduler.AddTask("tick", TaskFunc(func(context.Context) error {
		called <- struct{}{}
		return nil
	}), time.Second, epoch); err != nil {
		t.Fatalf("AddTask: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	returned := make(chan struct{})
	go func() {
		scheduler.Start(ctx, true)
		close(returned)
	}()

	testutil.RequireReceive(t, called, 5*time.Second, "waiting for first run")
	fake.WaitForTimers(1)
	select {
	case <-returned:
		t.Fatal("inline Start returned before cancellation")
	default:
	}

	cancel()
	testutil.RequireClosed(t, returned, 5*time.Second, "waiting for inline Start to return")
	testutil.RequireClosed(t, scheduler.Done(), 5*time.Second, "waiting for Done")
}

func TestStartTwicePanics(t *testing.T) {
	scheduler := newTestScheduler(t, clock.Fake(epoch))
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	scheduler.Start(ctx, false)

	defer func() {
		if recover() == nil {
			t.Fatal("second Start did not panic")
		}
	}()
	scheduler.Start(ctx, false)
}
