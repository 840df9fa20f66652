// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package eventqueue

import (
	"fmt"
	"sync"
	"testing"

	"github.com/bureau-foundation/telemetry-agent/lib/event"
)

// recordingSink tallies notifications per priority.
type recordingSink struct {
	mu       sync.Mutex
	enqueued map[event.Priority]int
	dropped  map[event.Priority]int
	// dropCalls records the count carried by each EventsDropped call.
	dropCalls []int
}

func newRecordingSink() *recordingSink {
	return &recordingSink{
		enqueued: make(map[event.Priority]int),
		dropped:  make(map[event.Priority]int),
	}
}

func (s *recordingSink) EventsEnqueued(priority event.Priority, count int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.enqueued[priority] += count
}

func (s *recordingSink) EventsDropped(priority event.Priority, count int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.dropped[priority] += count
	s.dropCalls = append(s.dropCalls, count)
}

func (s *recordingSink) zero() {
	s.mu.Lock()
	defer s.mu.Unlock()
	clear(s.enqueued)
	clear(s.dropped)
	s.dropCalls = nil
}

func (s *recordingSink) counts(priority event.Priority) (int, int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.enqueued[priority], s.dropped[priority]
}

// mutableLimits lets a test change budgets between operations, the
// way a config reload would.
type mutableLimits struct {
	mu         sync.Mutex
	budgets    map[event.Priority]int
	maxMessage int
}

func (l *mutableLimits) QueueBudget(priority event.Priority) int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.budgets[priority]
}

func (l *mutableLimits) MaxMessageSize() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.maxMessage
}

func (l *mutableLimits) setBudget(priority event.Priority, budget int) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.budgets[priority] = budget
}

func sized(name string, priority event.Priority, size int) event.Event {
	return event.Event{Name: name, Priority: priority, EstimatedSize: size}
}

func testQueue(budget, maxMessage int) (*BoundedQueue, *recordingSink) {
	sink := newRecordingSink()
	limits := FixedLimits{
		Budgets:    map[event.Priority]int{event.PriorityHigh: budget},
		MaxMessage: maxMessage,
	}
	return newBoundedQueue(event.PriorityHigh, limits, sink, discardLogger()), sink
}

func names(events []event.Event) []string {
	result := make([]string, len(events))
	for i, ev := range events {
		result[i] = ev.Name
	}
	return result
}

func TestQueueFIFOOrdering(t *testing.T) {
	queue, _ := testQueue(1000, 1000)

	for i := range 5 {
		queue.Enqueue(sized(fmt.Sprintf("e%d", i), event.PriorityHigh, 10))
	}
	for i := range 5 {
		ev, ok := queue.Dequeue()
		if !ok {
			t.Fatalf("Dequeue %d: queue unexpectedly empty", i)
		}
		if want := fmt.Sprintf("e%d", i); ev.Name != want {
			t.Fatalf("Dequeue %d: got %q, want %q", i, ev.Name, want)
		}
	}
	if _, ok := queue.Dequeue(); ok {
		t.Fatal("Dequeue on empty queue returned an event")
	}
	if !queue.IsEmpty() || queue.TotalSize() != 0 {
		t.Fatalf("expected empty queue, got len=%d size=%d", queue.Len(), queue.TotalSize())
	}
}

func TestQueueDropOldestKeepsLastTwo(t *testing.T) {
	queue, sink := testQueue(100, 1000)

	queue.Enqueue(sized("a", event.PriorityHigh, 40))
	queue.Enqueue(sized("b", event.PriorityHigh, 40))
	queue.Enqueue(sized("c", event.PriorityHigh, 40))

	if queue.TotalSize() != 80 {
		t.Fatalf("TotalSize = %d, want 80", queue.TotalSize())
	}
	var remaining []event.Event
	for !queue.IsEmpty() {
		ev, _ := queue.Dequeue()
		remaining = append(remaining, ev)
	}
	if got := names(remaining); len(got) != 2 || got[0] != "b" || got[1] != "c" {
		t.Fatalf("remaining = %v, want [b c]", got)
	}

	enqueued, dropped := sink.counts(event.PriorityHigh)
	if enqueued != 3 || dropped != 1 {
		t.Fatalf("counters enqueued=%d dropped=%d, want 3 and 1", enqueued, dropped)
	}
}

func TestQueueEvictionReportsOneNotificationWithCount(t *testing.T) {
	queue, sink := testQueue(100, 1000)

	for range 4 {
		queue.Enqueue(sized("small", event.PriorityHigh, 20))
	}
	// 80 buffered; a 90-byte event forces four evictions at once.
	queue.Enqueue(sized("big", event.PriorityHigh, 90))

	if queue.Len() != 1 || queue.TotalSize() != 90 {
		t.Fatalf("len=%d size=%d, want 1 and 90", queue.Len(), queue.TotalSize())
	}
	if len(sink.dropCalls) != 1 || sink.dropCalls[0] != 4 {
		t.Fatalf("drop notifications = %v, want [4]", sink.dropCalls)
	}
}

func TestQueueRejectsOversizedEvents(t *testing.T) {
	tests := []struct {
		name       string
		budget     int
		maxMessage int
		size       int
	}{
		{name: "larger than queue budget", budget: 50, maxMessage: 1000, size: 51},
		{name: "larger than max message", budget: 1000, maxMessage: 50, size: 51},
	}
	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			queue, sink := testQueue(test.budget, test.maxMessage)
					queue.Enqueue(sized("keep", event.PriorityHigh, 10))

			queue.Enqueue(sized("huge", event.PriorityHigh, test.size))

			if queue.Len() != 1 || queue.TotalSize() != 10 {
				t.Fatalf("queue changed by rejected event: len=%d size=%d", queue.Len(), queue.TotalSize())
			}
			head, _ := queue.Peek()
			if head.Name != "keep" {
				t.Fatalf("head = %q, want keep", head.Name)
			}
			enqueued, dropped := sink.counts(event.PriorityHigh)
			if enqueued != 2 || dropped != 1 {
				t.Fatalf("counters enqueued=%d dropped=%d, want 2 and 1", enqueued, dropped)
			}
		})
	}
}

func TestQueueEventExactlyAtBudgetIsAccepted(t *testing.T) {
	queue, sink := testQueue(100, 100)

	queue.Enqueue(sized("full", event.PriorityHigh, 100))

	if queue.TotalSize() != 100 {
		t.Fatalf("TotalSize = %d, want 100", queue.TotalSize())
	}
	if _, dropped := sink.counts(event.PriorityHigh); dropped != 0 {
		t.Fatalf("dropped = %d, want 0", dropped)
	}
}

func TestQueueDequeueIfLeavesQueueUntouchedOnMismatch(t *testing.T) {
	queue, _ := testQueue(100, 100)
	queue.Enqueue(sized("head", event.PriorityHigh, 60))

	_, ok := queue.DequeueIf(func(ev event.Event) bool { return ev.EstimatedSize <= 50 })
	if ok {
		t.Fatal("DequeueIf accepted a 60-byte head against a 50-byte limit")
	}
	if queue.Len() != 1 || queue.TotalSize() != 60 {
		t.Fatalf("queue changed: len=%d size=%d", queue.Len(), queue.TotalSize())
	}

	ev, ok := queue.DequeueIf(func(ev event.Event) bool { return ev.EstimatedSize <= 60 })
	if !ok || ev.Name != "head" {
		t.Fatalf("DequeueIf = (%q, %v), want (head, true)", ev.Name, ok)
	}
}

func TestQueueShrunkBudgetAppliesOnNextEnqueue(t *testing.T) {
	limits := &mutableLimits{
		budgets:    map[event.Priority]int{event.PriorityLow: 100},
		maxMessage: 1000,
	}
	sink := newRecordingSink()
	queue := newBoundedQueue(event.PriorityLow, limits, sink, discardLogger())

	for range 5 {
		queue.Enqueue(sized("e", event.PriorityLow, 20))
	}
	limits.setBudget(event.PriorityLow, 50)
	if queue.MaxSize() != 50 {
		t.Fatalf("MaxSize = %d after reload, want 50", queue.MaxSize())
	}

	queue.Enqueue(sized("e", event.PriorityLow, 20))

	if queue.TotalSize() > 50 {
		t.Fatalf("TotalSize = %d exceeds shrunk budget 50", queue.TotalSize())
	}
	if queue.Len() != 2 {
		t.Fatalf("Len = %d, want 2", queue.Len())
	}
}

func TestQueueTotalSizeNeverExceedsBudgetUnderConcurrency(t *testing.T) {
	queue, sink := testQueue(500, 500)

	var wg sync.WaitGroup
	for worker := range 8 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := range 200 {
				size := 1 + (worker*31+i*17)%120
				queue.Enqueue(sized("e", event.PriorityHigh, size))
				if total := queue.TotalSize(); total > queue.MaxSize() {
					t.Errorf("TotalSize %d exceeds MaxSize %d", total, queue.MaxSize())
					return
				}
				if i%3 == 0 {
					queue.Dequeue()
				}
			}
		}()
	}
	wg.Wait()

	for !queue.IsEmpty() {
		ev, _ := queue.Dequeue()
		if ev.EstimatedSize > 500 {
			t.Fatalf("observed oversized event of %d bytes", ev.EstimatedSize)
		}
	}
	if queue.TotalSize() != 0 {
		t.Fatalf("TotalSize = %d after draining, want 0", queue.TotalSize())
	}
	if enqueued, _ := sink.counts(event.PriorityHigh); enqueued != 8*200 {
		t.Fatalf("enqueued = %d, want %d", enqueued, 8*200)
	}
}
