// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package eventqueue

import (
	"errors"
	"log/slog"
	"slices"
	"testing"
	"time"

	"github.com/bureau-foundation/telemetry-agent/lib/event"
	"github.com/bureau-foundation/telemetry-agent/lib/testutil"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.DiscardHandler)
}

func testManager(sink CounterSink) *Manager {
	limits := FixedLimits{
		Budgets: map[event.Priority]int{
			event.PriorityHigh:        1000,
			event.PriorityLow:         1000,
			event.PriorityOperational: 1000,
		},
		MaxMessage: 1000,
	}
	return NewManager(limits, sink, discardLogger())
}

func TestManagerRoutesByPriority(t *testing.T) {
	manager := testManager(nil)

	manager.EnqueueEvents([]event.Event{
		sized("h1", event.PriorityHigh, 10),
		sized("l1", event.PriorityLow, 20),
		sized("o1", event.PriorityOperational, 30),
		sized("h2", event.PriorityHigh, 40),
	})

	if got := manager.Queue(event.PriorityHigh).TotalSize(); got != 50 {
		t.Fatalf("high TotalSize = %d, want 50", got)
	}
	if got := manager.Queue(event.PriorityLow).TotalSize(); got != 20 {
		t.Fatalf("low TotalSize = %d, want 20", got)
	}
	if got := manager.Queue(event.PriorityOperational).TotalSize(); got != 30 {
		t.Fatalf("operational TotalSize = %d, want 30", got)
	}
	if got := manager.AvailableDataSize(); got != 100 {
		t.Fatalf("AvailableDataSize = %d, want 100", got)
	}
	if manager.Queue(event.PriorityOff) != nil {
		t.Fatal("Off must not have a queue")
	}
}

func TestManagerOffEventsAreCountedAndDropped(t *testing.T) {
	sink := newRecordingSink()
	manager := testManager(sink)

	manager.EnqueueEvents([]event.Event{sized("off", event.PriorityOff, 10)})

	if manager.AvailableDataSize() != 0 {
		t.Fatalf("AvailableDataSize = %d, want 0", manager.AvailableDataSize())
	}
	if enqueued, dropped := sink.counts(event.PriorityOff); enqueued != 1 || dropped != 1 {
		t.Fatalf("counters enqueued=%d dropped=%d, want 1 and 1", enqueued, dropped)
	}
}

func TestDequeueFromSingleQueueIsPrefixPack(t *testing.T) {
	manager := testManager(nil)
	manager.EnqueueEvents([]event.Event{
		sized("a", event.PriorityLow, 30),
		sized("b", event.PriorityLow, 30),
		sized("c", event.PriorityLow, 50),
		sized("d", event.PriorityLow, 5),
	})

	events, size := manager.DequeueFromSingleQueue(event.PriorityLow, 100)

	// c does not fit in the 40 bytes left; d would, but packing stops at c.
	if got := names(events); !slices.Equal(got, []string{"a", "b"}) {
		t.Fatalf("events = %v, want [a b]", got)
	}
	if size != 60 {
		t.Fatalf("size = %d, want 60", size)
	}
	if manager.Queue(event.PriorityLow).Len() != 2 {
		t.Fatalf("low queue Len = %d, want 2", manager.Queue(event.PriorityLow).Len())
	}
}

func TestDequeueFromSingleQueueHeadTooLarge(t *testing.T) {
	manager := testManager(nil)
	manager.EnqueueEvents([]event.Event{sized("big", event.PriorityHigh, 60)})

	events, size := manager.DequeueFromSingleQueue(event.PriorityHigh, 50)

	if len(events) != 0 || size != 0 {
		t.Fatalf("got %d events (%d bytes), want none", len(events), size)
	}
	head, ok := manager.Queue(event.PriorityHigh).Peek()
	if !ok || head.Name != "big" || manager.Queue(event.PriorityHigh).Len() != 1 {
		t.Fatal("queue was modified by a failed dequeue")
	}
}

func TestDequeueFromSingleQueueOff(t *testing.T) {
	manager := testManager(nil)
	events, size := manager.DequeueFromSingleQueue(event.PriorityOff, 1000)
	if events != nil || size != 0 {
		t.Fatalf("Off dequeue returned %d events, %d bytes", len(events), size)
	}
}

func TestMultiQueueOrderOperationalPreferredOpposite(t *testing.T) {
	manager := testManager(nil)
	manager.EnqueueEvents([]event.Event{
		sized("high", event.PriorityHigh, 20),
		sized("low", event.PriorityLow, 15),
		sized("op", event.PriorityOperational, 10),
	})

	batch := manager.DequeueEventsFromMultipleQueues(event.PriorityHigh, 100)

	if got := names(batch.Events); !slices.Equal(got, []string{"op", "high", "low"}) {
		t.Fatalf("events = %v, want [op high low]", got)
	}
	if batch.Size != 45 {
		t.Fatalf("Size = %d, want 45", batch.Size)
	}
	if manager.AvailableDataSize() != 0 {
		t.Fatalf("AvailableDataSize = %d, want 0", manager.AvailableDataSize())
	}
}

func TestMultiQueuePreferredLowPiggybacksHigh(t *testing.T) {
	manager := testManager(nil)
	manager.EnqueueEvents([]event.Event{
		sized("high", event.PriorityHigh, 20),
		sized("low", event.PriorityLow, 15),
	})

	batch := manager.DequeueEventsFromMultipleQueues(event.PriorityLow, 100)

	if got := names(batch.Events); !slices.Equal(got, []string{"low", "high"}) {
		t.Fatalf("events = %v, want [low high]", got)
	}
}

func TestMultiQueueEmptyPreferredReturnsNothing(t *testing.T) {
	manager := testManager(nil)
	manager.EnqueueEvents([]event.Event{
		sized("low", event.PriorityLow, 15),
		sized("op", event.PriorityOperational, 10),
	})

	batch := manager.DequeueEventsFromMultipleQueues(event.PriorityHigh, 100)

	if len(batch.Events) != 0 || batch.Size != 0 {
		t.Fatalf("got %d events, want none", len(batch.Events))
	}
	if manager.AvailableDataSize() != 25 {
		t.Fatalf("other queues were drained: AvailableDataSize = %d", manager.AvailableDataSize())
	}
}

func TestMultiQueueOffPreferredReturnsNothing(t *testing.T) {
	manager := testManager(nil)
	manager.EnqueueEvents([]event.Event{sized("high", event.PriorityHigh, 15)})

	batch := manager.DequeueEventsFromMultipleQueues(event.PriorityOff, 100)

	if len(batch.Events) != 0 {
		t.Fatalf("got %d events, want none", len(batch.Events))
	}
}

func TestMultiQueueRespectsSizeBound(t *testing.T) {
	manager := testManager(nil)
	manager.EnqueueEvents([]event.Event{
		sized("op1", event.PriorityOperational, 30),
		sized("op2", event.PriorityOperational, 30),
		sized("h1", event.PriorityHigh, 25),
		sized("h2", event.PriorityHigh, 25),
		sized("l1", event.PriorityLow, 10),
		sized("l2", event.PriorityLow, 10),
	})

	batch := manager.DequeueEventsFromMultipleQueues(event.PriorityHigh, 100)

	// 60 operational + 25 high leaves 15: h2 stops the high drain,
	// then one low event fits.
	if got := names(batch.Events); !slices.Equal(got, []string{"op1", "op2", "h1", "l1"}) {
		t.Fatalf("events = %v, want [op1 op2 h1 l1]", got)
	}
	if batch.Size != 95 {
		t.Fatalf("Size = %d, want 95", batch.Size)
	}
	sum := 0
	for _, ev := range batch.Events {
		sum += ev.EstimatedSize
	}
	if sum != batch.Size {
		t.Fatalf("Size %d does not match event sum %d", batch.Size, sum)
	}
}

func TestMultiQueueNoPiggybackWhenNothingFits(t *testing.T) {
	manager := testManager(nil)
	manager.EnqueueEvents([]event.Event{
		sized("high", event.PriorityHigh, 80),
		sized("low", event.PriorityLow, 10),
	})

	batch := manager.DequeueEventsFromMultipleQueues(event.PriorityHigh, 50)

	if len(batch.Events) != 0 {
		t.Fatalf("events = %v, want none", names(batch.Events))
	}
	if manager.Queue(event.PriorityLow).Len() != 1 {
		t.Fatal("low event piggybacked on an empty batch")
	}
}

func TestManagerResetRebindsSink(t *testing.T) {
	first := newRecordingSink()
	manager := testManager(first)
	manager.EnqueueEvents([]event.Event{sized("a", event.PriorityHigh, 10)})

	second := newRecordingSink()
	if err := manager.Reset(second, nil); err != nil {
		t.Fatalf("Reset: %v", err)
	}

	if manager.AvailableDataSize() != 0 {
		t.Fatalf("AvailableDataSize = %d after Reset, want 0", manager.AvailableDataSize())
	}
	manager.EnqueueEvents([]event.Event{sized("b", event.PriorityHigh, 10)})

	if enqueued, _ := first.counts(event.PriorityHigh); enqueued != 1 {
		t.Fatalf("old sink enqueued = %d, want 1", enqueued)
	}
	if enqueued, _ := second.counts(event.PriorityHigh); enqueued != 1 {
		t.Fatalf("new sink enqueued = %d, want 1", enqueued)
	}
}

func TestManagerResetHoldsOffEnqueuesWhileZeroing(t *testing.T) {
	sink := newRecordingSink()
	manager := testManager(sink)
	manager.EnqueueEvents([]event.Event{sized("a", event.PriorityHigh, 10)})

	enqueued := make(chan struct{})
	err := manager.Reset(sink, func() error {
		go func() {
			manager.EnqueueEvents([]event.Event{sized("b", event.PriorityHigh, 10)})
			close(enqueued)
		}()
		select {
		case <-enqueued:
			t.Error("enqueue completed while counters were being zeroed")
		case <-time.After(50 * time.Millisecond): //nolint:realclock // gives the enqueue a chance to run
		}
		sink.zero()
		return nil
	})
	if err != nil {
		t.Fatalf("Reset: %v", err)
	}
	testutil.RequireClosed(t, enqueued, 5*time.Second, "waiting for enqueue after reset")

	if count, _ := sink.counts(event.PriorityHigh); count != 1 {
		t.Fatalf("enqueued after reset = %d, want 1", count)
	}
	if manager.AvailableDataSize() != 10 {
		t.Fatalf("AvailableDataSize = %d, want 10", manager.AvailableDataSize())
	}
}

func TestManagerResetKeepsQueuesWhenZeroFails(t *testing.T) {
	manager := testManager(nil)
	manager.EnqueueEvents([]event.Event{sized("a", event.PriorityHigh, 10)})

	failure := errors.New("registry rejected collector")
	if err := manager.Reset(nil, func() error { return failure }); !errors.Is(err, failure) {
		t.Fatalf("Reset error = %v, want %v", err, failure)
	}
	if manager.AvailableDataSize() != 10 {
		t.Fatalf("AvailableDataSize = %d, want queued event kept", manager.AvailableDataSize())
	}
}

func TestManagerStats(t *testing.T) {
	manager := testManager(nil)
	manager.EnqueueEvents([]event.Event{
		sized("h", event.PriorityHigh, 10),
		sized("o", event.PriorityOperational, 7),
	})

	stats := manager.Stats()

	if len(stats) != 3 {
		t.Fatalf("len(stats) = %d, want 3", len(stats))
	}
	want := []QueueStats{
		{Priority: event.PriorityHigh, Events: 1, TotalSize: 10, MaxSize: 1000},
		{Priority: event.PriorityLow, Events: 0, TotalSize: 0, MaxSize: 1000},
		{Priority: event.PriorityOperational, Events: 1, TotalSize: 7, MaxSize: 1000},
	}
	if !slices.Equal(stats, want) {
		t.Fatalf("stats = %+v, want %+v", stats, want)
	}
}
