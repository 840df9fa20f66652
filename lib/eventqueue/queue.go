// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package eventqueue

import (
	"log/slog"
	"sync"

	"github.com/dustin/go-humanize"

	"github.com/bureau-foundation/telemetry-agent/lib/event"
)

// Limits supplies the byte budgets that bound the queues. Both values
// are re-read on every call, so implementations backed by a
// hot-reloadable configuration may return different values between
// two operations on the same queue.
type Limits interface {
	// QueueBudget returns the byte budget of the queue for priority.
	QueueBudget(priority event.Priority) int

	// MaxMessageSize returns the largest envelope, in bytes, the
	// transport will accept.
	MaxMessageSize() int
}

// CounterSink receives enqueue and drop notifications. Calls are made
// outside the queue's lock and may arrive concurrently from the
// producer and the batch builder.
type CounterSink interface {
	EventsEnqueued(priority event.Priority, count int)
	EventsDropped(priority event.Priority, count int)
}

// BoundedQueue is a byte-budgeted FIFO of events of a single priority.
// All methods are safe for concurrent use and serialize on one mutex.
type BoundedQueue struct {
	priority event.Priority
	limits   Limits
	sink     CounterSink
	logger   *slog.Logger

	mu        sync.Mutex
	entries   []event.Event
	totalSize int
}

func newBoundedQueue(priority event.Priority, limits Limits, sink CounterSink, logger *slog.Logger) *BoundedQueue {
	return &BoundedQueue{
		priority: priority,
		limits:   limits,
		sink:     sink,
		logger:   logger,
	}
}

// Priority returns the priority this queue buffers.
func (q *BoundedQueue) Priority() event.Priority { return q.priority }

// MaxSize returns the queue's current byte budget.
func (q *BoundedQueue) MaxSize() int {
	return q.limits.QueueBudget(q.priority)
}

// Enqueue admits ev or drops it. An event larger than the queue budget
// or the message ceiling is rejected without touching the queue.
// Otherwise it is appended and the oldest events are evicted until the
// queue is within budget again. Both outcomes are reported to the sink;
// neither is an error.
func (q *BoundedQueue) Enqueue(ev event.Event) {
	maxSize := q.limits.QueueBudget(q.priority)
	maxMessage := q.limits.MaxMessageSize()

	if ev.EstimatedSize > maxSize || ev.EstimatedSize > maxMessage {
		q.sink.EventsEnqueued(q.priority, 1)
		q.sink.EventsDropped(q.priority, 1)
		q.logger.Warn("event rejected: larger than budget",
			"event", ev.Name,
			"priority", q.priority.String(),
			"size", ev.EstimatedSize,
			"queue_budget", maxSize,
			"max_message_size", maxMessage,
		)
		return
	}

	q.mu.Lock()
	q.entries = append(q.entries, ev)
	q.totalSize += ev.EstimatedSize
	evicted, evictedBytes := 0, 0
	for q.totalSize > maxSize && len(q.entries) > 0 {
		oldest := q.entries[0]
		q.entries[0] = event.Event{} // release payload for GC
		q.entries = q.entries[1:]
		q.totalSize -= oldest.EstimatedSize
		evicted++
		evictedBytes += oldest.EstimatedSize
	}
	remaining := q.totalSize
	q.mu.Unlock()

	q.sink.EventsEnqueued(q.priority, 1)
	if evicted > 0 {
		q.sink.EventsDropped(q.priority, evicted)
		q.logger.Warn("queue over budget, dropped oldest events",
			"priority", q.priority.String(),
			"dropped", evicted,
			"dropped_bytes", humanize.IBytes(uint64(evictedBytes)),
			"queue_bytes", remaining,
			"queue_budget", maxSize,
		)
	}
}

// Dequeue removes and returns the oldest event. The boolean is false
// when the queue is empty.
func (q *BoundedQueue) Dequeue() (event.Event, bool) {
	return q.DequeueIf(func(event.Event) bool { return true })
}

// DequeueIf removes and returns the oldest event only if accept
// returns true for it. When the queue is empty or the head is not
// accepted the queue is left untouched and the boolean is false.
// accept runs under the queue's lock and must not call back into it.
func (q *BoundedQueue) DequeueIf(accept func(event.Event) bool) (event.Event, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()

	if len(q.entries) == 0 {
		return event.Event{}, false
	}
	head := q.entries[0]
	if !accept(head) {
		return event.Event{}, false
	}
	q.entries[0] = event.Event{}
	q.entries = q.entries[1:]
	q.totalSize -= head.EstimatedSize
	return head, true
}

// Peek returns the oldest event without removing it.
func (q *BoundedQueue) Peek() (event.Event, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if len(q.entries) == 0 {
		return event.Event{}, false
	}
	return q.entries[0], true
}

// IsEmpty reports whether the queue holds no events.
func (q *BoundedQueue) IsEmpty() bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.entries) == 0
}

// Len returns the number of buffered events.
func (q *BoundedQueue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.entries)
}

// TotalSize returns the summed EstimatedSize of buffered events.
func (q *BoundedQueue) TotalSize() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.totalSize
}
