// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package eventqueue

import (
	"log/slog"
	"sync"

	"github.com/bureau-foundation/telemetry-agent/lib/event"
)

// Batch is the result of a multi-queue dequeue: events in send order
// and their summed EstimatedSize.
type Batch struct {
	Events []event.Event
	Size   int
}

// Manager owns one [BoundedQueue] per queued priority and packs
// batches across them. The queue set is fixed at construction and
// replaced wholesale by [Manager.Reset].
type Manager struct {
	limits Limits
	logger *slog.Logger

	// mu guards the queue set, not the queues' contents. Normal
	// operations take the read lock; Reset takes the write lock.
	mu     sync.RWMutex
	sink   CounterSink
	queues map[event.Priority]*BoundedQueue
}

// NewManager creates a manager with an empty queue for each priority
// in [event.Queued]. A nil sink discards counts; a nil logger discards
// logs. limits is required.
func NewManager(limits Limits, sink CounterSink, logger *slog.Logger) *Manager {
	if limits == nil {
		panic("eventqueue: limits is required")
	}
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	manager := &Manager{
		limits: limits,
		logger: logger,
	}
	manager.bind(sink)
	return manager
}

// bind builds a fresh queue set reporting to sink. Caller holds mu
// for writing (or is the constructor).
func (m *Manager) bind(sink CounterSink) {
	if sink == nil {
		sink = NopSink{}
	}
	queues := make(map[event.Priority]*BoundedQueue, len(event.Queued))
	for _, priority := range event.Queued {
		queues[priority] = newBoundedQueue(priority, m.limits, sink, m.logger)
	}
	m.sink = sink
	m.queues = queues
}

// Reset discards every buffered event and rebinds the queues to sink.
// zero, when non-nil, runs first with enqueues held off, so counters
// it clears cannot miss an event that lands in the discarded queues.
// If zero fails the queues are left untouched. Discarded events are
// not reported as dropped.
func (m *Manager) Reset(sink CounterSink, zero func() error) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if zero != nil {
		if err := zero(); err != nil {
			return err
		}
	}
	m.queues = nil
	m.bind(sink)
	m.logger.Info("event queues reset")
	return nil
}

// Queue returns the queue for priority, or nil for a priority that
// has no queue (PriorityOff).
func (m *Manager) Queue(priority event.Priority) *BoundedQueue {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.queues[priority]
}

// EnqueueEvents routes each event to the queue of its own priority.
// Events with no queue are counted as enqueued and dropped, matching
// admission rejection.
func (m *Manager) EnqueueEvents(events []event.Event) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	for _, ev := range events {
		queue := m.queues[ev.Priority]
		if queue == nil {
			m.sink.EventsEnqueued(ev.Priority, 1)
			m.sink.EventsDropped(ev.Priority, 1)
			m.logger.Warn("event rejected: priority has no queue",
				"event", ev.Name,
				"priority", ev.Priority.String(),
			)
			continue
		}
		queue.Enqueue(ev)
	}
}

// DequeueFromSingleQueue removes events from the head of one queue
// while each fits in the remaining budget. It stops at the first head
// event that does not fit, even if later events would. Returns the
// events in FIFO order and their total size.
func (m *Manager) DequeueFromSingleQueue(priority event.Priority, maxSize int) ([]event.Event, int) {
	m.mu.RLock()
	queue := m.queues[priority]
	m.mu.RUnlock()
	if queue == nil {
		return nil, 0
	}
	return drain(queue, maxSize)
}

func drain(queue *BoundedQueue, maxSize int) ([]event.Event, int) {
	var events []event.Event
	remaining := maxSize
	for remaining > 0 {
		ev, ok := queue.DequeueIf(func(head event.Event) bool {
			return head.EstimatedSize <= remaining
		})
		if !ok {
			break
		}
		events = append(events, ev)
		remaining -= ev.EstimatedSize
	}
	return events, maxSize - remaining
}

// DequeueEventsFromMultipleQueues packs one batch of at most maxSize
// bytes for the preferred priority. Nothing is returned when preferred
// is Off or its queue is empty. Otherwise Operational events are
// packed first, then preferred, then (if anything was packed) the
// opposite priority fills what remains.
func (m *Manager) DequeueEventsFromMultipleQueues(preferred event.Priority, maxSize int) Batch {
	m.mu.RLock()
	defer m.mu.RUnlock()

	preferredQueue := m.queues[preferred]
	if preferred == event.PriorityOff || preferredQueue == nil || preferredQueue.IsEmpty() {
		return Batch{}
	}

	var batch Batch
	take := func(queue *BoundedQueue) {
		if queue == nil {
			return
		}
		events, size := drain(queue, maxSize-batch.Size)
		batch.Events = append(batch.Events, events...)
		batch.Size += size
	}

	if preferred != event.PriorityOperational {
		take(m.queues[event.PriorityOperational])
	}
	take(preferredQueue)
	if len(batch.Events) > 0 {
		take(m.queues[preferred.Opposite()])
	}
	return batch
}

// AvailableDataSize returns the bytes buffered across all queues.
// Each queue is read atomically but the sum is not a snapshot.
func (m *Manager) AvailableDataSize() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	total := 0
	for _, queue := range m.queues {
		total += queue.TotalSize()
	}
	return total
}

// QueueStats is a point-in-time view of one queue.
type QueueStats struct {
	Priority  event.Priority `json:"priority"`
	Events    int            `json:"events"`
	TotalSize int            `json:"total_size"`
	MaxSize   int            `json:"max_size"`
}

// Stats returns per-queue statistics in [event.Queued] order.
func (m *Manager) Stats() []QueueStats {
	m.mu.RLock()
	defer m.mu.RUnlock()
	stats := make([]QueueStats, 0, len(event.Queued))
	for _, priority := range event.Queued {
		queue := m.queues[priority]
		queue.mu.Lock()
		stats = append(stats, QueueStats{
			Priority:  priority,
			Events:    len(queue.entries),
			TotalSize: queue.totalSize,
		})
		queue.mu.Unlock()
		stats[len(stats)-1].MaxSize = queue.MaxSize()
	}
	return stats
}
