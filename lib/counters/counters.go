// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package counters

import (
	"sync/atomic"

	"github.com/bureau-foundation/telemetry-agent/lib/event"
)

// Sink is the union of the notifications the queues and the batch
// builder emit.
type Sink interface {
	EventsEnqueued(priority event.Priority, count int)
	EventsDropped(priority event.Priority, count int)
	BatchSent(priority event.Priority, events, bytes int)
	BatchFailed(priority event.Priority, events int)
}

// Counters holds in-memory totals. The zero value is not usable; call
// [New].
type Counters struct {
	current atomic.Pointer[generation]
}

// generation is one set of totals between resets, indexed by
// priority.
type generation struct {
	enqueued     [event.PriorityOperational + 1]atomic.Int64
	dropped      [event.PriorityOperational + 1]atomic.Int64
	batchesSent  [event.PriorityOperational + 1]atomic.Int64
	batchesFail  [event.PriorityOperational + 1]atomic.Int64
	eventsSent   [event.PriorityOperational + 1]atomic.Int64
	bytesSent    [event.PriorityOperational + 1]atomic.Int64
	eventsFailed [event.PriorityOperational + 1]atomic.Int64
}

// New returns zeroed counters.
func New() *Counters {
	c := &Counters{}
	c.current.Store(&generation{})
	return c
}

// index clamps unknown priorities onto the Off slot so a bad value
// is still counted somewhere visible.
func index(priority event.Priority) event.Priority {
	if priority > event.PriorityOperational {
		return event.PriorityOff
	}
	return priority
}

// EventsEnqueued implements [eventqueue.CounterSink].
func (c *Counters) EventsEnqueued(priority event.Priority, count int) {
	c.current.Load().enqueued[index(priority)].Add(int64(count))
}

// EventsDropped implements [eventqueue.CounterSink].
func (c *Counters) EventsDropped(priority event.Priority, count int) {
	c.current.Load().dropped[index(priority)].Add(int64(count))
}

// BatchSent implements [batch.Counters].
func (c *Counters) BatchSent(priority event.Priority, events, bytes int) {
	g := c.current.Load()
	i := index(priority)
	g.batchesSent[i].Add(1)
	g.eventsSent[i].Add(int64(events))
	g.bytesSent[i].Add(int64(bytes))
}

// BatchFailed implements [batch.Counters].
func (c *Counters) BatchFailed(priority event.Priority, events int) {
	g := c.current.Load()
	i := index(priority)
	g.batchesFail[i].Add(1)
	g.eventsFailed[i].Add(int64(events))
}

// Reset starts a new generation of zeroed totals.
func (c *Counters) Reset() {
	c.current.Store(&generation{})
}

// PriorityTotals are the totals for one priority.
type PriorityTotals struct {
	Enqueued      int64 `json:"enqueued" cbor:"enqueued"`
	Dropped       int64 `json:"dropped" cbor:"dropped"`
	BatchesSent   int64 `json:"batches_sent" cbor:"batches_sent"`
	BatchesFailed int64 `json:"batches_failed" cbor:"batches_failed"`
	EventsSent    int64 `json:"events_sent" cbor:"events_sent"`
	EventsFailed  int64 `json:"events_failed" cbor:"events_failed"`
	BytesSent     int64 `json:"bytes_sent" cbor:"bytes_sent"`
}

// Snapshot maps priority name to totals. Priorities with no activity
// are omitted. Each value is read atomically; the snapshot as a whole
// is not.
type Snapshot map[string]PriorityTotals

// Snapshot returns the current totals.
func (c *Counters) Snapshot() Snapshot {
	g := c.current.Load()
	snapshot := make(Snapshot)
	for i := event.PriorityOff; i <= event.PriorityOperational; i++ {
		totals := PriorityTotals{
			Enqueued:      g.enqueued[i].Load(),
			Dropped:       g.dropped[i].Load(),
			BatchesSent:   g.batchesSent[i].Load(),
			BatchesFailed: g.batchesFail[i].Load(),
			EventsSent:    g.eventsSent[i].Load(),
			EventsFailed:  g.eventsFailed[i].Load(),
			BytesSent:     g.bytesSent[i].Load(),
		}
		if totals != (PriorityTotals{}) {
			snapshot[i.String()] = totals
		}
	}
	return snapshot
}
