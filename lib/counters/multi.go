// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package counters

import "github.com/bureau-foundation/telemetry-agent/lib/event"

// Multi forwards every notification to each sink in order.
type Multi []Sink

// EventsEnqueued forwards to every sink.
func (m Multi) EventsEnqueued(priority event.Priority, count int) {
	for _, sink := range m {
		sink.EventsEnqueued(priority, count)
	}
}

// EventsDropped forwards to every sink.
func (m Multi) EventsDropped(priority event.Priority, count int) {
	for _, sink := range m {
		sink.EventsDropped(priority, count)
	}
}

// BatchSent forwards to every sink.
func (m Multi) BatchSent(priority event.Priority, events, bytes int) {
	for _, sink := range m {
		sink.BatchSent(priority, events, bytes)
	}
}

// BatchFailed forwards to every sink.
func (m Multi) BatchFailed(priority event.Priority, events int) {
	for _, sink := range m {
		sink.BatchFailed(priority, events)
	}
}
