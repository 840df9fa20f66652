// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package eventqueue

import "github.com/bureau-foundation/telemetry-agent/lib/event"

// FixedLimits is a [Limits] with constant budgets. Priorities missing
// from Budgets have a zero budget, so every event for them is
// rejected.
type FixedLimits struct {
	Budgets    map[event.Priority]int
	MaxMessage int
}

// QueueBudget implements [Limits].
func (l FixedLimits) QueueBudget(priority event.Priority) int {
	return l.Budgets[priority]
}

// MaxMessageSize implements [Limits].
func (l FixedLimits) MaxMessageSize() int {
	return l.MaxMessage
}

// NopSink is a [CounterSink] that discards every notification.
type NopSink struct{}

// EventsEnqueued implements [CounterSink].
func (NopSink) EventsEnqueued(event.Priority, int) {}

// EventsDropped implements [CounterSink].
func (NopSink) EventsDropped(event.Priority, int) {}
