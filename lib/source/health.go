// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package source

import (
	"context"
	"time"

	"github.com/bureau-foundation/telemetry-agent/lib/clock"
	"github.com/bureau-foundation/telemetry-agent/lib/counters"
	"github.com/bureau-foundation/telemetry-agent/lib/event"
	"github.com/bureau-foundation/telemetry-agent/lib/eventqueue"
)

// AgentHealthName is the source and event name of [AgentHealth].
const AgentHealthName = "agent.health"

// HealthReport is the payload of an agent.health event.
type HealthReport struct {
	Queues        []eventqueue.QueueStats `json:"queues"`
	Counters      counters.Snapshot       `json:"counters"`
	InFlightSends int                     `json:"in_flight_sends"`
	UptimeSeconds int64                   `json:"uptime_seconds"`
}

// QueueStatser reports queue occupancy. *eventqueue.Manager
// implements it.
type QueueStatser interface {
	Stats() []eventqueue.QueueStats
}

// CounterSnapshotter reports delivery totals. *counters.Counters
// implements it.
type CounterSnapshotter interface {
	Snapshot() counters.Snapshot
}

// AgentHealth reports the agent's own state as an operational event.
type AgentHealth struct {
	Queues   QueueStatser
	Counters CounterSnapshotter

	// InFlight returns the number of sends in progress. Optional.
	InFlight func() int

	Clock   clock.Clock
	Started time.Time
}

func (h *AgentHealth) Name() string             { return AgentHealthName }
func (h *AgentHealth) Priority() event.Priority { return event.PriorityOperational }

// Report builds the current health report.
func (h *AgentHealth) Report() HealthReport {
	report := HealthReport{
		UptimeSeconds: int64(clock.Since(h.Clock, h.Started) / time.Second),
	}
	if h.Queues != nil {
		report.Queues = h.Queues.Stats()
	}
	if h.Counters != nil {
		report.Counters = h.Counters.Snapshot()
	}
	if h.InFlight != nil {
		report.InFlightSends = h.InFlight()
	}
	return report
}

// Poll returns a single agent.health event.
func (h *AgentHealth) Poll(ctx context.Context, priority event.Priority) ([]event.Event, error) {
	ev, err := event.New(AgentHealthName, priority, h.Clock.Now(), h.Report())
	if err != nil {
		return nil, err
	}
	return []event.Event{ev}, nil
}
