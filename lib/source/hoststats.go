// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package source

import (
	"context"
	"runtime"

	"github.com/bureau-foundation/telemetry-agent/lib/clock"
	"github.com/bureau-foundation/telemetry-agent/lib/event"
)

// HostStatsName is the source and event name of [HostStats].
const HostStatsName = "host.stats"

// HostSnapshot is the payload of a host.stats event. Memory figures
// are bytes; CPU times are nanoseconds. Fields the platform cannot
// report are zero.
type HostSnapshot struct {
	UptimeSeconds  int64      `json:"uptime_seconds"`
	LoadAverage    [3]float64 `json:"load_average"`
	MemoryTotal    uint64     `json:"memory_total"`
	MemoryFree     uint64     `json:"memory_free"`
	MemoryShared   uint64     `json:"memory_shared"`
	MemoryBuffered uint64     `json:"memory_buffered"`
	SwapTotal      uint64     `json:"swap_total"`
	SwapFree       uint64     `json:"swap_free"`
	Processes      int        `json:"processes"`

	AgentUserCPU   int64 `json:"agent_user_cpu_ns"`
	AgentSystemCPU int64 `json:"agent_system_cpu_ns"`
	AgentMaxRSS    int64 `json:"agent_max_rss"`
	AgentMajFaults int64 `json:"agent_major_faults"`
	Goroutines     int   `json:"goroutines"`
}

// HostStats samples host and agent resource usage.
type HostStats struct {
	Clock clock.Clock
}

func (h *HostStats) Name() string             { return HostStatsName }
func (h *HostStats) Priority() event.Priority { return event.PriorityOperational }

// Sample reads the current host snapshot.
func (h *HostStats) Sample() (HostSnapshot, error) {
	snapshot := HostSnapshot{Goroutines: runtime.NumGoroutine()}
	if err := sampleHost(&snapshot); err != nil {
		return HostSnapshot{}, err
	}
	return snapshot, nil
}

// Poll returns a single host.stats event.
func (h *HostStats) Poll(ctx context.Context, priority event.Priority) ([]event.Event, error) {
	snapshot, err := h.Sample()
	if err != nil {
		return nil, err
	}
	ev, err := event.New(HostStatsName, priority, h.Clock.Now(), snapshot)
	if err != nil {
		return nil, err
	}
	return []event.Event{ev}, nil
}
