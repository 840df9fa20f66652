// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package transport

import (
	"testing"
	"time"

	"github.com/bureau-foundation/telemetry-agent/lib/envelope"
	"github.com/bureau-foundation/telemetry-agent/lib/event"
	"github.com/bureau-foundation/telemetry-agent/lib/testutil"
)

// Both implementations satisfy Client.
var (
	_ Client = (*HTTPClient)(nil)
	_ Client = (*Spool)(nil)
)

func testEnvelope(t *testing.T, priority event.Priority) *envelope.Envelope {
	t.Helper()
	env, err := envelope.New(
		envelope.Identity{AgentID: "agent-test", AgentVersion: "v0.0.1"},
		priority,
		time.Date(2026, 5, 1, 12, 0, 0, 0, time.UTC),
		[]event.Event{
			testutil.Event(t, "process.exec", event.PriorityHigh, map[string]any{"argv": []string{"/bin/sh", "-c", "true"}}),
			testutil.Event(t, "dns.query", event.PriorityLow, map[string]any{"name": "example.com"}),
		},
	)
	if err != nil {
		t.Fatalf("envelope.New: %v", err)
	}
	return env
}
