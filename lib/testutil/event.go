// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package testutil

import (
	"testing"
	"time"

	"github.com/bureau-foundation/telemetry-agent/lib/event"
)

// EventTime is the timestamp given to events built by [Event].
var EventTime = time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)

// Event builds an event with event.New or fails the test.
func Event(t testing.TB, name string, priority event.Priority, payload any) event.Event {
	t.Helper()
	ev, err := event.New(name, priority, EventTime, payload)
	if err != nil {
		t.Fatalf("event.New(%q): %v", name, err)
	}
	return ev
}
