// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package source

import (
	"context"
	"errors"
	"testing"

	"github.com/bureau-foundation/telemetry-agent/lib/event"
	"github.com/bureau-foundation/telemetry-agent/lib/testutil"
)

func TestInboxPushIsAllOrNothing(t *testing.T) {
	inbox := NewInbox("ingest", event.PriorityHigh, 3)
	first := testutil.Event(t, "a", event.PriorityHigh, nil)
	second := testutil.Event(t, "b", event.PriorityLow, nil)

	if err := inbox.Push(first, second); err != nil {
		t.Fatalf("Push: %v", err)
	}
	if err := inbox.Push(first, second); !errors.Is(err, ErrInboxFull) {
		t.Fatalf("Push over capacity = %v, want ErrInboxFull", err)
	}
	if inbox.Len() != 2 {
		t.Fatalf("Len = %d after rejected push, want 2", inbox.Len())
	}
}

func TestInboxPollDrainsAndKeepsEventPriorities(t *testing.T) {
	inbox := NewInbox("ingest", event.PriorityHigh, 10)
	if err := inbox.Push(
		testutil.Event(t, "a", event.PriorityLow, nil),
		testutil.Event(t, "b", event.PriorityOperational, nil),
	); err != nil {
		t.Fatalf("Push: %v", err)
	}

	events, err := inbox.Poll(context.Background(), event.PriorityHigh)
	if err != nil {
		t.Fatalf("Poll: %v", err)
	}
	if len(events) != 2 || events[0].Priority != event.PriorityLow || events[1].Priority != event.PriorityOperational {
		t.Fatalf("Poll = %+v", events)
	}
	if inbox.Len() != 0 {
		t.Fatalf("Len = %d after Poll, want 0", inbox.Len())
	}
	if events, _ := inbox.Poll(context.Background(), event.PriorityHigh); len(events) != 0 {
		t.Fatalf("second Poll returned %d events", len(events))
	}
}

func TestNewInboxPanicsOnNonPositiveCapacity(t *testing.T) {
	defer func() {
		if recover() == nil {
			t.Fatal("NewInbox(0) did not panic")
		}
	}()
	NewInbox("ingest", event.PriorityHigh, 0)
}
