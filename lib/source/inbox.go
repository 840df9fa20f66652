// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package source

import (
	"context"
	"errors"
	"sync"

	"github.com/bureau-foundation/telemetry-agent/lib/event"
)

// ErrInboxFull is returned by [Inbox.Push] when accepting the events
// would exceed the inbox capacity.
var ErrInboxFull = errors.New("source: inbox full")

// Inbox buffers events pushed from outside the polling loop until the
// producer collects them. Events keep the priority they were pushed
// with; the inbox's own priority only gates whether it is polled.
type Inbox struct {
	name     string
	priority event.Priority
	capacity int

	mu      sync.Mutex
	pending []event.Event
}

// NewInbox creates an inbox holding at most capacity events. Panics
// if capacity is not positive.
func NewInbox(name string, priority event.Priority, capacity int) *Inbox {
	if capacity <= 0 {
		panic("source: inbox capacity must be positive")
	}
	return &Inbox{name: name, priority: priority, capacity: capacity}
}

func (i *Inbox) Name() string             { return i.name }
func (i *Inbox) Priority() event.Priority { return i.priority }

// Push adds events atomically: either all are accepted or, if they
// would not fit, none are and ErrInboxFull is returned.
func (i *Inbox) Push(events ...event.Event) error {
	i.mu.Lock()
	defer i.mu.Unlock()
	if len(i.pending)+len(events) > i.capacity {
		return ErrInboxFull
	}
	i.pending = append(i.pending, events...)
	return nil
}

// Poll returns and clears everything pushed since the last poll.
func (i *Inbox) Poll(ctx context.Context, _ event.Priority) ([]event.Event, error) {
	i.mu.Lock()
	defer i.mu.Unlock()
	events := i.pending
	i.pending = nil
	return events, nil
}

// Len returns the number of events awaiting collection.
func (i *Inbox) Len() int {
	i.mu.Lock()
	defer i.mu.Unlock()
	return len(i.pending)
}
