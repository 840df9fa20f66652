// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package envelope

import (
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/bureau-foundation/telemetry-agent/lib/event"
)

// SchemaVersion is the version of the envelope record layout written
// by this agent.
const SchemaVersion = 1

// Identity names the agent that produced an envelope.
type Identity struct {
	// AgentID is the stable identifier of this agent installation.
	AgentID string

	// AgentVersion is the agent build version (version.Short()).
	AgentVersion string
}

// Envelope is an immutable batch of events ready for transport.
type Envelope struct {
	id            uuid.UUID
	identity      Identity
	schemaVersion int
	priority      event.Priority
	createdAt     time.Time
	events        []event.Event
	eventBytes    int
}

// New builds an envelope around a copy of events. The batch must not
// be empty and every event must carry a deliverable priority.
func New(identity Identity, priority event.Priority, createdAt time.Time, events []event.Event) (*Envelope, error) {
	if identity.AgentID == "" {
		return nil, errors.New("envelope: AgentID is required")
	}
	if len(events) == 0 {
		return nil, errors.New("envelope: at least one event is required")
	}
	eventBytes := 0
	for i, ev := range events {
		if ev.Priority == event.PriorityOff {
			return nil, fmt.Errorf("envelope: event %d (%q) has priority off", i, ev.Name)
		}
		eventBytes += ev.EstimatedSize
	}
	id, err := uuid.NewRandom()
	if err != nil {
		return nil, fmt.Errorf("envelope: generating id: %w", err)
	}
	return &Envelope{
		id:            id,
		identity:      identity,
		schemaVersion: SchemaVersion,
		priority:      priority,
		createdAt:     createdAt.UTC(),
		events:        append([]event.Event(nil), events...),
		eventBytes:    eventBytes,
	}, nil
}

// ID returns the envelope's unique identifier.
func (e *Envelope) ID() uuid.UUID { return e.id }

// AgentID returns the producing agent's identifier.
func (e *Envelope) AgentID() string { return e.identity.AgentID }

// AgentVersion returns the producing agent's version.
func (e *Envelope) AgentVersion() string { return e.identity.AgentVersion }

// SchemaVersion returns the record layout version.
func (e *Envelope) SchemaVersion() int { return e.schemaVersion }

// Priority returns the priority whose flush produced the envelope.
func (e *Envelope) Priority() event.Priority { return e.priority }

// CreatedAt returns when the envelope was built.
func (e *Envelope) CreatedAt() time.Time { return e.createdAt }

// Len returns the number of events.
func (e *Envelope) Len() int { return len(e.events) }

// EventBytes returns the summed EstimatedSize of the events.
func (e *Envelope) EventBytes() int { return e.eventBytes }

// Events returns a copy of the events in send order.
func (e *Envelope) Events() []event.Event {
	return append([]event.Event(nil), e.events...)
}
