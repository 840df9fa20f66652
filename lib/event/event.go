// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package event

import (
	"errors"
	"fmt"
	"time"

	"github.com/bureau-foundation/telemetry-agent/lib/codec"
)

// Event is a single telemetry record awaiting delivery.
type Event struct {
	// Name identifies the kind of event ("process.exec",
	// "agent.health", ...).
	Name string `cbor:"name"`

	// Priority selects the queue. PriorityOff events are never
	// accepted by New.
	Priority Priority `cbor:"priority"`

	// Time is when the source observed the event.
	Time time.Time `cbor:"time"`

	// Payload is the CBOR-encoded body supplied by the source.
	Payload codec.RawMessage `cbor:"payload"`

	// EstimatedSize is the encoded size of this record in bytes.
	EstimatedSize int `cbor:"-"`
}

// New builds an Event, encoding payload once and recording the
// encoded size of the complete record. A nil payload is encoded as
// CBOR null.
func New(name string, priority Priority, timestamp time.Time, payload any) (Event, error) {
	if name == "" {
		return Event{}, errors.New("event: name is required")
	}
	if priority == PriorityOff || priority > PriorityOperational {
		return Event{}, fmt.Errorf("event %q: priority %s is not deliverable", name, priority)
	}

	encoded, err := codec.Marshal(payload)
	if err != nil {
		return Event{}, fmt.Errorf("event %q: encoding payload: %w", name, err)
	}
	return FromEncoded(name, priority, timestamp, encoded)
}

// FromEncoded builds an Event around an already-encoded payload. Used
// when events are decoded from an envelope or received pre-encoded.
func FromEncoded(name string, priority Priority, timestamp time.Time, payload codec.RawMessage) (Event, error) {
	ev := Event{
		Name:     name,
		Priority: priority,
		Time:     timestamp.UTC(),
		Payload:  payload,
	}
	size, err := codec.MarshaledSize(ev)
	if err != nil {
		return Event{}, fmt.Errorf("event %q: measuring size: %w", name, err)
	}
	ev.EstimatedSize = size
	return ev, nil
}

// DecodePayload decodes the payload into v.
func (e Event) DecodePayload(v any) error {
	return codec.Unmarshal(e.Payload, v)
}
