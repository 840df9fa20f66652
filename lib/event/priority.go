// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package event

import "fmt"

// Priority is the delivery class of an event. It selects the queue an
// event is buffered in and how it is packed into outgoing batches.
type Priority uint8

const (
	// PriorityOff marks an event (or a source) that must not be
	// delivered. It is the zero value so that an unset priority never
	// silently lands in a delivery queue.
	PriorityOff Priority = iota

	// PriorityHigh events flush on the short interval and on every
	// forced (size-triggered) flush.
	PriorityHigh

	// PriorityLow events flush on the long interval and piggyback on
	// High batches when space remains.
	PriorityLow

	// PriorityOperational events are the agent's own diagnostics.
	// They never trigger a flush; they ride along at the front of
	// every batch.
	PriorityOperational
)

// Queued lists the priorities that own a queue, in the order they are
// reported.
var Queued = []Priority{PriorityHigh, PriorityLow, PriorityOperational}

// String returns the lowercase name used in configuration, logs, and
// metric labels.
func (p Priority) String() string {
	switch p {
	case PriorityOff:
		return "off"
	case PriorityHigh:
		return "high"
	case PriorityLow:
		return "low"
	case PriorityOperational:
		return "operational"
	default:
		return fmt.Sprintf("unknown(%d)", uint8(p))
	}
}

// Opposite returns Low for High and High for Low. Every other
// priority has no opposite and returns PriorityOff.
func (p Priority) Opposite() Priority {
	switch p {
	case PriorityHigh:
		return PriorityLow
	case PriorityLow:
		return PriorityHigh
	default:
		return PriorityOff
	}
}

// ParsePriority is the inverse of String.
func ParsePriority(name string) (Priority, error) {
	switch name {
	case "off":
		return PriorityOff, nil
	case "high":
		return PriorityHigh, nil
	case "low":
		return PriorityLow, nil
	case "operational":
		return PriorityOperational, nil
	default:
		return PriorityOff, fmt.Errorf("unknown priority %q", name)
	}
}

// MarshalText implements encoding.TextMarshaler.
func (p Priority) MarshalText() ([]byte, error) {
	if p > PriorityOperational {
		return nil, fmt.Errorf("cannot marshal priority %d", uint8(p))
	}
	return []byte(p.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (p *Priority) UnmarshalText(text []byte) error {
	parsed, err := ParsePriority(string(text))
	if err != nil {
		return err
	}
	*p = parsed
	return nil
}
