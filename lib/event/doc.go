// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package event defines the unit that flows through the agent's
// buffering pipeline.
//
// An [Event] carries a name, a [Priority], a timestamp, and a payload
// that is CBOR-encoded exactly once by [New]. Its EstimatedSize is the
// encoded size of the whole event record, which is what the queues
// charge against their byte budgets and what the batch builder packs
// against the message ceiling.
//
// Events are values and must be treated as immutable after
// construction. The Payload slice is shared between copies.
package event
