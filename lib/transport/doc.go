// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package transport delivers encoded envelopes to the collector.
//
// A [Client] makes one delivery attempt per Send. Retrying a failed
// envelope is the caller's decision; the batch builder never does, so
// delivery is at most once. Two clients are provided:
//
//   - [HTTPClient] POSTs the encoded envelope to the collector. Calls
//     pass through a circuit breaker so that a dead collector costs
//     one fast failure per flush instead of a full request timeout.
//     [HTTPClient.Connect] waits for the collector to become reachable,
//     retrying on a [retry.Policy] until the context ends.
//   - [Spool] appends encoded envelopes to a local SQLite outbox for a
//     separate forwarder to pick up with [Spool.Pending] and
//     [Spool.Acknowledge].
//
// [ReadEnvelope] decodes an envelope from an HTTP request built by
// HTTPClient. Collectors and tests use it.
package transport
