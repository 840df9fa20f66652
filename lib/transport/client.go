// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package transport

import (
	"context"
	"errors"

	"github.com/bureau-foundation/telemetry-agent/lib/envelope"
	"github.com/bureau-foundation/telemetry-agent/lib/event"
)

// Client delivers one envelope per call. Send blocks until the
// attempt completes or ctx ends, and must be safe for concurrent use:
// several sends may be in flight at once.
type Client interface {
	Send(ctx context.Context, env *envelope.Envelope, priority event.Priority) error
}

// ErrCircuitOpen is returned without contacting the collector while
// the circuit breaker is open.
var ErrCircuitOpen = errors.New("transport: circuit breaker open")

// Header names set on every HTTP delivery.
const (
	HeaderEnvelopeID       = "X-Telemetry-Envelope-Id"
	HeaderPriority         = "X-Telemetry-Priority"
	HeaderSchemaVersion    = "X-Telemetry-Schema-Version"
	HeaderDigest           = "X-Telemetry-Digest"
	HeaderUncompressedSize = "X-Telemetry-Uncompressed-Size"
	HeaderAgentID          = "X-Telemetry-Agent-Id"
	HeaderEventCount       = "X-Telemetry-Event-Count"

	// ContentType is the media type of an envelope body before
	// Content-Encoding is applied.
	ContentType = "application/cbor"
)

// EnvelopePath and HealthPath are appended to the configured
// collector endpoint.
const (
	EnvelopePath = "/v1/envelopes"
	HealthPath   = "/v1/health"
)
