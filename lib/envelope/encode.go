// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package envelope

import (
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/bureau-foundation/telemetry-agent/lib/codec"
	"github.com/bureau-foundation/telemetry-agent/lib/event"
)

// record is the CBOR layout of an envelope.
type record struct {
	ID            string         `cbor:"id"`
	AgentID       string         `cbor:"agent_id"`
	AgentVersion  string         `cbor:"agent_version"`
	SchemaVersion int            `cbor:"schema_version"`
	Priority      event.Priority `cbor:"priority"`
	CreatedAt     time.Time      `cbor:"created_at"`
	Events        []event.Event  `cbor:"events"`
}

// Encoded is the wire form of an envelope.
type Encoded struct {
	// ID is the envelope ID, repeated here so transports can key on it
	// without decoding the body.
	ID uuid.UUID

	// Priority is the envelope's priority, repeated for the same
	// reason.
	Priority event.Priority

	// Body is the CBOR record, compressed as Compression says.
	Body []byte

	// Compression is how Body is compressed. It may be
	// CompressionNone even when compression was requested, if
	// compressing did not make the record smaller.
	Compression Compression

	// UncompressedSize is the length of the CBOR record.
	UncompressedSize int

	// Digest is the keyed BLAKE3 hash of the CBOR record.
	Digest Digest

	// Events is the number of events in the envelope.
	Events int
}

// Encode serializes env and compresses it with compression.
func Encode(env *Envelope, compression Compression) (*Encoded, error) {
	if env == nil {
		return nil, errors.New("envelope: encoding nil envelope")
	}
	data, err := codec.Marshal(record{
		ID:            env.id.String(),
		AgentID:       env.identity.AgentID,
		AgentVersion:  env.identity.AgentVersion,
		SchemaVersion: env.schemaVersion,
		Priority:      env.priority,
		CreatedAt:     env.createdAt,
		Events:        env.events,
	})
	if err != nil {
		return nil, fmt.Errorf("envelope %s: encoding record: %w", env.id, err)
	}

	body, err := compress(data, compression)
	if errors.Is(err, errIncompressible) {
		body, compression = data, CompressionNone
	} else if err != nil {
		return nil, fmt.Errorf("envelope %s: %w", env.id, err)
	}

	return &Encoded{
		ID:               env.id,
		Priority:         env.priority,
		Body:             body,
		Compression:      compression,
		UncompressedSize: len(data),
		Digest:           computeDigest(data),
		Events:           len(env.events),
	}, nil
}

// Decode reverses Encode. The digest is verified before the record
// is parsed, and the schema version must be one this package writes.
func Decode(encoded *Encoded) (*Envelope, error) {
	data, err := decompress(encoded.Body, encoded.Compression, encoded.UncompressedSize)
	if err != nil {
		return nil, fmt.Errorf("envelope: %w", err)
	}
	if digest := computeDigest(data); digest != encoded.Digest {
		return nil, fmt.Errorf("envelope: digest mismatch: computed %s, header %s", digest, encoded.Digest)
	}

	var decoded record
	if err := codec.Unmarshal(data, &decoded); err != nil {
		return nil, fmt.Errorf("envelope: decoding record: %w", err)
	}
	if decoded.SchemaVersion != SchemaVersion {
		return nil, fmt.Errorf("envelope: unsupported schema version %d", decoded.SchemaVersion)
	}
	id, err := uuid.Parse(decoded.ID)
	if err != nil {
		return nil, fmt.Errorf("envelope: parsing id: %w", err)
	}

	events := make([]event.Event, len(decoded.Events))
	eventBytes := 0
	for i, raw := range decoded.Events {
		ev, err := event.FromEncoded(raw.Name, raw.Priority, raw.Time, raw.Payload)
		if err != nil {
			return nil, fmt.Errorf("envelope %s: event %d: %w", id, i, err)
		}
		events[i] = ev
		eventBytes += ev.EstimatedSize
	}

	return &Envelope{
		id: id,
		identity: Identity{
			AgentID:      decoded.AgentID,
			AgentVersion: decoded.AgentVersion,
		},
		schemaVersion: decoded.SchemaVersion,
		priority:      decoded.Priority,
		createdAt:     decoded.CreatedAt.UTC(),
		events:        events,
		eventBytes:    eventBytes,
	}, nil
}
