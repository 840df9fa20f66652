// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package codec holds the agent's single CBOR configuration.
//
// Two things depend on every encoder agreeing byte-for-byte: event
// size estimation and envelope encoding. An event's EstimatedSize is
// the length of its encoded record, and the batch builder packs
// envelopes against maxMessageSize using those sizes, so the envelope
// encoder must be the same deterministic encoder (RFC 8949 §4.2
// Core Deterministic Encoding: sorted map keys, shortest integers, no
// indefinite-length items).
//
//	data, err := codec.Marshal(value)
//	err = codec.Unmarshal(data, &value)
//	size, err := codec.MarshaledSize(value)
//
// Types that only ever travel as CBOR use `cbor` struct tags. Types
// that also appear as JSON on the local HTTP surface use `json` tags,
// which fxamacker/cbor reads when no `cbor` tag is present. Never put
// both tags on one field.
package codec
