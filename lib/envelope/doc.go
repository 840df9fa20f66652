// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package envelope wraps a batch of events for delivery.
//
// An [Envelope] is an immutable snapshot: the events of one flush in
// send order, the agent's identity and version, the envelope schema
// version, the priority that triggered the flush, and a unique ID.
// Envelopes are built fresh for every flush and never modified.
//
// [Encode] produces the wire form: the envelope as a deterministic
// CBOR record, optionally compressed with LZ4 or zstd, plus a keyed
// BLAKE3 digest of the uncompressed record. Collectors use the digest
// to verify integrity and to discard duplicates. When compression
// does not make the record smaller the body is sent uncompressed and
// the [Encoded] says so. [Decode] reverses the process and verifies
// the digest.
package envelope
