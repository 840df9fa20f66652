// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package netutil provides bounded HTTP body handling for the
// collector client.
//
// A collector answering with an error may send an arbitrarily large
// body. ErrorBody keeps only a short prefix for the error message;
// Discard consumes a bounded amount of a successful response so the
// connection can be reused, without letting a misbehaving server stall
// the sender.
package netutil

import (
	"io"
	"strings"
)

const (
	// MaxErrorBody is how much of an error response ErrorBody keeps.
	MaxErrorBody int64 = 512

	// MaxDiscard is how much of a response Discard will read.
	MaxDiscard int64 = 64 << 10
)

// ErrorBody returns up to MaxErrorBody bytes of body, trimmed, for use
// in an error message. Read errors are ignored; a partial body is
// still useful.
func ErrorBody(body io.Reader) string {
	data, _ := io.ReadAll(io.LimitReader(body, MaxErrorBody))
	return strings.TrimSpace(string(data))
}

// Discard reads and drops up to MaxDiscard bytes of body.
func Discard(body io.Reader) {
	_, _ = io.Copy(io.Discard, io.LimitReader(body, MaxDiscard))
}
