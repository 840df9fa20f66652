// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package codec

import (
	"reflect"

	"github.com/fxamacker/cbor/v2"
)

var (
	encMode cbor.EncMode
	decMode cbor.DecMode
)

func init() {
	var err error

	encOptions := cbor.CoreDetEncOptions()
	// event.Priority and uuid.UUID implement encoding.TextMarshaler
	// and must appear on the wire as their text form.
	encOptions.TextMarshaler = cbor.TextMarshalerTextString
	// Event timestamps are encoded as RFC 3339 strings with
	// nanoseconds so collectors in other languages need no tag 1
	// support.
	encOptions.Time = cbor.TimeRFC3339Nano
	encMode, err = encOptions.EncMode()
	if err != nil {
		panic("codec: CBOR encoder initialization failed: " + err.Error())
	}

	decMode, err = cbor.DecOptions{
		// Payloads decoded into any must come back as
		// map[string]any so the ingest and status paths can hand
		// them to encoding/json unchanged.
		DefaultMapType:  reflect.TypeOf(map[string]any(nil)),
		TextUnmarshaler: cbor.TextUnmarshalerTextString,
	}.DecMode()
	if err != nil {
		panic("codec: CBOR decoder initialization failed: " + err.Error())
	}
}

// Marshal encodes v with Core Deterministic Encoding.
func Marshal(v any) ([]byte, error) {
	return encMode.Marshal(v)
}

// Unmarshal decodes CBOR data into v.
func Unmarshal(data []byte, v any) error {
	return decMode.Unmarshal(data, v)
}

// MarshaledSize returns the number of bytes Marshal produces for v.
func MarshaledSize(v any) (int, error) {
	data, err := encMode.Marshal(v)
	if err != nil {
		return 0, err
	}
	return len(data), nil
}

// RawMessage is a pre-encoded CBOR value. Event payloads are encoded
// once at construction and carried as RawMessage so that size
// estimation and envelope encoding never re-encode them.
type RawMessage = cbor.RawMessage
