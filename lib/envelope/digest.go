// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package envelope

import (
	"encoding/hex"
	"fmt"

	"github.com/zeebo/blake3"
)

// Digest is the keyed BLAKE3 hash of an uncompressed envelope record.
type Digest [32]byte

// digestKey separates envelope digests from any other BLAKE3 use of
// the same bytes. Changing it invalidates every stored digest.
var digestKey = [32]byte{
	't', 'e', 'l', 'e', 'm', 'e', 't', 'r', 'y', '.', 'e', 'n', 'v', 'e', 'l', 'o',
	'p', 'e', 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0,
}

func computeDigest(record []byte) Digest {
	hasher, err := blake3.NewKeyed(digestKey[:])
	if err != nil {
		// NewKeyed only fails for keys that are not 32 bytes.
		panic("envelope: blake3 keyed hasher: " + err.Error())
	}
	hasher.Write(record)
	var digest Digest
	copy(digest[:], hasher.Sum(nil))
	return digest
}

// String returns the lowercase hex encoding.
func (d Digest) String() string {
	return hex.EncodeToString(d[:])
}

// IsZero reports whether d is the zero digest.
func (d Digest) IsZero() bool {
	return d == Digest{}
}

// ParseDigest parses the hex form produced by String.
func ParseDigest(text string) (Digest, error) {
	var digest Digest
	decoded, err := hex.DecodeString(text)
	if err != nil {
		return digest, fmt.Errorf("parsing digest: %w", err)
	}
	if len(decoded) != len(digest) {
		return digest, fmt.Errorf("parsing digest: got %d bytes, want %d", len(decoded), len(digest))
	}
	copy(digest[:], decoded)
	return digest, nil
}
