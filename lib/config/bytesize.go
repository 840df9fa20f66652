// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package config

import (
	"fmt"
	"math"

	"github.com/dustin/go-humanize"
	"gopkg.in/yaml.v3"
)

// ByteSize is a byte count that decodes from an integer or a
// humanized string ("256KiB", "16 MB").
type ByteSize int64

// UnmarshalYAML implements yaml.Unmarshaler.
func (b *ByteSize) UnmarshalYAML(node *yaml.Node) error {
	if node.Kind != yaml.ScalarNode {
		return fmt.Errorf("line %d: byte size must be a scalar", node.Line)
	}
	if node.Tag == "!!int" {
		var value int64
		if err := node.Decode(&value); err != nil {
			return err
		}
		*b = ByteSize(value)
		return nil
	}
	value, err := humanize.ParseBytes(node.Value)
	if err != nil {
		return fmt.Errorf("line %d: %w", node.Line, err)
	}
	if value > math.MaxInt64 {
		return fmt.Errorf("line %d: byte size %s overflows", node.Line, node.Value)
	}
	*b = ByteSize(value)
	return nil
}

// MarshalYAML implements yaml.Marshaler. The exact count is written;
// humanized forms round.
func (b ByteSize) MarshalYAML() (any, error) {
	return int64(b), nil
}

// String returns the humanized IEC form.
func (b ByteSize) String() string {
	if b < 0 {
		return fmt.Sprintf("%d B", int64(b))
	}
	return humanize.IBytes(uint64(b))
}

// Int returns the size as an int.
func (b ByteSize) Int() int {
	return int(b)
}
