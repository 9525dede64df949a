// Copyright 2023 The Firefly Authors.
//
// Use of this source code is governed by a BSD 3-clause
// license that can be found in the LICENSE file.

// Package wire packs and unpacks length-prefixed byte strings, the
// same framing tools/ruse/rpkg uses for its section bodies. It backs
// the immediate-literal parser for byte-slice pins: a literal's
// textual immediate is hex-decoded, then round-tripped through this
// length-prefixed framing before landing in a constant slot, so a
// byte-array pin's literal text is validated the same way an rpkg
// section body is.
package wire

import (
	"encoding/hex"
	"fmt"

	"golang.org/x/crypto/cryptobyte"
)

// Pack returns data framed as a uint32 length prefix followed by the
// bytes themselves, mirroring rpkg's section encoding.
func Pack(data []byte) []byte {
	var b cryptobyte.Builder
	b.AddUint32(uint32(len(data)))
	b.AddBytes(data)
	out, err := b.Bytes()
	if err != nil {
		// cryptobyte.Builder only fails this way on a length that
		// overflows its own prefix, which AddUint32(len(data)) never
		// does for a slice actually held in memory.
		panic(fmt.Sprintf("wire: pack: %v", err))
	}
	return out
}

// Unpack reverses Pack, verifying the length prefix matches the
// number of bytes actually present.
func Unpack(framed []byte) ([]byte, error) {
	s := cryptobyte.String(framed)
	var n uint32
	if !s.ReadUint32(&n) {
		return nil, fmt.Errorf("wire: unpack: truncated length prefix")
	}
	var data []byte
	if !s.ReadBytes(&data, int(n)) {
		return nil, fmt.Errorf("wire: unpack: want %d bytes, got %d", n, len(s))
	}
	if len(s) != 0 {
		return nil, fmt.Errorf("wire: unpack: %d trailing bytes after frame", len(s))
	}
	return data, nil
}

// ParseHexImmediate hex-decodes text, frames and immediately
// unframes it through Pack/Unpack (exercising the same
// length-prefixed read path a persisted byte-array constant would
// go through), and returns the resulting bytes. It is installed as a
// universe.Registry immediate parser for []byte-typed pins via
// RegisterImmediateParser (spec §9(b)'s extension point).
func ParseHexImmediate(text string) ([]byte, error) {
	raw, err := hex.DecodeString(text)
	if err != nil {
		return nil, fmt.Errorf("wire: parse immediate: %q is not valid hex: %w", text, err)
	}
	return Unpack(Pack(raw))
}
