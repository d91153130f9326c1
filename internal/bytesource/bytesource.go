// Copyright (c) 2026 dotandev
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//      http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package bytesource implements the positioned, EOF-aware byte cursor the
// decoder and instruction parser read from: little-endian fixed-width
// scalars and unsigned/signed LEB128 variable-length integers, with every
// read advancing a tracked offset so section framing can be validated.
package bytesource

import (
	"encoding/binary"

	"github.com/dotandev/wasmvm/internal/errors"
)

// ByteSource is a cursor over an in-memory byte slice. It never copies the
// backing array; reads return sub-slices or decoded scalars.
type ByteSource struct {
	data []byte
	pos  int64
}

// New wraps data in a ByteSource positioned at offset 0.
func New(data []byte) *ByteSource {
	return &ByteSource{data: data}
}

// Offset returns the current read position.
func (b *ByteSource) Offset() int64 { return b.pos }

// IsEOF reports whether the cursor has consumed every byte.
func (b *ByteSource) IsEOF() bool { return b.pos >= int64(len(b.data)) }

// Len returns the total number of bytes in the source.
func (b *ByteSource) Len() int64 { return int64(len(b.data)) }

// ReadBytes returns exactly n bytes starting at the cursor and advances it,
// or fails with ErrUnexpectedEOF if fewer than n bytes remain.
func (b *ByteSource) ReadBytes(n int) ([]byte, error) {
	if n < 0 || b.pos+int64(n) > int64(len(b.data)) {
		return nil, errors.WrapDecode(b.pos, errors.ErrUnexpectedEOF, "")
	}
	out := b.data[b.pos : b.pos+int64(n)]
	b.pos += int64(n)
	return out, nil
}

// ReadU8 reads one unsigned byte.
func (b *ByteSource) ReadU8() (byte, error) {
	buf, err := b.ReadBytes(1)
	if err != nil {
		return 0, err
	}
	return buf[0], nil
}

// ReadU16 reads a little-endian u16.
func (b *ByteSource) ReadU16() (uint16, error) {
	buf, err := b.ReadBytes(2)
	if err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint16(buf), nil
}

// ReadU32 reads a little-endian u32.
func (b *ByteSource) ReadU32() (uint32, error) {
	buf, err := b.ReadBytes(4)
	if err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint32(buf), nil
}

// ReadU64 reads a little-endian u64.
func (b *ByteSource) ReadU64() (uint64, error) {
	buf, err := b.ReadBytes(8)
	if err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint64(buf), nil
}

// ReadULEB reads an unsigned LEB128 integer: 7-bit groups accumulated from
// the low seven bits of each byte, terminated by a byte with a clear high
// bit. maxBits bounds the result (7, 32 or 64 per §4.1); values that would
// not fit, or encodings longer than ceil(maxBits/7) bytes, are rejected.
// Shorter non-minimal encodings (e.g. 0x80 0x00 for zero) are accepted.
func (b *ByteSource) ReadULEB(maxBits uint) (uint64, error) {
	start := b.pos
	var result uint64
	var shift uint
	maxBytes := (maxBits + 6) / 7
	for i := uint(0); ; i++ {
		byteVal, err := b.ReadU8()
		if err != nil {
			return 0, err
		}
		if i >= maxBytes {
			return 0, errors.WrapDecode(start, errors.ErrLebTooLong, "")
		}
		chunk := uint64(byteVal & 0x7f)
		if shift >= 64 || (shift > 0 && chunk>>(64-shift) != 0) {
			return 0, errors.WrapDecode(start, errors.ErrLebOverflow, "")
		}
		result |= chunk << shift
		if byteVal&0x80 == 0 {
			if maxBits < 64 && result>>maxBits != 0 {
				return 0, errors.WrapDecode(start, errors.ErrLebOverflow, "")
			}
			return result, nil
		}
		shift += 7
	}
}

// ReadSLEB reads a signed LEB128 integer, sign-extending from bit 6 of the
// final byte into all higher bit positions when it is set. maxBits bounds
// the result the same way as ReadULEB.
func (b *ByteSource) ReadSLEB(maxBits uint) (int64, error) {
	start := b.pos
	var result int64
	var shift uint
	var byteVal byte
	maxBytes := (maxBits + 6) / 7
	for i := uint(0); ; i++ {
		var err error
		byteVal, err = b.ReadU8()
		if err != nil {
			return 0, err
		}
		if i >= maxBytes {
			return 0, errors.WrapDecode(start, errors.ErrLebTooLong, "")
		}
		result |= int64(byteVal&0x7f) << shift
		shift += 7
		if byteVal&0x80 == 0 {
			break
		}
	}
	if shift < 64 && byteVal&0x40 != 0 {
		result |= -int64(1) << shift
	}
	if maxBits < 64 {
		hi := result >> (maxBits - 1)
		if hi != 0 && hi != -1 {
			return 0, errors.WrapDecode(start, errors.ErrLebOverflow, "")
		}
	}
	return result, nil
}
