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

// Package wasm holds the decoded, in-memory representation of a WASM v1
// module: value types, function types, instructions, block records, and
// the module itself. Nothing in this package performs I/O; it is the
// shared vocabulary between the decoder, the block resolver and the
// interpreter.
package wasm

import "math"

// ValueType is one of the four WASM v1 numeric types. Size and signedness
// are properties of operations, not of the type itself.
type ValueType byte

const (
	I32 ValueType = 0x7F
	I64 ValueType = 0x7E
	F32 ValueType = 0x7D
	F64 ValueType = 0x7C
)

func (vt ValueType) String() string {
	switch vt {
	case I32:
		return "i32"
	case I64:
		return "i64"
	case F32:
		return "f32"
	case F64:
		return "f64"
	default:
		return "invalid"
	}
}

// IsValueType reports whether b encodes one of the four value types.
func IsValueType(b byte) bool {
	switch ValueType(b) {
	case I32, I64, F32, F64:
		return true
	}
	return false
}

// Value is a typed stack slot: a value type paired with a bit-exact 64-bit
// payload. Integers are stored two's-complement; floats are stored in
// their IEEE-754 bit pattern.
type Value struct {
	Type ValueType
	Bits uint64
}

// I32Value builds an i32 Value from a signed 32-bit payload.
func I32Value(v int32) Value { return Value{Type: I32, Bits: uint64(uint32(v))} }

// I64Value builds an i64 Value from a signed 64-bit payload.
func I64Value(v int64) Value { return Value{Type: I64, Bits: uint64(v)} }

// F32Value builds an f32 Value from a float32 payload.
func F32Value(v float32) Value { return Value{Type: F32, Bits: uint64(math.Float32bits(v))} }

// F64Value builds an f64 Value from a float64 payload.
func F64Value(v float64) Value { return Value{Type: F64, Bits: math.Float64bits(v)} }

// ZeroValue returns the zero value for a given value type, as required when
// initializing locals that were not supplied as parameters.
func ZeroValue(vt ValueType) Value {
	switch vt {
	case I32:
		return I32Value(0)
	case I64:
		return I64Value(0)
	case F32:
		return F32Value(0)
	case F64:
		return F64Value(0)
	default:
		return Value{}
	}
}

// I32 interprets the payload as a signed 32-bit integer.
func (v Value) I32() int32 { return int32(uint32(v.Bits)) }

// U32 interprets the payload as an unsigned 32-bit integer.
func (v Value) U32() uint32 { return uint32(v.Bits) }

// I64 interprets the payload as a signed 64-bit integer.
func (v Value) I64() int64 { return int64(v.Bits) }

// U64 interprets the payload as an unsigned 64-bit integer.
func (v Value) U64() uint64 { return v.Bits }

// F32 interprets the payload as an IEEE-754 binary32 float.
func (v Value) F32() float32 { return math.Float32frombits(uint32(v.Bits)) }

// F64 interprets the payload as an IEEE-754 binary64 float.
func (v Value) F64() float64 { return math.Float64frombits(v.Bits) }
