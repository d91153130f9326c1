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

package interp

import (
	"math"
	"math/bits"

	"github.com/dotandev/wasmvm/internal/errors"
	"github.com/dotandev/wasmvm/internal/wasm"
)

// boolValue renders a WASM boolean result: i32 0 or 1.
func boolValue(cond bool) wasm.Value {
	if cond {
		return wasm.I32Value(1)
	}
	return wasm.I32Value(0)
}

// i32BinOp computes a binary i32 opcode (0x6a-0x78) over two operands.
func i32BinOp(opcode byte, a, b int32) (wasm.Value, error) {
	ua, ub := uint32(a), uint32(b)
	switch opcode {
	case 0x6a: // add
		return wasm.I32Value(int32(ua + ub)), nil
	case 0x6b: // sub
		return wasm.I32Value(int32(ua - ub)), nil
	case 0x6c: // mul
		return wasm.I32Value(int32(ua * ub)), nil
	case 0x6d: // div_s
		if b == 0 {
			return wasm.Value{}, errors.ErrDivByZero
		}
		if a == math.MinInt32 && b == -1 {
			return wasm.Value{}, errors.ErrIntegerOverflow
		}
		return wasm.I32Value(a / b), nil
	case 0x6e: // div_u
		if ub == 0 {
			return wasm.Value{}, errors.ErrDivByZero
		}
		return wasm.I32Value(int32(ua / ub)), nil
	case 0x6f: // rem_s
		if b == 0 {
			return wasm.Value{}, errors.ErrDivByZero
		}
		if a == math.MinInt32 && b == -1 {
			return wasm.I32Value(0), nil
		}
		return wasm.I32Value(a % b), nil
	case 0x70: // rem_u
		if ub == 0 {
			return wasm.Value{}, errors.ErrDivByZero
		}
		return wasm.I32Value(int32(ua % ub)), nil
	case 0x71: // and
		return wasm.I32Value(a & b), nil
	case 0x72: // or
		return wasm.I32Value(a | b), nil
	case 0x73: // xor
		return wasm.I32Value(a ^ b), nil
	case 0x74: // shl
		return wasm.I32Value(int32(ua << (ub & 31))), nil
	case 0x75: // shr_s
		return wasm.I32Value(a >> (ub & 31)), nil
	case 0x76: // shr_u
		return wasm.I32Value(int32(ua >> (ub & 31))), nil
	case 0x77: // rotl
		return wasm.I32Value(int32(bits.RotateLeft32(ua, int(ub&31)))), nil
	case 0x78: // rotr
		return wasm.I32Value(int32(bits.RotateLeft32(ua, -int(ub&31)))), nil
	}
	return wasm.Value{}, errors.ErrTypeMismatch
}

// i32UnOp computes a unary i32 opcode (clz, ctz, popcnt).
func i32UnOp(opcode byte, a int32) (wasm.Value, error) {
	ua := uint32(a)
	switch opcode {
	case 0x67: // clz
		return wasm.I32Value(int32(bits.LeadingZeros32(ua))), nil
	case 0x68: // ctz
		return wasm.I32Value(int32(bits.TrailingZeros32(ua))), nil
	case 0x69: // popcnt
		return wasm.I32Value(int32(bits.OnesCount32(ua))), nil
	}
	return wasm.Value{}, errors.ErrTypeMismatch
}

// i32CmpOp computes a comparison opcode over i32 operands (0x46-0x4f);
// eqz (0x45) is unary and handled by the caller.
func i32CmpOp(opcode byte, a, b int32) (wasm.Value, error) {
	ua, ub := uint32(a), uint32(b)
	switch opcode {
	case 0x46:
		return boolValue(a == b), nil
	case 0x47:
		return boolValue(a != b), nil
	case 0x48:
		return boolValue(a < b), nil
	case 0x49:
		return boolValue(ua < ub), nil
	case 0x4a:
		return boolValue(a > b), nil
	case 0x4b:
		return boolValue(ua > ub), nil
	case 0x4c:
		return boolValue(a <= b), nil
	case 0x4d:
		return boolValue(ua <= ub), nil
	case 0x4e:
		return boolValue(a >= b), nil
	case 0x4f:
		return boolValue(ua >= ub), nil
	}
	return wasm.Value{}, errors.ErrTypeMismatch
}

// i64BinOp computes a binary i64 opcode (0x7c-0x8a).
func i64BinOp(opcode byte, a, b int64) (wasm.Value, error) {
	ua, ub := uint64(a), uint64(b)
	switch opcode {
	case 0x7c: // add
		return wasm.I64Value(int64(ua + ub)), nil
	case 0x7d: // sub
		return wasm.I64Value(int64(ua - ub)), nil
	case 0x7e: // mul
		return wasm.I64Value(int64(ua * ub)), nil
	case 0x7f: // div_s
		if b == 0 {
			return wasm.Value{}, errors.ErrDivByZero
		}
		if a == math.MinInt64 && b == -1 {
			return wasm.Value{}, errors.ErrIntegerOverflow
		}
		return wasm.I64Value(a / b), nil
	case 0x80: // div_u
		if ub == 0 {
			return wasm.Value{}, errors.ErrDivByZero
		}
		return wasm.I64Value(int64(ua / ub)), nil
	case 0x81: // rem_s
		if b == 0 {
			return wasm.Value{}, errors.ErrDivByZero
		}
		if a == math.MinInt64 && b == -1 {
			return wasm.I64Value(0), nil
		}
		return wasm.I64Value(a % b), nil
	case 0x82: // rem_u
		if ub == 0 {
			return wasm.Value{}, errors.ErrDivByZero
		}
		return wasm.I64Value(int64(ua % ub)), nil
	case 0x83: // and
		return wasm.I64Value(a & b), nil
	case 0x84: // or
		return wasm.I64Value(a | b), nil
	case 0x85: // xor
		return wasm.I64Value(a ^ b), nil
	case 0x86: // shl
		return wasm.I64Value(int64(ua << (ub & 63))), nil
	case 0x87: // shr_s
		return wasm.I64Value(a >> (ub & 63)), nil
	case 0x88: // shr_u
		return wasm.I64Value(int64(ua >> (ub & 63))), nil
	case 0x89: // rotl
		return wasm.I64Value(int64(bits.RotateLeft64(ua, int(ub&63)))), nil
	case 0x8a: // rotr
		return wasm.I64Value(int64(bits.RotateLeft64(ua, -int(ub&63)))), nil
	}
	return wasm.Value{}, errors.ErrTypeMismatch
}

func i64UnOp(opcode byte, a int64) (wasm.Value, error) {
	ua := uint64(a)
	switch opcode {
	case 0x79: // clz
		return wasm.I64Value(int64(bits.LeadingZeros64(ua))), nil
	case 0x7a: // ctz
		return wasm.I64Value(int64(bits.TrailingZeros64(ua))), nil
	case 0x7b: // popcnt
		return wasm.I64Value(int64(bits.OnesCount64(ua))), nil
	}
	return wasm.Value{}, errors.ErrTypeMismatch
}

func i64CmpOp(opcode byte, a, b int64) (wasm.Value, error) {
	ua, ub := uint64(a), uint64(b)
	switch opcode {
	case 0x51:
		return boolValue(a == b), nil
	case 0x52:
		return boolValue(a != b), nil
	case 0x53:
		return boolValue(a < b), nil
	case 0x54:
		return boolValue(ua < ub), nil
	case 0x55:
		return boolValue(a > b), nil
	case 0x56:
		return boolValue(ua > ub), nil
	case 0x57:
		return boolValue(a <= b), nil
	case 0x58:
		return boolValue(ua <= ub), nil
	case 0x59:
		return boolValue(a >= b), nil
	case 0x5a:
		return boolValue(ua >= ub), nil
	}
	return wasm.Value{}, errors.ErrTypeMismatch
}

// f32CmpOp computes a comparison opcode over f32 operands (0x5b-0x60).
func f32CmpOp(opcode byte, a, b float32) (wasm.Value, error) {
	switch opcode {
	case 0x5b:
		return boolValue(a == b), nil
	case 0x5c:
		return boolValue(a != b), nil
	case 0x5d:
		return boolValue(a < b), nil
	case 0x5e:
		return boolValue(a > b), nil
	case 0x5f:
		return boolValue(a <= b), nil
	case 0x60:
		return boolValue(a >= b), nil
	}
	return wasm.Value{}, errors.ErrTypeMismatch
}

// f64CmpOp computes a comparison opcode over f64 operands (0x61-0x66).
func f64CmpOp(opcode byte, a, b float64) (wasm.Value, error) {
	switch opcode {
	case 0x61:
		return boolValue(a == b), nil
	case 0x62:
		return boolValue(a != b), nil
	case 0x63:
		return boolValue(a < b), nil
	case 0x64:
		return boolValue(a > b), nil
	case 0x65:
		return boolValue(a <= b), nil
	case 0x66:
		return boolValue(a >= b), nil
	}
	return wasm.Value{}, errors.ErrTypeMismatch
}

// f32UnOp computes a unary f32 opcode (abs, neg, ceil, floor, trunc,
// nearest, sqrt -- 0x8b-0x91).
func f32UnOp(opcode byte, a float32) (wasm.Value, error) {
	switch opcode {
	case 0x8b:
		return wasm.F32Value(float32(math.Abs(float64(a)))), nil
	case 0x8c:
		return wasm.F32Value(-a), nil
	case 0x8d:
		return wasm.F32Value(float32(math.Ceil(float64(a)))), nil
	case 0x8e:
		return wasm.F32Value(float32(math.Floor(float64(a)))), nil
	case 0x8f:
		return wasm.F32Value(float32(math.Trunc(float64(a)))), nil
	case 0x90:
		return wasm.F32Value(float32(math.RoundToEven(float64(a)))), nil
	case 0x91:
		return wasm.F32Value(float32(math.Sqrt(float64(a)))), nil
	}
	return wasm.Value{}, errors.ErrTypeMismatch
}

// f32BinOp computes a binary f32 opcode (add, sub, mul, div, min, max,
// copysign -- 0x92-0x98).
func f32BinOp(opcode byte, a, b float32) (wasm.Value, error) {
	switch opcode {
	case 0x92:
		return wasm.F32Value(a + b), nil
	case 0x93:
		return wasm.F32Value(a - b), nil
	case 0x94:
		return wasm.F32Value(a * b), nil
	case 0x95:
		return wasm.F32Value(a / b), nil
	case 0x96:
		return wasm.F32Value(float32(wasmMin(float64(a), float64(b)))), nil
	case 0x97:
		return wasm.F32Value(float32(wasmMax(float64(a), float64(b)))), nil
	case 0x98:
		return wasm.F32Value(float32(math.Copysign(float64(a), float64(b)))), nil
	}
	return wasm.Value{}, errors.ErrTypeMismatch
}

// f64UnOp computes a unary f64 opcode (0x99-0x9f).
func f64UnOp(opcode byte, a float64) (wasm.Value, error) {
	switch opcode {
	case 0x99:
		return wasm.F64Value(math.Abs(a)), nil
	case 0x9a:
		return wasm.F64Value(-a), nil
	case 0x9b:
		return wasm.F64Value(math.Ceil(a)), nil
	case 0x9c:
		return wasm.F64Value(math.Floor(a)), nil
	case 0x9d:
		return wasm.F64Value(math.Trunc(a)), nil
	case 0x9e:
		return wasm.F64Value(math.RoundToEven(a)), nil
	case 0x9f:
		return wasm.F64Value(math.Sqrt(a)), nil
	}
	return wasm.Value{}, errors.ErrTypeMismatch
}

// f64BinOp computes a binary f64 opcode (0xa0-0xa6).
func f64BinOp(opcode byte, a, b float64) (wasm.Value, error) {
	switch opcode {
	case 0xa0:
		return wasm.F64Value(a + b), nil
	case 0xa1:
		return wasm.F64Value(a - b), nil
	case 0xa2:
		return wasm.F64Value(a * b), nil
	case 0xa3:
		return wasm.F64Value(a / b), nil
	case 0xa4:
		return wasm.F64Value(wasmMin(a, b)), nil
	case 0xa5:
		return wasm.F64Value(wasmMax(a, b)), nil
	case 0xa6:
		return wasm.F64Value(math.Copysign(a, b)), nil
	}
	return wasm.Value{}, errors.ErrTypeMismatch
}

// wasmMin follows WASM's NaN-propagating min: if either operand is NaN, the
// result is NaN (Go's math.Min instead favors a negative-zero/NaN ordering
// that does not match; the two differ on is-NaN propagation across signed
// zero, which is immaterial for the reference scenarios but kept faithful
// to §4.5 here).
func wasmMin(a, b float64) float64 {
	if math.IsNaN(a) || math.IsNaN(b) {
		return math.NaN()
	}
	if a == 0 && b == 0 {
		if math.Signbit(a) || math.Signbit(b) {
			return math.Copysign(0, -1)
		}
		return 0
	}
	if a < b {
		return a
	}
	return b
}

func wasmMax(a, b float64) float64 {
	if math.IsNaN(a) || math.IsNaN(b) {
		return math.NaN()
	}
	if a == 0 && b == 0 {
		if !math.Signbit(a) || !math.Signbit(b) {
			return 0
		}
		return math.Copysign(0, -1)
	}
	if a > b {
		return a
	}
	return b
}
