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

	"github.com/dotandev/wasmvm/internal/errors"
	"github.com/dotandev/wasmvm/internal/wasm"
)

// evalNumeric handles every no-immediate opcode in 0x45-0xBF: eqz,
// comparisons, arithmetic, bitwise ops and conversions, each polymorphic
// over its operand type but dispatched once here at the opcode level
// (§9, "polymorphic numeric operations").
func (in *Interpreter) evalNumeric(funcIdx uint32, fn *wasm.Function, f *frame, instr *wasm.Instruction, ip int) (int, bool, *wasm.Value, error) {
	trap := func(e error) (int, bool, *wasm.Value, error) {
		return 0, false, nil, errors.NewTrapAt(int(funcIdx), ip, instr.Offset, e)
	}
	pop := func() (wasm.Value, error) {
		v, ok := f.pop()
		if !ok {
			return wasm.Value{}, errors.ErrStackUnderflow
		}
		return v, nil
	}
	pop2 := func() (wasm.Value, wasm.Value, error) {
		b, err := pop()
		if err != nil {
			return wasm.Value{}, wasm.Value{}, err
		}
		a, err := pop()
		if err != nil {
			return wasm.Value{}, wasm.Value{}, err
		}
		return a, b, nil
	}

	op := instr.Opcode
	switch {
	case op == 0x45: // i32.eqz
		a, err := pop()
		if err != nil {
			return trap(err)
		}
		f.push(boolValue(a.I32() == 0))
		return ip + 1, false, nil, nil

	case op >= 0x46 && op <= 0x4f: // i32 comparisons
		a, b, err := pop2()
		if err != nil {
			return trap(err)
		}
		res, err := i32CmpOp(op, a.I32(), b.I32())
		if err != nil {
			return trap(err)
		}
		f.push(res)
		return ip + 1, false, nil, nil

	case op == 0x50: // i64.eqz
		a, err := pop()
		if err != nil {
			return trap(err)
		}
		f.push(boolValue(a.I64() == 0))
		return ip + 1, false, nil, nil

	case op >= 0x51 && op <= 0x5a: // i64 comparisons
		a, b, err := pop2()
		if err != nil {
			return trap(err)
		}
		res, err := i64CmpOp(op, a.I64(), b.I64())
		if err != nil {
			return trap(err)
		}
		f.push(res)
		return ip + 1, false, nil, nil

	case op >= 0x5b && op <= 0x60: // f32 comparisons
		a, b, err := pop2()
		if err != nil {
			return trap(err)
		}
		res, err := f32CmpOp(op, a.F32(), b.F32())
		if err != nil {
			return trap(err)
		}
		f.push(res)
		return ip + 1, false, nil, nil

	case op >= 0x61 && op <= 0x66: // f64 comparisons
		a, b, err := pop2()
		if err != nil {
			return trap(err)
		}
		res, err := f64CmpOp(op, a.F64(), b.F64())
		if err != nil {
			return trap(err)
		}
		f.push(res)
		return ip + 1, false, nil, nil

	case op >= 0x67 && op <= 0x69: // i32 clz/ctz/popcnt
		a, err := pop()
		if err != nil {
			return trap(err)
		}
		res, err := i32UnOp(op, a.I32())
		if err != nil {
			return trap(err)
		}
		f.push(res)
		return ip + 1, false, nil, nil

	case op >= 0x6a && op <= 0x78: // i32 arithmetic/bitwise
		a, b, err := pop2()
		if err != nil {
			return trap(err)
		}
		res, err := i32BinOp(op, a.I32(), b.I32())
		if err != nil {
			return trap(err)
		}
		f.push(res)
		return ip + 1, false, nil, nil

	case op >= 0x79 && op <= 0x7b: // i64 clz/ctz/popcnt
		a, err := pop()
		if err != nil {
			return trap(err)
		}
		res, err := i64UnOp(op, a.I64())
		if err != nil {
			return trap(err)
		}
		f.push(res)
		return ip + 1, false, nil, nil

	case op >= 0x7c && op <= 0x8a: // i64 arithmetic/bitwise
		a, b, err := pop2()
		if err != nil {
			return trap(err)
		}
		res, err := i64BinOp(op, a.I64(), b.I64())
		if err != nil {
			return trap(err)
		}
		f.push(res)
		return ip + 1, false, nil, nil

	case op >= 0x8b && op <= 0x91: // f32 unary
		a, err := pop()
		if err != nil {
			return trap(err)
		}
		res, err := f32UnOp(op, a.F32())
		if err != nil {
			return trap(err)
		}
		f.push(res)
		return ip + 1, false, nil, nil

	case op >= 0x92 && op <= 0x98: // f32 binary
		a, b, err := pop2()
		if err != nil {
			return trap(err)
		}
		res, err := f32BinOp(op, a.F32(), b.F32())
		if err != nil {
			return trap(err)
		}
		f.push(res)
		return ip + 1, false, nil, nil

	case op >= 0x99 && op <= 0x9f: // f64 unary
		a, err := pop()
		if err != nil {
			return trap(err)
		}
		res, err := f64UnOp(op, a.F64())
		if err != nil {
			return trap(err)
		}
		f.push(res)
		return ip + 1, false, nil, nil

	case op >= 0xa0 && op <= 0xa6: // f64 binary
		a, b, err := pop2()
		if err != nil {
			return trap(err)
		}
		res, err := f64BinOp(op, a.F64(), b.F64())
		if err != nil {
			return trap(err)
		}
		f.push(res)
		return ip + 1, false, nil, nil

	case op >= 0xa7 && op <= 0xbf: // conversions
		a, err := pop()
		if err != nil {
			return trap(err)
		}
		res, err := convert(op, a)
		if err != nil {
			return trap(err)
		}
		f.push(res)
		return ip + 1, false, nil, nil
	}

	return trap(errors.ErrUnreachable)
}

// convert implements the §4.5 numeric conversions. wrap_i64 and the
// sign-/zero-extending i32-to-i64 promotions are required by the
// reference scenarios; the remaining truncations, float widenings and
// bit reinterpretations are implemented faithfully from their IEEE-754
// and two's-complement definitions even though the source leaves most of
// them TODO (§9).
func convert(op byte, a wasm.Value) (wasm.Value, error) {
	switch op {
	case 0xA7: // i32.wrap_i64
		return wasm.I32Value(int32(a.I64())), nil
	case 0xA8: // i32.trunc_f32_s
		return truncToI32(float64(a.F32()), true)
	case 0xA9: // i32.trunc_f32_u
		return truncToI32(float64(a.F32()), false)
	case 0xAA: // i32.trunc_f64_s
		return truncToI32(a.F64(), true)
	case 0xAB: // i32.trunc_f64_u
		return truncToI32(a.F64(), false)
	case 0xAC: // i64.extend_i32_s
		return wasm.I64Value(int64(a.I32())), nil
	case 0xAD: // i64.extend_i32_u
		return wasm.I64Value(int64(a.U32())), nil
	case 0xAE: // i64.trunc_f32_s
		return truncToI64(float64(a.F32()), true)
	case 0xAF: // i64.trunc_f32_u
		return truncToI64(float64(a.F32()), false)
	case 0xB0: // i64.trunc_f64_s
		return truncToI64(a.F64(), true)
	case 0xB1: // i64.trunc_f64_u
		return truncToI64(a.F64(), false)
	case 0xB2: // f32.convert_i32_s
		return wasm.F32Value(float32(a.I32())), nil
	case 0xB3: // f32.convert_i32_u
		return wasm.F32Value(float32(a.U32())), nil
	case 0xB4: // f32.convert_i64_s
		return wasm.F32Value(float32(a.I64())), nil
	case 0xB5: // f32.convert_i64_u
		return wasm.F32Value(float32(a.U64())), nil
	case 0xB6: // f32.demote_f64
		return wasm.F32Value(float32(a.F64())), nil
	case 0xB7: // f64.convert_i32_s
		return wasm.F64Value(float64(a.I32())), nil
	case 0xB8: // f64.convert_i32_u
		return wasm.F64Value(float64(a.U32())), nil
	case 0xB9: // f64.convert_i64_s
		return wasm.F64Value(float64(a.I64())), nil
	case 0xBA: // f64.convert_i64_u
		return wasm.F64Value(float64(a.U64())), nil
	case 0xBB: // f64.promote_f32
		return wasm.F64Value(float64(a.F32())), nil
	case 0xBC: // i32.reinterpret_f32
		return wasm.Value{Type: wasm.I32, Bits: a.Bits & 0xFFFFFFFF}, nil
	case 0xBD: // i64.reinterpret_f64
		return wasm.Value{Type: wasm.I64, Bits: a.Bits}, nil
	case 0xBE: // f32.reinterpret_i32
		return wasm.Value{Type: wasm.F32, Bits: a.Bits & 0xFFFFFFFF}, nil
	case 0xBF: // f64.reinterpret_i64
		return wasm.Value{Type: wasm.F64, Bits: a.Bits}, nil
	}
	return wasm.Value{}, errors.ErrNotImplemented
}

func truncToI32(f float64, signed bool) (wasm.Value, error) {
	if math.IsNaN(f) {
		return wasm.Value{}, errors.ErrIntegerOverflow
	}
	t := math.Trunc(f)
	if signed {
		if t < math.MinInt32 || t > math.MaxInt32 {
			return wasm.Value{}, errors.ErrIntegerOverflow
		}
		return wasm.I32Value(int32(t)), nil
	}
	if t < 0 || t > math.MaxUint32 {
		return wasm.Value{}, errors.ErrIntegerOverflow
	}
	return wasm.I32Value(int32(uint32(t))), nil
}

func truncToI64(f float64, signed bool) (wasm.Value, error) {
	if math.IsNaN(f) {
		return wasm.Value{}, errors.ErrIntegerOverflow
	}
	t := math.Trunc(f)
	if signed {
		if t < math.MinInt64 || t >= math.MaxInt64 {
			return wasm.Value{}, errors.ErrIntegerOverflow
		}
		return wasm.I64Value(int64(t)), nil
	}
	if t < 0 || t >= math.MaxUint64 {
		return wasm.Value{}, errors.ErrIntegerOverflow
	}
	return wasm.I64Value(int64(uint64(t))), nil
}
