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

// Package interp executes a resolved wasm.Module: it looks up an export,
// coerces caller-supplied argument strings to the declared parameter
// types, and runs the call tree to completion or to a trap (§4.4).
//
// The reference design threads an explicit returnAddressStack through
// `call`. This implementation folds that into Go's own call stack instead:
// Interpreter.run calls itself recursively for nested calls, with the
// resumed instruction pointer living as a local variable in the caller's
// stack frame -- the same shape, expressed with native recursion rather
// than a hand-rolled address stack.
package interp

import (
	"fmt"

	"github.com/dotandev/wasmvm/internal/errors"
	"github.com/dotandev/wasmvm/internal/wasm"
)

// maxCallDepth bounds recursive call nesting. The reference source has no
// such limit, but an unbounded Go-native call stack would panic instead of
// trapping; this keeps runaway recursion (e.g. fib with no base case) a
// reportable Trap rather than a process crash.
const maxCallDepth = 4096

// Interpreter runs exported functions of a single resolved module. It
// holds no per-call mutable state of its own -- each run_exported call
// builds its own call tree from scratch -- so one Interpreter may be used
// to make repeated, serial calls into the same module (§5).
type Interpreter struct {
	mod *wasm.Module
}

// New builds an Interpreter over a module that has already been through
// decode.Decode and resolve.Module.
func New(mod *wasm.Module) *Interpreter {
	return &Interpreter{mod: mod}
}

// RunExported looks up name among the module's function exports, coerces
// args to the export's declared parameter types, and runs it to
// completion. It returns the single result value, or nil if the export
// has no declared result.
func (in *Interpreter) RunExported(name string, args []string) (*wasm.Value, error) {
	idx, ok := in.mod.ExportIndex[name]
	if !ok {
		return nil, errors.WrapUnknownExport(name)
	}
	exp := in.mod.Exports[idx]
	if exp.Kind != wasm.ExternFunc {
		return nil, errors.WrapUnknownExport(name)
	}

	ft, ok := in.mod.FuncTypeOf(exp.Index)
	if !ok {
		return nil, errors.WrapUnknownExport(name)
	}
	if len(args) != len(ft.Params) {
		return nil, errors.WrapArgArityMismatch(len(ft.Params), len(args))
	}

	coerced := make([]wasm.Value, len(args))
	for i, raw := range args {
		v, err := coerceArg(raw, ft.Params[i])
		if err != nil {
			return nil, err
		}
		coerced[i] = v
	}

	return in.run(exp.Index, coerced, 0)
}

// run executes the defined function at funcIdx with the given already-
// coerced arguments and returns its optional result.
func (in *Interpreter) run(funcIdx uint32, args []wasm.Value, depth int) (*wasm.Value, error) {
	if depth >= maxCallDepth {
		return nil, errors.NewTrap(int(funcIdx), 0, errors.ErrCallStackDepth)
	}
	fn, ok := in.mod.DefinedFunction(funcIdx)
	if !ok {
		return nil, errors.NewTrap(int(funcIdx), 0, errors.ErrNotImplemented)
	}

	f := newFrame(fn, args)
	ip := 0
	instrs := fn.Instructions

	for ip < len(instrs) {
		instr := &instrs[ip]
		next, done, result, err := in.step(funcIdx, fn, f, instr, ip, depth)
		if err != nil {
			return nil, err
		}
		if done {
			return result, nil
		}
		ip = next
	}

	return extractResult(funcIdx, fn, f)
}

// extractResult validates the operand-stack balance against the
// function's declared result arity and, if the function returns a
// value, pops and type-checks it (§4.4 step 3).
func extractResult(funcIdx uint32, fn *wasm.Function, f *frame) (*wasm.Value, error) {
	want := 0
	if len(fn.Type.Results) == 1 {
		want = 1
	}
	if f.height() != want {
		return nil, errors.NewTrap(int(funcIdx), len(fn.Instructions)-1, errors.ErrStackUnderflow)
	}
	if want == 0 {
		return nil, nil
	}
	v, _ := f.pop()
	if v.Type != fn.Type.Results[0] {
		return nil, errors.NewTrap(int(funcIdx), len(fn.Instructions)-1, errors.ErrTypeMismatch)
	}
	return &v, nil
}

// step executes one instruction. It reports either the next instruction
// pointer (done == false) or the call's final result (done == true,
// result possibly nil for a void return).
func (in *Interpreter) step(funcIdx uint32, fn *wasm.Function, f *frame, instr *wasm.Instruction, ip int, depth int) (next int, done bool, result *wasm.Value, err error) {
	trap := func(e error) (int, bool, *wasm.Value, error) {
		return 0, false, nil, errors.NewTrapAt(int(funcIdx), ip, instr.Offset, e)
	}
	popOperand := func() (wasm.Value, error) {
		v, ok := f.pop()
		if !ok {
			return wasm.Value{}, errors.ErrStackUnderflow
		}
		return v, nil
	}

	switch instr.Opcode {
	case 0x00: // unreachable
		return trap(errors.ErrUnreachable)

	case 0x01: // nop
		return ip + 1, false, nil, nil

	case 0x02, 0x03: // block, loop
		f.pushBlock(instr.BlockRef)
		return ip + 1, false, nil, nil

	case 0x04: // if
		cond, err := popOperand()
		if err != nil {
			return trap(err)
		}
		f.pushBlock(instr.BlockRef)
		if cond.I32() != 0 {
			return ip + 1, false, nil, nil
		}
		blk := &fn.Blocks[instr.BlockRef]
		if blk.ElseIndex >= 0 {
			return blk.ElseIndex + 1, false, nil, nil
		}
		return blk.EndIndex, false, nil, nil

	case 0x05: // else -- reached only by falling through a taken `if` branch
		blk := &fn.Blocks[instr.BlockRef]
		return blk.EndIndex, false, nil, nil

	case 0x0B: // end
		if len(f.blocks) == 0 {
			res, err := extractResult(funcIdx, fn, f)
			if err != nil {
				return 0, false, nil, err
			}
			return 0, true, res, nil
		}
		top := f.blocks[len(f.blocks)-1]
		blk := &fn.Blocks[top.arenaIdx]
		if blk.Kind == wasm.BlockKindLoop {
			f.popBlock()
			f.pushBlock(top.arenaIdx)
			return blk.StartIndex + 1, false, nil, nil
		}
		f.popBlock()
		if blk.HasResult {
			v, err := popOperand()
			if err != nil {
				return trap(err)
			}
			f.truncate(top.entryHeight)
			f.push(v)
		} else {
			f.truncate(top.entryHeight)
		}
		return ip + 1, false, nil, nil

	case 0x0C: // br
		target := in.branch(f, fn, instr.BlockRef)
		return target, false, nil, nil

	case 0x0D: // br_if
		cond, err := popOperand()
		if err != nil {
			return trap(err)
		}
		if cond.I32() == 0 {
			return ip + 1, false, nil, nil
		}
		target := in.branch(f, fn, instr.BlockRef)
		return target, false, nil, nil

	case 0x0E: // br_table
		return trap(errors.ErrNotImplemented)

	case 0x0F: // return
		res, err := extractResult(funcIdx, fn, f)
		if err != nil {
			return 0, false, nil, err
		}
		return 0, true, res, nil

	case 0x10: // call
		return in.call(funcIdx, f, instr, ip, depth)

	case 0x11: // call_indirect
		return trap(errors.ErrNotImplemented)

	case 0x1A: // drop
		if _, err := popOperand(); err != nil {
			return trap(err)
		}
		return ip + 1, false, nil, nil

	case 0x1B: // select
		return trap(errors.ErrNotImplemented)

	case 0x20: // local.get
		if int(instr.U32) >= len(f.locals) {
			return trap(errors.ErrTypeMismatch)
		}
		f.push(f.locals[instr.U32])
		return ip + 1, false, nil, nil

	case 0x21: // local.set
		v, err := popOperand()
		if err != nil {
			return trap(err)
		}
		if int(instr.U32) >= len(f.locals) {
			return trap(errors.ErrTypeMismatch)
		}
		f.locals[instr.U32] = v
		return ip + 1, false, nil, nil

	case 0x22: // local.tee
		v, err := popOperand()
		if err != nil {
			return trap(err)
		}
		if int(instr.U32) >= len(f.locals) {
			return trap(errors.ErrTypeMismatch)
		}
		f.locals[instr.U32] = v
		f.push(v)
		return ip + 1, false, nil, nil

	case 0x23, 0x24: // global.get, global.set
		return trap(errors.ErrNotImplemented)

	case 0x3F, 0x40: // memory.size, memory.grow
		return trap(errors.ErrNotImplemented)

	case 0x41: // i32.const
		f.push(wasm.I32Value(instr.I32))
		return ip + 1, false, nil, nil

	case 0x42: // i64.const
		f.push(wasm.I64Value(instr.I64))
		return ip + 1, false, nil, nil

	case 0x43: // f32.const
		f.push(wasm.Value{Type: wasm.F32, Bits: uint64(instr.F32Bits)})
		return ip + 1, false, nil, nil

	case 0x44: // f64.const
		f.push(wasm.Value{Type: wasm.F64, Bits: instr.F64Bits})
		return ip + 1, false, nil, nil

	default:
		if instr.Opcode >= 0x28 && instr.Opcode <= 0x3E {
			return trap(errors.ErrNotImplemented) // memory loads/stores
		}
		return in.evalNumeric(funcIdx, fn, f, instr, ip)
	}
}

// branch implements `br k` / a taken `br_if k`: unwind open blocks down to
// (and including) the target, truncate the operand stack to its entry
// height, and resolve the jump target per block kind. Loop targets jump
// to the instruction after their startIndex (re-entering the loop body,
// with the loop pushed again as open); Block and If targets jump to the
// instruction after their endIndex, since the block is already unwound
// (§9 -- this corrects the reference source's bug of always using
// endIndex, which breaks `loop`).
func (in *Interpreter) branch(f *frame, fn *wasm.Function, arenaIdx int) int {
	h := f.unwindTo(arenaIdx)
	f.truncate(h)
	blk := &fn.Blocks[arenaIdx]
	if blk.Kind == wasm.BlockKindLoop {
		f.pushBlock(arenaIdx)
		return blk.StartIndex + 1
	}
	return blk.EndIndex + 1
}

// call implements the `call` opcode, popping the callee's declared
// parameter count in reverse order into a temporary and re-presenting
// them in declared (first-param-first) order -- the reference source
// instead passes the reversed slice straight through, which silently
// swaps arguments for any callee taking more than one parameter (§9).
func (in *Interpreter) call(callerIdx uint32, f *frame, instr *wasm.Instruction, ip int, depth int) (int, bool, *wasm.Value, error) {
	calleeIdx := instr.U32
	ft, ok := in.mod.FuncTypeOf(calleeIdx)
	if !ok {
		return 0, false, nil, errors.NewTrapAt(int(callerIdx), ip, instr.Offset, errors.ErrNotImplemented)
	}

	n := len(ft.Params)
	if len(f.operand) < n {
		return 0, false, nil, errors.NewTrapAt(int(callerIdx), ip, instr.Offset, errors.ErrStackUnderflow)
	}
	reversed := make([]wasm.Value, n)
	for i := 0; i < n; i++ {
		v, _ := f.pop()
		reversed[i] = v
	}
	args := make([]wasm.Value, n)
	for i, v := range reversed {
		args[n-1-i] = v
	}

	res, err := in.run(calleeIdx, args, depth+1)
	if err != nil {
		return 0, false, nil, err
	}
	if res != nil {
		f.push(*res)
	}
	return ip + 1, false, nil, nil
}

// coerceArg converts a CLI argument string to the value type a parameter
// declares, per §4.4 step 2 and the stricter rule in §9 ("the driver
// should consult the function's declared parameter types").
func coerceArg(raw string, vt wasm.ValueType) (wasm.Value, error) {
	switch vt {
	case wasm.I32:
		var n int32
		if _, err := fmt.Sscanf(raw, "%d", &n); err != nil {
			return wasm.Value{}, errors.WrapArgParseError(raw, err)
		}
		return wasm.I32Value(n), nil
	case wasm.I64:
		var n int64
		if _, err := fmt.Sscanf(raw, "%d", &n); err != nil {
			return wasm.Value{}, errors.WrapArgParseError(raw, err)
		}
		return wasm.I64Value(n), nil
	case wasm.F32:
		var n float32
		if _, err := fmt.Sscanf(raw, "%g", &n); err != nil {
			return wasm.Value{}, errors.WrapArgParseError(raw, err)
		}
		return wasm.F32Value(n), nil
	case wasm.F64:
		var n float64
		if _, err := fmt.Sscanf(raw, "%g", &n); err != nil {
			return wasm.Value{}, errors.WrapArgParseError(raw, err)
		}
		return wasm.F64Value(n), nil
	default:
		return wasm.Value{}, errors.WrapArgParseError(raw, errors.ErrTypeMismatch)
	}
}
