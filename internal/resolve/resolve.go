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

// Package resolve implements the second pass over a decoded module's
// function bodies: it builds each function's block tree and patches every
// control-flow instruction's payload to reference it directly, so the
// interpreter never has to search for a branch target at run time (§4.3).
package resolve

import (
	"github.com/dotandev/wasmvm/internal/errors"
	"github.com/dotandev/wasmvm/internal/wasm"
)

// Module walks every defined function in m and resolves its block tree in
// place. It is safe to call at most once per decoded module.
func Module(m *wasm.Module) error {
	for i := range m.CodeBodies {
		if err := function(&m.CodeBodies[i]); err != nil {
			return err
		}
	}
	return nil
}

// openBlock tracks a block while its body is being walked; it becomes a
// wasm.Block once `end` (or `else`) is seen.
type openBlock struct {
	arenaIdx int
}

// function resolves one function body's block tree and patches its
// instructions' BlockRef / ReturnTarget fields. Blocks are appended to
// fn.Blocks (the arena) as they open; parent links are arena indices, never
// pointers, so the arena stays a flat, freely-copyable slice.
func function(fn *wasm.Function) error {
	var stack []openBlock

	for i := range fn.Instructions {
		instr := &fn.Instructions[i]
		switch instr.Kind {
		case wasm.PayloadBlockType:
			kind := blockKindOf(instr.Opcode)
			parent := -1
			depth := 0
			if len(stack) > 0 {
				parent = stack[len(stack)-1].arenaIdx
				depth = fn.Blocks[parent].Depth + 1
			}
			// EntryHeight is left at its zero value: this pass has no static
			// type checker to compute it, so the interpreter tracks the live
			// operand-stack height on its own per-frame blockHeights stack
			// instead (§4.4) and this field is informational only.
			b := wasm.Block{
				Kind:       kind,
				Result:     instr.BlockType,
				HasResult:  instr.HasBlockResult,
				StartIndex: i,
				ElseIndex:  -1,
				EndIndex:   -1,
				Parent:     parent,
				Depth:      depth,
			}
			fn.Blocks = append(fn.Blocks, b)
			arenaIdx := len(fn.Blocks) - 1
			instr.BlockRef = arenaIdx
			stack = append(stack, openBlock{arenaIdx: arenaIdx})

		case wasm.PayloadNone:
			switch instr.Opcode {
			case 0x05: // else
				if len(stack) == 0 {
					return errors.WrapResolve(i, errors.ErrElseWithoutIf, "")
				}
				top := stack[len(stack)-1]
				blk := &fn.Blocks[top.arenaIdx]
				if blk.Kind != wasm.BlockKindIf {
					return errors.WrapResolve(i, errors.ErrElseWithoutIf, "")
				}
				if blk.ElseIndex != -1 {
					return errors.WrapResolve(i, errors.ErrDuplicateElse, "")
				}
				blk.ElseIndex = i
				instr.BlockRef = top.arenaIdx

			case 0x0B: // end
				// An end with nothing open closes the function body's implicit
				// scope; there is no Block record for it, so there is nothing
				// to patch here. The walk continues so the post-loop checks
				// below (unmatched blocks, return-target patching) still run.
				if len(stack) == 0 {
					continue
				}
				top := stack[len(stack)-1]
				stack = stack[:len(stack)-1]
				blk := &fn.Blocks[top.arenaIdx]
				blk.EndIndex = i
				instr.BlockRef = top.arenaIdx

			case 0x0F: // return
				// Patched once the function's final end is known, below.
			}

		case wasm.PayloadU32:
			switch instr.Opcode {
			case 0x0C, 0x0D: // br, br_if
				target, err := ancestorAt(fn, stack, int(instr.U32))
				if err != nil {
					return errors.WrapResolve(i, errors.ErrBranchDepthOutOfRange, "")
				}
				instr.BlockRef = target
			}
		}
	}

	if len(stack) != 0 {
		top := stack[len(stack)-1]
		return errors.WrapResolve(fn.Blocks[top.arenaIdx].StartIndex, errors.ErrUnmatchedEnd, "")
	}

	// Patch every `return` to the function body's final end, which is the
	// last instruction once the walk above has completed normally.
	finalEnd := len(fn.Instructions) - 1
	for i := range fn.Instructions {
		if fn.Instructions[i].Kind == wasm.PayloadNone && fn.Instructions[i].Opcode == 0x0F {
			fn.Instructions[i].ReturnTarget = finalEnd
		}
	}
	return nil
}

// ancestorAt resolves a relative branch depth to the arena index of the
// k-th enclosing open block, per §4.3.
func ancestorAt(fn *wasm.Function, stack []openBlock, k int) (int, error) {
	if k < 0 || k >= len(stack) {
		return -1, errors.ErrBranchDepthOutOfRange
	}
	return stack[len(stack)-1-k].arenaIdx, nil
}

func blockKindOf(opcode byte) wasm.BlockKind {
	switch opcode {
	case 0x03:
		return wasm.BlockKindLoop
	case 0x04:
		return wasm.BlockKindIf
	default:
		return wasm.BlockKindBlock
	}
}
