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

package resolve

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dotandev/wasmvm/internal/errors"
	"github.com/dotandev/wasmvm/internal/wasm"
)

func instr(opcode byte, kind wasm.InstrKind) wasm.Instruction {
	return wasm.Instruction{Opcode: opcode, Kind: kind, BlockRef: -1}
}

// A block wrapping a br 0: block ... br 0 ... end
func TestResolveBlockAndBranch(t *testing.T) {
	fn := &wasm.Function{
		Instructions: []wasm.Instruction{
			instr(0x02, wasm.PayloadBlockType), // 0: block
			{Opcode: 0x0C, Kind: wasm.PayloadU32, U32: 0, BlockRef: -1}, // 1: br 0
			instr(0x0B, wasm.PayloadNone),       // 2: end (closes block)
			instr(0x0B, wasm.PayloadNone),       // 3: end (function)
		},
	}
	err := Module(&wasm.Module{CodeBodies: []wasm.Function{*fn}})
	require.NoError(t, err)
}

func TestResolveLoopBranchTargetsStart(t *testing.T) {
	fn := wasm.Function{
		Instructions: []wasm.Instruction{
			instr(0x03, wasm.PayloadBlockType),                          // 0: loop
			{Opcode: 0x0C, Kind: wasm.PayloadU32, U32: 0, BlockRef: -1},  // 1: br 0
			instr(0x0B, wasm.PayloadNone),                                // 2: end (closes loop)
			instr(0x0B, wasm.PayloadNone),                                // 3: end (function)
		},
	}
	m := &wasm.Module{CodeBodies: []wasm.Function{fn}}
	require.NoError(t, Module(m))

	resolved := m.CodeBodies[0]
	brRef := resolved.Instructions[1].BlockRef
	require.GreaterOrEqual(t, brRef, 0)
	blk := resolved.Blocks[brRef]
	assert.Equal(t, wasm.BlockKindLoop, blk.Kind)
	assert.Equal(t, 0, blk.StartIndex)
	assert.Equal(t, 2, blk.EndIndex)
}

func TestResolveIfElse(t *testing.T) {
	fn := wasm.Function{
		Instructions: []wasm.Instruction{
			instr(0x04, wasm.PayloadBlockType), // 0: if
			instr(0x05, wasm.PayloadNone),       // 1: else
			instr(0x0B, wasm.PayloadNone),       // 2: end (closes if)
			instr(0x0B, wasm.PayloadNone),       // 3: end (function)
		},
	}
	m := &wasm.Module{CodeBodies: []wasm.Function{fn}}
	require.NoError(t, Module(m))

	blk := m.CodeBodies[0].Blocks[0]
	assert.Equal(t, wasm.BlockKindIf, blk.Kind)
	assert.Equal(t, 1, blk.ElseIndex)
	assert.Equal(t, 2, blk.EndIndex)
}

func TestResolveElseWithoutIf(t *testing.T) {
	fn := wasm.Function{
		Instructions: []wasm.Instruction{
			instr(0x05, wasm.PayloadNone), // else with nothing open
			instr(0x0B, wasm.PayloadNone),
		},
	}
	m := &wasm.Module{CodeBodies: []wasm.Function{fn}}
	err := Module(m)
	require.Error(t, err)
	assert.ErrorIs(t, err, errors.ErrElseWithoutIf)
}

func TestResolveDuplicateElse(t *testing.T) {
	fn := wasm.Function{
		Instructions: []wasm.Instruction{
			instr(0x04, wasm.PayloadBlockType),
			instr(0x05, wasm.PayloadNone),
			instr(0x05, wasm.PayloadNone),
			instr(0x0B, wasm.PayloadNone),
			instr(0x0B, wasm.PayloadNone),
		},
	}
	m := &wasm.Module{CodeBodies: []wasm.Function{fn}}
	err := Module(m)
	require.Error(t, err)
	assert.ErrorIs(t, err, errors.ErrDuplicateElse)
}

func TestResolveBranchDepthOutOfRange(t *testing.T) {
	fn := wasm.Function{
		Instructions: []wasm.Instruction{
			instr(0x02, wasm.PayloadBlockType),
			{Opcode: 0x0C, Kind: wasm.PayloadU32, U32: 5, BlockRef: -1}, // br 5, no such ancestor
			instr(0x0B, wasm.PayloadNone),
			instr(0x0B, wasm.PayloadNone),
		},
	}
	m := &wasm.Module{CodeBodies: []wasm.Function{fn}}
	err := Module(m)
	require.Error(t, err)
	assert.ErrorIs(t, err, errors.ErrBranchDepthOutOfRange)
}

func TestResolveUnmatchedEnd(t *testing.T) {
	fn := wasm.Function{
		Instructions: []wasm.Instruction{
			instr(0x02, wasm.PayloadBlockType), // block opened, never closed by an end
		},
	}
	m := &wasm.Module{CodeBodies: []wasm.Function{fn}}
	err := Module(m)
	require.Error(t, err)
	assert.ErrorIs(t, err, errors.ErrUnmatchedEnd)
}

func TestResolveReturnTargetsFinalEnd(t *testing.T) {
	fn := wasm.Function{
		Instructions: []wasm.Instruction{
			instr(0x0F, wasm.PayloadNone), // 0: return
			instr(0x0B, wasm.PayloadNone), // 1: end (function)
		},
	}
	m := &wasm.Module{CodeBodies: []wasm.Function{fn}}
	require.NoError(t, Module(m))
	assert.Equal(t, 1, m.CodeBodies[0].Instructions[0].ReturnTarget)
}
