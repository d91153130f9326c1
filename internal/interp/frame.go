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

import "github.com/dotandev/wasmvm/internal/wasm"

// openBlock is a live entry on a frame's block-height stack: the arena
// index of the Block record it belongs to, and the operand-stack height
// recorded when the block was entered (§4.4).
type openBlock struct {
	arenaIdx    int
	entryHeight int
}

// frame is one activation record: locals, the operand stack, and the
// stack of currently-open blocks. Frames are owned exclusively by the
// call that created them and are never shared (§5).
type frame struct {
	fn      *wasm.Function
	locals  []wasm.Value
	operand []wasm.Value
	blocks  []openBlock
}

func newFrame(fn *wasm.Function, args []wasm.Value) *frame {
	locals := make([]wasm.Value, len(fn.Type.Params)+fn.NumLocals())
	copy(locals, args)
	for i := len(args); i < len(locals); i++ {
		locals[i] = wasm.ZeroValue(fn.LocalType(i - len(args)))
	}
	return &frame{fn: fn, locals: locals}
}

func (f *frame) push(v wasm.Value) {
	f.operand = append(f.operand, v)
}

func (f *frame) pop() (wasm.Value, bool) {
	if len(f.operand) == 0 {
		return wasm.Value{}, false
	}
	v := f.operand[len(f.operand)-1]
	f.operand = f.operand[:len(f.operand)-1]
	return v, true
}

func (f *frame) height() int {
	return len(f.operand)
}

func (f *frame) truncate(h int) {
	f.operand = f.operand[:h]
}

// pushBlock records entry into a block/loop/if at the given arena index.
func (f *frame) pushBlock(arenaIdx int) {
	f.blocks = append(f.blocks, openBlock{arenaIdx: arenaIdx, entryHeight: f.height()})
}

// popBlock removes the innermost open block, returning its record.
func (f *frame) popBlock() openBlock {
	top := f.blocks[len(f.blocks)-1]
	f.blocks = f.blocks[:len(f.blocks)-1]
	return top
}

// unwindTo pops open blocks down to and including the one at arenaIdx,
// returning its entry height. arenaIdx must currently be open.
func (f *frame) unwindTo(arenaIdx int) int {
	for i := len(f.blocks) - 1; i >= 0; i-- {
		if f.blocks[i].arenaIdx == arenaIdx {
			h := f.blocks[i].entryHeight
			f.blocks = f.blocks[:i]
			return h
		}
	}
	return 0
}
