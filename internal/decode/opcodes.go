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

package decode

import "github.com/dotandev/wasmvm/internal/wasm"

// Opcodes in use, named for readability at call sites; the full 0x00..0xBF
// catalogue is handled by payloadKind below even where no constant exists.
const (
	opUnreachable   = 0x00
	opNop           = 0x01
	opBlock         = 0x02
	opLoop          = 0x03
	opIf            = 0x04
	opElse          = 0x05
	opEnd           = 0x0B
	opBr            = 0x0C
	opBrIf          = 0x0D
	opBrTable       = 0x0E
	opReturn        = 0x0F
	opCall          = 0x10
	opCallIndirect  = 0x11
	opDrop          = 0x1A
	opSelect        = 0x1B
	opLocalGet      = 0x20
	opLocalSet      = 0x21
	opLocalTee      = 0x22
	opGlobalGet     = 0x23
	opGlobalSet     = 0x24
	opMemLoadFirst  = 0x28
	opMemLoadLast   = 0x35
	opMemStoreFirst = 0x36
	opMemStoreLast  = 0x3E
	opMemorySize    = 0x3F
	opMemoryGrow    = 0x40
	opI32Const      = 0x41
	opI64Const      = 0x42
	opF32Const      = 0x43
	opF64Const      = 0x44
)

// payloadKind classifies the payload shape of every opcode in the 0x00-0xBF
// catalogue named in §6. Opcodes not present in this map are unknown and
// fail decoding with ErrUnknownOpcode.
var payloadKind = buildPayloadKindTable()

func buildPayloadKindTable() map[byte]wasm.InstrKind {
	t := make(map[byte]wasm.InstrKind, 256)

	none := []byte{
		opUnreachable, opNop, opElse, opEnd, opReturn, opDrop, opSelect,
	}
	for _, op := range none {
		t[op] = wasm.PayloadNone
	}

	blockType := []byte{opBlock, opLoop, opIf}
	for _, op := range blockType {
		t[op] = wasm.PayloadBlockType
	}

	u32 := []byte{
		opBr, opBrIf, opCall,
		opLocalGet, opLocalSet, opLocalTee, opGlobalGet, opGlobalSet,
		opMemorySize, opMemoryGrow,
	}
	for _, op := range u32 {
		t[op] = wasm.PayloadU32
	}

	t[opBrTable] = wasm.PayloadBrTable
	t[opCallIndirect] = wasm.PayloadCallIndirect
	t[opI32Const] = wasm.PayloadI32Const
	t[opI64Const] = wasm.PayloadI64Const
	t[opF32Const] = wasm.PayloadF32Const
	t[opF64Const] = wasm.PayloadF64Const

	for op := byte(opMemLoadFirst); op <= opMemLoadLast; op++ {
		t[op] = wasm.PayloadMemArg
	}
	for op := byte(opMemStoreFirst); op <= opMemStoreLast; op++ {
		t[op] = wasm.PayloadMemArg
	}

	// i32/i64 comparisons and arithmetic, f32/f64 comparisons and
	// arithmetic, and the conversion block -- all take no immediate.
	for op := 0x45; op <= 0xBF; op++ {
		if _, exists := t[byte(op)]; !exists {
			t[byte(op)] = wasm.PayloadNone
		}
	}

	return t
}

// IsKnownOpcode reports whether op has a registered payload shape.
func IsKnownOpcode(op byte) bool {
	_, ok := payloadKind[op]
	return ok
}
