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

import (
	"fmt"

	"github.com/dotandev/wasmvm/internal/bytesource"
	"github.com/dotandev/wasmvm/internal/errors"
	"github.com/dotandev/wasmvm/internal/wasm"
)

// readInstructions decodes opcodes from src until a top-level `end` (depth
// zero). Nested blocks count toward the byte-length reconciliation but do
// not terminate the read early -- termination happens only when the
// running depth returns to zero after consuming an `end`. Init expressions
// (§4.2.5) never open a nested block, so the first `end` they contain is
// always the top-level one; this same loop decodes both them and full
// function bodies.
func (d *decoder) readInstructions(src *bytesource.ByteSource, _ bool) ([]wasm.Instruction, error) {
	var out []wasm.Instruction
	depth := 0
	for {
		if src.IsEOF() {
			return nil, errors.WrapDecode(src.Offset(), errors.ErrMissingEnd, "")
		}
		offset := src.Offset()
		opcode, err := src.ReadU8()
		if err != nil {
			return nil, err
		}

		kind, ok := payloadKind[opcode]
		if !ok {
			return nil, errors.WrapDecode(offset, errors.ErrUnknownOpcode, fmt.Sprintf("0x%02x", opcode))
		}

		instr := wasm.Instruction{Offset: offset, Opcode: opcode, Kind: kind, BlockRef: -1}
		if err := d.readPayload(src, &instr); err != nil {
			return nil, err
		}
		out = append(out, instr)

		switch opcode {
		case opBlock, opLoop, opIf:
			depth++
		case opEnd:
			if depth == 0 {
				return out, nil
			}
			depth--
		}
	}
}

func (d *decoder) readPayload(src *bytesource.ByteSource, instr *wasm.Instruction) error {
	switch instr.Kind {
	case wasm.PayloadNone:
		return nil

	case wasm.PayloadU32:
		v, err := src.ReadULEB(32)
		if err != nil {
			return err
		}
		instr.U32 = uint32(v)
		return nil

	case wasm.PayloadBlockType:
		offset := src.Offset()
		b, err := src.ReadU8()
		if err != nil {
			return err
		}
		if b == 0x40 {
			instr.HasBlockResult = false
			return nil
		}
		if !wasm.IsValueType(b) {
			return errors.WrapDecode(offset, errors.ErrBadValueType, fmt.Sprintf("block type 0x%02x", b))
		}
		instr.BlockType = wasm.ValueType(b)
		instr.HasBlockResult = true
		return nil

	case wasm.PayloadI32Const:
		v, err := src.ReadSLEB(32)
		if err != nil {
			return err
		}
		instr.I32 = int32(v)
		return nil

	case wasm.PayloadI64Const:
		v, err := src.ReadSLEB(64)
		if err != nil {
			return err
		}
		instr.I64 = v
		return nil

	case wasm.PayloadF32Const:
		v, err := src.ReadU32()
		if err != nil {
			return err
		}
		instr.F32Bits = v
		return nil

	case wasm.PayloadF64Const:
		v, err := src.ReadU64()
		if err != nil {
			return err
		}
		instr.F64Bits = v
		return nil

	case wasm.PayloadMemArg:
		align, err := src.ReadULEB(32)
		if err != nil {
			return err
		}
		offs, err := src.ReadULEB(32)
		if err != nil {
			return err
		}
		instr.Mem = wasm.MemArg{Align: uint32(align), Offset: uint32(offs)}
		return nil

	case wasm.PayloadBrTable:
		count, err := src.ReadULEB(32)
		if err != nil {
			return err
		}
		targets := make([]uint32, count)
		for i := range targets {
			v, err := src.ReadULEB(32)
			if err != nil {
				return err
			}
			targets[i] = uint32(v)
		}
		def, err := src.ReadULEB(32)
		if err != nil {
			return err
		}
		instr.Table = wasm.BrTable{Targets: targets, Default: uint32(def)}
		return nil

	case wasm.PayloadCallIndirect:
		typeIdx, err := src.ReadULEB(32)
		if err != nil {
			return err
		}
		reserved, err := src.ReadULEB(32)
		if err != nil {
			return err
		}
		instr.CallInd = wasm.CallIndirectImm{TypeIndex: uint32(typeIdx), Reserved: uint32(reserved)}
		return nil

	default:
		return errors.WrapDecode(src.Offset(), errors.ErrUnknownOpcode, "unhandled payload kind")
	}
}
