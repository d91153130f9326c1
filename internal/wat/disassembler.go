// Copyright 2025 Erst Users
// SPDX-License-Identifier: Apache-2.0

// Package wat renders a decoded WASM module's instructions in WebAssembly
// Text mnemonic form. The interpreter's Trap carries only an instruction
// index and a byte offset into the original module; this package re-runs
// internal/decode over the module bytes and renders the instructions
// around that offset so the CLI can show the user the actual failing
// instruction rather than a bare opcode number.
package wat

import (
	"fmt"
	"math"
	"strings"

	"github.com/dotandev/wasmvm/internal/decode"
	"github.com/dotandev/wasmvm/internal/wasm"
)

// Instruction is one decoded instruction rendered for display.
type Instruction struct {
	// Offset is the byte offset of this instruction within the WASM module.
	Offset int64
	// Opcode is the raw opcode byte.
	Opcode byte
	// Mnemonic is the WAT mnemonic (e.g. "i32.add", "call", "unreachable").
	Mnemonic string
	// Operands is the human-readable operand string, if any.
	Operands string
}

// String formats the instruction in WAT style.
func (inst Instruction) String() string {
	if inst.Operands != "" {
		return fmt.Sprintf("%s %s", inst.Mnemonic, inst.Operands)
	}
	return inst.Mnemonic
}

// Snippet is a window of rendered instructions around a failing offset.
type Snippet struct {
	// Instructions is the ordered list of rendered instructions.
	Instructions []Instruction
	// TargetIndex is the index within Instructions that corresponds to the
	// failing offset, or -1 if none could be found.
	TargetIndex int
}

// Format renders the snippet as a human-readable WAT text block with an
// arrow marker on the failing instruction.
func (s *Snippet) Format() string {
	if len(s.Instructions) == 0 {
		return "  <no instructions decoded>"
	}

	var b strings.Builder
	for i, inst := range s.Instructions {
		marker := "  "
		if i == s.TargetIndex {
			marker = "> "
		}
		b.WriteString(fmt.Sprintf("%s0x%04x: %s\n", marker, inst.Offset, inst.String()))
	}
	return b.String()
}

// Disassembler renders a module's decoded instructions in WAT form. It
// reuses internal/decode's own parser rather than re-parsing the byte
// stream a second time: the decoder has already turned every opcode and
// its immediate into typed fields (wasm.Instruction), so this package
// only has to translate those typed fields into mnemonics and operand
// text, in function order with each instruction's absolute byte offset.
type Disassembler struct {
	mod *wasm.Module
}

// NewDisassembler decodes wasmBytes and returns a Disassembler over the
// result. If the bytes do not decode (bad magic/version, truncated
// section, unknown opcode, ...), IsValidWasm reports false and the other
// methods return an error rather than re-deriving their own parse.
func NewDisassembler(wasmBytes []byte) *Disassembler {
	mod, err := decode.Decode(wasmBytes)
	if err != nil {
		return &Disassembler{mod: nil}
	}
	return &Disassembler{mod: mod}
}

// IsValidWasm reports whether the bytes given to NewDisassembler decoded
// successfully.
func (d *Disassembler) IsValidWasm() bool {
	return d.mod != nil
}

// DecodeAll renders every instruction across every defined function, in
// function order, each tagged with its absolute byte offset in the
// original module.
func (d *Disassembler) DecodeAll() ([]Instruction, error) {
	if d.mod == nil {
		return nil, fmt.Errorf("not a valid WASM module")
	}

	var out []Instruction
	for _, fn := range d.mod.CodeBodies {
		for _, ins := range fn.Instructions {
			out = append(out, render(ins))
		}
	}
	return out, nil
}

// DisassembleAt renders a window of contextLines instructions before and
// after the instruction whose byte offset is at, or the closest one
// immediately before, targetOffset.
func (d *Disassembler) DisassembleAt(targetOffset uint64, contextLines int) (*Snippet, error) {
	all, err := d.DecodeAll()
	if err != nil {
		return nil, err
	}
	if len(all) == 0 {
		return &Snippet{TargetIndex: -1}, nil
	}

	targetIdx := 0
	for i, inst := range all {
		if uint64(inst.Offset) == targetOffset {
			targetIdx = i
			break
		}
		if uint64(inst.Offset) <= targetOffset && (i+1 >= len(all) || uint64(all[i+1].Offset) > targetOffset) {
			targetIdx = i
			break
		}
	}

	start := targetIdx - contextLines
	if start < 0 {
		start = 0
	}
	end := targetIdx + contextLines + 1
	if end > len(all) {
		end = len(all)
	}

	return &Snippet{
		Instructions: all[start:end],
		TargetIndex:  targetIdx - start,
	}, nil
}

// FormatTrapContext renders a WAT disassembly snippet around a trap's
// failing byte offset, for the CLI's diagnostic output.
func FormatTrapContext(wasmBytes []byte, failingOffset uint64, contextLines int) string {
	if contextLines <= 0 {
		contextLines = 5
	}

	dis := NewDisassembler(wasmBytes)
	if !dis.IsValidWasm() {
		return fmt.Sprintf("  (could not re-parse module for disassembly; offset 0x%x)", failingOffset)
	}

	snippet, err := dis.DisassembleAt(failingOffset, contextLines)
	if err != nil {
		return fmt.Sprintf("  disassembly error at offset 0x%x: %v", failingOffset, err)
	}

	return snippet.Format()
}

// render turns one already-decoded instruction into its WAT mnemonic and
// operand text.
func render(ins wasm.Instruction) Instruction {
	mnemonic, operands := mnemonicAndOperands(ins)
	return Instruction{Offset: ins.Offset, Opcode: ins.Opcode, Mnemonic: mnemonic, Operands: operands}
}

func mnemonicAndOperands(ins wasm.Instruction) (string, string) {
	switch ins.Kind {
	case wasm.PayloadBlockType:
		return blockMnemonic(ins.Opcode), blockTypeOperand(ins)

	case wasm.PayloadU32:
		switch ins.Opcode {
		case 0x3F, 0x40: // memory.size, memory.grow: reserved byte, not shown
			return u32Mnemonic(ins.Opcode), ""
		case 0x10: // call
			return u32Mnemonic(ins.Opcode), fmt.Sprintf("$func%d", ins.U32)
		default:
			return u32Mnemonic(ins.Opcode), fmt.Sprintf("%d", ins.U32)
		}

	case wasm.PayloadI32Const:
		return "i32.const", fmt.Sprintf("%d", ins.I32)
	case wasm.PayloadI64Const:
		return "i64.const", fmt.Sprintf("%d", ins.I64)
	case wasm.PayloadF32Const:
		return "f32.const", fmt.Sprintf("%g", math.Float32frombits(ins.F32Bits))
	case wasm.PayloadF64Const:
		return "f64.const", fmt.Sprintf("%g", math.Float64frombits(ins.F64Bits))

	case wasm.PayloadMemArg:
		return memMnemonic(ins.Opcode), fmt.Sprintf("offset=%d align=%d", ins.Mem.Offset, ins.Mem.Align)

	case wasm.PayloadBrTable:
		return "br_table", fmt.Sprintf("(count=%d default=%d)", len(ins.Table.Targets), ins.Table.Default)

	case wasm.PayloadCallIndirect:
		return "call_indirect", fmt.Sprintf("(type %d)", ins.CallInd.TypeIndex)

	default: // PayloadNone
		return plainMnemonic(ins.Opcode), ""
	}
}

func blockTypeOperand(ins wasm.Instruction) string {
	if !ins.HasBlockResult {
		return ""
	}
	return fmt.Sprintf("(result %s)", ins.BlockType.String())
}

func blockMnemonic(op byte) string {
	switch op {
	case 0x02:
		return "block"
	case 0x03:
		return "loop"
	case 0x04:
		return "if"
	default:
		return fmt.Sprintf("unknown_0x%02x", op)
	}
}

func u32Mnemonic(op byte) string {
	switch op {
	case 0x0C:
		return "br"
	case 0x0D:
		return "br_if"
	case 0x10:
		return "call"
	case 0x20:
		return "local.get"
	case 0x21:
		return "local.set"
	case 0x22:
		return "local.tee"
	case 0x23:
		return "global.get"
	case 0x24:
		return "global.set"
	case 0x3F:
		return "memory.size"
	case 0x40:
		return "memory.grow"
	default:
		return fmt.Sprintf("unknown_0x%02x", op)
	}
}

var memMnemonics = map[byte]string{
	0x28: "i32.load",
	0x29: "i64.load",
	0x2a: "f32.load",
	0x2b: "f64.load",
	0x2c: "i32.load8_s",
	0x2d: "i32.load8_u",
	0x2e: "i32.load16_s",
	0x2f: "i32.load16_u",
	0x30: "i64.load8_s",
	0x31: "i64.load8_u",
	0x32: "i64.load16_s",
	0x33: "i64.load16_u",
	0x34: "i64.load32_s",
	0x35: "i64.load32_u",
	0x36: "i32.store",
	0x37: "i64.store",
	0x38: "f32.store",
	0x39: "f64.store",
	0x3a: "i32.store8",
	0x3b: "i32.store16",
	0x3c: "i64.store8",
	0x3d: "i64.store16",
	0x3e: "i64.store32",
}

func memMnemonic(op byte) string {
	if m, ok := memMnemonics[op]; ok {
		return m
	}
	return fmt.Sprintf("unknown_0x%02x", op)
}

// plainMnemonic covers every opcode whose payload is PayloadNone: control
// flow with no immediate, comparisons, arithmetic, and conversions.
func plainMnemonic(op byte) string {
	switch op {
	case 0x00:
		return "unreachable"
	case 0x01:
		return "nop"
	case 0x05:
		return "else"
	case 0x0b:
		return "end"
	case 0x0f:
		return "return"
	case 0x1a:
		return "drop"
	case 0x1b:
		return "select"

	// i32 comparison
	case 0x45:
		return "i32.eqz"
	case 0x46:
		return "i32.eq"
	case 0x47:
		return "i32.ne"
	case 0x48:
		return "i32.lt_s"
	case 0x49:
		return "i32.lt_u"
	case 0x4a:
		return "i32.gt_s"
	case 0x4b:
		return "i32.gt_u"
	case 0x4c:
		return "i32.le_s"
	case 0x4d:
		return "i32.le_u"
	case 0x4e:
		return "i32.ge_s"
	case 0x4f:
		return "i32.ge_u"

	// i64 comparison
	case 0x50:
		return "i64.eqz"
	case 0x51:
		return "i64.eq"
	case 0x52:
		return "i64.ne"
	case 0x53:
		return "i64.lt_s"
	case 0x54:
		return "i64.lt_u"
	case 0x55:
		return "i64.gt_s"
	case 0x56:
		return "i64.gt_u"
	case 0x57:
		return "i64.le_s"
	case 0x58:
		return "i64.le_u"
	case 0x59:
		return "i64.ge_s"
	case 0x5a:
		return "i64.ge_u"

	// f32 comparison
	case 0x5b:
		return "f32.eq"
	case 0x5c:
		return "f32.ne"
	case 0x5d:
		return "f32.lt"
	case 0x5e:
		return "f32.gt"
	case 0x5f:
		return "f32.le"
	case 0x60:
		return "f32.ge"

	// f64 comparison
	case 0x61:
		return "f64.eq"
	case 0x62:
		return "f64.ne"
	case 0x63:
		return "f64.lt"
	case 0x64:
		return "f64.gt"
	case 0x65:
		return "f64.le"
	case 0x66:
		return "f64.ge"

	// i32 arithmetic
	case 0x67:
		return "i32.clz"
	case 0x68:
		return "i32.ctz"
	case 0x69:
		return "i32.popcnt"
	case 0x6a:
		return "i32.add"
	case 0x6b:
		return "i32.sub"
	case 0x6c:
		return "i32.mul"
	case 0x6d:
		return "i32.div_s"
	case 0x6e:
		return "i32.div_u"
	case 0x6f:
		return "i32.rem_s"
	case 0x70:
		return "i32.rem_u"
	case 0x71:
		return "i32.and"
	case 0x72:
		return "i32.or"
	case 0x73:
		return "i32.xor"
	case 0x74:
		return "i32.shl"
	case 0x75:
		return "i32.shr_s"
	case 0x76:
		return "i32.shr_u"
	case 0x77:
		return "i32.rotl"
	case 0x78:
		return "i32.rotr"

	// i64 arithmetic
	case 0x79:
		return "i64.clz"
	case 0x7a:
		return "i64.ctz"
	case 0x7b:
		return "i64.popcnt"
	case 0x7c:
		return "i64.add"
	case 0x7d:
		return "i64.sub"
	case 0x7e:
		return "i64.mul"
	case 0x7f:
		return "i64.div_s"
	case 0x80:
		return "i64.div_u"
	case 0x81:
		return "i64.rem_s"
	case 0x82:
		return "i64.rem_u"
	case 0x83:
		return "i64.and"
	case 0x84:
		return "i64.or"
	case 0x85:
		return "i64.xor"
	case 0x86:
		return "i64.shl"
	case 0x87:
		return "i64.shr_s"
	case 0x88:
		return "i64.shr_u"
	case 0x89:
		return "i64.rotl"
	case 0x8a:
		return "i64.rotr"

	// f32 arithmetic
	case 0x8b:
		return "f32.abs"
	case 0x8c:
		return "f32.neg"
	case 0x8d:
		return "f32.ceil"
	case 0x8e:
		return "f32.floor"
	case 0x8f:
		return "f32.trunc"
	case 0x90:
		return "f32.nearest"
	case 0x91:
		return "f32.sqrt"
	case 0x92:
		return "f32.add"
	case 0x93:
		return "f32.sub"
	case 0x94:
		return "f32.mul"
	case 0x95:
		return "f32.div"
	case 0x96:
		return "f32.min"
	case 0x97:
		return "f32.max"
	case 0x98:
		return "f32.copysign"

	// f64 arithmetic
	case 0x99:
		return "f64.abs"
	case 0x9a:
		return "f64.neg"
	case 0x9b:
		return "f64.ceil"
	case 0x9c:
		return "f64.floor"
	case 0x9d:
		return "f64.trunc"
	case 0x9e:
		return "f64.nearest"
	case 0x9f:
		return "f64.sqrt"
	case 0xa0:
		return "f64.add"
	case 0xa1:
		return "f64.sub"
	case 0xa2:
		return "f64.mul"
	case 0xa3:
		return "f64.div"
	case 0xa4:
		return "f64.min"
	case 0xa5:
		return "f64.max"
	case 0xa6:
		return "f64.copysign"

	// Conversions
	case 0xa7:
		return "i32.wrap_i64"
	case 0xa8:
		return "i32.trunc_f32_s"
	case 0xa9:
		return "i32.trunc_f32_u"
	case 0xaa:
		return "i32.trunc_f64_s"
	case 0xab:
		return "i32.trunc_f64_u"
	case 0xac:
		return "i64.extend_i32_s"
	case 0xad:
		return "i64.extend_i32_u"
	case 0xae:
		return "i64.trunc_f32_s"
	case 0xaf:
		return "i64.trunc_f32_u"
	case 0xb0:
		return "i64.trunc_f64_s"
	case 0xb1:
		return "i64.trunc_f64_u"
	case 0xb2:
		return "f32.convert_i32_s"
	case 0xb3:
		return "f32.convert_i32_u"
	case 0xb4:
		return "f32.convert_i64_s"
	case 0xb5:
		return "f32.convert_i64_u"
	case 0xb6:
		return "f32.demote_f64"
	case 0xb7:
		return "f64.convert_i32_s"
	case 0xb8:
		return "f64.convert_i32_u"
	case 0xb9:
		return "f64.convert_i64_s"
	case 0xba:
		return "f64.convert_i64_u"
	case 0xbb:
		return "f64.promote_f32"
	case 0xbc:
		return "i32.reinterpret_f32"
	case 0xbd:
		return "i64.reinterpret_f64"
	case 0xbe:
		return "f32.reinterpret_i32"
	case 0xbf:
		return "f64.reinterpret_i64"

	default:
		return fmt.Sprintf("unknown_0x%02x", op)
	}
}
