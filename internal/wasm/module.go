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

package wasm

// FuncType is a function signature: ordered parameter types and at most
// one result type (WASM v1 functions return 0 or 1 values).
type FuncType struct {
	Params  []ValueType
	Results []ValueType
}

// ExternalKind tags what an import or export entry refers to.
type ExternalKind byte

const (
	ExternFunc ExternalKind = iota
	ExternTable
	ExternMemory
	ExternGlobal
)

func (k ExternalKind) String() string {
	switch k {
	case ExternFunc:
		return "func"
	case ExternTable:
		return "table"
	case ExternMemory:
		return "memory"
	case ExternGlobal:
		return "global"
	default:
		return "invalid"
	}
}

// Limits describes a table or memory's initial and optional maximum size.
type Limits struct {
	Initial uint32
	Maximum uint32
	HasMax  bool
}

// Import is a single entry of the import section.
type Import struct {
	Module string
	Field  string
	Kind   ExternalKind

	// Exactly one of the following is meaningful, selected by Kind.
	TypeIndex uint32 // ExternFunc
	TableType TableType
	MemType   Limits
	GlobType  GlobalType
}

// TableType describes an imported or declared table (reserved; call_indirect
// is not implemented).
type TableType struct {
	ElemType byte
	Limits   Limits
}

// GlobalType describes an imported or declared global (reserved; global
// access opcodes are parsed but not executed, see §9 of the design).
type GlobalType struct {
	ValType ValueType
	Mutable bool
}

// Global is a module-defined global with its constant initializer
// expression, recorded as a single instruction per §4.2.
type Global struct {
	Type GlobalType
	Init Instruction
}

// Export maps a name to an index into one of the module's kind-specific
// index spaces.
type Export struct {
	Name  string
	Kind  ExternalKind
	Index uint32
}

// Element is an element-segment entry: a table index, a constant offset
// expression, and the function indices it installs (reserved; tables are
// not executed).
type Element struct {
	TableIndex uint32
	Offset     Instruction
	FuncIndices []uint32
}

// Data is a data-segment entry: a memory index, a constant offset
// expression, and raw bytes (reserved; linear memory is not executed).
type Data struct {
	MemIndex uint32
	Offset   Instruction
	Bytes    []byte
}

// LocalDecl is one run-length-encoded locals declaration from a function
// body: Count repetitions of Type.
type LocalDecl struct {
	Count uint32
	Type  ValueType
}

// BlockKind distinguishes the three structured control-flow constructs.
type BlockKind byte

const (
	BlockKindBlock BlockKind = iota
	BlockKindLoop
	BlockKindIf
)

// Block is a resolved block/loop/if span within a function's instruction
// stream. Blocks are stored in a per-function arena (Function.Blocks) and
// referenced by index, never by pointer, so that Module stays trivially
// copyable and free of reference cycles (see design notes on the cyclic
// block graph).
type Block struct {
	Kind   BlockKind
	Result ValueType // only meaningful if HasResult
	HasResult bool

	StartIndex int // index of the block/loop/if instruction itself
	ElseIndex  int // -1 if absent
	EndIndex   int // index of the matching end instruction

	Parent int // index into Function.Blocks, -1 for a function's implicit root
	Depth  int

	// EntryHeight is the operand-stack height when the block was entered.
	// The resolver has no static type checker and leaves it at zero; the
	// interpreter records the live entry height on each frame's open-block
	// stack and truncates to that instead.
	EntryHeight int
}

// InstrKind distinguishes the opcode payload shapes named in §3.
type InstrKind byte

const (
	PayloadNone InstrKind = iota
	PayloadU32
	PayloadI32Const
	PayloadI64Const
	PayloadF32Const
	PayloadF64Const
	PayloadBlockType
	PayloadMemArg
	PayloadBrTable
	PayloadCallIndirect
	PayloadBlockRef // not assigned: the block resolver sets BlockRef and keeps the decoded Kind
)

// MemArg is the (flags/align, offset) immediate pair carried by load/store
// instructions. Memory is a reserved extension point (§9): the immediate is
// decoded and retained for disassembly, but no linear memory backs it.
type MemArg struct {
	Align  uint32
	Offset uint32
}

// BrTable is the payload of the br_table instruction: a jump table of
// relative block depths plus a default depth. Reserved extension point,
// parsed for decode completeness but not dispatched (§9 Non-goals).
type BrTable struct {
	Targets []uint32
	Default uint32
}

// CallIndirectImm is the payload of call_indirect: a type index plus the
// reserved table-index byte. Reserved extension point (§9).
type CallIndirectImm struct {
	TypeIndex uint32
	Reserved  uint32
}

// Instruction is one decoded opcode plus its payload. Payload fields are
// accessed through the Kind discriminant; BlockRef is only valid once the
// block resolver has run (the resolver does not change Kind).
type Instruction struct {
	Offset int64 // byte offset in the original module, for trap diagnostics
	Opcode byte
	Kind   InstrKind

	U32       uint32
	I32       int32
	I64       int64
	F32Bits   uint32
	F64Bits   uint64
	BlockType ValueType
	HasBlockResult bool
	Mem       MemArg
	Table     BrTable
	CallInd   CallIndirectImm

	// BlockRef indexes Function.Blocks once control-flow instructions
	// (block/loop/if/else/end/br/br_if) have been patched by the resolver.
	// -1 means unresolved / not applicable.
	BlockRef int

	// ReturnTarget is the absolute instruction index of the function
	// body's final end, set by the resolver on `return` instructions. The
	// interpreter does not read it: `return` completes the call directly.
	ReturnTarget int
}

// Function is a defined function: its signature, locals layout, decoded
// instruction stream, and resolved block arena.
type Function struct {
	Type         FuncType
	Locals       []LocalDecl // as declared; expand with NumLocals/LocalType
	Instructions []Instruction
	Blocks       []Block // arena of block/loop/if records; the function body itself has no record
}

// NumLocals returns the total count of local slots after the parameters,
// i.e. the sum of each LocalDecl's Count.
func (f *Function) NumLocals() int {
	n := 0
	for _, d := range f.Locals {
		n += int(d.Count)
	}
	return n
}

// LocalType returns the value type of local slot i (0-based, counting only
// the declared locals, not parameters).
func (f *Function) LocalType(i int) ValueType {
	for _, d := range f.Locals {
		if i < int(d.Count) {
			return d.Type
		}
		i -= int(d.Count)
	}
	panic("wasm: local index out of range")
}

// CustomSection is a named, opaque payload section (§4.2 id 0).
type CustomSection struct {
	Name    string
	Payload []byte
}

// NameSection holds the parsed "name" custom subsection, if present.
type NameSection struct {
	ModuleName string
	FuncNames  map[uint32]string
	LocalNames map[uint32]map[uint32]string // funcIndex -> localIndex -> name
}

// Module is the fully decoded, self-contained module image. It is built
// once by the decoder, then patched in place by the block resolver, and is
// immutable for the rest of its lifetime: every call to RunExported shares
// this same value.
type Module struct {
	Types          []FuncType
	Imports        []Import
	FuncTypeIdx    []uint32 // one type index per *defined* function
	Tables         []TableType
	Memories       []Limits
	Globals        []Global
	Exports        []Export
	ExportIndex    map[string]int // name -> index into Exports, built at decode time
	StartIndex     int32          // -1 if absent
	Elements       []Element
	CodeBodies     []Function
	DataSegments   []Data
	CustomSections []CustomSection
	Names          *NameSection
}

// FuncCount returns the number of imported + defined functions.
func (m *Module) FuncCount() int {
	n := 0
	for _, imp := range m.Imports {
		if imp.Kind == ExternFunc {
			n++
		}
	}
	return n + len(m.CodeBodies)
}

// ImportedFuncCount returns the number of function imports that precede the
// defined functions in the function index space.
func (m *Module) ImportedFuncCount() int {
	n := 0
	for _, imp := range m.Imports {
		if imp.Kind == ExternFunc {
			n++
		}
	}
	return n
}

// FuncTypeOf returns the signature of function index idx, whether imported
// or defined.
func (m *Module) FuncTypeOf(idx uint32) (FuncType, bool) {
	imported := uint32(m.ImportedFuncCount())
	if idx < imported {
		i := 0
		for _, imp := range m.Imports {
			if imp.Kind != ExternFunc {
				continue
			}
			if uint32(i) == idx {
				if int(imp.TypeIndex) >= len(m.Types) {
					return FuncType{}, false
				}
				return m.Types[imp.TypeIndex], true
			}
			i++
		}
		return FuncType{}, false
	}
	defIdx := idx - imported
	if int(defIdx) >= len(m.FuncTypeIdx) {
		return FuncType{}, false
	}
	ti := m.FuncTypeIdx[defIdx]
	if int(ti) >= len(m.Types) {
		return FuncType{}, false
	}
	return m.Types[ti], true
}

// DefinedFunction returns the decoded body for defined function index idx
// (idx is in the combined function index space; imports are not defined
// here and return ok=false).
func (m *Module) DefinedFunction(idx uint32) (*Function, bool) {
	imported := uint32(m.ImportedFuncCount())
	if idx < imported {
		return nil, false
	}
	defIdx := int(idx - imported)
	if defIdx >= len(m.CodeBodies) {
		return nil, false
	}
	return &m.CodeBodies[defIdx], true
}
