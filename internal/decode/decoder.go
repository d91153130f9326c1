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

// Package decode walks a WASM v1 binary module and produces an in-memory
// wasm.Module: it reads the preamble, then the section catalogue (§4.2),
// dispatching each non-custom section to its own parser and validating
// that the bytes consumed match the section's declared length.
//
// Each Decoder is built fresh per call -- there is no package-level mutable
// parse state -- so a module can be decoded repeatedly from multiple
// goroutines without cross-call contamination (§9, "global module state").
package decode

import (
	"fmt"

	"github.com/dotandev/wasmvm/internal/bytesource"
	"github.com/dotandev/wasmvm/internal/errors"
	"github.com/dotandev/wasmvm/internal/wasm"
)

const (
	wasmMagic   uint32 = 0x6D736100
	wasmVersion uint32 = 0x00000001
)

// Section ids, in the order §4.2 tabulates them.
const (
	secCustom   = 0
	secType     = 1
	secImport   = 2
	secFunction = 3
	secTable    = 4
	secMemory   = 5
	secGlobal   = 6
	secExport   = 7
	secStart    = 8
	secElement  = 9
	secCode     = 10
	secData     = 11
)

// decoder carries the single ByteSource and the Module being assembled for
// one Decode call.
type decoder struct {
	src *bytesource.ByteSource
	mod *wasm.Module
}

// Decode reads a complete WASM v1 module from data and returns its in-memory
// representation. It does not run the block resolver; callers that intend
// to execute the module must pass the result to the resolve package first.
func Decode(data []byte) (*wasm.Module, error) {
	d := &decoder{
		src: bytesource.New(data),
		mod: &wasm.Module{
			ExportIndex: make(map[string]int),
			StartIndex:  -1,
		},
	}
	if err := d.readPreamble(); err != nil {
		return nil, err
	}
	if err := d.readSections(); err != nil {
		return nil, err
	}
	return d.mod, nil
}

func (d *decoder) readPreamble() error {
	magic, err := d.src.ReadU32()
	if err != nil {
		return err
	}
	if magic != wasmMagic {
		return errors.WrapDecode(0, errors.ErrBadMagic, fmt.Sprintf("got 0x%08x", magic))
	}
	version, err := d.src.ReadU32()
	if err != nil {
		return err
	}
	if version != wasmVersion {
		return errors.WrapDecode(4, errors.ErrUnsupportedVersion, fmt.Sprintf("got %d", version))
	}
	return nil
}

// readSections consumes (id, payloadLen, payload) triples until EOF. A
// well-formed module presents every non-custom section at most once;
// custom sections may repeat and appear anywhere.
func (d *decoder) readSections() error {
	seen := make(map[byte]bool)
	for !d.src.IsEOF() {
		startOffset := d.src.Offset()
		idVal, err := d.src.ReadULEB(7)
		if err != nil {
			return err
		}
		id := byte(idVal)
		payloadLen, err := d.src.ReadULEB(32)
		if err != nil {
			return err
		}

		payloadStart := d.src.Offset()
		payload, err := d.src.ReadBytes(int(payloadLen))
		if err != nil {
			return err
		}

		if id != secCustom {
			if seen[id] {
				return errors.WrapDecode(startOffset, errors.ErrUnknownSectionID,
					fmt.Sprintf("section %d repeated", id))
			}
			seen[id] = true
		}

		if err := d.dispatchSection(id, payload, payloadStart); err != nil {
			return err
		}
	}
	return nil
}

func (d *decoder) dispatchSection(id byte, payload []byte, baseOffset int64) error {
	sub := bytesource.New(payload)
	var err error
	switch id {
	case secCustom:
		err = d.readCustomSection(sub)
	case secType:
		err = d.readTypeSection(sub)
	case secImport:
		err = d.readImportSection(sub)
	case secFunction:
		err = d.readFunctionSection(sub)
	case secTable:
		err = d.readTableSection(sub)
	case secMemory:
		err = d.readMemorySection(sub)
	case secGlobal:
		err = d.readGlobalSection(sub)
	case secExport:
		err = d.readExportSection(sub)
	case secStart:
		err = d.readStartSection(sub)
	case secElement:
		err = d.readElementSection(sub)
	case secCode:
		err = d.readCodeSection(sub)
	case secData:
		err = d.readDataSection(sub)
	default:
		return errors.WrapDecode(baseOffset, errors.ErrUnknownSectionID, fmt.Sprintf("id %d", id))
	}
	if err != nil {
		return err
	}
	if !sub.IsEOF() {
		return errors.WrapDecode(baseOffset, errors.ErrSectionLenMismatch,
			fmt.Sprintf("section %d: %d bytes unconsumed", id, int(sub.Len()-sub.Offset())))
	}
	return nil
}

func (d *decoder) readValueType(src *bytesource.ByteSource) (wasm.ValueType, error) {
	b, err := src.ReadU8()
	if err != nil {
		return 0, err
	}
	if !wasm.IsValueType(b) {
		return 0, errors.WrapDecode(src.Offset()-1, errors.ErrBadValueType, fmt.Sprintf("0x%02x", b))
	}
	return wasm.ValueType(b), nil
}

func (d *decoder) readLimits(src *bytesource.ByteSource) (wasm.Limits, error) {
	flag, err := src.ReadU8()
	if err != nil {
		return wasm.Limits{}, err
	}
	initial, err := src.ReadULEB(32)
	if err != nil {
		return wasm.Limits{}, err
	}
	l := wasm.Limits{Initial: uint32(initial)}
	if flag == 1 {
		maxVal, err := src.ReadULEB(32)
		if err != nil {
			return wasm.Limits{}, err
		}
		l.Maximum = uint32(maxVal)
		l.HasMax = true
	}
	return l, nil
}

// readExternalKind reads the one-byte external kind tag used by import and
// export entries.
func (d *decoder) readExternalKind(src *bytesource.ByteSource) (wasm.ExternalKind, error) {
	b, err := src.ReadU8()
	if err != nil {
		return 0, err
	}
	if b > byte(wasm.ExternGlobal) {
		return 0, errors.WrapDecode(src.Offset()-1, errors.ErrBadExternalKind, fmt.Sprintf("0x%02x", b))
	}
	return wasm.ExternalKind(b), nil
}

// readInitExpr reads a constant initializer expression: a single opcode
// followed by `end` (§4.2.5).
func (d *decoder) readInitExpr(src *bytesource.ByteSource) (wasm.Instruction, error) {
	instrs, err := d.readInstructions(src, true)
	if err != nil {
		return wasm.Instruction{}, err
	}
	if len(instrs) == 0 {
		return wasm.Instruction{}, errors.WrapDecode(src.Offset(), errors.ErrMissingEnd, "empty init expression")
	}
	return instrs[0], nil
}
