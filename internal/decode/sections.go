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

const funcTypeForm = 0x60

func (d *decoder) readTypeSection(src *bytesource.ByteSource) error {
	count, err := src.ReadULEB(32)
	if err != nil {
		return err
	}
	d.mod.Types = make([]wasm.FuncType, count)
	for i := range d.mod.Types {
		form, err := src.ReadU8()
		if err != nil {
			return err
		}
		if form != funcTypeForm {
			return errors.WrapDecode(src.Offset()-1, errors.ErrBadValueType, fmt.Sprintf("func type form 0x%02x", form))
		}
		params, err := d.readValueTypeVec(src)
		if err != nil {
			return err
		}
		results, err := d.readValueTypeVec(src)
		if err != nil {
			return err
		}
		d.mod.Types[i] = wasm.FuncType{Params: params, Results: results}
	}
	return nil
}

func (d *decoder) readValueTypeVec(src *bytesource.ByteSource) ([]wasm.ValueType, error) {
	count, err := src.ReadULEB(32)
	if err != nil {
		return nil, err
	}
	out := make([]wasm.ValueType, count)
	for i := range out {
		vt, err := d.readValueType(src)
		if err != nil {
			return nil, err
		}
		out[i] = vt
	}
	return out, nil
}

func (d *decoder) readImportSection(src *bytesource.ByteSource) error {
	count, err := src.ReadULEB(32)
	if err != nil {
		return err
	}
	d.mod.Imports = make([]wasm.Import, count)
	for i := range d.mod.Imports {
		modName, err := d.readName(src)
		if err != nil {
			return err
		}
		field, err := d.readName(src)
		if err != nil {
			return err
		}
		kind, err := d.readExternalKind(src)
		if err != nil {
			return err
		}
		imp := wasm.Import{Module: modName, Field: field, Kind: kind}
		switch kind {
		case wasm.ExternFunc:
			idx, err := src.ReadULEB(32)
			if err != nil {
				return err
			}
			imp.TypeIndex = uint32(idx)
		case wasm.ExternTable:
			tt, err := d.readTableType(src)
			if err != nil {
				return err
			}
			imp.TableType = tt
		case wasm.ExternMemory:
			lim, err := d.readLimits(src)
			if err != nil {
				return err
			}
			imp.MemType = lim
		case wasm.ExternGlobal:
			gt, err := d.readGlobalType(src)
			if err != nil {
				return err
			}
			imp.GlobType = gt
		}
		d.mod.Imports[i] = imp
	}
	return nil
}

func (d *decoder) readTableType(src *bytesource.ByteSource) (wasm.TableType, error) {
	elemType, err := src.ReadU8()
	if err != nil {
		return wasm.TableType{}, err
	}
	lim, err := d.readLimits(src)
	if err != nil {
		return wasm.TableType{}, err
	}
	return wasm.TableType{ElemType: elemType, Limits: lim}, nil
}

func (d *decoder) readGlobalType(src *bytesource.ByteSource) (wasm.GlobalType, error) {
	vt, err := d.readValueType(src)
	if err != nil {
		return wasm.GlobalType{}, err
	}
	mutFlag, err := src.ReadU8()
	if err != nil {
		return wasm.GlobalType{}, err
	}
	return wasm.GlobalType{ValType: vt, Mutable: mutFlag == 1}, nil
}

func (d *decoder) readFunctionSection(src *bytesource.ByteSource) error {
	count, err := src.ReadULEB(32)
	if err != nil {
		return err
	}
	d.mod.FuncTypeIdx = make([]uint32, count)
	for i := range d.mod.FuncTypeIdx {
		idx, err := src.ReadULEB(32)
		if err != nil {
			return err
		}
		d.mod.FuncTypeIdx[i] = uint32(idx)
	}
	return nil
}

func (d *decoder) readTableSection(src *bytesource.ByteSource) error {
	count, err := src.ReadULEB(32)
	if err != nil {
		return err
	}
	d.mod.Tables = make([]wasm.TableType, count)
	for i := range d.mod.Tables {
		tt, err := d.readTableType(src)
		if err != nil {
			return err
		}
		d.mod.Tables[i] = tt
	}
	return nil
}

func (d *decoder) readMemorySection(src *bytesource.ByteSource) error {
	count, err := src.ReadULEB(32)
	if err != nil {
		return err
	}
	d.mod.Memories = make([]wasm.Limits, count)
	for i := range d.mod.Memories {
		lim, err := d.readLimits(src)
		if err != nil {
			return err
		}
		d.mod.Memories[i] = lim
	}
	return nil
}

func (d *decoder) readGlobalSection(src *bytesource.ByteSource) error {
	count, err := src.ReadULEB(32)
	if err != nil {
		return err
	}
	d.mod.Globals = make([]wasm.Global, count)
	for i := range d.mod.Globals {
		gt, err := d.readGlobalType(src)
		if err != nil {
			return err
		}
		init, err := d.readInitExpr(src)
		if err != nil {
			return err
		}
		d.mod.Globals[i] = wasm.Global{Type: gt, Init: init}
	}
	return nil
}

func (d *decoder) readExportSection(src *bytesource.ByteSource) error {
	count, err := src.ReadULEB(32)
	if err != nil {
		return err
	}
	d.mod.Exports = make([]wasm.Export, count)
	for i := range d.mod.Exports {
		name, err := d.readName(src)
		if err != nil {
			return err
		}
		kind, err := d.readExternalKind(src)
		if err != nil {
			return err
		}
		idx, err := src.ReadULEB(32)
		if err != nil {
			return err
		}
		d.mod.Exports[i] = wasm.Export{Name: name, Kind: kind, Index: uint32(idx)}
		d.mod.ExportIndex[name] = i
	}
	return nil
}

func (d *decoder) readStartSection(src *bytesource.ByteSource) error {
	idx, err := src.ReadULEB(32)
	if err != nil {
		return err
	}
	d.mod.StartIndex = int32(idx)
	return nil
}

func (d *decoder) readElementSection(src *bytesource.ByteSource) error {
	count, err := src.ReadULEB(32)
	if err != nil {
		return err
	}
	d.mod.Elements = make([]wasm.Element, count)
	for i := range d.mod.Elements {
		tableIdx, err := src.ReadULEB(32)
		if err != nil {
			return err
		}
		offset, err := d.readInitExpr(src)
		if err != nil {
			return err
		}
		fnCount, err := src.ReadULEB(32)
		if err != nil {
			return err
		}
		fnIdxs := make([]uint32, fnCount)
		for j := range fnIdxs {
			idx, err := src.ReadULEB(32)
			if err != nil {
				return err
			}
			fnIdxs[j] = uint32(idx)
		}
		d.mod.Elements[i] = wasm.Element{TableIndex: uint32(tableIdx), Offset: offset, FuncIndices: fnIdxs}
	}
	return nil
}

func (d *decoder) readDataSection(src *bytesource.ByteSource) error {
	count, err := src.ReadULEB(32)
	if err != nil {
		return err
	}
	d.mod.DataSegments = make([]wasm.Data, count)
	for i := range d.mod.DataSegments {
		memIdx, err := src.ReadULEB(32)
		if err != nil {
			return err
		}
		offset, err := d.readInitExpr(src)
		if err != nil {
			return err
		}
		length, err := src.ReadULEB(32)
		if err != nil {
			return err
		}
		bytes, err := src.ReadBytes(int(length))
		if err != nil {
			return err
		}
		buf := make([]byte, len(bytes))
		copy(buf, bytes)
		d.mod.DataSegments[i] = wasm.Data{MemIndex: uint32(memIdx), Offset: offset, Bytes: buf}
	}
	return nil
}

func (d *decoder) readCodeSection(src *bytesource.ByteSource) error {
	count, err := src.ReadULEB(32)
	if err != nil {
		return err
	}
	d.mod.CodeBodies = make([]wasm.Function, count)
	for i := range d.mod.CodeBodies {
		bodySize, err := src.ReadULEB(32)
		if err != nil {
			return err
		}
		bodyBytes, err := src.ReadBytes(int(bodySize))
		if err != nil {
			return err
		}
		fn, err := d.readFunctionBody(bodyBytes, uint32(i))
		if err != nil {
			return err
		}
		d.mod.CodeBodies[i] = fn
	}
	return nil
}

func (d *decoder) readFunctionBody(body []byte, defIdx uint32) (wasm.Function, error) {
	bodySrc := bytesource.New(body)

	declCount, err := bodySrc.ReadULEB(32)
	if err != nil {
		return wasm.Function{}, err
	}
	decls := make([]wasm.LocalDecl, declCount)
	for i := range decls {
		cnt, err := bodySrc.ReadULEB(32)
		if err != nil {
			return wasm.Function{}, err
		}
		vt, err := d.readValueType(bodySrc)
		if err != nil {
			return wasm.Function{}, err
		}
		decls[i] = wasm.LocalDecl{Count: uint32(cnt), Type: vt}
	}

	instrs, err := d.readInstructions(bodySrc, false)
	if err != nil {
		return wasm.Function{}, err
	}
	if !bodySrc.IsEOF() {
		return wasm.Function{}, errors.WrapDecode(bodySrc.Offset(), errors.ErrSectionLenMismatch,
			fmt.Sprintf("function body %d: trailing bytes after end", defIdx))
	}

	imported := uint32(d.mod.ImportedFuncCount())
	typeIdx := d.mod.FuncTypeIdx[defIdx]
	if int(typeIdx) >= len(d.mod.Types) {
		return wasm.Function{}, errors.WrapDecode(0, errors.ErrBadValueType,
			fmt.Sprintf("function %d: type index %d out of range", imported+defIdx, typeIdx))
	}

	return wasm.Function{
		Type:         d.mod.Types[typeIdx],
		Locals:       decls,
		Instructions: instrs,
	}, nil
}

// readName reads a length-prefixed UTF-8 string, used by import/export
// entries and the custom "name" subsection.
func (d *decoder) readName(src *bytesource.ByteSource) (string, error) {
	length, err := src.ReadULEB(32)
	if err != nil {
		return "", err
	}
	buf, err := src.ReadBytes(int(length))
	if err != nil {
		return "", err
	}
	return string(buf), nil
}

// readCustomSection reads a custom section's name, then hands the remaining
// payload to the "name" subsection parser if that's what it is; otherwise
// the raw payload is retained as an opaque CustomSection. Ordering relative
// to the data section is not enforced: §9 flags the source's ordering
// assertion as not part of the public binary format, and relaxes it here.
func (d *decoder) readCustomSection(src *bytesource.ByteSource) error {
	name, err := d.readName(src)
	if err != nil {
		return err
	}
	payload, err := src.ReadBytes(int(src.Len() - src.Offset()))
	if err != nil {
		return err
	}
	buf := make([]byte, len(payload))
	copy(buf, payload)

	if name == "name" {
		ns, err := d.readNameSubsection(buf)
		if err != nil {
			// A malformed name section is not fatal to the module: it is
			// debug metadata, so fall back to storing it as opaque.
			d.mod.CustomSections = append(d.mod.CustomSections, wasm.CustomSection{Name: name, Payload: buf})
			return nil
		}
		d.mod.Names = ns
		return nil
	}

	d.mod.CustomSections = append(d.mod.CustomSections, wasm.CustomSection{Name: name, Payload: buf})
	return nil
}

const (
	nameSubsecModule    = 0
	nameSubsecFunctions = 1
	nameSubsecLocals    = 2
)

func (d *decoder) readNameSubsection(payload []byte) (*wasm.NameSection, error) {
	src := bytesource.New(payload)
	ns := &wasm.NameSection{
		FuncNames:  make(map[uint32]string),
		LocalNames: make(map[uint32]map[uint32]string),
	}
	for !src.IsEOF() {
		id, err := src.ReadU8()
		if err != nil {
			return nil, err
		}
		size, err := src.ReadULEB(32)
		if err != nil {
			return nil, err
		}
		sub, err := src.ReadBytes(int(size))
		if err != nil {
			return nil, err
		}
		subSrc := bytesource.New(sub)
		switch id {
		case nameSubsecModule:
			name, err := d.readName(subSrc)
			if err != nil {
				return nil, err
			}
			ns.ModuleName = name
		case nameSubsecFunctions:
			if err := d.readNameMap(subSrc, ns.FuncNames); err != nil {
				return nil, err
			}
		case nameSubsecLocals:
			count, err := subSrc.ReadULEB(32)
			if err != nil {
				return nil, err
			}
			for i := uint64(0); i < count; i++ {
				fnIdx, err := subSrc.ReadULEB(32)
				if err != nil {
					return nil, err
				}
				locals := make(map[uint32]string)
				if err := d.readNameMap(subSrc, locals); err != nil {
					return nil, err
				}
				ns.LocalNames[uint32(fnIdx)] = locals
			}
		}
	}
	return ns, nil
}

func (d *decoder) readNameMap(src *bytesource.ByteSource, out map[uint32]string) error {
	count, err := src.ReadULEB(32)
	if err != nil {
		return err
	}
	for i := uint64(0); i < count; i++ {
		idx, err := src.ReadULEB(32)
		if err != nil {
			return err
		}
		name, err := d.readName(src)
		if err != nil {
			return err
		}
		out[uint32(idx)] = name
	}
	return nil
}
