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
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dotandev/wasmvm/internal/errors"
	"github.com/dotandev/wasmvm/internal/wasm"
)

func uleb(v uint64) []byte {
	var out []byte
	for {
		b := byte(v & 0x7f)
		v >>= 7
		if v != 0 {
			b |= 0x80
		}
		out = append(out, b)
		if v == 0 {
			break
		}
	}
	return out
}

func sleb(v int64) []byte {
	var out []byte
	more := true
	for more {
		b := byte(v & 0x7f)
		v >>= 7
		if (v == 0 && b&0x40 == 0) || (v == -1 && b&0x40 != 0) {
			more = false
		} else {
			b |= 0x80
		}
		out = append(out, b)
	}
	return out
}

func section(id byte, payload []byte) []byte {
	out := []byte{id}
	out = append(out, uleb(uint64(len(payload)))...)
	return append(out, payload...)
}

// buildAddModule constructs a module exporting a single function "add":
// (i32, i32) -> i32 { local.get 0; local.get 1; i32.add }.
func buildAddModule() []byte {
	mod := []byte{0x00, 0x61, 0x73, 0x6d, 0x01, 0x00, 0x00, 0x00}

	typeSec := []byte{0x01, 0x60, 0x02, 0x7f, 0x7f, 0x01, 0x7f} // 1 type: (i32,i32)->i32
	mod = append(mod, section(secType, typeSec)...)

	funcSec := []byte{0x01, 0x00} // 1 function, type index 0
	mod = append(mod, section(secFunction, funcSec)...)

	exportSec := append([]byte{0x01}, byte(len("add")))
	exportSec = append(exportSec, []byte("add")...)
	exportSec = append(exportSec, byte(wasm.ExternFunc), 0x00)
	mod = append(mod, section(secExport, exportSec)...)

	body := []byte{
		0x00,       // 0 local decls
		0x20, 0x00, // local.get 0
		0x20, 0x01, // local.get 1
		0x6a, // i32.add
		0x0b, // end
	}
	codeSec := append(uleb(1), uleb(uint64(len(body)))...)
	codeSec = append(codeSec, body...)
	mod = append(mod, section(secCode, codeSec)...)

	return mod
}

func TestDecodeAddModule(t *testing.T) {
	mod, err := Decode(buildAddModule())
	require.NoError(t, err)

	require.Len(t, mod.Types, 1)
	assert.Equal(t, []wasm.ValueType{wasm.I32, wasm.I32}, mod.Types[0].Params)
	assert.Equal(t, []wasm.ValueType{wasm.I32}, mod.Types[0].Results)

	require.Len(t, mod.CodeBodies, 1)
	fn := mod.CodeBodies[0]
	require.Len(t, fn.Instructions, 4)
	assert.Equal(t, byte(0x6a), fn.Instructions[2].Opcode)

	idx, ok := mod.ExportIndex["add"]
	require.True(t, ok)
	assert.Equal(t, uint32(0), mod.Exports[idx].Index)
}

func TestDecodeBadMagic(t *testing.T) {
	data := []byte{0xFF, 0xFF, 0xFF, 0xFF, 0x01, 0x00, 0x00, 0x00}
	_, err := Decode(data)
	require.Error(t, err)
	assert.ErrorIs(t, err, errors.ErrBadMagic)
}

func TestDecodeBadVersion(t *testing.T) {
	data := []byte{0x00, 0x61, 0x73, 0x6d, 0x02, 0x00, 0x00, 0x00}
	_, err := Decode(data)
	require.Error(t, err)
	assert.ErrorIs(t, err, errors.ErrUnsupportedVersion)
}

func TestDecodeUnknownOpcode(t *testing.T) {
	mod := []byte{0x00, 0x61, 0x73, 0x6d, 0x01, 0x00, 0x00, 0x00}
	mod = append(mod, section(secType, []byte{0x01, 0x60, 0x00, 0x00})...)
	mod = append(mod, section(secFunction, []byte{0x01, 0x00})...)
	body := []byte{0x00, 0xff, 0x0b} // bad opcode 0xff
	codeSec := append(uleb(1), uleb(uint64(len(body)))...)
	codeSec = append(codeSec, body...)
	mod = append(mod, section(secCode, codeSec)...)

	_, err := Decode(mod)
	require.Error(t, err)
	assert.ErrorIs(t, err, errors.ErrUnknownOpcode)
}

func TestDecodeRepeatedSection(t *testing.T) {
	mod := []byte{0x00, 0x61, 0x73, 0x6d, 0x01, 0x00, 0x00, 0x00}
	mod = append(mod, section(secType, []byte{0x01, 0x60, 0x00, 0x00})...)
	mod = append(mod, section(secType, []byte{0x01, 0x60, 0x00, 0x00})...)

	_, err := Decode(mod)
	require.Error(t, err)
	assert.ErrorIs(t, err, errors.ErrUnknownSectionID)
}

func TestDecodeCustomSectionNameOrderingRelaxed(t *testing.T) {
	mod := []byte{0x00, 0x61, 0x73, 0x6d, 0x01, 0x00, 0x00, 0x00}
	// A custom section after the (absent) data section is legal: custom
	// sections may appear anywhere and repeat.
	custom := append([]byte{byte(len("extra"))}, []byte("extra")...)
	custom = append(custom, []byte("payload")...)
	mod = append(mod, section(secCustom, custom)...)
	mod = append(mod, section(secCustom, custom)...)

	m, err := Decode(mod)
	require.NoError(t, err)
	assert.Len(t, m.CustomSections, 2)
}
