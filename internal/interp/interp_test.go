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

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dotandev/wasmvm/internal/decode"
	"github.com/dotandev/wasmvm/internal/errors"
	"github.com/dotandev/wasmvm/internal/resolve"
	"github.com/dotandev/wasmvm/internal/wasm"
)

// Minimal ULEB128/SLEB128 byte writers, kept local to this test file since
// the decode package's encoders are unexported test helpers of their own.

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

const (
	secType     = 1
	secFunction = 3
	secExport   = 7
	secCode     = 10
)

// funcSpec describes one defined function for buildModule: its signature,
// its locals declarations, and its raw instruction bytes (no locals, no
// leading length and no trailing end -- buildModule encodes the locals
// and appends the `end` opcode).
type funcSpec struct {
	name    string
	params  []wasm.ValueType
	results []wasm.ValueType
	locals  []wasm.LocalDecl
	body    []byte
}

func vtByte(vt wasm.ValueType) byte { return byte(vt) }

// buildModule assembles a complete WASM v1 binary exporting every function
// in specs under its name, then decodes and resolves it.
func buildModule(t *testing.T, specs []funcSpec) *wasm.Module {
	t.Helper()

	mod := []byte{0x00, 0x61, 0x73, 0x6d, 0x01, 0x00, 0x00, 0x00}

	var typeSec []byte
	typeSec = append(typeSec, uleb(uint64(len(specs)))...)
	for _, s := range specs {
		typeSec = append(typeSec, 0x60)
		typeSec = append(typeSec, uleb(uint64(len(s.params)))...)
		for _, p := range s.params {
			typeSec = append(typeSec, vtByte(p))
		}
		typeSec = append(typeSec, uleb(uint64(len(s.results)))...)
		for _, r := range s.results {
			typeSec = append(typeSec, vtByte(r))
		}
	}
	mod = append(mod, section(secType, typeSec)...)

	var funcSec []byte
	funcSec = append(funcSec, uleb(uint64(len(specs)))...)
	for i := range specs {
		funcSec = append(funcSec, uleb(uint64(i))...)
	}
	mod = append(mod, section(secFunction, funcSec)...)

	var exportSec []byte
	exportSec = append(exportSec, uleb(uint64(len(specs)))...)
	for i, s := range specs {
		exportSec = append(exportSec, byte(len(s.name)))
		exportSec = append(exportSec, []byte(s.name)...)
		exportSec = append(exportSec, byte(wasm.ExternFunc))
		exportSec = append(exportSec, uleb(uint64(i))...)
	}
	mod = append(mod, section(secExport, exportSec)...)

	var codeSec []byte
	codeSec = append(codeSec, uleb(uint64(len(specs)))...)
	for _, s := range specs {
		var body []byte
		body = append(body, uleb(uint64(len(s.locals)))...)
		for _, d := range s.locals {
			body = append(body, uleb(uint64(d.Count))...)
			body = append(body, vtByte(d.Type))
		}
		body = append(body, s.body...)
		body = append(body, 0x0b) // end
		codeSec = append(codeSec, uleb(uint64(len(body)))...)
		codeSec = append(codeSec, body...)
	}
	mod = append(mod, section(secCode, codeSec)...)

	m, err := decode.Decode(mod)
	require.NoError(t, err)
	require.NoError(t, resolve.Module(m))
	return m
}

func TestRunExportedIdentity(t *testing.T) {
	m := buildModule(t, []funcSpec{
		{
			name:    "id",
			params:  []wasm.ValueType{wasm.I32},
			results: []wasm.ValueType{wasm.I32},
			body:    []byte{0x20, 0x00}, // local.get 0
		},
	})

	vm := New(m)
	result, err := vm.RunExported("id", []string{"7"})
	require.NoError(t, err)
	require.NotNil(t, result)
	assert.Equal(t, int32(7), result.I32())
}

func TestRunExportedAdd(t *testing.T) {
	m := buildModule(t, []funcSpec{
		{
			name:    "add",
			params:  []wasm.ValueType{wasm.I32, wasm.I32},
			results: []wasm.ValueType{wasm.I32},
			body: []byte{
				0x20, 0x00, // local.get 0
				0x20, 0x01, // local.get 1
				0x6a, // i32.add
			},
		},
	})

	vm := New(m)
	result, err := vm.RunExported("add", []string{"2", "3"})
	require.NoError(t, err)
	require.NotNil(t, result)
	assert.Equal(t, int32(5), result.I32())
}

// fact computes n! iteratively via a block/loop pair:
//
//	local1 = 1
//	block
//	  loop
//	    local.get 0; i32.eqz; br_if 1      (break to block when n == 0)
//	    local.get 1; local.get 0; i32.mul; local.set 1
//	    local.get 0; i32.const 1; i32.sub; local.set 0
//	    br 0
//	  end
//	end
//	local.get 1
func TestRunExportedIterativeFactorial(t *testing.T) {
	blockType := []byte{0x40} // void
	body := []byte{}
	body = append(body, 0x41) // i32.const 1
	body = append(body, sleb(1)...)
	body = append(body, 0x21, 0x01) // local.set 1 (result accumulator)

	body = append(body, 0x02) // block
	body = append(body, blockType...)
	body = append(body, 0x03) // loop
	body = append(body, blockType...)

	body = append(body, 0x20, 0x00) // local.get 0 (n)
	body = append(body, 0x45)       // i32.eqz
	body = append(body, 0x0D)       // br_if
	body = append(body, uleb(1)...) // depth 1 -> block (break)

	body = append(body, 0x20, 0x01) // local.get 1 (result)
	body = append(body, 0x20, 0x00) // local.get 0 (n)
	body = append(body, 0x6c)       // i32.mul
	body = append(body, 0x21, 0x01) // local.set 1

	body = append(body, 0x20, 0x00) // local.get 0 (n)
	body = append(body, 0x41)       // i32.const 1
	body = append(body, sleb(1)...)
	body = append(body, 0x6b)       // i32.sub
	body = append(body, 0x21, 0x00) // local.set 0

	body = append(body, 0x0C)       // br
	body = append(body, uleb(0)...) // depth 0 -> loop (continue)

	body = append(body, 0x0b) // end (loop)
	body = append(body, 0x0b) // end (block)

	body = append(body, 0x20, 0x01) // local.get 1 (result)

	m := buildModule(t, []funcSpec{
		{
			name:    "fact",
			params:  []wasm.ValueType{wasm.I32},
			results: []wasm.ValueType{wasm.I32},
			locals:  []wasm.LocalDecl{{Count: 1, Type: wasm.I32}},
			body:    body,
		},
	})

	vm := New(m)
	result, err := vm.RunExported("fact", []string{"5"})
	require.NoError(t, err)
	require.NotNil(t, result)
	assert.Equal(t, int32(120), result.I32())
}

// isPositive returns 1 if n > 0, else 0, via if/else.
func TestRunExportedIfElse(t *testing.T) {
	body := []byte{
		0x20, 0x00, // local.get 0
		0x41, 0x00, // i32.const 0
		0x4a,       // i32.gt_s
		0x04, 0x7f, // if (result i32)
		0x41, 0x01, // i32.const 1
		0x05,       // else
		0x41, 0x00, // i32.const 0
		0x0b, // end
	}

	m := buildModule(t, []funcSpec{
		{
			name:    "sign",
			params:  []wasm.ValueType{wasm.I32},
			results: []wasm.ValueType{wasm.I32},
			body:    body,
		},
	})

	vm := New(m)
	result, err := vm.RunExported("sign", []string{"5"})
	require.NoError(t, err)
	assert.Equal(t, int32(1), result.I32())

	result, err = vm.RunExported("sign", []string{"-3"})
	require.NoError(t, err)
	assert.Equal(t, int32(0), result.I32())
}

// TestRunExportedRecursiveFibonacci builds a single function, fib (index 0),
// which calls itself and is exported directly.
// fib(n) = n if n < 2 else fib(n-1) + fib(n-2).
func TestRunExportedRecursiveFibonacci(t *testing.T) {
	body := []byte{
		0x20, 0x00, // local.get 0
		0x41, 0x02, // i32.const 2
		0x48,       // i32.lt_s
		0x04, 0x7f, // if (result i32)
		0x20, 0x00, // local.get 0
		0x05, // else

		0x20, 0x00, // local.get 0
		0x41, 0x01, // i32.const 1
		0x6b,       // i32.sub
		0x10, 0x00, // call 0 (fib)

		0x20, 0x00, // local.get 0
		0x41, 0x02, // i32.const 2
		0x6b,       // i32.sub
		0x10, 0x00, // call 0 (fib)

		0x6a, // i32.add
		0x0b, // end (if)
	}

	m := buildModule(t, []funcSpec{
		{
			name:    "fib",
			params:  []wasm.ValueType{wasm.I32},
			results: []wasm.ValueType{wasm.I32},
			body:    body,
		},
	})

	vm := New(m)
	result, err := vm.RunExported("fib", []string{"10"})
	require.NoError(t, err)
	assert.Equal(t, int32(55), result.I32())
}

func TestRunExportedTrapDivByZero(t *testing.T) {
	body := []byte{
		0x20, 0x00, // local.get 0
		0x20, 0x01, // local.get 1
		0x6d, // i32.div_s
	}

	m := buildModule(t, []funcSpec{
		{
			name:    "divide",
			params:  []wasm.ValueType{wasm.I32, wasm.I32},
			results: []wasm.ValueType{wasm.I32},
			body:    body,
		},
	})

	vm := New(m)
	_, err := vm.RunExported("divide", []string{"10", "0"})
	require.Error(t, err)

	var trap *errors.Trap
	require.ErrorAs(t, err, &trap)
	assert.ErrorIs(t, trap, errors.ErrDivByZero)
}

func TestRunExportedUnknownExport(t *testing.T) {
	m := buildModule(t, []funcSpec{
		{name: "id", params: []wasm.ValueType{wasm.I32}, results: []wasm.ValueType{wasm.I32}, body: []byte{0x20, 0x00}},
	})
	vm := New(m)
	_, err := vm.RunExported("missing", nil)
	require.Error(t, err)
	assert.ErrorIs(t, err, errors.ErrUnknownExport)
}

func TestRunExportedArityMismatch(t *testing.T) {
	m := buildModule(t, []funcSpec{
		{name: "id", params: []wasm.ValueType{wasm.I32}, results: []wasm.ValueType{wasm.I32}, body: []byte{0x20, 0x00}},
	})
	vm := New(m)
	_, err := vm.RunExported("id", nil)
	require.Error(t, err)
	assert.ErrorIs(t, err, errors.ErrArgArityMismatch)
}
