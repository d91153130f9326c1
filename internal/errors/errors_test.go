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

package errors

import (
	stderrors "errors"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestWrapDecodeUnwrapsToSentinel(t *testing.T) {
	err := WrapDecode(12, ErrBadMagic, "got 0xdeadbeef")
	assert.ErrorIs(t, err, ErrBadMagic)
	assert.Contains(t, err.Error(), "0xc")
}

func TestWrapResolveUnwrapsToSentinel(t *testing.T) {
	err := WrapResolve(3, ErrUnmatchedEnd, "")
	assert.ErrorIs(t, err, ErrUnmatchedEnd)
}

func TestWrapUnknownExport(t *testing.T) {
	err := WrapUnknownExport("frobnicate")
	assert.ErrorIs(t, err, ErrUnknownExport)
	assert.Contains(t, err.Error(), "frobnicate")
}

func TestWrapArgArityMismatch(t *testing.T) {
	err := WrapArgArityMismatch(2, 1)
	assert.ErrorIs(t, err, ErrArgArityMismatch)
}

func TestNewTrapAtUnwrapsAndCarriesOffset(t *testing.T) {
	trap := NewTrapAt(3, 7, 0x42, ErrDivByZero)
	assert.Equal(t, 3, trap.FuncIndex)
	assert.Equal(t, 7, trap.IP)
	assert.Equal(t, int64(0x42), trap.Offset)
	assert.ErrorIs(t, trap, ErrDivByZero)

	var got *Trap
	assert.True(t, stderrors.As(error(trap), &got))
	assert.Same(t, trap, got)
}
