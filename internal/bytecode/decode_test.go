// Copyright 2024 The sfuzz Authors
// This file is part of the sfuzz library.
//
// The sfuzz library is free software: you can redistribute it and/or modify
// it under the terms of the GNU Lesser General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
//
// The sfuzz library is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE. See the
// GNU Lesser General Public License for more details.
//
// You should have received a copy of the GNU Lesser General Public License
// along with the sfuzz library. If not, see <http://www.gnu.org/licenses/>.

package bytecode

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestDecodeSimplePushChain(t *testing.T) {
	code := []byte{0x60, 0x01, 0x60, 0x02, 0x60, 0x03}
	got := Decode(code)
	want := []Instruction{{PC: 1, Op: PUSH1}, {PC: 3, Op: PUSH1}, {PC: 5, Op: PUSH1}}
	require.Equal(t, want, got)
}

func TestDecodeMonotonicAndLengthInvariant(t *testing.T) {
	code := []byte{0x7f, 1, 2, 3, 4, 5, 6, 7, 8, 9, 10, 11, 12, 13, 14, 15, 16,
		17, 18, 19, 20, 21, 22, 23, 24, 25, 26, 27, 28, 29, 30, 31, 32, 0x01, 0x00}
	insts := Decode(code)
	var lastPC uint64
	sawNeg := false
	for i, inst := range insts {
		if i > 0 && inst.PC <= lastPC {
			sawNeg = true
		}
		lastPC = inst.PC
		require.Less(t, inst.PC, uint64(len(code)))
	}
	require.False(t, sawNeg, "pc must be strictly increasing")
	require.Equal(t, OpCode(PUSH32), insts[0].Op)
	require.Equal(t, uint64(32), insts[0].PC)
}

func TestDecodeNeverFailsOnTruncatedPush(t *testing.T) {
	code := []byte{0x7f, 1, 2, 3}
	require.NotPanics(t, func() { Decode(code) })
}

func TestDecodePassesThroughInvalidOpcodes(t *testing.T) {
	code := []byte{0x0c, 0x0d, 0xfe}
	insts := Decode(code)
	require.Len(t, insts, 3)
	require.Equal(t, OpCode(0x0c), insts[0].Op)
	require.Equal(t, INVALID, insts[2].Op)
}
