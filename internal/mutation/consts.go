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

// Package mutation implements the AFL-style mutation engine (C7): a
// stateful mutator bound to one FuzzItem, its dictionaries, and an
// effector bitmap, running the deterministic stage catalogue plus
// havoc and splice.
package mutation

const (
	ArithMax       = 35
	HavocMin       = 16
	HavocStackPow2 = 7
	SpliceCycles   = 15
	MaxDetExtras   = 200
	EffMaxPerc     = 90

	// slotWidth is the ABI codec's fixed per-argument word size: the
	// address-dictionary overlay stage only ever lands at a word's low
	// 20 bytes, never at an arbitrary byte offset.
	slotWidth = 32

	// effMapScale2 is the Glossary's EFF_MAP_SCALE2: each effector
	// bitmap byte covers 2^effMapScale2 == 16 raw bytes.
	effMapScale2 = 4
)

var interesting8 = []int32{-128, -1, 0, 1, 16, 32, 64, 100, 127}

var interesting16 = append(append([]int32{}, interesting8...),
	-32768, -129, 128, 255, 256, 512, 1000, 1024, 4096, 32767)

var interesting32 = append(append([]int32{}, interesting16...),
	-2147483648, -100663046, -32769, 32768, 65535, 65536, 100663045, 2147483647)

// effAPos maps a byte offset to its effector-bitmap block index.
func effAPos(pos int) int { return pos >> effMapScale2 }

func effRem(x int) int { return x & ((1 << effMapScale2) - 1) }

// effALen returns how many effector-bitmap blocks are needed to cover
// length bytes.
func effALen(length int) int {
	n := effAPos(length)
	if effRem(length) != 0 {
		n++
	}
	return n
}

// effSpanALen returns how many effector-bitmap blocks a [pos, pos+length)
// byte span touches.
func effSpanALen(pos, length int) int {
	if length == 0 {
		return 0
	}
	return effAPos(pos+length-1) - effAPos(pos) + 1
}
