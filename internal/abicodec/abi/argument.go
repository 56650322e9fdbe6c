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

package abi

import (
	"fmt"

	"github.com/holiman/uint256"

	"github.com/sfuzz/sfuzz/internal/fuzzerrors"
)

// Argument is one named, typed function parameter, mirroring the
// teacher's accounts/abi.Argument.
type Argument struct {
	Name string
	Type Type
}

// Arguments is an ordered parameter list with Solidity's head/tail
// ABI encoding (dynamic values are stored by a 32-byte offset in the
// head, with their actual bytes appended to the tail).
type Arguments []Argument

// Pack encodes values positionally against a, producing calldata
// (without the 4-byte selector).
func (a Arguments) Pack(values ...[]byte) ([]byte, error) {
	if len(values) != len(a) {
		return nil, fmt.Errorf("abi: got %d values for %d arguments", len(values), len(a))
	}
	var head, tail []byte
	headLen := 0
	for _, arg := range a {
		if arg.Type.IsDynamic() {
			headLen += WordSize
		} else {
			headLen += words(arg.Type) * WordSize
		}
	}
	for i, arg := range a {
		raw := values[i]
		if arg.Type.IsDynamic() {
			offset := headLen + len(tail)
			head = append(head, leftPadWord(uint64(offset))...)
			tail = append(tail, raw...)
		} else {
			head = append(head, raw...)
		}
	}
	return append(head, tail...), nil
}

// words reports how many 32-byte words a static type occupies in the
// head (fixed arrays of static elements inline their full contents).
func words(t Type) int {
	if t.T == ArrayTy && !t.Elem.IsDynamic() {
		return t.Size * words(*t.Elem)
	}
	return 1
}

func leftPadWord(v uint64) []byte {
	var out [WordSize]byte
	b := uint256.NewInt(v).Bytes32()
	copy(out[:], b[:])
	return out[:]
}

// EncodeUint encodes an unsigned value into one right-aligned 32-byte
// word, the static encoding the uint/int types share (bool and
// address use the same right alignment through their own encoders).
func EncodeUint(v *uint256.Int) []byte {
	b := v.Bytes32()
	out := make([]byte, WordSize)
	copy(out, b[:])
	return out
}

// EncodeAddress encodes a 20-byte address right-aligned into one word.
func EncodeAddress(addr [20]byte) []byte {
	out := make([]byte, WordSize)
	copy(out[WordSize-20:], addr[:])
	return out
}

// EncodeBool encodes a bool as 0 or 1, right-aligned.
func EncodeBool(v bool) []byte {
	out := make([]byte, WordSize)
	if v {
		out[WordSize-1] = 1
	}
	return out
}

// EncodeFixedBytes left-aligns up to 32 raw bytes, per Solidity's
// bytesN encoding (opposite alignment from the numeric types above).
func EncodeFixedBytes(b []byte) []byte {
	out := make([]byte, WordSize)
	n := len(b)
	if n > WordSize {
		n = WordSize
	}
	copy(out, b[:n])
	return out
}

// EncodeDynamicBytes encodes a length-prefixed, word-padded byte slice
// (used by both `bytes` and `string`).
func EncodeDynamicBytes(b []byte) []byte {
	out := leftPadWord(uint64(len(b)))
	padded := make([]byte, pad32(len(b)))
	copy(padded, b)
	return append(out, padded...)
}

func pad32(n int) int {
	if n%WordSize == 0 {
		return n
	}
	return n + (WordSize - n%WordSize)
}

// DecodeUint reads one right-aligned 32-byte word as an unsigned
// integer truncated to its declared bit width.
func DecodeUint(word []byte, bits int) (*uint256.Int, error) {
	if len(word) != WordSize {
		return nil, fmt.Errorf("abi: %w: short word", fuzzerrors.ErrUnsupportedType)
	}
	v := new(uint256.Int).SetBytes(word)
	if bits < 256 {
		mask := new(uint256.Int).Lsh(uint256.NewInt(1), uint(bits))
		mask.Sub(mask, uint256.NewInt(1))
		v.And(v, mask)
	}
	return v, nil
}

// DecodeAddress reads the low 20 bytes of a right-aligned word.
func DecodeAddress(word []byte) (addr [20]byte, err error) {
	if len(word) != WordSize {
		return addr, fmt.Errorf("abi: %w: short word", fuzzerrors.ErrUnsupportedType)
	}
	copy(addr[:], word[WordSize-20:])
	return addr, nil
}
