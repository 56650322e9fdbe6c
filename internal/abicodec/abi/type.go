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

// Package abi is a deliberately small ABI type system, shaped after
// go-ethereum's accounts/abi package. Parsing the ABI JSON document
// itself is an external collaborator (spec §1); this package only
// models the resulting descriptors and knows how to pack/unpack them,
// which is the part the fuzzer's codec (C9) actually needs.
package abi

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/sfuzz/sfuzz/internal/fuzzerrors"
)

// T enumerates the Solidity type categories sfuzz's codec supports.
type T int

const (
	BoolTy T = iota
	UintTy
	IntTy
	AddressTy
	FixedBytesTy
	BytesTy
	StringTy
	SliceTy
	ArrayTy
)

// Type describes one Solidity ABI type, recursively for slices/arrays.
type Type struct {
	Elem *Type
	Size int // bit width for int/uint, byte width for fixed bytes, length for array
	T    T

	stringKind string
}

const WordSize = 32

var sliceArrayRe = regexp.MustCompile(`\[(\d*)\]$`)

// NewType parses a canonical Solidity type string ("uint256", "bytes32",
// "address[]", "uint8[4]", ...) into a Type. Tuples are out of scope:
// the fuzzer never needs to synthesize struct-shaped calldata because
// every ABI the corpus feeds it is flattened to primitive arguments
// before it reaches this package.
func NewType(raw string) (Type, error) {
	if m := sliceArrayRe.FindStringSubmatch(raw); m != nil {
		inner := raw[:len(raw)-len(m[0])]
		elem, err := NewType(inner)
		if err != nil {
			return Type{}, err
		}
		if m[1] == "" {
			return Type{T: SliceTy, Elem: &elem, stringKind: raw}, nil
		}
		size, err := strconv.Atoi(m[1])
		if err != nil {
			return Type{}, fmt.Errorf("abi: bad array size in %q: %w", raw, err)
		}
		return Type{T: ArrayTy, Elem: &elem, Size: size, stringKind: raw}, nil
	}

	switch {
	case raw == "bool":
		return Type{T: BoolTy, stringKind: raw}, nil
	case raw == "address":
		return Type{T: AddressTy, Size: 20, stringKind: raw}, nil
	case raw == "string":
		return Type{T: StringTy, stringKind: raw}, nil
	case raw == "bytes":
		return Type{T: BytesTy, stringKind: raw}, nil
	case strings.HasPrefix(raw, "bytes"):
		n, err := strconv.Atoi(raw[5:])
		if err != nil || n < 1 || n > 32 {
			return Type{}, fmt.Errorf("abi: bad fixed-bytes type %q: %w", raw, fuzzerrors.ErrUnsupportedType)
		}
		return Type{T: FixedBytesTy, Size: n, stringKind: raw}, nil
	case strings.HasPrefix(raw, "uint"):
		n, err := parseBits(raw[4:])
		if err != nil {
			return Type{}, err
		}
		return Type{T: UintTy, Size: n, stringKind: raw}, nil
	case strings.HasPrefix(raw, "int"):
		n, err := parseBits(raw[3:])
		if err != nil {
			return Type{}, err
		}
		return Type{T: IntTy, Size: n, stringKind: raw}, nil
	}
	return Type{}, fmt.Errorf("abi: %q: %w", raw, fuzzerrors.ErrUnsupportedType)
}

func parseBits(s string) (int, error) {
	if s == "" {
		return 256, nil
	}
	n, err := strconv.Atoi(s)
	if err != nil || n < 8 || n > 256 || n%8 != 0 {
		return 0, fmt.Errorf("abi: bad integer width %q: %w", s, fuzzerrors.ErrUnsupportedType)
	}
	return n, nil
}

// String renders the canonical type string, the way Type.String does
// in the teacher's package.
func (t Type) String() string {
	if t.stringKind != "" {
		return t.stringKind
	}
	return "<unknown>"
}

// IsDynamic reports whether t's encoding uses the head/tail scheme
// (dynamic length, stored by offset) rather than a fixed 32-byte word.
func (t Type) IsDynamic() bool {
	switch t.T {
	case StringTy, BytesTy, SliceTy:
		return true
	case ArrayTy:
		return t.Elem.IsDynamic()
	default:
		return false
	}
}
