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

// Package contract holds the immutable per-target data sfuzz loads once
// and never mutates: creation/runtime bytecode, ABI, source maps, source
// text and the addressing convention shared by every other component.
package contract

import (
	"bytes"
	"encoding/hex"
	"fmt"

	"github.com/sfuzz/sfuzz/internal/abicodec/abi"
	"github.com/sfuzz/sfuzz/internal/fuzzerrors"
)

// Victim and attacker addresses match sFuzz's TargetContainer constants:
// the fuzzer always deploys exactly one victim and, optionally, one
// attacker used to trigger reentrancy and cross-contract bugs.
var (
	VictimAddress   = [20]byte{0xf1}
	AttackerAddress = [20]byte{0xf0}
)

// Range is a half-open byte range into the concatenated source text,
// used both for source-map segments and for "constant function" spans.
type Range struct {
	Offset int
	Length int
}

// End returns the exclusive end offset of r.
func (r Range) End() int { return r.Offset + r.Length }

// Contains reports whether o lies strictly inside r (used by the
// classifier's short-circuit promotion and constant-function rejection
// rules, spec §4.3).
func (r Range) Contains(o Range) bool {
	return o.Offset >= r.Offset && o.End() <= r.End() && !(o.Offset == r.Offset && o.End() == r.End())
}

// Equal reports whether r and o cover the identical span.
func (r Range) Equal(o Range) bool { return r.Offset == o.Offset && r.Length == o.Length }

// Info is the ContractInfo entity of spec §3: immutable once loaded.
type Info struct {
	Name   string
	IsMain bool

	CreationBytecode []byte
	RuntimeBytecode  []byte

	CreationSourceMap string
	RuntimeSourceMap  string

	Source string

	ABI abi.Descriptor

	// ConstRanges are the source ranges of pure/view functions; branches
	// whose JUMPI candidate falls inside one are rejected (spec §4.3).
	ConstRanges []Range
}

// LinkLibraries resolves __placeholder__ runs in creation bytecode to a
// caller-supplied 20-byte library address (spec §7: "Library linking").
// An unrecognized library name fails the load.
func (c *Info) LinkLibraries(libs map[string][20]byte) error {
	code := c.CreationBytecode
	for {
		start := bytes.IndexByte(code, '_')
		if start == -1 || start+40 > len(code) {
			break
		}
		if code[start] != '_' || code[start+1] != '_' {
			// Not a placeholder run; scan past this underscore only.
			idx := bytes.IndexByte(code[start+1:], '_')
			if idx == -1 {
				break
			}
			code = code[start+1+idx:]
			continue
		}
		name := string(bytes.Trim(code[start:start+40], "_"))
		addr, ok := libs[name]
		if !ok {
			return fmt.Errorf("contract: linking %q: %w", name, fuzzerrors.ErrUnknownLibrary)
		}
		hexAddr := hex.EncodeToString(addr[:])
		copy(code[start:start+40], hexAddr)
		code = code[start+40:]
	}
	return nil
}
