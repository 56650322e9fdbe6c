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
	"strings"

	"golang.org/x/crypto/sha3"

	"github.com/sfuzz/sfuzz/internal/fuzzerrors"
)

// StateMutability mirrors the subset of Solidity's function state
// mutability that matters to the fuzzer: "constant" (pure/view)
// functions never need to be driven with a mutated testcase because
// they cannot change branch coverage through state writes, but the
// classifier still needs to know their source ranges (spec §4.3).
type StateMutability string

const (
	Nonpayable StateMutability = "nonpayable"
	Payable    StateMutability = "payable"
	View       StateMutability = "view"
	Pure       StateMutability = "pure"
)

// IsConstant reports whether calling the method cannot write state.
func (s StateMutability) IsConstant() bool { return s == View || s == Pure }

// Method is one callable function descriptor.
type Method struct {
	Name    string
	Inputs  Arguments
	Mutable StateMutability
}

// Selector returns the 4-byte Keccak256 function selector, computed
// the way the teacher's crypto.Keccak256 + accounts/abi.Method.Sig do.
func (m Method) Selector() [4]byte {
	sig := m.Name + "(" + typesJoined(m.Inputs) + ")"
	h := sha3.NewLegacyKeccak256()
	h.Write([]byte(sig))
	sum := h.Sum(nil)
	var out [4]byte
	copy(out[:], sum[:4])
	return out
}

func typesJoined(args Arguments) string {
	parts := make([]string, len(args))
	for i, a := range args {
		parts[i] = a.Type.String()
	}
	return strings.Join(parts, ",")
}

// Descriptor is the parsed ABI of one contract: a constructor plus an
// ordered list of callable functions. Parsing the raw ABI JSON into
// this shape is the documented external collaborator (spec §1);
// Descriptor is the shape that collaborator is expected to produce.
type Descriptor struct {
	Constructor Arguments
	Functions   []Method
}

// Validate reports fuzzerrors.ErrEmptyABI when there is nothing to
// drive a testcase with.
func (d Descriptor) Validate() error {
	if len(d.Functions) == 0 {
		return fmt.Errorf("abi: descriptor: %w", fuzzerrors.ErrEmptyABI)
	}
	return nil
}
