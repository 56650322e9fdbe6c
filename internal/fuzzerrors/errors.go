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

// Package fuzzerrors collects the sentinel errors shared across sfuzz's
// packages. EVM-level faults (reverts, invalid opcode, out-of-gas) are
// never represented here: they are trace data, not Go errors.
package fuzzerrors

import "errors"

var (
	// ErrMalformedSourceMap is returned by srcmap.Decompress when the first
	// row of a compressed source map omits a field it cannot inherit.
	ErrMalformedSourceMap = errors.New("fuzzerrors: source map row has no predecessor to inherit from")

	// ErrUnknownLibrary is returned when creation bytecode references a
	// __placeholder__ library link that cannot be resolved to an address.
	ErrUnknownLibrary = errors.New("fuzzerrors: unresolved library placeholder in bytecode")

	// ErrMissingWeightFile is returned by config.Validate when fuzz mode is
	// requested without a previously persisted weight table.
	ErrMissingWeightFile = errors.New("fuzzerrors: fuzz mode requires a persisted weight.json from a prior prefuzz run")

	// ErrEmptyABI is returned when a contract has no function descriptors
	// to drive testcase encoding (a constructor alone does not count).
	ErrEmptyABI = errors.New("fuzzerrors: contract ABI has no callable descriptors")

	// ErrNoLeaderForBranch names a fuzz-mode request for a branch id absent
	// from the persisted leader table. The scheduler does not return it.
	ErrNoLeaderForBranch = errors.New("fuzzerrors: no persisted leader for branch id")

	// ErrUnsupportedType is returned by the ABI codec for a Solidity type it
	// does not know how to pack/unpack.
	ErrUnsupportedType = errors.New("fuzzerrors: unsupported ABI type")
)
