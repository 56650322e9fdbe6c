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

// Package abicodec implements the ABI codec (C9): testcase layout,
// random generation, postprocessing, and calldata encoding for a
// contract's constructor and functions. A testcase is laid out as
// accounts_prefix || block_prefix || constructor_args || function
// args..., one 32-byte slot per argument (spec §4.9); string and bytes
// use the slot's first byte as a length selector over deterministic
// filler so the codec stays stable and idempotent (spec §8) without
// needing a variable-width raw buffer. Array and slice arguments are
// not encoded: encodeSlot rejects them with ErrUnsupportedType.
package abicodec

import (
	"github.com/sfuzz/sfuzz/internal/abicodec/abi"
)

const (
	// AccountsPrefixLen holds one uint256 word: the attacker account's
	// seeded balance (spec §4.9's "accounts_prefix").
	AccountsPrefixLen = 32
	// BlockPrefixLen holds two big-endian uint64 words: timestamp and
	// block number.
	BlockPrefixLen = 16

	slotSize = 32
)

// slot identifies one argument's byte range within the raw testcase.
type slot struct {
	offset int
	typ    abi.Type
}

// Codec drives testcase layout and encoding for one contract's ABI.
type Codec struct {
	descriptor abi.Descriptor

	constructorSlots []slot
	functionSlots    [][]slot

	// data0Len freezes to the length of the first postprocessed
	// testcase this Codec ever produced (spec §3 invariant 6), used by
	// the mutation engine's splice stage as the "prefix length".
	data0Len    int
	data0Frozen bool
}

// New builds a Codec and its fixed slot layout from d.
func New(d abi.Descriptor) *Codec {
	c := &Codec{descriptor: d}
	c.constructorSlots = layoutArgs(d.Constructor)
	for _, fn := range d.Functions {
		c.functionSlots = append(c.functionSlots, layoutArgs(fn.Inputs))
	}
	return c
}

func layoutArgs(args abi.Arguments) []slot {
	slots := make([]slot, len(args))
	offset := 0
	for i, a := range args {
		slots[i] = slot{offset: offset, typ: a.Type}
		offset += slotSize
	}
	return slots
}

// TotalLen returns the fixed raw-buffer length this contract's layout
// requires: every testcase for this contract has exactly this length
// once postprocessed.
func (c *Codec) TotalLen() int {
	total := AccountsPrefixLen + BlockPrefixLen + len(c.constructorSlots)*slotSize
	for _, fs := range c.functionSlots {
		total += len(fs) * slotSize
	}
	return total
}

// Data0Len returns the frozen prefix length of invariant 6. It returns
// 0 if no testcase has been generated or postprocessed yet.
func (c *Codec) Data0Len() int {
	return c.data0Len
}

func (c *Codec) freezeData0Len(n int) {
	if !c.data0Frozen {
		c.data0Len = n
		c.data0Frozen = true
	}
}

// constructorRegion returns the byte offsets of the constructor's
// argument slots within a postprocessed buffer.
func (c *Codec) constructorRegion() (start, end int) {
	start = AccountsPrefixLen + BlockPrefixLen
	end = start + len(c.constructorSlots)*slotSize
	return
}

// functionRegion returns the byte offsets of function i's argument
// slots within a postprocessed buffer.
func (c *Codec) functionRegion(i int) (start, end int) {
	_, start = c.constructorRegion()
	for j := 0; j < i; j++ {
		start += len(c.functionSlots[j]) * slotSize
	}
	end = start + len(c.functionSlots[i])*slotSize
	return
}
