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

package abicodec

import (
	"encoding/binary"
	"math/rand"

	"github.com/sfuzz/sfuzz/internal/abicodec/abi"
)

// RandomTestcase produces a fresh, already-postprocessed seed testcase
// for this contract: random accounts/block prefixes plus one
// type-directed random slot per constructor/function argument. rng is
// caller-owned so callers (the scheduler's seed stage, or a test) can
// pin a seed for reproducibility (spec §8 "determinism").
func (c *Codec) RandomTestcase(rng *rand.Rand) []byte {
	out := make([]byte, c.TotalLen())

	fillRandomWord(out[:AccountsPrefixLen], rng)

	block := out[AccountsPrefixLen : AccountsPrefixLen+BlockPrefixLen]
	binary.BigEndian.PutUint64(block[:8], rng.Uint64())
	binary.BigEndian.PutUint64(block[8:16], rng.Uint64())

	for _, s := range c.constructorSlots {
		start, _ := c.constructorRegion()
		randomSlot(out[start+s.offset:start+s.offset+slotSize], s.typ, rng)
	}
	for i, slots := range c.functionSlots {
		start, _ := c.functionRegion(i)
		for _, s := range slots {
			randomSlot(out[start+s.offset:start+s.offset+slotSize], s.typ, rng)
		}
	}

	c.freezeData0Len(len(out))
	return out
}

func fillRandomWord(b []byte, rng *rand.Rand) {
	rng.Read(b)
}

// randomSlot fills one 32-byte slot with a value shaped to suit t, so
// generated testcases exercise realistic edges (booleans actually
// toggle, addresses look like addresses) instead of uniform noise
// that the classifiers would rarely recognize as meaningful.
func randomSlot(word []byte, t abi.Type, rng *rand.Rand) {
	switch t.T {
	case abi.BoolTy:
		word[abi.WordSize-1] = byte(rng.Intn(2))
	case abi.AddressTy:
		rng.Read(word[abi.WordSize-20:])
	case abi.FixedBytesTy:
		rng.Read(word[:t.Size])
	case abi.UintTy, abi.IntTy:
		rng.Read(word)
	case abi.BytesTy, abi.StringTy:
		rng.Read(word)
		word[0] = byte(rng.Intn(abi.WordSize + 1))
	default:
		rng.Read(word)
	}
}
