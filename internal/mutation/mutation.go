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

package mutation

import (
	"encoding/binary"
	"math/rand"

	lru "github.com/hashicorp/golang-lru/v2"
)

// Mutator runs the deterministic stage catalogue (C7) against one
// FuzzItem, calling back into save for every candidate buffer. It
// mirrors AFL's afl-fuzz.c stage sequence: walking bit, walking byte
// (building the effector bitmap as it goes), arithmetic, interesting
// values, dictionary overlay, then havoc/splice (havoc.go).
type Mutator struct {
	item     *FuzzItem
	codeDict *lru.Cache[string, []byte]
	addrDict [20]byte
	effector []byte
	stats    *Stats
	rng      *rand.Rand
}

// NewMutator builds a Mutator for item, seeding the code dictionary
// from the target contract's bytecode and the address dictionary from
// the attacker account (spec §4.7's dictionary overlay stage).
func NewMutator(item *FuzzItem, code []byte, attacker [20]byte, rng *rand.Rand) *Mutator {
	return &Mutator{
		item:     item,
		codeDict: BuildCodeDictionary(code),
		addrDict: attacker,
		stats:    NewStats(),
		rng:      rng,
	}
}

// Effector returns the current effector bitmap (nil until
// SingleWalkingByte has run).
func (m *Mutator) Effector() []byte { return m.effector }

// Stats returns the mutator's stage-cycle counters.
func (m *Mutator) Stats() *Stats { return m.stats }

func (m *Mutator) data() []byte { return m.item.Data }

// effectiveBlock reports whether byte-block i was marked effective by
// SingleWalkingByte (or no effector map has been built yet, in which
// case every block is treated as effective).
func (m *Mutator) effectiveBlock(i int) bool {
	if len(m.effector) == 0 {
		return true
	}
	blk := effAPos(i)
	if blk >= len(m.effector) {
		return true
	}
	return m.effector[blk] != 0
}

// SingleWalkingBit flips each individual bit in turn, saving and then
// restoring it — the buffer is unchanged at the end of the stage
// (spec §8 invariant 5).
func (m *Mutator) SingleWalkingBit(save SaveFunc) error {
	return m.walkBits(1, save)
}

// TwoWalkingBit flips each adjacent bit pair in turn.
func (m *Mutator) TwoWalkingBit(save SaveFunc) error {
	return m.walkBits(2, save)
}

// FourWalkingBit flips each adjacent nibble-sized bit group in turn.
func (m *Mutator) FourWalkingBit(save SaveFunc) error {
	return m.walkBits(4, save)
}

func (m *Mutator) walkBits(width int, save SaveFunc) error {
	data := m.data()
	total := len(data) * 8
	n := 0
	for bitPos := 0; bitPos+width <= total; bitPos++ {
		flipBitRange(data, bitPos, width)
		if _, err := save(data); err != nil {
			flipBitRange(data, bitPos, width)
			return err
		}
		flipBitRange(data, bitPos, width)
		n++
	}
	m.stats.recordStage("walking_bit", n)
	return nil
}

func flipBitRange(data []byte, bitPos, width int) {
	for b := 0; b < width; b++ {
		p := bitPos + b
		data[p/8] ^= 1 << uint(p%8)
	}
}

// SingleWalkingByte flips every byte in turn (XOR 0xFF), building the
// effector bitmap from which flips change the execution checksum. If
// more than EffMaxPerc% of blocks turn out effective, the whole map is
// treated as effective (AFL's "give up on pruning" fallback).
func (m *Mutator) SingleWalkingByte(save SaveFunc) error {
	data := m.data()
	baseline, err := save(data)
	if err != nil {
		return err
	}
	eff := make([]byte, effALen(len(data)))
	n := 0
	for i := range data {
		orig := data[i]
		data[i] ^= 0xFF
		cksum, err := save(data)
		if err != nil {
			data[i] = orig
			return err
		}
		if cksum != baseline {
			eff[effAPos(i)] = 1
		}
		data[i] = orig
		n++
	}
	m.stats.recordStage("walking_byte", n)

	ones := 0
	for _, b := range eff {
		if b != 0 {
			ones++
		}
	}
	if len(eff) > 0 && ones*100/len(eff) > EffMaxPerc {
		for i := range eff {
			eff[i] = 1
		}
	}
	m.effector = eff
	return nil
}

// TwoWalkingByte flips each adjacent byte pair, skipping spans the
// effector map marked wholly ineffective.
func (m *Mutator) TwoWalkingByte(save SaveFunc) error {
	return m.walkBytes(2, save)
}

// FourWalkingByte flips each adjacent 4-byte span.
func (m *Mutator) FourWalkingByte(save SaveFunc) error {
	return m.walkBytes(4, save)
}

func (m *Mutator) walkBytes(width int, save SaveFunc) error {
	data := m.data()
	n := 0
	for i := 0; i+width <= len(data); i++ {
		if !m.spanEffective(i, width) {
			continue
		}
		for b := 0; b < width; b++ {
			data[i+b] ^= 0xFF
		}
		if _, err := save(data); err != nil {
			for b := 0; b < width; b++ {
				data[i+b] ^= 0xFF
			}
			return err
		}
		for b := 0; b < width; b++ {
			data[i+b] ^= 0xFF
		}
		n++
	}
	m.stats.recordStage("walking_byte", n)
	return nil
}

func (m *Mutator) spanEffective(pos, length int) bool {
	if len(m.effector) == 0 {
		return true
	}
	for blk := effAPos(pos); blk <= effAPos(pos+length-1) && blk < len(m.effector); blk++ {
		if m.effector[blk] != 0 {
			return true
		}
	}
	return false
}

// SingleArith adds/subtracts small deltas from each byte in turn.
func (m *Mutator) SingleArith(save SaveFunc) error {
	return m.arith(1, save)
}

// TwoArith adds/subtracts small deltas from each 16-bit little-endian
// word in turn; big-endian interpretation is not tried.
func (m *Mutator) TwoArith(save SaveFunc) error {
	return m.arith(2, save)
}

// FourArith adds/subtracts small deltas from each 32-bit little-endian
// word in turn; big-endian interpretation is not tried.
func (m *Mutator) FourArith(save SaveFunc) error {
	return m.arith(4, save)
}

func (m *Mutator) arith(width int, save SaveFunc) error {
	data := m.data()
	n := 0
	for i := 0; i+width <= len(data); i++ {
		if !m.spanEffective(i, width) {
			continue
		}
		orig := make([]byte, width)
		copy(orig, data[i:i+width])
		for delta := 1; delta <= ArithMax; delta++ {
			for _, d := range [2]int{delta, -delta} {
				setArithWord(data[i:i+width], getArithWord(orig, width)+int64(d), width)
				if _, err := save(data); err != nil {
					copy(data[i:i+width], orig)
					return err
				}
				n++
			}
		}
		copy(data[i:i+width], orig)
	}
	m.stats.recordStage("arith", n)
	return nil
}

func getArithWord(b []byte, width int) int64 {
	switch width {
	case 1:
		return int64(b[0])
	case 2:
		return int64(binary.LittleEndian.Uint16(b))
	default:
		return int64(binary.LittleEndian.Uint32(b))
	}
}

func setArithWord(dst []byte, v int64, width int) {
	switch width {
	case 1:
		dst[0] = byte(v)
	case 2:
		binary.LittleEndian.PutUint16(dst, uint16(v))
	default:
		binary.LittleEndian.PutUint32(dst, uint32(v))
	}
}

// SingleInterest overwrites each byte with each of the "interesting"
// 8-bit values in turn.
func (m *Mutator) SingleInterest(save SaveFunc) error {
	return m.interest(1, interesting8, save)
}

// TwoInterest overwrites each 16-bit word with each interesting value.
func (m *Mutator) TwoInterest(save SaveFunc) error {
	return m.interest(2, interesting16, save)
}

// FourInterest overwrites each 32-bit word with each interesting value.
func (m *Mutator) FourInterest(save SaveFunc) error {
	return m.interest(4, interesting32, save)
}

func (m *Mutator) interest(width int, values []int32, save SaveFunc) error {
	data := m.data()
	n := 0
	for i := 0; i+width <= len(data); i++ {
		if !m.spanEffective(i, width) {
			continue
		}
		orig := make([]byte, width)
		copy(orig, data[i:i+width])
		for _, v := range values {
			setArithWord(data[i:i+width], int64(v), width)
			if _, err := save(data); err != nil {
				copy(data[i:i+width], orig)
				return err
			}
			n++
		}
		copy(data[i:i+width], orig)
	}
	m.stats.recordStage("interest", n)
	return nil
}

// OverwriteWithDictionary overlays each code-dictionary entry at every
// offset it fits (spec §4.7's dictionary overlay stage).
func (m *Mutator) OverwriteWithDictionary(save SaveFunc) error {
	entries := DictionaryEntries(m.codeDict)
	data := m.data()
	n := 0
	for _, entry := range entries {
		if len(entry) > len(data) {
			continue
		}
		for i := 0; i+len(entry) <= len(data); i++ {
			if !m.spanEffective(i, len(entry)) {
				continue
			}
			orig := make([]byte, len(entry))
			copy(orig, data[i:i+len(entry)])
			copy(data[i:i+len(entry)], entry)
			if _, err := save(data); err != nil {
				copy(data[i:i+len(entry)], orig)
				return err
			}
			copy(data[i:i+len(entry)], orig)
			n++
		}
	}
	m.stats.recordStage("dict", n)
	return nil
}

// OverwriteWithAddressDictionary overlays the attacker's 20-byte
// address at the low 20 bytes of each 32-byte calldata word (spec
// §4.7), matching sFuzz's overwriteWithAddressDictionary: addresses
// are right-aligned within a word, so the overlay only ever lands at
// word offset 12, never at arbitrary byte offsets.
func (m *Mutator) OverwriteWithAddressDictionary(save SaveFunc) error {
	data := m.data()
	entry := m.addrDict[:]
	n := 0
	for i := 0; i+slotWidth <= len(data); i += slotWidth {
		pos := i + 12
		if !m.spanEffective(pos, len(entry)) {
			continue
		}
		orig := make([]byte, len(entry))
		copy(orig, data[pos:pos+len(entry)])
		copy(data[pos:pos+len(entry)], entry)
		if _, err := save(data); err != nil {
			copy(data[pos:pos+len(entry)], orig)
			return err
		}
		copy(data[pos:pos+len(entry)], orig)
		n++
	}
	m.stats.recordStage("addr_dict", n)
	return nil
}
