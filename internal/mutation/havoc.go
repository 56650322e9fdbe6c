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

import "encoding/binary"

// havocCaseCount is the number of distinct mutation operators havoc
// stacks at random (AFL's HAVOC_STACK_* catalogue, trimmed to what a
// byte-buffer testcase without a length-prefix framing needs).
const havocCaseCount = 15

// Havoc runs rounds rounds of randomly stacked mutations on a scratch
// copy of the item, each round stacking 1..(1<<HavocStackPow2)
// mutations onto the previous round's buffer, calling save after each
// stacked round. The item's own buffer is left untouched.
func (m *Mutator) Havoc(rounds int, save SaveFunc) error {
	data := m.item.Clone()
	for r := 0; r < rounds; r++ {
		stack := 1 + m.rng.Intn(1<<HavocStackPow2)
		for s := 0; s < stack; s++ {
			data = m.havocStep(data)
		}
		if _, err := save(data); err != nil {
			return err
		}
		m.stats.HavocExecs++
	}
	return nil
}

func (m *Mutator) havocStep(data []byte) []byte {
	if len(data) == 0 {
		return data
	}
	switch m.rng.Intn(havocCaseCount) {
	case 0: // flip a single bit
		pos := m.rng.Intn(len(data) * 8)
		data[pos/8] ^= 1 << uint(pos%8)
	case 1: // overwrite a byte with an interesting 8-bit value
		data[m.rng.Intn(len(data))] = byte(interesting8[m.rng.Intn(len(interesting8))])
	case 2: // overwrite a 16-bit word with an interesting value
		if len(data) >= 2 {
			i := m.rng.Intn(len(data) - 1)
			binary.LittleEndian.PutUint16(data[i:], uint16(interesting16[m.rng.Intn(len(interesting16))]))
		}
	case 3: // overwrite a 32-bit word with an interesting value
		if len(data) >= 4 {
			i := m.rng.Intn(len(data) - 3)
			binary.LittleEndian.PutUint32(data[i:], uint32(interesting32[m.rng.Intn(len(interesting32))]))
		}
	case 4: // subtract a small delta from a random byte
		i := m.rng.Intn(len(data))
		data[i] -= byte(1 + m.rng.Intn(ArithMax))
	case 5: // add a small delta to a random byte
		i := m.rng.Intn(len(data))
		data[i] += byte(1 + m.rng.Intn(ArithMax))
	case 6: // subtract a small delta from a random 16-bit word
		if len(data) >= 2 {
			i := m.rng.Intn(len(data) - 1)
			v := binary.LittleEndian.Uint16(data[i:])
			binary.LittleEndian.PutUint16(data[i:], v-uint16(1+m.rng.Intn(ArithMax)))
		}
	case 7: // add a small delta to a random 16-bit word
		if len(data) >= 2 {
			i := m.rng.Intn(len(data) - 1)
			v := binary.LittleEndian.Uint16(data[i:])
			binary.LittleEndian.PutUint16(data[i:], v+uint16(1+m.rng.Intn(ArithMax)))
		}
	case 8: // set a random byte to a random value
		data[m.rng.Intn(len(data))] = byte(m.rng.Intn(256))
	case 9: // delete a random byte span
		if len(data) > 1 {
			i := m.rng.Intn(len(data))
			n := 1 + m.rng.Intn(len(data)-i)
			data = append(data[:i], data[i+n:]...)
		}
	case 10: // clone a random byte span and insert it elsewhere
		i := m.rng.Intn(len(data))
		n := 1 + m.rng.Intn(len(data)-i)
		chunk := append([]byte(nil), data[i:i+n]...)
		at := m.rng.Intn(len(data) + 1)
		out := make([]byte, 0, len(data)+n)
		out = append(out, data[:at]...)
		out = append(out, chunk...)
		out = append(out, data[at:]...)
		data = out
	case 11: // overwrite a byte with a code-dictionary byte
		entries := DictionaryEntries(m.codeDict)
		if len(entries) > 0 {
			e := entries[m.rng.Intn(len(entries))]
			if len(e) > 0 && len(data) > 0 {
				i := m.rng.Intn(len(data))
				data[i] = e[m.rng.Intn(len(e))]
			}
		}
	case 12: // overlay a code-dictionary entry
		entries := DictionaryEntries(m.codeDict)
		if len(entries) > 0 {
			e := entries[m.rng.Intn(len(entries))]
			if len(e) > 0 && len(e) <= len(data) {
				i := m.rng.Intn(len(data) - len(e) + 1)
				copy(data[i:], e)
			}
		}
	case 13: // overlay the attacker address
		if len(m.addrDict) <= len(data) {
			i := m.rng.Intn(len(data) - len(m.addrDict) + 1)
			copy(data[i:], m.addrDict[:])
		}
	default: // flip a whole byte (XOR 0xFF)
		data[m.rng.Intn(len(data))] ^= 0xFF
	}
	return data
}

// SpliceLocus finds the first byte position where self and partner
// differ, used to judge whether a partner is worth splicing with at
// all (AFL requires at least one differing byte within the shared
// prefix; an identical pair produces no new coverage).
func SpliceLocus(self, partner []byte) (pos int, found bool) {
	n := len(self)
	if len(partner) < n {
		n = len(partner)
	}
	for i := 0; i < n; i++ {
		if self[i] != partner[i] {
			return i, true
		}
	}
	return 0, false
}

// Splice builds one spliced child by concatenating partner and self in
// full, so the result's length is always len(partner)+len(self) —
// 2*max(len(self), len(partner)) whenever the two testcases share the
// fixed per-contract length the ABI codec freezes (spec §8's splice
// length invariant) — and calls save.
func Splice(self, partner []byte, save SaveFunc) error {
	out := make([]byte, 0, len(partner)+len(self))
	out = append(out, partner...)
	out = append(out, self...)
	_, err := save(out)
	return err
}
