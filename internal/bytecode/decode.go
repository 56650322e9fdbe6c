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

package bytecode

// Instruction is one decoded opcode. PC is the program counter of the
// *last* byte of the instruction's span (its immediate's last byte for
// PUSHn, the opcode's own byte otherwise) — see spec §4.1.
type Instruction struct {
	PC uint64
	Op OpCode
}

// Decode performs the linear scan of spec §4.1. It never fails:
// invalid opcodes are passed through unchanged, since jump-destination
// analysis and disassembly of adversarial or truncated bytecode must
// never abort the fuzz loop (spec §7).
func Decode(code []byte) []Instruction {
	insts := make([]Instruction, 0, len(code))
	for i := 0; i < len(code); {
		op := OpCode(code[i])
		if op.IsPush() {
			i += op.PushBytes()
			if i >= len(code) {
				// Truncated immediate: the instruction still spans to
				// the end of the buffer, matching what a real EVM's
				// jumpdest analysis does with a dangling PUSH.
				i = len(code) - 1
			}
		}
		insts = append(insts, Instruction{PC: uint64(i), Op: op})
		i++
	}
	return insts
}
