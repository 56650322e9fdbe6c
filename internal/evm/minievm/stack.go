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

// Package minievm is sfuzz's in-repo reference EVM backend: a small
// interpreter covering the opcodes the classifier and executor
// instrument (spec §4.4-§4.5), not a byte-for-byte production EVM.
// It exists so the engine is runnable and testable standalone; a real
// deployment swaps in a full EVM behind the evm.Backend interface.
package minievm

import "github.com/holiman/uint256"

// stack is the LIFO operand stack, top at the back — matches the
// teacher's core/vm.Stack orientation so evm.Stack.Back(0) is "top".
type stack struct {
	data []*uint256.Int
}

func newStack() *stack { return &stack{data: make([]*uint256.Int, 0, 32)} }

func (s *stack) push(v *uint256.Int) { s.data = append(s.data, v) }

func (s *stack) pop() *uint256.Int {
	n := len(s.data) - 1
	v := s.data[n]
	s.data = s.data[:n]
	return v
}

func (s *stack) peek() *uint256.Int { return s.data[len(s.data)-1] }

// Back implements evm.Stack: n=0 is the top element.
func (s *stack) Back(n int) *uint256.Int { return s.data[len(s.data)-1-n] }

func (s *stack) Len() int { return len(s.data) }

// memory is linear, byte-addressed, growable VM memory.
type memory struct {
	store []byte
}

func newMemory() *memory { return &memory{} }

func (m *memory) Data() []byte { return m.store }
func (m *memory) Len() int     { return len(m.store) }

func (m *memory) resize(size uint64) {
	if uint64(len(m.store)) < size {
		grown := make([]byte, size)
		copy(grown, m.store)
		m.store = grown
	}
}

func (m *memory) set(offset, size uint64, value []byte) {
	if size == 0 {
		return
	}
	m.resize(offset + size)
	copy(m.store[offset:offset+size], value)
}

func (m *memory) get(offset, size uint64) []byte {
	m.resize(offset + size)
	out := make([]byte, size)
	copy(out, m.store[offset:offset+size])
	return out
}
