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

// FuzzItem is the Testcase entity of spec §3: an opaque byte buffer
// plus bookkeeping the scheduler consults to pick a mutation strategy.
type FuzzItem struct {
	Data        []byte
	FuzzedCount int
	Depth       int
	LastCksum   [32]byte
}

// Clone returns an independent copy of the item's current buffer, so
// stage callbacks can mutate in place without aliasing the original.
func (it *FuzzItem) Clone() []byte {
	out := make([]byte, len(it.Data))
	copy(out, it.Data)
	return out
}

// SaveFunc executes a mutated buffer and returns the resulting
// checksum (spec §3's ExecutionResult.cksum); the mutation engine only
// needs the checksum to populate the effector map and detect splice
// partners, never the full ExecutionResult.
type SaveFunc func(data []byte) (cksum [32]byte, err error)
