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

// PostprocessTestData normalizes a raw (possibly mutated, possibly
// spliced) testcase to this contract's fixed slot layout: every slot
// is exactly 32 bytes, zero-padded if the input ran short, truncated
// if it ran long. The result is idempotent (spec §8): postprocessing
// an already-postprocessed buffer is a no-op because it already has
// the canonical length.
func (c *Codec) PostprocessTestData(raw []byte) []byte {
	total := c.TotalLen()
	out := make([]byte, total)
	n := len(raw)
	if n > total {
		n = total
	}
	copy(out, raw[:n])
	c.freezeData0Len(total)
	return out
}
