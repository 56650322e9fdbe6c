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
	"encoding/hex"

	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/sfuzz/sfuzz/internal/bytecode"
)

// BuildCodeDictionary scans code for PUSH immediates and returns them
// as a bounded, deduplicated dictionary (spec §4.7's "code dictionary"
// overlay stage draws its extras from here). Keys are the hex
// encoding of the immediate so the LRU cache can dedupe by value.
func BuildCodeDictionary(code []byte) *lru.Cache[string, []byte] {
	cache, err := lru.New[string, []byte](MaxDetExtras)
	if err != nil {
		// Only returns an error for a non-positive size, which MaxDetExtras
		// never is.
		panic(err)
	}
	for _, inst := range bytecode.Decode(code) {
		n := inst.Op.PushBytes()
		if n == 0 {
			continue
		}
		end := int(inst.PC) + 1
		start := end - n
		if start < 0 || end > len(code) {
			continue
		}
		imm := code[start:end]
		cache.Add(hex.EncodeToString(imm), append([]byte(nil), imm...))
	}
	return cache
}

// DictionaryEntries drains the cache's current values in LRU-recency
// order (least-recently-used first), matching golang-lru's Keys() order.
func DictionaryEntries(cache *lru.Cache[string, []byte]) [][]byte {
	if cache == nil {
		return nil
	}
	keys := cache.Keys()
	out := make([][]byte, 0, len(keys))
	for _, k := range keys {
		if v, ok := cache.Peek(k); ok {
			out = append(out, v)
		}
	}
	return out
}
