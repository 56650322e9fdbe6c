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

// Package srcmap decompresses solc's compressed source map format
// (C2): semicolon-separated rows, colon-separated fields, where an
// empty field copies the previous row's value.
package srcmap

import (
	"strconv"
	"strings"

	"github.com/sfuzz/sfuzz/internal/contract"
	"github.com/sfuzz/sfuzz/internal/fuzzerrors"
)

// Decompress expands raw into one contract.Range per row. Only the
// first two fields (offset, length) are consumed; any further
// colon-separated fields (file index, jump kind, modifier depth) are
// discarded, per spec §4.2.
func Decompress(raw string) ([]contract.Range, error) {
	rows := strings.Split(raw, ";")
	out := make([]contract.Range, 0, len(rows))
	var prev contract.Range
	havePrev := false
	for _, row := range rows {
		fields := strings.Split(row, ":")
		offset, length := prev.Offset, prev.Length

		if len(fields) > 0 && fields[0] != "" {
			v, err := strconv.Atoi(fields[0])
			if err != nil {
				return nil, fuzzerrors.ErrMalformedSourceMap
			}
			offset = v
		} else if !havePrev {
			return nil, fuzzerrors.ErrMalformedSourceMap
		}

		if len(fields) > 1 && fields[1] != "" {
			v, err := strconv.Atoi(fields[1])
			if err != nil {
				return nil, fuzzerrors.ErrMalformedSourceMap
			}
			length = v
		} else if !havePrev {
			return nil, fuzzerrors.ErrMalformedSourceMap
		}

		r := contract.Range{Offset: offset, Length: length}
		out = append(out, r)
		prev = r
		havePrev = true
	}
	return out, nil
}
