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

package srcmap

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/sfuzz/sfuzz/internal/contract"
	"github.com/sfuzz/sfuzz/internal/fuzzerrors"
)

func TestDecompressInheritance(t *testing.T) {
	got, err := Decompress("10:5:1;:3;20::2")
	require.NoError(t, err)
	require.Equal(t, []contract.Range{{Offset: 10, Length: 5}, {Offset: 10, Length: 3}, {Offset: 20, Length: 3}}, got)
}

func TestDecompressRowCountMatchesInput(t *testing.T) {
	got, err := Decompress("1:1;2:2;3:3;4:4")
	require.NoError(t, err)
	require.Len(t, got, 4)
}

func TestDecompressMissingFirstRowIsError(t *testing.T) {
	_, err := Decompress(":5")
	require.ErrorIs(t, err, fuzzerrors.ErrMalformedSourceMap)
}

func TestDecompressDiscardsExtraFields(t *testing.T) {
	got, err := Decompress("1:2:0:i:3")
	require.NoError(t, err)
	require.Equal(t, []contract.Range{{Offset: 1, Length: 2}}, got)
}
