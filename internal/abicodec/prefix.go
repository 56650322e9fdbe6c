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

	"github.com/holiman/uint256"

	"github.com/sfuzz/sfuzz/internal/evm"
)

// AccountsPrefix decodes the attacker's seeded balance from the front
// of a postprocessed testcase.
func AccountsPrefix(tc []byte) *uint256.Int {
	return new(uint256.Int).SetBytes(tc[:AccountsPrefixLen])
}

// BlockPrefix decodes the timestamp/number block context that follows
// the accounts prefix.
func BlockPrefix(tc []byte) evm.BlockContext {
	b := tc[AccountsPrefixLen : AccountsPrefixLen+BlockPrefixLen]
	return evm.BlockContext{
		Timestamp: binary.BigEndian.Uint64(b[:8]),
		Number:    binary.BigEndian.Uint64(b[8:16]),
	}
}
