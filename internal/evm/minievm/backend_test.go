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

package minievm

import (
	"testing"

	"github.com/holiman/uint256"
	"github.com/stretchr/testify/require"

	"github.com/sfuzz/sfuzz/internal/evm"
)

// code: PUSH1 2 PUSH1 3 ADD PUSH1 0 MSTORE PUSH1 32 PUSH1 0 RETURN
func addReturnCode() []byte {
	return []byte{
		0x60, 0x02,
		0x60, 0x03,
		0x01,
		0x60, 0x00,
		0x52,
		0x60, 0x20,
		0x60, 0x00,
		0xf3,
	}
}

func TestBackendExecutesAddAndReturns(t *testing.T) {
	b := New()
	addr := evm.Address{0xAA}
	require.NoError(t, b.Deploy(addr, addReturnCode()))

	res, err := b.Invoke(addr, evm.CallFunction, nil, uint256.NewInt(0), nil)
	require.NoError(t, err)
	require.False(t, res.Excepted)

	got := new(uint256.Int).SetBytes(res.Output)
	require.Equal(t, uint64(5), got.Uint64())
}

func TestBackendSavepointRollbackIsolatesState(t *testing.T) {
	b := New()
	addr := evm.Address{0xAA}
	require.NoError(t, b.Deploy(addr, addReturnCode()))
	b.SetBalance(addr, uint256.NewInt(100))

	tok := b.Savepoint()
	b.SetBalance(addr, uint256.NewInt(999))
	b.Rollback(tok)

	require.Equal(t, uint64(100), b.world.get(addr).balance.Uint64())
}

func TestBackendDeterministicAcrossRuns(t *testing.T) {
	b := New()
	addr := evm.Address{0xAA}
	require.NoError(t, b.Deploy(addr, addReturnCode()))

	tok := b.Savepoint()
	res1, _ := b.Invoke(addr, evm.CallFunction, nil, uint256.NewInt(0), nil)
	b.Rollback(tok)
	res2, _ := b.Invoke(addr, evm.CallFunction, nil, uint256.NewInt(0), nil)

	require.Equal(t, res1.Output, res2.Output)
	require.Equal(t, res1.Excepted, res2.Excepted)
}
