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
	"github.com/holiman/uint256"

	"github.com/sfuzz/sfuzz/internal/evm"
)

type account struct {
	code    []byte
	balance *uint256.Int
	storage map[uint256.Int]uint256.Int
	dead    bool
}

func newAccount() *account {
	return &account{balance: uint256.NewInt(0), storage: make(map[uint256.Int]uint256.Int)}
}

func (a *account) clone() *account {
	storage := make(map[uint256.Int]uint256.Int, len(a.storage))
	for k, v := range a.storage {
		storage[k] = v
	}
	code := make([]byte, len(a.code))
	copy(code, a.code)
	return &account{code: code, balance: a.balance.Clone(), storage: storage, dead: a.dead}
}

// worldState is the only mutable shared resource (spec §5.5): owned
// exclusively by the EVM between Savepoint and Rollback.
type worldState struct {
	accounts map[evm.Address]*account
	block    evm.BlockContext
}

func newWorldState() *worldState {
	return &worldState{accounts: make(map[evm.Address]*account)}
}

func (w *worldState) get(addr evm.Address) *account {
	a, ok := w.accounts[addr]
	if !ok {
		a = newAccount()
		w.accounts[addr] = a
	}
	return a
}

// snapshot is the Savepoint token: a deep copy of every account, which
// is acceptable at sfuzz's scale (two contracts, short call sequences)
// and keeps Rollback trivially correct.
type snapshot struct {
	accounts map[evm.Address]*account
}

func (w *worldState) savepoint() *snapshot {
	s := &snapshot{accounts: make(map[evm.Address]*account, len(w.accounts))}
	for addr, a := range w.accounts {
		s.accounts[addr] = a.clone()
	}
	return s
}

func (w *worldState) rollback(s *snapshot) {
	w.accounts = make(map[evm.Address]*account, len(s.accounts))
	for addr, a := range s.accounts {
		w.accounts[addr] = a.clone()
	}
}
