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

// DefaultGasLimit bounds a single Invoke's execution. The fuzz loop
// has no per-testcase timeout (spec §5.4): a pathological testcase
// runs to gas exhaustion, not wall-clock cancellation.
const DefaultGasLimit = 10_000_000

// Backend is sfuzz's reference evm.Backend implementation.
type Backend struct {
	world *worldState
}

// New returns an empty Backend with no deployed accounts.
func New() *Backend {
	return &Backend{world: newWorldState()}
}

var _ evm.Backend = (*Backend)(nil)

func (b *Backend) Deploy(addr evm.Address, code []byte) error {
	acc := b.world.get(addr)
	acc.code = make([]byte, len(code))
	copy(acc.code, code)
	return nil
}

func (b *Backend) SetBalance(addr evm.Address, value *uint256.Int) {
	b.world.get(addr).balance = value.Clone()
}

func (b *Backend) UpdateEnv(accounts []evm.Account, block evm.BlockContext) {
	for _, a := range accounts {
		b.SetBalance(a.Address, a.Balance)
	}
	b.world.block = block
}

func (b *Backend) Invoke(addr evm.Address, kind evm.CallKind, calldata []byte, value *uint256.Int, onStep evm.OnStepFunc) (evm.InvokeResult, error) {
	acc := b.world.get(addr)
	code := acc.code
	steps := 0
	ctx := &runCtx{
		self:    addr,
		caller:  [20]byte{0xc0}, // an external account placeholder, matching sFuzz's single-sender fuzzing model
		code:    code,
		input:   calldata,
		value:   value,
		depth:   0,
		world:   b.world,
		onStep:  onStep,
		stepPtr: &steps,
		gasLeft: DefaultGasLimit,
	}
	if value != nil && !value.IsZero() {
		acc.balance.Add(acc.balance, value)
	}
	out, excepted, failedPC := run(ctx)
	if kind == evm.CallConstructor && !excepted {
		// A constructor's return value becomes the account's runtime
		// code, the way real CREATE/CREATE2 finalize deployment.
		acc.code = out
	}
	return evm.InvokeResult{Output: out, Excepted: excepted, FailedPC: failedPC}, nil
}

func (b *Backend) Savepoint() evm.Savepoint {
	return b.world.savepoint()
}

func (b *Backend) Rollback(token evm.Savepoint) {
	snap, ok := token.(*snapshot)
	if !ok {
		return
	}
	b.world.rollback(snap)
}
