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

// Package evm defines the EVM adapter contract (C4, spec §6.2): the
// thin façade the executor drives. The EVM itself is a pluggable
// backend; this package only names the interface and the reference
// (minievm) implementation lives in its own subpackage so a production
// user can swap in a full EVM without touching the executor.
package evm

import (
	"github.com/holiman/uint256"
)

// Address is a 20-byte account identifier.
type Address [20]byte

// Stack exposes read access to the EVM's operand stack the way the
// teacher's vm.ScopeContext.Stack does: LIFO, top at the back.
type Stack interface {
	// Back returns the n-th item from the top (0 is the top element).
	Back(n int) *uint256.Int
	Len() int
}

// Memory exposes read access to linear memory.
type Memory interface {
	Data() []byte
	Len() int
}

// ExtContext carries call-depth and self-addressing information the
// per-step hook needs but that isn't on the stack.
type ExtContext interface {
	Depth() int
	Self() Address
}

// StepContext is delivered to OnStep before each instruction executes,
// mirroring the teacher's vm.EVMLogger.OnOpcode hook shape.
type StepContext struct {
	Step     int
	PC       uint64
	Op       byte
	GasCost  uint64
	GasLeft  uint64
	Stack    Stack
	Memory   Memory
	Ext      ExtContext
}

// OnStepFunc is invoked before every instruction.
type OnStepFunc func(ctx StepContext)

// CallKind distinguishes a constructor run from a function invocation.
type CallKind int

const (
	CallConstructor CallKind = iota
	CallFunction
)

// InvokeResult is what Invoke returns after driving one call to
// completion (or to a caught exception).
type InvokeResult struct {
	Output    []byte
	Excepted  bool
	FailedPC  uint64
}

// Account seeds one address's balance/code for UpdateEnv.
type Account struct {
	Address Address
	Balance *uint256.Int
}

// BlockContext seeds the block header fields TIMESTAMP/NUMBER read.
type BlockContext struct {
	Timestamp uint64
	Number    uint64
}

// Savepoint identifies a world-state snapshot a Backend can roll back
// to; its representation is backend-specific.
type Savepoint interface{}

// Backend is the EVM adapter contract of spec §6.2: deterministic
// execution per (code, state, calldata, block, accounts), instruction
// stepping with stack/memory/depth access, and savepoint/rollback of
// world state. Exactly one execution may be in flight at a time
// (spec §5).
type Backend interface {
	Deploy(addr Address, code []byte) error
	SetBalance(addr Address, value *uint256.Int)
	UpdateEnv(accounts []Account, block BlockContext)

	Invoke(addr Address, kind CallKind, calldata []byte, value *uint256.Int, onStep OnStepFunc) (InvokeResult, error)

	Savepoint() Savepoint
	Rollback(token Savepoint)
}
