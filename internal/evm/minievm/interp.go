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

	"github.com/sfuzz/sfuzz/internal/bytecode"
	"github.com/sfuzz/sfuzz/internal/evm"
)

const maxCallDepth = 16

// runCtx is one call frame. stepPtr and onStep are shared across
// the whole Invoke (including nested CALL/DELEGATECALL), matching the
// teacher's single EVMLogger instance threaded through CaptureStart's
// nested calls.
type runCtx struct {
	self     evm.Address
	caller   evm.Address
	code     []byte
	input    []byte
	value    *uint256.Int
	depth    int
	world    *worldState
	onStep   evm.OnStepFunc
	stepPtr  *int
	gasLeft  uint64
	isStatic bool
}

type extContext struct {
	depth int
	self  evm.Address
}

func (e extContext) Depth() int        { return e.depth }
func (e extContext) Self() evm.Address { return e.self }

func gasCost(op bytecode.OpCode) uint64 {
	switch op {
	case bytecode.SSTORE:
		return 20000
	case bytecode.SLOAD:
		return 800
	case bytecode.SHA3:
		return 30
	case bytecode.CALL, bytecode.CALLCODE, bytecode.DELEGATECALL, bytecode.STATICCALL:
		return 700
	case bytecode.CREATE, bytecode.CREATE2:
		return 32000
	case bytecode.BALANCE:
		return 400
	case bytecode.JUMPDEST:
		return 1
	default:
		return 3
	}
}

func pushWord(buf []byte) *uint256.Int {
	var w [32]byte
	copy(w[32-len(buf):], buf)
	return new(uint256.Int).SetBytes(w[:])
}

// run executes ctx.code to completion, invoking ctx.onStep before every
// instruction, and returns the call's output and whether it reverted
// or faulted. EVM-level faults are never Go errors (spec §7); they are
// reported through the returned bool.
func run(ctx *runCtx) (output []byte, excepted bool, failedPC uint64) {
	insts := bytecode.Decode(ctx.code)
	pcIndex := make(map[uint64]int, len(insts))
	for i, inst := range insts {
		pcIndex[inst.PC] = i
	}

	st := newStack()
	mem := newMemory()

	idx := 0
	for idx < len(insts) {
		inst := insts[idx]
		op := inst.Op
		cost := gasCost(op)

		*ctx.stepPtr++
		if ctx.onStep != nil {
			ctx.onStep(evm.StepContext{
				Step:    *ctx.stepPtr,
				PC:      inst.PC,
				Op:      byte(op),
				GasCost: cost,
				GasLeft: ctx.gasLeft,
				Stack:   st,
				Memory:  mem,
				Ext:     extContext{depth: ctx.depth, self: ctx.self},
			})
		}

		if cost > ctx.gasLeft || st.underflowsFor(op) {
			return nil, true, inst.PC
		}
		ctx.gasLeft -= cost

		switch {
		case op.IsPush():
			n := op.PushBytes()
			start := int(inst.PC) - n + 1
			if start < 0 {
				start = 0
			}
			end := int(inst.PC) + 1
			if end > len(ctx.code) {
				end = len(ctx.code)
			}
			st.push(pushWord(ctx.code[start:end]))
			idx++
			continue

		case op >= bytecode.DUP1 && op <= 0x8f:
			n := int(op - bytecode.DUP1)
			st.push(st.Back(n).Clone())
			idx++
			continue

		case op >= bytecode.SWAP1 && op <= 0x9f:
			n := int(op-bytecode.SWAP1) + 1
			a, b := len(st.data)-1, len(st.data)-1-n
			st.data[a], st.data[b] = st.data[b], st.data[a]
			idx++
			continue

		case op >= 0xa0 && op <= 0xa4:
			offset, size := st.pop(), st.pop()
			_ = mem.get(offset.Uint64(), size.Uint64())
			for i := 0; i < int(op-0xa0); i++ {
				st.pop()
			}
			idx++
			continue
		}

		switch op {
		case bytecode.STOP:
			return nil, false, 0
		case bytecode.RETURN:
			offset, size := st.pop(), st.pop()
			return mem.get(offset.Uint64(), size.Uint64()), false, 0
		case bytecode.REVERT:
			offset, size := st.pop(), st.pop()
			return mem.get(offset.Uint64(), size.Uint64()), true, inst.PC
		case bytecode.INVALID:
			return nil, true, inst.PC
		case bytecode.SUICIDE:
			beneficiary, _ := addressFromWord(st.pop())
			acc := ctx.world.get(ctx.self)
			ctx.world.get(beneficiary).balance.Add(ctx.world.get(beneficiary).balance, acc.balance)
			acc.balance = uint256.NewInt(0)
			acc.dead = true
			return nil, false, 0

		case bytecode.POP:
			st.pop()
		case bytecode.PC:
			st.push(uint256.NewInt(inst.PC))
		case bytecode.JUMPDEST:
			// no-op

		case bytecode.JUMP:
			dest := st.pop()
			target, ok := pcIndex[dest.Uint64()]
			if !ok || insts[target].Op != bytecode.JUMPDEST {
				return nil, true, inst.PC
			}
			idx = target
			continue
		case bytecode.JUMPI:
			dest, cond := st.pop(), st.pop()
			if !cond.IsZero() {
				target, ok := pcIndex[dest.Uint64()]
				if !ok || insts[target].Op != bytecode.JUMPDEST {
					return nil, true, inst.PC
				}
				idx = target
				continue
			}

		case bytecode.ADD:
			a, b := st.pop(), st.pop()
			st.push(new(uint256.Int).Add(a, b))
		case bytecode.MUL:
			a, b := st.pop(), st.pop()
			st.push(new(uint256.Int).Mul(a, b))
		case bytecode.SUB:
			a, b := st.pop(), st.pop()
			st.push(new(uint256.Int).Sub(a, b))
		case bytecode.DIV:
			a, b := st.pop(), st.pop()
			if b.IsZero() {
				st.push(uint256.NewInt(0))
			} else {
				st.push(new(uint256.Int).Div(a, b))
			}
		case bytecode.MOD:
			a, b := st.pop(), st.pop()
			if b.IsZero() {
				st.push(uint256.NewInt(0))
			} else {
				st.push(new(uint256.Int).Mod(a, b))
			}
		case bytecode.LT:
			a, b := st.pop(), st.pop()
			st.push(boolWord(a.Lt(b)))
		case bytecode.GT:
			a, b := st.pop(), st.pop()
			st.push(boolWord(a.Gt(b)))
		case bytecode.SLT:
			a, b := st.pop(), st.pop()
			st.push(boolWord(a.Slt(b)))
		case bytecode.SGT:
			a, b := st.pop(), st.pop()
			st.push(boolWord(a.Sgt(b)))
		case bytecode.EQ:
			a, b := st.pop(), st.pop()
			st.push(boolWord(a.Eq(b)))
		case bytecode.ISZERO:
			a := st.pop()
			st.push(boolWord(a.IsZero()))
		case bytecode.AND:
			a, b := st.pop(), st.pop()
			st.push(new(uint256.Int).And(a, b))
		case bytecode.OR:
			a, b := st.pop(), st.pop()
			st.push(new(uint256.Int).Or(a, b))
		case bytecode.XOR:
			a, b := st.pop(), st.pop()
			st.push(new(uint256.Int).Xor(a, b))
		case bytecode.NOT:
			a := st.pop()
			st.push(new(uint256.Int).Not(a))

		case bytecode.SHA3:
			offset, size := st.pop(), st.pop()
			data := mem.get(offset.Uint64(), size.Uint64())
			st.push(keccak(data))

		case bytecode.ADDRESS:
			st.push(addressWord(ctx.self))
		case bytecode.CALLER:
			st.push(addressWord(ctx.caller))
		case bytecode.CALLVALUE:
			st.push(ctx.value.Clone())
		case bytecode.BALANCE:
			addr, _ := addressFromWord(st.pop())
			st.push(ctx.world.get(addr).balance.Clone())

		case bytecode.CALLDATALOAD:
			off := st.pop().Uint64()
			buf := make([]byte, 32)
			for i := 0; i < 32; i++ {
				if off+uint64(i) < uint64(len(ctx.input)) {
					buf[i] = ctx.input[off+uint64(i)]
				}
			}
			st.push(new(uint256.Int).SetBytes(buf))
		case bytecode.CALLDATACOPY:
			destOff, off, size := st.pop(), st.pop(), st.pop()
			buf := make([]byte, size.Uint64())
			o := off.Uint64()
			for i := range buf {
				if o+uint64(i) < uint64(len(ctx.input)) {
					buf[i] = ctx.input[o+uint64(i)]
				}
			}
			mem.set(destOff.Uint64(), size.Uint64(), buf)

		case bytecode.TIMESTAMP:
			st.push(uint256.NewInt(ctx.world.block.Timestamp))
		case bytecode.NUMBER:
			st.push(uint256.NewInt(ctx.world.block.Number))

		case bytecode.MLOAD:
			off := st.pop()
			st.push(new(uint256.Int).SetBytes(mem.get(off.Uint64(), 32)))
		case bytecode.MSTORE:
			off, val := st.pop(), st.pop()
			b32 := val.Bytes32()
			mem.set(off.Uint64(), 32, b32[:])
		case bytecode.SLOAD:
			key := st.pop()
			v := ctx.world.get(ctx.self).storage[*key]
			st.push(new(uint256.Int).Set(&v))
		case bytecode.SSTORE:
			if ctx.isStatic {
				return nil, true, inst.PC
			}
			key, val := st.pop(), st.pop()
			ctx.world.get(ctx.self).storage[*key] = *val

		case bytecode.CALL, bytecode.CALLCODE, bytecode.DELEGATECALL, bytecode.STATICCALL:
			out, exc := ctx.execCall(op, st, mem)
			st.push(boolWord(!exc))
			_ = out

		case bytecode.CREATE, bytecode.CREATE2:
			// Contract creation from within a run is out of scope for
			// the reference backend: the fuzzer only ever deploys the
			// one victim (and optionally one attacker) up front.
			st.push(uint256.NewInt(0))

		default:
			return nil, true, inst.PC
		}
		idx++
	}
	return nil, false, 0
}

func boolWord(b bool) *uint256.Int {
	if b {
		return uint256.NewInt(1)
	}
	return uint256.NewInt(0)
}

func addressWord(addr evm.Address) *uint256.Int {
	var buf [32]byte
	copy(buf[12:], addr[:])
	return new(uint256.Int).SetBytes(buf[:])
}

func addressFromWord(w *uint256.Int) (evm.Address, error) {
	b := w.Bytes32()
	var addr evm.Address
	copy(addr[:], b[12:])
	return addr, nil
}

// underflowsFor reports whether op needs more stack items than are
// present, treated as an EVM exception rather than a Go panic.
func (s *stack) underflowsFor(op bytecode.OpCode) bool {
	need := 0
	switch {
	case op.IsPush(), op == bytecode.STOP, op == bytecode.JUMPDEST, op == bytecode.PC,
		op == bytecode.ADDRESS, op == bytecode.CALLER, op == bytecode.CALLVALUE,
		op == bytecode.TIMESTAMP, op == bytecode.NUMBER, op == bytecode.INVALID:
		need = 0
	case op >= bytecode.DUP1 && op <= 0x8f:
		need = int(op-bytecode.DUP1) + 1
	case op >= bytecode.SWAP1 && op <= 0x9f:
		need = int(op-bytecode.SWAP1) + 2
	case op >= 0xa0 && op <= 0xa4:
		need = 2 + int(op-0xa0)
	case op == bytecode.POP, op == bytecode.ISZERO, op == bytecode.NOT, op == bytecode.MLOAD,
		op == bytecode.SLOAD, op == bytecode.BALANCE, op == bytecode.CALLDATALOAD, op == bytecode.JUMP,
		op == bytecode.SUICIDE:
		need = 1
	case op == bytecode.ADD, op == bytecode.MUL, op == bytecode.SUB, op == bytecode.DIV, op == bytecode.MOD,
		op == bytecode.LT, op == bytecode.GT, op == bytecode.SLT, op == bytecode.SGT, op == bytecode.EQ,
		op == bytecode.AND, op == bytecode.OR, op == bytecode.XOR, op == bytecode.SHA3,
		op == bytecode.MSTORE, op == bytecode.SSTORE, op == bytecode.JUMPI, op == bytecode.RETURN,
		op == bytecode.REVERT:
		need = 2
	case op == bytecode.CALLDATACOPY:
		need = 3
	case op == bytecode.CALL, op == bytecode.CALLCODE:
		need = 7
	case op == bytecode.DELEGATECALL, op == bytecode.STATICCALL:
		need = 6
	}
	return s.Len() < need
}
