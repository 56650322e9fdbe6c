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
	"golang.org/x/crypto/sha3"

	"github.com/sfuzz/sfuzz/internal/bytecode"
)

func keccak(data []byte) *uint256.Int {
	h := sha3.NewLegacyKeccak256()
	h.Write(data)
	return new(uint256.Int).SetBytes(h.Sum(nil))
}

// execCall handles CALL/CALLCODE/DELEGATECALL/STATICCALL: it pops the
// op-specific argument list, recurses into the callee's code with a
// fresh runCtx, and writes the return data back into memory.
func (ctx *runCtx) execCall(op bytecode.OpCode, st *stack, mem *memory) (output []byte, excepted bool) {
	hasValue := op == bytecode.CALL || op == bytecode.CALLCODE

	_ = st.pop() // gas: the reference backend forwards all remaining gas
	addrWord := st.pop()
	var value *uint256.Int
	if hasValue {
		value = st.pop()
	}
	argsOffset, argsSize := st.pop(), st.pop()
	retOffset, retSize := st.pop(), st.pop()

	input := mem.get(argsOffset.Uint64(), argsSize.Uint64())
	callee, _ := addressFromWord(addrWord)

	if ctx.depth+1 >= maxCallDepth {
		return nil, true
	}

	callCtx := &runCtx{
		code:    ctx.world.get(callee).code,
		input:   input,
		depth:   ctx.depth + 1,
		world:   ctx.world,
		onStep:  ctx.onStep,
		stepPtr: ctx.stepPtr,
		gasLeft: ctx.gasLeft,
	}
	switch op {
	case bytecode.CALL:
		callCtx.self, callCtx.caller, callCtx.value = callee, ctx.self, value
		ctx.world.get(ctx.self).balance.Sub(ctx.world.get(ctx.self).balance, value)
		ctx.world.get(callee).balance.Add(ctx.world.get(callee).balance, value)
	case bytecode.CALLCODE:
		callCtx.self, callCtx.caller, callCtx.value = ctx.self, ctx.self, value
		callCtx.code = ctx.world.get(callee).code
	case bytecode.DELEGATECALL:
		callCtx.self, callCtx.caller, callCtx.value = ctx.self, ctx.caller, ctx.value
	case bytecode.STATICCALL:
		callCtx.self, callCtx.caller, callCtx.value = callee, ctx.self, uint256.NewInt(0)
		callCtx.isStatic = true
	}

	out, exc, _ := run(callCtx)
	ctx.gasLeft = callCtx.gasLeft
	mem.set(retOffset.Uint64(), retSize.Uint64(), out)
	return out, exc
}
