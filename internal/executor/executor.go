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

// Package executor implements the executor (C5): it drives one
// testcase through the EVM adapter, classifies each step against the
// contract's branch sets, and hands the resulting per-function traces
// to the oracle. Modeled on the instrumentation loop of the teacher's
// core/vm.StructLogger, generalized from "log everything" to "classify
// and score everything sFuzz's engine cares about".
package executor

import (
	"encoding/hex"
	"fmt"

	mapset "github.com/deckarep/golang-set/v2"
	"github.com/holiman/uint256"
	"golang.org/x/crypto/sha3"

	"github.com/sfuzz/sfuzz/internal/abicodec"
	"github.com/sfuzz/sfuzz/internal/branch"
	"github.com/sfuzz/sfuzz/internal/bytecode"
	"github.com/sfuzz/sfuzz/internal/contract"
	"github.com/sfuzz/sfuzz/internal/evm"
	"github.com/sfuzz/sfuzz/internal/oracle"
)

// ExecutionResult is the outcome of one Exec call (spec §3).
type ExecutionResult struct {
	Tracebits        mapset.Set[string]
	Predicates       map[string]*uint256.Int
	ReachedBranch    map[string]int
	UniqueExceptions mapset.Set[uint64]
	PrefixMap        map[string][]uint64
	Cksum            [32]byte
	TestcaseJSON     []byte
	Findings         oracle.Findings
}

func newExecutionResult() ExecutionResult {
	return ExecutionResult{
		Tracebits:        mapset.NewThreadUnsafeSet[string](),
		Predicates:       make(map[string]*uint256.Int),
		ReachedBranch:    make(map[string]int),
		UniqueExceptions: mapset.NewThreadUnsafeSet[uint64](),
		PrefixMap:        make(map[string][]uint64),
		Findings:         oracle.NewFindings(),
	}
}

// Executor binds a backend, one contract's loaded data and its branch
// classification to the per-step hook logic of spec §4.5.
type Executor struct {
	Backend  evm.Backend
	Info     *contract.Info
	Branches branch.BranchSets
	Codec    *abicodec.Codec
	Oracle   *oracle.Analyzer
}

// New builds an Executor for one contract.
func New(backend evm.Backend, info *contract.Info, branches branch.BranchSets, codec *abicodec.Codec) *Executor {
	return &Executor{
		Backend:  backend,
		Info:     info,
		Branches: branches,
		Codec:    codec,
		Oracle:   oracle.NewAnalyzer(),
	}
}

// stepState is the per-call mutable state of spec §4.5's hook, reset
// at the start of every Invoke (constructor or each function call).
type stepState struct {
	prevOp        bytecode.OpCode
	lastPc        uint64
	lastCompValue *uint256.Int
	jumpDest1     uint64
	jumpDest2     uint64
	pendingJumpci bool

	isReallyFlow     bool
	recordFlow       *uint256.Int
	pendingOverflow  int // index into the events slice, or -1

	pclist []uint64
}

func newStepState() *stepState {
	return &stepState{
		lastCompValue:   uint256.NewInt(1),
		pendingOverflow: -1,
	}
}

// Exec runs the behavior of spec §4.5 against tc: deploy, constructor,
// every encoded function call in order, then an unconditional rollback
// to the savepoint taken before deploy (spec §5.3's isolation
// guarantee).
func (e *Executor) Exec(tc []byte, isSplice, isPrefuzz bool) (ExecutionResult, error) {
	postprocessed := e.Codec.PostprocessTestData(tc)
	balance := abicodec.AccountsPrefix(postprocessed)
	blockCtx := abicodec.BlockPrefix(postprocessed)

	constructorCalldata, err := e.Codec.EncodeConstructor(postprocessed)
	if err != nil {
		return ExecutionResult{}, fmt.Errorf("executor: encode constructor: %w", err)
	}
	functionCalldatas, err := e.Codec.EncodeFunctions(postprocessed)
	if err != nil {
		return ExecutionResult{}, fmt.Errorf("executor: encode functions: %w", err)
	}

	res := newExecutionResult()

	sp := e.Backend.Savepoint()
	defer e.Backend.Rollback(sp)

	e.Backend.UpdateEnv([]evm.Account{{Address: contract.AttackerAddress, Balance: balance}}, blockCtx)
	e.Backend.SetBalance(contract.AttackerAddress, balance)

	if err := e.Backend.Deploy(contract.VictimAddress, e.Info.CreationBytecode); err != nil {
		return ExecutionResult{}, fmt.Errorf("executor: deploy: %w", err)
	}

	e.runCall(contract.VictimAddress, evm.CallConstructor, constructorCalldata, e.Branches.Creation, isPrefuzz, true, &res)

	instrumented := len(functionCalldatas)
	if isSplice {
		instrumented = instrumented / 2
	}
	for i, calldata := range functionCalldatas {
		e.runCall(contract.VictimAddress, evm.CallFunction, calldata, e.Branches.Runtime, isPrefuzz, i < instrumented, &res)
	}

	res.TestcaseJSON = []byte(hex.EncodeToString(postprocessed))
	res.Cksum = checksum(res.Tracebits)
	return res, nil
}

// runCall drives one Invoke, wiring the per-step hook when instrument
// is true (the splice opt-out of spec §4.5 disables it for the second
// half of a spliced buffer's function calls) and feeding the finished
// trace to the oracle.
func (e *Executor) runCall(addr evm.Address, kind evm.CallKind, calldata []byte, sets branch.Sets, isPrefuzz, instrument bool, res *ExecutionResult) {
	st := newStepState()
	var events []oracle.Event
	events = append(events, oracle.Event{
		Step: -1, Depth: 0, PC: 0, Op: bytecode.CALL,
		Caller: contract.AttackerAddress, Callee: addr, CallData: calldata,
	})

	var onStep evm.OnStepFunc
	if instrument {
		onStep = e.stepHook(sets, isPrefuzz, st, res, &events)
	}

	result, err := e.Backend.Invoke(addr, kind, calldata, uint256.NewInt(0), onStep)
	if err != nil || result.Excepted {
		res.UniqueExceptions.Add(result.FailedPC)
		events = append(events, oracle.Event{Depth: 0, PC: result.FailedPC, Op: bytecode.INVALID, IsInvalid: true})
	}

	if instrument {
		findings := e.Oracle.Analyze(events)
		res.Findings.Merge(findings)
	}
}

func (e *Executor) stepHook(sets branch.Sets, isPrefuzz bool, st *stepState, res *ExecutionResult, events *[]oracle.Event) evm.OnStepFunc {
	return func(ctx evm.StepContext) {
		pc := ctx.PC
		op := bytecode.OpCode(ctx.Op)

		if isPrefuzz && pc <= 8192 && (len(st.pclist) == 0 || pc > st.pclist[len(st.pclist)-1]) {
			st.pclist = append(st.pclist, pc)
		}

		if st.pendingJumpci {
			e.resolveJumpci(pc, isPrefuzz, st, res)
		}

		switch {
		case isComparisonOp(op):
			a, b := ctx.Stack.Back(0), ctx.Stack.Back(1)
			st.lastCompValue = absDiffPlusOne(a, b)
			if st.isReallyFlow && st.recordFlow != nil && !st.recordFlow.IsZero() &&
				(a.Eq(st.recordFlow) || b.Eq(st.recordFlow)) {
				st.isReallyFlow = false
				if st.pendingOverflow >= 0 {
					(*events)[st.pendingOverflow].IsOverflow = false
					st.pendingOverflow = -1
				}
			}
			*events = append(*events, oracle.Event{
				Step: ctx.Step, Depth: ctx.Ext.Depth(), PC: pc, Op: op,
				HasZeroOperand: a.IsZero() || b.IsZero(),
			})

		case op == bytecode.JUMPI && sets.JUMPI.Contains(pc):
			st.jumpDest1 = ctx.Stack.Back(0).Uint64()
			st.jumpDest2 = pc + 1
			st.pendingJumpci = true
			st.lastPc = pc
			*events = append(*events, oracle.Event{Step: ctx.Step, Depth: ctx.Ext.Depth(), PC: pc, Op: op})

		case op == bytecode.CALL, op == bytecode.CALLCODE, op == bytecode.DELEGATECALL, op == bytecode.STATICCALL:
			e.recordCallEvent(sets, op, ctx, events)

		case op == bytecode.TIMESTAMP:
			if sets.Timestamp.Contains(pc) {
				*events = append(*events, oracle.Event{Step: ctx.Step, Depth: ctx.Ext.Depth(), PC: pc, Op: op})
			}

		case op == bytecode.NUMBER:
			if sets.Number.Contains(pc) {
				*events = append(*events, oracle.Event{Step: ctx.Step, Depth: ctx.Ext.Depth(), PC: pc, Op: op})
			}

		case op == bytecode.SUICIDE, op == bytecode.SHA3, op == bytecode.BALANCE:
			*events = append(*events, oracle.Event{Step: ctx.Step, Depth: ctx.Ext.Depth(), PC: pc, Op: op})

		case op == bytecode.INVALID:
			*events = append(*events, oracle.Event{Step: ctx.Step, Depth: ctx.Ext.Depth(), PC: pc, Op: op, IsInvalid: true})

		case op == bytecode.AND:
			e.checkAndOverflow(ctx, st, events)

		case op == bytecode.ADD:
			a, b := ctx.Stack.Back(0), ctx.Stack.Back(1)
			sum, overflow := new(uint256.Int).AddOverflow(a, b)
			if overflow {
				e.flagOverflow(ctx, sum, st, events)
			}

		case op == bytecode.MUL:
			a, b := ctx.Stack.Back(0), ctx.Stack.Back(1)
			prod, overflow := new(uint256.Int).MulOverflow(a, b)
			if overflow {
				e.flagOverflow(ctx, prod, st, events)
			}

		case op == bytecode.SUB:
			a, b := ctx.Stack.Back(0), ctx.Stack.Back(1)
			if a.Lt(b) {
				*events = append(*events, oracle.Event{Step: ctx.Step, Depth: ctx.Ext.Depth(), PC: pc, Op: op, IsUnderflow: true})
			}
		}

		if ctx.GasCost > ctx.GasLeft {
			*events = append(*events, oracle.Event{Step: ctx.Step, Depth: ctx.Ext.Depth(), PC: pc, Op: op, IsGasless: true})
		}

		st.prevOp = op
	}
}

func (e *Executor) resolveJumpci(currentPC uint64, isPrefuzz bool, st *stepState, res *ExecutionResult) {
	branchID := fmt.Sprintf("%d:%d", st.lastPc, currentPC)
	if isPrefuzz {
		res.Tracebits.Add(branchID)

		other := st.jumpDest2
		if currentPC == st.jumpDest2 {
			other = st.jumpDest1
		}
		otherID := fmt.Sprintf("%d:%d", st.lastPc, other)
		cv := st.lastCompValue
		if cv.IsZero() {
			cv = new(uint256.Int).SetAllOne()
		}
		res.Predicates[otherID] = cv

		if _, exists := res.PrefixMap[branchID]; !exists {
			snap := make([]uint64, len(st.pclist))
			copy(snap, st.pclist)
			res.PrefixMap[branchID] = snap
		}
	} else {
		res.ReachedBranch[branchID]++
	}
	st.pendingJumpci = false
}

func (e *Executor) checkAndOverflow(ctx evm.StepContext, st *stepState, events *[]oracle.Event) {
	if !st.prevOp.IsPush() {
		return
	}
	pushVal := ctx.Stack.Back(0)
	pretrans := ctx.Stack.Back(1)

	p1 := new(uint256.Int).AddUint64(pushVal, 1)
	if !new(uint256.Int).Mod(p1, uint256.NewInt(16)).IsZero() {
		return
	}
	anded := new(uint256.Int).And(pretrans, pushVal)
	if anded.Eq(pretrans) {
		return
	}
	e.flagOverflow(ctx, pretrans, st, events)
}

func (e *Executor) flagOverflow(ctx evm.StepContext, flow *uint256.Int, st *stepState, events *[]oracle.Event) {
	st.isReallyFlow = true
	st.recordFlow = flow
	*events = append(*events, oracle.Event{Step: ctx.Step, Depth: ctx.Ext.Depth(), PC: ctx.PC, Op: bytecode.OpCode(ctx.Op), IsOverflow: true})
	st.pendingOverflow = len(*events) - 1
}

// recordCallEvent implements the CALL/CALLCODE/DELEGATECALL/STATICCALL
// row of spec §4.5's hook table, including the literal (and admittedly
// counter-intuitive) "isChecked iff pc is in the unchecked-call set"
// rule the spec freezes for this field.
func (e *Executor) recordCallEvent(sets branch.Sets, op bytecode.OpCode, ctx evm.StepContext, events *[]oracle.Event) {
	pc := ctx.PC
	if op == bytecode.DELEGATECALL && !sets.Delegatecall.Contains(pc) {
		return
	}

	callee := addressFromWord(ctx.Stack.Back(1))
	value := uint256.NewInt(0)
	var argsOffset, argsLength uint64
	switch op {
	case bytecode.CALL, bytecode.CALLCODE:
		value = ctx.Stack.Back(2)
		argsOffset = ctx.Stack.Back(3).Uint64()
		argsLength = ctx.Stack.Back(4).Uint64()
	default:
		argsOffset = ctx.Stack.Back(2).Uint64()
		argsLength = ctx.Stack.Back(3).Uint64()
	}

	ev := oracle.Event{
		Step: ctx.Step, Depth: ctx.Ext.Depth(), PC: pc, Op: op,
		Caller:   ctx.Ext.Self(),
		Callee:   callee,
		Value:    value,
		CallData: sliceMemory(ctx.Memory, argsOffset, argsLength),
	}
	if op == bytecode.DELEGATECALL && sets.NonOnlyOwnerDelegatecall.Contains(pc) {
		ev.NoOnlyOwner = true
	}
	if op == bytecode.CALL || op == bytecode.DELEGATECALL {
		ev.IsChecked = sets.UncheckedCall.Contains(pc)
	} else {
		ev.IsChecked = true
	}
	*events = append(*events, ev)
}

func isComparisonOp(op bytecode.OpCode) bool {
	switch op {
	case bytecode.GT, bytecode.SGT, bytecode.LT, bytecode.SLT, bytecode.EQ:
		return true
	default:
		return false
	}
}

func absDiffPlusOne(a, b *uint256.Int) *uint256.Int {
	var d *uint256.Int
	if a.Gt(b) {
		d = new(uint256.Int).Sub(a, b)
	} else {
		d = new(uint256.Int).Sub(b, a)
	}
	return d.AddUint64(d, 1)
}

func addressFromWord(word *uint256.Int) (addr evm.Address) {
	b := word.Bytes32()
	copy(addr[:], b[12:])
	return addr
}

func sliceMemory(mem evm.Memory, offset, length uint64) []byte {
	data := mem.Data()
	start := offset
	if start > uint64(len(data)) {
		return nil
	}
	end := start + length
	if end > uint64(len(data)) {
		end = uint64(len(data))
	}
	out := make([]byte, end-start)
	copy(out, data[start:end])
	return out
}

func checksum(tracebits mapset.Set[string]) [32]byte {
	ids := tracebits.ToSlice()
	sortStrings(ids)
	h := sha3.NewLegacyKeccak256()
	for _, id := range ids {
		h.Write([]byte(id))
	}
	var out [32]byte
	copy(out[:], h.Sum(nil))
	return out
}

func sortStrings(s []string) {
	for i := 1; i < len(s); i++ {
		for j := i; j > 0 && s[j-1] > s[j]; j-- {
			s[j-1], s[j] = s[j], s[j-1]
		}
	}
}
