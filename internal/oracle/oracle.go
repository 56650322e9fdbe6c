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

// Package oracle implements the vulnerability oracle (C6): ten
// classifiers over one function call's ordered instruction trace,
// modeled on the shape of go-ethereum's vm.Logger traces but scored
// against the fixed rule table of sFuzz's liboracle.
package oracle

import (
	"bytes"
	"encoding/hex"
	"strings"

	"github.com/holiman/uint256"

	"github.com/sfuzz/sfuzz/internal/bytecode"
	"github.com/sfuzz/sfuzz/internal/contract"
	"github.com/sfuzz/sfuzz/internal/evm"
)

// Kind enumerates the ten tracked vulnerability classes.
type Kind int

const (
	GaslessSend Kind = iota
	UncheckedCall
	TimestampDep
	BlockNumberDep
	Delegatecall
	Reentrancy
	FreezingEther
	Overflow
	Underflow
	UnexpectedEther

	numKinds
)

func (k Kind) String() string {
	switch k {
	case GaslessSend:
		return "gasless_send"
	case UncheckedCall:
		return "unchecked_call"
	case TimestampDep:
		return "timestamp_dependency"
	case BlockNumberDep:
		return "block_number_dependency"
	case Delegatecall:
		return "delegatecall"
	case Reentrancy:
		return "reentrancy"
	case FreezingEther:
		return "freezing_ether"
	case Overflow:
		return "integer_overflow"
	case Underflow:
		return "integer_underflow"
	case UnexpectedEther:
		return "unexpected_ether"
	default:
		return "unknown"
	}
}

// Event is one recorded step of interest in a function call's trace
// (spec §3's OpcodeContext). Step is the raw per-step hook counter,
// not the index into this slice, so proximity windows ("within ≤8
// instructions") stay meaningful even though most steps never
// produce an Event.
type Event struct {
	Step  int
	Depth int
	PC    uint64
	Op    bytecode.OpCode

	Caller   evm.Address
	Callee   evm.Address
	Value    *uint256.Int
	CallData []byte

	HasZeroOperand bool
	IsOverflow     bool
	IsUnderflow    bool
	IsGasless      bool
	IsChecked      bool
	NoOnlyOwner    bool
	IsInvalid      bool
}

// Findings is the per-function output of Analyze: a hit count and a
// pc "distinctions" set per kind.
type Findings struct {
	Counts       [numKinds]int
	Distinctions [numKinds]map[uint64]struct{}
}

func newFindings() Findings {
	var f Findings
	for k := range f.Distinctions {
		f.Distinctions[k] = make(map[uint64]struct{})
	}
	return f
}

// NewFindings returns an empty, ready-to-merge Findings value. Callers
// that accumulate Findings across several Analyze calls (the executor,
// one call per function invocation) should seed their accumulator with
// this rather than a zero value, whose Distinctions maps are nil.
func NewFindings() Findings { return newFindings() }

func (f *Findings) hit(k Kind, pc uint64) {
	f.Counts[k]++
	f.Distinctions[k][pc] = struct{}{}
}

// Merge folds other into f in place, for accumulating Findings across
// every function call in a testcase.
func (f *Findings) Merge(other Findings) {
	for k := Kind(0); k < numKinds; k++ {
		f.Counts[k] += other.Counts[k]
		for pc := range other.Distinctions[k] {
			f.Distinctions[k][pc] = struct{}{}
		}
	}
}

// Analyzer runs the ten classifiers of spec §4.6 over one finalized
// function trace.
type Analyzer struct{}

// NewAnalyzer returns a stateless Analyzer: the buffer it scans is
// cleared by the caller after each call (spec §4.6 "the per-function
// buffer is cleared"), so the analyzer itself holds nothing between
// calls.
func NewAnalyzer() *Analyzer { return &Analyzer{} }

// Analyze scores one function call's trace. events must be in
// execution order with events[0] the depth-0 call entry.
func (a *Analyzer) Analyze(events []Event) Findings {
	f := newFindings()
	if len(events) == 0 {
		return f
	}
	root := events[0]

	a.gaslessSend(events, &f)
	a.uncheckedCall(events, root, &f)
	a.timestampOrNumberDep(events, bytecode.TIMESTAMP, TimestampDep, &f)
	a.timestampOrNumberDep(events, bytecode.NUMBER, BlockNumberDep, &f)
	a.delegatecall(events, root, &f)
	a.reentrancy(events, &f)
	a.freezingEther(events, &f)
	a.overflow(events, &f)
	a.underflow(events, &f)
	a.unexpectedEther(events, &f)
	return f
}

func (a *Analyzer) gaslessSend(events []Event, f *Findings) {
	for i, e := range events {
		if !e.IsGasless {
			continue
		}
		// Design Note (c): fewer than two prior steps means there is no
		// "two steps before" pc to record; skip rather than guess.
		if i < 2 {
			continue
		}
		f.hit(GaslessSend, events[i-2].PC)
	}
}

func (a *Analyzer) uncheckedCall(events []Event, root Event, f *Findings) {
	rootFaulted := root.IsInvalid
	for i, e := range events {
		if i > 0 && e.IsInvalid && e.Depth > 0 && !rootFaulted {
			f.hit(UncheckedCall, e.PC)
			continue
		}
		if i > 0 && (e.Op == bytecode.CALL || e.Op == bytecode.DELEGATECALL) && !e.IsChecked {
			f.hit(UncheckedCall, e.PC)
		}
	}
}

func isComparison(op bytecode.OpCode) bool {
	switch op {
	case bytecode.GT, bytecode.SGT, bytecode.LT, bytecode.SLT, bytecode.EQ:
		return true
	default:
		return false
	}
}

// timestampOrNumberDep implements the TIMESTAMP/NUMBER-dependence rule
// shared by spec §4.6 rows 3 and 4: a trigger event is dependent if a
// SHA3 follows it before any branch fires, or if a JUMPCI follows
// within 8 instructions, comparisons bridging the gap no more than 3
// instructions apart.
func (a *Analyzer) timestampOrNumberDep(events []Event, trigger bytecode.OpCode, kind Kind, f *Findings) {
	for i, e := range events {
		if e.Op != trigger {
			continue
		}
		last := e.Step
		for j := i + 1; j < len(events); j++ {
			nxt := events[j]
			switch {
			case nxt.Op == bytecode.SHA3:
				f.hit(kind, e.PC)
				goto nextTrigger
			case isJumpci(nxt):
				if nxt.Step-e.Step <= 8 {
					f.hit(kind, e.PC)
				}
				goto nextTrigger
			case isComparison(nxt.Op):
				if nxt.Step-last > 3 {
					goto nextTrigger
				}
				last = nxt.Step
			default:
				if nxt.Step-e.Step > 8 {
					goto nextTrigger
				}
			}
		}
	nextTrigger:
	}
}

// isJumpci reports whether e marks a branch firing: the executor
// records these with Op == JUMPI at the pc of the JUMPI itself.
func isJumpci(e Event) bool { return e.Op == bytecode.JUMPI }

func (a *Analyzer) delegatecall(events []Event, root Event, f *Findings) {
	rootCalleeHex := hex.EncodeToString(root.CallData)
	for _, e := range events {
		if e.Op != bytecode.DELEGATECALL || !e.NoOnlyOwner {
			continue
		}
		switch {
		case bytes.Equal(e.CallData, root.CallData):
			f.hit(Delegatecall, e.PC)
		case e.Callee == root.Caller:
			f.hit(Delegatecall, e.PC)
		case strings.Contains(rootCalleeHex, hex.EncodeToString(e.Callee[:])):
			f.hit(Delegatecall, e.PC)
		}
	}
}

func (a *Analyzer) reentrancy(events []Event, f *Findings) {
	root := events[0]
	for _, e := range events {
		if e.Depth >= 10 && e.Caller == contract.VictimAddress {
			f.hit(Reentrancy, root.PC)
			return
		}
	}
}

func (a *Analyzer) freezingEther(events []Event, f *Findings) {
	sawDelegatecall := false
	sawDepth1Exit := false
	for _, e := range events {
		if e.Op == bytecode.DELEGATECALL {
			sawDelegatecall = true
		}
		if e.Depth == 1 && (e.Op == bytecode.CALL || e.Op == bytecode.CALLCODE || e.Op == bytecode.SUICIDE) {
			sawDepth1Exit = true
		}
	}
	if sawDelegatecall && !sawDepth1Exit {
		f.hit(FreezingEther, events[0].PC)
	}
}

func (a *Analyzer) overflow(events []Event, f *Findings) {
	for _, e := range events {
		if e.IsOverflow {
			f.hit(Overflow, e.PC)
		}
	}
}

func (a *Analyzer) underflow(events []Event, f *Findings) {
	for _, e := range events {
		if e.IsUnderflow {
			f.hit(Underflow, e.PC)
		}
	}
}

func (a *Analyzer) unexpectedEther(events []Event, f *Findings) {
	for i, e := range events {
		if e.Op != bytecode.BALANCE {
			continue
		}
		last := e.Step
		for j := i + 1; j < len(events); j++ {
			nxt := events[j]
			switch {
			case isJumpci(nxt):
				if nxt.Step-e.Step <= 8 {
					f.hit(UnexpectedEther, e.PC)
				}
				goto nextBalance
			case isComparison(nxt.Op):
				if nxt.HasZeroOperand || nxt.Step-last > 3 {
					goto nextBalance
				}
				last = nxt.Step
			default:
				if nxt.Step-e.Step > 8 {
					goto nextBalance
				}
			}
		}
	nextBalance:
	}
}
