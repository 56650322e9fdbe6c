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

package oracle

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/sfuzz/sfuzz/internal/bytecode"
	"github.com/sfuzz/sfuzz/internal/contract"
)

// scenario 5: a single ADD whose 512-bit result differs from its
// 256-bit result, with no subsequent comparison clearing isReallyFlow.
func TestOverflowOracleScenario(t *testing.T) {
	events := []Event{
		{Step: 0, Depth: 0, PC: 1, Op: bytecode.CALL},
		{Step: 1, Depth: 0, PC: 42, Op: bytecode.ADD, IsOverflow: true},
	}
	f := NewAnalyzer().Analyze(events)
	require.Equal(t, 1, f.Counts[Overflow])
	_, ok := f.Distinctions[Overflow][42]
	require.True(t, ok)
}

// scenario 6: depth-0 event has caller != victim, later event at
// depth >= 10 has caller == victim.
func TestReentrancyOracleScenario(t *testing.T) {
	events := []Event{
		{Step: 0, Depth: 0, PC: 1, Op: bytecode.CALL, Caller: [20]byte{0x01}},
		{Step: 1, Depth: 10, PC: 99, Op: bytecode.CALL, Caller: contract.VictimAddress},
	}
	f := NewAnalyzer().Analyze(events)
	require.Equal(t, 1, f.Counts[Reentrancy])
	_, ok := f.Distinctions[Reentrancy][1]
	require.True(t, ok)
}

func TestGaslessSendSkipsWhenFewerThanTwoPriorSteps(t *testing.T) {
	events := []Event{
		{Step: 0, Depth: 0, PC: 1, Op: bytecode.CALL, IsGasless: true},
	}
	f := NewAnalyzer().Analyze(events)
	require.Equal(t, 0, f.Counts[GaslessSend])
}

func TestGaslessSendRecordsTwoStepsBack(t *testing.T) {
	events := []Event{
		{Step: 0, Depth: 0, PC: 1, Op: bytecode.CALL},
		{Step: 1, Depth: 0, PC: 5, Op: bytecode.GT},
		{Step: 2, Depth: 0, PC: 9, Op: bytecode.CALL},
		{Step: 3, Depth: 0, PC: 20, Op: bytecode.CALL, IsGasless: true},
	}
	f := NewAnalyzer().Analyze(events)
	require.Equal(t, 1, f.Counts[GaslessSend])
	_, ok := f.Distinctions[GaslessSend][5]
	require.True(t, ok)
}

func TestUncheckedCallFlagsUnCheckedCallEvent(t *testing.T) {
	events := []Event{
		{Step: 0, Depth: 0, PC: 1, Op: bytecode.CALL},
		{Step: 1, Depth: 0, PC: 30, Op: bytecode.CALL, IsChecked: false},
	}
	f := NewAnalyzer().Analyze(events)
	require.Equal(t, 1, f.Counts[UncheckedCall])
}

func TestTimestampDependenceViaSha3(t *testing.T) {
	events := []Event{
		{Step: 0, Depth: 0, PC: 1, Op: bytecode.CALL},
		{Step: 1, Depth: 0, PC: 10, Op: bytecode.TIMESTAMP},
		{Step: 2, Depth: 0, PC: 15, Op: bytecode.SHA3},
	}
	f := NewAnalyzer().Analyze(events)
	require.Equal(t, 1, f.Counts[TimestampDep])
}

func TestFreezingEtherRequiresNoDepth1Exit(t *testing.T) {
	events := []Event{
		{Step: 0, Depth: 0, PC: 1, Op: bytecode.CALL},
		{Step: 1, Depth: 1, PC: 40, Op: bytecode.DELEGATECALL},
	}
	f := NewAnalyzer().Analyze(events)
	require.Equal(t, 1, f.Counts[FreezingEther])

	events = append(events, Event{Step: 2, Depth: 1, PC: 50, Op: bytecode.CALL})
	f = NewAnalyzer().Analyze(events)
	require.Equal(t, 0, f.Counts[FreezingEther])
}
