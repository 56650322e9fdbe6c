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

package executor

import (
	"testing"

	mapset "github.com/deckarep/golang-set/v2"
	"github.com/stretchr/testify/require"

	"github.com/sfuzz/sfuzz/internal/branch"
	"github.com/sfuzz/sfuzz/internal/evm"
	"github.com/sfuzz/sfuzz/internal/evm/minievm"
	"github.com/sfuzz/sfuzz/internal/oracle"
)

// PUSH1 3; PUSH1 10; GT (top 10 > 3); PUSH1 9 (dest); JUMPI; STOP; JUMPDEST(pc9); STOP
func gtJumpiCode() []byte {
	return []byte{
		0x60, 0x03,
		0x60, 0x0a,
		0x11,
		0x60, 0x09,
		0x57,
		0x00,
		0x5b,
		0x00,
	}
}

func emptySets(jumpiPCs ...uint64) branch.Sets {
	return branch.Sets{
		JUMPI:                    mapset.NewThreadUnsafeSet(jumpiPCs...),
		Timestamp:                mapset.NewThreadUnsafeSet[uint64](),
		Number:                   mapset.NewThreadUnsafeSet[uint64](),
		Delegatecall:             mapset.NewThreadUnsafeSet[uint64](),
		NonOnlyOwnerDelegatecall: mapset.NewThreadUnsafeSet[uint64](),
		UncheckedCall:            mapset.NewThreadUnsafeSet[uint64](),
		Snippets:                 map[uint64]string{},
	}
}

func TestRunCallRecordsTracebitAndPredicateInPrefuzzMode(t *testing.T) {
	backend := minievm.New()
	addr := evm.Address{0xAA}
	require.NoError(t, backend.Deploy(addr, gtJumpiCode()))

	e := &Executor{Backend: backend, Oracle: oracle.NewAnalyzer()}
	res := newExecutionResult()
	e.runCall(addr, evm.CallFunction, nil, emptySets(7), true, true, &res)

	require.True(t, res.Tracebits.Contains("7:9"))
	cv, ok := res.Predicates["7:8"]
	require.True(t, ok)
	require.Equal(t, uint64(8), cv.Uint64())
}

func TestRunCallIncrementsReachedBranchInFuzzMode(t *testing.T) {
	backend := minievm.New()
	addr := evm.Address{0xAA}
	require.NoError(t, backend.Deploy(addr, gtJumpiCode()))

	e := &Executor{Backend: backend, Oracle: oracle.NewAnalyzer()}
	res := newExecutionResult()
	e.runCall(addr, evm.CallFunction, nil, emptySets(7), false, true, &res)

	require.Equal(t, 1, res.ReachedBranch["7:9"])
	require.Empty(t, res.Predicates)
}

func TestRunCallSkipsInstrumentationWhenNotInstrumented(t *testing.T) {
	backend := minievm.New()
	addr := evm.Address{0xAA}
	require.NoError(t, backend.Deploy(addr, gtJumpiCode()))

	e := &Executor{Backend: backend, Oracle: oracle.NewAnalyzer()}
	res := newExecutionResult()
	e.runCall(addr, evm.CallFunction, nil, emptySets(7), true, false, &res)

	require.True(t, res.Tracebits.IsEmpty())
	require.Empty(t, res.Predicates)
}

// PUSH1 1; PUSH1 1; ADD — no overflow.
func addNoOverflowCode() []byte {
	return []byte{0x60, 0x01, 0x60, 0x01, 0x01, 0x00}
}

func TestRunCallFindingsCapturesNoOverflowOnSmallAdd(t *testing.T) {
	backend := minievm.New()
	addr := evm.Address{0xBB}
	require.NoError(t, backend.Deploy(addr, addNoOverflowCode()))

	e := &Executor{Backend: backend, Oracle: oracle.NewAnalyzer()}
	res := newExecutionResult()
	e.runCall(addr, evm.CallFunction, nil, emptySets(), true, true, &res)

	require.Equal(t, 0, res.Findings.Counts[oracle.Overflow])
}
