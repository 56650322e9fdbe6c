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

package scheduler

import (
	"testing"
	"time"

	"github.com/holiman/uint256"
	"github.com/stretchr/testify/require"

	"github.com/sfuzz/sfuzz/internal/abicodec"
	"github.com/sfuzz/sfuzz/internal/abicodec/abi"
	"github.com/sfuzz/sfuzz/internal/branch"
	"github.com/sfuzz/sfuzz/internal/contract"
	"github.com/sfuzz/sfuzz/internal/evm/minievm"
	"github.com/sfuzz/sfuzz/internal/executor"
	"github.com/sfuzz/sfuzz/internal/mutation"
)

func newTestScheduler() *Scheduler {
	seed := &mutation.FuzzItem{Data: []byte{0x01}}
	return New(nil, seed, map[uint64]string{7: "require(a > b)"})
}

func TestConsiderLeaderAdoptsFirstDiscoverer(t *testing.T) {
	s := newTestScheduler()
	item := &mutation.FuzzItem{Data: []byte{0x02}}
	s.considerLeader("7:9", item, uint256.NewInt(5))

	leader := s.Leaders["7:9"]
	require.NotNil(t, leader)
	require.Same(t, item, leader.Item)
	require.Equal(t, uint256.NewInt(5), leader.Distance)
}

func TestConsiderLeaderReplacesOnlyOnStrictlyCloserDistance(t *testing.T) {
	s := newTestScheduler()
	first := &mutation.FuzzItem{Data: []byte{0x02}}
	second := &mutation.FuzzItem{Data: []byte{0x03}}

	s.considerLeader("7:9", first, uint256.NewInt(5))
	s.considerLeader("7:9", second, uint256.NewInt(8)) // farther: no replacement
	require.Same(t, first, s.Leaders["7:9"].Item)

	closer := &mutation.FuzzItem{Data: []byte{0x04}}
	s.considerLeader("7:9", closer, uint256.NewInt(1)) // closer: replaces
	require.Same(t, closer, s.Leaders["7:9"].Item)
}

func TestSnippetLooksUpByJumpiPC(t *testing.T) {
	s := newTestScheduler()
	require.Equal(t, "require(a > b)", s.Snippet("7:9"))
	require.Equal(t, "", s.Snippet("99:100"))
	require.Equal(t, "", s.Snippet("not-a-branch-id"))
}

func TestShouldStopOnIdleTimeout(t *testing.T) {
	s := newTestScheduler()
	base := time.Now()
	s.clock = func() time.Time { return base.Add(2 * time.Hour) }
	s.lastNewPathAt = base

	require.True(t, s.ShouldStop(time.Hour))
}

func TestShouldStopOnDrainedQueue(t *testing.T) {
	s := newTestScheduler()
	s.Queue = nil
	require.True(t, s.ShouldStop(time.Hour))
}

func TestShouldStopFalseWhenProgressing(t *testing.T) {
	s := newTestScheduler()
	require.False(t, s.ShouldStop(time.Hour))
}

func TestShouldStopOnCollapsedExecSpeed(t *testing.T) {
	s := newTestScheduler()
	base := time.Now()
	s.startedAt = base
	s.lastNewPathAt = base
	s.execCount = 1
	s.clock = func() time.Time { return base.Add(10 * time.Minute) }

	require.True(t, s.ShouldStop(time.Hour))
}

func TestParseBranchPC(t *testing.T) {
	pc, ok := parseBranchPC("123:456")
	require.True(t, ok)
	require.Equal(t, uint64(123), pc)

	_, ok = parseBranchPC("nope")
	require.False(t, ok)
}

// noArgContractInfo builds a one-function, no-argument contract whose
// constructor and runtime bodies are a single STOP, just enough for
// the executor to deploy and invoke without instrumented branches.
func noArgContractInfo() *contract.Info {
	return &contract.Info{
		Name:             "Ping",
		CreationBytecode: []byte{0x00},
		RuntimeBytecode:  []byte{0x00},
		ABI: abi.Descriptor{
			Functions: []abi.Method{{Name: "ping", Mutable: abi.Nonpayable}},
		},
	}
}

func TestRunPrefuzzDrainsQueueAgainstARealExecutor(t *testing.T) {
	info := noArgContractInfo()
	codec := abicodec.New(info.ABI)
	backend := minievm.New()
	branches := branch.BranchSets{Creation: branch.Sets{}, Runtime: branch.Sets{}}
	exec := executor.New(backend, info, branches, codec)

	seed := &mutation.FuzzItem{Data: make([]byte, codec.TotalLen())}
	s := New(exec, seed, nil)

	require.NoError(t, s.RunPrefuzz(time.Hour, nil))
	require.Empty(t, s.Queue)
}

func TestRunFuzzReplaysQueueAgainstARealExecutor(t *testing.T) {
	info := noArgContractInfo()
	codec := abicodec.New(info.ABI)
	backend := minievm.New()
	branches := branch.BranchSets{Creation: branch.Sets{}, Runtime: branch.Sets{}}
	exec := executor.New(backend, info, branches, codec)

	seed := &mutation.FuzzItem{Data: make([]byte, codec.TotalLen())}
	s := New(exec, seed, nil)

	var collected []string
	require.NoError(t, s.RunFuzz(time.Hour, func(branchID string, item *mutation.FuzzItem) {
		collected = append(collected, branchID)
	}))
	require.Empty(t, s.Queue)
}
