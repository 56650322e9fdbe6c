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

// Package scheduler implements the prefuzz/fuzz leader-queue scheduler
// (C8): it drives the executor over a growing queue of testcases,
// keeps one "leader" item per discovered branch, and tracks the
// termination conditions spec §4.8 names. Modeled on the teacher's
// eth/downloader queue — a round-robin work queue plus per-item
// scoring — adapted from block requests to fuzz testcases.
package scheduler

import (
	"time"

	"github.com/google/uuid"
	"github.com/holiman/uint256"

	"github.com/sfuzz/sfuzz/internal/executor"
	"github.com/sfuzz/sfuzz/internal/mutation"
)

// minExecsPerSec is the exec-speed termination threshold of spec
// §4.8: a run that falls below this for a sustained window is making
// no meaningful progress and should stop.
const minExecsPerSec = 10

// Leader is the current best testcase for one branch id: the item
// whose predicate distance came closest to flipping that branch (spec
// §4.8's leader-replacement rule).
type Leader struct {
	BranchID string
	Item     *mutation.FuzzItem
	Distance *uint256.Int
}

// EnergyRecord is the small per-item bookkeeping the scheduler uses to
// decide how much attention an item still deserves.
type EnergyRecord struct {
	RunID       string
	FuzzedCount int
	LastNewPath time.Time
}

// Scheduler owns the fuzz loop for one contract: a work queue, the
// leader table, and the global coverage state the executor's
// tracebits/predicates feed into.
type Scheduler struct {
	Exec  *executor.Executor
	Queue []*mutation.FuzzItem

	Leaders map[string]*Leader
	Energy  map[*mutation.FuzzItem]*EnergyRecord

	Snippets map[uint64]string

	globalTracebits map[string]struct{}
	execCount       int
	startedAt       time.Time
	lastNewPathAt   time.Time

	clock func() time.Time
}

// New builds a Scheduler seeded with one initial testcase.
func New(exec *executor.Executor, seed *mutation.FuzzItem, snippets map[uint64]string) *Scheduler {
	now := time.Now()
	s := &Scheduler{
		Exec:            exec,
		Queue:           []*mutation.FuzzItem{seed},
		Leaders:         make(map[string]*Leader),
		Energy:          make(map[*mutation.FuzzItem]*EnergyRecord),
		Snippets:        snippets,
		globalTracebits: make(map[string]struct{}),
		startedAt:       now,
		lastNewPathAt:   now,
		clock:           time.Now,
	}
	s.Energy[seed] = &EnergyRecord{RunID: uuid.NewString(), LastNewPath: now}
	return s
}

// Snippet returns the diagnostic source snippet for a branch id's
// JUMPI program counter, or "" if none is recorded.
func (s *Scheduler) Snippet(branchID string) string {
	pc, ok := parseBranchPC(branchID)
	if !ok {
		return ""
	}
	return s.Snippets[pc]
}

// ShouldStop reports whether any of spec §4.8's termination conditions
// currently hold: no new path within maxIdle, exec speed collapsed
// below minExecsPerSec (once enough execs have run to measure it), or
// the queue has been fully drained.
func (s *Scheduler) ShouldStop(maxIdle time.Duration) bool {
	now := s.clock()
	if now.Sub(s.lastNewPathAt) > maxIdle {
		return true
	}
	if elapsed := now.Sub(s.startedAt).Seconds(); elapsed > 1 && s.execCount > 0 {
		if float64(s.execCount)/elapsed < minExecsPerSec {
			return true
		}
	}
	return len(s.Queue) == 0
}

// RunPrefuzz drains the queue in branch-discovery mode: every
// testcase is executed once, new tracebits/predicates extend the
// leader table, and any item that discovered a new branch is requeued
// with a freshly mutated child so the search keeps expanding.
func (s *Scheduler) RunPrefuzz(maxIdle time.Duration, mutate func(*mutation.FuzzItem) *mutation.FuzzItem) error {
	for !s.ShouldStop(maxIdle) {
		item := s.Queue[0]
		s.Queue = s.Queue[1:]

		res, err := s.Exec.Exec(item.Data, false, true)
		if err != nil {
			continue
		}
		s.execCount++

		foundNew := false
		for _, bid := range res.Tracebits.ToSlice() {
			if _, seen := s.globalTracebits[bid]; !seen {
				s.globalTracebits[bid] = struct{}{}
				foundNew = true
			}
			s.considerLeader(bid, item, uint256.NewInt(0))
		}
		for bid, dist := range res.Predicates {
			s.considerLeader(bid, item, dist)
		}

		rec := s.Energy[item]
		if rec == nil {
			rec = &EnergyRecord{RunID: uuid.NewString()}
			s.Energy[item] = rec
		}
		rec.FuzzedCount++

		if foundNew {
			s.lastNewPathAt = s.clock()
			if mutate != nil {
				child := mutate(item)
				s.Queue = append(s.Queue, child)
				s.Energy[child] = &EnergyRecord{RunID: uuid.NewString(), LastNewPath: s.lastNewPathAt}
			}
		}
	}
	return nil
}

// RunFuzz drains the queue in vulnerability-triggering mode: leaders
// are re-executed with reachedBranch accounting instead of
// tracebits/predicates, reporting each reached branch id and the item
// that reached it via collect. The oracle's findings are not passed to
// collect.
func (s *Scheduler) RunFuzz(maxIdle time.Duration, collect func(branchID string, item *mutation.FuzzItem)) error {
	for !s.ShouldStop(maxIdle) {
		item := s.Queue[0]
		s.Queue = s.Queue[1:]

		res, err := s.Exec.Exec(item.Data, false, false)
		if err != nil {
			continue
		}
		s.execCount++

		for bid := range res.ReachedBranch {
			if collect != nil {
				collect(bid, item)
			}
		}
	}
	return nil
}

// considerLeader replaces branchID's leader if dist is strictly closer
// to flipping the branch than the current leader's recorded distance
// (spec §4.8's leader-replacement rule: smaller predicate distance
// wins, first-discoverer wins ties).
func (s *Scheduler) considerLeader(branchID string, item *mutation.FuzzItem, dist *uint256.Int) {
	cur, ok := s.Leaders[branchID]
	if !ok {
		s.Leaders[branchID] = &Leader{BranchID: branchID, Item: item, Distance: dist}
		return
	}
	if dist.Lt(cur.Distance) {
		cur.Item = item
		cur.Distance = dist
	}
}

func parseBranchPC(branchID string) (uint64, bool) {
	for i := 0; i < len(branchID); i++ {
		if branchID[i] == ':' {
			var pc uint64
			for j := 0; j < i; j++ {
				c := branchID[j]
				if c < '0' || c > '9' {
					return 0, false
				}
				pc = pc*10 + uint64(c-'0')
			}
			return pc, true
		}
	}
	return 0, false
}
