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

package main

import (
	"encoding/hex"
	"fmt"
	"math/rand"
	"time"

	"github.com/sfuzz/sfuzz/internal/abicodec"
	"github.com/sfuzz/sfuzz/internal/branch"
	"github.com/sfuzz/sfuzz/internal/bytecode"
	"github.com/sfuzz/sfuzz/internal/config"
	"github.com/sfuzz/sfuzz/internal/contract"
	"github.com/sfuzz/sfuzz/internal/evm/minievm"
	"github.com/sfuzz/sfuzz/internal/executor"
	"github.com/sfuzz/sfuzz/internal/fuzzlog"
	"github.com/sfuzz/sfuzz/internal/mutation"
	"github.com/sfuzz/sfuzz/internal/oracle"
	"github.com/sfuzz/sfuzz/internal/persist"
	"github.com/sfuzz/sfuzz/internal/scheduler"
	"github.com/sfuzz/sfuzz/internal/srcmap"
)

var logger = fuzzlog.Sub("cmd/sfuzz")

// buildBranches classifies both program halves of info and merges
// their snippet maps, before the contract is handed to the scheduler.
func buildBranches(info *contract.Info) (branch.BranchSets, map[uint64]string, error) {
	creationSegs, err := srcmap.Decompress(info.CreationSourceMap)
	if err != nil {
		return branch.BranchSets{}, nil, fmt.Errorf("creation source map: %w", err)
	}
	runtimeSegs, err := srcmap.Decompress(info.RuntimeSourceMap)
	if err != nil {
		return branch.BranchSets{}, nil, fmt.Errorf("runtime source map: %w", err)
	}

	creation := branch.Classify(bytecode.Decode(info.CreationBytecode), creationSegs, info.Source, info.ConstRanges)
	runtime := branch.Classify(bytecode.Decode(info.RuntimeBytecode), runtimeSegs, info.Source, info.ConstRanges)

	snippets := make(map[uint64]string, len(creation.Snippets)+len(runtime.Snippets))
	for pc, s := range creation.Snippets {
		snippets[pc] = s
	}
	for pc, s := range runtime.Snippets {
		snippets[pc] = s
	}
	return branch.BranchSets{Creation: creation, Runtime: runtime}, snippets, nil
}

// newChildMutator returns a scheduler mutate callback that runs one
// havoc round against the source item through exec, keeping whichever
// havoc step was last tried (the point of prefuzz is to explore, not
// to keep every intermediate buffer).
func newChildMutator(exec *executor.Executor, code []byte, rng *rand.Rand) func(*mutation.FuzzItem) *mutation.FuzzItem {
	return func(item *mutation.FuzzItem) *mutation.FuzzItem {
		child := &mutation.FuzzItem{Data: append([]byte(nil), item.Data...), Depth: item.Depth + 1}
		m := mutation.NewMutator(child, code, contract.AttackerAddress, rng)
		save := func(data []byte) ([32]byte, error) {
			res, err := exec.Exec(data, false, true)
			if err != nil {
				return [32]byte{}, err
			}
			child.Data = append([]byte(nil), data...)
			return res.Cksum, nil
		}
		if err := m.Havoc(1, save); err != nil {
			logger.Warnw("havoc child failed", "err", err)
		}
		return child
	}
}

// runPrefuzz drives branch discovery to termination and persists the
// leader/weight tables a later fuzz-mode run consumes.
func runPrefuzz(cfg *config.Config, info *contract.Info) error {
	branches, snippets, err := buildBranches(info)
	if err != nil {
		return err
	}
	if err := info.ABI.Validate(); err != nil {
		return err
	}

	codec := abicodec.New(info.ABI)
	backend := minievm.New()
	exec := executor.New(backend, info, branches, codec)

	rng := rand.New(rand.NewSource(time.Now().UnixNano()))
	seed := &mutation.FuzzItem{Data: codec.RandomTestcase(rng)}

	sched := scheduler.New(exec, seed, snippets)
	maxIdle := time.Duration(cfg.Duration) * time.Minute
	if err := sched.RunPrefuzz(maxIdle, newChildMutator(exec, info.RuntimeBytecode, rng)); err != nil {
		return fmt.Errorf("prefuzz: %w", err)
	}

	leaderEntries := make([]persist.LeaderEntry, 0, len(sched.Leaders))
	weightEntries := make([]persist.WeightEntry, 0, len(sched.Leaders))
	for branchID, leader := range sched.Leaders {
		// leaders.json holds only branches actually covered
		// (comparisonValue == 0, spec §6.3); a non-zero distance is a
		// near-miss the scheduler kept around for future splicing, not
		// a covered branch worth replaying in fuzz mode.
		if !leader.Distance.IsZero() {
			continue
		}
		leaderEntries = append(leaderEntries, persist.LeaderEntry{
			BranchID: branchID,
			DataHex:  hex.EncodeToString(leader.Item.Data),
			Distance: leader.Distance.Dec(),
		})
		weightEntries = append(weightEntries, persist.WeightEntry{BranchID: branchID, Weight: 1})
	}
	if err := persist.SaveLeaders(cfg.AssetsFolder, leaderEntries); err != nil {
		return err
	}
	if err := persist.SaveWeight(cfg.AssetsFolder, weightEntries); err != nil {
		return err
	}
	logger.Infow("prefuzz finished", "branches", len(sched.Leaders))
	return nil
}

// runFuzz replays every persisted leader testcase through the oracle
// and writes the contract's vulnerability report.
func runFuzz(cfg *config.Config, info *contract.Info) error {
	branches, _, err := buildBranches(info)
	if err != nil {
		return err
	}
	if err := info.ABI.Validate(); err != nil {
		return err
	}

	codec := abicodec.New(info.ABI)
	backend := minievm.New()
	exec := executor.New(backend, info, branches, codec)

	leaders, err := persist.LoadLeaders(cfg.AssetsFolder)
	if err != nil {
		return fmt.Errorf("fuzz: loading leaders: %w", err)
	}

	report := persist.Report{
		Contract:     info.Name,
		Findings:     make(map[string]int),
		Distinctions: make(map[string][]string),
	}
	for _, l := range leaders {
		data, err := hex.DecodeString(l.DataHex)
		if err != nil {
			logger.Warnw("skipping leader with bad hex", "branch", l.BranchID, "err", err)
			continue
		}
		res, err := exec.Exec(data, false, false)
		if err != nil {
			logger.Warnw("exec failed", "branch", l.BranchID, "err", err)
			continue
		}
		mergeFindings(&report, res.Findings)
	}

	if err := persist.SaveReport(cfg.AssetsFolder, report); err != nil {
		return err
	}
	logger.Infow("fuzz finished", "contract", info.Name, "findings", report.Findings)
	return nil
}

func mergeFindings(report *persist.Report, f oracle.Findings) {
	for k := oracle.Kind(0); int(k) < len(f.Counts); k++ {
		if f.Counts[k] == 0 {
			continue
		}
		name := k.String()
		report.Findings[name] += f.Counts[k]
		for pc := range f.Distinctions[k] {
			report.Distinctions[name] = append(report.Distinctions[name], fmt.Sprintf("%d", pc))
		}
	}
}

// Run executes one full prefuzz-or-fuzz cycle for info according to
// cfg, the way main's cli.Action drives a single already-loaded
// contract (spec.md §1: contract discovery is an external
// collaborator, this function is where that collaborator hands off).
func Run(cfg *config.Config, info *contract.Info) error {
	if cfg.Prefuzz {
		return runPrefuzz(cfg, info)
	}
	return runFuzz(cfg, info)
}
