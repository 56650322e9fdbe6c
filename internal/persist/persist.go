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

// Package persist implements spec §6.3's on-disk state: the
// branch_msg/*.json files a prefuzz run leaves for a later fuzz run to
// pick up, and the per-contract report a finished run writes. Every
// read/write is guarded by a file lock, the way the teacher guards its
// node data directory against a concurrently running second instance.
package persist

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/gofrs/flock"
)

const branchMsgDir = "branch_msg"

func lockedWrite(path string, v any) (err error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("persist: mkdir %s: %w", filepath.Dir(path), err)
	}
	lock := flock.New(path + ".lock")
	if err := lock.Lock(); err != nil {
		return fmt.Errorf("persist: locking %s: %w", path, err)
	}
	defer func() {
		if uerr := lock.Unlock(); err == nil {
			err = uerr
		}
	}()

	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("persist: marshaling %s: %w", path, err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("persist: writing %s: %w", path, err)
	}
	return nil
}

func lockedRead(path string, v any) (err error) {
	lock := flock.New(path + ".lock")
	if err := lock.RLock(); err != nil {
		return fmt.Errorf("persist: locking %s: %w", path, err)
	}
	defer func() {
		if uerr := lock.Unlock(); err == nil {
			err = uerr
		}
	}()

	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("persist: reading %s: %w", path, err)
	}
	if err := json.Unmarshal(data, v); err != nil {
		return fmt.Errorf("persist: unmarshaling %s: %w", path, err)
	}
	return nil
}

// PrefixEntry pairs a branch id with the ordered pc list the executor
// recorded the first time it reached that branch (spec §3's PrefixMap).
type PrefixEntry struct {
	BranchID string   `json:"branch_id"`
	PCs      []uint64 `json:"pcs"`
}

// SavePrefix writes branch_msg/prefix.json under dir.
func SavePrefix(dir string, entries []PrefixEntry) error {
	return lockedWrite(filepath.Join(dir, branchMsgDir, "prefix.json"), entries)
}

// LoadPrefix reads branch_msg/prefix.json under dir.
func LoadPrefix(dir string) ([]PrefixEntry, error) {
	var entries []PrefixEntry
	err := lockedRead(filepath.Join(dir, branchMsgDir, "prefix.json"), &entries)
	return entries, err
}

// LeaderEntry is the persisted form of one scheduler.Leader: the
// testcase bytes hex-encoded, plus the predicate distance as a decimal
// string (uint256 doesn't round-trip through JSON numbers).
type LeaderEntry struct {
	BranchID string `json:"branch_id"`
	DataHex  string `json:"data_hex"`
	Distance string `json:"distance"`
}

// SaveLeaders writes branch_msg/leaders.json under dir.
func SaveLeaders(dir string, entries []LeaderEntry) error {
	return lockedWrite(filepath.Join(dir, branchMsgDir, "leaders.json"), entries)
}

// LoadLeaders reads branch_msg/leaders.json under dir.
func LoadLeaders(dir string) ([]LeaderEntry, error) {
	var entries []LeaderEntry
	err := lockedRead(filepath.Join(dir, branchMsgDir, "leaders.json"), &entries)
	return entries, err
}

// WeightEntry is one branch's energy weighting, persisted so a later
// fuzz-mode run can resume scheduling without repeating prefuzz.
type WeightEntry struct {
	BranchID string  `json:"branch_id"`
	Weight   float64 `json:"weight"`
}

// SaveWeight writes branch_msg/weight.json under dir.
func SaveWeight(dir string, entries []WeightEntry) error {
	return lockedWrite(filepath.Join(dir, branchMsgDir, "weight.json"), entries)
}

// LoadWeight reads branch_msg/weight.json under dir. Its absence is
// what config.Validate checks for before allowing fuzz mode to start.
func LoadWeight(dir string) ([]WeightEntry, error) {
	var entries []WeightEntry
	err := lockedRead(filepath.Join(dir, branchMsgDir, "weight.json"), &entries)
	return entries, err
}

// WeightFileExists reports whether dir has a persisted weight.json,
// the predicate config.Validate requires for fuzz mode.
func WeightFileExists(dir string) func() bool {
	path := filepath.Join(dir, branchMsgDir, "weight.json")
	return func() bool {
		_, err := os.Stat(path)
		return err == nil
	}
}

// Report is the per-contract summary spec §6.3 names:
// "<contract>_report.json" under the assets folder.
type Report struct {
	Contract     string              `json:"contract"`
	Findings     map[string]int      `json:"findings"`
	Distinctions map[string][]string `json:"distinctions"`
}

// SaveReport writes <contract>_report.json under dir.
func SaveReport(dir string, report Report) error {
	name := fmt.Sprintf("%s_report.json", report.Contract)
	return lockedWrite(filepath.Join(dir, name), report)
}

// LoadReport reads a previously saved report for contract under dir.
func LoadReport(dir, contract string) (Report, error) {
	var report Report
	name := fmt.Sprintf("%s_report.json", contract)
	err := lockedRead(filepath.Join(dir, name), &report)
	return report, err
}
