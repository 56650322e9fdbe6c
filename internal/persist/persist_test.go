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

package persist

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestPrefixRoundTrip(t *testing.T) {
	dir := t.TempDir()
	want := []PrefixEntry{{BranchID: "7:9", PCs: []uint64{1, 2, 7}}}

	require.NoError(t, SavePrefix(dir, want))
	got, err := LoadPrefix(dir)
	require.NoError(t, err)
	require.Equal(t, want, got)
}

func TestLeadersRoundTrip(t *testing.T) {
	dir := t.TempDir()
	want := []LeaderEntry{{BranchID: "7:9", DataHex: "aabbcc", Distance: "8"}}

	require.NoError(t, SaveLeaders(dir, want))
	got, err := LoadLeaders(dir)
	require.NoError(t, err)
	require.Equal(t, want, got)
}

func TestWeightRoundTripAndExistencePredicate(t *testing.T) {
	dir := t.TempDir()

	require.False(t, WeightFileExists(dir)())

	want := []WeightEntry{{BranchID: "7:9", Weight: 0.5}}
	require.NoError(t, SaveWeight(dir, want))

	require.True(t, WeightFileExists(dir)())

	got, err := LoadWeight(dir)
	require.NoError(t, err)
	require.Equal(t, want, got)
}

func TestReportRoundTrip(t *testing.T) {
	dir := t.TempDir()
	want := Report{
		Contract:     "Vault",
		Findings:     map[string]int{"Reentrancy": 1},
		Distinctions: map[string][]string{"Reentrancy": {"123"}},
	}

	require.NoError(t, SaveReport(dir, want))
	got, err := LoadReport(dir, "Vault")
	require.NoError(t, err)
	require.Equal(t, want, got)
}

func TestLoadPrefixMissingFileErrors(t *testing.T) {
	dir := t.TempDir()
	_, err := LoadPrefix(dir)
	require.Error(t, err)
}
