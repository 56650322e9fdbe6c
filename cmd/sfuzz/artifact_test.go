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
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func writeArtifact(t *testing.T, a artifact) string {
	t.Helper()
	data, err := json.Marshal(a)
	require.NoError(t, err)
	path := filepath.Join(t.TempDir(), "artifact.json")
	require.NoError(t, os.WriteFile(path, data, 0o644))
	return path
}

func minimalArtifact() artifact {
	return artifact{
		Name:              "Ping",
		CreationBytecode:  "00",
		RuntimeBytecode:   "00",
		CreationSourceMap: "0:0",
		RuntimeSourceMap:  "0:0",
		Source:            "contract Ping { function ping() public {} }",
		Constructor:       nil,
		Functions: []artifactFunction{
			{Name: "ping", Inputs: nil, Mutability: "nonpayable"},
			{Name: "transfer", Inputs: []string{"address", "uint256"}, Mutability: "nonpayable"},
		},
	}
}

func TestLoadArtifactRoundTrips(t *testing.T) {
	path := writeArtifact(t, minimalArtifact())
	a, err := loadArtifact(path)
	require.NoError(t, err)
	require.Equal(t, "Ping", a.Name)
	require.Len(t, a.Functions, 2)
}

func TestToContractInfoResolvesTypes(t *testing.T) {
	a := minimalArtifact()
	info, err := a.toContractInfo()
	require.NoError(t, err)

	require.Equal(t, "Ping", info.Name)
	require.Equal(t, []byte{0x00}, info.CreationBytecode)
	require.Len(t, info.ABI.Functions, 2)
	require.Equal(t, "transfer", info.ABI.Functions[1].Name)
	require.Len(t, info.ABI.Functions[1].Inputs, 2)
}

func TestToContractInfoRejectsUnsupportedType(t *testing.T) {
	a := minimalArtifact()
	a.Functions[1].Inputs = []string{"tuple(uint256,uint256)"}
	_, err := a.toContractInfo()
	require.Error(t, err)
}

func TestLoadArtifactMissingFileErrors(t *testing.T) {
	_, err := loadArtifact(filepath.Join(t.TempDir(), "missing.json"))
	require.Error(t, err)
}
