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
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/sfuzz/sfuzz/internal/config"
)

func testConfig(t *testing.T) *config.Config {
	cfg := config.Default()
	cfg.AssetsFolder = t.TempDir()
	cfg.Duration = 1
	return cfg
}

func TestRunPrefuzzThenFuzzProducesReport(t *testing.T) {
	a := minimalArtifact()
	info, err := a.toContractInfo()
	require.NoError(t, err)

	cfg := testConfig(t)
	cfg.Prefuzz = true
	require.NoError(t, Run(cfg, info))

	_, err = filepath.Glob(filepath.Join(cfg.AssetsFolder, "branch_msg", "leaders.json"))
	require.NoError(t, err)

	cfg.Prefuzz = false
	require.NoError(t, Run(cfg, info))
}

func TestRunRejectsEmptyABI(t *testing.T) {
	a := minimalArtifact()
	a.Functions = nil
	info, err := a.toContractInfo()
	require.NoError(t, err)

	cfg := testConfig(t)
	cfg.Prefuzz = true
	require.Error(t, Run(cfg, info))
}
