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

// Package config holds sfuzz's run configuration (spec §6.1). Parsing
// command-line flags is an external collaborator; this package only
// defines the shape and its defaults, plus a TOML loader for the
// persisted form of the same options.
package config

import (
	"fmt"
	"os"

	"github.com/BurntSushi/toml"

	"github.com/sfuzz/sfuzz/internal/fuzzerrors"
)

// ReporterMode selects how a finished run's findings are surfaced.
// Rendering itself is an external collaborator (spec §1); sfuzz only
// tags the run with the requested mode for that collaborator to read.
type ReporterMode string

const (
	ReporterTerminal ReporterMode = "TERMINAL"
	ReporterJSON     ReporterMode = "JSON"
	ReporterBoth     ReporterMode = "BOTH"
)

// Mode names the scheduling strategy. Only AFL scheduling is
// supported; the choice between prefuzz (branch discovery) and fuzz
// (vulnerability triggering) is made by Config.Prefuzz, not by Mode.
type Mode string

const (
	ModeAFL Mode = "AFL"
)

// Config mirrors every option in spec §6.1.
type Config struct {
	ContractsFolder string       `toml:"contracts_folder"`
	AssetsFolder    string       `toml:"assets_folder"`
	Mode            Mode         `toml:"mode"`
	Reporter        ReporterMode `toml:"reporter"`
	Duration        int          `toml:"duration"`
	TestcasesNum    int          `toml:"testcases_num"`
	Attacker        string       `toml:"attacker"`
	Prefuzz         bool         `toml:"prefuzz"`

	// Single-contract mode inputs.
	File   string `toml:"file"`
	Name   string `toml:"name"`
	Source string `toml:"source"`
}

// Default returns the configuration spec §6.1 describes when no flag or
// file overrides a field.
func Default() *Config {
	return &Config{
		ContractsFolder: "contracts/",
		AssetsFolder:    "assets/",
		Mode:            ModeAFL,
		Reporter:        ReporterJSON,
		Duration:        5,
		TestcasesNum:    1,
		Attacker:        "ReentrancyAttacker",
		Prefuzz:         false,
	}
}

// Load reads a TOML configuration file over the defaults, the way the
// teacher's node config layers a file on top of struct defaults.
func Load(path string) (*Config, error) {
	cfg := Default()
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: reading %s: %w", path, err)
	}
	if _, err := toml.Decode(string(data), cfg); err != nil {
		return nil, fmt.Errorf("config: decoding %s: %w", path, err)
	}
	return cfg, nil
}

// Validate enforces the one fatal configuration rule spec §7 names:
// fuzz mode requires a previously persisted weight table.
func (c *Config) Validate(weightFileExists func() bool) error {
	if !c.Prefuzz && !weightFileExists() {
		return fuzzerrors.ErrMissingWeightFile
	}
	return nil
}
