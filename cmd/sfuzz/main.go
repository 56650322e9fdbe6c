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

// Command sfuzz is the thin CLI entrypoint: it wires flags onto
// internal/config.Config, loads a single contract artifact, and drives
// the scheduler to completion, the way cmd/geth wires urfave/cli flags
// onto its node config and hands off to the node.
package main

import (
	"fmt"
	"os"

	"github.com/urfave/cli/v2"

	"github.com/sfuzz/sfuzz/internal/config"
	"github.com/sfuzz/sfuzz/internal/persist"
)

func main() {
	if err := newApp().Run(os.Args); err != nil {
		fmt.Fprintln(os.Stderr, "sfuzz:", err)
		os.Exit(1)
	}
}

func newApp() *cli.App {
	def := config.Default()
	return &cli.App{
		Name:  "sfuzz",
		Usage: "coverage-guided smart contract fuzzer",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "contracts-folder", Value: def.ContractsFolder},
			&cli.StringFlag{Name: "assets-folder", Value: def.AssetsFolder},
			&cli.StringFlag{Name: "mode", Value: string(def.Mode)},
			&cli.StringFlag{Name: "reporter", Value: string(def.Reporter)},
			&cli.IntFlag{Name: "duration", Value: def.Duration},
			&cli.IntFlag{Name: "testcases-num", Value: def.TestcasesNum},
			&cli.StringFlag{Name: "attacker", Value: def.Attacker},
			&cli.BoolFlag{Name: "prefuzz", Value: def.Prefuzz},
			&cli.StringFlag{Name: "file", Usage: "path to a single-contract artifact JSON"},
			&cli.StringFlag{Name: "name", Usage: "contract name within file"},
			&cli.StringFlag{Name: "source", Usage: "path to the contract's source file"},
			&cli.StringFlag{Name: "config", Usage: "path to a TOML config file, overrides flag defaults"},
		},
		Action: runAction,
	}
}

func runAction(c *cli.Context) error {
	cfg, err := loadConfig(c)
	if err != nil {
		return err
	}
	if err := cfg.Validate(persist.WeightFileExists(cfg.AssetsFolder)); err != nil {
		return err
	}

	if cfg.File == "" {
		return fmt.Errorf("sfuzz: --file is required (single-contract artifact)")
	}
	art, err := loadArtifact(cfg.File)
	if err != nil {
		return err
	}
	info, err := art.toContractInfo()
	if err != nil {
		return err
	}
	if cfg.Name != "" {
		info.Name = cfg.Name
	}

	return Run(cfg, info)
}

func loadConfig(c *cli.Context) (*config.Config, error) {
	var cfg *config.Config
	var err error
	if path := c.String("config"); path != "" {
		cfg, err = config.Load(path)
		if err != nil {
			return nil, err
		}
	} else {
		cfg = config.Default()
	}

	if c.IsSet("contracts-folder") {
		cfg.ContractsFolder = c.String("contracts-folder")
	}
	if c.IsSet("assets-folder") {
		cfg.AssetsFolder = c.String("assets-folder")
	}
	if c.IsSet("mode") {
		cfg.Mode = config.Mode(c.String("mode"))
	}
	if c.IsSet("reporter") {
		cfg.Reporter = config.ReporterMode(c.String("reporter"))
	}
	if c.IsSet("duration") {
		cfg.Duration = c.Int("duration")
	}
	if c.IsSet("testcases-num") {
		cfg.TestcasesNum = c.Int("testcases-num")
	}
	if c.IsSet("attacker") {
		cfg.Attacker = c.String("attacker")
	}
	if c.IsSet("prefuzz") {
		cfg.Prefuzz = c.Bool("prefuzz")
	}
	cfg.File = c.String("file")
	cfg.Name = c.String("name")
	cfg.Source = c.String("source")
	return cfg, nil
}
