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
	"encoding/json"
	"fmt"
	"os"

	"github.com/sfuzz/sfuzz/internal/abicodec/abi"
	"github.com/sfuzz/sfuzz/internal/contract"
)

// artifact is sfuzz's own single-contract compile-output shape: the
// bytecode, compressed source maps and source text a build step
// produces, plus a flattened function list already reduced to
// canonical type strings. Turning a solc --combined-json document (or
// any other compiler's raw ABI JSON) into this shape is the external
// collaborator spec.md §1 names; artifact is the target shape that
// collaborator is expected to produce, not a reimplementation of it.
type artifact struct {
	Name              string             `json:"name"`
	CreationBytecode  string             `json:"creation_bytecode"`
	RuntimeBytecode   string             `json:"runtime_bytecode"`
	CreationSourceMap string             `json:"creation_source_map"`
	RuntimeSourceMap  string             `json:"runtime_source_map"`
	Source            string             `json:"source"`
	Constructor       []string           `json:"constructor"`
	Functions         []artifactFunction `json:"functions"`
	ConstRanges       []contract.Range   `json:"const_ranges"`
}

type artifactFunction struct {
	Name       string   `json:"name"`
	Inputs     []string `json:"inputs"`
	Mutability string   `json:"mutability"`
}

// loadArtifact reads and decodes an artifact JSON file.
func loadArtifact(path string) (*artifact, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("cmd/sfuzz: reading %s: %w", path, err)
	}
	var a artifact
	if err := json.Unmarshal(data, &a); err != nil {
		return nil, fmt.Errorf("cmd/sfuzz: decoding %s: %w", path, err)
	}
	return &a, nil
}

// toContractInfo resolves a's canonical type strings into abi.Type
// values and assembles a contract.Info ready for classification.
func (a *artifact) toContractInfo() (*contract.Info, error) {
	creation, err := hex.DecodeString(a.CreationBytecode)
	if err != nil {
		return nil, fmt.Errorf("cmd/sfuzz: creation bytecode: %w", err)
	}
	runtime, err := hex.DecodeString(a.RuntimeBytecode)
	if err != nil {
		return nil, fmt.Errorf("cmd/sfuzz: runtime bytecode: %w", err)
	}

	ctor, err := toArguments(a.Constructor)
	if err != nil {
		return nil, fmt.Errorf("cmd/sfuzz: constructor: %w", err)
	}

	methods := make([]abi.Method, 0, len(a.Functions))
	for _, fn := range a.Functions {
		args, err := toArguments(fn.Inputs)
		if err != nil {
			return nil, fmt.Errorf("cmd/sfuzz: function %s: %w", fn.Name, err)
		}
		methods = append(methods, abi.Method{
			Name:    fn.Name,
			Inputs:  args,
			Mutable: abi.StateMutability(fn.Mutability),
		})
	}

	info := &contract.Info{
		Name:              a.Name,
		IsMain:            true,
		CreationBytecode:  creation,
		RuntimeBytecode:   runtime,
		CreationSourceMap: a.CreationSourceMap,
		RuntimeSourceMap:  a.RuntimeSourceMap,
		Source:            a.Source,
		ABI:               abi.Descriptor{Constructor: ctor, Functions: methods},
		ConstRanges:       a.ConstRanges,
	}
	return info, nil
}

func toArguments(types []string) (abi.Arguments, error) {
	args := make(abi.Arguments, 0, len(types))
	for i, raw := range types {
		t, err := abi.NewType(raw)
		if err != nil {
			return nil, fmt.Errorf("argument %d (%s): %w", i, raw, err)
		}
		args = append(args, abi.Argument{Name: fmt.Sprintf("arg%d", i), Type: t})
	}
	return args, nil
}
