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

// Package branch implements the branch classifier (C3): it walks a
// decoded instruction stream in lockstep with its decompressed source
// map and the contract's source text, producing the valid-JUMPI and
// sensitive-opcode pc sets the executor and oracle consume.
package branch

import (
	"strings"

	mapset "github.com/deckarep/golang-set/v2"

	"github.com/sfuzz/sfuzz/internal/bytecode"
	"github.com/sfuzz/sfuzz/internal/contract"
)

var conditionalKeywords = []string{"if", "while", "for", "require", "assert"}

var uncheckedCallPatterns = []string{".send(", ".call(", ".delegatecall(", ".callcode(", ".transfer("}

func startsWithConditionalKeyword(snippet string) bool {
	trimmed := strings.TrimLeft(snippet, " \t\n\r")
	for _, kw := range conditionalKeywords {
		if strings.HasPrefix(trimmed, kw) {
			return true
		}
	}
	return false
}

// Sets holds the six pc sets the spec describes for one program half
// (creation or runtime), plus the pc -> source snippet diagnostic map.
type Sets struct {
	JUMPI                    mapset.Set[uint64]
	Timestamp                mapset.Set[uint64]
	Number                   mapset.Set[uint64]
	Delegatecall             mapset.Set[uint64]
	NonOnlyOwnerDelegatecall mapset.Set[uint64]
	UncheckedCall            mapset.Set[uint64]
	Snippets                 map[uint64]string
}

func newSets() Sets {
	return Sets{
		JUMPI:                    mapset.NewThreadUnsafeSet[uint64](),
		Timestamp:                mapset.NewThreadUnsafeSet[uint64](),
		Number:                   mapset.NewThreadUnsafeSet[uint64](),
		Delegatecall:             mapset.NewThreadUnsafeSet[uint64](),
		NonOnlyOwnerDelegatecall: mapset.NewThreadUnsafeSet[uint64](),
		UncheckedCall:            mapset.NewThreadUnsafeSet[uint64](),
		Snippets:                 make(map[uint64]string),
	}
}

// candidateJumpi is a JUMPI not yet known to be valid: it becomes valid
// only if a later, enclosing conditional snippet promotes it (spec
// §4.3's short-circuit `&&`/`||` chain rule).
type candidateJumpi struct {
	pc  uint64
	rng contract.Range
}

func snippetOf(source string, r contract.Range) string {
	if r.Offset < 0 || r.Length < 0 || r.Offset+r.Length > len(source) {
		return ""
	}
	return source[r.Offset : r.Offset+r.Length]
}

func insideAny(r contract.Range, ranges []contract.Range) bool {
	for _, c := range ranges {
		if c.Contains(r) || c.Equal(r) {
			return true
		}
	}
	return false
}

// Classify implements spec §4.3 for one program half.
func Classify(insts []bytecode.Instruction, segs []contract.Range, source string, constRanges []contract.Range) Sets {
	out := newSets()

	n := len(insts)
	if len(segs) < n {
		n = len(segs)
	}

	var candidates []candidateJumpi
	inOnlyOwner := false // spec Design Note (a): uninitialized read treated as false
	lastValidJumpiSnippet := ""

	for i := 0; i < n; i++ {
		inst := insts[i]
		rng := segs[i]
		snippet := snippetOf(source, rng)

		switch inst.Op {
		case bytecode.JUMPI:
			if insideAny(rng, constRanges) {
				break
			}
			if startsWithConditionalKeyword(snippet) {
				out.JUMPI.Add(inst.PC)
				out.Snippets[inst.PC] = snippet
				lastValidJumpiSnippet = snippet

				var kept []candidateJumpi
				for _, c := range candidates {
					if rng.Contains(c.rng) {
						out.JUMPI.Add(c.pc)
						out.Snippets[c.pc] = snippetOf(source, c.rng)
					} else {
						kept = append(kept, c)
					}
				}
				candidates = kept
			} else {
				candidates = append(candidates, candidateJumpi{pc: inst.PC, rng: rng})
			}

		case bytecode.TIMESTAMP:
			if strings.Contains(snippet, "timestamp") || strings.Contains(snippet, "now") {
				out.Timestamp.Add(inst.PC)
				out.Snippets[inst.PC] = snippet
			}

		case bytecode.NUMBER:
			out.Number.Add(inst.PC)
			out.Snippets[inst.PC] = snippet

		case bytecode.CALLDATALOAD, bytecode.CALLDATACOPY:
			trimmed := strings.TrimLeft(snippet, " \t\n\r")
			if strings.HasPrefix(trimmed, "function") {
				inOnlyOwner = strings.Contains(strings.ToLower(snippet), "onlyowner")
			}

		case bytecode.DELEGATECALL:
			if strings.Contains(snippet, "delegatecall") {
				out.Delegatecall.Add(inst.PC)
				out.Snippets[inst.PC] = snippet
				if !inOnlyOwner {
					out.NonOnlyOwnerDelegatecall.Add(inst.PC)
				}
			}
			classifyUncheckedCall(&out, inst.PC, snippet, lastValidJumpiSnippet)

		case bytecode.CALL:
			classifyUncheckedCall(&out, inst.PC, snippet, lastValidJumpiSnippet)
		}
	}
	return out
}

func classifyUncheckedCall(out *Sets, pc uint64, snippet, guardSnippet string) {
	for _, pat := range uncheckedCallPatterns {
		if !strings.Contains(snippet, pat) {
			continue
		}
		if pat != ".transfer(" && strings.Contains(guardSnippet, pat) {
			// Guarded by an enclosing require/if/while/for/assert that
			// itself names this same call pattern: not unchecked.
			return
		}
		out.UncheckedCall.Add(pc)
		out.Snippets[pc] = snippet
		return
	}
}

// BranchSets pairs creation and runtime classifications for a contract,
// per spec §3's "Branch Sets" entity.
type BranchSets struct {
	Creation Sets
	Runtime  Sets
}
