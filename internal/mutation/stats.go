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

package mutation

// Stats is the small per-item statistics object spec §4.7's Design
// Notes calls for: cycle/stage counters kept for reporting. The
// scheduler does not read them; no scheduling decision depends on them.
type Stats struct {
	StageCycles map[string]int
	TotalExecs  int
	HavocExecs  int
	SpliceExecs int
}

// NewStats returns a zeroed Stats ready to accumulate.
func NewStats() *Stats {
	return &Stats{StageCycles: make(map[string]int)}
}

func (s *Stats) recordStage(name string, n int) {
	s.StageCycles[name] += n
	s.TotalExecs += n
}
