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

import (
	"bytes"
	"crypto/sha256"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/require"
)

func cksumSave(seen *[][]byte) SaveFunc {
	return func(data []byte) ([32]byte, error) {
		cp := append([]byte(nil), data...)
		*seen = append(*seen, cp)
		return sha256.Sum256(data), nil
	}
}

func sampleCode() []byte {
	// PUSH2 0xCAFE; PUSH1 0x01; ADD; STOP
	return []byte{0x61, 0xca, 0xfe, 0x60, 0x01, 0x01, 0x00}
}

func newTestMutator(data []byte) *Mutator {
	item := &FuzzItem{Data: data}
	return NewMutator(item, sampleCode(), [20]byte{0xAA}, rand.New(rand.NewSource(1)))
}

func TestSingleWalkingBitRestoresBufferAfterEachFlip(t *testing.T) {
	data := []byte{0x00, 0x00, 0x00, 0x00}
	m := newTestMutator(data)
	before := append([]byte(nil), m.data()...)

	var seen [][]byte
	require.NoError(t, m.SingleWalkingBit(cksumSave(&seen)))

	require.Equal(t, before, m.data())
	require.Len(t, seen, len(data)*8)
}

func TestTwoAndFourWalkingBitRestoreBuffer(t *testing.T) {
	data := []byte{0x12, 0x34, 0x56, 0x78}
	m := newTestMutator(data)
	before := append([]byte(nil), m.data()...)

	var seen [][]byte
	require.NoError(t, m.TwoWalkingBit(cksumSave(&seen)))
	require.Equal(t, before, m.data())

	seen = nil
	require.NoError(t, m.FourWalkingBit(cksumSave(&seen)))
	require.Equal(t, before, m.data())
}

func TestSingleWalkingByteRestoresBufferAndBuildsEffector(t *testing.T) {
	data := []byte{0x01, 0x02, 0x03, 0x04}
	m := newTestMutator(data)
	before := append([]byte(nil), m.data()...)

	var seen [][]byte
	require.NoError(t, m.SingleWalkingByte(cksumSave(&seen)))

	require.Equal(t, before, m.data())
	require.NotNil(t, m.Effector())
	require.Len(t, m.Effector(), effALen(len(data)))
	// every byte flip changes the sha256 checksum, so every block is
	// marked effective.
	for _, b := range m.Effector() {
		require.Equal(t, byte(1), b)
	}
}

func TestTwoWalkingByteSkipsIneffectiveSpans(t *testing.T) {
	data := []byte{0x01, 0x02, 0x03, 0x04}
	m := newTestMutator(data)
	m.effector = make([]byte, effALen(len(data))) // all zero: nothing effective

	var seen [][]byte
	require.NoError(t, m.TwoWalkingByte(cksumSave(&seen)))
	require.Empty(t, seen)
}

func TestSingleArithRestoresBuffer(t *testing.T) {
	data := []byte{0x10, 0x20, 0x30}
	m := newTestMutator(data)
	before := append([]byte(nil), m.data()...)

	var seen [][]byte
	require.NoError(t, m.SingleArith(cksumSave(&seen)))

	require.Equal(t, before, m.data())
	require.Equal(t, len(data)*ArithMax*2, len(seen))
}

func TestSingleInterestRestoresBuffer(t *testing.T) {
	data := []byte{0x10, 0x20, 0x30}
	m := newTestMutator(data)
	before := append([]byte(nil), m.data()...)

	var seen [][]byte
	require.NoError(t, m.SingleInterest(cksumSave(&seen)))

	require.Equal(t, before, m.data())
	require.Equal(t, len(data)*len(interesting8), len(seen))
}

func TestOverwriteWithAddressDictionaryRestoresBuffer(t *testing.T) {
	data := make([]byte, 64)
	m := newTestMutator(data)
	before := append([]byte(nil), m.data()...)

	var seen [][]byte
	require.NoError(t, m.OverwriteWithAddressDictionary(cksumSave(&seen)))

	require.Equal(t, before, m.data())
	require.NotEmpty(t, seen)
	require.True(t, bytes.Contains(seen[0], []byte{0xAA}))
}

func TestBuildCodeDictionaryExtractsPushImmediates(t *testing.T) {
	dict := BuildCodeDictionary(sampleCode())
	entries := DictionaryEntries(dict)
	require.NotEmpty(t, entries)

	var foundCafe, foundOne bool
	for _, e := range entries {
		if bytes.Equal(e, []byte{0xca, 0xfe}) {
			foundCafe = true
		}
		if bytes.Equal(e, []byte{0x01}) {
			foundOne = true
		}
	}
	require.True(t, foundCafe)
	require.True(t, foundOne)
}

func TestHavocLeavesOriginalItemUntouched(t *testing.T) {
	data := []byte{0x01, 0x02, 0x03, 0x04, 0x05, 0x06, 0x07, 0x08}
	m := newTestMutator(data)
	before := append([]byte(nil), m.data()...)

	var seen [][]byte
	require.NoError(t, m.Havoc(5, cksumSave(&seen)))

	require.Equal(t, before, m.data())
	require.Len(t, seen, 5)
}

func TestSpliceLengthInvariant(t *testing.T) {
	self := []byte{0x01, 0x02, 0x03, 0x04}
	partner := []byte{0xAA, 0xBB, 0xCC, 0xDD}

	var out []byte
	save := func(data []byte) ([32]byte, error) {
		out = append([]byte(nil), data...)
		return sha256.Sum256(data), nil
	}
	require.NoError(t, Splice(self, partner, save))

	maxLen := len(self)
	if len(partner) > maxLen {
		maxLen = len(partner)
	}
	require.Equal(t, 2*maxLen, len(out))
	require.True(t, bytes.HasPrefix(out, partner))
	require.True(t, bytes.HasSuffix(out, self))
}

func TestSpliceLocusFindsFirstDifference(t *testing.T) {
	self := []byte{0x01, 0x02, 0x03}
	partner := []byte{0x01, 0x02, 0xFF}

	pos, found := SpliceLocus(self, partner)
	require.True(t, found)
	require.Equal(t, 2, pos)

	_, found = SpliceLocus(self, self)
	require.False(t, found)
}

func TestStatsRecordStageAccumulates(t *testing.T) {
	s := NewStats()
	s.recordStage("walking_bit", 10)
	s.recordStage("walking_bit", 5)
	require.Equal(t, 15, s.StageCycles["walking_bit"])
	require.Equal(t, 15, s.TotalExecs)
}
