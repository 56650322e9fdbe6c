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

package abicodec

import (
	"math/rand"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/sfuzz/sfuzz/internal/abicodec/abi"
)

func testDescriptor(t *testing.T) abi.Descriptor {
	t.Helper()
	uintTy, err := abi.NewType("uint256")
	require.NoError(t, err)
	boolTy, err := abi.NewType("bool")
	require.NoError(t, err)
	addrTy, err := abi.NewType("address")
	require.NoError(t, err)
	bytesTy, err := abi.NewType("bytes")
	require.NoError(t, err)

	return abi.Descriptor{
		Constructor: abi.Arguments{{Name: "initial", Type: uintTy}},
		Functions: []abi.Method{
			{
				Name:    "transfer",
				Mutable: abi.Nonpayable,
				Inputs: abi.Arguments{
					{Name: "to", Type: addrTy},
					{Name: "amount", Type: uintTy},
				},
			},
			{
				Name:    "setFlag",
				Mutable: abi.Nonpayable,
				Inputs:  abi.Arguments{{Name: "ok", Type: boolTy}},
			},
			{
				Name:    "setData",
				Mutable: abi.Nonpayable,
				Inputs:  abi.Arguments{{Name: "blob", Type: bytesTy}},
			},
		},
	}
}

func TestPostprocessIsIdempotent(t *testing.T) {
	c := New(testDescriptor(t))
	raw := make([]byte, 7) // short, forces zero-padding
	once := c.PostprocessTestData(raw)
	twice := c.PostprocessTestData(once)
	require.Equal(t, once, twice)
}

func TestPostprocessFreezesData0Len(t *testing.T) {
	c := New(testDescriptor(t))
	first := c.PostprocessTestData(make([]byte, 3))
	require.Equal(t, len(first), c.Data0Len())

	// a later, differently-sized input does not change the frozen length
	c.PostprocessTestData(make([]byte, 500))
	require.Equal(t, len(first), c.Data0Len())
}

func TestEncodeConstructorPacksOneWordPerArgument(t *testing.T) {
	c := New(testDescriptor(t))
	rng := rand.New(rand.NewSource(1))
	tc := c.RandomTestcase(rng)

	packed, err := c.EncodeConstructor(tc)
	require.NoError(t, err)
	require.Len(t, packed, abi.WordSize)
}

func TestEncodeFunctionsProducesSelectorPrefixedCalldata(t *testing.T) {
	c := New(testDescriptor(t))
	rng := rand.New(rand.NewSource(2))
	tc := c.RandomTestcase(rng)

	calls, err := c.EncodeFunctions(tc)
	require.NoError(t, err)
	require.Len(t, calls, 3)

	transferSel := c.descriptor.Functions[0].Selector()
	require.Equal(t, transferSel[:], calls[0][:4])
	// address (1 word) + uint256 (1 word) = 64 bytes of static head
	require.Len(t, calls[0], 4+64)

	setFlagSel := c.descriptor.Functions[1].Selector()
	require.Equal(t, setFlagSel[:], calls[1][:4])
	require.Len(t, calls[1], 4+32)
}

func TestEncodeFunctionsDynamicArgumentIsStable(t *testing.T) {
	c := New(testDescriptor(t))
	rng := rand.New(rand.NewSource(3))
	tc := c.RandomTestcase(rng)

	calls1, err := c.EncodeFunctions(tc)
	require.NoError(t, err)
	calls2, err := c.EncodeFunctions(tc)
	require.NoError(t, err)
	// same postprocessed testcase encodes identically every time
	require.Equal(t, calls1[2], calls2[2])
}

func TestRandomTestcaseIsDeterministicForAFixedSeed(t *testing.T) {
	c1 := New(testDescriptor(t))
	c2 := New(testDescriptor(t))

	tc1 := c1.RandomTestcase(rand.New(rand.NewSource(42)))
	tc2 := c2.RandomTestcase(rand.New(rand.NewSource(42)))
	require.Equal(t, tc1, tc2)
}

func TestAccountsAndBlockPrefixRoundTrip(t *testing.T) {
	c := New(testDescriptor(t))
	rng := rand.New(rand.NewSource(7))
	tc := c.RandomTestcase(rng)

	bal := AccountsPrefix(tc)
	require.NotNil(t, bal)

	bc := BlockPrefix(tc)
	require.NotZero(t, bc.Timestamp)
}

func TestEncodeSlotRejectsUnsupportedSliceType(t *testing.T) {
	sliceTy, err := abi.NewType("uint256[]")
	require.NoError(t, err)
	word := make([]byte, abi.WordSize)
	_, err = encodeSlot(word, sliceTy)
	require.Error(t, err)
}
