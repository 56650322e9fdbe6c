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
	"fmt"

	"github.com/holiman/uint256"

	"github.com/sfuzz/sfuzz/internal/abicodec/abi"
	"github.com/sfuzz/sfuzz/internal/fuzzerrors"
)

// encodeSlot turns one raw 32-byte testcase slot into the ABI-encoded
// bytes Arguments.Pack expects for that argument's position: a single
// static word for static types, or a full length-prefixed dynamic
// blob for string/bytes (spec §4.9 "postprocessTestData normalizes
// lengths"). Arrays and slices are out of scope: the corpus's random
// testcase generator never needs to size a variable-length Solidity
// array because sfuzz's mutation operates on a fixed-width raw buffer.
func encodeSlot(word []byte, t abi.Type) ([]byte, error) {
	switch t.T {
	case abi.BoolTy:
		return abi.EncodeBool(word[abi.WordSize-1]&1 == 1), nil
	case abi.AddressTy:
		var addr [20]byte
		copy(addr[:], word[abi.WordSize-20:])
		return abi.EncodeAddress(addr), nil
	case abi.FixedBytesTy:
		return abi.EncodeFixedBytes(word[:t.Size]), nil
	case abi.UintTy:
		v, err := abi.DecodeUint(word, t.Size)
		if err != nil {
			return nil, err
		}
		return abi.EncodeUint(v), nil
	case abi.IntTy:
		v, err := abi.DecodeUint(word, t.Size)
		if err != nil {
			return nil, err
		}
		signExtend(v, t.Size)
		return abi.EncodeUint(v), nil
	case abi.BytesTy, abi.StringTy:
		length := int(word[0]) % (abi.WordSize + 1)
		content := make([]byte, length)
		if length > 0 {
			filler := word[1:]
			for i := range content {
				content[i] = filler[i%len(filler)]
			}
		}
		return abi.EncodeDynamicBytes(content), nil
	default:
		return nil, fmt.Errorf("abicodec: %s: %w", t.String(), fuzzerrors.ErrUnsupportedType)
	}
}

// signExtend sets every bit above bits-1 to the sign bit, matching
// Solidity's two's-complement intN encoding.
func signExtend(v *uint256.Int, bits int) {
	if bits >= 256 {
		return
	}
	signBit := uint256.NewInt(1)
	signBit.Lsh(signBit, uint(bits-1))
	if v.Lt(signBit) {
		return
	}
	mask := uint256.NewInt(1)
	mask.Lsh(mask, uint(bits))
	mask.Sub(mask, uint256.NewInt(1))
	full := new(uint256.Int).Not(mask)
	v.Or(v, full)
}

// EncodeConstructor packs the postprocessed testcase's constructor
// region into calldata (no selector: constructors have none).
func (c *Codec) EncodeConstructor(postprocessed []byte) ([]byte, error) {
	start, end := c.constructorRegion()
	return c.encodeRegion(postprocessed[start:end], c.descriptor.Constructor, c.constructorSlots)
}

// EncodeFunctions packs each function's region into selector-prefixed
// calldata, in ABI declaration order.
func (c *Codec) EncodeFunctions(postprocessed []byte) ([][]byte, error) {
	out := make([][]byte, len(c.descriptor.Functions))
	for i, fn := range c.descriptor.Functions {
		start, end := c.functionRegion(i)
		packed, err := c.encodeRegion(postprocessed[start:end], fn.Inputs, c.functionSlots[i])
		if err != nil {
			return nil, err
		}
		sel := fn.Selector()
		out[i] = append(append([]byte{}, sel[:]...), packed...)
	}
	return out, nil
}

func (c *Codec) encodeRegion(region []byte, args abi.Arguments, slots []slot) ([]byte, error) {
	values := make([][]byte, len(slots))
	for i, s := range slots {
		word := region[s.offset : s.offset+slotSize]
		enc, err := encodeSlot(word, s.typ)
		if err != nil {
			return nil, err
		}
		values[i] = enc
	}
	return args.Pack(values...)
}
