// Copyright (C) 2020 Markus L. Noga
//
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
//
// This program is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
// GNU General Public License for more details.
//
// You should have received a copy of the GNU General Public License
// along with this program.  If not, see <https://www.gnu.org/licenses/>.

// Package convert casts sample buffers between their native numeric representation
// and the float32 representation used for filtering. Casts are value preserving:
// no rescaling is applied, and only the destination's native range is enforced.
package convert

import (
	"fmt"
	"math"
)

// Numeric sample types supported by the casts
type Number interface {
	int8 | uint8 | int16 | uint16 | int32 | uint32 | int64 | uint64 | int | uint | float32 | float64
}

// Casts samples to float32
func ToFloat32[T Number](src []T) []float32 {
	dst := make([]float32, len(src))
	for i, v := range src {
		dst[i] = float32(v)
	}
	return dst
}

// Casts float32 samples back to T. Integers truncate toward zero and saturate
// at the range of T. NaNs become zero.
func FromFloat32[T Number](src []float32) []T {
	dst := make([]T, len(src))
	IntoFromFloat32(dst, src)
	return dst
}

// Like FromFloat32, but writes into dst, which must be at least as long as src
func IntoFromFloat32[T Number](dst []T, src []float32) {
	lo, hi, max, integral := limits[T]()
	if !integral {
		for i, v := range src {
			dst[i] = T(v)
		}
		return
	}
	for i, v := range src {
		f := float64(v)
		switch {
		case math.IsNaN(f):
			dst[i] = 0
		case f <= lo:
			dst[i] = T(lo)
		case f >= hi:
			dst[i] = max
		default:
			dst[i] = T(math.Trunc(f))
		}
	}
}

// Returns the value range of T as float64, the largest value of T, and whether T is integral.
// hi is exclusive for the 64 bit types, where the maximum is not representable as float64.
func limits[T Number]() (lo, hi float64, max T, integral bool) {
	var z T
	switch any(z).(type) {
	case int8:
		return math.MinInt8, math.MaxInt8, any(int8(math.MaxInt8)).(T), true
	case uint8:
		return 0, math.MaxUint8, any(uint8(math.MaxUint8)).(T), true
	case int16:
		return math.MinInt16, math.MaxInt16, any(int16(math.MaxInt16)).(T), true
	case uint16:
		return 0, math.MaxUint16, any(uint16(math.MaxUint16)).(T), true
	case int32:
		return math.MinInt32, math.MaxInt32, any(int32(math.MaxInt32)).(T), true
	case uint32:
		return 0, math.MaxUint32, any(uint32(math.MaxUint32)).(T), true
	case int64:
		return math.MinInt64, math.MaxInt64, any(int64(math.MaxInt64)).(T), true
	case uint64:
		return 0, math.MaxUint64, any(uint64(math.MaxUint64)).(T), true
	case int:
		return math.MinInt, math.MaxInt, any(int(math.MaxInt)).(T), true
	case uint:
		return 0, math.MaxUint, any(uint(math.MaxUint)).(T), true
	}
	return -math.MaxFloat64, math.MaxFloat64, z, false
}

// The native representation of samples in a file or buffer
type SampleKind int

const (
	Uint8 SampleKind = iota
	Int8
	Uint16
	Int16
	Uint32
	Int32
	Int64
	Float32
	Float64
)

var kindNames = []string{"uint8", "int8", "uint16", "int16", "uint32", "int32", "int64", "float32", "float64"}

func (k SampleKind) String() string {
	if k < 0 || int(k) >= len(kindNames) {
		return fmt.Sprintf("SampleKind(%d)", int(k))
	}
	return kindNames[k]
}

// Returns the FITS BITPIX value and BZERO offset for storing samples of this kind.
// Signed bytes and unsigned 16/32 bit words are stored with an offset, as per the FITS standard.
func (k SampleKind) Bitpix() (bitpix int32, bzero float64) {
	switch k {
	case Uint8:
		return 8, 0
	case Int8:
		return 8, -128
	case Uint16:
		return 16, 32768
	case Int16:
		return 16, 0
	case Uint32:
		return 32, 2147483648
	case Int32:
		return 32, 0
	case Int64:
		return 64, 0
	case Float64:
		return -64, 0
	default:
		return -32, 0
	}
}

// Returns the sample kind for a FITS BITPIX value and BZERO offset
func KindFromBitpix(bitpix int32, bzero float64) (SampleKind, error) {
	switch bitpix {
	case 8:
		if bzero == -128 {
			return Int8, nil
		}
		return Uint8, nil
	case 16:
		if bzero == 32768 {
			return Uint16, nil
		}
		return Int16, nil
	case 32:
		if bzero == 2147483648 {
			return Uint32, nil
		}
		return Int32, nil
	case 64:
		return Int64, nil
	case -32:
		return Float32, nil
	case -64:
		return Float64, nil
	}
	return Float32, fmt.Errorf("unknown BITPIX value %d", bitpix)
}

// Casts float32 samples into the range of the given kind, in place, without changing the
// storage type. Used to emulate the round trip of a filter result through its native kind.
func Quantize(data []float32, kind SampleKind) {
	switch kind {
	case Uint8:
		quantize[uint8](data)
	case Int8:
		quantize[int8](data)
	case Uint16:
		quantize[uint16](data)
	case Int16:
		quantize[int16](data)
	case Uint32:
		quantize[uint32](data)
	case Int32:
		quantize[int32](data)
	case Int64:
		quantize[int64](data)
	}
}

func quantize[T Number](data []float32) {
	tmp := FromFloat32[T](data)
	for i, v := range tmp {
		data[i] = float32(v)
	}
}
