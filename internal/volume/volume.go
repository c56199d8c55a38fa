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

// Package volume holds N-dimensional grids of float32 samples, stored row-major
// with the most quickly varying axis first (like FITS NAXISn).
package volume

import (
	"errors"
	"fmt"
	"strings"
)

var ErrInvalidExtent = errors.New("invalid volume extent")

// A volume of float32 samples. Extent[0] is the width, Extent[1] the height, and so on.
// Invariant: all extents are positive, and len(Data) is the product of the extents.
type Volume struct {
	Extent []int
	Data   []float32
}

// Creates a zero-initialized volume of the given extent. The extent is deep copied
func New(extent ...int) (*Volume, error) {
	n, err := NumSamples(extent)
	if err != nil {
		return nil, err
	}
	return &Volume{Extent: append([]int(nil), extent...), Data: make([]float32, n)}, nil
}

// Wraps existing data into a volume without copying. The extent is deep copied
func FromData(data []float32, extent ...int) (*Volume, error) {
	n, err := NumSamples(extent)
	if err != nil {
		return nil, err
	}
	if len(data) != n {
		return nil, fmt.Errorf("%w: %d samples for extent %v", ErrInvalidExtent, len(data), extent)
	}
	return &Volume{Extent: append([]int(nil), extent...), Data: data}, nil
}

// Returns the number of samples for the given extent, or an error if any axis is not positive
func NumSamples(extent []int) (int, error) {
	if len(extent) == 0 {
		return 0, fmt.Errorf("%w: no axes", ErrInvalidExtent)
	}
	n := 1
	for i, e := range extent {
		if e <= 0 {
			return 0, fmt.Errorf("%w: axis %d has size %d", ErrInvalidExtent, i, e)
		}
		n *= e
	}
	return n, nil
}

// Number of axes
func (v *Volume) Dim() int { return len(v.Extent) }

// Size of the highest axis, i.e. the number of slices
func (v *Volume) Depth() int { return v.Extent[len(v.Extent)-1] }

// Number of samples in one slice along the highest axis
func (v *Volume) SliceLen() int { return len(v.Data) / v.Depth() }

// Returns the (N-1)-dimensional slice at index i of the highest axis.
// The slice shares its samples with v; it must not outlive the current operation.
func (v *Volume) Slice(i int) *Volume {
	l := v.SliceLen()
	return &Volume{
		Extent: v.Extent[:len(v.Extent)-1:len(v.Extent)-1],
		Data:   v.Data[i*l : (i+1)*l : (i+1)*l],
	}
}

// Copies the samples of s into position i of the highest axis of v
func (v *Volume) SetSlice(i int, s *Volume) error {
	l := v.SliceLen()
	if len(s.Data) != l || !EqualExtent(s.Extent, v.Extent[:len(v.Extent)-1]) {
		return fmt.Errorf("%w: slice %v does not fit volume %v", ErrInvalidExtent, s.Extent, v.Extent)
	}
	copy(v.Data[i*l:(i+1)*l], s.Data)
	return nil
}

// Returns a deep copy
func (v *Volume) Clone() *Volume {
	return &Volume{
		Extent: append([]int(nil), v.Extent...),
		Data:   append([]float32(nil), v.Data...),
	}
}

// Returns a zero-initialized volume with the same extent
func (v *Volume) NewLike() *Volume {
	return &Volume{
		Extent: append([]int(nil), v.Extent...),
		Data:   make([]float32, len(v.Data)),
	}
}

// Formats the extent as 512x512x40
func (v *Volume) DimensionsToString() string {
	b := strings.Builder{}
	for i, e := range v.Extent {
		if i > 0 {
			fmt.Fprintf(&b, "x%d", e)
		} else {
			fmt.Fprintf(&b, "%d", e)
		}
	}
	return b.String()
}

func EqualExtent(a, b []int) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}
