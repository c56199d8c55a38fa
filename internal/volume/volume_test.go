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

package volume

import (
	"errors"
	"testing"
)

func TestNewRejectsBadExtents(t *testing.T) {
	tcs := [][]int{nil, {0}, {3, -1}, {4, 4, 0}}
	for _, tc := range tcs {
		if _, err := New(tc...); !errors.Is(err, ErrInvalidExtent) {
			t.Errorf("New(%v) err=%v; want ErrInvalidExtent", tc, err)
		}
	}
}

func TestFromDataChecksLength(t *testing.T) {
	if _, err := FromData(make([]float32, 11), 3, 4); !errors.Is(err, ErrInvalidExtent) {
		t.Errorf("err=%v; want ErrInvalidExtent", err)
	}
	v, err := FromData(make([]float32, 12), 3, 4)
	if err != nil {
		t.Fatalf("err=%v", err)
	}
	if v.Dim() != 2 || v.Depth() != 4 || v.SliceLen() != 3 {
		t.Errorf("dim=%d depth=%d sliceLen=%d; want 2 4 3", v.Dim(), v.Depth(), v.SliceLen())
	}
}

func TestSliceSharesData(t *testing.T) {
	v, _ := New(2, 3, 4)
	for i := range v.Data {
		v.Data[i] = float32(i)
	}
	s := v.Slice(2)
	if !EqualExtent(s.Extent, []int{2, 3}) {
		t.Fatalf("extent=%v; want [2 3]", s.Extent)
	}
	if s.Data[0] != 12 || s.Data[5] != 17 {
		t.Errorf("slice data=%v; want 12..17", s.Data)
	}
	s.Data[0] = -1
	if v.Data[12] != -1 {
		t.Errorf("v.Data[12]=%f; want -1", v.Data[12])
	}

	// appending to a slice view must not clobber the next slice
	s.Extent = append(s.Extent, 1)
	if v.Extent[2] != 4 {
		t.Errorf("v.Extent=%v; want [2 3 4]", v.Extent)
	}
}

func TestSetSlice(t *testing.T) {
	v, _ := New(2, 2, 3)
	s, _ := FromData([]float32{1, 2, 3, 4}, 2, 2)
	if err := v.SetSlice(1, s); err != nil {
		t.Fatalf("err=%v", err)
	}
	want := []float32{0, 0, 0, 0, 1, 2, 3, 4, 0, 0, 0, 0}
	for i := range want {
		if v.Data[i] != want[i] {
			t.Errorf("v.Data[%d]=%f; want %f", i, v.Data[i], want[i])
		}
	}
	bad, _ := New(4, 1)
	if err := v.SetSlice(0, bad); !errors.Is(err, ErrInvalidExtent) {
		t.Errorf("err=%v; want ErrInvalidExtent", err)
	}
}

func TestDimensionsToString(t *testing.T) {
	v, _ := New(512, 256, 40)
	if s := v.DimensionsToString(); s != "512x256x40" {
		t.Errorf("got %s; want 512x256x40", s)
	}
}
