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

package kernel

import (
	"math"
	"testing"
)

func TestReflect101(t *testing.T) {
	tcs := []struct{ size, x, want int }{
		{8, -1, 1}, {8, -2, 2}, {8, 0, 0}, {8, 7, 7}, {8, 8, 6}, {8, 9, 5},
		{3, -5, 1}, {3, 6, 2}, {1, -3, 0}, {1, 4, 0},
	}
	for _, tc := range tcs {
		if got := Reflect101(tc.size, tc.x); got != tc.want {
			t.Errorf("Reflect101(%d,%d)=%d; want %d", tc.size, tc.x, got, tc.want)
		}
	}
}

func TestRadius(t *testing.T) {
	tcs := []struct {
		sigma float32
		want  int
	}{{5, 8}, {2, 3}, {1, 2}, {0.5, 1}, {0, 2}, {-4, 2}, {0.2, 1}}
	for _, tc := range tcs {
		if got := Radius(tc.sigma); got != tc.want {
			t.Errorf("Radius(%g)=%d; want %d", tc.sigma, got, tc.want)
		}
	}
}

func TestKernelIsDisc(t *testing.T) {
	k := New(10, 2)
	if k.Radius != 3 {
		t.Fatalf("radius=%d; want 3", k.Radius)
	}
	for _, o := range k.Offsets {
		if o.DX*o.DX+o.DY*o.DY > 9 {
			t.Errorf("offset (%d,%d) outside disc", o.DX, o.DY)
		}
		if o.DX == 0 && o.DY == 0 && o.Weight != 1 {
			t.Errorf("center weight=%f; want 1", o.Weight)
		}
	}
	// 3x3 square plus the four arms of length 3, plus (±1,±2),(±2,±1),(±2,±2)
	if len(k.Offsets) != 29 {
		t.Errorf("len(offsets)=%d; want 29", len(k.Offsets))
	}
}

func TestConstantIsInvariant(t *testing.T) {
	width, height := 4, 4
	src := make([]float32, width*height)
	for i := range src {
		src[i] = 5
	}
	k := New(10, 5)
	dst := make([]float32, len(src))
	k.Apply(dst, src, width)
	for i, v := range dst {
		if v != 5 {
			t.Errorf("dst[%d]=%f; want 5", i, v)
		}
	}
	// the band-wise path must agree as well
	k.ApplyRows(dst, src, width, 0, height)
	for i, v := range dst {
		if math.Abs(float64(v-5)) > 1e-6 {
			t.Errorf("ApplyRows dst[%d]=%f; want 5", i, v)
		}
	}
}

func TestStepEdgeIsPreserved(t *testing.T) {
	width, height := 16, 8
	src := make([]float32, width*height)
	for y := 0; y < height; y++ {
		for x := width / 2; x < width; x++ {
			src[y*width+x] = 100
		}
	}
	dst := Bilateral(src, width, 1, 3)
	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			want := src[y*width+x]
			if got := dst[y*width+x]; math.Abs(float64(got-want)) > 1e-3 {
				t.Errorf("dst[%d,%d]=%f; want %f", x, y, got, want)
			}
		}
	}
}

func TestLargeRangeSigmaBlursEdge(t *testing.T) {
	width := 16
	src := make([]float32, width*4)
	for y := 0; y < 4; y++ {
		for x := width / 2; x < width; x++ {
			src[y*width+x] = 100
		}
	}
	dst := Bilateral(src, width, 1000, 3)
	left, right := dst[width/2-1], dst[width/2]
	if !(left > 1 && right < 99) {
		t.Errorf("edge samples %f,%f; want blurred toward each other", left, right)
	}
}

func TestZeroSigmaBehavesLikeOne(t *testing.T) {
	width := 9
	src := make([]float32, width*width)
	for i := range src {
		src[i] = float32((i * 37) % 11)
	}
	a := Bilateral(src, width, 0, 0)
	b := Bilateral(src, width, 1, 1)
	for i := range a {
		if a[i] != b[i] {
			t.Errorf("a[%d]=%f b[%d]=%f; want equal", i, a[i], i, b[i])
		}
	}
}

func TestMinMax(t *testing.T) {
	min, max := MinMax([]float32{3, -2, float32(math.NaN()), 7})
	if min != -2 || max != 7 {
		t.Errorf("min,max=%f,%f; want -2,7", min, max)
	}
	if !IsUniform([]float32{1, 1, 1}) || IsUniform([]float32{1, 1.001}) {
		t.Errorf("IsUniform misclassified")
	}
}
