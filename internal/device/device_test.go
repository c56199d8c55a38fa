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

package device

import (
	"errors"
	"math"
	"strings"
	"testing"

	"github.com/espdev/itkcvbf/internal/kernel"
	"github.com/valyala/fastrand"
)

func randomGrid(n int, scale float32) []float32 {
	rng := fastrand.RNG{}
	rng.Seed(42)
	data := make([]float32, n)
	for i := range data {
		data[i] = float32(rng.Uint32n(1<<16)) / (1 << 16) * scale
	}
	return data
}

func runVector(t *testing.T, acc Accelerator, data []float32, width int, rs, ds float32) []float32 {
	t.Helper()
	s, err := acc.Open()
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer s.Close()
	src, err := s.Upload(data, width)
	if err != nil {
		t.Fatalf("Upload: %v", err)
	}
	dst, err := s.Alloc(src.Width(), src.Height())
	if err != nil {
		t.Fatalf("Alloc: %v", err)
	}
	if err := s.Bilateral(dst, src, rs, ds); err != nil {
		t.Fatalf("Bilateral: %v", err)
	}
	res := make([]float32, len(data))
	if err := s.Download(res, dst); err != nil {
		t.Fatalf("Download: %v", err)
	}
	return res
}

func TestVectorMatchesHostKernel(t *testing.T) {
	var tests = []struct {
		width, height int
		rs, ds        float32
	}{
		{37, 23, 10, 5},
		{64, 64, 8, 2},
		{5, 3, 25, 1},
		{1, 17, 10, 3},
		{16, 16, 0, 0},
	}
	for _, test := range tests {
		data := randomGrid(test.width*test.height, 100)
		want := kernel.Bilateral(data, test.width, test.rs, test.ds)
		got := runVector(t, NewVector(3), data, test.width, test.rs, test.ds)
		for i := range want {
			tol := 1e-3 * math.Max(1, math.Abs(float64(want[i])))
			if diff := math.Abs(float64(got[i] - want[i])); diff > tol {
				t.Errorf("%dx%d rs=%g ds=%g: sample %d = %g; want %g", test.width, test.height, test.rs, test.ds, i, got[i], want[i])
				break
			}
		}
	}
}

func TestVectorUniformCopied(t *testing.T) {
	data := make([]float32, 16)
	for i := range data {
		data[i] = 5
	}
	got := runVector(t, NewVector(0), data, 4, 10, 5)
	for i, v := range got {
		if v != 5 {
			t.Errorf("sample %d = %g; want 5", i, v)
		}
	}
}

func TestSessionErrors(t *testing.T) {
	acc := NewVector(1)
	s1, _ := acc.Open()
	s2, _ := acc.Open()
	defer s2.Close()

	if _, err := s1.Upload(make([]float32, 10), 3); !errors.Is(err, ErrShape) {
		t.Errorf("Upload with ragged rows: err=%v; want %v", err, ErrShape)
	}
	a, _ := s1.Upload(make([]float32, 12), 4)
	b, _ := s2.Alloc(4, 3)
	if err := s1.Bilateral(b, a, 1, 1); !errors.Is(err, ErrForeignBuffer) {
		t.Errorf("Bilateral into foreign buffer: err=%v; want %v", err, ErrForeignBuffer)
	}
	c, _ := s1.Alloc(3, 4)
	if err := s1.Bilateral(c, a, 1, 1); !errors.Is(err, ErrShape) {
		t.Errorf("Bilateral with shape mismatch: err=%v; want %v", err, ErrShape)
	}
	if err := s1.Bilateral(a, a, 1, 1); !errors.Is(err, ErrShape) {
		t.Errorf("Bilateral in place: err=%v; want %v", err, ErrShape)
	}
	if err := s1.Download(make([]float32, 5), a); !errors.Is(err, ErrShape) {
		t.Errorf("Download into short slice: err=%v; want %v", err, ErrShape)
	}

	if err := s1.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	if err := s1.Close(); err != nil {
		t.Errorf("second Close: err=%v; want nil", err)
	}
	if err := s1.Download(make([]float32, 12), a); !errors.Is(err, ErrSessionClosed) {
		t.Errorf("Download after Close: err=%v; want %v", err, ErrSessionClosed)
	}
	if _, err := s1.Alloc(2, 2); !errors.Is(err, ErrSessionClosed) {
		t.Errorf("Alloc after Close: err=%v; want %v", err, ErrSessionClosed)
	}
}

func TestRegistry(t *testing.T) {
	prev := Reset()
	defer Restore(prev)

	if Count() != 0 || Default() != nil {
		t.Fatalf("Count()=%d after Reset; want 0", Count())
	}
	a, b := NewVector(1), NewVector(2)
	Register(a)
	Register(b)
	if Count() != 2 {
		t.Errorf("Count()=%d; want 2", Count())
	}
	if Default() != a {
		t.Errorf("Default()=%v; want first registered %v", Default().Name(), a.Name())
	}

	t.Setenv(EnvNoAccel, "1")
	if Count() != 0 {
		t.Errorf("Count()=%d with %s set; want 0", Count(), EnvNoAccel)
	}
	t.Setenv(EnvNoAccel, "0")
	if Count() != 2 {
		t.Errorf("Count()=%d with %s=0; want 2", Count(), EnvNoAccel)
	}
}

func TestHostFeatures(t *testing.T) {
	f := HostFeatures()
	if f.LogicalCores <= 0 {
		t.Errorf("LogicalCores=%d; want > 0", f.LogicalCores)
	}
	if s := f.String(); !strings.Contains(s, "vector extensions") {
		t.Errorf("String()=%q; want vector extension list", s)
	}
	if (Features{}).HasVectorUnits() {
		t.Errorf("zero Features has vector units; want none")
	}
	if !(Features{ASIMD: true}).HasVectorUnits() {
		t.Errorf("ASIMD host has no vector units; want some")
	}
}

func TestRangeWeightLookup(t *testing.T) {
	p := newPlan(10, 5, 8)
	for _, delta := range []float32{0, 0.3, 7.5, -12, 33, 99.9} {
		want := math.Exp(-float64(delta) * float64(delta) / 200)
		got := float64(p.rangeWeight(delta))
		if math.Abs(got-want) > 1e-5 {
			t.Errorf("rangeWeight(%g)=%g; want %g", delta, got, want)
		}
	}
	for _, delta := range []float32{100, -250, 1e8, float32(math.Inf(1)), float32(math.NaN())} {
		if got := p.rangeWeight(delta); got != 0 {
			t.Errorf("rangeWeight(%g)=%g; want 0", delta, got)
		}
	}
}

func TestVectorMatchesHostKernelOnWideSpan(t *testing.T) {
	const width, height = 32, 32
	data := randomGrid(width*height, 20)
	for i := range data {
		data[i] += 100
	}
	data[500] = 1e8
	want := kernel.Bilateral(data, width, 10, 5)
	got := runVector(t, NewVector(2), data, width, 10, 5)
	for i := range want {
		tol := 1e-3 * math.Max(1, math.Abs(float64(want[i])))
		if diff := math.Abs(float64(got[i] - want[i])); diff > tol {
			t.Errorf("sample %d = %g; want %g", i, got[i], want[i])
		}
	}
}
