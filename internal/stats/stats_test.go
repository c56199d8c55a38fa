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

package stats

import (
	"math"
	"strings"
	"testing"

	"github.com/valyala/fastrand"
)

// Approximately normal samples with given mean and standard deviation, by summing uniforms
func gaussian(n int, mean, sigma float32) []float32 {
	rng := fastrand.RNG{}
	rng.Seed(12345)
	data := make([]float32, n)
	for i := range data {
		sum := float32(0)
		for j := 0; j < 12; j++ {
			sum += float32(rng.Uint32n(1<<20)) / (1 << 20)
		}
		data[i] = mean + sigma*(sum-6)
	}
	return data
}

func TestCalcConstant(t *testing.T) {
	data := make([]float32, 64)
	for i := range data {
		data[i] = 5
	}
	s := Calc(data, 8)
	if s.Min != 5 || s.Max != 5 || s.Mean != 5 || s.StdDev != 0 || s.Location != 5 || s.Noise != 0 {
		t.Errorf("stats=%v; want all 5 with zero deviation and noise", s)
	}
}

func TestCalcGaussian(t *testing.T) {
	data := gaussian(256*256, 100, 4)
	s := Calc(data, 256)
	var tests = []struct {
		name      string
		got, want float32
		eps       float32
	}{
		{"mean", s.Mean, 100, 0.1},
		{"stddev", s.StdDev, 4, 0.1},
		{"location", s.Location, 100, 0.5},
		{"noise", s.Noise, 4, 0.2},
	}
	for _, test := range tests {
		if math.Abs(float64(test.got-test.want)) > float64(test.eps) {
			t.Errorf("%s=%g; want %g +- %g", test.name, test.got, test.want, test.eps)
		}
	}
	if s.Min >= s.Mean || s.Max <= s.Mean {
		t.Errorf("min %g max %g do not bracket mean %g", s.Min, s.Max, s.Mean)
	}
	if !strings.HasPrefix(s.String(), "Min ") || strings.Count(s.ToCSVLine(), ",") != 5 {
		t.Errorf("unexpected formatting %q, %q", s.String(), s.ToCSVLine())
	}
}

func TestNoiseOfSmoothRamp(t *testing.T) {
	data := make([]float32, 32*32)
	for i := range data {
		data[i] = float32(i % 32)
	}
	// horizontally adjacent samples always differ by 1
	want := float32(1.4826 / math.Sqrt2)
	if got := EstimateNoise(data, 32); math.Abs(float64(got-want)) > 1e-5 {
		t.Errorf("EstimateNoise(ramp)=%g; want %g", got, want)
	}
	if got := EstimateNoise(data, 1); got != 0 {
		t.Errorf("EstimateNoise(width 1)=%g; want 0", got)
	}
}

func TestHistogram(t *testing.T) {
	bins := make([]int32, 5)
	Histogram([]float32{0, 1, 1, 2, 3, 4, 4, 4, -1, 9}, 0, 4, bins)
	want := []int32{1, 2, 1, 1, 3}
	for i := range want {
		if bins[i] != want[i] {
			t.Errorf("bins=%v; want %v", bins, want)
			break
		}
	}
	if x, _ := GetPeak(bins, 0, 4); x != 4.5 {
		t.Errorf("peak=%g; want 4.5", x)
	}
}
