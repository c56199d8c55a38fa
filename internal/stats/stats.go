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

// Package stats calculates summary statistics of sample volumes.
package stats

import (
	"fmt"
	"math"

	"github.com/espdev/itkcvbf/internal/qsort"
	"github.com/valyala/fastrand"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"
)

// Number of neighbour differences sampled for the noise estimate
const noiseSamples = 1 << 16

// Bins of the histogram used to locate the background peak
const locationBins = 256

// Summary statistics of a volume
type Stats struct {
	Min      float32
	Max      float32
	Mean     float32
	StdDev   float32
	Location float32 // mode of the sample distribution
	Noise    float32 // standard deviation of the pixel noise
}

func (s *Stats) String() string {
	return fmt.Sprintf("Min %.6g Max %.6g Mean %.6g StdDev %.6g Location %.6g Noise %.4g",
		s.Min, s.Max, s.Mean, s.StdDev, s.Location, s.Noise)
}

func (s *Stats) ToCSVHeader() string {
	return "Min,Max,Mean,StdDev,Location,Noise"
}

func (s *Stats) ToCSVLine() string {
	return fmt.Sprintf("%.6g,%.6g,%.6g,%.6g,%.6g,%.4g", s.Min, s.Max, s.Mean, s.StdDev, s.Location, s.Noise)
}

// Calculates statistics of the row-major samples with the given row width
func Calc(data []float32, width int) *Stats {
	if len(data) == 0 {
		return &Stats{}
	}
	xs := make([]float64, len(data))
	for i, d := range data {
		xs[i] = float64(d)
	}
	mean, stdDev := stat.MeanStdDev(xs, nil)
	if len(xs) < 2 {
		stdDev = 0
	}
	s := &Stats{
		Min:    float32(floats.Min(xs)),
		Max:    float32(floats.Max(xs)),
		Mean:   float32(mean),
		StdDev: float32(stdDev),
		Noise:  EstimateNoise(data, width),
	}
	s.Location = Location(data, s.Min, s.Max)
	return s
}

// Estimates the standard deviation of additive gaussian noise from the median absolute
// difference of horizontally adjacent samples
func EstimateNoise(data []float32, width int) float32 {
	if width < 2 || len(data) < width {
		return 0
	}
	height := len(data) / width
	n := noiseSamples
	if pairs := height * (width - 1); pairs < n {
		n = pairs
	}

	rng := fastrand.RNG{}
	rng.Seed(uint32(len(data)))
	samples := make([]float32, n)
	for i := range samples {
		y := int(rng.Uint32n(uint32(height)))
		x := int(rng.Uint32n(uint32(width - 1)))
		d := data[y*width+x+1] - data[y*width+x]
		if d < 0 {
			d = -d
		}
		samples[i] = d
	}
	// the difference of two samples has sqrt(2) times their deviation
	mad := qsort.QSelectMedianFloat32(samples)
	return mad * 1.4826 / math.Sqrt2
}
