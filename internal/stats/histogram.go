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

	"gonum.org/v1/gonum/optimize"
)

// Calculates the histogram of data between min and max into the given bins
func Histogram(data []float32, min, max float32, bins []int32) {
	for i := range bins {
		bins[i] = 0
	}
	scale := float32(len(bins)-1) / (max - min)
	for _, d := range data {
		if !(d >= min && d <= max) {
			continue
		}
		bins[int((d-min)*scale)]++
	}
}

// Returns the location and the value of the histogram peak
func GetPeak(bins []int32, min, max float32) (x, y float32) {
	maxIndex, maxValue := 0, int32(math.MinInt32)
	for i, v := range bins {
		if v > maxValue {
			maxIndex, maxValue = i, v
		}
	}
	x = min + (float32(maxIndex)+0.5)*(max-min)/float32(len(bins)-1)
	y = float32(bins[maxIndex])
	if maxIndex+1 < len(bins) {
		y = 0.5 * float32(bins[maxIndex]+bins[maxIndex+1])
	}
	return x, y
}

// Fits a normal distribution to the histogram and returns its mean and standard deviation
func GetModeStdDevFromHistogram(bins []int32, min, max float32) (mode, stdDev float32, err error) {
	// start from the histogram peak
	peak, peakVal := GetPeak(bins, min, max)
	binWidth := float64(max-min) / float64(len(bins)-1)
	sigma0 := 2 * binWidth
	x0 := []float64{float64(peakVal) * sigma0 * math.Sqrt(2*math.Pi), float64(peak), sigma0}

	problem := optimize.Problem{
		Func: func(x []float64) float64 {
			alpha, mu, sigma := x[0], x[1], math.Abs(x[2])+1e-12
			scaler := alpha / (sigma * math.Sqrt(2*math.Pi))
			sumSqDiff := 0.0
			for i, y := range bins {
				bx := float64(min) + (float64(i)+0.5)*binWidth
				z := (bx - mu) / sigma
				diff := float64(y) - scaler*math.Exp(-0.5*z*z)
				sumSqDiff += diff * diff
			}
			return math.Sqrt(sumSqDiff / float64(len(bins)))
		},
	}
	result, err := optimize.Minimize(problem, x0, nil, &optimize.NelderMead{})
	if err != nil {
		return peak, 0, err
	}
	return float32(result.X[1]), float32(math.Abs(result.X[2])), nil
}

// Returns the mode of the sample distribution, from a normal fit to its histogram.
// Falls back to the histogram peak if the fit does not converge inside [min, max].
func Location(data []float32, min, max float32) float32 {
	if !(max-min > 0) {
		return min
	}
	bins := make([]int32, locationBins)
	Histogram(data, min, max, bins)
	mode, _, err := GetModeStdDevFromHistogram(bins, min, max)
	if err != nil || math.IsNaN(float64(mode)) || mode < min || mode > max {
		peak, _ := GetPeak(bins, min, max)
		return peak
	}
	return mode
}
