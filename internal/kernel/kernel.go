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

// Package kernel implements the 2D bilateral smoothing primitive on row-major
// float32 sample grids.
//
// Conventions follow cv::bilateralFilter with an automatic diameter: a sigma <= 0
// is replaced by 1, the neighbourhood is a disc of radius max(round(1.5*domainSigma), 1),
// and borders are mirrored without repeating the edge sample (gfedcb|abcdefgh|gfedcba).
package kernel

import (
	"math"
)

// One neighbour of the disc-shaped neighbourhood
type Offset struct {
	DX, DY int
	Weight float64 // spatial weight exp(-r^2/(2*domainSigma^2))
}

// Precomputed geometry and weights for one pass
type Kernel struct {
	RangeSigma  float64
	DomainSigma float64
	Radius      int
	Offsets     []Offset
	ColorCoeff  float64 // -1/(2*rangeSigma^2)
}

// Replaces non-positive sigmas with 1
func Sanitize(sigma float32) float64 {
	if !(sigma > 0) {
		return 1
	}
	return float64(sigma)
}

// Neighbourhood radius derived from the domain sigma
func Radius(domainSigma float32) int {
	r := int(math.RoundToEven(Sanitize(domainSigma) * 1.5))
	if r < 1 {
		r = 1
	}
	return r
}

// Builds the kernel for one pass with the given range and domain sigma
func New(rangeSigma, domainSigma float32) *Kernel {
	rs, ds := Sanitize(rangeSigma), Sanitize(domainSigma)
	radius := Radius(domainSigma)
	spaceCoeff := -0.5 / (ds * ds)

	offsets := make([]Offset, 0, (2*radius+1)*(2*radius+1))
	for dy := -radius; dy <= radius; dy++ {
		for dx := -radius; dx <= radius; dx++ {
			r2 := float64(dx*dx + dy*dy)
			if math.Sqrt(r2) > float64(radius) {
				continue
			}
			offsets = append(offsets, Offset{DX: dx, DY: dy, Weight: math.Exp(r2 * spaceCoeff)})
		}
	}
	return &Kernel{
		RangeSigma:  rs,
		DomainSigma: ds,
		Radius:      radius,
		Offsets:     offsets,
		ColorCoeff:  -0.5 / (rs * rs),
	}
}

// Mirrors out of bounds coordinates back into [0, size-1] without repeating the edge
func Reflect101(size, x int) int {
	if size == 1 {
		return 0
	}
	for x < 0 || x >= size {
		if x < 0 {
			x = -x
		}
		if x >= size {
			x = 2*size - 2 - x
		}
	}
	return x
}

// Applies the kernel to the 2D grid src of given width, and stores the result in dst.
// dst and src must not overlap. Rows in [y0, y1) are computed, which allows callers
// to split the work into bands.
func (k *Kernel) ApplyRows(dst, src []float32, width, y0, y1 int) {
	height := len(src) / width
	for y := y0; y < y1; y++ {
		for x := 0; x < width; x++ {
			center := float64(src[y*width+x])
			sum, wsum := 0.0, 0.0
			for _, o := range k.Offsets {
				xx, yy := x+o.DX, y+o.DY
				if xx < 0 || xx >= width {
					xx = Reflect101(width, xx)
				}
				if yy < 0 || yy >= height {
					yy = Reflect101(height, yy)
				}
				v := float64(src[yy*width+xx])
				d := v - center
				w := o.Weight * math.Exp(d*d*k.ColorCoeff)
				sum += w * v
				wsum += w
			}
			dst[y*width+x] = float32(sum / wsum)
		}
	}
}

// Applies the kernel to the whole 2D grid src of given width, storing the result in dst.
// Grids of uniform value are copied unchanged.
func (k *Kernel) Apply(dst, src []float32, width int) {
	if IsUniform(src) {
		copy(dst, src)
		return
	}
	k.ApplyRows(dst, src, width, 0, len(src)/width)
}

// Machine epsilon of float32
const epsilon = 1.1920929e-07

// Returns true if the value range of the samples is below float32 epsilon
func IsUniform(data []float32) bool {
	min, max := MinMax(data)
	return max-min < epsilon
}

// Returns minimum and maximum, ignoring NaNs
func MinMax(data []float32) (min, max float32) {
	min, max = float32(math.MaxFloat32), float32(-math.MaxFloat32)
	for _, v := range data {
		if v < min {
			min = v
		}
		if v > max {
			max = v
		}
	}
	if min > max {
		return 0, 0
	}
	return min, max
}

// Filters src of given width with one bilateral pass and returns the result in a new buffer
func Bilateral(src []float32, width int, rangeSigma, domainSigma float32) []float32 {
	dst := make([]float32, len(src))
	New(rangeSigma, domainSigma).Apply(dst, src, width)
	return dst
}
