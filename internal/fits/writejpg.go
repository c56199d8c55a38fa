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

package fits

import (
	"bufio"
	"image"
	"image/color"
	"image/jpeg"
	"io"
	"math"
	"os"

	"github.com/lucasb-eyer/go-colorful"
)

// Endpoints of the false colour ramp, blended in HCL space from dark blue to warm white
var (
	rampLow  = colorful.Hcl(260, 0.4, 0.05)
	rampHigh = colorful.Hcl(60, 0.25, 0.97)
)

// Display options for JPEG previews
type PreviewOptions struct {
	Min, Max   float32 // black and white points; both zero selects the plane's range
	Gamma      float32
	FalseColor bool
	Quality    int
}

func DefaultPreviewOptions() PreviewOptions {
	return PreviewOptions{Gamma: 1, Quality: 95}
}

// Write the middle 2D plane of the image as JPEG preview
func (f *Image) WritePreviewJPGToFile(fileName string, opts PreviewOptions) error {
	file, err := os.Create(fileName)
	if err != nil {
		return err
	}
	defer file.Close()

	writer := bufio.NewWriter(file)
	if err := f.WritePreviewJPG(writer, opts); err != nil {
		return err
	}
	return writer.Flush()
}

// Write the middle 2D plane of the image as JPEG preview
func (f *Image) WritePreviewJPG(writer io.Writer, opts PreviewOptions) error {
	plane, width, height := f.MiddlePlane()
	if opts.Min == 0 && opts.Max == 0 {
		opts.Min, opts.Max = planeRange(plane)
	}
	if opts.Gamma <= 0 {
		opts.Gamma = 1
	}
	if opts.Quality <= 0 {
		opts.Quality = 95
	}

	levels := normalize(plane, opts.Min, opts.Max, opts.Gamma)
	rect := image.Rect(0, 0, width, height)
	var img image.Image
	if opts.FalseColor {
		rgba := image.NewRGBA(rect)
		for y := 0; y < height; y++ {
			for x := 0; x < width; x++ {
				c := rampLow.BlendHcl(rampHigh, float64(levels[y*width+x])).Clamped()
				r, g, b := c.RGB255()
				rgba.SetRGBA(x, y, color.RGBA{r, g, b, 255})
			}
		}
		img = rgba
	} else {
		gray := image.NewGray(rect)
		for y := 0; y < height; y++ {
			for x := 0; x < width; x++ {
				gray.SetGray(x, y, color.Gray{uint8(levels[y*width+x]*255 + 0.5)})
			}
		}
		img = gray
	}
	return jpeg.Encode(writer, img, &jpeg.Options{Quality: opts.Quality})
}

// Maps samples to [0,1] between min and max with the given gamma.
// NaNs become zero, else JPG output breaks
func normalize(data []float32, min, max, gamma float32) []float32 {
	res := make([]float32, len(data))
	scale := float32(0)
	if max > min {
		scale = 1 / (max - min)
	}
	gammaInv := float64(1 / gamma)
	for i, d := range data {
		v := (d - min) * scale
		if math.IsNaN(float64(v)) || v < 0 {
			v = 0
		}
		if v > 1 {
			v = 1
		}
		if gammaInv != 1 {
			v = float32(math.Pow(float64(v), gammaInv))
		}
		res[i] = v
	}
	return res
}

func planeRange(data []float32) (min, max float32) {
	min, max = float32(math.MaxFloat32), float32(-math.MaxFloat32)
	for _, d := range data {
		if d < min {
			min = d
		}
		if d > max {
			max = d
		}
	}
	if min > max {
		return 0, 0
	}
	return min, max
}
