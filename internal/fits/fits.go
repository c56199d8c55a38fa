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
	"fmt"
	"strings"

	"github.com/espdev/itkcvbf/internal/convert"
	"github.com/espdev/itkcvbf/internal/stats"
	"github.com/espdev/itkcvbf/internal/volume"
)

// A FITS image with up to four axes.
// Spec here:   https://fits.gsfc.nasa.gov/standard40/fits_standard40aa-le.pdf
// Primer here: https://fits.gsfc.nasa.gov/fits_primer.html
type Image struct {
	ID       int    // Sequential ID number, for log output
	FileName string // Original file name, if any, for log output

	Header Header             // The header with all remaining keys, values, comments, history entries etc.
	Bitpix int32              // Bits per pixel value from the header. Positive values are integral, negative floating
	Bzero  float32            // Zero offset. True pixel value is Bzero + Bscale * Data[i]
	Bscale float32            // Value scaler. True pixel value is Bzero + Bscale * Data[i]
	Kind   convert.SampleKind // Native representation of the samples in the file, restored on write
	Naxisn []int32            // Axis dimensions. Most quickly varying dimension first (i.e. X,Y)
	Pixels int                // Number of pixels in the image. Product of Naxisn[]

	Data []float32 // The image data, with Bzero and Bscale applied

	Stats *stats.Stats // Basic image statistics, if calculated
}

// Creates a FITS image initialized with empty header
func NewImage() *Image {
	return &Image{
		Header: NewHeader(),
		Bitpix: -32,
		Bscale: 1,
		Kind:   convert.Float32,
	}
}

// Creates a float32 FITS image from given naxisn. Data is not copied, allocated if nil. naxisn is deep copied
func NewImageFromNaxisn(naxisn []int32, data []float32) *Image {
	numPixels := 1
	for _, naxis := range naxisn {
		numPixels *= int(naxis)
	}
	if data == nil {
		data = make([]float32, numPixels)
	}
	f := NewImage()
	f.Naxisn = append([]int32(nil), naxisn...)
	f.Pixels = numPixels
	f.Data = data
	return f
}

// Creates a FITS image with the metadata of the given image and the given data,
// which is allocated if nil
func NewImageFromImage(img *Image, data []float32) *Image {
	if data == nil {
		data = make([]float32, img.Pixels)
	}
	return &Image{
		ID:       img.ID,
		FileName: img.FileName,
		Header:   img.Header.Clone(),
		Bitpix:   img.Bitpix,
		Bzero:    img.Bzero,
		Bscale:   img.Bscale,
		Kind:     img.Kind,
		Naxisn:   append([]int32(nil), img.Naxisn...),
		Pixels:   img.Pixels,
		Data:     data,
	}
}

// FITS header data not represented in the Image fields
type Header struct {
	Bools    map[string]bool
	Ints     map[string]int32
	Floats   map[string]float32
	Strings  map[string]string
	Dates    map[string]string
	Comments []string
	History  []string
	End      bool
	Length   int32
}

// Creates a FITS header initialized with empty maps and arrays
func NewHeader() Header {
	return Header{
		Bools:    make(map[string]bool),
		Ints:     make(map[string]int32),
		Floats:   make(map[string]float32),
		Strings:  make(map[string]string),
		Dates:    make(map[string]string),
		Comments: make([]string, 0),
		History:  make([]string, 0),
	}
}

// Returns a deep copy of the header
func (h Header) Clone() Header {
	c := NewHeader()
	for k, v := range h.Bools {
		c.Bools[k] = v
	}
	for k, v := range h.Ints {
		c.Ints[k] = v
	}
	for k, v := range h.Floats {
		c.Floats[k] = v
	}
	for k, v := range h.Strings {
		c.Strings[k] = v
	}
	for k, v := range h.Dates {
		c.Dates[k] = v
	}
	c.Comments = append(c.Comments, h.Comments...)
	c.History = append(c.History, h.History...)
	c.End, c.Length = h.End, h.Length
	return c
}

const fitsBlockSize int = 2880 // Block size of FITS header and data units
const HeaderLineSize int = 80   // Line size of a FITS header

func (f *Image) DimensionsToString() string {
	b := strings.Builder{}
	for i, naxis := range f.Naxisn {
		if i > 0 {
			fmt.Fprintf(&b, "x%d", naxis)
		} else {
			fmt.Fprintf(&b, "%d", naxis)
		}
	}
	return b.String()
}

// Returns a volume sharing the image data
func (f *Image) Volume() (*volume.Volume, error) {
	extent := make([]int, len(f.Naxisn))
	for i, n := range f.Naxisn {
		extent[i] = int(n)
	}
	v, err := volume.FromData(f.Data, extent...)
	if err != nil {
		return nil, fmt.Errorf("%d: %w", f.ID, err)
	}
	return v, nil
}

// Returns the middle 2D plane of the image, sharing its data
func (f *Image) MiddlePlane() (plane []float32, width, height int) {
	width, height = int(f.Naxisn[0]), 1
	if len(f.Naxisn) > 1 {
		height = int(f.Naxisn[1])
	}
	size := width * height
	planes := f.Pixels / size
	mid := planes / 2
	return f.Data[mid*size : (mid+1)*size], width, height
}

// Calculates image statistics and stores them in the image
func (f *Image) CalcStats() *stats.Stats {
	f.Stats = stats.Calc(f.Data, int(f.Naxisn[0]))
	return f.Stats
}
