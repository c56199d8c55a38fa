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
	"errors"
	"fmt"
	"image"
	"image/color"
	"io"
	"os"

	"github.com/espdev/itkcvbf/internal/convert"
	"golang.org/x/image/tiff"
)

var ErrTIFFColor = errors.New("only grayscale TIFF images are supported")

// Write a 2D image to a 16-bit grayscale TIFF file
func (f *Image) WriteTIFF16ToFile(fileName string) error {
	file, err := os.Create(fileName)
	if err != nil {
		return err
	}
	defer file.Close()

	writer := bufio.NewWriter(file)
	if err := f.WriteTIFF16(writer); err != nil {
		return err
	}
	return writer.Flush()
}

// Write a 2D image to 16-bit grayscale TIFF. Sample values are stored unscaled,
// saturating at the 16-bit range.
func (f *Image) WriteTIFF16(writer io.Writer) error {
	if len(f.Naxisn) != 2 {
		return fmt.Errorf("%d: cannot write %s pixel image as TIFF, need two axes", f.ID, f.DimensionsToString())
	}
	width, height := int(f.Naxisn[0]), int(f.Naxisn[1])
	img := image.NewGray16(image.Rect(0, 0, width, height))
	vals := convert.FromFloat32[uint16](f.Data)
	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			img.SetGray16(x, y, color.Gray16{Y: vals[y*width+x]})
		}
	}
	return tiff.Encode(writer, img, &tiff.Options{Compression: tiff.Deflate, Predictor: true})
}

// Read a grayscale TIFF image file
func (f *Image) ReadTIFFFile(fileName string) error {
	file, err := os.Open(fileName)
	if err != nil {
		return err
	}
	defer file.Close()
	f.FileName = fileName
	return f.ReadTIFF(bufio.NewReader(file))
}

// Read a grayscale TIFF image. 8-bit and 16-bit samples are kept at their values
func (f *Image) ReadTIFF(reader io.Reader) error {
	t, err := tiff.Decode(reader)
	if err != nil {
		return fmt.Errorf("%d: %w", f.ID, err)
	}

	b := t.Bounds()
	width, height := b.Dx(), b.Dy()
	f.Naxisn = []int32{int32(width), int32(height)}
	f.Pixels = width * height
	f.Bzero, f.Bscale = 0, 1
	f.Data = make([]float32, f.Pixels)

	switch img := t.(type) {
	case *image.Gray16:
		f.Kind = convert.Uint16
		for y := 0; y < height; y++ {
			for x := 0; x < width; x++ {
				f.Data[y*width+x] = float32(img.Gray16At(b.Min.X+x, b.Min.Y+y).Y)
			}
		}
	case *image.Gray:
		f.Kind = convert.Uint8
		for y := 0; y < height; y++ {
			for x := 0; x < width; x++ {
				f.Data[y*width+x] = float32(img.GrayAt(b.Min.X+x, b.Min.Y+y).Y)
			}
		}
	default:
		return fmt.Errorf("%d: %w, got %T", f.ID, ErrTIFFColor, t)
	}
	f.Bitpix, _ = f.Kind.Bitpix()
	return nil
}
