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
	"bytes"
	"image/jpeg"
	"io"
	"math"
	"path/filepath"
	"testing"

	"github.com/espdev/itkcvbf/internal/convert"
)

func roundTrip(t *testing.T, f *Image) *Image {
	t.Helper()
	buf := &bytes.Buffer{}
	if err := f.Write(buf); err != nil {
		t.Fatalf("Write: %v", err)
	}
	if buf.Len()%fitsBlockSize != 0 {
		t.Errorf("file size %d; want multiple of %d", buf.Len(), fitsBlockSize)
	}
	g := NewImage()
	if err := g.Read(buf, true, io.Discard); err != nil {
		t.Fatalf("Read: %v", err)
	}
	return g
}

func TestWriteReadKinds(t *testing.T) {
	var tests = []struct {
		kind convert.SampleKind
		in   []float32
		want []float32
	}{
		{convert.Uint8, []float32{0, 1.7, 255, 300, -4, 128, 9, 10}, []float32{0, 1, 255, 255, 0, 128, 9, 10}},
		{convert.Int8, []float32{-128, -1.5, 0, 127, 200, 3, 4, 5}, []float32{-128, -1, 0, 127, 127, 3, 4, 5}},
		{convert.Uint16, []float32{0, 65535, 32768, 70000, 1, 2, 3, 4}, []float32{0, 65535, 32768, 65535, 1, 2, 3, 4}},
		{convert.Int16, []float32{-32768, 32767, -1, 0, 5, 6, 7, 8}, []float32{-32768, 32767, -1, 0, 5, 6, 7, 8}},
		{convert.Uint32, []float32{0, 4e9, 1, 2, 3, 4, 5, 6}, []float32{0, 4e9, 1, 2, 3, 4, 5, 6}},
		{convert.Int32, []float32{-7, 7, 1e6, 0, 1, 2, 3, 4}, []float32{-7, 7, 1e6, 0, 1, 2, 3, 4}},
		{convert.Float32, []float32{-1.25, 3.5, float32(math.NaN()), 0, 1, 2, 3, 4}, []float32{-1.25, 3.5, 0, 0, 1, 2, 3, 4}},
		{convert.Float64, []float32{-1.25, 1e-7, 0, 1, 2, 3, 4, 5}, []float32{-1.25, 1e-7, 0, 1, 2, 3, 4, 5}},
	}
	for _, test := range tests {
		f := NewImageFromNaxisn([]int32{4, 2}, append([]float32(nil), test.in...))
		f.Kind = test.kind
		g := roundTrip(t, f)
		if g.Kind != test.kind {
			t.Errorf("%v: read back kind %v", test.kind, g.Kind)
		}
		if g.DimensionsToString() != "4x2" {
			t.Errorf("%v: read back dimensions %s; want 4x2", test.kind, g.DimensionsToString())
		}
		for i := range test.want {
			if g.Data[i] != test.want[i] {
				t.Errorf("%v: sample %d = %g; want %g", test.kind, i, g.Data[i], test.want[i])
			}
		}
	}
}

func TestHeaderRoundTrip(t *testing.T) {
	f := NewImageFromNaxisn([]int32{3, 2, 2}, nil)
	f.Kind = convert.Int16
	f.Header.Strings["OBJECT"] = "it's a phantom"
	f.Header.Floats["EXPTIME"] = 1.5
	f.Header.Floats["BIGVAL"] = 1e20
	f.Header.Ints["GAIN"] = 139
	f.Header.Bools["FILTERED"] = true
	f.Header.History = append(f.Header.History, "bilateral filter range sigma 10")

	g := roundTrip(t, f)
	if got := g.Header.Strings["OBJECT"]; got != "it's a phantom" {
		t.Errorf("OBJECT=%q; want %q", got, "it's a phantom")
	}
	if got := g.Header.Floats["EXPTIME"]; got != 1.5 {
		t.Errorf("EXPTIME=%g; want 1.5", got)
	}
	if got := g.Header.Floats["BIGVAL"]; got != 1e20 {
		t.Errorf("BIGVAL=%g; want 1e20", got)
	}
	if got := g.Header.Ints["GAIN"]; got != 139 {
		t.Errorf("GAIN=%d; want 139", got)
	}
	if !g.Header.Bools["FILTERED"] {
		t.Errorf("FILTERED=false; want true")
	}
	if len(g.Header.History) != 1 || g.Header.History[0] != "bilateral filter range sigma 10" {
		t.Errorf("History=%q; want one entry", g.Header.History)
	}
	if g.Pixels != 12 || len(g.Data) != 12 {
		t.Errorf("Pixels=%d; want 12", g.Pixels)
	}
}

func TestReadRejectsGarbage(t *testing.T) {
	g := NewImage()
	if err := g.Read(bytes.NewReader(make([]byte, 100)), true, io.Discard); err == nil {
		t.Errorf("reading short garbage: err=nil; want error")
	}
}

func TestFileRoundTripGzip(t *testing.T) {
	dir := t.TempDir()
	f := NewImageFromNaxisn([]int32{2, 2}, []float32{1, 2, 3, 4})
	f.Kind = convert.Uint16
	fileName := filepath.Join(dir, "in.fits")
	if err := f.WriteFile(fileName); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
	g, err := NewImageFromFile(fileName, 7, io.Discard)
	if err != nil {
		t.Fatalf("NewImageFromFile: %v", err)
	}
	if g.ID != 7 || g.FileName != fileName || g.Data[3] != 4 {
		t.Errorf("read back %+v", g)
	}
	if _, err := NewImageFromFile(filepath.Join(dir, "in.fits.gz"), 0, io.Discard); err == nil {
		t.Errorf("reading missing file: err=nil; want error")
	}
}

func TestVolumeAndMiddlePlane(t *testing.T) {
	data := make([]float32, 2*2*3)
	for i := range data {
		data[i] = float32(i)
	}
	f := NewImageFromNaxisn([]int32{2, 2, 3}, data)
	v, err := f.Volume()
	if err != nil {
		t.Fatalf("Volume: %v", err)
	}
	if v.Dim() != 3 || v.Depth() != 3 {
		t.Errorf("volume extent %v; want [2 2 3]", v.Extent)
	}
	plane, w, h := f.MiddlePlane()
	if w != 2 || h != 2 || plane[0] != 4 {
		t.Errorf("middle plane %v (%dx%d); want starting at 4, 2x2", plane, w, h)
	}
}

func TestTIFFRoundTrip(t *testing.T) {
	f := NewImageFromNaxisn([]int32{3, 2}, []float32{0, 1, 65535, 70000, -5, 1234.9})
	buf := &bytes.Buffer{}
	if err := f.WriteTIFF16(buf); err != nil {
		t.Fatalf("WriteTIFF16: %v", err)
	}
	g := NewImage()
	if err := g.ReadTIFF(buf); err != nil {
		t.Fatalf("ReadTIFF: %v", err)
	}
	want := []float32{0, 1, 65535, 65535, 0, 1234}
	if g.Kind != convert.Uint16 || g.Bitpix != 16 {
		t.Errorf("kind %v bitpix %d; want uint16, 16", g.Kind, g.Bitpix)
	}
	for i := range want {
		if g.Data[i] != want[i] {
			t.Errorf("sample %d = %g; want %g", i, g.Data[i], want[i])
		}
	}

	cube := NewImageFromNaxisn([]int32{2, 2, 2}, nil)
	if err := cube.WriteTIFF16(&bytes.Buffer{}); err == nil {
		t.Errorf("writing 3D image as TIFF: err=nil; want error")
	}
}

func TestPreviewJPG(t *testing.T) {
	data := make([]float32, 8*6*3)
	for i := range data {
		data[i] = float32(i % 17)
	}
	f := NewImageFromNaxisn([]int32{8, 6, 3}, data)
	for _, falseColor := range []bool{false, true} {
		opts := DefaultPreviewOptions()
		opts.FalseColor = falseColor
		buf := &bytes.Buffer{}
		if err := f.WritePreviewJPG(buf, opts); err != nil {
			t.Fatalf("WritePreviewJPG: %v", err)
		}
		img, err := jpeg.Decode(buf)
		if err != nil {
			t.Fatalf("jpeg.Decode: %v", err)
		}
		if b := img.Bounds(); b.Dx() != 8 || b.Dy() != 6 {
			t.Errorf("falseColor=%v: preview %dx%d; want 8x6", falseColor, b.Dx(), b.Dy())
		}
	}
}

func TestNormalize(t *testing.T) {
	got := normalize([]float32{-1, 0, 5, 10, 11, float32(math.NaN())}, 0, 10, 1)
	want := []float32{0, 0, 0.5, 1, 1, 0}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("normalize[%d]=%g; want %g", i, got[i], want[i])
		}
	}
}
