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

package ops

import (
	"encoding/json"
	"fmt"
	"os"
	"sync"

	"github.com/espdev/itkcvbf/internal/bilateral"
	"github.com/espdev/itkcvbf/internal/convert"
	"github.com/espdev/itkcvbf/internal/fits"
	"github.com/espdev/itkcvbf/internal/volume"
)

// Filters an image with the edge preserving bilateral filter. The result keeps the
// sample representation of the input. Takes n inputs, produces n outputs
type OpBilateral struct {
	OpUnaryBase
	Dimension int              `json:"dimension"` // number of axes the input must have; 0 accepts any of 2 to 4
	Params    bilateral.Params `json:"params"`
}

func init() { SetOperatorFactory(func() Operator { return NewOpBilateralDefault() }) } // register the operator for JSON decoding

func NewOpBilateralDefault() *OpBilateral { return NewOpBilateral(0, bilateral.DefaultParams()) }

func NewOpBilateral(dimension int, params bilateral.Params) *OpBilateral {
	op := &OpBilateral{
		OpUnaryBase: OpUnaryBase{OpBase: OpBase{Type: "bilateral", Active: true}},
		Dimension:   dimension,
		Params:      params,
	}
	op.OpUnaryBase.Apply = op.Apply // assign class method to superclass abstract method
	return op
}

// Unmarshal the type from JSON with default values for missing entries
func (op *OpBilateral) UnmarshalJSON(data []byte) error {
	type defaults OpBilateral
	def := defaults(*NewOpBilateralDefault())
	if err := json.Unmarshal(data, &def); err != nil {
		return err
	}
	*op = OpBilateral(def)
	op.OpUnaryBase.Apply = op.Apply // make method receiver point to op, not def
	return nil
}

// Images with fewer axes than the requested dimension are filtered as if padded with
// unit axes, so a 2D image filtered in 3D is a single slice. More axes are an error
func (op *OpBilateral) Apply(f *fits.Image, c *Context) (result *fits.Image, err error) {
	if op.Dimension != 0 && len(f.Naxisn) > op.Dimension {
		return nil, fmt.Errorf("%d: %w: requested %d but %s has %d axes",
			f.ID, bilateral.ErrInvalidDimension, op.Dimension, f.DimensionsToString(), len(f.Naxisn))
	}
	v, err := f.Volume()
	if err != nil {
		return nil, err
	}
	if op.Dimension > v.Dim() {
		extent := append([]int(nil), v.Extent...)
		for len(extent) < op.Dimension {
			extent = append(extent, 1)
		}
		if v, err = volume.FromData(v.Data, extent...); err != nil {
			return nil, err
		}
	}

	out, err := bilateral.Run(v, op.Params, c.Progress, &prefixWriter{id: f.ID, w: c.Log})
	if err != nil {
		return nil, fmt.Errorf("%d: %w", f.ID, err)
	}

	convert.Quantize(out.Data, f.Kind)
	result = fits.NewImageFromImage(f, out.Data)
	result.Header.History = append(result.Header.History, "bilateral "+op.Params.String())
	return result, nil
}

// Logs image statistics, and optionally appends them to a CSV file.
// Takes n inputs, produces n unchanged outputs
type OpStats struct {
	OpUnaryBase
	Label   string `json:"label"`
	CSVFile string `json:"csvFile"` // one line per image, with a header if the file is new
}

// Serializes appends to CSV files from concurrently materialized images
var csvMu sync.Mutex

func init() { SetOperatorFactory(func() Operator { return NewOpStatsDefault() }) } // register the operator for JSON decoding

func NewOpStatsDefault() *OpStats { return NewOpStats("") }

func NewOpStats(label string) *OpStats {
	op := &OpStats{
		OpUnaryBase: OpUnaryBase{OpBase: OpBase{Type: "stats", Active: true}},
		Label:       label,
	}
	op.OpUnaryBase.Apply = op.Apply // assign class method to superclass abstract method
	return op
}

// Unmarshal the type from JSON with default values for missing entries
func (op *OpStats) UnmarshalJSON(data []byte) error {
	type defaults OpStats
	def := defaults(*NewOpStatsDefault())
	if err := json.Unmarshal(data, &def); err != nil {
		return err
	}
	*op = OpStats(def)
	op.OpUnaryBase.Apply = op.Apply // make method receiver point to op, not def
	return nil
}

func (op *OpStats) Apply(f *fits.Image, c *Context) (result *fits.Image, err error) {
	s := f.CalcStats()
	label := op.Label
	if label != "" {
		label += " "
	}
	warning := ""
	if s.Max-s.Min < 1e-8 {
		warning = "; WARNING low dynamic range"
	}
	fmt.Fprintf(c.Log, "%d: %sstats %v%s\n", f.ID, label, s, warning)

	if op.CSVFile != "" {
		if !isPathAllowed(op.CSVFile, c) {
			return nil, fmt.Errorf("%d: filename %s outside current directory tree", f.ID, op.CSVFile)
		}
		if err := appendCSV(op.CSVFile, f, op.Label); err != nil {
			return nil, fmt.Errorf("%d: error writing statistics to %s: %w", f.ID, op.CSVFile, err)
		}
	}
	return f, nil
}

func appendCSV(fileName string, f *fits.Image, label string) error {
	csvMu.Lock()
	defer csvMu.Unlock()
	file, err := os.OpenFile(fileName, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	if err != nil {
		return err
	}
	info, err := file.Stat()
	if err != nil {
		file.Close()
		return err
	}
	if info.Size() == 0 {
		fmt.Fprintf(file, "ID,File,Label,%s\n", f.Stats.ToCSVHeader())
	}
	fmt.Fprintf(file, "%d,%s,%s,%s\n", f.ID, f.FileName, label, f.Stats.ToCSVLine())
	return file.Close()
}

// Writes a JPEG preview of the middle 2D plane, with pattern expansion for %d based on the image id.
// Takes n inputs, produces n unchanged outputs
type OpPreview struct {
	OpUnaryBase
	FilePattern string  `json:"filePattern"`
	FalseColor  bool    `json:"falseColor"`
	Gamma       float32 `json:"gamma"`
}

func init() { SetOperatorFactory(func() Operator { return NewOpPreviewDefault() }) } // register the operator for JSON decoding

func NewOpPreviewDefault() *OpPreview {
	op := NewOpPreview("", false)
	op.Active = true
	return op
}

func NewOpPreview(filePattern string, falseColor bool) *OpPreview {
	op := &OpPreview{
		OpUnaryBase: OpUnaryBase{OpBase: OpBase{Type: "preview", Active: filePattern != ""}},
		FilePattern: filePattern,
		FalseColor:  falseColor,
		Gamma:       1,
	}
	op.OpUnaryBase.Apply = op.Apply // assign class method to superclass abstract method
	return op
}

// Unmarshal the type from JSON with default values for missing entries
func (op *OpPreview) UnmarshalJSON(data []byte) error {
	type defaults OpPreview
	def := defaults(*NewOpPreviewDefault())
	if err := json.Unmarshal(data, &def); err != nil {
		return err
	}
	*op = OpPreview(def)
	op.OpUnaryBase.Apply = op.Apply // make method receiver point to op, not def
	return nil
}

func (op *OpPreview) Apply(f *fits.Image, c *Context) (result *fits.Image, err error) {
	if !op.Active || op.FilePattern == "" {
		return f, nil
	}
	fileName := expandPattern(op.FilePattern, f.ID)
	if !isPathAllowed(fileName, c) {
		return nil, fmt.Errorf("%d: filename %s outside current directory tree", f.ID, fileName)
	}
	if !hasSuffix(fileName, ".jpg", ".jpeg") {
		return nil, fmt.Errorf("%d: preview %s must be a JPEG file", f.ID, fileName)
	}
	opts := fits.DefaultPreviewOptions()
	opts.FalseColor, opts.Gamma = op.FalseColor, op.Gamma
	fmt.Fprintf(c.Log, "%d: Writing preview of middle plane to %s\n", f.ID, fileName)
	if err := f.WritePreviewJPGToFile(fileName, opts); err != nil {
		return nil, fmt.Errorf("%d: error writing preview %s: %w", f.ID, fileName, err)
	}
	return f, nil
}
