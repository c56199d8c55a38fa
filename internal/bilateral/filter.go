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

package bilateral

import (
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/espdev/itkcvbf/internal/convert"
	"github.com/espdev/itkcvbf/internal/device"
	"github.com/espdev/itkcvbf/internal/progress"
	"github.com/espdev/itkcvbf/internal/volume"
	"github.com/pbnjay/memory"
)

var ErrInvalidDimension = errors.New("invalid dimension, expecting 2, 3 or 4")

// A bilateral filter for volumes of a fixed number of axes. Filters for 3 and 4 axes
// delegate to a filter with one axis less.
type Filter struct {
	Params Params
	Dim    int
	Log    io.Writer

	sub *Filter
	top bool
}

// Creates a filter for dim-dimensional volumes, together with the chain of sub-filters
func NewFilter(dim int, p Params) (*Filter, error) {
	if dim < 2 || dim > 4 {
		return nil, fmt.Errorf("%w: %d", ErrInvalidDimension, dim)
	}
	if err := p.Validate(); err != nil {
		return nil, err
	}
	f := &Filter{Params: p, Dim: dim, Log: io.Discard, top: true}
	for c := f; c.Dim > 2; c = c.sub {
		c.sub = &Filter{Params: p, Dim: c.Dim - 1, Log: f.Log}
	}
	return f, nil
}

// Sets the log writer of this filter and all its sub-filters. Must not be called during Apply
func (f *Filter) SetLog(w io.Writer) {
	for c := f; c != nil; c = c.sub {
		c.Log = w
	}
}

func (f *Filter) log() io.Writer {
	if f.Log == nil {
		return io.Discard
	}
	return f.Log
}

// Number of decomposition levels below this filter
func (f *Filter) Levels() int {
	n := 0
	for c := f.sub; c != nil; c = c.sub {
		n++
	}
	return n
}

// Filters v into a new volume of the same extent. Progress is reported into scope, which may be nil
func (f *Filter) Apply(v *volume.Volume, scope *progress.Scope) (*volume.Volume, error) {
	if v.Dim() != f.Dim {
		return nil, fmt.Errorf("%w: %d-dimensional filter for %s volume", ErrInvalidDimension, f.Dim, v.DimensionsToString())
	}
	if scope == nil {
		scope = progress.NewTracker(nil).Root()
	}
	if f.Dim == 2 {
		return f.apply2D(v, scope)
	}
	return f.decompose(v, scope)
}

// Filters the volume with as many axes as it has. The sink, if any, receives the progress
// of the request and always ends on exactly 1.0, also when the request fails.
func Run(v *volume.Volume, p Params, sink progress.Sink, log io.Writer) (*volume.Volume, error) {
	tracker := progress.NewTracker(sink)
	defer tracker.Done()

	f, err := NewFilter(v.Dim(), p)
	if err != nil {
		return nil, err
	}
	if log != nil {
		f.SetLog(log)
	}
	if f.Dim > 2 && f.Params.Workers > 1 {
		if w := WorkersForMemory(f.Params.Workers, v.SliceLen()); w < f.Params.Workers {
			fmt.Fprintf(f.log(), "Limiting parallel slices from %d to %d due to physical memory\n", f.Params.Workers, w)
			f.Params.Workers = w
		}
	}

	where := SelectDevice(f.Params).String()
	if acc := device.Default(); acc != nil && where == DeviceAccelerator.String() {
		where += " " + acc.Name()
	}
	fmt.Fprintf(f.log(), "Filtering %s volume with %s on %s\n", v.DimensionsToString(), f.Params, where)

	start := time.Now()
	out, err := f.Apply(v, tracker.Root())
	if err != nil {
		return nil, err
	}
	fmt.Fprintf(f.log(), "Filtering took %v\n", time.Since(start).Round(time.Millisecond))
	return out, nil
}

// Filters samples of any numeric type with the given extent. Samples are converted to
// float32 once on entry and back to T once on exit, saturating at the range of T.
func FilterVolume[T convert.Number](data []T, extent []int, p Params, sink progress.Sink) ([]T, error) {
	v, err := volume.FromData(convert.ToFloat32(data), extent...)
	if err != nil {
		progress.NewTracker(sink).Done()
		return nil, err
	}
	out, err := Run(v, p, sink, nil)
	if err != nil {
		return nil, err
	}
	return convert.FromFloat32[T](out.Data), nil
}

// Limits the number of concurrently filtered slices so that their working sets of
// input, output and scratch buffers fit into half of the physical memory
func WorkersForMemory(requested, sliceSamples int) int {
	perWorker := uint64(sliceSamples) * 4 * 3
	total := memory.TotalMemory()
	if requested <= 1 || perWorker == 0 || total == 0 {
		return requested
	}
	max := int(total / 2 / perWorker)
	if max < 1 {
		max = 1
	}
	if requested > max {
		return max
	}
	return requested
}
