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
	"fmt"

	"github.com/espdev/itkcvbf/internal"
	"github.com/espdev/itkcvbf/internal/device"
	"github.com/espdev/itkcvbf/internal/kernel"
	"github.com/espdev/itkcvbf/internal/progress"
	"github.com/espdev/itkcvbf/internal/volume"
)

// Where a 2D pass runs
type DeviceChoice int

const (
	DeviceCPU DeviceChoice = iota
	DeviceAccelerator
)

func (d DeviceChoice) String() string {
	switch d {
	case DeviceAccelerator:
		return "accelerator"
	default:
		return "CPU"
	}
}

// Chooses the accelerator if one is available and the CPU is not forced
func SelectDevice(p Params) DeviceChoice {
	if !p.CPUForce && device.Count() > 0 {
		return DeviceAccelerator
	}
	return DeviceCPU
}

// Failure of an accelerator step. The request is aborted unless fallback is enabled
type DeviceExecutionError struct {
	Device string
	Op     string // open, upload, alloc, bilateral, download or close
	Err    error
}

func (e *DeviceExecutionError) Error() string {
	return fmt.Sprintf("accelerator %s: %s failed: %v", e.Device, e.Op, e.Err)
}

func (e *DeviceExecutionError) Unwrap() error { return e.Err }

// Filters one 2D slice, with an optional correction pass. Reports local progress 0 before
// and 1 after the work. On error, no volume is returned.
func (f *Filter) apply2D(v *volume.Volume, scope *progress.Scope) (*volume.Volume, error) {
	scope.Report(0)
	out := v.NewLike()
	width := v.Extent[0]

	choice := SelectDevice(f.Params)
	if choice == DeviceAccelerator {
		acc := device.Default()
		if acc == nil {
			choice = DeviceCPU
		} else if err := runAccelerator(acc, out.Data, v.Data, width, f.Params); err != nil {
			if !f.Params.Fallback {
				return nil, err
			}
			fmt.Fprintf(f.log(), "Warning: %v; retrying %s slice on CPU\n", err, v.DimensionsToString())
			choice = DeviceCPU
		}
	}
	if choice == DeviceCPU {
		runHost(out.Data, v.Data, width, f.Params)
	}

	scope.Report(1)
	return out, nil
}

// Runs both passes on the accelerator. The correction pass reads the first pass's output
// directly from device memory. All device buffers are released on every path.
func runAccelerator(acc device.Accelerator, dst, src []float32, width int, p Params) (err error) {
	fail := func(op string, e error) error {
		return &DeviceExecutionError{Device: acc.Name(), Op: op, Err: e}
	}

	s, e := acc.Open()
	if e != nil {
		return fail("open", e)
	}
	defer func() {
		if e := s.Close(); e != nil && err == nil {
			err = fail("close", e)
		}
	}()

	in, e := s.Upload(src, width)
	if e != nil {
		return fail("upload", e)
	}
	out, e := s.Alloc(in.Width(), in.Height())
	if e != nil {
		return fail("alloc", e)
	}
	if e := s.Bilateral(out, in, p.RangeSigma, p.DomainSigma); e != nil {
		return fail("bilateral", e)
	}
	if p.Correction {
		// ping-pong: the input buffer is no longer needed and receives the second pass
		if e := s.Bilateral(in, out, p.CorrRangeSigma, p.CorrDomainSigma); e != nil {
			return fail("bilateral", e)
		}
		out = in
	}
	if e := s.Download(dst, out); e != nil {
		return fail("download", e)
	}
	return nil
}

// Runs both passes in host memory
func runHost(dst, src []float32, width int, p Params) {
	k := kernel.New(p.RangeSigma, p.DomainSigma)
	if !p.Correction {
		k.Apply(dst, src, width)
		return
	}
	tmp := internal.GetArrayOfFloat32FromPool(len(src))
	defer internal.PutArrayOfFloat32IntoPool(tmp)
	k.Apply(tmp, src, width)
	kernel.New(p.CorrRangeSigma, p.CorrDomainSigma).Apply(dst, tmp, width)
}
