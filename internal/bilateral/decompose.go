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
	"sync/atomic"

	"github.com/espdev/itkcvbf/internal/progress"
	"github.com/espdev/itkcvbf/internal/volume"
)

// Filters each slice along the highest axis with the (N-1)-dimensional sub-filter and
// assembles the results. Each slice owns 1/depth of the progress of this scope.
// There is no smoothing across the decomposition axis.
func (f *Filter) decompose(v *volume.Volume, scope *progress.Scope) (*volume.Volume, error) {
	out := v.NewLike()
	depth := v.Depth()
	weight := 1 / float64(depth)

	if f.top && f.Params.Workers > 1 && depth > 1 {
		if err := f.decomposeParallel(v, out, scope, weight); err != nil {
			return nil, err
		}
		scope.Report(1)
		return out, nil
	}

	for i := 0; i < depth; i++ {
		res, err := f.sub.Apply(v.Slice(i), scope.Sub(weight))
		if err != nil {
			return nil, fmt.Errorf("slice %d of %d: %w", i, depth, err)
		}
		if err := out.SetSlice(i, res); err != nil {
			return nil, err
		}
	}
	scope.Report(1)
	return out, nil
}

// Filters the slices concurrently, limited to Params.Workers goroutines.
// Every goroutine writes into its own region of out. The first error in slice order is returned.
func (f *Filter) decomposeParallel(v, out *volume.Volume, scope *progress.Scope, weight float64) error {
	depth := v.Depth()
	errs := make([]error, depth)
	var failed atomic.Bool

	sem := make(chan bool, f.Params.Workers)
	for i := 0; i < depth; i++ {
		sub := scope.Sub(weight)
		sem <- true
		if failed.Load() {
			<-sem
			break
		}
		go func(i int, sub *progress.Scope) {
			defer func() { <-sem }()
			res, err := f.sub.Apply(v.Slice(i), sub)
			if err == nil {
				err = out.SetSlice(i, res)
			}
			if err != nil {
				errs[i] = err
				failed.Store(true)
			}
		}(i, sub)
	}
	for i := 0; i < cap(sem); i++ { // wait for goroutines to finish
		sem <- true
	}

	for i, err := range errs {
		if err != nil {
			return fmt.Errorf("slice %d of %d: %w", i, depth, err)
		}
	}
	return nil
}
