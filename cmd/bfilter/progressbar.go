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

package main

import (
	"fmt"
	"io"
	"strings"
	"sync"

	"github.com/espdev/itkcvbf/internal/progress"
)

// Returns a sink drawing a text progress bar of the given width onto w.
// Redraws only when the percentage changes, and ends the line at 100%
func newProgressBar(w io.Writer, width int) progress.Sink {
	var mu sync.Mutex
	last := -1
	return func(fraction float32) {
		mu.Lock()
		defer mu.Unlock()
		percent := int(fraction * 100)
		if percent == last {
			return
		}
		last = percent
		filled := int(fraction * float32(width))
		if filled > width {
			filled = width
		}
		fmt.Fprintf(w, "\r[%s%s] %3d%%", strings.Repeat("#", filled), strings.Repeat(".", width-filled), percent)
		if percent >= 100 {
			fmt.Fprintln(w)
		}
	}
}
