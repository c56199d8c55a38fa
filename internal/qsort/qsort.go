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

// Package qsort provides in-place quickselect on float32 slices.
// None of the functions accept IEEE NaN values.
package qsort

// Partitions an array of float32 around the middle element and returns the split index.
// Afterwards every element of a[:index+1] is less or equal than every element of a[index+1:].
func QPartitionFloat32(a []float32) int {
	pivot := a[(len(a)-1)>>1]
	l, r := -1, len(a)
	for {
		for {
			l++
			if a[l] >= pivot {
				break
			}
		}
		for {
			r--
			if a[r] <= pivot {
				break
			}
		}
		if l >= r {
			return r
		}
		a[l], a[r] = a[r], a[l]
	}
}

// Selects the kth lowest element, for k in 1..len(a). Partially reorders the array,
// so that a[:k-1] holds no element greater and a[k:] no element less than the result.
func QSelectFloat32(a []float32, k int) float32 {
	left, right := 0, len(a)-1
	for left < right {
		index := left + QPartitionFloat32(a[left:right+1])
		offset := index - left + 1
		if k <= offset {
			right = index
		} else {
			left = index + 1
			k -= offset
		}
	}
	return a[left]
}

// Selects the median. For even lengths, returns the mean of the two middle elements.
// Partially reorders the array.
func QSelectMedianFloat32(a []float32) float32 {
	n := len(a)
	if n == 0 {
		return 0
	}
	if n&1 != 0 {
		return QSelectFloat32(a, n/2+1)
	}
	lower := QSelectFloat32(a, n/2)
	upper := a[n/2]
	for _, v := range a[n/2+1:] {
		if v < upper {
			upper = v
		}
	}
	return 0.5 * (lower + upper)
}
