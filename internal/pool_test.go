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

package internal

import "testing"

func TestFloat32PoolSizes(t *testing.T) {
	for _, size := range []int{1, 7, 4096} {
		arr := GetArrayOfFloat32FromPool(size)
		if len(arr) != size {
			t.Errorf("len=%d; want %d", len(arr), size)
		}
		PutArrayOfFloat32IntoPool(arr)
		again := GetArrayOfFloat32FromPool(size)
		if len(again) != size {
			t.Errorf("len after reuse=%d; want %d", len(again), size)
		}
	}
	PutArrayOfFloat32IntoPool(nil)
	ClearPools()
}
