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

import (
	"runtime"
	"sync"
)

// Pool of constant sized arrays of given element type, to reduce memory allocation overhead
type sizedPool[T any] struct {
	sync.RWMutex
	m map[int]*sync.Pool
}

func newSizedPool[T any]() *sizedPool[T] {
	return &sizedPool[T]{m: make(map[int]*sync.Pool)}
}

// Returns the pool for arrays of the given size
func (p *sizedPool[T]) get(size int) *sync.Pool {
	p.RLock()
	pool := p.m[size]
	p.RUnlock()
	if pool == nil {
		pool = &sync.Pool{
			New: func() interface{} {
				return make([]T, size)
			},
		}
		p.Lock()
		if existing := p.m[size]; existing != nil {
			pool = existing
		} else {
			p.m[size] = pool
		}
		p.Unlock()
	}
	return pool
}

var poolFloat32 = newSizedPool[float32]()

// Clears all memory pools and triggers garbage collection
func ClearPools() {
	poolFloat32.Lock()
	poolFloat32.m = make(map[int]*sync.Pool)
	poolFloat32.Unlock()
	runtime.GC()
}

// Retrieves an array of given size from pool. Contents are undefined
func GetArrayOfFloat32FromPool(size int) []float32 {
	res := poolFloat32.get(size).Get().([]float32)
	if size > 10000000 {
		logMemStats("get", size)
	}
	return res
}

// Returns an array to the pool
func PutArrayOfFloat32IntoPool(arr []float32) {
	if cap(arr) == 0 {
		return
	}
	poolFloat32.get(cap(arr)).Put(arr[:cap(arr)])
	if cap(arr) > 10000000 {
		logMemStats("put", cap(arr))
	}
}

func logMemStats(op string, size int) {
	m := runtime.MemStats{}
	runtime.ReadMemStats(&m)
	LogPrintf("%s  %d %d alloc %d totalAlloc %d sys %d (all MiB)\n", op, size, (size*4)/1024/1024, m.Alloc/1024/1024, m.TotalAlloc/1024/1024, m.Sys/1024/1024)
}
