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

// Package device abstracts compute accelerators for the 2D bilateral primitive.
//
// An accelerator owns its own memory. Samples are uploaded into device buffers, filtered
// there, and downloaded again. Buffers belong to the session that created them and are
// released when the session is closed.
package device

import (
	"errors"
	"os"
	"sync"
)

// Environment variable which hides all accelerators if set to a non-empty value other than "0"
const EnvNoAccel = "BFILTER_NO_ACCEL"

var (
	ErrSessionClosed = errors.New("device session closed")
	ErrForeignBuffer = errors.New("buffer belongs to another session")
	ErrShape         = errors.New("buffer shape mismatch")
)

// A 2D sample grid resident in device memory
type Buffer interface {
	Width() int
	Height() int
}

// An open connection to an accelerator. Sessions are not safe for concurrent use.
type Session interface {
	// Copies a row-major host grid of given width into a new device buffer
	Upload(data []float32, width int) (Buffer, error)

	// Allocates an uninitialized device buffer
	Alloc(width, height int) (Buffer, error)

	// Runs one bilateral pass from src into dst, which must have the same shape
	Bilateral(dst, src Buffer, rangeSigma, domainSigma float32) error

	// Copies a device buffer back into host memory of matching size
	Download(dst []float32, src Buffer) error

	// Releases all buffers of the session
	Close() error
}

// A compute device capable of running the bilateral primitive
type Accelerator interface {
	Name() string
	Open() (Session, error)
}

var registryMu sync.RWMutex
var registry []Accelerator

// Registers an accelerator. Later registrations are listed after earlier ones.
func Register(a Accelerator) {
	registryMu.Lock()
	registry = append(registry, a)
	registryMu.Unlock()
}

// Removes all registered accelerators and returns the previous list, so tests can restore it
func Reset() []Accelerator {
	registryMu.Lock()
	prev := registry
	registry = nil
	registryMu.Unlock()
	return prev
}

// Restores a list of accelerators returned by Reset
func Restore(list []Accelerator) {
	registryMu.Lock()
	registry = list
	registryMu.Unlock()
}

// Returns the usable accelerators, in registration order
func Devices() []Accelerator {
	if Disabled() {
		return nil
	}
	registryMu.RLock()
	defer registryMu.RUnlock()
	res := make([]Accelerator, len(registry))
	copy(res, registry)
	return res
}

// Returns the number of usable accelerators
func Count() int {
	return len(Devices())
}

// Returns the first usable accelerator, or nil if there is none
func Default() Accelerator {
	devs := Devices()
	if len(devs) == 0 {
		return nil
	}
	return devs[0]
}

// Returns true if accelerators are disabled through the environment
func Disabled() bool {
	v := os.Getenv(EnvNoAccel)
	return v != "" && v != "0"
}
