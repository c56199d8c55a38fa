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

package device

import (
	"fmt"
	"runtime"
	"strings"

	"github.com/klauspost/cpuid"
	"golang.org/x/sys/cpu"
)

// Vector capabilities of the host processor
type Features struct {
	Brand         string
	Arch          string
	LogicalCores  int
	PhysicalCores int
	AVX2          bool
	AVX512F       bool
	FMA3          bool
	ASIMD         bool
}

// Probes the host processor
func HostFeatures() Features {
	f := Features{
		Brand:         cpuid.CPU.BrandName,
		Arch:          runtime.GOARCH,
		LogicalCores:  cpuid.CPU.LogicalCores,
		PhysicalCores: cpuid.CPU.PhysicalCores,
		AVX2:          cpuid.CPU.AVX2(),
		AVX512F:       cpuid.CPU.AVX512F(),
		FMA3:          cpuid.CPU.FMA3(),
		ASIMD:         runtime.GOARCH == "arm64" && cpu.ARM64.HasASIMD,
	}
	if f.LogicalCores <= 0 {
		f.LogicalCores = runtime.NumCPU()
	}
	if f.Brand == "" {
		f.Brand = "unknown " + runtime.GOARCH + " processor"
	}
	return f
}

// Returns true if the host has wide enough vector units to host the vector device
func (f Features) HasVectorUnits() bool {
	return f.AVX2 || f.AVX512F || f.ASIMD
}

func (f Features) String() string {
	var ext []string
	if f.AVX2 {
		ext = append(ext, "AVX2")
	}
	if f.AVX512F {
		ext = append(ext, "AVX512F")
	}
	if f.FMA3 {
		ext = append(ext, "FMA3")
	}
	if f.ASIMD {
		ext = append(ext, "ASIMD")
	}
	if len(ext) == 0 {
		ext = append(ext, "none")
	}
	return fmt.Sprintf("%s (%s), %d logical cores, %d physical cores, vector extensions: %s",
		f.Brand, f.Arch, f.LogicalCores, f.PhysicalCores, strings.Join(ext, " "))
}
