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

// Package bilateral filters 2, 3 and 4 dimensional volumes with an edge preserving
// bilateral filter.
//
// Volumes of more than two axes are decomposed along their highest axis into 2D slices,
// which are filtered independently, either on an accelerator or on the host CPU. An optional
// second correction pass with its own sigmas is run over the result of the first pass.
package bilateral

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"
)

var ErrInvalidSigma = errors.New("invalid sigma")

// Parameters of a bilateral filter request
type Params struct {
	RangeSigma      float32 `json:"rangeSigma"      yaml:"range_sigma"`
	DomainSigma     float32 `json:"domainSigma"     yaml:"domain_sigma"`
	Correction      bool    `json:"correction"      yaml:"correction"`
	CorrRangeSigma  float32 `json:"corrRangeSigma"  yaml:"corr_range_sigma"`
	CorrDomainSigma float32 `json:"corrDomainSigma" yaml:"corr_domain_sigma"`
	CPUForce        bool    `json:"cpuForce"        yaml:"cpu_force"`

	Workers  int  `json:"workers"  yaml:"workers"`  // parallel slices at the top level; <=1 is sequential
	Fallback bool `json:"fallback" yaml:"fallback"` // retry failed accelerator runs on the CPU
}

func DefaultParams() Params {
	return Params{
		RangeSigma:      10,
		DomainSigma:     5,
		Correction:      false,
		CorrRangeSigma:  8,
		CorrDomainSigma: 2,
		CPUForce:        false,
		Workers:         1,
		Fallback:        false,
	}
}

// Unmarshal the type from JSON with default values for missing entries
func (p *Params) UnmarshalJSON(data []byte) error {
	type defaults Params
	def := defaults(DefaultParams())
	if err := json.Unmarshal(data, &def); err != nil {
		return err
	}
	*p = Params(def)
	return nil
}

// Checks sigmas for negative, infinite or NaN values. Zero sigmas are valid and act as 1.
func (p Params) Validate() error {
	sigmas := []struct {
		name  string
		value float32
	}{
		{"range sigma", p.RangeSigma},
		{"domain sigma", p.DomainSigma},
		{"correction range sigma", p.CorrRangeSigma},
		{"correction domain sigma", p.CorrDomainSigma},
	}
	for _, s := range sigmas {
		v := float64(s.value)
		if v < 0 || math.IsNaN(v) || math.IsInf(v, 0) {
			return fmt.Errorf("%w: %s %g", ErrInvalidSigma, s.name, s.value)
		}
	}
	return nil
}

func (p Params) String() string {
	s := fmt.Sprintf("range sigma %g, domain sigma %g", p.RangeSigma, p.DomainSigma)
	if p.Correction {
		s += fmt.Sprintf(", correction range sigma %g, domain sigma %g", p.CorrRangeSigma, p.CorrDomainSigma)
	}
	if p.CPUForce {
		s += ", CPU forced"
	}
	return s
}
