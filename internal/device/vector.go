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
	"math"
	"runtime"

	"github.com/espdev/itkcvbf/internal"
	"github.com/espdev/itkcvbf/internal/kernel"
)

// Resolution and extent of the range weight lookup table. Weights beyond the cutoff
// are below exp(-50) and taken as zero
const (
	lutBinsPerSigma = 256
	lutCutoffSigmas = 10
)

// Rows per band below which splitting the grid further does not pay off
const minBandRows = 8

// The vector device runs a single precision bilateral kernel with tabulated range weights,
// spreading horizontal bands of the grid across all cores. Its buffers live in a memory
// pool separate from the host data.
type vectorDevice struct {
	workers int
}

func init() {
	if HostFeatures().HasVectorUnits() {
		Register(NewVector(0))
	}
}

// Creates a vector device using the given number of parallel bands. Zero means one per CPU.
func NewVector(workers int) Accelerator {
	if workers <= 0 {
		workers = runtime.NumCPU()
	}
	return &vectorDevice{workers: workers}
}

func (d *vectorDevice) Name() string {
	return fmt.Sprintf("vector/%d", d.workers)
}

func (d *vectorDevice) Open() (Session, error) {
	return &vectorSession{dev: d}, nil
}

type vectorBuffer struct {
	owner  *vectorSession
	width  int
	height int
	data   []float32
}

func (b *vectorBuffer) Width() int  { return b.width }
func (b *vectorBuffer) Height() int { return b.height }

type vectorSession struct {
	dev     *vectorDevice
	closed  bool
	buffers []*vectorBuffer
}

func (s *vectorSession) alloc(width, height int) (*vectorBuffer, error) {
	if s.closed {
		return nil, ErrSessionClosed
	}
	if width <= 0 || height <= 0 {
		return nil, fmt.Errorf("%w: cannot allocate %dx%d", ErrShape, width, height)
	}
	b := &vectorBuffer{
		owner:  s,
		width:  width,
		height: height,
		data:   internal.GetArrayOfFloat32FromPool(width * height),
	}
	s.buffers = append(s.buffers, b)
	return b, nil
}

// Checks that the buffer was allocated by this session and is still live
func (s *vectorSession) own(b Buffer) (*vectorBuffer, error) {
	if s.closed {
		return nil, ErrSessionClosed
	}
	vb, ok := b.(*vectorBuffer)
	if !ok || vb.owner != s {
		return nil, ErrForeignBuffer
	}
	return vb, nil
}

func (s *vectorSession) Upload(data []float32, width int) (Buffer, error) {
	if width <= 0 || len(data) == 0 || len(data)%width != 0 {
		return nil, fmt.Errorf("%w: %d samples at width %d", ErrShape, len(data), width)
	}
	b, err := s.alloc(width, len(data)/width)
	if err != nil {
		return nil, err
	}
	copy(b.data, data)
	return b, nil
}

func (s *vectorSession) Alloc(width, height int) (Buffer, error) {
	return s.alloc(width, height)
}

func (s *vectorSession) Bilateral(dst, src Buffer, rangeSigma, domainSigma float32) error {
	d, err := s.own(dst)
	if err != nil {
		return err
	}
	sb, err := s.own(src)
	if err != nil {
		return err
	}
	if d == sb {
		return fmt.Errorf("%w: source and destination are the same buffer", ErrShape)
	}
	if d.width != sb.width || d.height != sb.height {
		return fmt.Errorf("%w: %dx%d into %dx%d", ErrShape, sb.width, sb.height, d.width, d.height)
	}
	s.dev.run(d.data, sb.data, sb.width, rangeSigma, domainSigma)
	return nil
}

func (s *vectorSession) Download(dst []float32, src Buffer) error {
	sb, err := s.own(src)
	if err != nil {
		return err
	}
	if len(dst) != sb.width*sb.height {
		return fmt.Errorf("%w: %d host samples for %dx%d", ErrShape, len(dst), sb.width, sb.height)
	}
	copy(dst, sb.data)
	return nil
}

func (s *vectorSession) Close() error {
	if s.closed {
		return nil
	}
	for _, b := range s.buffers {
		internal.PutArrayOfFloat32IntoPool(b.data)
		b.data = nil
	}
	s.buffers = nil
	s.closed = true
	return nil
}

// Filters src into dst in parallel horizontal bands
func (d *vectorDevice) run(dst, src []float32, width int, rangeSigma, domainSigma float32) {
	if kernel.IsUniform(src) {
		copy(dst, src)
		return
	}
	height := len(src) / width
	p := newPlan(rangeSigma, domainSigma, width)

	band := (height + d.workers - 1) / d.workers
	if band < minBandRows {
		band = minBandRows
	}
	sem := make(chan bool, d.workers)
	for y0 := 0; y0 < height; y0 += band {
		y1 := y0 + band
		if y1 > height {
			y1 = height
		}
		sem <- true
		go func(y0, y1 int) {
			defer func() { <-sem }()
			p.rows(dst, src, width, height, y0, y1)
		}(y0, y1)
	}
	for i := 0; i < cap(sem); i++ { // wait for goroutines to finish
		sem <- true
	}
}

// Single precision kernel for one grid width
type plan struct {
	radius int
	dx     []int
	dy     []int
	offset []int // dy*width+dx
	space  []float32
	lut    []float32
	scale  float32 // lookup table bins per unit of sample difference
}

func newPlan(rangeSigma, domainSigma float32, width int) *plan {
	k := kernel.New(rangeSigma, domainSigma)
	p := &plan{radius: k.Radius}
	for _, o := range k.Offsets {
		p.dx = append(p.dx, o.DX)
		p.dy = append(p.dy, o.DY)
		p.offset = append(p.offset, o.DY*width+o.DX)
		p.space = append(p.space, float32(o.Weight))
	}

	bins := lutBinsPerSigma * lutCutoffSigmas
	p.scale = float32(lutBinsPerSigma / k.RangeSigma)
	p.lut = make([]float32, bins+1)
	for i := range p.lut {
		delta := float64(i) / lutBinsPerSigma * k.RangeSigma
		p.lut[i] = float32(math.Exp(delta * delta * k.ColorCoeff))
	}
	return p
}

// Range weight for a sample difference, linearly interpolated from the lookup table.
// Differences beyond the cutoff, infinite or NaN, weigh zero
func (p *plan) rangeWeight(delta float32) float32 {
	if delta < 0 {
		delta = -delta
	}
	f := delta * p.scale
	last := len(p.lut) - 1
	if !(f < float32(last)) {
		return 0
	}
	i := int(f)
	frac := f - float32(i)
	return p.lut[i] + frac*(p.lut[i+1]-p.lut[i])
}

func (p *plan) rows(dst, src []float32, width, height, y0, y1 int) {
	r := p.radius
	for y := y0; y < y1; y++ {
		inner := y >= r && y < height-r
		for x := 0; x < width; x++ {
			idx := y*width + x
			c := src[idx]
			var sum, wsum float32
			if inner && x >= r && x < width-r {
				for i, off := range p.offset {
					v := src[idx+off]
					w := p.space[i] * p.rangeWeight(v-c)
					sum += w * v
					wsum += w
				}
			} else {
				for i := range p.space {
					xx := kernel.Reflect101(width, x+p.dx[i])
					yy := kernel.Reflect101(height, y+p.dy[i])
					v := src[yy*width+xx]
					w := p.space[i] * p.rangeWeight(v-c)
					sum += w * v
					wsum += w
				}
			}
			dst[idx] = sum / wsum
		}
	}
}
