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

package ops

import (
	"bytes"
	"fmt"
	"io"
	"sync"
)

// Prefixes every line written through it with an image ID, as in "3: message"
type prefixWriter struct {
	id    int
	w     io.Writer
	mu    sync.Mutex
	atBOL bool
	init  bool
}

func (p *prefixWriter) Write(b []byte) (n int, err error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if !p.init {
		p.atBOL, p.init = true, true
	}
	buf := bytes.Buffer{}
	for _, c := range b {
		if p.atBOL {
			fmt.Fprintf(&buf, "%d: ", p.id)
			p.atBOL = false
		}
		buf.WriteByte(c)
		if c == '\n' {
			p.atBOL = true
		}
	}
	if _, err := p.w.Write(buf.Bytes()); err != nil {
		return 0, err
	}
	return len(b), nil
}
