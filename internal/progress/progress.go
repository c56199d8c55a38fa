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

// Package progress aggregates the completion of nested operations into one
// monotonically increasing fraction per request.
//
// Every operation reports progress as a fraction of its own work on a Scope.
// Sub-operations register child scopes owning a share of their parent's budget,
// so the global fraction does not depend on how deeply the work is nested.
package progress

import "sync"

// Receives the global completion fraction in [0,1]. Calls are serialized and
// non-decreasing for one tracker.
type Sink func(fraction float32)

// Tracks the completion of one top-level request. Safe for concurrent use
type Tracker struct {
	mu       sync.Mutex
	sink     Sink
	total    float64 // global fraction completed
	reported float32 // last value sent to the sink
	started  bool
	root     *Scope
}

// A unit of work owning a share of the global fraction
type Scope struct {
	tracker *Tracker
	parent  *Scope
	weight  float64 // share of the parent's budget
	done    float64 // local fraction completed, in [0,1]
}

// Creates a tracker reporting to the given sink, which may be nil
func NewTracker(sink Sink) *Tracker {
	t := &Tracker{sink: sink}
	t.root = &Scope{tracker: t, weight: 1}
	return t
}

// Returns the scope covering the whole request
func (t *Tracker) Root() *Scope { return t.root }

// Returns the current global fraction
func (t *Tracker) Fraction() float32 {
	t.mu.Lock()
	defer t.mu.Unlock()
	return clamp(float32(t.total))
}

// Marks the request as finished and reports exactly 1.0
func (t *Tracker) Done() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.root.done = 1
	t.total = 1
	t.publish(1)
}

// Registers a sub-operation owning the given share of this scope's work
func (s *Scope) Sub(weight float64) *Scope {
	if weight < 0 {
		weight = 0
	}
	return &Scope{tracker: s.tracker, parent: s, weight: weight}
}

// Reports the local completion of this scope. Values below an earlier report are ignored
func (s *Scope) Report(local float32) {
	t := s.tracker
	t.mu.Lock()
	defer t.mu.Unlock()

	if !t.started {
		// the first report of a request always reaches the sink, even if it is 0
		t.started = true
		if t.sink != nil {
			t.sink(clamp(float32(t.total)))
		}
	}
	s.advanceTo(float64(clamp(local)))
	t.publish(clamp(float32(t.total)))
}

// Raises the local fraction of s and propagates the weighted delta up to the root. Requires t.mu
func (s *Scope) advanceTo(local float64) {
	if local <= s.done {
		return
	}
	delta := local - s.done
	s.done = local
	for c := s; c.parent != nil && delta > 0; c = c.parent {
		p := c.parent
		next := p.done + delta*c.weight
		if next > 1 {
			next = 1
		}
		delta, p.done = next-p.done, next
	}
	s.tracker.total = s.tracker.root.done
}

// Sends v to the sink if it exceeds the last reported value. Requires t.mu
func (t *Tracker) publish(v float32) {
	if v <= t.reported {
		return
	}
	t.reported = v
	if t.sink != nil {
		t.sink(v)
	}
}

func clamp(v float32) float32 {
	if v < 0 || v != v {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
