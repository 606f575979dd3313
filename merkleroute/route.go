// Copyright 2016 Google Inc. All Rights Reserved.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package merkleroute addresses a node within a merkle tree as an ordered
// sequence of child-indices from the root. A Route is an immutable value;
// Extend always returns a new Route rather than mutating the receiver.
package merkleroute

import (
	"errors"
	"fmt"
)

// ErrNegativeStep is returned when Extend is called with a negative step.
var ErrNegativeStep = errors.New("merkleroute: step must be >= 0")

// Route is an immutable path from a tree's root to one of its nodes,
// expressed as a sequence of non-negative child indices.
type Route struct {
	steps []int64
}

// Empty returns the route of length zero, i.e. the root's own route.
func Empty() Route {
	return Route{}
}

// New builds a route directly from a sequence of steps, failing with
// ErrNegativeStep if any step is negative.
func New(steps ...int64) (Route, error) {
	for _, s := range steps {
		if s < 0 {
			return Route{}, ErrNegativeStep
		}
	}
	cp := append([]int64(nil), steps...)
	return Route{steps: cp}, nil
}

// Len returns the number of steps in the route.
func (r Route) Len() int {
	return len(r.steps)
}

// Extend returns a new route equal to r with step appended. It fails with
// ErrNegativeStep if step is negative.
func (r Route) Extend(step int64) (Route, error) {
	if step < 0 {
		return Route{}, fmt.Errorf("merkleroute: extend %v with step %d: %w", r, step, ErrNegativeStep)
	}
	next := make([]int64, len(r.steps)+1)
	copy(next, r.steps)
	next[len(r.steps)] = step
	return Route{steps: next}, nil
}

// Steps returns the route's steps in root-to-node order. The returned slice
// is a copy; callers may not mutate the route through it.
func (r Route) Steps() []int64 {
	return append([]int64(nil), r.steps...)
}

// Iter calls fn for every step in the route, in root-to-node order. It stops
// early if fn returns false.
func (r Route) Iter(fn func(step int64) bool) {
	for _, s := range r.steps {
		if !fn(s) {
			return
		}
	}
}

// String renders the route as e.g. "[3 0 1 0 5]" for the steps of the
// scenario in spec §8.1.
func (r Route) String() string {
	return fmt.Sprint(r.steps)
}

// Compare implements the total pre-order from spec §3: strict left of b is
// -1, strict right is +1, and an ancestor/descendant/equal relationship
// collapses to 0.
func Compare(a, b Route) int {
	n := len(a.steps)
	if len(b.steps) < n {
		n = len(b.steps)
	}
	for i := 0; i < n; i++ {
		if a.steps[i] < b.steps[i] {
			return -1
		}
		if a.steps[i] > b.steps[i] {
			return 1
		}
	}
	// Common prefix exhausted: one is an ancestor of the other, or they are
	// equal. Both collapse to 0 per spec.
	return 0
}

// Routable is the minimal navigation capability Nodes walked by GetNodeAt
// must implement. It is satisfied by merkletree.Node.
type Routable interface {
	IsLeaf() bool
	NumChildren() int
	ChildAt(i int) (Routable, bool)
}

// ErrRouteWalk is returned by GetNodeAt when the route cannot be followed
// to completion.
var ErrRouteWalk = errors.New("merkleroute: cannot walk route")

// GetNodeAt walks from root along route and returns the node it addresses.
// It fails with ErrRouteWalk if any intermediate node is nil, is a leaf, or
// has fewer children than the next step demands.
func GetNodeAt(root Routable, route Route) (Routable, error) {
	cur := root
	for i, step := range route.steps {
		if cur == nil {
			return nil, fmt.Errorf("merkleroute: nil node at step %d of %v: %w", i, route, ErrRouteWalk)
		}
		if cur.IsLeaf() {
			return nil, fmt.Errorf("merkleroute: leaf encountered mid-walk at step %d of %v: %w", i, route, ErrRouteWalk)
		}
		if step < 0 || int(step) >= cur.NumChildren() {
			return nil, fmt.Errorf("merkleroute: step %d out of bounds (%d children) in %v: %w", step, cur.NumChildren(), route, ErrRouteWalk)
		}
		child, ok := cur.ChildAt(int(step))
		if !ok {
			return nil, fmt.Errorf("merkleroute: missing child at step %d of %v: %w", i, route, ErrRouteWalk)
		}
		cur = child
	}
	if cur == nil {
		return nil, fmt.Errorf("merkleroute: nil node at end of %v: %w", route, ErrRouteWalk)
	}
	return cur, nil
}
