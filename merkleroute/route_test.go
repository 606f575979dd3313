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

package merkleroute

import (
	"testing"

	"github.com/google/go-cmp/cmp"
)

func TestBinaryRouteExtension(t *testing.T) {
	r := Empty()
	for _, step := range []int64{3, 0, 1, 0, 5} {
		var err error
		r, err = r.Extend(step)
		if err != nil {
			t.Fatalf("Extend(%d): %v", step, err)
		}
	}

	var got []int64
	r.Iter(func(step int64) bool {
		got = append(got, step)
		return true
	})
	want := []int64{3, 0, 1, 0, 5}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("iteration diff (-want +got):\n%s", diff)
	}

	words, err := Encode(r, BinaryCompressed)
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}
	if len(words) > 2 {
		t.Errorf("BinaryCompressed encoding used %d words, want <= 2", len(words))
	}

	back, err := Decode(words, BinaryCompressed)
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if diff := cmp.Diff(r.Steps(), back.Steps()); diff != "" {
		t.Errorf("round-trip diff (-want +got):\n%s", diff)
	}
}

func TestExtendNegativeStep(t *testing.T) {
	if _, err := Empty().Extend(-1); err == nil {
		t.Fatal("Extend(-1) succeeded, want error")
	}
}

func TestCompareTotalPreOrder(t *testing.T) {
	left, _ := New(0)
	right, _ := New(1)
	if got := Compare(left, right); got != -1 {
		t.Errorf("Compare(left, right) = %d, want -1", got)
	}
	if got := Compare(right, left); got != 1 {
		t.Errorf("Compare(right, left) = %d, want 1", got)
	}

	root := Empty()
	descendant, _ := New(0, 1, 2)
	if got := Compare(root, descendant); got != 0 {
		t.Errorf("Compare(ancestor, descendant) = %d, want 0 (collapsed)", got)
	}
	if got := Compare(descendant, root); got != 0 {
		t.Errorf("Compare(descendant, ancestor) = %d, want 0 (collapsed)", got)
	}

	same, _ := New(4, 5)
	same2, _ := New(4, 5)
	if got := Compare(same, same2); got != 0 {
		t.Errorf("Compare(equal, equal) = %d, want 0", got)
	}
}

func TestWordCapacityBoundary(t *testing.T) {
	steps := make([]int64, runWordCapacity+1)
	for i := range steps {
		steps[i] = int64(i % 2)
	}
	r, err := New(steps...)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	words, err := Encode(r, BinaryCompressed)
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}
	if len(words) != 2 {
		t.Fatalf("got %d words for %d steps, want exactly 2 (boundary spills into a new word)", len(words), len(steps))
	}
	back, err := Decode(words, BinaryCompressed)
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if diff := cmp.Diff(steps, back.Steps()); diff != "" {
		t.Errorf("round trip lost data across the word boundary (-want +got):\n%s", diff)
	}
}

func TestZeroWordIsIllegal(t *testing.T) {
	if _, err := Decode([]uint32{0}, BinaryCompressed); err == nil {
		t.Fatal("Decode accepted a zero-capacity word, want error")
	}
}

func TestUncompressedRoundTrip(t *testing.T) {
	r, err := New(3, 0, 1, 0, 5)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	words, err := Encode(r, Uncompressed)
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}
	if len(words) != r.Len() {
		t.Fatalf("Uncompressed encoding used %d words for %d steps, want 1:1", len(words), r.Len())
	}
	back, err := Decode(words, Uncompressed)
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if diff := cmp.Diff(r.Steps(), back.Steps()); diff != "" {
		t.Errorf("round-trip diff (-want +got):\n%s", diff)
	}
}

type fakeNode struct {
	leaf     bool
	children []*fakeNode
}

func (f *fakeNode) IsLeaf() bool      { return f.leaf }
func (f *fakeNode) NumChildren() int  { return len(f.children) }
func (f *fakeNode) ChildAt(i int) (Routable, bool) {
	if i < 0 || i >= len(f.children) || f.children[i] == nil {
		return nil, false
	}
	return f.children[i], true
}

func TestGetNodeAtRoundTripsRoute(t *testing.T) {
	leaf := &fakeNode{leaf: true}
	mid := &fakeNode{children: []*fakeNode{nil, leaf}}
	root := &fakeNode{children: []*fakeNode{mid}}

	route, _ := New(0, 1)
	got, err := GetNodeAt(root, route)
	if err != nil {
		t.Fatalf("GetNodeAt: %v", err)
	}
	if got != Routable(leaf) {
		t.Fatalf("GetNodeAt returned the wrong node")
	}
}

func TestGetNodeAtFailsThroughLeaf(t *testing.T) {
	leaf := &fakeNode{leaf: true}
	root := &fakeNode{children: []*fakeNode{leaf}}
	route, _ := New(0, 0)
	if _, err := GetNodeAt(root, route); err == nil {
		t.Fatal("GetNodeAt walked through a leaf, want ErrRouteWalk")
	}
}

func TestGetNodeAtFailsOutOfBounds(t *testing.T) {
	root := &fakeNode{children: []*fakeNode{{leaf: true}}}
	route, _ := New(5)
	if _, err := GetNodeAt(root, route); err == nil {
		t.Fatal("GetNodeAt accepted an out-of-bounds step, want ErrRouteWalk")
	}
}
