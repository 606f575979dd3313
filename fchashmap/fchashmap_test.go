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

package fchashmap

import (
	"testing"

	"github.com/golang/mock/gomock"
)

func TestPutGetContainsOnSingleCopy(t *testing.T) {
	c := New[string, int](0)
	if _, ok := c.Get("a"); ok {
		t.Fatal("fresh map should not contain \"a\"")
	}
	if _, _, err := c.Put("a", 1); err != nil {
		t.Fatalf("Put: %v", err)
	}
	v, ok := c.Get("a")
	if !ok || v != 1 {
		t.Fatalf("Get(a) = %v, %v, want 1, true", v, ok)
	}
	if !c.Contains("a") {
		t.Fatal("Contains(a) should be true after Put")
	}
}

func TestPutReturnsPreviousValue(t *testing.T) {
	c := New[string, int](0)
	c.Put("a", 1)
	prev, existed, err := c.Put("a", 2)
	if err != nil {
		t.Fatalf("Put: %v", err)
	}
	if !existed || prev != 1 {
		t.Fatalf("Put previous = %v, %v, want 1, true", prev, existed)
	}
}

func TestRemoveTombstonesAndContainsFalse(t *testing.T) {
	c := New[string, int](0)
	c.Put("a", 1)
	prev, existed, err := c.Remove("a")
	if err != nil {
		t.Fatalf("Remove: %v", err)
	}
	if !existed || prev != 1 {
		t.Fatalf("Remove previous = %v, %v, want 1, true", prev, existed)
	}
	if c.Contains("a") {
		t.Fatal("Contains(a) should be false after Remove")
	}
}

func TestCopyIsFrozenAndNewCopyIsMutable(t *testing.T) {
	c0 := New[string, int](0)
	c0.Put("a", 1)

	c1, err := c0.Copy()
	if err != nil {
		t.Fatalf("Copy: %v", err)
	}
	if c0.IsMutable() {
		t.Fatal("c0 should be frozen after Copy()")
	}
	if !c1.IsMutable() {
		t.Fatal("c1 should be mutable")
	}
	if _, _, err := c0.Put("b", 2); err != ErrImmutable {
		t.Fatalf("Put on frozen copy err = %v, want ErrImmutable", err)
	}
	if c1.Version() != c0.Version()+1 {
		t.Fatalf("c1.Version() = %d, want %d", c1.Version(), c0.Version()+1)
	}
}

func TestPutAcrossVersionsReturnsTruePreviousValue(t *testing.T) {
	c0 := New[string, int](0)
	if _, existed, err := c0.Put("a", 1); err != nil || existed {
		t.Fatalf("first Put(a) = existed %v, err %v, want false, nil", existed, err)
	}
	c1, _ := c0.Copy()
	prev, existed, err := c1.Put("a", 2)
	if err != nil {
		t.Fatalf("Put: %v", err)
	}
	if !existed || prev != 1 {
		t.Fatalf("cross-version Put previous = %v, %v, want 1, true", prev, existed)
	}
}

func TestRemoveAcrossVersionsReturnsTruePreviousValue(t *testing.T) {
	c0 := New[string, int](0)
	c0.Put("a", 1)
	c1, _ := c0.Copy()
	prev, existed, err := c1.Remove("a")
	if err != nil {
		t.Fatalf("Remove: %v", err)
	}
	if !existed || prev != 1 {
		t.Fatalf("cross-version Remove previous = %v, %v, want 1, true", prev, existed)
	}
}

func TestSizeTracksCrossVersionPutAndRemove(t *testing.T) {
	c0 := New[string, int](0)
	c0.Put("a", 1)
	if got := c0.Size(); got != 1 {
		t.Fatalf("Size after first Put = %d, want 1", got)
	}
	c1, _ := c0.Copy()
	c1.Put("b", 2)
	if got := c1.Size(); got != 2 {
		t.Fatalf("Size after second key in new copy = %d, want 2", got)
	}
	c1.Remove("a")
	if got := c1.Size(); got != 1 {
		t.Fatalf("Size after cross-version Remove = %d, want 1", got)
	}
}

func TestOlderCopySeesPreImageAfterNewerWrite(t *testing.T) {
	c0 := New[string, int](0)
	c0.Put("a", 1)
	c1, _ := c0.Copy()
	c1.Put("a", 99)

	v, ok := c0.Get("a")
	if !ok || v != 1 {
		t.Fatalf("c0.Get(a) after c1's write = %v, %v, want 1, true", v, ok)
	}
	v, ok = c1.Get("a")
	if !ok || v != 99 {
		t.Fatalf("c1.Get(a) = %v, %v, want 99, true", v, ok)
	}
}

func TestReleaseOnImmutableRetiresOnly(t *testing.T) {
	c0 := New[string, int](0)
	c1, _ := c0.Copy()
	if err := c0.Release(); err != nil {
		t.Fatalf("Release: %v", err)
	}
	if err := c0.Release(); err != ErrReleased {
		t.Fatalf("second Release err = %v, want ErrReleased", err)
	}
	if _, _, err := c1.Put("x", 1); err != nil {
		t.Fatalf("Put on still-live copy: %v", err)
	}
}

// TestGCPrunesOnceOlderCopyRetires reproduces the two-copy garbage
// collection scenario: c0 writes a and b, c1 supersedes a and tombstones
// b, and only once c0 is released does the collector prune the
// now-unreachable version-0 mutations.
func TestGCPrunesOnceOlderCopyRetires(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()
	obs := NewMockGCObserver(ctrl)
	obs.EXPECT().OnPrune("a", int64(0)).Times(1)
	obs.EXPECT().OnPrune("b", int64(0)).Times(1)

	c0 := New[string, int](0, WithObserver[string, int](obs))
	c0.Put("a", 1)
	c0.Put("b", 2)

	c1, _ := c0.Copy()
	c1.Put("a", 3)
	c1.Remove("b")

	if err := c0.Release(); err != nil {
		t.Fatalf("Release c0: %v", err)
	}

	v, ok := c1.Get("a")
	if !ok || v != 3 {
		t.Fatalf("c1.Get(a) after GC = %v, %v, want 3, true", v, ok)
	}
	if c1.Contains("b") {
		t.Fatal("c1.Contains(b) should remain false after GC")
	}
}

func TestGCDoesNotFireWhileNewerCopyStillLive(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()
	obs := NewMockGCObserver(ctrl)
	obs.EXPECT().OnPrune(gomock.Any(), gomock.Any()).Times(0)

	c0 := New[string, int](0, WithObserver[string, int](obs))
	c0.Put("a", 1)
	c1, _ := c0.Copy()
	c1.Put("a", 2)
	_, _ = c0, c1
	// Neither copy has been released yet, so no event should drain.
}

func TestGetForModifyClonesAndRequiresMutable(t *testing.T) {
	type payload struct{ items []int }
	clone := func(p payload) payload {
		cp := make([]int, len(p.items))
		copy(cp, p.items)
		return payload{items: cp}
	}

	c := New[string, payload](0)
	c.Put("k", payload{items: []int{1, 2}})

	res, err := c.GetForModify("k", clone)
	if err != nil {
		t.Fatalf("GetForModify: %v", err)
	}
	if !res.Existed {
		t.Fatal("GetForModify should report Existed for a present key")
	}
	res.Value.items[0] = 99
	orig, _ := c.Get("k")
	if orig.items[0] == 99 {
		t.Fatal("GetForModify should return an independent clone, not an alias")
	}

	// Copy freezes its receiver c and returns a new mutable copy.
	if _, err := c.Copy(); err != nil {
		t.Fatalf("Copy: %v", err)
	}
	if _, err := c.GetForModify("k", clone); err != ErrImmutable {
		t.Fatalf("GetForModify on frozen copy err = %v, want ErrImmutable", err)
	}
}

func TestEntriesVisitsLiveKeysAtVersion(t *testing.T) {
	c0 := New[string, int](0)
	c0.Put("a", 1)
	c0.Put("b", 2)
	c1, _ := c0.Copy()
	c1.Remove("b")
	c1.Put("c", 3)

	seen := map[string]int{}
	c1.Entries(func(k string, v int) bool {
		seen[k] = v
		return true
	})
	if len(seen) != 2 || seen["a"] != 1 || seen["c"] != 3 {
		t.Fatalf("Entries on c1 = %v, want {a:1 c:3}", seen)
	}

	seen0 := map[string]int{}
	c0.Entries(func(k string, v int) bool {
		seen0[k] = v
		return true
	})
	if len(seen0) != 2 || seen0["a"] != 1 || seen0["b"] != 2 {
		t.Fatalf("Entries on c0 = %v, want {a:1 b:2}", seen0)
	}
}

func TestEntriesEarlyStop(t *testing.T) {
	c := New[string, int](0)
	c.Put("a", 1)
	c.Put("b", 2)
	c.Put("c", 3)

	count := 0
	c.Entries(func(k string, v int) bool {
		count++
		return false
	})
	if count != 1 {
		t.Fatalf("Entries visited %d keys, want exactly 1 after returning false", count)
	}
}
