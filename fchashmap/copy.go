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
	"errors"
	"sync/atomic"
)

// ErrReleased is returned by any operation attempted on a Copy after
// Release has already been called on it.
var ErrReleased = errors.New("fchashmap: copy already released")

// ErrImmutable is returned by Put/Remove/GetForModify on a Copy that has
// been frozen by a later call to Copy.Copy.
var ErrImmutable = errors.New("fchashmap: copy is immutable")

// Copy is one versioned, fast-copyable view of a map. A freshly created
// family has a single mutable Copy at version 0; calling (*Copy).Copy
// freezes the receiver and returns a new mutable Copy at version+1,
// sharing the same underlying family (spec §3, §4.5).
type Copy[K comparable, V any] struct {
	family  *family[K, V]
	version int64

	mutable  atomic.Bool
	released atomic.Bool
}

// New creates a brand-new, empty, mutable map at version 0.
// maxGCQueueSize is a soft warning threshold on the number of pending GC
// events (spec §6's fchashmap.max_gc_queue_size); 0 disables the warning.
func New[K comparable, V any](maxGCQueueSize int, opts ...Option[K, V]) *Copy[K, V] {
	f := newFamily[K, V](maxGCQueueSize)
	for _, opt := range opts {
		opt(f)
	}
	c := &Copy[K, V]{family: f, version: 0}
	c.mutable.Store(true)
	f.registerCopy(c)
	return c
}

// Version returns the version this Copy is pinned to.
func (c *Copy[K, V]) Version() int64 { return c.version }

// IsMutable reports whether writes are still permitted on this Copy.
func (c *Copy[K, V]) IsMutable() bool { return c.mutable.Load() }

// Get returns the value associated with k as of this Copy's version.
func (c *Copy[K, V]) Get(k K) (V, bool) {
	var zero V
	raw, ok := c.family.index.Load(k)
	if !ok {
		return zero, false
	}
	m := raw.(*chain[V]).at(c.version)
	if m == nil || m.value == nil {
		return zero, false
	}
	return *m.value, true
}

// Contains reports whether k has a live (non-deleted) value as of this
// Copy's version.
func (c *Copy[K, V]) Contains(k K) bool {
	_, ok := c.Get(k)
	return ok
}

// Put associates k with v as of this Copy's version, returning whatever
// value k previously held at this version. Only a mutable Copy may Put.
func (c *Copy[K, V]) Put(k K, v V) (V, bool, error) {
	var zero V
	if err := c.checkWritable(); err != nil {
		return zero, false, err
	}
	prev := c.family.recordWrite(k, c.version, &v)
	if prev == nil {
		return zero, false, nil
	}
	return *prev, true, nil
}

// Remove deletes k as of this Copy's version (by appending a tombstone
// mutation), returning whatever value k previously held at this version.
// Only a mutable Copy may Remove.
func (c *Copy[K, V]) Remove(k K) (V, bool, error) {
	var zero V
	if err := c.checkWritable(); err != nil {
		return zero, false, err
	}
	prev := c.family.recordWrite(k, c.version, nil)
	if prev == nil {
		return zero, false, nil
	}
	return *prev, true, nil
}

// ModifyResult is the outcome of GetForModify: the caller's clone of the
// current value (or the zero value, if absent), and whether k already
// existed.
type ModifyResult[V any] struct {
	Value   V
	Existed bool
}

// GetForModify returns a clone of k's current value (via the supplied
// clone function) suitable for in-place mutation by the caller, who is
// then expected to Put the modified clone back. clone is never called
// with a zero value when Existed is false -- callers should treat the
// zero ModifyResult.Value as a fresh value to populate.
func (c *Copy[K, V]) GetForModify(k K, clone func(V) V) (ModifyResult[V], error) {
	if err := c.checkWritable(); err != nil {
		return ModifyResult[V]{}, err
	}
	v, ok := c.Get(k)
	if !ok {
		return ModifyResult[V]{}, nil
	}
	return ModifyResult[V]{Value: clone(v), Existed: true}, nil
}

// Size returns the family's live key count as of the most recent write
// (an approximation shared across every Copy in the family, maintained
// by atomic increment/decrement on Put/Remove transitions -- spec §4.5
// leaves its exact scope to the implementation).
func (c *Copy[K, V]) Size() int64 {
	return c.family.size.Load()
}

// Copy freezes the receiver (no further Put/Remove/GetForModify) and
// returns a new mutable Copy one version ahead, sharing the same family.
func (c *Copy[K, V]) Copy() (*Copy[K, V], error) {
	if c.released.Load() {
		return nil, ErrReleased
	}
	c.mutable.Store(false)
	next := &Copy[K, V]{family: c.family, version: c.version + 1}
	next.mutable.Store(true)
	c.family.registerCopy(next)
	return next, nil
}

// Release retires this Copy and then runs the family's collector on the
// calling goroutine; there is no background collection worker. The pass
// is skipped if another pass is already running. It prunes mutations
// only once every Copy created before this one has also been released.
func (c *Copy[K, V]) Release() error {
	if !c.released.CompareAndSwap(false, true) {
		return ErrReleased
	}
	c.family.tryCollect()
	return nil
}

// Entries visits every (key, value) pair live as of this Copy's version,
// stopping early if fn returns false. Iteration order is unspecified.
func (c *Copy[K, V]) Entries(fn func(k K, v V) bool) {
	c.family.index.Range(func(key, value any) bool {
		m := value.(*chain[V]).at(c.version)
		if m == nil || m.value == nil {
			return true
		}
		return fn(key.(K), *m.value)
	})
}

func (c *Copy[K, V]) checkWritable() error {
	if c.released.Load() {
		return ErrReleased
	}
	if !c.mutable.Load() {
		return ErrImmutable
	}
	return nil
}
