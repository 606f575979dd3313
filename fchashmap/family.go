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
	"container/list"
	"sync"
	"sync/atomic"

	"github.com/golang/glog"
)

// gcEvent records that, once the copy at this event's version (and by FIFO
// ordering everything copied before it) has been released, the chain at
// key may be pruned of any mutation with version <= this event's version.
// A write at version v queues its event at version v-1 (spec §4.5).
type gcEvent[K comparable] struct {
	key     K
	version int64
}

// family is the state shared by every Copy produced from a single root:
// the keyed index of mutation chains, the FIFO of copies in creation
// order, and the pending GC events those copies' writes have queued up.
type family[K comparable, V any] struct {
	index sync.Map // K -> *chain[V]

	copiesMu sync.Mutex
	copies   *list.List // *Copy[K,V], oldest (lowest version) at Front

	eventsMu sync.Mutex
	events   *list.List // gcEvent[K]

	gcLocked atomic.Bool // best-effort, non-blocking prune lock

	size atomic.Int64

	maxGCQueueSize int
	warnedOverflow atomic.Bool

	observer GCObserver[K]
}

func newFamily[K comparable, V any](maxGCQueueSize int) *family[K, V] {
	return &family[K, V]{
		copies:         list.New(),
		events:         list.New(),
		maxGCQueueSize: maxGCQueueSize,
	}
}

func (f *family[K, V]) chainFor(k K) *chain[V] {
	if c, ok := f.index.Load(k); ok {
		return c.(*chain[V])
	}
	c, _ := f.index.LoadOrStore(k, &chain[V]{})
	return c.(*chain[V])
}

// recordWrite appends a new mutation to key k's chain at version v,
// returning the value the chain held for v immediately beforehand (for
// put/remove's "previous value" return). An in-place update -- the chain's
// current head is already at version v -- replaces that head without
// queuing a GC event, since nothing older has been superseded.
func (f *family[K, V]) recordWrite(k K, v int64, value *V) *V {
	c := f.chainFor(k)
	for {
		old := c.head.Load()
		if old != nil && old.version == v {
			replacement := &mutation[V]{version: v, value: value}
			replacement.previous.Store(old.previous.Load())
			if c.head.CompareAndSwap(old, replacement) {
				f.adjustSize(old.value, value)
				return old.value
			}
			continue
		}

		next := &mutation[V]{version: v, value: value}
		next.previous.Store(old)
		if c.head.CompareAndSwap(old, next) {
			var prevVal *V
			if old != nil {
				prevVal = old.value
			}
			f.queueGCEvent(k, v-1)
			f.adjustSize(prevVal, value)
			return prevVal
		}
	}
}

func (f *family[K, V]) adjustSize(oldVal, newVal *V) {
	switch {
	case oldVal == nil && newVal != nil:
		f.size.Add(1)
	case oldVal != nil && newVal == nil:
		f.size.Add(-1)
	}
}

func (f *family[K, V]) queueGCEvent(k K, version int64) {
	f.eventsMu.Lock()
	f.events.PushBack(gcEvent[K]{key: k, version: version})
	n := f.events.Len()
	f.eventsMu.Unlock()

	if f.maxGCQueueSize > 0 && n > f.maxGCQueueSize && f.warnedOverflow.CompareAndSwap(false, true) {
		glog.Warningf("fchashmap: pending GC event queue (%d) exceeds max_gc_queue_size (%d)", n, f.maxGCQueueSize)
	}
}

func (f *family[K, V]) registerCopy(c *Copy[K, V]) {
	f.copiesMu.Lock()
	f.copies.PushBack(c)
	f.copiesMu.Unlock()
}

// tryCollect runs the best-effort pruning pass (spec §4.5): walk the
// copies FIFO from the front, stopping at the first copy that has not
// been released, draining and applying every queued GC event whose
// version is now safe to act on.
func (f *family[K, V]) tryCollect() {
	if !f.gcLocked.CompareAndSwap(false, true) {
		return
	}
	defer f.gcLocked.Store(false)

	f.copiesMu.Lock()
	var releasedUpTo int64 = -1
	haveReleased := false
	for e := f.copies.Front(); e != nil; {
		cp := e.Value.(*Copy[K, V])
		if !cp.released.Load() {
			break
		}
		releasedUpTo = cp.version
		haveReleased = true
		next := e.Next()
		f.copies.Remove(e)
		e = next
	}
	f.copiesMu.Unlock()

	if !haveReleased {
		return
	}

	for {
		f.eventsMu.Lock()
		front := f.events.Front()
		if front == nil {
			f.eventsMu.Unlock()
			return
		}
		ev := front.Value.(gcEvent[K])
		if ev.version > releasedUpTo {
			f.eventsMu.Unlock()
			return
		}
		f.events.Remove(front)
		f.eventsMu.Unlock()

		f.prune(ev)
	}
}

// prune truncates the chain at ev.key: the oldest mutation whose
// successor's version is <= ev.version has its previous pointer cleared,
// dropping everything behind it. If the surviving head is itself a
// deletion with no predecessor, the key is dropped from the index
// entirely (spec §4.5).
func (f *family[K, V]) prune(ev gcEvent[K]) {
	raw, ok := f.index.Load(ev.key)
	if !ok {
		return
	}
	c := raw.(*chain[V])

	head := c.head.Load()
	if head == nil {
		return
	}

	truncated := false
	if head.version <= ev.version {
		head.previous.Store(nil)
		truncated = true
	} else {
		for cur := head; ; {
			next := cur.previous.Load()
			if next == nil {
				break
			}
			if next.version <= ev.version {
				cur.previous.Store(nil)
				truncated = true
				break
			}
			cur = next
		}
	}
	if !truncated {
		return
	}

	// A chain left holding nothing but a single deletion mutation no
	// longer needs an index entry at all.
	if head.value == nil && head.previous.Load() == nil {
		f.index.CompareAndDelete(ev.key, c)
	}
	f.notifyPrune(ev)
}

func (f *family[K, V]) notifyPrune(ev gcEvent[K]) {
	if f.observer != nil {
		f.observer.OnPrune(ev.key, ev.version)
	}
}
