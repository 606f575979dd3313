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

// Package fchashmap is a HashMap-performance, copy-on-write keyed map:
// multiple versioned copies coexist, and stale mutations are reclaimed by
// a garbage collection pass, keyed on version retirement, that runs
// inside Copy.Release (spec §3, §4.5).
package fchashmap

import "sync/atomic"

// mutation is one entry in a key's persistent, newest-first history: a
// (version, value-or-null, previous) triple. A nil value denotes deletion
// at that version.
type mutation[V any] struct {
	version  int64
	value    *V
	previous atomic.Pointer[mutation[V]]
}

// chain is the per-key head of the mutation history. Heads are atomic
// pointers so appends are lock-free with respect to concurrent readers;
// truncation (clearing previous) happens only under GC discipline.
type chain[V any] struct {
	head atomic.Pointer[mutation[V]]
}

// at returns the newest mutation with version <= v, skipping newer
// entries, or nil if the chain holds nothing that old (the key did not
// exist yet at v).
func (c *chain[V]) at(v int64) *mutation[V] {
	for m := c.head.Load(); m != nil; m = m.previous.Load() {
		if m.version <= v {
			return m
		}
	}
	return nil
}
