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

package merkletree

import (
	"errors"
	"sync/atomic"
)

// ErrDestroyed is returned when Reserve or Release is attempted on a node
// that has already been destroyed.
var ErrDestroyed = errors.New("merkletree: node already destroyed")

// refCount implements the small discrete lifecycle from spec §3/§9: a
// tagged atomic integer, not a language-level shared pointer, so that the
// destroyed state is directly observable. v == 0 means one implicit
// holder; v > 0 means v explicit reservations are outstanding; v == -1
// (destroyed) is terminal.
type refCount struct {
	v int32 // atomic
}

const destroyedMarker = -1

// reserve transitions the count from implicit to explicit, or adds one
// more explicit reservation.
func (r *refCount) reserve() error {
	for {
		old := atomic.LoadInt32(&r.v)
		if old == destroyedMarker {
			return ErrDestroyed
		}
		if atomic.CompareAndSwapInt32(&r.v, old, old+1) {
			return nil
		}
	}
}

// release gives back one reservation (or the sole implicit holder's
// ownership). It returns true exactly when this call drove the count to
// destroyed.
func (r *refCount) release() (bool, error) {
	for {
		old := atomic.LoadInt32(&r.v)
		if old == destroyedMarker {
			return false, ErrDestroyed
		}
		if old == 0 {
			if atomic.CompareAndSwapInt32(&r.v, old, destroyedMarker) {
				return true, nil
			}
			continue
		}
		if atomic.CompareAndSwapInt32(&r.v, old, old-1) {
			return false, nil
		}
	}
}

// destroyed reports whether the node has reached the terminal state.
func (r *refCount) destroyed() bool {
	return atomic.LoadInt32(&r.v) == destroyedMarker
}
