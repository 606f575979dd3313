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

package signedstate

import (
	"errors"
	"sync"
)

// ErrInvalidArgument is returned when a strong reservation is requested
// from a weak-mode map (spec §4.6: "a weak-mode map forbids requesting
// strong reservations").
var ErrInvalidArgument = errors.New("signedstate: invalid argument")

// ErrNotFound is returned by Get/Find when no state satisfies the
// request.
var ErrNotFound = errors.New("signedstate: not found")

// Handle is a scoped reservation on a SignedState; Close releases it.
// A Handle must be closed; closing it again is a no-op.
type Handle struct {
	state  *SignedState
	strong bool
	closed bool
	mu     sync.Mutex
}

// State returns the reserved SignedState.
func (h *Handle) State() *SignedState { return h.state }

// Close releases the reservation this handle holds. Closing an
// already-closed handle is a no-op.
func (h *Handle) Close() {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return
	}
	h.closed = true
	h.state.release(h.strong)
}

func newHandle(s *SignedState, strong bool) *Handle {
	s.reserve(strong)
	return &Handle{state: s, strong: strong}
}

// Reserve returns a handle holding a reservation directly on s,
// independent of any StateMap -- used for singleton handles like a
// manager's "last complete state" pointer (spec §4.7).
func Reserve(s *SignedState, strong bool) *Handle {
	return newHandle(s, strong)
}

// StateMap is a round-indexed map of SignedStates that hands out scoped
// reservations instead of raw pointers. A map configured strong=false
// forbids strong reservations (spec §4.6).
type StateMap struct {
	strongMode bool

	mu     sync.Mutex
	byRound map[int64]*SignedState
}

// NewStateMap creates an empty map. strongMode selects whether this map
// is permitted to hand out strong reservations at all.
func NewStateMap(strongMode bool) *StateMap {
	return &StateMap{strongMode: strongMode, byRound: make(map[int64]*SignedState)}
}

// Get returns a reservation on the state at round, if present.
func (m *StateMap) Get(round int64, strong bool) (*Handle, error) {
	if strong && !m.strongMode {
		return nil, ErrInvalidArgument
	}
	m.mu.Lock()
	s, ok := m.byRound[round]
	m.mu.Unlock()
	if !ok {
		return nil, ErrNotFound
	}
	return newHandle(s, strong), nil
}

// Put inserts state, replacing (and releasing, at this map's own
// reservation kind) anything previously stored at the same round.
func (m *StateMap) Put(state *SignedState) {
	kind := m.strongMode
	m.mu.Lock()
	old, had := m.byRound[state.Round]
	m.byRound[state.Round] = state
	m.mu.Unlock()

	state.reserve(kind)
	if had {
		old.release(kind)
	}
}

// Remove evicts the state at round, releasing this map's own
// reservation on it. It returns false if no state was present. Remove
// does not itself mark the state retired -- callers that need the
// "last reservation anywhere released" signal call (*SignedState).Retire
// explicitly (statemanager does this for window eviction).
func (m *StateMap) Remove(round int64) bool {
	kind := m.strongMode
	m.mu.Lock()
	s, ok := m.byRound[round]
	if ok {
		delete(m.byRound, round)
	}
	m.mu.Unlock()
	if !ok {
		return false
	}
	s.release(kind)
	return true
}

// Clear evicts every tracked round.
func (m *StateMap) Clear() {
	kind := m.strongMode
	m.mu.Lock()
	all := m.byRound
	m.byRound = make(map[int64]*SignedState)
	m.mu.Unlock()

	for _, s := range all {
		s.release(kind)
	}
}

// AtomicIterate calls fn for every tracked state, holding the map lock
// for the whole pass so no concurrent Put/Remove/Clear is interleaved.
// fn must not call back into the map. Iteration stops early if fn
// returns false.
func (m *StateMap) AtomicIterate(fn func(*SignedState) bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, s := range m.byRound {
		if !fn(s) {
			return
		}
	}
}

// Find returns a reservation on the first tracked state matching
// predicate, or ErrNotFound.
func (m *StateMap) Find(predicate func(*SignedState) bool, strong bool) (*Handle, error) {
	if strong && !m.strongMode {
		return nil, ErrInvalidArgument
	}
	var found *SignedState
	m.mu.Lock()
	for _, s := range m.byRound {
		if predicate(s) {
			found = s
			break
		}
	}
	m.mu.Unlock()
	if found == nil {
		return nil, ErrNotFound
	}
	return newHandle(found, strong), nil
}

// Len returns the number of tracked rounds.
func (m *StateMap) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.byRound)
}
