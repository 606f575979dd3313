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

package statemanager

import (
	"bytes"
	"sync"

	"github.com/google/btree"

	"github.com/hashgraph/merkle-state/signedstate"
)

// Manager tracks unsigned/self-signed states in a bounded non-ancient
// window, aggregates observed signatures, and republishes the last
// state to cross quorum (spec §4.7).
type Manager struct {
	window      int64
	quorumNum   uint64
	quorumDen   uint64
	signer      signedstate.Signer
	retireHook  func(*signedstate.SignedState)

	mu           sync.Mutex
	tracked      *signedstate.StateMap
	states       map[int64]*signedstate.SignedState
	order        *btree.BTreeG[int64]
	currentRound int64
	haveCurrent  bool
	lastComplete *signedstate.Handle

	NewStateTracked          chan Notification
	SelfSigned               chan Notification
	StateHasEnoughSignatures chan Notification
	StateLacksSignatures     chan Notification
}

// Option configures a Manager at construction.
type Option func(*Manager)

// WithRetireHook installs a callback invoked (via SignedState.Retire)
// once a state evicted from the window holds no reservations any more:
// immediately at eviction if none are outstanding, otherwise when the
// last handle on it closes.
func WithRetireHook(hook func(*signedstate.SignedState)) Option {
	return func(m *Manager) { m.retireHook = hook }
}

// New creates a Manager. window is the non-ancient window size W;
// quorumNum/quorumDen define the stake fraction (e.g. 1/3) a state must
// cross to be considered complete; signer self-signs newly added states.
// Notification channels are buffered to notifyBuffer and never block a
// caller -- a full channel drops the notification (spec §5: "no internal
// blocking wait").
func New(window int64, quorumNum, quorumDen uint64, signer signedstate.Signer, notifyBuffer int, opts ...Option) *Manager {
	m := &Manager{
		window:    window,
		quorumNum: quorumNum,
		quorumDen: quorumDen,
		signer:    signer,
		tracked:   signedstate.NewStateMap(true),
		states:    make(map[int64]*signedstate.SignedState),
		order:     btree.NewG(32, func(a, b int64) bool { return a < b }),

		NewStateTracked:          make(chan Notification, notifyBuffer),
		SelfSigned:               make(chan Notification, notifyBuffer),
		StateHasEnoughSignatures: make(chan Notification, notifyBuffer),
		StateLacksSignatures:     make(chan Notification, notifyBuffer),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

func emit(ch chan Notification, n Notification) {
	select {
	case ch <- n:
	default:
	}
}

// AddUnsignedState self-signs state, tracks it, and evicts the oldest
// tracked round if the window has grown beyond W (spec §4.7).
func (m *Manager) AddUnsignedState(state *signedstate.SignedState) {
	state.SelfSign(m.signer)
	emit(m.SelfSigned, Notification{State: state, Source: SourceTransactions})

	m.mu.Lock()
	m.tracked.Put(state)
	m.states[state.Round] = state
	m.order.ReplaceOrInsert(state.Round)
	m.currentRound, m.haveCurrent = state.Round, true

	var evicted *signedstate.SignedState
	if m.order.Len() > int(m.window) {
		if oldest, ok := m.order.Min(); ok {
			m.order.Delete(oldest)
			evicted = m.states[oldest]
			delete(m.states, oldest)
			m.tracked.Remove(oldest)
		}
	}
	m.mu.Unlock()

	emit(m.NewStateTracked, Notification{State: state, Source: SourceTransactions})

	if evicted != nil {
		if !evicted.IsComplete() {
			emit(m.StateLacksSignatures, Notification{State: evicted, Source: SourceTransactions})
		}
		evicted.Retire(m.retireHook)
	}
}

// AddCompleteState bypasses self-signing and publishes state directly as
// the last complete state, as when restoring from disk (spec §4.7).
func (m *Manager) AddCompleteState(state *signedstate.SignedState) {
	state.MarkComplete()
	handle := signedstate.Reserve(state, false)

	m.mu.Lock()
	old := m.lastComplete
	m.lastComplete = handle
	if !m.haveCurrent || state.Round > m.currentRound {
		m.currentRound, m.haveCurrent = state.Round, true
	}
	m.mu.Unlock()

	if old != nil {
		old.Close()
	}
	emit(m.NewStateTracked, Notification{State: state, Source: SourceDisk})
}

// SignatureObserved attaches an incoming signature to its tracked state
// (spec §4.7 step 3). Rounds too far in the future, already-retired
// rounds, unknown rounds, and signatures that fail verification are all
// silently dropped.
func (m *Manager) SignatureObserved(round int64, node signedstate.NodeID, hash, sig []byte) {
	m.mu.Lock()
	if m.haveCurrent && round > m.currentRound+m.window {
		m.mu.Unlock()
		return
	}
	if m.haveCurrent && round <= m.currentRound-m.window {
		m.mu.Unlock()
		return
	}
	state, ok := m.states[round]
	m.mu.Unlock()
	if !ok {
		return
	}

	if !bytes.Equal(hash, state.Hash) {
		return
	}
	state.AttachSignature(node, sig)

	if !state.HasQuorum(m.quorumNum, m.quorumDen) {
		return
	}
	if !state.MarkComplete() {
		return
	}
	emit(m.StateHasEnoughSignatures, Notification{State: state})

	handle := signedstate.Reserve(state, false)
	m.mu.Lock()
	old := m.lastComplete
	m.lastComplete = handle
	m.mu.Unlock()
	if old != nil {
		old.Close()
	}
}

// Find returns (with a strong reservation) the tracked state at round if
// its hash matches, else the last complete state if round is at or
// before it, else ErrNotFound (spec §4.7's find(round, hash)).
func (m *Manager) Find(round int64, hash []byte) (*signedstate.Handle, error) {
	if h, err := m.tracked.Find(func(s *signedstate.SignedState) bool {
		return s.Round == round && bytes.Equal(s.Hash, hash)
	}, true); err == nil {
		return h, nil
	}

	m.mu.Lock()
	last := m.lastComplete
	m.mu.Unlock()
	if last == nil || round > last.State().Round {
		return nil, signedstate.ErrNotFound
	}
	return signedstate.Reserve(last.State(), true), nil
}

// GetLastComplete returns a weak reservation on the last state to reach
// quorum, or ok=false if none has yet.
func (m *Manager) GetLastComplete() (*signedstate.Handle, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.lastComplete == nil {
		return nil, false
	}
	return signedstate.Reserve(m.lastComplete.State(), false), true
}

// TrackedRounds returns the number of rounds currently in the window.
func (m *Manager) TrackedRounds() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.order.Len()
}
