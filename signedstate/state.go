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
	"sync/atomic"

	"golang.org/x/crypto/ed25519"
)

// ErrInvalidSignature is returned by Verify when the signature fails to
// validate against the state's hash and the signer's public key.
// AttachSignature runs the same check and silently discards an invalid
// signature (spec §4.7) without returning this error; Verify exposes the
// rejection to callers that want to observe it.
var ErrInvalidSignature = errors.New("signedstate: invalid signature")

// Signer produces a self-signature over a state's hash (spec §4.7
// "self-sign: request a hash signature").
type Signer interface {
	NodeID() NodeID
	Sign(hash []byte) []byte
}

// Ed25519Signer is the concrete Signer backing production self-signing,
// grounded on the teacher's x/crypto dependency.
type Ed25519Signer struct {
	ID  NodeID
	Key ed25519.PrivateKey
}

func (s Ed25519Signer) NodeID() NodeID { return s.ID }

func (s Ed25519Signer) Sign(hash []byte) []byte {
	return ed25519.Sign(s.Key, hash)
}

// SignedState is one round's candidate state: a hash, the address book
// its signatures are checked against, and the accumulating signature
// set. Round 0 is a valid round; there is no sentinel "no round" value.
type SignedState struct {
	Round int64
	Hash  []byte
	Book  *AddressBook

	mu          sync.Mutex
	signatures  map[NodeID][]byte
	signedStake uint64
	complete    atomic.Bool

	strong atomic.Int32
	weak   atomic.Int32

	// onIdle fires the first time both reservation counts drop to zero
	// after Retire has been called; statemanager passes its retire hook
	// (WithRetireHook) here when it evicts a state from its window.
	onIdle  func(*SignedState)
	retired atomic.Bool
}

// New creates an unsigned SignedState for round at the given hash.
func New(round int64, hash []byte, book *AddressBook) *SignedState {
	return &SignedState{
		Round:      round,
		Hash:       hash,
		Book:       book,
		signatures: make(map[NodeID][]byte),
	}
}

// SelfSign attaches signer's signature over s.Hash (spec §4.7 step 1).
func (s *SignedState) SelfSign(signer Signer) {
	s.AttachSignature(signer.NodeID(), signer.Sign(s.Hash))
}

// AttachSignature validates sig against id's public key in the address
// book and, if valid, attaches it and folds the member's stake into the
// accumulated total. An unknown node id or an invalid signature is a
// silent no-op, matching spec §4.7.3's "an invalid signature is silently
// discarded" -- callers that need to observe the rejection should call
// Verify themselves first.
func (s *SignedState) AttachSignature(id NodeID, sig []byte) {
	member, ok := s.Book.Lookup(id)
	if !ok {
		return
	}
	if !ed25519.Verify(member.PublicKey, s.Hash, sig) {
		return
	}
	s.mu.Lock()
	if _, already := s.signatures[id]; !already {
		s.signatures[id] = sig
		s.signedStake += member.Stake
	}
	s.mu.Unlock()
}

// Verify reports whether sig is a valid signature over s.Hash by id,
// without attaching it.
func (s *SignedState) Verify(id NodeID, sig []byte) error {
	member, ok := s.Book.Lookup(id)
	if !ok {
		return ErrInvalidSignature
	}
	if !ed25519.Verify(member.PublicKey, s.Hash, sig) {
		return ErrInvalidSignature
	}
	return nil
}

// SignedStake returns the total stake behind attached, verified
// signatures.
func (s *SignedState) SignedStake() uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.signedStake
}

// HasQuorum reports whether the accumulated signed stake exceeds the
// given fraction of the address book's total stake.
func (s *SignedState) HasQuorum(numerator, denominator uint64) bool {
	return s.Book.HasQuorum(s.SignedStake(), numerator, denominator)
}

// MarkComplete flags the state as having crossed quorum. It is
// idempotent and returns true only the first time it transitions.
func (s *SignedState) MarkComplete() bool {
	return s.complete.CompareAndSwap(false, true)
}

// IsComplete reports whether MarkComplete has been called.
func (s *SignedState) IsComplete() bool {
	return s.complete.Load()
}

// SignatureCount returns the number of attached signatures.
func (s *SignedState) SignatureCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.signatures)
}

func (s *SignedState) reserve(strong bool) {
	if strong {
		s.strong.Add(1)
	} else {
		s.weak.Add(1)
	}
}

func (s *SignedState) release(strong bool) {
	if strong {
		s.strong.Add(-1)
	} else {
		s.weak.Add(-1)
	}
	s.maybeGoIdle()
}

// Retire marks the state as evicted from its owning map(s); once it also
// holds zero reservations, onIdle fires (possibly immediately, if called
// with nothing outstanding).
func (s *SignedState) Retire(onIdle func(*SignedState)) {
	s.onIdle = onIdle
	s.retired.Store(true)
	s.maybeGoIdle()
}

func (s *SignedState) maybeGoIdle() {
	if !s.retired.Load() {
		return
	}
	if s.strong.Load() != 0 || s.weak.Load() != 0 {
		return
	}
	s.mu.Lock()
	cb := s.onIdle
	s.onIdle = nil
	s.mu.Unlock()
	if cb != nil {
		cb(s)
	}
}
