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

// Package merkletree defines the node trait set shared by internal, leaf
// and self-hashing-leaf nodes: reference counting, route maintenance, hash
// invalidation and the two post-order iteration orders, deterministic and
// randomized (spec §3, §4.3).
package merkletree

import (
	"errors"
	"fmt"
	"sync"

	"github.com/hashgraph/merkle-state/merkleroute"
)

// MaxChildren is the largest arity an internal node may be constructed
// with (spec §3: "0..N children, N <= 64").
const MaxChildren = 64

// ErrImmutable is returned by SetChild once a node has been marked
// immutable; the transition to immutable is one-way.
var ErrImmutable = errors.New("merkletree: node is immutable")

// ErrChildIndex is returned when a child index is negative or exceeds the
// node's configured arity.
var ErrChildIndex = errors.New("merkletree: child index out of range")

// ErrImmutableChild is returned by SetChild when the node being attached is
// itself already immutable and the caller did not use
// SetChildAllowImmutable to grant explicit permission (spec §3/§7: "attaching
// an immutable child without explicit permission" is a distinct mutability
// error from mutating an already-immutable parent).
var ErrImmutableChild = errors.New("merkletree: child is immutable")

// immutableNode is implemented by node types that can be permanently frozen
// (currently only *InternalNode); leaves have no immutability concept and
// never trigger ErrImmutableChild.
type immutableNode interface {
	IsImmutable() bool
}

// Node is the capability set every tree node -- internal, leaf, or
// self-hashing-leaf -- exposes. It satisfies merkleroute.Routable so a
// Node tree can be walked with merkleroute.GetNodeAt directly.
type Node interface {
	merkleroute.Routable

	// Route returns the node's current location within its owning tree.
	Route() merkleroute.Route
	// setRoute is invoked by a parent internal node when this node is
	// assigned to one of its child slots; re-routing an internal node
	// re-routes its entire subtree (spec §4.3, documented O(subtree)).
	setRoute(r merkleroute.Route)

	// Hash returns the node's cached hash, or nil if it is stale/invalid.
	Hash() []byte
	// invalidateHash marks the cached hash stale. Self-hashing nodes are
	// responsible for their own invalidation and ignore this call.
	invalidateHash()
	// SetHash installs a freshly computed hash (called by the hasher).
	SetHash(h []byte)

	// ClassID and SerializationVersion identify the concrete node type for
	// the self-describing stream encoding (spec §4.1).
	ClassID() int64
	SerializationVersion() int32

	// IsSelfHashing reports whether this node computes and maintains its
	// own hash outside the framework's hasher.
	IsSelfHashing() bool

	// Reserve and Release implement the reservation lifecycle of §3;
	// Release returns true exactly when this call destroyed the node.
	Reserve() error
	Release() (bool, error)
	IsDestroyed() bool
}

// Parent is implemented by internal nodes that expose direct, typed child
// access; the hasher uses it to read child hashes without going through
// the generic merkleroute.Routable interface.
type Parent interface {
	Node
	NumChildren() int
	ChildNodeAt(i int) Node
}

// base is embedded by every concrete node type; it is not itself exported
// because the exported surface is the Node interface.
type base struct {
	mu          sync.RWMutex
	route       merkleroute.Route
	hash        []byte
	rc          refCount
	classID     int64
	version     int32
	selfHashing bool
	onDestroy   func()
}

func newBase(classID int64, version int32, selfHashing bool, onDestroy func()) base {
	return base{classID: classID, version: version, selfHashing: selfHashing, onDestroy: onDestroy}
}

func (b *base) Route() merkleroute.Route {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.route
}

func (b *base) setRoute(r merkleroute.Route) {
	b.mu.Lock()
	b.route = r
	b.mu.Unlock()
}

func (b *base) Hash() []byte {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.hash
}

func (b *base) SetHash(h []byte) {
	b.mu.Lock()
	b.hash = h
	b.mu.Unlock()
}

func (b *base) invalidateHash() {
	if b.selfHashing {
		return
	}
	b.mu.Lock()
	b.hash = nil
	b.mu.Unlock()
}

func (b *base) ClassID() int64            { return b.classID }
func (b *base) SerializationVersion() int32 { return b.version }
func (b *base) IsSelfHashing() bool       { return b.selfHashing }

func (b *base) Reserve() error {
	return b.rc.reserve()
}

func (b *base) Release() (bool, error) {
	destroyed, err := b.rc.release()
	if destroyed && b.onDestroy != nil {
		b.onDestroy()
	}
	return destroyed, err
}

func (b *base) IsDestroyed() bool {
	return b.rc.destroyed()
}

// releaseChild releases child (if non-nil), ignoring the already-destroyed
// case so that repeated teardown paths stay idempotent at the call site.
func releaseChild(child Node) error {
	if child == nil {
		return nil
	}
	if _, err := child.Release(); err != nil {
		return fmt.Errorf("merkletree: releasing child at route %v: %w", child.Route(), err)
	}
	return nil
}
