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

// Package merklehasher computes merkle hashes over dirty subtrees, either
// synchronously on the caller's thread or in parallel across a fixed-size
// worker pool (spec §4.4).
package merklehasher

import (
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"math/rand"
	"sync"

	"github.com/golang/glog"
	"golang.org/x/sync/errgroup"

	"github.com/hashgraph/merkle-state/merkletree"
	"github.com/hashgraph/merkle-state/streams"
)

// ErrIllegalChildHash is returned when an internal node's hashing requires
// a child's hash but the child cannot supply one -- a self-hashing child
// that never set its own hash (spec §4.4 failure semantics).
var ErrIllegalChildHash = errors.New("merklehasher: illegal child hash")

// nullHash is the canonical sentinel used for missing children and for
// digesting a nil tree, keyed off the same digest the Hasher was built
// with.
func nullHash(newDigest func() []byte) []byte {
	return newDigest()
}

// Hasher owns a fixed-size worker pool used by DigestAsync.
type Hasher struct {
	pool int

	// locks serializes concurrent hash computation on a single node: spec
	// §4.4/§5 require node hashing be mutually exclusive per node.
	locks sync.Map // merkletree.Node -> *sync.Mutex

	hashLeaf     func(data []byte) []byte
	hashInternal func(classID int64, version int32, children [][]byte) []byte
}

// New returns a Hasher with a pool of size P (spec's cpu_thread_count
// setting). P must be >= 1.
func New(poolSize int) *Hasher {
	if poolSize < 1 {
		poolSize = 1
	}
	return &Hasher{
		pool:         poolSize,
		hashLeaf:     defaultHashLeaf,
		hashInternal: defaultHashInternal,
	}
}

func defaultHashLeaf(data []byte) []byte {
	h := streams.NewHasher()
	h.Write(data)
	return h.Sum(nil)
}

func defaultHashInternal(classID int64, version int32, children [][]byte) []byte {
	h := streams.NewHasher()
	var hdr [12]byte
	binary.BigEndian.PutUint64(hdr[:8], uint64(classID))
	binary.BigEndian.PutUint32(hdr[8:], uint32(version))
	h.Write(hdr[:])
	for _, c := range children {
		h.Write(c)
	}
	return h.Sum(nil)
}

// NullHash returns the canonical hash of a nil node.
func (h *Hasher) NullHash() []byte {
	return nullHash(func() []byte { return h.hashLeaf(nil) })
}

func (h *Hasher) nodeLock(n merkletree.Node) *sync.Mutex {
	l, _ := h.locks.LoadOrStore(n, &sync.Mutex{})
	return l.(*sync.Mutex)
}

// needsHash reports whether n, or any node in its subtree, lacks a cached
// hash -- the filter DigestSync/DigestAsync use to skip subtrees that are
// already clean (spec §4.4).
func needsHash(n merkletree.Node) bool {
	if n == nil {
		return false
	}
	if n.Hash() == nil {
		return true
	}
	parent, ok := n.(merkletree.Parent)
	if !ok {
		return false
	}
	for i := 0; i < parent.NumChildren(); i++ {
		if needsHash(parent.ChildNodeAt(i)) {
			return true
		}
	}
	return false
}

// DigestSync computes and returns root's hash on the caller's goroutine.
// A nil root yields the canonical null hash.
func (h *Hasher) DigestSync(root merkletree.Node) ([]byte, error) {
	return h.hashNode(root)
}

func (h *Hasher) hashNode(n merkletree.Node) ([]byte, error) {
	if n == nil {
		return h.NullHash(), nil
	}
	if existing := n.Hash(); existing != nil {
		return existing, nil
	}

	lock := h.nodeLock(n)
	lock.Lock()
	defer lock.Unlock()

	if existing := n.Hash(); existing != nil {
		return existing, nil
	}

	parent, isParent := n.(merkletree.Parent)
	if !isParent {
		if n.IsSelfHashing() {
			return nil, fmt.Errorf("merklehasher: self-hashing leaf at route %v never set its hash: %w", n.Route(), ErrIllegalChildHash)
		}
		leaf, ok := n.(*merkletree.LeafNode)
		if !ok {
			return nil, fmt.Errorf("merklehasher: node at route %v is neither a Parent nor a LeafNode", n.Route())
		}
		sum := h.hashLeaf(leaf.Data())
		n.SetHash(sum)
		return sum, nil
	}

	childHashes := make([][]byte, parent.NumChildren())
	for i := range childHashes {
		child := parent.ChildNodeAt(i)
		if child == nil {
			childHashes[i] = h.NullHash()
			continue
		}
		ch, err := h.hashNode(child)
		if err != nil {
			return nil, err
		}
		childHashes[i] = ch
	}
	sum := h.hashInternal(n.ClassID(), n.SerializationVersion(), childHashes)
	n.SetHash(sum)
	return sum, nil
}

// DigestAsync launches P workers to compute root's hash in parallel.
// Worker 0 walks root's dirty subtree in deterministic post-order; workers
// 1..P-1 use a per-worker randomized post-order, trading strict work
// division for simplicity (spec §9 explicitly licenses this). Every node
// is hashed under a per-node mutex with double-checked caching, so
// redundant visits from overlapping workers are cheap no-ops rather than
// duplicated work; the group's context is cancelled on the first error,
// matching "any thread observing an error cancels the future".
func (h *Hasher) DigestAsync(ctx context.Context, root merkletree.Node) ([]byte, error) {
	if root == nil {
		return h.NullHash(), nil
	}
	if !needsHash(root) && !root.IsSelfHashing() {
		return root.Hash(), nil
	}

	g, gctx := errgroup.WithContext(ctx)
	for worker := 0; worker < h.pool; worker++ {
		worker := worker
		g.Go(func() error {
			var rnd *rand.Rand
			if worker != 0 {
				rnd = rand.New(rand.NewSource(int64(worker) + 1))
			}
			return h.walkAndHash(gctx, root, rnd)
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return root.Hash(), nil
}

func (h *Hasher) walkAndHash(ctx context.Context, n merkletree.Node, rnd *rand.Rand) error {
	if n == nil {
		return nil
	}
	if ctx.Err() != nil {
		return ctx.Err()
	}
	if parent, ok := n.(merkletree.Parent); ok {
		order := childVisitOrder(parent.NumChildren(), rnd)
		for _, idx := range order {
			if err := h.walkAndHash(ctx, parent.ChildNodeAt(idx), rnd); err != nil {
				return err
			}
		}
	}
	if _, err := h.hashNode(n); err != nil {
		glog.Errorf("merklehasher: hashing node at route %v: %v", n.Route(), err)
		return err
	}
	return nil
}

func childVisitOrder(n int, rnd *rand.Rand) []int {
	order := make([]int, n)
	for i := range order {
		order[i] = i
	}
	if rnd == nil {
		return order
	}
	rnd.Shuffle(len(order), func(i, j int) { order[i], order[j] = order[j], order[i] })
	return order
}
