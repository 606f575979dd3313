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
	"fmt"
	"sync/atomic"

	"github.com/hashgraph/merkle-state/merkleroute"
)

// InternalNode owns 0..N children (N <= MaxChildren). Setting a child
// releases the old occupant (if any), acquires the new one (if non-nil),
// re-routes it under this node, and invalidates this node's cached hash
// unless it is self-hashing (spec §3/§4.3).
type InternalNode struct {
	base
	children   []Node
	immutable  int32 // atomic bool
}

// NewInternalNode allocates an internal node with room for arity children.
// onDestroy, if non-nil, runs after the node's own reservation count
// reaches destroyed, before its children are released.
func NewInternalNode(classID int64, version int32, arity int, onDestroy func()) (*InternalNode, error) {
	if arity < 0 || arity > MaxChildren {
		return nil, fmt.Errorf("merkletree: arity %d exceeds MaxChildren %d: %w", arity, MaxChildren, ErrChildIndex)
	}
	n := &InternalNode{children: make([]Node, arity)}
	n.base = newBase(classID, version, false, func() {
		if onDestroy != nil {
			onDestroy()
		}
		n.releaseChildrenOnDestroy()
	})
	return n, nil
}

// IsLeaf always returns false for an internal node.
func (n *InternalNode) IsLeaf() bool { return false }

// NumChildren returns the node's configured child-slot capacity.
func (n *InternalNode) NumChildren() int { return len(n.children) }

// ChildAt returns the child occupying slot i, or (nil, false) if that slot
// is empty or out of range.
func (n *InternalNode) ChildAt(i int) (merkleroute.Routable, bool) {
	child := n.ChildNodeAt(i)
	if child == nil {
		return nil, false
	}
	return child, true
}

// ChildNodeAt is the typed counterpart of ChildAt, used internally and by
// callers that need the concrete Node rather than merkleroute.Routable.
func (n *InternalNode) ChildNodeAt(i int) Node {
	if i < 0 || i >= len(n.children) {
		return nil
	}
	return n.children[i]
}

// IsImmutable reports whether SetChild has been permanently disabled.
func (n *InternalNode) IsImmutable() bool {
	return atomic.LoadInt32(&n.immutable) != 0
}

// SetImmutable is a one-way transition; once set it cannot be undone.
func (n *InternalNode) SetImmutable() {
	atomic.StoreInt32(&n.immutable, 1)
}

// SetChild releases the current occupant of slot i (if any), reserves and
// re-routes child (if non-nil), and invalidates this node's cached hash. It
// fails with ErrImmutableChild if child is itself already immutable; use
// SetChildAllowImmutable to attach an immutable child deliberately.
func (n *InternalNode) SetChild(i int, child Node) error {
	return n.setChild(i, child, false)
}

// SetChildAllowImmutable is SetChild with explicit permission to attach a
// child that is already immutable (spec §3/§7).
func (n *InternalNode) SetChildAllowImmutable(i int, child Node) error {
	return n.setChild(i, child, true)
}

func (n *InternalNode) setChild(i int, child Node, allowImmutableChild bool) error {
	if n.IsImmutable() {
		return fmt.Errorf("merkletree: SetChild(%d) on immutable node at route %v: %w", i, n.Route(), ErrImmutable)
	}
	if i < 0 || i >= len(n.children) {
		return fmt.Errorf("merkletree: SetChild index %d, arity %d: %w", i, len(n.children), ErrChildIndex)
	}
	if !allowImmutableChild {
		if im, ok := child.(immutableNode); ok && im.IsImmutable() {
			return fmt.Errorf("merkletree: SetChild(%d) with immutable child at route %v: %w", i, n.Route(), ErrImmutableChild)
		}
	}

	old := n.children[i]
	if err := releaseChild(old); err != nil {
		return err
	}

	if child != nil {
		if err := child.Reserve(); err != nil {
			return fmt.Errorf("merkletree: reserving new child at slot %d: %w", i, err)
		}
		childRoute, err := n.Route().Extend(int64(i))
		if err != nil {
			return fmt.Errorf("merkletree: extending route for slot %d: %w", i, err)
		}
		rerouteSubtree(child, childRoute)
	}
	n.children[i] = child
	n.invalidateHash()
	return nil
}

// rerouteSubtree assigns r to node and, if node is an internal node,
// recomputes and assigns routes for its entire subtree (spec §4.3:
// documented O(subtree)).
func rerouteSubtree(node Node, r merkleroute.Route) {
	node.setRoute(r)
	internal, ok := node.(*InternalNode)
	if !ok {
		return
	}
	for i, child := range internal.children {
		if child == nil {
			continue
		}
		childRoute, err := r.Extend(int64(i))
		if err != nil {
			// Child indices are always non-negative by construction; this
			// cannot happen in practice.
			continue
		}
		rerouteSubtree(child, childRoute)
	}
}

// releaseChildrenOnDestroy recursively releases non-nil children in index
// order, matching the deterministic subtree-release contract of spec §4.3.
func (n *InternalNode) releaseChildrenOnDestroy() {
	for i, child := range n.children {
		if child == nil {
			continue
		}
		_ = releaseChild(child)
		n.children[i] = nil
	}
}
