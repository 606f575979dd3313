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

import "github.com/hashgraph/merkle-state/merkleroute"

// LeafNode stores application data; its hash is computed by the framework
// (a digest of its bytes) unless it was constructed as self-hashing, in
// which case the leaf is responsible for calling SetSelfHash itself.
type LeafNode struct {
	base
	data []byte
}

// NewLeafNode allocates a leaf holding data, whose hash the hasher will
// compute as a digest of that data.
func NewLeafNode(classID int64, version int32, data []byte, onDestroy func()) *LeafNode {
	n := &LeafNode{data: data}
	n.base = newBase(classID, version, false, onDestroy)
	return n
}

// NewSelfHashingLeafNode allocates a leaf that maintains its own hash; the
// hasher will never overwrite it and invalidateHash is a no-op.
func NewSelfHashingLeafNode(classID int64, version int32, data []byte, onDestroy func()) *LeafNode {
	n := &LeafNode{data: data}
	n.base = newBase(classID, version, true, onDestroy)
	return n
}

// IsLeaf always returns true for a leaf node.
func (n *LeafNode) IsLeaf() bool { return true }

// NumChildren is always 0 for a leaf.
func (n *LeafNode) NumChildren() int { return 0 }

// ChildAt always fails for a leaf: leaves have no children.
func (n *LeafNode) ChildAt(int) (merkleroute.Routable, bool) { return nil, false }

// Data returns the leaf's application payload.
func (n *LeafNode) Data() []byte { return n.data }

// SetSelfHash installs a hash the leaf computed itself. It is only
// meaningful on a self-hashing leaf; on a framework-hashed leaf it behaves
// like any other SetHash call, and the hasher keeps the installed value as
// the leaf's cached hash rather than recomputing it.
func (n *LeafNode) SetSelfHash(h []byte) {
	n.SetHash(h)
}
