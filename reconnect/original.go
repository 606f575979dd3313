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

package reconnect

import (
	"github.com/hashgraph/merkle-state/merkleroute"
	"github.com/hashgraph/merkle-state/merkletree"
)

// TreeOriginal adapts an in-memory merkletree.Node root to the Original
// interface by walking merkleroute routes directly over it.
type TreeOriginal struct {
	root merkletree.Node
}

// NewTreeOriginal wraps root. A nil root is a valid "I have nothing"
// original, against which every descriptor misses.
func NewTreeOriginal(root merkletree.Node) *TreeOriginal {
	return &TreeOriginal{root: root}
}

// NodeAt implements Original.
func (o *TreeOriginal) NodeAt(route merkleroute.Route) (merkletree.Node, bool) {
	if o.root == nil {
		return nil, false
	}
	n, err := merkleroute.GetNodeAt(o.root, route)
	if err != nil {
		return nil, false
	}
	node, ok := n.(merkletree.Node)
	if !ok {
		return nil, false
	}
	return node, true
}
