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

import "math/rand"

// VisitFunc is called once per node in post-order. Returning an error
// aborts the walk and propagates the error to the caller.
type VisitFunc func(n Node) error

// PostOrder walks root's subtree in deterministic post-order: children are
// visited left-to-right before their parent (spec §4.3).
func PostOrder(root Node, visit VisitFunc) error {
	return postOrder(root, nil, visit)
}

// RandomizedPostOrder walks root's subtree in post-order, but visits each
// internal node's children in an order randomized per call -- the order
// worker threads 1..P-1 of the parallel hasher use for load balancing
// (spec §4.3/§4.4); merklehasher walks the tree with its own copy of this
// logic. rnd may be nil, in which case a source seeded from the global
// source is used.
func RandomizedPostOrder(root Node, rnd *rand.Rand, visit VisitFunc) error {
	if rnd == nil {
		rnd = rand.New(rand.NewSource(rand.Int63()))
	}
	return postOrder(root, rnd, visit)
}

func postOrder(n Node, rnd *rand.Rand, visit VisitFunc) error {
	if n == nil {
		return nil
	}
	if internal, ok := n.(*InternalNode); ok {
		order := childOrder(len(internal.children), rnd)
		for _, idx := range order {
			if err := postOrder(internal.children[idx], rnd, visit); err != nil {
				return err
			}
		}
	}
	return visit(n)
}

func childOrder(n int, rnd *rand.Rand) []int {
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
