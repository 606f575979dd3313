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
	"bytes"
	"context"
	"fmt"

	"github.com/golang/glog"

	"github.com/hashgraph/merkle-state/merkleroute"
	"github.com/hashgraph/merkle-state/merkletree"
)

// Deserializer rebuilds a node from the bytes a Serializer produced for
// the same class-id and version.
type Deserializer func(classID int64, version int32, payload []byte) (merkletree.Node, error)

// Original is the learner's read-only view of the tree it already holds,
// used to decide whether an incoming descriptor can be skipped (spec
// §4.8 "look up the corresponding node in the original tree").
type Original interface {
	// NodeAt returns the original tree's node at route, or (nil, false) if
	// the route does not resolve (e.g. the original tree is shallower).
	NodeAt(route merkleroute.Route) (merkletree.Node, bool)
}

// Learner receives a teacher's descriptor stream and reconstructs a tree,
// skipping any subtree it already holds an equivalent copy of.
type Learner struct {
	original    Original
	deserialize Deserializer
	cfg         Config
	in          *AnticipatedStream[NodeDescriptor]
	out         *AnticipatedStream[QueryResponse]
	attemptID   string

	root merkletree.Node
}

// NewLearner builds a Learner against original, reading descriptors from
// in and writing query responses to out.
func NewLearner(original Original, deserialize Deserializer, cfg Config, in *AnticipatedStream[NodeDescriptor], out *AnticipatedStream[QueryResponse], attemptID string) *Learner {
	return &Learner{original: original, deserialize: deserialize, cfg: cfg, in: in, out: out, attemptID: attemptID}
}

// Root returns the reconstructed tree's root once Run has completed
// successfully.
func (l *Learner) Root() merkletree.Node {
	return l.root
}

// Run drives the learner side to completion: each descriptor's ACK is a
// pure function of the original tree and arrives before the next
// descriptor is posted for, so unlike the teacher there is no independent
// second thread to coordinate (spec §4.8).
func (l *Learner) Run(ctx context.Context) error {
	root, err := l.receive(ctx, merkleroute.Empty())
	if err != nil {
		return fmt.Errorf("reconnect: learner attempt %s: %w", l.attemptID, err)
	}
	l.root = root
	return nil
}

// receive reads exactly one descriptor expected at route, answers have/miss,
// and for a miss recurses into every child the deserialized node reports.
func (l *Learner) receive(ctx context.Context, route merkleroute.Route) (merkletree.Node, error) {
	rctx, cancel := context.WithTimeout(ctx, l.cfg.AsyncStreamTimeout)
	wait := l.in.PostSlot(rctx)
	desc, err := wait()
	cancel()
	if err != nil {
		return nil, fmt.Errorf("reconnect: awaiting descriptor at route %v: %w", route, err)
	}

	if existing, ok := l.haveEquivalent(route, desc); ok {
		if err := l.out.Write(QueryResponse{LearnerHasNode: true}); err != nil {
			return nil, err
		}
		glog.V(2).Infof("reconnect learner %s: have route %v", l.attemptID, route)
		return existing, nil
	}

	if err := l.out.Write(QueryResponse{LearnerHasNode: false}); err != nil {
		return nil, err
	}
	glog.V(2).Infof("reconnect learner %s: miss route %v", l.attemptID, route)

	node, err := l.deserialize(desc.ClassID, desc.Version, desc.Payload)
	if err != nil {
		return nil, fmt.Errorf("reconnect: deserializing route %v: %w", route, err)
	}

	parent, ok := node.(merkletree.Parent)
	if !ok {
		return node, nil
	}
	setter, ok := node.(interface {
		SetChild(i int, child merkletree.Node) error
	})
	if !ok {
		return node, nil
	}
	for i := 0; i < parent.NumChildren(); i++ {
		childRoute, err := route.Extend(int64(i))
		if err != nil {
			return nil, fmt.Errorf("reconnect: extending route %v: %w", route, err)
		}
		child, err := l.receive(ctx, childRoute)
		if err != nil {
			return nil, err
		}
		if child == nil {
			continue
		}
		if err := setter.SetChild(i, child); err != nil {
			return nil, fmt.Errorf("reconnect: attaching child %d at route %v: %w", i, route, err)
		}
	}
	return node, nil
}

// haveEquivalent reports whether the original tree already holds a node at
// route with a matching class-id and hash (spec §4.8 "if class-id matches
// and the previously-known hash equals the incoming one, ACK=have").
func (l *Learner) haveEquivalent(route merkleroute.Route, desc NodeDescriptor) (merkletree.Node, bool) {
	existing, ok := l.original.NodeAt(route)
	if !ok || existing == nil {
		return nil, false
	}
	if existing.ClassID() != desc.ClassID {
		return nil, false
	}
	if existing.IsSelfHashing() || desc.Hash == nil {
		return nil, false
	}
	hash := existing.Hash()
	if hash == nil || !bytes.Equal(hash, desc.Hash) {
		return nil, false
	}
	return existing, true
}
