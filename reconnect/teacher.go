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
	"context"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/golang/glog"
	"golang.org/x/sync/errgroup"

	"github.com/hashgraph/merkle-state/merkleroute"
	"github.com/hashgraph/merkle-state/merkletree"
)

// nodeState is a teacherNode's position in the spec §4.8 state machine.
type nodeState int32

const (
	stateUnknown nodeState = iota
	stateReadyToSend
	stateMarkedAcked
	stateSent
)

// Serializer produces the wire payload for one node; the reconnect
// package treats the bytes as opaque.
type Serializer func(n merkletree.Node) ([]byte, error)

type teacherNode struct {
	node     merkletree.Node
	route    []int64
	children []*teacherNode

	state  atomic.Int32
	posAck atomic.Bool
	ack    chan bool // buffered 1; posted at most once by the receiving loop
}

func newTeacherNode(n merkletree.Node, route []int64) *teacherNode {
	return &teacherNode{node: n, route: route, ack: make(chan bool, 1)}
}

// markAckedSubtree implements spec §4.8's subtree cancellation: a BFS
// walk marking every descendant's ack status positive, stopping at
// nodes already positive (including this call's own starting node).
func (t *teacherNode) markAckedSubtree() {
	queue := []*teacherNode{t}
	for len(queue) > 0 {
		n := queue[0]
		queue = queue[1:]
		if !n.posAck.CompareAndSwap(false, true) {
			continue
		}
		n.state.Store(int32(stateMarkedAcked))
		queue = append(queue, n.children...)
	}
}

// Teacher walks an existing merkle tree and streams it to a learner,
// skipping any subtree the learner already has (spec §4.8).
type Teacher struct {
	root      *teacherNode
	serialize Serializer
	cfg       Config
	out       *AnticipatedStream[NodeDescriptor]
	in        *AnticipatedStream[QueryResponse]
	sendQueue chan *teacherNode
	awaitAck  chan *teacherNode
	attemptID string
}

// NewTeacher builds a Teacher for root, writing descriptors to out and
// reading ACKs from in.
func NewTeacher(root merkletree.Node, serialize Serializer, cfg Config, out *AnticipatedStream[NodeDescriptor], in *AnticipatedStream[QueryResponse], attemptID string) *Teacher {
	return &Teacher{
		root:      newTeacherNode(root, nil),
		serialize: serialize,
		cfg:       cfg,
		out:       out,
		in:        in,
		sendQueue: make(chan *teacherNode, cfg.AsyncStreamBufferSize),
		awaitAck:  make(chan *teacherNode, cfg.AsyncStreamBufferSize),
		attemptID: attemptID,
	}
}

// Run drives the teacher side to completion: the send and receive
// threads run concurrently via an errgroup, so an unhandled error on
// either cancels both (spec §4.8 "a work-group aggregates per-thread
// results").
func (t *Teacher) Run(ctx context.Context) error {
	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error { return t.sendLoop(gctx) })
	g.Go(func() error { return t.receiveLoop(gctx) })
	g.Go(func() error {
		select {
		case t.sendQueue <- t.root:
		case <-gctx.Done():
			return gctx.Err()
		}
		select {
		case t.awaitAck <- t.root:
		case <-gctx.Done():
			return gctx.Err()
		}
		return nil
	})

	err := g.Wait()
	t.out.Close()
	if err != nil {
		return fmt.Errorf("reconnect: teacher attempt %s: %w", t.attemptID, err)
	}
	return nil
}

func (t *Teacher) sendLoop(ctx context.Context) error {
	remaining := 1
	for remaining > 0 {
		var n *teacherNode
		select {
		case n = <-t.sendQueue:
		case <-ctx.Done():
			return ctx.Err()
		}
		remaining--

		if !n.posAck.Load() {
			if t.waitForAck(ctx, n) {
				// resolved positive while waiting; receiveLoop already
				// marked the subtree, nothing further to send.
				continue
			}
		}
		if n.posAck.Load() {
			continue
		}

		n.state.Store(int32(stateReadyToSend))
		payload, err := t.serialize(n.node)
		if err != nil {
			return fmt.Errorf("serializing node at route %v: %w", n.route, err)
		}
		route, err := merkleroute.New(n.route...)
		if err != nil {
			return fmt.Errorf("reconnect: building route for %v: %w", n.route, err)
		}
		desc := NodeDescriptor{ClassID: n.node.ClassID(), Version: n.node.SerializationVersion(), Route: route, Hash: n.node.Hash(), Payload: payload}
		if err := t.out.Write(desc); err != nil {
			return err
		}
		n.state.Store(int32(stateSent))
		glog.V(2).Infof("reconnect teacher %s: sent route %v", t.attemptID, n.route)

		if parent, ok := n.node.(merkletree.Parent); ok {
			for i := 0; i < parent.NumChildren(); i++ {
				child := parent.ChildNodeAt(i)
				if child == nil {
					continue
				}
				childRoute := append(append([]int64{}, n.route...), int64(i))
				tc := newTeacherNode(child, childRoute)
				n.children = append(n.children, tc)

				remaining++
				select {
				case t.sendQueue <- tc:
				case <-ctx.Done():
					return ctx.Err()
				}
				select {
				case t.awaitAck <- tc:
				case <-ctx.Done():
					return ctx.Err()
				}
			}
		}
	}
	close(t.awaitAck)
	return nil
}

// waitForAck blocks until n's ack channel resolves or max_ack_delay
// elapses, returning true iff the resolution (direct or via ancestor
// propagation) was positive.
func (t *Teacher) waitForAck(ctx context.Context, n *teacherNode) bool {
	timer := time.NewTimer(t.cfg.MaxAckDelay)
	defer timer.Stop()
	select {
	case have := <-n.ack:
		return have
	case <-timer.C:
		return n.posAck.Load()
	case <-ctx.Done():
		return n.posAck.Load()
	}
}

// receiveLoop runs until the send side has registered every node it
// will ever register (awaitAck closed) and that last node's response
// has been consumed (spec §4.8 "runs until both the sender announces
// completion and no response is outstanding").
func (t *Teacher) receiveLoop(ctx context.Context) error {
	for {
		var n *teacherNode
		var ok bool
		select {
		case n, ok = <-t.awaitAck:
			if !ok {
				return nil
			}
		case <-ctx.Done():
			return ctx.Err()
		}

		rctx, cancel := context.WithTimeout(ctx, t.cfg.AsyncStreamTimeout)
		wait := t.in.PostSlot(rctx)
		resp, err := wait()
		cancel()
		if err != nil {
			return fmt.Errorf("reconnect: awaiting ack for route %v: %w", n.route, err)
		}

		if resp.LearnerHasNode {
			n.markAckedSubtree()
		}
		select {
		case n.ack <- resp.LearnerHasNode:
		default:
		}
	}
}
