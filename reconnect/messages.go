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

import "github.com/hashgraph/merkle-state/merkleroute"

// NodeDescriptor is one entry in the teacher-to-learner stream: a node's
// class-id, version, route, and caller-supplied serialized payload. A
// parent is always sent before its children (spec §6 "a stream of node
// descriptors (class-id + version + payload)").
type NodeDescriptor struct {
	ClassID int64
	Version int32
	Route   merkleroute.Route
	Hash    []byte
	Payload []byte
}

// QueryResponse is the learner's reply to one NodeDescriptor: whether it
// already has an equivalent node (spec §6).
type QueryResponse struct {
	LearnerHasNode bool
}
