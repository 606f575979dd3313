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

// Package statemanager aggregates signatures onto tracked signed states,
// evicts them past a non-ancient window, and republishes the last state
// to reach quorum (spec §4.7).
package statemanager

import "github.com/hashgraph/merkle-state/signedstate"

// Source identifies why a state entered tracking.
type Source int

const (
	SourceTransactions Source = iota
	SourceDisk
)

func (s Source) String() string {
	switch s {
	case SourceTransactions:
		return "transactions"
	case SourceDisk:
		return "disk"
	default:
		return "unknown"
	}
}

// Notification is one event emitted on a Manager's notification
// channels.
type Notification struct {
	State  *signedstate.SignedState
	Source Source
}
