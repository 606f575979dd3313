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

// Package signedstate implements the signed-state value type and the
// strong/weak reservation map that holds it (spec §4.6).
package signedstate

import "golang.org/x/crypto/ed25519"

// NodeID identifies a member of the network by its address-book slot.
type NodeID uint64

// Member is one address-book entry: a node's public key and its stake
// weight toward quorum.
type Member struct {
	NodeID    NodeID
	PublicKey ed25519.PublicKey
	Stake     uint64
}

// AddressBook resolves node identities to public keys and stake, and
// knows the quorum threshold a signature set must cross.
type AddressBook struct {
	members    map[NodeID]Member
	totalStake uint64
}

// NewAddressBook builds an AddressBook from members.
func NewAddressBook(members ...Member) *AddressBook {
	b := &AddressBook{members: make(map[NodeID]Member, len(members))}
	for _, m := range members {
		b.members[m.NodeID] = m
		b.totalStake += m.Stake
	}
	return b
}

// Lookup returns the member for id, if known.
func (b *AddressBook) Lookup(id NodeID) (Member, bool) {
	m, ok := b.members[id]
	return m, ok
}

// TotalStake is the sum of every member's stake.
func (b *AddressBook) TotalStake() uint64 {
	return b.totalStake
}

// HasQuorum reports whether stake exceeds the given fraction (numerator
// over denominator, e.g. 1/3) of TotalStake.
func (b *AddressBook) HasQuorum(stake uint64, numerator, denominator uint64) bool {
	if b.totalStake == 0 {
		return false
	}
	return stake*denominator > b.totalStake*numerator
}
