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

package merkleroute

import (
	"fmt"

	"github.com/bits-and-blooms/bitset"
)

// Encoding selects how a Route is packed into machine words when it needs
// to cross the wire (see streams.Writer / reconnect node descriptors).
// Per spec §6 (Open Questions), the two encodings are not expected to
// interoperate; the encoding in force is a process-wide configuration
// (settings.RouteEncoding), not per-route metadata.
type Encoding int

const (
	// BinaryCompressed packs runs of 0/1 steps into shared words and gives
	// steps >= 2 a dedicated word.
	BinaryCompressed Encoding = iota
	// Uncompressed stores exactly one step per word.
	Uncompressed
)

// runWordCapacity is the number of binary (0/1) steps a single
// BinaryCompressed run-word can hold. A word is 32 bits; bit 31 is the
// large-step tag, bits 30-26 hold the run's bit count (0..31, but a count
// of 0 never occurs: see the zero-capacity-word invariant), and the
// remaining 26 bits hold the packed step bits, LSB first.
const runWordCapacity = 26

const largeStepTag = uint32(1) << 31
const runCountShift = 26
const runCountMask = uint32(0x1F)

// Encode packs route's steps into the given Encoding's word representation.
// The only contract Encode/Decode must preserve is the step sequence and
// its order (spec §9 design notes); the bit layout itself is local to this
// package.
func Encode(r Route, enc Encoding) ([]uint32, error) {
	switch enc {
	case Uncompressed:
		return encodeUncompressed(r), nil
	case BinaryCompressed:
		return encodeBinaryCompressed(r)
	default:
		return nil, fmt.Errorf("merkleroute: unknown encoding %d", enc)
	}
}

// Decode is the inverse of Encode.
func Decode(words []uint32, enc Encoding) (Route, error) {
	switch enc {
	case Uncompressed:
		return decodeUncompressed(words)
	case BinaryCompressed:
		return decodeBinaryCompressed(words)
	default:
		return Route{}, fmt.Errorf("merkleroute: unknown encoding %d", enc)
	}
}

func encodeUncompressed(r Route) []uint32 {
	words := make([]uint32, len(r.steps))
	for i, s := range r.steps {
		words[i] = uint32(s)
	}
	return words
}

func decodeUncompressed(words []uint32) (Route, error) {
	steps := make([]int64, len(words))
	for i, w := range words {
		steps[i] = int64(w)
	}
	return Route{steps: steps}, nil
}

func encodeBinaryCompressed(r Route) ([]uint32, error) {
	var words []uint32
	var run *bitset.BitSet
	var runLen uint32

	flushRun := func() {
		if run == nil {
			return
		}
		var word uint32
		for i := uint32(0); i < runLen; i++ {
			if run.Test(uint(i)) {
				word |= 1 << i
			}
		}
		word |= runLen << runCountShift
		words = append(words, word)
		run = nil
		runLen = 0
	}

	for _, s := range r.steps {
		switch {
		case s == 0 || s == 1:
			if run == nil {
				run = bitset.New(runWordCapacity)
			}
			if s == 1 {
				run.Set(uint(runLen))
			}
			runLen++
			if runLen == runWordCapacity {
				flushRun()
			}
		case s >= 2 && s < int64(largeStepTag):
			flushRun()
			words = append(words, largeStepTag|uint32(s))
		default:
			return nil, fmt.Errorf("merkleroute: step %d out of range for binary-compressed encoding", s)
		}
	}
	flushRun()
	return words, nil
}

func decodeBinaryCompressed(words []uint32) (Route, error) {
	var steps []int64
	for _, w := range words {
		if w == 0 {
			return Route{}, fmt.Errorf("merkleroute: illegal zero-capacity word in route encoding")
		}
		if w&largeStepTag != 0 {
			steps = append(steps, int64(w&^largeStepTag))
			continue
		}
		count := (w >> runCountShift) & runCountMask
		if count == 0 {
			return Route{}, fmt.Errorf("merkleroute: illegal zero-capacity word in route encoding")
		}
		for i := uint32(0); i < count; i++ {
			if w&(1<<i) != 0 {
				steps = append(steps, 1)
			} else {
				steps = append(steps, 0)
			}
		}
	}
	return Route{steps: steps}, nil
}
