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

// Package streams provides pass-through byte stream decorators (counting,
// hashing) and a deterministic, self-describing typed encoding on top of
// them, per spec §4.1 and §6. Extensions compose by stacking; each
// decorator delegates to the wrapped stream before applying its own side
// effect, so a Reader/Writer chain always reflects the bytes that actually
// crossed the wire.
package streams

import (
	"crypto/sha512"
	"hash"
	"io"
	"sync/atomic"
)

// CountingReader wraps an io.Reader and atomically tallies bytes observed.
type CountingReader struct {
	r     io.Reader
	count int64
}

// NewCountingReader wraps r with a byte counter.
func NewCountingReader(r io.Reader) *CountingReader {
	return &CountingReader{r: r}
}

func (c *CountingReader) Read(p []byte) (int, error) {
	n, err := c.r.Read(p)
	if n > 0 {
		atomic.AddInt64(&c.count, int64(n))
	}
	return n, err
}

// Get returns the current byte count.
func (c *CountingReader) Get() int64 { return atomic.LoadInt64(&c.count) }

// Reset zeroes the counter.
func (c *CountingReader) Reset() { atomic.StoreInt64(&c.count, 0) }

// GetAndReset atomically returns the counter and zeroes it.
func (c *CountingReader) GetAndReset() int64 { return atomic.SwapInt64(&c.count, 0) }

// CountingWriter is the write-side counterpart of CountingReader.
type CountingWriter struct {
	w     io.Writer
	count int64
}

// NewCountingWriter wraps w with a byte counter.
func NewCountingWriter(w io.Writer) *CountingWriter {
	return &CountingWriter{w: w}
}

func (c *CountingWriter) Write(p []byte) (int, error) {
	n, err := c.w.Write(p)
	if n > 0 {
		atomic.AddInt64(&c.count, int64(n))
	}
	return n, err
}

// Get returns the current byte count.
func (c *CountingWriter) Get() int64 { return atomic.LoadInt64(&c.count) }

// Reset zeroes the counter.
func (c *CountingWriter) Reset() { atomic.StoreInt64(&c.count, 0) }

// GetAndReset atomically returns the counter and zeroes it.
func (c *CountingWriter) GetAndReset() int64 { return atomic.SwapInt64(&c.count, 0) }

// NewHasher returns a fresh digest for the default hashing extension
// (SHA-384, per spec §1: "SHA-384 is used; the primitive is assumed
// available").
func NewHasher() hash.Hash { return sha512.New384() }

// HashingReader feeds every observed byte into a digest while
// start/finish gate which bytes actually contribute.
type HashingReader struct {
	r        io.Reader
	newHash  func() hash.Hash
	h        hash.Hash
	hashing  bool
}

// NewHashingReader wraps r with a hashing extension. newHash, if nil,
// defaults to NewHasher (SHA-384).
func NewHashingReader(r io.Reader, newHash func() hash.Hash) *HashingReader {
	if newHash == nil {
		newHash = NewHasher
	}
	return &HashingReader{r: r, newHash: newHash}
}

func (h *HashingReader) Read(p []byte) (int, error) {
	n, err := h.r.Read(p)
	if n > 0 && h.hashing {
		h.h.Write(p[:n])
	}
	return n, err
}

// StartHashing begins accumulating subsequently-read bytes into a fresh
// digest.
func (h *HashingReader) StartHashing() {
	h.h = h.newHash()
	h.hashing = true
}

// FinishHashing returns the accumulated digest and resets internal state,
// gating which bytes contributed (spec §4.1).
func (h *HashingReader) FinishHashing() []byte {
	h.hashing = false
	if h.h == nil {
		return nil
	}
	sum := h.h.Sum(nil)
	h.h = nil
	return sum
}

// HashingWriter is the write-side counterpart of HashingReader.
type HashingWriter struct {
	w       io.Writer
	newHash func() hash.Hash
	h       hash.Hash
	hashing bool
}

// NewHashingWriter wraps w with a hashing extension. newHash, if nil,
// defaults to NewHasher (SHA-384).
func NewHashingWriter(w io.Writer, newHash func() hash.Hash) *HashingWriter {
	if newHash == nil {
		newHash = NewHasher
	}
	return &HashingWriter{w: w, newHash: newHash}
}

func (h *HashingWriter) Write(p []byte) (int, error) {
	n, err := h.w.Write(p)
	if n > 0 && h.hashing {
		h.h.Write(p[:n])
	}
	return n, err
}

// StartHashing begins accumulating subsequently-written bytes into a fresh
// digest.
func (h *HashingWriter) StartHashing() {
	h.h = h.newHash()
	h.hashing = true
}

// FinishHashing returns the accumulated digest and resets internal state.
func (h *HashingWriter) FinishHashing() []byte {
	h.hashing = false
	if h.h == nil {
		return nil
	}
	sum := h.h.Sum(nil)
	h.h = nil
	return sum
}
