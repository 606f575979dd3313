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

package streams

import (
	"encoding/binary"
	"fmt"
	"io"
	"math"
	"time"
)

// Reader is the decoding counterpart of Writer.
type Reader struct {
	r     io.Reader
	Debug bool
}

// NewReader wraps r for self-describing decoding.
func NewReader(r io.Reader) *Reader { return &Reader{r: r} }

func (r *Reader) readRaw(n int) ([]byte, error) {
	b := make([]byte, n)
	if _, err := io.ReadFull(r.r, b); err != nil {
		return nil, err
	}
	return b, nil
}

// Bool reads a single byte as a boolean.
func (r *Reader) Bool() (bool, error) {
	b, err := r.readRaw(1)
	if err != nil {
		return false, err
	}
	return b[0] != 0, nil
}

// Int32 reads a big-endian 4-byte signed integer.
func (r *Reader) Int32() (int32, error) {
	b, err := r.readRaw(4)
	if err != nil {
		return 0, err
	}
	return int32(binary.BigEndian.Uint32(b)), nil
}

// Int64 reads a big-endian 8-byte signed integer.
func (r *Reader) Int64() (int64, error) {
	b, err := r.readRaw(8)
	if err != nil {
		return 0, err
	}
	return int64(binary.BigEndian.Uint64(b)), nil
}

// Float32 reads a big-endian 4-byte IEEE-754 float.
func (r *Reader) Float32() (float32, error) {
	v, err := r.Int32()
	if err != nil {
		return 0, err
	}
	return math.Float32frombits(uint32(v)), nil
}

// Float64 reads a big-endian 8-byte IEEE-754 float.
func (r *Reader) Float64() (float64, error) {
	v, err := r.Int64()
	if err != nil {
		return 0, err
	}
	return math.Float64frombits(uint64(v)), nil
}

// Bytes reads a nullable length-prefixed byte array; a length of -1
// decodes to a nil slice.
func (r *Reader) Bytes() ([]byte, error) {
	n, err := r.Int32()
	if err != nil {
		return nil, err
	}
	if n == nullLength {
		return nil, nil
	}
	if n < 0 {
		return nil, fmt.Errorf("streams: negative length %d without null sentinel: %w", n, ErrStructural)
	}
	return r.readRaw(int(n))
}

// String reads back a String (already NFD-normalized on the wire).
func (r *Reader) String() (string, error) {
	b, err := r.Bytes()
	if err != nil {
		return "", err
	}
	return string(b), nil
}

// NullableString is the decoding counterpart of Writer.NullableString.
func (r *Reader) NullableString() (s string, present bool, err error) {
	b, err := r.Bytes()
	if err != nil {
		return "", false, err
	}
	if b == nil {
		return "", false, nil
	}
	return string(b), true, nil
}

// Instant is the decoding counterpart of Writer.Instant.
func (r *Reader) Instant() (t time.Time, present bool, err error) {
	secs, err := r.Int64()
	if err != nil {
		return time.Time{}, false, err
	}
	if secs == nullEpochSecs {
		return time.Time{}, false, nil
	}
	nanos, err := r.Int64()
	if err != nil {
		return time.Time{}, false, err
	}
	return time.Unix(secs, nanos).UTC(), true, nil
}

// ObjectHeader is the decoded (class-id, version) pair preceding a
// self-serializable payload. Null is true when the class-id sentinel was
// read, in which case Version is meaningless and no payload follows.
type ObjectHeader struct {
	ClassID int64
	Version int32
	Null    bool
}

// ReadObjectHeader reads the class-id (and, unless null, the version) that
// precedes a self-serializable payload.
func (r *Reader) ReadObjectHeader() (ObjectHeader, error) {
	classID, err := r.Int64()
	if err != nil {
		return ObjectHeader{}, err
	}
	if classID == nullClassID {
		return ObjectHeader{Null: true}, nil
	}
	version, err := r.Int32()
	if err != nil {
		return ObjectHeader{}, err
	}
	return ObjectHeader{ClassID: classID, Version: version}, nil
}

// FinishObject consumes and checks the debug trailing flag, if Debug is
// set, for the object whose header was just read.
func (r *Reader) FinishObject(h ObjectHeader) error {
	if !r.Debug || h.Null {
		return nil
	}
	flag, err := r.Int64()
	if err != nil {
		return err
	}
	if flag != -h.ClassID {
		return fmt.Errorf("streams: debug flag %d does not match class-id %d: %w", flag, h.ClassID, ErrStructural)
	}
	return nil
}

// ListHeader describes a decoded list's shape.
type ListHeader struct {
	Size         int32
	Null         bool
	AllSameClass bool
}

// ReadListHeader reads a list's length and (if present) its
// all-same-class flag.
func (r *Reader) ReadListHeader() (ListHeader, error) {
	size, err := r.Int32()
	if err != nil {
		return ListHeader{}, err
	}
	if size == nullLength {
		return ListHeader{Null: true}, nil
	}
	if size < 0 {
		return ListHeader{}, fmt.Errorf("streams: negative list size %d without null sentinel: %w", size, ErrStructural)
	}
	allSame, err := r.Bool()
	if err != nil {
		return ListHeader{}, err
	}
	return ListHeader{Size: size, AllSameClass: allSame}, nil
}
