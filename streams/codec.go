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
	"errors"
	"fmt"
	"io"
	"math"
	"time"

	"golang.org/x/text/unicode/norm"
)

// Sentinels from spec §6.
const (
	nullClassID   = int64(-1) << 63 // INT64_MIN
	nullVersion   = int32(-1) << 31 // INT32_MIN
	nullLength    = int32(-1)
	nullEpochSecs = int64(-1) << 63 // INT64_MIN
)

// ErrStructural flags a malformed self-describing payload: a length
// sentinel without data, a class-id mismatch inside an all-same-class
// list, or a debug trailing flag that doesn't match its class-id.
var ErrStructural = errors.New("streams: structural decode error")

// Serializable is implemented by application types written through the
// self-describing object encoding.
type Serializable interface {
	ClassID() int64
	Version() int32
	WriteTo(w *Writer) error
}

// Writer is a deterministic, self-describing big-endian encoder over an
// underlying io.Writer. Debug mode appends a trailing -classID flag after
// every self-serializable payload for out-of-band corruption detection;
// streams written with Debug=true are not interchangeable with streams
// written without it (spec §4.1).
type Writer struct {
	w     io.Writer
	Debug bool
}

// NewWriter wraps w for self-describing encoding.
func NewWriter(w io.Writer) *Writer { return &Writer{w: w} }

func (w *Writer) writeRaw(p []byte) error {
	_, err := w.w.Write(p)
	return err
}

// Bool writes a single byte, 1 for true, 0 for false.
func (w *Writer) Bool(v bool) error {
	var b [1]byte
	if v {
		b[0] = 1
	}
	return w.writeRaw(b[:])
}

// Int32 writes a big-endian 4-byte signed integer.
func (w *Writer) Int32(v int32) error {
	var b [4]byte
	binary.BigEndian.PutUint32(b[:], uint32(v))
	return w.writeRaw(b[:])
}

// Int64 writes a big-endian 8-byte signed integer.
func (w *Writer) Int64(v int64) error {
	var b [8]byte
	binary.BigEndian.PutUint64(b[:], uint64(v))
	return w.writeRaw(b[:])
}

// Float32 writes a big-endian 4-byte IEEE-754 float.
func (w *Writer) Float32(v float32) error {
	return w.Int32(int32(math.Float32bits(v)))
}

// Float64 writes a big-endian 8-byte IEEE-754 float.
func (w *Writer) Float64(v float64) error {
	return w.Int64(int64(math.Float64bits(v)))
}

// Bytes writes a nullable length-prefixed byte array. A nil slice encodes
// as length -1.
func (w *Writer) Bytes(p []byte) error {
	if p == nil {
		return w.Int32(nullLength)
	}
	if err := w.Int32(int32(len(p))); err != nil {
		return err
	}
	return w.writeRaw(p)
}

// String writes s normalized to Unicode NFD and encoded as a
// length-prefixed UTF-8 byte array (spec §4.1/§6). A nil-string sentinel is
// not modeled here; use NullableString for that.
func (w *Writer) String(s string) error {
	return w.Bytes([]byte(norm.NFD.String(s)))
}

// NullableString writes s the same way as String, but treats present==false
// as a null value.
func (w *Writer) NullableString(s string, present bool) error {
	if !present {
		return w.Bytes(nil)
	}
	return w.String(s)
}

// Instant writes t as (epoch_second, nano), or the null sentinel if
// present is false.
func (w *Writer) Instant(t time.Time, present bool) error {
	if !present {
		return w.Int64(nullEpochSecs)
	}
	if err := w.Int64(t.Unix()); err != nil {
		return err
	}
	return w.Int64(int64(t.Nanosecond()))
}

// Object writes a nullable self-serializable object: class-id, version,
// then its payload. obj == nil writes the null class-id sentinel only.
func (w *Writer) Object(obj Serializable) error {
	if obj == nil {
		return w.Int64(nullClassID)
	}
	if err := w.Int64(obj.ClassID()); err != nil {
		return err
	}
	if err := w.Int32(obj.Version()); err != nil {
		return err
	}
	if err := obj.WriteTo(w); err != nil {
		return err
	}
	if w.Debug {
		if err := w.Int64(-obj.ClassID()); err != nil {
			return err
		}
	}
	return nil
}

// List writes a nullable, possibly-homogeneous list of self-serializable
// objects. When allSameClass is true, the class-id+version header is
// written once, followed by (is_null, payload) pairs; every non-nil
// element must then share the same ClassID/Version. items == nil writes
// the null-length sentinel.
func (w *Writer) List(items []Serializable, allSameClass bool) error {
	if items == nil {
		return w.Int32(nullLength)
	}
	if err := w.Int32(int32(len(items))); err != nil {
		return err
	}
	if err := w.Bool(allSameClass); err != nil {
		return err
	}
	if !allSameClass {
		for _, it := range items {
			if err := w.Object(it); err != nil {
				return err
			}
		}
		return nil
	}

	var classID int64
	var version int32
	haveHeader := false
	for _, it := range items {
		if it == nil {
			continue
		}
		if !haveHeader {
			classID, version = it.ClassID(), it.Version()
			haveHeader = true
		} else if it.ClassID() != classID || it.Version() != version {
			return fmt.Errorf("streams: all_same_class list has mixed class/version (%d/%d vs %d/%d): %w",
				it.ClassID(), it.Version(), classID, version, ErrStructural)
		}
	}
	if haveHeader {
		if err := w.Int64(classID); err != nil {
			return err
		}
		if err := w.Int32(version); err != nil {
			return err
		}
	}
	for _, it := range items {
		if it == nil {
			if err := w.Bool(true); err != nil {
				return err
			}
			continue
		}
		if err := w.Bool(false); err != nil {
			return err
		}
		if err := it.WriteTo(w); err != nil {
			return err
		}
		if w.Debug {
			if err := w.Int64(-it.ClassID()); err != nil {
				return err
			}
		}
	}
	return nil
}
