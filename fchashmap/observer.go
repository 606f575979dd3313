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

package fchashmap

// GCObserver receives notifications from the collector. It
// exists so tests can assert on pruning behavior without reaching into
// package-private chain state; production callers have no need to
// implement it.
type GCObserver[K comparable] interface {
	// OnPrune is called after a chain at key has been truncated (or the
	// key removed entirely) because of a retired GC event at version.
	OnPrune(key K, version int64)
}

// Option configures a Copy returned by New.
type Option[K comparable, V any] func(*family[K, V])

// WithObserver attaches obs to the family's collector.
func WithObserver[K comparable, V any](obs GCObserver[K]) Option[K, V] {
	return func(f *family[K, V]) {
		f.observer = obs
	}
}
