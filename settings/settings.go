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

// Package settings holds the process-wide runtime settings table from
// spec §6. It is a plain typed struct with defaults and validation, not a
// flag/env loader -- the loader itself is the excluded CLI/config
// collaborator from spec §1.
package settings

import (
	"fmt"
	"time"

	"github.com/hashgraph/merkle-state/merkleroute"
	"github.com/hashgraph/merkle-state/reconnect"
)

// Settings aggregates every setting spec §6 enumerates, wired to the
// package that consumes it.
type Settings struct {
	// RouteEncoding selects the word representation merkleroute.Encode and
	// Decode use for a Route. Per spec §9's open question, the two
	// encodings are assumed not to interoperate; this is a process-wide
	// choice, not per-route metadata.
	RouteEncoding merkleroute.Encoding

	// CPUThreadCount sizes the merklehasher worker pool used by
	// DigestAsync.
	CPUThreadCount int

	// Reconnect holds the reconnect.* settings consumed by
	// reconnect.Teacher/Learner.
	Reconnect reconnect.Config

	// RoundsNonAncient is the non-ancient window size W consumed by
	// statemanager.Manager.
	RoundsNonAncient int64

	// FCHashMapMaxGCQueueSize is the warning threshold on fchashmap's
	// pending GC event queue (0 disables the warning).
	FCHashMapMaxGCQueueSize int
}

// Default returns the settings a standalone process would start with
// absent any overrides from its (excluded) config loader.
func Default() Settings {
	return Settings{
		RouteEncoding:           merkleroute.BinaryCompressed,
		CPUThreadCount:          4,
		Reconnect:               reconnect.DefaultConfig(),
		RoundsNonAncient:        26,
		FCHashMapMaxGCQueueSize: 1000,
	}
}

// Validate rejects settings combinations that would leave a dependent
// component unable to start.
func (s Settings) Validate() error {
	if s.CPUThreadCount < 1 {
		return fmt.Errorf("settings: cpu_thread_count must be >= 1, got %d", s.CPUThreadCount)
	}
	if s.RoundsNonAncient < 1 {
		return fmt.Errorf("settings: rounds_non_ancient must be >= 1, got %d", s.RoundsNonAncient)
	}
	if s.Reconnect.MaxAckDelay <= 0 {
		return fmt.Errorf("settings: reconnect.max_ack_delay_ms must be > 0, got %v", s.Reconnect.MaxAckDelay)
	}
	if s.Reconnect.AsyncStreamTimeout <= 0 {
		return fmt.Errorf("settings: reconnect.async_stream_timeout_ms must be > 0, got %v", s.Reconnect.AsyncStreamTimeout)
	}
	if s.Reconnect.AsyncStreamBufferSize < 1 {
		return fmt.Errorf("settings: reconnect.async_stream_buffer_size must be >= 1, got %d", s.Reconnect.AsyncStreamBufferSize)
	}
	if s.Reconnect.MinTimeBetweenReconnects < 0 {
		return fmt.Errorf("settings: reconnect.min_time_between_reconnects must be >= 0, got %v", s.Reconnect.MinTimeBetweenReconnects)
	}
	switch s.RouteEncoding {
	case merkleroute.BinaryCompressed, merkleroute.Uncompressed:
	default:
		return fmt.Errorf("settings: unknown route_encoding %d", s.RouteEncoding)
	}
	return nil
}

// NextReconnectDelay is a small helper most callers that retry reconnect
// attempts need: spec §5/§8 bound retries by max_consecutive_failures
// and min_time_between_reconnects, but never says how a caller composes
// them. It gives the floor a caller should sleep before the next
// attempt once consecutiveFailures failures have occurred in a row.
func (s Settings) NextReconnectDelay(consecutiveFailures int) time.Duration {
	if consecutiveFailures <= 0 {
		return 0
	}
	return s.Reconnect.MinTimeBetweenReconnects
}
