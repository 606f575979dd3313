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

import "time"

// Config holds the reconnect.* runtime settings (spec §6).
type Config struct {
	AsyncStreamTimeout       time.Duration
	AsyncOutputStreamFlush   time.Duration
	MaxAckDelay              time.Duration
	AsyncStreamBufferSize    int
	MaxConsecutiveFailures   int
	MinTimeBetweenReconnects time.Duration
}

// DefaultConfig returns reasonable defaults for interactive use.
func DefaultConfig() Config {
	return Config{
		AsyncStreamTimeout:       30 * time.Second,
		AsyncOutputStreamFlush:   5 * time.Second,
		MaxAckDelay:              100 * time.Millisecond,
		AsyncStreamBufferSize:    256,
		MaxConsecutiveFailures:   10,
		MinTimeBetweenReconnects: time.Second,
	}
}
