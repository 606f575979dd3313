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

package settings

import (
	"testing"
	"time"

	"github.com/hashgraph/merkle-state/merkleroute"
)

func TestDefaultValidates(t *testing.T) {
	if err := Default().Validate(); err != nil {
		t.Fatalf("Default().Validate() = %v, want nil", err)
	}
}

func TestValidateRejectsBadSettings(t *testing.T) {
	tests := []struct {
		name string
		mut  func(*Settings)
	}{
		{"zero cpu threads", func(s *Settings) { s.CPUThreadCount = 0 }},
		{"zero rounds window", func(s *Settings) { s.RoundsNonAncient = 0 }},
		{"zero ack delay", func(s *Settings) { s.Reconnect.MaxAckDelay = 0 }},
		{"zero stream timeout", func(s *Settings) { s.Reconnect.AsyncStreamTimeout = 0 }},
		{"zero stream buffer", func(s *Settings) { s.Reconnect.AsyncStreamBufferSize = 0 }},
		{"negative backoff floor", func(s *Settings) { s.Reconnect.MinTimeBetweenReconnects = -time.Second }},
		{"unknown route encoding", func(s *Settings) { s.RouteEncoding = merkleroute.Encoding(99) }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := Default()
			tt.mut(&s)
			if err := s.Validate(); err == nil {
				t.Fatalf("Validate() = nil, want error for %s", tt.name)
			}
		})
	}
}

func TestNextReconnectDelay(t *testing.T) {
	s := Default()
	if d := s.NextReconnectDelay(0); d != 0 {
		t.Fatalf("NextReconnectDelay(0) = %v, want 0", d)
	}
	if d := s.NextReconnectDelay(3); d != s.Reconnect.MinTimeBetweenReconnects {
		t.Fatalf("NextReconnectDelay(3) = %v, want %v", d, s.Reconnect.MinTimeBetweenReconnects)
	}
}
