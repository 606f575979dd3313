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

package statestore

import (
	"context"
	"strings"
	"testing"
)

func TestOpenRejectsMalformedDSN(t *testing.T) {
	if _, err := Open("this is not a dsn"); err == nil {
		t.Fatal("Open with a malformed DSN should fail fast without dialing")
	}
}

func TestQueryShapes(t *testing.T) {
	for _, q := range []struct {
		name, query string
		want        []string
	}{
		{"schema", schema, []string{"CREATE TABLE", "signed_states", "round", "hash", "locator", "retired_at"}},
		{"upsert", upsertQuery, []string{"INSERT INTO signed_states", "ON DUPLICATE KEY UPDATE"}},
		{"lookup", lookupQuery, []string{"SELECT hash, locator, retired_at", "WHERE round = ?"}},
		{"deleteBefore", deleteBeforeQuery, []string{"DELETE FROM signed_states", "WHERE round < ?"}},
	} {
		for _, want := range q.want {
			if !strings.Contains(q.query, want) {
				t.Errorf("%s query missing %q:\n%s", q.name, want, q.query)
			}
		}
	}
}

func TestOperationsOnClosedPoolReturnWrappedErrors(t *testing.T) {
	s, err := Open("user:pass@tcp(127.0.0.1:3306)/merklestate")
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	if err := s.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	ctx := context.Background()
	if err := s.EnsureSchema(ctx); err == nil {
		t.Fatal("EnsureSchema on a closed pool should error")
	}
	if err := s.Archive(ctx, Record{Round: 1}); err == nil {
		t.Fatal("Archive on a closed pool should error")
	}
	if _, err := s.Lookup(ctx, 1); err == nil || err == ErrNotFound {
		t.Fatalf("Lookup on a closed pool err = %v, want a wrapped connection error", err)
	}
	if _, err := s.DeleteBefore(ctx, 1); err == nil {
		t.Fatal("DeleteBefore on a closed pool should error")
	}
}
