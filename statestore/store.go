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

// Package statestore is a small SQL-backed registry mapping a retired
// round to where its signed state was archived, supplementing spec.md's
// "Persisted state layout" (§6) with durable indexing of evicted rounds.
package statestore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	_ "github.com/go-sql-driver/mysql"
)

// ErrNotFound is returned by Lookup when no record exists for a round.
var ErrNotFound = errors.New("statestore: round not found")

const schema = `
CREATE TABLE IF NOT EXISTS signed_states (
	round      BIGINT PRIMARY KEY,
	hash       VARBINARY(64) NOT NULL,
	locator    VARCHAR(512) NOT NULL,
	retired_at BIGINT NOT NULL
)`

const upsertQuery = `
INSERT INTO signed_states (round, hash, locator, retired_at)
VALUES (?, ?, ?, ?)
ON DUPLICATE KEY UPDATE hash = VALUES(hash), locator = VALUES(locator), retired_at = VALUES(retired_at)`

const lookupQuery = `SELECT hash, locator, retired_at FROM signed_states WHERE round = ?`

const deleteBeforeQuery = `DELETE FROM signed_states WHERE round < ?`

// Record is one archived round: its hash, where its external payload
// lives (a locator meaningful to externaldata), and when it retired.
type Record struct {
	Round     int64
	Hash      []byte
	Locator   string
	RetiredAt time.Time
}

// Store wraps a *sql.DB handle opened against the mysql driver.
type Store struct {
	db *sql.DB
}

// Open opens (but does not yet use) a MySQL connection pool at dsn.
func Open(dsn string) (*Store, error) {
	db, err := sql.Open("mysql", dsn)
	if err != nil {
		return nil, fmt.Errorf("statestore: open: %w", err)
	}
	return &Store{db: db}, nil
}

// New wraps an already-opened *sql.DB, e.g. one under test with a
// different driver registered behind the same interface.
func New(db *sql.DB) *Store {
	return &Store{db: db}
}

// Close releases the underlying connection pool.
func (s *Store) Close() error {
	return s.db.Close()
}

// EnsureSchema creates the signed_states table if it does not exist.
func (s *Store) EnsureSchema(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("statestore: ensure schema: %w", err)
	}
	return nil
}

// Archive upserts round's archival record.
func (s *Store) Archive(ctx context.Context, rec Record) error {
	_, err := s.db.ExecContext(ctx, upsertQuery, rec.Round, rec.Hash, rec.Locator, rec.RetiredAt.Unix())
	if err != nil {
		return fmt.Errorf("statestore: archive round %d: %w", rec.Round, err)
	}
	return nil
}

// Lookup returns the archival record for round, or ErrNotFound.
func (s *Store) Lookup(ctx context.Context, round int64) (Record, error) {
	row := s.db.QueryRowContext(ctx, lookupQuery, round)
	var rec Record
	var retiredAtUnix int64
	rec.Round = round
	if err := row.Scan(&rec.Hash, &rec.Locator, &retiredAtUnix); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Record{}, ErrNotFound
		}
		return Record{}, fmt.Errorf("statestore: lookup round %d: %w", round, err)
	}
	rec.RetiredAt = time.Unix(retiredAtUnix, 0).UTC()
	return rec, nil
}

// DeleteBefore removes every archived record strictly older than round,
// e.g. once a later checkpoint makes them unreachable.
func (s *Store) DeleteBefore(ctx context.Context, round int64) (int64, error) {
	res, err := s.db.ExecContext(ctx, deleteBeforeQuery, round)
	if err != nil {
		return 0, fmt.Errorf("statestore: delete before round %d: %w", round, err)
	}
	return res.RowsAffected()
}
