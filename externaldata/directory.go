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

// Package externaldata manages the external-data directory referenced by
// a signed state's primary stream: large opaque blobs kept outside the
// self-describing stream and addressed by locator (spec §6 "Persisted
// state layout"). Concurrent access across reconnect learners and the
// state manager is serialized with advisory file locks.
package externaldata

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"golang.org/x/sys/unix"
)

// ErrInvalidLocator is returned for a locator that would escape the
// external-data directory.
var ErrInvalidLocator = errors.New("externaldata: invalid locator")

// Directory is a root path holding one file per locator.
type Directory struct {
	root string
}

// Open ensures root exists and returns a Directory rooted there.
func Open(root string) (*Directory, error) {
	if err := os.MkdirAll(root, 0o755); err != nil {
		return nil, fmt.Errorf("externaldata: creating %s: %w", root, err)
	}
	return &Directory{root: root}, nil
}

func (d *Directory) resolve(locator string) (string, error) {
	if locator == "" || strings.Contains(locator, "..") || filepath.IsAbs(locator) {
		return "", ErrInvalidLocator
	}
	return filepath.Join(d.root, locator), nil
}

// lockedFile holds an advisory lock for the lifetime of the returned
// io.ReadCloser/io.WriteCloser; Close releases the lock and closes the
// underlying file.
type lockedFile struct {
	f *os.File
}

func (l *lockedFile) Read(p []byte) (int, error)  { return l.f.Read(p) }
func (l *lockedFile) Write(p []byte) (int, error) { return l.f.Write(p) }

func (l *lockedFile) Close() error {
	unlockErr := unix.Flock(int(l.f.Fd()), unix.LOCK_UN)
	closeErr := l.f.Close()
	if unlockErr != nil {
		return fmt.Errorf("externaldata: unlock: %w", unlockErr)
	}
	return closeErr
}

// Create opens locator for writing under an exclusive lock, truncating
// any existing content. The caller must Close the result to release the
// lock.
func (d *Directory) Create(locator string) (io.WriteCloser, error) {
	path, err := d.resolve(locator)
	if err != nil {
		return nil, err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("externaldata: creating parent of %s: %w", locator, err)
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o644)
	if err != nil {
		return nil, fmt.Errorf("externaldata: create %s: %w", locator, err)
	}
	if err := unix.Flock(int(f.Fd()), unix.LOCK_EX); err != nil {
		f.Close()
		return nil, fmt.Errorf("externaldata: lock %s: %w", locator, err)
	}
	return &lockedFile{f: f}, nil
}

// Open opens locator for reading under a shared lock. The caller must
// Close the result to release the lock.
func (d *Directory) Open(locator string) (io.ReadCloser, error) {
	path, err := d.resolve(locator)
	if err != nil {
		return nil, err
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("externaldata: open %s: %w", locator, err)
	}
	if err := unix.Flock(int(f.Fd()), unix.LOCK_SH); err != nil {
		f.Close()
		return nil, fmt.Errorf("externaldata: lock %s: %w", locator, err)
	}
	return &lockedFile{f: f}, nil
}

// Store writes all of r's bytes to locator as a single locked operation.
func (d *Directory) Store(locator string, r io.Reader) error {
	w, err := d.Create(locator)
	if err != nil {
		return err
	}
	defer w.Close()
	if _, err := io.Copy(w, r); err != nil {
		return fmt.Errorf("externaldata: writing %s: %w", locator, err)
	}
	return nil
}

// Delete removes locator under an exclusive lock, so a concurrent reader
// either sees the file fully or not at all.
func (d *Directory) Delete(locator string) error {
	path, err := d.resolve(locator)
	if err != nil {
		return err
	}
	f, err := os.OpenFile(path, os.O_RDWR, 0o644)
	if errors.Is(err, os.ErrNotExist) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("externaldata: opening %s for delete: %w", locator, err)
	}
	defer f.Close()
	if err := unix.Flock(int(f.Fd()), unix.LOCK_EX); err != nil {
		return fmt.Errorf("externaldata: lock %s for delete: %w", locator, err)
	}
	defer unix.Flock(int(f.Fd()), unix.LOCK_UN)
	if err := os.Remove(path); err != nil {
		return fmt.Errorf("externaldata: removing %s: %w", locator, err)
	}
	return nil
}
