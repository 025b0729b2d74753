// Copyright (C) 2025 Shoplite (support@shoplite.io)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package knowledge

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"
)

const watcherDoc = `
entries:
  - id: File1.1
    category: returns
    question: "q"
    answer: "a"
`

const watcherDocTwo = `
entries:
  - id: File1.1
    category: returns
    question: "q"
    answer: "a"
  - id: File1.2
    category: shipping
    question: "q2"
    answer: "a2"
`

func TestWatcher_LoadFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "kb.yaml")
	if err := os.WriteFile(path, []byte(watcherDoc), 0o644); err != nil {
		t.Fatalf("writing file: %v", err)
	}

	s := newTestStore(t)
	w := NewWatcher(s, path, nil)

	count, err := w.LoadFile()
	if err != nil {
		t.Fatalf("LoadFile failed: %v", err)
	}
	if count != 1 {
		t.Errorf("expected 1 entry, got %d", count)
	}
	if _, ok := s.Get("File1.1"); !ok {
		t.Error("loaded entry missing from store")
	}
}

func TestWatcher_LoadFile_BrokenFileKeepsSnapshot(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "kb.yaml")
	if err := os.WriteFile(path, []byte("entries: []"), 0o644); err != nil {
		t.Fatalf("writing file: %v", err)
	}

	s := newTestStore(t)
	w := NewWatcher(s, path, nil)

	if _, err := w.LoadFile(); err == nil {
		t.Fatal("expected error for empty entry list")
	}
	if s.Len() != 3 {
		t.Errorf("active snapshot changed after failed load: len=%d", s.Len())
	}
}

func TestWatcher_Run_ReloadsOnWrite(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "kb.yaml")
	if err := os.WriteFile(path, []byte(watcherDoc), 0o644); err != nil {
		t.Fatalf("writing file: %v", err)
	}

	s := newTestStore(t)
	w := NewWatcher(s, path, nil)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	done := make(chan error, 1)
	go func() { done <- w.Run(ctx) }()

	// Give the watcher a moment to establish the directory watch.
	time.Sleep(200 * time.Millisecond)

	if err := os.WriteFile(path, []byte(watcherDocTwo), 0o644); err != nil {
		t.Fatalf("rewriting file: %v", err)
	}

	deadline := time.Now().Add(3 * time.Second)
	for time.Now().Before(deadline) {
		if _, ok := s.Get("File1.2"); ok {
			break
		}
		time.Sleep(20 * time.Millisecond)
	}
	if _, ok := s.Get("File1.2"); !ok {
		t.Fatal("store did not pick up the rewritten file")
	}

	cancel()
	if err := <-done; err != nil && !errors.Is(err, context.Canceled) {
		t.Errorf("Run returned unexpected error: %v", err)
	}
}
