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
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/fsnotify/fsnotify"
)

// Watcher hot-reloads the knowledge store from a YAML file on disk.
//
// Description:
//
//	Watches the file's directory (editors typically replace files via
//	rename, which drops a watch on the file itself) and re-parses the
//	document on create/write events for the watched path. A snapshot
//	swap only happens when the new document parses and validates; a
//	broken file leaves the active snapshot in place.
type Watcher struct {
	store  *Store
	path   string
	logger *slog.Logger
}

// NewWatcher creates a Watcher for the given store and file path.
func NewWatcher(store *Store, path string, logger *slog.Logger) *Watcher {
	if logger == nil {
		logger = slog.Default()
	}
	return &Watcher{store: store, path: path, logger: logger}
}

// LoadFile reads and loads the watched file into the store immediately.
func (w *Watcher) LoadFile() (int, error) {
	data, err := os.ReadFile(w.path)
	if err != nil {
		return 0, fmt.Errorf("knowledge: reading %s: %w", w.path, err)
	}
	entries, err := ParseEntries(data)
	if err != nil {
		return 0, err
	}
	return w.store.Reload(entries)
}

// Run watches the file until the context is cancelled.
//
// Description:
//
//	Blocks while processing filesystem events. Reload failures are
//	logged and skipped; only watcher setup errors are returned.
//
// Thread Safety: Call Run from a single goroutine.
func (w *Watcher) Run(ctx context.Context) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("knowledge: creating watcher: %w", err)
	}
	defer watcher.Close()

	dir := filepath.Dir(w.path)
	if err := watcher.Add(dir); err != nil {
		return fmt.Errorf("knowledge: watching %s: %w", dir, err)
	}

	w.logger.Info("knowledge file watcher started",
		slog.String("path", w.path),
	)

	target := filepath.Clean(w.path)
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(event.Name) != target {
				continue
			}
			if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) {
				continue
			}
			count, err := w.LoadFile()
			if err != nil {
				w.logger.Warn("knowledge reload skipped",
					slog.String("path", w.path),
					slog.String("error", err.Error()),
				)
				continue
			}
			w.logger.Info("knowledge reloaded from file",
				slog.String("path", w.path),
				slog.Int("entry_count", count),
			)
		case werr, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			w.logger.Warn("knowledge watcher error",
				slog.String("error", werr.Error()),
			)
		}
	}
}
