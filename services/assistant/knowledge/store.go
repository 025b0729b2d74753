// Copyright (C) 2025 Shoplite (support@shoplite.io)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package knowledge holds the hot-reloadable policy knowledge base and
// the citation grounding machinery built on top of it: citation token
// extraction, validation against entry ids, and the deterministic
// relevance scorer used to ground policy answers.
package knowledge

import (
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"gopkg.in/yaml.v3"
)

// =============================================================================
// Prometheus Metrics
// =============================================================================

var (
	knowledgeEntriesGauge = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "assist",
		Subsystem: "knowledge",
		Name:      "entries",
		Help:      "Number of entries in the active knowledge snapshot",
	})

	knowledgeReloadsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "assist",
		Subsystem: "knowledge",
		Name:      "reloads_total",
		Help:      "Total knowledge base snapshot swaps",
	})
)

// =============================================================================
// Entry and Store Types
// =============================================================================

// Entry is one short Q/A knowledge record. Entries are immutable once
// loaded; the store is replaced wholesale on reload, never mutated.
type Entry struct {
	// ID is the stable identifier cited by grounded answers, e.g. "Policy3.1".
	ID string `yaml:"id" json:"id" validate:"required"`

	// Category groups entries into a topic family (returns, shipping, ...).
	Category string `yaml:"category" json:"category" validate:"required"`

	// Question is the canonical customer question this entry answers.
	Question string `yaml:"question" json:"question" validate:"required"`

	// Answer is the authoritative policy text.
	Answer string `yaml:"answer" json:"answer" validate:"required"`

	// LastUpdated records when the entry was last revised. Optional.
	LastUpdated *time.Time `yaml:"last_updated,omitempty" json:"last_updated,omitempty"`
}

// snapshot is one immutable view of the knowledge base. A reload builds
// a complete new snapshot off to the side and publishes it in one
// pointer swap, so concurrent readers see either the old or the new
// collection in full, never a mix.
type snapshot struct {
	entries []Entry
	byID    map[string]int
}

// Store is the process-wide, read-mostly knowledge base.
//
// Description:
//
//	All read paths go through the current snapshot pointer. Reload
//	replaces the snapshot atomically; no locks are needed.
//
// Thread Safety: Safe for concurrent use.
type Store struct {
	current atomic.Pointer[snapshot]
	logger  *slog.Logger
}

var entryValidator = validator.New()

// NewStore creates a Store seeded with the given entries.
//
// Inputs:
//
//	entries - The initial collection. May be empty.
//	logger - Logger for structured output. May be nil (uses slog.Default).
//
// Outputs:
//
//	*Store - The constructed store.
//	error - Non-nil if any entry fails validation or ids collide.
func NewStore(entries []Entry, logger *slog.Logger) (*Store, error) {
	if logger == nil {
		logger = slog.Default()
	}
	snap, err := buildSnapshot(entries)
	if err != nil {
		return nil, fmt.Errorf("knowledge: building initial snapshot: %w", err)
	}

	s := &Store{logger: logger}
	s.current.Store(snap)
	knowledgeEntriesGauge.Set(float64(len(snap.entries)))
	return s, nil
}

// buildSnapshot validates entries and constructs the id index.
func buildSnapshot(entries []Entry) (*snapshot, error) {
	snap := &snapshot{
		entries: make([]Entry, len(entries)),
		byID:    make(map[string]int, len(entries)),
	}
	copy(snap.entries, entries)

	for i, entry := range snap.entries {
		if err := entryValidator.Struct(entry); err != nil {
			return nil, fmt.Errorf("entry[%d] (%s): %w", i, entry.ID, err)
		}
		if _, exists := snap.byID[entry.ID]; exists {
			return nil, fmt.Errorf("entry[%d]: duplicate id %q", i, entry.ID)
		}
		snap.byID[entry.ID] = i
	}
	return snap, nil
}

// Reload replaces the entire knowledge collection atomically.
//
// Description:
//
//	Builds a complete new snapshot from the replacement entries, then
//	publishes it with a single pointer swap. In-flight readers keep the
//	snapshot they already resolved; new readers see the replacement in
//	full. On validation failure the active snapshot is left untouched.
//
// Inputs:
//
//	entries - The full replacement collection.
//
// Outputs:
//
//	int - The new entry count.
//	error - Non-nil if validation failed (store unchanged).
//
// Thread Safety: Safe for concurrent use.
func (s *Store) Reload(entries []Entry) (int, error) {
	snap, err := buildSnapshot(entries)
	if err != nil {
		return 0, fmt.Errorf("knowledge: reload rejected: %w", err)
	}

	s.current.Store(snap)
	knowledgeReloadsTotal.Inc()
	knowledgeEntriesGauge.Set(float64(len(snap.entries)))

	s.logger.Info("knowledge base reloaded",
		slog.Int("entry_count", len(snap.entries)),
	)
	return len(snap.entries), nil
}

// Get returns the entry with the given id, if present.
func (s *Store) Get(id string) (Entry, bool) {
	snap := s.current.Load()
	idx, ok := snap.byID[id]
	if !ok {
		return Entry{}, false
	}
	return snap.entries[idx], true
}

// All returns the entries of the current snapshot. The returned slice
// must be treated as read-only.
func (s *Store) All() []Entry {
	return s.current.Load().entries
}

// Len returns the entry count of the current snapshot.
func (s *Store) Len() int {
	return len(s.current.Load().entries)
}

// =============================================================================
// Entry Document Parsing
// =============================================================================

// entryDocument is the wire shape of a knowledge YAML document.
type entryDocument struct {
	Entries []Entry `yaml:"entries"`
}

// ParseEntries decodes a knowledge document ({entries: [...]}) from YAML
// bytes. Validation happens when the entries are loaded into a Store.
func ParseEntries(data []byte) ([]Entry, error) {
	if len(data) == 0 {
		return nil, fmt.Errorf("knowledge: empty document")
	}
	var doc entryDocument
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("knowledge: parsing document: %w", err)
	}
	if len(doc.Entries) == 0 {
		return nil, fmt.Errorf("knowledge: document has no entries")
	}
	return doc.Entries, nil
}
