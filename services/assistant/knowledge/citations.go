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
	"regexp"
	"sort"
	"strings"
	"unicode/utf8"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
)

var citationTracer = otel.Tracer("shoplite.assistant.knowledge")

// citationPattern matches a bracketed citation token: one or more
// alphanumeric-or-dot characters between square brackets, e.g. "[Policy3.1]".
// This is the wire-level citation contract.
var citationPattern = regexp.MustCompile(`\[([A-Za-z0-9.]+)\]`)

// Citation pairs a validated citation id with the entry it references.
type Citation struct {
	// ID is the cited entry id.
	ID string `json:"id"`

	// Entry is the referenced knowledge entry.
	Entry Entry `json:"entry"`
}

// CitationSet partitions the citation tokens of one response text into
// valid and invalid sets. The grounding invariant is Invalid being
// empty: a response claiming policy grounding must never carry a
// citation that does not resolve to a knowledge entry.
type CitationSet struct {
	// Extracted lists every distinct token found, in first-seen order.
	Extracted []string `json:"extracted"`

	// Valid lists citations whose id matched an entry exactly.
	Valid []Citation `json:"valid"`

	// Invalid lists tokens with no matching entry.
	Invalid []string `json:"invalid"`
}

// IsValid reports whether every extracted citation resolved to an entry.
func (cs CitationSet) IsValid() bool {
	return len(cs.Invalid) == 0
}

// ExtractCitations finds all bracketed citation tokens in text,
// de-duplicated while preserving first-seen order.
func ExtractCitations(text string) []string {
	matches := citationPattern.FindAllStringSubmatch(text, -1)
	if len(matches) == 0 {
		return nil
	}

	seen := make(map[string]bool, len(matches))
	citations := make([]string, 0, len(matches))
	for _, m := range matches {
		token := m[1]
		if seen[token] {
			continue
		}
		seen[token] = true
		citations = append(citations, token)
	}
	return citations
}

// ValidateCitations partitions citation ids into valid and invalid sets
// against the current knowledge snapshot. Matching is exact and
// case-sensitive.
//
// Thread Safety: Safe for concurrent use (reads one snapshot).
func (s *Store) ValidateCitations(citations []string) CitationSet {
	set := CitationSet{Extracted: citations}
	for _, id := range citations {
		if entry, ok := s.Get(id); ok {
			set.Valid = append(set.Valid, Citation{ID: id, Entry: entry})
		} else {
			set.Invalid = append(set.Invalid, id)
		}
	}
	return set
}

// =============================================================================
// Relevance Scoring
// =============================================================================

// topicFamilies maps an entry category to the query keywords that count
// as a category hit during relevance scoring.
var topicFamilies = map[string][]string{
	"returns":  {"return", "refund", "exchange"},
	"shipping": {"shipping", "delivery", "ship"},
	"orders":   {"order", "track", "status"},
	"payment":  {"payment", "pay", "card", "paypal"},
	"account":  {"account", "register", "login", "password"},
	"support":  {"help", "support", "contact"},
	"privacy":  {"privacy", "data", "personal"},
}

// maxRelevantPolicies is how many entries FindRelevantPolicies returns.
const maxRelevantPolicies = 3

// ScoredEntry is a knowledge entry with its relevance score.
type ScoredEntry struct {
	Entry Entry
	Score int
}

// FindRelevantPolicies scores every knowledge entry against the query
// and returns the top entries with a positive score.
//
// Description:
//
//	Scoring per entry, against the lowercased query and the entry's
//	combined question+answer text:
//	  +10 when the full query is an exact substring of the entry text
//	  +1 per query keyword (length > 3) found in the entry text
//	  +2 per category keyword present in the query when the entry's
//	      category is a recognized topic family
//	The result is deterministic: scores tie-break by snapshot position,
//	so an unchanged store always yields the identical ranked set. This
//	scorer, not a generic search index, is the grounding mechanism.
//
// Outputs:
//
//	[]ScoredEntry - Up to 3 entries, score descending. Empty if nothing
//	scored positively.
//
// Thread Safety: Safe for concurrent use (reads one snapshot).
func (s *Store) FindRelevantPolicies(ctx context.Context, query string) []ScoredEntry {
	_, span := citationTracer.Start(ctx, "knowledge.FindRelevantPolicies")
	defer span.End()

	snap := s.current.Load()
	queryLower := strings.ToLower(strings.TrimSpace(query))
	if queryLower == "" {
		return nil
	}

	keywords := queryKeywords(queryLower)

	var scored []ScoredEntry
	for _, entry := range snap.entries {
		text := strings.ToLower(entry.Question + " " + entry.Answer)

		score := 0
		if strings.Contains(text, queryLower) {
			score += 10
		}
		for _, kw := range keywords {
			if strings.Contains(text, kw) {
				score++
			}
		}
		if family, ok := topicFamilies[entry.Category]; ok {
			for _, kw := range family {
				if strings.Contains(queryLower, kw) {
					score += 2
				}
			}
		}

		if score > 0 {
			scored = append(scored, ScoredEntry{Entry: entry, Score: score})
		}
	}

	// Stable sort keeps snapshot order among equal scores, which makes
	// the ranking reproducible for an unchanged store.
	sort.SliceStable(scored, func(i, j int) bool {
		return scored[i].Score > scored[j].Score
	})

	if len(scored) > maxRelevantPolicies {
		scored = scored[:maxRelevantPolicies]
	}

	span.SetAttributes(
		attribute.Int("result_count", len(scored)),
		attribute.Int("entry_count", len(snap.entries)),
	)
	return scored
}

// queryKeywords splits the query into distinct keywords longer than
// three characters.
func queryKeywords(queryLower string) []string {
	fields := strings.Fields(queryLower)
	seen := make(map[string]bool, len(fields))
	var keywords []string
	for _, f := range fields {
		f = strings.Trim(f, ".,!?\"'()[]")
		if utf8.RuneCountInString(f) <= 3 || seen[f] {
			continue
		}
		seen[f] = true
		keywords = append(keywords, f)
	}
	return keywords
}
