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
	"reflect"
	"testing"
)

func TestExtractCitations(t *testing.T) {
	tests := []struct {
		name string
		text string
		want []string
	}{
		{
			name: "single citation",
			text: "You can return items within 30 days [Policy3.1].",
			want: []string{"Policy3.1"},
		},
		{
			name: "multiple distinct",
			text: "See [Policy3.1] and [Shipping2.1] for details.",
			want: []string{"Policy3.1", "Shipping2.1"},
		},
		{
			name: "duplicates collapse to first-seen order",
			text: "[B2] then [A1] then [B2] again",
			want: []string{"B2", "A1"},
		},
		{
			name: "no citations",
			text: "Nothing bracketed here.",
			want: nil,
		},
		{
			name: "brackets with illegal characters are not citations",
			text: "ignore [not a citation] and [foo_bar] but keep [Ok1]",
			want: []string{"Ok1"},
		},
		{
			name: "empty brackets",
			text: "[]",
			want: nil,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ExtractCitations(tt.text)
			if !reflect.DeepEqual(got, tt.want) {
				t.Errorf("ExtractCitations(%q) = %v, want %v", tt.text, got, tt.want)
			}
		})
	}
}

func TestValidateCitations(t *testing.T) {
	s := newTestStore(t)

	set := s.ValidateCitations([]string{"Policy3.1", "Z99", "Shipping2.1"})
	if set.IsValid() {
		t.Error("expected set with unknown id to be invalid")
	}
	if len(set.Valid) != 2 {
		t.Errorf("expected 2 valid citations, got %d", len(set.Valid))
	}
	if !reflect.DeepEqual(set.Invalid, []string{"Z99"}) {
		t.Errorf("expected invalid [Z99], got %v", set.Invalid)
	}
	if set.Valid[0].Entry.ID != "Policy3.1" {
		t.Errorf("valid citation should carry its entry, got %+v", set.Valid[0])
	}

	// Case matters: ids match exactly or not at all.
	set = s.ValidateCitations([]string{"policy3.1"})
	if set.IsValid() {
		t.Error("lowercase id must not validate against Policy3.1")
	}

	if !s.ValidateCitations(nil).IsValid() {
		t.Error("empty citation list is vacuously valid")
	}
}

func TestFindRelevantPolicies_Scoring(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	// "return" is both a query keyword hit and a returns-family hit.
	scored := s.FindRelevantPolicies(ctx, "how do I return an item")
	if len(scored) == 0 {
		t.Fatal("expected results for a return query")
	}
	if scored[0].Entry.ID != "Policy3.1" {
		t.Errorf("expected Policy3.1 ranked first, got %s", scored[0].Entry.ID)
	}

	// Exact substring of the entry text dominates.
	scored = s.FindRelevantPolicies(ctx, "return policy")
	if len(scored) == 0 || scored[0].Entry.ID != "Policy3.1" {
		t.Fatalf("expected Policy3.1 first for exact phrase, got %+v", scored)
	}
	if scored[0].Score < 10 {
		t.Errorf("expected exact-substring bonus, score=%d", scored[0].Score)
	}
}

func TestFindRelevantPolicies_EmptyCases(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	if got := s.FindRelevantPolicies(ctx, ""); got != nil {
		t.Errorf("expected nil for empty query, got %v", got)
	}
	if got := s.FindRelevantPolicies(ctx, "   "); got != nil {
		t.Errorf("expected nil for blank query, got %v", got)
	}
	if got := s.FindRelevantPolicies(ctx, "zzz qqq"); len(got) != 0 {
		t.Errorf("expected no results for unrelated query, got %v", got)
	}
}

func TestFindRelevantPolicies_CapAndDeterminism(t *testing.T) {
	entries := []Entry{
		{ID: "A1", Category: "returns", Question: "return question one", Answer: "a"},
		{ID: "A2", Category: "returns", Question: "return question two", Answer: "a"},
		{ID: "A3", Category: "returns", Question: "return question three", Answer: "a"},
		{ID: "A4", Category: "returns", Question: "return question four", Answer: "a"},
	}
	s, err := NewStore(entries, nil)
	if err != nil {
		t.Fatalf("NewStore failed: %v", err)
	}
	ctx := context.Background()

	first := s.FindRelevantPolicies(ctx, "return")
	if len(first) != 3 {
		t.Fatalf("expected cap at 3 results, got %d", len(first))
	}

	// All four entries tie, so the cap keeps the first three in
	// snapshot order, run after run.
	for i := range 10 {
		again := s.FindRelevantPolicies(ctx, "return")
		if !reflect.DeepEqual(first, again) {
			t.Fatalf("run %d: ranking not deterministic: %v vs %v", i, first, again)
		}
	}
	for i, want := range []string{"A1", "A2", "A3"} {
		if first[i].Entry.ID != want {
			t.Errorf("position %d: expected %s, got %s", i, want, first[i].Entry.ID)
		}
	}
}

func TestQueryKeywords(t *testing.T) {
	got := queryKeywords("how do i return my return order?!")
	want := []string{"return", "order"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("queryKeywords = %v, want %v", got, want)
	}

	// Length counts characters, not bytes: "هل" is two runes and must
	// drop out even though it is four bytes; "سياسة" is five runes and
	// stays.
	got = queryKeywords("هل سياسة الإرجاع")
	want = []string{"سياسة", "الإرجاع"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("queryKeywords = %v, want %v", got, want)
	}
}
