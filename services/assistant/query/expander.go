// Copyright (C) 2025 Shoplite (support@shoplite.io)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package query normalizes free-text customer input and expands it with
// same-language and cross-language synonym terms for better recall
// against the knowledge base.
package query

import (
	"regexp"
	"sort"
	"strings"

	"github.com/shoplite/assist/services/assistant/config"
)

// Language is a supported input language code.
type Language string

const (
	// LanguageEnglish is the default language.
	LanguageEnglish Language = "en"

	// LanguageArabic is the script-distinguishable alternate language.
	LanguageArabic Language = "ar"
)

// arabicScript matches any character in the Arabic Unicode block.
var arabicScript = regexp.MustCompile(`[\x{0600}-\x{06FF}]`)

// DetectLanguage returns Arabic when the text contains any character
// from the Arabic script range, English otherwise.
func DetectLanguage(text string) Language {
	if arabicScript.MatchString(text) {
		return LanguageArabic
	}
	return LanguageEnglish
}

// Expander normalizes input text and produces the bounded expansion
// list used for knowledge retrieval.
//
// Thread Safety: Safe for concurrent use (all state is read-only after
// construction).
type Expander struct {
	cfg *config.SynonymConfig

	// fillerPatterns holds one word-boundary removal regex per language.
	fillerPatterns map[Language]*regexp.Regexp
}

// NewExpander builds an Expander from the synonym configuration.
//
// Inputs:
//
//	cfg - Synonym configuration. Must not be nil.
func NewExpander(cfg *config.SynonymConfig) *Expander {
	e := &Expander{
		cfg:            cfg,
		fillerPatterns: make(map[Language]*regexp.Regexp, len(cfg.Fillers)),
	}
	for lang, fillers := range cfg.Fillers {
		if len(fillers) == 0 {
			continue
		}
		quoted := make([]string, len(fillers))
		for i, f := range fillers {
			quoted[i] = regexp.QuoteMeta(strings.ToLower(f))
		}
		e.fillerPatterns[Language(lang)] = regexp.MustCompile(`\b(` + strings.Join(quoted, "|") + `)\b`)
	}
	return e
}

// Normalize lowercases the text, strips the language's filler words at
// word boundaries, and collapses whitespace.
func (e *Expander) Normalize(text string, lang Language) string {
	normalized := strings.ToLower(strings.TrimSpace(text))
	if pattern, ok := e.fillerPatterns[lang]; ok {
		normalized = pattern.ReplaceAllString(normalized, " ")
	}
	return strings.Join(strings.Fields(normalized), " ")
}

// Expand returns the ordered retrieval list for the input: the original
// text first, then same-language synonyms of every concept the input
// touches, then fixed cross-language hint phrases. The list is capped
// at the configured maximum.
//
// Description:
//
//	A concept fires when any of its synonyms, in either language,
//	appears in the input. Of a fired concept only the synonyms in the
//	input's language join the expansion set; the other language is
//	covered by the fixed hint phrases. Empty input yields a
//	single-element list containing the empty string.
//
// Thread Safety: Safe for concurrent use.
func (e *Expander) Expand(text string) []string {
	if strings.TrimSpace(text) == "" {
		return []string{text}
	}

	terms := []string{text}

	lang := DetectLanguage(text)
	inputLower := strings.ToLower(text)
	seen := map[string]bool{strings.ToLower(text): true}

	add := func(term string) {
		key := strings.ToLower(term)
		if seen[key] || len(terms) >= e.cfg.MaxExpansionTerms {
			return
		}
		seen[key] = true
		terms = append(terms, term)
	}

	// Concept keys are walked in sorted order so the capped expansion
	// list is identical across runs.
	keys := make([]string, 0, len(e.cfg.Concepts))
	for key := range e.cfg.Concepts {
		keys = append(keys, key)
	}
	sort.Strings(keys)

	for _, key := range keys {
		concept := e.cfg.Concepts[key]
		if !conceptFires(inputLower, concept) {
			continue
		}
		var sameLang []string
		if lang == LanguageArabic {
			sameLang = concept.AR
		} else {
			sameLang = concept.EN
		}
		for _, syn := range sameLang {
			add(syn)
		}
	}

	// Hint phrases for the other language widen recall on a bilingual
	// knowledge base.
	other := LanguageArabic
	if lang == LanguageArabic {
		other = LanguageEnglish
	}
	for _, hint := range e.cfg.CrossLanguageHints[string(other)] {
		add(hint)
	}

	return terms
}

// conceptFires reports whether any synonym of the concept, in either
// language, appears in the lowercased input.
func conceptFires(inputLower string, concept config.ConceptSynonyms) bool {
	for _, syn := range concept.EN {
		if strings.Contains(inputLower, strings.ToLower(syn)) {
			return true
		}
	}
	for _, syn := range concept.AR {
		if strings.Contains(inputLower, syn) {
			return true
		}
	}
	return false
}
