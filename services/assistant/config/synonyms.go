// Copyright (C) 2025 Shoplite (support@shoplite.io)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package config

import (
	_ "embed"
	"fmt"
	"log/slog"
	"sync"

	"gopkg.in/yaml.v3"
)

// =============================================================================
// Embedded Synonym Configuration
// =============================================================================

//go:embed synonyms.yaml
var defaultSynonymsYAML []byte

// DefaultMaxExpansionTerms bounds the expansion list (original text plus
// synonym terms) to keep downstream knowledge search cheap.
const DefaultMaxExpansionTerms = 12

// ConceptSynonyms holds the surface forms of one concept in both
// supported languages.
type ConceptSynonyms struct {
	// EN lists English synonyms for the concept.
	EN []string `yaml:"en"`

	// AR lists Arabic synonyms for the concept.
	AR []string `yaml:"ar"`
}

// SynonymConfig is the query normalization and expansion table.
//
// Description:
//
//	Fillers are per-language stop words removed during normalization.
//	Concepts map a canonical key (e.g. "return_policy") to its synonyms
//	in both languages. CrossLanguageHints are fixed phrases added in the
//	other language to improve recall on a bilingual knowledge base.
//
// Thread Safety: Immutable after loading; safe for concurrent use.
type SynonymConfig struct {
	// MaxExpansionTerms caps the expansion output list.
	MaxExpansionTerms int `yaml:"max_expansion_terms"`

	// Fillers maps language code ("en", "ar") to filler words.
	Fillers map[string][]string `yaml:"fillers"`

	// Concepts maps concept key to bilingual synonym lists.
	Concepts map[string]ConceptSynonyms `yaml:"concepts"`

	// CrossLanguageHints maps target language to the hint phrases added
	// when the input is in the other language.
	CrossLanguageHints map[string][]string `yaml:"cross_language_hints"`
}

var (
	synonymsOnce    sync.Once
	cachedSynonyms  *SynonymConfig
	synonymsLoadErr error
)

// GetSynonymConfig returns the cached default synonym configuration,
// loading the embedded YAML on first call.
//
// Thread Safety: Safe for concurrent use (uses sync.Once internally).
func GetSynonymConfig() (*SynonymConfig, error) {
	synonymsOnce.Do(func() {
		cachedSynonyms, synonymsLoadErr = LoadSynonymConfig(defaultSynonymsYAML)
	})
	return cachedSynonyms, synonymsLoadErr
}

// MustGetSynonymConfig returns the synonym config or an empty config on
// error. Expansion degrades gracefully rather than stopping the system.
func MustGetSynonymConfig() *SynonymConfig {
	cfg, err := GetSynonymConfig()
	if err != nil {
		slog.Warn("synonym config loading failed, continuing without expansion",
			slog.String("error", err.Error()),
		)
		return &SynonymConfig{MaxExpansionTerms: DefaultMaxExpansionTerms}
	}
	return cfg
}

// LoadSynonymConfig parses and validates a SynonymConfig from YAML bytes.
func LoadSynonymConfig(data []byte) (*SynonymConfig, error) {
	if len(data) == 0 {
		return nil, fmt.Errorf("LoadSynonymConfig: empty YAML data")
	}
	if len(data) > MaxYAMLFileSize {
		return nil, fmt.Errorf("LoadSynonymConfig: YAML data exceeds maximum size (%d > %d)", len(data), MaxYAMLFileSize)
	}

	var cfg SynonymConfig
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("LoadSynonymConfig: parsing YAML: %w", err)
	}

	if cfg.MaxExpansionTerms <= 0 {
		cfg.MaxExpansionTerms = DefaultMaxExpansionTerms
	}

	for key, concept := range cfg.Concepts {
		if len(concept.EN) == 0 && len(concept.AR) == 0 {
			return nil, fmt.Errorf("LoadSynonymConfig: concept %q has no synonyms", key)
		}
	}

	slog.Info("synonym config loaded",
		slog.Int("concept_count", len(cfg.Concepts)),
		slog.Int("max_expansion_terms", cfg.MaxExpansionTerms),
	)
	return &cfg, nil
}
