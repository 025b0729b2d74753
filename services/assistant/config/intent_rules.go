// Copyright (C) 2025 Shoplite (support@shoplite.io)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package config loads the embedded rule tables for the support
// assistant: intent classification rules, query expansion synonyms,
// response templates, and the seed knowledge base. All configs are
// parsed once, validated, and treated as immutable afterwards.
package config

import (
	_ "embed"
	"fmt"
	"log/slog"
	"sync"

	"gopkg.in/yaml.v3"
)

// =============================================================================
// Embedded Intent Rules
// =============================================================================

//go:embed intent_rules.yaml
var defaultIntentRulesYAML []byte

// MaxYAMLFileSize bounds any embedded or reloaded YAML document.
const MaxYAMLFileSize = 1 << 20 // 1 MiB

// =============================================================================
// Intent Rule Types
// =============================================================================

// IntentRule holds the keyword and regex signals for one intent.
//
// Description:
//
//	Keywords are matched by lowercase substring containment and score +2
//	each. Patterns are regular expressions scored +3 each. Both are
//	evaluated against the original (non-expanded) input text.
type IntentRule struct {
	// Keywords are lowercase substrings that indicate this intent.
	Keywords []string `yaml:"keywords"`

	// Patterns are regular expressions that indicate this intent.
	Patterns []string `yaml:"patterns"`
}

// IntentRules is the full classification rule set.
//
// Description:
//
//	Order is the declared tie-break priority: when two intents score the
//	same non-zero total, the one listed earlier wins. This ordering is a
//	documented contract, not an implementation accident.
//
// Thread Safety: Immutable after loading; safe for concurrent use.
type IntentRules struct {
	// Order is the declared intent priority for tie-breaking.
	Order []string `yaml:"order"`

	// ShortInputThreshold is the input length below which a zero-score
	// input defaults to chitchat instead of off_topic.
	ShortInputThreshold int `yaml:"short_input_threshold"`

	// Intents maps intent name to its scoring rule.
	Intents map[string]IntentRule `yaml:"intents"`
}

// DefaultShortInputThreshold applies when the YAML omits the threshold.
const DefaultShortInputThreshold = 20

var (
	intentRulesMu      sync.RWMutex
	cachedIntentRules  *IntentRules
	intentRulesLoadErr error
)

// GetIntentRules returns the cached default intent rules, loading the
// embedded YAML on first call.
//
// Outputs:
//
//	*IntentRules - The loaded rules. Never nil on success.
//	error - Non-nil if parsing or validation failed.
//
// Thread Safety: Safe for concurrent use.
func GetIntentRules() (*IntentRules, error) {
	intentRulesMu.RLock()
	if cachedIntentRules != nil || intentRulesLoadErr != nil {
		rules, err := cachedIntentRules, intentRulesLoadErr
		intentRulesMu.RUnlock()
		return rules, err
	}
	intentRulesMu.RUnlock()

	intentRulesMu.Lock()
	defer intentRulesMu.Unlock()
	if cachedIntentRules == nil && intentRulesLoadErr == nil {
		cachedIntentRules, intentRulesLoadErr = LoadIntentRules(defaultIntentRulesYAML)
	}
	return cachedIntentRules, intentRulesLoadErr
}

// ResetIntentRules clears the cached rules so tests can reload with
// different data.
func ResetIntentRules() {
	intentRulesMu.Lock()
	defer intentRulesMu.Unlock()
	cachedIntentRules = nil
	intentRulesLoadErr = nil
}

// LoadIntentRules parses and validates an IntentRules document from YAML
// bytes.
//
// Description:
//
//	Applies defaults for missing fields and validates that the declared
//	order and the intent map name exactly the same set of intents.
//
// Inputs:
//
//	data - Raw YAML bytes to parse.
//
// Outputs:
//
//	*IntentRules - The validated rules.
//	error - Non-nil if parsing or validation fails.
func LoadIntentRules(data []byte) (*IntentRules, error) {
	if len(data) == 0 {
		return nil, fmt.Errorf("LoadIntentRules: empty YAML data")
	}
	if len(data) > MaxYAMLFileSize {
		return nil, fmt.Errorf("LoadIntentRules: YAML data exceeds maximum size (%d > %d)", len(data), MaxYAMLFileSize)
	}

	var rules IntentRules
	if err := yaml.Unmarshal(data, &rules); err != nil {
		return nil, fmt.Errorf("LoadIntentRules: parsing YAML: %w", err)
	}

	if rules.ShortInputThreshold <= 0 {
		rules.ShortInputThreshold = DefaultShortInputThreshold
	}

	if err := validateIntentRules(&rules); err != nil {
		return nil, fmt.Errorf("LoadIntentRules: validation: %w", err)
	}

	slog.Info("intent rules loaded",
		slog.Int("intent_count", len(rules.Intents)),
		slog.Int("short_input_threshold", rules.ShortInputThreshold),
	)
	return &rules, nil
}

// validateIntentRules checks the rule set for consistency.
func validateIntentRules(rules *IntentRules) error {
	if len(rules.Order) == 0 {
		return fmt.Errorf("order must not be empty")
	}
	if len(rules.Intents) == 0 {
		return fmt.Errorf("intents must not be empty")
	}

	seen := make(map[string]bool, len(rules.Order))
	for i, name := range rules.Order {
		if name == "" {
			return fmt.Errorf("order[%d]: name must not be empty", i)
		}
		if seen[name] {
			return fmt.Errorf("order[%d]: duplicate intent %q", i, name)
		}
		seen[name] = true
		if _, ok := rules.Intents[name]; !ok {
			return fmt.Errorf("order[%d]: intent %q has no rule", i, name)
		}
	}
	for name := range rules.Intents {
		if !seen[name] {
			return fmt.Errorf("intent %q missing from declared order", name)
		}
	}
	for name, rule := range rules.Intents {
		if len(rule.Keywords) == 0 && len(rule.Patterns) == 0 {
			return fmt.Errorf("intent %q: needs at least one keyword or pattern", name)
		}
	}
	return nil
}
