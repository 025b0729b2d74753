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
	"sync"

	"gopkg.in/yaml.v3"
)

// =============================================================================
// Embedded Response Templates
// =============================================================================

//go:embed responses.yaml
var defaultResponsesYAML []byte

// Response template kinds. Every kind must exist in responses.yaml for
// at least English; Arabic falls back to English when missing.
const (
	ResponseNoInformation  = "no_information"
	ResponseChitchat       = "chitchat"
	ResponseOffTopic       = "off_topic"
	ResponseViolation      = "violation"
	ResponseOrderStatus    = "order_status"
	ResponseOrderNotFound  = "order_not_found"
	ResponseOrderIDMissing = "order_id_missing"
	ResponseProductResults = "product_results"
	ResponseProductNone    = "product_none"
)

// requiredResponseKinds lists the kinds every template set must define.
var requiredResponseKinds = []string{
	ResponseNoInformation,
	ResponseChitchat,
	ResponseOffTopic,
	ResponseViolation,
	ResponseOrderStatus,
	ResponseOrderNotFound,
	ResponseOrderIDMissing,
	ResponseProductResults,
	ResponseProductNone,
}

// ResponseTemplates maps template kind to language to template text.
//
// Description:
//
//	These are the deterministic terminal responses of the engine. Some
//	templates carry fmt verbs (%s) filled at render time; the static ones
//	are returned verbatim.
//
// Thread Safety: Immutable after loading; safe for concurrent use.
type ResponseTemplates map[string]map[string]string

// Get returns the template for kind in the given language, falling back
// to English and finally to an empty string.
func (rt ResponseTemplates) Get(kind, lang string) string {
	byLang, ok := rt[kind]
	if !ok {
		return ""
	}
	if text, ok := byLang[lang]; ok && text != "" {
		return text
	}
	return byLang["en"]
}

var (
	responsesOnce    sync.Once
	cachedResponses  ResponseTemplates
	responsesLoadErr error
)

// GetResponseTemplates returns the cached default response templates,
// loading the embedded YAML on first call.
//
// Thread Safety: Safe for concurrent use (uses sync.Once internally).
func GetResponseTemplates() (ResponseTemplates, error) {
	responsesOnce.Do(func() {
		cachedResponses, responsesLoadErr = LoadResponseTemplates(defaultResponsesYAML)
	})
	return cachedResponses, responsesLoadErr
}

// LoadResponseTemplates parses and validates response templates from
// YAML bytes.
func LoadResponseTemplates(data []byte) (ResponseTemplates, error) {
	if len(data) == 0 {
		return nil, fmt.Errorf("LoadResponseTemplates: empty YAML data")
	}
	if len(data) > MaxYAMLFileSize {
		return nil, fmt.Errorf("LoadResponseTemplates: YAML data exceeds maximum size (%d > %d)", len(data), MaxYAMLFileSize)
	}

	var templates ResponseTemplates
	if err := yaml.Unmarshal(data, &templates); err != nil {
		return nil, fmt.Errorf("LoadResponseTemplates: parsing YAML: %w", err)
	}

	for _, kind := range requiredResponseKinds {
		byLang, ok := templates[kind]
		if !ok {
			return nil, fmt.Errorf("LoadResponseTemplates: missing template kind %q", kind)
		}
		if byLang["en"] == "" {
			return nil, fmt.Errorf("LoadResponseTemplates: template %q has no English text", kind)
		}
	}

	return templates, nil
}
