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

	"github.com/shoplite/assist/services/assistant/knowledge"
)

// =============================================================================
// Embedded Knowledge Seed
// =============================================================================

//go:embed knowledge_base.yaml
var defaultKnowledgeYAML []byte

var (
	knowledgeSeedOnce    sync.Once
	cachedKnowledgeSeed  []knowledge.Entry
	knowledgeSeedLoadErr error
)

// GetKnowledgeSeed returns the embedded seed knowledge entries, parsing
// the YAML on first call.
//
// Description:
//
//	The seed is the ground-truth policy collection shipped with the
//	binary. Deployments can replace it wholesale at runtime through the
//	reload endpoint or a watched knowledge file.
//
// Thread Safety: Safe for concurrent use (uses sync.Once internally).
func GetKnowledgeSeed() ([]knowledge.Entry, error) {
	knowledgeSeedOnce.Do(func() {
		if len(defaultKnowledgeYAML) > MaxYAMLFileSize {
			knowledgeSeedLoadErr = fmt.Errorf("GetKnowledgeSeed: seed exceeds maximum size")
			return
		}
		cachedKnowledgeSeed, knowledgeSeedLoadErr = knowledge.ParseEntries(defaultKnowledgeYAML)
	})
	return cachedKnowledgeSeed, knowledgeSeedLoadErr
}
