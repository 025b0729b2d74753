// Copyright (C) 2025 Shoplite (support@shoplite.io)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package assistant is the customer-support decision engine: it
// classifies intent, grounds policy answers in the knowledge base with
// mandatory citations, dispatches side-effecting lookups through the
// function registry, and assembles exactly one response envelope per
// request — with deterministic fallbacks when grounding or generation
// is unavailable.
package assistant

import (
	"github.com/shoplite/assist/services/assistant/knowledge"
)

// GroundingMethod records how a response's content was produced.
type GroundingMethod string

const (
	// GroundingKnowledge marks answers cited from the knowledge base.
	GroundingKnowledge GroundingMethod = "knowledge"

	// GroundingFunction marks answers built from a function result.
	GroundingFunction GroundingMethod = "function"

	// GroundingFallback marks static or templated terminal responses.
	GroundingFallback GroundingMethod = "fallback"
)

// ChatContext carries optional caller-supplied request context.
type ChatContext struct {
	// CustomerID identifies the customer account, when known.
	CustomerID string `json:"customer_id,omitempty"`

	// Locale is a caller hint; language detection still runs on the text.
	Locale string `json:"locale,omitempty"`
}

// ChatRequest is one inbound support message.
type ChatRequest struct {
	// Message is the free-text customer input.
	Message string `json:"message" binding:"required"`

	// Context is optional caller-supplied context.
	Context *ChatContext `json:"context,omitempty"`
}

// ResponseEnvelope is the sole externally visible output of one
// pipeline run. Every engine branch produces exactly one envelope.
type ResponseEnvelope struct {
	// Text is the customer-facing response.
	Text string `json:"text"`

	// Intent is the classified intent name.
	Intent string `json:"intent"`

	// Confidence is the classifier confidence in [0,1].
	Confidence float64 `json:"confidence"`

	// Citations lists the knowledge entry ids backing the text. Always
	// present (possibly empty), never nil in the serialized form.
	Citations []string `json:"citations"`

	// FunctionsCalled lists the registry functions invoked, in order.
	FunctionsCalled []string `json:"functions_called"`

	// GroundingMethod records how the text was produced.
	GroundingMethod GroundingMethod `json:"grounding_method"`
}

// GenerateRequest is the direct generation passthrough payload.
type GenerateRequest struct {
	Prompt      string   `json:"prompt" binding:"required"`
	MaxTokens   int      `json:"max_tokens,omitempty"`
	Temperature *float32 `json:"temperature,omitempty"`
}

// GenerateResponse is the direct generation passthrough result.
type GenerateResponse struct {
	Text string `json:"text"`
}

// ReloadRequest is a full replacement knowledge collection.
type ReloadRequest struct {
	Entries []knowledge.Entry `json:"entries" binding:"required"`
}

// ReloadResponse reports the entry count after an atomic swap.
type ReloadResponse struct {
	EntryCount int `json:"entry_count"`
}

// ErrorResponse is the JSON error body for all endpoints.
type ErrorResponse struct {
	Error string `json:"error"`
	Code  string `json:"code,omitempty"`
}
