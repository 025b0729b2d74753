// Copyright (C) 2025 Shoplite (support@shoplite.io)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package llm talks to the optional external text-generation service
// used to phrase prose around grounded facts. Unavailability is a
// normal, expected outcome here, not an exceptional one: callers fall
// back to direct knowledge-entry text when Generate fails.
package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"strings"
	"time"
)

// ErrUnavailable signals that the generation service could not produce
// text. Callers treat this as "no generation configured".
var ErrUnavailable = errors.New("llm: generation service unavailable")

// GenerationParams are the optional knobs for one generation call.
type GenerationParams struct {
	// System is the system prompt, if any.
	System string

	// MaxTokens caps the generated output length.
	MaxTokens *int

	// Temperature controls sampling randomness.
	Temperature *float32

	// Stop lists stop sequences.
	Stop []string
}

// Generator produces text from a prompt. The zero-value behavior of
// every implementation must be safe to call concurrently.
type Generator interface {
	Generate(ctx context.Context, prompt string, params GenerationParams) (string, error)
}

// =============================================================================
// HTTP Client
// =============================================================================

const (
	defaultMaxTokens  = 256
	defaultMaxRetries = 3
	requestTimeout    = 60 * time.Second
)

type generateRequest struct {
	Model       string   `json:"model,omitempty"`
	System      string   `json:"system,omitempty"`
	Prompt      string   `json:"prompt"`
	MaxTokens   int      `json:"max_tokens"`
	Temperature *float32 `json:"temperature,omitempty"`
	Stop        []string `json:"stop,omitempty"`
}

type generateResponse struct {
	Text  string `json:"text"`
	Error string `json:"error,omitempty"`
}

// HTTPClient implements Generator against a simple JSON generation
// endpoint (POST {prompt, ...} -> {text}).
//
// Thread Safety: Safe for concurrent use.
type HTTPClient struct {
	httpClient *http.Client
	baseURL    string
	model      string
	apiKey     string
	maxRetries int
	logger     *slog.Logger
}

// NewHTTPClient creates a client for the given endpoint.
func NewHTTPClient(baseURL, model, apiKey string, logger *slog.Logger) *HTTPClient {
	if logger == nil {
		logger = slog.Default()
	}
	return &HTTPClient{
		httpClient: &http.Client{Timeout: requestTimeout},
		baseURL:    baseURL,
		model:      model,
		apiKey:     apiKey,
		maxRetries: defaultMaxRetries,
		logger:     logger,
	}
}

// NewHTTPClientFromEnv builds a client from GENERATION_URL,
// GENERATION_MODEL, and GENERATION_API_KEY.
//
// Description:
//
//	Returns (nil, nil) when GENERATION_URL is unset — running without a
//	generation service is a supported configuration, and the engine
//	then grounds answers directly from knowledge entries.
// generationSecretPath is where container orchestrators mount the API
// key when it is not passed through the environment.
var generationSecretPath = "/run/secrets/generation_api_key"

func NewHTTPClientFromEnv(logger *slog.Logger) (*HTTPClient, error) {
	if logger == nil {
		logger = slog.Default()
	}

	baseURL := strings.TrimSpace(os.Getenv("GENERATION_URL"))
	if baseURL == "" {
		return nil, nil
	}

	apiKey := strings.TrimSpace(os.Getenv("GENERATION_API_KEY"))
	if apiKey == "" {
		if content, err := os.ReadFile(generationSecretPath); err == nil {
			apiKey = strings.TrimSpace(string(content))
			logger.Info("Read generation API key from secrets")
		}
	}

	return NewHTTPClient(baseURL, os.Getenv("GENERATION_MODEL"), apiKey, logger), nil
}

// Generate implements Generator.
//
// Description:
//
//	Posts the prompt with bounded retries and linear backoff. Every
//	terminal failure — transport error, non-200 status, empty text —
//	maps to ErrUnavailable so callers have a single degradation path.
func (c *HTTPClient) Generate(ctx context.Context, prompt string, params GenerationParams) (string, error) {
	maxTokens := defaultMaxTokens
	if params.MaxTokens != nil {
		maxTokens = *params.MaxTokens
	}

	payload := generateRequest{
		Model:       c.model,
		System:      params.System,
		Prompt:      prompt,
		MaxTokens:   maxTokens,
		Temperature: params.Temperature,
		Stop:        params.Stop,
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return "", fmt.Errorf("llm: marshaling request: %w", err)
	}

	var lastErr error
	for attempt := 0; attempt < c.maxRetries; attempt++ {
		if attempt > 0 {
			backoff := time.Duration(float64(attempt)*1.2) * time.Second
			select {
			case <-ctx.Done():
				return "", ctx.Err()
			case <-time.After(backoff):
			}
		}

		text, err := c.post(ctx, body)
		if err == nil && text != "" {
			return text, nil
		}
		if err != nil {
			lastErr = err
		}
	}

	c.logger.Warn("generation service unavailable after retries",
		slog.String("url", c.baseURL),
		slog.Int("attempts", c.maxRetries),
	)
	if lastErr != nil {
		return "", fmt.Errorf("%w: %s", ErrUnavailable, lastErr.Error())
	}
	return "", ErrUnavailable
}

// post performs one generation attempt.
func (c *HTTPClient) post(ctx context.Context, body []byte) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL, bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("llm: building request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("llm: request failed: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return "", fmt.Errorf("llm: reading response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("llm: status %d", resp.StatusCode)
	}

	var parsed generateResponse
	if err := json.Unmarshal(respBody, &parsed); err != nil {
		return "", fmt.Errorf("llm: parsing response: %w", err)
	}
	if parsed.Error != "" {
		return "", fmt.Errorf("llm: service error: %s", parsed.Error)
	}
	return strings.TrimSpace(parsed.Text), nil
}
