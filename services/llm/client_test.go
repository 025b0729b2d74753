// Copyright (C) 2025 Shoplite (support@shoplite.io)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"
)

func TestGenerate_Success(t *testing.T) {
	var gotAuth string
	var gotReq generateRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		if err := json.NewDecoder(r.Body).Decode(&gotReq); err != nil {
			t.Errorf("decoding request: %v", err)
		}
		json.NewEncoder(w).Encode(generateResponse{Text: "  grounded answer [Policy3.1]  "})
	}))
	defer srv.Close()

	c := NewHTTPClient(srv.URL, "test-model", "secret", nil)
	text, err := c.Generate(context.Background(), "hello", GenerationParams{System: "sys"})
	if err != nil {
		t.Fatalf("Generate failed: %v", err)
	}
	if text != "grounded answer [Policy3.1]" {
		t.Errorf("expected trimmed text, got %q", text)
	}
	if gotAuth != "Bearer secret" {
		t.Errorf("expected bearer auth, got %q", gotAuth)
	}
	if gotReq.Model != "test-model" || gotReq.System != "sys" || gotReq.Prompt != "hello" {
		t.Errorf("unexpected request payload: %+v", gotReq)
	}
	if gotReq.MaxTokens != defaultMaxTokens {
		t.Errorf("expected default max tokens, got %d", gotReq.MaxTokens)
	}
}

func TestGenerate_RetriesThenSucceeds(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		if calls.Add(1) == 1 {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		json.NewEncoder(w).Encode(generateResponse{Text: "second time lucky"})
	}))
	defer srv.Close()

	c := NewHTTPClient(srv.URL, "", "", nil)
	text, err := c.Generate(context.Background(), "hi", GenerationParams{})
	if err != nil {
		t.Fatalf("Generate failed: %v", err)
	}
	if text != "second time lucky" {
		t.Errorf("unexpected text %q", text)
	}
	if calls.Load() != 2 {
		t.Errorf("expected 2 attempts, got %d", calls.Load())
	}
}

func TestGenerate_AllAttemptsFail(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	c := NewHTTPClient(srv.URL, "", "", nil)
	c.maxRetries = 2 // keep the backoff short in tests

	_, err := c.Generate(context.Background(), "hi", GenerationParams{})
	if !errors.Is(err, ErrUnavailable) {
		t.Fatalf("expected ErrUnavailable, got %v", err)
	}
	if calls.Load() != 2 {
		t.Errorf("expected 2 attempts, got %d", calls.Load())
	}
}

func TestGenerate_ServiceErrorField(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		json.NewEncoder(w).Encode(generateResponse{Error: "model overloaded"})
	}))
	defer srv.Close()

	c := NewHTTPClient(srv.URL, "", "", nil)
	c.maxRetries = 1

	_, err := c.Generate(context.Background(), "hi", GenerationParams{})
	if !errors.Is(err, ErrUnavailable) {
		t.Fatalf("expected ErrUnavailable, got %v", err)
	}
}

func TestGenerate_ContextCancelledDuringBackoff(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	c := NewHTTPClient(srv.URL, "", "", nil)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := c.Generate(ctx, "hi", GenerationParams{})
	if err == nil {
		t.Fatal("expected error from cancelled context")
	}
}

func TestNewHTTPClientFromEnv_Unset(t *testing.T) {
	t.Setenv("GENERATION_URL", "")

	c, err := NewHTTPClientFromEnv(nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if c != nil {
		t.Error("expected nil client when GENERATION_URL is unset")
	}
}

func TestNewHTTPClientFromEnv_Configured(t *testing.T) {
	t.Setenv("GENERATION_URL", "http://example.test/generate")
	t.Setenv("GENERATION_MODEL", "m1")
	t.Setenv("GENERATION_API_KEY", "k1")

	c, err := NewHTTPClientFromEnv(nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if c == nil {
		t.Fatal("expected configured client")
	}
	if c.baseURL != "http://example.test/generate" || c.model != "m1" || c.apiKey != "k1" {
		t.Errorf("client misconfigured: %+v", c)
	}
}

func TestNewHTTPClientFromEnv_SecretFile(t *testing.T) {
	t.Setenv("GENERATION_URL", "http://example.test/generate")
	t.Setenv("GENERATION_API_KEY", "")

	secretFile := filepath.Join(t.TempDir(), "generation_api_key")
	if err := os.WriteFile(secretFile, []byte("secret-key\n"), 0o600); err != nil {
		t.Fatalf("writing secret file: %v", err)
	}
	prev := generationSecretPath
	generationSecretPath = secretFile
	defer func() { generationSecretPath = prev }()

	var buf bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&buf, nil))

	c, err := NewHTTPClientFromEnv(logger)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if c == nil {
		t.Fatal("expected configured client")
	}
	if c.apiKey != "secret-key" {
		t.Errorf("apiKey = %q, want trimmed secret file content", c.apiKey)
	}
	// The caller's logger receives the structured output, not the
	// process default.
	if !strings.Contains(buf.String(), "Read generation API key from secrets") {
		t.Errorf("expected secret-load log on the injected logger, got %q", buf.String())
	}
}
