// Copyright (C) 2025 Shoplite (support@shoplite.io)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package main

import (
	"bufio"
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/shoplite/assist/services/assistant/knowledge"
)

// ChatRequest mirrors the server's chat payload.
type ChatRequest struct {
	Message string `json:"message"`
}

// ChatResponse mirrors the server's response envelope.
type ChatResponse struct {
	Text            string   `json:"text"`
	Intent          string   `json:"intent"`
	Confidence      float64  `json:"confidence"`
	Citations       []string `json:"citations"`
	FunctionsCalled []string `json:"functions_called"`
	GroundingMethod string   `json:"grounding_method"`
}

// FunctionsResponse mirrors GET /v1/assistant/functions.
type FunctionsResponse struct {
	Functions []struct {
		Name        string `json:"name"`
		Description string `json:"description"`
	} `json:"functions"`
	Count int `json:"count"`
}

// ReloadResponse mirrors POST /v1/assistant/knowledge/reload.
type ReloadResponse struct {
	EntryCount int `json:"entry_count"`
}

func getServerBaseURL() string {
	if serverFlag != "" {
		return strings.TrimRight(serverFlag, "/")
	}
	if env := os.Getenv("ASSIST_SERVER"); env != "" {
		return strings.TrimRight(env, "/")
	}
	return "http://localhost:8080"
}

func httpClient() *http.Client {
	return &http.Client{Timeout: 60 * time.Second}
}

func runAskCommand(_ *cobra.Command, args []string) {
	message := strings.Join(args, " ")
	resp, err := sendChatRequest(message)
	if err != nil {
		log.Fatalf("Error: %v", err)
	}
	printChatResponse(resp)
}

func runChatCommand(_ *cobra.Command, _ []string) {
	fmt.Println("Shoplite support assistant. Type 'exit' or 'quit' to leave.")
	fmt.Println("---")

	scanner := bufio.NewScanner(os.Stdin)
	for {
		fmt.Print("You: ")
		if !scanner.Scan() {
			break
		}
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		if line == "exit" || line == "quit" {
			break
		}

		resp, err := sendChatRequest(line)
		if err != nil {
			fmt.Printf("Error: %v\n", err)
			continue
		}
		printChatResponse(resp)
	}
}

func runHealthCommand(_ *cobra.Command, _ []string) {
	baseURL := getServerBaseURL()
	resp, err := httpClient().Get(baseURL + "/v1/assistant/health")
	if err != nil {
		log.Fatalf("Error: server unreachable at %s: %v", baseURL, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		log.Fatalf("Error reading response: %v", err)
	}
	fmt.Println(string(body))
}

func runFunctionsCommand(_ *cobra.Command, _ []string) {
	baseURL := getServerBaseURL()
	resp, err := httpClient().Get(baseURL + "/v1/assistant/functions")
	if err != nil {
		log.Fatalf("Error: server unreachable at %s: %v", baseURL, err)
	}
	defer resp.Body.Close()

	var fr FunctionsResponse
	if err := json.NewDecoder(resp.Body).Decode(&fr); err != nil {
		log.Fatalf("Error decoding response: %v", err)
	}

	fmt.Printf("Available functions (%d):\n", fr.Count)
	for _, f := range fr.Functions {
		fmt.Printf("  %-20s %s\n", f.Name, f.Description)
	}
}

func runReloadCommand(_ *cobra.Command, args []string) {
	data, err := os.ReadFile(args[0])
	if err != nil {
		log.Fatalf("Error reading %s: %v", args[0], err)
	}

	// Validate locally first so a broken file fails fast with a line
	// number instead of a server-side rejection.
	entries, err := knowledge.ParseEntries(data)
	if err != nil {
		log.Fatalf("Error parsing %s: %v", args[0], err)
	}

	payload, err := json.Marshal(map[string]any{"entries": entries})
	if err != nil {
		log.Fatalf("Error encoding entries: %v", err)
	}

	baseURL := getServerBaseURL()
	resp, err := httpClient().Post(baseURL+"/v1/assistant/knowledge/reload", "application/json", bytes.NewReader(payload))
	if err != nil {
		log.Fatalf("Error: server unreachable at %s: %v", baseURL, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		log.Fatalf("Reload rejected (%d): %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}

	var rr ReloadResponse
	if err := json.NewDecoder(resp.Body).Decode(&rr); err != nil {
		log.Fatalf("Error decoding response: %v", err)
	}
	fmt.Printf("Knowledge base reloaded: %d entries\n", rr.EntryCount)
}

func sendChatRequest(message string) (*ChatResponse, error) {
	payload, err := json.Marshal(ChatRequest{Message: message})
	if err != nil {
		return nil, fmt.Errorf("encoding request: %w", err)
	}

	baseURL := getServerBaseURL()
	resp, err := httpClient().Post(baseURL+"/v1/assistant/chat", "application/json", bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("server unreachable at %s: %w", baseURL, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("server returned %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}

	var cr ChatResponse
	if err := json.NewDecoder(resp.Body).Decode(&cr); err != nil {
		return nil, fmt.Errorf("decoding response: %w", err)
	}
	return &cr, nil
}

func printChatResponse(resp *ChatResponse) {
	fmt.Printf("\nAssistant: %s\n", resp.Text)
	fmt.Printf("  intent=%s confidence=%.2f grounding=%s\n", resp.Intent, resp.Confidence, resp.GroundingMethod)
	if len(resp.Citations) > 0 {
		fmt.Printf("  citations: %s\n", strings.Join(resp.Citations, ", "))
	}
	if len(resp.FunctionsCalled) > 0 {
		fmt.Printf("  functions: %s\n", strings.Join(resp.FunctionsCalled, ", "))
	}
	fmt.Println()
}
