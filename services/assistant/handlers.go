// Copyright (C) 2025 Shoplite (support@shoplite.io)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package assistant

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"golang.org/x/time/rate"

	"github.com/shoplite/assist/services/assistant/functions"
	"github.com/shoplite/assist/services/assistant/knowledge"
	"github.com/shoplite/assist/services/llm"
)

// Handlers holds the HTTP surface for the assistant service.
type Handlers struct {
	engine    *Engine
	kb        *knowledge.Store
	registry  *functions.Registry
	generator llm.Generator
	logger    *slog.Logger
}

// NewHandlers creates the handler set. Generator may be nil; the
// /generate endpoint then reports the model as unavailable.
func NewHandlers(engine *Engine, kb *knowledge.Store, registry *functions.Registry, generator llm.Generator, logger *slog.Logger) *Handlers {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handlers{
		engine:    engine,
		kb:        kb,
		registry:  registry,
		generator: generator,
		logger:    logger,
	}
}

// getOrCreateRequestID returns the caller's X-Request-ID or mints one.
func getOrCreateRequestID(c *gin.Context) string {
	if id := c.GetHeader("X-Request-ID"); id != "" {
		return id
	}
	id := uuid.NewString()
	c.Header("X-Request-ID", id)
	return id
}

// RateLimitMiddleware applies a shared token-bucket limit across all
// requests. Rejected requests get 429 with a JSON error body.
func RateLimitMiddleware(rps float64, burst int) gin.HandlerFunc {
	limiter := rate.NewLimiter(rate.Limit(rps), burst)
	return func(c *gin.Context) {
		if !limiter.Allow() {
			c.AbortWithStatusJSON(http.StatusTooManyRequests, ErrorResponse{
				Error: "rate limit exceeded, slow down",
				Code:  "RATE_LIMITED",
			})
			return
		}
		c.Next()
	}
}

// HandleChat handles POST /v1/assistant/chat.
//
// Description:
//
//	Runs the full support pipeline on one customer message and returns
//	the response envelope. Pipeline failures never surface as HTTP
//	errors; they degrade to the branch's deterministic fallback.
//
// Response:
//
//	200 OK: ResponseEnvelope
//	400 Bad Request: missing or malformed message
//
// Thread Safety: safe for concurrent use.
func (h *Handlers) HandleChat(c *gin.Context) {
	requestID := getOrCreateRequestID(c)
	logger := h.logger.With(slog.String("request_id", requestID), slog.String("handler", "HandleChat"))

	var req ChatRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		logger.Warn("rejecting malformed chat request", slog.String("error", err.Error()))
		c.JSON(http.StatusBadRequest, ErrorResponse{
			Error: "message is required",
			Code:  "INVALID_REQUEST",
		})
		return
	}

	env := h.engine.Respond(c.Request.Context(), req)
	c.JSON(http.StatusOK, env)
}

// HandleGenerate handles POST /v1/assistant/generate.
//
// Direct passthrough to the generation backend, bypassing the
// pipeline. Useful for prompt debugging and offline evaluation.
//
// Response:
//
//	200 OK: GenerateResponse
//	400 Bad Request: missing prompt
//	503 Service Unavailable: no backend configured, or generation failed
func (h *Handlers) HandleGenerate(c *gin.Context) {
	requestID := getOrCreateRequestID(c)
	logger := h.logger.With(slog.String("request_id", requestID), slog.String("handler", "HandleGenerate"))

	var req GenerateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{
			Error: "prompt is required",
			Code:  "INVALID_REQUEST",
		})
		return
	}

	if h.generator == nil {
		c.JSON(http.StatusServiceUnavailable, ErrorResponse{
			Error: "no generation backend configured",
			Code:  "GENERATION_UNAVAILABLE",
		})
		return
	}

	params := llm.GenerationParams{Temperature: req.Temperature}
	if req.MaxTokens > 0 {
		params.MaxTokens = &req.MaxTokens
	}
	text, err := h.generator.Generate(c.Request.Context(), req.Prompt, params)
	if err != nil {
		logger.Warn("generation failed", slog.String("error", err.Error()))
		code := "GENERATION_FAILED"
		if errors.Is(err, llm.ErrUnavailable) {
			code = "GENERATION_UNAVAILABLE"
		}
		c.JSON(http.StatusServiceUnavailable, ErrorResponse{
			Error: "generation backend unavailable",
			Code:  code,
		})
		return
	}
	c.JSON(http.StatusOK, GenerateResponse{Text: text})
}

// HandleHealth handles GET /v1/assistant/health.
func (h *Handlers) HandleHealth(c *gin.Context) {
	generation := "disabled"
	if h.generator != nil {
		generation = "configured"
	}
	c.JSON(http.StatusOK, gin.H{
		"service":             "assistant",
		"status":              "healthy",
		"knowledge_base_size": h.kb.Len(),
		"generation":          generation,
	})
}

// HandleReady handles GET /v1/assistant/ready. The service is ready
// once the knowledge snapshot holds at least one entry.
func (h *Handlers) HandleReady(c *gin.Context) {
	if h.kb.Len() == 0 {
		c.JSON(http.StatusServiceUnavailable, gin.H{
			"status": "not_ready",
			"reason": "knowledge base is empty",
		})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "ready"})
}

// HandleReloadKnowledge handles POST /v1/assistant/knowledge/reload.
//
// Replaces the entire knowledge snapshot atomically. A collection that
// fails validation is rejected whole; the previous snapshot keeps
// serving.
//
// Response:
//
//	200 OK: ReloadResponse with the new entry count
//	400 Bad Request: malformed body or invalid collection
func (h *Handlers) HandleReloadKnowledge(c *gin.Context) {
	requestID := getOrCreateRequestID(c)
	logger := h.logger.With(slog.String("request_id", requestID), slog.String("handler", "HandleReloadKnowledge"))

	var req ReloadRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{
			Error: "entries are required",
			Code:  "INVALID_REQUEST",
		})
		return
	}

	count, err := h.kb.Reload(req.Entries)
	if err != nil {
		logger.Warn("rejecting knowledge reload", slog.String("error", err.Error()))
		c.JSON(http.StatusBadRequest, ErrorResponse{
			Error: err.Error(),
			Code:  "INVALID_KNOWLEDGE",
		})
		return
	}

	logger.Info("knowledge base reloaded", slog.Int("entry_count", count))
	c.JSON(http.StatusOK, ReloadResponse{EntryCount: count})
}

// HandleGetFunctions handles GET /v1/assistant/functions. Returns the
// registered function schemas for introspection; handlers are never
// exposed.
func (h *Handlers) HandleGetFunctions(c *gin.Context) {
	schemas := h.registry.GetAllSchemas()
	c.JSON(http.StatusOK, gin.H{
		"functions": schemas,
		"count":     len(schemas),
	})
}
