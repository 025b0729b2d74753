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
	"github.com/gin-gonic/gin"
)

// RegisterRoutes registers all assistant routes with the router.
//
// Description:
//
//	Registers all /v1/assistant/* endpoints with the given Gin router
//	group. The router group should already have any required middleware
//	applied.
//
// Inputs:
//
//	rg - Gin router group (typically /v1)
//	handlers - The handlers instance
//
// Endpoints:
//
//	POST /v1/assistant/chat - Run the support pipeline on one message
//	POST /v1/assistant/generate - Direct generation passthrough
//	POST /v1/assistant/knowledge/reload - Atomically replace the knowledge base
//	GET  /v1/assistant/functions - List registered function schemas
//	GET  /v1/assistant/health - Health check
//	GET  /v1/assistant/ready - Readiness check
//
// Example:
//
//	handlers := assistant.NewHandlers(engine, kb, registry, generator, logger)
//
//	v1 := router.Group("/v1")
//	assistant.RegisterRoutes(v1, handlers)
func RegisterRoutes(rg *gin.RouterGroup, handlers *Handlers) {
	ast := rg.Group("/assistant")
	{
		// Pipeline
		ast.POST("/chat", handlers.HandleChat)
		ast.POST("/generate", handlers.HandleGenerate)

		// Knowledge management
		ast.POST("/knowledge/reload", handlers.HandleReloadKnowledge)

		// Introspection
		ast.GET("/functions", handlers.HandleGetFunctions)

		// Health checks
		ast.GET("/health", handlers.HandleHealth)
		ast.GET("/ready", handlers.HandleReady)
	}
}
