// Copyright (C) 2025 Shoplite (support@shoplite.io)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Command assistd starts the Shoplite support assistant API server.
//
// The assistant runs a deterministic support pipeline: intent
// classification, knowledge-base grounding with mandatory citations,
// and function dispatch for order and catalog lookups.
//
// Usage:
//
//	go run ./cmd/assistd
//	go run ./cmd/assistd -port 9090
//	go run ./cmd/assistd -knowledge ./kb.yaml -data ./data
//
// With a generation backend:
//
//	GENERATION_URL=http://localhost:11434 GENERATION_MODEL=qwen3 go run ./cmd/assistd
//
// Example requests:
//
//	# Health check
//	curl http://localhost:8080/v1/assistant/health
//
//	# Ask a policy question
//	curl -X POST http://localhost:8080/v1/assistant/chat \
//	  -H "Content-Type: application/json" \
//	  -d '{"message": "What is your return policy?"}'
//
//	# Check an order
//	curl -X POST http://localhost:8080/v1/assistant/chat \
//	  -H "Content-Type: application/json" \
//	  -d '{"message": "Where is my order ORDER123456789?"}'
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/propagation"
	"golang.org/x/sync/errgroup"

	"github.com/shoplite/assist/services/assistant"
	"github.com/shoplite/assist/services/assistant/config"
	"github.com/shoplite/assist/services/assistant/functions"
	"github.com/shoplite/assist/services/assistant/intent"
	"github.com/shoplite/assist/services/assistant/knowledge"
	"github.com/shoplite/assist/services/assistant/query"
	"github.com/shoplite/assist/services/assistant/storage"
	badgerstore "github.com/shoplite/assist/services/assistant/storage/badger"
	"github.com/shoplite/assist/services/llm"
)

const shutdownTimeout = 10 * time.Second

func main() {
	port := flag.Int("port", 8080, "Port to listen on")
	debug := flag.Bool("debug", false, "Enable debug mode")
	knowledgePath := flag.String("knowledge", "", "Knowledge base YAML file to load and watch (default: embedded seed)")
	dataDir := flag.String("data", "", "BadgerDB directory for order and product data (default: in-memory demo data)")
	ratePerSec := flag.Float64("rate", 50, "Request rate limit per second")
	rateBurst := flag.Int("rate-burst", 100, "Request rate limit burst")
	flag.Parse()

	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: logLevel(*debug),
	}))
	slog.SetDefault(logger)

	if *debug {
		gin.SetMode(gin.DebugMode)
	} else {
		gin.SetMode(gin.ReleaseMode)
	}

	// W3C TraceContext propagation so trace ids flow from incoming
	// headers through every handler span.
	otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(
		propagation.TraceContext{},
		propagation.Baggage{},
	))

	if err := run(*port, *debug, *knowledgePath, *dataDir, *ratePerSec, *rateBurst, logger); err != nil {
		logger.Error("Server exited with error", slog.String("error", err.Error()))
		os.Exit(1)
	}
}

func logLevel(debug bool) slog.Level {
	if debug {
		return slog.LevelDebug
	}
	return slog.LevelInfo
}

func run(port int, debug bool, knowledgePath, dataDir string, ratePerSec float64, rateBurst int, logger *slog.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Knowledge base: either the embedded seed or an operator-managed
	// YAML file that is hot-reloaded on change.
	seed, err := config.GetKnowledgeSeed()
	if err != nil {
		return fmt.Errorf("loading embedded knowledge seed: %w", err)
	}
	kb, err := knowledge.NewStore(seed, logger)
	if err != nil {
		return fmt.Errorf("building knowledge store: %w", err)
	}

	var watcher *knowledge.Watcher
	if knowledgePath != "" {
		watcher = knowledge.NewWatcher(kb, knowledgePath, logger)
		count, err := watcher.LoadFile()
		if err != nil {
			return fmt.Errorf("loading knowledge file %s: %w", knowledgePath, err)
		}
		logger.Info("Knowledge file loaded",
			slog.String("path", knowledgePath),
			slog.Int("entry_count", count),
		)
	}

	// Storage: BadgerDB when a data directory is given, otherwise an
	// in-memory store seeded with demo data.
	var store storage.Store
	if dataDir != "" {
		cfg := badgerstore.DefaultConfig()
		cfg.Path = dataDir
		cfg.Logger = logger
		db, err := badgerstore.Open(cfg)
		if err != nil {
			return fmt.Errorf("opening badger store at %s: %w", dataDir, err)
		}
		defer func() {
			if err := db.Close(); err != nil {
				logger.Warn("Failed to close badger store", slog.String("error", err.Error()))
			}
		}()
		store = db
		logger.Info("BadgerDB store opened", slog.String("path", dataDir))
	} else {
		mem := storage.NewMemoryStore()
		seedDemoData(mem)
		store = mem
		logger.Info("Using in-memory store with demo data")
	}

	// Pipeline components.
	rules, err := config.GetIntentRules()
	if err != nil {
		return fmt.Errorf("loading intent rules: %w", err)
	}
	classifier, err := intent.NewClassifier(rules, logger)
	if err != nil {
		return fmt.Errorf("building classifier: %w", err)
	}

	synonyms, err := config.GetSynonymConfig()
	if err != nil {
		return fmt.Errorf("loading synonym config: %w", err)
	}
	expander := query.NewExpander(synonyms)

	templates, err := config.GetResponseTemplates()
	if err != nil {
		return fmt.Errorf("loading response templates: %w", err)
	}

	registry := functions.NewRegistry(logger)
	if err := functions.RegisterBuiltins(registry, store, kb); err != nil {
		return fmt.Errorf("registering builtin functions: %w", err)
	}

	// Generation is optional: without GENERATION_URL the engine
	// grounds policy answers directly from the knowledge base.
	var generator llm.Generator
	httpGen, err := llm.NewHTTPClientFromEnv(logger)
	if err != nil {
		return fmt.Errorf("configuring generation client: %w", err)
	}
	if httpGen != nil {
		generator = httpGen
		logger.Info("Generation backend configured")
	} else {
		logger.Info("No generation backend, using direct grounding")
	}

	engine, err := assistant.NewEngine(assistant.EngineConfig{
		Knowledge:  kb,
		Registry:   registry,
		Classifier: classifier,
		Expander:   expander,
		Generator:  generator,
		Templates:  templates,
		Logger:     logger,
	})
	if err != nil {
		return fmt.Errorf("building engine: %w", err)
	}

	handlers := assistant.NewHandlers(engine, kb, registry, generator, logger)

	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(otelgin.Middleware("shoplite-assistant"))
	router.Use(cors.Default())
	router.Use(assistant.RateLimitMiddleware(ratePerSec, rateBurst))
	if debug {
		router.Use(gin.Logger())
	}

	v1 := router.Group("/v1")
	assistant.RegisterRoutes(v1, handlers)
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	srv := &http.Server{
		Addr:    fmt.Sprintf(":%d", port),
		Handler: router,
	}

	g, ctx := errgroup.WithContext(ctx)
	if watcher != nil {
		g.Go(func() error {
			return watcher.Run(ctx)
		})
	}
	g.Go(func() error {
		logger.Info("Starting Shoplite assistant server",
			slog.String("address", srv.Addr),
			slog.Int("knowledge_entries", kb.Len()),
		)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-ctx.Done()
		logger.Info("Shutting down Shoplite assistant server")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	return nil
}

// seedDemoData loads a small catalog and order book so the function
// branches work out of the box without a database.
func seedDemoData(mem *storage.MemoryStore) {
	eta := time.Now().Add(72 * time.Hour)
	mem.PutOrder(storage.Order{
		ID:                "ORDER998877665",
		CustomerID:        "CUST1001",
		Status:            "shipped",
		EstimatedDelivery: &eta,
	})
	mem.PutOrder(storage.Order{
		ID:         "ORDER112233445",
		CustomerID: "CUST1001",
		Status:     "processing",
	})

	mem.PutProduct(storage.Product{ID: "P100", Name: "Wireless Headphones", Price: 59.99, Stock: 24})
	mem.PutProduct(storage.Product{ID: "P101", Name: "USB-C Charging Cable", Price: 9.99, Stock: 180})
	mem.PutProduct(storage.Product{ID: "P102", Name: "Laptop Sleeve 14-inch", Price: 24.50, Stock: 42})
	mem.PutProduct(storage.Product{ID: "P103", Name: "Bluetooth Speaker", Price: 39.00, Stock: 11})
}
