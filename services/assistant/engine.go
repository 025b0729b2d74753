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
	"context"
	"errors"
	"fmt"
	"log/slog"
	"regexp"
	"sort"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"

	"github.com/shoplite/assist/services/assistant/config"
	"github.com/shoplite/assist/services/assistant/functions"
	"github.com/shoplite/assist/services/assistant/intent"
	"github.com/shoplite/assist/services/assistant/knowledge"
	"github.com/shoplite/assist/services/assistant/query"
	"github.com/shoplite/assist/services/assistant/storage"
	"github.com/shoplite/assist/services/llm"
)

// =============================================================================
// Metrics
// =============================================================================

var (
	requestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "assist_engine_requests_total",
		Help: "Chat requests handled, by intent and grounding method.",
	}, []string{"intent", "grounding"})

	requestDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "assist_engine_request_duration_seconds",
		Help:    "End-to-end pipeline latency per chat request.",
		Buckets: prometheus.DefBuckets,
	})

	citationFallbacks = promauto.NewCounter(prometheus.CounterOpts{
		Name: "assist_engine_citation_fallbacks_total",
		Help: "Generated answers replaced because a citation failed validation.",
	})
)

var engineTracer = otel.Tracer("shoplite/assistant/engine")

// orderIDPattern matches order identifiers customers quote in free
// text: runs of at least ten letters and digits.
var orderIDPattern = regexp.MustCompile(`[A-Za-z0-9]{10,}`)

// =============================================================================
// Engine
// =============================================================================

// EngineConfig wires the engine's collaborators. Generator may be nil,
// in which case policy answers use direct knowledge-base grounding.
type EngineConfig struct {
	Knowledge  *knowledge.Store
	Registry   *functions.Registry
	Classifier *intent.Classifier
	Expander   *query.Expander
	Generator  llm.Generator
	Templates  config.ResponseTemplates
	Logger     *slog.Logger
}

// Engine runs the support pipeline: classify, ground, dispatch,
// assemble. One call to Respond produces exactly one envelope.
//
// Thread Safety: safe for concurrent use; all shared state lives in
// the collaborators, which are themselves concurrency-safe.
type Engine struct {
	kb         *knowledge.Store
	registry   *functions.Registry
	classifier *intent.Classifier
	expander   *query.Expander
	generator  llm.Generator
	templates  config.ResponseTemplates
	logger     *slog.Logger
}

// NewEngine validates the configuration and returns a ready engine.
func NewEngine(cfg EngineConfig) (*Engine, error) {
	if cfg.Knowledge == nil {
		return nil, errors.New("engine: knowledge store is required")
	}
	if cfg.Registry == nil {
		return nil, errors.New("engine: function registry is required")
	}
	if cfg.Classifier == nil {
		return nil, errors.New("engine: classifier is required")
	}
	if cfg.Expander == nil {
		return nil, errors.New("engine: query expander is required")
	}
	if cfg.Templates == nil {
		return nil, errors.New("engine: response templates are required")
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Engine{
		kb:         cfg.Knowledge,
		registry:   cfg.Registry,
		classifier: cfg.Classifier,
		expander:   cfg.Expander,
		generator:  cfg.Generator,
		templates:  cfg.Templates,
		logger:     logger,
	}, nil
}

// Respond runs the full pipeline for one customer message.
//
// Description: detects language, classifies intent, then routes to the
// branch for that intent. Every branch terminates in an envelope; no
// error is surfaced to the caller — failures degrade to the
// deterministic fallback for the branch.
// Inputs: ctx for tracing and cancellation; req with a non-empty
// Message.
// Outputs: a fully populated ResponseEnvelope.
func (e *Engine) Respond(ctx context.Context, req ChatRequest) ResponseEnvelope {
	ctx, span := engineTracer.Start(ctx, "engine.respond")
	defer span.End()
	start := time.Now()

	lang := query.DetectLanguage(req.Message)
	res := e.classifier.Classify(ctx, req.Message)
	span.SetAttributes(
		attribute.String("assist.intent", string(res.Intent)),
		attribute.Float64("assist.confidence", res.Confidence),
		attribute.String("assist.language", string(lang)),
	)

	var env ResponseEnvelope
	switch res.Intent {
	case intent.IntentPolicyQuestion, intent.IntentComplaint:
		env = e.respondPolicy(ctx, req.Message, lang)
	case intent.IntentOrderStatus:
		env = e.respondOrderStatus(ctx, req.Message, lang)
	case intent.IntentProductSearch:
		env = e.respondProductSearch(ctx, req.Message, lang)
	case intent.IntentViolation:
		// Never mirror the offending input.
		env = e.static(config.ResponseViolation, lang)
	case intent.IntentChitchat:
		env = e.static(config.ResponseChitchat, lang)
	default:
		env = e.static(config.ResponseOffTopic, lang)
	}

	env.Intent = string(res.Intent)
	env.Confidence = res.Confidence
	if env.Citations == nil {
		env.Citations = []string{}
	}
	if env.FunctionsCalled == nil {
		env.FunctionsCalled = []string{}
	}

	requestsTotal.WithLabelValues(env.Intent, string(env.GroundingMethod)).Inc()
	requestDuration.Observe(time.Since(start).Seconds())
	e.logger.Info("chat request handled",
		slog.String("intent", env.Intent),
		slog.String("grounding", string(env.GroundingMethod)),
		slog.Float64("confidence", env.Confidence),
		slog.Int("citations", len(env.Citations)),
		slog.Duration("duration", time.Since(start)),
	)
	return env
}

// static builds a templated terminal envelope with no grounding.
func (e *Engine) static(kind string, lang query.Language) ResponseEnvelope {
	return ResponseEnvelope{
		Text:            e.templates.Get(kind, string(lang)),
		GroundingMethod: GroundingFallback,
	}
}

// =============================================================================
// Policy grounding
// =============================================================================

// respondPolicy answers policy questions and complaints from the
// knowledge base. Every non-fallback answer carries at least one
// validated citation; an answer whose citations cannot all be resolved
// is discarded and replaced with the directly grounded entry text.
func (e *Engine) respondPolicy(ctx context.Context, message string, lang query.Language) ResponseEnvelope {
	ctx, span := engineTracer.Start(ctx, "engine.respond_policy")
	defer span.End()

	scored := e.retrieve(ctx, message)
	span.SetAttributes(attribute.Int("assist.retrieved", len(scored)))
	if len(scored) == 0 {
		return e.static(config.ResponseNoInformation, lang)
	}

	if e.generator != nil {
		if env, ok := e.generatePolicy(ctx, message, scored); ok {
			return env
		}
	}
	return groundDirect(scored[0].Entry)
}

// retrieve scores the knowledge base against the message, then widens
// with expansion terms when the raw message matches nothing. Results
// from widening are merged id-unique, best score wins, and re-ranked.
func (e *Engine) retrieve(ctx context.Context, message string) []knowledge.ScoredEntry {
	scored := e.kb.FindRelevantPolicies(ctx, message)
	if len(scored) > 0 {
		return scored
	}

	terms := e.expander.Expand(message)
	if len(terms) <= 1 {
		return nil
	}

	best := make(map[string]knowledge.ScoredEntry)
	var order []string
	for _, term := range terms[1:] {
		for _, se := range e.kb.FindRelevantPolicies(ctx, term) {
			prev, seen := best[se.Entry.ID]
			if !seen {
				best[se.Entry.ID] = se
				order = append(order, se.Entry.ID)
			} else if se.Score > prev.Score {
				best[se.Entry.ID] = se
			}
		}
	}
	if len(order) == 0 {
		return nil
	}

	merged := make([]knowledge.ScoredEntry, 0, len(order))
	for _, id := range order {
		merged = append(merged, best[id])
	}
	sort.SliceStable(merged, func(i, j int) bool {
		return merged[i].Score > merged[j].Score
	})
	if len(merged) > 3 {
		merged = merged[:3]
	}
	return merged
}

// generatePolicy asks the generator for an answer constrained to the
// retrieved entries. Returns ok=false when the output cannot be used:
// generation failed, no citation was emitted, or a citation failed
// validation against the live snapshot.
func (e *Engine) generatePolicy(ctx context.Context, message string, scored []knowledge.ScoredEntry) (ResponseEnvelope, bool) {
	text, err := e.generator.Generate(ctx, buildPolicyPrompt(message, scored), llm.GenerationParams{
		System: "You are the Shoplite customer-support assistant. Answer only from the provided knowledge entries and cite every fact with its entry id in square brackets.",
	})
	if err != nil {
		e.logger.Warn("generation unavailable, grounding directly", slog.String("error", err.Error()))
		return ResponseEnvelope{}, false
	}

	set := e.kb.ValidateCitations(knowledge.ExtractCitations(text))
	if len(set.Extracted) == 0 || !set.IsValid() {
		citationFallbacks.Inc()
		e.logger.Warn("discarding generated answer",
			slog.Int("extracted", len(set.Extracted)),
			slog.Any("invalid", set.Invalid),
		)
		return ResponseEnvelope{}, false
	}

	citations := make([]string, 0, len(set.Valid))
	for _, c := range set.Valid {
		citations = append(citations, c.ID)
	}
	return ResponseEnvelope{
		Text:            strings.TrimSpace(text),
		Citations:       citations,
		GroundingMethod: GroundingKnowledge,
	}, true
}

// groundDirect is the deterministic policy answer: the best entry's
// stored text with its own id appended as the citation.
func groundDirect(entry knowledge.Entry) ResponseEnvelope {
	return ResponseEnvelope{
		Text:            entry.Answer + " [" + entry.ID + "]",
		Citations:       []string{entry.ID},
		GroundingMethod: GroundingKnowledge,
	}
}

func buildPolicyPrompt(message string, scored []knowledge.ScoredEntry) string {
	var b strings.Builder
	b.WriteString("Knowledge entries:\n\n")
	for _, se := range scored {
		fmt.Fprintf(&b, "[%s] %s\n%s\n\n", se.Entry.ID, se.Entry.Question, se.Entry.Answer)
	}
	b.WriteString("Customer message: ")
	b.WriteString(message)
	return b.String()
}

// =============================================================================
// Function-backed branches
// =============================================================================

// respondOrderStatus extracts an order id from the message and looks
// it up through the registry. A lookup failure never propagates; the
// customer gets the polite not-found text and the call is still
// recorded in FunctionsCalled.
func (e *Engine) respondOrderStatus(ctx context.Context, message string, lang query.Language) ResponseEnvelope {
	ctx, span := engineTracer.Start(ctx, "engine.respond_order_status")
	defer span.End()

	orderID := orderIDPattern.FindString(message)
	if orderID == "" {
		return e.static(config.ResponseOrderIDMissing, lang)
	}

	exec := e.registry.Execute(ctx, functions.FuncGetOrderStatus, map[string]any{"order_id": orderID})
	env := ResponseEnvelope{FunctionsCalled: []string{functions.FuncGetOrderStatus}}
	order, ok := exec.Result.(storage.Order)
	if !exec.Success || !ok {
		env.Text = e.templates.Get(config.ResponseOrderNotFound, string(lang))
		env.GroundingMethod = GroundingFallback
		return env
	}

	env.Text = fmt.Sprintf(e.templates.Get(config.ResponseOrderStatus, string(lang)), order.ID, order.Status)
	env.GroundingMethod = GroundingFunction
	return env
}

// respondProductSearch strips filler words and searches the catalog.
func (e *Engine) respondProductSearch(ctx context.Context, message string, lang query.Language) ResponseEnvelope {
	ctx, span := engineTracer.Start(ctx, "engine.respond_product_search")
	defer span.End()

	q := e.expander.Normalize(message, lang)
	if q == "" {
		q = message
	}

	exec := e.registry.Execute(ctx, functions.FuncSearchProducts, map[string]any{"query": q})
	env := ResponseEnvelope{FunctionsCalled: []string{functions.FuncSearchProducts}}
	products, ok := exec.Result.([]storage.Product)
	if !exec.Success || !ok || len(products) == 0 {
		env.Text = e.templates.Get(config.ResponseProductNone, string(lang))
		env.GroundingMethod = GroundingFallback
		return env
	}

	names := make([]string, 0, len(products))
	for _, p := range products {
		names = append(names, fmt.Sprintf("%s ($%.2f)", p.Name, p.Price))
	}
	env.Text = fmt.Sprintf(e.templates.Get(config.ResponseProductResults, string(lang)), strings.Join(names, ", "))
	env.GroundingMethod = GroundingFunction
	return env
}
