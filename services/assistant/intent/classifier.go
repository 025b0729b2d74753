// Copyright (C) 2025 Shoplite (support@shoplite.io)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package intent scores customer input against the seven support
// intents using weighted keyword and pattern signals.
package intent

import (
	"context"
	"fmt"
	"log/slog"
	"regexp"
	"strings"
	"unicode/utf8"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"

	"github.com/shoplite/assist/services/assistant/config"
)

// =============================================================================
// Prometheus Metrics
// =============================================================================

var (
	classifiedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "assist",
		Subsystem: "intent",
		Name:      "classified_total",
		Help:      "Total classifications by resulting intent",
	}, []string{"intent"})

	classifierScore = promauto.NewHistogram(prometheus.HistogramOpts{
		Namespace: "assist",
		Subsystem: "intent",
		Name:      "top_score",
		Help:      "Winning raw score per classification",
		Buckets:   []float64{0, 2, 3, 5, 7, 10, 15, 20},
	})
)

var classifierTracer = otel.Tracer("shoplite.assistant.intent")

// =============================================================================
// Intent Types
// =============================================================================

// Intent is one of the seven mutually exclusive intent categories.
type Intent string

const (
	IntentPolicyQuestion Intent = "policy_question"
	IntentOrderStatus    Intent = "order_status"
	IntentProductSearch  Intent = "product_search"
	IntentComplaint      Intent = "complaint"
	IntentChitchat       Intent = "chitchat"
	IntentViolation      Intent = "violation"
	IntentOffTopic       Intent = "off_topic"
)

// Scoring weights and default confidences.
const (
	keywordWeight = 2
	patternWeight = 3

	// confidenceDivisor maps the winning score onto [0,1].
	confidenceDivisor = 10.0

	// shortDefaultConfidence applies to short zero-score inputs (chitchat).
	shortDefaultConfidence = 0.5

	// longDefaultConfidence applies to long zero-score inputs (off_topic).
	longDefaultConfidence = 0.3
)

// Result is the outcome of one classification. Produced fresh per
// request, never persisted.
type Result struct {
	// Intent is the winning category.
	Intent Intent `json:"intent"`

	// Confidence is in [0,1].
	Confidence float64 `json:"confidence"`

	// Rationale is a short human-readable explanation of the decision.
	Rationale string `json:"rationale"`
}

// compiledRule holds one intent's signals with patterns pre-compiled.
type compiledRule struct {
	keywords []string
	patterns []*regexp.Regexp
}

// Classifier scores input text against the configured intent rules.
//
// Description:
//
//	Decision policy, in priority order:
//	 1. Any positive violation score wins outright (hard override).
//	 2. Otherwise the strictly highest score wins; ties at non-zero
//	    score resolve by the declared rule order.
//	 3. Zero-score inputs default to chitchat (short input) or
//	    off_topic (long input) with fixed confidences.
//
//	Rules are injected at construction; there is no package-level
//	mutable rule table.
//
// Thread Safety: Safe for concurrent use (read-only after construction).
type Classifier struct {
	order     []Intent
	rules     map[Intent]compiledRule
	threshold int
	logger    *slog.Logger
}

// NewClassifier builds a Classifier from the given rules.
//
// Inputs:
//
//	rules - Validated intent rules. Must not be nil.
//	logger - Logger for structured output. May be nil (uses slog.Default).
//
// Outputs:
//
//	*Classifier - The constructed classifier.
//	error - Non-nil if any pattern fails to compile.
func NewClassifier(rules *config.IntentRules, logger *slog.Logger) (*Classifier, error) {
	if rules == nil {
		return nil, fmt.Errorf("intent: rules must not be nil")
	}
	if logger == nil {
		logger = slog.Default()
	}

	c := &Classifier{
		order:     make([]Intent, 0, len(rules.Order)),
		rules:     make(map[Intent]compiledRule, len(rules.Intents)),
		threshold: rules.ShortInputThreshold,
		logger:    logger,
	}

	for _, name := range rules.Order {
		c.order = append(c.order, Intent(name))
	}
	for name, rule := range rules.Intents {
		compiled := compiledRule{keywords: make([]string, len(rule.Keywords))}
		for i, kw := range rule.Keywords {
			compiled.keywords[i] = strings.ToLower(kw)
		}
		for _, pattern := range rule.Patterns {
			re, err := regexp.Compile(pattern)
			if err != nil {
				return nil, fmt.Errorf("intent: compiling pattern %q for %s: %w", pattern, name, err)
			}
			compiled.patterns = append(compiled.patterns, re)
		}
		c.rules[Intent(name)] = compiled
	}

	return c, nil
}

// Classify scores the original (non-expanded) input text and returns
// the winning intent.
//
// Description:
//
//	Malformed input never produces an error: invalid UTF-8 yields
//	off_topic with confidence 0, and empty input falls through the
//	zero-score defaults.
//
// Thread Safety: Safe for concurrent use.
func (c *Classifier) Classify(ctx context.Context, text string) Result {
	_, span := classifierTracer.Start(ctx, "intent.Classify")
	defer span.End()

	if !utf8.ValidString(text) {
		classifiedTotal.WithLabelValues(string(IntentOffTopic)).Inc()
		return Result{
			Intent:     IntentOffTopic,
			Confidence: 0,
			Rationale:  "input is not valid text",
		}
	}

	textLower := strings.ToLower(text)
	scores := make(map[Intent]int, len(c.rules))
	for name, rule := range c.rules {
		scores[name] = c.scoreRule(text, textLower, rule)
	}

	result := c.decide(text, scores)

	classifiedTotal.WithLabelValues(string(result.Intent)).Inc()
	classifierScore.Observe(float64(scores[result.Intent]))
	span.SetAttributes(
		attribute.String("intent", string(result.Intent)),
		attribute.Float64("confidence", result.Confidence),
	)
	return result
}

// scoreRule sums keyword and pattern hits for one intent.
func (c *Classifier) scoreRule(text, textLower string, rule compiledRule) int {
	score := 0
	for _, kw := range rule.keywords {
		if strings.Contains(textLower, kw) {
			score += keywordWeight
		}
	}
	for _, re := range rule.patterns {
		if re.MatchString(text) {
			score += patternWeight
		}
	}
	return score
}

// decide applies the decision policy to the per-intent scores.
func (c *Classifier) decide(text string, scores map[Intent]int) Result {
	// Violation is a hard override, not a max-score contest.
	if scores[IntentViolation] > 0 {
		return Result{
			Intent:     IntentViolation,
			Confidence: confidence(scores[IntentViolation]),
			Rationale:  "violation signals override all other intents",
		}
	}

	// Walk the declared order so equal non-zero scores resolve to the
	// earlier intent. This ordering is part of the contract.
	best := IntentOffTopic
	bestScore := 0
	for _, name := range c.order {
		if scores[name] > bestScore {
			best = name
			bestScore = scores[name]
		}
	}

	if bestScore == 0 {
		if utf8.RuneCountInString(text) < c.threshold {
			return Result{
				Intent:     IntentChitchat,
				Confidence: shortDefaultConfidence,
				Rationale:  "no signals matched; short input defaults to chitchat",
			}
		}
		return Result{
			Intent:     IntentOffTopic,
			Confidence: longDefaultConfidence,
			Rationale:  "no signals matched; long input defaults to off_topic",
		}
	}

	return Result{
		Intent:     best,
		Confidence: confidence(bestScore),
		Rationale:  fmt.Sprintf("%s scored %d from keyword/pattern signals", best, bestScore),
	}
}

// confidence maps a raw score onto [0,1].
func confidence(score int) float64 {
	conf := float64(score) / confidenceDivisor
	if conf > 1 {
		conf = 1
	}
	return conf
}
