// Copyright (C) 2025 Shoplite (support@shoplite.io)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package functions is the name-keyed catalog of callable support
// operations: each function carries a JSON-Schema-shaped parameter
// definition, required-field validation, and a handler supplied by the
// integrator. The registry is the dispatch mechanism; persistence lives
// behind the storage boundary.
package functions

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
)

// =============================================================================
// Prometheus Metrics
// =============================================================================

var (
	executionsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "assist",
		Subsystem: "functions",
		Name:      "executions_total",
		Help:      "Total function executions by function and outcome",
	}, []string{"function", "outcome"})
)

var registryTracer = otel.Tracer("shoplite.assistant.functions")

// =============================================================================
// Schema Types
// =============================================================================

// ParamDef defines a single parameter in JSON Schema format.
type ParamDef struct {
	// Type is the JSON Schema type (string, integer, boolean, number).
	Type string `json:"type"`

	// Description explains what the parameter is for.
	Description string `json:"description,omitempty"`

	// Enum restricts values to a set of options.
	Enum []any `json:"enum,omitempty"`

	// Default is the default value if not provided.
	Default any `json:"default,omitempty"`
}

// ParameterSchema defines the JSON Schema for a function's parameters.
type ParameterSchema struct {
	// Type is the JSON Schema type. Always "object" for function parameters.
	Type string `json:"type"`

	// Properties maps parameter names to their definitions.
	Properties map[string]ParamDef `json:"properties,omitempty"`

	// Required lists parameter names that must be provided.
	Required []string `json:"required,omitempty"`
}

// Handler executes one function call with validated parameters.
type Handler func(ctx context.Context, params map[string]any) (any, error)

// Descriptor is one registered function: its schema plus handler.
type Descriptor struct {
	// Name is the unique registry key, e.g. "getOrderStatus".
	Name string `json:"name"`

	// Description explains what the function does.
	Description string `json:"description,omitempty"`

	// Parameters is the parameter schema validated before dispatch.
	Parameters ParameterSchema `json:"parameters"`

	// handler is never serialized or exposed through GetAllSchemas.
	handler Handler
}

// ExecutionResult is the outcome of one function invocation.
type ExecutionResult struct {
	// Success is true when the handler completed without error.
	Success bool `json:"success"`

	// Result is the handler's return value on success.
	Result any `json:"result,omitempty"`

	// Error carries the failure message on non-success.
	Error string `json:"error,omitempty"`
}

// =============================================================================
// Registry
// =============================================================================

// Registry is the name-keyed function catalog.
//
// Description:
//
//	Registration normally happens once at startup; execution is the hot
//	path. Handler panics and errors are converted into a non-success
//	ExecutionResult — the registry never lets a handler failure
//	propagate to the caller.
//
// Thread Safety: Safe for concurrent use.
type Registry struct {
	mu     sync.RWMutex
	funcs  map[string]Descriptor
	logger *slog.Logger
}

// NewRegistry creates an empty Registry.
func NewRegistry(logger *slog.Logger) *Registry {
	if logger == nil {
		logger = slog.Default()
	}
	return &Registry{
		funcs:  make(map[string]Descriptor),
		logger: logger,
	}
}

// Register adds a function to the catalog.
//
// Description:
//
//	Fails fast on a missing name, missing handler, or unusable schema.
//	This is the one hard failure in the system: it signals a wiring bug
//	at startup, not a runtime condition.
//
// Outputs:
//
//	error - Non-nil if the descriptor is incomplete or the name is taken.
func (r *Registry) Register(name string, schema ParameterSchema, handler Handler) error {
	if name == "" {
		return fmt.Errorf("functions: register: name must not be empty")
	}
	if handler == nil {
		return fmt.Errorf("functions: register %s: handler must not be nil", name)
	}
	if schema.Type == "" {
		return fmt.Errorf("functions: register %s: schema type must not be empty", name)
	}
	for _, required := range schema.Required {
		if _, ok := schema.Properties[required]; !ok {
			return fmt.Errorf("functions: register %s: required parameter %q has no property definition", name, required)
		}
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.funcs[name]; exists {
		return fmt.Errorf("functions: register %s: already registered", name)
	}
	r.funcs[name] = Descriptor{
		Name:       name,
		Parameters: schema,
		handler:    handler,
	}

	r.logger.Info("function registered",
		slog.String("function", name),
		slog.Int("required_params", len(schema.Required)),
	)
	return nil
}

// RegisterDescriptor adds a function with its description text.
func (r *Registry) RegisterDescriptor(desc Descriptor, handler Handler) error {
	if err := r.Register(desc.Name, desc.Parameters, handler); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	stored := r.funcs[desc.Name]
	stored.Description = desc.Description
	r.funcs[desc.Name] = stored
	return nil
}

// MustRegister registers a function or panics. For startup wiring where
// a failure is a programming error.
func (r *Registry) MustRegister(name string, schema ParameterSchema, handler Handler) {
	if err := r.Register(name, schema, handler); err != nil {
		panic(err)
	}
}

// Execute validates parameters against the function's schema and
// invokes its handler.
//
// Description:
//
//	Every failure path — unknown name, missing required parameter,
//	handler error, handler panic — produces a non-success
//	ExecutionResult. Execute itself never returns an error and never
//	panics.
//
// Thread Safety: Safe for concurrent use.
func (r *Registry) Execute(ctx context.Context, name string, params map[string]any) ExecutionResult {
	ctx, span := registryTracer.Start(ctx, "functions.Execute")
	defer span.End()
	span.SetAttributes(attribute.String("function", name))

	r.mu.RLock()
	desc, ok := r.funcs[name]
	r.mu.RUnlock()
	if !ok {
		executionsTotal.WithLabelValues(name, "not_found").Inc()
		return ExecutionResult{Success: false, Error: fmt.Sprintf("function not found: %s", name)}
	}

	for _, required := range desc.Parameters.Required {
		value, present := params[required]
		if !present || value == nil {
			executionsTotal.WithLabelValues(name, "invalid_params").Inc()
			return ExecutionResult{Success: false, Error: fmt.Sprintf("missing required parameter: %s", required)}
		}
		if str, isString := value.(string); isString && str == "" {
			executionsTotal.WithLabelValues(name, "invalid_params").Inc()
			return ExecutionResult{Success: false, Error: fmt.Sprintf("missing required parameter: %s", required)}
		}
	}

	result := r.invoke(ctx, name, desc, params)
	if result.Success {
		executionsTotal.WithLabelValues(name, "success").Inc()
	} else {
		executionsTotal.WithLabelValues(name, "error").Inc()
	}
	span.SetAttributes(attribute.Bool("success", result.Success))
	return result
}

// invoke runs the handler with panic containment.
func (r *Registry) invoke(ctx context.Context, name string, desc Descriptor, params map[string]any) (result ExecutionResult) {
	defer func() {
		if rec := recover(); rec != nil {
			r.logger.Error("function handler panicked",
				slog.String("function", name),
				slog.Any("panic", rec),
			)
			result = ExecutionResult{Success: false, Error: fmt.Sprintf("handler panic: %v", rec)}
		}
	}()

	value, err := desc.handler(ctx, params)
	if err != nil {
		return ExecutionResult{Success: false, Error: err.Error()}
	}
	return ExecutionResult{Success: true, Result: value}
}

// GetAllSchemas returns every descriptor without its handler, sorted by
// name, for capability discovery.
//
// Thread Safety: Safe for concurrent use.
func (r *Registry) GetAllSchemas() []Descriptor {
	r.mu.RLock()
	defer r.mu.RUnlock()

	schemas := make([]Descriptor, 0, len(r.funcs))
	for _, desc := range r.funcs {
		desc.handler = nil
		schemas = append(schemas, desc)
	}
	sort.Slice(schemas, func(i, j int) bool {
		return schemas[i].Name < schemas[j].Name
	})
	return schemas
}

// Has reports whether a function name is registered.
func (r *Registry) Has(name string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.funcs[name]
	return ok
}
