// Copyright (C) 2025 Shoplite (support@shoplite.io)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package functions

import (
	"context"
	"errors"
	"strings"
	"testing"
)

func stringSchema(required ...string) ParameterSchema {
	props := make(map[string]ParamDef, len(required))
	for _, name := range required {
		props[name] = ParamDef{Type: "string"}
	}
	return ParameterSchema{Type: "object", Properties: props, Required: required}
}

func TestRegister_Validation(t *testing.T) {
	r := NewRegistry(nil)
	okHandler := func(context.Context, map[string]any) (any, error) { return "ok", nil }

	tests := []struct {
		name    string
		fnName  string
		schema  ParameterSchema
		handler Handler
		wantErr string
	}{
		{"empty name", "", stringSchema(), okHandler, "name must not be empty"},
		{"nil handler", "f", stringSchema(), nil, "handler must not be nil"},
		{"empty schema type", "f", ParameterSchema{}, okHandler, "schema type must not be empty"},
		{
			"required without property",
			"f",
			ParameterSchema{Type: "object", Required: []string{"missing"}},
			okHandler,
			"no property definition",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := r.Register(tt.fnName, tt.schema, tt.handler)
			if err == nil {
				t.Fatal("expected error, got nil")
			}
			if !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("expected error containing %q, got %q", tt.wantErr, err.Error())
			}
		})
	}
}

func TestRegister_Duplicate(t *testing.T) {
	r := NewRegistry(nil)
	h := func(context.Context, map[string]any) (any, error) { return nil, nil }

	if err := r.Register("dup", stringSchema(), h); err != nil {
		t.Fatalf("first registration failed: %v", err)
	}
	err := r.Register("dup", stringSchema(), h)
	if err == nil || !strings.Contains(err.Error(), "already registered") {
		t.Errorf("expected duplicate error, got %v", err)
	}
}

func TestExecute_NotFound(t *testing.T) {
	r := NewRegistry(nil)

	res := r.Execute(context.Background(), "nope", nil)
	if res.Success {
		t.Fatal("expected failure for unknown function")
	}
	if res.Error != "function not found: nope" {
		t.Errorf("unexpected error message: %q", res.Error)
	}
}

func TestExecute_MissingRequiredParameter(t *testing.T) {
	r := NewRegistry(nil)
	called := false
	r.MustRegister("f", stringSchema("query"), func(context.Context, map[string]any) (any, error) {
		called = true
		return nil, nil
	})

	for _, params := range []map[string]any{
		nil,
		{},
		{"query": nil},
		{"query": ""},
	} {
		res := r.Execute(context.Background(), "f", params)
		if res.Success {
			t.Errorf("params %v: expected failure", params)
		}
		if res.Error != "missing required parameter: query" {
			t.Errorf("params %v: unexpected error %q", params, res.Error)
		}
	}
	if called {
		t.Error("handler must not run when required parameters are missing")
	}
}

func TestExecute_HandlerErrorContained(t *testing.T) {
	r := NewRegistry(nil)
	r.MustRegister("f", stringSchema(), func(context.Context, map[string]any) (any, error) {
		return nil, errors.New("backend down")
	})

	res := r.Execute(context.Background(), "f", nil)
	if res.Success {
		t.Fatal("expected failure")
	}
	if !strings.Contains(res.Error, "backend down") {
		t.Errorf("expected handler error in result, got %q", res.Error)
	}
}

func TestExecute_HandlerPanicContained(t *testing.T) {
	r := NewRegistry(nil)
	r.MustRegister("f", stringSchema(), func(context.Context, map[string]any) (any, error) {
		panic("boom")
	})

	res := r.Execute(context.Background(), "f", nil)
	if res.Success {
		t.Fatal("expected failure")
	}
	if !strings.Contains(res.Error, "boom") {
		t.Errorf("expected panic message in result, got %q", res.Error)
	}
}

func TestExecute_Success(t *testing.T) {
	r := NewRegistry(nil)
	r.MustRegister("echo", stringSchema("text"), func(_ context.Context, params map[string]any) (any, error) {
		return params["text"], nil
	})

	res := r.Execute(context.Background(), "echo", map[string]any{"text": "hi"})
	if !res.Success {
		t.Fatalf("expected success, got error %q", res.Error)
	}
	if res.Result != "hi" {
		t.Errorf("expected result hi, got %v", res.Result)
	}
}

func TestGetAllSchemas_SortedAndHandlerFree(t *testing.T) {
	r := NewRegistry(nil)
	h := func(context.Context, map[string]any) (any, error) { return nil, nil }
	r.MustRegister("zeta", stringSchema(), h)
	r.MustRegister("alpha", stringSchema(), h)
	r.MustRegister("mid", stringSchema(), h)

	schemas := r.GetAllSchemas()
	if len(schemas) != 3 {
		t.Fatalf("expected 3 schemas, got %d", len(schemas))
	}
	for i, want := range []string{"alpha", "mid", "zeta"} {
		if schemas[i].Name != want {
			t.Errorf("position %d: expected %s, got %s", i, want, schemas[i].Name)
		}
		if schemas[i].handler != nil {
			t.Errorf("schema %s leaked its handler", schemas[i].Name)
		}
	}
}

func TestHas(t *testing.T) {
	r := NewRegistry(nil)
	r.MustRegister("f", stringSchema(), func(context.Context, map[string]any) (any, error) { return nil, nil })

	if !r.Has("f") {
		t.Error("expected Has(f) true")
	}
	if r.Has("g") {
		t.Error("expected Has(g) false")
	}
}
