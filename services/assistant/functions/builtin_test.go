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
	"strings"
	"testing"

	"github.com/shoplite/assist/services/assistant/knowledge"
	"github.com/shoplite/assist/services/assistant/storage"
)

func setupBuiltins(t *testing.T) *Registry {
	t.Helper()

	mem := storage.NewMemoryStore()
	mem.PutOrder(storage.Order{ID: "ORDER998877665", CustomerID: "CUST1", Status: "shipped"})
	mem.PutOrder(storage.Order{ID: "ORDER112233445", CustomerID: "CUST1", Status: "processing"})
	mem.PutProduct(storage.Product{ID: "P1", Name: "Wireless Headphones", Price: 59.99, Stock: 3})
	mem.PutProduct(storage.Product{ID: "P2", Name: "Wired Headphones", Price: 19.99, Stock: 0})

	kb, err := knowledge.NewStore([]knowledge.Entry{
		{ID: "Policy3.1", Category: "returns", Question: "return policy?", Answer: "30 days."},
	}, nil)
	if err != nil {
		t.Fatalf("building knowledge store: %v", err)
	}

	r := NewRegistry(nil)
	if err := RegisterBuiltins(r, mem, kb); err != nil {
		t.Fatalf("RegisterBuiltins failed: %v", err)
	}
	return r
}

func TestRegisterBuiltins_AllRegistered(t *testing.T) {
	r := setupBuiltins(t)

	for _, name := range []string{
		FuncGetOrderStatus,
		FuncSearchProducts,
		FuncGetCustomerOrders,
		FuncGetPolicy,
		FuncCheckAvailability,
	} {
		if !r.Has(name) {
			t.Errorf("builtin %s not registered", name)
		}
	}
}

func TestBuiltin_GetOrderStatus(t *testing.T) {
	r := setupBuiltins(t)
	ctx := context.Background()

	res := r.Execute(ctx, FuncGetOrderStatus, map[string]any{"order_id": "ORDER998877665"})
	if !res.Success {
		t.Fatalf("expected success, got %q", res.Error)
	}
	order, ok := res.Result.(storage.Order)
	if !ok {
		t.Fatalf("expected storage.Order result, got %T", res.Result)
	}
	if order.Status != "shipped" {
		t.Errorf("expected status shipped, got %q", order.Status)
	}

	res = r.Execute(ctx, FuncGetOrderStatus, map[string]any{"order_id": "ORDER000000000"})
	if res.Success {
		t.Fatal("expected failure for unknown order")
	}
	if !strings.Contains(res.Error, "not found") {
		t.Errorf("expected not-found error, got %q", res.Error)
	}
}

func TestBuiltin_SearchProducts(t *testing.T) {
	r := setupBuiltins(t)
	ctx := context.Background()

	res := r.Execute(ctx, FuncSearchProducts, map[string]any{"query": "headphones"})
	if !res.Success {
		t.Fatalf("expected success, got %q", res.Error)
	}
	products, ok := res.Result.([]storage.Product)
	if !ok {
		t.Fatalf("expected []storage.Product, got %T", res.Result)
	}
	if len(products) != 2 {
		t.Errorf("expected 2 matches, got %d", len(products))
	}

	// JSON-decoded limits arrive as float64.
	res = r.Execute(ctx, FuncSearchProducts, map[string]any{"query": "headphones", "limit": float64(1)})
	if !res.Success {
		t.Fatalf("expected success with numeric limit, got %q", res.Error)
	}
	if products := res.Result.([]storage.Product); len(products) != 1 {
		t.Errorf("expected limit 1 respected, got %d", len(products))
	}
}

func TestBuiltin_GetCustomerOrders(t *testing.T) {
	r := setupBuiltins(t)

	res := r.Execute(context.Background(), FuncGetCustomerOrders, map[string]any{"customer_id": "CUST1"})
	if !res.Success {
		t.Fatalf("expected success, got %q", res.Error)
	}
	orders, ok := res.Result.([]storage.Order)
	if !ok {
		t.Fatalf("expected []storage.Order, got %T", res.Result)
	}
	if len(orders) != 2 {
		t.Errorf("expected 2 orders, got %d", len(orders))
	}
}

func TestBuiltin_GetPolicy(t *testing.T) {
	r := setupBuiltins(t)
	ctx := context.Background()

	res := r.Execute(ctx, FuncGetPolicy, map[string]any{"policy_id": "Policy3.1"})
	if !res.Success {
		t.Fatalf("expected success, got %q", res.Error)
	}
	entry, ok := res.Result.(knowledge.Entry)
	if !ok {
		t.Fatalf("expected knowledge.Entry, got %T", res.Result)
	}
	if entry.Answer != "30 days." {
		t.Errorf("unexpected answer %q", entry.Answer)
	}

	res = r.Execute(ctx, FuncGetPolicy, map[string]any{"policy_id": "Z99"})
	if res.Success {
		t.Fatal("expected failure for unknown policy")
	}
}

func TestBuiltin_CheckAvailability(t *testing.T) {
	r := setupBuiltins(t)
	ctx := context.Background()

	res := r.Execute(ctx, FuncCheckAvailability, map[string]any{"product_id": "P1"})
	if !res.Success {
		t.Fatalf("expected success, got %q", res.Error)
	}
	info, ok := res.Result.(map[string]any)
	if !ok {
		t.Fatalf("expected map result, got %T", res.Result)
	}
	if info["available"] != true {
		t.Errorf("expected P1 available, got %v", info["available"])
	}

	res = r.Execute(ctx, FuncCheckAvailability, map[string]any{"product_id": "P2"})
	if !res.Success {
		t.Fatalf("expected success, got %q", res.Error)
	}
	if info := res.Result.(map[string]any); info["available"] != false {
		t.Errorf("expected P2 out of stock, got %v", info["available"])
	}
}
