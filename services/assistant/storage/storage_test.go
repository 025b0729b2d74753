// Copyright (C) 2025 Shoplite (support@shoplite.io)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package storage

import (
	"context"
	"errors"
	"testing"
)

func seededMemoryStore() *MemoryStore {
	m := NewMemoryStore()
	m.PutOrder(Order{ID: "ORDER111111111", CustomerID: "C1", Status: "pending"})
	m.PutOrder(Order{ID: "ORDER222222222", CustomerID: "C1", Status: "shipped"})
	m.PutOrder(Order{ID: "ORDER333333333", CustomerID: "C2", Status: "delivered"})
	m.PutProduct(Product{ID: "P1", Name: "Wireless Headphones", Price: 59.99, Stock: 5})
	m.PutProduct(Product{ID: "P2", Name: "Phone Case", Price: 12.99, Stock: 50})
	m.PutProduct(Product{ID: "P3", Name: "Wireless Charger", Price: 29.99, Stock: 0})
	return m
}

func TestMemoryStore_GetOrder(t *testing.T) {
	m := seededMemoryStore()
	ctx := context.Background()

	order, err := m.GetOrder(ctx, "ORDER111111111")
	if err != nil {
		t.Fatalf("GetOrder failed: %v", err)
	}
	if order.Status != "pending" {
		t.Errorf("expected pending, got %q", order.Status)
	}

	_, err = m.GetOrder(ctx, "ORDER000000000")
	if !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func TestMemoryStore_SearchProducts(t *testing.T) {
	m := seededMemoryStore()
	ctx := context.Background()

	results, err := m.SearchProducts(ctx, "wireless", 10)
	if err != nil {
		t.Fatalf("SearchProducts failed: %v", err)
	}
	if len(results) != 2 {
		t.Fatalf("expected 2 wireless products, got %d", len(results))
	}
	// Insertion order is preserved.
	if results[0].ID != "P1" || results[1].ID != "P3" {
		t.Errorf("unexpected order: %v", results)
	}

	results, _ = m.SearchProducts(ctx, "wireless", 1)
	if len(results) != 1 {
		t.Errorf("expected limit respected, got %d", len(results))
	}

	results, _ = m.SearchProducts(ctx, "granola", 10)
	if len(results) != 0 {
		t.Errorf("expected no matches, got %v", results)
	}

	// Empty query matches everything up to the limit.
	results, _ = m.SearchProducts(ctx, "", 2)
	if len(results) != 2 {
		t.Errorf("expected 2 results for empty query, got %d", len(results))
	}
}

func TestMemoryStore_GetCustomerOrders(t *testing.T) {
	m := seededMemoryStore()
	ctx := context.Background()

	orders, err := m.GetCustomerOrders(ctx, "C1")
	if err != nil {
		t.Fatalf("GetCustomerOrders failed: %v", err)
	}
	if len(orders) != 2 {
		t.Fatalf("expected 2 orders, got %d", len(orders))
	}
	// Newest first.
	if orders[0].ID != "ORDER222222222" {
		t.Errorf("expected newest order first, got %s", orders[0].ID)
	}

	orders, err = m.GetCustomerOrders(ctx, "nobody")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(orders) != 0 {
		t.Errorf("expected empty slice for unknown customer, got %v", orders)
	}
}

func TestMemoryStore_GetProduct(t *testing.T) {
	m := seededMemoryStore()
	ctx := context.Background()

	product, err := m.GetProduct(ctx, "P2")
	if err != nil {
		t.Fatalf("GetProduct failed: %v", err)
	}
	if product.Name != "Phone Case" {
		t.Errorf("unexpected product %+v", product)
	}

	if _, err := m.GetProduct(ctx, "P9"); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func TestMatchesQuery(t *testing.T) {
	tests := []struct {
		name  string
		query string
		want  bool
	}{
		{"Wireless Headphones", "wireless headphones", true},
		{"Wireless Headphones", "have wireless headphones in stock", true},
		{"Wireless Headphones", "HEADPHONES", true},
		{"Wireless Headphones", "granola bars", false},
		{"Wireless Headphones", "", true},
		// Short tokens never match on their own.
		{"Wireless Headphones", "qq ss", false},
	}
	for _, tt := range tests {
		if got := MatchesQuery(tt.name, tt.query); got != tt.want {
			t.Errorf("MatchesQuery(%q, %q) = %v, want %v", tt.name, tt.query, got, tt.want)
		}
	}
}

func TestMemoryStore_PutOrderReplaces(t *testing.T) {
	m := seededMemoryStore()
	ctx := context.Background()

	m.PutOrder(Order{ID: "ORDER111111111", CustomerID: "C1", Status: "shipped"})
	order, err := m.GetOrder(ctx, "ORDER111111111")
	if err != nil {
		t.Fatalf("GetOrder failed: %v", err)
	}
	if order.Status != "shipped" {
		t.Errorf("expected replaced status shipped, got %q", order.Status)
	}

	// Replacement must not duplicate the customer index.
	orders, _ := m.GetCustomerOrders(ctx, "C1")
	if len(orders) != 2 {
		t.Errorf("expected 2 orders after replace, got %d", len(orders))
	}
}
