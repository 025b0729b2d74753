// Copyright (C) 2025 Shoplite (support@shoplite.io)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package storage defines the order/product/customer lookup boundary
// consumed by the function registry's built-in handlers. The decision
// core never talks to persistence directly; integrators supply a Store
// implementation (badger-backed, in-memory, or their own).
package storage

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"
)

// ErrNotFound is returned when a looked-up record does not exist.
var ErrNotFound = errors.New("storage: not found")

// Order is one customer order.
type Order struct {
	// ID is the order identifier customers quote, e.g. "ORDER123456789".
	ID string `json:"id"`

	// CustomerID links the order to a customer account.
	CustomerID string `json:"customer_id"`

	// Status is the current fulfillment state
	// (pending, processing, shipped, delivered, cancelled).
	Status string `json:"status"`

	// EstimatedDelivery is the projected delivery date, if known.
	EstimatedDelivery *time.Time `json:"estimated_delivery,omitempty"`
}

// Product is one catalog item.
type Product struct {
	ID    string  `json:"id"`
	Name  string  `json:"name"`
	Price float64 `json:"price"`
	Stock int     `json:"stock"`
}

// Store is the persistence boundary for the built-in support functions.
//
// Implementations must be safe for concurrent use.
type Store interface {
	// GetOrder returns the order with the given id, or ErrNotFound.
	GetOrder(ctx context.Context, orderID string) (Order, error)

	// SearchProducts returns catalog items matching the free-text
	// query (see MatchesQuery), capped at limit. An empty result is
	// not an error.
	SearchProducts(ctx context.Context, query string, limit int) ([]Product, error)

	// GetCustomerOrders returns all orders for a customer, newest
	// first. An unknown customer yields an empty slice.
	GetCustomerOrders(ctx context.Context, customerID string) ([]Order, error)

	// GetProduct returns the product with the given id, or ErrNotFound.
	GetProduct(ctx context.Context, productID string) (Product, error)
}

// MatchesQuery reports whether a product name matches a free-text
// query: either the full query is a substring of the name, or any
// query token of three or more characters is. Matching is
// case-insensitive; an empty query matches everything.
func MatchesQuery(name, query string) bool {
	nameLower := strings.ToLower(name)
	queryLower := strings.ToLower(strings.TrimSpace(query))
	if queryLower == "" {
		return true
	}
	if strings.Contains(nameLower, queryLower) {
		return true
	}
	for _, token := range strings.Fields(queryLower) {
		if len(token) >= 3 && strings.Contains(nameLower, token) {
			return true
		}
	}
	return false
}

// =============================================================================
// In-Memory Store
// =============================================================================

// MemoryStore is a map-backed Store for tests and local development.
//
// Thread Safety: Safe for concurrent use.
type MemoryStore struct {
	mu       sync.RWMutex
	orders   map[string]Order
	products map[string]Product

	// byCustomer preserves insertion order per customer.
	byCustomer map[string][]string
	// productOrder preserves catalog insertion order for search results.
	productOrder []string
}

// NewMemoryStore creates an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		orders:     make(map[string]Order),
		products:   make(map[string]Product),
		byCustomer: make(map[string][]string),
	}
}

// PutOrder inserts or replaces an order.
func (m *MemoryStore) PutOrder(order Order) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, exists := m.orders[order.ID]; !exists && order.CustomerID != "" {
		m.byCustomer[order.CustomerID] = append(m.byCustomer[order.CustomerID], order.ID)
	}
	m.orders[order.ID] = order
}

// PutProduct inserts or replaces a product.
func (m *MemoryStore) PutProduct(product Product) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, exists := m.products[product.ID]; !exists {
		m.productOrder = append(m.productOrder, product.ID)
	}
	m.products[product.ID] = product
}

// GetOrder implements Store.
func (m *MemoryStore) GetOrder(_ context.Context, orderID string) (Order, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	order, ok := m.orders[orderID]
	if !ok {
		return Order{}, ErrNotFound
	}
	return order, nil
}

// SearchProducts implements Store.
func (m *MemoryStore) SearchProducts(_ context.Context, query string, limit int) ([]Product, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var results []Product
	for _, id := range m.productOrder {
		product := m.products[id]
		if MatchesQuery(product.Name, query) {
			results = append(results, product)
			if limit > 0 && len(results) >= limit {
				break
			}
		}
	}
	return results, nil
}

// GetCustomerOrders implements Store.
func (m *MemoryStore) GetCustomerOrders(_ context.Context, customerID string) ([]Order, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	ids := m.byCustomer[customerID]
	orders := make([]Order, 0, len(ids))
	for i := len(ids) - 1; i >= 0; i-- {
		orders = append(orders, m.orders[ids[i]])
	}
	return orders, nil
}

// GetProduct implements Store.
func (m *MemoryStore) GetProduct(_ context.Context, productID string) (Product, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	product, ok := m.products[productID]
	if !ok {
		return Product{}, ErrNotFound
	}
	return product, nil
}
