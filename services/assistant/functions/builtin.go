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
	"fmt"

	"github.com/shoplite/assist/services/assistant/knowledge"
	"github.com/shoplite/assist/services/assistant/storage"
)

// Built-in function names. These are the operations the orchestration
// engine dispatches to by intent.
const (
	FuncGetOrderStatus    = "getOrderStatus"
	FuncSearchProducts    = "searchProducts"
	FuncGetCustomerOrders = "getCustomerOrders"
	FuncGetPolicy         = "getPolicy"
	FuncCheckAvailability = "checkAvailability"
)

// defaultSearchLimit caps product search results surfaced to customers.
const defaultSearchLimit = 5

// RegisterBuiltins wires the five standard support functions against
// the given storage and knowledge collaborators.
//
// Description:
//
//	Handlers translate storage errors into plain error values; the
//	registry converts those into non-success execution results, and the
//	engine renders them as polite fallback sentences. Raw error text
//	never reaches a customer.
//
// Inputs:
//
//	registry - The target registry. Must not be nil.
//	store - Order/product persistence. Must not be nil.
//	kb - Knowledge base for policy lookups. Must not be nil.
//
// Outputs:
//
//	error - Non-nil if any registration fails (startup wiring bug).
func RegisterBuiltins(registry *Registry, store storage.Store, kb *knowledge.Store) error {
	if registry == nil || store == nil || kb == nil {
		return fmt.Errorf("functions: RegisterBuiltins: registry, store, and kb must not be nil")
	}

	builtins := []struct {
		desc    Descriptor
		handler Handler
	}{
		{
			desc: Descriptor{
				Name:        FuncGetOrderStatus,
				Description: "Look up the fulfillment status of one order by its id.",
				Parameters: ParameterSchema{
					Type: "object",
					Properties: map[string]ParamDef{
						"order_id": {Type: "string", Description: "The customer's order identifier, at least 10 alphanumeric characters."},
					},
					Required: []string{"order_id"},
				},
			},
			handler: func(ctx context.Context, params map[string]any) (any, error) {
				orderID, _ := params["order_id"].(string)
				order, err := store.GetOrder(ctx, orderID)
				if err != nil {
					if errors.Is(err, storage.ErrNotFound) {
						return nil, fmt.Errorf("order %s not found", orderID)
					}
					return nil, fmt.Errorf("looking up order %s: %w", orderID, err)
				}
				return order, nil
			},
		},
		{
			desc: Descriptor{
				Name:        FuncSearchProducts,
				Description: "Search the catalog by product name keywords.",
				Parameters: ParameterSchema{
					Type: "object",
					Properties: map[string]ParamDef{
						"query": {Type: "string", Description: "Free-text product keywords."},
						"limit": {Type: "integer", Description: "Maximum results to return.", Default: defaultSearchLimit},
					},
					Required: []string{"query"},
				},
			},
			handler: func(ctx context.Context, params map[string]any) (any, error) {
				q, _ := params["query"].(string)
				limit := intParam(params, "limit", defaultSearchLimit)
				return store.SearchProducts(ctx, q, limit)
			},
		},
		{
			desc: Descriptor{
				Name:        FuncGetCustomerOrders,
				Description: "List a customer's orders, newest first.",
				Parameters: ParameterSchema{
					Type: "object",
					Properties: map[string]ParamDef{
						"customer_id": {Type: "string", Description: "The customer account identifier."},
					},
					Required: []string{"customer_id"},
				},
			},
			handler: func(ctx context.Context, params map[string]any) (any, error) {
				customerID, _ := params["customer_id"].(string)
				return store.GetCustomerOrders(ctx, customerID)
			},
		},
		{
			desc: Descriptor{
				Name:        FuncGetPolicy,
				Description: "Fetch one knowledge base policy entry by id.",
				Parameters: ParameterSchema{
					Type: "object",
					Properties: map[string]ParamDef{
						"policy_id": {Type: "string", Description: "The knowledge entry id, e.g. Policy3.1."},
					},
					Required: []string{"policy_id"},
				},
			},
			handler: func(_ context.Context, params map[string]any) (any, error) {
				policyID, _ := params["policy_id"].(string)
				entry, ok := kb.Get(policyID)
				if !ok {
					return nil, fmt.Errorf("policy %s not found", policyID)
				}
				return entry, nil
			},
		},
		{
			desc: Descriptor{
				Name:        FuncCheckAvailability,
				Description: "Check whether a product is in stock.",
				Parameters: ParameterSchema{
					Type: "object",
					Properties: map[string]ParamDef{
						"product_id": {Type: "string", Description: "The catalog product identifier."},
					},
					Required: []string{"product_id"},
				},
			},
			handler: func(ctx context.Context, params map[string]any) (any, error) {
				productID, _ := params["product_id"].(string)
				product, err := store.GetProduct(ctx, productID)
				if err != nil {
					if errors.Is(err, storage.ErrNotFound) {
						return nil, fmt.Errorf("product %s not found", productID)
					}
					return nil, fmt.Errorf("looking up product %s: %w", productID, err)
				}
				return map[string]any{
					"product_id": product.ID,
					"name":       product.Name,
					"available":  product.Stock > 0,
					"stock":      product.Stock,
				}, nil
			},
		},
	}

	for _, b := range builtins {
		if err := registry.RegisterDescriptor(b.desc, b.handler); err != nil {
			return err
		}
	}
	return nil
}

// intParam reads an integer parameter that may arrive as a JSON float.
func intParam(params map[string]any, key string, fallback int) int {
	switch v := params[key].(type) {
	case int:
		return v
	case float64:
		return int(v)
	default:
		return fallback
	}
}
