// Copyright (C) 2025 Shoplite (support@shoplite.io)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package badgerstore is a BadgerDB-backed implementation of the
// storage boundary. Records are stored as JSON values under typed key
// prefixes, so a single database holds orders and catalog products.
package badgerstore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	badger "github.com/dgraph-io/badger/v4"

	"github.com/shoplite/assist/services/assistant/storage"
)

// Key prefixes partition the keyspace by record type.
const (
	orderPrefix    = "order/"
	productPrefix  = "product/"
	customerPrefix = "customer/" // customer/<customerID>/<orderID> -> orderID
)

// Config holds the BadgerDB settings.
type Config struct {
	// Path is the database directory. Empty selects in-memory mode.
	Path string

	// Logger receives structured output. May be nil (uses slog.Default).
	Logger *slog.Logger
}

// DefaultConfig returns a Config with in-memory mode, suitable for
// tests and ephemeral deployments.
func DefaultConfig() Config {
	return Config{}
}

// Store is a badger-backed storage.Store.
//
// Thread Safety: Safe for concurrent use (badger transactions).
type Store struct {
	db     *badger.DB
	logger *slog.Logger
}

// Open opens or creates the database described by cfg.
func Open(cfg Config) (*Store, error) {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	opts := badger.DefaultOptions(cfg.Path).WithLogger(nil)
	if cfg.Path == "" {
		opts = opts.WithInMemory(true)
	}
	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("badgerstore: opening %q: %w", cfg.Path, err)
	}

	logger.Info("badger store opened",
		slog.String("path", cfg.Path),
		slog.Bool("in_memory", cfg.Path == ""),
	)
	return &Store{db: db, logger: logger}, nil
}

// Close releases the underlying database.
func (s *Store) Close() error {
	return s.db.Close()
}

// PutOrder writes an order and its customer index entry.
func (s *Store) PutOrder(order storage.Order) error {
	value, err := json.Marshal(order)
	if err != nil {
		return fmt.Errorf("badgerstore: marshaling order %s: %w", order.ID, err)
	}
	return s.db.Update(func(txn *badger.Txn) error {
		if err := txn.Set([]byte(orderPrefix+order.ID), value); err != nil {
			return err
		}
		if order.CustomerID != "" {
			key := customerPrefix + order.CustomerID + "/" + order.ID
			if err := txn.Set([]byte(key), []byte(order.ID)); err != nil {
				return err
			}
		}
		return nil
	})
}

// PutProduct writes a catalog product.
func (s *Store) PutProduct(product storage.Product) error {
	value, err := json.Marshal(product)
	if err != nil {
		return fmt.Errorf("badgerstore: marshaling product %s: %w", product.ID, err)
	}
	return s.db.Update(func(txn *badger.Txn) error {
		return txn.Set([]byte(productPrefix+product.ID), value)
	})
}

// GetOrder implements storage.Store.
func (s *Store) GetOrder(_ context.Context, orderID string) (storage.Order, error) {
	var order storage.Order
	err := s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get([]byte(orderPrefix + orderID))
		if err != nil {
			return err
		}
		return item.Value(func(val []byte) error {
			return json.Unmarshal(val, &order)
		})
	})
	if errors.Is(err, badger.ErrKeyNotFound) {
		return storage.Order{}, storage.ErrNotFound
	}
	if err != nil {
		return storage.Order{}, fmt.Errorf("badgerstore: reading order %s: %w", orderID, err)
	}
	return order, nil
}

// SearchProducts implements storage.Store. Matching is a token scan
// over product names (storage.MatchesQuery); the catalog is small
// enough that a prefix iteration is the whole index.
func (s *Store) SearchProducts(_ context.Context, query string, limit int) ([]storage.Product, error) {
	var results []storage.Product

	err := s.db.View(func(txn *badger.Txn) error {
		it := txn.NewIterator(badger.DefaultIteratorOptions)
		defer it.Close()

		prefix := []byte(productPrefix)
		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			var product storage.Product
			if err := it.Item().Value(func(val []byte) error {
				return json.Unmarshal(val, &product)
			}); err != nil {
				return err
			}
			if !storage.MatchesQuery(product.Name, query) {
				continue
			}
			results = append(results, product)
			if limit > 0 && len(results) >= limit {
				return nil
			}
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("badgerstore: searching products: %w", err)
	}
	return results, nil
}

// GetCustomerOrders implements storage.Store.
func (s *Store) GetCustomerOrders(ctx context.Context, customerID string) ([]storage.Order, error) {
	var orderIDs []string
	err := s.db.View(func(txn *badger.Txn) error {
		it := txn.NewIterator(badger.DefaultIteratorOptions)
		defer it.Close()

		prefix := []byte(customerPrefix + customerID + "/")
		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			if err := it.Item().Value(func(val []byte) error {
				orderIDs = append(orderIDs, string(val))
				return nil
			}); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("badgerstore: listing orders for %s: %w", customerID, err)
	}

	orders := make([]storage.Order, 0, len(orderIDs))
	for i := len(orderIDs) - 1; i >= 0; i-- {
		order, err := s.GetOrder(ctx, orderIDs[i])
		if err != nil {
			if errors.Is(err, storage.ErrNotFound) {
				continue
			}
			return nil, err
		}
		orders = append(orders, order)
	}
	return orders, nil
}

// GetProduct implements storage.Store.
func (s *Store) GetProduct(_ context.Context, productID string) (storage.Product, error) {
	var product storage.Product
	err := s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get([]byte(productPrefix + productID))
		if err != nil {
			return err
		}
		return item.Value(func(val []byte) error {
			return json.Unmarshal(val, &product)
		})
	})
	if errors.Is(err, badger.ErrKeyNotFound) {
		return storage.Product{}, storage.ErrNotFound
	}
	if err != nil {
		return storage.Product{}, fmt.Errorf("badgerstore: reading product %s: %w", productID, err)
	}
	return product, nil
}
