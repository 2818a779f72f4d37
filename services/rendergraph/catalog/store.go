// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package catalog

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"

	"github.com/dgraph-io/badger/v4"

	"github.com/AleutianAI/rendergraph/services/rendergraph/compile"
	"github.com/AleutianAI/rendergraph/services/rendergraph/graph"
)

// keyPrefix namespaces graph records in the database.
const keyPrefix = "graph/"

var (
	// ErrNotFound is returned when no record has the requested id.
	ErrNotFound = errors.New("graph record not found")

	// ErrInvalidRecord is returned when a record cannot be stored.
	ErrInvalidRecord = errors.New("invalid graph record")
)

// Record is one registered graph.
type Record struct {
	// ID is the registration id.
	ID string `json:"id"`

	// Name is the graph name.
	Name string `json:"name"`

	// Source names the script the graph came from, if known.
	Source string `json:"source,omitempty"`

	// RegisteredAt is the registration time in Unix milliseconds UTC.
	RegisteredAt int64 `json:"registered_at"`

	// Graph is the graph's description at registration time.
	Graph graph.Description `json:"graph"`

	// Plan is the compiled plan, when the graph was compiled on registration.
	Plan *compile.Plan `json:"plan,omitempty"`

	// CompileError holds the compile failure, when compilation was attempted and failed.
	CompileError string `json:"compile_error,omitempty"`
}

// Store reads and writes graph records.
//
// Thread Safety: Safe for concurrent use.
type Store struct {
	db *DB
}

// NewStore wraps an open database.
func NewStore(db *DB) *Store {
	return &Store{db: db}
}

// DB returns the underlying database.
func (s *Store) DB() *DB {
	return s.db
}

func recordKey(id string) []byte {
	return []byte(keyPrefix + id)
}

// Put stores rec, replacing any record with the same id.
func (s *Store) Put(ctx context.Context, rec Record) error {
	if rec.ID == "" {
		return fmt.Errorf("%w: empty id", ErrInvalidRecord)
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	data, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidRecord, err)
	}
	return s.db.Update(func(txn *badger.Txn) error {
		return txn.Set(recordKey(rec.ID), data)
	})
}

// PutReplacingSource stores rec and, in the same transaction, deletes every
// other record registered from rec.Source. A record without a source
// replaces nothing.
//
// Outputs:
//
//	[]string - Ids of the replaced records.
//	error - ErrInvalidRecord, or a database error.
func (s *Store) PutReplacingSource(ctx context.Context, rec Record) ([]string, error) {
	if rec.ID == "" {
		return nil, fmt.Errorf("%w: empty id", ErrInvalidRecord)
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	data, err := json.Marshal(rec)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidRecord, err)
	}

	var replaced []string
	err = s.db.Update(func(txn *badger.Txn) error {
		replaced = replaced[:0]
		if rec.Source != "" {
			opts := badger.DefaultIteratorOptions
			opts.Prefix = []byte(keyPrefix)
			it := txn.NewIterator(opts)
			for it.Rewind(); it.Valid(); it.Next() {
				var old Record
				if err := it.Item().Value(func(val []byte) error {
					return json.Unmarshal(val, &old)
				}); err != nil {
					it.Close()
					return fmt.Errorf("decode %s: %w", it.Item().Key(), err)
				}
				if old.Source == rec.Source && old.ID != rec.ID {
					replaced = append(replaced, old.ID)
				}
			}
			it.Close()
			for _, id := range replaced {
				if err := txn.Delete(recordKey(id)); err != nil {
					return err
				}
			}
		}
		return txn.Set(recordKey(rec.ID), data)
	})
	if err != nil {
		return nil, err
	}
	return replaced, nil
}

// Get loads the record with the given id.
//
// Outputs:
//
//	Record - The record.
//	error - ErrNotFound if absent.
func (s *Store) Get(ctx context.Context, id string) (Record, error) {
	var rec Record
	if err := ctx.Err(); err != nil {
		return rec, err
	}

	err := s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(recordKey(id))
		if errors.Is(err, badger.ErrKeyNotFound) {
			return fmt.Errorf("%w: %s", ErrNotFound, id)
		}
		if err != nil {
			return err
		}
		return item.Value(func(val []byte) error {
			return json.Unmarshal(val, &rec)
		})
	})
	return rec, err
}

// List returns every record ordered by registration time, then id.
func (s *Store) List(ctx context.Context) ([]Record, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	records := make([]Record, 0)
	err := s.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = []byte(keyPrefix)
		it := txn.NewIterator(opts)
		defer it.Close()

		for it.Rewind(); it.Valid(); it.Next() {
			if err := ctx.Err(); err != nil {
				return err
			}
			var rec Record
			err := it.Item().Value(func(val []byte) error {
				return json.Unmarshal(val, &rec)
			})
			if err != nil {
				return fmt.Errorf("decode %s: %w", it.Item().Key(), err)
			}
			records = append(records, rec)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	sort.Slice(records, func(i, j int) bool {
		if records[i].RegisteredAt != records[j].RegisteredAt {
			return records[i].RegisteredAt < records[j].RegisteredAt
		}
		return records[i].ID < records[j].ID
	})
	return records, nil
}

// Delete removes the record with the given id.
//
// Outputs:
//
//	error - ErrNotFound if absent.
func (s *Store) Delete(ctx context.Context, id string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return s.db.Update(func(txn *badger.Txn) error {
		if _, err := txn.Get(recordKey(id)); err != nil {
			if errors.Is(err, badger.ErrKeyNotFound) {
				return fmt.Errorf("%w: %s", ErrNotFound, id)
			}
			return err
		}
		return txn.Delete(recordKey(id))
	})
}
