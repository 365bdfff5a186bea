// Copyright (C) 2024 Creditor Corp. Group.
// See LICENSE for copying information.

// Package store provides the process-wide, append-friendly key-value
// persistence layer backing the UTXO index, pool registry and configuration.
// It partitions a single badger.DB by a memory-id prefix, mirroring the
// stable-memory-region split of the platform this service was modelled on.
package store

import (
	"encoding/json"
	"fmt"
	"path/filepath"

	"github.com/dgraph-io/badger/v4"
)

// MemoryID names a logical partition of the key-value store.
type MemoryID byte

// Memory-id partitions, matching spec.md §6's enumeration.
const (
	MemoryConfig MemoryID = iota
	MemoryBitcoinMap
	MemoryRunicMap
	MemoryPoolMapping
	MemoryAssociatedPoolMapping
	MemoryUserMapping
	MemoryRuneEntries
)

// Store wraps a badger.DB opened for this process's lifetime.
type Store struct {
	db *badger.DB
}

// Open opens (creating if absent) the badger database rooted at dataDir/kv.
func Open(dataDir string) (*Store, error) {
	opts := badger.DefaultOptions(filepath.Join(dataDir, "kv")).
		WithLoggingLevel(badger.WARNING)

	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("open store: %w", err)
	}

	return &Store{db: db}, nil
}

// Close closes the underlying database.
func (s *Store) Close() error {
	return s.db.Close()
}

func partitionKey(id MemoryID, key string) []byte {
	return append([]byte{byte(id), ':'}, key...)
}

// Put JSON-marshals value and stores it under (id, key).
func (s *Store) Put(id MemoryID, key string, value any) error {
	data, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("marshal value for key %q: %w", key, err)
	}

	err = s.db.Update(func(txn *badger.Txn) error {
		return txn.Set(partitionKey(id, key), data)
	})
	if err != nil {
		return fmt.Errorf("put key %q: %w", key, err)
	}

	return nil
}

// ErrNotFound is returned by Get when the key is absent from the partition.
var ErrNotFound = badger.ErrKeyNotFound

// Get JSON-unmarshals the value stored under (id, key) into dst.
func (s *Store) Get(id MemoryID, key string, dst any) error {
	err := s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(partitionKey(id, key))
		if err != nil {
			return err
		}
		return item.Value(func(val []byte) error {
			return json.Unmarshal(val, dst)
		})
	})
	if err != nil {
		return fmt.Errorf("get key %q: %w", key, err)
	}

	return nil
}

// Delete removes the value stored under (id, key), if present.
func (s *Store) Delete(id MemoryID, key string) error {
	err := s.db.Update(func(txn *badger.Txn) error {
		return txn.Delete(partitionKey(id, key))
	})
	if err != nil {
		return fmt.Errorf("delete key %q: %w", key, err)
	}

	return nil
}

// ForEach invokes fn for every value stored in the given partition. Iteration
// stops and returns fn's error if fn returns a non-nil error.
func (s *Store) ForEach(id MemoryID, fn func(key string, value []byte) error) error {
	prefix := []byte{byte(id), ':'}

	return s.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = prefix
		it := txn.NewIterator(opts)
		defer it.Close()

		for it.Rewind(); it.Valid(); it.Next() {
			item := it.Item()
			key := string(item.Key()[len(prefix):])
			if err := item.Value(func(val []byte) error {
				return fn(key, val)
			}); err != nil {
				return err
			}
		}

		return nil
	})
}

// Update runs fn inside a single badger read-write transaction, so that
// multi-key writes (e.g. the registry's pool_mapping + associative entries,
// per spec.md §4.6's atomicity requirement) commit together.
func (s *Store) Update(fn func(txn *Txn) error) error {
	return s.db.Update(func(t *badger.Txn) error {
		return fn(&Txn{t: t})
	})
}

// Txn is a handle to a single read-write transaction passed to Update.
type Txn struct {
	t *badger.Txn
}

// Put writes a JSON-marshaled value under (id, key) within the transaction.
func (tx *Txn) Put(id MemoryID, key string, value any) error {
	data, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("marshal value for key %q: %w", key, err)
	}
	return tx.t.Set(partitionKey(id, key), data)
}

// Get reads a JSON value under (id, key) within the transaction.
func (tx *Txn) Get(id MemoryID, key string, dst any) error {
	item, err := tx.t.Get(partitionKey(id, key))
	if err != nil {
		return err
	}
	return item.Value(func(val []byte) error {
		return json.Unmarshal(val, dst)
	})
}
