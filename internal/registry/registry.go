// Copyright (C) 2024 Creditor Corp. Group.
// See LICENSE for copying information.

// Package registry implements the pool registry (C6): an order-insensitive
// token-pair to pool-id lookup plus the pool-id-keyed state map, grounded on
// original_source/state/pools.rs::PoolState.
package registry

import (
	"encoding/json"
	"errors"
	"fmt"
	"math/big"

	"swapd/internal/pool"
	"swapd/internal/store"
	"swapd/internal/token"
)

// ErrPairExists is returned by CreatePair when either ordering of the token
// pair already maps to a pool.
var ErrPairExists = errors.New("registry: pool already exists for token pair")

// ErrPoolNotFound is returned when a pool id has no registered state.
var ErrPoolNotFound = errors.New("registry: pool not found")

// Registry is the pool registry (C6), persisted via internal/store.
type Registry struct {
	store *store.Store
}

// New builds a Registry backed by s.
func New(s *store.Store) *Registry {
	return &Registry{store: s}
}

func pairKey(a, b token.TokenType) string {
	return fmt.Sprintf("%s|%s", a.String(), b.String())
}

// poolIDKey renders a pool id as the store's string key.
func poolIDKey(id *big.Int) string {
	return id.String()
}

// PoolIDByTokens returns the pool id for the pair regardless of argument
// order, or ErrPoolNotFound.
func (r *Registry) PoolIDByTokens(a, b token.TokenType) (*big.Int, error) {
	var id string

	err := r.store.Get(store.MemoryAssociatedPoolMapping, pairKey(a, b), &id)
	if err != nil {
		if !errors.Is(err, store.ErrNotFound) {
			return nil, err
		}
		err = r.store.Get(store.MemoryAssociatedPoolMapping, pairKey(b, a), &id)
		if err != nil {
			if errors.Is(err, store.ErrNotFound) {
				return nil, ErrPoolNotFound
			}
			return nil, err
		}
	}

	poolID, ok := new(big.Int).SetString(id, 10)
	if !ok {
		return nil, fmt.Errorf("registry: corrupt pool id %q", id)
	}
	return poolID, nil
}

// NextPoolID allocates the next sequential pool id, persisting the counter.
func (r *Registry) NextPoolID() (*big.Int, error) {
	var counter string

	err := r.store.Get(store.MemoryPoolMapping, "pool_count", &counter)
	if err != nil && !errors.Is(err, store.ErrNotFound) {
		return nil, err
	}

	current := big.NewInt(0)
	if counter != "" {
		if _, ok := current.SetString(counter, 10); !ok {
			return nil, fmt.Errorf("registry: corrupt pool counter %q", counter)
		}
	}

	next := new(big.Int).Add(current, big.NewInt(1))
	if err := r.store.Put(store.MemoryPoolMapping, "pool_count", next.String()); err != nil {
		return nil, err
	}

	return current, nil
}

// CreatePair persists state under its pool id and one associative key for
// its token pair, failing with ErrPairExists if either ordering is already
// mapped. Order-insensitive lookup is handled by PoolIDByTokens's fallback
// read, not by writing a second reverse-ordered key here.
func (r *Registry) CreatePair(state *pool.State) error {
	return r.store.Update(func(txn *store.Txn) error {
		var existing string
		errA := txn.Get(store.MemoryAssociatedPoolMapping, pairKey(state.Token0, state.Token1), &existing)
		switch {
		case errA == nil:
			return ErrPairExists
		case !errors.Is(errA, store.ErrNotFound):
			return errA
		}

		errB := txn.Get(store.MemoryAssociatedPoolMapping, pairKey(state.Token1, state.Token0), &existing)
		switch {
		case errB == nil:
			return ErrPairExists
		case !errors.Is(errB, store.ErrNotFound):
			return errB
		}

		idKey := poolIDKey(state.PoolID)
		if err := txn.Put(store.MemoryPoolMapping, idKey, state); err != nil {
			return err
		}
		if err := txn.Put(store.MemoryAssociatedPoolMapping, pairKey(state.Token0, state.Token1), idKey); err != nil {
			return err
		}
		return nil
	})
}

// Get loads the pool state for id.
func (r *Registry) Get(id *big.Int) (*pool.State, error) {
	var state pool.State
	err := r.store.Get(store.MemoryPoolMapping, poolIDKey(id), &state)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, ErrPoolNotFound
		}
		return nil, err
	}
	return &state, nil
}

// Save persists an updated pool state.
func (r *Registry) Save(state *pool.State) error {
	return r.store.Put(store.MemoryPoolMapping, poolIDKey(state.PoolID), state)
}

// All returns every registered pool's state, for admin listing (C9).
func (r *Registry) All() ([]*pool.State, error) {
	var states []*pool.State
	err := r.store.ForEach(store.MemoryPoolMapping, func(key string, value []byte) error {
		if key == "pool_count" {
			return nil
		}
		var state pool.State
		if err := json.Unmarshal(value, &state); err != nil {
			return err
		}
		states = append(states, &state)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return states, nil
}
