// Copyright (C) 2024 Creditor Corp. Group.
// See LICENSE for copying information.

// Package utxo implements the per-address UTXO index (C2): a partitioned set
// of plain-bitcoin and per-rune UTXOs, grounded on
// original_source/state/utxo_manager.rs.
package utxo

import (
	"errors"
	"fmt"
	"math/big"

	"swapd/bitcoin"
	"swapd/bitcoin/ord/runes"
	"swapd/internal/store"
)

// Manager is the UTXO index (C2), persisted via internal/store.
type Manager struct {
	store *store.Store
}

// New builds a Manager backed by s.
func New(s *store.Store) *Manager {
	return &Manager{store: s}
}

func containsOutpoint(utxos []bitcoin.UTXO, outpoint bitcoin.Outpoint) bool {
	for _, u := range utxos {
		if u.Outpoint == outpoint {
			return true
		}
	}
	return false
}

func (m *Manager) bitcoinSet(txn *store.Txn, addr string) ([]bitcoin.UTXO, error) {
	var utxos []bitcoin.UTXO
	err := txn.Get(store.MemoryBitcoinMap, addr, &utxos)
	if err != nil && !errors.Is(err, store.ErrNotFound) {
		return nil, err
	}
	return utxos, nil
}

// runicSet is the per-address map of rune id (string-keyed) to its UTXO set.
type runicSet map[string][]bitcoin.RunicUTXO

func (m *Manager) runicMap(txn *store.Txn, addr string) (runicSet, error) {
	set := make(runicSet)
	err := txn.Get(store.MemoryRunicMap, addr, &set)
	if err != nil && !errors.Is(err, store.ErrNotFound) {
		return nil, err
	}
	if set == nil {
		set = make(runicSet)
	}
	return set, nil
}

// RecordBTC unions utxos into addr's plain-bitcoin set. Recording an
// already-present UTXO is a no-op (set semantics, spec.md §3).
func (m *Manager) RecordBTC(addr string, utxos []bitcoin.UTXO) error {
	return m.store.Update(func(txn *store.Txn) error {
		current, err := m.bitcoinSet(txn, addr)
		if err != nil {
			return err
		}

		for _, u := range utxos {
			if containsOutpoint(current, u.Outpoint) {
				continue
			}
			current = append(current, u)
		}

		return txn.Put(store.MemoryBitcoinMap, addr, current)
	})
}

// RecordRunic unions utxos into addr's set for ruleID, and purges any of
// those outpoints from the plain-bitcoin set: a UTXO the indexer has now
// classified as runic must not remain reachable as a plain-bitcoin UTXO
// (spec.md §3's upgrade-to-runic purge rule).
func (m *Manager) RecordRunic(addr string, ruleID runes.RuneID, utxos []bitcoin.RunicUTXO) error {
	return m.store.Update(func(txn *store.Txn) error {
		runic, err := m.runicMap(txn, addr)
		if err != nil {
			return err
		}

		key := ruleID.String()
		current := runic[key]
		for _, u := range utxos {
			found := false
			for _, existing := range current {
				if existing.UTXO.Outpoint == u.UTXO.Outpoint {
					found = true
					break
				}
			}
			if !found {
				current = append(current, u)
			}
		}
		runic[key] = current

		if err := txn.Put(store.MemoryRunicMap, addr, runic); err != nil {
			return err
		}

		btc, err := m.bitcoinSet(txn, addr)
		if err != nil {
			return err
		}
		filtered := btc[:0]
		for _, b := range btc {
			upgraded := false
			for _, u := range utxos {
				if b.Outpoint == u.UTXO.Outpoint {
					upgraded = true
					break
				}
			}
			if !upgraded {
				filtered = append(filtered, b)
			}
		}
		return txn.Put(store.MemoryBitcoinMap, addr, filtered)
	})
}

// GetBTCUTXO removes and returns addr's least-value plain-bitcoin UTXO, or
// (zero, false) if the set is empty.
func (m *Manager) GetBTCUTXO(addr string) (bitcoin.UTXO, bool, error) {
	var picked bitcoin.UTXO
	var ok bool

	err := m.store.Update(func(txn *store.Txn) error {
		current, err := m.bitcoinSet(txn, addr)
		if err != nil {
			return err
		}
		if len(current) == 0 {
			return nil
		}

		minIdx := 0
		for i, u := range current {
			if u.Value < current[minIdx].Value {
				minIdx = i
			}
		}
		picked = current[minIdx]
		ok = true

		current = append(current[:minIdx], current[minIdx+1:]...)
		return txn.Put(store.MemoryBitcoinMap, addr, current)
	})
	if err != nil {
		return bitcoin.UTXO{}, false, err
	}
	return picked, ok, nil
}

// GetRunicUTXO removes and returns addr's least-balance UTXO under ruleID, or
// (zero, false) if none is held.
func (m *Manager) GetRunicUTXO(addr string, ruleID runes.RuneID) (bitcoin.RunicUTXO, bool, error) {
	var picked bitcoin.RunicUTXO
	var ok bool

	err := m.store.Update(func(txn *store.Txn) error {
		runic, err := m.runicMap(txn, addr)
		if err != nil {
			return err
		}

		key := ruleID.String()
		current := runic[key]
		if len(current) == 0 {
			return nil
		}

		minIdx := 0
		for i, u := range current {
			if u.Balance.Cmp(current[minIdx].Balance) < 0 {
				minIdx = i
			}
		}
		picked = current[minIdx]
		ok = true

		current = append(current[:minIdx], current[minIdx+1:]...)
		runic[key] = current
		return txn.Put(store.MemoryRunicMap, addr, runic)
	})
	if err != nil {
		return bitcoin.RunicUTXO{}, false, err
	}
	return picked, ok, nil
}

// IsRunic reports whether outpoint appears under any rune for addr.
func (m *Manager) IsRunic(addr string, outpoint bitcoin.Outpoint) (bool, error) {
	var runic runicSet
	err := m.store.Get(store.MemoryRunicMap, addr, &runic)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return false, nil
		}
		return false, err
	}

	for _, utxos := range runic {
		for _, u := range utxos {
			if u.UTXO.Outpoint == outpoint {
				return true, nil
			}
		}
	}
	return false, nil
}

// BitcoinBalance sums addr's plain-bitcoin set.
func (m *Manager) BitcoinBalance(addr string) (uint64, error) {
	var current []bitcoin.UTXO
	err := m.store.Get(store.MemoryBitcoinMap, addr, &current)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return 0, nil
		}
		return 0, err
	}

	var total uint64
	for _, u := range current {
		total += u.Value
	}
	return total, nil
}

// RuneBalance sums addr's set for ruleID.
func (m *Manager) RuneBalance(addr string, ruleID runes.RuneID) (*big.Int, error) {
	var runic runicSet
	err := m.store.Get(store.MemoryRunicMap, addr, &runic)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return big.NewInt(0), nil
		}
		return nil, err
	}

	total := big.NewInt(0)
	for _, u := range runic[ruleID.String()] {
		total.Add(total, u.Balance)
	}
	return total, nil
}

// AllRunesWithBalances sums every rune set held for addr, keyed by the
// textual rune id.
func (m *Manager) AllRunesWithBalances(addr string) (map[string]*big.Int, error) {
	var runic runicSet
	err := m.store.Get(store.MemoryRunicMap, addr, &runic)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return map[string]*big.Int{}, nil
		}
		return nil, err
	}

	balances := make(map[string]*big.Int, len(runic))
	for id, utxos := range runic {
		total := big.NewInt(0)
		for _, u := range utxos {
			total.Add(total, u.Balance)
		}
		balances[id] = total
	}
	return balances, nil
}

// RemoveBTC removes outpoint from addr's plain-bitcoin set, if present.
func (m *Manager) RemoveBTC(addr string, outpoint bitcoin.Outpoint) error {
	return m.store.Update(func(txn *store.Txn) error {
		current, err := m.bitcoinSet(txn, addr)
		if err != nil {
			return err
		}

		filtered := current[:0]
		for _, u := range current {
			if u.Outpoint != outpoint {
				filtered = append(filtered, u)
			}
		}
		if err := txn.Put(store.MemoryBitcoinMap, addr, filtered); err != nil {
			return fmt.Errorf("remove btc utxo for %s: %w", addr, err)
		}
		return nil
	})
}
