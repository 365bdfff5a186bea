// Copyright (C) 2024 Creditor Corp. Group.
// See LICENSE for copying information.

package txbuilder

import (
	"fmt"
	"math/big"

	"swapd/bitcoin"
	"swapd/bitcoin/ord/runes"
	"swapd/internal/utxo"
)

// Selection accumulates the UTXOs pulled out of C2 for one fee-convergence
// iteration. Every non-terminal iteration, and every failed build, MUST call
// Return to hand them back — spec.md §4.4.4 names this the single most
// failure-prone invariant in the system.
type Selection struct {
	utxos *utxo.Manager
	btc   map[string][]bitcoin.UTXO
	runic map[string][]bitcoin.RunicUTXO
}

func newSelection(u *utxo.Manager) *Selection {
	return &Selection{
		utxos: u,
		btc:   make(map[string][]bitcoin.UTXO),
		runic: make(map[string][]bitcoin.RunicUTXO),
	}
}

// selectPlain draws least-value plain UTXOs from addr, one at a time, until
// their sum is >= target. On shortfall it still records whatever it drew so
// the caller's Return call hands every one of them back.
func (s *Selection) selectPlain(addr string, target uint64) ([]bitcoin.UTXO, uint64, error) {
	var picked []bitcoin.UTXO
	var sum uint64

	for sum < target {
		u, ok, err := s.utxos.GetBTCUTXO(addr)
		if err != nil {
			s.btc[addr] = append(s.btc[addr], picked...)
			return nil, 0, fmt.Errorf("select plain utxo for %s: %w", addr, err)
		}
		if !ok {
			s.btc[addr] = append(s.btc[addr], picked...)
			return nil, 0, NewInsufficientError(InsufficientErrorTypeBitcoin, new(big.Int).SetUint64(target), new(big.Int).SetUint64(sum))
		}
		picked = append(picked, u)
		sum += u.Value
	}

	s.btc[addr] = append(s.btc[addr], picked...)
	return picked, sum, nil
}

// selectRunic draws least-balance UTXOs under ruleID from addr, one at a
// time, until their balance sum is >= target.
func (s *Selection) selectRunic(addr string, ruleID runes.RuneID, target *big.Int) ([]bitcoin.RunicUTXO, *big.Int, error) {
	var picked []bitcoin.RunicUTXO
	sum := big.NewInt(0)

	for sum.Cmp(target) < 0 {
		u, ok, err := s.utxos.GetRunicUTXO(addr, ruleID)
		if err != nil {
			s.runic[addr] = append(s.runic[addr], picked...)
			return nil, nil, fmt.Errorf("select runic utxo for %s: %w", addr, err)
		}
		if !ok {
			s.runic[addr] = append(s.runic[addr], picked...)
			return nil, nil, NewInsufficientError(InsufficientErrorTypeRune, target, sum)
		}
		picked = append(picked, u)
		sum.Add(sum, u.Balance)
	}

	s.runic[addr] = append(s.runic[addr], picked...)
	return picked, sum, nil
}

// Return hands every UTXO this selection drew back to C2, restoring the
// index to the state it was in before this iteration began.
func (s *Selection) Return() error {
	for addr, utxos := range s.btc {
		if len(utxos) == 0 {
			continue
		}
		if err := s.utxos.RecordBTC(addr, utxos); err != nil {
			return fmt.Errorf("return plain utxos for %s: %w", addr, err)
		}
	}

	for addr, utxos := range s.runic {
		if len(utxos) == 0 {
			continue
		}
		byRune := make(map[string][]bitcoin.RunicUTXO)
		for _, u := range utxos {
			key := u.RuneID.String()
			byRune[key] = append(byRune[key], u)
		}
		for _, group := range byRune {
			if err := s.utxos.RecordRunic(addr, group[0].RuneID, group); err != nil {
				return fmt.Errorf("return runic utxos for %s: %w", addr, err)
			}
		}
	}

	return nil
}
