// Copyright (C) 2024 Creditor Corp. Group.
// See LICENSE for copying information.

// Package syncer implements the rune-aware UTXO synchronizer (C3), grounded
// on original_source/updater.rs::fetch_utxos_and_update_balances.
package syncer

import (
	"context"
	"errors"
	"fmt"
	"math/big"

	"swapd/bitcoin"
	"swapd/bitcoin/ord/runes"
	"swapd/internal/platform"
	"swapd/internal/utxo"
)

// Target names what a Sync call is trying to reach before it stops paging.
type Target struct {
	// Bitcoin is true for a plain-bitcoin balance target, false for a rune one.
	Bitcoin    bool
	BitcoinMin uint64

	RuneID  runes.RuneID
	RuneMin *big.Int
}

// BitcoinTarget builds a Target for a plain-bitcoin balance threshold.
func BitcoinTarget(min uint64) Target {
	return Target{Bitcoin: true, BitcoinMin: min}
}

// RuneTarget builds a Target for a rune balance threshold.
func RuneTarget(id runes.RuneID, min *big.Int) Target {
	return Target{RuneID: id, RuneMin: min}
}

// Syncer pages an address's UTXOs from the Bitcoin facility, classifies each
// one against the rune indexer, and records the result into the UTXO index
// until target is met or the facility runs out of pages.
type Syncer struct {
	utxos    *utxo.Manager
	facility platform.BitcoinFacility
	indexer  platform.RuneIndexer
	network  platform.BitcoinNetwork
}

// New builds a Syncer.
func New(utxos *utxo.Manager, facility platform.BitcoinFacility, indexer platform.RuneIndexer, network platform.BitcoinNetwork) *Syncer {
	return &Syncer{utxos: utxos, facility: facility, indexer: indexer, network: network}
}

// Sync pages addr's UTXOs, classifying and recording each, until target is
// satisfied or the facility exhausts its pages.
func (s *Syncer) Sync(ctx context.Context, addr string, target Target) error {
	var page []byte

	for {
		listing, err := s.facility.GetUTXOs(ctx, addr, s.network, page)
		if err != nil {
			return fmt.Errorf("fetch utxos for %s: %w", addr, err)
		}

		var plain []bitcoin.UTXO
		for _, raw := range listing.UTXOs {
			outpoint := bitcoin.Outpoint{TxHash: raw.Outpoint.TxHash, Vout: raw.Outpoint.Vout}

			alreadyRunic, err := s.utxos.IsRunic(addr, outpoint)
			if err != nil {
				return fmt.Errorf("check runic status: %w", err)
			}
			if alreadyRunic {
				continue
			}

			balances, err := s.indexer.GetRunesByUTXO(ctx, raw.Outpoint.TxHash, raw.Outpoint.Vout)
			switch {
			case errors.Is(err, platform.ErrIndexerUnavailable):
				// Soft failure (spec.md §3/§7): treat as plain bitcoin, do not abort.
				plain = append(plain, toPlainUTXO(raw, addr))
				continue
			case err != nil:
				return fmt.Errorf("classify utxo: %w", err)
			case len(balances) == 0:
				plain = append(plain, toPlainUTXO(raw, addr))
				continue
			}

			for _, rb := range balances {
				ruleID := runes.RuneID{Block: rb.RuneIDBlock, TxID: rb.RuneIDTx}
				runic := bitcoin.RunicUTXO{
					UTXO:    toPlainUTXO(raw, addr),
					RuneID:  ruleID,
					Balance: new(big.Int).Set(rb.Balance),
				}
				if err := s.utxos.RecordRunic(addr, ruleID, []bitcoin.RunicUTXO{runic}); err != nil {
					return fmt.Errorf("record runic utxo: %w", err)
				}
			}
		}

		if len(plain) > 0 {
			if err := s.utxos.RecordBTC(addr, plain); err != nil {
				return fmt.Errorf("record btc utxos: %w", err)
			}
		}

		met, err := s.targetMet(addr, target)
		if err != nil {
			return err
		}
		if met || len(listing.NextPage) == 0 {
			return nil
		}
		page = listing.NextPage
	}
}

func (s *Syncer) targetMet(addr string, target Target) (bool, error) {
	if target.Bitcoin {
		balance, err := s.utxos.BitcoinBalance(addr)
		if err != nil {
			return false, err
		}
		return balance >= target.BitcoinMin, nil
	}

	balance, err := s.utxos.RuneBalance(addr, target.RuneID)
	if err != nil {
		return false, err
	}
	return balance.Cmp(target.RuneMin) >= 0, nil
}

func toPlainUTXO(raw platform.UTXO, addr string) bitcoin.UTXO {
	return bitcoin.UTXO{
		Outpoint: bitcoin.Outpoint{TxHash: raw.Outpoint.TxHash, Vout: raw.Outpoint.Vout},
		Value:    raw.Value,
		Height:   raw.Height,
		Address:  addr,
	}
}
