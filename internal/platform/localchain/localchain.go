// Copyright (C) 2024 Creditor Corp. Group.
// See LICENSE for copying information.

// Package localchain provides in-memory stand-ins for the Bitcoin facility and
// rune indexer collaborators (§6), for tests and standalone runs.
package localchain

import (
	"context"
	"sync"

	"swapd/internal/platform"
)

// Bitcoin is an in-memory BitcoinFacility. Tests seed it directly via Seed;
// SendTransaction just records broadcast transactions for assertions.
type Bitcoin struct {
	mu         sync.Mutex
	utxosByAddr map[string][]platform.UTXO
	broadcast  [][]byte
	feePercentiles []uint64
}

// NewBitcoin builds an empty in-memory Bitcoin facility.
func NewBitcoin() *Bitcoin {
	return &Bitcoin{
		utxosByAddr: make(map[string][]platform.UTXO),
		feePercentiles: defaultFeePercentiles(),
	}
}

func defaultFeePercentiles() []uint64 {
	p := make([]uint64, 100)
	for i := range p {
		p[i] = 5000 // 5 sat/vbyte in millisats/vbyte, flat for determinism in tests.
	}
	return p
}

// Seed appends UTXOs to address's page-1 set.
func (b *Bitcoin) Seed(address string, utxos ...platform.UTXO) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.utxosByAddr[address] = append(b.utxosByAddr[address], utxos...)
}

// GetUTXOs returns the full set for address in a single page (pagination is a
// no-op here; real facilities page, this stand-in does not need to).
func (b *Bitcoin) GetUTXOs(_ context.Context, address string, _ platform.BitcoinNetwork, page []byte) (platform.UTXOPage, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if len(page) != 0 {
		return platform.UTXOPage{}, nil
	}

	return platform.UTXOPage{UTXOs: append([]platform.UTXO(nil), b.utxosByAddr[address]...)}, nil
}

// SendTransaction records the broadcast raw transaction.
func (b *Bitcoin) SendTransaction(_ context.Context, raw []byte, _ platform.BitcoinNetwork) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.broadcast = append(b.broadcast, raw)
	return nil
}

// Broadcasts returns every transaction handed to SendTransaction, for assertions.
func (b *Bitcoin) Broadcasts() [][]byte {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([][]byte(nil), b.broadcast...)
}

// FeePercentiles returns the configured flat sample set.
func (b *Bitcoin) FeePercentiles(_ context.Context, _ platform.BitcoinNetwork) ([]uint64, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]uint64(nil), b.feePercentiles...), nil
}

// RuneIndexer is an in-memory RuneIndexer keyed by outpoint.
type RuneIndexer struct {
	mu      sync.Mutex
	byOutpoint map[platform.Outpoint][]platform.RuneBalance
	height  uint32
	blockHash string
}

// NewRuneIndexer builds an empty in-memory rune indexer.
func NewRuneIndexer() *RuneIndexer {
	return &RuneIndexer{byOutpoint: make(map[platform.Outpoint][]platform.RuneBalance)}
}

// Classify registers the rune balances carried by a given outpoint.
func (r *RuneIndexer) Classify(outpoint platform.Outpoint, balances ...platform.RuneBalance) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.byOutpoint[outpoint] = balances
}

// SetHeight sets the indexer's reported tip.
func (r *RuneIndexer) SetHeight(height uint32, blockHash string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.height, r.blockHash = height, blockHash
}

// GetRunesByUTXO returns the registered balances for the outpoint, or none.
func (r *RuneIndexer) GetRunesByUTXO(_ context.Context, txHash [32]byte, vout uint32) ([]platform.RuneBalance, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.byOutpoint[platform.Outpoint{TxHash: txHash, Vout: vout}], nil
}

// GetHeight returns the configured tip.
func (r *RuneIndexer) GetHeight(_ context.Context) (uint32, string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.height, r.blockHash, nil
}
