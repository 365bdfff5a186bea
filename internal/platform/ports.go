// Copyright (C) 2024 Creditor Corp. Group.
// See LICENSE for copying information.

// Package platform defines the external collaborator interfaces (§6):
// threshold ECDSA, the Bitcoin UTXO/broadcast facility, and the rune indexer.
// Production wiring points these at real endpoints; internal/platform/localkms
// and internal/platform/localchain provide deterministic in-memory stand-ins
// for tests and standalone runs.
package platform

import (
	"context"
	"errors"
	"math/big"
)

// ErrFacilityUnavailable marks a hard external-call failure (spec.md §7):
// the Bitcoin facility or ledger is unreachable or rejected the call.
var ErrFacilityUnavailable = errors.New("platform: facility unavailable")

// ErrIndexerUnavailable marks a soft external-call failure (spec.md §3,§7):
// callers MUST treat the affected UTXO as plain bitcoin, not abort.
var ErrIndexerUnavailable = errors.New("platform: rune indexer unavailable")

// DerivationPath is a deterministic, injective byte-sequence encoding of an
// account, used to derive a child key from the threshold-ECDSA root.
type DerivationPath [][]byte

// ThresholdECDSA models the platform's threshold-ECDSA facility (§6).
type ThresholdECDSA interface {
	// PublicKey returns the SEC1-encoded public key derived at path under keyName.
	PublicKey(ctx context.Context, path DerivationPath, keyName string) ([]byte, error)
	// Sign returns the raw (r||s) signature over messageHash, derived at path.
	Sign(ctx context.Context, messageHash [32]byte, path DerivationPath, keyName string) ([64]byte, error)
}

// Outpoint identifies a previous transaction output.
type Outpoint struct {
	TxHash [32]byte
	Vout   uint32
}

// UTXO is a raw unspent output as reported by the Bitcoin facility, before
// rune classification.
type UTXO struct {
	Outpoint Outpoint
	Value    uint64
	Height   uint32
}

// UTXOPage is one page of a paginated UTXO listing.
type UTXOPage struct {
	UTXOs    []UTXO
	NextPage []byte // nil/empty marks the last page.
}

// BitcoinNetwork names which Bitcoin network a facility call targets.
type BitcoinNetwork byte

// Supported Bitcoin networks.
const (
	BitcoinMainnet BitcoinNetwork = iota
	BitcoinTestnet
	BitcoinRegtest
)

// BitcoinFacility models the platform's Bitcoin UTXO/broadcast facility (§6).
type BitcoinFacility interface {
	// GetUTXOs fetches one page of UTXOs for address. page is the opaque
	// cursor returned by the previous call, or nil for the first page.
	GetUTXOs(ctx context.Context, address string, network BitcoinNetwork, page []byte) (UTXOPage, error)
	// SendTransaction broadcasts a raw, fully-signed transaction.
	SendTransaction(ctx context.Context, raw []byte, network BitcoinNetwork) error
	// FeePercentiles returns 100 fee-rate samples (millisats/vbyte), ascending.
	FeePercentiles(ctx context.Context, network BitcoinNetwork) ([]uint64, error)
}

// RuneBalance is a rune balance attached to a single UTXO.
type RuneBalance struct {
	RuneIDBlock uint64
	RuneIDTx    uint32
	Balance     *big.Int
}

// RuneIndexer models the external rune-indexer collaborator (§6).
type RuneIndexer interface {
	// GetRunesByUTXO classifies a single UTXO. An error here is a soft
	// failure per spec.md §3/§7 — callers treat the UTXO as plain bitcoin.
	GetRunesByUTXO(ctx context.Context, txHash [32]byte, vout uint32) ([]RuneBalance, error)
	// GetHeight returns the indexer's current tip height and block hash.
	GetHeight(ctx context.Context) (height uint32, blockHash string, err error)
}
