// Copyright (C) 2024 Creditor Corp. Group.
// See LICENSE for copying information.

package bitcoin

import (
	"errors"
	"math/big"

	"swapd/bitcoin/ord/runes"
)

var (
	// ErrInsufficientNativeBalance describes that there is not enough native balance to cover the payment.
	ErrInsufficientNativeBalance = errors.New("insufficient native balance")
	// ErrInsufficientRuneBalance describes that there is not enough rune balance to cover the payment.
	ErrInsufficientRuneBalance = errors.New("insufficient rune balance")
	// ErrInvalidUTXOAmount describes that there was invalid UTXO amount transmitted.
	ErrInvalidUTXOAmount = errors.New("invalid UTXO amount")
)

// Outpoint identifies the previous output a UTXO spends from.
type Outpoint struct {
	TxHash [32]byte
	Vout   uint32
}

// UTXO describes an unspent, not-yet-classified-as-runic transaction output
// as tracked by the per-address index (C2).
type UTXO struct {
	Outpoint Outpoint
	Value    uint64 // in satoshi.
	Height   uint32
	Script   []byte // ScriptPubKey.
	Address  string // output recipient address.
}

// RunicUTXO is a UTXO the rune indexer has classified as carrying a balance
// of a single rune.
type RunicUTXO struct {
	UTXO    UTXO
	RuneID  runes.RuneID
	Balance *big.Int // in rune units.
}
