// Copyright (C) 2024 Creditor Corp. Group.
// See LICENSE for copying information.

// Package ledger defines the native-chain ledger client port (C8), grounded
// on original_source/chains/ic.rs and chains/ic/icp.rs.
package ledger

import (
	"context"
	"errors"

	"swapd/internal/account"
)

// DefaultFee is the ledger's fixed native-asset transfer fee, in e8s,
// matching ic_ledger_types::DEFAULT_FEE used throughout original_source.
const DefaultFee uint64 = 10_000

// ErrInsufficientBalance is returned when a transfer's subaccount cannot
// cover amount plus (when applicable) DefaultFee.
var ErrInsufficientBalance = errors.New("ledger: insufficient balance")

// Client models the platform's native-chain ledger (C8, spec.md §6).
type Client interface {
	// Transfer moves amount from fromSubaccount to the destination account
	// identifier. When feePaidBySender is true, DefaultFee is charged on top
	// of amount (the destination receives exactly amount); otherwise DefaultFee is
	// deducted from amount before it is credited, per
	// original_source/chains/ic.rs's additive-fee variant.
	Transfer(ctx context.Context, fromSubaccount [32]byte, to account.AccountIdentifier, amount uint64, feePaidBySender bool) (blockIndex uint64, err error)
	// Balance returns the current balance of account, in e8s.
	Balance(ctx context.Context, acct account.AccountIdentifier) (uint64, error)
}
