// Copyright (C) 2024 Creditor Corp. Group.
// See LICENSE for copying information.

// Package localledger is an in-memory ledger.Client for tests and standalone
// runs, since no real native-chain ledger endpoint exists outside the host
// platform this service was modelled on.
package localledger

import (
	"context"
	"sync"

	"swapd/internal/account"
	"swapd/internal/ledger"
)

// Ledger is an in-memory ledger keyed by AccountIdentifier. owner is this
// service's own native identity, used to translate a bare subaccount (as
// Client.Transfer receives it) into the AccountIdentifier it is credited
// from.
type Ledger struct {
	owner []byte

	mu        sync.Mutex
	balances  map[account.AccountIdentifier]uint64
	nextBlock uint64
}

// New builds an empty ledger for owner.
func New(owner []byte) *Ledger {
	return &Ledger{
		owner:    owner,
		balances: make(map[account.AccountIdentifier]uint64),
	}
}

// Credit sets up initial balance for tests, adding amount to acct.
func (l *Ledger) Credit(acct account.AccountIdentifier, amount uint64) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.balances[acct] += amount
}

// Transfer implements ledger.Client.
func (l *Ledger) Transfer(_ context.Context, fromSubaccount [32]byte, to account.AccountIdentifier, amount uint64, feePaidBySender bool) (uint64, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	from := account.Identifier(account.Account{Owner: l.owner, Subaccount: fromSubaccount})

	debit := amount
	credit := amount
	if feePaidBySender {
		debit = amount + ledger.DefaultFee
	} else {
		if amount < ledger.DefaultFee {
			return 0, ledger.ErrInsufficientBalance
		}
		credit = amount - ledger.DefaultFee
	}

	if l.balances[from] < debit {
		return 0, ledger.ErrInsufficientBalance
	}

	l.balances[from] -= debit
	l.balances[to] += credit

	l.nextBlock++
	return l.nextBlock, nil
}

// Balance implements ledger.Client.
func (l *Ledger) Balance(_ context.Context, acct account.AccountIdentifier) (uint64, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.balances[acct], nil
}
