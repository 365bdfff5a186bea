// Copyright (C) 2024 Creditor Corp. Group.
// See LICENSE for copying information.

package txbuilder

import (
	"context"
	"fmt"

	"github.com/btcsuite/btcd/wire"

	"swapd/internal/account"
)

// PlainTransfer is a fee-converged, fully-signed plain bitcoin transfer
// (spec.md §4.4.1): one or more plain UTXOs from sender, a payment output to
// receiver, and a change output back to sender if the leftover exceeds
// DustThreshold.
type PlainTransfer struct {
	Tx  *wire.MsgTx
	Fee uint64
}

// BuildPlainTransfer composes, fee-converges, and signs a plain bitcoin
// transfer of amount satoshi from sender to receiver. When feePaidBySender is
// true, sender's inputs cover amount+fee and receiver gets the full amount;
// otherwise sender's inputs cover amount and the fee is deducted from the
// payment itself.
func (c *Composer) BuildPlainTransfer(ctx context.Context, sender, receiver account.AddressBundle, amount uint64, feePaidBySender bool) (*PlainTransfer, error) {
	feeRate, err := c.feeRate(ctx)
	if err != nil {
		return nil, err
	}

	build := func(fee uint64) (*Draft, error) {
		sel := newSelection(c.utxos)

		target := amount
		if feePaidBySender {
			target += fee
		} else if amount <= fee {
			sel.Return()
			return nil, fmt.Errorf("txbuilder: amount %d does not cover fee %d", amount, fee)
		}

		picked, sum, err := sel.selectPlain(sender.BitcoinAddress, target)
		if err != nil {
			sel.Return()
			return nil, err
		}

		draft := &Draft{Tx: wire.NewMsgTx(TxVersion), Selection: sel}
		for _, u := range picked {
			if err := addInput(draft, u.Outpoint.TxHash, u.Outpoint.Vout, u.Value, sender, c.chain); err != nil {
				sel.Return()
				return nil, err
			}
		}

		payout := amount
		if !feePaidBySender {
			payout = amount - fee
		}
		recvScript, err := payToAddrScript(receiver.BitcoinAddress, c.chain)
		if err != nil {
			sel.Return()
			return nil, err
		}
		draft.Tx.AddTxOut(wire.NewTxOut(int64(payout), recvScript))

		change := sum - target
		if change > DustThreshold {
			changeScript, err := payToAddrScript(sender.BitcoinAddress, c.chain)
			if err != nil {
				sel.Return()
				return nil, err
			}
			draft.Tx.AddTxOut(wire.NewTxOut(int64(change), changeScript))
		}

		return draft, nil
	}

	draft, fee, err := c.converge(build, feeRate)
	if err != nil {
		return nil, err
	}

	if err := signDraft(ctx, c.kms, draft); err != nil {
		return nil, err
	}

	return &PlainTransfer{Tx: draft.Tx, Fee: fee}, nil
}
