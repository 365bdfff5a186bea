// Copyright (C) 2024 Creditor Corp. Group.
// See LICENSE for copying information.

package txbuilder

import (
	"context"
	"math/big"

	"github.com/btcsuite/btcd/wire"

	"swapd/bitcoin/ord/runes"
	"swapd/internal/account"
)

// RuneTransfer is a fee-converged, fully-signed rune transfer (spec.md
// §4.4.2): runic inputs from sender covering amount, an OP_RETURN runestone
// when change is owed back to sender, postage-value outputs, and plain
// bitcoin inputs from feePayer covering the fee plus whatever postage the
// runic inputs didn't already carry.
type RuneTransfer struct {
	Tx  *wire.MsgTx
	Fee uint64
}

// BuildRuneTransfer composes, fee-converges, and signs a transfer of amount
// units of ruleID from sender to receiver. feePayer funds the transaction
// fee and any postage not already carried by the spent runic UTXOs; postage
// defaults to DefaultPostage when zero.
func (c *Composer) BuildRuneTransfer(ctx context.Context, ruleID runes.RuneID, amount *big.Int, sender, receiver, feePayer account.AddressBundle, postage uint64) (*RuneTransfer, error) {
	feeRate, err := c.feeRate(ctx)
	if err != nil {
		return nil, err
	}
	if postage == 0 {
		postage = DefaultPostage
	}

	build := func(fee uint64) (*Draft, error) {
		sel := newSelection(c.utxos)

		runicPicked, runicSum, err := sel.selectRunic(sender.BitcoinAddress, ruleID, amount)
		if err != nil {
			sel.Return()
			return nil, err
		}

		needChange := len(runicPicked) > 1 || runicSum.Cmp(amount) > 0

		requiredPostage := postage
		if needChange {
			requiredPostage = postage * 2
		}
		var btcInRunicSpent uint64
		for _, u := range runicPicked {
			btcInRunicSpent += u.UTXO.Value
		}
		requiredPostageSat := subClampZero(requiredPostage, btcInRunicSpent)

		feePicked, feeSum, err := sel.selectPlain(feePayer.BitcoinAddress, fee+requiredPostageSat)
		if err != nil {
			sel.Return()
			return nil, err
		}

		draft := &Draft{Tx: wire.NewMsgTx(TxVersion), Selection: sel}

		for _, u := range runicPicked {
			if err := addInput(draft, u.UTXO.Outpoint.TxHash, u.UTXO.Outpoint.Vout, u.UTXO.Value, sender, c.chain); err != nil {
				sel.Return()
				return nil, err
			}
		}
		for _, u := range feePicked {
			if err := addInput(draft, u.Outpoint.TxHash, u.Outpoint.Vout, u.Value, feePayer, c.chain); err != nil {
				sel.Return()
				return nil, err
			}
		}

		if needChange {
			script, err := runes.ChangeEdict(ruleID, amount).IntoScript()
			if err != nil {
				sel.Return()
				return nil, err
			}
			draft.Tx.AddTxOut(wire.NewTxOut(0, script))

			changeScript, err := payToAddrScript(sender.BitcoinAddress, c.chain)
			if err != nil {
				sel.Return()
				return nil, err
			}
			draft.Tx.AddTxOut(wire.NewTxOut(int64(postage), changeScript))

			recvScript, err := payToAddrScript(receiver.BitcoinAddress, c.chain)
			if err != nil {
				sel.Return()
				return nil, err
			}
			draft.Tx.AddTxOut(wire.NewTxOut(int64(postage), recvScript))
		} else {
			recvScript, err := payToAddrScript(receiver.BitcoinAddress, c.chain)
			if err != nil {
				sel.Return()
				return nil, err
			}
			draft.Tx.AddTxOut(wire.NewTxOut(int64(postage), recvScript))
		}

		remaining := subClampZero(feeSum, fee+requiredPostageSat)
		if remaining > DustThreshold {
			changeScript, err := payToAddrScript(feePayer.BitcoinAddress, c.chain)
			if err != nil {
				sel.Return()
				return nil, err
			}
			draft.Tx.AddTxOut(wire.NewTxOut(int64(remaining), changeScript))
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

	return &RuneTransfer{Tx: draft.Tx, Fee: fee}, nil
}

// subClampZero returns a-b, or 0 if b >= a: the postage a runic UTXO already
// carries can exceed what this transfer requires it to, per spec.md §4.4.2.
func subClampZero(a, b uint64) uint64 {
	if b >= a {
		return 0
	}
	return a - b
}
