// Copyright (C) 2024 Creditor Corp. Group.
// See LICENSE for copying information.

package txbuilder

import (
	"context"
	"math/big"

	"github.com/btcsuite/btcd/wire"

	"swapd/bitcoin"
	"swapd/bitcoin/ord/runes"
	"swapd/internal/account"
)

// CombinedParties names every role a combined Bitcoin+Rune transfer touches,
// per spec.md §4.4.3. Constructed once by the caller and threaded through
// unchanged; the composer never re-derives a role's address mid-build.
type CombinedParties struct {
	RuneSender   account.AddressBundle
	RuneReceiver account.AddressBundle
	BTCSender    account.AddressBundle
	BTCReceiver  account.AddressBundle
	FeePayer     account.AddressBundle
}

// CombinedTransfer is a fee-converged, fully-signed transaction moving both a
// rune amount and a plain bitcoin amount in one transaction (spec.md §4.4.3).
type CombinedTransfer struct {
	Tx  *wire.MsgTx
	Fee uint64
}

// BuildCombinedTransfer composes, fee-converges, and signs a transaction that
// moves runeAmount of ruleID from RuneSender to RuneReceiver, and btcAmount
// satoshi from BTCSender to BTCReceiver, in the same transaction. When
// FeePayer's address equals BTCSender's, their selections are merged into one
// draw covering btcAmount+fee+postage; otherwise FeePayer is drawn from
// separately.
func (c *Composer) BuildCombinedTransfer(ctx context.Context, ruleID runes.RuneID, runeAmount *big.Int, btcAmount uint64, parties CombinedParties, postage uint64) (*CombinedTransfer, error) {
	feeRate, err := c.feeRate(ctx)
	if err != nil {
		return nil, err
	}
	if postage == 0 {
		postage = DefaultPostage
	}
	feePayerIsBTCSender := parties.FeePayer.BitcoinAddress == parties.BTCSender.BitcoinAddress

	build := func(fee uint64) (*Draft, error) {
		sel := newSelection(c.utxos)

		runicPicked, runicSum, err := sel.selectRunic(parties.RuneSender.BitcoinAddress, ruleID, runeAmount)
		if err != nil {
			sel.Return()
			return nil, err
		}

		needChange := runicSum.Cmp(runeAmount) > 0 || len(runicPicked) > 1

		requiredPostage := postage
		if needChange {
			requiredPostage = postage * 2
		}
		var btcInRunicSpent uint64
		for _, u := range runicPicked {
			btcInRunicSpent += u.UTXO.Value
		}
		requiredPostageSat := subClampZero(requiredPostage, btcInRunicSpent)

		var btcPicked, feePicked []bitcoin.UTXO
		var btcSum, feeSum uint64

		if feePayerIsBTCSender {
			picked, sum, err := sel.selectPlain(parties.BTCSender.BitcoinAddress, btcAmount+fee+requiredPostageSat)
			if err != nil {
				sel.Return()
				return nil, err
			}
			btcPicked, btcSum = picked, sum
		} else {
			picked, sum, err := sel.selectPlain(parties.BTCSender.BitcoinAddress, btcAmount)
			if err != nil {
				sel.Return()
				return nil, err
			}
			btcPicked, btcSum = picked, sum

			feePick, fsum, err := sel.selectPlain(parties.FeePayer.BitcoinAddress, fee+requiredPostageSat)
			if err != nil {
				sel.Return()
				return nil, err
			}
			feePicked, feeSum = feePick, fsum
		}

		draft := &Draft{Tx: wire.NewMsgTx(TxVersion), Selection: sel}

		for _, u := range runicPicked {
			if err := addInput(draft, u.UTXO.Outpoint.TxHash, u.UTXO.Outpoint.Vout, u.UTXO.Value, parties.RuneSender, c.chain); err != nil {
				sel.Return()
				return nil, err
			}
		}
		for _, u := range btcPicked {
			if err := addInput(draft, u.Outpoint.TxHash, u.Outpoint.Vout, u.Value, parties.BTCSender, c.chain); err != nil {
				sel.Return()
				return nil, err
			}
		}
		for _, u := range feePicked {
			if err := addInput(draft, u.Outpoint.TxHash, u.Outpoint.Vout, u.Value, parties.FeePayer, c.chain); err != nil {
				sel.Return()
				return nil, err
			}
		}

		if needChange {
			script, err := runes.ChangeEdict(ruleID, runeAmount).IntoScript()
			if err != nil {
				sel.Return()
				return nil, err
			}
			draft.Tx.AddTxOut(wire.NewTxOut(0, script))

			changeScript, err := payToAddrScript(parties.RuneSender.BitcoinAddress, c.chain)
			if err != nil {
				sel.Return()
				return nil, err
			}
			draft.Tx.AddTxOut(wire.NewTxOut(int64(postage), changeScript))

			recvScript, err := payToAddrScript(parties.RuneReceiver.BitcoinAddress, c.chain)
			if err != nil {
				sel.Return()
				return nil, err
			}
			draft.Tx.AddTxOut(wire.NewTxOut(int64(postage), recvScript))
		} else {
			recvScript, err := payToAddrScript(parties.RuneReceiver.BitcoinAddress, c.chain)
			if err != nil {
				sel.Return()
				return nil, err
			}
			draft.Tx.AddTxOut(wire.NewTxOut(int64(postage), recvScript))
		}

		btcRecvScript, err := payToAddrScript(parties.BTCReceiver.BitcoinAddress, c.chain)
		if err != nil {
			sel.Return()
			return nil, err
		}
		draft.Tx.AddTxOut(wire.NewTxOut(int64(btcAmount), btcRecvScript))

		if feePayerIsBTCSender {
			remaining := subClampZero(btcSum, btcAmount+fee+requiredPostageSat)
			if remaining > DustThreshold {
				changeScript, err := payToAddrScript(parties.BTCSender.BitcoinAddress, c.chain)
				if err != nil {
					sel.Return()
					return nil, err
				}
				draft.Tx.AddTxOut(wire.NewTxOut(int64(remaining), changeScript))
			}
		} else {
			btcRemaining := subClampZero(btcSum, btcAmount)
			if btcRemaining > DustThreshold {
				changeScript, err := payToAddrScript(parties.BTCSender.BitcoinAddress, c.chain)
				if err != nil {
					sel.Return()
					return nil, err
				}
				draft.Tx.AddTxOut(wire.NewTxOut(int64(btcRemaining), changeScript))
			}

			feeRemaining := subClampZero(feeSum, fee+requiredPostageSat)
			if feeRemaining > DustThreshold {
				changeScript, err := payToAddrScript(parties.FeePayer.BitcoinAddress, c.chain)
				if err != nil {
					sel.Return()
					return nil, err
				}
				draft.Tx.AddTxOut(wire.NewTxOut(int64(feeRemaining), changeScript))
			}
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

	return &CombinedTransfer{Tx: draft.Tx, Fee: fee}, nil
}
