// Copyright (C) 2024 Creditor Corp. Group.
// See LICENSE for copying information.

// Package txbuilder implements the transaction composer (C4): the three
// transaction shapes of spec.md §4.4 built around a shared fee-convergence
// loop, grounded on original_source/chains/btc/transaction.rs,
// chains/btc/runestone/transfer.rs and chains/btc/transaction/combined.rs.
package txbuilder

import (
	"bytes"
	"context"
	"crypto/sha256"
	"errors"
	"fmt"

	"github.com/btcsuite/btcd/btcutil"
	"github.com/btcsuite/btcd/chaincfg"
	"github.com/btcsuite/btcd/chaincfg/chainhash"
	"github.com/btcsuite/btcd/txscript"
	"github.com/btcsuite/btcd/wire"

	"swapd/bitcoin/address"
	"swapd/bitcoin/signer"
	"swapd/internal/account"
	"swapd/internal/platform"
	"swapd/internal/reverse"
	"swapd/internal/utxo"
)

// TxVersion is the consensus version every transaction this service builds
// declares, per spec.md §4.4.1.
const TxVersion int32 = 2

// DustThreshold is the minimum change amount worth its own output.
const DustThreshold uint64 = 1000

// DefaultPostage is the default satoshi value attached to rune-carrying
// outputs so they remain spendable, per spec.md §4.4.2.
const DefaultPostage uint64 = 10000

// FallbackFeeRateMillisatPerVByte is used when the facility reports no fee
// samples (spec.md §6: "if empty, fall back to 2000", i.e. 2 sat/vbyte).
const FallbackFeeRateMillisatPerVByte uint64 = 2000

// maxConvergenceIterations bounds the fee-convergence loop against
// pathological oscillation, per spec.md §4.4's note to bound by UTXO count;
// this is comfortably above any wallet this service plausibly manages per call.
const maxConvergenceIterations = 32

// ErrFeeConvergenceFailed is returned if the loop exceeds maxConvergenceIterations.
var ErrFeeConvergenceFailed = errors.New("txbuilder: fee did not converge")

// Composer builds and fee-converges the three transaction shapes of C4.
type Composer struct {
	utxos    *utxo.Manager
	kms      platform.ThresholdECDSA
	facility platform.BitcoinFacility
	network  platform.BitcoinNetwork
	chain    *chaincfg.Params
}

// New builds a Composer.
func New(utxos *utxo.Manager, kms platform.ThresholdECDSA, facility platform.BitcoinFacility, network platform.BitcoinNetwork, chain *chaincfg.Params) *Composer {
	return &Composer{utxos: utxos, kms: kms, facility: facility, network: network, chain: chain}
}

// feeRate returns the facility's median fee-rate sample (millisats/vbyte),
// falling back to FallbackFeeRateMillisatPerVByte if the facility reports none.
func (c *Composer) feeRate(ctx context.Context) (uint64, error) {
	percentiles, err := c.facility.FeePercentiles(ctx, c.network)
	if err != nil {
		return 0, fmt.Errorf("fetch fee percentiles: %w", err)
	}
	if len(percentiles) == 0 {
		return FallbackFeeRateMillisatPerVByte, nil
	}
	return percentiles[len(percentiles)/2], nil
}

// Draft is one fee-convergence iteration's candidate transaction, plus the
// bookkeeping needed to sign it for real and to roll back its UTXO selection.
type Draft struct {
	Tx          *wire.MsgTx
	Selection   *Selection
	InputSigner []account.AddressBundle
	InputScript [][]byte
	InputValue  []int64
}

// buildFunc constructs one fee-convergence iteration's Draft for a candidate
// total fee. It MUST leave its own selected UTXOs inside the returned
// Draft.Selection on success, and MUST have returned them to C2 itself
// before returning a non-nil error.
type buildFunc func(totalFee uint64) (*Draft, error)

// converge runs the fee-convergence loop of spec.md §4.4: build, mock-sign,
// measure vsize, and repeat with the recomputed fee until it stabilizes.
// Each non-terminal iteration returns its selection to C2 before the next.
func (c *Composer) converge(build buildFunc, feeRateMillisatPerVByte uint64) (*Draft, uint64, error) {
	var totalFee uint64

	for i := 0; i < maxConvergenceIterations; i++ {
		draft, err := build(totalFee)
		if err != nil {
			return nil, 0, err
		}

		vsize, err := mockSizeEstimate(draft)
		if err != nil {
			draft.Selection.Return()
			return nil, 0, err
		}

		newFee := (vsize * feeRateMillisatPerVByte) / 1000
		if newFee == totalFee {
			return draft, totalFee, nil
		}

		if err := draft.Selection.Return(); err != nil {
			return nil, 0, err
		}
		totalFee = newFee
	}

	return nil, 0, ErrFeeConvergenceFailed
}

// mockSizeEstimate mock-signs a copy of draft's transaction and returns its
// vsize. Every input here is legacy P2PKH (no witness data), so vsize equals
// the plain serialized size.
func mockSizeEstimate(draft *Draft) (uint64, error) {
	mock := draft.Tx.Copy()
	for idx := range mock.TxIn {
		if err := signer.MockSign(mock, idx, draft.InputSigner[idx].Pubkey); err != nil {
			return 0, fmt.Errorf("mock-sign input %d: %w", idx, err)
		}
	}
	return uint64(mock.SerializeSize()), nil
}

// signDraft signs every input of draft for real, via the threshold-ECDSA
// facility, per spec.md §4.4.5.
func signDraft(ctx context.Context, kms platform.ThresholdECDSA, draft *Draft) error {
	for idx := range draft.Tx.TxIn {
		draft.Tx.TxIn[idx].Sequence = signer.SequenceMax
		in := signer.Input{
			PrevOutScript: draft.InputScript[idx],
			PrevOutValue:  draft.InputValue[idx],
			Pubkey:        draft.InputSigner[idx].Pubkey,
			Path:          draft.InputSigner[idx].Path,
			KeyName:       draft.InputSigner[idx].KeyName,
		}
		if err := signer.Sign(ctx, kms, draft.Tx, idx, in); err != nil {
			return fmt.Errorf("sign input %d: %w", idx, err)
		}
	}
	return nil
}

// addInput appends a P2PKH input spending from signer's address and records
// its signing metadata at the matching index.
func addInput(draft *Draft, outpointHash [32]byte, vout uint32, value uint64, signerBundle account.AddressBundle, chain *chaincfg.Params) error {
	hash, err := chainhash.NewHash(outpointHash[:])
	if err != nil {
		return fmt.Errorf("parse outpoint hash: %w", err)
	}

	draft.Tx.AddTxIn(wire.NewTxIn(wire.NewOutPoint(hash, vout), nil, nil))

	script, err := payToAddrScript(signerBundle.BitcoinAddress, chain)
	if err != nil {
		return err
	}

	draft.InputSigner = append(draft.InputSigner, signerBundle)
	draft.InputScript = append(draft.InputScript, script)
	draft.InputValue = append(draft.InputValue, int64(value))
	return nil
}

// payToAddrScript decodes addr and returns its scriptPubKey.
func payToAddrScript(addr string, chain *chaincfg.Params) ([]byte, error) {
	decoded, err := btcutil.DecodeAddress(addr, chain)
	if err != nil {
		return nil, fmt.Errorf("decode address %q: %w", addr, err)
	}
	return txscript.PayToAddrScript(decoded)
}

// TxID computes tx's display-order txid: double-SHA256 of the serialized
// transaction, byte-reversed into the conventional big-endian hex form.
func TxID(tx *wire.MsgTx) string {
	var buf bytes.Buffer
	if err := tx.Serialize(&buf); err != nil {
		return ""
	}
	first := sha256.Sum256(buf.Bytes())
	second := sha256.Sum256(first[:])
	return fmt.Sprintf("%x", reverse.Bytes(second[:]))
}

// AddressNetwork maps a platform.BitcoinNetwork to the bitcoin/address Network
// used for P2PKH address derivation and version-byte selection.
func AddressNetwork(network platform.BitcoinNetwork) address.Network {
	switch network {
	case platform.BitcoinMainnet:
		return address.Mainnet
	case platform.BitcoinRegtest:
		return address.Regtest
	default:
		return address.Testnet
	}
}

// ChainParams maps a platform.BitcoinNetwork to the matching btcd chain
// parameters, for constructing a Composer.
func ChainParams(network platform.BitcoinNetwork) *chaincfg.Params {
	return address.Params(AddressNetwork(network))
}
