// Copyright (C) 2024 Creditor Corp. Group.
// See LICENSE for copying information.

// Package signer computes legacy P2PKH SIGHASH_ALL signatures for
// transaction inputs via the threshold-ECDSA facility, grounded on
// spec.md §4.4.5/§4.4.6 and original_source/txn_handler.rs's
// ecdsa_sign/sec1_to_der sequence.
package signer

import (
	"context"
	"errors"
	"fmt"

	"github.com/btcsuite/btcd/btcec/v2"
	"github.com/btcsuite/btcd/btcec/v2/ecdsa"
	"github.com/btcsuite/btcd/txscript"
	"github.com/btcsuite/btcd/wire"

	"swapd/internal/platform"
)

// SignHashType is the single sighash type this service ever signs with:
// legacy P2PKH transfers sign the whole transaction.
const SignHashType = txscript.SigHashAll

// SequenceMax marks an input as non-RBF, final, per spec.md §4.4.1.
const SequenceMax = wire.MaxTxInSequenceNum

// SequenceRBF marks an input as replaceable, used only for mock-signed
// drafts built to estimate vsize (spec.md §4.4.6).
const SequenceRBF = wire.MaxTxInSequenceNum - 2

// ErrInvalidInputIndex is returned when an input index is out of range.
var ErrInvalidInputIndex = errors.New("signer: invalid input index")

// Input carries everything needed to sign a single P2PKH input.
type Input struct {
	PrevOutScript []byte // the owning address's scriptPubKey.
	PrevOutValue  int64
	Pubkey        []byte // SEC1-compressed public key of the owning address.
	Path          platform.DerivationPath
	KeyName       string
}

// Sign computes the legacy SIGHASH_ALL signature for tx's input at idx and
// installs the P2PKH scriptSig `<sig><pubkey>`. Witness is cleared.
func Sign(ctx context.Context, kms platform.ThresholdECDSA, tx *wire.MsgTx, idx int, in Input) error {
	if idx < 0 || idx >= len(tx.TxIn) {
		return ErrInvalidInputIndex
	}

	sigHash, err := txscript.CalcSignatureHash(in.PrevOutScript, SignHashType, tx, idx)
	if err != nil {
		return fmt.Errorf("compute sighash: %w", err)
	}

	var hash [32]byte
	copy(hash[:], sigHash)

	rs, err := kms.Sign(ctx, hash, in.Path, in.KeyName)
	if err != nil {
		return fmt.Errorf("threshold-ecdsa sign: %w", err)
	}

	der, err := derFromCompact(rs)
	if err != nil {
		return err
	}

	sigScript, err := scriptSig(der, in.Pubkey)
	if err != nil {
		return err
	}

	tx.TxIn[idx].SignatureScript = sigScript
	tx.TxIn[idx].Witness = nil
	return nil
}

// MockSign installs a placeholder scriptSig of the exact size a real
// signature would occupy, so the draft's vsize can be measured without a
// threshold-ECDSA round trip (spec.md §4.4.6). Sequence is set RBF-enabled.
func MockSign(tx *wire.MsgTx, idx int, pubkey []byte) error {
	if idx < 0 || idx >= len(tx.TxIn) {
		return ErrInvalidInputIndex
	}

	der := dummyDER()
	sigScript, err := scriptSig(der, pubkey)
	if err != nil {
		return err
	}

	tx.TxIn[idx].SignatureScript = sigScript
	tx.TxIn[idx].Witness = nil
	tx.TxIn[idx].Sequence = SequenceRBF
	return nil
}

// scriptSig builds the P2PKH unlocking script `<sig+hashtype> <pubkey>`.
func scriptSig(der []byte, pubkey []byte) ([]byte, error) {
	sig := append(append([]byte(nil), der...), byte(SignHashType))

	builder := txscript.NewScriptBuilder()
	builder.AddData(sig)
	builder.AddData(pubkey)
	return builder.Script()
}

// derFromCompact converts a raw (r||s) signature into DER encoding.
func derFromCompact(rs [64]byte) ([]byte, error) {
	var r, s btcec.ModNScalar
	if overflow := r.SetByteSlice(rs[:32]); overflow {
		return nil, errors.New("signer: signature r overflows curve order")
	}
	if overflow := s.SetByteSlice(rs[32:]); overflow {
		return nil, errors.New("signer: signature s overflows curve order")
	}

	return ecdsa.NewSignature(&r, &s).Serialize(), nil
}

// dummyDER returns a fixed-size DER signature (71 bytes, the common case)
// used only to size a mock-signed draft.
func dummyDER() []byte {
	// r has its top bit set (33-byte DER integer), s is a 32-byte low-S
	// value: 2 + (2+33) + (2+32) = 71 bytes.
	var rb, sb [32]byte
	for i := range rb {
		rb[i], sb[i] = 0x01, 0x01
	}
	rb[0] = 0x80

	var r, s btcec.ModNScalar
	r.SetByteSlice(rb[:])
	s.SetByteSlice(sb[:])
	return ecdsa.NewSignature(&r, &s).Serialize()
}
