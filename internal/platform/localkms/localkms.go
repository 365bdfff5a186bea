// Copyright (C) 2024 Creditor Corp. Group.
// See LICENSE for copying information.

// Package localkms is an in-memory stand-in for the platform's threshold-ECDSA
// facility, used by tests and standalone runs where no real key manager is
// configured. It derives deterministic secp256k1 child keys from a root seed
// via HMAC-SHA256 over the path bytes, never persisting key material.
package localkms

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"

	"github.com/btcsuite/btcd/btcec/v2"
	"github.com/btcsuite/btcd/btcec/v2/ecdsa"

	"swapd/internal/platform"
)

// KMS is a deterministic, non-custodial-in-production stand-in for the
// threshold-ECDSA facility.
type KMS struct {
	root []byte
}

// New builds a KMS from a root seed. The seed is test/local material only —
// production deployments point internal/platform.ThresholdECDSA at a real
// threshold-signing endpoint instead of this type.
func New(rootSeed []byte) *KMS {
	return &KMS{root: rootSeed}
}

// childKey derives a deterministic secp256k1 private key for (path, keyName).
func (k *KMS) childKey(path platform.DerivationPath, keyName string) *btcec.PrivateKey {
	mac := hmac.New(sha256.New, k.root)
	mac.Write([]byte(keyName))
	for _, segment := range path {
		mac.Write(segment)
	}
	seed := mac.Sum(nil)

	priv, _ := btcec.PrivKeyFromBytes(seed)
	return priv
}

// PublicKey returns the SEC1-compressed public key for (path, keyName).
func (k *KMS) PublicKey(_ context.Context, path platform.DerivationPath, keyName string) ([]byte, error) {
	priv := k.childKey(path, keyName)
	return priv.PubKey().SerializeCompressed(), nil
}

// Sign returns a 64-byte (r||s) ECDSA signature over messageHash.
func (k *KMS) Sign(_ context.Context, messageHash [32]byte, path platform.DerivationPath, keyName string) ([64]byte, error) {
	priv := k.childKey(path, keyName)
	sig := ecdsa.SignCompact(priv, messageHash[:], false)

	// SignCompact prepends a 1-byte recovery header; strip it to produce the
	// bare (r||s) pair the threshold-ECDSA facility's interface specifies.
	var out [64]byte
	copy(out[:], sig[1:])
	return out, nil
}
