// Copyright (C) 2024 Creditor Corp. Group.
// See LICENSE for copying information.

// Package account derives deposit-address bundles (C1) from a 32-byte
// subaccount, grounded on spec.md §4.1 and
// original_source/chains/bitcoin/address.rs's account_to_p2pkh_address.
package account

import (
	"context"
	"crypto/sha256"
	"fmt"
	"hash/crc32"

	"swapd/bitcoin/address"
	"swapd/internal/platform"
)

// Account is this service's native (owner, subaccount) account, mirroring the
// platform's own (canister, subaccount) pair.
type Account struct {
	Owner      []byte
	Subaccount [32]byte
}

// AccountIdentifier is the ledger's 32-byte hash of an Account: a 4-byte CRC32
// checksum followed by a 28-byte SHA-224 digest, matching the platform
// ledger's canonical account-identifier construction.
type AccountIdentifier [32]byte

// String renders the identifier as lowercase hex.
func (id AccountIdentifier) String() string {
	return fmt.Sprintf("%x", id[:])
}

var domainSeparator = []byte{0x0A, 'a', 'c', 'c', 'o', 'u', 'n', 't', '-', 'i', 'd'}

// Identifier computes the ledger AccountIdentifier for a.
func Identifier(a Account) AccountIdentifier {
	h := sha256.New224()
	h.Write(domainSeparator)
	h.Write(a.Owner)
	h.Write(a.Subaccount[:])
	digest := h.Sum(nil)

	checksum := crc32.ChecksumIEEE(digest)

	var out AccountIdentifier
	out[0] = byte(checksum >> 24)
	out[1] = byte(checksum >> 16)
	out[2] = byte(checksum >> 8)
	out[3] = byte(checksum)
	copy(out[4:], digest)
	return out
}

// DerivationPath builds the deterministic, injective threshold-ECDSA
// derivation path for an account: owner bytes, then the subaccount, each as
// its own path segment so accounts with different owners never collide
// regardless of owner-byte-length.
func DerivationPath(a Account) platform.DerivationPath {
	return platform.DerivationPath{
		append([]byte(nil), a.Owner...),
		append([]byte(nil), a.Subaccount[:]...),
	}
}

// AddressBundle is the full set of deposit addresses derived from a single
// subaccount (spec.md §4.1/GLOSSARY).
type AddressBundle struct {
	NativeAccount           Account
	LedgerAccountIdentifier AccountIdentifier
	BitcoinAddress          string
	Pubkey                  []byte // SEC1-compressed, derived at Path under the account's key name.
	Path                    platform.DerivationPath
	KeyName                 string
}

// Derive computes the AddressBundle for owner/subaccount under network,
// deriving the P2PKH Bitcoin address through kms at the account's derivation
// path. Callers never own their own deposit account: owner is always this
// service's own identity, with a caller distinguished only by subaccount,
// since the native ledger only authorizes transfers the service itself
// initiates.
func Derive(ctx context.Context, kms platform.ThresholdECDSA, network address.Network, keyName string, owner []byte, subaccount [32]byte) (AddressBundle, error) {
	native := Account{Owner: owner, Subaccount: subaccount}
	path := DerivationPath(native)

	pubkey, err := kms.PublicKey(ctx, path, keyName)
	if err != nil {
		return AddressBundle{}, fmt.Errorf("derive public key: %w", err)
	}

	btcAddr, err := address.FromPublicKey(network, pubkey)
	if err != nil {
		return AddressBundle{}, fmt.Errorf("derive bitcoin address: %w", err)
	}

	return AddressBundle{
		NativeAccount:           native,
		LedgerAccountIdentifier: Identifier(native),
		BitcoinAddress:          btcAddr,
		Pubkey:                  pubkey,
		Path:                    path,
		KeyName:                 keyName,
	}, nil
}
