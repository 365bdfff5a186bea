// Copyright (C) 2024 Creditor Corp. Group.
// See LICENSE for copying information.

// Package address derives legacy P2PKH Bitcoin addresses from threshold-ECDSA
// public keys, grounded on the account_to_p2pkh_address routine of the
// platform this service was modelled on.
package address

import (
	"crypto/sha256"
	"errors"
	"fmt"

	"github.com/btcsuite/btcd/btcutil/base58"
	"github.com/btcsuite/btcd/chaincfg"
	"golang.org/x/crypto/ripemd160" //nolint:staticcheck // required for legacy P2PKH hash160.
)

// Network selects the version byte used by P2PKH address derivation.
type Network byte

// Supported networks, matching spec.md §4.1's version-byte selection.
const (
	Mainnet Network = iota
	Testnet
	Regtest
)

// versionByte returns the P2PKH address version byte for the network.
func versionByte(n Network) (byte, error) {
	switch n {
	case Mainnet:
		return 0x00, nil
	case Testnet, Regtest:
		return 0x6f, nil
	default:
		return 0, fmt.Errorf("unknown network %d", n)
	}
}

// ErrInvalidPublicKey is returned when the supplied SEC1 public key is malformed.
var ErrInvalidPublicKey = errors.New("address: invalid SEC1 public key")

// FromPublicKey derives the base58check-encoded legacy P2PKH address for a
// SEC1-encoded public key on the given network:
//
//	address = base58check(version_byte || RIPEMD160(SHA256(pubkey)))
func FromPublicKey(network Network, pubkey []byte) (string, error) {
	if len(pubkey) == 0 {
		return "", ErrInvalidPublicKey
	}

	version, err := versionByte(network)
	if err != nil {
		return "", err
	}

	hash160 := Hash160(pubkey)

	payload := make([]byte, 0, 1+len(hash160))
	payload = append(payload, version)
	payload = append(payload, hash160...)

	return base58.CheckEncode(payload[1:], payload[0]), nil
}

// Hash160 computes RIPEMD160(SHA256(data)), the digest used to build P2PKH
// scriptPubKeys and addresses.
func Hash160(data []byte) []byte {
	sha := sha256.Sum256(data)
	ripemd := ripemd160.New()
	ripemd.Write(sha[:])
	return ripemd.Sum(nil)
}

// Params returns the btcd chain parameters matching network, for use with
// btcutil/txscript address decoding and script construction.
func Params(network Network) *chaincfg.Params {
	switch network {
	case Mainnet:
		return &chaincfg.MainNetParams
	case Regtest:
		return &chaincfg.RegressionNetParams
	default:
		return &chaincfg.TestNet3Params
	}
}
