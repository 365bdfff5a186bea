// Copyright (C) 2024 Creditor Corp. Group.
// See LICENSE for copying information.

// Package subaccount derives the 32-byte subaccount tags that seed every
// deposit-address derivation (C1), grounded on spec.md §4.1.
package subaccount

import (
	"encoding/binary"

	"golang.org/x/crypto/sha3"
)

// FromPrincipal derives a subaccount from a caller's raw identity bytes:
// SHA3-256(identity).
func FromPrincipal(identity []byte) [32]byte {
	return sha3.Sum256(identity)
}

// FromPool derives a subaccount for a pool's custody address. Byte order is
// load-bearing: big-endian pool id, then big-endian creation time, then the
// raw service identity bytes, hashed with SHA3-256. Swapping this order
// corrupts every pool's custody derivation. poolIDBigEndian is the pool id
// already serialized to its big-endian byte form by the caller, since the
// pool registry carries the id as an unbounded *big.Int rather than a fixed
// width integer.
func FromPool(poolIDBigEndian []byte, createdAt uint64, serviceID []byte) [32]byte {
	buf := make([]byte, 0, len(poolIDBigEndian)+8+len(serviceID))
	buf = append(buf, poolIDBigEndian...)

	var createdAtBytes [8]byte
	binary.BigEndian.PutUint64(createdAtBytes[:], createdAt)
	buf = append(buf, createdAtBytes[:]...)

	buf = append(buf, serviceID...)

	return sha3.Sum256(buf)
}
