// Copyright (C) 2024 Creditor Corp. Group.
// See LICENSE for copying information.

package subaccount_test

import (
	"testing"

	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/sha3"

	"swapd/internal/subaccount"
)

func TestFromPrincipalMatchesSHA3256(t *testing.T) {
	identity := []byte("alice-principal")
	want := sha3.Sum256(identity)
	require.Equal(t, want, subaccount.FromPrincipal(identity))
}

func TestFromPrincipalIsDeterministicAndInjective(t *testing.T) {
	a := subaccount.FromPrincipal([]byte("alice"))
	b := subaccount.FromPrincipal([]byte("alice"))
	c := subaccount.FromPrincipal([]byte("bob"))

	require.Equal(t, a, b)
	require.NotEqual(t, a, c)
}

func TestFromPoolByteOrderIsLoadBearing(t *testing.T) {
	poolID := []byte{0x00, 0x01}
	serviceID := []byte("service")

	a := subaccount.FromPool(poolID, 100, serviceID)
	b := subaccount.FromPool(poolID, 200, serviceID)
	require.NotEqual(t, a, b, "distinct createdAt must derive a distinct subaccount")

	c := subaccount.FromPool([]byte{0x00, 0x02}, 100, serviceID)
	require.NotEqual(t, a, c, "distinct pool id must derive a distinct subaccount")

	d := subaccount.FromPool(poolID, 100, []byte("other-service"))
	require.NotEqual(t, a, d, "distinct serviceID must derive a distinct subaccount")

	e := subaccount.FromPool(poolID, 100, serviceID)
	require.Equal(t, a, e)
}
