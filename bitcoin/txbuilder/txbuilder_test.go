// Copyright (C) 2024 Creditor Corp. Group.
// See LICENSE for copying information.

package txbuilder_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"swapd/bitcoin/txbuilder"
	"swapd/internal/account"
	"swapd/internal/platform"
	"swapd/internal/platform/localchain"
	"swapd/internal/platform/localkms"
	"swapd/internal/store"
	"swapd/internal/utxo"
)

// harness wires a Composer against a temp-dir utxo.Manager and a
// deterministic localkms/localchain pair, mirroring
// internal/orchestrator/orchestrator_test.go's harness shape.
type harness struct {
	composer *txbuilder.Composer
	utxos    *utxo.Manager
	facility *localchain.Bitcoin
}

func newHarness(t *testing.T) *harness {
	t.Helper()

	db, err := store.Open(t.TempDir())
	require.NoError(t, err)
	t.Cleanup(func() { require.NoError(t, db.Close()) })

	utxos := utxo.New(db)
	kms := localkms.New([]byte("root-seed"))
	facility := localchain.NewBitcoin()
	network := platform.BitcoinRegtest
	chain := txbuilder.ChainParams(network)

	return &harness{
		composer: txbuilder.New(utxos, kms, facility, network, chain),
		utxos:    utxos,
		facility: facility,
	}
}

// party derives a deterministic address bundle for a test role, discriminated
// by subaccount so each party's address differs.
func (h *harness) party(t *testing.T, marker byte) account.AddressBundle {
	t.Helper()

	kms := localkms.New([]byte("root-seed"))
	var subacct [32]byte
	subacct[0] = marker

	bundle, err := account.Derive(context.Background(), kms, txbuilder.AddressNetwork(platform.BitcoinRegtest), "test_key", []byte("service"), subacct)
	require.NoError(t, err)
	return bundle
}
