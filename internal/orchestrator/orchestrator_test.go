// Copyright (C) 2024 Creditor Corp. Group.
// See LICENSE for copying information.

package orchestrator_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"swapd/internal/account"
	"swapd/internal/config"
	"swapd/internal/ledger/localledger"
	"swapd/internal/orchestrator"
	"swapd/internal/platform"
	"swapd/internal/platform/localchain"
	"swapd/internal/platform/localkms"
	"swapd/internal/registry"
	"swapd/internal/store"
	"swapd/internal/token"
	"swapd/internal/utxo"
)

type harness struct {
	orch    *orchestrator.Orchestrator
	bitcoin *localchain.Bitcoin
	ledger  *localledger.Ledger
}

func newHarness(t *testing.T) *harness {
	t.Helper()

	db, err := store.Open(t.TempDir())
	require.NoError(t, err)
	t.Cleanup(func() { require.NoError(t, db.Close()) })

	cfg := &config.Config{
		BitcoinNetwork:     "regtest",
		KeyName:            "test_key",
		CommissionReceiver: "fees",
		UseLocalFacilities: true,
	}

	kms := localkms.New([]byte("root-seed"))
	bitcoinFacility := localchain.NewBitcoin()
	indexer := localchain.NewRuneIndexer()
	ledgerClient := localledger.New([]byte(cfg.KeyName))
	utxos := utxo.New(db)
	reg := registry.New(db)

	orch := orchestrator.New(cfg, kms, bitcoinFacility, indexer, ledgerClient, utxos, reg, db, platform.BitcoinRegtest)
	require.NoError(t, orch.Bootstrap(context.Background()))

	return &harness{orch: orch, bitcoin: bitcoinFacility, ledger: ledgerClient}
}

func seedBitcoin(h *harness, addr string, value uint64, marker byte) {
	h.bitcoin.Seed(addr, platform.UTXO{
		Outpoint: platform.Outpoint{TxHash: [32]byte{marker}, Vout: 0},
		Value:    value,
	})
}

func TestBootstrapCachesRootPublicKey(t *testing.T) {
	h := newHarness(t)

	pubkey, err := h.orch.ECDSAPublicKey()
	require.NoError(t, err)
	require.NotEmpty(t, pubkey)

	// A second Bootstrap call (e.g. a process restart) must read the cached
	// key back rather than re-deriving, and must agree with the first.
	require.NoError(t, h.orch.Bootstrap(context.Background()))
	again, err := h.orch.ECDSAPublicKey()
	require.NoError(t, err)
	require.Equal(t, pubkey, again)
}

func TestECDSAPublicKeyBeforeBootstrapIsNotInitialized(t *testing.T) {
	cfg := &config.Config{BitcoinNetwork: "regtest", KeyName: "test_key", UseLocalFacilities: true}
	_, err := cfg.ECDSAPublicKeyOrErr()
	require.ErrorIs(t, err, config.ErrNotInitialized)
}

// TestDeriveCallerUsesServiceOwnedAccount pins the fix at the center of this
// test file's existence: every caller-derived deposit address is owned by
// the service's own identity, discriminated only by the caller's subaccount
// — not owned by the caller directly — so a balance credited against
// DepositAddresses's LedgerAccountIdentifier is the same account
// localledger.Transfer later debits from.
func TestDeriveCallerUsesServiceOwnedAccount(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	bundle, err := h.orch.DepositAddresses(ctx, []byte("alice"))
	require.NoError(t, err)

	serviceOwned := account.Identifier(account.Account{
		Owner:      []byte("test_key"),
		Subaccount: bundle.NativeAccount.Subaccount,
	})
	require.Equal(t, serviceOwned, bundle.LedgerAccountIdentifier)
	require.Equal(t, []byte("test_key"), bundle.NativeAccount.Owner)

	other, err := h.orch.DepositAddresses(ctx, []byte("bob"))
	require.NoError(t, err)
	require.NotEqual(t, bundle.BitcoinAddress, other.BitcoinAddress)
	require.NotEqual(t, bundle.LedgerAccountIdentifier, other.LedgerAccountIdentifier)
}

func TestCreatePairRejectsSameToken(t *testing.T) {
	h := newHarness(t)
	_, err := h.orch.CreatePair(context.Background(), token.NewBitcoin(), token.NewBitcoin())
	require.ErrorIs(t, err, orchestrator.ErrSameToken)
}

func TestCreatePairRejectsDuplicatePair(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	_, err := h.orch.CreatePair(ctx, token.NewBitcoin(), token.NewNativeChainCoin())
	require.NoError(t, err)

	_, err = h.orch.CreatePair(ctx, token.NewNativeChainCoin(), token.NewBitcoin())
	require.ErrorIs(t, err, registry.ErrPairExists)
}

// TestFullLifecycle exercises CreatePair, AddLiquidity, Swap, RemoveLiquidity
// and Withdraw end to end for a Bitcoin/NativeChainCoin pool, the one
// combination that never collapses into a combined Bitcoin+Rune transfer, so
// each leg moves as its own independent transaction.
func TestFullLifecycle(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	caller := []byte("alice")

	_, err := h.orch.CreatePair(ctx, token.NewBitcoin(), token.NewNativeChainCoin())
	require.NoError(t, err)

	callerBundle, err := h.orch.DepositAddresses(ctx, caller)
	require.NoError(t, err)

	seedBitcoin(h, callerBundle.BitcoinAddress, 10_000_000, 0x01)
	h.ledger.Credit(callerBundle.LedgerAccountIdentifier, 10_000_000)

	liquidity, txs, err := h.orch.AddLiquidity(ctx, caller, token.NewBitcoin(), token.NewNativeChainCoin(), 100_000, 400_000, 0, 0)
	require.NoError(t, err)
	require.Greater(t, liquidity, uint64(0))
	require.Len(t, txs, 2)

	pools, err := h.orch.Pools(ctx)
	require.NoError(t, err)
	require.Len(t, pools, 1)
	require.EqualValues(t, 100_000, pools[0].Reserve0)
	require.EqualValues(t, 400_000, pools[0].Reserve1)

	poolBundle := pools[0].DepositAddresses
	// The in-memory Bitcoin facility is not a chain simulator: it never
	// learns that the AddLiquidity bitcoin leg settled in the pool's favor,
	// so the pool's own bitcoin balance has to be seeded directly for the
	// later RemoveLiquidity payout to find funds to spend.
	seedBitcoin(h, poolBundle.BitcoinAddress, 100_000, 0x02)

	// Swap bitcoin into NativeChainCoin: the caller still needs spare bitcoin
	// to cover both the amount in and its own network fee.
	seedBitcoin(h, callerBundle.BitcoinAddress, 1_000_000, 0x03)

	amountOut, swapTxs, err := h.orch.Swap(ctx, caller, token.NewBitcoin(), token.NewNativeChainCoin(), 10_000, 0)
	require.NoError(t, err)
	require.Greater(t, amountOut, uint64(0))
	require.Len(t, swapTxs, 2)

	pools, err = h.orch.Pools(ctx)
	require.NoError(t, err)
	require.EqualValues(t, 110_000, pools[0].Reserve0)
	require.EqualValues(t, 400_000-amountOut, pools[0].Reserve1)

	removeTxs, amount0, amount1, err := h.orch.RemoveLiquidity(ctx, caller, token.NewBitcoin(), token.NewNativeChainCoin(), liquidity/2, 0, 0)
	require.NoError(t, err)
	require.Len(t, removeTxs, 2)
	require.Greater(t, amount0, uint64(0))
	require.Greater(t, amount1, uint64(0))

	destination, err := h.orch.DepositAddresses(ctx, []byte("bob"))
	require.NoError(t, err)

	withdrawTx, err := h.orch.Withdraw(ctx, caller, token.NewNativeChainCoin(), 1_000, destination.LedgerAccountIdentifier.String())
	require.NoError(t, err)
	require.Equal(t, orchestrator.SubmittedNative, withdrawTx.Kind)

	balance, err := h.ledger.Balance(ctx, destination.LedgerAccountIdentifier)
	require.NoError(t, err)
	require.EqualValues(t, 1_000, balance)
}

func TestSwapRejectsSameToken(t *testing.T) {
	h := newHarness(t)
	_, _, err := h.orch.Swap(context.Background(), []byte("alice"), token.NewBitcoin(), token.NewBitcoin(), 1, 0)
	require.ErrorIs(t, err, orchestrator.ErrSameToken)
}
