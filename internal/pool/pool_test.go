// Copyright (C) 2024 Creditor Corp. Group.
// See LICENSE for copying information.

package pool_test

import (
	"math/big"
	"testing"

	"github.com/stretchr/testify/require"

	"swapd/internal/pool"
	"swapd/internal/token"
)

func newState(t *testing.T) *pool.State {
	t.Helper()
	return pool.NewState(big.NewInt(1), 0, [32]byte{}, "addr", token.NewBitcoin(), token.NewNativeChainCoin())
}

func TestPostMintLocksMinimumLiquidity(t *testing.T) {
	s := newState(t)

	liquidity, err := s.PostMint("user", 100_000, 400_000)
	require.NoError(t, err)
	require.EqualValues(t, 199_000, liquidity)
	require.EqualValues(t, pool.MinimumLiquidity, s.Holders[""])
	require.EqualValues(t, 199_000+pool.MinimumLiquidity, s.TotalSupply)
	require.EqualValues(t, 100_000, s.Reserve0)
	require.EqualValues(t, 400_000, s.Reserve1)
}

func TestPreMintRejectsDegenerateAmounts(t *testing.T) {
	s := newState(t)
	require.ErrorIs(t, s.PreMint(1, 1), pool.ErrInsufficientLiquidityMint)
}

func TestGetAmountOutMatchesConstantProductFormula(t *testing.T) {
	s := newState(t)
	s.Reserve0 = 1_000_000
	s.Reserve1 = 2_000_000

	out := s.GetAmountOut(10_000, true)
	require.EqualValues(t, 19_743, out)
}

func TestSwapRequiresExactlyOneNonzeroOutput(t *testing.T) {
	s := newState(t)
	s.Reserve0 = 1_000_000
	s.Reserve1 = 2_000_000

	_, err := s.Swap(10_000, 0, 0, 0)
	require.ErrorIs(t, err, pool.ErrExactlyOneSideMustBeNonzero)

	_, err = s.Swap(10_000, 0, 19_742, 1)
	require.ErrorIs(t, err, pool.ErrExactlyOneSideMustBeNonzero)
}

func TestSwapAppliesConstantProductTrade(t *testing.T) {
	s := newState(t)
	s.Reserve0 = 1_000_000
	s.Reserve1 = 2_000_000

	out := s.GetAmountOut(10_000, true)
	amount0In, amount0Out, amount1In, amount1Out := s.SortTokens(token.NewBitcoin(), 10_000, out)

	result, err := s.Swap(amount0In, amount1In, amount0Out, amount1Out)
	require.NoError(t, err)
	require.Equal(t, token.NewNativeChainCoin(), result.Token)
	require.EqualValues(t, out, result.Amount)
	require.EqualValues(t, 1_010_000, s.Reserve0)
	require.EqualValues(t, 2_000_000-out, s.Reserve1)
}

func TestSwapRejectsInvalidK(t *testing.T) {
	s := newState(t)
	s.Reserve0 = 1_000_000
	s.Reserve1 = 2_000_000

	// Paying out more than the 0.3%-fee-adjusted formula allows for this
	// input must fail the constant-product check.
	_, err := s.Swap(10_000, 0, 19_800, 0)
	require.ErrorIs(t, err, pool.ErrInvalidK)
}

func TestBurnRedeemsProportionalShare(t *testing.T) {
	s := newState(t)

	liquidity, err := s.PostMint("user", 100_000, 400_000)
	require.NoError(t, err)

	result, err := s.Burn("user", "fees", liquidity, 0, 0)
	require.NoError(t, err)
	require.EqualValues(t, 99_500, result.Amount0) // MinimumLiquidity's share stays locked in the pool.
	require.EqualValues(t, 398_000, result.Amount1)
	require.EqualValues(t, pool.MinimumLiquidity, s.TotalSupply)
	require.EqualValues(t, 0, s.Holders["user"])
}

func TestBurnRejectsInsufficientCallerBalance(t *testing.T) {
	s := newState(t)
	_, err := s.PostMint("user", 100_000, 400_000)
	require.NoError(t, err)

	_, err = s.Burn("user", "fees", 1_000_000, 0, 0)
	require.ErrorIs(t, err, pool.ErrNotEnoughLiquidity)
}

func TestBurnEnforcesMinimumAmounts(t *testing.T) {
	s := newState(t)
	liquidity, err := s.PostMint("user", 100_000, 400_000)
	require.NoError(t, err)

	_, err = s.Burn("user", "fees", liquidity, 1_000_000, 0)
	require.ErrorIs(t, err, pool.ErrInsufficientAmountA)

	_, err = s.Burn("user", "fees", liquidity, 0, 1_000_000)
	require.ErrorIs(t, err, pool.ErrInsufficientAmountB)
}

func TestBurnMintsProtocolFeeOnReserveGrowth(t *testing.T) {
	s := newState(t)
	liquidity, err := s.PostMint("user", 100_000, 400_000)
	require.NoError(t, err)

	// Simulate external reserve growth (e.g. a swap's 0.3% retained fee)
	// between mint and burn, which is what makes Burn's mintFee find
	// rootK > rootKLast and credit the protocol's 1/6-of-growth share.
	s.Reserve0 += 10_000
	s.Reserve1 += 40_000

	_, err = s.Burn("user", "fees", liquidity, 0, 0)
	require.NoError(t, err)

	require.Greater(t, s.Holders["fees"], uint64(0))
}

func TestPostMintRejectsKLastOverflow(t *testing.T) {
	s := newState(t)

	// reserve0*reserve1 == 2^64 here, one past the largest value KLast (a
	// uint64) can hold.
	const huge uint64 = 1 << 32
	_, err := s.PostMint("user", huge, huge)
	require.ErrorIs(t, err, pool.ErrReserveOverflow)
}

func TestQuoteAAndQuoteBAreInverse(t *testing.T) {
	s := newState(t)
	s.Reserve0 = 1_000_000
	s.Reserve1 = 2_000_000

	b, err := s.QuoteA(10_000)
	require.NoError(t, err)
	require.EqualValues(t, 20_000, b)

	a, err := s.QuoteB(20_000)
	require.NoError(t, err)
	require.EqualValues(t, 10_000, a)
}
