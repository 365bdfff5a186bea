// Copyright (C) 2024 Creditor Corp. Group.
// See LICENSE for copying information.

// Package pool implements the constant-product liquidity engine (C5),
// grounded on original_source/state/pools.rs and state/pool_manager.rs.
package pool

import (
	"errors"
	"math/big"

	"swapd/internal/numbers"
	"swapd/internal/token"
)

// MinimumLiquidity is locked forever against the pool's own holder entry on
// first mint, matching original_source's MINIMUM_LIQUIDITY constant.
const MinimumLiquidity uint64 = 1000

// Errors surfaced to the orchestrator, mirroring the plain-string errors of
// original_source/state/pools.rs one-for-one.
var (
	ErrInsufficientInputAmount    = errors.New("pool: insufficient input amount")
	ErrInsufficientLiquidityMint  = errors.New("pool: insufficient liquidity minted")
	ErrInsufficientLiquidityBurn  = errors.New("pool: insufficient liquidity burned")
	ErrNotEnoughLiquidity         = errors.New("pool: not enough liquidity")
	ErrInsufficientAmountA        = errors.New("pool: insufficient amount a")
	ErrInsufficientAmountB        = errors.New("pool: insufficient amount b")
	ErrInsufficientOutputAmount   = errors.New("pool: insufficient output amount")
	ErrInsufficientPoolLiquidity  = errors.New("pool: insufficient liquidity")
	ErrInvalidK                   = errors.New("pool: invalid k")
	ErrExactlyOneSideMustBeNonzero = errors.New("pool: exactly one input side and one output side must be nonzero")
	ErrReserveOverflow            = errors.New("pool: reserve0*reserve1 overflows k_last")
)

// Holder identifies a liquidity holder (a caller's native account, rendered
// to a stable string key by the orchestrator).
type Holder string

// State is a single pool's constant-product state, grounded on
// original_source/state/pools.rs::PoolDetails.
type State struct {
	PoolID                 *big.Int
	CreatedAt              uint64
	AllocatedRawSubaccount [32]byte
	AllocatedBitcoinAddr   string
	Token0                 token.TokenType
	Token1                 token.TokenType
	KLast                  uint64
	Reserve0               uint64
	Reserve1               uint64
	LastUpdated            uint64
	TotalSupply            uint64
	Holders                map[Holder]uint64
}

// NewState builds an empty pool for the given token pair.
func NewState(poolID *big.Int, createdAt uint64, subaccount [32]byte, bitcoinAddr string, token0, token1 token.TokenType) *State {
	return &State{
		PoolID:                 poolID,
		CreatedAt:              createdAt,
		AllocatedRawSubaccount: subaccount,
		AllocatedBitcoinAddr:   bitcoinAddr,
		Token0:                 token0,
		Token1:                 token1,
		Holders:                make(map[Holder]uint64),
	}
}

func bigU(v uint64) *big.Int { return new(big.Int).SetUint64(v) }

// mustU64 converts a non-negative big.Int known to be bounded by its uint64
// operands back to uint64. Every call site here derives n from a product or
// quotient of two uint64 values, so it always fits.
func mustU64(n *big.Int) uint64 {
	return n.Uint64()
}

// IsReserveEmpty reports whether both reserves are zero.
func (s *State) IsReserveEmpty() bool {
	return s.Reserve0 == 0 && s.Reserve1 == 0
}

// recordKLast widens reserve0*reserve1 through big.Int before storing it,
// per spec.md §9's explicit overflow warning for this exact product —
// original_source/state/pools.rs's native u64 multiplication is the bug
// being fixed here, not a pattern to repeat. Rejects rather than silently
// truncates, matching bitcoin/ord/runes/rune.go's overflow discipline.
func (s *State) recordKLast() error {
	product := new(big.Int).Mul(bigU(s.Reserve0), bigU(s.Reserve1))
	if numbers.IsGreater(product, numbers.MaxUInt64Value) {
		return ErrReserveOverflow
	}
	s.KLast = mustU64(product)
	return nil
}

func (s *State) update(amount0In, amount1In, amount0Out, amount1Out uint64) {
	s.Reserve0 = s.Reserve0 + amount0In - amount0Out
	s.Reserve1 = s.Reserve1 + amount1In - amount1Out
}

// QuoteA returns the reserve1-equivalent of amount0: amount0*reserve1/reserve0.
func (s *State) QuoteA(amount0 uint64) (uint64, error) {
	if amount0 == 0 {
		return 0, ErrInsufficientInputAmount
	}
	product := new(big.Int).Mul(bigU(amount0), bigU(s.Reserve1))
	return mustU64(new(big.Int).Div(product, bigU(s.Reserve0))), nil
}

// QuoteB returns the reserve0-equivalent of amount1: amount1*reserve0/reserve1.
func (s *State) QuoteB(amount1 uint64) (uint64, error) {
	if amount1 == 0 {
		return 0, ErrInsufficientInputAmount
	}
	product := new(big.Int).Mul(bigU(amount1), bigU(s.Reserve0))
	return mustU64(new(big.Int).Div(product, bigU(s.Reserve1))), nil
}

// GetAmountOut quotes the constant-product swap output for amountIn on the
// side selected by token0In: amountIn' = amountIn*997;
// out = amountIn'*rOut / (rIn*1000 + amountIn').
func (s *State) GetAmountOut(amountIn uint64, token0In bool) uint64 {
	rIn, rOut := s.Reserve0, s.Reserve1
	if !token0In {
		rIn, rOut = s.Reserve1, s.Reserve0
	}

	amountInAdjusted := new(big.Int).Mul(bigU(amountIn), big.NewInt(997))
	numerator := new(big.Int).Mul(amountInAdjusted, bigU(rOut))
	denominator := new(big.Int).Add(new(big.Int).Mul(bigU(rIn), big.NewInt(1000)), amountInAdjusted)
	return mustU64(new(big.Int).Div(numerator, denominator))
}

func (s *State) liquidityFor(amount0, amount1 uint64) uint64 {
	if s.TotalSupply == 0 {
		product := new(big.Int).Mul(bigU(amount0), bigU(amount1))
		root := new(big.Int).Sqrt(product)
		if root.Cmp(bigU(MinimumLiquidity)) <= 0 {
			return 0
		}
		return mustU64(new(big.Int).Sub(root, bigU(MinimumLiquidity)))
	}

	val0 := new(big.Int).Div(new(big.Int).Mul(bigU(amount0), bigU(s.TotalSupply)), bigU(s.Reserve0))
	val1 := new(big.Int).Div(new(big.Int).Mul(bigU(amount1), bigU(s.TotalSupply)), bigU(s.Reserve1))
	return mustU64(numbers.Min(val0, val1))
}

// PreMint validates that minting against (amount0, amount1) would yield
// nonzero liquidity, without mutating state.
func (s *State) PreMint(amount0, amount1 uint64) error {
	if s.liquidityFor(amount0, amount1) == 0 {
		return ErrInsufficientLiquidityMint
	}
	return nil
}

func (s *State) mint(to Holder, amount uint64) {
	s.Holders[to] += amount
	s.TotalSupply += amount
}

// mintFee mints the protocol's 1/6-of-growth share (Uniswap-v2 formula) to
// receiver, if reserves have grown since the last recorded k.
func (s *State) mintFee(receiver Holder) {
	if s.KLast == 0 {
		return
	}

	rootK := new(big.Int).Sqrt(new(big.Int).Mul(bigU(s.Reserve0), bigU(s.Reserve1)))
	rootKLast := new(big.Int).Sqrt(bigU(s.KLast))

	if rootK.Cmp(rootKLast) <= 0 {
		return
	}

	numerator := new(big.Int).Mul(bigU(s.TotalSupply), new(big.Int).Sub(rootK, rootKLast))
	denominator := new(big.Int).Add(new(big.Int).Mul(rootK, big.NewInt(5)), rootKLast)
	liquidity := new(big.Int).Div(numerator, denominator)

	if liquidity.Sign() > 0 {
		s.mint(receiver, mustU64(liquidity))
	}
}

// PostMint credits liquidity to receiver for (amount0, amount1), updates
// reserves and k_last, and returns the minted amount.
func (s *State) PostMint(receiver Holder, amount0, amount1 uint64) (uint64, error) {
	var liquidity uint64
	if s.TotalSupply == 0 {
		liquidity = s.liquidityFor(amount0, amount1)
		s.Holders[""] = MinimumLiquidity // pool's own identity locks MinimumLiquidity forever.
		s.TotalSupply = MinimumLiquidity
	} else {
		liquidity = s.liquidityFor(amount0, amount1)
	}

	if liquidity == 0 {
		return 0, ErrInsufficientLiquidityMint
	}

	s.Reserve0 += amount0
	s.Reserve1 += amount1

	s.mint(receiver, liquidity)
	if err := s.recordKLast(); err != nil {
		return 0, err
	}
	return liquidity, nil
}

func (s *State) burn(from Holder, liquidity uint64) {
	s.Holders[from] -= liquidity
	s.TotalSupply -= liquidity
}

// BurnResult is the outcome of a successful Burn: the pool's custody
// subaccount and the amounts owed to the caller.
type BurnResult struct {
	RawSubaccount [32]byte
	Token0        token.TokenType
	Token1        token.TokenType
	Amount0       uint64
	Amount1       uint64
}

// Burn redeems liquidity from caller for its share of both reserves, failing
// the received amounts against amount0Min/amount1Min.
func (s *State) Burn(caller Holder, feeReceiver Holder, liquidity, amount0Min, amount1Min uint64) (BurnResult, error) {
	current := s.Holders[caller]
	if liquidity > current {
		return BurnResult{}, ErrNotEnoughLiquidity
	}

	amount0 := mustU64(new(big.Int).Div(new(big.Int).Mul(bigU(liquidity), bigU(s.Reserve0)), bigU(s.TotalSupply)))
	amount1 := mustU64(new(big.Int).Div(new(big.Int).Mul(bigU(liquidity), bigU(s.Reserve1)), bigU(s.TotalSupply)))

	if amount0 == 0 && amount1 == 0 {
		return BurnResult{}, ErrInsufficientLiquidityBurn
	}
	if amount0 < amount0Min {
		return BurnResult{}, ErrInsufficientAmountA
	}
	if amount1 < amount1Min {
		return BurnResult{}, ErrInsufficientAmountB
	}

	s.mintFee(feeReceiver)
	s.burn(caller, liquidity)
	s.update(0, 0, amount0, amount1)
	if err := s.recordKLast(); err != nil {
		return BurnResult{}, err
	}

	return BurnResult{
		RawSubaccount: s.AllocatedRawSubaccount,
		Token0:        s.Token0,
		Token1:        s.Token1,
		Amount0:       amount0,
		Amount1:       amount1,
	}, nil
}

// SwapResult is the outcome of a successful Swap: which token and how much
// of it was paid out.
type SwapResult struct {
	RawSubaccount [32]byte
	Token         token.TokenType
	Amount        uint64
}

// Swap applies a constant-product trade. Exactly one of (amount0In,
// amount1In) and exactly one of (amount0Out, amount1Out) must be nonzero
// (spec.md §9's correction of the source's ||-based acceptance check — the
// source's `amount0_out == 0 || amount1_out == 0` check accepted the
// degenerate case where both outputs are zero). The K check runs on the
// post-trade balances, reserve + in - out.
func (s *State) Swap(amount0In, amount1In, amount0Out, amount1Out uint64) (SwapResult, error) {
	if (amount0Out == 0) == (amount1Out == 0) {
		return SwapResult{}, ErrExactlyOneSideMustBeNonzero
	}
	if amount0Out >= s.Reserve0 || amount1Out >= s.Reserve1 {
		return SwapResult{}, ErrInsufficientPoolLiquidity
	}
	if amount0In == 0 && amount1In == 0 {
		return SwapResult{}, ErrInsufficientInputAmount
	}
	if amount0In != 0 && amount1In != 0 {
		return SwapResult{}, ErrExactlyOneSideMustBeNonzero
	}

	token0Balance := s.Reserve0 + amount0In - amount0Out
	token1Balance := s.Reserve1 + amount1In - amount1Out

	balance0Adjusted := new(big.Int).Sub(new(big.Int).Mul(bigU(token0Balance), big.NewInt(1000)), new(big.Int).Mul(bigU(amount0In), big.NewInt(3)))
	balance1Adjusted := new(big.Int).Sub(new(big.Int).Mul(bigU(token1Balance), big.NewInt(1000)), new(big.Int).Mul(bigU(amount1In), big.NewInt(3)))

	lhs := new(big.Int).Mul(balance0Adjusted, balance1Adjusted)
	rhs := new(big.Int).Mul(new(big.Int).Mul(bigU(s.Reserve0), bigU(s.Reserve1)), big.NewInt(1_000_000))
	if lhs.Cmp(rhs) < 0 {
		return SwapResult{}, ErrInvalidK
	}

	s.update(amount0In, amount1In, amount0Out, amount1Out)

	result := SwapResult{RawSubaccount: s.AllocatedRawSubaccount}
	if amount0Out > 0 {
		result.Token, result.Amount = s.Token0, amount0Out
	} else {
		result.Token, result.Amount = s.Token1, amount1Out
	}
	return result, nil
}

// SortTokens aligns (tokenIn, amountIn, amountOutMin) with (token0, token1),
// returning (amount0In, amount0Out, amount1In, amount1Out).
func (s *State) SortTokens(tokenIn token.TokenType, amountIn, amountOutMin uint64) (uint64, uint64, uint64, uint64) {
	if tokenIn == s.Token0 {
		return amountIn, 0, 0, amountOutMin
	}
	return 0, amountOutMin, amountIn, 0
}
