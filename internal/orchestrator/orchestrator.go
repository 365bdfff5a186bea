// Copyright (C) 2024 Creditor Corp. Group.
// See LICENSE for copying information.

// Package orchestrator implements the user-facing flows (C7) and the admin
// reads (C9), wiring the pool engine (C5), the pool registry (C6), the
// transaction composer (C4), the UTXO synchronizer (C3) and the native-chain
// ledger client (C8) together, grounded on
// original_source/canisters/swap_backend/src/lib.rs.
package orchestrator

import (
	"bytes"
	"context"
	"encoding/hex"
	"errors"
	"fmt"
	"math/big"
	"time"

	"github.com/btcsuite/btcd/wire"

	"swapd/bitcoin"
	"swapd/bitcoin/address"
	"swapd/bitcoin/ord/runes"
	"swapd/bitcoin/txbuilder"
	"swapd/internal/account"
	"swapd/internal/config"
	"swapd/internal/ledger"
	"swapd/internal/platform"
	"swapd/internal/pool"
	"swapd/internal/registry"
	"swapd/internal/store"
	"swapd/internal/subaccount"
	"swapd/internal/syncer"
	"swapd/internal/token"
	"swapd/internal/utxo"
)

// ErrSameToken is returned by CreatePair/AddLiquidity/RemoveLiquidity/Swap
// when called with identical tokens on both sides, mirroring
// original_source/lib.rs's same-token traps one-for-one.
var ErrSameToken = errors.New("orchestrator: token pair must be distinct")

// ErrSameSenderReceiver enforces spec.md §9's open question on fee-paid-by-
// sender semantics: when the fee payer differs from the asset owner, the
// sender and receiver of the moved asset must still be distinct addresses.
var ErrSameSenderReceiver = errors.New("orchestrator: sender and receiver must be distinct when fee payer differs from owner")

// ErrUnsupportedToken is returned for a TokenType this orchestrator has no
// transfer mechanism for.
var ErrUnsupportedToken = errors.New("orchestrator: unsupported token type")

// SubmittedTxKind discriminates SubmittedTx, grounded on
// original_source/types.rs::SubmittedTransactionIdType.
type SubmittedTxKind byte

// SubmittedTx variants.
const (
	SubmittedBitcoin SubmittedTxKind = iota
	SubmittedNative
	SubmittedRune
)

// SubmittedTx identifies one transaction this orchestrator submitted, tagged
// by which rail carried it.
type SubmittedTx struct {
	Kind       SubmittedTxKind
	Txid       string // populated for SubmittedBitcoin/SubmittedRune.
	BlockIndex uint64 // populated for SubmittedNative.
}

// PoolInfoQuery is the C9 read model for one registered pool, grounded on
// original_source/state/pool_manager.rs::PoolInfo::into_query.
type PoolInfoQuery struct {
	PoolID           *big.Int
	DepositAddresses account.AddressBundle
	Token0           token.TokenType
	Token1           token.TokenType
	Reserve0         uint64
	Reserve1         uint64
}

// Orchestrator wires C3-C8 into the four user-facing flows plus admin reads.
type Orchestrator struct {
	cfg      *config.Config
	kms      platform.ThresholdECDSA
	facility platform.BitcoinFacility
	network  platform.BitcoinNetwork
	addrNet  address.Network
	composer *txbuilder.Composer
	ledger   ledger.Client
	utxos    *utxo.Manager
	syncer   *syncer.Syncer
	registry *registry.Registry
	store    *store.Store

	// serviceID stands in for this service's own identity, the role the IC
	// canister's own principal plays in original_source: both the owner of
	// every pool's deposit address and a domain-separating input to
	// internal/subaccount.FromPool. There is no real principal outside of
	// that platform, so the configured key name (itself a deploy-time
	// constant unique per network) serves the same purpose here.
	serviceID []byte
}

// New builds an Orchestrator. Callers MUST call Bootstrap once before serving
// any request that reads ECDSAPublicKey, per spec.md §6's "Initialisation
// accepts only the network; the public key is fetched lazily at start-up."
func New(cfg *config.Config, kms platform.ThresholdECDSA, facility platform.BitcoinFacility, indexer platform.RuneIndexer, ledgerClient ledger.Client, utxos *utxo.Manager, reg *registry.Registry, db *store.Store, network platform.BitcoinNetwork) *Orchestrator {
	chain := txbuilder.ChainParams(network)
	return &Orchestrator{
		cfg:       cfg,
		kms:       kms,
		facility:  facility,
		network:   network,
		addrNet:   txbuilder.AddressNetwork(network),
		composer:  txbuilder.New(utxos, kms, facility, network, chain),
		ledger:    ledgerClient,
		utxos:     utxos,
		syncer:    syncer.New(utxos, facility, indexer, network),
		registry:  reg,
		store:     db,
		serviceID: []byte(cfg.KeyName),
	}
}

// ecdsaPublicKeyStoreKey is the MemoryConfig key the cached root public key
// is persisted under.
const ecdsaPublicKeyStoreKey = "ecdsa_public_key"

// Bootstrap performs the C9 config bootstrap flow: deriving and caching this
// service's root threshold-ECDSA public key at the empty derivation path,
// grounded on original_source/lib.rs::lazy_ecdsa_setup. The real canister
// defers this call behind a zero-duration timer solely because its synchronous
// init() entrypoint cannot itself await the management canister; this
// service's main simply awaits Bootstrap once before serving, achieving the
// same "fetched lazily at start-up, not supplied by the caller" effect.
// Per-caller and per-pool deposit addresses are unaffected: deriveCaller and
// derivePool keep deriving their own path through kms.PublicKey directly, the
// same as the original's per-account derive_public_key calls.
func (o *Orchestrator) Bootstrap(ctx context.Context) error {
	var cached []byte
	err := o.store.Get(store.MemoryConfig, ecdsaPublicKeyStoreKey, &cached)
	if err == nil {
		o.cfg.ECDSAPublicKey = cached
		return nil
	}
	if !errors.Is(err, store.ErrNotFound) {
		return fmt.Errorf("read cached ecdsa public key: %w", err)
	}

	pubkey, err := o.kms.PublicKey(ctx, nil, o.cfg.KeyName)
	if err != nil {
		return fmt.Errorf("derive root ecdsa public key: %w", err)
	}

	if err := o.store.Put(store.MemoryConfig, ecdsaPublicKeyStoreKey, pubkey); err != nil {
		return fmt.Errorf("cache ecdsa public key: %w", err)
	}

	o.cfg.ECDSAPublicKey = pubkey
	return nil
}

// ECDSAPublicKey is the C9 admin read exposing the cached root public key,
// the Go analogue of original_source/state/config.rs::Config::ecdsa_public_key.
func (o *Orchestrator) ECDSAPublicKey() ([]byte, error) {
	return o.cfg.ECDSAPublicKeyOrErr()
}

func holderKey(caller []byte) pool.Holder {
	return pool.Holder(fmt.Sprintf("%x", caller))
}

func (o *Orchestrator) commissionHolder() pool.Holder {
	return pool.Holder(o.cfg.CommissionReceiver)
}

// deriveCaller derives caller's deposit-address bundle. Every deposit
// address this service hands out is owned by its own identity and
// discriminated only by the caller's subaccount — callers never own a
// bundle's Account directly, mirroring
// original_source/chains/mod.rs::generate_deposit_addresses, which always
// passes the canister's own id as Account.owner.
func (o *Orchestrator) deriveCaller(ctx context.Context, caller []byte) (account.AddressBundle, error) {
	bundle, err := account.Derive(ctx, o.kms, o.addrNet, o.cfg.KeyName, o.serviceID, subaccount.FromPrincipal(caller))
	if err != nil {
		return account.AddressBundle{}, fmt.Errorf("derive caller address: %w", err)
	}
	return bundle, nil
}

func (o *Orchestrator) derivePool(ctx context.Context, state *pool.State) (account.AddressBundle, error) {
	bundle, err := account.Derive(ctx, o.kms, o.addrNet, o.cfg.KeyName, o.serviceID, state.AllocatedRawSubaccount)
	if err != nil {
		return account.AddressBundle{}, fmt.Errorf("derive pool %s address: %w", state.PoolID, err)
	}
	return bundle, nil
}

// DepositAddresses is the C9/public-API get_deposit_addresses() query.
func (o *Orchestrator) DepositAddresses(ctx context.Context, caller []byte) (account.AddressBundle, error) {
	return o.deriveCaller(ctx, caller)
}

// CreatePair allocates a new pool for (token0, token1), grounded on
// original_source/lib.rs::create_pair.
func (o *Orchestrator) CreatePair(ctx context.Context, token0, token1 token.TokenType) (*big.Int, error) {
	if token0 == token1 {
		return nil, ErrSameToken
	}

	poolID, err := o.registry.NextPoolID()
	if err != nil {
		return nil, fmt.Errorf("allocate pool id: %w", err)
	}

	createdAt := uint64(time.Now().UnixNano())
	subacct := subaccount.FromPool(poolID.Bytes(), createdAt, o.serviceID)

	bundle, err := account.Derive(ctx, o.kms, o.addrNet, o.cfg.KeyName, o.serviceID, subacct)
	if err != nil {
		return nil, fmt.Errorf("derive pool address: %w", err)
	}

	state := pool.NewState(poolID, createdAt, subacct, bundle.BitcoinAddress, token0, token1)
	if err := o.registry.CreatePair(state); err != nil {
		return nil, err
	}
	return poolID, nil
}

// Pools is the C9 pools() query.
func (o *Orchestrator) Pools(ctx context.Context) ([]PoolInfoQuery, error) {
	states, err := o.registry.All()
	if err != nil {
		return nil, err
	}

	queries := make([]PoolInfoQuery, 0, len(states))
	for _, state := range states {
		bundle, err := o.derivePool(ctx, state)
		if err != nil {
			return nil, err
		}
		queries = append(queries, PoolInfoQuery{
			PoolID:           state.PoolID,
			DepositAddresses: bundle,
			Token0:           state.Token0,
			Token1:           state.Token1,
			Reserve0:         state.Reserve0,
			Reserve1:         state.Reserve1,
		})
	}
	return queries, nil
}

// bitcoinRunePair reports whether (a, b) is a Bitcoin/Rune pair in either
// order, returning the rune id and whether a is the Bitcoin side.
func bitcoinRunePair(a, b token.TokenType) (runes.RuneID, bool, bool) {
	if a.Kind == token.Bitcoin && b.Kind == token.Rune {
		return b.RuneID, true, true
	}
	if a.Kind == token.Rune && b.Kind == token.Bitcoin {
		return a.RuneID, false, true
	}
	return runes.RuneID{}, false, false
}

func validateDistinctRoles(feePaidBySender bool, sender, receiver, feePayer account.AddressBundle) error {
	if feePaidBySender && feePayer.BitcoinAddress != sender.BitcoinAddress && sender.BitcoinAddress == receiver.BitcoinAddress {
		return ErrSameSenderReceiver
	}
	return nil
}

func (o *Orchestrator) broadcast(ctx context.Context, tx *wire.MsgTx) error {
	var buf bytes.Buffer
	if err := tx.Serialize(&buf); err != nil {
		return fmt.Errorf("serialize transaction: %w", err)
	}
	if err := o.facility.SendTransaction(ctx, buf.Bytes(), o.network); err != nil {
		return fmt.Errorf("%w: %v", platform.ErrFacilityUnavailable, err)
	}
	return nil
}

func (o *Orchestrator) ensureBitcoinBalance(ctx context.Context, addr string, need uint64) error {
	have, err := o.utxos.BitcoinBalance(addr)
	if err != nil {
		return err
	}
	if have >= need {
		return nil
	}
	if err := o.syncer.Sync(ctx, addr, syncer.BitcoinTarget(need)); err != nil {
		return err
	}
	have, err = o.utxos.BitcoinBalance(addr)
	if err != nil {
		return err
	}
	if have < need {
		return fmt.Errorf("%w: need %d, have %d", bitcoin.ErrInsufficientNativeBalance, need, have)
	}
	return nil
}

func (o *Orchestrator) ensureRuneBalance(ctx context.Context, addr string, ruleID runes.RuneID, need uint64) error {
	target := new(big.Int).SetUint64(need)

	have, err := o.utxos.RuneBalance(addr, ruleID)
	if err != nil {
		return err
	}
	if have.Cmp(target) >= 0 {
		return nil
	}
	if err := o.syncer.Sync(ctx, addr, syncer.RuneTarget(ruleID, target)); err != nil {
		return err
	}
	have, err = o.utxos.RuneBalance(addr, ruleID)
	if err != nil {
		return err
	}
	if have.Cmp(target) < 0 {
		return fmt.Errorf("%w: need %s, have %s", bitcoin.ErrInsufficientRuneBalance, target, have)
	}
	return nil
}

func (o *Orchestrator) ensureLedgerBalance(ctx context.Context, acct account.AccountIdentifier, need uint64) error {
	have, err := o.ledger.Balance(ctx, acct)
	if err != nil {
		return err
	}
	if have < need {
		return fmt.Errorf("%w: need %d, have %d", ledger.ErrInsufficientBalance, need, have)
	}
	return nil
}

func (o *Orchestrator) ensureBalance(ctx context.Context, bundle account.AddressBundle, tok token.TokenType, amount uint64) error {
	switch tok.Kind {
	case token.Bitcoin:
		return o.ensureBitcoinBalance(ctx, bundle.BitcoinAddress, amount)
	case token.Rune:
		return o.ensureRuneBalance(ctx, bundle.BitcoinAddress, tok.RuneID, amount)
	case token.NativeChainCoin, token.WrappedBitcoin:
		return o.ensureLedgerBalance(ctx, bundle.LedgerAccountIdentifier, amount)
	default:
		return fmt.Errorf("%w: %s", ErrUnsupportedToken, tok)
	}
}

// moveToken moves amount of tok from sender to receiver, using feePayer to
// fund the transaction/network fee, and reports the settled transaction.
func (o *Orchestrator) moveToken(ctx context.Context, tok token.TokenType, amount uint64, sender, receiver, feePayer account.AddressBundle, feePaidBySender bool) (SubmittedTx, error) {
	switch tok.Kind {
	case token.Bitcoin:
		if err := validateDistinctRoles(feePaidBySender, sender, receiver, feePayer); err != nil {
			return SubmittedTx{}, err
		}
		if err := o.ensureBitcoinBalance(ctx, sender.BitcoinAddress, amount); err != nil {
			return SubmittedTx{}, err
		}
		tx, err := o.composer.BuildPlainTransfer(ctx, sender, receiver, amount, feePaidBySender)
		if err != nil {
			return SubmittedTx{}, err
		}
		if err := o.broadcast(ctx, tx.Tx); err != nil {
			return SubmittedTx{}, err
		}
		return SubmittedTx{Kind: SubmittedBitcoin, Txid: txbuilder.TxID(tx.Tx)}, nil

	case token.Rune:
		if err := validateDistinctRoles(feePaidBySender, sender, receiver, feePayer); err != nil {
			return SubmittedTx{}, err
		}
		if err := o.ensureRuneBalance(ctx, sender.BitcoinAddress, tok.RuneID, amount); err != nil {
			return SubmittedTx{}, err
		}
		tx, err := o.composer.BuildRuneTransfer(ctx, tok.RuneID, new(big.Int).SetUint64(amount), sender, receiver, feePayer, 0)
		if err != nil {
			return SubmittedTx{}, err
		}
		if err := o.broadcast(ctx, tx.Tx); err != nil {
			return SubmittedTx{}, err
		}
		return SubmittedTx{Kind: SubmittedRune, Txid: txbuilder.TxID(tx.Tx)}, nil

	case token.NativeChainCoin, token.WrappedBitcoin:
		if err := o.ensureLedgerBalance(ctx, sender.LedgerAccountIdentifier, amount); err != nil {
			return SubmittedTx{}, err
		}
		blockIndex, err := o.ledger.Transfer(ctx, sender.NativeAccount.Subaccount, receiver.LedgerAccountIdentifier, amount, feePaidBySender)
		if err != nil {
			return SubmittedTx{}, err
		}
		return SubmittedTx{Kind: SubmittedNative, BlockIndex: blockIndex}, nil

	default:
		return SubmittedTx{}, fmt.Errorf("%w: %s", ErrUnsupportedToken, tok)
	}
}

// movePair moves amount0 of token0 and amount1 of token1 from sender to
// receiver, using sender as its own fee payer on every leg — the shape both
// AddLiquidity and RemoveLiquidity need, in either direction. A Bitcoin/Rune
// pair is merged into a single combined transfer per spec.md §4.4.3.
func (o *Orchestrator) movePair(ctx context.Context, sender, receiver account.AddressBundle, token0, token1 token.TokenType, amount0, amount1 uint64) ([]SubmittedTx, error) {
	if ruleID, token0IsBitcoin, ok := bitcoinRunePair(token0, token1); ok {
		btcAmount, runeAmount := amount0, amount1
		if !token0IsBitcoin {
			btcAmount, runeAmount = amount1, amount0
		}
		if err := o.ensureBitcoinBalance(ctx, sender.BitcoinAddress, btcAmount); err != nil {
			return nil, err
		}
		if err := o.ensureRuneBalance(ctx, sender.BitcoinAddress, ruleID, runeAmount); err != nil {
			return nil, err
		}

		tx, err := o.composer.BuildCombinedTransfer(ctx, ruleID, new(big.Int).SetUint64(runeAmount), btcAmount, txbuilder.CombinedParties{
			RuneSender:   sender,
			RuneReceiver: receiver,
			BTCSender:    sender,
			BTCReceiver:  receiver,
			FeePayer:     sender,
		}, 0)
		if err != nil {
			return nil, err
		}
		if err := o.broadcast(ctx, tx.Tx); err != nil {
			return nil, err
		}
		return []SubmittedTx{{Kind: SubmittedBitcoin, Txid: txbuilder.TxID(tx.Tx)}}, nil
	}

	tx0, err := o.moveToken(ctx, token0, amount0, sender, receiver, sender, true)
	if err != nil {
		return nil, err
	}
	tx1, err := o.moveToken(ctx, token1, amount1, sender, receiver, sender, true)
	if err != nil {
		return nil, err
	}
	return []SubmittedTx{tx0, tx1}, nil
}

// AddLiquidity implements the Uniswap-v2 optimal-amount deposit flow,
// grounded on original_source/lib.rs::add_liquidity. The pool engine is
// reserved (PreMint) before any transfer is submitted, per spec.md §4.7's
// ordering rule.
func (o *Orchestrator) AddLiquidity(ctx context.Context, caller []byte, token0, token1 token.TokenType, amount0Desired, amount1Desired, amount0Min, amount1Min uint64) (uint64, []SubmittedTx, error) {
	if token0 == token1 {
		return 0, nil, ErrSameToken
	}

	poolID, err := o.registry.PoolIDByTokens(token0, token1)
	if err != nil {
		return 0, nil, err
	}
	state, err := o.registry.Get(poolID)
	if err != nil {
		return 0, nil, err
	}

	if token0 != state.Token0 {
		token0, token1 = token1, token0
		amount0Desired, amount1Desired = amount1Desired, amount0Desired
		amount0Min, amount1Min = amount1Min, amount0Min
	}

	var amount0, amount1 uint64
	switch {
	case state.IsReserveEmpty():
		amount0, amount1 = amount0Desired, amount1Desired
	default:
		amount1Optimal, err := state.QuoteA(amount0Desired)
		if err != nil {
			return 0, nil, err
		}
		if amount1Optimal <= amount1Desired {
			if amount1Optimal < amount1Min {
				return 0, nil, pool.ErrInsufficientAmountB
			}
			amount0, amount1 = amount0Desired, amount1Optimal
		} else {
			amount0Optimal, err := state.QuoteB(amount1Desired)
			if err != nil {
				return 0, nil, err
			}
			if amount0Optimal > amount0Desired {
				return 0, nil, pool.ErrInsufficientInputAmount
			}
			if amount0Optimal < amount0Min {
				return 0, nil, pool.ErrInsufficientAmountA
			}
			amount0, amount1 = amount0Optimal, amount1Desired
		}
	}

	if err := state.PreMint(amount0, amount1); err != nil {
		return 0, nil, err
	}

	callerBundle, err := o.deriveCaller(ctx, caller)
	if err != nil {
		return 0, nil, err
	}
	poolBundle, err := o.derivePool(ctx, state)
	if err != nil {
		return 0, nil, err
	}

	txs, err := o.movePair(ctx, callerBundle, poolBundle, token0, token1, amount0, amount1)
	if err != nil {
		return 0, nil, err
	}

	liquidity, err := state.PostMint(holderKey(caller), amount0, amount1)
	if err != nil {
		return 0, nil, err
	}
	if err := o.registry.Save(state); err != nil {
		return 0, nil, err
	}

	return liquidity, txs, nil
}

// RemoveLiquidity burns liquidity and pays out the caller's share of both
// reserves. The engine burns first, then payouts are submitted, per
// spec.md §4.7's ordering rule.
func (o *Orchestrator) RemoveLiquidity(ctx context.Context, caller []byte, token0, token1 token.TokenType, liquidity, amount0Min, amount1Min uint64) ([]SubmittedTx, uint64, uint64, error) {
	if token0 == token1 {
		return nil, 0, 0, ErrSameToken
	}

	poolID, err := o.registry.PoolIDByTokens(token0, token1)
	if err != nil {
		return nil, 0, 0, err
	}
	state, err := o.registry.Get(poolID)
	if err != nil {
		return nil, 0, 0, err
	}

	if token0 != state.Token0 {
		amount0Min, amount1Min = amount1Min, amount0Min
	}

	result, err := state.Burn(holderKey(caller), o.commissionHolder(), liquidity, amount0Min, amount1Min)
	if err != nil {
		return nil, 0, 0, err
	}
	if err := o.registry.Save(state); err != nil {
		return nil, 0, 0, err
	}

	callerBundle, err := o.deriveCaller(ctx, caller)
	if err != nil {
		return nil, 0, 0, err
	}
	poolBundle, err := o.derivePool(ctx, state)
	if err != nil {
		return nil, 0, 0, err
	}

	txs, err := o.movePair(ctx, poolBundle, callerBundle, result.Token0, result.Token1, result.Amount0, result.Amount1)
	if err != nil {
		return nil, 0, 0, err
	}

	return txs, result.Amount0, result.Amount1, nil
}

// Swap executes a constant-product trade and pays out the received token,
// grounded on original_source/lib.rs::swap. The engine is mutated before the
// payout transfer is submitted, per spec.md §4.7's ordering rule.
func (o *Orchestrator) Swap(ctx context.Context, caller []byte, tokenIn, tokenOut token.TokenType, amountIn, amountOutMin uint64) (uint64, []SubmittedTx, error) {
	if tokenIn == tokenOut {
		return 0, nil, ErrSameToken
	}

	poolID, err := o.registry.PoolIDByTokens(tokenIn, tokenOut)
	if err != nil {
		return 0, nil, err
	}
	state, err := o.registry.Get(poolID)
	if err != nil {
		return 0, nil, err
	}

	callerBundle, err := o.deriveCaller(ctx, caller)
	if err != nil {
		return 0, nil, err
	}
	poolBundle, err := o.derivePool(ctx, state)
	if err != nil {
		return 0, nil, err
	}

	if err := o.ensureBalance(ctx, callerBundle, tokenIn, amountIn); err != nil {
		return 0, nil, err
	}

	amountOut := state.GetAmountOut(amountIn, tokenIn == state.Token0)
	if amountOut < amountOutMin {
		return 0, nil, pool.ErrInsufficientOutputAmount
	}

	amount0In, amount0Out, amount1In, amount1Out := state.SortTokens(tokenIn, amountIn, amountOut)
	result, err := state.Swap(amount0In, amount1In, amount0Out, amount1Out)
	if err != nil {
		return 0, nil, err
	}
	if err := o.registry.Save(state); err != nil {
		return 0, nil, err
	}

	if err := o.ensureBalance(ctx, poolBundle, result.Token, result.Amount); err != nil {
		return 0, nil, err
	}

	if ruleID, tokenInIsBitcoin, ok := bitcoinRunePair(tokenIn, tokenOut); ok {
		parties := txbuilder.CombinedParties{FeePayer: callerBundle}
		var runeAmount, btcAmount uint64
		if tokenInIsBitcoin {
			parties.BTCSender, parties.BTCReceiver = callerBundle, poolBundle
			parties.RuneSender, parties.RuneReceiver = poolBundle, callerBundle
			btcAmount, runeAmount = amountIn, result.Amount
		} else {
			parties.RuneSender, parties.RuneReceiver = callerBundle, poolBundle
			parties.BTCSender, parties.BTCReceiver = poolBundle, callerBundle
			runeAmount, btcAmount = amountIn, result.Amount
		}

		tx, err := o.composer.BuildCombinedTransfer(ctx, ruleID, new(big.Int).SetUint64(runeAmount), btcAmount, parties, 0)
		if err != nil {
			return 0, nil, err
		}
		if err := o.broadcast(ctx, tx.Tx); err != nil {
			return 0, nil, err
		}
		return result.Amount, []SubmittedTx{{Kind: SubmittedBitcoin, Txid: txbuilder.TxID(tx.Tx)}}, nil
	}

	inTx, err := o.moveToken(ctx, tokenIn, amountIn, callerBundle, poolBundle, callerBundle, true)
	if err != nil {
		return 0, nil, err
	}
	outTx, err := o.moveToken(ctx, result.Token, result.Amount, poolBundle, callerBundle, poolBundle, true)
	if err != nil {
		return 0, nil, err
	}
	return result.Amount, []SubmittedTx{inTx, outTx}, nil
}

func decodeAccountIdentifier(s string) (account.AccountIdentifier, error) {
	raw, err := hex.DecodeString(s)
	if err != nil {
		return account.AccountIdentifier{}, fmt.Errorf("decode account identifier %q: %w", s, err)
	}
	if len(raw) != 32 {
		return account.AccountIdentifier{}, fmt.Errorf("decode account identifier %q: want 32 bytes, got %d", s, len(raw))
	}
	var id account.AccountIdentifier
	copy(id[:], raw)
	return id, nil
}

// Withdraw moves a caller-owned balance off this service entirely, completing
// original_source/lib.rs::withdraw's `todo!()` per SPEC_FULL.md §4.7. The
// withdrawing caller always pays their own network fee (paid_by_sender=true);
// there is no pool-side counterparty to subsidize it. to is a bitcoin address
// for Bitcoin/Rune, or a hex-encoded ledger account identifier for
// NativeChainCoin/WrappedBitcoin.
func (o *Orchestrator) Withdraw(ctx context.Context, caller []byte, tok token.TokenType, amount uint64, to string) (SubmittedTx, error) {
	callerBundle, err := o.deriveCaller(ctx, caller)
	if err != nil {
		return SubmittedTx{}, err
	}

	switch tok.Kind {
	case token.Bitcoin:
		if err := o.ensureBitcoinBalance(ctx, callerBundle.BitcoinAddress, amount); err != nil {
			return SubmittedTx{}, err
		}
		receiver := account.AddressBundle{BitcoinAddress: to}
		tx, err := o.composer.BuildPlainTransfer(ctx, callerBundle, receiver, amount, true)
		if err != nil {
			return SubmittedTx{}, err
		}
		if err := o.broadcast(ctx, tx.Tx); err != nil {
			return SubmittedTx{}, err
		}
		return SubmittedTx{Kind: SubmittedBitcoin, Txid: txbuilder.TxID(tx.Tx)}, nil

	case token.Rune:
		if err := o.ensureRuneBalance(ctx, callerBundle.BitcoinAddress, tok.RuneID, amount); err != nil {
			return SubmittedTx{}, err
		}
		receiver := account.AddressBundle{BitcoinAddress: to}
		tx, err := o.composer.BuildRuneTransfer(ctx, tok.RuneID, new(big.Int).SetUint64(amount), callerBundle, receiver, callerBundle, 0)
		if err != nil {
			return SubmittedTx{}, err
		}
		if err := o.broadcast(ctx, tx.Tx); err != nil {
			return SubmittedTx{}, err
		}
		return SubmittedTx{Kind: SubmittedRune, Txid: txbuilder.TxID(tx.Tx)}, nil

	case token.NativeChainCoin, token.WrappedBitcoin:
		destination, err := decodeAccountIdentifier(to)
		if err != nil {
			return SubmittedTx{}, err
		}
		if err := o.ensureLedgerBalance(ctx, callerBundle.LedgerAccountIdentifier, amount); err != nil {
			return SubmittedTx{}, err
		}
		blockIndex, err := o.ledger.Transfer(ctx, callerBundle.NativeAccount.Subaccount, destination, amount, true)
		if err != nil {
			return SubmittedTx{}, err
		}
		return SubmittedTx{Kind: SubmittedNative, BlockIndex: blockIndex}, nil

	default:
		return SubmittedTx{}, fmt.Errorf("%w: %s", ErrUnsupportedToken, tok)
	}
}
