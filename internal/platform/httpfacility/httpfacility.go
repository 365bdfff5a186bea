// Copyright (C) 2024 Creditor Corp. Group.
// See LICENSE for copying information.

// Package httpfacility implements the Bitcoin UTXO/broadcast facility and the
// rune indexer (§6) against real HTTP endpoints, grounded on
// Fantasim-hdpay/internal/price.PriceService's request/response shape (a
// timeout-bound http.Client, context-carrying requests, JSON decoding, and
// sentinel-wrapped errors on non-200 responses).
package httpfacility

import (
	"bytes"
	"context"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"math/big"
	"net/http"
	"time"

	"swapd/internal/platform"
)

// RequestTimeout bounds every call this package makes to its backing endpoint.
const RequestTimeout = 15 * time.Second

func networkParam(network platform.BitcoinNetwork) string {
	switch network {
	case platform.BitcoinMainnet:
		return "mainnet"
	case platform.BitcoinRegtest:
		return "regtest"
	default:
		return "testnet"
	}
}

// Bitcoin is a BitcoinFacility backed by a real UTXO-indexing/broadcast
// endpoint, reached over HTTP.
type Bitcoin struct {
	client  *http.Client
	baseURL string
}

// NewBitcoin builds a Bitcoin facility client addressing baseURL.
func NewBitcoin(baseURL string) *Bitcoin {
	return &Bitcoin{client: &http.Client{Timeout: RequestTimeout}, baseURL: baseURL}
}

type utxoResponse struct {
	Txid     string `json:"txid"`
	Vout     uint32 `json:"vout"`
	Value    uint64 `json:"value"`
	Height   uint32 `json:"height"`
	NextPage string `json:"next_page"`
}

// GetUTXOs implements platform.BitcoinFacility.
func (b *Bitcoin) GetUTXOs(ctx context.Context, address string, network platform.BitcoinNetwork, page []byte) (platform.UTXOPage, error) {
	url := fmt.Sprintf("%s/address/%s/utxos?network=%s", b.baseURL, address, networkParam(network))
	if len(page) > 0 {
		url += "&page=" + hex.EncodeToString(page)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return platform.UTXOPage{}, fmt.Errorf("%w: build UTXO request: %v", platform.ErrFacilityUnavailable, err)
	}

	resp, err := b.client.Do(req)
	if err != nil {
		return platform.UTXOPage{}, fmt.Errorf("%w: %v", platform.ErrFacilityUnavailable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return platform.UTXOPage{}, fmt.Errorf("%w: HTTP %d", platform.ErrFacilityUnavailable, resp.StatusCode)
	}

	var raw []utxoResponse
	if err := json.NewDecoder(resp.Body).Decode(&raw); err != nil {
		return platform.UTXOPage{}, fmt.Errorf("%w: decode UTXO page: %v", platform.ErrFacilityUnavailable, err)
	}

	out := platform.UTXOPage{UTXOs: make([]platform.UTXO, 0, len(raw))}
	for _, u := range raw {
		txHash, err := decodeTxid(u.Txid)
		if err != nil {
			return platform.UTXOPage{}, fmt.Errorf("%w: %v", platform.ErrFacilityUnavailable, err)
		}
		out.UTXOs = append(out.UTXOs, platform.UTXO{
			Outpoint: platform.Outpoint{TxHash: txHash, Vout: u.Vout},
			Value:    u.Value,
			Height:   u.Height,
		})
		if u.NextPage != "" {
			out.NextPage, _ = hex.DecodeString(u.NextPage)
		}
	}
	return out, nil
}

func decodeTxid(s string) ([32]byte, error) {
	var out [32]byte
	raw, err := hex.DecodeString(s)
	if err != nil || len(raw) != 32 {
		return out, fmt.Errorf("decode txid %q: %w", s, err)
	}
	copy(out[:], raw)
	return out, nil
}

type sendTransactionRequest struct {
	RawTx string `json:"raw_tx"`
}

// SendTransaction implements platform.BitcoinFacility.
func (b *Bitcoin) SendTransaction(ctx context.Context, raw []byte, network platform.BitcoinNetwork) error {
	url := fmt.Sprintf("%s/tx/send?network=%s", b.baseURL, networkParam(network))

	body, err := json.Marshal(sendTransactionRequest{RawTx: hex.EncodeToString(raw)})
	if err != nil {
		return fmt.Errorf("%w: marshal broadcast body: %v", platform.ErrFacilityUnavailable, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("%w: build broadcast request: %v", platform.ErrFacilityUnavailable, err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := b.client.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %v", platform.ErrFacilityUnavailable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("%w: HTTP %d", platform.ErrFacilityUnavailable, resp.StatusCode)
	}
	return nil
}

type feePercentilesResponse struct {
	Percentiles []uint64 `json:"percentiles"`
}

// FeePercentiles implements platform.BitcoinFacility.
func (b *Bitcoin) FeePercentiles(ctx context.Context, network platform.BitcoinNetwork) ([]uint64, error) {
	url := fmt.Sprintf("%s/fees/percentiles?network=%s", b.baseURL, networkParam(network))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: build fee request: %v", platform.ErrFacilityUnavailable, err)
	}

	resp, err := b.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", platform.ErrFacilityUnavailable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%w: HTTP %d", platform.ErrFacilityUnavailable, resp.StatusCode)
	}

	var out feePercentilesResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, fmt.Errorf("%w: decode fee percentiles: %v", platform.ErrFacilityUnavailable, err)
	}
	return out.Percentiles, nil
}

// RuneIndexer is a platform.RuneIndexer backed by a real rune-indexing
// endpoint, reached over HTTP.
type RuneIndexer struct {
	client  *http.Client
	baseURL string
}

// NewRuneIndexer builds a rune indexer client addressing baseURL.
func NewRuneIndexer(baseURL string) *RuneIndexer {
	return &RuneIndexer{client: &http.Client{Timeout: RequestTimeout}, baseURL: baseURL}
}

type runeBalanceResponse struct {
	RuneIDBlock uint64 `json:"rune_id_block"`
	RuneIDTx    uint32 `json:"rune_id_tx"`
	Balance     string `json:"balance"`
}

// GetRunesByUTXO implements platform.RuneIndexer. A failure here is always
// wrapped in platform.ErrIndexerUnavailable, the soft-failure sentinel
// callers treat as "assume plain bitcoin" rather than aborting.
func (r *RuneIndexer) GetRunesByUTXO(ctx context.Context, txHash [32]byte, vout uint32) ([]platform.RuneBalance, error) {
	url := fmt.Sprintf("%s/outpoint/%s/%d/runes", r.baseURL, hex.EncodeToString(txHash[:]), vout)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: build rune lookup request: %v", platform.ErrIndexerUnavailable, err)
	}

	resp, err := r.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", platform.ErrIndexerUnavailable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%w: HTTP %d", platform.ErrIndexerUnavailable, resp.StatusCode)
	}

	var raw []runeBalanceResponse
	if err := json.NewDecoder(resp.Body).Decode(&raw); err != nil {
		return nil, fmt.Errorf("%w: decode rune balances: %v", platform.ErrIndexerUnavailable, err)
	}

	out := make([]platform.RuneBalance, 0, len(raw))
	for _, b := range raw {
		bal, ok := new(big.Int).SetString(b.Balance, 10)
		if !ok {
			return nil, fmt.Errorf("%w: malformed rune balance %q", platform.ErrIndexerUnavailable, b.Balance)
		}
		out = append(out, platform.RuneBalance{RuneIDBlock: b.RuneIDBlock, RuneIDTx: b.RuneIDTx, Balance: bal})
	}
	return out, nil
}

type heightResponse struct {
	Height    uint32 `json:"height"`
	BlockHash string `json:"block_hash"`
}

// GetHeight implements platform.RuneIndexer.
func (r *RuneIndexer) GetHeight(ctx context.Context) (uint32, string, error) {
	url := fmt.Sprintf("%s/height", r.baseURL)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return 0, "", fmt.Errorf("%w: build height request: %v", platform.ErrIndexerUnavailable, err)
	}

	resp, err := r.client.Do(req)
	if err != nil {
		return 0, "", fmt.Errorf("%w: %v", platform.ErrIndexerUnavailable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return 0, "", fmt.Errorf("%w: HTTP %d", platform.ErrIndexerUnavailable, resp.StatusCode)
	}

	var out heightResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return 0, "", fmt.Errorf("%w: decode height: %v", platform.ErrIndexerUnavailable, err)
	}
	return out.Height, out.BlockHash, nil
}
