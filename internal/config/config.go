// Copyright (C) 2024 Creditor Corp. Group.
// See LICENSE for copying information.

package config

import (
	"errors"
	"fmt"
	"log/slog"
	"os"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
)

// ErrInvalidConfig is returned by Validate when a value fails a sanity check.
var ErrInvalidConfig = errors.New("invalid config")

// ErrNotInitialized is returned by accessors that require a value fetched lazily
// at start-up (the cached ECDSA public key) before it has been populated.
var ErrNotInitialized = errors.New("config: not initialized")

// Config holds process configuration loaded from the environment.
type Config struct {
	// BitcoinNetwork selects the p2pkh version byte. The ECDSA key name does
	// not follow it; that comes from KeyName alone.
	BitcoinNetwork string `envconfig:"SWAPD_BITCOIN_NETWORK" default:"testnet"`
	// KeyName is the threshold-ECDSA key identifier used for every derived path.
	KeyName string `envconfig:"SWAPD_KEY_NAME" default:"dfx_test_key"`
	// CommissionReceiver is the account credited by the pool engine's protocol fee.
	CommissionReceiver string `envconfig:"SWAPD_COMMISSION_RECEIVER"`
	// RuneIndexerURL addresses the external rune-indexer collaborator.
	RuneIndexerURL string `envconfig:"SWAPD_RUNE_INDEXER_URL"`
	// BitcoinFacilityURL addresses the external Bitcoin UTXO/broadcast facility.
	BitcoinFacilityURL string `envconfig:"SWAPD_BITCOIN_FACILITY_URL"`

	DataDir  string `envconfig:"SWAPD_DATA_DIR" default:"./data"`
	LogLevel string `envconfig:"SWAPD_LOG_LEVEL" default:"info"`
	LogDir   string `envconfig:"SWAPD_LOG_DIR" default:"./logs"`

	// UseLocalFacilities runs the service against in-memory stand-ins for the
	// Bitcoin facility and rune-indexer collaborators instead of real
	// endpoints, for local development and integration tests. The
	// threshold-ECDSA and ledger stand-ins are used whether or not it is set.
	UseLocalFacilities bool `envconfig:"SWAPD_USE_LOCAL_FACILITIES" default:"false"`

	// ECDSAPublicKey is this service's root threshold-ECDSA public key,
	// cached by the orchestrator's config bootstrap flow on first start-up
	// rather than loaded from the environment (mirrors
	// original_source/state/config.rs's Config.ecdsa_public_key, populated
	// by lib.rs::lazy_ecdsa_setup rather than by init's arguments).
	ECDSAPublicKey []byte `envconfig:"-"`
}

// Load reads configuration from a .env file (if present) then from the
// environment. Real environment variables take precedence over .env values.
func Load() (*Config, error) {
	if _, err := os.Stat(".env"); err == nil {
		if err := godotenv.Load(".env"); err != nil {
			slog.Warn("failed to load .env file", "error", err)
		} else {
			slog.Info("loaded .env file")
		}
	}

	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, fmt.Errorf("process env config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// ECDSAPublicKeyOrErr returns the cached root public key, or ErrNotInitialized
// if the orchestrator's config bootstrap flow has not populated it yet,
// mirroring original_source/state/config.rs::Config::ecdsa_public_key's
// trap-if-unset accessor.
func (c *Config) ECDSAPublicKeyOrErr() ([]byte, error) {
	if len(c.ECDSAPublicKey) == 0 {
		return nil, ErrNotInitialized
	}
	return c.ECDSAPublicKey, nil
}

// Validate checks configuration values for internal consistency.
func (c *Config) Validate() error {
	switch c.BitcoinNetwork {
	case "mainnet", "testnet", "regtest":
	default:
		return fmt.Errorf("%w: bitcoin network must be mainnet, testnet or regtest, got %q", ErrInvalidConfig, c.BitcoinNetwork)
	}
	if !c.UseLocalFacilities {
		if c.RuneIndexerURL == "" {
			return fmt.Errorf("%w: rune indexer URL is required unless using local facilities", ErrInvalidConfig)
		}
		if c.BitcoinFacilityURL == "" {
			return fmt.Errorf("%w: bitcoin facility URL is required unless using local facilities", ErrInvalidConfig)
		}
	}
	return nil
}
