// Copyright (C) 2024 Creditor Corp. Group.
// See LICENSE for copying information.

package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"swapd/internal/config"
	"swapd/internal/ledger/localledger"
	"swapd/internal/logging"
	"swapd/internal/orchestrator"
	"swapd/internal/platform"
	"swapd/internal/platform/httpfacility"
	"swapd/internal/platform/localchain"
	"swapd/internal/platform/localkms"
	"swapd/internal/registry"
	"swapd/internal/store"
	"swapd/internal/utxo"
)

var version = "dev"

func main() {
	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}

	switch os.Args[1] {
	case "serve":
		if err := runServe(); err != nil {
			slog.Error("server error", "error", err)
			os.Exit(1)
		}
	case "migrate-check":
		if err := runMigrateCheck(); err != nil {
			slog.Error("migrate-check error", "error", err)
			os.Exit(1)
		}
	case "version":
		fmt.Printf("swapd %s\n", version)
	default:
		fmt.Fprintf(os.Stderr, "unknown command: %s\n", os.Args[1])
		printUsage()
		os.Exit(1)
	}
}

func printUsage() {
	fmt.Fprintf(os.Stderr, `Usage: swapd <command>

Commands:
  serve           Start the orchestrator and block until signalled
  migrate-check   Open the store and verify the pool registry loads cleanly
  version         Print version information
`)
}

// bitcoinNetwork maps cfg.BitcoinNetwork's validated string form to the
// platform enum every facility call and address derivation is keyed on.
func bitcoinNetwork(s string) platform.BitcoinNetwork {
	switch s {
	case "mainnet":
		return platform.BitcoinMainnet
	case "regtest":
		return platform.BitcoinRegtest
	default:
		return platform.BitcoinTestnet
	}
}

// wiring holds every long-lived collaborator runServe and runMigrateCheck
// open, so both can close them the same way on exit.
type wiring struct {
	store        *store.Store
	logCloser    io.Closer
	orchestrator *orchestrator.Orchestrator
}

func setup(cfg *config.Config) (*wiring, error) {
	logCloser, err := logging.Setup(cfg.LogLevel, cfg.LogDir)
	if err != nil {
		return nil, fmt.Errorf("setup logging: %w", err)
	}

	slog.Info("starting swapd",
		"version", version,
		"network", cfg.BitcoinNetwork,
		"dataDir", cfg.DataDir,
		"useLocalFacilities", cfg.UseLocalFacilities,
	)

	db, err := store.Open(cfg.DataDir)
	if err != nil {
		logCloser.Close()
		return nil, fmt.Errorf("open store: %w", err)
	}

	slog.Info("store opened", "dataDir", cfg.DataDir)

	network := bitcoinNetwork(cfg.BitcoinNetwork)
	utxos := utxo.New(db)
	reg := registry.New(db)

	var (
		kms      platform.ThresholdECDSA
		facility platform.BitcoinFacility
		indexer  platform.RuneIndexer
	)

	// No real threshold-ECDSA or native-chain ledger endpoint exists outside
	// the host platform this service was modelled on, so those two
	// collaborators are always the in-memory stand-ins, regardless of
	// UseLocalFacilities (see DESIGN.md's serviceID decision).
	kms = localkms.New([]byte(cfg.KeyName))
	ledgerClient := localledger.New([]byte(cfg.KeyName))

	if cfg.UseLocalFacilities {
		slog.Warn("running with local in-memory Bitcoin facility and rune indexer stand-ins")
		facility = localchain.NewBitcoin()
		indexer = localchain.NewRuneIndexer()
	} else {
		facility = httpfacility.NewBitcoin(cfg.BitcoinFacilityURL)
		indexer = httpfacility.NewRuneIndexer(cfg.RuneIndexerURL)
	}

	orch := orchestrator.New(cfg, kms, facility, indexer, ledgerClient, utxos, reg, db, network)

	if err := orch.Bootstrap(context.Background()); err != nil {
		db.Close()
		logCloser.Close()
		return nil, fmt.Errorf("bootstrap orchestrator: %w", err)
	}
	slog.Info("ecdsa public key cached")

	return &wiring{store: db, logCloser: logCloser, orchestrator: orch}, nil
}

func (w *wiring) Close() {
	if err := w.store.Close(); err != nil {
		slog.Error("close store", "error", err)
	}
	w.logCloser.Close()
}

func runServe() error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	w, err := setup(cfg)
	if err != nil {
		return fmt.Errorf("setup: %w", err)
	}
	defer w.Close()

	slog.Info("orchestrator ready, awaiting external calls")

	done := make(chan os.Signal, 1)
	signal.Notify(done, os.Interrupt, syscall.SIGTERM)
	<-done

	slog.Info("shutdown signal received, closing store and facility clients")
	return nil
}

// runMigrateCheck opens the store and every package that reads from it on
// start-up, surfacing a decode or partition error before a real deployment
// relies on the data being readable.
func runMigrateCheck() error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	w, err := setup(cfg)
	if err != nil {
		return fmt.Errorf("setup: %w", err)
	}
	defer w.Close()

	pools, err := w.orchestrator.Pools(context.Background())
	if err != nil {
		return fmt.Errorf("read pool registry: %w", err)
	}

	slog.Info("migrate-check passed", "pools", len(pools))
	return nil
}
