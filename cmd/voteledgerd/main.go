package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"

	"voteledger/config"
	"voteledger/core"
	"voteledger/core/events"
	"voteledger/core/genesis"
	"voteledger/core/types"
	"voteledger/indexer"
	"voteledger/observability"
	"voteledger/observability/logging"
	telemetry "voteledger/observability/otel"
	"voteledger/rpc"
	"voteledger/storage"
)

const (
	serviceName = "voteledgerd"
	genesisEnv  = "VOTELEDGER_GENESIS"
)

func main() {
	configFile := flag.String("config", "./config.toml", "Path to the configuration file")
	genesisFlag := flag.String("genesis", "", "Path to a YAML genesis allocation file (overrides VOTELEDGER_GENESIS and config GenesisFile)")
	exportPath := flag.String("export-events", "", "Write indexed events to this parquet file and exit")
	exportFrom := flag.Uint64("export-from", 0, "Lowest block height included by -export-events")
	flag.Parse()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var err error
	if *exportPath != "" {
		err = exportEvents(ctx, *configFile, *exportPath, *exportFrom)
	} else {
		err = run(ctx, *configFile, *genesisFlag)
	}
	if err != nil {
		slog.Error("voteledgerd exited", slog.Any("error", err))
		os.Exit(1)
	}
}

func run(ctx context.Context, configPath, genesisFlag string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	logger := setupLogger(cfg)

	shutdownTelemetry, err := telemetry.Init(ctx, telemetry.Config{
		ServiceName: serviceName,
		Environment: cfg.Environment,
		Endpoint:    cfg.Telemetry.Endpoint,
		Insecure:    cfg.Telemetry.Insecure,
		Headers:     telemetry.ParseHeaders(cfg.Telemetry.Headers),
		Traces:      cfg.Telemetry.Traces,
		Metrics:     cfg.Telemetry.Metrics,
		SampleRatio: cfg.Telemetry.SampleRatio,
	})
	if err != nil {
		return fmt.Errorf("init telemetry: %w", err)
	}
	defer func() {
		flushCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := shutdownTelemetry(flushCtx); err != nil {
			logger.Warn("telemetry shutdown", slog.Any("error", err))
		}
	}()

	db, err := storage.NewLevelDB(cfg.DataDir)
	if err != nil {
		return fmt.Errorf("open database %s: %w", cfg.DataDir, err)
	}
	defer db.Close()

	address, err := cfg.LedgerAddress()
	if err != nil {
		return fmt.Errorf("ledger address: %w", err)
	}
	ledger, err := core.Open(db, core.Options{
		Name:     cfg.Ledger.Name,
		Symbol:   cfg.Ledger.Symbol,
		Decimals: cfg.Ledger.Decimals,
		ChainID:  cfg.Ledger.ChainID,
		Address:  types.AccountID(address),
		Logger:   logger,
		Metrics:  observability.Ledger(),
	})
	if err != nil {
		return fmt.Errorf("open ledger: %w", err)
	}

	broadcaster := events.NewBroadcaster()
	ledger.AddSink(broadcaster)

	var history rpc.History
	var idx *indexer.Indexer
	if cfg.Indexer.Driver != "" {
		gdb, err := indexer.OpenDB(cfg.Indexer.Driver, cfg.Indexer.DSN)
		if err != nil {
			return err
		}
		idx = indexer.New(gdb, indexer.Options{Logger: logger})
		ledger.AddSink(idx)
		history = idx
	}

	if err := applyGenesis(ledger, resolveGenesisPath(genesisFlag, cfg.GenesisFile), logger); err != nil {
		return err
	}

	var idempotency *rpc.IdempotencyStore
	if path := strings.TrimSpace(cfg.RPC.IdempotencyFile); path != "" {
		idempotency, err = rpc.OpenIdempotencyStore(path, time.Duration(cfg.RPC.IdempotencyTTLSecs)*time.Second)
		if err != nil {
			return fmt.Errorf("open idempotency store: %w", err)
		}
		defer idempotency.Close()
	}

	srv, err := rpc.NewServer(ledger, history, broadcaster, rpc.ServerConfig{
		MaxRequestBytes:    cfg.RPC.MaxRequestBytes,
		RateLimitPerMinute: float64(cfg.RPC.RateLimitPerMinute),
		RateLimitBurst:     cfg.RPC.RateLimitBurst,
		JWTSecret:          os.Getenv(cfg.RPC.JWTSecretEnv),
		AllowedOrigins:     cfg.RPC.AllowedOrigins,
		ReadTimeout:        time.Duration(cfg.RPC.ReadTimeoutSecs) * time.Second,
		WriteTimeout:       time.Duration(cfg.RPC.WriteTimeoutSecs) * time.Second,
		Idempotency:        idempotency,
		Logger:             logger,
	})
	if err != nil {
		return err
	}
	if strings.TrimSpace(os.Getenv(cfg.RPC.JWTSecretEnv)) == "" {
		logger.Warn("JWT secret not set; authenticated RPC methods are disabled", slog.String("env", cfg.RPC.JWTSecretEnv))
	}

	group, groupCtx := errgroup.WithContext(ctx)
	group.Go(func() error {
		return ledger.ProduceBlocks(groupCtx, cfg.BlockInterval())
	})
	group.Go(func() error {
		return srv.ListenAndServe(groupCtx, cfg.RPCAddress)
	})
	logger.Info("voteledgerd started",
		slog.String("rpc", cfg.RPCAddress),
		slog.Uint64("block", ledger.BlockNumber()),
		slog.Duration("blockInterval", cfg.BlockInterval()))

	err = group.Wait()
	if idx != nil {
		closeCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if closeErr := idx.Close(closeCtx); closeErr != nil {
			logger.Warn("indexer did not drain", slog.Any("error", closeErr))
		}
	}
	if err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	logger.Info("voteledgerd stopped", slog.Uint64("block", ledger.BlockNumber()))
	return nil
}

func setupLogger(cfg *config.Config) *slog.Logger {
	opts := logging.Options{Level: logging.ParseLevel(cfg.Logging.Level)}
	if path := strings.TrimSpace(cfg.Logging.File); path != "" {
		opts.File = &logging.FileOptions{
			Path:       path,
			MaxSizeMB:  cfg.Logging.MaxSizeMB,
			MaxBackups: cfg.Logging.MaxBackups,
			MaxAgeDays: cfg.Logging.MaxAgeDays,
		}
	}
	return logging.SetupWithOptions(serviceName, cfg.Environment, opts)
}

func resolveGenesisPath(flagValue, configValue string) string {
	if trimmed := strings.TrimSpace(flagValue); trimmed != "" {
		return trimmed
	}
	if env := strings.TrimSpace(os.Getenv(genesisEnv)); env != "" {
		return env
	}
	return strings.TrimSpace(configValue)
}

// applyGenesis loads allocations into a ledger that has not sealed a block.
// A ledger resuming from disk ignores the file.
func applyGenesis(ledger *core.Ledger, path string, logger *slog.Logger) error {
	if path == "" {
		return nil
	}
	spec, err := genesis.LoadSpec(path)
	if err != nil {
		return fmt.Errorf("load genesis: %w", err)
	}
	allocs, err := spec.ResolveAllocations()
	if err != nil {
		return fmt.Errorf("resolve genesis: %w", err)
	}
	err = ledger.ApplyGenesis(allocs)
	if errors.Is(err, core.ErrGenesisApplied) {
		logger.Info("existing state found, skipping genesis", slog.String("path", path))
		return nil
	}
	return err
}

// exportEvents dumps the configured index to parquet without starting the
// ledger.
func exportEvents(ctx context.Context, configPath, path string, fromHeight uint64) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	logger := setupLogger(cfg)
	if cfg.Indexer.Driver == "" {
		return errors.New("export requires an indexer driver in the config")
	}
	gdb, err := indexer.OpenDB(cfg.Indexer.Driver, cfg.Indexer.DSN)
	if err != nil {
		return err
	}
	if sqlDB, err := gdb.DB(); err == nil {
		defer sqlDB.Close()
	}
	rows, err := indexer.ExportParquet(ctx, gdb, path, fromHeight)
	if err != nil {
		return fmt.Errorf("export events: %w", err)
	}
	logger.Info("exported indexed events",
		slog.String("path", path),
		slog.Uint64("fromHeight", fromHeight),
		slog.Int("rows", rows))
	return nil
}
