package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/ipatka/compound-monitoring/internal/config"
	"github.com/ipatka/compound-monitoring/internal/monitor"
	"github.com/ipatka/compound-monitoring/internal/storage"
	"github.com/ipatka/compound-monitoring/internal/storage/postgres"
)

func main() {
	root := &cobra.Command{
		Use:          "comet-monitor",
		Short:        "Comet market event monitor",
		SilenceUsage: true,
	}

	root.PersistentFlags().String("config", "", "config file path")

	runCmd := &cobra.Command{
		Use:   "run",
		Short: "Run the live monitor",
		RunE:  runMonitor,
	}
	addCommonFlags(runCmd)
	runCmd.Flags().Uint64("from", 0, "start block, 0 means current head")
	runCmd.Flags().Duration("poll-interval", 12*time.Second, "head poll interval")
	runCmd.Flags().String("out", "./data/findings.jsonl", "findings JSONL path")
	runCmd.Flags().String("pg-dsn", "", "Postgres DSN for the finding store (JSONL sink if empty)")
	runCmd.Flags().String("checkpoint", "./data/checkpoint.json", "checkpoint file path")
	runCmd.Flags().Bool("checkpoint-enabled", true, "enable checkpointing")
	runCmd.Flags().Int("max-retries", 5, "maximum retry attempts for feed fetches")
	runCmd.Flags().Duration("retry-backoff", 500*time.Millisecond, "initial retry backoff")

	root.AddCommand(runCmd)

	replayCmd := &cobra.Command{
		Use:   "replay",
		Short: "Process one transaction by hash and print its findings",
		RunE:  runReplay,
	}
	addCommonFlags(replayCmd)
	replayCmd.Flags().String("tx", "", "transaction hash")

	root.AddCommand(replayCmd)

	if err := root.Execute(); err != nil {
		os.Exit(1)
	}
}

func addCommonFlags(cmd *cobra.Command) {
	cmd.Flags().String("rpc", "", "Ethereum RPC URL")
	cmd.Flags().String("comet-address", "", "monitored Comet market contract address")
	cmd.Flags().String("protocol-name", "Compound V3", "protocol name used in findings")
	cmd.Flags().String("protocol-abbreviation", "COMP", "protocol abbreviation")
	cmd.Flags().String("developer-abbreviation", "AE", "developer abbreviation")
	cmd.Flags().String("protocol-version", "3", "protocol version label")
	cmd.Flags().String("base-token-address", "", "base token address (skips the baseToken() lookup)")
	cmd.Flags().String("base-token-symbol", "", "base token symbol for the static fast path")
	cmd.Flags().Uint("base-token-decimals", 0, "base token decimals for the static fast path")
	cmd.Flags().String("price-endpoint", "", "token price endpoint (CoinGecko if empty)")
	cmd.Flags().Duration("call-timeout", 10*time.Second, "per contract call and price fetch timeout")
	cmd.Flags().String("log-level", "info", "log level (debug, info, warn, error)")
}

func runMonitor(cmd *cobra.Command, _ []string) error {
	cfgFile, _ := cmd.Flags().GetString("config")
	cfg, err := config.Load(cfgFile, cmd.Flags())
	if err != nil {
		return err
	}

	logger, err := newLogger(cfg.LogLevel)
	if err != nil {
		return err
	}
	defer logger.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	pipeline, chainClient, err := buildPipeline(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer chainClient.Close()

	chainID, err := chainClient.GetChainID(ctx)
	if err != nil {
		return fmt.Errorf("get chain id: %w", err)
	}

	var sink storage.FindingSink
	if cfg.PGDSN != "" {
		store, err := postgres.NewStore(ctx, cfg.PGDSN)
		if err != nil {
			return fmt.Errorf("connect postgres: %w", err)
		}
		defer store.Close()
		sink = store
	} else {
		sink = storage.NewJsonlSink(cfg.Out)
	}

	runner := monitor.NewRunner(monitor.RunnerConfig{
		FromBlock:         cfg.FromBlock,
		PollInterval:      cfg.PollInterval,
		CheckpointPath:    cfg.Checkpoint,
		CheckpointEnabled: cfg.CheckpointEnabled,
		MaxRetries:        cfg.MaxRetries,
		RetryBackoff:      cfg.RetryBackoff,
	}, chainClient, pipeline, sink, logger)

	logger.Info("monitor configured",
		zap.String("chain_id", chainID.String()),
		zap.String("rpc", cfg.RPCURL),
		zap.String("comet", cfg.CometAddress),
		zap.String("protocol", cfg.ProtocolName),
		zap.Int("events", len(cfg.Events)),
		zap.Bool("postgres", cfg.PGDSN != ""),
	)

	return runner.Run(ctx)
}

func newLogger(level string) (*zap.Logger, error) {
	cfg := zap.NewProductionConfig()
	cfg.Level = zap.NewAtomicLevel()
	if err := cfg.Level.UnmarshalText([]byte(level)); err != nil {
		return nil, err
	}

	cfg.EncoderConfig.TimeKey = "ts"
	cfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder

	return cfg.Build()
}
