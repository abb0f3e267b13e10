package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/ipatka/compound-monitoring/internal/config"
	"github.com/ipatka/compound-monitoring/internal/monitor"
)

// runReplay processes a single mined transaction and prints its findings as
// JSON lines, one per finding.
func runReplay(cmd *cobra.Command, _ []string) error {
	cfgFile, _ := cmd.Flags().GetString("config")
	cfg, err := config.Load(cfgFile, cmd.Flags())
	if err != nil {
		return err
	}

	txArg, _ := cmd.Flags().GetString("tx")
	txBytes, err := hexutil.Decode(txArg)
	if err != nil || len(txBytes) != common.HashLength {
		return fmt.Errorf("valid transaction hash is required")
	}
	txHash := common.BytesToHash(txBytes)

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

	receipt, err := chainClient.TransactionReceipt(ctx, txHash)
	if err != nil {
		return fmt.Errorf("fetch receipt %s: %w", txHash.Hex(), err)
	}

	findings := pipeline.ProcessTransaction(ctx, receipt.Logs)
	if len(findings) > 0 {
		if ts, err := chainClient.BlockTimestamp(ctx, receipt.BlockNumber.Uint64()); err == nil {
			monitor.StampBlock(findings, receipt.BlockNumber.Uint64(), ts)
		} else {
			logger.Warn("block timestamp unavailable", zap.Uint64("block", receipt.BlockNumber.Uint64()), zap.Error(err))
		}
	}

	encoder := json.NewEncoder(os.Stdout)
	for _, finding := range findings {
		if err := encoder.Encode(finding); err != nil {
			return fmt.Errorf("encode finding: %w", err)
		}
	}
	if len(findings) == 0 {
		logger.Info("no findings for transaction", zap.String("tx_hash", txHash.Hex()))
	}

	return nil
}
