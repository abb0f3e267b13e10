package monitor

import (
	"context"
	"fmt"
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum/core/types"
	"go.uber.org/zap"

	"github.com/ipatka/compound-monitoring/internal/chain"
	"github.com/ipatka/compound-monitoring/internal/storage"
)

// RunnerConfig holds runtime settings for the live monitor loop.
type RunnerConfig struct {
	FromBlock         uint64
	PollInterval      time.Duration
	CheckpointPath    string
	CheckpointEnabled bool
	MaxRetries        int
	RetryBackoff      time.Duration
}

// Runner follows the chain head and feeds each transaction's receipt logs to
// the pipeline, one transaction at a time.
type Runner struct {
	cfg        RunnerConfig
	chain      *chain.Client
	pipeline   *Pipeline
	sink       storage.FindingSink
	logger     *zap.Logger
	checkpoint *CheckpointStore
}

// NewRunner builds a Runner with its dependencies.
func NewRunner(cfg RunnerConfig, chainClient *chain.Client, pipeline *Pipeline, sink storage.FindingSink, logger *zap.Logger) *Runner {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = 12 * time.Second
	}
	return &Runner{
		cfg:        cfg,
		chain:      chainClient,
		pipeline:   pipeline,
		sink:       sink,
		logger:     logger,
		checkpoint: NewCheckpointStore(cfg.CheckpointPath, cfg.CheckpointEnabled),
	}
}

// Run executes the monitor loop until the context is cancelled.
func (r *Runner) Run(ctx context.Context) error {
	if r.chain == nil {
		return fmt.Errorf("chain client is nil")
	}
	if r.pipeline == nil {
		return fmt.Errorf("pipeline is nil")
	}
	if r.sink == nil {
		return fmt.Errorf("sink is nil")
	}

	next, err := r.startBlock(ctx)
	if err != nil {
		return err
	}
	r.logger.Info("monitor start", zap.Uint64("from", next), zap.Duration("poll_interval", r.cfg.PollInterval))

	ticker := time.NewTicker(r.cfg.PollInterval)
	defer ticker.Stop()

	for {
		latest, err := r.latestBlockWithRetry(ctx)
		if err != nil {
			return fmt.Errorf("get latest block: %w", err)
		}

		for next <= latest {
			if err := r.processBlock(ctx, next); err != nil {
				return err
			}
			if err := r.checkpoint.Save(next); err != nil {
				return err
			}
			next++
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
}

// startBlock picks the first block to process: checkpoint, configured start,
// or the current head.
func (r *Runner) startBlock(ctx context.Context) (uint64, error) {
	cp, ok, err := r.checkpoint.Load()
	if err != nil {
		return 0, err
	}
	if ok {
		r.logger.Info("resume from checkpoint", zap.Uint64("last_processed", cp.LastProcessedBlock))
		return cp.LastProcessedBlock + 1, nil
	}
	if r.cfg.FromBlock > 0 {
		return r.cfg.FromBlock, nil
	}

	latest, err := r.latestBlockWithRetry(ctx)
	if err != nil {
		return 0, fmt.Errorf("get latest block: %w", err)
	}
	return latest, nil
}

func (r *Runner) processBlock(ctx context.Context, number uint64) error {
	block, err := r.blockWithRetry(ctx, number)
	if err != nil {
		return fmt.Errorf("fetch block %d: %w", number, err)
	}

	for _, tx := range block.Transactions() {
		receipt, err := r.receiptWithRetry(ctx, tx)
		if err != nil {
			return fmt.Errorf("fetch receipt %s: %w", tx.Hash().Hex(), err)
		}

		findings := r.pipeline.ProcessTransaction(ctx, receipt.Logs)
		if len(findings) == 0 {
			continue
		}
		StampBlock(findings, number, block.Time())

		if err := r.sink.PutFindings(ctx, findings); err != nil {
			return fmt.Errorf("store findings: %w", err)
		}
		r.logger.Info("findings emitted",
			zap.String("tx_hash", tx.Hash().Hex()),
			zap.Uint64("block", number),
			zap.Int("count", len(findings)),
		)
	}

	return nil
}

func (r *Runner) latestBlockWithRetry(ctx context.Context) (uint64, error) {
	var latest uint64
	err := withRetry(ctx, r.cfg.MaxRetries, r.cfg.RetryBackoff, func(ctx context.Context) error {
		var err error
		latest, err = r.chain.LatestBlockNumber(ctx)
		if err != nil {
			r.logger.Warn("latest block fetch failed", zap.Error(err))
		}
		return err
	})
	return latest, err
}

func (r *Runner) blockWithRetry(ctx context.Context, number uint64) (*types.Block, error) {
	var block *types.Block
	err := withRetry(ctx, r.cfg.MaxRetries, r.cfg.RetryBackoff, func(ctx context.Context) error {
		var err error
		block, err = r.chain.BlockByNumber(ctx, new(big.Int).SetUint64(number))
		if err != nil {
			r.logger.Warn("block fetch failed", zap.Error(err), zap.Uint64("block", number))
		}
		return err
	})
	return block, err
}

func (r *Runner) receiptWithRetry(ctx context.Context, tx *types.Transaction) (*types.Receipt, error) {
	var receipt *types.Receipt
	err := withRetry(ctx, r.cfg.MaxRetries, r.cfg.RetryBackoff, func(ctx context.Context) error {
		var err error
		receipt, err = r.chain.TransactionReceipt(ctx, tx.Hash())
		if err != nil {
			r.logger.Warn("receipt fetch failed", zap.Error(err), zap.String("tx_hash", tx.Hash().Hex()))
		}
		return err
	})
	return receipt, err
}
