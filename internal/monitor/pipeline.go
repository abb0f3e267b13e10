package monitor

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/ipatka/compound-monitoring/internal/comet"
	"github.com/ipatka/compound-monitoring/internal/model"
)

// Oracle quotes an asset in USD per whole token unit.
type Oracle interface {
	Quote(ctx context.Context, asset common.Address) (decimal.Decimal, error)
}

// PipelineConfig wires the pipeline's collaborators and policy.
type PipelineConfig struct {
	Contract    common.Address
	Catalog     *comet.Catalog
	Resolver    *comet.Resolver
	Oracle      Oracle
	BaseToken   model.TokenInfo
	Protocol    ProtocolMeta
	CallTimeout time.Duration
}

// Pipeline turns one transaction's logs into findings. The catalog and base
// token are read-only after construction and shared across all per-log
// workers without locking.
type Pipeline struct {
	contract    common.Address
	contractABI abi.ABI
	catalog     *comet.Catalog
	resolver    *comet.Resolver
	oracle      Oracle
	baseToken   model.TokenInfo
	protocol    ProtocolMeta
	callTimeout time.Duration
	logger      *zap.Logger
}

// NewPipeline builds a Pipeline from its configuration.
func NewPipeline(cfg PipelineConfig, logger *zap.Logger) (*Pipeline, error) {
	if cfg.Catalog == nil {
		return nil, fmt.Errorf("catalog is required")
	}
	if cfg.Resolver == nil {
		return nil, fmt.Errorf("resolver is required")
	}
	if cfg.Oracle == nil {
		return nil, fmt.Errorf("oracle is required")
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.CallTimeout <= 0 {
		cfg.CallTimeout = 10 * time.Second
	}

	contractABI, err := comet.MarketABI()
	if err != nil {
		return nil, fmt.Errorf("parse market abi: %w", err)
	}

	return &Pipeline{
		contract:    cfg.Contract,
		contractABI: contractABI,
		catalog:     cfg.Catalog,
		resolver:    cfg.Resolver,
		oracle:      cfg.Oracle,
		baseToken:   cfg.BaseToken,
		protocol:    cfg.Protocol,
		callTimeout: cfg.CallTimeout,
		logger:      logger,
	}, nil
}

// ProcessTransaction runs one transaction's logs through the pipeline.
// Matched logs are processed concurrently and joined in log order. A log
// whose resolution, pricing, or decoding fails is logged and skipped; its
// siblings are unaffected. Zero matches yields an empty, non-error result.
func (p *Pipeline) ProcessTransaction(ctx context.Context, logs []*types.Log) []model.Finding {
	matched := comet.MatchLogs(p.catalog, p.contract, logs)
	if len(matched) == 0 {
		return nil
	}

	results := make([]*model.Finding, len(matched))
	var wg sync.WaitGroup
	for i, log := range matched {
		wg.Add(1)
		go func(i int, log *types.Log) {
			defer wg.Done()
			finding, err := p.processLog(ctx, log)
			if err != nil {
				p.logger.Warn("log skipped",
					zap.String("tx_hash", log.TxHash.Hex()),
					zap.Uint("log_index", log.Index),
					zap.Error(err),
				)
				return
			}
			results[i] = finding
		}(i, log)
	}
	wg.Wait()

	findings := make([]model.Finding, 0, len(matched))
	for _, finding := range results {
		if finding != nil {
			findings = append(findings, *finding)
		}
	}
	return findings
}

func (p *Pipeline) processLog(ctx context.Context, log *types.Log) (*model.Finding, error) {
	desc, ok := p.catalog.ByTopic(log.Topics[0])
	if !ok {
		return nil, fmt.Errorf("no descriptor for topic %s", log.Topics[0].Hex())
	}

	parsed, err := comet.ParseLog(p.contractABI, desc, log)
	if err != nil {
		return nil, err
	}

	token, err := p.resolveToken(ctx, desc, parsed)
	if err != nil {
		return nil, err
	}

	amount, ok := parsed.Amount(desc.AmountKey)
	if !ok {
		return nil, fmt.Errorf("%s: argument %s is not an integer amount", desc.Name, desc.AmountKey)
	}

	callCtx, cancel := context.WithTimeout(ctx, p.callTimeout)
	usdPerUnit, err := p.oracle.Quote(callCtx, common.HexToAddress(token.Address))
	cancel()
	if err != nil {
		return nil, err
	}

	_, usdValue := Normalize(amount, token.Decimals, usdPerUnit)

	finding := BuildFinding(desc, token, usdValue, parsed, p.protocol)
	return &finding, nil
}

func (p *Pipeline) resolveToken(ctx context.Context, desc comet.EventDescriptor, parsed model.ParsedLog) (model.TokenInfo, error) {
	if desc.Source == comet.AssetBase {
		return p.baseToken, nil
	}

	value, ok := parsed.Args[desc.AssetKey]
	if !ok {
		return model.TokenInfo{}, fmt.Errorf("%s: missing asset argument %s", desc.Name, desc.AssetKey)
	}
	asset, ok := value.(common.Address)
	if !ok {
		return model.TokenInfo{}, fmt.Errorf("%s: asset argument %s is %T, not an address", desc.Name, desc.AssetKey, value)
	}

	callCtx, cancel := context.WithTimeout(ctx, p.callTimeout)
	defer cancel()
	return p.resolver.ResolveCollateral(callCtx, asset)
}
