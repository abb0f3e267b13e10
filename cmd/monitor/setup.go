package main

import (
	"context"
	"fmt"

	"github.com/ethereum/go-ethereum/common"
	"go.uber.org/zap"

	"github.com/ipatka/compound-monitoring/internal/chain"
	"github.com/ipatka/compound-monitoring/internal/comet"
	"github.com/ipatka/compound-monitoring/internal/config"
	"github.com/ipatka/compound-monitoring/internal/model"
	"github.com/ipatka/compound-monitoring/internal/monitor"
	"github.com/ipatka/compound-monitoring/internal/price"
)

// buildPipeline wires the catalog, resolver, oracle, and base token into a
// ready pipeline. Base token resolution failures are fatal here: the monitor
// cannot value base-asset events without them.
func buildPipeline(ctx context.Context, cfg config.Config, logger *zap.Logger) (*monitor.Pipeline, *chain.Client, error) {
	if cfg.RPCURL == "" {
		return nil, nil, fmt.Errorf("rpc url is required")
	}
	if !common.IsHexAddress(cfg.CometAddress) {
		return nil, nil, fmt.Errorf("valid comet address is required")
	}
	cometAddress := common.HexToAddress(cfg.CometAddress)

	marketABI, err := comet.MarketABI()
	if err != nil {
		return nil, nil, fmt.Errorf("parse market abi: %w", err)
	}

	events, err := eventConfigs(cfg.Events)
	if err != nil {
		return nil, nil, err
	}
	catalog, err := comet.BuildCatalog(marketABI, events)
	if err != nil {
		return nil, nil, err
	}

	chainClient, err := chain.NewClient(ctx, cfg.RPCURL)
	if err != nil {
		return nil, nil, fmt.Errorf("connect rpc: %w", err)
	}

	resolver := comet.NewResolver(chainClient, logger)

	baseCtx, cancel := context.WithTimeout(ctx, cfg.CallTimeout)
	baseToken, err := resolver.ResolveBase(baseCtx, cometAddress, comet.BaseTokenConfig{
		Address:  cfg.BaseTokenAddress,
		Symbol:   cfg.BaseTokenSymbol,
		Decimals: cfg.BaseTokenDecimals,
	})
	cancel()
	if err != nil {
		chainClient.Close()
		return nil, nil, fmt.Errorf("resolve base token: %w", err)
	}
	logger.Info("base token resolved",
		zap.String("address", baseToken.Address),
		zap.String("symbol", baseToken.Symbol),
		zap.Uint8("decimals", baseToken.Decimals),
	)

	oracle := price.NewOracle(cfg.PriceEndpoint, cfg.CallTimeout)

	pipeline, err := monitor.NewPipeline(monitor.PipelineConfig{
		Contract:  cometAddress,
		Catalog:   catalog,
		Resolver:  resolver,
		Oracle:    oracle,
		BaseToken: baseToken,
		Protocol: monitor.ProtocolMeta{
			Name:         cfg.ProtocolName,
			Abbreviation: cfg.ProtocolAbbreviation,
			Developer:    cfg.DeveloperAbbreviation,
			Version:      cfg.ProtocolVersion,
		},
		CallTimeout: cfg.CallTimeout,
	}, logger)
	if err != nil {
		chainClient.Close()
		return nil, nil, err
	}

	return pipeline, chainClient, nil
}

func eventConfigs(entries []config.EventEntry) ([]comet.EventConfig, error) {
	events := make([]comet.EventConfig, 0, len(entries))
	for _, entry := range entries {
		findingType, err := model.ParseFindingType(entry.Type)
		if err != nil {
			return nil, fmt.Errorf("event %s: %w", entry.Name, err)
		}
		severity, err := model.ParseSeverity(entry.Severity)
		if err != nil {
			return nil, fmt.Errorf("event %s: %w", entry.Name, err)
		}
		events = append(events, comet.EventConfig{
			Name:      entry.Name,
			Type:      findingType,
			Severity:  severity,
			AssetKey:  entry.AssetKey,
			AmountKey: entry.AmountKey,
		})
	}
	return events, nil
}
