package comet

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"math/big"
	"sync"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"go.uber.org/zap"

	"github.com/ipatka/compound-monitoring/internal/model"
)

// ErrUpstreamUnavailable marks a failed or timed-out contract read.
var ErrUpstreamUnavailable = errors.New("contract read unavailable")

// ContractCaller performs read-only contract calls.
type ContractCaller interface {
	CallContract(ctx context.Context, msg ethereum.CallMsg, blockNumber *big.Int) ([]byte, error)
}

// TokenInfoCache caches token metadata by address. Decimals and symbol are
// immutable on-chain, so entries never go stale.
type TokenInfoCache struct {
	mu   sync.RWMutex
	data map[common.Address]model.TokenInfo
}

func NewTokenInfoCache() *TokenInfoCache {
	return &TokenInfoCache{data: make(map[common.Address]model.TokenInfo)}
}

func (c *TokenInfoCache) Get(address common.Address) (model.TokenInfo, bool) {
	c.mu.RLock()
	info, ok := c.data[address]
	c.mu.RUnlock()
	return info, ok
}

func (c *TokenInfoCache) Set(address common.Address, info model.TokenInfo) {
	c.mu.Lock()
	c.data[address] = info
	c.mu.Unlock()
}

// BaseTokenConfig optionally pins the base token without any contract calls.
type BaseTokenConfig struct {
	Address  string
	Symbol   string
	Decimals uint8
}

func (c BaseTokenConfig) complete() bool {
	return c.Address != "" && c.Symbol != ""
}

// Resolver resolves token metadata for the base and collateral branches.
type Resolver struct {
	caller ContractCaller
	cache  *TokenInfoCache
	logger *zap.Logger
}

// NewResolver builds a Resolver around a contract caller.
func NewResolver(caller ContractCaller, logger *zap.Logger) *Resolver {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Resolver{
		caller: caller,
		cache:  NewTokenInfoCache(),
		logger: logger,
	}
}

// ResolveBase returns the market's base token metadata. When the static
// config is complete no contract calls are made; otherwise the base token
// address is read from the market contract and its metadata fetched.
func (r *Resolver) ResolveBase(ctx context.Context, market common.Address, static BaseTokenConfig) (model.TokenInfo, error) {
	if static.complete() {
		if !common.IsHexAddress(static.Address) {
			return model.TokenInfo{}, fmt.Errorf("%w: invalid base token address %q", ErrEventConfig, static.Address)
		}
		return model.TokenInfo{
			Address:  common.HexToAddress(static.Address).Hex(),
			Symbol:   static.Symbol,
			Decimals: static.Decimals,
		}, nil
	}

	marketParsed, err := MarketABI()
	if err != nil {
		return model.TokenInfo{}, fmt.Errorf("parse market abi: %w", err)
	}

	values, err := r.call(ctx, market, marketParsed, "baseToken")
	if err != nil {
		return model.TokenInfo{}, fmt.Errorf("%w: baseToken: %v", ErrUpstreamUnavailable, err)
	}
	baseToken, ok := values[0].(common.Address)
	if !ok {
		return model.TokenInfo{}, fmt.Errorf("%w: baseToken returned %T", ErrUpstreamUnavailable, values[0])
	}

	return r.fetchTokenInfo(ctx, baseToken)
}

// ResolveCollateral returns metadata for a collateral asset referenced by a
// log, consulting the cache first.
func (r *Resolver) ResolveCollateral(ctx context.Context, asset common.Address) (model.TokenInfo, error) {
	if info, ok := r.cache.Get(asset); ok {
		return info, nil
	}

	info, err := r.fetchTokenInfo(ctx, asset)
	if err != nil {
		return model.TokenInfo{}, err
	}
	r.cache.Set(asset, info)
	return info, nil
}

func (r *Resolver) fetchTokenInfo(ctx context.Context, token common.Address) (model.TokenInfo, error) {
	stringABI, err := erc20ABIStringInstance()
	if err != nil {
		return model.TokenInfo{}, fmt.Errorf("parse erc20 abi: %w", err)
	}
	bytes32ABI, err := erc20ABIBytes32Instance()
	if err != nil {
		return model.TokenInfo{}, fmt.Errorf("parse erc20 bytes32 abi: %w", err)
	}

	info := model.TokenInfo{Address: token.Hex()}

	values, err := r.call(ctx, token, stringABI, "decimals")
	if err != nil {
		return model.TokenInfo{}, fmt.Errorf("%w: decimals %s: %v", ErrUpstreamUnavailable, token.Hex(), err)
	}
	decimals, err := asUint8(values[0])
	if err != nil {
		return model.TokenInfo{}, fmt.Errorf("%w: decimals %s: %v", ErrUpstreamUnavailable, token.Hex(), err)
	}
	info.Decimals = decimals

	if values, err := r.call(ctx, token, stringABI, "symbol"); err == nil {
		if symbol, ok := values[0].(string); ok {
			info.Symbol = symbol
			return info, nil
		}
	}
	// some older tokens return bytes32 symbols
	values, err = r.call(ctx, token, bytes32ABI, "symbol")
	if err != nil {
		return model.TokenInfo{}, fmt.Errorf("%w: symbol %s: %v", ErrUpstreamUnavailable, token.Hex(), err)
	}
	symbol, ok := bytes32ToString(values[0])
	if !ok {
		return model.TokenInfo{}, fmt.Errorf("%w: symbol %s returned %T", ErrUpstreamUnavailable, token.Hex(), values[0])
	}
	info.Symbol = symbol

	return info, nil
}

func (r *Resolver) call(ctx context.Context, target common.Address, parsed abi.ABI, method string) ([]interface{}, error) {
	data, err := parsed.Pack(method)
	if err != nil {
		return nil, fmt.Errorf("pack %s: %w", method, err)
	}
	msg := ethereum.CallMsg{To: &target, Data: data}
	resp, err := r.caller.CallContract(ctx, msg, nil)
	if err != nil {
		return nil, fmt.Errorf("call %s: %w", method, err)
	}
	values, err := parsed.Unpack(method, resp)
	if err != nil {
		return nil, fmt.Errorf("unpack %s: %w", method, err)
	}
	if len(values) == 0 {
		return nil, fmt.Errorf("%s returned no values", method)
	}
	return values, nil
}

func bytes32ToString(value interface{}) (string, bool) {
	switch v := value.(type) {
	case [32]byte:
		return string(bytes.TrimRight(v[:], "\x00")), true
	case []byte:
		return string(bytes.TrimRight(v, "\x00")), true
	default:
		return "", false
	}
}

func asUint8(value interface{}) (uint8, error) {
	switch v := value.(type) {
	case uint8:
		return v, nil
	case *big.Int:
		return uint8(v.Uint64()), nil
	default:
		return 0, fmt.Errorf("unsupported uint8 type %T", value)
	}
}
