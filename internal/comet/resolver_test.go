package comet

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"testing"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
)

// fakeCaller serves packed eth_call responses keyed by target address and
// method selector.
type fakeCaller struct {
	responses map[string][]byte
	calls     int
	err       error
}

func callKey(target common.Address, selector []byte) string {
	return fmt.Sprintf("%s:%x", target.Hex(), selector)
}

func (f *fakeCaller) CallContract(_ context.Context, msg ethereum.CallMsg, _ *big.Int) ([]byte, error) {
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	if msg.To == nil || len(msg.Data) < 4 {
		return nil, fmt.Errorf("malformed call")
	}
	resp, ok := f.responses[callKey(*msg.To, msg.Data[:4])]
	if !ok {
		return nil, fmt.Errorf("unexpected call to %s", msg.To.Hex())
	}
	return resp, nil
}

func newTokenCaller(t *testing.T, token common.Address, symbol string, decimals uint8) *fakeCaller {
	t.Helper()
	stringABI, err := erc20ABIStringInstance()
	if err != nil {
		t.Fatalf("erc20 abi: %v", err)
	}

	symbolResp, err := stringABI.Methods["symbol"].Outputs.Pack(symbol)
	if err != nil {
		t.Fatalf("pack symbol: %v", err)
	}
	decimalsResp, err := stringABI.Methods["decimals"].Outputs.Pack(decimals)
	if err != nil {
		t.Fatalf("pack decimals: %v", err)
	}

	return &fakeCaller{responses: map[string][]byte{
		callKey(token, stringABI.Methods["symbol"].ID):   symbolResp,
		callKey(token, stringABI.Methods["decimals"].ID): decimalsResp,
	}}
}

func TestResolveBaseStaticFastPath(t *testing.T) {
	caller := &fakeCaller{}
	resolver := NewResolver(caller, nil)

	market := common.HexToAddress("0x1111111111111111111111111111111111111111")
	info, err := resolver.ResolveBase(context.Background(), market, BaseTokenConfig{
		Address:  "0xa0b86991c6218b36c1d19d4a2e9eb0ce3606eb48",
		Symbol:   "USDC",
		Decimals: 6,
	})
	if err != nil {
		t.Fatalf("resolve base: %v", err)
	}

	if caller.calls != 0 {
		t.Fatalf("static path made %d contract calls", caller.calls)
	}
	if info.Symbol != "USDC" || info.Decimals != 6 {
		t.Fatalf("base token mismatch: %+v", info)
	}
}

func TestResolveBaseStaticBadAddress(t *testing.T) {
	caller := &fakeCaller{}
	resolver := NewResolver(caller, nil)

	market := common.HexToAddress("0x1111111111111111111111111111111111111111")
	_, err := resolver.ResolveBase(context.Background(), market, BaseTokenConfig{
		Address:  "0xnot-an-address",
		Symbol:   "USDC",
		Decimals: 6,
	})
	if !errors.Is(err, ErrEventConfig) {
		t.Fatalf("expected ErrEventConfig, got %v", err)
	}
	if caller.calls != 0 {
		t.Fatalf("bad static address made %d contract calls", caller.calls)
	}
}

func TestResolveBaseDynamic(t *testing.T) {
	market := common.HexToAddress("0x1111111111111111111111111111111111111111")
	base := common.HexToAddress("0xa0b86991C6218b36c1d19D4a2e9Eb0cE3606eB48")

	caller := newTokenCaller(t, base, "USDC", 6)

	marketParsed, err := MarketABI()
	if err != nil {
		t.Fatalf("market abi: %v", err)
	}
	baseTokenResp, err := marketParsed.Methods["baseToken"].Outputs.Pack(base)
	if err != nil {
		t.Fatalf("pack baseToken: %v", err)
	}
	caller.responses[callKey(market, marketParsed.Methods["baseToken"].ID)] = baseTokenResp

	resolver := NewResolver(caller, nil)
	info, err := resolver.ResolveBase(context.Background(), market, BaseTokenConfig{})
	if err != nil {
		t.Fatalf("resolve base: %v", err)
	}

	if info.Address != base.Hex() {
		t.Fatalf("address mismatch: %s", info.Address)
	}
	if info.Symbol != "USDC" || info.Decimals != 6 {
		t.Fatalf("base token mismatch: %+v", info)
	}
}

func TestResolveCollateralCaches(t *testing.T) {
	asset := common.HexToAddress("0xC02aaA39b223FE8D0A0e5C4F27eAD9083C756Cc2")
	caller := newTokenCaller(t, asset, "WETH", 18)

	resolver := NewResolver(caller, nil)

	info, err := resolver.ResolveCollateral(context.Background(), asset)
	if err != nil {
		t.Fatalf("resolve collateral: %v", err)
	}
	if info.Symbol != "WETH" || info.Decimals != 18 {
		t.Fatalf("collateral mismatch: %+v", info)
	}

	callsAfterFirst := caller.calls
	again, err := resolver.ResolveCollateral(context.Background(), asset)
	if err != nil {
		t.Fatalf("resolve collateral again: %v", err)
	}
	if caller.calls != callsAfterFirst {
		t.Fatalf("cache miss on second resolve")
	}
	if again != info {
		t.Fatalf("cached info mismatch: %+v", again)
	}
}

func TestResolveCollateralUpstreamFailure(t *testing.T) {
	caller := &fakeCaller{err: fmt.Errorf("connection refused")}
	resolver := NewResolver(caller, nil)

	asset := common.HexToAddress("0xaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaa")
	_, err := resolver.ResolveCollateral(context.Background(), asset)
	if !errors.Is(err, ErrUpstreamUnavailable) {
		t.Fatalf("expected ErrUpstreamUnavailable, got %v", err)
	}
}

func TestResolveCollateralBytes32Symbol(t *testing.T) {
	asset := common.HexToAddress("0x9f8F72aA9304c8B593d555F12eF6589cC3A579A2")

	stringABI, err := erc20ABIStringInstance()
	if err != nil {
		t.Fatalf("erc20 abi: %v", err)
	}
	bytes32ABI, err := erc20ABIBytes32Instance()
	if err != nil {
		t.Fatalf("erc20 bytes32 abi: %v", err)
	}

	decimalsResp, err := stringABI.Methods["decimals"].Outputs.Pack(uint8(18))
	if err != nil {
		t.Fatalf("pack decimals: %v", err)
	}

	var symbol [32]byte
	copy(symbol[:], "MKR")
	symbolResp, err := bytes32ABI.Methods["symbol"].Outputs.Pack(symbol)
	if err != nil {
		t.Fatalf("pack symbol: %v", err)
	}

	// string and bytes32 symbol() share a selector; the packed bytes32
	// payload fails string decoding and forces the fallback.
	caller := &fakeCaller{responses: map[string][]byte{
		callKey(asset, stringABI.Methods["decimals"].ID): decimalsResp,
		callKey(asset, stringABI.Methods["symbol"].ID):   symbolResp,
	}}

	resolver := NewResolver(caller, nil)
	info, err := resolver.ResolveCollateral(context.Background(), asset)
	if err != nil {
		t.Fatalf("resolve collateral: %v", err)
	}
	if info.Symbol != "MKR" {
		t.Fatalf("symbol mismatch: %q", info.Symbol)
	}
}
