// Package price fetches USD quotes for assets from a CoinGecko-style
// token_price endpoint.
package price

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/shopspring/decimal"
)

// ErrPriceUnavailable marks a quote the service could not provide: transport
// failure, non-2xx status, or an address the service does not list.
var ErrPriceUnavailable = errors.New("price unavailable")

// DefaultEndpoint is the public CoinGecko token price endpoint for mainnet.
const DefaultEndpoint = "https://api.coingecko.com/api/v3/simple/token_price/ethereum"

// Oracle quotes assets in USD per whole token unit.
type Oracle struct {
	endpoint   string
	httpClient *http.Client
}

// NewOracle builds an Oracle for the given endpoint. An empty endpoint uses
// DefaultEndpoint.
func NewOracle(endpoint string, timeout time.Duration) *Oracle {
	if endpoint == "" {
		endpoint = DefaultEndpoint
	}
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &Oracle{
		endpoint:   endpoint,
		httpClient: &http.Client{Timeout: timeout},
	}
}

// Quote returns the current USD price per unit of the asset.
func (o *Oracle) Quote(ctx context.Context, asset common.Address) (decimal.Decimal, error) {
	key := strings.ToLower(asset.Hex())

	query := url.Values{}
	query.Set("contract_addresses", key)
	query.Set("vs_currencies", "usd")
	requestURL := o.endpoint + "?" + query.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, requestURL, nil)
	if err != nil {
		return decimal.Decimal{}, fmt.Errorf("%w: build request: %v", ErrPriceUnavailable, err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := o.httpClient.Do(req)
	if err != nil {
		return decimal.Decimal{}, fmt.Errorf("%w: %v", ErrPriceUnavailable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return decimal.Decimal{}, fmt.Errorf("%w: status %d", ErrPriceUnavailable, resp.StatusCode)
	}

	var payload map[string]map[string]decimal.Decimal
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return decimal.Decimal{}, fmt.Errorf("%w: decode response: %v", ErrPriceUnavailable, err)
	}

	// a missing key means the service does not list this asset
	quotes, ok := payload[key]
	if !ok {
		return decimal.Decimal{}, fmt.Errorf("%w: no quote for %s", ErrPriceUnavailable, key)
	}
	usd, ok := quotes["usd"]
	if !ok {
		return decimal.Decimal{}, fmt.Errorf("%w: no usd quote for %s", ErrPriceUnavailable, key)
	}

	return usd, nil
}
