/*
This file implements the primary price source against the CoinGecko simple
price API. Token prices are fetched by contract address in one batch call per
cache refill; the native coin is priced by its CoinGecko ID.
*/

package pricing

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math"
	"net/http"
	"strings"
	"time"

	"github.com/0xedev/vendyz-backend/internal/logger"
	"github.com/ethereum/go-ethereum/common"
	"golang.org/x/time/rate"
)

var coingeckoLogger = logger.GetForComponent("coingecko_source")

var (
	ErrEmptyBatch       = errors.New("no token addresses to price")
	ErrUnexpectedStatus = errors.New("price API returned unexpected status")
)

const (
	// DefaultCoinGeckoURL is the public API base; override for the pro tier.
	DefaultCoinGeckoURL = "https://api.coingecko.com/api/v3"

	// Asset platform and native coin ID for the target chain.
	defaultPlatform     = "base"
	defaultNativeCoinID = "ethereum"
)

// CoinGecko is the primary, batch-capable price source.
type CoinGecko struct {
	baseURL  string
	platform string
	nativeID string
	client   *http.Client
	gate     *rate.Limiter
}

// NewCoinGecko builds a CoinGecko source with its own rate gate. minInterval
// is the minimum spacing between upstream calls; timeout bounds each call.
func NewCoinGecko(baseURL string, minInterval, timeout time.Duration) *CoinGecko {
	if baseURL == "" {
		baseURL = DefaultCoinGeckoURL
	}
	return &CoinGecko{
		baseURL:  strings.TrimRight(baseURL, "/"),
		platform: defaultPlatform,
		nativeID: defaultNativeCoinID,
		client:   &http.Client{Timeout: timeout},
		gate:     rate.NewLimiter(rate.Every(minInterval), 1),
	}
}

// Name identifies this source in logs and cache entries.
func (c *CoinGecko) Name() string {
	return "coingecko"
}

// TokenPrices fetches USD prices for a batch of token contracts in one call.
// Tokens CoinGecko does not know are simply absent from the returned map.
func (c *CoinGecko) TokenPrices(ctx context.Context, addrs []common.Address) (map[common.Address]float64, error) {
	if len(addrs) == 0 {
		return nil, ErrEmptyBatch
	}

	// Block until the inter-call interval allows another request.
	if err := c.gate.Wait(ctx); err != nil {
		return nil, fmt.Errorf("rate gate wait interrupted: %w", err)
	}

	contracts := make([]string, 0, len(addrs))
	for _, addr := range addrs {
		contracts = append(contracts, strings.ToLower(addr.Hex()))
	}

	url := fmt.Sprintf("%s/simple/token_price/%s?contract_addresses=%s&vs_currencies=usd",
		c.baseURL, c.platform, strings.Join(contracts, ","))

	body, err := c.get(ctx, url)
	if err != nil {
		return nil, err
	}

	var decoded map[string]map[string]float64
	if err := json.Unmarshal(body, &decoded); err != nil {
		return nil, fmt.Errorf("failed to parse batch price response: %w", err)
	}

	prices := make(map[common.Address]float64, len(decoded))
	for contract, quote := range decoded {
		usd, ok := quote["usd"]
		if !ok {
			continue
		}
		if usd <= 0 || math.IsNaN(usd) || math.IsInf(usd, 0) {
			coingeckoLogger.Warn().
				Str("contract", contract).
				Float64("priceUSD", usd).
				Msg("Discarding non-positive price from batch response")
			continue
		}
		if !common.IsHexAddress(contract) {
			continue
		}
		prices[common.HexToAddress(contract)] = usd
	}

	coingeckoLogger.Debug().
		Int("requested", len(addrs)).
		Int("priced", len(prices)).
		Msg("Batch price fetch completed")

	return prices, nil
}

// NativePrice fetches the USD price of the chain's native coin.
func (c *CoinGecko) NativePrice(ctx context.Context) (float64, error) {
	if err := c.gate.Wait(ctx); err != nil {
		return 0, fmt.Errorf("rate gate wait interrupted: %w", err)
	}

	url := fmt.Sprintf("%s/simple/price?ids=%s&vs_currencies=usd", c.baseURL, c.nativeID)

	body, err := c.get(ctx, url)
	if err != nil {
		return 0, err
	}

	var decoded map[string]map[string]float64
	if err := json.Unmarshal(body, &decoded); err != nil {
		return 0, fmt.Errorf("failed to parse native price response: %w", err)
	}

	usd := decoded[c.nativeID]["usd"]
	if usd <= 0 || math.IsNaN(usd) || math.IsInf(usd, 0) {
		return 0, fmt.Errorf("invalid native coin price from %s: %f", c.Name(), usd)
	}

	return usd, nil
}

func (c *CoinGecko) get(ctx context.Context, url string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("price request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%w: %d from %s", ErrUnexpectedStatus, resp.StatusCode, c.Name())
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response body: %w", err)
	}
	if len(body) == 0 {
		return nil, fmt.Errorf("empty response body from %s", c.Name())
	}

	return body, nil
}
