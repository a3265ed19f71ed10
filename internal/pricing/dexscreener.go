/*
This file implements the fallback price source against the DexScreener pair
API. DexScreener only answers one token per call, so the cache queries it
per identifier for whatever the primary batch left unpriced.
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
	"strconv"
	"strings"
	"time"

	"github.com/0xedev/vendyz-backend/internal/logger"
	"github.com/ethereum/go-ethereum/common"
	"golang.org/x/time/rate"
)

var dexscreenerLogger = logger.GetForComponent("dexscreener_source")

var ErrNoTradingPairs = errors.New("no trading pairs found for token")

// DefaultDexScreenerURL is the public API base.
const DefaultDexScreenerURL = "https://api.dexscreener.com"

type dexScreenerResponse struct {
	Pairs []struct {
		BaseToken struct {
			Address string `json:"address"`
		} `json:"baseToken"`
		PriceUSD  string `json:"priceUsd"`
		Liquidity struct {
			USD float64 `json:"usd"`
		} `json:"liquidity"`
	} `json:"pairs"`
}

// DexScreener is the fallback, per-identifier price source.
type DexScreener struct {
	baseURL       string
	wrappedNative common.Address
	client        *http.Client
	gate          *rate.Limiter
}

// NewDexScreener builds a DexScreener source with its own rate gate.
// wrappedNative is the wrapped native coin contract used for native pricing.
func NewDexScreener(baseURL string, wrappedNative common.Address, minInterval, timeout time.Duration) *DexScreener {
	if baseURL == "" {
		baseURL = DefaultDexScreenerURL
	}
	return &DexScreener{
		baseURL:       strings.TrimRight(baseURL, "/"),
		wrappedNative: wrappedNative,
		client:        &http.Client{Timeout: timeout},
		gate:          rate.NewLimiter(rate.Every(minInterval), 1),
	}
}

// Name identifies this source in logs and cache entries.
func (d *DexScreener) Name() string {
	return "dexscreener"
}

// TokenPrice fetches the USD price of one token contract, taken from its
// deepest-liquidity pair where the token is the base asset.
func (d *DexScreener) TokenPrice(ctx context.Context, addr common.Address) (float64, error) {
	if err := d.gate.Wait(ctx); err != nil {
		return 0, fmt.Errorf("rate gate wait interrupted: %w", err)
	}

	url := fmt.Sprintf("%s/latest/dex/tokens/%s", d.baseURL, strings.ToLower(addr.Hex()))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return 0, fmt.Errorf("failed to build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := d.client.Do(req)
	if err != nil {
		return 0, fmt.Errorf("price request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return 0, fmt.Errorf("%w: %d from %s", ErrUnexpectedStatus, resp.StatusCode, d.Name())
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return 0, fmt.Errorf("failed to read response body: %w", err)
	}

	var decoded dexScreenerResponse
	if err := json.Unmarshal(body, &decoded); err != nil {
		return 0, fmt.Errorf("failed to parse pair response: %w", err)
	}

	var bestPrice float64
	var bestLiquidity float64
	found := false
	for _, pair := range decoded.Pairs {
		if !common.IsHexAddress(pair.BaseToken.Address) {
			continue
		}
		if common.HexToAddress(pair.BaseToken.Address) != addr {
			continue
		}
		price, err := strconv.ParseFloat(pair.PriceUSD, 64)
		if err != nil || price <= 0 || math.IsNaN(price) || math.IsInf(price, 0) {
			continue
		}
		if !found || pair.Liquidity.USD > bestLiquidity {
			bestPrice = price
			bestLiquidity = pair.Liquidity.USD
			found = true
		}
	}

	if !found {
		return 0, fmt.Errorf("%w: %s", ErrNoTradingPairs, addr.Hex())
	}

	dexscreenerLogger.Debug().
		Str("token", addr.Hex()).
		Float64("priceUSD", bestPrice).
		Float64("pairLiquidityUSD", bestLiquidity).
		Msg("Fallback price resolved")

	return bestPrice, nil
}

// NativePrice prices the native coin through its wrapped contract.
func (d *DexScreener) NativePrice(ctx context.Context) (float64, error) {
	return d.TokenPrice(ctx, d.wrappedNative)
}
