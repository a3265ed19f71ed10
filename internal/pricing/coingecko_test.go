package pricing

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCoinGecko_TokenPrices_DecodesBatch(t *testing.T) {
	usdc := common.HexToAddress("0x0000000000000000000000000000000000000a01")
	degen := common.HexToAddress("0x0000000000000000000000000000000000000a02")
	junk := common.HexToAddress("0x0000000000000000000000000000000000000a03")

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprintf(w, `{
			%q: {"usd": 0.9998},
			%q: {"usd": 0.0125},
			%q: {"usd": -3},
			"not-an-address": {"usd": 1}
		}`, "0x0000000000000000000000000000000000000a01",
			"0x0000000000000000000000000000000000000a02",
			"0x0000000000000000000000000000000000000a03")
	}))
	defer server.Close()

	source := NewCoinGecko(server.URL, time.Millisecond, time.Second)

	prices, err := source.TokenPrices(context.Background(), []common.Address{usdc, degen, junk})
	require.NoError(t, err)

	assert.Equal(t, 0.9998, prices[usdc])
	assert.Equal(t, 0.0125, prices[degen])

	// Non-positive prices and malformed keys are dropped, not errored.
	_, ok := prices[junk]
	assert.False(t, ok)
	assert.Len(t, prices, 2)
}

func TestCoinGecko_TokenPrices_ErrorStatus(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
	}))
	defer server.Close()

	source := NewCoinGecko(server.URL, time.Millisecond, time.Second)

	_, err := source.TokenPrices(context.Background(), []common.Address{common.HexToAddress("0x01")})
	require.ErrorIs(t, err, ErrUnexpectedStatus)
}

func TestCoinGecko_TokenPrices_EmptyBatch(t *testing.T) {
	source := NewCoinGecko("http://unreachable.invalid", time.Millisecond, time.Second)

	_, err := source.TokenPrices(context.Background(), nil)
	require.ErrorIs(t, err, ErrEmptyBatch)
}

func TestCoinGecko_NativePrice_Decodes(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"ethereum": {"usd": 3000.5}}`)
	}))
	defer server.Close()

	source := NewCoinGecko(server.URL, time.Millisecond, time.Second)

	price, err := source.NativePrice(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 3000.5, price)
}

func TestCoinGecko_NativePrice_RejectsNonPositive(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"ethereum": {"usd": 0}}`)
	}))
	defer server.Close()

	source := NewCoinGecko(server.URL, time.Millisecond, time.Second)

	_, err := source.NativePrice(context.Background())
	require.Error(t, err)
}

func TestCoinGecko_RateGateSpacesCalls(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{}`)
	}))
	defer server.Close()

	const minInterval = 50 * time.Millisecond
	source := NewCoinGecko(server.URL, minInterval, time.Second)
	addrs := []common.Address{common.HexToAddress("0x01")}

	start := time.Now()
	_, err := source.TokenPrices(context.Background(), addrs)
	require.NoError(t, err)
	_, err = source.TokenPrices(context.Background(), addrs)
	require.NoError(t, err)

	// The second call must wait out the inter-call interval, not double-fire.
	assert.GreaterOrEqual(t, time.Since(start), minInterval)
}
