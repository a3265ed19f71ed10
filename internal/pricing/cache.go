/*

This file implements the TTL price cache that sits between the treasury
snapshot and the two upstream price sources.

Lookup order: cache hit inside the TTL, then one primary batch call for every
missing identifier, then one fallback call per identifier the primary left
unpriced. An identifier both sources fail on is recorded at price zero with
origin "none" so callers can tell "unpriceable" from "free". The cache never
errors over a single unpriceable token; it errors only when every identifier
in a refill failed on both sources.

*/

package pricing

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/0xedev/vendyz-backend/internal/logger"
	"github.com/0xedev/vendyz-backend/internal/observability"
	"github.com/0xedev/vendyz-backend/internal/types"
	"github.com/ethereum/go-ethereum/common"
)

var cacheLogger = logger.GetForComponent("price_cache")

// ErrAllSourcesFailed signals total transport failure: both sources errored
// for every identifier in a refill. Callers surface this as selection failure.
var ErrAllSourcesFailed = errors.New("all price sources failed for every requested token")

// nativeKey is the reserved cache slot for the chain's native coin.
var nativeKey = common.Address{}

type cacheEntry struct {
	priceUSD  float64
	origin    types.PriceOrigin
	fetchedAt time.Time
}

// CacheStats reports cache occupancy without forcing a refresh.
type CacheStats struct {
	Live    int `json:"live"`
	Expired int `json:"expired"`
}

// Cache is a TTL-bounded price cache with primary/fallback failover.
type Cache struct {
	primary  BatchSource
	fallback SingleSource
	ttl      time.Duration

	now     func() time.Time
	metrics *observability.Metrics // optional

	mu      sync.Mutex
	entries map[common.Address]cacheEntry
}

// NewCache builds a price cache over the two sources. ttl bounds how long a
// fetched price is served without a new upstream call.
func NewCache(primary BatchSource, fallback SingleSource, ttl time.Duration) *Cache {
	return &Cache{
		primary:  primary,
		fallback: fallback,
		ttl:      ttl,
		now:      time.Now,
		entries:  make(map[common.Address]cacheEntry),
	}
}

// SetMetrics attaches Prometheus instruments to the cache. Must be called
// before the first lookup.
func (c *Cache) SetMetrics(m *observability.Metrics) {
	c.metrics = m
}

func (c *Cache) countFetch(source, outcome string) {
	if c.metrics != nil {
		c.metrics.PriceFetches.WithLabelValues(source, outcome).Inc()
	}
}

// Price returns the USD quote for one token contract, fetching on miss or expiry.
func (c *Cache) Price(ctx context.Context, addr common.Address) (Quote, error) {
	quotes, err := c.Prices(ctx, []common.Address{addr})
	if err != nil {
		return Quote{}, err
	}
	return quotes[addr], nil
}

// Prices returns USD quotes for a batch of token contracts. Cached entries are
// served directly; the rest are refilled with primary-then-fallback failover.
// The returned map always covers every requested identifier.
func (c *Cache) Prices(ctx context.Context, addrs []common.Address) (map[common.Address]Quote, error) {
	quotes := make(map[common.Address]Quote, len(addrs))

	c.mu.Lock()
	now := c.now()
	var missing []common.Address
	for _, addr := range addrs {
		if _, done := quotes[addr]; done {
			continue
		}
		if entry, ok := c.entries[addr]; ok && now.Sub(entry.fetchedAt) < c.ttl {
			quotes[addr] = Quote{
				PriceUSD:  entry.priceUSD,
				Origin:    entry.origin,
				FetchedAt: entry.fetchedAt,
				FromCache: true,
			}
			continue
		}
		missing = append(missing, addr)
	}
	c.mu.Unlock()

	if c.metrics != nil {
		c.metrics.PriceCacheHits.Add(float64(len(quotes)))
		c.metrics.PriceCacheMisses.Add(float64(len(missing)))
	}

	if len(missing) == 0 {
		return quotes, nil
	}

	fetched, err := c.refill(ctx, missing)

	c.mu.Lock()
	fetchedAt := c.now()
	for addr, entry := range fetched {
		entry.fetchedAt = fetchedAt
		c.entries[addr] = entry
		quotes[addr] = Quote{
			PriceUSD:  entry.priceUSD,
			Origin:    entry.origin,
			FetchedAt: entry.fetchedAt,
			FromCache: false,
		}
	}
	c.mu.Unlock()

	return quotes, err
}

// refill resolves prices for identifiers the cache could not serve: one
// primary batch call, then one fallback call per identifier still unpriced.
// Every requested identifier gets an entry; unpriceable ones get zero/none.
func (c *Cache) refill(ctx context.Context, missing []common.Address) (map[common.Address]cacheEntry, error) {
	fetched := make(map[common.Address]cacheEntry, len(missing))

	primaryPrices, primaryErr := c.primary.TokenPrices(ctx, missing)
	if primaryErr != nil {
		c.countFetch(c.primary.Name(), "error")
		cacheLogger.Warn().
			Err(primaryErr).
			Str("source", c.primary.Name()).
			Int("tokens", len(missing)).
			Msg("Primary price source failed, falling back per token")
	} else {
		c.countFetch(c.primary.Name(), "success")
	}

	var unresolved []common.Address
	for _, addr := range missing {
		if price, ok := primaryPrices[addr]; ok && price > 0 {
			fetched[addr] = cacheEntry{priceUSD: price, origin: types.PriceOriginPrimary}
			continue
		}
		unresolved = append(unresolved, addr)
	}

	fallbackFailures := 0
	for _, addr := range unresolved {
		price, err := c.fallback.TokenPrice(ctx, addr)
		if err != nil || price <= 0 {
			if err != nil {
				fallbackFailures++
				c.countFetch(c.fallback.Name(), "error")
				cacheLogger.Warn().
					Err(err).
					Str("source", c.fallback.Name()).
					Str("token", addr.Hex()).
					Msg("Fallback price source failed for token")
			}
			cacheLogger.Warn().
				Str("token", addr.Hex()).
				Msg("Token unpriceable by both sources, recording zero price")
			fetched[addr] = cacheEntry{priceUSD: 0, origin: types.PriceOriginNone}
			continue
		}
		c.countFetch(c.fallback.Name(), "success")
		fetched[addr] = cacheEntry{priceUSD: price, origin: types.PriceOriginFallback}
	}

	if primaryErr != nil && len(unresolved) == len(missing) && fallbackFailures == len(unresolved) {
		return fetched, fmt.Errorf("%w: primary: %v", ErrAllSourcesFailed, primaryErr)
	}

	return fetched, nil
}

// NativePrice returns the USD quote for the chain's native coin, cached under
// a reserved key with the same TTL and failover discipline as token prices.
func (c *Cache) NativePrice(ctx context.Context) (Quote, error) {
	c.mu.Lock()
	now := c.now()
	if entry, ok := c.entries[nativeKey]; ok && now.Sub(entry.fetchedAt) < c.ttl {
		c.mu.Unlock()
		return Quote{
			PriceUSD:  entry.priceUSD,
			Origin:    entry.origin,
			FetchedAt: entry.fetchedAt,
			FromCache: true,
		}, nil
	}
	c.mu.Unlock()

	entry := cacheEntry{origin: types.PriceOriginNone}
	var totalErr error

	price, primaryErr := c.primary.NativePrice(ctx)
	if primaryErr == nil && price > 0 {
		entry = cacheEntry{priceUSD: price, origin: types.PriceOriginPrimary}
	} else {
		if primaryErr != nil {
			cacheLogger.Warn().
				Err(primaryErr).
				Str("source", c.primary.Name()).
				Msg("Primary source failed for native coin price")
		}
		price, fallbackErr := c.fallback.NativePrice(ctx)
		if fallbackErr == nil && price > 0 {
			entry = cacheEntry{priceUSD: price, origin: types.PriceOriginFallback}
		} else if primaryErr != nil && fallbackErr != nil {
			totalErr = fmt.Errorf("%w: primary: %v, fallback: %v", ErrAllSourcesFailed, primaryErr, fallbackErr)
		}
	}

	c.mu.Lock()
	entry.fetchedAt = c.now()
	c.entries[nativeKey] = entry
	c.mu.Unlock()

	return Quote{
		PriceUSD:  entry.priceUSD,
		Origin:    entry.origin,
		FetchedAt: entry.fetchedAt,
		FromCache: false,
	}, totalErr
}

// Clear empties the cache. Used for tests and manual refresh.
func (c *Cache) Clear() {
	c.mu.Lock()
	c.entries = make(map[common.Address]cacheEntry)
	c.mu.Unlock()
}

// Stats reports live vs. expired entry counts without triggering any fetch.
func (c *Cache) Stats() CacheStats {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.now()
	var stats CacheStats
	for _, entry := range c.entries {
		if now.Sub(entry.fetchedAt) < c.ttl {
			stats.Live++
		} else {
			stats.Expired++
		}
	}
	return stats
}
