/*

This file contains the default operating parameters for the allocation engine.

These values mirror the production vending behavior: a purchased tier is split
between sponsor and non-sponsor tokens, prices are cached for five minutes, and
both price sources are throttled to stay inside their public rate limits.

*/

package config

import (
	"time"

	"github.com/0xedev/vendyz-backend/internal/types"
)

// DefaultAllocationParameters provides the baseline engine configuration.
var DefaultAllocationParameters = types.AllocationParameters{
	SponsorShare: 0.5, // Half of every tier goes to sponsor-designated tokens.
	// Sponsors pay for placement; the other half keeps bundles diverse.

	MaxOtherTokens: 3, // At most 3 random non-sponsor tokens per bundle.

	VarianceTolerance: 0.05, // Flag selections whose realized value drifts >5% from target.
	// Advisory only: out-of-tolerance selections are logged, never rejected.

	PriceTTL: 5 * time.Minute,

	RefreshInterval: 5 * time.Minute,

	PrimaryMinInterval: 2 * time.Second, // CoinGecko free tier allows ~30 calls/min.

	FallbackMinInterval: 250 * time.Millisecond, // DexScreener allows 300 calls/min.

	SourceTimeout: 10 * time.Second,

	CredentialTTL: 24 * time.Hour, // Claim window before encrypted credentials are purged.
}

// TierValues maps purchase tiers to their target USD value. The vending
// contract emits the tier name; the USD value is resolved here.
var TierValues = map[string]float64{
	"starter": 1.0,
	"bronze":  5.0,
	"silver":  10.0,
	"gold":    25.0,
	"degen":   100.0,
}
