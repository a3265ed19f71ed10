/*

Shared token state for the allocation engine. A TokenRecord combines the
treasury's held balance with the most recent USD price for one watched token.

*/

package types

import (
	"time"

	sdkmath "cosmossdk.io/math"
	"github.com/ethereum/go-ethereum/common"
)

// PriceOrigin identifies which upstream answered a price request.
type PriceOrigin string

const (
	PriceOriginPrimary  PriceOrigin = "primary"
	PriceOriginFallback PriceOrigin = "fallback"
	PriceOriginNone     PriceOrigin = "none"
)

// TokenRecord is one treasury holding with its current price attached.
// PriceUSD == 0 means the token is unpriced and must never receive a
// positive allocation.
type TokenRecord struct {
	Address         common.Address `json:"address"`
	Symbol          string         `json:"symbol"`           // e.g., "USDC"
	Decimals        uint8          `json:"decimals"`         // e.g., 6
	TreasuryBalance sdkmath.Int    `json:"treasury_balance"` // native smallest units
	PriceUSD        float64        `json:"price_usd"`
	PriceOrigin     PriceOrigin    `json:"price_origin"`
	FetchedAt       time.Time      `json:"fetched_at"`
}

// IsPriced reports whether the record carries a usable market price.
func (t TokenRecord) IsPriced() bool {
	return t.PriceUSD > 0
}

// BalanceUSD returns the USD value of the full treasury balance.
// Unpriced tokens value to zero.
func (t TokenRecord) BalanceUSD() float64 {
	if !t.IsPriced() || t.TreasuryBalance.IsNil() {
		return 0
	}
	dec := sdkmath.LegacyNewDecFromInt(t.TreasuryBalance)
	factor := sdkmath.LegacyNewDec(10).Power(uint64(t.Decimals))
	bal, err := dec.Quo(factor).Float64()
	if err != nil {
		return 0
	}
	return bal * t.PriceUSD
}

// SponsorSet is the set of token addresses currently designated as sponsored.
// A failed registry fetch is represented as an empty set, never as an error.
type SponsorSet map[common.Address]struct{}

// NewSponsorSet builds a SponsorSet from a list of addresses.
func NewSponsorSet(addrs []common.Address) SponsorSet {
	set := make(SponsorSet, len(addrs))
	for _, addr := range addrs {
		set[addr] = struct{}{}
	}
	return set
}

// Contains reports sponsor membership.
func (s SponsorSet) Contains(addr common.Address) bool {
	_, ok := s[addr]
	return ok
}
