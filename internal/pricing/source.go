/*

Price source contracts for the allocation engine.

The primary source prices a whole batch of token contracts in one call; the
fallback prices one token at a time. Every adapter owns its own rate gate: a
caller blocks until the source's minimum inter-call interval has elapsed, it is
never dropped. A call that exceeds its timeout counts as a source failure and
drives failover, it is never left pending.

*/

package pricing

import (
	"context"
	"time"

	"github.com/0xedev/vendyz-backend/internal/types"
	"github.com/ethereum/go-ethereum/common"
)

// BatchSource prices many token contracts in a single upstream call.
type BatchSource interface {
	Name() string
	TokenPrices(ctx context.Context, addrs []common.Address) (map[common.Address]float64, error)
	NativePrice(ctx context.Context) (float64, error)
}

// SingleSource prices one token contract per upstream call.
type SingleSource interface {
	Name() string
	TokenPrice(ctx context.Context, addr common.Address) (float64, error)
	NativePrice(ctx context.Context) (float64, error)
}

// Quote is a priced lookup result as served by the cache.
type Quote struct {
	PriceUSD  float64           `json:"price_usd"`
	Origin    types.PriceOrigin `json:"origin"`
	FetchedAt time.Time         `json:"fetched_at"`
	FromCache bool              `json:"from_cache"`
}

// Usable reports whether the quote carries a real market price. A zero price
// means both sources failed and the token is unpriceable, not free.
func (q Quote) Usable() bool {
	return q.PriceUSD > 0
}
