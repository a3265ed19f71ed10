/*

Treasury snapshot: the composite per-token view the allocation engine reads.

Refresh walks the fixed watch-list, reads balances, resolves symbol/decimals
for funded tokens, prices them through the cache, and publishes one immutable
Snapshot atomically. Readers always see a complete snapshot from a single
refresh cycle, never a mix of two.

*/

package treasury

import (
	"context"
	"errors"
	"sync/atomic"
	"time"

	"github.com/0xedev/vendyz-backend/internal/logger"
	"github.com/0xedev/vendyz-backend/internal/observability"
	"github.com/0xedev/vendyz-backend/internal/pricing"
	"github.com/0xedev/vendyz-backend/internal/types"
	"github.com/ethereum/go-ethereum/common"
)

var ErrAllBalanceReadsFailed = errors.New("every treasury balance read failed")

// NativeSymbol is the display symbol of the native pseudo-token.
const NativeSymbol = "ETH"

// NativeDecimals is the native coin's decimal base (wei).
const NativeDecimals = 18

// Snapshot is one immutable view of the treasury. Tokens holds only funded
// watch-list tokens; Native is the first-class native-coin pseudo-token and is
// present in every snapshot regardless of balance.
type Snapshot struct {
	Tokens  map[common.Address]types.TokenRecord
	order   []common.Address // funded tokens in watch-list order
	Native  types.TokenRecord
	TakenAt time.Time
}

// Records returns the snapshot's available token records in watch-list order,
// with the native pseudo-token appended last when it is funded.
func (s *Snapshot) Records() []types.TokenRecord {
	records := make([]types.TokenRecord, 0, len(s.order)+1)
	for _, addr := range s.order {
		records = append(records, s.Tokens[addr])
	}
	if !s.Native.TreasuryBalance.IsNil() && s.Native.TreasuryBalance.IsPositive() {
		records = append(records, s.Native)
	}
	return records
}

// Manager owns the current snapshot and refreshes it on a fixed period.
type Manager struct {
	reader    Reader
	prices    *pricing.Cache
	treasury  common.Address
	watchList []common.Address
	interval  time.Duration

	current atomic.Pointer[Snapshot]
	now     func() time.Time
	metrics *observability.Metrics // optional
}

// NewManager builds a snapshot manager over a balance reader and price cache.
func NewManager(reader Reader, prices *pricing.Cache, treasury common.Address, watchList []common.Address, interval time.Duration) *Manager {
	return &Manager{
		reader:    reader,
		prices:    prices,
		treasury:  treasury,
		watchList: watchList,
		interval:  interval,
		now:       time.Now,
	}
}

// SetMetrics attaches Prometheus instruments to the manager. Must be called
// before Run.
func (m *Manager) SetMetrics(metrics *observability.Metrics) {
	m.metrics = metrics
}

// Current returns the latest published snapshot, or nil before the first
// successful refresh. Snapshots are immutable once published.
func (m *Manager) Current() *Snapshot {
	return m.current.Load()
}

// Refresh rebuilds the snapshot from scratch and publishes it atomically.
// Safe to invoke concurrently with readers of the previous snapshot.
func (m *Manager) Refresh(ctx context.Context) error {
	snapLogger := logger.GetForComponent("treasury_snapshot")
	start := m.now()

	tokens := make(map[common.Address]types.TokenRecord, len(m.watchList))
	var order []common.Address
	balanceFailures := 0

	for _, token := range m.watchList {
		balance, err := m.reader.Balance(ctx, token, m.treasury)
		if err != nil {
			balanceFailures++
			snapLogger.Warn().
				Err(err).
				Str("token", token.Hex()).
				Msg("Balance read failed, excluding token from this snapshot")
			continue
		}
		if balance.IsZero() {
			snapLogger.Debug().
				Str("token", token.Hex()).
				Msg("Zero treasury balance, dropping token from snapshot")
			continue
		}

		symbol, decimals, err := m.reader.Metadata(ctx, token)
		if err != nil {
			snapLogger.Warn().
				Err(err).
				Str("token", token.Hex()).
				Msg("Metadata read failed, excluding token from this snapshot")
			continue
		}

		tokens[token] = types.TokenRecord{
			Address:         token,
			Symbol:          symbol,
			Decimals:        decimals,
			TreasuryBalance: balance,
			PriceOrigin:     types.PriceOriginNone,
		}
		order = append(order, token)
	}

	if balanceFailures == len(m.watchList) && len(m.watchList) > 0 {
		if m.metrics != nil {
			m.metrics.SnapshotRefreshes.WithLabelValues("failure").Inc()
		}
		return ErrAllBalanceReadsFailed
	}

	if len(order) > 0 {
		quotes, err := m.prices.Prices(ctx, order)
		if err != nil {
			// Snapshot still publishes: tokens stay unpriced and the engine's
			// fallback path handles them.
			snapLogger.Error().
				Err(err).
				Msg("Price refill failed for snapshot, tokens remain unpriced")
		}
		for _, addr := range order {
			record := tokens[addr]
			quote := quotes[addr]
			record.PriceUSD = quote.PriceUSD
			record.PriceOrigin = quote.Origin
			record.FetchedAt = quote.FetchedAt
			tokens[addr] = record
		}
	}

	native := types.TokenRecord{
		Symbol:      NativeSymbol,
		Decimals:    NativeDecimals,
		PriceOrigin: types.PriceOriginNone,
	}
	nativeBalance, err := m.reader.NativeBalance(ctx, m.treasury)
	if err != nil {
		snapLogger.Warn().
			Err(err).
			Msg("Native balance read failed, native pseudo-token unavailable this cycle")
	} else {
		native.TreasuryBalance = nativeBalance
		quote, err := m.prices.NativePrice(ctx)
		if err != nil {
			snapLogger.Warn().Err(err).Msg("Native coin price unavailable")
		}
		native.PriceUSD = quote.PriceUSD
		native.PriceOrigin = quote.Origin
		native.FetchedAt = quote.FetchedAt
	}

	snapshot := &Snapshot{
		Tokens:  tokens,
		order:   order,
		Native:  native,
		TakenAt: m.now(),
	}
	m.current.Store(snapshot)

	if m.metrics != nil {
		m.metrics.SnapshotRefreshes.WithLabelValues("success").Inc()
		m.metrics.SnapshotRefreshDuration.Observe(m.now().Sub(start).Seconds())
		m.metrics.SnapshotTokens.Set(float64(len(snapshot.Records())))
	}

	snapLogger.Info().
		Int("watchList", len(m.watchList)).
		Int("funded", len(order)).
		Int("balanceFailures", balanceFailures).
		Dur("elapsed", m.now().Sub(start)).
		Msg("Treasury snapshot published")

	return nil
}

// Run refreshes immediately, then on every tick until the context ends.
func (m *Manager) Run(ctx context.Context) {
	runLogger := logger.GetForComponent("treasury_snapshot")

	if err := m.Refresh(ctx); err != nil {
		runLogger.Error().Err(err).Msg("Initial treasury snapshot refresh failed")
	}

	ticker := time.NewTicker(m.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			runLogger.Info().Msg("Treasury snapshot loop stopped")
			return
		case <-ticker.C:
			if err := m.Refresh(ctx); err != nil {
				runLogger.Error().Err(err).Msg("Treasury snapshot refresh failed")
			}
		}
	}
}
