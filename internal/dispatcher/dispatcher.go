/*
Package dispatcher wires a tier purchase through the full delivery
pipeline: wallet generation, credential storage, token selection,
persistence and on-chain funding.

One purchase is one pipeline run. Steps after the allocation is computed
are best-effort: a failed database write or funding transaction is logged
and counted, but never rolls back earlier steps, so a buyer can always be
made whole manually from the logs.
*/
package dispatcher

import (
	"context"
	"fmt"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/rs/zerolog"

	"github.com/0xedev/vendyz-backend/internal/allocator"
	"github.com/0xedev/vendyz-backend/internal/config"
	"github.com/0xedev/vendyz-backend/internal/events"
	"github.com/0xedev/vendyz-backend/internal/logger"
	"github.com/0xedev/vendyz-backend/internal/observability"
	"github.com/0xedev/vendyz-backend/internal/state"
	"github.com/0xedev/vendyz-backend/internal/types"
	"github.com/0xedev/vendyz-backend/internal/wallet"
)

// SnapshotSource yields the latest treasury view.
type SnapshotSource interface {
	Records() []types.TokenRecord
}

// SponsorSource yields the current sponsor set.
type SponsorSource interface {
	Current() types.SponsorSet
}

// Funder submits the on-chain delivery for an allocation.
type Funder interface {
	Fund(ctx context.Context, recipient common.Address, result *types.AllocationResult) (common.Hash, error)
}

// Dispatcher runs the purchase pipeline.
type Dispatcher struct {
	logger    zerolog.Logger
	snapshots func() SnapshotSource
	sponsors  SponsorSource
	engine    *allocator.Engine
	cipher    *wallet.Cipher
	funder    Funder
	metrics   *observability.Metrics
}

// Config holds the dependencies for a new Dispatcher.
type Config struct {
	// Snapshots returns the current treasury snapshot, or nil when none
	// has been taken yet.
	Snapshots func() SnapshotSource
	Sponsors  SponsorSource
	Engine    *allocator.Engine
	Cipher    *wallet.Cipher
	Funder    Funder
	Metrics   *observability.Metrics
}

// NewDispatcher validates the wiring and returns a ready dispatcher.
func NewDispatcher(cfg Config) (*Dispatcher, error) {
	if err := validateConfig(cfg); err != nil {
		return nil, fmt.Errorf("dispatcher configuration validation failed: %w", err)
	}
	return &Dispatcher{
		logger:    logger.GetForComponent("dispatcher"),
		snapshots: cfg.Snapshots,
		sponsors:  cfg.Sponsors,
		engine:    cfg.Engine,
		cipher:    cfg.Cipher,
		funder:    cfg.Funder,
		metrics:   cfg.Metrics,
	}, nil
}

func validateConfig(cfg Config) error {
	if cfg.Snapshots == nil {
		return fmt.Errorf("snapshot source cannot be nil")
	}
	if cfg.Sponsors == nil {
		return fmt.Errorf("sponsor source cannot be nil")
	}
	if cfg.Engine == nil {
		return fmt.Errorf("allocation engine cannot be nil")
	}
	if cfg.Cipher == nil {
		return fmt.Errorf("credential cipher cannot be nil")
	}
	if cfg.Funder == nil {
		return fmt.Errorf("funder cannot be nil")
	}
	if cfg.Metrics == nil {
		return fmt.Errorf("metrics cannot be nil")
	}
	return nil
}

// HandlePurchase runs the pipeline for one decoded purchase event. It is
// the callback registered on the event listener.
func (d *Dispatcher) HandlePurchase(ctx context.Context, ev events.PurchaseEvent) {
	start := time.Now()
	log := d.logger.With().
		Str("buyer", ev.Buyer.Hex()).
		Str("tier", ev.Tier).
		Str("purchase_tx", ev.TxHash.Hex()).
		Logger()

	log.Info().Msg("--- Processing tier purchase ---")

	// --- Step 1: Tier lookup ---
	targetValue, ok := config.TierValues[ev.Tier]
	if !ok {
		log.Error().Msg("Purchase references unknown tier, skipping")
		d.metrics.AllocationsTotal.WithLabelValues(ev.Tier, "unknown_tier").Inc()
		return
	}

	// --- Step 2: Treasury snapshot ---
	snap := d.snapshots()
	if snap == nil {
		log.Error().Msg("No treasury snapshot available yet, skipping purchase")
		d.metrics.AllocationsTotal.WithLabelValues(ev.Tier, "no_snapshot").Inc()
		return
	}
	records := snap.Records()
	log.Info().Int("treasury_tokens", len(records)).Msg("Step 2: Treasury snapshot loaded")

	// --- Step 3: Token selection ---
	result, err := d.engine.SelectTokens(types.AllocationRequest{
		Tier:           ev.Tier,
		TargetValueUSD: targetValue,
	}, records, d.sponsors.Current())
	if err != nil {
		log.Error().Err(err).Msg("Pipeline aborted: token selection failed")
		d.metrics.AllocationsTotal.WithLabelValues(ev.Tier, "selection_failed").Inc()
		return
	}
	log.Info().
		Str("allocation_id", result.ID.String()).
		Int("lines", len(result.Lines)).
		Float64("realized_usd", result.RealizedValueUSD).
		Float64("variance", result.VarianceFromTarget).
		Msg("Step 3: Allocation computed")

	recordsByAddr := make(map[common.Address]types.TokenRecord, len(records))
	for _, r := range records {
		recordsByAddr[r.Address] = r
	}
	check := allocator.ValidateValue(result.Lines, recordsByAddr)
	if check.TotalValueUSD != result.RealizedValueUSD {
		log.Warn().
			Float64("realized", result.RealizedValueUSD).
			Float64("revalued", check.TotalValueUSD).
			Msg("Allocation value drifted between selection and validation")
	}

	// --- Step 4: Buyer wallet ---
	w, err := wallet.Generate()
	if err != nil {
		log.Error().Err(err).Msg("Pipeline aborted: wallet generation failed")
		d.metrics.AllocationsTotal.WithLabelValues(ev.Tier, "wallet_failed").Inc()
		return
	}
	secret, err := d.cipher.Encrypt([]byte(w.Mnemonic))
	if err != nil {
		log.Error().Err(err).Msg("Pipeline aborted: credential encryption failed")
		d.metrics.AllocationsTotal.WithLabelValues(ev.Tier, "wallet_failed").Inc()
		return
	}
	expiresAt := time.Now().UTC().Add(config.DefaultAllocationParameters.CredentialTTL)
	if err := state.SaveCredential(w.Address, secret, expiresAt); err != nil {
		log.Error().Err(err).Msg("Pipeline aborted: credential storage failed")
		d.metrics.AllocationsTotal.WithLabelValues(ev.Tier, "wallet_failed").Inc()
		return
	}
	log.Info().Str("wallet", w.Address.Hex()).Time("credential_expires", expiresAt).Msg("Step 4: Buyer wallet provisioned")

	// --- Step 5: Persistence ---
	if err := state.SaveAllocation(*result, ev.Buyer); err != nil {
		log.Error().Err(err).Str("allocation_id", result.ID.String()).Msg("Failed to persist allocation, continuing to funding")
	}

	// --- Step 6: Funding ---
	txHash, err := d.funder.Fund(ctx, w.Address, result)
	if err != nil {
		log.Error().Err(err).Str("allocation_id", result.ID.String()).Msg("Funding transaction failed")
		d.metrics.AllocationsTotal.WithLabelValues(ev.Tier, "funding_failed").Inc()
		return
	}

	d.metrics.AllocationsTotal.WithLabelValues(ev.Tier, "success").Inc()
	d.metrics.AllocationVariance.Observe(result.VarianceFromTarget)
	d.metrics.AllocationLines.Observe(float64(len(result.Lines)))

	log.Info().
		Str("allocation_id", result.ID.String()).
		Str("funding_tx", txHash.Hex()).
		Str("duration", time.Since(start).String()).
		Msg("--- Purchase processed successfully ---")
}
