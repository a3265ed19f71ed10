/*

Token selection engine: turns a tier's target USD value into a concrete bundle
of treasury tokens and native amounts.

The target is split between sponsor-designated tokens and a random draw of the
remaining holdings. All USD arithmetic is float64; the final native amounts are
floored arbitrary-precision integers and are never allowed to exceed the
treasury balance recorded in the snapshot.

Sponsor budget policy: when the sponsor pass produces no lines (no sponsors
designated, or none of them priced and funded), the unused sponsor budget is
redirected into the non-sponsor budget rather than dropped, so the bundle still
targets the full tier value.

*/

package allocator

import (
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/0xedev/vendyz-backend/internal/logger"
	"github.com/0xedev/vendyz-backend/internal/types"
	"github.com/0xedev/vendyz-backend/internal/utils"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// Error definitions for zero-tolerance error handling
var (
	ErrNoTreasuryTokens   = errors.New("treasury holds no tokens to allocate")
	ErrInvalidTargetValue = errors.New("target value must be positive and finite")
	ErrInvalidParameters  = errors.New("allocation parameters contain invalid values")
)

// Engine selects tokens for a tier. It holds no mutable state: every selection
// is a pure function of the request, the snapshot records, and the sponsor set,
// modulo the injected random draw.
type Engine struct {
	params types.AllocationParameters
	picker Picker
	logger zerolog.Logger
}

// NewEngine builds a selection engine with the given parameters and draw.
func NewEngine(params types.AllocationParameters, picker Picker) (*Engine, error) {
	if err := validateParameters(params); err != nil {
		return nil, err
	}
	if picker == nil {
		return nil, errors.New("picker cannot be nil")
	}
	return &Engine{
		params: params,
		picker: picker,
		logger: logger.GetForComponent("allocation_engine"),
	}, nil
}

func validateParameters(params types.AllocationParameters) error {
	if params.SponsorShare < 0 || params.SponsorShare > 1 || math.IsNaN(params.SponsorShare) {
		return fmt.Errorf("%w: sponsor share %f", ErrInvalidParameters, params.SponsorShare)
	}
	if params.MaxOtherTokens <= 0 {
		return fmt.Errorf("%w: max other tokens %d", ErrInvalidParameters, params.MaxOtherTokens)
	}
	if params.VarianceTolerance < 0 || math.IsNaN(params.VarianceTolerance) {
		return fmt.Errorf("%w: variance tolerance %f", ErrInvalidParameters, params.VarianceTolerance)
	}
	return nil
}

// SelectTokens produces the allocation for one request from the given snapshot
// records (watch-list order, balance > 0) and sponsor set. It never
// over-allocates past a record's treasury balance; tokens without a usable
// price never receive a positive allocation.
func (e *Engine) SelectTokens(req types.AllocationRequest, records []types.TokenRecord, sponsors types.SponsorSet) (*types.AllocationResult, error) {
	if req.TargetValueUSD <= 0 || math.IsNaN(req.TargetValueUSD) || math.IsInf(req.TargetValueUSD, 0) {
		return nil, fmt.Errorf("%w: %f", ErrInvalidTargetValue, req.TargetValueUSD)
	}
	if len(records) == 0 {
		return nil, ErrNoTreasuryTokens
	}

	var sponsored, nonSponsored []types.TokenRecord
	for _, record := range records {
		if sponsors.Contains(record.Address) {
			sponsored = append(sponsored, record)
		} else {
			nonSponsored = append(nonSponsored, record)
		}
	}

	sponsorBudget := req.TargetValueUSD * e.params.SponsorShare
	otherBudget := req.TargetValueUSD - sponsorBudget

	var lines []types.AllocationLine

	// Sponsor pass: equal split across every priced sponsored record.
	sponsorLines := e.allocateEvenly(sponsorBudget, pricedRecords(sponsored))
	if len(sponsorLines) == 0 && sponsorBudget > 0 {
		e.logger.Debug().
			Str("tier", req.Tier).
			Float64("sponsorBudget", sponsorBudget).
			Int("sponsoredCandidates", len(sponsored)).
			Msg("Sponsor pass allocated nothing, redirecting sponsor budget")
		otherBudget += sponsorBudget
	}
	lines = append(lines, sponsorLines...)

	// Other pass: random draw without replacement across priced non-sponsored records.
	picked := e.picker.Pick(pricedRecords(nonSponsored), e.params.MaxOtherTokens)
	lines = append(lines, e.allocateEvenly(otherBudget, picked)...)

	// Fallback: nothing allocated at all, fund the request from the single
	// deepest holding rather than returning an empty bundle.
	if len(lines) == 0 {
		line, ok := e.fallbackLine(req.TargetValueUSD, records)
		if !ok {
			return nil, ErrNoTreasuryTokens
		}
		lines = append(lines, line)
	}

	realized := 0.0
	for _, line := range lines {
		realized += line.ValueUSD
	}
	variance := (realized - req.TargetValueUSD) / req.TargetValueUSD

	if math.Abs(variance) > e.params.VarianceTolerance {
		e.logger.Warn().
			Str("tier", req.Tier).
			Float64("targetUSD", req.TargetValueUSD).
			Float64("realizedUSD", realized).
			Float64("variance", variance).
			Msg("Allocation variance outside tolerance, returning anyway")
	}

	result := &types.AllocationResult{
		ID:                 uuid.New(),
		Tier:               req.Tier,
		Lines:              lines,
		TargetValueUSD:     req.TargetValueUSD,
		RealizedValueUSD:   realized,
		VarianceFromTarget: variance,
		CreatedAt:          time.Now().UTC(),
	}

	e.logger.Info().
		Str("allocationID", result.ID.String()).
		Str("tier", req.Tier).
		Int("lines", len(lines)).
		Float64("targetUSD", req.TargetValueUSD).
		Float64("realizedUSD", realized).
		Float64("variance", variance).
		Msg("Token selection completed")

	return result, nil
}

// allocateEvenly splits budget equally across the given records and builds one
// line per record, clamping each amount to the treasury balance.
func (e *Engine) allocateEvenly(budget float64, records []types.TokenRecord) []types.AllocationLine {
	if budget <= 0 || len(records) == 0 {
		return nil
	}

	valuePer := budget / float64(len(records))
	lines := make([]types.AllocationLine, 0, len(records))
	for _, record := range records {
		if line, ok := e.buildLine(record, valuePer); ok {
			lines = append(lines, line)
		}
	}
	return lines
}

// buildLine converts a USD value into a native-amount line for one record.
// Amounts above the treasury balance are clamped and flagged as partial;
// zero amounts produce no line.
func (e *Engine) buildLine(record types.TokenRecord, valueUSD float64) (types.AllocationLine, bool) {
	amount, err := utils.AmountForValue(valueUSD, record.PriceUSD, record.Decimals)
	if err != nil {
		e.logger.Warn().
			Err(err).
			Str("token", record.Symbol).
			Float64("valueUSD", valueUSD).
			Msg("Amount conversion failed, skipping token")
		return types.AllocationLine{}, false
	}

	partial := false
	if amount.GT(record.TreasuryBalance) {
		e.logger.Warn().
			Str("token", record.Symbol).
			Str("computed", amount.String()).
			Str("balance", record.TreasuryBalance.String()).
			Msg("Computed amount exceeds treasury balance, clamping")
		amount = record.TreasuryBalance
		partial = true
	}

	if amount.IsZero() {
		return types.AllocationLine{}, false
	}

	humanAmount, err := utils.NativeToFloat(amount, record.Decimals)
	if err != nil {
		e.logger.Warn().
			Err(err).
			Str("token", record.Symbol).
			Msg("Amount valuation failed, skipping token")
		return types.AllocationLine{}, false
	}

	return types.AllocationLine{
		Address:      record.Address,
		Symbol:       record.Symbol,
		AmountNative: amount,
		ValueUSD:     humanAmount * record.PriceUSD,
		Partial:      partial,
	}, true
}

// fallbackLine funds the request from the single highest-value holding. When
// no record is priced, the first record in watch-list order is allocated in
// full, since a target-equivalent amount cannot be computed without a price.
func (e *Engine) fallbackLine(targetUSD float64, records []types.TokenRecord) (types.AllocationLine, bool) {
	var best *types.TokenRecord
	bestValue := 0.0
	for i := range records {
		record := records[i]
		if !record.IsPriced() || record.TreasuryBalance.IsNil() || !record.TreasuryBalance.IsPositive() {
			continue
		}
		if value := record.BalanceUSD(); best == nil || value > bestValue {
			best = &records[i]
			bestValue = value
		}
	}

	if best != nil {
		e.logger.Warn().
			Str("token", best.Symbol).
			Float64("targetUSD", targetUSD).
			Msg("No lines from sponsor or random passes, falling back to deepest holding")
		return e.buildLine(*best, targetUSD)
	}

	for _, record := range records {
		if record.TreasuryBalance.IsNil() || !record.TreasuryBalance.IsPositive() {
			continue
		}
		e.logger.Warn().
			Str("token", record.Symbol).
			Msg("No priced holdings at all, allocating full balance of first watch-list token")
		return types.AllocationLine{
			Address:      record.Address,
			Symbol:       record.Symbol,
			AmountNative: record.TreasuryBalance,
			ValueUSD:     0,
			Partial:      true,
		}, true
	}

	return types.AllocationLine{}, false
}

// pricedRecords filters to records that can legitimately receive an allocation.
func pricedRecords(records []types.TokenRecord) []types.TokenRecord {
	var priced []types.TokenRecord
	for _, record := range records {
		if record.IsPriced() && !record.TreasuryBalance.IsNil() && record.TreasuryBalance.IsPositive() {
			priced = append(priced, record)
		}
	}
	return priced
}
