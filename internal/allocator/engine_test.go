package allocator

import (
	"testing"

	sdkmath "cosmossdk.io/math"
	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/0xedev/vendyz-backend/internal/types"
)

var (
	usdcAddr  = common.HexToAddress("0x833589fCD6eDb6E08f4c7C32D4f71b54bdA02913")
	degenAddr = common.HexToAddress("0x4ed4E862860beD51a9570b96d89aF5E1B0Efefed")
	tokAddr   = common.HexToAddress("0x0000000000000000000000000000000000000101")
)

func testParams() types.AllocationParameters {
	return types.AllocationParameters{
		SponsorShare:      0.5,
		MaxOtherTokens:    3,
		VarianceTolerance: 0.05,
	}
}

func newTestEngine(t *testing.T) *Engine {
	t.Helper()
	engine, err := NewEngine(testParams(), FirstNPicker{})
	require.NoError(t, err)
	return engine
}

func usdcRecord(balanceHuman int64) types.TokenRecord {
	return types.TokenRecord{
		Address:         usdcAddr,
		Symbol:          "USDC",
		Decimals:        6,
		TreasuryBalance: sdkmath.NewInt(balanceHuman).Mul(sdkmath.NewIntWithDecimal(1, 6)),
		PriceUSD:        1.0,
		PriceOrigin:     types.PriceOriginPrimary,
	}
}

func degenRecord() types.TokenRecord {
	return types.TokenRecord{
		Address:         degenAddr,
		Symbol:          "DEGEN",
		Decimals:        18,
		TreasuryBalance: sdkmath.NewInt(1_000_000_000).Mul(sdkmath.NewIntWithDecimal(1, 18)),
		PriceUSD:        0.001,
		PriceOrigin:     types.PriceOriginFallback,
	}
}

func TestSelectTokens_SingleUnsponsoredToken(t *testing.T) {
	engine := newTestEngine(t)

	result, err := engine.SelectTokens(types.AllocationRequest{
		Tier:           "degen",
		TargetValueUSD: 100,
	}, []types.TokenRecord{usdcRecord(10_000)}, types.SponsorSet{})
	require.NoError(t, err)

	require.Len(t, result.Lines, 1)
	line := result.Lines[0]
	assert.Equal(t, usdcAddr, line.Address)
	assert.Equal(t, "100000000", line.AmountNative.String())
	assert.False(t, line.Partial)
	assert.InDelta(t, 100.0, result.RealizedValueUSD, 1e-9)
	assert.InDelta(t, 0.0, result.VarianceFromTarget, 1e-9)
}

func TestSelectTokens_SponsorSplit(t *testing.T) {
	engine := newTestEngine(t)

	sponsors := types.NewSponsorSet([]common.Address{degenAddr})
	records := []types.TokenRecord{degenRecord(), usdcRecord(10_000)}

	result, err := engine.SelectTokens(types.AllocationRequest{
		Tier:           "degen",
		TargetValueUSD: 100,
	}, records, sponsors)
	require.NoError(t, err)

	require.Len(t, result.Lines, 2)

	degenLine := result.Lines[0]
	assert.Equal(t, degenAddr, degenLine.Address)
	// floor(50 / 0.001 * 1e18) = 50000 * 1e18, exactly.
	want := sdkmath.NewInt(50_000).Mul(sdkmath.NewIntWithDecimal(1, 18))
	assert.Equal(t, want.String(), degenLine.AmountNative.String())
	assert.False(t, degenLine.Partial)
	assert.InDelta(t, 50.0, degenLine.ValueUSD, 1e-9)

	usdcLine := result.Lines[1]
	assert.Equal(t, usdcAddr, usdcLine.Address)
	assert.Equal(t, "50000000", usdcLine.AmountNative.String())
	assert.InDelta(t, 50.0, usdcLine.ValueUSD, 1e-9)

	assert.InDelta(t, 100.0, result.RealizedValueUSD, 1e-9)
}

func TestSelectTokens_NoClampWhenBalanceCovers(t *testing.T) {
	engine := newTestEngine(t)

	// One whole token at $1000; $100 needs 0.1 token, well under balance.
	record := types.TokenRecord{
		Address:         tokAddr,
		Symbol:          "TOK",
		Decimals:        18,
		TreasuryBalance: sdkmath.NewIntWithDecimal(1, 18),
		PriceUSD:        1000,
		PriceOrigin:     types.PriceOriginPrimary,
	}

	result, err := engine.SelectTokens(types.AllocationRequest{
		Tier:           "gold",
		TargetValueUSD: 100,
	}, []types.TokenRecord{record}, types.SponsorSet{})
	require.NoError(t, err)

	require.Len(t, result.Lines, 1)
	line := result.Lines[0]
	assert.Equal(t, sdkmath.NewIntWithDecimal(1, 17).String(), line.AmountNative.String())
	assert.False(t, line.Partial)
	assert.InDelta(t, 100.0, line.ValueUSD, 1e-9)
}

func TestSelectTokens_ClampToNearZeroBalance(t *testing.T) {
	engine := newTestEngine(t)

	// One native unit of an 18-decimal token; any USD target overshoots it.
	record := types.TokenRecord{
		Address:         tokAddr,
		Symbol:          "TOK",
		Decimals:        18,
		TreasuryBalance: sdkmath.NewInt(1),
		PriceUSD:        1000,
		PriceOrigin:     types.PriceOriginPrimary,
	}

	result, err := engine.SelectTokens(types.AllocationRequest{
		Tier:           "gold",
		TargetValueUSD: 100,
	}, []types.TokenRecord{record}, types.SponsorSet{})
	require.NoError(t, err)

	require.Len(t, result.Lines, 1)
	line := result.Lines[0]
	assert.Equal(t, "1", line.AmountNative.String())
	assert.True(t, line.Partial)
	assert.Less(t, line.ValueUSD, 1e-9)
	assert.Less(t, result.VarianceFromTarget, -0.99)
}

func TestSelectTokens_EmptySnapshot(t *testing.T) {
	engine := newTestEngine(t)

	_, err := engine.SelectTokens(types.AllocationRequest{
		Tier:           "starter",
		TargetValueUSD: 1,
	}, nil, types.SponsorSet{})
	require.ErrorIs(t, err, ErrNoTreasuryTokens)
}

func TestSelectTokens_InvalidTarget(t *testing.T) {
	engine := newTestEngine(t)
	records := []types.TokenRecord{usdcRecord(100)}

	for _, target := range []float64{0, -5} {
		_, err := engine.SelectTokens(types.AllocationRequest{
			Tier:           "starter",
			TargetValueUSD: target,
		}, records, types.SponsorSet{})
		require.ErrorIs(t, err, ErrInvalidTargetValue)
	}
}

func TestSelectTokens_RedirectsUnusedSponsorBudget(t *testing.T) {
	engine := newTestEngine(t)

	// DEGEN is sponsored but unpriced, so the sponsor pass yields nothing and
	// its half of the target flows into the non-sponsor pass.
	unpriced := degenRecord()
	unpriced.PriceUSD = 0
	unpriced.PriceOrigin = types.PriceOriginNone

	sponsors := types.NewSponsorSet([]common.Address{degenAddr})
	records := []types.TokenRecord{unpriced, usdcRecord(10_000)}

	result, err := engine.SelectTokens(types.AllocationRequest{
		Tier:           "degen",
		TargetValueUSD: 100,
	}, records, sponsors)
	require.NoError(t, err)

	require.Len(t, result.Lines, 1)
	line := result.Lines[0]
	assert.Equal(t, usdcAddr, line.Address)
	assert.Equal(t, "100000000", line.AmountNative.String())
	assert.InDelta(t, 100.0, result.RealizedValueUSD, 1e-9)
}

func TestSelectTokens_RandomDrawCap(t *testing.T) {
	engine := newTestEngine(t)

	var records []types.TokenRecord
	for i := 0; i < 6; i++ {
		rec := usdcRecord(10_000)
		rec.Address = common.BigToAddress(sdkmath.NewInt(int64(i + 1)).BigInt())
		records = append(records, rec)
	}

	result, err := engine.SelectTokens(types.AllocationRequest{
		Tier:           "silver",
		TargetValueUSD: 90,
	}, records, types.SponsorSet{})
	require.NoError(t, err)

	// FirstNPicker keeps input order, so the draw is the first three records.
	require.Len(t, result.Lines, 3)
	for i, line := range result.Lines {
		assert.Equal(t, records[i].Address, line.Address)
		assert.Equal(t, "30000000", line.AmountNative.String())
	}
	assert.InDelta(t, 90.0, result.RealizedValueUSD, 1e-9)
}

func TestSelectTokens_UnpricedFallbackAllocatesFullBalance(t *testing.T) {
	engine := newTestEngine(t)

	unpriced := usdcRecord(500)
	unpriced.PriceUSD = 0
	unpriced.PriceOrigin = types.PriceOriginNone

	result, err := engine.SelectTokens(types.AllocationRequest{
		Tier:           "bronze",
		TargetValueUSD: 5,
	}, []types.TokenRecord{unpriced}, types.SponsorSet{})
	require.NoError(t, err)

	require.Len(t, result.Lines, 1)
	line := result.Lines[0]
	assert.Equal(t, unpriced.TreasuryBalance.String(), line.AmountNative.String())
	assert.True(t, line.Partial)
	assert.Zero(t, line.ValueUSD)
}

func TestSelectTokens_UnpricedTokenNeverAllocated(t *testing.T) {
	engine := newTestEngine(t)

	unpriced := usdcRecord(10)
	unpriced.Address = tokAddr
	unpriced.Symbol = "TOK"
	unpriced.PriceUSD = 0
	unpriced.PriceOrigin = types.PriceOriginNone

	result, err := engine.SelectTokens(types.AllocationRequest{
		Tier:           "gold",
		TargetValueUSD: 25,
	}, []types.TokenRecord{unpriced, degenRecord()}, types.SponsorSet{})
	require.NoError(t, err)

	require.Len(t, result.Lines, 1)
	assert.Equal(t, degenAddr, result.Lines[0].Address)
	assert.InDelta(t, 25.0, result.RealizedValueUSD, 1e-9)
}

func TestNewEngine_RejectsInvalidParameters(t *testing.T) {
	cases := []types.AllocationParameters{
		{SponsorShare: -0.1, MaxOtherTokens: 3, VarianceTolerance: 0.05},
		{SponsorShare: 1.5, MaxOtherTokens: 3, VarianceTolerance: 0.05},
		{SponsorShare: 0.5, MaxOtherTokens: 0, VarianceTolerance: 0.05},
		{SponsorShare: 0.5, MaxOtherTokens: 3, VarianceTolerance: -1},
	}
	for _, params := range cases {
		_, err := NewEngine(params, FirstNPicker{})
		require.ErrorIs(t, err, ErrInvalidParameters)
	}

	_, err := NewEngine(testParams(), nil)
	require.Error(t, err)
}
