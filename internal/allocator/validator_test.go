package allocator

import (
	"testing"

	sdkmath "cosmossdk.io/math"
	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/assert"

	"github.com/0xedev/vendyz-backend/internal/types"
)

func TestValidateValue(t *testing.T) {
	records := map[common.Address]types.TokenRecord{
		usdcAddr:  usdcRecord(10_000),
		degenAddr: degenRecord(),
	}

	lines := []types.AllocationLine{
		{Address: usdcAddr, Symbol: "USDC", AmountNative: sdkmath.NewInt(50_000_000)},
		{Address: degenAddr, Symbol: "DEGEN", AmountNative: sdkmath.NewInt(50_000).Mul(sdkmath.NewIntWithDecimal(1, 18))},
		{Address: tokAddr, Symbol: "TOK", AmountNative: sdkmath.NewInt(1)}, // not in records
	}

	validation := ValidateValue(lines, records)

	assert.InDelta(t, 50.0, validation.PerLineValueUSD[0], 1e-9)
	assert.InDelta(t, 50.0, validation.PerLineValueUSD[1], 1e-9)
	assert.Zero(t, validation.PerLineValueUSD[2])
	assert.InDelta(t, 100.0, validation.TotalValueUSD, 1e-9)
}

func TestValidateValue_UnpricedRecordValuesToZero(t *testing.T) {
	record := usdcRecord(100)
	record.PriceUSD = 0
	record.PriceOrigin = types.PriceOriginNone

	validation := ValidateValue([]types.AllocationLine{
		{Address: usdcAddr, AmountNative: sdkmath.NewInt(1_000_000)},
	}, map[common.Address]types.TokenRecord{usdcAddr: record})

	assert.Zero(t, validation.TotalValueUSD)
}

func TestFirstNPicker(t *testing.T) {
	records := []types.TokenRecord{usdcRecord(1), degenRecord()}

	assert.Nil(t, FirstNPicker{}.Pick(records, 0))
	assert.Len(t, FirstNPicker{}.Pick(records, 1), 1)
	assert.Len(t, FirstNPicker{}.Pick(records, 5), 2)
	assert.Equal(t, usdcAddr, FirstNPicker{}.Pick(records, 1)[0].Address)
}

func TestRandomPicker_DrawsWithoutReplacement(t *testing.T) {
	var records []types.TokenRecord
	for i := 0; i < 8; i++ {
		rec := usdcRecord(1)
		rec.Address = common.BigToAddress(sdkmath.NewInt(int64(i + 1)).BigInt())
		records = append(records, rec)
	}

	picker := NewRandomPicker()
	picked := picker.Pick(records, 5)
	assert.Len(t, picked, 5)

	seen := make(map[common.Address]struct{})
	for _, rec := range picked {
		_, dup := seen[rec.Address]
		assert.False(t, dup, "picked the same record twice")
		seen[rec.Address] = struct{}{}
	}

	// Asking for more than available returns everything once.
	assert.Len(t, picker.Pick(records, 20), 8)
}
