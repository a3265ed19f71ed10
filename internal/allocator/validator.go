package allocator

import (
	"github.com/0xedev/vendyz-backend/internal/types"
	"github.com/0xedev/vendyz-backend/internal/utils"
	"github.com/ethereum/go-ethereum/common"
)

// Validation is the recomputed USD value of a selection, line by line.
type Validation struct {
	TotalValueUSD   float64   `json:"total_value_usd"`
	PerLineValueUSD []float64 `json:"per_line_value_usd"`
}

// ValidateValue recomputes the realized USD value of allocation lines against
// the given token records (for price and decimals). Lines whose token is
// missing from records, or unpriced, value to zero. Pure: mutates nothing.
func ValidateValue(lines []types.AllocationLine, records map[common.Address]types.TokenRecord) Validation {
	validation := Validation{PerLineValueUSD: make([]float64, len(lines))}

	for i, line := range lines {
		record, ok := records[line.Address]
		if !ok || !record.IsPriced() {
			continue
		}
		humanAmount, err := utils.NativeToFloat(line.AmountNative, record.Decimals)
		if err != nil {
			continue
		}
		value := humanAmount * record.PriceUSD
		validation.PerLineValueUSD[i] = value
		validation.TotalValueUSD += value
	}

	return validation
}
