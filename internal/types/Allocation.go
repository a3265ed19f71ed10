/*

Allocation request and result types produced by the selection engine and
consumed by the funding executor and the retrieval API.

*/

package types

import (
	"time"

	sdkmath "cosmossdk.io/math"
	"github.com/ethereum/go-ethereum/common"
	"github.com/google/uuid"
)

// AllocationRequest is the input to token selection: a purchased tier and the
// USD value that tier is worth.
type AllocationRequest struct {
	Tier           string  `json:"tier"`
	TargetValueUSD float64 `json:"target_value_usd"`
}

// AllocationLine is one token/amount pair in a selection. AmountNative is
// expressed in the token's smallest unit and never holds a rounded float.
type AllocationLine struct {
	Address      common.Address `json:"address"`
	Symbol       string         `json:"symbol"`
	AmountNative sdkmath.Int    `json:"amount_native"`
	ValueUSD     float64        `json:"value_usd"` // informational, derived from price at selection time
	Partial      bool           `json:"partial"`   // amount was clamped to the treasury balance
}

// AllocationResult is the ordered outcome of one selection run.
type AllocationResult struct {
	ID                 uuid.UUID        `json:"id"`
	Tier               string           `json:"tier"`
	Lines              []AllocationLine `json:"lines"`
	TargetValueUSD     float64          `json:"target_value_usd"`
	RealizedValueUSD   float64          `json:"realized_value_usd"`
	VarianceFromTarget float64          `json:"variance_from_target"`
	CreatedAt          time.Time        `json:"created_at"`
}
