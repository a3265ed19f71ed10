// ./internal/state/allocation_store.go
package state

import (
	"database/sql"
	"errors"
	"fmt"

	sdkmath "cosmossdk.io/math"
	"github.com/0xedev/vendyz-backend/internal/types"
	"github.com/ethereum/go-ethereum/common"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
)

// ErrAllocationNotFound is returned when an allocation ID has no row.
var ErrAllocationNotFound = errors.New("allocation not found")

// SaveAllocation persists one allocation result with its lines in a single
// transaction. buyer may be the zero address for unattributed vends.
func SaveAllocation(result types.AllocationResult, buyer common.Address) error {
	if DB == nil {
		return fmt.Errorf("database not initialized")
	}

	tx, err := DB.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.Exec(`
		INSERT INTO allocations (
			allocation_id, tier, buyer_address,
			target_value_usd, realized_value_usd, variance_from_target, created_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7);
	`, result.ID, result.Tier, buyer.Hex(),
		result.TargetValueUSD, result.RealizedValueUSD, result.VarianceFromTarget, result.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to insert allocation: %w", err)
	}

	for i, line := range result.Lines {
		_, err = tx.Exec(`
			INSERT INTO allocation_lines (
				allocation_id, line_index, token_address, token_symbol,
				amount_native, value_usd, partial
			) VALUES ($1, $2, $3, $4, $5, $6, $7);
		`, result.ID, i, line.Address.Hex(), line.Symbol,
			line.AmountNative.String(), line.ValueUSD, line.Partial)
		if err != nil {
			return fmt.Errorf("failed to insert allocation line %d: %w", i, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit allocation: %w", err)
	}

	log.Info().
		Str("allocation_id", result.ID.String()).
		Str("tier", result.Tier).
		Int("lines", len(result.Lines)).
		Msg("Allocation saved to database")

	return nil
}

// GetAllocation loads one allocation with its lines in stored order.
func GetAllocation(id uuid.UUID) (*types.AllocationResult, error) {
	if DB == nil {
		return nil, fmt.Errorf("database not initialized")
	}

	result := &types.AllocationResult{ID: id}
	err := DB.QueryRow(`
		SELECT tier, target_value_usd, realized_value_usd, variance_from_target, created_at
		FROM allocations WHERE allocation_id = $1;
	`, id).Scan(&result.Tier, &result.TargetValueUSD, &result.RealizedValueUSD,
		&result.VarianceFromTarget, &result.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrAllocationNotFound
		}
		return nil, fmt.Errorf("failed to load allocation: %w", err)
	}

	rows, err := DB.Query(`
		SELECT token_address, token_symbol, amount_native, value_usd, partial
		FROM allocation_lines WHERE allocation_id = $1 ORDER BY line_index;
	`, id)
	if err != nil {
		return nil, fmt.Errorf("failed to load allocation lines: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var addrHex, amountStr string
		var line types.AllocationLine
		if err := rows.Scan(&addrHex, &line.Symbol, &amountStr, &line.ValueUSD, &line.Partial); err != nil {
			return nil, fmt.Errorf("failed to scan allocation line: %w", err)
		}
		line.Address = common.HexToAddress(addrHex)
		amount, ok := sdkmath.NewIntFromString(amountStr)
		if !ok {
			return nil, fmt.Errorf("stored amount is not a valid integer: %s", amountStr)
		}
		line.AmountNative = amount
		result.Lines = append(result.Lines, line)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate allocation lines: %w", err)
	}

	return result, nil
}

// ListRecentAllocations returns allocation headers, newest first, without lines.
func ListRecentAllocations(limit int) ([]types.AllocationResult, error) {
	if DB == nil {
		return nil, fmt.Errorf("database not initialized")
	}
	if limit <= 0 {
		limit = 50
	}

	rows, err := DB.Query(`
		SELECT allocation_id, tier, target_value_usd, realized_value_usd, variance_from_target, created_at
		FROM allocations ORDER BY created_at DESC LIMIT $1;
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list allocations: %w", err)
	}
	defer rows.Close()

	var results []types.AllocationResult
	for rows.Next() {
		var result types.AllocationResult
		if err := rows.Scan(&result.ID, &result.Tier, &result.TargetValueUSD,
			&result.RealizedValueUSD, &result.VarianceFromTarget, &result.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan allocation: %w", err)
		}
		results = append(results, result)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate allocations: %w", err)
	}

	return results, nil
}
