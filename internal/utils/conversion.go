/*
This file contains common utility functions for converting between human-readable
token amounts and native smallest-unit integers across heterogeneous decimal bases.

USD arithmetic stays in float64, but the final native amounts are computed in
fixed-point decimal space so that clean inputs ($50 at $0.001) produce clean
native amounts instead of inheriting binary floating point artifacts.
*/

package utils

import (
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"

	sdkmath "cosmossdk.io/math"
)

// Error definitions for zero-tolerance error handling
var (
	ErrInvalidDecimals  = errors.New("token decimals are invalid")
	ErrInvalidPrice     = errors.New("price is invalid")
	ErrAmountNil        = errors.New("amount is nil")
	ErrAmountNegative   = errors.New("amount is negative")
	ErrNotFinite        = errors.New("value is not finite")
	ErrConversionFailed = errors.New("conversion failed")
)

// MaxSupportedDecimals bounds the decimal bases we accept. EVM tokens declare
// decimals as uint8; anything past 36 is treated as malformed metadata.
const MaxSupportedDecimals = 36

// decFromFloat converts a float64 to a LegacyDec via its shortest decimal
// representation, truncating past 18 fractional digits.
func decFromFloat(f float64) (sdkmath.LegacyDec, error) {
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return sdkmath.LegacyDec{}, fmt.Errorf("%w: %f", ErrNotFinite, f)
	}
	s := strconv.FormatFloat(f, 'f', -1, 64)
	if dot := strings.IndexByte(s, '.'); dot >= 0 && len(s)-dot-1 > 18 {
		s = s[:dot+19]
	}
	dec, err := sdkmath.LegacyNewDecFromStr(s)
	if err != nil {
		return sdkmath.LegacyDec{}, fmt.Errorf("%w: %w", ErrConversionFailed, err)
	}
	return dec, nil
}

// NativeToFloat converts a native smallest-unit amount to a human-readable float64.
func NativeToFloat(amount sdkmath.Int, decimals uint8) (float64, error) {
	if decimals > MaxSupportedDecimals {
		return 0, fmt.Errorf("%w: %d (must be at most %d)", ErrInvalidDecimals, decimals, MaxSupportedDecimals)
	}
	if amount.IsNil() {
		return 0, ErrAmountNil
	}
	if amount.IsNegative() {
		return 0, ErrAmountNegative
	}

	factor := sdkmath.NewIntWithDecimal(1, int(decimals))
	result := sdkmath.LegacyNewDecFromInt(amount).QuoInt(factor)
	resultFloat, err := result.Float64()
	if err != nil {
		return 0, fmt.Errorf("%w: %w", ErrConversionFailed, err)
	}

	if math.IsNaN(resultFloat) || math.IsInf(resultFloat, 0) {
		return 0, fmt.Errorf("%w: result is %f", ErrNotFinite, resultFloat)
	}

	return resultFloat, nil
}

// FloatToNative converts a human-readable float64 amount to native smallest
// units, flooring any fraction below one native unit.
func FloatToNative(amount float64, decimals uint8) (sdkmath.Int, error) {
	if decimals > MaxSupportedDecimals {
		return sdkmath.ZeroInt(), fmt.Errorf("%w: %d (must be at most %d)", ErrInvalidDecimals, decimals, MaxSupportedDecimals)
	}
	if amount < 0 {
		return sdkmath.ZeroInt(), ErrAmountNegative
	}
	if amount == 0 {
		return sdkmath.ZeroInt(), nil
	}

	decAmount, err := decFromFloat(amount)
	if err != nil {
		return sdkmath.ZeroInt(), err
	}

	factor := sdkmath.NewIntWithDecimal(1, int(decimals))
	result := decAmount.MulInt(factor).TruncateInt()
	if result.IsNegative() {
		return sdkmath.ZeroInt(), ErrAmountNegative
	}

	return result, nil
}

// AmountForValue computes floor(valueUSD / priceUSD * 10^decimals): the native
// amount of a token worth valueUSD at priceUSD. The division runs in decimal
// space so clean USD inputs yield clean native amounts.
func AmountForValue(valueUSD, priceUSD float64, decimals uint8) (sdkmath.Int, error) {
	if decimals > MaxSupportedDecimals {
		return sdkmath.ZeroInt(), fmt.Errorf("%w: %d (must be at most %d)", ErrInvalidDecimals, decimals, MaxSupportedDecimals)
	}
	if priceUSD <= 0 || math.IsNaN(priceUSD) || math.IsInf(priceUSD, 0) {
		return sdkmath.ZeroInt(), fmt.Errorf("%w: %f", ErrInvalidPrice, priceUSD)
	}
	if valueUSD < 0 {
		return sdkmath.ZeroInt(), ErrAmountNegative
	}
	if valueUSD == 0 {
		return sdkmath.ZeroInt(), nil
	}

	decValue, err := decFromFloat(valueUSD)
	if err != nil {
		return sdkmath.ZeroInt(), err
	}
	decPrice, err := decFromFloat(priceUSD)
	if err != nil {
		return sdkmath.ZeroInt(), err
	}
	// Prices below decimal resolution truncate to zero.
	if decPrice.IsZero() {
		return sdkmath.ZeroInt(), fmt.Errorf("%w: %g is below decimal resolution", ErrInvalidPrice, priceUSD)
	}

	factor := sdkmath.NewIntWithDecimal(1, int(decimals))
	// QuoTruncate: Quo rounds the 18th fractional digit, which could lift a
	// quotient sitting just under an integer and break the floor.
	result := decValue.MulInt(factor).QuoTruncate(decPrice).TruncateInt()
	if result.IsNegative() {
		return sdkmath.ZeroInt(), ErrAmountNegative
	}

	return result, nil
}
