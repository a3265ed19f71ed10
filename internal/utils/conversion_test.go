package utils

import (
	"testing"

	sdkmath "cosmossdk.io/math"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAmountForValue(t *testing.T) {
	t.Run("clean division stays exact", func(t *testing.T) {
		// $50 at $0.001 with 18 decimals: 50000 whole tokens, no float dust.
		amount, err := AmountForValue(50, 0.001, 18)
		require.NoError(t, err)
		want := sdkmath.NewInt(50_000).Mul(sdkmath.NewIntWithDecimal(1, 18))
		assert.Equal(t, want.String(), amount.String())
	})

	t.Run("six decimal stablecoin", func(t *testing.T) {
		amount, err := AmountForValue(100, 1.0, 6)
		require.NoError(t, err)
		assert.Equal(t, "100000000", amount.String())
	})

	t.Run("fraction floors toward zero", func(t *testing.T) {
		// $1 at $3 with 0 decimals buys 0 whole units.
		amount, err := AmountForValue(1, 3, 0)
		require.NoError(t, err)
		assert.True(t, amount.IsZero())
	})

	t.Run("repeating quotient truncates, never rounds up", func(t *testing.T) {
		// 0.2/0.3 * 1e18 = 666666666666666666.666…; the division must
		// truncate so the amount never exceeds the target value.
		amount, err := AmountForValue(0.2, 0.3, 18)
		require.NoError(t, err)
		assert.Equal(t, "666666666666666666", amount.String())

		amount, err = AmountForValue(1, 3, 6)
		require.NoError(t, err)
		assert.Equal(t, "333333", amount.String())
	})

	t.Run("price below decimal resolution", func(t *testing.T) {
		_, err := AmountForValue(1, 1e-19, 18)
		require.ErrorIs(t, err, ErrInvalidPrice)
	})

	t.Run("zero value yields zero amount", func(t *testing.T) {
		amount, err := AmountForValue(0, 1, 18)
		require.NoError(t, err)
		assert.True(t, amount.IsZero())
	})

	t.Run("invalid price", func(t *testing.T) {
		for _, price := range []float64{0, -1} {
			_, err := AmountForValue(10, price, 18)
			require.ErrorIs(t, err, ErrInvalidPrice)
		}
	})

	t.Run("negative value", func(t *testing.T) {
		_, err := AmountForValue(-1, 1, 18)
		require.ErrorIs(t, err, ErrAmountNegative)
	})

	t.Run("decimals out of range", func(t *testing.T) {
		_, err := AmountForValue(1, 1, MaxSupportedDecimals+1)
		require.ErrorIs(t, err, ErrInvalidDecimals)
	})
}

func TestNativeToFloat(t *testing.T) {
	t.Run("round trip", func(t *testing.T) {
		value, err := NativeToFloat(sdkmath.NewInt(1_500_000), 6)
		require.NoError(t, err)
		assert.InDelta(t, 1.5, value, 1e-12)
	})

	t.Run("single native unit", func(t *testing.T) {
		value, err := NativeToFloat(sdkmath.NewInt(1), 18)
		require.NoError(t, err)
		assert.InDelta(t, 1e-18, value, 1e-24)
	})

	t.Run("nil amount", func(t *testing.T) {
		_, err := NativeToFloat(sdkmath.Int{}, 6)
		require.ErrorIs(t, err, ErrAmountNil)
	})

	t.Run("negative amount", func(t *testing.T) {
		_, err := NativeToFloat(sdkmath.NewInt(-1), 6)
		require.ErrorIs(t, err, ErrAmountNegative)
	})
}

func TestFloatToNative(t *testing.T) {
	t.Run("whole tokens", func(t *testing.T) {
		amount, err := FloatToNative(2.5, 6)
		require.NoError(t, err)
		assert.Equal(t, "2500000", amount.String())
	})

	t.Run("sub unit fraction floors", func(t *testing.T) {
		amount, err := FloatToNative(0.4, 0)
		require.NoError(t, err)
		assert.True(t, amount.IsZero())
	})

	t.Run("negative amount", func(t *testing.T) {
		_, err := FloatToNative(-0.1, 6)
		require.ErrorIs(t, err, ErrAmountNegative)
	})
}
