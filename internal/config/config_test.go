package config

import (
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setRequiredEnv(t *testing.T) {
	t.Helper()
	t.Setenv("CHAIN_ID", "8453")
	t.Setenv("TREASURY_ADDRESS", "0x00000000000000000000000000000000000000f0")
	t.Setenv("VENDING_CONTRACT", "0x00000000000000000000000000000000000000d0")
	t.Setenv("TOKEN_WATCHLIST", "0x4ed4E862860beD51a9570b96d89aF5E1B0Efefed,0x833589fCD6eDb6E08f4c7C32D4f71b54bdA02913")
	t.Setenv("WRAPPED_NATIVE_TOKEN", "0x4200000000000000000000000000000000000006")
	t.Setenv("SPONSOR_REGISTRY_URL", "http://localhost:9000/sponsors")
	t.Setenv("CREDENTIAL_KEY", "000102030405060708090a0b0c0d0e0f101112131415161718191a1b1c1d1e1f")
	t.Setenv("OPERATOR_KEY", "4c0883a69102937d6231471b5dbb6204fe5129617082792ae468d01a3f362318")
	t.Setenv("NODE_RPC", "http://localhost:8545")
	t.Setenv("PRICE_PRIMARY_API", "https://api.coingecko.com/api/v3")
	t.Setenv("PRICE_FALLBACK_API", "https://api.dexscreener.com")
}

func TestLoadConfig(t *testing.T) {
	setRequiredEnv(t)

	require.NoError(t, LoadConfig())

	assert.Equal(t, int64(8453), ChainID)
	assert.Equal(t, common.HexToAddress("0x00000000000000000000000000000000000000f0"), TreasuryAddress)
	assert.Equal(t, common.HexToAddress("0x4200000000000000000000000000000000000006"), WrappedNativeToken)
	require.Len(t, WatchList, 2)
	// Watch-list order follows the environment variable.
	assert.Equal(t, common.HexToAddress("0x4ed4E862860beD51a9570b96d89aF5E1B0Efefed"), WatchList[0])
	assert.Equal(t, "http://localhost:8545", NodeRPC)
}

func TestLoadConfig_MissingVariable(t *testing.T) {
	setRequiredEnv(t)
	t.Setenv("TREASURY_ADDRESS", "")

	require.Error(t, LoadConfig())
}

func TestLoadConfig_RejectsDuplicateWatchListEntries(t *testing.T) {
	setRequiredEnv(t)
	t.Setenv("TOKEN_WATCHLIST", "0x4ed4E862860beD51a9570b96d89aF5E1B0Efefed,0x4ed4e862860bed51a9570b96d89af5e1b0efefed")

	require.Error(t, LoadConfig())
}

func TestLoadConfig_RejectsShortCredentialKey(t *testing.T) {
	setRequiredEnv(t)
	t.Setenv("CREDENTIAL_KEY", "abcd")

	require.Error(t, LoadConfig())
}

func TestTierValues(t *testing.T) {
	assert.Equal(t, 1.0, TierValues["starter"])
	assert.Equal(t, 100.0, TierValues["degen"])
	_, known := TierValues["platinum"]
	assert.False(t, known)
}
