package config

import (
	"github.com/rs/zerolog/log"
)

// Endpoint configuration loaded from environment variables.
// These are populated at startup by the LoadConfig function.
var (
	// NodeRPC is the JSON-RPC endpoint for the EVM node.
	NodeRPC string
	// PrimaryPriceAPI is the base URL for the batch price source (CoinGecko).
	PrimaryPriceAPI string
	// FallbackPriceAPI is the base URL for the per-token price source (DexScreener).
	FallbackPriceAPI string
)

// loadEndpointConfig loads endpoint configuration from environment variables.
// This function is called by LoadConfig() in General.go.
func loadEndpointConfig() error {
	log.Info().Msg("Loading endpoint configuration from environment variables...")

	var err error

	NodeRPC, err = getEnv("NODE_RPC")
	if err != nil {
		return err
	}

	PrimaryPriceAPI, err = getEnv("PRICE_PRIMARY_API")
	if err != nil {
		return err
	}

	FallbackPriceAPI, err = getEnv("PRICE_FALLBACK_API")
	if err != nil {
		return err
	}

	log.Debug().
		Str("NodeRPC", NodeRPC).
		Str("PrimaryPriceAPI", PrimaryPriceAPI).
		Str("FallbackPriceAPI", FallbackPriceAPI).
		Msg("Endpoint configuration loaded successfully.")

	return nil
}
