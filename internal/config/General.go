package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"github.com/rs/zerolog/log"
)

// AppConfig holds all application configuration loaded from environment variables.
// These are populated at startup by the LoadConfig function.
var (
	// ChainID is the EIP-155 chain ID of the target network.
	ChainID int64

	// TreasuryAddress is the on-chain holder of fundable tokens.
	TreasuryAddress common.Address

	// VendingContract is the contract whose purchase events trigger allocations.
	VendingContract common.Address

	// WatchList is the fixed, ordered set of ERC-20 addresses the treasury
	// snapshot tracks. Order matters: it is the tie-break for fallback selection.
	WatchList []common.Address

	// WrappedNativeToken is the canonical wrapped-native contract, used by the
	// fallback price source to price the native coin.
	WrappedNativeToken common.Address

	// SponsorRegistryURL is the auction service endpoint for the sponsor set.
	SponsorRegistryURL string

	// CredentialKeyHex is the 32-byte hex server key for credential encryption.
	CredentialKeyHex string

	// OperatorKeyHex is the private key that signs funding transactions.
	OperatorKeyHex string
)

// LoadConfig loads configuration from environment variables and sets the global config vars.
// All environment variables are required and must be set.
func LoadConfig() error {
	log.Info().Msg("Loading application configuration from environment variables...")

	var err error

	ChainID, err = getEnvAsInt64("CHAIN_ID")
	if err != nil {
		return err
	}

	TreasuryAddress, err = getEnvAsAddress("TREASURY_ADDRESS")
	if err != nil {
		return err
	}

	VendingContract, err = getEnvAsAddress("VENDING_CONTRACT")
	if err != nil {
		return err
	}

	WatchList, err = getEnvAsAddressList("TOKEN_WATCHLIST")
	if err != nil {
		return err
	}

	WrappedNativeToken, err = getEnvAsAddress("WRAPPED_NATIVE_TOKEN")
	if err != nil {
		return err
	}

	SponsorRegistryURL, err = getEnv("SPONSOR_REGISTRY_URL")
	if err != nil {
		return err
	}

	CredentialKeyHex, err = getEnv("CREDENTIAL_KEY")
	if err != nil {
		return err
	}
	if len(CredentialKeyHex) != 64 {
		return errors.New("environment variable CREDENTIAL_KEY must be 32 bytes of hex (64 characters)")
	}

	OperatorKeyHex, err = getEnv("OPERATOR_KEY")
	if err != nil {
		return err
	}

	// Load endpoint configuration
	if err := loadEndpointConfig(); err != nil {
		return err
	}

	log.Debug().
		Int64("ChainID", ChainID).
		Str("Treasury", TreasuryAddress.Hex()).
		Str("VendingContract", VendingContract.Hex()).
		Int("WatchListSize", len(WatchList)).
		Msg("Configuration loaded successfully.")

	return nil
}

// getEnv retrieves a string environment variable. Returns error if not set.
func getEnv(key string) (string, error) {
	if value, exists := os.LookupEnv(key); exists {
		return value, nil
	}
	return "", errors.New("environment variable " + key + " is required but not set")
}

// getEnvAsInt64 retrieves an environment variable as an int64. Returns error if not set or invalid.
func getEnvAsInt64(key string) (int64, error) {
	valueStr, err := getEnv(key)
	if err != nil {
		return 0, err
	}
	value, err := strconv.ParseInt(valueStr, 10, 64)
	if err != nil {
		return 0, errors.New("environment variable " + key + " must be a valid int64, got: " + valueStr)
	}
	return value, nil
}

// getEnvAsAddress retrieves an environment variable as a checksummed EVM address.
func getEnvAsAddress(key string) (common.Address, error) {
	valueStr, err := getEnv(key)
	if err != nil {
		return common.Address{}, err
	}
	if !common.IsHexAddress(valueStr) {
		return common.Address{}, errors.New("environment variable " + key + " must be a 20-byte hex address, got: " + valueStr)
	}
	return common.HexToAddress(valueStr), nil
}

// getEnvAsAddressList retrieves a comma-separated list of EVM addresses,
// preserving order and rejecting duplicates.
func getEnvAsAddressList(key string) ([]common.Address, error) {
	valueStr, err := getEnv(key)
	if err != nil {
		return nil, err
	}

	seen := make(map[common.Address]struct{})
	var addrs []common.Address
	for _, part := range strings.Split(valueStr, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		if !common.IsHexAddress(part) {
			return nil, fmt.Errorf("environment variable %s contains an invalid address: %s", key, part)
		}
		addr := common.HexToAddress(part)
		if _, dup := seen[addr]; dup {
			return nil, fmt.Errorf("environment variable %s contains a duplicate address: %s", key, part)
		}
		seen[addr] = struct{}{}
		addrs = append(addrs, addr)
	}

	if len(addrs) == 0 {
		return nil, errors.New("environment variable " + key + " must contain at least one address")
	}
	return addrs, nil
}
