/*

Encrypted wallet credential storage. Secrets arrive already sealed by the
wallet cipher; rows carry an expires_at and the purge loop deletes them once
the claim window closes.

*/

package state

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/rs/zerolog/log"
)

// ErrCredentialNotFound is returned when no live credential exists for a wallet.
var ErrCredentialNotFound = errors.New("wallet credential not found")

// SaveCredential stores an encrypted wallet secret until expiresAt.
func SaveCredential(walletAddr common.Address, encryptedSecret []byte, expiresAt time.Time) error {
	if DB == nil {
		return fmt.Errorf("database not initialized")
	}
	if len(encryptedSecret) == 0 {
		return errors.New("encrypted secret cannot be empty")
	}

	_, err := DB.Exec(`
		INSERT INTO wallet_credentials (wallet_address, encrypted_secret, expires_at)
		VALUES ($1, $2, $3)
		ON CONFLICT (wallet_address) DO UPDATE
		SET encrypted_secret = EXCLUDED.encrypted_secret, expires_at = EXCLUDED.expires_at;
	`, walletAddr.Hex(), encryptedSecret, expiresAt)
	if err != nil {
		return fmt.Errorf("failed to save wallet credential: %w", err)
	}

	log.Debug().
		Str("wallet", walletAddr.Hex()).
		Time("expires_at", expiresAt).
		Msg("Wallet credential stored")

	return nil
}

// GetCredential loads a wallet's encrypted secret if it has not expired.
func GetCredential(walletAddr common.Address) ([]byte, error) {
	if DB == nil {
		return nil, fmt.Errorf("database not initialized")
	}

	var encryptedSecret []byte
	err := DB.QueryRow(`
		SELECT encrypted_secret FROM wallet_credentials
		WHERE wallet_address = $1 AND expires_at > CURRENT_TIMESTAMP;
	`, walletAddr.Hex()).Scan(&encryptedSecret)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrCredentialNotFound
		}
		return nil, fmt.Errorf("failed to load wallet credential: %w", err)
	}

	return encryptedSecret, nil
}

// PurgeExpiredCredentials deletes credentials past their expiry and returns
// how many rows were removed.
func PurgeExpiredCredentials() (int64, error) {
	if DB == nil {
		return 0, fmt.Errorf("database not initialized")
	}

	result, err := DB.Exec(`DELETE FROM wallet_credentials WHERE expires_at <= CURRENT_TIMESTAMP;`)
	if err != nil {
		return 0, fmt.Errorf("failed to purge expired credentials: %w", err)
	}

	purged, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to count purged credentials: %w", err)
	}

	if purged > 0 {
		log.Info().Int64("purged", purged).Msg("Expired wallet credentials deleted")
	}
	return purged, nil
}

// RunPurgeLoop deletes expired credentials on every tick until the context ends.
func RunPurgeLoop(ctx context.Context, interval time.Duration, onPurge func(count int64)) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			log.Info().Msg("Credential purge loop stopped")
			return
		case <-ticker.C:
			purged, err := PurgeExpiredCredentials()
			if err != nil {
				log.Error().Err(err).Msg("Credential purge failed")
				continue
			}
			if onPurge != nil && purged > 0 {
				onPurge(purged)
			}
		}
	}
}
