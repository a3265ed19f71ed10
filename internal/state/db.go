// ./internal/state/db.go
package state

import (
	"database/sql"
	"fmt"
	"time"

	_ "github.com/lib/pq" // PostgreSQL driver
	"github.com/rs/zerolog/log"
)

// DB is a global database connection pool.
var DB *sql.DB

// DBConfig holds database connection parameters.
type DBConfig struct {
	Host     string
	Port     int
	User     string
	Password string
	DBName   string
	SSLMode  string // "disable", "require", "verify-full", etc.
}

// InitDB initializes the database connection pool.
func InitDB(cfg DBConfig) error {
	psqlInfo := fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		cfg.Host, cfg.Port, cfg.User, cfg.Password, cfg.DBName, cfg.SSLMode)

	var err error
	DB, err = sql.Open("postgres", psqlInfo)
	if err != nil {
		return fmt.Errorf("failed to open database connection: %w", err)
	}

	DB.SetMaxOpenConns(25)
	DB.SetMaxIdleConns(25)
	DB.SetConnMaxLifetime(5 * time.Minute)

	err = DB.Ping()
	if err != nil {
		DB.Close()
		return fmt.Errorf("failed to ping database: %w", err)
	}

	log.Info().Msg("Successfully connected to the PostgreSQL database!")
	return nil
}

// CloseDB closes the database connection pool.
func CloseDB() {
	if DB != nil {
		log.Info().Msg("Closing database connection...")
		if err := DB.Close(); err != nil {
			log.Error().Err(err).Msg("Error closing database connection")
		}
	}
}

// TestDBConnection verifies the pool can still reach the database.
func TestDBConnection() error {
	if DB == nil {
		return fmt.Errorf("database not initialized")
	}
	return DB.Ping()
}

// EnsureSchema applies the necessary DDL to create tables if they don't exist.
func EnsureSchema() error {
	if DB == nil {
		return fmt.Errorf("database not initialized")
	}

	schemaSQL := `
		CREATE TABLE IF NOT EXISTS allocations (
			allocation_id UUID PRIMARY KEY,
			tier VARCHAR(64) NOT NULL,
			buyer_address VARCHAR(42),
			target_value_usd DECIMAL(20, 8) NOT NULL,
			realized_value_usd DECIMAL(20, 8) NOT NULL,
			variance_from_target DECIMAL(12, 8) NOT NULL,
			created_at TIMESTAMPTZ NOT NULL DEFAULT CURRENT_TIMESTAMP
		);

		CREATE TABLE IF NOT EXISTS allocation_lines (
			line_id SERIAL PRIMARY KEY,
			allocation_id UUID NOT NULL REFERENCES allocations(allocation_id) ON DELETE CASCADE,
			line_index INTEGER NOT NULL,
			token_address VARCHAR(42) NOT NULL,
			token_symbol VARCHAR(32) NOT NULL,
			amount_native NUMERIC(78, 0) NOT NULL,
			value_usd DECIMAL(20, 8) NOT NULL,
			partial BOOLEAN NOT NULL DEFAULT FALSE,
			UNIQUE (allocation_id, line_index)
		);

		CREATE TABLE IF NOT EXISTS wallet_credentials (
			credential_id SERIAL PRIMARY KEY,
			wallet_address VARCHAR(42) NOT NULL UNIQUE,
			encrypted_secret BYTEA NOT NULL,
			created_at TIMESTAMPTZ NOT NULL DEFAULT CURRENT_TIMESTAMP,
			expires_at TIMESTAMPTZ NOT NULL
		);

		CREATE INDEX IF NOT EXISTS idx_allocations_created_at ON allocations (created_at DESC);
		CREATE INDEX IF NOT EXISTS idx_wallet_credentials_expires_at ON wallet_credentials (expires_at);
	`

	_, err := DB.Exec(schemaSQL)
	if err != nil {
		return fmt.Errorf("failed to ensure database schema: %w", err)
	}

	log.Info().Msg("Database schema ensured")
	return nil
}
