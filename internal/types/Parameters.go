package types

import "time"

// AllocationParameters controls how the selection engine partitions a tier's
// target value and how the supporting caches behave.
type AllocationParameters struct {
	// SponsorShare is the fraction of the target value reserved for sponsored tokens.
	SponsorShare float64 `json:"sponsor_share"`

	// MaxOtherTokens caps the random draw in the non-sponsored pass.
	MaxOtherTokens int `json:"max_other_tokens"`

	// VarianceTolerance is the advisory |realized-target|/target threshold
	// beyond which a selection is logged as out of tolerance.
	VarianceTolerance float64 `json:"variance_tolerance"`

	// PriceTTL is the maximum age at which a cached price is still valid.
	PriceTTL time.Duration `json:"price_ttl"`

	// RefreshInterval is the treasury snapshot refresh period.
	RefreshInterval time.Duration `json:"refresh_interval"`

	// PrimaryMinInterval is the minimum spacing between primary source calls.
	PrimaryMinInterval time.Duration `json:"primary_min_interval"`

	// FallbackMinInterval is the minimum spacing between fallback source calls.
	FallbackMinInterval time.Duration `json:"fallback_min_interval"`

	// SourceTimeout bounds a single price source call; a timed-out call counts
	// as a source failure for failover purposes.
	SourceTimeout time.Duration `json:"source_timeout"`

	// CredentialTTL is how long encrypted wallet credentials are retained
	// before the purge job deletes them.
	CredentialTTL time.Duration `json:"credential_ttl"`
}
