/*

Sponsor registry client. The auction service decides which tokens are
currently sponsored; this client polls it and exposes the latest set. A failed
fetch degrades to an empty set, it is never propagated as a hard error.

*/

package sponsors

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"sync"
	"time"

	"github.com/0xedev/vendyz-backend/internal/logger"
	"github.com/0xedev/vendyz-backend/internal/types"
	"github.com/ethereum/go-ethereum/common"
)

var registryLogger = logger.GetForComponent("sponsor_registry")

type registryResponse struct {
	Sponsors []string `json:"sponsors"`
}

// Registry polls the auction service for the current sponsor set.
type Registry struct {
	url    string
	client *http.Client

	mu      sync.RWMutex
	current types.SponsorSet
}

// NewRegistry builds a registry client. timeout bounds each fetch.
func NewRegistry(url string, timeout time.Duration) *Registry {
	return &Registry{
		url:     url,
		client:  &http.Client{Timeout: timeout},
		current: types.SponsorSet{},
	}
}

// Current returns the most recently fetched sponsor set. Never nil.
func (r *Registry) Current() types.SponsorSet {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.current
}

// Refresh fetches the sponsor set once. Any failure stores an empty set.
func (r *Registry) Refresh(ctx context.Context) {
	set, err := r.fetch(ctx)
	if err != nil {
		registryLogger.Warn().
			Err(err).
			Str("url", r.url).
			Msg("Sponsor fetch failed, treating sponsor set as empty")
		set = types.SponsorSet{}
	}

	r.mu.Lock()
	r.current = set
	r.mu.Unlock()

	registryLogger.Debug().Int("sponsors", len(set)).Msg("Sponsor set refreshed")
}

// Run refreshes immediately, then on every tick until the context ends.
func (r *Registry) Run(ctx context.Context, interval time.Duration) {
	r.Refresh(ctx)

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			registryLogger.Info().Msg("Sponsor registry loop stopped")
			return
		case <-ticker.C:
			r.Refresh(ctx)
		}
	}
}

func (r *Registry) fetch(ctx context.Context) (types.SponsorSet, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, r.url, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := r.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("sponsor request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("sponsor registry returned status %d", resp.StatusCode)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response body: %w", err)
	}

	var decoded registryResponse
	if err := json.Unmarshal(body, &decoded); err != nil {
		return nil, fmt.Errorf("failed to parse sponsor response: %w", err)
	}

	set := make(types.SponsorSet, len(decoded.Sponsors))
	for _, raw := range decoded.Sponsors {
		if !common.IsHexAddress(raw) {
			registryLogger.Warn().Str("address", raw).Msg("Skipping malformed sponsor address")
			continue
		}
		set[common.HexToAddress(raw)] = struct{}{}
	}

	return set, nil
}
