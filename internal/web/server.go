package web

import (
	"encoding/json"
	"errors"
	"net/http"
	"runtime"
	"strconv"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/google/uuid"
	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/0xedev/vendyz-backend/internal/logger"
	"github.com/0xedev/vendyz-backend/internal/state"
	"github.com/0xedev/vendyz-backend/internal/treasury"
	"github.com/0xedev/vendyz-backend/internal/types"
	"github.com/0xedev/vendyz-backend/internal/utils"
	"github.com/0xedev/vendyz-backend/internal/wallet"
)

var webLogger = logger.GetForComponent("web_server")

// SnapshotProvider yields the latest treasury snapshot, or nil before the
// first refresh completes.
type SnapshotProvider interface {
	Current() *treasury.Snapshot
}

// SponsorProvider yields the current sponsor set.
type SponsorProvider interface {
	Current() types.SponsorSet
}

// CredentialProvider loads a wallet's encrypted secret, returning
// state.ErrCredentialNotFound when none is live.
type CredentialProvider interface {
	Credential(addr common.Address) ([]byte, error)
}

// StoredCredentials serves wallet credentials from the database.
type StoredCredentials struct{}

func (StoredCredentials) Credential(addr common.Address) ([]byte, error) {
	return state.GetCredential(addr)
}

// WebServer exposes allocation and treasury data over HTTP.
type WebServer struct {
	router      *mux.Router
	port        string
	snapshots   SnapshotProvider
	sponsors    SponsorProvider
	credentials CredentialProvider
	cipher      *wallet.Cipher
	startedAt   time.Time
}

// NewWebServer creates a new web server instance.
func NewWebServer(port string, snapshots SnapshotProvider, sponsors SponsorProvider, credentials CredentialProvider, cipher *wallet.Cipher) *WebServer {
	if port == "" {
		port = "8080"
	}

	server := &WebServer{
		router:      mux.NewRouter(),
		port:        port,
		snapshots:   snapshots,
		sponsors:    sponsors,
		credentials: credentials,
		cipher:      cipher,
		startedAt:   time.Now(),
	}

	server.setupRoutes()
	return server
}

// setupRoutes configures all HTTP routes
func (ws *WebServer) setupRoutes() {
	// Health endpoint (direct route)
	ws.router.HandleFunc("/health", ws.handleHealth).Methods("GET")

	// Prometheus scrape endpoint
	ws.router.Path("/metrics").Handler(promhttp.Handler()).Methods("GET")

	// API endpoints
	api := ws.router.PathPrefix("/api").Subrouter()
	api.HandleFunc("/health", ws.handleHealth).Methods("GET")
	api.HandleFunc("/allocations", ws.handleGetAllocations).Methods("GET")
	api.HandleFunc("/allocations/{id}", ws.handleGetAllocation).Methods("GET")
	api.HandleFunc("/treasury/summary", ws.handleGetTreasurySummary).Methods("GET")
	api.HandleFunc("/sponsors", ws.handleGetSponsors).Methods("GET")
	api.HandleFunc("/credentials/{address}", ws.handleGetCredential).Methods("GET")

	// Add CORS middleware
	ws.router.Use(ws.corsMiddleware)
	ws.router.Use(ws.loggingMiddleware)
}

// Start starts the web server
func (ws *WebServer) Start() error {
	webLogger.Info().Str("port", ws.port).Msg("Starting web server")

	server := &http.Server{
		Addr:         ":" + ws.port,
		Handler:      ws.router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	return server.ListenAndServe()
}

// handleHealth returns server health status
func (ws *WebServer) handleHealth(w http.ResponseWriter, r *http.Request) {
	var memStats runtime.MemStats
	runtime.ReadMemStats(&memStats)

	hasErrors := false

	dbHealthy := true
	if err := state.TestDBConnection(); err != nil {
		dbHealthy = false
		hasErrors = true
	}

	snap := ws.snapshots.Current()
	var snapshotInfo map[string]interface{}
	if snap != nil {
		snapshotInfo = map[string]interface{}{
			"taken_at":     snap.TakenAt,
			"funded_count": len(snap.Records()),
		}
	} else {
		snapshotInfo = map[string]interface{}{
			"taken_at":     nil,
			"funded_count": 0,
		}
		hasErrors = true // no snapshot yet means purchases cannot be served
	}

	overallStatus := "OK"
	if hasErrors {
		overallStatus = "DEGRADED"
	}

	response := map[string]interface{}{
		"status":    overallStatus,
		"timestamp": time.Now().UTC().Format(time.RFC3339Nano),
		"system": map[string]interface{}{
			"version":          runtime.Version(),
			"goroutines_count": runtime.NumGoroutine(),
			"alloc_bytes":      memStats.Alloc,
			"sys_bytes":        memStats.Sys,
			"gc_cycles":        memStats.NumGC,
			"uptime_seconds":   int64(time.Since(ws.startedAt).Seconds()),
		},
		"component": map[string]interface{}{
			"name":    "vendyz-allocation-engine",
			"version": "1.0.0",
		},
		"engine_status": map[string]interface{}{
			"database_healthy": dbHealthy,
			"sponsor_count":    len(ws.sponsors.Current()),
			"snapshot_info":    snapshotInfo,
		},
	}

	statusCode := http.StatusOK
	if hasErrors {
		statusCode = http.StatusServiceUnavailable
	}

	ws.writeJSONResponse(w, statusCode, response)
}

// handleGetAllocations returns recent allocations, newest first
func (ws *WebServer) handleGetAllocations(w http.ResponseWriter, r *http.Request) {
	limit := 20
	if limitStr := r.URL.Query().Get("limit"); limitStr != "" {
		if parsedLimit, err := strconv.Atoi(limitStr); err == nil && parsedLimit > 0 && parsedLimit <= 100 {
			limit = parsedLimit
		}
	}

	allocations, err := state.ListRecentAllocations(limit)
	if err != nil {
		webLogger.Error().Err(err).Msg("Failed to list recent allocations")
		ws.writeErrorResponse(w, http.StatusInternalServerError, "Failed to retrieve allocations")
		return
	}

	response := map[string]interface{}{
		"allocations": allocations,
		"count":       len(allocations),
		"limit":       limit,
	}

	ws.writeJSONResponse(w, http.StatusOK, response)
}

// handleGetAllocation returns a specific allocation by ID
func (ws *WebServer) handleGetAllocation(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	idStr := vars["id"]

	id, err := uuid.Parse(idStr)
	if err != nil {
		ws.writeErrorResponse(w, http.StatusBadRequest, "Invalid allocation ID")
		return
	}

	allocation, err := state.GetAllocation(id)
	if err != nil {
		webLogger.Error().Err(err).Str("allocationId", idStr).Msg("Failed to get allocation")
		ws.writeErrorResponse(w, http.StatusNotFound, "Allocation not found")
		return
	}

	ws.writeJSONResponse(w, http.StatusOK, allocation)
}

// treasuryTokenView is the per-token row of the treasury summary.
type treasuryTokenView struct {
	Address       string  `json:"address"`
	Symbol        string  `json:"symbol"`
	Decimals      uint8   `json:"decimals"`
	BalanceNative string  `json:"balance_native"`
	BalanceFloat  float64 `json:"balance"`
	PriceUSD      float64 `json:"price_usd"`
	PriceOrigin   string  `json:"price_origin"`
	ValueUSD      float64 `json:"value_usd"`
}

// handleGetTreasurySummary returns the current treasury snapshot
func (ws *WebServer) handleGetTreasurySummary(w http.ResponseWriter, r *http.Request) {
	snap := ws.snapshots.Current()
	if snap == nil {
		ws.writeErrorResponse(w, http.StatusServiceUnavailable, "No treasury snapshot available yet")
		return
	}

	records := snap.Records()
	tokens := make([]treasuryTokenView, 0, len(records))
	var totalUSD float64
	for _, rec := range records {
		balance, err := utils.NativeToFloat(rec.TreasuryBalance, rec.Decimals)
		if err != nil {
			balance = 0
		}
		view := treasuryTokenView{
			Address:       rec.Address.Hex(),
			Symbol:        rec.Symbol,
			Decimals:      rec.Decimals,
			BalanceNative: rec.TreasuryBalance.String(),
			BalanceFloat:  balance,
			PriceUSD:      rec.PriceUSD,
			PriceOrigin:   string(rec.PriceOrigin),
			ValueUSD:      rec.BalanceUSD(),
		}
		totalUSD += view.ValueUSD
		tokens = append(tokens, view)
	}

	response := map[string]interface{}{
		"taken_at":        snap.TakenAt,
		"token_count":     len(tokens),
		"total_value_usd": totalUSD,
		"tokens":          tokens,
	}

	ws.writeJSONResponse(w, http.StatusOK, response)
}

// handleGetCredential returns the decrypted recovery phrase for a provisioned
// wallet. Credentials disappear once their claim window expires.
func (ws *WebServer) handleGetCredential(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	addrStr := vars["address"]

	if !common.IsHexAddress(addrStr) {
		ws.writeErrorResponse(w, http.StatusBadRequest, "Invalid wallet address")
		return
	}
	addr := common.HexToAddress(addrStr)

	sealed, err := ws.credentials.Credential(addr)
	if err != nil {
		if errors.Is(err, state.ErrCredentialNotFound) {
			ws.writeErrorResponse(w, http.StatusNotFound, "Credential not found or expired")
			return
		}
		webLogger.Error().Err(err).Str("wallet", addr.Hex()).Msg("Failed to load wallet credential")
		ws.writeErrorResponse(w, http.StatusInternalServerError, "Failed to retrieve credential")
		return
	}

	mnemonic, err := ws.cipher.Decrypt(sealed)
	if err != nil {
		webLogger.Error().Err(err).Str("wallet", addr.Hex()).Msg("Failed to decrypt wallet credential")
		ws.writeErrorResponse(w, http.StatusInternalServerError, "Failed to decrypt credential")
		return
	}

	response := map[string]interface{}{
		"address":   addr.Hex(),
		"mnemonic":  string(mnemonic),
		"timestamp": time.Now().UTC(),
	}

	ws.writeJSONResponse(w, http.StatusOK, response)
}

// handleGetSponsors returns the current sponsor set
func (ws *WebServer) handleGetSponsors(w http.ResponseWriter, r *http.Request) {
	set := ws.sponsors.Current()
	sponsors := make([]string, 0, len(set))
	for addr := range set {
		sponsors = append(sponsors, addr.Hex())
	}

	response := map[string]interface{}{
		"sponsors":  sponsors,
		"count":     len(sponsors),
		"timestamp": time.Now().UTC(),
	}

	ws.writeJSONResponse(w, http.StatusOK, response)
}

// writeJSONResponse writes a JSON response
func (ws *WebServer) writeJSONResponse(w http.ResponseWriter, statusCode int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)

	if err := json.NewEncoder(w).Encode(data); err != nil {
		webLogger.Error().Err(err).Msg("Failed to encode JSON response")
	}
}

// writeErrorResponse writes an error response
func (ws *WebServer) writeErrorResponse(w http.ResponseWriter, statusCode int, message string) {
	response := map[string]interface{}{
		"error":     true,
		"message":   message,
		"timestamp": time.Now().UTC(),
	}

	ws.writeJSONResponse(w, statusCode, response)
}

// corsMiddleware adds CORS headers
func (ws *WebServer) corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")

		if r.Method == "OPTIONS" {
			w.WriteHeader(http.StatusOK)
			return
		}

		next.ServeHTTP(w, r)
	})
}

// loggingMiddleware logs HTTP requests
func (ws *WebServer) loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()

		// Create a response writer wrapper to capture status code
		wrapper := &responseWriterWrapper{ResponseWriter: w, statusCode: http.StatusOK}

		next.ServeHTTP(wrapper, r)

		duration := time.Since(start)

		webLogger.Info().
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Str("remote_addr", r.RemoteAddr).
			Int("status", wrapper.statusCode).
			Dur("duration", duration).
			Msg("HTTP request")
	})
}

// responseWriterWrapper wraps http.ResponseWriter to capture status code
type responseWriterWrapper struct {
	http.ResponseWriter
	statusCode int
}

func (w *responseWriterWrapper) WriteHeader(statusCode int) {
	w.statusCode = statusCode
	w.ResponseWriter.WriteHeader(statusCode)
}
