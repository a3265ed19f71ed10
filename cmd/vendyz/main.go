package main

import (
	"context"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/0xedev/vendyz-backend/internal/allocator"
	"github.com/0xedev/vendyz-backend/internal/config"
	"github.com/0xedev/vendyz-backend/internal/dispatcher"
	"github.com/0xedev/vendyz-backend/internal/events"
	"github.com/0xedev/vendyz-backend/internal/funding"
	"github.com/0xedev/vendyz-backend/internal/logger"
	"github.com/0xedev/vendyz-backend/internal/observability"
	"github.com/0xedev/vendyz-backend/internal/pricing"
	"github.com/0xedev/vendyz-backend/internal/sponsors"
	"github.com/0xedev/vendyz-backend/internal/state"
	"github.com/0xedev/vendyz-backend/internal/treasury"
	"github.com/0xedev/vendyz-backend/internal/wallet"
	"github.com/0xedev/vendyz-backend/internal/web"

	"github.com/ethereum/go-ethereum/ethclient"
	"github.com/joho/godotenv"
	"github.com/rs/zerolog/log"
)

const (
	EVENT_POLL_INTERVAL       = 5 * time.Second
	SPONSOR_REFRESH_INTERVAL  = 1 * time.Minute
	CREDENTIAL_PURGE_INTERVAL = 1 * time.Hour
)

// main is the entry point for the token allocation engine.
func main() {
	// --- 1. Initialization Phase ---
	if err := godotenv.Load(); err != nil {
		log.Warn().Msg("Warning: .env file not found. Relying on OS environment variables.")
	}

	// Load configuration from environment variables
	if err := config.LoadConfig(); err != nil {
		log.Fatal().Err(err).Msg("Failed to load configuration")
	}

	logger.Initialize(os.Getenv("LOG_LEVEL"))
	log.Info().Msg("Token Allocation Engine Starting...")

	params := config.DefaultAllocationParameters
	metrics := observability.NewMetrics("")

	// Initialize Database Connection
	dbCfg := state.DBConfig{
		Host: os.Getenv("DB_HOST"), Port: mustAtoi(os.Getenv("DB_PORT"), 5432),
		User: os.Getenv("DB_USER"), Password: os.Getenv("DB_PASSWORD"),
		DBName: os.Getenv("DB_NAME"), SSLMode: os.Getenv("DB_SSLMODE"),
	}
	if err := state.InitDB(dbCfg); err != nil {
		log.Fatal().Err(err).Msg("Failed to initialize database")
	}
	defer state.CloseDB()
	if err := state.EnsureSchema(); err != nil {
		log.Fatal().Err(err).Msg("Failed to ensure database schema")
	}

	// Initialize chain connection
	client, err := ethclient.Dial(config.NodeRPC)
	if err != nil {
		log.Fatal().Err(err).Str("endpoint", config.NodeRPC).Msg("Node RPC connection error")
	}
	defer client.Close()
	log.Info().Str("endpoint", config.NodeRPC).Msg("Node RPC connected")

	// --- 2. Pricing and Treasury ---
	primary := pricing.NewCoinGecko(config.PrimaryPriceAPI, params.PrimaryMinInterval, params.SourceTimeout)
	fallback := pricing.NewDexScreener(config.FallbackPriceAPI, config.WrappedNativeToken, params.FallbackMinInterval, params.SourceTimeout)
	priceCache := pricing.NewCache(primary, fallback, params.PriceTTL)
	priceCache.SetMetrics(metrics)

	reader, err := treasury.NewChainReader(client)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to initialize treasury reader")
	}
	manager := treasury.NewManager(reader, priceCache, config.TreasuryAddress, config.WatchList, params.RefreshInterval)
	manager.SetMetrics(metrics)

	// --- 3. Sponsors, Engine and Funding ---
	registry := sponsors.NewRegistry(config.SponsorRegistryURL, params.SourceTimeout)

	engine, err := allocator.NewEngine(params, allocator.NewRandomPicker())
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to create allocation engine")
	}

	cipher, err := wallet.NewCipher(config.CredentialKeyHex)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to initialize credential cipher")
	}

	executor, err := funding.NewExecutor(client, config.VendingContract, config.OperatorKeyHex, config.ChainID)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to initialize funding executor")
	}
	log.Info().Str("operator", executor.Sender().Hex()).Msg("Funding executor ready")

	// --- 4. Dispatcher and Event Listener ---
	disp, err := dispatcher.NewDispatcher(dispatcher.Config{
		Snapshots: func() dispatcher.SnapshotSource {
			snap := manager.Current()
			if snap == nil {
				return nil
			}
			return snap
		},
		Sponsors: registry,
		Engine:   engine,
		Cipher:   cipher,
		Funder:   executor,
		Metrics:  metrics,
	})
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to create dispatcher")
	}

	listener, err := events.NewListener(client, config.VendingContract)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to create purchase listener")
	}
	listener.SetHandler(disp.HandlePurchase)

	// --- 5. Start Web Server ---
	webPort := os.Getenv("WEB_PORT")
	if webPort == "" {
		webPort = "8080"
	}

	webServer := web.NewWebServer(webPort, manager, registry, web.StoredCredentials{}, cipher)
	go func() {
		log.Info().Str("port", webPort).Msg("Starting retrieval API")
		if err := webServer.Start(); err != nil {
			log.Error().Err(err).Msg("Web server failed to start")
		}
	}()

	// --- 6. Run Loops ---
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	go manager.Run(ctx)
	go registry.Run(ctx, SPONSOR_REFRESH_INTERVAL)
	go state.RunPurgeLoop(ctx, CREDENTIAL_PURGE_INTERVAL, func(count int64) {
		metrics.CredentialsPurged.Add(float64(count))
	})

	log.Info().
		Str("vending_contract", config.VendingContract.Hex()).
		Str("treasury", config.TreasuryAddress.Hex()).
		Int("watchlist", len(config.WatchList)).
		Msg("Starting purchase listener")

	if err := listener.Run(ctx, EVENT_POLL_INTERVAL); err != nil && ctx.Err() == nil {
		log.Fatal().Err(err).Msg("Purchase listener exited")
	}

	log.Info().Msg("Shutdown complete")
}

// Helper to convert string to int with a default value
func mustAtoi(s string, defaultValue int) int {
	i, err := strconv.Atoi(s)
	if err != nil {
		return defaultValue
	}
	return i
}
