package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/sentinelos/sentineld/internal/agent"
	"github.com/sentinelos/sentineld/internal/api"
	"github.com/sentinelos/sentineld/internal/auth"
	"github.com/sentinelos/sentineld/internal/config"
	"github.com/sentinelos/sentineld/internal/database"
	"github.com/sentinelos/sentineld/internal/jupiter"
	"github.com/sentinelos/sentineld/internal/keyvault"
	"github.com/sentinelos/sentineld/internal/logger"
	"github.com/sentinelos/sentineld/internal/pulse"
	"github.com/sentinelos/sentineld/internal/session"
	solrpc "github.com/sentinelos/sentineld/internal/solana"
	"github.com/sentinelos/sentineld/internal/trader"
	"github.com/sentinelos/sentineld/internal/wallet"
	"github.com/sentinelos/sentineld/internal/ws"
)

func main() {
	envFile := flag.String("env", ".env", "path to environment file")
	flag.Parse()

	// Missing .env is fine; config falls back to the process environment.
	_ = godotenv.Load(*envFile)

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "configuration error: %v\n", err)
		os.Exit(1)
	}

	log := logger.New(cfg.LogLevel)

	if err := run(cfg, log); err != nil {
		log.Fatal().Err(err).Msg("Daemon exited")
	}
}

func run(cfg config.Config, log zerolog.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	db, err := database.Connect(cfg)
	if err != nil {
		return fmt.Errorf("database: %w", err)
	}

	redisOpts, err := redis.ParseURL(cfg.RedisURL)
	if err != nil {
		return fmt.Errorf("redis url: %w", err)
	}
	rdb := redis.NewClient(redisOpts)
	defer rdb.Close()
	if err := rdb.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("redis: %w", err)
	}

	vault, err := keyvault.New(cfg.WalletEncryptionKey)
	if err != nil {
		return fmt.Errorf("keyvault: %w", err)
	}

	pool := solrpc.NewPool(cfg.RPCEndpoints, log)
	chain := solrpc.NewClient(pool, log)

	jup := jupiter.NewClient(cfg.JupiterAPIURL, cfg.PriceAPIURL, log)

	sessions := session.NewStore(rdb, cfg.SessionTTL)
	authService := auth.NewService(db, vault, log)
	wallets := wallet.NewManager(db, chain, vault, log)

	store := trader.NewGormStore(db)
	executor := trader.NewExecutor(store, jup, chain, wallets, log)
	autoTrader := trader.NewAutoTrader(store, executor, log)

	oracle := agent.NewOracle(cfg.OpenAIAPIKey, cfg.OpenAIBaseURL, store, log)

	ingestor := pulse.NewIngestor(db, cfg.PulseAPIURL, cfg.PulseInterval, log)
	ingestor.Start(ctx)
	defer ingestor.Stop()

	hub := ws.NewHub(log)
	defer hub.Close()

	port, err := strconv.Atoi(cfg.Port)
	if err != nil {
		return fmt.Errorf("invalid port %q: %w", cfg.Port, err)
	}

	server := api.NewServer(api.ServerConfig{Port: port}, api.Deps{
		DB:        db,
		Auth:      authService,
		Sessions:  sessions,
		Wallets:   wallets,
		Gateway:   jup,
		Chain:     chain,
		Oracle:    oracle,
		Ingestor:  ingestor,
		Auto:      autoTrader,
		Executor:  executor,
		Hub:       hub,
		WSHandler: hub,
	}, log)

	metricsServer := &http.Server{
		Addr:    ":" + cfg.MetricsPort,
		Handler: promhttp.Handler(),
	}

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		if err := server.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("api server: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		log.Info().Str("addr", metricsServer.Addr).Msg("Starting metrics server")
		if err := metricsServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("metrics server: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		<-gctx.Done()
		log.Info().Msg("Shutdown signal received")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()

		if err := server.Shutdown(shutdownCtx); err != nil {
			log.Error().Err(err).Msg("API server shutdown failed")
		}
		if err := metricsServer.Shutdown(shutdownCtx); err != nil {
			log.Error().Err(err).Msg("Metrics server shutdown failed")
		}
		return nil
	})

	return g.Wait()
}
