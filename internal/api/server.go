// Package api provides the HTTP API server implementation.
package api

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"github.com/rs/zerolog"
	"gorm.io/gorm"

	"github.com/sentinelos/sentineld/internal/agent"
	"github.com/sentinelos/sentineld/internal/jupiter"
	"github.com/sentinelos/sentineld/internal/models"
	"github.com/sentinelos/sentineld/internal/trader"
)

// Service interfaces for dependency injection and testing

// Authenticator issues login challenges and verifies signed logins.
type Authenticator interface {
	Challenge(ctx context.Context, walletAddress string) (string, error)
	Login(ctx context.Context, walletAddress, signature string) (*models.User, error)
}

// SessionStore mints and resolves bearer tokens.
type SessionStore interface {
	Create(ctx context.Context, userID uint) (string, error)
	Resolve(ctx context.Context, token string) (uint, error)
	Revoke(ctx context.Context, token string) error
}

// WalletService serves managed wallet state.
type WalletService interface {
	Get(ctx context.Context, userID uint) (*models.ManagedWallet, error)
	RefreshBalance(ctx context.Context, userID uint) (float64, error)
	Transactions(ctx context.Context, userID uint, limit int) ([]models.WalletTransaction, error)
	RecordTransaction(ctx context.Context, tx *models.WalletTransaction) error
}

// SwapGateway quotes and assembles swaps.
type SwapGateway interface {
	GetQuote(ctx context.Context, inputMint, outputMint, amount string, slippageBps int) (*jupiter.Quote, error)
	BuildSwapTransaction(ctx context.Context, quote *jupiter.Quote, userPublicKey string) (*jupiter.SwapTransaction, error)
	GetTokenPrice(ctx context.Context, mint string) float64
}

// ChainReader reads on-chain state.
type ChainReader interface {
	GetBalance(ctx context.Context, address string) (float64, error)
	Stats() map[string]interface{}
}

// DecisionOracle produces agent decisions and market analysis.
type DecisionOracle interface {
	GetDecision(ctx context.Context, a *models.Agent, marketData map[string]interface{}) agent.Decision
	AnalyzeMarketConditions(ctx context.Context, tokenSymbol string) map[string]interface{}
}

// TokenIngestor triggers a discovery refresh on demand.
type TokenIngestor interface {
	RunOnce(ctx context.Context) (int, error)
}

// AutoTradeRunner sweeps a user's watchlist.
type AutoTradeRunner interface {
	ProcessAutoTrades(ctx context.Context, userID uint) ([]trader.Result, error)
}

// TradeExecutor runs a single trade for an agent.
type TradeExecutor interface {
	Execute(ctx context.Context, a *models.Agent, tokenMint, action string, amount float64) (*trader.Result, error)
}

// Broadcaster pushes events to connected dashboard clients.
type Broadcaster interface {
	Broadcast(eventType string, data interface{})
}

// Server represents the HTTP API server.
type Server struct {
	router     *mux.Router
	httpServer *http.Server
	logger     zerolog.Logger

	db       *gorm.DB
	auth     Authenticator
	sessions SessionStore
	wallets  WalletService
	gateway  SwapGateway
	chain    ChainReader
	oracle   DecisionOracle
	ingestor TokenIngestor
	auto     AutoTradeRunner
	executor TradeExecutor
	hub      Broadcaster
	wsHandler http.Handler
}

// ServerConfig holds server configuration.
type ServerConfig struct {
	Port         int
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	IdleTimeout  time.Duration
}

// Deps bundles the server's collaborators.
type Deps struct {
	DB        *gorm.DB
	Auth      Authenticator
	Sessions  SessionStore
	Wallets   WalletService
	Gateway   SwapGateway
	Chain     ChainReader
	Oracle    DecisionOracle
	Ingestor  TokenIngestor
	Auto      AutoTradeRunner
	Executor  TradeExecutor
	Hub       Broadcaster
	WSHandler http.Handler
}

// NewServer creates a new API server instance.
func NewServer(config ServerConfig, deps Deps, logger zerolog.Logger) *Server {
	s := &Server{
		router:    mux.NewRouter(),
		logger:    logger.With().Str("component", "api").Logger(),
		db:        deps.DB,
		auth:      deps.Auth,
		sessions:  deps.Sessions,
		wallets:   deps.Wallets,
		gateway:   deps.Gateway,
		chain:     deps.Chain,
		oracle:    deps.Oracle,
		ingestor:  deps.Ingestor,
		auto:      deps.Auto,
		executor:  deps.Executor,
		hub:       deps.Hub,
		wsHandler: deps.WSHandler,
	}

	s.setupRouter(config)

	return s
}

// setupRouter configures the router with middleware and routes
func (s *Server) setupRouter(config ServerConfig) {
	s.router.Use(s.loggingMiddleware)
	s.router.Use(s.recoveryMiddleware)
	s.router.Use(corsMiddleware)

	s.setupRoutes()

	if config.ReadTimeout == 0 {
		config.ReadTimeout = 15 * time.Second
	}
	if config.WriteTimeout == 0 {
		config.WriteTimeout = 30 * time.Second
	}
	if config.IdleTimeout == 0 {
		config.IdleTimeout = 60 * time.Second
	}

	s.httpServer = &http.Server{
		Addr:         fmt.Sprintf(":%d", config.Port),
		Handler:      s.router,
		ReadTimeout:  config.ReadTimeout,
		WriteTimeout: config.WriteTimeout,
		IdleTimeout:  config.IdleTimeout,
	}
}

// setupRoutes configures all API routes.
func (s *Server) setupRoutes() {
	s.router.HandleFunc("/health", s.handleHealth).Methods("GET")
	if s.wsHandler != nil {
		s.router.Handle("/ws", s.wsHandler)
	}

	api := s.router.PathPrefix("/api").Subrouter()

	// Auth endpoints
	api.HandleFunc("/auth/nonce", s.handleAuthNonce).Methods("POST")
	api.HandleFunc("/auth/verify", s.handleAuthVerify).Methods("POST")
	api.HandleFunc("/auth/me", s.requireAuth(s.handleAuthMe)).Methods("GET")
	api.HandleFunc("/auth/profile", s.requireAuth(s.handleAuthProfile)).Methods("PATCH")
	api.HandleFunc("/auth/logout", s.requireAuth(s.handleAuthLogout)).Methods("POST")

	// Managed wallet endpoints
	api.HandleFunc("/managed-wallet", s.requireAuth(s.handleManagedWallet)).Methods("GET")
	api.HandleFunc("/managed-wallet/transactions", s.requireAuth(s.handleWalletTransactions)).Methods("GET")
	api.HandleFunc("/wallet/deposit", s.requireAuth(s.handleWalletDeposit)).Methods("POST")
	api.HandleFunc("/wallet/deposit/confirm", s.requireAuth(s.handleWalletDepositConfirm)).Methods("POST")
	api.HandleFunc("/wallet/withdraw", s.requireAuth(s.handleWalletWithdraw)).Methods("POST")
	api.HandleFunc("/wallet/balance/{address}", s.handleWalletBalance).Methods("GET")

	// Agent endpoints
	api.HandleFunc("/agents", s.requireAuth(s.handleListAgents)).Methods("GET")
	api.HandleFunc("/agents", s.requireAuth(s.handleCreateAgent)).Methods("POST")
	api.HandleFunc("/agents/{id}", s.requireAuth(s.handleGetAgent)).Methods("GET")
	api.HandleFunc("/agents/{id}", s.requireAuth(s.handleUpdateAgent)).Methods("PATCH")
	api.HandleFunc("/agents/{id}", s.requireAuth(s.handleDeleteAgent)).Methods("DELETE")
	api.HandleFunc("/agents/{id}/decide", s.requireAuth(s.handleAgentDecide)).Methods("POST")
	api.HandleFunc("/agents/{id}/execute", s.requireAuth(s.handleAgentExecute)).Methods("POST")

	// Transaction and activity endpoints
	api.HandleFunc("/transactions", s.requireAuth(s.handleListTransactions)).Methods("GET")
	api.HandleFunc("/transactions", s.requireAuth(s.handleCreateTransaction)).Methods("POST")
	api.HandleFunc("/transactions/{id}", s.requireAuth(s.handleGetTransaction)).Methods("GET")
	api.HandleFunc("/activity-logs", s.requireAuth(s.handleListActivityLogs)).Methods("GET")
	api.HandleFunc("/activity-logs/recent", s.requireAuth(s.handleRecentActivityLogs)).Methods("GET")
	api.HandleFunc("/activity-logs", s.requireAuth(s.handleCreateActivityLog)).Methods("POST")

	// Market and swap endpoints
	api.HandleFunc("/tokens/discovered", s.handleDiscoveredTokens).Methods("GET")
	api.HandleFunc("/tokens/refresh", s.requireAuth(s.handleTokensRefresh)).Methods("POST")
	api.HandleFunc("/market/analyze", s.handleMarketAnalyze).Methods("GET")
	api.HandleFunc("/swap/tokens", s.handleSwapTokens).Methods("GET")
	api.HandleFunc("/swap/price/{mint}", s.handleSwapPrice).Methods("GET")
	api.HandleFunc("/swap/quote", s.handleSwapQuote).Methods("POST")
	api.HandleFunc("/swap/transaction", s.handleSwapTransaction).Methods("POST")

	// Watchlist and auto-trade endpoints
	api.HandleFunc("/watchlist", s.requireAuth(s.handleGetWatchlist)).Methods("GET")
	api.HandleFunc("/watchlist", s.requireAuth(s.handleAddWatchlistItem)).Methods("POST")
	api.HandleFunc("/watchlist/{id}", s.requireAuth(s.handleUpdateWatchlistItem)).Methods("PATCH")
	api.HandleFunc("/watchlist/{id}", s.requireAuth(s.handleDeleteWatchlistItem)).Methods("DELETE")
	api.HandleFunc("/trades/auto-execute", s.requireAuth(s.handleAutoExecute)).Methods("POST")
	api.HandleFunc("/trades/execute", s.requireAuth(s.handleTradeExecute)).Methods("POST")
}

// handleHealth handles health check requests.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	payload := map[string]interface{}{
		"status":  "healthy",
		"service": "sentineld",
	}
	if s.chain != nil {
		payload["rpc"] = s.chain.Stats()
	}
	respondJSON(w, http.StatusOK, payload)
}

// Handler exposes the router, mainly for tests.
func (s *Server) Handler() http.Handler {
	return s.router
}

// Start starts the HTTP server.
func (s *Server) Start() error {
	s.logger.Info().Str("addr", s.httpServer.Addr).Msg("Starting API server")
	return s.httpServer.ListenAndServe()
}

// Shutdown gracefully shuts down the server.
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info().Msg("Shutting down API server")
	return s.httpServer.Shutdown(ctx)
}
