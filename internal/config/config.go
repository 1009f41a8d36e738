package config

import (
	"fmt"
	"os"
	"strings"
	"time"
)

// Config holds all configuration for the sentineld daemon
type Config struct {
	// Database configuration
	DBHost     string
	DBUser     string
	DBPassword string
	DBName     string
	DBPort     string
	DBSSLMode  string

	// Redis configuration (session store)
	RedisURL string

	// RPC configuration. Endpoints are tried in order on failure.
	RPCEndpoints []string

	// Custodial key encryption
	WalletEncryptionKey string

	// External services
	JupiterAPIURL string
	PriceAPIURL   string
	PulseAPIURL   string
	OpenAIAPIKey  string
	OpenAIBaseURL string

	// Market data polling
	PulseInterval time.Duration

	// Session configuration
	SessionTTL time.Duration

	// HTTP configuration
	Port        string
	MetricsPort string

	// Logging configuration
	LogLevel string
}

// Load reads configuration from environment variables and validates it
func Load() (Config, error) {
	cfg := Config{
		DBHost:              getEnv("DB_HOST", "localhost"),
		DBUser:              getEnv("DB_USER", ""),
		DBPassword:          getEnv("DB_PASSWORD", ""),
		DBName:              getEnv("DB_NAME", ""),
		DBPort:              getEnv("DB_PORT", "5432"),
		DBSSLMode:           getEnv("DB_SSL_MODE", "disable"),
		RedisURL:            getEnv("REDIS_URL", "redis://localhost:6379"),
		WalletEncryptionKey: getEnv("WALLET_ENCRYPTION_KEY", ""),
		JupiterAPIURL:       getEnv("JUPITER_API_URL", "https://lite-api.jup.ag/swap/v1"),
		PriceAPIURL:         getEnv("PRICE_API_URL", "https://price.jup.ag/v6"),
		PulseAPIURL:         getEnv("PULSE_API_URL", "https://axiom.trade/api/pulse"),
		OpenAIAPIKey:        getEnv("OPENAI_API_KEY", ""),
		OpenAIBaseURL:       getEnv("OPENAI_BASE_URL", ""),
		Port:                getEnv("PORT", "5000"),
		MetricsPort:         getEnv("METRICS_PORT", "9100"),
		LogLevel:            getEnv("LOG_LEVEL", "info"),
	}

	// Parse RPC endpoints
	rpcEndpointsStr := getEnv("RPC_ENDPOINTS", "")
	if rpcEndpointsStr == "" {
		return cfg, fmt.Errorf("RPC_ENDPOINTS environment variable is required")
	}
	cfg.RPCEndpoints = strings.Split(rpcEndpointsStr, ",")
	for i, endpoint := range cfg.RPCEndpoints {
		cfg.RPCEndpoints[i] = strings.TrimSpace(endpoint)
	}

	var err error
	cfg.PulseInterval, err = parseDurationEnv("PULSE_INTERVAL", 2*time.Minute)
	if err != nil {
		return cfg, fmt.Errorf("invalid PULSE_INTERVAL: %w", err)
	}

	cfg.SessionTTL, err = parseDurationEnv("SESSION_TTL", 24*time.Hour)
	if err != nil {
		return cfg, fmt.Errorf("invalid SESSION_TTL: %w", err)
	}

	// Validate configuration
	if err := cfg.validate(); err != nil {
		return cfg, fmt.Errorf("configuration validation failed: %w", err)
	}

	return cfg, nil
}

// validate checks that the configuration is valid
func (c Config) validate() error {
	if c.DBName == "" {
		return fmt.Errorf("DB_NAME is required")
	}

	if c.RedisURL == "" {
		return fmt.Errorf("REDIS_URL is required")
	}

	if c.WalletEncryptionKey == "" {
		return fmt.Errorf("WALLET_ENCRYPTION_KEY is required")
	}

	if len(c.RPCEndpoints) == 0 {
		return fmt.Errorf("at least one RPC endpoint is required")
	}

	if c.PulseInterval < time.Second {
		return fmt.Errorf("PULSE_INTERVAL must be at least 1s")
	}

	if c.SessionTTL < time.Minute {
		return fmt.Errorf("SESSION_TTL must be at least 1m")
	}

	validLogLevels := map[string]bool{
		"trace": true,
		"debug": true,
		"info":  true,
		"warn":  true,
		"error": true,
		"fatal": true,
		"panic": true,
	}

	if !validLogLevels[strings.ToLower(c.LogLevel)] {
		return fmt.Errorf("invalid LOG_LEVEL: %s (must be one of: trace, debug, info, warn, error, fatal, panic)", c.LogLevel)
	}

	return nil
}

// getEnv retrieves an environment variable with a default value
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// parseDurationEnv parses a duration environment variable with a default value
func parseDurationEnv(key string, defaultValue time.Duration) (time.Duration, error) {
	str := os.Getenv(key)
	if str == "" {
		return defaultValue, nil
	}
	return time.ParseDuration(str)
}
