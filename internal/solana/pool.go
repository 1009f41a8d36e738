package solana

import (
	"net/http"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/time/rate"

	applog "github.com/sentinelos/sentineld/internal/logger"
	"github.com/sentinelos/sentineld/internal/metrics"
)

// Pool manages an ordered list of RPC endpoints with rate limiting. The
// first endpoint is the preferred one; later endpoints are fallbacks
// used only when everything ahead of them is unhealthy, cooling down,
// or out of rate budget.
type Pool struct {
	endpoints []*Endpoint
	logger    zerolog.Logger
}

// Endpoint represents a single RPC endpoint with its own rate limiter
type Endpoint struct {
	url           string
	client        *http.Client
	limiter       *rate.Limiter
	healthy       bool
	cooldownUntil time.Time
	mutex         sync.RWMutex
}

// NewPool creates a pool over the given endpoint URLs, preserving order.
func NewPool(urls []string, logger zerolog.Logger) *Pool {
	endpoints := make([]*Endpoint, len(urls))

	for i, url := range urls {
		endpoints[i] = &Endpoint{
			url: url,
			client: &http.Client{
				Timeout: 30 * time.Second,
			},
			// Rate limit to ~2 req/s per endpoint to stay under free tier limits
			limiter: rate.NewLimiter(rate.Limit(2.0), 5),
			healthy: true,
		}

		metrics.SetRPCEndpointHealth(url, true)
	}

	return &Pool{
		endpoints: endpoints,
		logger:    logger.With().Str("component", "rpc_pool").Logger(),
	}
}

// available reports whether the endpoint is healthy and not cooling down.
func (e *Endpoint) available() bool {
	e.mutex.RLock()
	defer e.mutex.RUnlock()
	return e.healthy && time.Now().After(e.cooldownUntil)
}

// MarkUnhealthy marks an endpoint as unhealthy
func (p *Pool) MarkUnhealthy(url string) {
	for _, endpoint := range p.endpoints {
		if endpoint.url == url {
			endpoint.mutex.Lock()
			endpoint.healthy = false
			endpoint.mutex.Unlock()

			metrics.SetRPCEndpointHealth(url, false)
			endpointLogger := applog.WithRPCEndpoint(p.logger, url)
			endpointLogger.Warn().Msg("Marked endpoint as unhealthy")
			break
		}
	}
}

// MarkHealthy marks an endpoint as healthy and clears any cooldown
func (p *Pool) MarkHealthy(url string) {
	for _, endpoint := range p.endpoints {
		if endpoint.url == url {
			endpoint.mutex.Lock()
			endpoint.healthy = true
			endpoint.cooldownUntil = time.Time{}
			endpoint.mutex.Unlock()

			metrics.SetRPCEndpointHealth(url, true)
			endpointLogger := applog.WithRPCEndpoint(p.logger, url)
			endpointLogger.Info().Msg("Marked endpoint as healthy")
			break
		}
	}
}

// SetCooldown puts an endpoint in cooldown for the specified duration
func (p *Pool) SetCooldown(url string, duration time.Duration) {
	for _, endpoint := range p.endpoints {
		if endpoint.url == url {
			endpoint.mutex.Lock()
			endpoint.cooldownUntil = time.Now().Add(duration)
			endpoint.mutex.Unlock()

			endpointLogger := applog.WithRPCEndpoint(p.logger, url)
			endpointLogger.Warn().
				Dur("duration", duration).
				Msg("Set endpoint cooldown")
			break
		}
	}
}

// HealthyEndpointCount returns the number of currently usable endpoints
func (p *Pool) HealthyEndpointCount() int {
	count := 0
	for _, endpoint := range p.endpoints {
		if endpoint.available() {
			count++
		}
	}
	return count
}

// Stats returns pool statistics for the health endpoint
func (p *Pool) Stats() map[string]interface{} {
	endpoints := make([]map[string]interface{}, len(p.endpoints))
	for i, endpoint := range p.endpoints {
		endpoint.mutex.RLock()
		endpoints[i] = map[string]interface{}{
			"url":         endpoint.url,
			"healthy":     endpoint.healthy,
			"in_cooldown": time.Now().Before(endpoint.cooldownUntil),
		}
		endpoint.mutex.RUnlock()
	}

	return map[string]interface{}{
		"total_endpoints":   len(p.endpoints),
		"healthy_endpoints": p.HealthyEndpointCount(),
		"endpoints":         endpoints,
	}
}
