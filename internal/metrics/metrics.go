package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// TradesExecuted tracks trade executions by action and outcome
	TradesExecuted = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "sentineld_trades_executed_total",
			Help: "The total number of trade executions",
		},
		[]string{"action", "status"}, // buy/sell, success/failed/manual_approval
	)

	// RPCRequestsTotal tracks Solana RPC requests by status
	RPCRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "sentineld_rpc_requests_total",
			Help: "The total number of Solana RPC requests",
		},
		[]string{"method", "status"},
	)

	// RPCEndpointHealth tracks RPC endpoint health
	RPCEndpointHealth = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "sentineld_rpc_endpoint_health",
			Help: "Health status of RPC endpoints (1 = healthy, 0 = unhealthy)",
		},
		[]string{"endpoint"},
	)

	// QuoteLatency tracks swap aggregator quote latency
	QuoteLatency = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "sentineld_quote_latency_seconds",
		Help:    "Time taken to fetch a swap quote in seconds",
		Buckets: prometheus.DefBuckets,
	})

	// PulseTokensIngested tracks market data ingestion
	PulseTokensIngested = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "sentineld_pulse_tokens_ingested_total",
			Help: "The total number of discovered tokens ingested",
		},
		[]string{"result"}, // created, updated, failed
	)

	// WSClientsConnected tracks connected push subscribers
	WSClientsConnected = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "sentineld_ws_clients_connected",
		Help: "The number of WebSocket subscribers currently connected",
	})

	// AuthAttempts tracks signature verification outcomes
	AuthAttempts = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "sentineld_auth_attempts_total",
			Help: "The total number of authentication attempts",
		},
		[]string{"status"}, // success, failed
	)
)

// RecordTrade records a trade execution outcome
func RecordTrade(action, status string) {
	TradesExecuted.WithLabelValues(action, status).Inc()
}

// RecordRPCRequest records a Solana RPC request
func RecordRPCRequest(method, status string) {
	RPCRequestsTotal.WithLabelValues(method, status).Inc()
}

// SetRPCEndpointHealth sets the health status of an RPC endpoint
func SetRPCEndpointHealth(endpoint string, healthy bool) {
	value := 0.0
	if healthy {
		value = 1.0
	}
	RPCEndpointHealth.WithLabelValues(endpoint).Set(value)
}

// RecordQuoteLatency records the time taken to fetch a quote
func RecordQuoteLatency(seconds float64) {
	QuoteLatency.Observe(seconds)
}

// RecordPulseToken records an ingested token
func RecordPulseToken(result string) {
	PulseTokensIngested.WithLabelValues(result).Inc()
}

// RecordAuthAttempt records an authentication attempt
func RecordAuthAttempt(status string) {
	AuthAttempts.WithLabelValues(status).Inc()
}
