package logger

import (
	"bytes"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
)

func TestContextHelpers(t *testing.T) {
	var buf bytes.Buffer
	base := zerolog.New(&buf)

	agentLogger := WithAgent(base, 7)
	agentLogger.Info().Msg("agent event")
	assert.Contains(t, buf.String(), `"agent_id":7`)

	buf.Reset()
	walletLogger := WithWallet(base, "7xKXtg2CW87d97TXJSDpbD5jBkheTqA83TZRuJosgAsU")
	walletLogger.Info().Msg("wallet event")
	assert.Contains(t, buf.String(), `"wallet":"7xKXtg2CW87d97TXJSDpbD5jBkheTqA83TZRuJosgAsU"`)

	buf.Reset()
	endpointLogger := WithRPCEndpoint(base, "https://rpc.example.com")
	endpointLogger.Warn().Msg("endpoint event")
	assert.Contains(t, buf.String(), `"rpc_endpoint":"https://rpc.example.com"`)
}

func TestNewParsesLevel(t *testing.T) {
	log := New("warn")
	assert.Equal(t, zerolog.WarnLevel, log.GetLevel())

	// Unknown levels fall back to info
	log = New("chatty")
	assert.Equal(t, zerolog.InfoLevel, log.GetLevel())
}
