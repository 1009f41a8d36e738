package ws

import (
	"encoding/json"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func dial(t *testing.T, server *httptest.Server) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(server.URL, "http")
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	return conn
}

func readEnvelope(t *testing.T, conn *websocket.Conn) Envelope {
	t.Helper()
	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, frame, err := conn.ReadMessage()
	require.NoError(t, err)

	var env Envelope
	require.NoError(t, json.Unmarshal(frame, &env))
	return env
}

func TestGreetingFrame(t *testing.T) {
	hub := NewHub(zerolog.Nop())
	server := httptest.NewServer(hub)
	defer server.Close()
	defer hub.Close()

	conn := dial(t, server)

	env := readEnvelope(t, conn)
	assert.Equal(t, "connected", env.Type)
	assert.NotZero(t, env.Timestamp)

	data, ok := env.Data.(map[string]interface{})
	require.True(t, ok)
	assert.Equal(t, "Connected to SentinelOS", data["message"])
}

func TestBroadcastReachesAllClients(t *testing.T) {
	hub := NewHub(zerolog.Nop())
	server := httptest.NewServer(hub)
	defer server.Close()
	defer hub.Close()

	first := dial(t, server)
	second := dial(t, server)
	readEnvelope(t, first)
	readEnvelope(t, second)

	require.Eventually(t, func() bool { return hub.ClientCount() == 2 }, time.Second, 10*time.Millisecond)

	hub.Broadcast("trade_executed", map[string]string{"txId": "abc"})

	for _, conn := range []*websocket.Conn{first, second} {
		env := readEnvelope(t, conn)
		assert.Equal(t, "trade_executed", env.Type)
		data := env.Data.(map[string]interface{})
		assert.Equal(t, "abc", data["txId"])
	}
}

func TestDisconnectUnregisters(t *testing.T) {
	hub := NewHub(zerolog.Nop())
	server := httptest.NewServer(hub)
	defer server.Close()
	defer hub.Close()

	conn := dial(t, server)
	readEnvelope(t, conn)
	require.Eventually(t, func() bool { return hub.ClientCount() == 1 }, time.Second, 10*time.Millisecond)

	conn.Close()
	require.Eventually(t, func() bool { return hub.ClientCount() == 0 }, time.Second, 10*time.Millisecond)

	// Broadcasting to nobody must not panic
	hub.Broadcast("noop", nil)
}
