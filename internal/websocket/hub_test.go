package websocket

import (
	"encoding/json"
	"net"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sentinel-labs/netsec/internal/models"
)

func TestHubInitialStateAndBroadcast(t *testing.T) {
	hub := NewHub(func() interface{} {
		return map[string]interface{}{"tools": 10}
	})
	go hub.Run()
	t.Cleanup(hub.Stop)

	server := httptest.NewServer(http.HandlerFunc(hub.HandleWebSocket))
	defer server.Close()

	wsURL := "ws" + strings.TrimPrefix(server.URL, "http")
	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	require.NoError(t, err)
	defer conn.Close()

	var initial Message
	require.NoError(t, conn.ReadJSON(&initial))
	assert.Equal(t, "initialState", initial.Type)

	hub.BroadcastEvent(models.Event{Type: models.EventAlertCreated, Data: map[string]interface{}{"title": "test"}})

	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	var evtMsg Message
	require.NoError(t, conn.ReadJSON(&evtMsg))
	assert.Equal(t, "event", evtMsg.Type)
}

func TestBroadcastStateEnqueuesSequenced(t *testing.T) {
	hub := NewHub(nil)
	state := map[string]interface{}{"devices": 3}

	hub.BroadcastState(state)

	select {
	case msg := <-hub.broadcastSeq:
		assert.Equal(t, "rawData", msg.Type)
	case <-time.After(200 * time.Millisecond):
		t.Fatal("expected broadcastSeq message")
	}
}

func TestBroadcastAlertResolvedAndCustom(t *testing.T) {
	hub := NewHub(nil)

	hub.BroadcastAlertResolved("alert-1")
	select {
	case data := <-hub.broadcast:
		var msg Message
		require.NoError(t, json.Unmarshal(data, &msg))
		assert.Equal(t, "alertResolved", msg.Type)
		payload := msg.Data.(map[string]interface{})
		assert.Equal(t, "alert-1", payload["alertId"])
	case <-time.After(200 * time.Millisecond):
		t.Fatal("expected alertResolved broadcast")
	}

	hub.Broadcast(map[string]string{"status": "ok"})
	select {
	case data := <-hub.broadcast:
		var msg Message
		require.NoError(t, json.Unmarshal(data, &msg))
		assert.Equal(t, "custom", msg.Type)
		assert.NotEmpty(t, msg.Timestamp)
	case <-time.After(200 * time.Millisecond):
		t.Fatal("expected custom broadcast")
	}
}

func TestSendPingEnqueuesMessage(t *testing.T) {
	hub := NewHub(nil)
	hub.sendPing()

	select {
	case data := <-hub.broadcast:
		var msg Message
		require.NoError(t, json.Unmarshal(data, &msg))
		assert.Equal(t, "ping", msg.Type)
		payload := msg.Data.(map[string]interface{})
		assert.Contains(t, payload, "timestamp")
	case <-time.After(200 * time.Millisecond):
		t.Fatal("expected ping broadcast")
	}
}

func TestStopClosesChannel(t *testing.T) {
	hub := NewHub(nil)
	hub.Stop()

	select {
	case _, ok := <-hub.stopChan:
		assert.False(t, ok)
	case <-time.After(200 * time.Millisecond):
		t.Fatal("expected stopChan closure")
	}
}

func TestStopIsIdempotent(t *testing.T) {
	hub := NewHub(nil)
	hub.Stop()
	hub.Stop()

	select {
	case _, ok := <-hub.stopChan:
		assert.False(t, ok)
	default:
		t.Fatal("expected stopChan to be closed after repeated Stop calls")
	}
}

func TestTryRegisterClientReturnsFalseWhenStopped(t *testing.T) {
	hub := NewHub(nil)
	hub.Stop()

	done := make(chan bool, 1)
	go func() {
		done <- hub.tryRegisterClient(&Client{
			hub:  hub,
			id:   "stopped-client",
			send: make(chan []byte, 1),
		})
	}()

	select {
	case ok := <-done:
		assert.False(t, ok)
	case <-time.After(200 * time.Millisecond):
		t.Fatal("tryRegisterClient blocked during shutdown")
	}
}

func TestBroadcastStateSkippedWhenStopped(t *testing.T) {
	hub := NewHub(nil)
	hub.Stop()

	hub.BroadcastState(map[string]string{"status": "down"})

	select {
	case <-hub.broadcastSeq:
		t.Fatal("expected no broadcastSeq enqueue while hub is stopping")
	default:
	}
}

func TestHandleWebSocketPingPong(t *testing.T) {
	hub := NewHub(nil)
	go hub.Run()
	t.Cleanup(hub.Stop)

	server := httptest.NewServer(http.HandlerFunc(hub.HandleWebSocket))
	defer server.Close()

	wsURL := "ws" + strings.TrimPrefix(server.URL, "http")
	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	require.NoError(t, err)
	defer conn.Close()

	require.NoError(t, conn.WriteJSON(Message{Type: "ping"}))

	deadline := time.Now().Add(1 * time.Second)
	for time.Now().Before(deadline) {
		conn.SetReadDeadline(time.Now().Add(200 * time.Millisecond))
		_, data, err := conn.ReadMessage()
		if err != nil {
			continue
		}
		var msg Message
		require.NoError(t, json.Unmarshal(data, &msg))
		if msg.Type == "pong" {
			return
		}
	}
	t.Fatal("expected pong response")
}

func TestHandleWebSocket_ReadLimitExceededClosesConnection(t *testing.T) {
	hub := NewHub(nil)
	go hub.Run()
	t.Cleanup(hub.Stop)

	server := httptest.NewServer(http.HandlerFunc(hub.HandleWebSocket))
	defer server.Close()

	wsURL := "ws" + strings.TrimPrefix(server.URL, "http")
	dialer := websocket.Dialer{EnableCompression: true}

	conn, _, err := dialer.Dial(wsURL, nil)
	require.NoError(t, err)
	defer conn.Close()

	oversizedPayload, err := json.Marshal(Message{
		Type: "ping",
		Data: strings.Repeat("x", maxWebSocketInboundMessageSize),
	})
	require.NoError(t, err)
	require.Greater(t, len(oversizedPayload), maxWebSocketInboundMessageSize)

	require.NoError(t, conn.WriteMessage(websocket.TextMessage, oversizedPayload))

	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		conn.SetReadDeadline(time.Now().Add(200 * time.Millisecond))
		if _, _, err := conn.ReadMessage(); err != nil {
			if netErr, ok := err.(net.Error); ok && netErr.Timeout() {
				continue
			}
			return
		}
	}
	t.Fatal("expected websocket connection to close after oversized inbound message")
}

func TestMessageSanitization(t *testing.T) {
	zero := negZero()
	testData := map[string]interface{}{
		"cpu":    zero / zero,
		"memory": 1.0 / zero,
		"disk":   -1.0 / zero,
		"normal": 42.5,
		"nested": map[string]interface{}{
			"value": zero / zero,
		},
	}

	sanitized := sanitizeData(testData)
	result := sanitized.(map[string]interface{})

	assert.Equal(t, 0.0, result["cpu"])
	assert.Equal(t, 0.0, result["memory"])
	assert.Equal(t, 0.0, result["disk"])
	assert.Equal(t, 42.5, result["normal"])

	nested := result["nested"].(map[string]interface{})
	assert.Equal(t, 0.0, nested["value"])
}

// negZero produces 0.0 through a non-constant expression so 0.0/negZero()
// evaluates to NaN at runtime instead of being rejected by the compiler as
// an invalid constant division.
func negZero() float64 {
	return 0.0
}
