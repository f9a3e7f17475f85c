package notifications

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWebhookSendDeliversPayload(t *testing.T) {
	var received WebhookPayload
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, json.NewDecoder(r.Body).Decode(&received))
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	sender := NewWebhookSender(server.URL)
	require.NoError(t, sender.UpdateAllowedPrivateCIDRs("127.0.0.0/8"))

	err := sender.Send(context.Background(), WebhookPayload{Title: "test alert", Severity: "high"})
	require.NoError(t, err)
	assert.Equal(t, "test alert", received.Title)
}

func TestWebhookSendNon2xxReturnsError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer server.Close()

	sender := NewWebhookSender(server.URL)
	require.NoError(t, sender.UpdateAllowedPrivateCIDRs("127.0.0.0/8"))

	err := sender.Send(context.Background(), WebhookPayload{Title: "test"})
	assert.Error(t, err)
}

func TestWebhookSendBlocksPrivateIPWithoutAllowlist(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	sender := NewWebhookSender(server.URL)

	err := sender.Send(context.Background(), WebhookPayload{Title: "test"})
	assert.Error(t, err)
}

func TestWebhookRedirectLimitStopsFollowing(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		http.Redirect(w, r, r.URL.String()+"x", http.StatusFound)
	})
	server := httptest.NewServer(mux)
	defer server.Close()

	sender := NewWebhookSender(server.URL)
	require.NoError(t, sender.UpdateAllowedPrivateCIDRs("127.0.0.0/8"))

	client := sender.createSecureWebhookClient(WebhookTimeout)
	_, err := client.Get(server.URL)
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "stopped after")
}

func TestWebhookSendRequiresURL(t *testing.T) {
	sender := NewWebhookSender("")
	err := sender.Send(context.Background(), WebhookPayload{Title: "test"})
	assert.Error(t, err)
}
