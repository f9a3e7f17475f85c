package notifications

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sentinel-labs/netsec/internal/models"
)

func TestManagerDispatchEnqueuesWebhookNotification(t *testing.T) {
	received := make(chan struct{}, 1)
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		received <- struct{}{}
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	nq, err := NewNotificationQueue(t.TempDir())
	require.NoError(t, err)
	defer nq.Stop()

	mgr := NewManager(DispatchConfig{WebhookURL: server.URL}, nq)

	alert := models.Alert{ID: "alert-1", Title: "test", Severity: models.SeverityHigh, LastSeen: time.Now()}
	mgr.Dispatch(context.Background(), alert)

	stats, err := nq.GetQueueStats()
	require.NoError(t, err)
	assert.Equal(t, 1, stats[string(QueueStatusPending)])
}

func TestManagerDispatchSkipsUnconfiguredChannels(t *testing.T) {
	nq, err := NewNotificationQueue(t.TempDir())
	require.NoError(t, err)
	defer nq.Stop()

	mgr := NewManager(DispatchConfig{}, nq)
	mgr.Dispatch(context.Background(), models.Alert{ID: "alert-1", Title: "test", LastSeen: time.Now()})

	stats, err := nq.GetQueueStats()
	require.NoError(t, err)
	assert.Empty(t, stats)
}

func TestManagerProcessUnknownTypeErrors(t *testing.T) {
	nq, err := NewNotificationQueue(t.TempDir())
	require.NoError(t, err)
	defer nq.Stop()

	mgr := NewManager(DispatchConfig{}, nq)
	err = mgr.process(&QueuedNotification{Type: "carrier-pigeon", Config: []byte(`{}`)})
	assert.Error(t, err)
}
