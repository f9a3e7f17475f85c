package notifications

import (
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sentinel-labs/netsec/internal/models"
)

func TestCalculateBackoff(t *testing.T) {
	cases := []struct {
		attempt  int
		expected time.Duration
	}{
		{-1, time.Second},
		{0, time.Second},
		{1, 2 * time.Second},
		{2, 4 * time.Second},
		{3, 8 * time.Second},
		{4, 16 * time.Second},
		{5, 32 * time.Second},
		{6, 60 * time.Second},
		{7, 60 * time.Second},
		{60, 60 * time.Second},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.expected, calculateBackoff(tc.attempt), "attempt=%d", tc.attempt)
	}
}

func TestEnqueueRejectsInvalidInput(t *testing.T) {
	nq, err := NewNotificationQueue(t.TempDir())
	require.NoError(t, err)
	defer nq.Stop()

	assert.Error(t, nq.Enqueue(nil))
	assert.Error(t, nq.Enqueue(&QueuedNotification{Config: []byte(`{}`)}))
	assert.Error(t, nq.Enqueue(&QueuedNotification{Type: "email"}))
}

func TestEnqueueNormalizesFields(t *testing.T) {
	nq, err := NewNotificationQueue(t.TempDir())
	require.NoError(t, err)
	defer nq.Stop()

	future := time.Now().Add(time.Hour)
	n := &QueuedNotification{
		ID:          "normalize-test",
		Type:        "email",
		MaxAttempts: -2,
		Config:      []byte(`{}`),
		NextRetryAt: &future,
	}
	require.NoError(t, nq.Enqueue(n))

	var maxAttempts int
	require.NoError(t, nq.db.QueryRow(`SELECT max_attempts FROM notification_queue WHERE id = ?`, n.ID).Scan(&maxAttempts))
	assert.Equal(t, defaultQueueMaxAttempts, maxAttempts)
}

func TestProcessNotificationSuccessMarksSent(t *testing.T) {
	nq, err := NewNotificationQueue(t.TempDir())
	require.NoError(t, err)
	defer nq.Stop()

	n := &QueuedNotification{ID: "ok-1", Type: "webhook", MaxAttempts: 3, Config: []byte(`{}`)}
	require.NoError(t, nq.Enqueue(n))

	var called bool
	nq.SetProcessor(func(n *QueuedNotification) error {
		called = true
		return nil
	})

	nq.processNotification(n)
	assert.True(t, called)

	stats, err := nq.GetQueueStats()
	require.NoError(t, err)
	assert.Equal(t, 1, stats[string(QueueStatusSent)])
}

func TestProcessNotificationFailureGoesToDLQWhenAttemptsExhausted(t *testing.T) {
	nq, err := NewNotificationQueue(t.TempDir())
	require.NoError(t, err)
	defer nq.Stop()

	n := &QueuedNotification{ID: "fail-1", Type: "webhook", MaxAttempts: 1, Config: []byte(`{}`)}
	require.NoError(t, nq.Enqueue(n))

	nq.SetProcessor(func(n *QueuedNotification) error {
		return fmt.Errorf("boom")
	})

	nq.processNotification(n)

	dlq, err := nq.GetDLQ(10)
	require.NoError(t, err)
	require.Len(t, dlq, 1)
	assert.NotNil(t, dlq[0].CompletedAt)
	assert.NotNil(t, dlq[0].LastAttempt)
}

func TestCancelByAlertIDsCancelsMatching(t *testing.T) {
	nq, err := NewNotificationQueue(t.TempDir())
	require.NoError(t, err)
	defer nq.Stop()

	future := time.Now().Add(time.Hour)
	n := &QueuedNotification{
		ID:          "notif-1",
		Type:        "email",
		MaxAttempts: 3,
		Config:      []byte(`{}`),
		NextRetryAt: &future,
		Alerts:      []*models.Alert{{ID: "alert-1"}},
	}
	require.NoError(t, nq.Enqueue(n))

	require.NoError(t, nq.CancelByAlertIDs([]string{"alert-2"}))
	stats, err := nq.GetQueueStats()
	require.NoError(t, err)
	assert.Equal(t, 1, stats[string(QueueStatusPending)])

	require.NoError(t, nq.CancelByAlertIDs([]string{"alert-1"}))
	stats, err = nq.GetQueueStats()
	require.NoError(t, err)
	assert.Equal(t, 1, stats[string(QueueStatusCancelled)])
}

func TestGetQueueStatsGroupsByStatus(t *testing.T) {
	nq, err := NewNotificationQueue(t.TempDir())
	require.NoError(t, err)
	defer nq.Stop()

	for _, id := range []string{"a", "b", "c"} {
		require.NoError(t, nq.Enqueue(&QueuedNotification{ID: id, Type: "email", MaxAttempts: 3, Config: []byte(`{}`)}))
	}
	require.NoError(t, nq.UpdateStatus("a", QueueStatusSent, ""))

	stats, err := nq.GetQueueStats()
	require.NoError(t, err)
	assert.Equal(t, 2, stats[string(QueueStatusPending)])
	assert.Equal(t, 1, stats[string(QueueStatusSent)])
}

func TestIncrementAttemptOnMissingIDIsNoop(t *testing.T) {
	nq, err := NewNotificationQueue(t.TempDir())
	require.NoError(t, err)
	defer nq.Stop()

	assert.NoError(t, nq.IncrementAttempt("does-not-exist"))
}

func TestPerformCleanupRemovesOldCompletedEntries(t *testing.T) {
	nq, err := NewNotificationQueue(t.TempDir())
	require.NoError(t, err)
	defer nq.Stop()

	oldTime := time.Now().Add(-10 * 24 * time.Hour).Unix()
	recentTime := time.Now().Add(-1 * 24 * time.Hour).Unix()

	_, err = nq.db.Exec(`INSERT INTO notification_queue (id, type, status, config, alerts, attempts, max_attempts, created_at, completed_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`, "old-sent", "email", "sent", "{}", "[]", 1, 3, oldTime, oldTime)
	require.NoError(t, err)
	_, err = nq.db.Exec(`INSERT INTO notification_queue (id, type, status, config, alerts, attempts, max_attempts, created_at, completed_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`, "recent-sent", "email", "sent", "{}", "[]", 1, 3, recentTime, recentTime)
	require.NoError(t, err)

	nq.performCleanup()

	var count int
	require.NoError(t, nq.db.QueryRow(`SELECT COUNT(*) FROM notification_queue WHERE id = ?`, "old-sent").Scan(&count))
	assert.Equal(t, 0, count)
	require.NoError(t, nq.db.QueryRow(`SELECT COUNT(*) FROM notification_queue WHERE id = ?`, "recent-sent").Scan(&count))
	assert.Equal(t, 1, count)
}

func TestQueueConcurrentEnqueue(t *testing.T) {
	nq, err := NewNotificationQueue(t.TempDir())
	require.NoError(t, err)
	defer nq.Stop()

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_ = nq.Enqueue(&QueuedNotification{ID: fmt.Sprintf("c-%d", i), Type: "email", MaxAttempts: 3, Config: []byte(`{}`)})
		}(i)
	}
	wg.Wait()

	stats, err := nq.GetQueueStats()
	require.NoError(t, err)
	assert.Equal(t, 20, stats[string(QueueStatusPending)])
}
