// Package notifications delivers persisted alerts to configured channels
// (webhook, email) through a durable, retrying queue.
package notifications

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"path/filepath"
	"strings"
	"sync"
	"time"

	_ "modernc.org/sqlite"

	"github.com/rs/zerolog/log"

	"github.com/sentinel-labs/netsec/internal/metrics"
	"github.com/sentinel-labs/netsec/internal/models"
	"github.com/sentinel-labs/netsec/internal/utils"
)

var nowFn = time.Now

// NotificationQueueStatus is the closed set of lifecycle states a queued
// notification moves through.
type NotificationQueueStatus string

const (
	QueueStatusPending   NotificationQueueStatus = "pending"
	QueueStatusSending   NotificationQueueStatus = "sending"
	QueueStatusSent      NotificationQueueStatus = "sent"
	QueueStatusFailed    NotificationQueueStatus = "failed"
	QueueStatusDLQ       NotificationQueueStatus = "dlq"
	QueueStatusCancelled NotificationQueueStatus = "cancelled"
)

const (
	defaultQueueMaxAttempts = 5
	maxBackoff              = 60 * time.Second
	completedRetention      = 7 * 24 * time.Hour
	dlqRetention            = 30 * 24 * time.Hour
	pollInterval            = 2 * time.Second
	cleanupInterval         = time.Hour
)

// QueuedNotification is one durable notification-delivery attempt.
type QueuedNotification struct {
	ID          string
	Type        string
	Method      string
	Status      NotificationQueueStatus
	Alerts      []*models.Alert
	Config      []byte
	Attempts    int
	MaxAttempts int
	LastAttempt *time.Time
	LastError   *string
	CreatedAt   time.Time
	NextRetryAt *time.Time
	CompletedAt *time.Time
}

// Processor delivers a single queued notification. A returned error causes
// the queue to retry with exponential backoff, up to MaxAttempts.
type Processor func(n *QueuedNotification) error

// NotificationQueue persists notifications to sqlite and drains them
// through a configurable Processor with exponential backoff and a
// dead-letter queue for attempts that never succeed.
type NotificationQueue struct {
	db     *sql.DB
	dbPath string

	mu        sync.Mutex
	processor Processor

	stopOnce sync.Once
	stopChan chan struct{}
	wg       sync.WaitGroup
}

// calculateBackoff returns the delay before retrying the given attempt
// number (0-indexed): 1s, 2s, 4s, 8s, 16s, 32s, then capped at 60s.
func calculateBackoff(attempt int) time.Duration {
	if attempt < 0 {
		attempt = 0
	}
	delay := time.Second << uint(attempt)
	if delay > maxBackoff || delay <= 0 {
		return maxBackoff
	}
	return delay
}

// NewNotificationQueue opens (creating if needed) the notification queue
// database under dataDir/notifications/notification_queue.db. A blank or
// whitespace-only dataDir falls back to utils.GetDataDir().
func NewNotificationQueue(dataDir string) (*NotificationQueue, error) {
	if strings.TrimSpace(dataDir) == "" {
		dataDir = utils.GetDataDir()
	}
	dbDir := filepath.Join(dataDir, "notifications")
	if err := utils.EnsureDir(dbDir); err != nil {
		return nil, fmt.Errorf("create notification queue dir: %w", err)
	}

	dbPath := filepath.Join(dbDir, "notification_queue.db")
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open notification queue db: %w", err)
	}

	if err := initSchema(db); err != nil {
		db.Close()
		return nil, err
	}

	nq := &NotificationQueue{
		db:       db,
		dbPath:   dbPath,
		stopChan: make(chan struct{}),
	}

	nq.wg.Add(2)
	go nq.runLoop()
	go nq.cleanupLoop()

	return nq, nil
}

func initSchema(db *sql.DB) error {
	_, err := db.Exec(`
CREATE TABLE IF NOT EXISTS notification_queue (
	id TEXT PRIMARY KEY,
	type TEXT NOT NULL,
	method TEXT,
	status TEXT NOT NULL,
	config TEXT NOT NULL,
	alerts TEXT NOT NULL DEFAULT '[]',
	attempts INTEGER NOT NULL DEFAULT 0,
	max_attempts INTEGER NOT NULL DEFAULT 5,
	last_attempt INTEGER,
	last_error TEXT,
	created_at INTEGER NOT NULL,
	next_retry_at INTEGER,
	completed_at INTEGER
);
CREATE TABLE IF NOT EXISTS notification_audit (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	notification_id TEXT NOT NULL,
	type TEXT NOT NULL,
	status TEXT NOT NULL,
	timestamp INTEGER NOT NULL
);
`)
	return err
}

// SetProcessor sets the function used to deliver queued notifications.
func (q *NotificationQueue) SetProcessor(p Processor) {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.processor = p
}

// Enqueue validates, normalizes, and persists a notification for delivery.
func (q *NotificationQueue) Enqueue(n *QueuedNotification) error {
	if n == nil {
		return fmt.Errorf("notification must not be nil")
	}
	n.Type = strings.TrimSpace(n.Type)
	if n.Type == "" {
		return fmt.Errorf("notification type must not be empty")
	}
	if len(n.Config) == 0 {
		return fmt.Errorf("notification config must not be empty")
	}
	if n.ID == "" {
		n.ID = utils.GenerateID("notif")
	}
	if n.Status == "" {
		n.Status = QueueStatusPending
	}
	if n.Attempts < 0 {
		n.Attempts = 0
	}
	if n.MaxAttempts <= 0 {
		n.MaxAttempts = defaultQueueMaxAttempts
	}
	if n.CreatedAt.IsZero() {
		n.CreatedAt = nowFn()
	}

	alertsJSON, err := json.Marshal(n.Alerts)
	if err != nil {
		return fmt.Errorf("marshal alerts: %w", err)
	}

	var nextRetry, lastAttempt, completedAt interface{}
	if n.NextRetryAt != nil {
		nextRetry = n.NextRetryAt.Unix()
	}
	if n.LastAttempt != nil {
		lastAttempt = n.LastAttempt.Unix()
	}
	if n.CompletedAt != nil {
		completedAt = n.CompletedAt.Unix()
	}

	_, err = q.db.Exec(`
INSERT INTO notification_queue
	(id, type, method, status, config, alerts, attempts, max_attempts, last_attempt, last_error, created_at, next_retry_at, completed_at)
VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		n.ID, n.Type, n.Method, string(n.Status), string(n.Config), string(alertsJSON),
		n.Attempts, n.MaxAttempts, lastAttempt, n.LastError, n.CreatedAt.Unix(), nextRetry, completedAt)
	if err != nil {
		return fmt.Errorf("insert notification: %w", err)
	}

	q.audit(n.ID, n.Type, "created")
	return nil
}

func (q *NotificationQueue) audit(id, notifType, status string) {
	_, err := q.db.Exec(`INSERT INTO notification_audit (notification_id, type, status, timestamp) VALUES (?, ?, ?, ?)`,
		id, notifType, status, nowFn().Unix())
	if err != nil {
		log.Warn().Err(err).Str("notification_id", id).Msg("failed to record notification audit entry")
	}
}

// UpdateStatus sets a notification's status, recording lastError (if any)
// and stamping completed_at when the status is terminal.
func (q *NotificationQueue) UpdateStatus(id string, status NotificationQueueStatus, lastError string) error {
	var errPtr *string
	if lastError != "" {
		errPtr = &lastError
	}

	var completedAt interface{}
	if status == QueueStatusSent || status == QueueStatusFailed || status == QueueStatusDLQ || status == QueueStatusCancelled {
		completedAt = nowFn().Unix()
	}

	res, err := q.db.Exec(`UPDATE notification_queue SET status = ?, last_error = ?, completed_at = COALESCE(completed_at, ?) WHERE id = ?`,
		string(status), errPtr, completedAt, id)
	if err != nil {
		return fmt.Errorf("update notification status: %w", err)
	}
	rows, _ := res.RowsAffected()
	if rows == 0 {
		return fmt.Errorf("notification %q not found", id)
	}
	q.audit(id, "", string(status))
	return nil
}

// IncrementAttempt bumps a notification's attempt counter and records the
// time of the attempt. A non-existent ID is a no-op, not an error.
func (q *NotificationQueue) IncrementAttempt(id string) error {
	_, err := q.db.Exec(`UPDATE notification_queue SET attempts = attempts + 1, last_attempt = ? WHERE id = ?`, nowFn().Unix(), id)
	if err != nil {
		return fmt.Errorf("increment attempt: %w", err)
	}
	return nil
}

// CancelByAlertIDs cancels every pending, sending or failed notification referencing
// any of the given alert IDs.
func (q *NotificationQueue) CancelByAlertIDs(alertIDs []string) error {
	if len(alertIDs) == 0 {
		return nil
	}

	rows, err := q.db.Query(`SELECT id, alerts FROM notification_queue WHERE status IN (?, ?, ?)`,
		string(QueueStatusPending), string(QueueStatusFailed), string(QueueStatusSending))
	if err != nil {
		return fmt.Errorf("query cancellable notifications: %w", err)
	}
	defer rows.Close()

	wanted := make(map[string]bool, len(alertIDs))
	for _, id := range alertIDs {
		wanted[id] = true
	}

	var toCancel []string
	for rows.Next() {
		var id, alertsJSON string
		if err := rows.Scan(&id, &alertsJSON); err != nil {
			return fmt.Errorf("scan notification: %w", err)
		}
		var linked []*models.Alert
		if err := json.Unmarshal([]byte(alertsJSON), &linked); err != nil {
			continue
		}
		for _, a := range linked {
			if a != nil && wanted[a.ID] {
				toCancel = append(toCancel, id)
				break
			}
		}
	}

	for _, id := range toCancel {
		if err := q.UpdateStatus(id, QueueStatusCancelled, ""); err != nil {
			return err
		}
	}
	return nil
}

// GetQueueStats returns the count of notifications per status.
func (q *NotificationQueue) GetQueueStats() (map[string]int, error) {
	rows, err := q.db.Query(`SELECT status, COUNT(*) FROM notification_queue GROUP BY status`)
	if err != nil {
		return nil, fmt.Errorf("query queue stats: %w", err)
	}
	defer rows.Close()

	stats := make(map[string]int)
	for rows.Next() {
		var status string
		var count int
		if err := rows.Scan(&status, &count); err != nil {
			return nil, fmt.Errorf("scan queue stats: %w", err)
		}
		stats[status] = count
	}
	return stats, nil
}

// GetDLQ returns up to limit dead-lettered notifications, most recent first.
func (q *NotificationQueue) GetDLQ(limit int) ([]*QueuedNotification, error) {
	rows, err := q.db.Query(`SELECT id, type, method, status, config, alerts, attempts, max_attempts, last_attempt, last_error, created_at, next_retry_at, completed_at
		FROM notification_queue WHERE status = ? ORDER BY completed_at DESC LIMIT ?`, string(QueueStatusDLQ), limit)
	if err != nil {
		return nil, fmt.Errorf("query dlq: %w", err)
	}
	defer rows.Close()

	var result []*QueuedNotification
	for rows.Next() {
		n, err := scanNotification(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, n)
	}
	return result, nil
}

func scanNotification(rows *sql.Rows) (*QueuedNotification, error) {
	var n QueuedNotification
	var status, config, alertsJSON string
	var method sql.NullString
	var lastAttempt, nextRetryAt, completedAt sql.NullInt64
	var lastError sql.NullString
	var createdAt int64

	if err := rows.Scan(&n.ID, &n.Type, &method, &status, &config, &alertsJSON,
		&n.Attempts, &n.MaxAttempts, &lastAttempt, &lastError, &createdAt, &nextRetryAt, &completedAt); err != nil {
		return nil, fmt.Errorf("scan notification row: %w", err)
	}

	n.Method = method.String
	n.Status = NotificationQueueStatus(status)
	n.Config = []byte(config)
	n.CreatedAt = time.Unix(createdAt, 0).UTC()

	if lastError.Valid {
		n.LastError = &lastError.String
	}
	if lastAttempt.Valid {
		t := time.Unix(lastAttempt.Int64, 0).UTC()
		n.LastAttempt = &t
	}
	if nextRetryAt.Valid {
		t := time.Unix(nextRetryAt.Int64, 0).UTC()
		n.NextRetryAt = &t
	}
	if completedAt.Valid {
		t := time.Unix(completedAt.Int64, 0).UTC()
		n.CompletedAt = &t
	}
	if alertsJSON != "" {
		_ = json.Unmarshal([]byte(alertsJSON), &n.Alerts)
	}
	return &n, nil
}

// processNotification delivers one notification via the configured
// processor, handling retry scheduling and DLQ transitions on failure.
func (q *NotificationQueue) processNotification(n *QueuedNotification) {
	if n.Status == QueueStatusCancelled {
		return
	}

	q.mu.Lock()
	processor := q.processor
	q.mu.Unlock()

	if processor == nil {
		q.failAttempt(n, fmt.Errorf("no notification processor configured"))
		return
	}

	if err := processor(n); err != nil {
		q.failAttempt(n, err)
		return
	}

	_ = q.IncrementAttempt(n.ID)
	_ = q.UpdateStatus(n.ID, QueueStatusSent, "")
}

func (q *NotificationQueue) failAttempt(n *QueuedNotification, cause error) {
	_ = q.IncrementAttempt(n.ID)
	n.Attempts++

	if n.Attempts >= n.MaxAttempts {
		_ = q.UpdateStatus(n.ID, QueueStatusDLQ, cause.Error())
		metrics.RecordNotificationDLQ()
		return
	}

	metrics.RecordNotificationRetry(n.Type)
	delay := calculateBackoff(n.Attempts - 1)
	nextRetry := nowFn().Add(delay)
	_, err := q.db.Exec(`UPDATE notification_queue SET status = ?, last_error = ?, next_retry_at = ? WHERE id = ?`,
		string(QueueStatusFailed), cause.Error(), nextRetry.Unix(), n.ID)
	if err != nil {
		log.Warn().Err(err).Str("notification_id", n.ID).Msg("failed to schedule notification retry")
	}
}

func (q *NotificationQueue) runLoop() {
	defer q.wg.Done()
	ticker := time.NewTicker(pollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-q.stopChan:
			return
		case <-ticker.C:
			q.drainDue()
		}
	}
}

func (q *NotificationQueue) drainDue() {
	now := nowFn().Unix()
	rows, err := q.db.Query(`SELECT id, type, method, status, config, alerts, attempts, max_attempts, last_attempt, last_error, created_at, next_retry_at, completed_at
		FROM notification_queue WHERE status IN (?, ?) AND (next_retry_at IS NULL OR next_retry_at <= ?)`,
		string(QueueStatusPending), string(QueueStatusFailed), now)
	if err != nil {
		log.Warn().Err(err).Msg("failed to query due notifications")
		return
	}

	var due []*QueuedNotification
	for rows.Next() {
		n, err := scanNotification(rows)
		if err != nil {
			log.Warn().Err(err).Msg("failed to scan due notification")
			continue
		}
		due = append(due, n)
	}
	rows.Close()

	for _, n := range due {
		q.processNotification(n)
	}
}

func (q *NotificationQueue) cleanupLoop() {
	defer q.wg.Done()
	ticker := time.NewTicker(cleanupInterval)
	defer ticker.Stop()

	for {
		select {
		case <-q.stopChan:
			return
		case <-ticker.C:
			q.performCleanup()
		}
	}
}

// performCleanup deletes old completed/failed and DLQ entries, along with
// their audit trail.
func (q *NotificationQueue) performCleanup() {
	completedCutoff := nowFn().Add(-completedRetention).Unix()
	dlqCutoff := nowFn().Add(-dlqRetention).Unix()

	if _, err := q.db.Exec(`DELETE FROM notification_audit WHERE notification_id IN (
		SELECT id FROM notification_queue WHERE status IN (?, ?) AND completed_at IS NOT NULL AND completed_at < ?
	)`, string(QueueStatusSent), string(QueueStatusFailed), completedCutoff); err != nil {
		log.Warn().Err(err).Msg("failed to clean old notification audit entries")
	}
	if _, err := q.db.Exec(`DELETE FROM notification_audit WHERE notification_id IN (
		SELECT id FROM notification_queue WHERE status = ? AND completed_at IS NOT NULL AND completed_at < ?
	)`, string(QueueStatusDLQ), dlqCutoff); err != nil {
		log.Warn().Err(err).Msg("failed to clean old dlq audit entries")
	}

	if _, err := q.db.Exec(`DELETE FROM notification_queue WHERE status IN (?, ?) AND completed_at IS NOT NULL AND completed_at < ?`,
		string(QueueStatusSent), string(QueueStatusFailed), completedCutoff); err != nil {
		log.Warn().Err(err).Msg("failed to clean old completed notifications")
	}
	if _, err := q.db.Exec(`DELETE FROM notification_queue WHERE status = ? AND completed_at IS NOT NULL AND completed_at < ?`,
		string(QueueStatusDLQ), dlqCutoff); err != nil {
		log.Warn().Err(err).Msg("failed to clean old dlq notifications")
	}
}

// Stop halts the background worker and cleanup loops and closes the
// database. Safe to call more than once.
func (q *NotificationQueue) Stop() {
	q.stopOnce.Do(func() {
		close(q.stopChan)
		q.wg.Wait()
		q.db.Close()
	})
}
