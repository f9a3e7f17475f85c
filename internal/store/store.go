// Package store persists devices, ports, scans, and alerts to sqlite.
// It is the single source of truth the rest of the orchestrator reads
// and writes through; nothing else opens the database directly.
package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"path/filepath"
	"strings"
	"sync"
	"time"

	_ "modernc.org/sqlite"

	"github.com/sentinel-labs/netsec/internal/models"
	"github.com/sentinel-labs/netsec/internal/utils"
)

var nowFn = time.Now

// Store wraps a sqlite database holding every persisted entity the
// orchestrator manages.
type Store struct {
	db *sql.DB
	mu sync.Mutex
}

// Open creates (if needed) and opens the store database under
// dataDir/netsec.db. A blank dataDir falls back to utils.GetDataDir().
func Open(dataDir string) (*Store, error) {
	if strings.TrimSpace(dataDir) == "" {
		dataDir = utils.GetDataDir()
	}
	if err := utils.EnsureDir(dataDir); err != nil {
		return nil, fmt.Errorf("create data dir: %w", err)
	}

	dbPath := filepath.Join(dataDir, "netsec.db")
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open store db: %w", err)
	}
	db.SetMaxOpenConns(1)

	s := &Store{db: db}
	if err := s.migrate(); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

func (s *Store) migrate() error {
	_, err := s.db.Exec(`
CREATE TABLE IF NOT EXISTS devices (
	id TEXT PRIMARY KEY,
	ip_address TEXT NOT NULL,
	mac_address TEXT,
	hostname TEXT,
	vendor TEXT,
	os_family TEXT,
	os_version TEXT,
	device_type TEXT,
	status TEXT NOT NULL,
	first_seen INTEGER NOT NULL,
	last_seen INTEGER NOT NULL,
	notes TEXT
);
CREATE INDEX IF NOT EXISTS idx_devices_ip ON devices(ip_address);
CREATE INDEX IF NOT EXISTS idx_devices_mac ON devices(mac_address);

CREATE TABLE IF NOT EXISTS ports (
	id TEXT PRIMARY KEY,
	device_id TEXT NOT NULL REFERENCES devices(id) ON DELETE CASCADE,
	port_number INTEGER NOT NULL,
	protocol TEXT NOT NULL,
	state TEXT NOT NULL,
	service_name TEXT,
	service_version TEXT,
	banner TEXT
);
CREATE INDEX IF NOT EXISTS idx_ports_device ON ports(device_id);

CREATE TABLE IF NOT EXISTS scans (
	id TEXT PRIMARY KEY,
	scan_type TEXT NOT NULL,
	tool TEXT NOT NULL,
	target TEXT NOT NULL,
	status TEXT NOT NULL,
	progress INTEGER NOT NULL DEFAULT 0,
	started_at INTEGER,
	completed_at INTEGER,
	parameters TEXT,
	results TEXT,
	result_summary TEXT,
	error_message TEXT,
	devices_found INTEGER NOT NULL DEFAULT 0,
	alerts_generated INTEGER NOT NULL DEFAULT 0,
	created_at INTEGER NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_scans_created ON scans(created_at DESC);

CREATE TABLE IF NOT EXISTS alerts (
	id TEXT PRIMARY KEY,
	title TEXT NOT NULL,
	description TEXT,
	severity TEXT NOT NULL,
	status TEXT NOT NULL,
	source_tool TEXT NOT NULL,
	source_event_id TEXT,
	category TEXT NOT NULL,
	device_ip TEXT,
	device_id TEXT,
	fingerprint TEXT NOT NULL,
	count INTEGER NOT NULL DEFAULT 1,
	first_seen INTEGER NOT NULL,
	last_seen INTEGER NOT NULL,
	raw_data TEXT,
	correlation_id TEXT,
	notes TEXT,
	created_at INTEGER NOT NULL,
	updated_at INTEGER NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_alerts_fingerprint ON alerts(fingerprint);
CREATE INDEX IF NOT EXISTS idx_alerts_status ON alerts(status);
`)
	return err
}

// Close closes the underlying database.
func (s *Store) Close() error {
	return s.db.Close()
}

// --- Alerts -----------------------------------------------------------

// FindOpenAlertByFingerprint satisfies alerts.Store: it looks up the
// most recent open alert matching fingerprint, if any.
func (s *Store) FindOpenAlertByFingerprint(ctx context.Context, fingerprint string) (models.Alert, bool, error) {
	row := s.db.QueryRowContext(ctx, `
SELECT id, title, description, severity, status, source_tool, source_event_id, category,
	device_ip, device_id, fingerprint, count, first_seen, last_seen, raw_data, correlation_id,
	notes, created_at, updated_at
FROM alerts WHERE fingerprint = ? AND status = ? ORDER BY last_seen DESC LIMIT 1`,
		fingerprint, string(models.AlertOpen))

	alert, err := scanAlert(row)
	if err == sql.ErrNoRows {
		return models.Alert{}, false, nil
	}
	if err != nil {
		return models.Alert{}, false, fmt.Errorf("find open alert: %w", err)
	}
	return alert, true, nil
}

// SaveAlert satisfies alerts.Store: it upserts alert by ID.
func (s *Store) SaveAlert(ctx context.Context, alert models.Alert) error {
	rawData, err := json.Marshal(alert.RawData)
	if err != nil {
		return fmt.Errorf("marshal alert raw data: %w", err)
	}
	if alert.CreatedAt.IsZero() {
		alert.CreatedAt = nowFn()
	}
	alert.UpdatedAt = nowFn()

	_, err = s.db.ExecContext(ctx, `
INSERT INTO alerts (id, title, description, severity, status, source_tool, source_event_id, category,
	device_ip, device_id, fingerprint, count, first_seen, last_seen, raw_data, correlation_id, notes,
	created_at, updated_at)
VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
ON CONFLICT(id) DO UPDATE SET
	title=excluded.title, description=excluded.description, severity=excluded.severity,
	status=excluded.status, category=excluded.category, device_ip=excluded.device_ip,
	device_id=excluded.device_id, count=excluded.count, last_seen=excluded.last_seen,
	raw_data=excluded.raw_data, correlation_id=excluded.correlation_id, notes=excluded.notes,
	updated_at=excluded.updated_at`,
		alert.ID, alert.Title, alert.Description, string(alert.Severity), string(alert.Status),
		alert.SourceTool, alert.SourceEventID, string(alert.Category), alert.DeviceIP, alert.DeviceID,
		alert.Fingerprint, alert.Count, alert.FirstSeen.Unix(), alert.LastSeen.Unix(), string(rawData),
		alert.CorrelationID, alert.Notes, alert.CreatedAt.Unix(), alert.UpdatedAt.Unix())
	if err != nil {
		return fmt.Errorf("save alert: %w", err)
	}
	return nil
}

// GetAlert returns a single alert by ID.
func (s *Store) GetAlert(ctx context.Context, id string) (models.Alert, bool, error) {
	row := s.db.QueryRowContext(ctx, `
SELECT id, title, description, severity, status, source_tool, source_event_id, category,
	device_ip, device_id, fingerprint, count, first_seen, last_seen, raw_data, correlation_id,
	notes, created_at, updated_at
FROM alerts WHERE id = ?`, id)

	alert, err := scanAlert(row)
	if err == sql.ErrNoRows {
		return models.Alert{}, false, nil
	}
	if err != nil {
		return models.Alert{}, false, fmt.Errorf("get alert: %w", err)
	}
	return alert, true, nil
}

// ListAlerts returns alerts ordered by most-recently-seen, optionally
// filtered by status.
func (s *Store) ListAlerts(ctx context.Context, status models.AlertStatus, offset, limit int) ([]models.Alert, error) {
	query := `SELECT id, title, description, severity, status, source_tool, source_event_id, category,
	device_ip, device_id, fingerprint, count, first_seen, last_seen, raw_data, correlation_id,
	notes, created_at, updated_at FROM alerts`
	args := []interface{}{}
	if status != "" {
		query += ` WHERE status = ?`
		args = append(args, string(status))
	}
	query += ` ORDER BY last_seen DESC LIMIT ? OFFSET ?`
	args = append(args, limit, offset)

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list alerts: %w", err)
	}
	defer rows.Close()

	var out []models.Alert
	for rows.Next() {
		alert, err := scanAlertRows(rows)
		if err != nil {
			return nil, fmt.Errorf("scan alert row: %w", err)
		}
		out = append(out, alert)
	}
	return out, nil
}

// UpdateAlertStatus transitions an alert's lifecycle status.
func (s *Store) UpdateAlertStatus(ctx context.Context, id string, status models.AlertStatus) error {
	res, err := s.db.ExecContext(ctx, `UPDATE alerts SET status = ?, updated_at = ? WHERE id = ?`,
		string(status), nowFn().Unix(), id)
	if err != nil {
		return fmt.Errorf("update alert status: %w", err)
	}
	rows, _ := res.RowsAffected()
	if rows == 0 {
		return fmt.Errorf("alert %q not found", id)
	}
	return nil
}

// AlertStats summarizes open alerts by severity and source tool.
func (s *Store) AlertStats(ctx context.Context) (models.AlertStats, error) {
	stats := models.AlertStats{OpenBySeverity: map[string]int{}, OpenByTool: map[string]int{}}

	err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM alerts`).Scan(&stats.Total)
	if err != nil {
		return stats, fmt.Errorf("count alerts: %w", err)
	}

	rows, err := s.db.QueryContext(ctx, `SELECT severity, COUNT(*) FROM alerts WHERE status = ? GROUP BY severity`, string(models.AlertOpen))
	if err != nil {
		return stats, fmt.Errorf("alert severity stats: %w", err)
	}
	for rows.Next() {
		var sev string
		var count int
		if err := rows.Scan(&sev, &count); err != nil {
			rows.Close()
			return stats, err
		}
		stats.OpenBySeverity[sev] = count
	}
	rows.Close()

	rows, err = s.db.QueryContext(ctx, `SELECT source_tool, COUNT(*) FROM alerts WHERE status = ? GROUP BY source_tool`, string(models.AlertOpen))
	if err != nil {
		return stats, fmt.Errorf("alert tool stats: %w", err)
	}
	for rows.Next() {
		var tool string
		var count int
		if err := rows.Scan(&tool, &count); err != nil {
			rows.Close()
			return stats, err
		}
		stats.OpenByTool[tool] = count
	}
	rows.Close()

	return stats, nil
}

type scannable interface {
	Scan(dest ...interface{}) error
}

func scanAlert(row *sql.Row) (models.Alert, error) {
	return scanAlertGeneric(row)
}

func scanAlertRows(rows *sql.Rows) (models.Alert, error) {
	return scanAlertGeneric(rows)
}

func scanAlertGeneric(row scannable) (models.Alert, error) {
	var a models.Alert
	var description, sourceEventID, deviceIP, deviceID, rawData, correlationID, notes sql.NullString
	var severity, status, category string
	var firstSeen, lastSeen, createdAt, updatedAt int64

	if err := row.Scan(&a.ID, &a.Title, &description, &severity, &status, &a.SourceTool, &sourceEventID,
		&category, &deviceIP, &deviceID, &a.Fingerprint, &a.Count, &firstSeen, &lastSeen, &rawData,
		&correlationID, &notes, &createdAt, &updatedAt); err != nil {
		return models.Alert{}, err
	}

	a.Description = description.String
	a.Severity = models.Severity(severity)
	a.Status = models.AlertStatus(status)
	a.SourceEventID = sourceEventID.String
	a.Category = models.AlertCategory(category)
	a.DeviceIP = deviceIP.String
	a.DeviceID = deviceID.String
	a.CorrelationID = correlationID.String
	a.Notes = notes.String
	a.FirstSeen = time.Unix(firstSeen, 0).UTC()
	a.LastSeen = time.Unix(lastSeen, 0).UTC()
	a.CreatedAt = time.Unix(createdAt, 0).UTC()
	a.UpdatedAt = time.Unix(updatedAt, 0).UTC()
	if rawData.Valid && rawData.String != "" {
		_ = json.Unmarshal([]byte(rawData.String), &a.RawData)
	}
	return a, nil
}
