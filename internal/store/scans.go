package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/sentinel-labs/netsec/internal/models"
)

// SaveScan upserts scan by ID.
func (s *Store) SaveScan(ctx context.Context, scan models.Scan) error {
	params, err := json.Marshal(scan.Parameters)
	if err != nil {
		return fmt.Errorf("marshal scan parameters: %w", err)
	}
	results, err := json.Marshal(scan.Results)
	if err != nil {
		return fmt.Errorf("marshal scan results: %w", err)
	}
	if scan.CreatedAt.IsZero() {
		scan.CreatedAt = nowFn()
	}

	var startedAt, completedAt interface{}
	if scan.StartedAt != nil {
		startedAt = scan.StartedAt.Unix()
	}
	if scan.CompletedAt != nil {
		completedAt = scan.CompletedAt.Unix()
	}

	_, err = s.db.ExecContext(ctx, `
INSERT INTO scans (id, scan_type, tool, target, status, progress, started_at, completed_at, parameters,
	results, result_summary, error_message, devices_found, alerts_generated, created_at)
VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
ON CONFLICT(id) DO UPDATE SET
	status=excluded.status, progress=excluded.progress, started_at=excluded.started_at,
	completed_at=excluded.completed_at, results=excluded.results, result_summary=excluded.result_summary,
	error_message=excluded.error_message, devices_found=excluded.devices_found,
	alerts_generated=excluded.alerts_generated`,
		scan.ID, scan.ScanType, scan.Tool, scan.Target, string(scan.Status), scan.Progress,
		startedAt, completedAt, string(params), string(results), scan.ResultSummary,
		scan.ErrorMessage, scan.DevicesFound, scan.AlertsGenerated, scan.CreatedAt.Unix())
	if err != nil {
		return fmt.Errorf("save scan: %w", err)
	}
	return nil
}

// GetScan returns a scan by ID.
func (s *Store) GetScan(ctx context.Context, id string) (models.Scan, bool, error) {
	row := s.db.QueryRowContext(ctx, scanSelectColumns+` FROM scans WHERE id = ?`, id)
	scan, err := scanScan(row)
	if err == sql.ErrNoRows {
		return models.Scan{}, false, nil
	}
	if err != nil {
		return models.Scan{}, false, fmt.Errorf("get scan: %w", err)
	}
	return scan, true, nil
}

// ListScans returns scans ordered by creation time, most recent first,
// optionally filtered by status.
func (s *Store) ListScans(ctx context.Context, status models.ScanStatus, offset, limit int) ([]models.Scan, error) {
	query := scanSelectColumns + ` FROM scans`
	args := []interface{}{}
	if status != "" {
		query += ` WHERE status = ?`
		args = append(args, string(status))
	}
	query += ` ORDER BY created_at DESC LIMIT ? OFFSET ?`
	args = append(args, limit, offset)

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list scans: %w", err)
	}
	defer rows.Close()

	var out []models.Scan
	for rows.Next() {
		scan, err := scanScanRows(rows)
		if err != nil {
			return nil, fmt.Errorf("scan scan row: %w", err)
		}
		out = append(out, scan)
	}
	return out, nil
}

const scanSelectColumns = `SELECT id, scan_type, tool, target, status, progress, started_at, completed_at,
	parameters, results, result_summary, error_message, devices_found, alerts_generated, created_at`

func scanScan(row *sql.Row) (models.Scan, error) {
	return scanScanGeneric(row)
}

func scanScanRows(rows *sql.Rows) (models.Scan, error) {
	return scanScanGeneric(rows)
}

func scanScanGeneric(row scannable) (models.Scan, error) {
	var sc models.Scan
	var status string
	var startedAt, completedAt sql.NullInt64
	var parameters, results, resultSummary, errorMessage sql.NullString
	var createdAt int64

	if err := row.Scan(&sc.ID, &sc.ScanType, &sc.Tool, &sc.Target, &status, &sc.Progress, &startedAt,
		&completedAt, &parameters, &results, &resultSummary, &errorMessage, &sc.DevicesFound,
		&sc.AlertsGenerated, &createdAt); err != nil {
		return models.Scan{}, err
	}

	sc.Status = models.ScanStatus(status)
	sc.ResultSummary = resultSummary.String
	sc.ErrorMessage = errorMessage.String
	sc.CreatedAt = time.Unix(createdAt, 0).UTC()
	if startedAt.Valid {
		t := time.Unix(startedAt.Int64, 0).UTC()
		sc.StartedAt = &t
	}
	if completedAt.Valid {
		t := time.Unix(completedAt.Int64, 0).UTC()
		sc.CompletedAt = &t
	}
	if parameters.Valid && parameters.String != "" {
		_ = json.Unmarshal([]byte(parameters.String), &sc.Parameters)
	}
	if results.Valid && results.String != "" {
		_ = json.Unmarshal([]byte(results.String), &sc.Results)
	}
	return sc, nil
}
