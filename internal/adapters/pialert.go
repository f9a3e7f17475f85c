package adapters

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"os"

	_ "modernc.org/sqlite"

	"github.com/sentinel-labs/netsec/internal/models"
)

const defaultPialertDB = "/opt/pialert/db/pialert.db"

var pialertAltPaths = []string{
	"/home/pi/pialert/db/pialert.db",
	"/opt/pialert/db/pialert.db",
}

// PiAlert wraps Pi.Alert, a network device presence monitor backed by a
// SQLite database that netsec reads directly rather than via CLI.
type PiAlert struct {
	BaseAdapter
	dbPath string
	status models.ToolStatus
}

func NewPiAlert() *PiAlert {
	return &PiAlert{status: models.StatusUnknown, dbPath: defaultPialertDB}
}

func (a *PiAlert) ToolInfo() models.ToolInfo {
	return models.ToolInfo{
		Name:           "pialert",
		DisplayName:    "Pi.Alert",
		Category:       models.CategoryHostMonitor,
		Description:    "Network device presence monitor",
		Status:         a.status,
		SupportedTasks: []string{"list_devices", "new_devices", "events"},
	}
}

func (a *PiAlert) Detect(ctx context.Context) (bool, error) {
	if _, err := os.Stat(a.dbPath); err == nil {
		a.status = models.StatusAvailable
		return true, nil
	}
	for _, p := range pialertAltPaths {
		if _, err := os.Stat(p); err == nil {
			a.dbPath = p
			a.status = models.StatusAvailable
			return true, nil
		}
	}
	a.status = models.StatusUnavailable
	return false, nil
}

func (a *PiAlert) HealthCheck(ctx context.Context) (models.ToolStatus, error) {
	if _, err := os.Stat(a.dbPath); err == nil {
		a.status = models.StatusAvailable
	} else {
		a.status = models.StatusUnavailable
	}
	return a.status, nil
}

func (a *PiAlert) Execute(ctx context.Context, task string, params map[string]interface{}) (map[string]interface{}, error) {
	if _, err := os.Stat(a.dbPath); err != nil {
		return nil, fmt.Errorf("Pi.Alert DB not found")
	}
	switch task {
	case "list_devices":
		return a.queryDevices(ctx, intParam(params, "limit", 100))
	case "new_devices":
		return a.queryNewDevices(ctx, intParam(params, "hours", 24))
	case "events":
		return a.queryEvents(ctx, intParam(params, "limit", 100))
	default:
		return nil, fmt.Errorf("unknown task: %s", task)
	}
}

func (a *PiAlert) openDB() (*sql.DB, error) {
	return sql.Open("sqlite", a.dbPath)
}

func (a *PiAlert) queryDevices(ctx context.Context, limit int) (map[string]interface{}, error) {
	db, err := a.openDB()
	if err != nil {
		return map[string]interface{}{"error": err.Error()}, nil
	}
	defer db.Close()

	rows, err := db.QueryContext(ctx, "SELECT * FROM Devices ORDER BY dev_LastConnection DESC LIMIT ?", limit)
	if err != nil {
		return map[string]interface{}{"error": err.Error()}, nil
	}
	defer rows.Close()

	devices, err := scanRowsToMaps(rows)
	if err != nil {
		return map[string]interface{}{"error": err.Error()}, nil
	}
	return map[string]interface{}{"devices": devices, "total": len(devices)}, nil
}

func (a *PiAlert) queryNewDevices(ctx context.Context, hours int) (map[string]interface{}, error) {
	db, err := a.openDB()
	if err != nil {
		return map[string]interface{}{"error": err.Error()}, nil
	}
	defer db.Close()

	rows, err := db.QueryContext(ctx,
		"SELECT * FROM Devices WHERE dev_FirstConnection >= datetime('now', ? || ' hours') ORDER BY dev_FirstConnection DESC",
		fmt.Sprintf("-%d", hours))
	if err != nil {
		return map[string]interface{}{"error": err.Error()}, nil
	}
	defer rows.Close()

	devices, err := scanRowsToMaps(rows)
	if err != nil {
		return map[string]interface{}{"error": err.Error()}, nil
	}
	return map[string]interface{}{"devices": devices, "total": len(devices)}, nil
}

func (a *PiAlert) queryEvents(ctx context.Context, limit int) (map[string]interface{}, error) {
	db, err := a.openDB()
	if err != nil {
		return map[string]interface{}{"error": err.Error()}, nil
	}
	defer db.Close()

	rows, err := db.QueryContext(ctx, "SELECT * FROM Events ORDER BY eve_DateTime DESC LIMIT ?", limit)
	if err != nil {
		return map[string]interface{}{"error": err.Error()}, nil
	}
	defer rows.Close()

	events, err := scanRowsToMaps(rows)
	if err != nil {
		return map[string]interface{}{"error": err.Error()}, nil
	}
	return map[string]interface{}{"events": events, "total": len(events)}, nil
}

// scanRowsToMaps materializes a *sql.Rows into row maps keyed by column name,
// mirroring sqlite3.Row's dict-like access.
func scanRowsToMaps(rows *sql.Rows) ([]map[string]interface{}, error) {
	cols, err := rows.Columns()
	if err != nil {
		return nil, err
	}
	result := make([]map[string]interface{}, 0)
	for rows.Next() {
		values := make([]interface{}, len(cols))
		ptrs := make([]interface{}, len(cols))
		for i := range values {
			ptrs[i] = &values[i]
		}
		if err := rows.Scan(ptrs...); err != nil {
			return nil, err
		}
		row := make(map[string]interface{}, len(cols))
		for i, c := range cols {
			row[c] = values[i]
		}
		result = append(result, row)
	}
	return result, rows.Err()
}

func (a *PiAlert) ParseOutput(raw []byte, format string) (map[string]interface{}, error) {
	var parsed map[string]interface{}
	if err := json.Unmarshal(raw, &parsed); err == nil {
		return parsed, nil
	}
	return map[string]interface{}{"raw": string(raw)}, nil
}
