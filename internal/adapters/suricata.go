package adapters

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/sentinel-labs/netsec/internal/models"
	"github.com/sentinel-labs/netsec/internal/platform"
	"github.com/sentinel-labs/netsec/internal/runner"
)

const defaultEveLog = "/var/log/suricata/eve.json"

// Suricata wraps the Suricata IDS/IPS engine, tailing its EVE JSON log.
type Suricata struct {
	BaseAdapter
	binary  string
	version string
	status  models.ToolStatus
	eveLog  string
}

func NewSuricata() *Suricata {
	return &Suricata{status: models.StatusUnknown, eveLog: defaultEveLog}
}

func (a *Suricata) ToolInfo() models.ToolInfo {
	return models.ToolInfo{
		Name:           "suricata",
		DisplayName:    "Suricata",
		Category:       models.CategoryIDSIPS,
		Description:    "Network threat detection engine (IDS/IPS)",
		Version:        a.version,
		BinaryPath:     a.binary,
		Status:         a.status,
		SupportedTasks: []string{"status", "tail_alerts", "rule_reload", "stats"},
	}
}

func (a *Suricata) Detect(ctx context.Context) (bool, error) {
	a.binary = platform.FindToolBinary(platform.OSLinux, "suricata")
	if a.binary == "" {
		a.binary = runner.LocateBinary("suricata")
	}
	if a.binary == "" {
		a.status = models.StatusUnavailable
		return false, nil
	}
	ver := runner.ExtractVersion(ctx, a.binary, "--build-info")
	for _, line := range strings.Split(ver, "\n") {
		if strings.Contains(strings.ToLower(line), "version") {
			fields := strings.Fields(line)
			if len(fields) > 0 {
				a.version = fields[len(fields)-1]
			}
			break
		}
	}
	a.status = models.StatusAvailable
	return true, nil
}

func (a *Suricata) HealthCheck(ctx context.Context) (models.ToolStatus, error) {
	svc := platform.GetServiceStatus(ctx, "suricata")
	switch {
	case svc.State == platform.ServiceRunning:
		a.status = models.StatusRunning
	case a.binary != "":
		a.status = models.StatusAvailable
	default:
		a.status = models.StatusUnavailable
	}
	return a.status, nil
}

func (a *Suricata) Execute(ctx context.Context, task string, params map[string]interface{}) (map[string]interface{}, error) {
	if a.binary == "" {
		return nil, fmt.Errorf("Suricata not available")
	}
	switch task {
	case "status":
		svc := platform.GetServiceStatus(ctx, "suricata")
		return map[string]interface{}{"state": string(svc.State), "pid": svc.PID}, nil
	case "tail_alerts":
		lines := 100
		if l, ok := params["lines"].(int); ok && l > 0 {
			lines = l
		}
		return a.tailEve(ctx, lines)
	case "rule_reload":
		result := runner.Run(ctx, 30*time.Second, a.binary, "--reload-rules")
		return map[string]interface{}{"success": result.Success(), "output": result.Stdout}, nil
	case "stats":
		return a.getStats(ctx)
	default:
		return nil, fmt.Errorf("unknown task: %s", task)
	}
}

func (a *Suricata) tailEve(ctx context.Context, lines int) (map[string]interface{}, error) {
	if _, err := os.Stat(a.eveLog); err != nil {
		return map[string]interface{}{"alerts": []map[string]interface{}{}, "error": fmt.Sprintf("EVE log not found: %s", a.eveLog)}, nil
	}
	result := runner.Run(ctx, 10*time.Second, "tail", "-n", strconv.Itoa(lines), a.eveLog)
	alerts := make([]map[string]interface{}, 0)
	for _, line := range strings.Split(strings.TrimSpace(result.Stdout), "\n") {
		if line == "" {
			continue
		}
		var event map[string]interface{}
		if err := json.Unmarshal([]byte(line), &event); err != nil {
			continue
		}
		if event["event_type"] == "alert" {
			alerts = append(alerts, event)
		}
	}
	return map[string]interface{}{"alerts": alerts, "total": len(alerts)}, nil
}

func (a *Suricata) getStats(ctx context.Context) (map[string]interface{}, error) {
	if _, err := os.Stat(a.eveLog); err != nil {
		return map[string]interface{}{"error": "EVE log not found"}, nil
	}
	result := runner.Run(ctx, 10*time.Second, "tail", "-n", "500", a.eveLog)
	var latest map[string]interface{}
	for _, line := range strings.Split(strings.TrimSpace(result.Stdout), "\n") {
		var event map[string]interface{}
		if err := json.Unmarshal([]byte(line), &event); err != nil {
			continue
		}
		if event["event_type"] == "stats" {
			latest = event
		}
	}
	if latest == nil {
		latest = map[string]interface{}{}
	}
	return map[string]interface{}{"stats": latest}, nil
}

func (a *Suricata) ParseOutput(raw []byte, format string) (map[string]interface{}, error) {
	events := make([]map[string]interface{}, 0)
	for _, line := range strings.Split(strings.TrimSpace(string(raw)), "\n") {
		if line == "" {
			continue
		}
		var event map[string]interface{}
		if err := json.Unmarshal([]byte(line), &event); err != nil {
			continue
		}
		events = append(events, event)
	}
	return map[string]interface{}{"events": events}, nil
}
