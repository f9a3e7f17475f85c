package adapters

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/sentinel-labs/netsec/internal/models"
	"github.com/sentinel-labs/netsec/internal/runner"
)

const defaultOssecDir = "/var/ossec"

// OSSEC wraps OSSEC/Wazuh, a host-based intrusion detection system.
type OSSEC struct {
	BaseAdapter
	binary   string
	status   models.ToolStatus
	ossecDir string
}

func NewOSSEC() *OSSEC {
	return &OSSEC{status: models.StatusUnknown, ossecDir: defaultOssecDir}
}

func (a *OSSEC) ToolInfo() models.ToolInfo {
	return models.ToolInfo{
		Name:           "ossec",
		DisplayName:    "OSSEC/Wazuh",
		Category:       models.CategoryLogAnalyzer,
		Description:    "Host-based intrusion detection system",
		BinaryPath:     a.binary,
		Status:         a.status,
		SupportedTasks: []string{"status", "alerts", "active_responses", "agent_list"},
	}
}

func (a *OSSEC) Detect(ctx context.Context) (bool, error) {
	controlPath := filepath.Join(a.ossecDir, "bin", "ossec-control")
	if _, err := os.Stat(controlPath); err == nil {
		a.binary = controlPath
		a.status = models.StatusAvailable
		return true, nil
	}
	if wazuh := runner.LocateBinary("wazuh-control"); wazuh != "" {
		a.binary = wazuh
		a.ossecDir = filepath.Dir(filepath.Dir(wazuh))
		a.status = models.StatusAvailable
		return true, nil
	}
	a.status = models.StatusUnavailable
	return false, nil
}

func (a *OSSEC) HealthCheck(ctx context.Context) (models.ToolStatus, error) {
	if a.binary == "" {
		return models.StatusUnavailable, nil
	}
	result := runner.Run(ctx, 10*time.Second, a.binary, "status")
	switch {
	case result.Success() && strings.Contains(strings.ToLower(result.Stdout), "running"):
		a.status = models.StatusRunning
	default:
		a.status = models.StatusAvailable
	}
	return a.status, nil
}

func (a *OSSEC) Execute(ctx context.Context, task string, params map[string]interface{}) (map[string]interface{}, error) {
	if a.binary == "" {
		return nil, fmt.Errorf("OSSEC not available")
	}
	switch task {
	case "status":
		result := runner.Run(ctx, 10*time.Second, a.binary, "status")
		return map[string]interface{}{"output": result.Stdout, "success": result.Success()}, nil
	case "alerts":
		return a.readAlerts(ctx, intParam(params, "lines", 100))
	case "active_responses":
		logPath := filepath.Join(a.ossecDir, "logs", "active-responses.log")
		result := runner.Run(ctx, 10*time.Second, "tail", "-n", strconv.Itoa(intParam(params, "lines", 50)), logPath)
		return map[string]interface{}{"responses": strings.Split(strings.TrimSpace(result.Stdout), "\n")}, nil
	case "agent_list":
		agentBin := filepath.Join(a.ossecDir, "bin", "agent_control")
		result := runner.Run(ctx, 10*time.Second, agentBin, "-l")
		return map[string]interface{}{"output": result.Stdout}, nil
	default:
		return nil, fmt.Errorf("unknown task: %s", task)
	}
}

func (a *OSSEC) readAlerts(ctx context.Context, lines int) (map[string]interface{}, error) {
	alertsLog := filepath.Join(a.ossecDir, "logs", "alerts", "alerts.json")
	format := "json"
	if _, err := os.Stat(alertsLog); err != nil {
		alertsLog = filepath.Join(a.ossecDir, "logs", "alerts", "alerts.log")
		format = "text"
	}
	if _, err := os.Stat(alertsLog); err != nil {
		return map[string]interface{}{"alerts": []string{}, "error": "Alerts log not found"}, nil
	}
	result := runner.Run(ctx, 10*time.Second, "tail", "-n", strconv.Itoa(lines), alertsLog)
	return a.ParseOutput([]byte(result.Stdout), format)
}

func (a *OSSEC) ParseOutput(raw []byte, format string) (map[string]interface{}, error) {
	text := strings.TrimSpace(string(raw))
	if format == "json" {
		alerts := make([]map[string]interface{}, 0)
		for _, line := range strings.Split(text, "\n") {
			var event map[string]interface{}
			if err := json.Unmarshal([]byte(line), &event); err != nil {
				continue
			}
			alerts = append(alerts, event)
		}
		return map[string]interface{}{"alerts": alerts, "total": len(alerts)}, nil
	}
	blocks := strings.Split(text, "\n\n")
	return map[string]interface{}{"alerts": blocks, "total": len(blocks)}, nil
}
