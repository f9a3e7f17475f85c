package adapters

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/sentinel-labs/netsec/internal/models"
	"github.com/sentinel-labs/netsec/internal/platform"
	"github.com/sentinel-labs/netsec/internal/runner"
)

const defaultZeekLogDir = "/opt/zeek/logs/current"

// Zeek wraps the Zeek network analysis framework, reading its TSV logs.
type Zeek struct {
	BaseAdapter
	binary  string
	version string
	status  models.ToolStatus
	logDir  string
}

func NewZeek() *Zeek {
	return &Zeek{status: models.StatusUnknown, logDir: defaultZeekLogDir}
}

func (a *Zeek) ToolInfo() models.ToolInfo {
	return models.ToolInfo{
		Name:           "zeek",
		DisplayName:    "Zeek",
		Category:       models.CategoryTrafficAnalyzer,
		Description:    "Network analysis framework for traffic inspection",
		Version:        a.version,
		BinaryPath:     a.binary,
		Status:         a.status,
		SupportedTasks: []string{"status", "connections", "dns", "http", "notices", "capture"},
	}
}

func (a *Zeek) Detect(ctx context.Context) (bool, error) {
	a.binary = platform.FindToolBinary(platform.OSLinux, "zeek")
	if a.binary == "" {
		a.binary = runner.LocateBinary("zeek")
	}
	if a.binary == "" {
		a.status = models.StatusUnavailable
		return false, nil
	}
	ver := runner.ExtractVersion(ctx, a.binary, "--version")
	if fields := strings.Fields(ver); len(fields) > 0 {
		a.version = fields[0]
	}
	a.status = models.StatusAvailable
	return true, nil
}

func (a *Zeek) HealthCheck(ctx context.Context) (models.ToolStatus, error) {
	svc := platform.GetServiceStatus(ctx, "zeek")
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

func (a *Zeek) Execute(ctx context.Context, task string, params map[string]interface{}) (map[string]interface{}, error) {
	if a.binary == "" {
		return nil, fmt.Errorf("Zeek not available")
	}
	switch task {
	case "status":
		result := runner.Run(ctx, 10*time.Second, a.binary+"ctl", "status")
		return map[string]interface{}{"output": result.Stdout, "success": result.Success()}, nil
	case "connections":
		return a.readLog(ctx, "conn.log", intParam(params, "lines", 100))
	case "dns":
		return a.readLog(ctx, "dns.log", intParam(params, "lines", 100))
	case "http":
		return a.readLog(ctx, "http.log", intParam(params, "lines", 100))
	case "notices":
		return a.readLog(ctx, "notice.log", intParam(params, "lines", 100))
	case "capture":
		iface := stringParam(params, "interface", "eth0")
		duration := intParam(params, "duration", 60)
		result := runner.Run(ctx, time.Duration(duration+10)*time.Second, a.binary, "-i", iface, "-C")
		return map[string]interface{}{"success": result.Success(), "output": result.Stdout}, nil
	default:
		return nil, fmt.Errorf("unknown task: %s", task)
	}
}

func (a *Zeek) readLog(ctx context.Context, logName string, lines int) (map[string]interface{}, error) {
	logPath := filepath.Join(a.logDir, logName)
	if _, err := os.Stat(logPath); err != nil {
		return map[string]interface{}{"entries": []map[string]string{}, "error": fmt.Sprintf("Log not found: %s", logPath)}, nil
	}
	result := runner.Run(ctx, 10*time.Second, "tail", "-n", strconv.Itoa(lines), logPath)
	return a.ParseOutput([]byte(result.Stdout), "zeek_tsv")
}

func (a *Zeek) ParseOutput(raw []byte, format string) (map[string]interface{}, error) {
	if format == "zeek_tsv" {
		return parseZeekTSV(string(raw)), nil
	}
	return map[string]interface{}{"raw": string(raw)}, nil
}

func parseZeekTSV(text string) map[string]interface{} {
	var headers []string
	entries := make([]map[string]string, 0)
	for _, line := range strings.Split(strings.TrimSpace(text), "\n") {
		switch {
		case strings.HasPrefix(line, "#fields"):
			parts := strings.Split(line, "\t")
			if len(parts) > 1 {
				headers = parts[1:]
			}
		case strings.HasPrefix(line, "#"):
			continue
		case len(headers) > 0 && line != "":
			values := strings.Split(line, "\t")
			entry := make(map[string]string, len(headers))
			for i, h := range headers {
				if i < len(values) {
					entry[h] = values[i]
				}
			}
			entries = append(entries, entry)
		}
	}
	return map[string]interface{}{"entries": entries, "total": len(entries)}
}

func intParam(params map[string]interface{}, key string, def int) int {
	if v, ok := params[key].(int); ok && v > 0 {
		return v
	}
	return def
}
