package adapters

import (
	"context"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/sentinel-labs/netsec/internal/models"
	"github.com/sentinel-labs/netsec/internal/platform"
	"github.com/sentinel-labs/netsec/internal/runner"
)

// ClamAV wraps the clamscan antivirus engine.
type ClamAV struct {
	BaseAdapter
	binary  string
	version string
	status  models.ToolStatus
}

func NewClamAV() *ClamAV { return &ClamAV{status: models.StatusUnknown} }

func (a *ClamAV) ToolInfo() models.ToolInfo {
	return models.ToolInfo{
		Name:           "clamav",
		DisplayName:    "ClamAV",
		Category:       models.CategoryMalwareScanner,
		Description:    "Open source antivirus engine",
		Version:        a.version,
		BinaryPath:     a.binary,
		Status:         a.status,
		SupportedTasks: []string{"scan", "update_signatures", "version"},
	}
}

var clamavVersionRe = regexp.MustCompile(`ClamAV\s+([\d.]+)`)

func (a *ClamAV) Detect(ctx context.Context) (bool, error) {
	a.binary = platform.FindToolBinary(platform.OSLinux, "clamscan")
	if a.binary == "" {
		a.binary = runner.LocateBinary("clamscan")
	}
	if a.binary == "" {
		a.status = models.StatusUnavailable
		return false, nil
	}
	ver := runner.ExtractVersion(ctx, a.binary, "--version")
	if m := clamavVersionRe.FindStringSubmatch(ver); m != nil {
		a.version = m[1]
	} else {
		a.version = strings.SplitN(ver, "\n", 2)[0]
	}
	a.status = models.StatusAvailable
	return true, nil
}

func (a *ClamAV) HealthCheck(ctx context.Context) (models.ToolStatus, error) {
	if a.binary == "" {
		return models.StatusUnavailable, nil
	}
	result := runner.Run(ctx, 10*time.Second, a.binary, "--version")
	if result.Success() {
		a.status = models.StatusAvailable
	} else {
		a.status = models.StatusError
	}
	return a.status, nil
}

func (a *ClamAV) Execute(ctx context.Context, task string, params map[string]interface{}) (map[string]interface{}, error) {
	if a.binary == "" {
		return nil, fmt.Errorf("ClamAV not available")
	}
	switch task {
	case "scan":
		target, _ := params["target"].(string)
		if target == "" {
			target = "/"
		}
		recursive := true
		if r, ok := params["recursive"].(bool); ok {
			recursive = r
		}
		timeout := 600 * time.Second
		if t, ok := params["timeout"].(int); ok && t > 0 {
			timeout = time.Duration(t) * time.Second
		}
		args := []string{"--infected", "--no-summary"}
		if recursive {
			args = append(args, "-r")
		}
		args = append(args, target)
		result := runner.Run(ctx, timeout, a.binary, args...)
		return a.ParseOutput([]byte(result.Stdout), "text")
	case "update_signatures":
		result := runner.Run(ctx, 300*time.Second, "freshclam")
		return map[string]interface{}{"success": result.Success(), "output": result.Stdout, "stderr": result.Stderr}, nil
	case "version":
		result := runner.Run(ctx, 10*time.Second, a.binary, "--version")
		return map[string]interface{}{"version": strings.TrimSpace(result.Stdout)}, nil
	default:
		return nil, fmt.Errorf("unknown task: %s", task)
	}
}

func (a *ClamAV) ParseOutput(raw []byte, format string) (map[string]interface{}, error) {
	text := strings.TrimSpace(string(raw))
	infections := make([]map[string]interface{}, 0)
	if text == "" {
		return map[string]interface{}{"infections": infections, "total": 0}, nil
	}
	for _, line := range strings.Split(text, "\n") {
		if strings.Contains(line, ": ") && strings.Contains(line, "FOUND") {
			idx := strings.LastIndex(line, ": ")
			file := strings.TrimSpace(line[:idx])
			signature := strings.TrimSpace(strings.ReplaceAll(line[idx+2:], "FOUND", ""))
			infections = append(infections, map[string]interface{}{"file": file, "signature": signature})
		}
	}
	return map[string]interface{}{"infections": infections, "total": len(infections)}, nil
}
