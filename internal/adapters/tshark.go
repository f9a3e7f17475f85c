package adapters

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/sentinel-labs/netsec/internal/models"
	"github.com/sentinel-labs/netsec/internal/platform"
	"github.com/sentinel-labs/netsec/internal/runner"
)

// TShark wraps the tshark packet analyzer (Wireshark's CLI).
type TShark struct {
	BaseAdapter
	binary  string
	version string
	status  models.ToolStatus
}

func NewTShark() *TShark { return &TShark{status: models.StatusUnknown} }

func (a *TShark) ToolInfo() models.ToolInfo {
	return models.ToolInfo{
		Name:           "tshark",
		DisplayName:    "TShark",
		Category:       models.CategoryTrafficAnalyzer,
		Description:    "Network protocol analyzer (Wireshark CLI)",
		Version:        a.version,
		BinaryPath:     a.binary,
		Status:         a.status,
		SupportedTasks: []string{"capture", "read_pcap", "interfaces", "stats"},
	}
}

func (a *TShark) Detect(ctx context.Context) (bool, error) {
	a.binary = platform.FindToolBinary(platform.OSLinux, "tshark")
	if a.binary == "" {
		a.binary = runner.LocateBinary("tshark")
	}
	if a.binary == "" {
		a.status = models.StatusUnavailable
		return false, nil
	}
	ver := runner.ExtractVersion(ctx, a.binary, "--version")
	if fields := strings.Fields(ver); len(fields) > 1 {
		a.version = fields[1]
	} else {
		a.version = strings.TrimSpace(ver)
	}
	a.status = models.StatusAvailable
	return true, nil
}

func (a *TShark) HealthCheck(ctx context.Context) (models.ToolStatus, error) {
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

func (a *TShark) Execute(ctx context.Context, task string, params map[string]interface{}) (map[string]interface{}, error) {
	if a.binary == "" {
		return nil, fmt.Errorf("TShark not available")
	}
	switch task {
	case "capture":
		iface := stringParam(params, "interface", "any")
		duration := intParam(params, "duration", 30)
		count := intParam(params, "count", 100)
		filter := stringParam(params, "filter", "")
		args := []string{"-i", iface, "-a", "duration:" + strconv.Itoa(duration), "-c", strconv.Itoa(count), "-T", "json"}
		if filter != "" {
			args = append(args, "-Y", filter)
		}
		result := runner.Run(ctx, time.Duration(duration+30)*time.Second, a.binary, args...)
		return a.ParseOutput([]byte(result.Stdout), "json")
	case "read_pcap":
		pcapFile := stringParam(params, "file", "")
		if pcapFile == "" {
			return nil, fmt.Errorf("PCAP file path required")
		}
		filter := stringParam(params, "filter", "")
		args := []string{"-r", pcapFile, "-T", "json"}
		if filter != "" {
			args = append(args, "-Y", filter)
		}
		result := runner.Run(ctx, 120*time.Second, a.binary, args...)
		return a.ParseOutput([]byte(result.Stdout), "json")
	case "interfaces":
		result := runner.Run(ctx, 10*time.Second, a.binary, "-D")
		interfaces := make([]string, 0)
		for _, line := range strings.Split(strings.TrimSpace(result.Stdout), "\n") {
			if trimmed := strings.TrimSpace(line); trimmed != "" {
				interfaces = append(interfaces, trimmed)
			}
		}
		return map[string]interface{}{"interfaces": interfaces}, nil
	case "stats":
		iface := stringParam(params, "interface", "any")
		duration := intParam(params, "duration", 10)
		result := runner.Run(ctx, time.Duration(duration+15)*time.Second, a.binary,
			"-i", iface, "-a", "duration:"+strconv.Itoa(duration), "-q", "-z", "io,stat,1")
		return map[string]interface{}{"stats": result.Stdout}, nil
	default:
		return nil, fmt.Errorf("unknown task: %s", task)
	}
}

func (a *TShark) ParseOutput(raw []byte, format string) (map[string]interface{}, error) {
	text := string(raw)
	if format != "json" {
		return map[string]interface{}{"raw": text}, nil
	}
	var packets []interface{}
	if err := json.Unmarshal(raw, &packets); err != nil {
		truncated := text
		if len(truncated) > 5000 {
			truncated = truncated[:5000]
		}
		return map[string]interface{}{"packets": []interface{}{}, "raw": truncated}, nil
	}
	return map[string]interface{}{"packets": packets, "total": len(packets)}, nil
}
