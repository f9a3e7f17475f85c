package adapters

import (
	"context"
	"encoding/xml"
	"fmt"
	"strings"
	"time"

	"github.com/sentinel-labs/netsec/internal/models"
	"github.com/sentinel-labs/netsec/internal/runner"
)

// OpenVAS wraps the OpenVAS/GVM vulnerability scanner via its gvm-cli/omp
// socket protocol, using GVM's XML command language.
type OpenVAS struct {
	BaseAdapter
	binary  string
	version string
	status  models.ToolStatus
}

func NewOpenVAS() *OpenVAS { return &OpenVAS{status: models.StatusUnknown} }

func (a *OpenVAS) ToolInfo() models.ToolInfo {
	return models.ToolInfo{
		Name:           "openvas",
		DisplayName:    "OpenVAS/GVM",
		Category:       models.CategoryVulnerabilityScanner,
		Description:    "Open vulnerability assessment scanner",
		Version:        a.version,
		BinaryPath:     a.binary,
		Status:         a.status,
		SupportedTasks: []string{"full_scan", "list_tasks", "get_report", "update_feeds"},
	}
}

func (a *OpenVAS) Detect(ctx context.Context) (bool, error) {
	a.binary = runner.LocateBinary("gvm-cli")
	if a.binary == "" {
		a.binary = runner.LocateBinary("omp")
	}
	if a.binary == "" {
		a.status = models.StatusUnavailable
		return false, nil
	}
	result := runner.Run(ctx, 10*time.Second, a.binary, "--version")
	if result.Success() {
		lines := strings.SplitN(strings.TrimSpace(result.Stdout), "\n", 2)
		a.version = lines[0]
	}
	a.status = models.StatusAvailable
	return true, nil
}

func (a *OpenVAS) HealthCheck(ctx context.Context) (models.ToolStatus, error) {
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

func (a *OpenVAS) Execute(ctx context.Context, task string, params map[string]interface{}) (map[string]interface{}, error) {
	if a.binary == "" {
		return nil, fmt.Errorf("OpenVAS/GVM not available")
	}
	switch task {
	case "full_scan":
		target := stringParam(params, "target", "")
		if target == "" {
			return nil, fmt.Errorf("target required")
		}
		timeout := 600 * time.Second
		if t, ok := params["timeout"].(int); ok && t > 0 {
			timeout = time.Duration(t) * time.Second
		}
		xmlCmd := fmt.Sprintf("<create_target><name>netsec-scan</name><hosts>%s</hosts></create_target>", target)
		result := runner.Run(ctx, timeout, a.binary, "socket", "--xml", xmlCmd)
		return map[string]interface{}{"success": result.Success(), "output": result.Stdout, "stderr": result.Stderr}, nil
	case "list_tasks":
		result := runner.Run(ctx, 30*time.Second, a.binary, "socket", "--xml", "<get_tasks/>")
		return a.ParseOutput([]byte(result.Stdout), "xml")
	case "get_report":
		reportID := stringParam(params, "report_id", "")
		xmlCmd := fmt.Sprintf("<get_reports report_id=\"%s\"/>", reportID)
		result := runner.Run(ctx, 60*time.Second, a.binary, "socket", "--xml", xmlCmd)
		return a.ParseOutput([]byte(result.Stdout), "xml")
	case "update_feeds":
		result := runner.Run(ctx, 600*time.Second, "greenbone-feed-sync")
		return map[string]interface{}{"success": result.Success(), "output": result.Stdout}, nil
	default:
		return nil, fmt.Errorf("unknown task: %s", task)
	}
}

type gvmResponse struct {
	XMLName    xml.Name `xml:""`
	Status     string   `xml:"status,attr"`
	StatusText string   `xml:"status_text,attr"`
}

func (a *OpenVAS) ParseOutput(raw []byte, format string) (map[string]interface{}, error) {
	text := string(raw)
	if format != "xml" {
		return map[string]interface{}{"raw": text}, nil
	}
	truncated := text
	if len(truncated) > 5000 {
		truncated = truncated[:5000]
	}
	var resp gvmResponse
	if err := xml.Unmarshal(raw, &resp); err != nil {
		return map[string]interface{}{"raw": truncated}, nil
	}
	return map[string]interface{}{"status": resp.Status, "status_text": resp.StatusText, "raw_xml": truncated}, nil
}
