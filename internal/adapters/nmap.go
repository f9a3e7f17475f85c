package adapters

import (
	"context"
	"encoding/xml"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/sentinel-labs/netsec/internal/models"
	"github.com/sentinel-labs/netsec/internal/platform"
	"github.com/sentinel-labs/netsec/internal/runner"
)

// Nmap wraps the nmap network scanner.
type Nmap struct {
	BaseAdapter
	binary  string
	version string
	status  models.ToolStatus
}

// NewNmap returns an uninitialized Nmap adapter; call Detect before use.
func NewNmap() *Nmap {
	return &Nmap{status: models.StatusUnknown}
}

func (a *Nmap) ToolInfo() models.ToolInfo {
	return models.ToolInfo{
		Name:        "nmap",
		DisplayName: "Nmap",
		Category:    models.CategoryNetworkScanner,
		Description: "Network exploration and security auditing tool",
		Version:     a.version,
		BinaryPath:  a.binary,
		Status:      a.status,
		SupportedTasks: []string{
			"quick_scan", "full_scan", "port_scan", "os_detect", "service_detect", "vuln_scan",
		},
	}
}

func (a *Nmap) Detect(ctx context.Context) (bool, error) {
	a.binary = platform.FindToolBinary(platform.OSLinux, "nmap")
	if a.binary == "" {
		a.binary = runner.LocateBinary("nmap")
	}
	if a.binary == "" {
		a.status = models.StatusUnavailable
		return false, nil
	}

	versionLine := runner.ExtractVersion(ctx, a.binary, "--version")
	// "Nmap version 7.94 ( https://nmap.org )"
	fields := strings.Fields(versionLine)
	for i, f := range fields {
		if f == "version" && i+1 < len(fields) {
			a.version = fields[i+1]
			break
		}
	}
	if a.version == "" {
		a.version = strings.SplitN(versionLine, "\n", 2)[0]
	}
	a.status = models.StatusAvailable
	return true, nil
}

func (a *Nmap) HealthCheck(ctx context.Context) (models.ToolStatus, error) {
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

func (a *Nmap) Execute(ctx context.Context, task string, params map[string]interface{}) (map[string]interface{}, error) {
	if a.binary == "" {
		return nil, fmt.Errorf("nmap is not available")
	}

	target, _ := params["target"].(string)
	if target == "" {
		return nil, fmt.Errorf("target is required")
	}

	timeout := 300 * time.Second
	if t, ok := params["timeout"].(int); ok && t > 0 {
		timeout = time.Duration(t) * time.Second
	}

	args := a.buildArgs(task, target, params)
	result := runner.Run(ctx, timeout, a.binary, args...)

	if result.TimedOut {
		return map[string]interface{}{"error": "Scan timed out", "command": result.Command}, nil
	}
	if !result.Success() {
		return map[string]interface{}{"error": result.Stderr, "command": result.Command, "returncode": result.ReturnCode}, nil
	}

	parsed, err := a.ParseOutput([]byte(result.Stdout), "xml")
	if err != nil {
		return nil, err
	}
	parsed["command"] = result.Command
	return parsed, nil
}

func (a *Nmap) buildArgs(task, target string, params map[string]interface{}) []string {
	base := []string{"-oX", "-"}
	switch task {
	case "quick_scan":
		return append(base, "-sn", target)
	case "full_scan":
		return append(base, "-sV", "-O", "-A", target)
	case "port_scan":
		ports := "1-1024"
		if p, ok := params["ports"].(string); ok && p != "" {
			ports = p
		}
		return append(base, "-sS", "-p", ports, target)
	case "os_detect":
		return append(base, "-O", target)
	case "service_detect":
		return append(base, "-sV", target)
	case "vuln_scan":
		return append(base, "--script", "vuln", target)
	default:
		extra, _ := params["args"].(string)
		args := append(base, strings.Fields(extra)...)
		return append(args, target)
	}
}

func (a *Nmap) ParseOutput(raw []byte, format string) (map[string]interface{}, error) {
	text := string(raw)
	if format == "xml" || strings.HasPrefix(strings.TrimSpace(text), "<?xml") {
		return parseNmapXML(text)
	}
	return map[string]interface{}{"raw": text}, nil
}

type nmapRun struct {
	XMLName  xml.Name      `xml:"nmaprun"`
	Scanner  string        `xml:"scanner,attr"`
	Args     string        `xml:"args,attr"`
	Start    string        `xml:"start,attr"`
	Version  string        `xml:"version,attr"`
	Hosts    []nmapHost    `xml:"host"`
	RunStats nmapRunStats  `xml:"runstats"`
}

type nmapHost struct {
	Status    nmapStatus    `xml:"status"`
	Addresses []nmapAddress `xml:"address"`
	Hostnames struct {
		Hostname []nmapHostname `xml:"hostname"`
	} `xml:"hostnames"`
	Ports struct {
		Port []nmapPort `xml:"port"`
	} `xml:"ports"`
	OS struct {
		OSMatch []nmapOSMatch `xml:"osmatch"`
	} `xml:"os"`
}

type nmapStatus struct {
	State string `xml:"state,attr"`
}

type nmapAddress struct {
	AddrType string `xml:"addrtype,attr"`
	Addr     string `xml:"addr,attr"`
	Vendor   string `xml:"vendor,attr"`
}

type nmapHostname struct {
	Name string `xml:"name,attr"`
	Type string `xml:"type,attr"`
}

type nmapPort struct {
	PortID   string `xml:"portid,attr"`
	Protocol string `xml:"protocol,attr"`
	State    struct {
		State string `xml:"state,attr"`
	} `xml:"state"`
	Service struct {
		Name      string `xml:"name,attr"`
		Product   string `xml:"product,attr"`
		Version   string `xml:"version,attr"`
		ExtraInfo string `xml:"extrainfo,attr"`
	} `xml:"service"`
}

type nmapOSMatch struct {
	Name     string `xml:"name,attr"`
	Accuracy string `xml:"accuracy,attr"`
}

type nmapRunStats struct {
	Finished struct {
		Elapsed string `xml:"elapsed,attr"`
		Summary string `xml:"summary,attr"`
	} `xml:"finished"`
	Hosts struct {
		Up    string `xml:"up,attr"`
		Down  string `xml:"down,attr"`
		Total string `xml:"total,attr"`
	} `xml:"hosts"`
}

func parseNmapXML(text string) (map[string]interface{}, error) {
	var run nmapRun
	if err := xml.Unmarshal([]byte(text), &run); err != nil {
		truncated := text
		if len(truncated) > 2000 {
			truncated = truncated[:2000]
		}
		return map[string]interface{}{"error": fmt.Sprintf("XML parse error: %v", err), "raw": truncated}, nil
	}

	hosts := make([]map[string]interface{}, 0, len(run.Hosts))
	for _, h := range run.Hosts {
		hosts = append(hosts, parseNmapHost(h))
	}

	stats := map[string]interface{}{}
	if run.RunStats.Finished.Elapsed != "" || run.RunStats.Finished.Summary != "" {
		stats["elapsed"] = run.RunStats.Finished.Elapsed
		stats["summary"] = run.RunStats.Finished.Summary
	}
	if run.RunStats.Hosts.Total != "" {
		stats["hosts_up"] = atoiOrZero(run.RunStats.Hosts.Up)
		stats["hosts_down"] = atoiOrZero(run.RunStats.Hosts.Down)
		stats["hosts_total"] = atoiOrZero(run.RunStats.Hosts.Total)
	}

	return map[string]interface{}{
		"scan_info": map[string]interface{}{
			"scanner":    defaultIfEmpty(run.Scanner, "nmap"),
			"args":       run.Args,
			"start_time": run.Start,
			"version":    run.Version,
		},
		"hosts": hosts,
		"stats": stats,
	}, nil
}

func parseNmapHost(h nmapHost) map[string]interface{} {
	addresses := map[string]interface{}{}
	for _, addr := range h.Addresses {
		addresses[addr.AddrType] = addr.Addr
		if addr.AddrType == "mac" {
			addresses["vendor"] = addr.Vendor
		}
	}

	hostnames := make([]map[string]interface{}, 0, len(h.Hostnames.Hostname))
	for _, hn := range h.Hostnames.Hostname {
		hostnames = append(hostnames, map[string]interface{}{"name": hn.Name, "type": hn.Type})
	}

	ports := make([]map[string]interface{}, 0, len(h.Ports.Port))
	for _, p := range h.Ports.Port {
		port := map[string]interface{}{
			"port":     atoiOrZero(p.PortID),
			"protocol": defaultIfEmpty(p.Protocol, "tcp"),
			"state":    p.State.State,
		}
		if p.Service.Name != "" || p.Service.Product != "" {
			port["service"] = p.Service.Name
			port["product"] = p.Service.Product
			port["version"] = p.Service.Version
			port["extrainfo"] = p.Service.ExtraInfo
		}
		ports = append(ports, port)
	}

	osInfo := map[string]interface{}{}
	if len(h.OS.OSMatch) > 0 {
		osInfo["name"] = h.OS.OSMatch[0].Name
		osInfo["accuracy"] = h.OS.OSMatch[0].Accuracy
	}

	status := "unknown"
	if h.Status.State != "" {
		status = h.Status.State
	}

	return map[string]interface{}{
		"status":    status,
		"addresses": addresses,
		"hostnames": hostnames,
		"ports":     ports,
		"os":        osInfo,
	}
}

func atoiOrZero(s string) int {
	n, err := strconv.Atoi(s)
	if err != nil {
		return 0
	}
	return n
}

func defaultIfEmpty(s, def string) string {
	if s == "" {
		return def
	}
	return s
}
