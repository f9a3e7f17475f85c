package adapters

import (
	"context"
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/sentinel-labs/netsec/internal/models"
	"github.com/sentinel-labs/netsec/internal/platform"
	"github.com/sentinel-labs/netsec/internal/runner"
)

// Fail2Ban wraps fail2ban-client, the intrusion-prevention access
// controller that bans IPs after too many authentication failures.
type Fail2Ban struct {
	BaseAdapter
	binary  string
	version string
	status  models.ToolStatus
}

func NewFail2Ban() *Fail2Ban { return &Fail2Ban{status: models.StatusUnknown} }

func (a *Fail2Ban) ToolInfo() models.ToolInfo {
	return models.ToolInfo{
		Name:           "fail2ban",
		DisplayName:    "Fail2Ban",
		Category:       models.CategoryAccessControl,
		Description:    "Intrusion prevention — bans IPs with too many failures",
		Version:        a.version,
		BinaryPath:     a.binary,
		Status:         a.status,
		SupportedTasks: []string{"status", "jail_status", "banned_ips", "ban", "unban"},
	}
}

var fail2banVersionRe = regexp.MustCompile(`v?([\d.]+)`)

func (a *Fail2Ban) Detect(ctx context.Context) (bool, error) {
	a.binary = platform.FindToolBinary(platform.OSLinux, "fail2ban-client")
	if a.binary == "" {
		a.binary = runner.LocateBinary("fail2ban-client")
	}
	if a.binary == "" {
		a.status = models.StatusUnavailable
		return false, nil
	}
	ver := runner.ExtractVersion(ctx, a.binary, "--version")
	if m := fail2banVersionRe.FindStringSubmatch(ver); m != nil {
		a.version = m[1]
	} else {
		a.version = strings.TrimSpace(ver)
	}
	a.status = models.StatusAvailable
	return true, nil
}

func (a *Fail2Ban) HealthCheck(ctx context.Context) (models.ToolStatus, error) {
	if a.binary == "" {
		return models.StatusUnavailable, nil
	}
	result := runner.Run(ctx, 10*time.Second, a.binary, "ping")
	switch {
	case result.Success() && strings.Contains(strings.ToLower(result.Stdout), "pong"):
		a.status = models.StatusRunning
	case a.binary != "":
		a.status = models.StatusAvailable
	default:
		a.status = models.StatusError
	}
	return a.status, nil
}

func (a *Fail2Ban) Execute(ctx context.Context, task string, params map[string]interface{}) (map[string]interface{}, error) {
	if a.binary == "" {
		return nil, fmt.Errorf("Fail2Ban not available")
	}
	switch task {
	case "status":
		result := runner.Run(ctx, 10*time.Second, a.binary, "status")
		return parseFail2banJailList(result.Stdout), nil
	case "jail_status":
		jail := stringParam(params, "jail", "sshd")
		result := runner.Run(ctx, 10*time.Second, a.binary, "status", jail)
		return parseFail2banJailStatus(result.Stdout), nil
	case "banned_ips":
		jail := stringParam(params, "jail", "")
		var result runner.Result
		if jail != "" {
			result = runner.Run(ctx, 10*time.Second, a.binary, "get", jail, "banned")
		} else {
			result = runner.Run(ctx, 10*time.Second, a.binary, "banned")
		}
		return map[string]interface{}{"banned": strings.Split(strings.TrimSpace(result.Stdout), "\n"), "success": result.Success()}, nil
	case "ban":
		jail := stringParam(params, "jail", "sshd")
		ip := stringParam(params, "ip", "")
		if ip == "" {
			return nil, fmt.Errorf("IP address required")
		}
		result := runner.Run(ctx, 10*time.Second, a.binary, "set", jail, "banip", ip)
		return map[string]interface{}{"success": result.Success(), "output": result.Stdout}, nil
	case "unban":
		jail := stringParam(params, "jail", "sshd")
		ip := stringParam(params, "ip", "")
		if ip == "" {
			return nil, fmt.Errorf("IP address required")
		}
		result := runner.Run(ctx, 10*time.Second, a.binary, "set", jail, "unbanip", ip)
		return map[string]interface{}{"success": result.Success(), "output": result.Stdout}, nil
	default:
		return nil, fmt.Errorf("unknown task: %s", task)
	}
}

func (a *Fail2Ban) ParseOutput(raw []byte, format string) (map[string]interface{}, error) {
	switch format {
	case "status":
		return parseFail2banJailList(string(raw)), nil
	case "jail_status":
		return parseFail2banJailStatus(string(raw)), nil
	default:
		return map[string]interface{}{"raw": string(raw)}, nil
	}
}

func parseFail2banJailList(text string) map[string]interface{} {
	var jails []string
	for _, line := range strings.Split(strings.TrimSpace(text), "\n") {
		if strings.Contains(line, "Jail list:") {
			parts := strings.SplitN(line, ":", 2)
			if len(parts) == 2 {
				for _, j := range strings.Split(parts[1], ",") {
					if trimmed := strings.TrimSpace(j); trimmed != "" {
						jails = append(jails, trimmed)
					}
				}
			}
		}
	}
	return map[string]interface{}{"jails": jails, "total": len(jails)}
}

func parseFail2banJailStatus(text string) map[string]interface{} {
	info := map[string]interface{}{}
	for _, raw := range strings.Split(strings.TrimSpace(text), "\n") {
		line := strings.TrimSpace(raw)
		switch {
		case strings.Contains(line, "Currently failed:"):
			info["currently_failed"] = lastFieldInt(line)
		case strings.Contains(line, "Total failed:"):
			info["total_failed"] = lastFieldInt(line)
		case strings.Contains(line, "Currently banned:"):
			info["currently_banned"] = lastFieldInt(line)
		case strings.Contains(line, "Total banned:"):
			info["total_banned"] = lastFieldInt(line)
		case strings.Contains(line, "Banned IP list:"):
			parts := strings.SplitN(line, ":", 2)
			var ips []string
			if len(parts) == 2 {
				for _, ip := range strings.Fields(parts[1]) {
					ips = append(ips, ip)
				}
			}
			info["banned_ips"] = ips
		}
	}
	return info
}

func lastFieldInt(line string) int {
	idx := strings.LastIndex(line, ":")
	if idx < 0 {
		return 0
	}
	n, _ := strconv.Atoi(strings.TrimSpace(line[idx+1:]))
	return n
}

func stringParam(params map[string]interface{}, key, def string) string {
	if v, ok := params[key].(string); ok && v != "" {
		return v
	}
	return def
}
