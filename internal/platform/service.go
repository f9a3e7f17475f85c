package platform

import (
	"context"
	"runtime"
	"strconv"
	"strings"
	"time"

	"github.com/sentinel-labs/netsec/internal/runner"
)

// ServiceState is the coarse running state of a host service.
type ServiceState string

const (
	ServiceRunning ServiceState = "running"
	ServiceStopped ServiceState = "stopped"
	ServiceUnknown ServiceState = "unknown"
)

// ServiceStatus is the result of a service-state query.
type ServiceStatus struct {
	Name    string       `json:"name"`
	State   ServiceState `json:"state"`
	Enabled bool         `json:"enabled"`
	PID     int          `json:"pid,omitempty"`
}

// GetServiceStatus queries the host's service manager for name,
// dispatching to the systemd, launchctl, or Windows sc backend
// depending on the running OS.
func GetServiceStatus(ctx context.Context, name string) ServiceStatus {
	switch runtime.GOOS {
	case "linux":
		return systemdStatus(ctx, name)
	case "darwin":
		return launchctlStatus(ctx, name)
	case "windows":
		return scStatus(ctx, name)
	default:
		return ServiceStatus{Name: name, State: ServiceUnknown}
	}
}

func systemdStatus(ctx context.Context, name string) ServiceStatus {
	status := ServiceStatus{Name: name, State: ServiceUnknown}

	active := runner.Run(ctx, 5*time.Second, "systemctl", "is-active", name)
	switch strings.TrimSpace(active.Stdout) {
	case "active":
		status.State = ServiceRunning
	case "inactive", "failed":
		status.State = ServiceStopped
	}

	enabled := runner.Run(ctx, 5*time.Second, "systemctl", "is-enabled", name)
	status.Enabled = strings.TrimSpace(enabled.Stdout) == "enabled"

	if status.State == ServiceRunning {
		pidResult := runner.Run(ctx, 5*time.Second, "systemctl", "show", name, "--property=MainPID", "--value")
		if pid, err := strconv.Atoi(strings.TrimSpace(pidResult.Stdout)); err == nil && pid > 0 {
			status.PID = pid
		}
	}

	return status
}

func launchctlStatus(ctx context.Context, name string) ServiceStatus {
	status := ServiceStatus{Name: name, State: ServiceUnknown}

	result := runner.Run(ctx, 5*time.Second, "launchctl", "list", name)
	if !result.Success() {
		status.State = ServiceStopped
		return status
	}
	status.State = ServiceRunning
	for _, line := range strings.Split(result.Stdout, "\n") {
		line = strings.TrimSpace(line)
		if strings.HasPrefix(line, `"PID"`) {
			parts := strings.Split(line, "=")
			if len(parts) == 2 {
				if pid, err := strconv.Atoi(strings.TrimSpace(strings.Trim(parts[1], " ;"))); err == nil {
					status.PID = pid
				}
			}
		}
	}
	return status
}

func scStatus(ctx context.Context, name string) ServiceStatus {
	status := ServiceStatus{Name: name, State: ServiceUnknown}

	result := runner.Run(ctx, 5*time.Second, "sc", "query", name)
	if !result.Success() {
		return status
	}
	if strings.Contains(result.Stdout, "RUNNING") {
		status.State = ServiceRunning
	} else if strings.Contains(result.Stdout, "STOPPED") {
		status.State = ServiceStopped
	}
	return status
}
