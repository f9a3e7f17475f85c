// Package platform provides OS/distro/container detection, per-tool
// binary path resolution, service-state queries, and the
// privilege/capability checks adapters need before attempting
// privileged operations like packet capture.
package platform

import (
	"context"
	"os"
	"os/exec"
	"runtime"
	"strconv"
	"strings"

	"github.com/shirou/gopsutil/v4/host"
)

// OSType is the coarse operating-system family.
type OSType string

const (
	OSLinux   OSType = "linux"
	OSDarwin  OSType = "darwin"
	OSWindows OSType = "windows"
	OSUnknown OSType = "unknown"
)

// LinuxDistro identifies a Linux distribution family, when OSType is
// OSLinux.
type LinuxDistro string

const (
	DistroDebian  LinuxDistro = "debian"
	DistroUbuntu  LinuxDistro = "ubuntu"
	DistroRHEL    LinuxDistro = "rhel"
	DistroFedora  LinuxDistro = "fedora"
	DistroArch    LinuxDistro = "arch"
	DistroAlpine  LinuxDistro = "alpine"
	DistroUnknown LinuxDistro = "unknown"
)

// Info is a snapshot of the host platform.
type Info struct {
	OSType      OSType      `json:"os_type"`
	Distro      LinuxDistro `json:"distro,omitempty"`
	Version     string      `json:"version,omitempty"`
	Arch        string      `json:"arch"`
	IsWSL       bool        `json:"is_wsl"`
	IsContainer bool        `json:"is_container"`
}

var (
	osReleasePath  = "/etc/os-release"
	procVersionPath = "/proc/version"
	procCgroupPath  = "/proc/1/cgroup"
)

// Detect returns a snapshot of the current host platform.
func Detect(ctx context.Context) Info {
	info := Info{Arch: runtime.GOARCH}

	switch runtime.GOOS {
	case "linux":
		info.OSType = OSLinux
		info.Distro = detectLinuxDistro()
		info.IsWSL = detectWSL()
		info.IsContainer = detectContainer()
	case "darwin":
		info.OSType = OSDarwin
	case "windows":
		info.OSType = OSWindows
	default:
		info.OSType = OSUnknown
	}

	if hi, err := host.InfoWithContext(ctx); err == nil {
		info.Version = hi.PlatformVersion
	}

	return info
}

func detectLinuxDistro() LinuxDistro {
	data, err := os.ReadFile(osReleasePath)
	if err != nil {
		return DistroUnknown
	}
	content := strings.ToLower(string(data))
	switch {
	case strings.Contains(content, "ubuntu"):
		return DistroUbuntu
	case strings.Contains(content, "debian"):
		return DistroDebian
	case strings.Contains(content, "fedora"):
		return DistroFedora
	case strings.Contains(content, "rhel"), strings.Contains(content, "red hat"), strings.Contains(content, "centos"):
		return DistroRHEL
	case strings.Contains(content, "arch"):
		return DistroArch
	case strings.Contains(content, "alpine"):
		return DistroAlpine
	default:
		return DistroUnknown
	}
}

func detectWSL() bool {
	data, err := os.ReadFile(procVersionPath)
	if err != nil {
		return false
	}
	return strings.Contains(strings.ToLower(string(data)), "microsoft")
}

func detectContainer() bool {
	data, err := os.ReadFile(procCgroupPath)
	if err != nil {
		return false
	}
	content := strings.ToLower(string(data))
	return strings.Contains(content, "docker") || strings.Contains(content, "containerd") || strings.Contains(content, "kubepods")
}

// IsRoot reports whether the current process is running as root
// (non-Windows) or an elevated administrator (Windows).
func IsRoot() bool {
	if runtime.GOOS == "windows" {
		// Elevation detection on Windows requires platform-specific
		// syscalls not exercised by this module's supported adapters;
		// treat as non-root.
		return false
	}
	return os.Geteuid() == 0
}

// CanCapturePackets reports whether the current process can perform
// raw packet capture: root, or (on Linux) CAP_NET_RAW in the
// effective capability set.
func CanCapturePackets() bool {
	if IsRoot() {
		return true
	}
	if runtime.GOOS != "linux" {
		return false
	}
	return hasCapNetRaw()
}

const capNetRaw = 1 << 13

func hasCapNetRaw() bool {
	data, err := os.ReadFile("/proc/self/status")
	if err != nil {
		return false
	}
	for _, line := range strings.Split(string(data), "\n") {
		if strings.HasPrefix(line, "CapEff:") {
			fields := strings.Fields(line)
			if len(fields) != 2 {
				return false
			}
			capEff, err := strconv.ParseUint(fields[1], 16, 64)
			if err != nil {
				return false
			}
			return capEff&capNetRaw != 0
		}
	}
	return false
}

// CheckSudoAvailable reports whether sudo is reachable on PATH
// (non-Windows only).
func CheckSudoAvailable() bool {
	if runtime.GOOS == "windows" {
		return false
	}
	_, err := exec.LookPath("sudo")
	return err == nil
}
