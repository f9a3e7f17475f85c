package platform

import (
	"os"
	"os/exec"
)

// toolPaths is a curated map of well-known installation paths per
// tool, consulted before falling back to a PATH lookup.
var toolPaths = map[string]map[OSType][]string{
	"nmap": {
		OSLinux:  {"/usr/bin/nmap", "/usr/local/bin/nmap"},
		OSDarwin: {"/usr/local/bin/nmap", "/opt/homebrew/bin/nmap"},
	},
	"suricata": {
		OSLinux: {"/usr/bin/suricata", "/usr/sbin/suricata"},
	},
	"zeek": {
		OSLinux: {"/usr/local/zeek/bin/zeek", "/opt/zeek/bin/zeek"},
	},
	"clamscan": {
		OSLinux:  {"/usr/bin/clamscan"},
		OSDarwin: {"/usr/local/bin/clamscan", "/opt/homebrew/bin/clamscan"},
	},
	"fail2ban-client": {
		OSLinux: {"/usr/bin/fail2ban-client"},
	},
	"tshark": {
		OSLinux:  {"/usr/bin/tshark"},
		OSDarwin: {"/usr/local/bin/tshark", "/opt/homebrew/bin/tshark"},
	},
}

// statFile is a seam for tests; it reports whether path exists on disk.
var statFile = func(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}

// FindToolBinary resolves the installed location of a named tool
// binary: known paths for the current OS are checked first (file must
// exist), falling back to a PATH lookup.
func FindToolBinary(osType OSType, tool string) string {
	for _, path := range toolPaths[tool][osType] {
		if statFile(path) {
			return path
		}
	}
	if path, err := exec.LookPath(tool); err == nil {
		return path
	}
	return ""
}
