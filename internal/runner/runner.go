// Package runner executes external security-tool binaries with a hard
// wall-clock timeout, mirroring the process-management primitives every
// adapter builds on.
package runner

import (
	"bytes"
	"context"
	"os/exec"
	"regexp"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
)

// Result is the outcome of running a command.
type Result struct {
	ReturnCode int
	Stdout     string
	Stderr     string
	Command    string
	TimedOut   bool
}

// Success reports whether the command exited cleanly and did not time
// out.
func (r Result) Success() bool {
	return r.ReturnCode == 0 && !r.TimedOut
}

// Run executes name with args, enforcing timeout as a hard wall-clock
// limit. On timeout the child is killed (SIGKILL via the os/exec
// cancel path) and any output captured so far is returned with
// TimedOut set. A missing binary or any other start failure is
// reported as a non-zero return code; Run never returns an error.
func Run(ctx context.Context, timeout time.Duration, name string, args ...string) Result {
	command := quoteJoin(name, args)

	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	runCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	cmd := exec.CommandContext(runCtx, name, args...)
	cmd.Cancel = func() error {
		return cmd.Process.Kill()
	}

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	err := cmd.Run()

	result := Result{
		Command: command,
		Stdout:  stdout.String(),
		Stderr:  stderr.String(),
	}

	if runCtx.Err() == context.DeadlineExceeded {
		result.TimedOut = true
		result.ReturnCode = -1
		return result
	}

	if err != nil {
		if exitErr, ok := err.(*exec.ExitError); ok {
			result.ReturnCode = exitErr.ExitCode()
		} else {
			// binary not found, permission denied, etc: never raise,
			// report as a failed run.
			log.Debug().Err(err).Str("command", command).Msg("command failed to start")
			result.ReturnCode = -1
		}
		return result
	}

	result.ReturnCode = 0
	return result
}

// RunShell runs a full command line through the shell, for adapters
// whose invocation needs shell features (quoting, globbing) the
// original Python implementation relied on via asyncio's shell API.
func RunShell(ctx context.Context, timeout time.Duration, command string) Result {
	return Run(ctx, timeout, "/bin/sh", "-c", command)
}

// LocateBinary performs a PATH lookup for name, returning "" if not
// found.
func LocateBinary(name string) string {
	path, err := exec.LookPath(name)
	if err != nil {
		return ""
	}
	return path
}

var firstLineRe = regexp.MustCompile(`[^\r\n]+`)

// ExtractVersion invokes binary with versionFlag (defaulting to
// "--version") and returns the first non-empty line of combined
// stdout/stderr output, or "" if the command failed.
func ExtractVersion(ctx context.Context, binary string, versionFlag string) string {
	if versionFlag == "" {
		versionFlag = "--version"
	}
	result := Run(ctx, 10*time.Second, binary, versionFlag)
	if !result.Success() {
		return ""
	}
	combined := result.Stdout
	if strings.TrimSpace(combined) == "" {
		combined = result.Stderr
	}
	line := firstLineRe.FindString(combined)
	return strings.TrimSpace(line)
}

// QuotePath wraps path in double quotes if it contains whitespace.
func QuotePath(path string) string {
	if strings.ContainsAny(path, " \t") {
		return `"` + path + `"`
	}
	return path
}

func quoteJoin(name string, args []string) string {
	parts := make([]string, 0, len(args)+1)
	parts = append(parts, QuotePath(name))
	for _, a := range args {
		parts = append(parts, QuotePath(a))
	}
	return strings.Join(parts, " ")
}
