// Package adapters implements the tool-adapter plane: a uniform
// capability abstraction over heterogeneous external security tools,
// and the registry that discovers, initializes, and health-checks
// them.
package adapters

import (
	"context"

	"github.com/sentinel-labs/netsec/internal/models"
)

// Adapter is the capability set every tool integration implements.
// Adapters never share mutable state across instances; a single
// instance per tool lives in the registry, and they do not enforce
// concurrency limits on themselves — the scan orchestrator does.
type Adapter interface {
	// ToolInfo returns the current descriptor for this adapter.
	ToolInfo() models.ToolInfo

	// Detect locates the tool's binary or API endpoint, populates
	// version/status, and reports whether the tool is usable.
	// Idempotent.
	Detect(ctx context.Context) (bool, error)

	// HealthCheck returns a fresh status, optionally reaching out to
	// the tool or running a cheap self-test.
	HealthCheck(ctx context.Context) (models.ToolStatus, error)

	// Execute dispatches a task name from the descriptor's
	// supported-task list with a parameter map. A tool that is simply
	// unavailable returns an error; a tool that ran but reported its
	// own failure returns a result map containing an "error" key.
	Execute(ctx context.Context, task string, params map[string]interface{}) (map[string]interface{}, error)

	// ParseOutput produces the same structured shape Execute would,
	// from raw tool output and a format hint (text, xml, json, tsv).
	ParseOutput(raw []byte, format string) (map[string]interface{}, error)

	// Start is invoked only after Detect reports the tool available.
	Start(ctx context.Context) error

	// Stop is invoked during shutdown; errors are logged, not fatal.
	Stop(ctx context.Context) error
}

// BaseAdapter supplies no-op Start/Stop lifecycle hooks so concrete
// adapters only need to implement them when they have real setup or
// teardown work.
type BaseAdapter struct{}

// Start is a no-op by default.
func (BaseAdapter) Start(ctx context.Context) error { return nil }

// Stop is a no-op by default.
func (BaseAdapter) Stop(ctx context.Context) error { return nil }
