package adapters

import (
	"context"
	"sync"

	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"

	"github.com/sentinel-labs/netsec/internal/models"
)

// Registry holds one Adapter instance per tool name, keyed by the
// adapter's own declared name. New adapters are added via explicit
// registration — this module prefers a central, explicit list of
// constructors over the original's package-scan discovery, per the
// design note that the capability to add a tool by touching one place
// should be preserved without needing dynamic module loading.
type Registry struct {
	mu          sync.RWMutex
	adapters    map[string]Adapter
	initialized bool
	initResults map[string]bool
}

// NewRegistry returns an empty Registry.
func NewRegistry() *Registry {
	return &Registry{adapters: make(map[string]Adapter)}
}

// Register adds adapter under the name its ToolInfo declares.
func (r *Registry) Register(adapter Adapter) {
	name := adapter.ToolInfo().Name
	r.mu.Lock()
	defer r.mu.Unlock()
	r.adapters[name] = adapter
	log.Info().Str("tool", name).Msg("registered adapter")
}

// Get returns the adapter registered under name, if any.
func (r *Registry) Get(name string) (Adapter, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	a, ok := r.adapters[name]
	return a, ok
}

// ListTools returns the descriptor for every registered adapter.
func (r *Registry) ListTools() []models.ToolInfo {
	r.mu.RLock()
	defer r.mu.RUnlock()
	tools := make([]models.ToolInfo, 0, len(r.adapters))
	for _, a := range r.adapters {
		tools = append(tools, a.ToolInfo())
	}
	return tools
}

// InitAll runs Detect concurrently across every registered adapter,
// starting each one that reports available. A failing adapter's error
// is logged and reported as unavailable; it never prevents other
// adapters from initializing. Returns {tool name: available}; later
// calls return the first call's results without detecting again.
func (r *Registry) InitAll(ctx context.Context) map[string]bool {
	r.mu.Lock()
	if r.initialized {
		results := make(map[string]bool, len(r.initResults))
		for name, available := range r.initResults {
			results[name] = available
		}
		r.mu.Unlock()
		return results
	}
	snapshot := make(map[string]Adapter, len(r.adapters))
	for name, a := range r.adapters {
		snapshot[name] = a
	}
	r.initialized = true
	r.mu.Unlock()

	results := make(map[string]bool, len(snapshot))
	var resultsMu sync.Mutex

	g, gctx := errgroup.WithContext(ctx)
	for name, adapter := range snapshot {
		name, adapter := name, adapter
		g.Go(func() error {
			available, err := adapter.Detect(gctx)
			if err != nil {
				log.Error().Err(err).Str("tool", name).Msg("error initializing adapter")
				resultsMu.Lock()
				results[name] = false
				resultsMu.Unlock()
				return nil
			}
			if available {
				if err := adapter.Start(gctx); err != nil {
					log.Error().Err(err).Str("tool", name).Msg("error starting adapter")
				}
				log.Info().Str("tool", name).Msg("tool available")
			} else {
				log.Info().Str("tool", name).Msg("tool not found")
			}
			resultsMu.Lock()
			results[name] = available
			resultsMu.Unlock()
			return nil
		})
	}
	_ = g.Wait()

	r.mu.Lock()
	r.initResults = make(map[string]bool, len(results))
	for name, available := range results {
		r.initResults[name] = available
	}
	r.mu.Unlock()

	return results
}

// ShutdownAll invokes Stop on every registered adapter, logging but
// ignoring errors.
func (r *Registry) ShutdownAll(ctx context.Context) {
	r.mu.RLock()
	snapshot := make(map[string]Adapter, len(r.adapters))
	for name, a := range r.adapters {
		snapshot[name] = a
	}
	r.mu.RUnlock()

	for name, adapter := range snapshot {
		if err := adapter.Stop(ctx); err != nil {
			log.Error().Err(err).Str("tool", name).Msg("error stopping adapter")
		}
	}
}

// HealthCheckAll runs HealthCheck concurrently across every registered
// adapter; a failure in one does not prevent others from reporting.
func (r *Registry) HealthCheckAll(ctx context.Context) map[string]models.ToolStatus {
	r.mu.RLock()
	snapshot := make(map[string]Adapter, len(r.adapters))
	for name, a := range r.adapters {
		snapshot[name] = a
	}
	r.mu.RUnlock()

	results := make(map[string]models.ToolStatus, len(snapshot))
	var resultsMu sync.Mutex

	g, gctx := errgroup.WithContext(ctx)
	for name, adapter := range snapshot {
		name, adapter := name, adapter
		g.Go(func() error {
			status, err := adapter.HealthCheck(gctx)
			if err != nil {
				log.Error().Err(err).Str("tool", name).Msg("health check failed")
				status = models.StatusError
			}
			resultsMu.Lock()
			results[name] = status
			resultsMu.Unlock()
			return nil
		})
	}
	_ = g.Wait()

	return results
}
