// Package monitoring runs the two background sweeps that keep device
// and tool state current between scans: marking devices offline once
// they go quiet, and watching tool health for transitions worth
// alerting on.
package monitoring

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/sentinel-labs/netsec/internal/eventbus"
	"github.com/sentinel-labs/netsec/internal/metrics"
	"github.com/sentinel-labs/netsec/internal/models"
)

var nowFn = time.Now

// DeviceStore is the persistence surface the availability sweep needs.
type DeviceStore interface {
	ListStaleOnlineDevices(ctx context.Context, threshold time.Time) ([]models.Device, error)
	UpdateDeviceStatus(ctx context.Context, id string, status models.DeviceStatus) error
}

// HealthRegistry is the adapter surface the tool-health sweep needs.
type HealthRegistry interface {
	HealthCheckAll(ctx context.Context) map[string]models.ToolStatus
}

// Service runs the device-availability and tool-health sweeps and
// publishes events for state transitions.
type Service struct {
	store    DeviceStore
	registry HealthRegistry
	bus      *eventbus.Bus

	mu                 sync.Mutex
	previousToolStatus map[string]models.ToolStatus
}

// NewService builds a Service over store/registry/bus.
func NewService(store DeviceStore, registry HealthRegistry, bus *eventbus.Bus) *Service {
	return &Service{
		store:              store,
		registry:           registry,
		bus:                bus,
		previousToolStatus: make(map[string]models.ToolStatus),
	}
}

// CheckDeviceAvailability marks every device that's been online-but-quiet
// longer than offlineThreshold as offline, publishing a DEVICE_OFFLINE
// event for each one. Returns the number of devices marked offline.
func (s *Service) CheckDeviceAvailability(ctx context.Context, offlineThreshold time.Duration) (int, error) {
	threshold := nowFn().Add(-offlineThreshold)

	stale, err := s.store.ListStaleOnlineDevices(ctx, threshold)
	if err != nil {
		return 0, err
	}

	count := 0
	for _, device := range stale {
		if err := s.store.UpdateDeviceStatus(ctx, device.ID, models.DeviceOffline); err != nil {
			log.Error().Err(err).Str("device_id", device.ID).Msg("failed to mark device offline")
			continue
		}
		count++
		metrics.RecordDeviceOffline()

		s.bus.PublishNoWait(models.Event{
			Type:   models.EventDeviceOffline,
			Source: "monitoring",
			Data: map[string]interface{}{
				"device_id": device.ID,
				"ip":        device.IPAddress,
				"hostname":  device.Hostname,
				"last_seen": device.LastSeen.UTC().Format(time.RFC3339),
			},
		})
	}

	if count > 0 {
		log.Info().Int("count", count).Dur("threshold", offlineThreshold).Msg("marked devices offline")
	}
	return count, nil
}

// CheckToolHealth runs a health check across every registered adapter
// and publishes TOOL_ONLINE/TOOL_OFFLINE for any status transition.
// Returns the current status string for every tool.
func (s *Service) CheckToolHealth(ctx context.Context) map[string]string {
	results := s.registry.HealthCheckAll(ctx)

	s.mu.Lock()
	defer s.mu.Unlock()

	out := make(map[string]string, len(results))
	for tool, status := range results {
		previous, known := s.previousToolStatus[tool]

		if known && previous != status {
			eventType := models.EventToolOffline
			if status == models.StatusAvailable {
				eventType = models.EventToolOnline
			}

			s.bus.PublishNoWait(models.Event{
				Type:   eventType,
				Source: "monitoring",
				Data: map[string]interface{}{
					"tool":            tool,
					"status":          string(status),
					"previous_status": string(previous),
				},
			})
			metrics.RecordToolStatusTransition(tool, string(status))
			log.Info().Str("tool", tool).Str("from", string(previous)).Str("to", string(status)).Msg("tool status changed")
		}

		s.previousToolStatus[tool] = status
		out[tool] = string(status)
	}
	return out
}
