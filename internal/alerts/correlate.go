package alerts

import (
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/sentinel-labs/netsec/internal/utils"
)

const defaultCorrelationWindow = 600 * time.Second

type correlationSighting struct {
	sourceTool    string
	title         string
	correlationID string
	seenAt        time.Time
}

// Correlator groups alerts raised by different tools against the same
// device IP within a time window under a shared correlation ID. An alert
// reuses the correlation ID of the earliest unexpired sighting for that
// device from a different tool; when the device has no unexpired sightings,
// or all of them come from the alert's own tool, it gets a fresh
// correlation ID.
type Correlator struct {
	mu     sync.Mutex
	window time.Duration
	byIP   map[string][]correlationSighting
}

func NewCorrelator(window time.Duration) *Correlator {
	if window <= 0 {
		window = defaultCorrelationWindow
	}
	return &Correlator{
		window: window,
		byIP:   make(map[string][]correlationSighting),
	}
}

// Correlate returns the correlation ID to attach to an alert with the given
// device IP, source tool, and title. Returns "" if deviceIP is empty.
func (c *Correlator) Correlate(deviceIP, sourceTool, title string) string {
	if deviceIP == "" {
		return ""
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	now := nowFn()
	sightings := c.byIP[deviceIP]

	kept := sightings[:0]
	for _, s := range sightings {
		if now.Sub(s.seenAt) <= c.window {
			kept = append(kept, s)
		}
	}
	sightings = kept

	for _, existing := range sightings {
		if existing.sourceTool != sourceTool {
			log.Info().Str("device_ip", deviceIP).Str("title", title).Str("source_tool", sourceTool).
				Str("other_title", existing.title).Str("other_source_tool", existing.sourceTool).
				Str("correlation_id", existing.correlationID).Msg("correlated alerts for device")
			sightings = append(sightings, correlationSighting{sourceTool: sourceTool, title: title, correlationID: existing.correlationID, seenAt: now})
			c.byIP[deviceIP] = sightings
			return existing.correlationID
		}
	}

	newID := utils.GenerateID("")[:12]
	sightings = append(sightings, correlationSighting{sourceTool: sourceTool, title: title, correlationID: newID, seenAt: now})
	c.byIP[deviceIP] = sightings
	return newID
}

// Cleanup removes sightings older than twice the correlation window,
// dropping any device IP left with no sightings.
func (c *Correlator) Cleanup() int {
	c.mu.Lock()
	defer c.mu.Unlock()

	cutoff := nowFn().Add(-2 * c.window)
	removed := 0
	for ip, sightings := range c.byIP {
		kept := sightings[:0]
		for _, s := range sightings {
			if s.seenAt.After(cutoff) {
				kept = append(kept, s)
			} else {
				removed++
			}
		}
		if len(kept) == 0 {
			delete(c.byIP, ip)
		} else {
			c.byIP[ip] = kept
		}
	}
	return removed
}
