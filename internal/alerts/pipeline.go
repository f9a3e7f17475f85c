// Package alerts implements the alert-processing pipeline: normalize raw
// adapter output into a common shape, deduplicate repeated sightings,
// correlate alerts from different tools against the same device, classify
// final severity, persist, and publish.
package alerts

import (
	"context"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/sentinel-labs/netsec/internal/eventbus"
	"github.com/sentinel-labs/netsec/internal/metrics"
	"github.com/sentinel-labs/netsec/internal/models"
	"github.com/sentinel-labs/netsec/internal/utils"
)

// Store is the persistence boundary the pipeline needs: look up an open
// alert by fingerprint to bump its count, or create a new one.
type Store interface {
	FindOpenAlertByFingerprint(ctx context.Context, fingerprint string) (models.Alert, bool, error)
	SaveAlert(ctx context.Context, alert models.Alert) error
}

// Dispatcher delivers a persisted alert to configured notification
// channels (webhook, email, ...). Implemented by internal/notifications.
type Dispatcher interface {
	Dispatch(ctx context.Context, alert models.Alert)
}

// Pipeline wires together every alert-processing stage.
type Pipeline struct {
	normalizer *Normalizer
	dedup      *Deduplicator
	correlator *Correlator
	classifier *SeverityClassifier
	store      Store
	bus        *eventbus.Bus
	dispatcher Dispatcher
}

// NewPipeline builds a pipeline with the given dedup window, correlation
// window, severity rules, persistence store, event bus, and notification
// dispatcher. A nil dispatcher disables notification delivery.
func NewPipeline(dedupWindow, correlationWindow time.Duration, rules []SeverityRule, store Store, bus *eventbus.Bus, dispatcher Dispatcher) *Pipeline {
	return &Pipeline{
		normalizer: NewNormalizer(),
		dedup:      NewDeduplicator(dedupWindow, 0),
		correlator: NewCorrelator(correlationWindow),
		classifier: NewSeverityClassifier(rules),
		store:      store,
		bus:        bus,
		dispatcher: dispatcher,
	}
}

// Ingest runs a raw adapter payload through the full pipeline: normalize,
// dedup, correlate, classify, persist, dispatch, publish. Returns the
// persisted (or count-bumped) alert.
func (p *Pipeline) Ingest(ctx context.Context, sourceTool string, rawData map[string]interface{}) (models.Alert, error) {
	metrics.RecordAlertIngested(sourceTool)
	normalized := p.normalizer.Normalize(sourceTool, rawData)
	metrics.RecordPipelineStage("normalized")

	isNew, count := p.dedup.Check(normalized.Fingerprint)
	if !isNew {
		metrics.RecordPipelineStage("deduplicated")
	}

	now := nowFn().UTC()

	if !isNew && p.store != nil {
		existing, found, err := p.store.FindOpenAlertByFingerprint(ctx, normalized.Fingerprint)
		if err != nil {
			return models.Alert{}, err
		}
		if found {
			existing.Count = count
			existing.LastSeen = now
			existing.UpdatedAt = now
			if err := p.store.SaveAlert(ctx, existing); err != nil {
				return models.Alert{}, err
			}
			p.publishUpdated(ctx, existing)
			return existing, nil
		}
	}

	correlationID := p.correlator.Correlate(normalized.DeviceIP, normalized.SourceTool, normalized.Title)
	if correlationID != "" {
		metrics.RecordPipelineStage("correlated")
	}
	finalSeverity := p.classifier.Classify(normalized, count)

	alert := models.Alert{
		ID:            utils.GenerateID("alert"),
		Title:         normalized.Title,
		Description:   normalized.Description,
		Severity:      finalSeverity,
		Status:        models.AlertOpen,
		SourceTool:    normalized.SourceTool,
		SourceEventID: normalized.SourceEventID,
		Category:      normalized.Category,
		DeviceIP:      normalized.DeviceIP,
		Fingerprint:   normalized.Fingerprint,
		Count:         count,
		FirstSeen:     now,
		LastSeen:      now,
		RawData:       normalized.RawData,
		CorrelationID: correlationID,
		CreatedAt:     now,
		UpdatedAt:     now,
	}

	if p.store != nil {
		if err := p.store.SaveAlert(ctx, alert); err != nil {
			return models.Alert{}, err
		}
	}
	metrics.RecordAlertSeverity(string(alert.Severity))

	if p.dispatcher != nil {
		metrics.RecordPipelineStage("dispatched")
		p.dispatcher.Dispatch(ctx, alert)
	}

	p.publishCreated(ctx, alert)

	return alert, nil
}

// Cleanup prunes expired dedup and correlation state. Call periodically
// (e.g. from a scheduled housekeeping job).
func (p *Pipeline) Cleanup() {
	removedDedup := p.dedup.Cleanup()
	removedCorr := p.correlator.Cleanup()
	if removedDedup > 0 || removedCorr > 0 {
		log.Debug().Int("dedup_removed", removedDedup).Int("correlation_removed", removedCorr).Msg("alert pipeline state cleaned up")
	}
}

func (p *Pipeline) publishCreated(ctx context.Context, alert models.Alert) {
	if p.bus == nil {
		return
	}
	p.bus.PublishNoWait(models.Event{
		Type:   models.EventAlertCreated,
		Source: alert.SourceTool,
		Data:   map[string]interface{}{"alert": alert},
	})
}

func (p *Pipeline) publishUpdated(ctx context.Context, alert models.Alert) {
	if p.bus == nil {
		return
	}
	p.bus.PublishNoWait(models.Event{
		Type:   models.EventAlertUpdated,
		Source: alert.SourceTool,
		Data:   map[string]interface{}{"alert": alert},
	})
}
