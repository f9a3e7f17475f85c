// Package metrics exposes Prometheus instrumentation for the scan
// orchestrator, alert pipeline, adapters, and notification queue.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	scansTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "netsec_scans_total",
		Help: "Scans executed by tool and outcome.",
	}, []string{"tool", "status"})

	scanDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "netsec_scan_duration_seconds",
		Help:    "Scan execution duration by tool.",
		Buckets: []float64{0.5, 1, 5, 15, 30, 60, 120, 300},
	}, []string{"tool"})

	alertsIngested = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "netsec_alerts_ingested_total",
		Help: "Alerts entering the pipeline by source tool.",
	}, []string{"source_tool"})

	alertPipelineStage = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "netsec_alert_pipeline_stage_total",
		Help: "Alert pipeline outcomes by stage.",
	}, []string{"stage"})

	alertsBySeverity = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "netsec_alerts_by_severity_total",
		Help: "Persisted alerts by severity.",
	}, []string{"severity"})

	notificationsSent = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "netsec_notifications_sent_total",
		Help: "Notification delivery attempts by channel and result.",
	}, []string{"channel", "result"})

	notificationRetries = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "netsec_notification_retries_total",
		Help: "Notification retry attempts by channel.",
	}, []string{"channel"})

	notificationDLQ = promauto.NewCounter(prometheus.CounterOpts{
		Name: "netsec_notifications_dlq_total",
		Help: "Notifications that exhausted retries and moved to the dead-letter queue.",
	})

	toolStatusTransitions = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "netsec_tool_status_transitions_total",
		Help: "Adapter health-status transitions by tool and new status.",
	}, []string{"tool", "status"})

	devicesOffline = promauto.NewCounter(prometheus.CounterOpts{
		Name: "netsec_devices_marked_offline_total",
		Help: "Devices marked offline by the availability sweep.",
	})

	eventQueueDepth = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "netsec_event_queue_depth",
		Help: "Pending events in the event-bus queue.",
	})
)

// RecordScan records a completed scan's tool, outcome, and duration.
func RecordScan(tool, status string, durationSeconds float64) {
	scansTotal.WithLabelValues(tool, status).Inc()
	scanDuration.WithLabelValues(tool).Observe(durationSeconds)
}

// RecordAlertIngested counts one raw alert entering the pipeline.
func RecordAlertIngested(sourceTool string) {
	alertsIngested.WithLabelValues(sourceTool).Inc()
}

// RecordPipelineStage counts one alert passing a named pipeline stage
// (normalized, deduplicated, correlated, dispatched).
func RecordPipelineStage(stage string) {
	alertPipelineStage.WithLabelValues(stage).Inc()
}

// RecordAlertSeverity counts one persisted alert at the given severity.
func RecordAlertSeverity(severity string) {
	alertsBySeverity.WithLabelValues(severity).Inc()
}

// RecordNotificationSent counts one delivery attempt for channel,
// success or failure.
func RecordNotificationSent(channel string, success bool) {
	result := "success"
	if !success {
		result = "failure"
	}
	notificationsSent.WithLabelValues(channel, result).Inc()
}

// RecordNotificationRetry counts one retry scheduled for channel.
func RecordNotificationRetry(channel string) {
	notificationRetries.WithLabelValues(channel).Inc()
}

// RecordNotificationDLQ counts one notification moved to the DLQ.
func RecordNotificationDLQ() {
	notificationDLQ.Inc()
}

// RecordToolStatusTransition counts one adapter health transition.
func RecordToolStatusTransition(tool, status string) {
	toolStatusTransitions.WithLabelValues(tool, status).Inc()
}

// RecordDeviceOffline counts one device marked offline by the sweep.
func RecordDeviceOffline() {
	devicesOffline.Inc()
}

// SetEventQueueDepth reports the event bus's current queue depth.
func SetEventQueueDepth(depth int) {
	eventQueueDepth.Set(float64(depth))
}

// Handler returns the HTTP handler serving /metrics against the
// default Prometheus registry.
func Handler() http.Handler {
	return promhttp.Handler()
}
