package metrics

import (
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRecordScanExposedOnHandler(t *testing.T) {
	RecordScan("nmap", "completed", 1.5)

	req := httptest.NewRequest("GET", "/metrics", nil)
	rec := httptest.NewRecorder()
	Handler().ServeHTTP(rec, req)

	require.Equal(t, 200, rec.Code)
	body := rec.Body.String()
	assert.Contains(t, body, "netsec_scans_total")
	assert.True(t, strings.Contains(body, `tool="nmap"`))
}

func TestRecordNotificationSentLabelsSuccessAndFailure(t *testing.T) {
	RecordNotificationSent("email", true)
	RecordNotificationSent("email", false)

	req := httptest.NewRequest("GET", "/metrics", nil)
	rec := httptest.NewRecorder()
	Handler().ServeHTTP(rec, req)

	body := rec.Body.String()
	assert.Contains(t, body, `result="success"`)
	assert.Contains(t, body, `result="failure"`)
}

func TestRecordPipelineStageAndSeverity(t *testing.T) {
	RecordPipelineStage("deduplicated")
	RecordAlertSeverity("critical")
	RecordToolStatusTransition("nmap", "unavailable")
	RecordDeviceOffline()
	RecordNotificationDLQ()
	RecordNotificationRetry("webhook")
	SetEventQueueDepth(7)

	req := httptest.NewRequest("GET", "/metrics", nil)
	rec := httptest.NewRecorder()
	Handler().ServeHTTP(rec, req)

	body := rec.Body.String()
	assert.Contains(t, body, "netsec_alert_pipeline_stage_total")
	assert.Contains(t, body, "netsec_alerts_by_severity_total")
	assert.Contains(t, body, "netsec_tool_status_transitions_total")
	assert.Contains(t, body, "netsec_devices_marked_offline_total")
	assert.Contains(t, body, "netsec_notifications_dlq_total")
	assert.Contains(t, body, "netsec_notification_retries_total")
	assert.Contains(t, body, "netsec_event_queue_depth 7")
}
