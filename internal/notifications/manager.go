package notifications

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/sentinel-labs/netsec/internal/metrics"
	"github.com/sentinel-labs/netsec/internal/models"
)

// DispatchConfig controls which notification channels an alert is fanned
// out to.
type DispatchConfig struct {
	WebhookURL string
	Email      EmailConfig
}

func (c DispatchConfig) emailEnabled() bool {
	return c.Email.SMTPHost != "" && c.Email.To != ""
}

// webhookConfig is the persisted payload for a queued webhook notification.
type webhookConfig struct {
	URL     string         `json:"url"`
	Payload WebhookPayload `json:"payload"`
}

type emailConfigPayload struct {
	Config  EmailConfig  `json:"config"`
	Payload EmailPayload `json:"payload"`
}

// Manager implements alerts.Dispatcher: it turns a persisted alert into one
// queued notification per configured channel, and drains the queue through
// WebhookSender/EmailSender.
type Manager struct {
	config DispatchConfig
	queue  *NotificationQueue
}

// NewManager builds a dispatch manager backed by queue, wiring its
// processor to deliver webhook and email notifications.
func NewManager(config DispatchConfig, queue *NotificationQueue) *Manager {
	m := &Manager{config: config, queue: queue}
	queue.SetProcessor(m.process)
	return m
}

// Dispatch enqueues one notification per configured channel for alert.
// Satisfies alerts.Dispatcher.
func (m *Manager) Dispatch(ctx context.Context, alert models.Alert) {
	timestamp := alert.LastSeen.UTC().Format(time.RFC3339)

	if m.config.WebhookURL != "" {
		cfg := webhookConfig{
			URL: m.config.WebhookURL,
			Payload: WebhookPayload{
				Title:         alert.Title,
				Description:   alert.Description,
				Severity:      string(alert.Severity),
				SourceTool:    alert.SourceTool,
				Category:      string(alert.Category),
				DeviceIP:      alert.DeviceIP,
				Timestamp:     timestamp,
				CorrelationID: alert.CorrelationID,
			},
		}
		m.enqueue("webhook", "http", cfg, alert)
	}

	if m.config.emailEnabled() {
		cfg := emailConfigPayload{
			Config: m.config.Email,
			Payload: EmailPayload{
				Title:         alert.Title,
				Severity:      string(alert.Severity),
				SourceTool:    alert.SourceTool,
				Category:      string(alert.Category),
				DeviceIP:      alert.DeviceIP,
				Timestamp:     timestamp,
				CorrelationID: alert.CorrelationID,
				Description:   alert.Description,
			},
		}
		m.enqueue("email", "smtp", cfg, alert)
	}
}

func (m *Manager) enqueue(notifType, method string, cfg interface{}, alert models.Alert) {
	data, err := json.Marshal(cfg)
	if err != nil {
		log.Error().Err(err).Str("type", notifType).Msg("failed to marshal notification config")
		return
	}

	n := &QueuedNotification{
		Type:   notifType,
		Method: method,
		Status: QueueStatusPending,
		Config: data,
		Alerts: []*models.Alert{&alert},
	}
	if err := m.queue.Enqueue(n); err != nil {
		log.Error().Err(err).Str("type", notifType).Str("alert_id", alert.ID).Msg("failed to enqueue notification")
	}
}

func (m *Manager) process(n *QueuedNotification) error {
	err := m.deliver(n)
	metrics.RecordNotificationSent(n.Type, err == nil)
	return err
}

func (m *Manager) deliver(n *QueuedNotification) error {
	switch n.Type {
	case "webhook":
		var cfg webhookConfig
		if err := json.Unmarshal(n.Config, &cfg); err != nil {
			return fmt.Errorf("decode webhook config: %w", err)
		}
		sender := NewWebhookSender(cfg.URL)
		return sender.Send(context.Background(), cfg.Payload)

	case "email":
		var cfg emailConfigPayload
		if err := json.Unmarshal(n.Config, &cfg); err != nil {
			return fmt.Errorf("decode email config: %w", err)
		}
		sender := NewEmailSender(cfg.Config)
		return sender.Send(cfg.Payload)

	default:
		return fmt.Errorf("unknown notification type %q", n.Type)
	}
}
