package notifications

import (
	"crypto/tls"
	"fmt"
	"net"
	"net/smtp"
	"strings"
	"time"
)

// EmailTimeout bounds the dial and the entire SMTP conversation.
const EmailTimeout = 30 * time.Second

// EmailConfig holds the SMTP settings used to send alert notifications.
type EmailConfig struct {
	SMTPHost string
	SMTPPort int
	From     string
	To       string
	Username string
	Password string
}

// EmailPayload is the content of one alert notification email.
type EmailPayload struct {
	Title         string
	Severity      string
	SourceTool    string
	Category      string
	DeviceIP      string
	Timestamp     string
	CorrelationID string
	Description   string
}

// EmailSender delivers alert notifications over SMTP with STARTTLS.
type EmailSender struct {
	Config EmailConfig
}

func NewEmailSender(cfg EmailConfig) *EmailSender {
	return &EmailSender{Config: cfg}
}

// Send connects to the configured SMTP host, upgrades to TLS, authenticates
// if credentials are set, and delivers payload as a plain-text email.
func (s *EmailSender) Send(payload EmailPayload) error {
	cfg := s.Config
	if cfg.SMTPHost == "" || cfg.To == "" {
		return fmt.Errorf("email not configured: smtp host and recipient are required")
	}

	addr := net.JoinHostPort(cfg.SMTPHost, fmt.Sprintf("%d", cfg.SMTPPort))
	conn, err := net.DialTimeout("tcp", addr, EmailTimeout)
	if err != nil {
		return fmt.Errorf("dial smtp server: %w", err)
	}
	if err := conn.SetDeadline(time.Now().Add(EmailTimeout)); err != nil {
		conn.Close()
		return fmt.Errorf("set smtp connection deadline: %w", err)
	}

	client, err := smtp.NewClient(conn, cfg.SMTPHost)
	if err != nil {
		conn.Close()
		return fmt.Errorf("smtp handshake: %w", err)
	}
	defer client.Close()

	if ok, _ := client.Extension("STARTTLS"); ok {
		tlsConfig := &tls.Config{ServerName: cfg.SMTPHost}
		if err := client.StartTLS(tlsConfig); err != nil {
			return fmt.Errorf("smtp starttls: %w", err)
		}
	}

	if cfg.Username != "" {
		auth := smtp.PlainAuth("", cfg.Username, cfg.Password, cfg.SMTPHost)
		if ok, _ := client.Extension("AUTH"); ok {
			if err := client.Auth(auth); err != nil {
				return fmt.Errorf("smtp auth: %w", err)
			}
		}
	}

	if err := client.Mail(cfg.From); err != nil {
		return fmt.Errorf("smtp MAIL FROM: %w", err)
	}
	if err := client.Rcpt(cfg.To); err != nil {
		return fmt.Errorf("smtp RCPT TO: %w", err)
	}

	w, err := client.Data()
	if err != nil {
		return fmt.Errorf("smtp DATA: %w", err)
	}
	if _, err := w.Write([]byte(buildEmailMessage(cfg, payload))); err != nil {
		w.Close()
		return fmt.Errorf("write email body: %w", err)
	}
	if err := w.Close(); err != nil {
		return fmt.Errorf("close email body: %w", err)
	}

	return client.Quit()
}

func buildEmailMessage(cfg EmailConfig, p EmailPayload) string {
	correlation := p.CorrelationID
	if correlation == "" {
		correlation = "N/A"
	}

	body := fmt.Sprintf(
		"Alert: %s\nSeverity: %s\nSource: %s\nCategory: %s\nDevice: %s\nTime: %s\nCorrelation: %s\n\nDescription:\n%s",
		p.Title, p.Severity, p.SourceTool, p.Category, p.DeviceIP, p.Timestamp, correlation, p.Description,
	)

	subject := fmt.Sprintf("[NetSec %s] %s", strings.ToUpper(p.Severity), p.Title)

	var b strings.Builder
	fmt.Fprintf(&b, "Subject: %s\r\n", subject)
	fmt.Fprintf(&b, "From: %s\r\n", cfg.From)
	fmt.Fprintf(&b, "To: %s\r\n", cfg.To)
	b.WriteString("Content-Type: text/plain; charset=utf-8\r\n\r\n")
	b.WriteString(body)
	return b.String()
}
