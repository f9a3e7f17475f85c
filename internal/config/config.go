// Package config loads process configuration from environment variables
// (optionally layered on top of a .env file), the way the rest of the
// stack expects: sane defaults, explicit overrides, no config file
// required to get started.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"

	"github.com/sentinel-labs/netsec/internal/notifications"
	"github.com/sentinel-labs/netsec/internal/utils"
)

// defaultDataDir is the fallback data directory when NETSEC_DATA_DIR is
// unset. A package-level var so tests can override it.
var defaultDataDir = "/etc/netsec"

// Config holds every tunable the binary needs at startup.
type Config struct {
	// Server
	Port         int
	AuthEnabled  bool
	AuthUser     string
	AuthPassHash string

	// Storage
	DataPath string

	// Logging
	LogFormat    string
	LogLevel     string
	LogFilePath  string
	LogMaxSizeMB int
	LogMaxAgeDay int

	// Scheduler / monitoring
	DiscoveryInterval       time.Duration
	AvailabilitySweepPeriod time.Duration
	ToolHealthCheckPeriod   time.Duration
	OfflineThreshold        time.Duration

	// Alert pipeline
	DedupWindow       time.Duration
	CorrelationWindow time.Duration

	// Notification dispatch
	Dispatch notifications.DispatchConfig

	// Tooling
	NmapPath    string
	OpenVASPath string
	TsharkPath  string
	ClamAVPath  string
}

// Load builds a Config from the environment. It first loads a .env file
// from the current directory (if present; godotenv.Load returning
// os.ErrNotExist is not an error here) so local development doesn't need
// exported env vars.
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		return nil, fmt.Errorf("load .env: %w", err)
	}

	dataPath := strings.TrimSpace(os.Getenv("NETSEC_DATA_DIR"))
	if dataPath == "" {
		dataPath = defaultDataDir
	}
	if err := utils.EnsureDir(dataPath); err != nil {
		return nil, fmt.Errorf("create data dir %q: %w", dataPath, err)
	}

	cfg := &Config{
		Port:         getEnvInt("PORT", 8765),
		AuthEnabled:  getEnvBool("NETSEC_AUTH_ENABLED", false),
		AuthUser:     os.Getenv("NETSEC_AUTH_USER"),
		AuthPassHash: os.Getenv("NETSEC_AUTH_PASS_HASH"),

		DataPath: dataPath,

		LogFormat:    getEnvString("LOG_FORMAT", "auto"),
		LogLevel:     getEnvString("LOG_LEVEL", "info"),
		LogFilePath:  os.Getenv("LOG_FILE_PATH"),
		LogMaxSizeMB: getEnvInt("LOG_MAX_SIZE_MB", 100),
		LogMaxAgeDay: getEnvInt("LOG_MAX_AGE_DAYS", 14),

		DiscoveryInterval:       getEnvDuration("DISCOVERY_INTERVAL", 15*time.Minute),
		AvailabilitySweepPeriod: getEnvDuration("AVAILABILITY_SWEEP_PERIOD", time.Minute),
		ToolHealthCheckPeriod:   getEnvDuration("TOOL_HEALTH_CHECK_PERIOD", 30*time.Second),
		OfflineThreshold:        getEnvDuration("OFFLINE_THRESHOLD", 5*time.Minute),

		DedupWindow:       getEnvDuration("ALERT_DEDUP_WINDOW", 10*time.Minute),
		CorrelationWindow: getEnvDuration("ALERT_CORRELATION_WINDOW", 5*time.Minute),

		Dispatch: notifications.DispatchConfig{
			WebhookURL: os.Getenv("NOTIFY_WEBHOOK_URL"),
			Email: notifications.EmailConfig{
				SMTPHost: os.Getenv("SMTP_HOST"),
				SMTPPort: getEnvInt("SMTP_PORT", 587),
				Username: os.Getenv("SMTP_USERNAME"),
				Password: os.Getenv("SMTP_PASSWORD"),
				From:     os.Getenv("SMTP_FROM"),
				To:       os.Getenv("SMTP_TO"),
			},
		},

		NmapPath:    getEnvString("NMAP_PATH", "nmap"),
		OpenVASPath: getEnvString("OPENVAS_PATH", "openvas"),
		TsharkPath:  getEnvString("TSHARK_PATH", "tshark"),
		ClamAVPath:  getEnvString("CLAMAV_PATH", "clamscan"),
	}

	return cfg, nil
}

func getEnvString(key, fallback string) string {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		return v
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return fallback
	}
	return n
}

func getEnvBool(key string, fallback bool) bool {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return fallback
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return fallback
	}
	return b
}

func getEnvDuration(key string, fallback time.Duration) time.Duration {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return fallback
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return fallback
	}
	return d
}
