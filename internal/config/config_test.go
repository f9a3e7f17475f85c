package config

import (
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	tmpDefault := t.TempDir()
	prevDefault := defaultDataDir
	defaultDataDir = tmpDefault
	t.Cleanup(func() { defaultDataDir = prevDefault })

	os.Unsetenv("NETSEC_DATA_DIR")
	os.Unsetenv("PORT")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, 8765, cfg.Port)
	assert.Equal(t, tmpDefault, cfg.DataPath)
	assert.Equal(t, 5*time.Minute, cfg.OfflineThreshold)
	assert.False(t, cfg.AuthEnabled)
}

func TestLoadEnvOverrides(t *testing.T) {
	t.Setenv("PORT", "9000")
	tempDir := t.TempDir()
	t.Setenv("NETSEC_DATA_DIR", tempDir)
	t.Setenv("NETSEC_AUTH_ENABLED", "true")
	t.Setenv("NETSEC_AUTH_USER", "admin")
	t.Setenv("ALERT_DEDUP_WINDOW", "2m")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, 9000, cfg.Port)
	assert.Equal(t, tempDir, cfg.DataPath)
	assert.True(t, cfg.AuthEnabled)
	assert.Equal(t, "admin", cfg.AuthUser)
	assert.Equal(t, 2*time.Minute, cfg.DedupWindow)
}

func TestLoadNotificationDispatch(t *testing.T) {
	t.Setenv("NETSEC_DATA_DIR", t.TempDir())
	t.Setenv("NOTIFY_WEBHOOK_URL", "https://hooks.example.com/alert")
	t.Setenv("SMTP_HOST", "smtp.example.com")
	t.Setenv("SMTP_PORT", "2525")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "https://hooks.example.com/alert", cfg.Dispatch.WebhookURL)
	assert.Equal(t, "smtp.example.com", cfg.Dispatch.Email.SMTPHost)
	assert.Equal(t, 2525, cfg.Dispatch.Email.SMTPPort)
}

func TestLoadInvalidDurationFallsBackToDefault(t *testing.T) {
	t.Setenv("NETSEC_DATA_DIR", t.TempDir())
	t.Setenv("TOOL_HEALTH_CHECK_PERIOD", "not-a-duration")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, 30*time.Second, cfg.ToolHealthCheckPeriod)
}
