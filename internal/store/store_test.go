package store

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sentinel-labs/netsec/internal/models"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(t.TempDir())
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func TestSaveAndGetAlert(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	alert := models.Alert{
		ID:          "alert-1",
		Title:       "SSH brute force",
		Severity:    models.SeverityHigh,
		Status:      models.AlertOpen,
		SourceTool:  "fail2ban",
		Category:    models.CategoryIntrusion,
		DeviceIP:    "10.0.0.5",
		Fingerprint: "abc123",
		Count:       1,
		FirstSeen:   time.Now(),
		LastSeen:    time.Now(),
		RawData:     map[string]interface{}{"jail": "sshd"},
	}
	require.NoError(t, s.SaveAlert(ctx, alert))

	got, ok, err := s.GetAlert(ctx, "alert-1")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "SSH brute force", got.Title)
	assert.Equal(t, "sshd", got.RawData["jail"])
}

func TestFindOpenAlertByFingerprint(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	alert := models.Alert{
		ID: "alert-2", Title: "x", Severity: models.SeverityLow, Status: models.AlertOpen,
		SourceTool: "nmap", Category: models.CategoryAnomaly, Fingerprint: "fp-1",
		FirstSeen: time.Now(), LastSeen: time.Now(),
	}
	require.NoError(t, s.SaveAlert(ctx, alert))

	found, ok, err := s.FindOpenAlertByFingerprint(ctx, "fp-1")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "alert-2", found.ID)

	_, ok, err = s.FindOpenAlertByFingerprint(ctx, "does-not-exist")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestFindOpenAlertByFingerprintIgnoresResolved(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	alert := models.Alert{
		ID: "alert-3", Title: "x", Severity: models.SeverityLow, Status: models.AlertResolved,
		SourceTool: "nmap", Category: models.CategoryAnomaly, Fingerprint: "fp-2",
		FirstSeen: time.Now(), LastSeen: time.Now(),
	}
	require.NoError(t, s.SaveAlert(ctx, alert))

	_, ok, err := s.FindOpenAlertByFingerprint(ctx, "fp-2")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestAlertStats(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.SaveAlert(ctx, models.Alert{
		ID: "a1", Title: "x", Severity: models.SeverityCritical, Status: models.AlertOpen,
		SourceTool: "clamav", Category: models.CategoryMalware, Fingerprint: "f1",
		FirstSeen: time.Now(), LastSeen: time.Now(),
	}))
	require.NoError(t, s.SaveAlert(ctx, models.Alert{
		ID: "a2", Title: "y", Severity: models.SeverityCritical, Status: models.AlertOpen,
		SourceTool: "clamav", Category: models.CategoryMalware, Fingerprint: "f2",
		FirstSeen: time.Now(), LastSeen: time.Now(),
	}))

	stats, err := s.AlertStats(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, stats.Total)
	assert.Equal(t, 2, stats.OpenBySeverity["critical"])
	assert.Equal(t, 2, stats.OpenByTool["clamav"])
}

func TestSaveDeviceUpsertsPorts(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	device := models.Device{
		ID: "dev-1", IPAddress: "192.168.1.10", Status: models.DeviceOnline,
		FirstSeen: time.Now(), LastSeen: time.Now(),
		Ports: []models.Port{{PortNumber: 22, Protocol: models.ProtocolTCP, State: models.PortOpen, ServiceName: "ssh"}},
	}
	require.NoError(t, s.SaveDevice(ctx, device))

	got, ok, err := s.GetDevice(ctx, "dev-1")
	require.NoError(t, err)
	require.True(t, ok)
	require.Len(t, got.Ports, 1)
	assert.Equal(t, "ssh", got.Ports[0].ServiceName)

	device.Ports[0].State = models.PortClosed
	require.NoError(t, s.SaveDevice(ctx, device))

	got, _, err = s.GetDevice(ctx, "dev-1")
	require.NoError(t, err)
	require.Len(t, got.Ports, 1, "expected port to be updated in place, not duplicated")
	assert.Equal(t, models.PortClosed, got.Ports[0].State)
}

func TestFindDeviceByIPOrMAC(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.SaveDevice(ctx, models.Device{
		ID: "dev-2", IPAddress: "10.0.0.9", MACAddress: "aa:bb:cc:dd:ee:ff",
		Status: models.DeviceOnline, FirstSeen: time.Now(), LastSeen: time.Now(),
	}))

	found, ok, err := s.FindDeviceByIPOrMAC(ctx, "10.0.0.9", "")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "dev-2", found.ID)

	found, ok, err = s.FindDeviceByIPOrMAC(ctx, "0.0.0.0", "aa:bb:cc:dd:ee:ff")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "dev-2", found.ID)
}

func TestListStaleOnlineDevices(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.SaveDevice(ctx, models.Device{
		ID: "stale-1", IPAddress: "10.0.0.20", Status: models.DeviceOnline,
		FirstSeen: time.Now().Add(-time.Hour), LastSeen: time.Now().Add(-time.Hour),
	}))
	require.NoError(t, s.SaveDevice(ctx, models.Device{
		ID: "fresh-1", IPAddress: "10.0.0.21", Status: models.DeviceOnline,
		FirstSeen: time.Now(), LastSeen: time.Now(),
	}))

	stale, err := s.ListStaleOnlineDevices(ctx, time.Now().Add(-15*time.Minute))
	require.NoError(t, err)
	require.Len(t, stale, 1)
	assert.Equal(t, "stale-1", stale[0].ID)
}

func TestSaveAndListScans(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	scan := models.Scan{
		ID: "scan-1", ScanType: "network", Tool: "nmap", Target: "10.0.0.0/24",
		Status: models.ScanPending, CreatedAt: time.Now(),
		Parameters: map[string]interface{}{"ports": "1-1000"},
	}
	require.NoError(t, s.SaveScan(ctx, scan))

	scan.Status = models.ScanCompleted
	scan.DevicesFound = 3
	scan.Results = map[string]interface{}{"hosts": []interface{}{}}
	require.NoError(t, s.SaveScan(ctx, scan))

	got, ok, err := s.GetScan(ctx, "scan-1")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, models.ScanCompleted, got.Status)
	assert.Equal(t, 3, got.DevicesFound)
	assert.Equal(t, "1-1000", got.Parameters["ports"])

	scans, err := s.ListScans(ctx, "", 0, 10)
	require.NoError(t, err)
	require.Len(t, scans, 1)
}
