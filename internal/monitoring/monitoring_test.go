package monitoring

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sentinel-labs/netsec/internal/eventbus"
	"github.com/sentinel-labs/netsec/internal/models"
)

type fakeDeviceStore struct {
	stale   []models.Device
	offline []string
}

func (f *fakeDeviceStore) ListStaleOnlineDevices(ctx context.Context, threshold time.Time) ([]models.Device, error) {
	return f.stale, nil
}

func (f *fakeDeviceStore) UpdateDeviceStatus(ctx context.Context, id string, status models.DeviceStatus) error {
	if status == models.DeviceOffline {
		f.offline = append(f.offline, id)
	}
	return nil
}

type fakeRegistry struct {
	statuses map[string]models.ToolStatus
}

func (f *fakeRegistry) HealthCheckAll(ctx context.Context) map[string]models.ToolStatus {
	return f.statuses
}

func newBus(t *testing.T) *eventbus.Bus {
	t.Helper()
	bus := eventbus.New(10)
	bus.Start()
	t.Cleanup(bus.Stop)
	return bus
}

func TestCheckDeviceAvailabilityMarksStaleDevicesOffline(t *testing.T) {
	store := &fakeDeviceStore{stale: []models.Device{
		{ID: "dev-1", IPAddress: "10.0.0.1"},
		{ID: "dev-2", IPAddress: "10.0.0.2"},
	}}
	bus := newBus(t)
	events := make(chan models.Event, 10)
	bus.Subscribe(models.EventDeviceOffline, func(e models.Event) { events <- e })

	svc := NewService(store, &fakeRegistry{}, bus)
	count, err := svc.CheckDeviceAvailability(context.Background(), 15*time.Minute)
	require.NoError(t, err)
	assert.Equal(t, 2, count)
	assert.ElementsMatch(t, []string{"dev-1", "dev-2"}, store.offline)

	for i := 0; i < 2; i++ {
		select {
		case <-events:
		case <-time.After(time.Second):
			t.Fatal("expected device offline event")
		}
	}
}

func TestCheckToolHealthPublishesOnTransition(t *testing.T) {
	registry := &fakeRegistry{statuses: map[string]models.ToolStatus{"nmap": models.StatusAvailable}}
	bus := newBus(t)
	onlineEvents := make(chan models.Event, 10)
	offlineEvents := make(chan models.Event, 10)
	bus.Subscribe(models.EventToolOnline, func(e models.Event) { onlineEvents <- e })
	bus.Subscribe(models.EventToolOffline, func(e models.Event) { offlineEvents <- e })

	svc := NewService(&fakeDeviceStore{}, registry, bus)

	results := svc.CheckToolHealth(context.Background())
	assert.Equal(t, "available", results["nmap"])

	select {
	case <-onlineEvents:
		t.Fatal("first observation should not publish a transition")
	case <-time.After(100 * time.Millisecond):
	}

	registry.statuses = map[string]models.ToolStatus{"nmap": models.StatusUnavailable}
	svc.CheckToolHealth(context.Background())

	select {
	case e := <-offlineEvents:
		assert.Equal(t, "nmap", e.Data["tool"])
	case <-time.After(time.Second):
		t.Fatal("expected tool offline event")
	}
}
