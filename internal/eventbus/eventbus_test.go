package eventbus

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sentinel-labs/netsec/internal/models"
)

func TestPublishDispatchesToTypedSubscriber(t *testing.T) {
	bus := New(10)
	bus.Start()
	defer bus.Stop()

	received := make(chan models.Event, 1)
	bus.Subscribe(models.EventScanStarted, func(e models.Event) { received <- e })

	err := bus.Publish(context.Background(), models.Event{Type: models.EventScanStarted, Source: "test"})
	require.NoError(t, err)

	select {
	case e := <-received:
		assert.Equal(t, models.EventScanStarted, e.Type)
		assert.NotEmpty(t, e.ID)
		assert.False(t, e.Timestamp.IsZero())
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for dispatch")
	}
}

func TestWildcardSubscriberReceivesEverything(t *testing.T) {
	bus := New(10)
	bus.Start()
	defer bus.Stop()

	var mu sync.Mutex
	var seen []models.EventType
	bus.SubscribeAll(func(e models.Event) {
		mu.Lock()
		defer mu.Unlock()
		seen = append(seen, e.Type)
	})

	require.NoError(t, bus.Publish(context.Background(), models.Event{Type: models.EventScanStarted}))
	require.NoError(t, bus.Publish(context.Background(), models.Event{Type: models.EventAlertCreated}))

	assert.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(seen) == 2
	}, time.Second, 10*time.Millisecond)
}

func TestOrderingPreservedPerSubscriber(t *testing.T) {
	bus := New(100)
	bus.Start()
	defer bus.Stop()

	var mu sync.Mutex
	var order []int
	bus.Subscribe(models.EventScanProgress, func(e models.Event) {
		mu.Lock()
		defer mu.Unlock()
		order = append(order, e.Data["seq"].(int))
	})

	for i := 0; i < 20; i++ {
		require.NoError(t, bus.Publish(context.Background(), models.Event{
			Type: models.EventScanProgress,
			Data: map[string]interface{}{"seq": i},
		}))
	}

	assert.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(order) == 20
	}, time.Second, 10*time.Millisecond)

	mu.Lock()
	defer mu.Unlock()
	for i, v := range order {
		assert.Equal(t, i, v)
	}
}

func TestFailingHandlerDoesNotBlockOthers(t *testing.T) {
	bus := New(10)
	bus.Start()
	defer bus.Stop()

	secondCalled := make(chan struct{}, 1)
	bus.Subscribe(models.EventToolOffline, func(models.Event) { panic("boom") })
	bus.Subscribe(models.EventToolOffline, func(models.Event) { secondCalled <- struct{}{} })

	require.NoError(t, bus.Publish(context.Background(), models.Event{Type: models.EventToolOffline}))

	select {
	case <-secondCalled:
	case <-time.After(time.Second):
		t.Fatal("second subscriber was not invoked after first panicked")
	}
}

func TestPublishNoWaitDropsWhenFull(t *testing.T) {
	bus := New(1)
	bus.queue <- models.Event{Type: models.EventSystemStartup}

	bus.PublishNoWait(models.Event{Type: models.EventSystemShutdown})

	assert.Len(t, bus.queue, 1)
}

func TestPublishBlocksUntilContextDone(t *testing.T) {
	bus := New(1)
	bus.queue <- models.Event{Type: models.EventSystemStartup}

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	err := bus.Publish(ctx, models.Event{Type: models.EventSystemShutdown})
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestStopIsIdempotent(t *testing.T) {
	bus := New(10)
	bus.Start()
	bus.Stop()
	bus.Stop()
}

func TestStartTwiceIsNoOp(t *testing.T) {
	bus := New(10)
	bus.Start()
	defer bus.Stop()
	bus.Start()
}
