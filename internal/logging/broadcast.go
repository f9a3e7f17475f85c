package logging

import (
	"container/ring"
	"fmt"
	"io"
	"os"
	"sync"
)

// DefaultBufferSize is the number of recent log lines LogBroadcaster
// keeps for subscribers that join after lines were written.
const DefaultBufferSize = 500

// broadcastWarnWriter receives the diagnostic line written when a slow
// subscriber causes a log line to be dropped. Overridable for tests.
var broadcastWarnWriter io.Writer = os.Stderr

// LogBroadcaster is an io.Writer that fans every write out to any
// number of live subscriber channels, in addition to keeping a ring
// buffer of recent lines for late subscribers. A subscriber that isn't
// draining its channel never blocks the logger — its line is dropped
// and a diagnostic is emitted instead.
type LogBroadcaster struct {
	mu          sync.Mutex
	buffer      *ring.Ring
	subscribers map[string]chan string
}

// NewLogBroadcaster creates a broadcaster with a fresh ring buffer.
func NewLogBroadcaster() *LogBroadcaster {
	return &LogBroadcaster{
		buffer:      ring.New(DefaultBufferSize),
		subscribers: make(map[string]chan string),
	}
}

// Write implements io.Writer. It never returns an error and never
// blocks: a full subscriber channel causes that line to be dropped for
// that subscriber only.
func (b *LogBroadcaster) Write(p []byte) (int, error) {
	line := string(p)

	b.mu.Lock()
	b.buffer.Value = line
	b.buffer = b.buffer.Next()
	subscribers := make(map[string]chan string, len(b.subscribers))
	for id, ch := range b.subscribers {
		subscribers[id] = ch
	}
	b.mu.Unlock()

	for id, ch := range subscribers {
		select {
		case ch <- line:
		default:
			fmt.Fprintf(broadcastWarnWriter, "reason=subscriber_blocked subscriber_id=%s action=drop_message\n", id)
		}
	}
	return len(p), nil
}

// Subscribe registers a channel under id and returns the buffered
// recent lines (oldest first) so a new subscriber can catch up.
func (b *LogBroadcaster) Subscribe(id string, ch chan string) []string {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.subscribers[id] = ch

	var backlog []string
	b.buffer.Do(func(v interface{}) {
		if v == nil {
			return
		}
		if line, ok := v.(string); ok {
			backlog = append(backlog, line)
		}
	})
	return backlog
}

// Unsubscribe removes a subscriber by id.
func (b *LogBroadcaster) Unsubscribe(id string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	delete(b.subscribers, id)
}
