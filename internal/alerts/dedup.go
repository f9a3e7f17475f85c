package alerts

import (
	"sort"
	"sync"
	"time"
)

const (
	defaultDedupWindow  = 300 * time.Second
	defaultDedupMaxSize = 10_000
)

type dedupEntry struct {
	firstSeen time.Time
	lastSeen  time.Time
	count     int
}

// Deduplicator collapses repeated alerts sharing the same fingerprint within
// a sliding time window into a single occurrence with an incrementing count.
type Deduplicator struct {
	mu      sync.Mutex
	window  time.Duration
	maxSize int
	entries map[string]*dedupEntry
}

func NewDeduplicator(window time.Duration, maxSize int) *Deduplicator {
	if window <= 0 {
		window = defaultDedupWindow
	}
	if maxSize <= 0 {
		maxSize = defaultDedupMaxSize
	}
	return &Deduplicator{
		window:  window,
		maxSize: maxSize,
		entries: make(map[string]*dedupEntry),
	}
}

// Check records an occurrence of fingerprint and reports whether it should
// be treated as new (first sighting, or the prior sighting fell outside the
// dedup window) along with the running occurrence count.
func (d *Deduplicator) Check(fingerprint string) (isNew bool, count int) {
	d.mu.Lock()
	defer d.mu.Unlock()

	now := nowFn()
	entry, ok := d.entries[fingerprint]

	if ok {
		if now.Sub(entry.lastSeen) <= d.window {
			entry.lastSeen = now
			entry.count++
			return false, entry.count
		}
		d.entries[fingerprint] = &dedupEntry{firstSeen: now, lastSeen: now, count: 1}
		return true, 1
	}

	if len(d.entries) >= d.maxSize {
		d.evictOldest()
	}
	d.entries[fingerprint] = &dedupEntry{firstSeen: now, lastSeen: now, count: 1}
	return true, 1
}

// Cleanup removes entries whose last occurrence is older than twice the
// dedup window, and returns the number removed.
func (d *Deduplicator) Cleanup() int {
	d.mu.Lock()
	defer d.mu.Unlock()

	cutoff := nowFn().Add(-2 * d.window)
	removed := 0
	for fp, entry := range d.entries {
		if entry.lastSeen.Before(cutoff) {
			delete(d.entries, fp)
			removed++
		}
	}
	return removed
}

// evictOldest drops the oldest 25% of entries (by last_seen), at least one.
// Caller must hold d.mu.
func (d *Deduplicator) evictOldest() {
	type kv struct {
		fingerprint string
		lastSeen    time.Time
	}
	all := make([]kv, 0, len(d.entries))
	for fp, entry := range d.entries {
		all = append(all, kv{fp, entry.lastSeen})
	}
	sort.Slice(all, func(i, j int) bool { return all[i].lastSeen.Before(all[j].lastSeen) })

	evictCount := len(all) / 4
	if evictCount == 0 {
		evictCount = 1
	}
	for i := 0; i < evictCount && i < len(all); i++ {
		delete(d.entries, all[i].fingerprint)
	}
}

// Size returns the number of tracked fingerprints.
func (d *Deduplicator) Size() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.entries)
}
