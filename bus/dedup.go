package bus

import (
	"sync"
)

// Dedup tracks seen event ids so consumers stay idempotent under
// at-least-once delivery. It keeps a bounded window of ids; the per-topic
// sequence number makes old duplicates cheap to discard.
type Dedup struct {
	mu      sync.Mutex
	seen    map[string]struct{}
	order   []string
	maxSize int
}

// NewDedup creates a de-duplication window holding up to maxSize ids
func NewDedup(maxSize int) *Dedup {
	if maxSize < 1 {
		maxSize = 1024
	}
	return &Dedup{
		seen:    make(map[string]struct{}),
		maxSize: maxSize,
	}
}

// Seen records the event id and reports whether it was already delivered.
// The first call for an id returns false, every later call returns true.
func (d *Dedup) Seen(eventID string) bool {
	d.mu.Lock()
	defer d.mu.Unlock()

	if _, ok := d.seen[eventID]; ok {
		return true
	}

	d.seen[eventID] = struct{}{}
	d.order = append(d.order, eventID)

	if len(d.order) > d.maxSize {
		oldest := d.order[0]
		d.order = d.order[1:]
		delete(d.seen, oldest)
	}
	return false
}
