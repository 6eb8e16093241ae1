package alerts

import (
	"sort"
	"sync"
	"time"

	"github.com/mealdash/ordersync/internal/config"
)

// CueFunc fires the audible/visual cue. It receives the ids currently
// awaiting acknowledgment, oldest first.
type CueFunc func(pending []string)

// entry records when an event was enqueued.
type entry struct {
	enqueuedAt time.Time
}

// Coordinator keeps re-notifying the operator of unacknowledged events.
// While the pending set is non-empty a repeating cue fires on a fixed
// cadence; when the set empties the cue stops. The cue never fires
// spuriously once the set is empty.
type Coordinator struct {
	interval time.Duration
	cue      CueFunc

	mu      sync.Mutex
	pending map[string]entry
	stop    chan struct{}
	closed  bool
}

// NewCoordinator creates an alert coordinator firing cue on the configured
// cadence.
func NewCoordinator(cfg *config.AlertsConfig, cue CueFunc) *Coordinator {
	interval := cfg.CueInterval
	if interval <= 0 {
		interval = 3 * time.Second
	}
	return &Coordinator{
		interval: interval,
		cue:      cue,
		pending:  make(map[string]entry),
	}
}

// Enqueue adds an event id to the pending set. The first pending id
// starts the repeating cue. Re-enqueueing a pending id is a no-op.
func (c *Coordinator) Enqueue(eventID string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return
	}
	if _, exists := c.pending[eventID]; exists {
		return
	}

	c.pending[eventID] = entry{enqueuedAt: time.Now()}

	if len(c.pending) == 1 {
		c.startLocked()
	}
}

// Acknowledge removes an event id if present. Removing the last pending
// id stops the cue.
func (c *Coordinator) Acknowledge(eventID string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if _, exists := c.pending[eventID]; !exists {
		return
	}

	delete(c.pending, eventID)

	if len(c.pending) == 0 {
		c.stopLocked()
	}
}

// Pending returns the ids awaiting acknowledgment, oldest first.
func (c *Coordinator) Pending() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.pendingLocked()
}

// Close stops the cue permanently and drops the pending set.
func (c *Coordinator) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return
	}
	c.closed = true
	c.pending = make(map[string]entry)
	c.stopLocked()
}

// startLocked begins the repeating cue. Caller holds c.mu.
func (c *Coordinator) startLocked() {
	if c.stop != nil {
		return
	}
	stop := make(chan struct{})
	c.stop = stop

	go func() {
		ticker := time.NewTicker(c.interval)
		defer ticker.Stop()

		for {
			select {
			case <-stop:
				return
			case <-ticker.C:
				c.fire()
			}
		}
	}()
}

// stopLocked halts the repeating cue. Caller holds c.mu.
func (c *Coordinator) stopLocked() {
	if c.stop != nil {
		close(c.stop)
		c.stop = nil
	}
}

// fire invokes the cue with the current pending snapshot. A tick that
// races an acknowledgment of the last id is suppressed.
func (c *Coordinator) fire() {
	c.mu.Lock()
	if c.closed || len(c.pending) == 0 {
		c.mu.Unlock()
		return
	}
	snapshot := c.pendingLocked()
	cue := c.cue
	c.mu.Unlock()

	if cue != nil {
		cue(snapshot)
	}
}

// pendingLocked returns pending ids oldest first. Caller holds c.mu.
func (c *Coordinator) pendingLocked() []string {
	ids := make([]string, 0, len(c.pending))
	for id := range c.pending {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool {
		ei, ej := c.pending[ids[i]], c.pending[ids[j]]
		if ei.enqueuedAt.Equal(ej.enqueuedAt) {
			return ids[i] < ids[j]
		}
		return ei.enqueuedAt.Before(ej.enqueuedAt)
	})
	return ids
}
