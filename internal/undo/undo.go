// Package undo wraps destructive repository operations in time-boxed,
// reversible envelopes. A staged envelope auto-expires after its window,
// making the deletion permanent; committing within the window runs the
// restore action instead.
package undo

import (
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
)

// DefaultWindow matches the product's 5-second undo toast.
const DefaultWindow = 5 * time.Second

type envelope struct {
	restore func() error
	timer   *time.Timer
}

// Coordinator tracks pending envelopes. Envelopes from rapid sequential
// deletes are independent and do not interfere.
type Coordinator struct {
	window time.Duration

	mu        sync.Mutex
	envelopes map[string]*envelope
}

func New(window time.Duration) *Coordinator {
	if window <= 0 {
		window = DefaultWindow
	}
	return &Coordinator{
		window:    window,
		envelopes: make(map[string]*envelope),
	}
}

// Stage registers a restore action for an already-performed deletion and
// returns the envelope id. The caller must pass a restore closure over
// deep-copied snapshots; the envelope silently expires after the window.
func (c *Coordinator) Stage(restore func() error) string {
	id := uuid.NewString()

	c.mu.Lock()
	defer c.mu.Unlock()
	c.envelopes[id] = &envelope{
		restore: restore,
		timer: time.AfterFunc(c.window, func() {
			c.Expire(id)
		}),
	}
	return id
}

// Commit runs the envelope's restore action and cancels its expiry. Once the
// envelope has expired or was dismissed, Commit is a no-op and reports false.
func (c *Coordinator) Commit(id string) (bool, error) {
	c.mu.Lock()
	env, ok := c.envelopes[id]
	if ok {
		delete(c.envelopes, id)
		env.timer.Stop()
	}
	c.mu.Unlock()

	if !ok {
		return false, nil
	}
	if err := env.restore(); err != nil {
		return true, err
	}
	slog.Info("restored deleted data", "envelope", id)
	return true, nil
}

// Expire drops the envelope's snapshot; the deletion becomes permanent.
// Also used for explicit dismissal.
func (c *Coordinator) Expire(id string) {
	c.mu.Lock()
	env, ok := c.envelopes[id]
	if ok {
		delete(c.envelopes, id)
		env.timer.Stop()
	}
	c.mu.Unlock()

	if ok {
		slog.Debug("undo window closed", "envelope", id)
	}
}

// Pending returns the number of outstanding envelopes.
func (c *Coordinator) Pending() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.envelopes)
}
