package timectrl

import (
	"sync"
	"time"
)

// Clock is an interface for reading the process time. Components that stamp
// defaults (the reference date of an environment, for example) depend on a
// Clock rather than calling time.Now directly, enabling testability.
type Clock interface {
	// Now returns the current time.
	Now() time.Time
}

// System is the wall clock.
type System struct{}

// Now returns time.Now in UTC.
func (System) Now() time.Time { return time.Now().UTC() }

// Controller is a manually driven clock. It implements Clock.
type Controller struct {
	mu          sync.RWMutex
	currentTime time.Time
}

// NewController constructs a controller fixed at start.
func NewController(start time.Time) *Controller {
	return &Controller{currentTime: start}
}

// Now returns the controller time. Implements Clock.
func (tc *Controller) Now() time.Time {
	tc.mu.RLock()
	defer tc.mu.RUnlock()
	return tc.currentTime
}

// SetTime moves the controller to t.
func (tc *Controller) SetTime(t time.Time) {
	tc.mu.Lock()
	defer tc.mu.Unlock()
	tc.currentTime = t
}
