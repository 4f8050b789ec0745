package observability

import (
	"errors"
	"time"

	"github.com/signalsfoundry/rocketflight/internal/store"
)

// Store operation outcomes.
const (
	OutcomeOK       = "ok"
	OutcomeNotFound = "not_found"
	OutcomeError    = "error"
)

// ObserveSimulation records one simulation of resource. A non-nil err
// counts as a failure.
func (c *Collector) ObserveSimulation(resource string, d time.Duration, err error) {
	if c == nil {
		return
	}
	if c.SimulationDurations != nil {
		c.SimulationDurations.WithLabelValues(resource).Observe(d.Seconds())
	}
	if err != nil && c.SimulationFailures != nil {
		c.SimulationFailures.WithLabelValues(resource).Inc()
	}
}

// ObserveStoreOp satisfies store.Observer.
func (c *Collector) ObserveStoreOp(collection, op string, err error) {
	if c == nil || c.StoreOperations == nil {
		return
	}
	c.StoreOperations.WithLabelValues(collection, op, Outcome(err)).Inc()
}

// Outcome classifies a store error for the outcome label.
func Outcome(err error) string {
	switch {
	case err == nil:
		return OutcomeOK
	case errors.Is(err, store.ErrNotFound):
		return OutcomeNotFound
	default:
		return OutcomeError
	}
}
