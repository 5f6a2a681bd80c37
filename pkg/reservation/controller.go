package reservation

import (
	"errors"
	"fmt"
	"sync"
	"time"
)

// Controller is the top-level entry point for one reservation
// invocation: validate, acquire all-or-nothing, hold, release. Every
// termination path (timeout, signal, keep-alive error) funnels through
// the same ReleaseAll call.
type Controller struct {
	backend Backend
	counter DeviceCounter
	sink    EventSink
	stop    <-chan struct{}

	mu    sync.RWMutex
	set   *Set
	loop  *HoldLoop
	cause StopCause
}

// NewController wires the external collaborators together. stop is the
// edge-triggered termination channel; sink receives every lifecycle
// event.
func NewController(backend Backend, counter DeviceCounter, stop <-chan struct{}, sink EventSink) *Controller {
	if sink == nil {
		sink = NopSink{}
	}
	return &Controller{
		backend: backend,
		counter: counter,
		sink:    sink,
		stop:    stop,
	}
}

// Run executes the full lifecycle for the requested set and blocks until
// the set has been released. A nil error means every reservation was
// acquired, held until timeout or signal, and released.
func (c *Controller) Run(requests []Request, cfg HoldConfig) error {
	if err := ValidateRequests(c.counter, requests); err != nil {
		return err
	}

	set, err := AcquireAll(c.backend, requests, c.sink)
	if err != nil {
		return err
	}

	loop := NewHoldLoop(set, cfg, c.stop, c.sink)
	c.mu.Lock()
	c.set = set
	c.loop = loop
	c.mu.Unlock()

	cause := loop.Run()
	c.mu.Lock()
	c.cause = cause
	c.mu.Unlock()

	releaseErr := set.ReleaseAll(c.sink)
	loop.MarkStopped()

	if cause == StopError {
		touchErr := loop.TouchErr()
		if touchErr == nil {
			touchErr = fmt.Errorf("hold loop stopped on keep-alive error")
		}
		// A touch failure does not excuse an incomplete teardown; both
		// must surface.
		return errors.Join(touchErr, releaseErr)
	}
	return releaseErr
}

// Set returns the current reservation set, or nil before acquisition
func (c *Controller) Set() *Set {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.set
}

// LoopState reports the hold loop state; LoopRunning is only meaningful
// once Run has started the loop.
func (c *Controller) LoopState() LoopState {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.loop == nil {
		return LoopStopped
	}
	return c.loop.State()
}

// StartedAt returns when holding started, or the zero time before that
func (c *Controller) StartedAt() time.Time {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.loop == nil {
		return time.Time{}
	}
	return c.loop.StartedAt()
}

// Cause returns why the hold stopped, StopNone while still running
func (c *Controller) Cause() StopCause {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.cause
}
