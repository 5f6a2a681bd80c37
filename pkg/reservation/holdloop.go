package reservation

import (
	"sync"
	"time"
)

// LoopState represents the state of a hold loop
type LoopState int

const (
	LoopRunning LoopState = iota
	LoopStoppingTimeout
	LoopStoppingSignal
	LoopStoppingError
	LoopStopped
)

func (s LoopState) String() string {
	switch s {
	case LoopRunning:
		return "running"
	case LoopStoppingTimeout:
		return "stopping_timeout"
	case LoopStoppingSignal:
		return "stopping_signal"
	case LoopStoppingError:
		return "stopping_error"
	case LoopStopped:
		return "stopped"
	default:
		return "unknown"
	}
}

// HoldLoop keeps an Active set alive until a stop condition fires. Each
// iteration checks the stop channel and the elapsed time, sleeps for the
// keep-alive interval, then touches every reservation. The stop channel
// is consumed only at these defined poll points, so a termination request
// never races with an in-flight touch.
type HoldLoop struct {
	set  *Set
	cfg  HoldConfig
	stop <-chan struct{}
	sink EventSink

	mu       sync.RWMutex
	state    LoopState
	started  time.Time
	touchErr error
}

// NewHoldLoop creates a hold loop for an acquired set. stop is the
// edge-triggered termination channel (closed once when a signal
// arrives). A zero or negative KeepAliveInterval falls back to the
// default.
func NewHoldLoop(set *Set, cfg HoldConfig, stop <-chan struct{}, sink EventSink) *HoldLoop {
	if cfg.KeepAliveInterval <= 0 {
		cfg.KeepAliveInterval = DefaultKeepAliveInterval
	}
	return &HoldLoop{
		set:   set,
		cfg:   cfg,
		stop:  stop,
		sink:  sink,
		state: LoopRunning,
	}
}

// Run drives the loop until a stop condition fires and returns its
// cause. The caller releases the set afterwards; the loop itself never
// releases anything so that every exit path funnels through the same
// ReleaseAll call.
func (l *HoldLoop) Run() StopCause {
	l.mu.Lock()
	l.started = time.Now()
	l.mu.Unlock()

	l.sink.HoldStarted(l.cfg)

	for {
		// Cooperative stop check at the top of each iteration.
		select {
		case <-l.stop:
			return l.stopping(LoopStoppingSignal, StopSignal)
		default:
		}

		if l.cfg.Duration > 0 && time.Since(l.StartedAt()) >= l.cfg.Duration {
			return l.stopping(LoopStoppingTimeout, StopTimeout)
		}

		// Sleep bounds stop latency to one interval; a signal arriving
		// during the sleep wakes the loop immediately.
		select {
		case <-l.stop:
			return l.stopping(LoopStoppingSignal, StopSignal)
		case <-time.After(l.sleepFor()):
		}

		if err := l.set.Touch(); err != nil {
			l.mu.Lock()
			l.touchErr = err
			l.mu.Unlock()
			l.sink.Error(err)
			return l.stopping(LoopStoppingError, StopError)
		}
	}
}

// sleepFor clamps the keep-alive sleep so a bounded hold never
// oversleeps its deadline by more than the interval.
func (l *HoldLoop) sleepFor() time.Duration {
	interval := l.cfg.KeepAliveInterval
	if l.cfg.Duration <= 0 {
		return interval
	}
	remaining := l.cfg.Duration - time.Since(l.StartedAt())
	if remaining < interval {
		if remaining <= 0 {
			// Let the top-of-loop check fire on the next iteration.
			return time.Millisecond
		}
		return remaining
	}
	return interval
}

func (l *HoldLoop) stopping(state LoopState, cause StopCause) StopCause {
	l.mu.Lock()
	l.state = state
	l.mu.Unlock()
	l.sink.Stopping(cause)
	return cause
}

// MarkStopped transitions the loop to Stopped once the set has been
// released.
func (l *HoldLoop) MarkStopped() {
	l.mu.Lock()
	l.state = LoopStopped
	l.mu.Unlock()
}

// State returns the current loop state
func (l *HoldLoop) State() LoopState {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.state
}

// StartedAt returns when the loop entered Running
func (l *HoldLoop) StartedAt() time.Time {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.started
}

// TouchErr returns the keep-alive error that stopped the loop, if any
func (l *HoldLoop) TouchErr() error {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.touchErr
}
