// Package shutdown turns asynchronous termination signals into an
// edge-triggered channel the hold loop polls at defined points. The
// handler body does nothing but close the channel, so no shared state is
// touched concurrently with the main loop.
package shutdown

import (
	"os"
	"os/signal"
	"sync"
	"syscall"
)

// Manager converts SIGINT/SIGTERM into a single channel close
type Manager struct {
	done chan struct{}
	sigs chan os.Signal
	once sync.Once
}

// New creates a manager; call Start to begin listening
func New() *Manager {
	return &Manager{
		done: make(chan struct{}),
		sigs: make(chan os.Signal, 1),
	}
}

// Start installs the signal handlers
func (m *Manager) Start() {
	signal.Notify(m.sigs, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-m.sigs
		m.Trigger()
	}()
}

// Trigger requests termination as if a signal had arrived. Safe to call
// multiple times; only the first has any effect.
func (m *Manager) Trigger() {
	m.once.Do(func() {
		close(m.done)
	})
}

// Done returns the channel closed once termination is requested
func (m *Manager) Done() <-chan struct{} {
	return m.done
}

// Stop uninstalls the signal handlers
func (m *Manager) Stop() {
	signal.Stop(m.sigs)
}
