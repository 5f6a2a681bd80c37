package shutdown

import (
	"syscall"
	"testing"
	"time"
)

// TestTrigger verifies the done channel closes exactly once
func TestTrigger(t *testing.T) {
	m := New()

	select {
	case <-m.Done():
		t.Fatal("Done closed before any trigger")
	default:
	}

	m.Trigger()
	m.Trigger() // second trigger must be a no-op

	select {
	case <-m.Done():
	default:
		t.Fatal("Done not closed after trigger")
	}
}

// TestSignalClosesDone verifies a real SIGINT is edge-triggered into the
// done channel.
func TestSignalClosesDone(t *testing.T) {
	m := New()
	m.Start()
	defer m.Stop()

	if err := syscall.Kill(syscall.Getpid(), syscall.SIGINT); err != nil {
		t.Fatalf("Failed to send SIGINT: %v", err)
	}

	select {
	case <-m.Done():
	case <-time.After(2 * time.Second):
		t.Fatal("Done not closed after SIGINT")
	}
}
