package reservation

import (
	"errors"
	"strings"
	"testing"
	"time"
)

// TestController_InvalidDeviceFailsFast verifies validation rejects an
// out-of-range id before any backend call happens.
func TestController_InvalidDeviceFailsFast(t *testing.T) {
	be := newFakeBackend()
	sink := &recordSink{}
	ctrl := NewController(be, staticCounter(2), make(chan struct{}), sink)

	err := ctrl.Run(requestsFor(0, 2), HoldConfig{Duration: 10 * time.Millisecond})

	var invErr *InvalidDeviceError
	if !errors.As(err, &invErr) {
		t.Fatalf("Expected InvalidDeviceError, got %v", err)
	}
	if got := len(be.callLog()); got != 0 {
		t.Errorf("Expected zero backend calls on validation failure, got %d: %v", got, be.callLog())
	}
	if sink.started != 0 {
		t.Error("Expected no AcquisitionStarted event on validation failure")
	}
}

// TestController_AcquisitionFailureSkipsHold verifies a failed
// acquisition rolls back and never starts the hold loop.
func TestController_AcquisitionFailureSkipsHold(t *testing.T) {
	be := newFakeBackend()
	be.acquireErrors[1] = errors.New("backend refused")
	sink := &recordSink{}
	ctrl := NewController(be, staticCounter(4), make(chan struct{}), sink)

	err := ctrl.Run(requestsFor(0, 1), HoldConfig{})

	var acqErr *AcquisitionError
	if !errors.As(err, &acqErr) {
		t.Fatalf("Expected AcquisitionError, got %v", err)
	}
	if sink.holdStarts != 0 {
		t.Error("Expected no HoldStarted event after acquisition failure")
	}
	if got := be.countCalls("release:"); got != 1 {
		t.Errorf("Expected the one acquired block rolled back, got %d releases", got)
	}
}

// TestController_TimeoutLifecycle drives the full happy path: acquire,
// hold until the duration elapses, release.
func TestController_TimeoutLifecycle(t *testing.T) {
	be := newFakeBackend()
	sink := &recordSink{}
	ctrl := NewController(be, staticCounter(4), make(chan struct{}), sink)

	cfg := HoldConfig{Duration: 40 * time.Millisecond, KeepAliveInterval: 10 * time.Millisecond}
	if err := ctrl.Run(requestsFor(0, 1, 3), cfg); err != nil {
		t.Fatalf("Run failed: %v", err)
	}

	if ctrl.Cause() != StopTimeout {
		t.Errorf("Expected StopTimeout cause, got %s", ctrl.Cause())
	}
	if ctrl.LoopState() != LoopStopped {
		t.Errorf("Expected stopped state, got %s", ctrl.LoopState())
	}
	if ctrl.Set().Status() != StatusReleased {
		t.Errorf("Expected released set, got %s", ctrl.Set().Status())
	}
	if be.countCalls("acquire:") != be.countCalls("release:") {
		t.Errorf("Acquire/release imbalance: %d acquires, %d releases",
			be.countCalls("acquire:"), be.countCalls("release:"))
	}
	if sink.released != 1 {
		t.Errorf("Expected exactly one Released event, got %d", sink.released)
	}
}

// TestController_SignalReleasesEverything verifies a termination request
// routes through the same release path as a timeout.
func TestController_SignalReleasesEverything(t *testing.T) {
	be := newFakeBackend()
	sink := &recordSink{}
	stop := make(chan struct{})
	ctrl := NewController(be, staticCounter(4), stop, sink)

	done := make(chan error, 1)
	go func() {
		done <- ctrl.Run(requestsFor(0, 1), HoldConfig{Duration: 0, KeepAliveInterval: 5 * time.Second})
	}()

	time.Sleep(20 * time.Millisecond)
	close(stop)

	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("Run failed: %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Controller did not stop after the termination request")
	}

	if ctrl.Cause() != StopSignal {
		t.Errorf("Expected StopSignal cause, got %s", ctrl.Cause())
	}
	if ctrl.Set().Status() != StatusReleased {
		t.Errorf("Expected released set, got %s", ctrl.Set().Status())
	}
}

// TestController_TouchErrorReturnsError verifies a keep-alive failure
// still releases everything but reports a non-nil error.
func TestController_TouchErrorReturnsError(t *testing.T) {
	be := newFakeBackend()
	be.touchErrors["tok-2"] = errors.New("handle revoked")
	sink := &recordSink{}
	ctrl := NewController(be, staticCounter(4), make(chan struct{}), sink)

	cfg := HoldConfig{Duration: 0, KeepAliveInterval: 5 * time.Millisecond}
	err := ctrl.Run(requestsFor(0, 1), cfg)

	var touchErr *TouchError
	if !errors.As(err, &touchErr) {
		t.Fatalf("Expected TouchError, got %v", err)
	}
	if ctrl.Cause() != StopError {
		t.Errorf("Expected StopError cause, got %s", ctrl.Cause())
	}
	if ctrl.Set().Status() != StatusReleased {
		t.Errorf("Expected released set even after touch failure, got %s", ctrl.Set().Status())
	}
	if be.countCalls("release:") != 2 {
		t.Errorf("Expected both reservations released, got %d releases", be.countCalls("release:"))
	}
}

// TestController_TouchErrorKeepsReleaseError verifies a keep-alive
// failure does not swallow a teardown failure: both surface in the
// returned error.
func TestController_TouchErrorKeepsReleaseError(t *testing.T) {
	be := newFakeBackend()
	be.touchErrors["tok-2"] = errors.New("handle revoked")
	be.releaseErrors["tok-1"] = errors.New("driver hiccup")
	sink := &recordSink{}
	ctrl := NewController(be, staticCounter(4), make(chan struct{}), sink)

	cfg := HoldConfig{Duration: 0, KeepAliveInterval: 5 * time.Millisecond}
	err := ctrl.Run(requestsFor(0, 1), cfg)

	var touchErr *TouchError
	if !errors.As(err, &touchErr) {
		t.Fatalf("Expected the touch failure in the error, got %v", err)
	}
	if !strings.Contains(err.Error(), "release failed") {
		t.Errorf("Expected the release failure in the error, got %v", err)
	}
	if ctrl.Set().Status() != StatusReleased {
		t.Errorf("Expected released set, got %s", ctrl.Set().Status())
	}
}
