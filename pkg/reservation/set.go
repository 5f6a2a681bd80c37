package reservation

import (
	"fmt"
	"sync"
)

// Set is the all-or-nothing group of reservations for one invocation. It
// owns its reservations exclusively from acquisition until release and
// transitions to Released exactly once.
type Set struct {
	mu           sync.RWMutex
	backend      Backend
	reservations []Reservation
	status       Status
}

// AcquireAll reserves every requested block in request order. On the
// first failure it releases everything acquired so far in reverse order
// and returns an AcquisitionError; no reservation is ever left dangling.
func AcquireAll(backend Backend, requests []Request, sink EventSink) (*Set, error) {
	sink.AcquisitionStarted(requests)

	set := &Set{
		backend: backend,
		status:  StatusPending,
	}

	for _, req := range requests {
		sink.Acquiring(req)
		tok, err := backend.Acquire(req.Device, req.SizeBytes)
		if err != nil {
			sink.AcquisitionFailed(req.Device, err)
			set.rollback(sink)
			return nil, &AcquisitionError{Device: req.Device, Err: err}
		}
		res := Reservation{
			Device:    req.Device,
			SizeBytes: req.SizeBytes,
			Token:     tok,
		}
		set.reservations = append(set.reservations, res)
		sink.Acquired(res)
	}

	set.status = StatusActive
	sink.AcquisitionSucceeded(set.Reservations())
	return set, nil
}

// rollback releases the partial set in reverse acquisition order. Release
// failures are reported but do not stop the remaining releases.
func (s *Set) rollback(sink EventSink) {
	for i := len(s.reservations) - 1; i >= 0; i-- {
		res := s.reservations[i]
		if err := s.backend.Release(res.Token); err != nil {
			sink.Error(&ReleaseError{Device: res.Device, Err: err})
		}
		s.reservations[i].Token = ""
	}
	s.status = StatusRolledBack
}

// ReleaseAll releases every reservation in reverse acquisition order and
// invalidates the tokens. It may be called exactly once per Active set;
// any other state returns ErrSetNotActive. A failed release is reported
// and the remaining releases are still attempted.
func (s *Set) ReleaseAll(sink EventSink) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.status != StatusActive {
		return fmt.Errorf("%w (status: %s)", ErrSetNotActive, s.status)
	}

	var failed []int
	for i := len(s.reservations) - 1; i >= 0; i-- {
		res := s.reservations[i]
		if err := s.backend.Release(res.Token); err != nil {
			failed = append(failed, res.Device)
			sink.Error(&ReleaseError{Device: res.Device, Err: err})
		}
		s.reservations[i].Token = ""
	}

	s.status = StatusReleased
	sink.Released()

	if len(failed) > 0 {
		return fmt.Errorf("release failed on %d of %d devices: %v", len(failed), len(s.reservations), failed)
	}
	return nil
}

// Touch performs a keep-alive access on every reservation. The first
// failure is returned as a TouchError; partial reservation loss is a
// whole-set failure, so the caller stops the set.
func (s *Set) Touch() error {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, res := range s.reservations {
		if err := s.backend.Touch(res.Token); err != nil {
			return &TouchError{Device: res.Device, Err: err}
		}
	}
	return nil
}

// Status returns the current lifecycle state of the set
func (s *Set) Status() Status {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.status
}

// Reservations returns a copy of the held reservations in acquisition
// order.
func (s *Set) Reservations() []Reservation {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]Reservation, len(s.reservations))
	copy(out, s.reservations)
	return out
}

// Devices returns the device ids of the set in acquisition order
func (s *Set) Devices() []int {
	s.mu.RLock()
	defer s.mu.RUnlock()

	devices := make([]int, 0, len(s.reservations))
	for _, res := range s.reservations {
		devices = append(devices, res.Device)
	}
	return devices
}

// HeldBytes returns the total size of all reservations in the set
func (s *Set) HeldBytes() uint64 {
	s.mu.RLock()
	defer s.mu.RUnlock()

	total := uint64(0)
	for _, res := range s.reservations {
		total += res.SizeBytes
	}
	return total
}
