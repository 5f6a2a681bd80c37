package reservation

import (
	"errors"
	"fmt"
)

// ErrOutOfCapacity is wrapped by Backend.Acquire when a device has
// insufficient room for the requested block.
var ErrOutOfCapacity = errors.New("out of capacity")

// ErrSetNotActive is returned by ReleaseAll when the set is not Active.
// Calling ReleaseAll twice on the same set is a programming error and is
// reported loudly rather than absorbed.
var ErrSetNotActive = errors.New("reservation set is not active")

// InvalidDeviceError reports a requested device id outside the range the
// enumeration service advertises. Validation runs fully upfront, so no
// allocation has happened when this is returned.
type InvalidDeviceError struct {
	ID        int
	Available int
}

func (e *InvalidDeviceError) Error() string {
	if e.Available <= 0 {
		return fmt.Sprintf("device %d not found: no devices available", e.ID)
	}
	return fmt.Sprintf("device %d not found: available devices are 0-%d", e.ID, e.Available-1)
}

// AcquisitionError reports the acquisition failure that aborted a set.
// By the time it is returned, every previously acquired block in the set
// has been rolled back.
type AcquisitionError struct {
	Device int
	Err    error
}

func (e *AcquisitionError) Error() string {
	return fmt.Sprintf("acquisition failed on device %d: %v", e.Device, e.Err)
}

func (e *AcquisitionError) Unwrap() error {
	return e.Err
}

// ReleaseError reports a single failed release during teardown. Releases
// of the remaining reservations are still attempted.
type ReleaseError struct {
	Device int
	Err    error
}

func (e *ReleaseError) Error() string {
	return fmt.Sprintf("release failed on device %d: %v", e.Device, e.Err)
}

func (e *ReleaseError) Unwrap() error {
	return e.Err
}

// TouchError reports a failed keep-alive touch. Losing part of a set
// defeats the reservation, so a touch error stops the whole set.
type TouchError struct {
	Device int
	Err    error
}

func (e *TouchError) Error() string {
	return fmt.Sprintf("keep-alive touch failed on device %d: %v", e.Device, e.Err)
}

func (e *TouchError) Unwrap() error {
	return e.Err
}

// ValidateRequests checks every requested device id against the counter
// before any allocation happens. The first out-of-range id fails the
// whole request with zero side effects.
func ValidateRequests(counter DeviceCounter, requests []Request) error {
	if len(requests) == 0 {
		return errors.New("no reservations requested")
	}

	count, err := counter.Count()
	if err != nil {
		return fmt.Errorf("failed to enumerate devices: %w", err)
	}

	for _, req := range requests {
		if req.Device < 0 || req.Device >= count {
			return &InvalidDeviceError{ID: req.Device, Available: count}
		}
		if req.SizeBytes == 0 {
			return fmt.Errorf("device %d: requested size must be greater than zero", req.Device)
		}
	}

	return nil
}
