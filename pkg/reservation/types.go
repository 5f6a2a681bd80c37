package reservation

import (
	"time"
)

// Token is an opaque release capability issued by a Backend when a block
// is acquired. After the block is released the token is invalid and must
// never be reused.
type Token string

// Request describes one block to reserve: a device identifier and a size.
type Request struct {
	Device    int    `json:"device"`
	SizeBytes uint64 `json:"size_bytes"`
}

// Reservation is one held block on one device.
type Reservation struct {
	Device    int    `json:"device"`
	SizeBytes uint64 `json:"size_bytes"`
	Token     Token  `json:"-"`
}

// Status represents the lifecycle state of a Set
type Status int

const (
	StatusPending Status = iota
	StatusActive
	StatusRolledBack
	StatusReleased
)

func (s Status) String() string {
	switch s {
	case StatusPending:
		return "pending"
	case StatusActive:
		return "active"
	case StatusRolledBack:
		return "rolled_back"
	case StatusReleased:
		return "released"
	default:
		return "unknown"
	}
}

// StopCause records why a hold loop stopped
type StopCause int

const (
	StopNone StopCause = iota
	StopTimeout
	StopSignal
	StopError
)

func (c StopCause) String() string {
	switch c {
	case StopNone:
		return "none"
	case StopTimeout:
		return "timeout"
	case StopSignal:
		return "signal"
	case StopError:
		return "error"
	default:
		return "unknown"
	}
}

// HoldConfig controls how long a set is held and how often it is touched.
// A zero Duration means hold until interrupted.
type HoldConfig struct {
	Duration          time.Duration
	KeepAliveInterval time.Duration
}

// DefaultKeepAliveInterval bounds worst-case stop latency: a signal or an
// expired duration is acted on within one interval.
const DefaultKeepAliveInterval = 10 * time.Second

// Backend is the external allocation capability the reservation core
// drives. Implementations change real resource occupancy.
type Backend interface {
	// Acquire reserves sizeBytes on the given device and returns a
	// release token. Errors wrap ErrOutOfCapacity when the device has
	// insufficient room.
	Acquire(device int, sizeBytes uint64) (Token, error)
	// Release frees the block behind the token. The token is invalid
	// afterwards.
	Release(tok Token) error
	// Touch performs a no-op access on the held block so external
	// idle-reclamation mechanisms keep it resident.
	Touch(tok Token) error
}

// DeviceCounter reports the total number of addressable devices, used to
// validate requested device ids before anything is acquired.
type DeviceCounter interface {
	Count() (int, error)
}

// GBToBytes converts a size in gigabytes to bytes the same way the
// classic occupation tools do (GB * 1024^3).
func GBToBytes(gb float64) uint64 {
	return uint64(gb * 1024 * 1024 * 1024)
}
