package reservation

import (
	"github.com/gpuhold/gpuhold/pkg/logging"
)

// EventSink receives the externally observable lifecycle events of a
// reservation. Implementations must not block the caller for long: the
// hold loop emits events from its single thread of control.
type EventSink interface {
	AcquisitionStarted(requests []Request)
	// Acquiring and Acquired bracket each backend acquire so callers
	// can report per-device progress.
	Acquiring(req Request)
	Acquired(res Reservation)
	AcquisitionFailed(device int, err error)
	AcquisitionSucceeded(held []Reservation)
	HoldStarted(cfg HoldConfig)
	Stopping(cause StopCause)
	Released()
	Error(err error)
}

// NopSink discards all events
type NopSink struct{}

func (NopSink) AcquisitionStarted([]Request)       {}
func (NopSink) Acquiring(Request)                  {}
func (NopSink) Acquired(Reservation)               {}
func (NopSink) AcquisitionFailed(int, error)       {}
func (NopSink) AcquisitionSucceeded([]Reservation) {}
func (NopSink) HoldStarted(HoldConfig)             {}
func (NopSink) Stopping(StopCause)                 {}
func (NopSink) Released()                          {}
func (NopSink) Error(error)                        {}

// MultiSink fans every event out to each member in order.
type MultiSink []EventSink

func (m MultiSink) AcquisitionStarted(requests []Request) {
	for _, s := range m {
		s.AcquisitionStarted(requests)
	}
}

func (m MultiSink) Acquiring(req Request) {
	for _, s := range m {
		s.Acquiring(req)
	}
}

func (m MultiSink) Acquired(res Reservation) {
	for _, s := range m {
		s.Acquired(res)
	}
}

func (m MultiSink) AcquisitionFailed(device int, err error) {
	for _, s := range m {
		s.AcquisitionFailed(device, err)
	}
}

func (m MultiSink) AcquisitionSucceeded(held []Reservation) {
	for _, s := range m {
		s.AcquisitionSucceeded(held)
	}
}

func (m MultiSink) HoldStarted(cfg HoldConfig) {
	for _, s := range m {
		s.HoldStarted(cfg)
	}
}

func (m MultiSink) Stopping(cause StopCause) {
	for _, s := range m {
		s.Stopping(cause)
	}
}

func (m MultiSink) Released() {
	for _, s := range m {
		s.Released()
	}
}

func (m MultiSink) Error(err error) {
	for _, s := range m {
		s.Error(err)
	}
}

// LogSink reports lifecycle events through the structured logger.
type LogSink struct {
	log *logging.Logger
}

// NewLogSink creates a sink that logs every lifecycle event
func NewLogSink(log *logging.Logger) *LogSink {
	return &LogSink{log: log}
}

func (s *LogSink) AcquisitionStarted(requests []Request) {
	total := uint64(0)
	for _, req := range requests {
		total += req.SizeBytes
	}
	s.log.Info("Starting acquisition", map[string]interface{}{
		"reservations": len(requests),
		"total_bytes":  total,
	})
}

func (s *LogSink) Acquiring(req Request) {
	s.log.Debug("Acquiring block", map[string]interface{}{
		"device":     req.Device,
		"size_bytes": req.SizeBytes,
	})
}

func (s *LogSink) Acquired(res Reservation) {
	s.log.Debug("Block acquired", map[string]interface{}{
		"device":     res.Device,
		"size_bytes": res.SizeBytes,
	})
}

func (s *LogSink) AcquisitionFailed(device int, err error) {
	s.log.Error("Acquisition failed", map[string]interface{}{
		"device": device,
		"error":  err.Error(),
	})
}

func (s *LogSink) AcquisitionSucceeded(held []Reservation) {
	total := uint64(0)
	for _, res := range held {
		total += res.SizeBytes
	}
	s.log.Info("Acquisition succeeded", map[string]interface{}{
		"reservations": len(held),
		"held_bytes":   total,
	})
}

func (s *LogSink) HoldStarted(cfg HoldConfig) {
	fields := map[string]interface{}{
		"keepalive_interval": cfg.KeepAliveInterval.String(),
	}
	if cfg.Duration > 0 {
		fields["duration"] = cfg.Duration.String()
	} else {
		fields["duration"] = "unbounded"
	}
	s.log.Info("Hold started", fields)
}

func (s *LogSink) Stopping(cause StopCause) {
	s.log.Info("Stopping", map[string]interface{}{"cause": cause.String()})
}

func (s *LogSink) Released() {
	s.log.Info("Reservations released")
}

func (s *LogSink) Error(err error) {
	s.log.Error(err.Error())
}
