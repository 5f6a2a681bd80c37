// Package metrics exposes reservation lifecycle events as Prometheus
// metrics.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"

	"github.com/gpuhold/gpuhold/pkg/reservation"
)

// Sink implements reservation.EventSink on top of Prometheus collectors
type Sink struct {
	acquisitions *prometheus.CounterVec
	stops        *prometheus.CounterVec
	errors       prometheus.Counter
	heldBytes    prometheus.Gauge
	heldBlocks   prometheus.Gauge
}

// NewSink creates and registers the collectors. Pass
// prometheus.DefaultRegisterer in production; tests use their own
// registry.
func NewSink(reg prometheus.Registerer) *Sink {
	s := &Sink{
		acquisitions: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "gpuhold_acquisitions_total",
				Help: "Total acquisition attempts by result",
			},
			[]string{"result"},
		),
		stops: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "gpuhold_stops_total",
				Help: "Total hold loop stops by cause",
			},
			[]string{"cause"},
		),
		errors: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "gpuhold_errors_total",
				Help: "Total errors reported during the reservation lifecycle",
			},
		),
		heldBytes: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "gpuhold_held_bytes",
				Help: "Bytes currently held across all reservations",
			},
		),
		heldBlocks: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "gpuhold_held_reservations",
				Help: "Number of reservations currently held",
			},
		),
	}

	reg.MustRegister(s.acquisitions, s.stops, s.errors, s.heldBytes, s.heldBlocks)
	return s
}

func (s *Sink) AcquisitionStarted(requests []reservation.Request) {
	s.acquisitions.WithLabelValues("started").Inc()
}

func (s *Sink) Acquiring(req reservation.Request) {}

func (s *Sink) Acquired(res reservation.Reservation) {}

func (s *Sink) AcquisitionFailed(device int, err error) {
	s.acquisitions.WithLabelValues("failed").Inc()
}

func (s *Sink) AcquisitionSucceeded(held []reservation.Reservation) {
	s.acquisitions.WithLabelValues("succeeded").Inc()

	total := uint64(0)
	for _, res := range held {
		total += res.SizeBytes
	}
	s.heldBytes.Set(float64(total))
	s.heldBlocks.Set(float64(len(held)))
}

func (s *Sink) HoldStarted(cfg reservation.HoldConfig) {}

func (s *Sink) Stopping(cause reservation.StopCause) {
	s.stops.WithLabelValues(cause.String()).Inc()
}

func (s *Sink) Released() {
	s.heldBytes.Set(0)
	s.heldBlocks.Set(0)
}

func (s *Sink) Error(err error) {
	s.errors.Inc()
}
