package cmd

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/gpuhold/gpuhold/pkg/api"
	"github.com/gpuhold/gpuhold/pkg/backend"
	"github.com/gpuhold/gpuhold/pkg/devices"
	"github.com/gpuhold/gpuhold/pkg/logging"
	"github.com/gpuhold/gpuhold/pkg/metrics"
	"github.com/gpuhold/gpuhold/pkg/reservation"
	"github.com/gpuhold/gpuhold/pkg/shutdown"
)

var (
	holdGPUs       string
	holdMemoryGB   float64
	holdDuration   time.Duration
	holdInterval   time.Duration
	holdPlan       string
	holdBackend    string
	holdStatusAddr string
)

// holdCmd represents the hold command
var holdCmd = &cobra.Command{
	Use:   "hold",
	Short: "Reserve memory and hold it",
	Long: `Reserve one memory block per requested device and hold everything until
the duration elapses or the process receives SIGINT/SIGTERM. With
--duration 0 the reservations are held until interrupted.`,
	RunE: runHold,
}

func init() {
	rootCmd.AddCommand(holdCmd)

	holdCmd.Flags().StringVar(&holdGPUs, "gpus", "", "comma-separated device IDs (e.g., 0,1,2)")
	holdCmd.Flags().Float64Var(&holdMemoryGB, "memory", 0, "memory to reserve per device in GB")
	holdCmd.Flags().DurationVar(&holdDuration, "duration", 0, "how long to hold (0 = until interrupted)")
	holdCmd.Flags().DurationVar(&holdInterval, "interval", reservation.DefaultKeepAliveInterval, "keep-alive touch interval")
	holdCmd.Flags().StringVar(&holdPlan, "plan", "", "YAML plan file with per-device sizes (overrides --gpus/--memory)")
	holdCmd.Flags().StringVar(&holdBackend, "backend", "", "allocation backend: cuda or host (default from config)")
	holdCmd.Flags().StringVar(&holdStatusAddr, "status-addr", "", "serve status/metrics HTTP on this address (e.g., 127.0.0.1:9217)")
}

func runHold(cmd *cobra.Command, args []string) error {
	log := newLogger()

	requests, err := buildRequests()
	if err != nil {
		return err
	}

	backendName := holdBackend
	if backendName == "" {
		backendName = viper.GetString("backend")
	}

	be, counter, err := buildBackend(backendName, log)
	if err != nil {
		return err
	}

	sink := reservation.MultiSink{
		consoleSink{},
		reservation.NewLogSink(log),
		metrics.NewSink(prometheus.DefaultRegisterer),
	}

	sm := shutdown.New()
	sm.Start()
	defer sm.Stop()

	ctrl := reservation.NewController(be, counter, sm.Done(), sink)

	statusAddr := holdStatusAddr
	if statusAddr == "" {
		statusAddr = viper.GetString("status_addr")
	}
	if statusAddr != "" {
		statusServer := api.NewServer(&holderSource{ctrl: ctrl}, log.WithField("component", "status-api"))
		srv := statusServer.Start(statusAddr)
		defer func() {
			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			_ = statusServer.Shutdown(ctx, srv)
		}()
	}

	printHoldBanner(requests)

	cfg := reservation.HoldConfig{
		Duration:          holdDuration,
		KeepAliveInterval: holdInterval,
	}
	if err := ctrl.Run(requests, cfg); err != nil {
		log.Error("Hold failed", map[string]interface{}{"error": err.Error()})
		return err
	}

	fmt.Printf("All reservations released (devices %s).\n", formatDeviceList(ctrl.Set().Devices()))
	return nil
}

// consoleSink prints the per-device acquisition progress lines
type consoleSink struct {
	reservation.NopSink
}

func (consoleSink) Acquiring(req reservation.Request) {
	fmt.Printf("  Allocating %.2f GB on device %d... ", float64(req.SizeBytes)/(1024*1024*1024), req.Device)
}

func (consoleSink) Acquired(res reservation.Reservation) {
	fmt.Println("OK")
}

func (consoleSink) AcquisitionFailed(device int, err error) {
	fmt.Println("FAILED")
}

func (consoleSink) AcquisitionSucceeded(held []reservation.Reservation) {
	ids := make([]int, 0, len(held))
	for _, res := range held {
		ids = append(ids, res.Device)
	}
	fmt.Printf("Memory allocated successfully. Holding devices %s.\n", formatDeviceList(ids))
}

func formatDeviceList(ids []int) string {
	parts := make([]string, 0, len(ids))
	for _, id := range ids {
		parts = append(parts, strconv.Itoa(id))
	}
	return strings.Join(parts, ", ")
}

// buildRequests assembles the reservation requests from --plan or from
// --gpus/--memory.
func buildRequests() ([]reservation.Request, error) {
	if holdPlan != "" {
		return reservation.LoadPlan(holdPlan)
	}

	if holdGPUs == "" {
		return nil, fmt.Errorf("either --plan or --gpus is required")
	}
	if holdMemoryGB <= 0 {
		return nil, fmt.Errorf("--memory must be a positive number of GB")
	}

	ids, err := parseDeviceList(holdGPUs)
	if err != nil {
		return nil, err
	}

	requests := make([]reservation.Request, 0, len(ids))
	for _, id := range ids {
		requests = append(requests, reservation.Request{
			Device:    id,
			SizeBytes: reservation.GBToBytes(holdMemoryGB),
		})
	}
	return requests, nil
}

// parseDeviceList parses a comma-separated device id list like "0,1,2"
func parseDeviceList(list string) ([]int, error) {
	parts := strings.Split(list, ",")
	ids := make([]int, 0, len(parts))
	for _, part := range parts {
		id, err := strconv.Atoi(strings.TrimSpace(part))
		if err != nil {
			return nil, fmt.Errorf("invalid device IDs %q: use comma-separated integers (e.g., 0,1,2)", list)
		}
		ids = append(ids, id)
	}
	return ids, nil
}

// buildBackend selects the allocation backend and the matching device
// counter.
func buildBackend(name string, log *logging.Logger) (reservation.Backend, reservation.DeviceCounter, error) {
	switch name {
	case "cuda":
		be, err := backend.NewCUDA()
		if err != nil {
			return nil, nil, err
		}
		// Enumeration goes through nvidia-smi so validation works the
		// same way in every build; the driver count backs it up.
		prober := devices.NewProber()
		if prober.Available() {
			return be, prober, nil
		}
		log.Warn("nvidia-smi not found, falling back to the driver device count")
		return be, be, nil
	case "host":
		be := backend.NewHostMem()
		if gb := viper.GetFloat64("host_headroom_gb"); gb > 0 {
			be.SetHeadroom(reservation.GBToBytes(gb))
		}
		return be, devices.Static(viper.GetInt("host_slots")), nil
	default:
		return nil, nil, fmt.Errorf("unknown backend %q: use cuda or host", name)
	}
}

func printHoldBanner(requests []reservation.Request) {
	total := uint64(0)
	for _, req := range requests {
		total += req.SizeBytes
	}
	fmt.Printf("Reserving %.2f GB across %d device(s)\n", float64(total)/(1024*1024*1024), len(requests))
	if holdDuration > 0 {
		fmt.Printf("Will release after %s.\n", holdDuration)
	} else {
		fmt.Println("Press Ctrl+C to release.")
	}
}

// holderSource adapts the controller to the status API
type holderSource struct {
	ctrl *reservation.Controller
}

func (h *holderSource) Snapshot() api.Snapshot {
	snap := api.Snapshot{
		State:        h.ctrl.LoopState().String(),
		Reservations: []api.ReservationInfo{},
	}
	if cause := h.ctrl.Cause(); cause != reservation.StopNone {
		snap.Cause = cause.String()
	}
	if t := h.ctrl.StartedAt(); !t.IsZero() {
		snap.StartedAt = &t
	}
	set := h.ctrl.Set()
	if set != nil && set.Status() == reservation.StatusActive {
		snap.HeldBytes = set.HeldBytes()
		for _, res := range set.Reservations() {
			snap.Reservations = append(snap.Reservations, api.ReservationInfo{
				Device:    res.Device,
				SizeBytes: res.SizeBytes,
			})
		}
	}
	return snap
}
