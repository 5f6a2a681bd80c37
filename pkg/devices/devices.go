package devices

import (
	"context"
	"encoding/xml"
	"fmt"
	"os/exec"
	"strconv"
	"strings"
	"time"

	"github.com/gpuhold/gpuhold/pkg/retry"
)

// nvidia-smi -q -x XML structures
type nvidiaSMILog struct {
	XMLName xml.Name  `xml:"nvidia_smi_log"`
	GPUs    []gpuNode `xml:"gpu"`
}

type gpuNode struct {
	ID          string      `xml:"id,attr"`
	ProductName string      `xml:"product_name"`
	UUID        string      `xml:"uuid"`
	Utilization utilization `xml:"utilization"`
	FBMemory    fbMemory    `xml:"fb_memory_usage"`
}

type utilization struct {
	GPUUtil    string `xml:"gpu_util"`
	MemoryUtil string `xml:"memory_util"`
}

type fbMemory struct {
	Used  string `xml:"used"`
	Total string `xml:"total"`
}

// GPU describes one enumerated device
type GPU struct {
	Index          int     `json:"index"`
	Name           string  `json:"name"`
	UUID           string  `json:"uuid"`
	MemoryUsedMiB  float64 `json:"memory_used_mib"`
	MemoryTotalMiB float64 `json:"memory_total_mib"`
	UtilizationPct float64 `json:"utilization_pct"`
}

// defaultProbeTimeout bounds probes that carry no caller context. A
// wedged nvidia-smi must not stall validation forever.
const defaultProbeTimeout = 30 * time.Second

// Prober enumerates GPUs by shelling out to nvidia-smi. Probing retries
// with backoff: the tool transiently fails while the driver is
// resetting.
type Prober struct {
	retryCfg Config
	timeout  time.Duration
	query    func(ctx context.Context) ([]byte, error)
}

// Config aliases the retry configuration used for nvidia-smi invocations
type Config = retry.Config

// NewProber creates a prober with default retry behavior
func NewProber() *Prober {
	return &Prober{
		retryCfg: retry.DefaultConfig(),
		timeout:  defaultProbeTimeout,
		query:    queryNvidiaSMI,
	}
}

func queryNvidiaSMI(ctx context.Context) ([]byte, error) {
	out, err := exec.CommandContext(ctx, "nvidia-smi", "-q", "-x").Output()
	if err != nil {
		return nil, fmt.Errorf("failed to query nvidia-smi: %w", err)
	}
	return out, nil
}

// Available reports whether nvidia-smi is present on this host
func (p *Prober) Available() bool {
	_, err := exec.LookPath("nvidia-smi")
	return err == nil
}

// List enumerates all GPUs visible to the driver
func (p *Prober) List(ctx context.Context) ([]GPU, error) {
	var output []byte
	err := retry.Do(ctx, p.retryCfg, func() error {
		out, err := p.query(ctx)
		if err != nil {
			return err
		}
		output = out
		return nil
	})
	if err != nil {
		return nil, err
	}

	var smiLog nvidiaSMILog
	if err := xml.Unmarshal(output, &smiLog); err != nil {
		return nil, fmt.Errorf("failed to parse nvidia-smi XML: %w", err)
	}

	return parseGPUs(&smiLog), nil
}

// Count implements reservation.DeviceCounter. Validation calls it with
// no context of its own, so the probe carries its own deadline.
func (p *Prober) Count() (int, error) {
	ctx, cancel := context.WithTimeout(context.Background(), p.timeout)
	defer cancel()

	gpus, err := p.List(ctx)
	if err != nil {
		return 0, err
	}
	return len(gpus), nil
}

func parseGPUs(smiLog *nvidiaSMILog) []GPU {
	gpus := make([]GPU, 0, len(smiLog.GPUs))
	for i, node := range smiLog.GPUs {
		gpus = append(gpus, GPU{
			Index:          i,
			Name:           node.ProductName,
			UUID:           node.UUID,
			MemoryUsedMiB:  parseValue(node.FBMemory.Used),
			MemoryTotalMiB: parseValue(node.FBMemory.Total),
			UtilizationPct: parseValue(node.Utilization.GPUUtil),
		})
	}
	return gpus
}

// parseValue extracts a float from a string with unit (e.g., "40960 MiB" -> 40960)
func parseValue(s string) float64 {
	s = strings.TrimSpace(s)
	parts := strings.Fields(s)
	if len(parts) == 0 {
		return 0
	}

	val, err := strconv.ParseFloat(parts[0], 64)
	if err != nil {
		return 0
	}
	return val
}

// Static is a fixed-size device counter for backends whose resources are
// logical slots rather than enumerated hardware.
type Static int

// Count implements reservation.DeviceCounter
func (s Static) Count() (int, error) {
	return int(s), nil
}
