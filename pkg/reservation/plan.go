package reservation

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Plan describes a heterogeneous reservation set loaded from a YAML
// file, one entry per device:
//
//	reservations:
//	  - device: 0
//	    size_gb: 40
//	  - device: 1
//	    size_gb: 12.5
type Plan struct {
	Reservations []PlanEntry `yaml:"reservations"`
}

// PlanEntry is one device/size pair in a plan
type PlanEntry struct {
	Device int     `yaml:"device"`
	SizeGB float64 `yaml:"size_gb"`
}

// ParsePlan decodes a plan document and converts it to requests in file
// order.
func ParsePlan(data []byte) ([]Request, error) {
	var plan Plan
	if err := yaml.Unmarshal(data, &plan); err != nil {
		return nil, fmt.Errorf("failed to parse plan: %w", err)
	}
	if len(plan.Reservations) == 0 {
		return nil, fmt.Errorf("plan contains no reservations")
	}

	requests := make([]Request, 0, len(plan.Reservations))
	for _, entry := range plan.Reservations {
		if entry.SizeGB <= 0 {
			return nil, fmt.Errorf("plan entry for device %d: size_gb must be positive", entry.Device)
		}
		requests = append(requests, Request{
			Device:    entry.Device,
			SizeBytes: GBToBytes(entry.SizeGB),
		})
	}
	return requests, nil
}

// LoadPlan reads and parses a plan file
func LoadPlan(path string) ([]Request, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read plan file: %w", err)
	}
	return ParsePlan(data)
}
