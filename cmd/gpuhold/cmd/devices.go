package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/olekukonko/tablewriter"
	"github.com/spf13/cobra"

	"github.com/gpuhold/gpuhold/pkg/devices"
)

// devicesCmd represents the devices command
var devicesCmd = &cobra.Command{
	Use:   "devices",
	Short: "List GPUs visible to the driver",
	Long:  `Enumerate GPUs via nvidia-smi and show their current memory occupancy.`,
	RunE:  runDevices,
}

func init() {
	rootCmd.AddCommand(devicesCmd)
}

func runDevices(cmd *cobra.Command, args []string) error {
	prober := devices.NewProber()
	if !prober.Available() {
		return fmt.Errorf("nvidia-smi not found: no GPUs can be enumerated on this host")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	gpus, err := prober.List(ctx)
	if err != nil {
		return fmt.Errorf("failed to enumerate GPUs: %w", err)
	}

	if IsJSONOutput() {
		output, err := json.MarshalIndent(gpus, "", "  ")
		if err != nil {
			return fmt.Errorf("failed to marshal JSON: %w", err)
		}
		fmt.Println(string(output))
		return nil
	}

	if len(gpus) == 0 {
		fmt.Println("No GPUs detected")
		return nil
	}

	table := tablewriter.NewWriter(os.Stdout)
	table.Header("ID", "Name", "Memory Used", "Memory Total", "Util")

	for _, gpu := range gpus {
		table.Append(
			fmt.Sprintf("%d", gpu.Index),
			gpu.Name,
			fmt.Sprintf("%.0f MiB", gpu.MemoryUsedMiB),
			fmt.Sprintf("%.0f MiB", gpu.MemoryTotalMiB),
			fmt.Sprintf("%.0f%%", gpu.UtilizationPct),
		)
	}

	table.Render()
	fmt.Printf("\nTotal devices: %d\n", len(gpus))
	return nil
}
