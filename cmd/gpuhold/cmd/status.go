package cmd

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"time"

	"github.com/olekukonko/tablewriter"
	"github.com/spf13/cobra"

	"github.com/gpuhold/gpuhold/pkg/api"
)

var statusEndpoint string

// statusCmd represents the status command
var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Query a running holder",
	Long:  `Fetch the reservation state from a holder started with --status-addr.`,
	RunE:  runStatus,
}

func init() {
	rootCmd.AddCommand(statusCmd)
	statusCmd.Flags().StringVar(&statusEndpoint, "endpoint", "http://127.0.0.1:9217", "status endpoint of the running holder")
}

func runStatus(cmd *cobra.Command, args []string) error {
	url := fmt.Sprintf("%s/reservations", statusEndpoint)

	client := &http.Client{Timeout: 10 * time.Second}
	resp, err := client.Get(url)
	if err != nil {
		return fmt.Errorf("failed to connect to holder: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("failed to read response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("holder returned status %d: %s", resp.StatusCode, string(body))
	}

	var snap api.Snapshot
	if err := json.Unmarshal(body, &snap); err != nil {
		return fmt.Errorf("failed to parse response: %w", err)
	}

	if IsJSONOutput() {
		output, err := json.MarshalIndent(snap, "", "  ")
		if err != nil {
			return fmt.Errorf("failed to marshal JSON: %w", err)
		}
		fmt.Println(string(output))
		return nil
	}

	fmt.Printf("State: %s\n", snap.State)
	if snap.Cause != "" {
		fmt.Printf("Stop cause: %s\n", snap.Cause)
	}
	if snap.StartedAt != nil {
		fmt.Printf("Holding since: %s (%s)\n", snap.StartedAt.Format(time.RFC3339), time.Since(*snap.StartedAt).Round(time.Second))
	}

	if len(snap.Reservations) == 0 {
		fmt.Println("No reservations held")
		return nil
	}

	table := tablewriter.NewWriter(os.Stdout)
	table.Header("Device", "Size")

	for _, res := range snap.Reservations {
		table.Append(
			fmt.Sprintf("%d", res.Device),
			fmt.Sprintf("%.2f GB", float64(res.SizeBytes)/(1024*1024*1024)),
		)
	}

	table.Render()
	fmt.Printf("\nTotal held: %.2f GB\n", float64(snap.HeldBytes)/(1024*1024*1024))
	return nil
}
