package cmd

import (
	"os"
	"path/filepath"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/gpuhold/gpuhold/pkg/logging"
)

var (
	cfgFile      string
	outputFormat string
	logLevel     string
	logJSON      bool
)

// rootCmd represents the base command
var rootCmd = &cobra.Command{
	Use:   "gpuhold",
	Short: "Reserve and hold GPU or host memory",
	Long: `gpuhold reserves memory blocks on a set of devices and holds them until
a duration elapses or the process is interrupted. Acquisition is
all-or-nothing: if any device cannot satisfy its block, everything
already acquired is rolled back and nothing stays held.`,
}

// Execute adds all child commands to the root command and sets flags appropriately
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	cobra.OnInitialize(initConfig)

	// Global flags
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is $HOME/.gpuhold/config.yaml)")
	rootCmd.PersistentFlags().StringVar(&outputFormat, "output", "table", "output format: table or json")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "info", "log level: debug, info, warn, error")
	rootCmd.PersistentFlags().BoolVar(&logJSON, "log-json", false, "log in JSON format")
}

// initConfig reads in config file and ENV variables if set
func initConfig() {
	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		home, err := os.UserHomeDir()
		if err != nil {
			newLogger().Fatal("Failed to find home directory", map[string]interface{}{"error": err.Error()})
		}

		configDir := filepath.Join(home, ".gpuhold")
		viper.AddConfigPath(configDir)
		viper.SetConfigName("config")
		viper.SetConfigType("yaml")
	}

	viper.SetEnvPrefix("GPUHOLD")
	viper.AutomaticEnv()

	viper.SetDefault("backend", "cuda")
	viper.SetDefault("host_slots", 8)
	viper.SetDefault("host_headroom_gb", 0.5)
	viper.SetDefault("status_addr", "")

	// Missing config file is fine; defaults and env still apply.
	_ = viper.ReadInConfig()
}

// newLogger builds the process logger from the global flags
func newLogger() *logging.Logger {
	return logging.NewLogger(logging.ParseLevel(logLevel), logJSON)
}

// IsJSONOutput returns true if JSON output is requested
func IsJSONOutput() bool {
	return outputFormat == "json"
}
