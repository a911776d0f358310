package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"rfcoap/pkg/config"
)

var (
	// Global flags
	cfgFile      string
	outputFormat string

	// Shared state set during PersistentPreRun
	cfg       *config.Config
	formatter Formatter
)

// rootCmd is the base command for rfcoap-ctl.
var rootCmd = &cobra.Command{
	Use:   "rfcoap-ctl",
	Short: "rfcoap CLI for endpoint records, message frames, and transmit-path checks",
	Long: `rfcoap-ctl is the operator-facing CLI for the rfcoap stack.
It encodes and decodes radio endpoint records and message frames, and runs
an in-process check of the registration and transmit path.`,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		var err error
		cfg, err = config.Load(cfgFile)
		if err != nil {
			return fmt.Errorf("failed to load config: %w", err)
		}
		formatter = newFormatter(outputFormat)
		return nil
	},
}

// Execute runs the root command.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default searches ., ./configs, ~/.rfcoap)")
	rootCmd.PersistentFlags().StringVarP(&outputFormat, "output", "o", "table", "output format: table, json, yaml")
}
