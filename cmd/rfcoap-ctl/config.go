package main

import (
	"fmt"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"
)

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Inspect the effective configuration",
}

var configCheckCmd = &cobra.Command{
	Use:   "check",
	Short: "Load and validate the config, then print it as YAML",
	RunE: func(cmd *cobra.Command, args []string) error {
		// PersistentPreRunE already loaded and validated cfg; reaching this
		// point means the configuration is usable.
		b, err := yaml.Marshal(cfg)
		if err != nil {
			return fmt.Errorf("render config: %w", err)
		}
		fmt.Fprint(cmd.OutOrStdout(), string(b))
		return nil
	},
}

func init() {
	configCmd.AddCommand(configCheckCmd)
	rootCmd.AddCommand(configCmd)
}
