package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"claudehist/internal/config"
)

var flagConfigInit bool

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Show current configuration",
	RunE:  runConfig,
}

func init() {
	configCmd.Flags().BoolVar(&flagConfigInit, "init", false, "Write the current settings to the config file")
	rootCmd.AddCommand(configCmd)
}

func runConfig(_ *cobra.Command, _ []string) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}

	if flagConfigInit {
		if err := config.Save(cfg); err != nil {
			return err
		}
		fmt.Printf("Wrote %s\n", config.Path())
		return nil
	}

	fmt.Printf("  Config file: %s\n", config.Path())
	if config.Exists() {
		fmt.Println("  Status: loaded")
	} else {
		fmt.Println("  Status: using defaults (no config file)")
	}
	fmt.Println()

	fmt.Println("  [General]")
	fmt.Printf("    Source directory: %s\n", cfg.General.SourceDir)
	fmt.Printf("    Database path:    %s\n", cfg.General.DBPath)
	fmt.Println()

	fmt.Println("  [Remote]")
	fmt.Printf("    Enabled:           %v\n", cfg.Remote.Enabled)
	fmt.Printf("    Database:          %s\n", cfg.Remote.Database)
	fmt.Printf("    Fallback to local: %v\n", cfg.Remote.FallbackToLocal)
	fmt.Println()

	fmt.Println("  Run `claudehist config --init` to write this to disk.")
	return nil
}
