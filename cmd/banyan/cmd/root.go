package cmd

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var (
	version = "0.1.0" // version holds the current version of the banyan CLI.

	// cfgFile is an optional explicit path to the bootstrap config file.
	cfgFile string
)

// rootCmd is the base command for the banyan CLI.
var rootCmd = &cobra.Command{
	Use:     "banyan",
	Short:   "Banyan module/policy runtime CLI",
	Long:    "Banyan CLI for running and inspecting the module/policy runtime control plane.",
	Version: version,
	RunE: func(cmd *cobra.Command, args []string) error {
		return cmd.Help()
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "path to the bootstrap config file")
}

// Execute runs the root command with a context usable for graceful shutdown.
func Execute(ctx context.Context) {
	rootCmd.SetContext(ctx)
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
