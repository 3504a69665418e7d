package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
)

func init() {
	rootCmd.AddCommand(statusCmd)
}

// statusCmd prints the resolved bootstrap configuration so operators can
// verify which authorities govern a deployment before starting it.
var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show the resolved bootstrap configuration",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		fmt.Printf("environment:      %s\n", cfg.Environment)
		fmt.Printf("executor:         %s\n", cfg.Authorities.Executor)
		fmt.Printf("admin:            %s\n", cfg.Authorities.Admin)
		fmt.Printf("emergency admin:  %s\n", cfg.Authorities.EmergencyAdmin)
		fmt.Printf("release:          v%d %s\n", cfg.Release.Version, cfg.Release.Ref)
		fmt.Printf("audit log:        %s\n", cfg.Audit.Path)
		if cfg.SeedFile != "" {
			fmt.Printf("seed file:        %s\n", cfg.SeedFile)
		}
		return nil
	},
}
