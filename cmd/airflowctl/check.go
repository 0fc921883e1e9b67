package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

func newCheckCommand(g *globalOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "check",
		Short: "Verify the required environment variables and service.yml",
		Long:  "check loads the configuration exactly as every other command does and reports which service.yml section is in effect. It makes no AWS calls.",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, _, err := loadConfig(cmd, g)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			if cfg.Section == cfg.Environment {
				fmt.Fprintf(out, "%s environment service variables loaded.\n", cfg.Environment)
			} else {
				fmt.Fprintf(out, "Proceeding with %q service variables.\n", cfg.Section)
			}
			fmt.Fprintf(out, "Stack prefix: %s\n", cfg.StackPrefix())
			fmt.Fprintf(out, "Templates:    %s\n", cfg.TemplatesDir)
			fmt.Fprintf(out, "Region:       %s (profile %s)\n", cfg.Region, cfg.Profile)
			return nil
		},
	}
}
