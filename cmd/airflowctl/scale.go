package main

import (
	"fmt"
	"sort"

	"github.com/spf13/cobra"
)

func newScaleCommand(g *globalOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "scale",
		Short: "Set every service to the desired count from service.yml",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(cmd, g)
			if err != nil {
				return err
			}
			if err := a.scaler().ScaleToDesired(cmd.Context()); err != nil {
				return err
			}
			names := make([]string, 0, len(a.cfg.DesiredCounts))
			for name := range a.cfg.DesiredCounts {
				names = append(names, name)
			}
			sort.Strings(names)
			for _, name := range names {
				fmt.Fprintf(a.out, "%s=%d\n", a.cfg.ECSServiceName(name), a.cfg.DesiredCounts[name])
			}
			return nil
		},
	}
}
