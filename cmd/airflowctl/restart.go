package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

func newRestartCommand(g *globalOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "restart",
		Short: "Force a new deployment of every service that has running tasks",
		Long:  "restart replaces the tasks of the scheduler, workers and webserver, in that order, so they pick up a new image. Services scaled to zero are left alone.",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(cmd, g)
			if err != nil {
				return err
			}
			restarted, err := a.scaler().Restart(cmd.Context())
			for _, name := range restarted {
				fmt.Fprintf(a.out, "restarted %s\n", name)
			}
			if err == nil && len(restarted) == 0 {
				fmt.Fprintln(a.out, "no running services to restart")
			}
			return err
		},
	}
}
