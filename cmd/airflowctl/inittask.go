package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

func newInitTaskCommand(g *globalOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "init-task",
		Short: "Run the one-off Airflow init task, then scale services up",
		Long:  "init-task runs the init task definition on Fargate in the subnets tagged with this service and environment, waits for it to stop, and then sets every service to its desired count.",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(cmd, g)
			if err != nil {
				return err
			}
			if err := a.scaler().RunInitTask(cmd.Context()); err != nil {
				return err
			}
			fmt.Fprintln(a.out, "init task finished, services scaled")
			return nil
		},
	}
}
