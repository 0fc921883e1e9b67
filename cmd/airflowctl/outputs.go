package main

import (
	"github.com/spf13/cobra"

	"github.com/ThreeVenturesTechnology/apache-airflow-aws/internal/stack"
	"github.com/ThreeVenturesTechnology/apache-airflow-aws/internal/templates"
)

func newOutputsCommand(g *globalOptions) *cobra.Command {
	var format string
	cmd := &cobra.Command{
		Use:   "outputs",
		Short: "Print the outputs of every existing stack",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(cmd, g)
			if err != nil {
				return err
			}
			ctx := cmd.Context()
			ds, err := a.descriptors(ctx, templates.Descending)
			if err != nil {
				return err
			}
			inv, err := a.inventory(ctx)
			if err != nil {
				return err
			}
			report, err := stack.CollectOutputs(ctx, a.aws.CloudFormation, ds, inv)
			if err != nil {
				return err
			}
			return report.Print(a.out, format)
		},
	}
	cmd.Flags().StringVarP(&format, "output", "o", "json", "Output format: json, yaml, or table")
	return cmd
}
