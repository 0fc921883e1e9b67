package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/ThreeVenturesTechnology/apache-airflow-aws/internal/stack"
	"github.com/ThreeVenturesTechnology/apache-airflow-aws/internal/templates"
)

func newValidateCommand(g *globalOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "validate",
		Short: "Render every template and validate it with CloudFormation",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(cmd, g)
			if err != nil {
				return err
			}
			ds, err := a.descriptors(cmd.Context(), templates.Ascending)
			if err != nil {
				return err
			}
			if err := stack.Validate(cmd.Context(), a.aws.CloudFormation, ds, a.log); err != nil {
				return err
			}
			fmt.Fprintf(a.out, "%d templates valid\n", len(ds))
			return nil
		},
	}
}
