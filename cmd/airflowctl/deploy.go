// File: cmd/airflowctl/deploy.go
// Brief: CLI command wiring and implementation for 'deploy'.

package main

import (
	"io"

	"github.com/spf13/cobra"

	"github.com/ThreeVenturesTechnology/apache-airflow-aws/internal/stack"
	"github.com/ThreeVenturesTechnology/apache-airflow-aws/internal/templates"
	"github.com/ThreeVenturesTechnology/apache-airflow-aws/internal/ui"
)

func newDeployCommand(g *globalOptions) *cobra.Command {
	var scopeName string
	var skipScale bool
	cmd := &cobra.Command{
		Use:   "deploy",
		Short: "Create or update stacks, foundation tier first",
		Long: `deploy renders the templates, lists the stacks that already exist and
creates or updates each one in order. Every mutation is awaited before the
next starts. After an applied update the ECS services are set back to their
configured desired counts.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			scope, err := stack.ParseScope(scopeName)
			if err != nil {
				return err
			}
			a, err := newApp(cmd, g)
			if err != nil {
				return err
			}
			ctx := cmd.Context()
			ds, err := a.descriptors(ctx, templates.Ascending)
			if err != nil {
				return err
			}
			inv, err := a.inventory(ctx)
			if err != nil {
				return err
			}
			var svc stack.DesiredState
			if !skipScale {
				svc = a.scaler()
			}
			outcomes, err := a.reconciler(svc).Apply(ctx, ds, inv, scope)
			printOutcomes(a.out, outcomes)
			return err
		},
	}
	cmd.Flags().StringVar(&scopeName, "scope", "all", "Stacks to apply: foundation, application, or all")
	cmd.Flags().BoolVar(&skipScale, "skip-scale", false, "Do not re-assert ECS desired counts after updates")
	return cmd
}

func printOutcomes(w io.Writer, outcomes []stack.Outcome) {
	for _, o := range outcomes {
		detail := o.Action.String()
		if o.Err != nil {
			detail += ": " + o.Err.Error()
		}
		ui.StatusLine(w, o.Result.String(), o.Stack, detail)
	}
}
