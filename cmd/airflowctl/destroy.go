package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/ThreeVenturesTechnology/apache-airflow-aws/internal/templates"
)

func newDestroyCommand(g *globalOptions) *cobra.Command {
	var yes, cleanup bool
	cmd := &cobra.Command{
		Use:   "destroy",
		Short: "Delete every stack, application tier first",
		Long: `destroy deletes every existing stack in reverse order and waits for each
deletion. It asks for confirmation first; anything but "yes" leaves the
account untouched. --cleanup empties the ECR repository and the artifacts
bucket before the stacks that own them are deleted.`,
		Args: cobra.NoArgs,
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
			dec := approvalMode(cmd, yes)
			confirm := func(ctx context.Context) (bool, error) {
				prompt := fmt.Sprintf("You are about to delete all Airflow infrastructure of %s (%s). Do you want to continue?", a.cfg.ServiceName, a.cfg.Environment)
				ok, err := confirmed(confirmAction(ctx, cmd.InOrStdin(), a.errOut, dec, prompt))
				if err == nil && ok && cleanup {
					err = runCleanup(ctx, a)
				}
				return ok, err
			}
			outcomes, err := a.reconciler(nil).Destroy(ctx, ds, inv, confirm)
			if err == nil && outcomes == nil {
				fmt.Fprintln(a.errOut, "Nothing deleted.")
			}
			printOutcomes(a.out, outcomes)
			return err
		},
	}
	cmd.Flags().BoolVarP(&yes, "yes", "y", false, "Skip the confirmation prompt (or set AIRFLOWCTL_YES=1)")
	cmd.Flags().BoolVar(&cleanup, "cleanup", false, "Empty the ECR repository and artifacts bucket first")
	return cmd
}
