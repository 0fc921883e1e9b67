package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/ThreeVenturesTechnology/apache-airflow-aws/internal/artifacts"
	"github.com/ThreeVenturesTechnology/apache-airflow-aws/internal/images"
)

func newCleanupCommand(g *globalOptions) *cobra.Command {
	var yes bool
	cmd := &cobra.Command{
		Use:   "cleanup",
		Short: "Remove all images from ECR and all objects from the artifacts bucket",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(cmd, g)
			if err != nil {
				return err
			}
			prompt := fmt.Sprintf("Remove every image in %s and every object in %s?", a.cfg.RepositoryName(), a.cfg.ArtifactsBucket())
			ok, err := confirmed(confirmAction(cmd.Context(), cmd.InOrStdin(), a.errOut, approvalMode(cmd, yes), prompt))
			if err != nil {
				return err
			}
			if !ok {
				fmt.Fprintln(a.errOut, "Nothing removed.")
				return nil
			}
			return runCleanup(cmd.Context(), a)
		},
	}
	cmd.Flags().BoolVarP(&yes, "yes", "y", false, "Skip the confirmation prompt (or set AIRFLOWCTL_YES=1)")
	return cmd
}

func runCleanup(ctx context.Context, a *app) error {
	n, err := images.Purge(ctx, a.aws.ECR, a.cfg.RepositoryName(), a.log)
	if err != nil {
		return err
	}
	fmt.Fprintf(a.out, "Removed %d images from %s\n", n, a.cfg.RepositoryName())
	m, err := artifacts.Empty(ctx, a.aws.S3, a.cfg.ArtifactsBucket(), a.log)
	if err != nil {
		return err
	}
	fmt.Fprintf(a.out, "Removed %d objects from %s\n", m, a.cfg.ArtifactsBucket())
	return nil
}
