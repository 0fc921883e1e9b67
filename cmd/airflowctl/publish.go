package main

import (
	"fmt"

	"github.com/docker/cli/cli/config"
	"github.com/spf13/cobra"

	"github.com/ThreeVenturesTechnology/apache-airflow-aws/internal/images"
	"github.com/ThreeVenturesTechnology/apache-airflow-aws/pkg/buildkit"
	"github.com/ThreeVenturesTechnology/apache-airflow-aws/pkg/registry"
)

type publishOptions struct {
	contextDir     string
	dockerfile     string
	platforms      []string
	buildArgs      map[string]string
	builder        string
	noCache        bool
	pull           bool
	progress       string
	allowFallback  bool
	restartRunning bool
}

func newPublishCommand(g *globalOptions) *cobra.Command {
	opts := publishOptions{}
	cmd := &cobra.Command{
		Use:   "publish",
		Short: "Build the Airflow image and push it to ECR as latest and a unique tag",
		Long: `publish builds the project's Dockerfile with BuildKit once, then pushes the
result to the service's ECR repository twice: as "latest" and as a random
16-character tag. Registry credentials are fetched again before each push.
If the second push fails, "latest" has already moved.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(cmd, g)
			if err != nil {
				return err
			}
			contextDir := opts.contextDir
			if contextDir == "" {
				contextDir = a.cfg.ProjectDir
			}
			p := &images.Publisher{
				ECR:        a.aws.ECR,
				Builder:    buildkit.NewRunner(),
				Push:       registry.PushLayout,
				Repository: a.cfg.RepositoryName(),
				Build: buildkit.DockerfileBuildOptions{
					BuilderAddr:          opts.builder,
					AllowBuilderFallback: opts.allowFallback,
					ContextDir:           contextDir,
					DockerfilePath:       opts.dockerfile,
					Platforms:            opts.platforms,
					BuildArgs:            opts.buildArgs,
					NoCache:              opts.noCache,
					Pull:                 opts.pull,
					ProgressMode:         opts.progress,
					DockerConfig:         config.LoadDefaultConfigFile(a.errOut),
					ProgressObservers:    []buildkit.ProgressObserver{buildkit.NewLogObserver(a.log.WithName("build"))},
				},
				Log: a.log,
			}
			res, err := p.Publish(cmd.Context())
			if res != nil {
				for _, ref := range res.References {
					fmt.Fprintf(a.out, "pushed %s\n", ref)
				}
			}
			if err != nil {
				return err
			}
			if !opts.restartRunning {
				return nil
			}
			restarted, err := a.scaler().Restart(cmd.Context())
			for _, name := range restarted {
				fmt.Fprintf(a.out, "restarted %s\n", name)
			}
			return err
		},
	}
	cmd.Flags().StringVar(&opts.contextDir, "context", "", "Build context (defaults to the project directory)")
	cmd.Flags().StringVarP(&opts.dockerfile, "file", "f", "", "Dockerfile path relative to the context")
	cmd.Flags().StringSliceVar(&opts.platforms, "platform", []string{buildkit.DefaultPlatform}, "Target platforms")
	cmd.Flags().StringToStringVar(&opts.buildArgs, "build-arg", nil, "Build-time variables (KEY=VALUE)")
	cmd.Flags().StringVar(&opts.builder, "builder", "", "BuildKit address (defaults to AIRFLOWCTL_BUILDKIT_HOST, BUILDKIT_HOST or the rootless socket)")
	cmd.Flags().BoolVar(&opts.allowFallback, "builder-fallback", true, "Provision a docker buildx builder when no BuildKit daemon answers")
	cmd.Flags().BoolVar(&opts.noCache, "no-cache", false, "Do not use the local build cache")
	cmd.Flags().BoolVar(&opts.pull, "pull", false, "Always pull base images")
	cmd.Flags().StringVar(&opts.progress, "progress", "auto", "Build progress output: auto, plain, tty, quiet")
	cmd.Flags().BoolVar(&opts.restartRunning, "restart", false, "Force a new deployment of running services after the push")
	return cmd
}
