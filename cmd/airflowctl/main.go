// File: cmd/airflowctl/main.go
// Brief: Root command, configuration binding and error reporting.

package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/ThreeVenturesTechnology/apache-airflow-aws/internal/appconfig"
	"github.com/ThreeVenturesTechnology/apache-airflow-aws/internal/render"
	"github.com/ThreeVenturesTechnology/apache-airflow-aws/internal/stack"
	"github.com/ThreeVenturesTechnology/apache-airflow-aws/internal/waiter"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	root := newRootCommand()
	if err := root.ExecuteContext(ctx); err != nil {
		handleError(err)
		os.Exit(1)
	}
}

type globalOptions struct {
	projectDir   string
	templatesDir string
	logLevel     string
}

func newRootCommand() *cobra.Command {
	g := &globalOptions{logLevel: "info"}
	cmd := &cobra.Command{
		Use:           "airflowctl",
		Short:         "Deploy and operate Apache Airflow on AWS ECS",
		Long:          "airflowctl renders the project's CloudFormation templates, reconciles them against the stacks that already exist, publishes the Airflow image to ECR and keeps the ECS services at their configured size.",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	cmd.PersistentFlags().StringVar(&g.projectDir, "project-dir", "", "Directory holding service.yml (defaults to the nearest parent that has one)")
	cmd.PersistentFlags().StringVar(&g.templatesDir, "templates-dir", appconfig.DefaultTemplatesDir, "Template directory, relative to the project directory")
	cmd.PersistentFlags().StringVar(&g.logLevel, "log-level", g.logLevel, "Log level for airflowctl output (debug, info, warn, error)")

	deployCmd := newDeployCommand(g)
	destroyCmd := newDestroyCommand(g)
	publishCmd := newPublishCommand(g)
	outputsCmd := newOutputsCommand(g)
	cleanupCmd := newCleanupCommand(g)
	cmd.AddCommand(
		newCheckCommand(g),
		newValidateCommand(g),
		deployCmd,
		destroyCmd,
		publishCmd,
		newRestartCommand(g),
		newScaleCommand(g),
		newInitTaskCommand(g),
		outputsCmd,
		cleanupCmd,
		newVersionCommand(),
	)
	cmd.Example = `  # Check environment variables and service.yml
  ENVIRONMENT=prod AWS_REGION=eu-west-1 AWS_PROFILE=prod airflowctl check

  # Create or update the foundation stacks only
  airflowctl deploy --scope foundation

  # Publish a new image and roll the running services
  airflowctl publish --restart`
	bindViper(cmd, deployCmd, destroyCmd, publishCmd, outputsCmd, cleanupCmd)
	return cmd
}

func bindViper(commands ...*cobra.Command) {
	if len(commands) == 0 {
		return
	}
	v := viper.New()
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.SetEnvPrefix("AIRFLOWCTL")
	v.AutomaticEnv()
	configFile := os.Getenv("AIRFLOWCTL_CONFIG")
	configureConfigFile(v, configFile)

	cobra.OnInitialize(func() {
		for _, cmd := range commands {
			if err := v.BindPFlags(cmd.Flags()); err != nil {
				cobra.CheckErr(err)
			}
			if err := v.BindPFlags(cmd.PersistentFlags()); err != nil {
				cobra.CheckErr(err)
			}
		}
		if err := readConfigFile(v, configFile != ""); err != nil {
			cobra.CheckErr(err)
		}
		for _, cmd := range commands {
			for _, fs := range []*pflag.FlagSet{cmd.Flags(), cmd.PersistentFlags()} {
				fs.VisitAll(func(f *pflag.Flag) {
					if f.Changed || !v.IsSet(f.Name) {
						return
					}
					if val := fmt.Sprintf("%v", v.Get(f.Name)); val != "" {
						_ = f.Value.Set(val)
					}
				})
			}
		}
	})
}

func configureConfigFile(v *viper.Viper, explicitPath string) {
	if explicitPath != "" {
		v.SetConfigFile(explicitPath)
		return
	}
	v.SetConfigName("config")
	for _, dir := range configSearchDirs() {
		v.AddConfigPath(dir)
	}
}

func readConfigFile(v *viper.Viper, strict bool) error {
	if err := v.ReadInConfig(); err != nil {
		var cfgErr viper.ConfigFileNotFoundError
		if errors.As(err, &cfgErr) && !strict {
			return nil
		}
		return err
	}
	return nil
}

func configSearchDirs() []string {
	var dirs []string
	if xdg := os.Getenv("XDG_CONFIG_HOME"); xdg != "" {
		dirs = append(dirs, filepath.Join(xdg, "airflowctl"))
	}
	if home, err := os.UserHomeDir(); err == nil && home != "" {
		dirs = append(dirs, filepath.Join(home, ".config", "airflowctl"))
	}
	return dirs
}

func handleError(err error) {
	if err == nil || errors.Is(err, pflag.ErrHelp) {
		return
	}
	fmt.Fprintf(os.Stderr, "Error: %s\n", errorMessage(err))
}

func errorMessage(err error) string {
	switch {
	case errors.Is(err, appconfig.ErrMissingConfig):
		return fmt.Sprintf("%s\nHint: export ENVIRONMENT, AWS_REGION and AWS_PROFILE and run 'airflowctl check'.", err)
	case errors.Is(err, render.ErrRender):
		return fmt.Sprintf("%s\nHint: every placeholder must resolve from service.yml, the environment or the computed values.", err)
	case errors.Is(err, waiter.ErrTimeout):
		return fmt.Sprintf("%s\nHint: the operation may still be running; inspect the stack events in the CloudFormation console before retrying.", err)
	case errors.Is(err, stack.ErrStackBlocked):
		return fmt.Sprintf("%s\nHint: delete the failed stack (or let it finish) and deploy again.", err)
	case errors.Is(err, context.Canceled):
		return fmt.Sprintf("%s\nHint: interrupted; backend operations already started keep running.", err)
	}
	return err.Error()
}
