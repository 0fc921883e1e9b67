package main

import (
	"context"
	"fmt"
	"io"

	"github.com/go-logr/logr"
	"github.com/spf13/cobra"

	"github.com/ThreeVenturesTechnology/apache-airflow-aws/internal/appconfig"
	"github.com/ThreeVenturesTechnology/apache-airflow-aws/internal/awsclient"
	"github.com/ThreeVenturesTechnology/apache-airflow-aws/internal/logging"
	"github.com/ThreeVenturesTechnology/apache-airflow-aws/internal/render"
	"github.com/ThreeVenturesTechnology/apache-airflow-aws/internal/secretstore"
	"github.com/ThreeVenturesTechnology/apache-airflow-aws/internal/services"
	"github.com/ThreeVenturesTechnology/apache-airflow-aws/internal/stack"
	"github.com/ThreeVenturesTechnology/apache-airflow-aws/internal/templates"
	"github.com/ThreeVenturesTechnology/apache-airflow-aws/internal/waiter"
)

// app is the per-invocation wiring: configuration is loaded and validated
// before any AWS client exists.
type app struct {
	cfg    appconfig.Config
	log    logr.Logger
	aws    *awsclient.Clients
	out    io.Writer
	errOut io.Writer
}

func loadConfig(cmd *cobra.Command, g *globalOptions) (appconfig.Config, logr.Logger, error) {
	log, err := logging.New(g.logLevel, cmd.ErrOrStderr())
	if err != nil {
		return appconfig.Config{}, logr.Logger{}, err
	}
	cfg, err := appconfig.Load(appconfig.LoadOptions{ProjectDir: g.projectDir, TemplatesDir: g.templatesDir})
	if err != nil {
		return appconfig.Config{}, logr.Logger{}, err
	}
	return cfg, log, nil
}

func newApp(cmd *cobra.Command, g *globalOptions) (*app, error) {
	cfg, log, err := loadConfig(cmd, g)
	if err != nil {
		return nil, err
	}
	clients, err := awsclient.Load(cmd.Context(), cfg.Region, cfg.Profile)
	if err != nil {
		return nil, err
	}
	log.V(1).Info("configuration loaded", "environment", cfg.Environment, "section", cfg.Section, "service", cfg.ServiceName)
	return &app{cfg: cfg, log: log, aws: clients, out: cmd.OutOrStdout(), errOut: cmd.ErrOrStderr()}, nil
}

// renderContext layers service.yml values, the process environment and the
// computed helpers; later layers win.
func renderContext(cfg appconfig.Config, fernetKey, accountID string) render.Context {
	helpers := map[string]any{
		"initial_command":      cfg.ExtraCommands,
		"custom_env_variables": cfg.FormattedDotenv(),
		"FERNET_KEY":           fernetKey,
		"AWS_ACCOUNT_ID":       accountID,
		"ENVIRONMENT":          cfg.Environment,
		"AWS_REGION":           cfg.Region,
		"serviceName":          cfg.ServiceName,
		"stackPrefix":          cfg.StackPrefix(),
		"ecrRepository":        cfg.RepositoryName(),
	}
	return render.Merge(cfg.Values, render.FromStrings(cfg.ProcessEnv), helpers)
}

// descriptors renders every template in dir order. The Fernet key and
// account id are resolved first since templates reference them.
func (a *app) descriptors(ctx context.Context, dir templates.Direction) ([]templates.Descriptor, error) {
	key, _, err := secretstore.FernetKey(ctx, a.aws.SecretsManager, a.cfg.FernetSecretID(), a.log)
	if err != nil {
		return nil, err
	}
	account, err := awsclient.AccountID(ctx, a.aws.STS)
	if err != nil {
		return nil, err
	}
	c := templates.Collector{
		Dir:      a.cfg.TemplatesDir,
		Prefix:   a.cfg.StackPrefix(),
		Marker:   a.cfg.PlatformMarker(),
		Renderer: render.New(renderContext(a.cfg, key, account)),
		Log:      a.log,
	}
	ds, err := c.Collect(dir)
	if err != nil {
		return nil, fmt.Errorf("collect templates from %s: %w", a.cfg.TemplatesDir, err)
	}
	return ds, nil
}

func (a *app) scaler() *services.Scaler {
	return services.NewScaler(a.cfg, a.aws.ECS, a.aws.EC2, a.log)
}

func (a *app) reconciler(svc stack.DesiredState) *stack.Reconciler {
	return &stack.Reconciler{
		API:      a.aws.CloudFormation,
		Tags:     stack.Tags(a.cfg.DefaultTags()),
		Policy:   waiter.DefaultPolicy(),
		Services: svc,
		Log:      a.log,
	}
}

func (a *app) inventory(ctx context.Context) (stack.Inventory, error) {
	inv, err := stack.LoadInventory(ctx, a.aws.CloudFormation)
	if err != nil {
		return stack.Inventory{}, err
	}
	if lingering := inv.LingeringNames(); len(lingering) > 0 {
		a.log.V(1).Info("stacks outside a healthy state", "stacks", lingering)
	}
	return inv, nil
}
