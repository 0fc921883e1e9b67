// Package appconfig builds the immutable run configuration for airflowctl:
// required process variables, the selected service.yml section, and the
// optional project files exposed to stack templates.
package appconfig

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/subosito/gotenv"
)

// ErrMissingConfig marks configuration problems detected before any network call.
var ErrMissingConfig = errors.New("missing configuration")

const (
	DefaultTemplatesDir  = "cloudformation"
	DotenvFileName       = ".env"
	ExtraCommandsFile    = "extra_commands.sh"
	platformMarker       = "airflow"
	clusterSuffix        = "ecs-cluster"
	initTaskSuffix       = "init-task-definition"
	fernetSecretSuffix   = "fernet-key"
	artifactsBucketInfix = "codebuild-artifacts"
)

// LoadOptions locate the project files.
type LoadOptions struct {
	ProjectDir   string
	TemplatesDir string
	// Env overrides the process environment; nil means os.Environ.
	Env map[string]string
}

// Config is built once per invocation and passed by value to every component.
type Config struct {
	Environment string
	Region      string
	Profile     string

	ServiceName string
	Owner       string
	GitHub      GitHubConfig
	// DesiredCounts maps logical service name to its configured count.
	DesiredCounts map[string]int32
	// Values is the raw service.yml section, merged into template contexts.
	Values map[string]any
	// Section is "default" when the environment has no block of its own.
	Section string

	ProjectDir   string
	TemplatesDir string
	// ProcessEnv is the environment snapshot taken at load time.
	ProcessEnv map[string]string
	// DotenvVars are the variables from the project's .env file, if any.
	DotenvVars map[string]string
	// ExtraCommands is the content of extra_commands.sh, if present.
	ExtraCommands string
}

// Load validates the environment first so a missing variable aborts before
// any file is parsed or any network call is made.
func Load(opts LoadOptions) (Config, error) {
	vars := opts.Env
	if vars == nil {
		vars = ProcessEnvironment()
	}
	envCfg, err := LoadEnvironment(vars)
	if err != nil {
		return Config{}, err
	}

	projectDir := strings.TrimSpace(opts.ProjectDir)
	if projectDir == "" {
		wd, err := os.Getwd()
		if err != nil {
			return Config{}, err
		}
		projectDir = FindProjectRoot(wd)
		if projectDir == "" {
			projectDir = wd
		}
	}
	projectDir, err = filepath.Abs(projectDir)
	if err != nil {
		return Config{}, err
	}

	loaded, err := LoadServiceFile(filepath.Join(projectDir, ServiceFileName), envCfg.Name)
	if err != nil {
		return Config{}, err
	}
	if err := loaded.Section.validate(); err != nil {
		return Config{}, err
	}

	templatesDir := strings.TrimSpace(opts.TemplatesDir)
	if templatesDir == "" {
		templatesDir = DefaultTemplatesDir
	}
	if !filepath.IsAbs(templatesDir) {
		templatesDir = filepath.Join(projectDir, templatesDir)
	}

	dotenv, err := readDotenv(filepath.Join(projectDir, DotenvFileName))
	if err != nil {
		return Config{}, err
	}
	extra, err := readOptional(filepath.Join(projectDir, ExtraCommandsFile))
	if err != nil {
		return Config{}, err
	}

	counts := make(map[string]int32, len(LogicalServices))
	for _, svc := range LogicalServices {
		counts[svc] = *loaded.Section.Service[svc].DesiredCount
	}

	return Config{
		Environment:   envCfg.Name,
		Region:        envCfg.Region,
		Profile:       envCfg.Profile,
		ServiceName:   loaded.Section.ServiceName,
		Owner:         loaded.Section.Owner,
		GitHub:        loaded.Section.GitHub,
		DesiredCounts: counts,
		Values:        loaded.Values,
		Section:       loaded.Name,
		ProjectDir:    projectDir,
		TemplatesDir:  templatesDir,
		ProcessEnv:    copyStrings(vars),
		DotenvVars:    dotenv,
		ExtraCommands: extra,
	}, nil
}

// StackPrefix is prepended to every stack name: "<serviceName>-<env>-".
func (c Config) StackPrefix() string {
	return fmt.Sprintf("%s-%s-", c.ServiceName, c.Environment)
}

// PlatformMarker identifies application-tier stacks by name.
func (c Config) PlatformMarker() string {
	return platformMarker
}

func (c Config) ClusterName() string {
	return c.StackPrefix() + clusterSuffix
}

// ECSServiceName returns the full ECS service name for a logical service.
func (c Config) ECSServiceName(logical string) string {
	return c.StackPrefix() + logical
}

func (c Config) InitTaskDefinition() string {
	return c.StackPrefix() + initTaskSuffix
}

func (c Config) FernetSecretID() string {
	return c.StackPrefix() + fernetSecretSuffix
}

// RepositoryName is the ECR repository the image publisher pushes to.
func (c Config) RepositoryName() string {
	return strings.ToLower(fmt.Sprintf("%s-%s-%s", platformMarker, c.ServiceName, c.Environment))
}

func (c Config) ArtifactsBucket() string {
	return strings.ToLower(fmt.Sprintf("%s-%s-%s", c.ServiceName, artifactsBucketInfix, c.Environment))
}

// DefaultTags are attached to every stack on create and update.
func (c Config) DefaultTags() []Tag {
	return []Tag{
		{Key: "Owner", Value: c.Owner},
		{Key: "Service", Value: c.ServiceName},
		{Key: "Environment", Value: c.Environment},
	}
}

// Tag is a backend-neutral key/value pair.
type Tag struct {
	Key   string
	Value string
}

// FormattedDotenv renders the .env variables as an ECS container environment
// list fragment, keys sorted.
func (c Config) FormattedDotenv() string {
	keys := make([]string, 0, len(c.DotenvVars))
	for k := range c.DotenvVars {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	var b strings.Builder
	for _, k := range keys {
		fmt.Fprintf(&b, "- Name: %s\n  Value: %s\n", k, c.DotenvVars[k])
	}
	return b.String()
}

func readDotenv(path string) (map[string]string, error) {
	if _, err := os.Stat(path); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return map[string]string{}, nil
		}
		return nil, err
	}
	vars, err := gotenv.Read(path)
	if err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	return map[string]string(vars), nil
}

func readOptional(path string) (string, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return "", nil
		}
		return "", err
	}
	return string(raw), nil
}

func copyStrings(in map[string]string) map[string]string {
	out := make(map[string]string, len(in))
	for k, v := range in {
		out[k] = v
	}
	return out
}
