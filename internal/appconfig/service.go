package appconfig

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

// ServiceFileName is the per-project service configuration file.
const ServiceFileName = "service.yml"

const defaultSection = "default"

// Logical ECS services managed by the scaler, in the order they are touched.
const (
	ServiceScheduler = "scheduler"
	ServiceWebserver = "webserver"
	ServiceWorkers   = "workers"
)

// LogicalServices lists the fixed service set.
var LogicalServices = []string{ServiceScheduler, ServiceWebserver, ServiceWorkers}

type GitHubConfig struct {
	FullRepositoryName string `yaml:"fullRepositoryName"`
	Location           string `yaml:"location"`
	CodestarArn        string `yaml:"codestarArn"`
}

type ServiceCount struct {
	DesiredCount *int32 `yaml:"desiredCount"`
}

// ServiceSection is one environment block of service.yml.
type ServiceSection struct {
	ServiceName string                  `yaml:"serviceName"`
	Owner       string                  `yaml:"owner"`
	GitHub      GitHubConfig            `yaml:"github"`
	Service     map[string]ServiceCount `yaml:"service"`
}

// LoadedSection is the selected block plus the raw values used for templating.
type LoadedSection struct {
	Section ServiceSection
	Values  map[string]any
	// Name is the section key that was used: the environment or "default".
	Name string
}

// LoadServiceFile reads service.yml and selects the block for environment,
// falling back to "default" when the environment is not defined.
func LoadServiceFile(path, environment string) (LoadedSection, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return LoadedSection{}, fmt.Errorf("%w: %s not found", ErrMissingConfig, path)
		}
		return LoadedSection{}, err
	}
	return parseServiceFile(raw, environment)
}

func parseServiceFile(raw []byte, environment string) (LoadedSection, error) {
	var doc map[string]yaml.Node
	if err := yaml.Unmarshal(raw, &doc); err != nil {
		return LoadedSection{}, fmt.Errorf("parse %s: %w", ServiceFileName, err)
	}
	name := strings.TrimSpace(environment)
	node, ok := doc[name]
	if !ok || name == "" {
		name = defaultSection
		node, ok = doc[defaultSection]
		if !ok {
			return LoadedSection{}, fmt.Errorf("%w: %s has no %q section and no default section", ErrMissingConfig, ServiceFileName, environment)
		}
	}
	var out LoadedSection
	out.Name = name
	if err := node.Decode(&out.Section); err != nil {
		return LoadedSection{}, fmt.Errorf("decode %s section %q: %w", ServiceFileName, name, err)
	}
	if err := node.Decode(&out.Values); err != nil {
		return LoadedSection{}, fmt.Errorf("decode %s section %q: %w", ServiceFileName, name, err)
	}
	if out.Values == nil {
		out.Values = map[string]any{}
	}
	return out, nil
}

func (s ServiceSection) validate() error {
	var missing []string
	if strings.TrimSpace(s.ServiceName) == "" {
		missing = append(missing, "serviceName")
	}
	if strings.TrimSpace(s.Owner) == "" {
		missing = append(missing, "owner")
	}
	if strings.TrimSpace(s.GitHub.FullRepositoryName) == "" {
		missing = append(missing, "github.fullRepositoryName")
	}
	if strings.TrimSpace(s.GitHub.Location) == "" {
		missing = append(missing, "github.location")
	}
	if strings.TrimSpace(s.GitHub.CodestarArn) == "" {
		missing = append(missing, "github.codestarArn")
	}
	for _, svc := range LogicalServices {
		c, ok := s.Service[svc]
		if !ok || c.DesiredCount == nil {
			missing = append(missing, "service."+svc+".desiredCount")
			continue
		}
		if *c.DesiredCount < 0 {
			return fmt.Errorf("%w: service.%s.desiredCount must not be negative", ErrMissingConfig, svc)
		}
	}
	if len(missing) > 0 {
		return fmt.Errorf("%w: set %s in your %s", ErrMissingConfig, strings.Join(missing, ", "), ServiceFileName)
	}
	return nil
}
