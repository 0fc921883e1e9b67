package appconfig

import (
	"fmt"
	"os"
	"strings"

	"github.com/caarlos0/env/v9"
)

// Environment holds the process variables every command needs before it may
// talk to AWS.
type Environment struct {
	Name    string `env:"ENVIRONMENT,required"`
	Region  string `env:"AWS_REGION,required"`
	Profile string `env:"AWS_PROFILE,required"`
}

// LoadEnvironment parses the required variables from vars. A nil map reads
// the process environment.
func LoadEnvironment(vars map[string]string) (Environment, error) {
	if vars == nil {
		vars = ProcessEnvironment()
	}
	var out Environment
	if err := env.ParseWithOptions(&out, env.Options{Environment: vars}); err != nil {
		return Environment{}, fmt.Errorf("%w: %v", ErrMissingConfig, err)
	}
	out.Name = strings.TrimSpace(out.Name)
	out.Region = strings.TrimSpace(out.Region)
	out.Profile = strings.TrimSpace(out.Profile)
	if out.Name == "" {
		return Environment{}, fmt.Errorf("%w: environment variable ENVIRONMENT is empty", ErrMissingConfig)
	}
	return out, nil
}

// ProcessEnvironment snapshots os.Environ into a map.
func ProcessEnvironment() map[string]string {
	out := make(map[string]string)
	for _, kv := range os.Environ() {
		k, v, ok := strings.Cut(kv, "=")
		if !ok || k == "" {
			continue
		}
		out[k] = v
	}
	return out
}
