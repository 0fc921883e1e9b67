// File: pkg/buildkit/options.go
// Brief: BuildKit options and defaults for building the Airflow image.

package buildkit

import (
	"context"
	"fmt"
	"os"
	"os/user"
	"path/filepath"
	"runtime"

	"github.com/containerd/console"
	"github.com/docker/cli/cli/config/configfile"
	"github.com/moby/buildkit/client"
)

// DefaultPlatform is what Fargate runs when the task definition does not
// ask for ARM.
const DefaultPlatform = "linux/amd64"

// DockerfileBuildOptions configures a Dockerfile-based build invocation.
type DockerfileBuildOptions struct {
	BuilderAddr          string
	AllowBuilderFallback bool
	ContextDir           string
	DockerfilePath       string
	Platforms            []string
	BuildArgs            map[string]string
	NoCache              bool
	Pull                 bool
	CacheDir             string
	ProgressMode         string
	ProgressOutput       console.File
	DockerConfig         *configfile.ConfigFile
	// OCIOutputPath receives the image as an OCI layout directory.
	OCIOutputPath     string
	ProgressObservers []ProgressObserver
}

// BuildResult describes the result of a Dockerfile build.
type BuildResult struct {
	Digest           string
	ExporterResponse map[string]string
	OCIOutputPath    string
}

// ProgressObserver consumes raw BuildKit solve status updates (vertex statuses, logs, etc.).
type ProgressObserver interface {
	HandleStatus(*client.SolveStatus)
}

// Runner defines the programmable contract for invoking BuildKit solves.
type Runner interface {
	BuildDockerfile(ctx context.Context, opts DockerfileBuildOptions) (*BuildResult, error)
}

type defaultRunner struct{}

// NewRunner returns the BuildKit runner used by the CLI.
func NewRunner() Runner {
	return defaultRunner{}
}

func (defaultRunner) BuildDockerfile(ctx context.Context, opts DockerfileBuildOptions) (*BuildResult, error) {
	return BuildDockerfile(ctx, opts)
}

// DefaultBuilderAddress returns the best-effort rootless BuildKit socket.
func DefaultBuilderAddress() string {
	if v := os.Getenv("AIRFLOWCTL_BUILDKIT_HOST"); v != "" {
		return v
	}
	if v := os.Getenv("BUILDKIT_HOST"); v != "" {
		return v
	}
	if runtime.GOOS == "windows" {
		return "npipe:////./pipe/buildkitd"
	}
	if dir := os.Getenv("XDG_RUNTIME_DIR"); dir != "" {
		return "unix://" + filepath.Join(dir, "buildkit", "buildkitd.sock")
	}
	if u, err := user.Current(); err == nil && u.Uid != "" {
		return fmt.Sprintf("unix:///run/user/%s/buildkit/buildkitd.sock", u.Uid)
	}
	return "unix:///run/user/1000/buildkit/buildkitd.sock"
}

// DefaultCacheDir returns a user cache folder for BuildKit metadata.
func DefaultCacheDir() string {
	if v := os.Getenv("AIRFLOWCTL_BUILDKIT_CACHE"); v != "" {
		return v
	}
	if cacheDir, err := os.UserCacheDir(); err == nil {
		return filepath.Join(cacheDir, "airflowctl", "buildkit-cache")
	}
	return filepath.Join(os.TempDir(), "airflowctl-buildkit-cache")
}
