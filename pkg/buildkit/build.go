package buildkit

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/docker/cli/cli/config"
	"github.com/docker/cli/cli/config/configfile"
	"github.com/moby/buildkit/client"
	"github.com/moby/buildkit/session"
	"github.com/moby/buildkit/session/auth/authprovider"
	"github.com/moby/buildkit/util/progress/progresswriter"
)

// BuildDockerfile executes a BuildKit solve using the dockerfile frontend and
// exports the result as an OCI layout directory.
func BuildDockerfile(ctx context.Context, opts DockerfileBuildOptions) (*BuildResult, error) {
	if opts.ContextDir == "" {
		opts.ContextDir = "."
	}
	absContext, err := filepath.Abs(opts.ContextDir)
	if err != nil {
		return nil, fmt.Errorf("resolve context: %w", err)
	}
	if err := ensureDirExists(absContext); err != nil {
		return nil, fmt.Errorf("context %s: %w", absContext, err)
	}

	dockerfilePath := opts.DockerfilePath
	if dockerfilePath == "" {
		dockerfilePath = filepath.Join(absContext, "Dockerfile")
	}
	if !filepath.IsAbs(dockerfilePath) {
		dockerfilePath = filepath.Join(absContext, dockerfilePath)
	}
	dockerfileDir, dockerfileName, err := splitDockerfile(dockerfilePath)
	if err != nil {
		return nil, err
	}
	if opts.OCIOutputPath == "" {
		return nil, errors.New("an OCI output path is required")
	}
	if err := os.MkdirAll(opts.OCIOutputPath, 0o755); err != nil {
		return nil, fmt.Errorf("create oci output dir: %w", err)
	}

	opts.Platforms = NormalizePlatforms(opts.Platforms)
	if len(opts.Platforms) == 0 {
		opts.Platforms = []string{DefaultPlatform}
	}
	if opts.ProgressOutput == nil {
		opts.ProgressOutput = os.Stderr
	}
	if opts.ProgressMode == "" {
		opts.ProgressMode = "auto"
	}
	dockerCfg := opts.DockerConfig
	if dockerCfg == nil {
		dockerCfg = config.LoadDefaultConfigFile(os.Stderr)
	}
	cacheDir := opts.CacheDir
	if cacheDir == "" {
		cacheDir = DefaultCacheDir()
	}
	if err := os.MkdirAll(cacheDir, 0o755); err != nil {
		return nil, fmt.Errorf("create cache dir: %w", err)
	}

	clientCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	builderAddr := opts.BuilderAddr
	if builderAddr == "" {
		builderAddr = DefaultBuilderAddress()
	}
	cf := buildkitClientFactory{allowFallback: opts.AllowBuilderFallback, logWriter: opts.ProgressOutput}
	c, _, err := cf.new(clientCtx, builderAddr)
	if err != nil {
		return nil, err
	}
	defer c.Close()

	solveOpt := client.SolveOpt{
		Frontend:      "dockerfile.v0",
		FrontendAttrs: frontendAttrs(dockerfileName, opts),
		LocalDirs: map[string]string{
			"context":    absContext,
			"dockerfile": dockerfileDir,
		},
		Session: buildSessionAttachables(dockerCfg),
		Exports: []client.ExportEntry{{
			Type:      client.ExporterOCI,
			Attrs:     map[string]string{"tar": "false"},
			OutputDir: opts.OCIOutputPath,
		}},
	}
	if !opts.NoCache {
		solveOpt.CacheImports = []client.CacheOptionsEntry{{Type: "local", Attrs: map[string]string{"src": cacheDir}}}
		solveOpt.CacheExports = []client.CacheOptionsEntry{{Type: "local", Attrs: map[string]string{"dest": cacheDir, "mode": "max"}}}
	}

	pw, err := progresswriter.NewPrinter(context.TODO(), opts.ProgressOutput, opts.ProgressMode)
	if err != nil {
		return nil, fmt.Errorf("create progress UI: %w", err)
	}
	if len(opts.ProgressObservers) > 0 {
		ch := make(chan *client.SolveStatus)
		pw = progresswriter.Tee(pw, ch)
		go fanOutSolveStatus(ch, opts.ProgressObservers)
	}

	resp, err := c.Solve(clientCtx, nil, solveOpt, pw.Status())
	<-pw.Done()
	if perr := pw.Err(); perr != nil {
		err = errors.Join(err, perr)
	}
	if err != nil {
		return nil, err
	}

	digest := resp.ExporterResponse["containerimage.digest"]
	if digest == "" {
		digest = resp.ExporterResponse["oci.digest"]
	}
	return &BuildResult{
		Digest:           digest,
		ExporterResponse: resp.ExporterResponse,
		OCIOutputPath:    opts.OCIOutputPath,
	}, nil
}

func frontendAttrs(dockerfileName string, opts DockerfileBuildOptions) map[string]string {
	attrs := map[string]string{
		"filename": dockerfileName,
		"platform": strings.Join(opts.Platforms, ","),
	}
	if opts.Pull {
		attrs["image-resolve-mode"] = "pull"
	}
	if opts.NoCache {
		attrs["no-cache"] = ""
	}
	keys := make([]string, 0, len(opts.BuildArgs))
	for k := range opts.BuildArgs {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		attrs["build-arg:"+k] = opts.BuildArgs[k]
	}
	return attrs
}

func buildSessionAttachables(cfg *configfile.ConfigFile) []session.Attachable {
	return []session.Attachable{
		authprovider.NewDockerAuthProvider(authprovider.DockerAuthProviderConfig{AuthConfigProvider: authprovider.LoadAuthConfig(cfg)}),
	}
}

func ensureDirExists(path string) error {
	info, err := os.Stat(path)
	if err != nil {
		return err
	}
	if !info.IsDir() {
		return fmt.Errorf("%s is not a directory", path)
	}
	return nil
}

func splitDockerfile(path string) (string, string, error) {
	info, err := os.Stat(path)
	if err != nil {
		return "", "", fmt.Errorf("stat dockerfile: %w", err)
	}
	if info.IsDir() {
		return "", "", fmt.Errorf("dockerfile path %s is a directory", path)
	}
	return filepath.Dir(path), filepath.Base(path), nil
}

// NormalizePlatforms trims whitespace and removes duplicates while preserving order.
func NormalizePlatforms(platforms []string) []string {
	seen := map[string]struct{}{}
	out := make([]string, 0, len(platforms))
	for _, p := range platforms {
		p = strings.TrimSpace(p)
		if p == "" {
			continue
		}
		if _, ok := seen[p]; ok {
			continue
		}
		seen[p] = struct{}{}
		out = append(out, p)
	}
	return out
}

func fanOutSolveStatus(ch chan *client.SolveStatus, observers []ProgressObserver) {
	for status := range ch {
		for _, observer := range observers {
			if observer == nil || status == nil {
				continue
			}
			observer.HandleStatus(status)
		}
	}
}
