package buildkit

import (
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/go-logr/logr/funcr"
	"github.com/moby/buildkit/client"
	"github.com/opencontainers/go-digest"
)

func TestNormalizePlatformsDropsBlanksAndDuplicates(t *testing.T) {
	got := NormalizePlatforms([]string{" linux/amd64", "", "linux/arm64", "linux/amd64 "})
	if strings.Join(got, ",") != "linux/amd64,linux/arm64" {
		t.Fatalf("unexpected platforms %v", got)
	}
}

func TestFrontendAttrsSortsBuildArgs(t *testing.T) {
	attrs := frontendAttrs("Dockerfile", DockerfileBuildOptions{
		Platforms: []string{DefaultPlatform},
		BuildArgs: map[string]string{"B": "2", "A": "1"},
		NoCache:   true,
	})
	if attrs["filename"] != "Dockerfile" || attrs["platform"] != DefaultPlatform {
		t.Fatalf("unexpected attrs %v", attrs)
	}
	if attrs["build-arg:A"] != "1" || attrs["build-arg:B"] != "2" {
		t.Fatalf("build args missing: %v", attrs)
	}
	if _, ok := attrs["no-cache"]; !ok {
		t.Fatalf("no-cache not forwarded")
	}
}

func TestBuildDockerfileRequiresDockerfile(t *testing.T) {
	dir := t.TempDir()
	_, err := BuildDockerfile(context.Background(), DockerfileBuildOptions{ContextDir: dir, OCIOutputPath: filepath.Join(dir, "out")})
	if err == nil || !strings.Contains(err.Error(), "stat dockerfile") {
		t.Fatalf("expected missing dockerfile error, got %v", err)
	}
}

func TestBuildDockerfileRequiresOutputPath(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "Dockerfile"), []byte("FROM scratch\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	_, err := BuildDockerfile(context.Background(), DockerfileBuildOptions{ContextDir: dir})
	if err == nil || !strings.Contains(err.Error(), "OCI output path") {
		t.Fatalf("expected output path error, got %v", err)
	}
}

func TestIsDialError(t *testing.T) {
	if !isDialError(errors.New("dial unix /run/buildkit.sock: connect: connection refused")) {
		t.Fatalf("connection refused should be a dial error")
	}
	if isDialError(errors.New("failed to solve: exit code 1")) {
		t.Fatalf("solve failure is not a dial error")
	}
}

func TestDockerFallbackProvisionsBuilderOnce(t *testing.T) {
	origLook, origRun := dockerLookPath, dockerBuildxRunner
	t.Cleanup(func() {
		dockerLookPath, dockerBuildxRunner = origLook, origRun
		dockerFallback = dockerFallbackMemo{}
	})
	dockerFallback = dockerFallbackMemo{}
	dockerLookPath = func(string) (string, error) { return "/usr/bin/docker", nil }
	var calls []string
	dockerBuildxRunner = func(_ context.Context, _ io.Writer, args ...string) error {
		calls = append(calls, strings.Join(args, " "))
		if args[0] == "inspect" && len(args) == 2 {
			return errors.New("no builder")
		}
		return nil
	}

	for i := 0; i < 2; i++ {
		addr, err := ensureDockerBackedBuilder(context.Background(), io.Discard)
		if err != nil {
			t.Fatalf("ensureDockerBackedBuilder: %v", err)
		}
		if addr != "docker-container://buildx_buildkit_airflowctl-buildkit0" {
			t.Fatalf("unexpected address %s", addr)
		}
	}
	if len(calls) != 3 {
		t.Fatalf("expected inspect, create, bootstrap once; got %v", calls)
	}
}

func TestLogObserverEmitsWholeLines(t *testing.T) {
	var lines []string
	log := funcr.New(func(_, args string) { lines = append(lines, args) }, funcr.Options{})
	obs := NewLogObserver(log)
	v := digest.FromString("step")

	obs.HandleStatus(&client.SolveStatus{
		Vertexes: []*client.Vertex{{Digest: v, Name: "RUN pip install"}},
		Logs:     []*client.VertexLog{{Vertex: v, Data: []byte("Collecting apache-")}},
	})
	if len(lines) != 0 {
		t.Fatalf("partial line emitted early: %v", lines)
	}
	now := time.Now()
	obs.HandleStatus(&client.SolveStatus{
		Vertexes: []*client.Vertex{{Digest: v, Name: "RUN pip install", Completed: &now}},
		Logs:     []*client.VertexLog{{Vertex: v, Data: []byte("airflow\nDone\n")}},
	})
	if len(lines) != 2 {
		t.Fatalf("expected 2 lines, got %v", lines)
	}
	if !strings.Contains(lines[0], "Collecting apache-airflow") || !strings.Contains(lines[0], "RUN pip install") {
		t.Fatalf("unexpected first line %q", lines[0])
	}
}
