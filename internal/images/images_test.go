package images

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"reflect"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/ecr"
	ecrtypes "github.com/aws/aws-sdk-go-v2/service/ecr/types"
	"github.com/go-logr/logr"

	"github.com/ThreeVenturesTechnology/apache-airflow-aws/pkg/buildkit"
	"github.com/ThreeVenturesTechnology/apache-airflow-aws/pkg/registry"
)

type fakeECR struct {
	tokenCalls int
	images     []ecrtypes.ImageIdentifier
	pageSize   int
	missing    bool
	batches    [][]ecrtypes.ImageIdentifier
}

func (f *fakeECR) GetAuthorizationToken(context.Context, *ecr.GetAuthorizationTokenInput, ...func(*ecr.Options)) (*ecr.GetAuthorizationTokenOutput, error) {
	f.tokenCalls++
	token := base64.StdEncoding.EncodeToString([]byte(fmt.Sprintf("AWS:secret-%d", f.tokenCalls)))
	return &ecr.GetAuthorizationTokenOutput{AuthorizationData: []ecrtypes.AuthorizationData{{
		AuthorizationToken: aws.String(token),
		ProxyEndpoint:      aws.String("https://123456789012.dkr.ecr.eu-west-1.amazonaws.com"),
	}}}, nil
}

func (f *fakeECR) ListImages(_ context.Context, in *ecr.ListImagesInput, _ ...func(*ecr.Options)) (*ecr.ListImagesOutput, error) {
	if f.missing {
		return nil, &ecrtypes.RepositoryNotFoundException{Message: aws.String("nope")}
	}
	start := 0
	if in.NextToken != nil {
		fmt.Sscanf(*in.NextToken, "%d", &start)
	}
	end := min(start+f.pageSize, len(f.images))
	out := &ecr.ListImagesOutput{ImageIds: f.images[start:end]}
	if end < len(f.images) {
		out.NextToken = aws.String(fmt.Sprint(end))
	}
	return out, nil
}

func (f *fakeECR) BatchDeleteImage(_ context.Context, in *ecr.BatchDeleteImageInput, _ ...func(*ecr.Options)) (*ecr.BatchDeleteImageOutput, error) {
	f.batches = append(f.batches, in.ImageIds)
	return &ecr.BatchDeleteImageOutput{ImageIds: in.ImageIds}, nil
}

type fakeRunner struct {
	builds int
	opts   buildkit.DockerfileBuildOptions
	err    error
}

func (f *fakeRunner) BuildDockerfile(_ context.Context, opts buildkit.DockerfileBuildOptions) (*buildkit.BuildResult, error) {
	f.builds++
	f.opts = opts
	if f.err != nil {
		return nil, f.err
	}
	return &buildkit.BuildResult{Digest: "sha256:abc", OCIOutputPath: opts.OCIOutputPath}, nil
}

type pushCall struct {
	ref      string
	password string
}

func TestPublishPushesLatestThenHashWithFreshTokens(t *testing.T) {
	api := &fakeECR{}
	runner := &fakeRunner{}
	var pushes []pushCall
	p := &Publisher{
		ECR:        api,
		Builder:    runner,
		Repository: "airflow-myservice-prod",
		Build:      buildkit.DockerfileBuildOptions{ContextDir: "."},
		NewTag:     func() string { return "0123456789abcdef" },
		Push: func(_ context.Context, layout, ref string, opts registry.PushOptions) error {
			if layout == "" {
				t.Fatalf("push without a layout")
			}
			pushes = append(pushes, pushCall{ref: ref, password: opts.Credentials.Password})
			return nil
		},
		Log: logr.Discard(),
	}

	out, err := p.Publish(context.Background())
	if err != nil {
		t.Fatalf("Publish: %v", err)
	}
	host := "123456789012.dkr.ecr.eu-west-1.amazonaws.com"
	want := []pushCall{
		{ref: host + "/airflow-myservice-prod:latest", password: "secret-1"},
		{ref: host + "/airflow-myservice-prod:0123456789abcdef", password: "secret-2"},
	}
	if !reflect.DeepEqual(pushes, want) {
		t.Fatalf("pushes = %+v", pushes)
	}
	if runner.builds != 1 || out.Digest != "sha256:abc" || len(out.References) != 2 {
		t.Fatalf("builds=%d out=%+v", runner.builds, out)
	}
}

func TestPublishStopsAtFirstPushFailure(t *testing.T) {
	boom := errors.New("denied")
	calls := 0
	p := &Publisher{
		ECR:        &fakeECR{},
		Builder:    &fakeRunner{},
		Repository: "r",
		NewTag:     HashTag,
		Push: func(context.Context, string, string, registry.PushOptions) error {
			calls++
			return boom
		},
		Log: logr.Discard(),
	}
	if _, err := p.Publish(context.Background()); !errors.Is(err, boom) {
		t.Fatalf("expected push error, got %v", err)
	}
	if calls != 1 {
		t.Fatalf("expected a single push attempt, got %d", calls)
	}
}

func TestPublishDoesNotPushWhenBuildFails(t *testing.T) {
	api := &fakeECR{}
	p := &Publisher{ECR: api, Builder: &fakeRunner{err: errors.New("solve failed")}, Repository: "r", Log: logr.Discard(),
		Push: func(context.Context, string, string, registry.PushOptions) error {
			t.Fatalf("push after a failed build")
			return nil
		}}
	if _, err := p.Publish(context.Background()); err == nil {
		t.Fatalf("expected build error")
	}
	if api.tokenCalls != 0 {
		t.Fatalf("no token should be requested after a failed build")
	}
}

func TestHashTagShape(t *testing.T) {
	a, b := HashTag(), HashTag()
	if len(a) != HashTagLength || a == b {
		t.Fatalf("unexpected tags %q %q", a, b)
	}
}

func TestAuthorizeRejectsMalformedToken(t *testing.T) {
	api := &badTokenECR{token: base64.StdEncoding.EncodeToString([]byte("no-separator"))}
	if _, err := Authorize(context.Background(), api); err == nil {
		t.Fatalf("expected error for token without separator")
	}
}

type badTokenECR struct {
	fakeECR
	token string
}

func (b *badTokenECR) GetAuthorizationToken(context.Context, *ecr.GetAuthorizationTokenInput, ...func(*ecr.Options)) (*ecr.GetAuthorizationTokenOutput, error) {
	return &ecr.GetAuthorizationTokenOutput{AuthorizationData: []ecrtypes.AuthorizationData{{AuthorizationToken: aws.String(b.token)}}}, nil
}

func TestPurgeDeletesEveryImageInBatches(t *testing.T) {
	api := &fakeECR{pageSize: 40}
	for i := 0; i < 150; i++ {
		api.images = append(api.images, ecrtypes.ImageIdentifier{ImageDigest: aws.String(fmt.Sprintf("sha256:%03d", i))})
	}
	n, err := Purge(context.Background(), api, "airflow-myservice-prod", logr.Discard())
	if err != nil {
		t.Fatalf("Purge: %v", err)
	}
	if n != 150 || len(api.batches) != 2 || len(api.batches[0]) != 100 || len(api.batches[1]) != 50 {
		t.Fatalf("n=%d batches=%d", n, len(api.batches))
	}
}

func TestPurgeMissingRepositoryIsEmpty(t *testing.T) {
	api := &fakeECR{missing: true}
	n, err := Purge(context.Background(), api, "gone", logr.Discard())
	if err != nil || n != 0 || len(api.batches) != 0 {
		t.Fatalf("n=%d err=%v batches=%d", n, err, len(api.batches))
	}
}
