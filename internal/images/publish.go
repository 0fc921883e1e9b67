// Package images builds the Airflow image and publishes it to the service's
// ECR repository.
package images

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/aws/aws-sdk-go-v2/service/ecr"
	"github.com/go-logr/logr"
	"github.com/google/uuid"

	"github.com/ThreeVenturesTechnology/apache-airflow-aws/pkg/buildkit"
	"github.com/ThreeVenturesTechnology/apache-airflow-aws/pkg/registry"
)

// LatestTag is always pushed first.
const LatestTag = "latest"

// HashTagLength is the length of the unique tag pushed after LatestTag.
const HashTagLength = 16

var ErrNoAuthorization = errors.New("ecr returned no authorization data")

// ECRAPI is the subset of the ECR client used here.
type ECRAPI interface {
	GetAuthorizationToken(ctx context.Context, params *ecr.GetAuthorizationTokenInput, optFns ...func(*ecr.Options)) (*ecr.GetAuthorizationTokenOutput, error)
	ListImages(ctx context.Context, params *ecr.ListImagesInput, optFns ...func(*ecr.Options)) (*ecr.ListImagesOutput, error)
	BatchDeleteImage(ctx context.Context, params *ecr.BatchDeleteImageInput, optFns ...func(*ecr.Options)) (*ecr.BatchDeleteImageOutput, error)
}

// PushFunc uploads an OCI layout under reference.
type PushFunc func(ctx context.Context, layoutPath, reference string, opts registry.PushOptions) error

// Publisher builds the image once and pushes it under LatestTag and then a
// fresh hash tag, re-authenticating before every push.
type Publisher struct {
	ECR        ECRAPI
	Builder    buildkit.Runner
	Push       PushFunc
	Repository string
	Build      buildkit.DockerfileBuildOptions
	// NewTag generates the hash tag; defaults to HashTag.
	NewTag func() string
	Log    logr.Logger
}

type Published struct {
	Repository string
	Digest     string
	References []string
}

// HashTag returns HashTagLength hex characters from a random UUID.
func HashTag() string {
	return strings.ReplaceAll(uuid.NewString(), "-", "")[:HashTagLength]
}

// Publish builds and pushes. A failed push is fatal and later tags are not
// attempted.
func (p *Publisher) Publish(ctx context.Context) (*Published, error) {
	opts := p.Build
	if opts.OCIOutputPath == "" {
		dir, err := os.MkdirTemp("", "airflowctl-oci-")
		if err != nil {
			return nil, fmt.Errorf("create layout dir: %w", err)
		}
		defer os.RemoveAll(dir)
		opts.OCIOutputPath = dir
	}

	p.Log.Info("building image", "repository", p.Repository, "context", opts.ContextDir)
	res, err := p.Builder.BuildDockerfile(ctx, opts)
	if err != nil {
		return nil, fmt.Errorf("build image: %w", err)
	}

	newTag := p.NewTag
	if newTag == nil {
		newTag = HashTag
	}
	push := p.Push
	if push == nil {
		push = registry.PushLayout
	}

	out := &Published{Repository: p.Repository, Digest: res.Digest}
	for _, tag := range []string{LatestTag, newTag()} {
		login, err := Authorize(ctx, p.ECR)
		if err != nil {
			return out, err
		}
		ref := fmt.Sprintf("%s/%s:%s", login.Registry, p.Repository, tag)
		p.Log.Info("pushing image", "reference", ref)
		if err := push(ctx, res.OCIOutputPath, ref, registry.PushOptions{Credentials: login.Credentials}); err != nil {
			return out, fmt.Errorf("push %s: %w", ref, err)
		}
		out.References = append(out.References, ref)
	}
	return out, nil
}

// Login is a short-lived registry credential.
type Login struct {
	Registry    string
	Credentials registry.Credentials
}

// Authorize exchanges the caller's AWS identity for registry credentials.
func Authorize(ctx context.Context, api ECRAPI) (Login, error) {
	out, err := api.GetAuthorizationToken(ctx, &ecr.GetAuthorizationTokenInput{})
	if err != nil {
		return Login{}, fmt.Errorf("get ecr authorization token: %w", err)
	}
	if len(out.AuthorizationData) == 0 || out.AuthorizationData[0].AuthorizationToken == nil {
		return Login{}, ErrNoAuthorization
	}
	data := out.AuthorizationData[0]
	raw, err := base64.StdEncoding.DecodeString(*data.AuthorizationToken)
	if err != nil {
		return Login{}, fmt.Errorf("decode ecr token: %w", err)
	}
	user, pass, ok := strings.Cut(string(raw), ":")
	if !ok {
		return Login{}, fmt.Errorf("decode ecr token: missing separator")
	}
	host := ""
	if data.ProxyEndpoint != nil {
		host = strings.TrimPrefix(*data.ProxyEndpoint, "https://")
	}
	return Login{Registry: host, Credentials: registry.Credentials{Username: user, Password: pass}}, nil
}
