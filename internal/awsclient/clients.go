// Package awsclient loads the shared AWS configuration and builds the service
// clients airflowctl talks to.
package awsclient

import (
	"context"
	"fmt"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/cloudformation"
	"github.com/aws/aws-sdk-go-v2/service/ec2"
	"github.com/aws/aws-sdk-go-v2/service/ecr"
	"github.com/aws/aws-sdk-go-v2/service/ecs"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/secretsmanager"
	"github.com/aws/aws-sdk-go-v2/service/sts"

	"github.com/ThreeVenturesTechnology/apache-airflow-aws/internal/version"
)

// Clients bundles one client per AWS service, all sharing a single aws.Config.
type Clients struct {
	Config         aws.Config
	CloudFormation *cloudformation.Client
	ECS            *ecs.Client
	EC2            *ec2.Client
	ECR            *ecr.Client
	STS            *sts.Client
	SecretsManager *secretsmanager.Client
	S3             *s3.Client
}

// Load resolves credentials for profile in region. Both values come from the
// validated run configuration; the SDK's own environment lookups are not
// relied on for them.
func Load(ctx context.Context, region, profile string) (*Clients, error) {
	opts := []func(*awsconfig.LoadOptions) error{
		awsconfig.WithRegion(strings.TrimSpace(region)),
		awsconfig.WithAppID(version.UserAgent()),
	}
	if p := strings.TrimSpace(profile); p != "" {
		opts = append(opts, awsconfig.WithSharedConfigProfile(p))
	}
	cfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("load aws config (region %s, profile %s): %w", region, profile, err)
	}
	return &Clients{
		Config:         cfg,
		CloudFormation: cloudformation.NewFromConfig(cfg),
		ECS:            ecs.NewFromConfig(cfg),
		EC2:            ec2.NewFromConfig(cfg),
		ECR:            ecr.NewFromConfig(cfg),
		STS:            sts.NewFromConfig(cfg),
		SecretsManager: secretsmanager.NewFromConfig(cfg),
		S3:             s3.NewFromConfig(cfg),
	}, nil
}

// AccountID returns the caller's AWS account id.
func AccountID(ctx context.Context, api STSAPI) (string, error) {
	out, err := api.GetCallerIdentity(ctx, &sts.GetCallerIdentityInput{})
	if err != nil {
		return "", fmt.Errorf("get caller identity: %w", err)
	}
	return aws.ToString(out.Account), nil
}

// STSAPI is the subset of the STS client used here.
type STSAPI interface {
	GetCallerIdentity(ctx context.Context, params *sts.GetCallerIdentityInput, optFns ...func(*sts.Options)) (*sts.GetCallerIdentityOutput, error)
}
