package services

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/ec2"
	ec2types "github.com/aws/aws-sdk-go-v2/service/ec2/types"
	"github.com/aws/aws-sdk-go-v2/service/ecs"
	ecstypes "github.com/aws/aws-sdk-go-v2/service/ecs/types"

	"github.com/ThreeVenturesTechnology/apache-airflow-aws/internal/waiter"
)

// ErrTaskFailed is returned when the init task stops with a non-zero exit code.
var ErrTaskFailed = errors.New("init task failed")

const taskStopped = "STOPPED"

// InitTask is the one-off Fargate task that prepares the Airflow database.
type InitTask struct {
	TaskDefinition string
	// SubnetTags must all match for a subnet to be used.
	SubnetTags map[string]string
}

// RunInitTask starts the init task in the tagged subnets, waits for it to
// stop, and then re-asserts the desired counts.
func (s *Scaler) RunInitTask(ctx context.Context) error {
	subnets, err := s.subnets(ctx)
	if err != nil {
		return err
	}
	s.Log.Info("running init task", "cluster", s.Cluster, "taskDefinition", s.Init.TaskDefinition, "subnets", subnets)
	out, err := s.ECS.RunTask(ctx, &ecs.RunTaskInput{
		Cluster:         aws.String(s.Cluster),
		TaskDefinition:  aws.String(s.Init.TaskDefinition),
		LaunchType:      ecstypes.LaunchTypeFargate,
		PlatformVersion: aws.String("LATEST"),
		Count:           aws.Int32(1),
		NetworkConfiguration: &ecstypes.NetworkConfiguration{
			AwsvpcConfiguration: &ecstypes.AwsVpcConfiguration{
				Subnets:        subnets,
				AssignPublicIp: ecstypes.AssignPublicIpEnabled,
			},
		},
	})
	if err != nil {
		return fmt.Errorf("run %s: %w", s.Init.TaskDefinition, classify(err))
	}
	if len(out.Failures) > 0 {
		f := out.Failures[0]
		return fmt.Errorf("%w: run %s: %s %s", ErrTaskFailed, s.Init.TaskDefinition, aws.ToString(f.Reason), aws.ToString(f.Detail))
	}
	if len(out.Tasks) == 0 {
		return fmt.Errorf("%w: run %s returned no task", ErrTaskFailed, s.Init.TaskDefinition)
	}
	arn := aws.ToString(out.Tasks[0].TaskArn)
	if err := s.waitTask(ctx, arn); err != nil {
		return err
	}
	s.Log.Info("init task finished", "task", arn)
	return s.ScaleToDesired(ctx)
}

func (s *Scaler) waitTask(ctx context.Context, arn string) error {
	task, err := waiter.For(ctx, s.Policy, func(ctx context.Context) (string, bool, error) {
		out, err := s.ECS.DescribeTasks(ctx, &ecs.DescribeTasksInput{
			Cluster: aws.String(s.Cluster),
			Tasks:   []string{arn},
		})
		if err != nil {
			return "", false, fmt.Errorf("describe task %s: %w", arn, err)
		}
		if len(out.Tasks) == 0 {
			return "", false, nil
		}
		t := out.Tasks[0]
		status := aws.ToString(t.LastStatus)
		if status != taskStopped {
			return status, false, nil
		}
		for _, c := range t.Containers {
			if c.ExitCode != nil && *c.ExitCode != 0 {
				return status, false, fmt.Errorf("%w: container %s exited with %d: %s", ErrTaskFailed, aws.ToString(c.Name), *c.ExitCode, aws.ToString(t.StoppedReason))
			}
		}
		return status, true, nil
	})
	if err != nil {
		return fmt.Errorf("wait for init task (last status %s): %w", task, err)
	}
	return nil
}

func (s *Scaler) subnets(ctx context.Context) ([]string, error) {
	keys := make([]string, 0, len(s.Init.SubnetTags))
	for k := range s.Init.SubnetTags {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	filters := make([]ec2types.Filter, 0, len(keys))
	for _, k := range keys {
		filters = append(filters, ec2types.Filter{
			Name:   aws.String("tag:" + k),
			Values: []string{s.Init.SubnetTags[k]},
		})
	}
	var ids []string
	p := ec2.NewDescribeSubnetsPaginator(s.EC2, &ec2.DescribeSubnetsInput{Filters: filters})
	for p.HasMorePages() {
		page, err := p.NextPage(ctx)
		if err != nil {
			return nil, fmt.Errorf("describe subnets: %w", err)
		}
		for _, sn := range page.Subnets {
			ids = append(ids, aws.ToString(sn.SubnetId))
		}
	}
	if len(ids) == 0 {
		pairs := make([]string, 0, len(keys))
		for _, k := range keys {
			pairs = append(pairs, k+"="+s.Init.SubnetTags[k])
		}
		return nil, fmt.Errorf("%w: no subnets tagged %s", ErrNotDeployed, strings.Join(pairs, ", "))
	}
	return ids, nil
}
