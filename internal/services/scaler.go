// Package services keeps the Airflow ECS services at their configured size:
// it re-asserts desired counts, forces redeployments of running services and
// runs the one-off init task.
package services

import (
	"context"
	"errors"
	"fmt"
	"slices"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/ecs"
	ecstypes "github.com/aws/aws-sdk-go-v2/service/ecs/types"
	"github.com/go-logr/logr"

	"github.com/ThreeVenturesTechnology/apache-airflow-aws/internal/appconfig"
	"github.com/ThreeVenturesTechnology/apache-airflow-aws/internal/waiter"
)

// restartOrder brings the webserver back last, after the scheduler and
// workers it reports on.
var restartOrder = []string{appconfig.ServiceScheduler, appconfig.ServiceWorkers, appconfig.ServiceWebserver}

// ErrNotDeployed is returned when the cluster or a service does not exist yet.
var ErrNotDeployed = errors.New("ecs service not deployed")

// Target is one logical service and its statically configured count.
type Target struct {
	Logical      string
	Name         string
	DesiredCount int32
}

type Scaler struct {
	ECS     ECSAPI
	EC2     EC2API
	Cluster string
	Targets []Target
	// Init describes the one-off task run by RunInitTask.
	Init   InitTask
	Policy waiter.Policy
	Log    logr.Logger
}

// NewScaler derives cluster, service names and counts from cfg.
func NewScaler(cfg appconfig.Config, ecsAPI ECSAPI, ec2API EC2API, log logr.Logger) *Scaler {
	targets := make([]Target, 0, len(appconfig.LogicalServices))
	for _, svc := range appconfig.LogicalServices {
		targets = append(targets, Target{
			Logical:      svc,
			Name:         cfg.ECSServiceName(svc),
			DesiredCount: cfg.DesiredCounts[svc],
		})
	}
	return &Scaler{
		ECS:     ecsAPI,
		EC2:     ec2API,
		Cluster: cfg.ClusterName(),
		Targets: targets,
		Init: InitTask{
			TaskDefinition: cfg.InitTaskDefinition(),
			SubnetTags: map[string]string{
				"Environment": cfg.Environment,
				"Service":     cfg.ServiceName,
			},
		},
		Policy: waiter.DefaultPolicy(),
		Log:    log,
	}
}

// ScaleToDesired sets every service to its configured count regardless of
// what is running now.
func (s *Scaler) ScaleToDesired(ctx context.Context) error {
	for _, t := range s.Targets {
		s.Log.Info("setting desired count", "cluster", s.Cluster, "service", t.Name, "desiredCount", t.DesiredCount)
		_, err := s.ECS.UpdateService(ctx, &ecs.UpdateServiceInput{
			Cluster:      aws.String(s.Cluster),
			Service:      aws.String(t.Name),
			DesiredCount: aws.Int32(t.DesiredCount),
		})
		if err != nil {
			return fmt.Errorf("scale %s: %w", t.Name, classify(err))
		}
	}
	return nil
}

// Restart forces a new deployment of every service that currently has
// running tasks. Services scaled to zero stay untouched. The names of the
// restarted services are returned in restart order.
func (s *Scaler) Restart(ctx context.Context) ([]string, error) {
	names := make([]string, 0, len(s.Targets))
	for _, t := range s.Targets {
		names = append(names, t.Name)
	}
	out, err := s.ECS.DescribeServices(ctx, &ecs.DescribeServicesInput{
		Cluster:  aws.String(s.Cluster),
		Services: names,
	})
	if err != nil {
		return nil, fmt.Errorf("describe services in %s: %w", s.Cluster, classify(err))
	}
	running := make(map[string]int32, len(out.Services))
	for _, svc := range out.Services {
		running[aws.ToString(svc.ServiceName)] = svc.RunningCount
	}
	for _, f := range out.Failures {
		s.Log.V(1).Info("service not described", "arn", aws.ToString(f.Arn), "reason", aws.ToString(f.Reason))
	}

	var restarted []string
	for _, t := range inRestartOrder(s.Targets) {
		if running[t.Name] <= 0 {
			s.Log.Info("service not running, leaving it alone", "service", t.Name)
			continue
		}
		s.Log.Info("restarting service", "cluster", s.Cluster, "service", t.Name, "runningCount", running[t.Name])
		_, err := s.ECS.UpdateService(ctx, &ecs.UpdateServiceInput{
			Cluster:            aws.String(s.Cluster),
			Service:            aws.String(t.Name),
			ForceNewDeployment: true,
		})
		if err != nil {
			return restarted, fmt.Errorf("restart %s: %w", t.Name, classify(err))
		}
		restarted = append(restarted, t.Name)
	}
	return restarted, nil
}

func inRestartOrder(targets []Target) []Target {
	rank := func(t Target) int {
		if i := slices.Index(restartOrder, t.Logical); i >= 0 {
			return i
		}
		return len(restartOrder)
	}
	out := slices.Clone(targets)
	slices.SortStableFunc(out, func(a, b Target) int { return rank(a) - rank(b) })
	return out
}

func classify(err error) error {
	var (
		clusterMissing *ecstypes.ClusterNotFoundException
		serviceMissing *ecstypes.ServiceNotFoundException
		serviceGone    *ecstypes.ServiceNotActiveException
	)
	if errors.As(err, &clusterMissing) || errors.As(err, &serviceMissing) || errors.As(err, &serviceGone) {
		return fmt.Errorf("%w: %w", ErrNotDeployed, err)
	}
	return err
}
