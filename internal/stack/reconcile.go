package stack

import (
	"context"
	"errors"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/cloudformation"
	"github.com/aws/aws-sdk-go-v2/service/cloudformation/types"
	"github.com/go-logr/logr"

	"github.com/ThreeVenturesTechnology/apache-airflow-aws/internal/appconfig"
	"github.com/ThreeVenturesTechnology/apache-airflow-aws/internal/services"
	"github.com/ThreeVenturesTechnology/apache-airflow-aws/internal/templates"
	"github.com/ThreeVenturesTechnology/apache-airflow-aws/internal/waiter"
)

// CreateTimeoutMinutes bounds a stack creation on the backend side.
const CreateTimeoutMinutes = 30

var capabilities = []types.Capability{
	types.CapabilityCapabilityIam,
	types.CapabilityCapabilityNamedIam,
}

// DesiredState re-asserts service counts after an infrastructure update.
type DesiredState interface {
	ScaleToDesired(ctx context.Context) error
}

// Reconciler applies descriptors one at a time; a single mutation is in
// flight at any moment.
type Reconciler struct {
	API    CloudFormationAPI
	Tags   []types.Tag
	Policy waiter.Policy
	// Services may be nil, in which case updates do not touch ECS.
	Services DesiredState
	Log      logr.Logger
}

// Tags converts the configured default tags.
func Tags(in []appconfig.Tag) []types.Tag {
	out := make([]types.Tag, 0, len(in))
	for _, t := range in {
		out = append(out, types.Tag{Key: aws.String(t.Key), Value: aws.String(t.Value)})
	}
	return out
}

// Apply creates or updates every in-scope descriptor, foundation tier first.
// It stops at the first failure; stacks already applied are left as they
// are. The returned outcomes cover every descriptor processed so far.
func (r *Reconciler) Apply(ctx context.Context, ds []templates.Descriptor, inv Inventory, scope Scope) ([]Outcome, error) {
	ordered := append([]templates.Descriptor(nil), ds...)
	templates.Sort(ordered, templates.Ascending)

	outcomes := make([]Outcome, 0, len(ordered))
	for _, tier := range []templates.Tier{templates.TierFoundation, templates.TierApplication} {
		for _, d := range templates.ByTier(ordered, tier) {
			out := r.apply(ctx, d, Classify(d, inv, scope), inv)
			outcomes = append(outcomes, out)
			if out.Result == ResultFailed {
				return outcomes, out.Err
			}
		}
	}
	return outcomes, nil
}

func (r *Reconciler) apply(ctx context.Context, d templates.Descriptor, action Action, inv Inventory) Outcome {
	out := Outcome{Stack: d.StackName, Action: action}
	var err error
	switch action {
	case ActionSkip:
		r.Log.V(1).Info("stack out of scope", "stack", d.StackName, "tier", d.Tier.String())
		out.Result = ResultNoopSkipped
		return out
	case ActionCreate:
		err = r.create(ctx, d, inv)
	case ActionUpdate:
		var noop bool
		noop, err = r.update(ctx, d)
		if err == nil && noop {
			out.Result = ResultNoopSkipped
			return out
		}
	}
	if err != nil {
		r.Log.Error(err, "stack operation failed", "stack", d.StackName, "action", action.String())
		out.Result = ResultFailed
		out.Err = err
		return out
	}
	out.Result = ResultApplied
	return out
}

func (r *Reconciler) create(ctx context.Context, d templates.Descriptor, inv Inventory) error {
	if status, ok := inv.Lingering(d.StackName); ok {
		return fmt.Errorf("%w: %s is in %s; delete it or wait for it to settle before deploying", ErrStackBlocked, d.StackName, status)
	}
	r.Log.Info("creating stack", "stack", d.StackName, "template", d.Filename)
	_, err := r.API.CreateStack(ctx, &cloudformation.CreateStackInput{
		StackName:        aws.String(d.StackName),
		TemplateBody:     aws.String(d.Body),
		Capabilities:     capabilities,
		TimeoutInMinutes: aws.Int32(CreateTimeoutMinutes),
		OnFailure:        types.OnFailureRollback,
		Tags:             r.Tags,
	})
	if err != nil {
		return fmt.Errorf("create stack %s: %w", d.StackName, err)
	}
	if err := waitFor(ctx, r.API, r.Policy, d.StackName, createRule); err != nil {
		return err
	}
	r.Log.Info("create complete", "stack", d.StackName)
	return nil
}

// update reports noop=true when the backend has nothing to change.
func (r *Reconciler) update(ctx context.Context, d templates.Descriptor) (bool, error) {
	r.Log.Info("updating stack", "stack", d.StackName, "template", d.Filename)
	_, err := r.API.UpdateStack(ctx, &cloudformation.UpdateStackInput{
		StackName:    aws.String(d.StackName),
		TemplateBody: aws.String(d.Body),
		Capabilities: capabilities,
		Tags:         r.Tags,
	})
	if err != nil {
		if isNoUpdates(err) {
			r.Log.Info("no updates to be performed", "stack", d.StackName)
			return true, nil
		}
		return false, fmt.Errorf("update stack %s: %w", d.StackName, err)
	}
	if err := waitFor(ctx, r.API, r.Policy, d.StackName, updateRule); err != nil {
		return false, err
	}
	r.Log.Info("update complete", "stack", d.StackName)
	if r.Services == nil {
		return false, nil
	}
	if err := r.Services.ScaleToDesired(ctx); err != nil {
		if errors.Is(err, services.ErrNotDeployed) {
			r.Log.Info("services not deployed yet, skipping desired count", "stack", d.StackName, "reason", err.Error())
			return false, nil
		}
		return false, fmt.Errorf("re-assert desired counts after updating %s: %w", d.StackName, err)
	}
	return false, nil
}
