package stack

import (
	"context"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/cloudformation"

	"github.com/ThreeVenturesTechnology/apache-airflow-aws/internal/templates"
)

// Confirm asks the operator before anything is deleted.
type Confirm func(ctx context.Context) (bool, error)

// Destroy deletes every existing stack, application tier first, waiting for
// each deletion before starting the next. Without confirmation it returns
// (nil, nil) and makes no backend call.
func (r *Reconciler) Destroy(ctx context.Context, ds []templates.Descriptor, inv Inventory, confirm Confirm) ([]Outcome, error) {
	if confirm == nil {
		r.Log.Info("destroy not confirmed, nothing deleted")
		return nil, nil
	}
	ok, err := confirm(ctx)
	if err != nil {
		return nil, err
	}
	if !ok {
		r.Log.Info("destroy not confirmed, nothing deleted")
		return nil, nil
	}

	ordered := append([]templates.Descriptor(nil), ds...)
	templates.Sort(ordered, templates.Descending)

	var outcomes []Outcome
	for _, d := range ordered {
		if !inv.Exists(d.StackName) {
			r.Log.V(1).Info("stack does not exist, nothing to delete", "stack", d.StackName)
			continue
		}
		out := Outcome{Stack: d.StackName, Action: ActionDelete, Result: ResultApplied}
		if err := r.delete(ctx, d.StackName); err != nil {
			r.Log.Error(err, "stack operation failed", "stack", d.StackName, "action", ActionDelete.String())
			out.Result = ResultFailed
			out.Err = err
			return append(outcomes, out), err
		}
		outcomes = append(outcomes, out)
	}
	return outcomes, nil
}

func (r *Reconciler) delete(ctx context.Context, name string) error {
	r.Log.Info("deleting stack", "stack", name)
	if _, err := r.API.DeleteStack(ctx, &cloudformation.DeleteStackInput{StackName: aws.String(name)}); err != nil {
		return fmt.Errorf("delete stack %s: %w", name, err)
	}
	if err := waitFor(ctx, r.API, r.Policy, name, deleteRule); err != nil {
		return err
	}
	r.Log.Info("delete complete", "stack", name)
	return nil
}
