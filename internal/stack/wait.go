package stack

import (
	"context"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/cloudformation"
	"github.com/aws/aws-sdk-go-v2/service/cloudformation/types"

	"github.com/ThreeVenturesTechnology/apache-airflow-aws/internal/waiter"
)

// statusRule is the terminal-state predicate for one kind of operation.
type statusRule struct {
	op      string
	success types.StackStatus
	failure []types.StackStatus
	// goneOK treats a stack that no longer exists as success.
	goneOK bool
}

var (
	createRule = statusRule{
		op:      "create",
		success: types.StackStatusCreateComplete,
		failure: []types.StackStatus{
			types.StackStatusCreateFailed,
			types.StackStatusRollbackInProgress,
			types.StackStatusRollbackComplete,
			types.StackStatusRollbackFailed,
			types.StackStatusDeleteInProgress,
			types.StackStatusDeleteComplete,
			types.StackStatusDeleteFailed,
		},
	}
	updateRule = statusRule{
		op:      "update",
		success: types.StackStatusUpdateComplete,
		failure: []types.StackStatus{
			types.StackStatusUpdateFailed,
			types.StackStatusUpdateRollbackComplete,
			types.StackStatusUpdateRollbackFailed,
		},
	}
	deleteRule = statusRule{
		op:      "delete",
		success: types.StackStatusDeleteComplete,
		failure: []types.StackStatus{types.StackStatusDeleteFailed},
		goneOK:  true,
	}
)

func (r statusRule) failed(s types.StackStatus) bool {
	for _, f := range r.failure {
		if s == f {
			return true
		}
	}
	return false
}

// waitFor polls DescribeStacks under policy until the rule reaches a
// terminal state.
func waitFor(ctx context.Context, api CloudFormationAPI, policy waiter.Policy, name string, rule statusRule) error {
	_, err := waiter.For(ctx, policy, func(ctx context.Context) (types.StackStatus, bool, error) {
		out, err := api.DescribeStacks(ctx, &cloudformation.DescribeStacksInput{StackName: aws.String(name)})
		if err != nil {
			if rule.goneOK && isNotFound(err) {
				return types.StackStatusDeleteComplete, true, nil
			}
			return "", false, fmt.Errorf("describe stack %s: %w", name, err)
		}
		if len(out.Stacks) == 0 {
			if rule.goneOK {
				return types.StackStatusDeleteComplete, true, nil
			}
			return "", false, nil
		}
		st := out.Stacks[0]
		switch {
		case st.StackStatus == rule.success:
			return st.StackStatus, true, nil
		case rule.failed(st.StackStatus):
			return st.StackStatus, false, fmt.Errorf("%w: %s %s ended in %s: %s", ErrStackFailed, rule.op, name, st.StackStatus, aws.ToString(st.StackStatusReason))
		default:
			return st.StackStatus, false, nil
		}
	})
	if err != nil {
		return fmt.Errorf("wait for %s of %s: %w", rule.op, name, err)
	}
	return nil
}
