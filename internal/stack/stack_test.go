package stack

import (
	"context"
	"errors"
	"fmt"
	"reflect"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/cloudformation/types"
	"github.com/go-logr/logr"

	"github.com/ThreeVenturesTechnology/apache-airflow-aws/internal/appconfig"
	"github.com/ThreeVenturesTechnology/apache-airflow-aws/internal/services"
	"github.com/ThreeVenturesTechnology/apache-airflow-aws/internal/templates"
	"github.com/ThreeVenturesTechnology/apache-airflow-aws/internal/waiter"
)

const (
	network   = "myservice-prod-network"
	iam       = "myservice-prod-iam"
	scheduler = "myservice-prod-airflow_scheduler"
)

func descriptors() []templates.Descriptor {
	return []templates.Descriptor{
		{StackName: scheduler, Filename: "02_airflow_scheduler.yml.j2", Order: 2, Tier: templates.TierApplication, Body: "Resources: {}"},
		{StackName: network, Filename: "01_network.yml.j2", Order: 1, Tier: templates.TierFoundation, Body: "Resources: {}"},
		{StackName: iam, Filename: "03_iam.yml.j2", Order: 3, Tier: templates.TierFoundation, Body: "Resources: {}"},
	}
}

type countingScaler struct {
	calls int
	err   error
}

func (c *countingScaler) ScaleToDesired(context.Context) error {
	c.calls++
	return c.err
}

func newReconciler(api CloudFormationAPI, svc DesiredState) *Reconciler {
	r := &Reconciler{
		API:    api,
		Tags:   Tags([]appconfig.Tag{{Key: "Owner", Value: "data"}, {Key: "Service", Value: "myservice"}, {Key: "Environment", Value: "prod"}}),
		Policy: waiter.Policy{Interval: time.Millisecond, MaxAttempts: 5},
		Log:    logr.Discard(),
	}
	if svc != nil {
		r.Services = svc
	}
	return r
}

func TestClassifyIsTotalAndExclusive(t *testing.T) {
	inv := NewInventory(map[string]types.StackStatus{
		network:   types.StackStatusUpdateRollbackComplete,
		scheduler: types.StackStatusRollbackComplete,
	})
	cases := []struct {
		stack string
		tier  templates.Tier
		scope Scope
		want  Action
	}{
		{network, templates.TierFoundation, ScopeAll, ActionUpdate},
		{network, templates.TierFoundation, ScopeFoundation, ActionUpdate},
		{network, templates.TierFoundation, ScopeApplication, ActionSkip},
		{iam, templates.TierFoundation, ScopeAll, ActionCreate},
		{scheduler, templates.TierApplication, ScopeAll, ActionCreate},
		{scheduler, templates.TierApplication, ScopeFoundation, ActionSkip},
	}
	for _, tc := range cases {
		got := Classify(templates.Descriptor{StackName: tc.stack, Tier: tc.tier}, inv, tc.scope)
		if got != tc.want {
			t.Fatalf("%s/%s: got %s want %s", tc.stack, tc.scope, got, tc.want)
		}
	}
}

func TestApplyFoundationScopeSelectsOnlyFoundationStacks(t *testing.T) {
	api := newFakeCFN()
	api.script[network] = []types.StackStatus{types.StackStatusCreateInProgress, types.StackStatusCreateComplete}
	ds := []templates.Descriptor{descriptors()[0], descriptors()[1]}

	outcomes, err := newReconciler(api, nil).Apply(context.Background(), ds, NewInventory(nil), ScopeFoundation)
	if err != nil {
		t.Fatalf("Apply: %v", err)
	}
	if len(api.creates) != 1 || aws.ToString(api.creates[0].StackName) != network {
		t.Fatalf("expected only %s to be created, got %+v", network, api.creates)
	}
	in := api.creates[0]
	if aws.ToInt32(in.TimeoutInMinutes) != 30 || in.OnFailure != types.OnFailureRollback {
		t.Fatalf("unexpected create policy %+v", in)
	}
	if !reflect.DeepEqual(in.Capabilities, []types.Capability{types.CapabilityCapabilityIam, types.CapabilityCapabilityNamedIam}) {
		t.Fatalf("unexpected capabilities %v", in.Capabilities)
	}
	if len(in.Tags) != 3 || aws.ToString(in.Tags[2].Value) != "prod" {
		t.Fatalf("unexpected tags %+v", in.Tags)
	}
	want := []Outcome{
		{Stack: network, Action: ActionCreate, Result: ResultApplied},
		{Stack: scheduler, Action: ActionSkip, Result: ResultNoopSkipped},
	}
	if !reflect.DeepEqual(outcomes, want) {
		t.Fatalf("outcomes = %+v", outcomes)
	}
}

func TestApplyRunsFoundationTierBeforeApplicationTier(t *testing.T) {
	api := newFakeCFN()
	for _, n := range []string{network, iam, scheduler} {
		api.script[n] = []types.StackStatus{types.StackStatusCreateComplete}
	}
	if _, err := newReconciler(api, nil).Apply(context.Background(), descriptors(), NewInventory(nil), ScopeAll); err != nil {
		t.Fatalf("Apply: %v", err)
	}
	var order []string
	for _, c := range api.creates {
		order = append(order, aws.ToString(c.StackName))
	}
	if !reflect.DeepEqual(order, []string{network, iam, scheduler}) {
		t.Fatalf("create order = %v", order)
	}
}

func TestUpdateWithoutChangesIsNoop(t *testing.T) {
	api := newFakeCFN()
	api.noUpdates[network] = true
	inv := NewInventory(map[string]types.StackStatus{network: types.StackStatusUpdateComplete})
	svc := &countingScaler{}
	r := newReconciler(api, svc)
	ds := []templates.Descriptor{descriptors()[1]}

	for i := 0; i < 2; i++ {
		outcomes, err := r.Apply(context.Background(), ds, inv, ScopeAll)
		if err != nil {
			t.Fatalf("run %d: %v", i, err)
		}
		if outcomes[0].Action != ActionUpdate || outcomes[0].Result != ResultNoopSkipped {
			t.Fatalf("run %d: outcome %+v", i, outcomes[0])
		}
	}
	if api.polls[network] != 0 {
		t.Fatalf("a no-op update must not wait, got %d polls", api.polls[network])
	}
	if svc.calls != 0 {
		t.Fatalf("a no-op update must not touch services")
	}
}

func TestUpdateWaitsThenReassertsDesiredCounts(t *testing.T) {
	api := newFakeCFN()
	api.script[scheduler] = []types.StackStatus{types.StackStatusUpdateInProgress, types.StackStatusUpdateCompleteCleanupInProgress, types.StackStatusUpdateComplete}
	inv := NewInventory(map[string]types.StackStatus{scheduler: types.StackStatusCreateComplete})
	svc := &countingScaler{}

	outcomes, err := newReconciler(api, svc).Apply(context.Background(), []templates.Descriptor{descriptors()[0]}, inv, ScopeApplication)
	if err != nil {
		t.Fatalf("Apply: %v", err)
	}
	if outcomes[0].Result != ResultApplied || api.polls[scheduler] != 3 || svc.calls != 1 {
		t.Fatalf("outcome=%+v polls=%d scale=%d", outcomes[0], api.polls[scheduler], svc.calls)
	}
}

func TestUpdateToleratesServicesNotDeployed(t *testing.T) {
	api := newFakeCFN()
	api.script[network] = []types.StackStatus{types.StackStatusUpdateComplete}
	inv := NewInventory(map[string]types.StackStatus{network: types.StackStatusCreateComplete})
	svc := &countingScaler{err: fmt.Errorf("scale: %w", services.ErrNotDeployed)}

	if _, err := newReconciler(api, svc).Apply(context.Background(), []templates.Descriptor{descriptors()[1]}, inv, ScopeAll); err != nil {
		t.Fatalf("Apply: %v", err)
	}
	if svc.calls != 1 {
		t.Fatalf("expected one scale call, got %d", svc.calls)
	}
}

func TestUpdateRejectionIsFatal(t *testing.T) {
	api := newFakeCFN()
	api.script[network] = []types.StackStatus{types.StackStatusUpdateInProgress, types.StackStatusUpdateRollbackComplete}
	inv := NewInventory(map[string]types.StackStatus{network: types.StackStatusCreateComplete, iam: types.StackStatusCreateComplete})

	outcomes, err := newReconciler(api, nil).Apply(context.Background(), descriptors(), inv, ScopeAll)
	if !errors.Is(err, ErrStackFailed) {
		t.Fatalf("expected ErrStackFailed, got %v", err)
	}
	if len(outcomes) != 1 || outcomes[0].Result != ResultFailed {
		t.Fatalf("expected the run to stop at the first failure, got %+v", outcomes)
	}
	if len(api.updates) != 1 {
		t.Fatalf("no further stacks may be touched after a failure")
	}
}

func TestCreateTimesOutAfterMaxAttempts(t *testing.T) {
	api := newFakeCFN()
	api.script[network] = []types.StackStatus{types.StackStatusCreateInProgress}
	r := newReconciler(api, nil)
	r.Policy = waiter.Policy{Interval: time.Millisecond, MaxAttempts: 4}

	_, err := r.Apply(context.Background(), []templates.Descriptor{descriptors()[1]}, NewInventory(nil), ScopeAll)
	if !errors.Is(err, ErrWaitTimeout) {
		t.Fatalf("expected ErrWaitTimeout, got %v", err)
	}
	if api.polls[network] != 4 {
		t.Fatalf("expected exactly 4 polls, got %d", api.polls[network])
	}
}

func TestCreateFailsFastOnRollback(t *testing.T) {
	api := newFakeCFN()
	api.script[network] = []types.StackStatus{types.StackStatusCreateInProgress, types.StackStatusRollbackInProgress}
	_, err := newReconciler(api, nil).Apply(context.Background(), []templates.Descriptor{descriptors()[1]}, NewInventory(nil), ScopeAll)
	if !errors.Is(err, ErrStackFailed) {
		t.Fatalf("expected ErrStackFailed, got %v", err)
	}
	if api.polls[network] != 2 {
		t.Fatalf("expected polling to stop at the failure state, got %d polls", api.polls[network])
	}
}

func TestCreateOverLingeringStackIsBlocked(t *testing.T) {
	api := newFakeCFN()
	inv := NewInventory(map[string]types.StackStatus{network: types.StackStatusRollbackComplete})
	_, err := newReconciler(api, nil).Apply(context.Background(), []templates.Descriptor{descriptors()[1]}, inv, ScopeAll)
	if !errors.Is(err, ErrStackBlocked) {
		t.Fatalf("expected ErrStackBlocked, got %v", err)
	}
	if api.mutations() != 0 {
		t.Fatalf("a blocked stack must not be mutated")
	}
}

func TestDestroyWithoutConfirmationMakesNoCalls(t *testing.T) {
	inv := NewInventory(map[string]types.StackStatus{network: types.StackStatusCreateComplete})
	declined := func(context.Context) (bool, error) { return false, nil }
	for name, confirm := range map[string]Confirm{"nil": nil, "declined": declined} {
		api := newFakeCFN()
		outcomes, err := newReconciler(api, nil).Destroy(context.Background(), descriptors(), inv, confirm)
		if err != nil || outcomes != nil {
			t.Fatalf("%s: outcomes=%v err=%v", name, outcomes, err)
		}
		if len(api.calls) != 0 {
			t.Fatalf("%s: expected no backend calls, got %v", name, api.calls)
		}
	}
}

func TestDestroyDeletesExistingStacksInReverseOrder(t *testing.T) {
	api := newFakeCFN()
	api.script[iam] = []types.StackStatus{types.StackStatusDeleteInProgress, types.StackStatusDeleteComplete}
	api.gone[network] = true
	api.gone[scheduler] = true
	inv := NewInventory(map[string]types.StackStatus{
		network:   types.StackStatusCreateComplete,
		iam:       types.StackStatusUpdateComplete,
		scheduler: types.StackStatusUpdateRollbackComplete,
	})
	yes := func(context.Context) (bool, error) { return true, nil }

	outcomes, err := newReconciler(api, nil).Destroy(context.Background(), descriptors(), inv, yes)
	if err != nil {
		t.Fatalf("Destroy: %v", err)
	}
	if !reflect.DeepEqual(api.deletes, []string{scheduler, iam, network}) {
		t.Fatalf("delete order = %v", api.deletes)
	}
	if len(outcomes) != 3 || outcomes[1].Action != ActionDelete || outcomes[1].Result != ResultApplied {
		t.Fatalf("unexpected outcomes %+v", outcomes)
	}
}

func TestDestroySkipsStacksThatDoNotExist(t *testing.T) {
	api := newFakeCFN()
	api.gone[network] = true
	inv := NewInventory(map[string]types.StackStatus{network: types.StackStatusCreateComplete})
	yes := func(context.Context) (bool, error) { return true, nil }
	if _, err := newReconciler(api, nil).Destroy(context.Background(), descriptors(), inv, yes); err != nil {
		t.Fatalf("Destroy: %v", err)
	}
	if !reflect.DeepEqual(api.deletes, []string{network}) {
		t.Fatalf("deletes = %v", api.deletes)
	}
}
