package stack

import (
	"context"
	"fmt"
	"sort"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/cloudformation"
	"github.com/aws/aws-sdk-go-v2/service/cloudformation/types"
)

// healthyStatuses define "existing" for classification.
var healthyStatuses = map[types.StackStatus]struct{}{
	types.StackStatusCreateComplete:         {},
	types.StackStatusUpdateComplete:         {},
	types.StackStatusUpdateRollbackComplete: {},
}

// Inventory is a point-in-time snapshot of the account's stacks. It is never
// cached across runs; the backend may change between the snapshot and the
// operations that rely on it.
type Inventory struct {
	existing  map[string]types.StackStatus
	lingering map[string]types.StackStatus
}

// NewInventory builds a snapshot from name/status pairs. Statuses outside the
// healthy set are recorded as lingering; DELETE_COMPLETE is dropped.
func NewInventory(statuses map[string]types.StackStatus) Inventory {
	inv := Inventory{
		existing:  map[string]types.StackStatus{},
		lingering: map[string]types.StackStatus{},
	}
	for name, status := range statuses {
		inv.add(name, status)
	}
	return inv
}

func (inv Inventory) add(name string, status types.StackStatus) {
	switch {
	case status == types.StackStatusDeleteComplete:
	case isHealthy(status):
		inv.existing[name] = status
	default:
		inv.lingering[name] = status
	}
}

func isHealthy(status types.StackStatus) bool {
	_, ok := healthyStatuses[status]
	return ok
}

// LoadInventory lists every stack that is not deleted.
func LoadInventory(ctx context.Context, api CloudFormationAPI) (Inventory, error) {
	inv := NewInventory(nil)
	p := cloudformation.NewListStacksPaginator(api, &cloudformation.ListStacksInput{
		StackStatusFilter: listFilter(),
	})
	for p.HasMorePages() {
		page, err := p.NextPage(ctx)
		if err != nil {
			return Inventory{}, fmt.Errorf("list stacks: %w", err)
		}
		for _, s := range page.StackSummaries {
			inv.add(aws.ToString(s.StackName), s.StackStatus)
		}
	}
	return inv, nil
}

func listFilter() []types.StackStatus {
	all := types.StackStatus("").Values()
	out := make([]types.StackStatus, 0, len(all))
	for _, s := range all {
		if s != types.StackStatusDeleteComplete {
			out = append(out, s)
		}
	}
	return out
}

// Exists reports whether name is in a healthy terminal state.
func (inv Inventory) Exists(name string) bool {
	_, ok := inv.existing[name]
	return ok
}

// Lingering returns the status of a stack that is present but neither
// healthy nor deleted.
func (inv Inventory) Lingering(name string) (types.StackStatus, bool) {
	s, ok := inv.lingering[name]
	return s, ok
}

// Names lists the existing stacks, sorted.
func (inv Inventory) Names() []string {
	out := make([]string, 0, len(inv.existing))
	for name := range inv.existing {
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}

// LingeringNames lists stacks stuck outside the healthy set, sorted.
func (inv Inventory) LingeringNames() []string {
	out := make([]string, 0, len(inv.lingering))
	for name := range inv.lingering {
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}
