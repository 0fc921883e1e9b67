package stack

import (
	"fmt"

	"github.com/ThreeVenturesTechnology/apache-airflow-aws/internal/templates"
)

// Action is what the reconciler decided to do with one descriptor.
type Action int

const (
	ActionSkip Action = iota
	ActionCreate
	ActionUpdate
	ActionDelete
)

func (a Action) String() string {
	switch a {
	case ActionSkip:
		return "skip"
	case ActionCreate:
		return "create"
	case ActionUpdate:
		return "update"
	case ActionDelete:
		return "delete"
	default:
		return fmt.Sprintf("action(%d)", int(a))
	}
}

// Result is the typed outcome of an action.
type Result int

const (
	ResultApplied Result = iota
	// ResultNoopSkipped covers out-of-scope stacks and updates the backend
	// reported as having nothing to change.
	ResultNoopSkipped
	ResultFailed
)

func (r Result) String() string {
	switch r {
	case ResultApplied:
		return "applied"
	case ResultNoopSkipped:
		return "noop"
	case ResultFailed:
		return "failed"
	default:
		return fmt.Sprintf("result(%d)", int(r))
	}
}

type Outcome struct {
	Stack  string
	Action Action
	Result Result
	// Err is set when Result is ResultFailed.
	Err error
}

// Scope selects which tiers a deploy touches.
type Scope int

const (
	ScopeAll Scope = iota
	ScopeFoundation
	ScopeApplication
)

// ParseScope accepts "all", "foundation" or "application".
func ParseScope(s string) (Scope, error) {
	switch s {
	case "", "all":
		return ScopeAll, nil
	case "foundation":
		return ScopeFoundation, nil
	case "application":
		return ScopeApplication, nil
	default:
		return 0, fmt.Errorf("unknown scope %q (expected foundation, application, or all)", s)
	}
}

func (s Scope) String() string {
	switch s {
	case ScopeFoundation:
		return "foundation"
	case ScopeApplication:
		return "application"
	default:
		return "all"
	}
}

func (s Scope) includes(t templates.Tier) bool {
	switch s {
	case ScopeFoundation:
		return t == templates.TierFoundation
	case ScopeApplication:
		return t == templates.TierApplication
	default:
		return true
	}
}

// Classify maps a descriptor to exactly one of create, update or skip. The
// decision depends only on scope and membership in the snapshot.
func Classify(d templates.Descriptor, inv Inventory, scope Scope) Action {
	if !scope.includes(d.Tier) {
		return ActionSkip
	}
	if inv.Exists(d.StackName) {
		return ActionUpdate
	}
	return ActionCreate
}
