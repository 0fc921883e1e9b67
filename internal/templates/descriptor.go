package templates

import (
	"fmt"
	"sort"
	"strings"
)

// Tier sequences stacks: every foundation stack is applied before any
// application stack and torn down after it.
type Tier int

const (
	TierFoundation Tier = iota
	TierApplication
)

func (t Tier) String() string {
	switch t {
	case TierFoundation:
		return "foundation"
	case TierApplication:
		return "application"
	default:
		return fmt.Sprintf("tier(%d)", int(t))
	}
}

// Direction selects apply order (ascending) or teardown order (descending).
type Direction int

const (
	Ascending Direction = iota
	Descending
)

// Descriptor is one rendered template bound to its stack name. It is built
// once per run and never mutated.
type Descriptor struct {
	StackName string
	Body      string
	Filename  string
	Tier      Tier
	// Order is the numeric filename prefix.
	Order int
}

func tierFor(logical, marker string) Tier {
	if marker != "" && strings.Contains(logical, marker) {
		return TierApplication
	}
	return TierFoundation
}

func less(a, b Descriptor) bool {
	if a.Tier != b.Tier {
		return a.Tier < b.Tier
	}
	if a.Order != b.Order {
		return a.Order < b.Order
	}
	return a.Filename < b.Filename
}

// Sort orders descriptors in place by (tier, order, filename), reversed for
// Descending.
func Sort(ds []Descriptor, dir Direction) {
	sort.SliceStable(ds, func(i, j int) bool {
		if dir == Descending {
			return less(ds[j], ds[i])
		}
		return less(ds[i], ds[j])
	})
}

// ByTier returns the descriptors of the given tier, preserving order.
func ByTier(ds []Descriptor, tier Tier) []Descriptor {
	out := make([]Descriptor, 0, len(ds))
	for _, d := range ds {
		if d.Tier == tier {
			out = append(out, d)
		}
	}
	return out
}

// Names lists stack names in order.
func Names(ds []Descriptor) []string {
	out := make([]string, len(ds))
	for i, d := range ds {
		out[i] = d.StackName
	}
	return out
}
