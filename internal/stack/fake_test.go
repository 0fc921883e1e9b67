package stack

import (
	"context"
	"sort"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/cloudformation"
	"github.com/aws/aws-sdk-go-v2/service/cloudformation/types"
	"github.com/aws/smithy-go"
)

// fakeCFN scripts DescribeStacks: each stack walks through its status list
// one poll at a time and then stays on the last entry.
type fakeCFN struct {
	summaries []types.StackSummary
	pageSize  int

	script  map[string][]types.StackStatus
	polls   map[string]int
	outputs map[string][]types.Output
	gone    map[string]bool

	noUpdates   map[string]bool
	validateErr error

	calls   []string
	creates []cloudformation.CreateStackInput
	updates []cloudformation.UpdateStackInput
	deletes []string
}

func newFakeCFN() *fakeCFN {
	return &fakeCFN{
		script:    map[string][]types.StackStatus{},
		polls:     map[string]int{},
		outputs:   map[string][]types.Output{},
		gone:      map[string]bool{},
		noUpdates: map[string]bool{},
	}
}

func (f *fakeCFN) mutations() int {
	return len(f.creates) + len(f.updates) + len(f.deletes)
}

func (f *fakeCFN) ListStacks(_ context.Context, in *cloudformation.ListStacksInput, _ ...func(*cloudformation.Options)) (*cloudformation.ListStacksOutput, error) {
	f.calls = append(f.calls, "ListStacks")
	start := 0
	if in.NextToken != nil {
		for i, s := range f.summaries {
			if aws.ToString(s.StackName) == aws.ToString(in.NextToken) {
				start = i
			}
		}
	}
	end := len(f.summaries)
	if f.pageSize > 0 && start+f.pageSize < end {
		end = start + f.pageSize
	}
	out := &cloudformation.ListStacksOutput{StackSummaries: f.summaries[start:end]}
	if end < len(f.summaries) {
		out.NextToken = f.summaries[end].StackName
	}
	return out, nil
}

func (f *fakeCFN) ValidateTemplate(context.Context, *cloudformation.ValidateTemplateInput, ...func(*cloudformation.Options)) (*cloudformation.ValidateTemplateOutput, error) {
	f.calls = append(f.calls, "ValidateTemplate")
	if f.validateErr != nil {
		return nil, f.validateErr
	}
	return &cloudformation.ValidateTemplateOutput{}, nil
}

func (f *fakeCFN) CreateStack(_ context.Context, in *cloudformation.CreateStackInput, _ ...func(*cloudformation.Options)) (*cloudformation.CreateStackOutput, error) {
	f.calls = append(f.calls, "CreateStack "+aws.ToString(in.StackName))
	f.creates = append(f.creates, *in)
	return &cloudformation.CreateStackOutput{}, nil
}

func (f *fakeCFN) UpdateStack(_ context.Context, in *cloudformation.UpdateStackInput, _ ...func(*cloudformation.Options)) (*cloudformation.UpdateStackOutput, error) {
	name := aws.ToString(in.StackName)
	f.calls = append(f.calls, "UpdateStack "+name)
	if f.noUpdates[name] {
		return nil, &smithy.GenericAPIError{Code: "ValidationError", Message: "No updates are to be performed."}
	}
	f.updates = append(f.updates, *in)
	return &cloudformation.UpdateStackOutput{}, nil
}

func (f *fakeCFN) DeleteStack(_ context.Context, in *cloudformation.DeleteStackInput, _ ...func(*cloudformation.Options)) (*cloudformation.DeleteStackOutput, error) {
	name := aws.ToString(in.StackName)
	f.calls = append(f.calls, "DeleteStack "+name)
	f.deletes = append(f.deletes, name)
	return &cloudformation.DeleteStackOutput{}, nil
}

func (f *fakeCFN) DescribeStacks(_ context.Context, in *cloudformation.DescribeStacksInput, _ ...func(*cloudformation.Options)) (*cloudformation.DescribeStacksOutput, error) {
	name := aws.ToString(in.StackName)
	f.calls = append(f.calls, "DescribeStacks "+name)
	f.polls[name]++
	if f.gone[name] {
		return nil, &smithy.GenericAPIError{Code: "ValidationError", Message: "Stack with id " + name + " does not exist"}
	}
	st := types.Stack{StackName: aws.String(name), Outputs: f.outputs[name], StackStatusReason: aws.String("scripted")}
	if seq := f.script[name]; len(seq) > 0 {
		i := f.polls[name] - 1
		if i >= len(seq) {
			i = len(seq) - 1
		}
		st.StackStatus = seq[i]
	}
	return &cloudformation.DescribeStacksOutput{Stacks: []types.Stack{st}}, nil
}

func summaries(statuses map[string]types.StackStatus) []types.StackSummary {
	names := make([]string, 0, len(statuses))
	for n := range statuses {
		names = append(names, n)
	}
	sort.Strings(names)
	out := make([]types.StackSummary, 0, len(names))
	for _, n := range names {
		out = append(out, types.StackSummary{StackName: aws.String(n), StackStatus: statuses[n]})
	}
	return out
}
