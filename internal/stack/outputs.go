package stack

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/cloudformation"
	"gopkg.in/yaml.v3"

	"github.com/ThreeVenturesTechnology/apache-airflow-aws/internal/templates"
)

// Output is one declared stack output.
type Output struct {
	Key         string `json:"OutputKey" yaml:"OutputKey"`
	Value       string `json:"OutputValue" yaml:"OutputValue"`
	Description string `json:"Description,omitempty" yaml:"Description,omitempty"`
	ExportName  string `json:"ExportName,omitempty" yaml:"ExportName,omitempty"`
}

type StackOutputs struct {
	Stack   string
	Outputs []Output
}

// Report is an ordered stack-name to outputs mapping.
type Report []StackOutputs

// CollectOutputs walks existing stacks in teardown order and places each
// processed stack in front of the ones before it. Read-only.
func CollectOutputs(ctx context.Context, api CloudFormationAPI, ds []templates.Descriptor, inv Inventory) (Report, error) {
	ordered := append([]templates.Descriptor(nil), ds...)
	templates.Sort(ordered, templates.Descending)

	var report Report
	for _, d := range ordered {
		if !inv.Exists(d.StackName) {
			continue
		}
		out, err := api.DescribeStacks(ctx, &cloudformation.DescribeStacksInput{StackName: aws.String(d.StackName)})
		if err != nil {
			return nil, fmt.Errorf("describe stack %s: %w", d.StackName, err)
		}
		entry := StackOutputs{Stack: d.StackName, Outputs: []Output{}}
		for _, st := range out.Stacks {
			for _, o := range st.Outputs {
				entry.Outputs = append(entry.Outputs, Output{
					Key:         aws.ToString(o.OutputKey),
					Value:       aws.ToString(o.OutputValue),
					Description: aws.ToString(o.Description),
					ExportName:  aws.ToString(o.ExportName),
				})
			}
		}
		report = append(Report{entry}, report...)
	}
	return report, nil
}

// MarshalJSON keeps the report order.
func (r Report) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, e := range r {
		if i > 0 {
			buf.WriteByte(',')
		}
		key, err := json.Marshal(e.Stack)
		if err != nil {
			return nil, err
		}
		val, err := json.Marshal(e.Outputs)
		if err != nil {
			return nil, err
		}
		buf.Write(key)
		buf.WriteByte(':')
		buf.Write(val)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

// MarshalYAML keeps the report order.
func (r Report) MarshalYAML() (interface{}, error) {
	node := &yaml.Node{Kind: yaml.MappingNode}
	for _, e := range r {
		var val yaml.Node
		if err := val.Encode(e.Outputs); err != nil {
			return nil, err
		}
		node.Content = append(node.Content, &yaml.Node{Kind: yaml.ScalarNode, Value: e.Stack}, &val)
	}
	return node, nil
}

// Print writes the report as json, yaml or table.
func (r Report) Print(w io.Writer, format string) error {
	switch format {
	case "", "json":
		data, err := json.MarshalIndent(r, "", "    ")
		if err != nil {
			return err
		}
		_, err = fmt.Fprintln(w, string(data))
		return err
	case "yaml":
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(r); err != nil {
			return err
		}
		return enc.Close()
	case "table":
		tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
		fmt.Fprintln(tw, "STACK\tKEY\tVALUE")
		for _, e := range r {
			if len(e.Outputs) == 0 {
				fmt.Fprintf(tw, "%s\t-\t-\n", e.Stack)
				continue
			}
			for _, o := range e.Outputs {
				fmt.Fprintf(tw, "%s\t%s\t%s\n", e.Stack, o.Key, o.Value)
			}
		}
		return tw.Flush()
	default:
		return fmt.Errorf("unknown output format %q (expected json, yaml, or table)", format)
	}
}
