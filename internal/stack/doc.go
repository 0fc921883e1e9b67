// File: internal/stack/doc.go
// Brief: CloudFormation stack lifecycle for airflowctl.

// Package stack reconciles rendered templates against the CloudFormation
// stacks that already exist: it classifies each template as create, update
// or skip, applies foundation stacks before application stacks, waits for
// every mutation to settle, tears stacks down in reverse order and reports
// their outputs.
package stack
