// Package policy gates tool execution through an OPA rego policy.
// A "block" decision is reported back to the reasoning backend as a
// handler-error tool result; it never aborts the run.
package policy

import (
	"context"
	"fmt"

	"github.com/open-policy-agent/opa/rego"
)

// Decisions a policy may return.
const (
	DecisionAllow = "allow"
	DecisionBlock = "block"
)

// Input is the document the policy evaluates for one tool invocation.
type Input struct {
	TaskKind string         `json:"task_kind"`
	ToolName string         `json:"tool_name"`
	Args     map[string]any `json:"args"`
}

// Engine wraps a prepared rego query over the tool-gate policy.
type Engine struct {
	query rego.PreparedEvalQuery
}

// NewEngine compiles the given rego module and prepares the decision
// query.
func NewEngine(ctx context.Context, policyContent string) (*Engine, error) {
	r := rego.New(
		rego.Query("data.tool_gate.decision"),
		rego.Module("tool_gate.rego", policyContent),
	)

	query, err := r.PrepareForEval(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to prepare rego: %w", err)
	}
	return &Engine{query: query}, nil
}

// Evaluate returns the policy decision for one tool invocation. An
// empty result set means the policy defines no default and the
// invocation is allowed.
func (e *Engine) Evaluate(ctx context.Context, input Input) (string, error) {
	if input.Args == nil {
		input.Args = map[string]any{}
	}
	results, err := e.query.Eval(ctx, rego.EvalInput(input))
	if err != nil {
		return "", fmt.Errorf("failed to evaluate policy: %w", err)
	}
	if len(results) == 0 || len(results[0].Expressions) == 0 {
		return DecisionAllow, nil
	}
	if s, ok := results[0].Expressions[0].Value.(string); ok {
		return s, nil
	}
	return "", fmt.Errorf("policy returned non-string decision")
}

// DefaultPolicy is the shipped tool-gate policy. It enforces the
// one-ticket-per-breach rule: an incident ticket whose metric value
// does not strictly exceed its threshold is blocked, and tickets must
// carry a recognised severity.
const DefaultPolicy = `
package tool_gate

import rego.v1

default decision := "allow"

decision := "block" if {
	input.tool_name == "create_incident_ticket"
	input.args.value <= input.args.threshold
}

decision := "block" if {
	input.tool_name == "create_incident_ticket"
	not valid_severity
}

valid_severity if {
	input.args.severity in {"MEDIUM", "HIGH"}
}
`
