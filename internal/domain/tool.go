package domain

import (
	"context"
	"encoding/json"
)

// HandlerFunc executes one tool invocation with already-validated
// arguments. Any returned error is captured by the driver and converted
// to a handler-error ToolResult; it never aborts the run.
type HandlerFunc func(ctx context.Context, args map[string]any) (map[string]any, error)

// ToolDefinition describes one named tool offered to the reasoning
// backend: a description, a JSON-Schema document for its arguments, and
// the bound handler. The set of definitions for a run is immutable once
// the dispatch loop starts.
type ToolDefinition struct {
	Name        string          `json:"name"`
	Description string          `json:"description"`
	Schema      json.RawMessage `json:"input_schema"`
	Handler     HandlerFunc     `json:"-"`
}

// ToolInvocation is a structured request emitted by the reasoning
// backend to execute one named tool. It lives for a single dispatch
// round.
type ToolInvocation struct {
	InvocationID string         `json:"invocation_id"`
	Name         string         `json:"name"`
	Args         map[string]any `json:"args"`
}

// ToolResult is the outcome of executing (or failing to execute) one
// invocation. Handler failures, unknown tool names, argument violations
// and policy blocks all become handler-error results fed back to the
// backend.
type ToolResult struct {
	InvocationID string           `json:"invocation_id"`
	ToolName     string           `json:"tool_name"`
	Status       ToolResultStatus `json:"status"`
	Payload      map[string]any   `json:"payload,omitempty"`
	Message      string           `json:"message,omitempty"`
}
