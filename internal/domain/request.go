package domain

import "encoding/json"

// DefaultMaxRounds bounds a run when the caller does not declare a cap.
const DefaultMaxRounds = 10

// TaskRequest is the immutable description of one agent run: free-text
// instructions, caller-supplied parameters, the maximum number of
// dispatch rounds, and the JSON-Schema document the final answer must
// satisfy (empty means any JSON object is accepted).
type TaskRequest struct {
	Kind         TaskKind        `json:"kind"`
	Instructions string          `json:"instructions"`
	Params       map[string]any  `json:"params,omitempty"`
	MaxRounds    int             `json:"max_rounds,omitempty"`
	OutputSchema json.RawMessage `json:"output_schema,omitempty"`
}

// TerminalResult is the discriminated outcome of one driver run. The
// driver never lets an error escape; callers branch on Kind.
type TerminalResult struct {
	Kind       TerminalKind   `json:"kind"`
	Output     map[string]any `json:"output,omitempty"`
	Rounds     int            `json:"rounds"`
	Error      string         `json:"error,omitempty"`
	Transcript *Transcript    `json:"transcript,omitempty"`
}

// Failed reports whether the run ended without a usable final answer.
func (r *TerminalResult) Failed() bool {
	return r.Kind != TerminalDone
}

// Retryable reports whether the caller may re-invoke the run with a
// fresh transcript and expect it to succeed.
func (r *TerminalResult) Retryable() bool {
	return r.Kind == TerminalBackendTimeout || r.Kind == TerminalBackendUnavailable
}
