// Package domain defines the core domain models shared by the dispatch
// driver, the agents, and the transport layer.
package domain

// TaskKind identifies the compliance task an agent run performs. The
// driver uses it to select the output shape the final answer must match.
type TaskKind string

const (
	TaskKindClassification TaskKind = "classification"
	TaskKindDocumentation  TaskKind = "documentation"
	TaskKindBiasMonitoring TaskKind = "bias_monitoring"
	TaskKindFRIA           TaskKind = "fria"
	TaskKindConformity     TaskKind = "conformity"
)

// TerminalKind discriminates the outcome of one driver run.
type TerminalKind string

const (
	TerminalDone               TerminalKind = "DONE"
	TerminalRoundLimitExceeded TerminalKind = "ROUND_LIMIT_EXCEEDED"
	TerminalMalformedOutput    TerminalKind = "MALFORMED_OUTPUT"
	TerminalBackendTimeout     TerminalKind = "BACKEND_TIMEOUT"
	TerminalBackendUnavailable TerminalKind = "BACKEND_UNAVAILABLE"
	TerminalCancelled          TerminalKind = "CANCELLED"
)

// ToolResultStatus represents the status of one executed tool invocation.
type ToolResultStatus string

const (
	ToolResultOK           ToolResultStatus = "ok"
	ToolResultHandlerError ToolResultStatus = "handler_error"
)

// EntryKind represents the kind of a transcript entry.
type EntryKind string

const (
	EntryTask        EntryKind = "task"
	EntryAssistant   EntryKind = "assistant"
	EntryInvocations EntryKind = "tool_invocations"
	EntryResults     EntryKind = "tool_results"
)
