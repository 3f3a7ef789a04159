package dispatch

import (
	"context"
	"encoding/json"
	"fmt"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/finpulse/aicomply/internal/backend"
	"github.com/finpulse/aicomply/internal/domain"
	"github.com/finpulse/aicomply/internal/policy"
	"github.com/finpulse/aicomply/internal/tools"
)

func testDriver(t *testing.T) *Driver {
	t.Helper()
	return New(nil, zerolog.Nop())
}

func echoRegistry(t *testing.T) *tools.Registry {
	t.Helper()
	reg := tools.NewRegistry()
	require.NoError(t, reg.Register(domain.ToolDefinition{
		Name:        "echo",
		Description: "Echoes its message argument back.",
		Schema: json.RawMessage(`{
			"type": "object",
			"properties": {"message": {"type": "string"}},
			"required": ["message"]
		}`),
		Handler: func(ctx context.Context, args map[string]any) (map[string]any, error) {
			return map[string]any{"echo": args["message"]}, nil
		},
	}))
	return reg
}

func TestRunCompletesAfterToolRound(t *testing.T) {
	d := testDriver(t)
	reg := echoRegistry(t)

	be := backend.NewScripted(
		backend.Invoke(domain.ToolInvocation{Name: "echo", Args: map[string]any{"message": "hello"}}),
		func(tr *domain.Transcript) (*backend.Reply, error) {
			results := tr.LastResults()
			require.Len(t, results, 1)
			require.Equal(t, domain.ToolResultOK, results[0].Status)
			return backend.FinalJSON(map[string]any{"answer": results[0].Payload["echo"]})(tr)
		},
	)

	res := d.Run(context.Background(), domain.TaskRequest{
		Kind:         domain.TaskKindClassification,
		Instructions: "echo then answer",
	}, reg, be)

	require.Equal(t, domain.TerminalDone, res.Kind)
	assert.False(t, res.Failed())
	assert.Equal(t, "hello", res.Output["answer"])
	assert.Equal(t, 1, res.Rounds)
	assert.Equal(t, 1, res.Transcript.Rounds())
}

func TestRoundLimitExceededExactlyAtCap(t *testing.T) {
	d := testDriver(t)
	reg := echoRegistry(t)

	be := backend.NewScripted(
		backend.Invoke(domain.ToolInvocation{Name: "echo", Args: map[string]any{"message": "again"}}),
	)
	be.RepeatLast = true

	res := d.Run(context.Background(), domain.TaskRequest{
		Kind:         domain.TaskKindBiasMonitoring,
		Instructions: "never finishes",
		MaxRounds:    3,
	}, reg, be)

	require.Equal(t, domain.TerminalRoundLimitExceeded, res.Kind)
	assert.True(t, res.Failed())
	assert.False(t, res.Retryable())
	assert.Equal(t, 3, res.Rounds)
	assert.Equal(t, 3, res.Transcript.Rounds(), "partial transcript carries every completed round")
	assert.Contains(t, res.Error, "3 rounds")
}

func TestUnknownToolDoesNotAbortRun(t *testing.T) {
	d := testDriver(t)
	reg := echoRegistry(t)

	be := backend.NewScripted(
		backend.Invoke(domain.ToolInvocation{Name: "no_such_tool", Args: map[string]any{}}),
		func(tr *domain.Transcript) (*backend.Reply, error) {
			results := tr.LastResults()
			require.Len(t, results, 1)
			assert.Equal(t, domain.ToolResultHandlerError, results[0].Status)
			assert.Equal(t, "unknown tool", results[0].Message)
			return backend.FinalJSON(map[string]any{"recovered": true})(tr)
		},
	)

	res := d.Run(context.Background(), domain.TaskRequest{
		Kind:         domain.TaskKindClassification,
		Instructions: "asks for a tool that does not exist",
	}, reg, be)

	require.Equal(t, domain.TerminalDone, res.Kind)
	assert.Equal(t, true, res.Output["recovered"])
}

func TestInvalidArgumentsReportedAsHandlerError(t *testing.T) {
	d := testDriver(t)
	reg := echoRegistry(t)

	be := backend.NewScripted(
		backend.Invoke(domain.ToolInvocation{Name: "echo", Args: map[string]any{"message": 42}}),
		func(tr *domain.Transcript) (*backend.Reply, error) {
			results := tr.LastResults()
			require.Len(t, results, 1)
			assert.Equal(t, domain.ToolResultHandlerError, results[0].Status)
			assert.Contains(t, results[0].Message, "invalid tool arguments")
			return backend.FinalJSON(map[string]any{"ok": true})(tr)
		},
	)

	res := d.Run(context.Background(), domain.TaskRequest{
		Kind:         domain.TaskKindClassification,
		Instructions: "passes a number where a string is required",
	}, reg, be)
	require.Equal(t, domain.TerminalDone, res.Kind)
}

func TestHandlerErrorAndPanicRecovered(t *testing.T) {
	d := testDriver(t)
	reg := tools.NewRegistry()
	require.NoError(t, reg.Register(domain.ToolDefinition{
		Name: "failing",
		Handler: func(ctx context.Context, args map[string]any) (map[string]any, error) {
			return nil, fmt.Errorf("upstream system unreachable")
		},
	}))
	require.NoError(t, reg.Register(domain.ToolDefinition{
		Name: "panicking",
		Handler: func(ctx context.Context, args map[string]any) (map[string]any, error) {
			panic("nil map write")
		},
	}))

	be := backend.NewScripted(
		backend.Invoke(
			domain.ToolInvocation{Name: "failing"},
			domain.ToolInvocation{Name: "panicking"},
		),
		func(tr *domain.Transcript) (*backend.Reply, error) {
			results := tr.LastResults()
			require.Len(t, results, 2)
			assert.Equal(t, domain.ToolResultHandlerError, results[0].Status)
			assert.Equal(t, "upstream system unreachable", results[0].Message)
			assert.Equal(t, domain.ToolResultHandlerError, results[1].Status)
			assert.Contains(t, results[1].Message, "handler panic")
			return backend.FinalJSON(map[string]any{"survived": true})(tr)
		},
	)

	res := d.Run(context.Background(), domain.TaskRequest{
		Kind:         domain.TaskKindConformity,
		Instructions: "both handlers fail",
	}, reg, be)
	require.Equal(t, domain.TerminalDone, res.Kind)
	assert.Equal(t, true, res.Output["survived"])
}

func TestMalformedFinalAnswer(t *testing.T) {
	d := testDriver(t)
	reg := echoRegistry(t)

	be := backend.NewScripted(backend.FinalText("this is not json"))

	res := d.Run(context.Background(), domain.TaskRequest{
		Kind:         domain.TaskKindDocumentation,
		Instructions: "returns prose instead of json",
	}, reg, be)

	require.Equal(t, domain.TerminalMalformedOutput, res.Kind)
	assert.False(t, res.Retryable())
	assert.Contains(t, res.Error, "not a JSON object")
	assert.NotNil(t, res.Transcript)
}

func TestOutputSchemaEnforced(t *testing.T) {
	d := testDriver(t)
	reg := echoRegistry(t)
	schema := json.RawMessage(`{
		"type": "object",
		"properties": {"risk_tier": {"type": "string"}},
		"required": ["risk_tier"]
	}`)

	be := backend.NewScripted(backend.FinalJSON(map[string]any{"wrong_field": 1}))
	res := d.Run(context.Background(), domain.TaskRequest{
		Kind:         domain.TaskKindClassification,
		Instructions: "final answer misses the required field",
		OutputSchema: schema,
	}, reg, be)
	require.Equal(t, domain.TerminalMalformedOutput, res.Kind)

	be = backend.NewScripted(backend.FinalJSON(map[string]any{"risk_tier": "HIGH"}))
	res = d.Run(context.Background(), domain.TaskRequest{
		Kind:         domain.TaskKindClassification,
		Instructions: "final answer matches the shape",
		OutputSchema: schema,
	}, reg, be)
	require.Equal(t, domain.TerminalDone, res.Kind)
	assert.Equal(t, "HIGH", res.Output["risk_tier"])
}

func TestBackendFailuresClassified(t *testing.T) {
	d := testDriver(t)
	reg := echoRegistry(t)

	res := d.Run(context.Background(), domain.TaskRequest{
		Kind:         domain.TaskKindFRIA,
		Instructions: "backend times out",
	}, reg, backend.NewScripted(backend.Fail(fmt.Errorf("deadline hit: %w", domain.ErrBackendTimeout))))
	require.Equal(t, domain.TerminalBackendTimeout, res.Kind)
	assert.True(t, res.Retryable())

	res = d.Run(context.Background(), domain.TaskRequest{
		Kind:         domain.TaskKindFRIA,
		Instructions: "backend is down",
	}, reg, backend.NewScripted(backend.Fail(fmt.Errorf("connection refused: %w", domain.ErrBackendUnavailable))))
	require.Equal(t, domain.TerminalBackendUnavailable, res.Kind)
	assert.True(t, res.Retryable())
}

func TestCancellationStopsBetweenRounds(t *testing.T) {
	d := testDriver(t)
	reg := echoRegistry(t)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	res := d.Run(ctx, domain.TaskRequest{
		Kind:         domain.TaskKindClassification,
		Instructions: "cancelled before the first round",
	}, reg, backend.NewScripted(backend.FinalJSON(map[string]any{"never": "reached"})))

	require.Equal(t, domain.TerminalCancelled, res.Kind)
	assert.Equal(t, 0, res.Rounds)
	assert.False(t, res.Retryable())
}

func TestPolicyGateBlocksNonBreachTicket(t *testing.T) {
	ctx := context.Background()
	gate, err := policy.NewEngine(ctx, policy.DefaultPolicy)
	require.NoError(t, err)
	d := New(gate, zerolog.Nop())

	created := false
	reg := tools.NewRegistry()
	require.NoError(t, reg.Register(domain.ToolDefinition{
		Name: "create_incident_ticket",
		Handler: func(ctx context.Context, args map[string]any) (map[string]any, error) {
			created = true
			return map[string]any{"ticket_id": "BIAS-20260223-001"}, nil
		},
	}))

	be := backend.NewScripted(
		backend.Invoke(domain.ToolInvocation{Name: "create_incident_ticket", Args: map[string]any{
			"severity": "MEDIUM", "metric": "psi", "value": 0.07, "threshold": 0.25,
		}}),
		func(tr *domain.Transcript) (*backend.Reply, error) {
			results := tr.LastResults()
			require.Len(t, results, 1)
			assert.Equal(t, domain.ToolResultHandlerError, results[0].Status)
			assert.Equal(t, "blocked by tool policy", results[0].Message)
			return backend.FinalJSON(map[string]any{"tickets": 0})(tr)
		},
	)

	res := d.Run(ctx, domain.TaskRequest{
		Kind:         domain.TaskKindBiasMonitoring,
		Instructions: "tries to ticket a metric inside its threshold",
	}, reg, be)
	require.Equal(t, domain.TerminalDone, res.Kind)
	assert.False(t, created, "blocked invocation must not reach the handler")
}

func TestDefaultRoundCapApplied(t *testing.T) {
	d := testDriver(t)
	reg := echoRegistry(t)

	be := backend.NewScripted(
		backend.Invoke(domain.ToolInvocation{Name: "echo", Args: map[string]any{"message": "loop"}}),
	)
	be.RepeatLast = true

	res := d.Run(context.Background(), domain.TaskRequest{
		Kind:         domain.TaskKindClassification,
		Instructions: "no cap declared",
	}, reg, be)

	require.Equal(t, domain.TerminalRoundLimitExceeded, res.Kind)
	assert.Equal(t, domain.DefaultMaxRounds, res.Rounds)
}
