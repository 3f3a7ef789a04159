package policy

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestEngine(t *testing.T) *Engine {
	t.Helper()
	e, err := NewEngine(context.Background(), DefaultPolicy)
	require.NoError(t, err)
	return e
}

func TestDefaultPolicyAllowsOrdinaryTools(t *testing.T) {
	e := newTestEngine(t)

	decision, err := e.Evaluate(context.Background(), Input{
		TaskKind: "bias_monitoring",
		ToolName: "query_decision_log",
		Args:     map[string]any{"start_date": "2026-02-16", "end_date": "2026-02-23"},
	})
	require.NoError(t, err)
	assert.Equal(t, DecisionAllow, decision)
}

func TestDefaultPolicyBlocksNonBreachTicket(t *testing.T) {
	e := newTestEngine(t)

	decision, err := e.Evaluate(context.Background(), Input{
		ToolName: "create_incident_ticket",
		Args: map[string]any{
			"metric":    "psi",
			"value":     0.07,
			"threshold": 0.25,
			"severity":  "MEDIUM",
		},
	})
	require.NoError(t, err)
	assert.Equal(t, DecisionBlock, decision)
}

func TestDefaultPolicyAllowsBreachTicket(t *testing.T) {
	e := newTestEngine(t)

	decision, err := e.Evaluate(context.Background(), Input{
		ToolName: "create_incident_ticket",
		Args: map[string]any{
			"metric":    "demographic_parity",
			"value":     0.2714,
			"threshold": 0.05,
			"severity":  "HIGH",
		},
	})
	require.NoError(t, err)
	assert.Equal(t, DecisionAllow, decision)
}

func TestDefaultPolicyBlocksUnknownSeverity(t *testing.T) {
	e := newTestEngine(t)

	decision, err := e.Evaluate(context.Background(), Input{
		ToolName: "create_incident_ticket",
		Args: map[string]any{
			"metric":    "demographic_parity",
			"value":     0.2714,
			"threshold": 0.05,
			"severity":  "CRITICAL",
		},
	})
	require.NoError(t, err)
	assert.Equal(t, DecisionBlock, decision)
}

func TestNilArgs(t *testing.T) {
	e := newTestEngine(t)

	decision, err := e.Evaluate(context.Background(), Input{ToolName: "fetch_model_metadata"})
	require.NoError(t, err)
	assert.Equal(t, DecisionAllow, decision)
}
