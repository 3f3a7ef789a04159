package store

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCreateIncidentIdempotent(t *testing.T) {
	ctx := context.Background()
	m := NewMemoryAt("20260223")

	first, err := m.CreateIncident(ctx, "HIGH", "demographic_parity", 0.2714, 0.05)
	require.NoError(t, err)
	assert.Equal(t, "BIAS-20260223-001", first)

	// Same identity: same ticket, no duplicate.
	again, err := m.CreateIncident(ctx, "HIGH", "demographic_parity", 0.2714, 0.05)
	require.NoError(t, err)
	assert.Equal(t, first, again)
	assert.Len(t, m.Incidents(), 1)

	second, err := m.CreateIncident(ctx, "MEDIUM", "equalized_odds", 0.09, 0.08)
	require.NoError(t, err)
	assert.Equal(t, "BIAS-20260223-002", second)
}

func TestPublishIdempotent(t *testing.T) {
	ctx := context.Background()
	m := NewMemoryAt("20260223")

	locator, err := m.Publish(ctx, "bias-watch-2026-W09", map[string]any{"status": "PUBLISHED"})
	require.NoError(t, err)
	assert.Equal(t, "compliance/reports/bias-watch-2026-W09.json", locator)

	again, err := m.Publish(ctx, "bias-watch-2026-W09", map[string]any{"status": "OTHER"})
	require.NoError(t, err)
	assert.Equal(t, locator, again)

	payload, ok := m.ReportPayload("bias-watch-2026-W09")
	require.True(t, ok)
	assert.Equal(t, "PUBLISHED", payload["status"], "first publish wins")

	_, err = m.Publish(ctx, "", nil)
	assert.Error(t, err)
}

func TestDecisionLogFixture(t *testing.T) {
	m := NewMemory()
	log, err := m.DecisionLog(context.Background(), "2026-02-16", "2026-02-23")
	require.NoError(t, err)

	assert.Equal(t, "2026-02-16 to 2026-02-23", log.Period)
	assert.Equal(t, 347, log.TotalDecisions)

	nat := log.Demographics["nationality"]
	require.NotNil(t, nat)
	assert.Equal(t, GroupCounts{Approved: 198, Declined: 84, Total: 282}, nat["dutch"])
	assert.Equal(t, GroupCounts{Approved: 28, Declined: 37, Total: 65}, nat["non_dutch"])

	assert.Len(t, log.ScoreBins.Reference, len(log.ScoreBins.Current))
}

func TestDocumentStateAndExists(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()

	state, err := m.DocumentState(ctx, "technical_documentation")
	require.NoError(t, err)
	assert.True(t, state.Exists)
	assert.Equal(t, "PARTIAL", state.Status)
	assert.Equal(t, 50, state.Completeness)

	state, err = m.DocumentState(ctx, "no_such_document")
	require.NoError(t, err)
	assert.False(t, state.Exists)
	assert.Equal(t, "FAIL", state.Status)

	ok, err := m.Exists(ctx, "technical_documentation", "sharepoint://compliance/eu-ai-act/pulsecredit/")
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = m.Exists(ctx, "fria", "sharepoint://compliance/eu-ai-act/pulsecredit/")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestOversightChecks(t *testing.T) {
	m := NewMemory()
	results, err := m.OversightChecks(context.Background(), []string{
		"override_mechanism_present",
		"override_logging_active",
		"unknown_check",
	})
	require.NoError(t, err)
	assert.True(t, results["override_mechanism_present"])
	assert.False(t, results["override_logging_active"])
	assert.False(t, results["unknown_check"])
}

func TestRegistryAndCatalog(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()

	md, err := m.ModelMetadata(ctx, "mlflow://pulsecredit/v2.1.3")
	require.NoError(t, err)
	assert.Equal(t, "pulsecredit-v2.1.3", md.ModelID)
	assert.Equal(t, 0.799, md.AUCROC)

	cat, err := m.DataCatalog(ctx, "datahub://credit/training-2024-q4")
	require.NoError(t, err)
	assert.Equal(t, "datahub://credit/training-2024-q4", cat.CatalogRef)
	assert.Len(t, cat.Sources, 3)
	assert.True(t, cat.PostcodeRemoved)
}

func TestRightsFixtures(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()

	impact, err := m.RightImpact(ctx, "non_discrimination")
	require.NoError(t, err)
	assert.Equal(t, "MEDIUM", impact.Likelihood)
	assert.Equal(t, "HIGH", impact.Severity)

	impact, err = m.RightImpact(ctx, "not_a_right")
	require.NoError(t, err)
	assert.Equal(t, "UNKNOWN", impact.Severity)

	ms, err := m.Mitigations(ctx, "right_to_explanation")
	require.NoError(t, err)
	assert.Len(t, ms, 4)

	findings, err := m.DPIAFindings(ctx, "DPIA-2025-003")
	require.NoError(t, err)
	require.Len(t, findings, 4)
	assert.Contains(t, findings[0], "DPIA-2025-003")
}
