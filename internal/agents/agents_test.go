package agents

import (
	"context"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/finpulse/aicomply/internal/dispatch"
	"github.com/finpulse/aicomply/internal/domain"
	"github.com/finpulse/aicomply/internal/policy"
	"github.com/finpulse/aicomply/internal/store"
)

func newTestSuite(t *testing.T) (*Suite, *store.Memory) {
	t.Helper()
	gate, err := policy.NewEngine(context.Background(), policy.DefaultPolicy)
	require.NoError(t, err)

	mem := store.NewMemoryAt("20260223")
	driver := dispatch.New(gate, zerolog.Nop())
	return NewSuite(driver, mem, Scripts()), mem
}

func TestClassifyCreditScoringIsHighRisk(t *testing.T) {
	suite, _ := newTestSuite(t)

	res := suite.Classify(context.Background(), SystemDescription{
		Name:              "PulseCredit v2.1",
		Purpose:           "Evaluates the creditworthiness of Dutch consumers and produces a credit score and lending decision.",
		Inputs:            []string{"BKR credit history", "PSD2 bank transaction data"},
		Outputs:           []string{"Credit score 0-100", "Approve / Refer / Decline recommendation"},
		DeploymentContext: "Consumer Credit Provider (Wft licence), Netherlands",
	})

	require.Equal(t, domain.TerminalDone, res.Kind, res.Error)
	assert.Equal(t, "HIGH_RISK", res.Output["risk_tier"])
	assert.Contains(t, res.Output["legal_basis"], "Annex III, Point 5(b)")
	assert.InDelta(t, 0.97, res.Output["confidence"], 0.001)
	assert.Equal(t, complianceDeadline, res.Output["deadline"])

	obligations, ok := res.Output["obligations"].([]any)
	require.True(t, ok)
	assert.Len(t, obligations, 9)
	assert.Contains(t, obligations, "Art. 27 - Fundamental Rights Impact Assessment")
}

func TestClassifyUnmatchedSystemIsMinimalRisk(t *testing.T) {
	suite, _ := newTestSuite(t)

	res := suite.Classify(context.Background(), SystemDescription{
		Name:    "TuneTailor",
		Purpose: "Recommends music playlists based on listening history.",
	})

	require.Equal(t, domain.TerminalDone, res.Kind, res.Error)
	assert.Equal(t, "MINIMAL_RISK", res.Output["risk_tier"])
	assert.Empty(t, res.Output["obligations"])
}

func TestDraftDocumentationCompleteness(t *testing.T) {
	suite, mem := newTestSuite(t)

	res := suite.DraftDocumentation(context.Background(), DocumentationRequest{
		RegistryURI: "mlflow://pulsecredit/v2.1.3",
		CatalogRef:  "datahub://credit/training-2024-q4",
		SystemOwner: "Dr. Elena Visser, CTO",
	})

	require.Equal(t, domain.TerminalDone, res.Kind, res.Error)
	assert.Equal(t, "DRAFT_SAVED", res.Output["status"])
	assert.InDelta(t, 50.0, res.Output["completeness_pct"], 0.001)
	assert.EqualValues(t, 6, res.Output["fields_populated"])
	assert.EqualValues(t, 6, res.Output["fields_requiring_human_input"])

	missing, ok := res.Output["missing_fields"].([]any)
	require.True(t, ok)
	assert.Len(t, missing, 6)

	assert.Contains(t, mem.Reports(), "pulsecredit-v2.1.3-annex-iv-draft")
}

func TestBiasWatchRunOnce(t *testing.T) {
	suite, mem := newTestSuite(t)
	ctx := context.Background()

	res := suite.RunBiasWatch(ctx, "2026-02-16", "2026-02-23")
	require.Equal(t, domain.TerminalDone, res.Kind, res.Error)

	assert.Equal(t, "PUBLISHED", res.Output["status"])
	assert.Equal(t, "bias-watch-2026-W09", res.Output["report_id"])
	assert.Equal(t, "compliance/reports/bias-watch-2026-W09.json", res.Output["locator"])
	assert.EqualValues(t, 4, res.Output["breach_count"])

	tickets, ok := res.Output["tickets"].([]any)
	require.True(t, ok)
	require.Len(t, tickets, 4)
	assert.Equal(t, "BIAS-20260223-001", tickets[0])

	incidents := mem.Incidents()
	require.Len(t, incidents, 4)

	byMetric := make(map[string]store.Incident, len(incidents))
	for _, inc := range incidents {
		byMetric[inc.Metric] = inc
	}
	nat := byMetric["demographic_parity_nationality"]
	assert.Equal(t, "HIGH", nat.Severity)
	assert.InDelta(t, 0.2714, nat.Value, 0.0001)
	assert.InDelta(t, 0.05, nat.Threshold, 0.0001)

	cv := byMetric["approval_rate_cv_nationality"]
	assert.Equal(t, "HIGH", cv.Severity)
	assert.InDelta(t, 0.2395, cv.Value, 0.0001)

	payload, ok := mem.ReportPayload("bias-watch-2026-W09")
	require.True(t, ok)
	assert.Equal(t, "2026-02-16", payload["period_start"])
}

func TestBiasWatchRerunIsIdempotent(t *testing.T) {
	suite, mem := newTestSuite(t)
	ctx := context.Background()

	first := suite.RunBiasWatch(ctx, "2026-02-16", "2026-02-23")
	require.Equal(t, domain.TerminalDone, first.Kind, first.Error)

	second := suite.RunBiasWatch(ctx, "2026-02-16", "2026-02-23")
	require.Equal(t, domain.TerminalDone, second.Kind, second.Error)

	assert.Equal(t, first.Output["locator"], second.Output["locator"])
	assert.Len(t, mem.Incidents(), 4, "retried run must not duplicate tickets")
	assert.Len(t, mem.Reports(), 1, "retried run must not double-publish")
}

func TestGenerateFRIA(t *testing.T) {
	suite, mem := newTestSuite(t)

	res := suite.GenerateFRIA(context.Background(), FRIARequest{
		SystemName:         "PulseCredit v2.1",
		AffectedPopulation: "Dutch consumers aged 18-75, approximately 18,000 applications/year",
		DPIAReference:      "DPIA-2025-003",
		SensitiveGroups:    []string{"ethnic_minorities", "thin_file_applicants"},
	})

	require.Equal(t, domain.TerminalDone, res.Kind, res.Error)
	assert.Equal(t, "DRAFT_GENERATED", res.Output["status"])
	assert.Equal(t, "PulseCredit v2.1", res.Output["system"])
	assert.EqualValues(t, 6, res.Output["rights_assessed"])

	risks, ok := res.Output["residual_risks"].(map[string]any)
	require.True(t, ok)
	assert.Len(t, risks, 6)
	assert.Equal(t, "LOW-MEDIUM", risks["non_discrimination"])

	assert.Contains(t, mem.Reports(), "pulsecredit-v2.1-fria")
}

func TestRunConformityCheck(t *testing.T) {
	suite, mem := newTestSuite(t)

	res := suite.RunConformityCheck(context.Background(), ConformityRequest{
		AssessmentType: "Full Annex VI Assessment",
	})

	require.Equal(t, domain.TerminalDone, res.Kind, res.Error)
	assert.Equal(t, "REPORT_GENERATED", res.Output["status"])
	assert.EqualValues(t, 8, res.Output["total_obligations"])
	assert.EqualValues(t, 0, res.Output["obligations_met"])
	assert.EqualValues(t, 8, res.Output["ncr_count"])
	assert.InDelta(t, 19, res.Output["overall_score"], 0.001)

	ncrs, ok := res.Output["ncrs"].([]any)
	require.True(t, ok)
	require.Len(t, ncrs, 8)
	first, ok := ncrs[0].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, "NCR-001", first["id"])
	assert.Equal(t, "Art. 9", first["article"])

	assert.Contains(t, mem.Reports(), "conformity-pulsecredit-v2.1")
}

func TestRunByName(t *testing.T) {
	suite, _ := newTestSuite(t)
	ctx := context.Background()

	res, err := suite.Run(ctx, AgentBiasWatch, map[string]any{
		"period_start": "2026-02-16",
		"period_end":   "2026-02-23",
	})
	require.NoError(t, err)
	assert.Equal(t, domain.TerminalDone, res.Kind, res.Error)

	_, err = suite.Run(ctx, "nonsense", nil)
	assert.Error(t, err)
}

func TestBiasWatchReportID(t *testing.T) {
	assert.Equal(t, "bias-watch-2026-W09", BiasWatchReportID("2026-02-23"))
	assert.Equal(t, "bias-watch-2026-W01", BiasWatchReportID("2025-12-29"))
}
