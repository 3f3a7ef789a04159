package agents

import (
	"context"
	"encoding/json"
	"strings"

	"github.com/finpulse/aicomply/internal/backend"
	"github.com/finpulse/aicomply/internal/domain"
	"github.com/finpulse/aicomply/internal/tools"
)

// FRIARequest asks for an Article 27 Fundamental Rights Impact
// Assessment draft.
type FRIARequest struct {
	SystemName         string   `json:"system_name"`
	AffectedPopulation string   `json:"affected_population"`
	RiskTier           string   `json:"risk_tier"`
	DPIAReference      string   `json:"dpia_reference,omitempty"`
	SensitiveGroups    []string `json:"sensitive_groups,omitempty"`
}

func friaRequestFromParams(params map[string]any) FRIARequest {
	req := FRIARequest{
		SystemName:         stringArg(params, "system_name"),
		AffectedPopulation: stringArg(params, "affected_population"),
		RiskTier:           stringArg(params, "risk_tier"),
		DPIAReference:      stringArg(params, "dpia_reference"),
	}
	for _, v := range sliceArg(params, "sensitive_groups") {
		if s, ok := v.(string); ok {
			req.SensitiveGroups = append(req.SensitiveGroups, s)
		}
	}
	if req.RiskTier == "" {
		req.RiskTier = "HIGH_RISK"
	}
	return req
}

// RequiredRights is the fixed set of Charter rights every FRIA must
// assess.
var RequiredRights = []string{
	"non_discrimination",
	"privacy_data_protection",
	"access_to_financial_services",
	"right_to_explanation",
	"human_dignity",
	"freedom_from_manipulation",
}

const friaInstructions = "You are FRIAAgent, an EU AI Act Article 27 Fundamental Rights Impact " +
	"Assessment specialist. Systematically assess each fundamental right under the EU " +
	"Charter of Fundamental Rights. For each right: identify potential impacts, assess " +
	"likelihood and severity, propose proportionate mitigations, and determine residual " +
	"risk. Always cross-reference with the GDPR DPIA where provided."

var friaOutputSchema = json.RawMessage(`{
	"type": "object",
	"properties": {
		"status": {"type": "string"},
		"system": {"type": "string"},
		"rights_assessed": {"type": "integer"},
		"residual_risks": {"type": "object"},
		"overall_assessment": {"type": "string"},
		"conditions": {"type": "array", "items": {"type": "string"}},
		"output_path": {"type": "string"}
	},
	"required": ["status", "system", "rights_assessed", "residual_risks", "overall_assessment", "output_path"]
}`)

// residualRisks is the post-mitigation risk grading per right.
var residualRisks = map[string]string{
	"non_discrimination":           "LOW-MEDIUM",
	"privacy_data_protection":      "LOW",
	"access_to_financial_services": "MEDIUM",
	"right_to_explanation":         "LOW",
	"human_dignity":                "LOW",
	"freedom_from_manipulation":    "LOW",
}

var friaConditions = []string{
	"Q2 2026 age group (18-30) remediation review must be completed",
	"Thin-file manual review must remain mandatory and not be bypassed",
	"PulseConnect FRIA must also be completed",
	"Vulnerable customer protocol must be maintained",
}

func (s *Suite) friaRegistry() *tools.Registry {
	reg := tools.NewRegistry()

	reg.MustRegister(domain.ToolDefinition{
		Name:        "assess_fundamental_right",
		Description: "Assess the potential impact, likelihood and severity for one Charter right.",
		Schema: json.RawMessage(`{
			"type": "object",
			"properties": {
				"right": {"type": "string"},
				"legal_basis": {"type": "string"}
			},
			"required": ["right"]
		}`),
		Handler: func(ctx context.Context, args map[string]any) (map[string]any, error) {
			right := stringArg(args, "right")
			impact, err := s.store.RightImpact(ctx, right)
			if err != nil {
				return nil, err
			}
			return map[string]any{
				"right":            right,
				"legal_basis":      stringArg(args, "legal_basis"),
				"potential_impact": impact.Impact,
				"likelihood":       impact.Likelihood,
				"severity":         impact.Severity,
			}, nil
		},
	})

	reg.MustRegister(domain.ToolDefinition{
		Name:        "propose_mitigation_measures",
		Description: "List the mitigation measures in place or planned for one Charter right.",
		Schema: json.RawMessage(`{
			"type": "object",
			"properties": {"right": {"type": "string"}},
			"required": ["right"]
		}`),
		Handler: func(ctx context.Context, args map[string]any) (map[string]any, error) {
			right := stringArg(args, "right")
			measures, err := s.store.Mitigations(ctx, right)
			if err != nil {
				return nil, err
			}
			out := make([]any, 0, len(measures))
			for _, m := range measures {
				out = append(out, m)
			}
			return map[string]any{"right": right, "mitigation_measures": out}, nil
		},
	})

	reg.MustRegister(domain.ToolDefinition{
		Name:        "cross_reference_dpia",
		Description: "Pull the key findings of an existing GDPR DPIA for cross-reference.",
		Schema: json.RawMessage(`{
			"type": "object",
			"properties": {"dpia_reference": {"type": "string"}},
			"required": ["dpia_reference"]
		}`),
		Handler: func(ctx context.Context, args map[string]any) (map[string]any, error) {
			ref := stringArg(args, "dpia_reference")
			findings, err := s.store.DPIAFindings(ctx, ref)
			if err != nil {
				return nil, err
			}
			keyFindings := make([]any, 0, len(findings))
			for _, f := range findings {
				keyFindings = append(keyFindings, f)
			}
			return map[string]any{
				"dpia_reference": ref,
				"key_findings":   keyFindings,
				"fria_extensions": []any{
					"FRIA extends DPIA to non-data-protection fundamental rights",
					"Art. 22(3) safeguards documented in the human oversight design",
				},
			}, nil
		},
	})

	reg.MustRegister(domain.ToolDefinition{
		Name:        "generate_fria_report",
		Description: "Assemble and publish the complete FRIA draft with residual risks and conditions.",
		Schema: json.RawMessage(`{
			"type": "object",
			"properties": {
				"system_name": {"type": "string"},
				"rights_assessments": {"type": "array"}
			},
			"required": ["system_name", "rights_assessments"]
		}`),
		Handler: func(ctx context.Context, args map[string]any) (map[string]any, error) {
			system := stringArg(args, "system_name")
			assessments := sliceArg(args, "rights_assessments")

			risks := make(map[string]any, len(residualRisks))
			for right, risk := range residualRisks {
				risks[right] = risk
			}
			conditions := make([]any, 0, len(friaConditions))
			for _, c := range friaConditions {
				conditions = append(conditions, c)
			}

			reportID := strings.ToLower(strings.ReplaceAll(system, " ", "-")) + "-fria"
			locator, err := s.store.Publish(ctx, reportID, map[string]any{
				"system":             system,
				"rights_assessments": assessments,
				"residual_risks":     risks,
				"conditions":         conditions,
			})
			if err != nil {
				return nil, err
			}

			return map[string]any{
				"status":             "DRAFT_GENERATED",
				"system":             system,
				"rights_assessed":    len(assessments),
				"residual_risks":     risks,
				"overall_assessment": "Residual risks assessed as acceptable subject to conditions noted",
				"conditions":         conditions,
				"output_path":        locator,
			}, nil
		},
	})

	return reg
}

// GenerateFRIA generates an Article 27 assessment draft. A Done result
// carries the FRIA summary as Output.
func (s *Suite) GenerateFRIA(ctx context.Context, req FRIARequest) *domain.TerminalResult {
	return s.run(ctx, AgentFRIA, domain.TaskRequest{
		Kind:         domain.TaskKindFRIA,
		Instructions: friaInstructions,
		Params:       toMap(req),
		OutputSchema: friaOutputSchema,
	})
}

// friaScript is the mock-mode run: all six rights assessed in one
// round, mitigations in the next, the DPIA cross-reference, then the
// report.
func friaScript() backend.Backend {
	return backend.NewScripted(
		func(tr *domain.Transcript) (*backend.Reply, error) {
			invocations := make([]domain.ToolInvocation, 0, len(RequiredRights))
			for _, right := range RequiredRights {
				invocations = append(invocations, domain.ToolInvocation{
					Name: "assess_fundamental_right",
					Args: map[string]any{"right": right},
				})
			}
			return backend.Invoke(invocations...)(tr)
		},
		func(tr *domain.Transcript) (*backend.Reply, error) {
			invocations := make([]domain.ToolInvocation, 0, len(RequiredRights))
			for _, right := range RequiredRights {
				invocations = append(invocations, domain.ToolInvocation{
					Name: "propose_mitigation_measures",
					Args: map[string]any{"right": right},
				})
			}
			return backend.Invoke(invocations...)(tr)
		},
		func(tr *domain.Transcript) (*backend.Reply, error) {
			params := taskParams(tr)
			ref := stringArg(params, "dpia_reference")
			if ref == "" {
				ref = "none"
			}
			return backend.Invoke(domain.ToolInvocation{
				Name: "cross_reference_dpia",
				Args: map[string]any{"dpia_reference": ref},
			})(tr)
		},
		func(tr *domain.Transcript) (*backend.Reply, error) {
			params := taskParams(tr)
			assessments := make([]any, 0)
			for _, e := range tr.Entries {
				if e.Kind != domain.EntryResults {
					continue
				}
				for _, r := range e.Results {
					if r.ToolName == "assess_fundamental_right" && r.Payload != nil {
						assessments = append(assessments, r.Payload)
					}
				}
			}
			return backend.Invoke(domain.ToolInvocation{
				Name: "generate_fria_report",
				Args: map[string]any{
					"system_name":        stringArg(params, "system_name"),
					"rights_assessments": assessments,
				},
			})(tr)
		},
		func(tr *domain.Transcript) (*backend.Reply, error) {
			return backend.FinalJSON(lastPayload(tr))(tr)
		},
	)
}
