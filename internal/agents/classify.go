package agents

import (
	"context"
	"encoding/json"
	"strings"

	"github.com/finpulse/aicomply/internal/backend"
	"github.com/finpulse/aicomply/internal/domain"
	"github.com/finpulse/aicomply/internal/tools"
)

// SystemDescription describes the AI system being classified under the
// Regulation 2024/1689 four-tier risk framework.
type SystemDescription struct {
	Name              string   `json:"name"`
	Purpose           string   `json:"purpose"`
	Inputs            []string `json:"inputs,omitempty"`
	Outputs           []string `json:"outputs,omitempty"`
	DeploymentContext string   `json:"deployment_context"`
	SolePurposeFraud  bool     `json:"sole_purpose_fraud"`
}

func systemDescriptionFromParams(params map[string]any) SystemDescription {
	desc := SystemDescription{
		Name:              stringArg(params, "name"),
		Purpose:           stringArg(params, "purpose"),
		DeploymentContext: stringArg(params, "deployment_context"),
		SolePurposeFraud:  boolArg(params, "sole_purpose_fraud"),
	}
	for _, v := range sliceArg(params, "inputs") {
		if s, ok := v.(string); ok {
			desc.Inputs = append(desc.Inputs, s)
		}
	}
	for _, v := range sliceArg(params, "outputs") {
		if s, ok := v.(string); ok {
			desc.Outputs = append(desc.Outputs, s)
		}
	}
	return desc
}

const classifyInstructions = "You are ClassifyBot, an EU AI Act risk-tier classification expert. " +
	"Systematically classify AI systems using the four-tier risk framework " +
	"(Prohibited, High-Risk, Limited-Risk, Minimal-Risk). Always cite specific " +
	"articles and annexes. Screen for Article 5 prohibited practices first, then " +
	"check Annex III, then evaluate the Recital 58 fraud exemption if relevant. " +
	"Return a structured JSON classification report."

var classifyOutputSchema = json.RawMessage(`{
	"type": "object",
	"properties": {
		"risk_tier": {"type": "string", "enum": ["PROHIBITED", "HIGH_RISK", "LIMITED_RISK", "MINIMAL_RISK"]},
		"legal_basis": {"type": "string"},
		"obligations": {"type": "array", "items": {"type": "string"}},
		"confidence": {"type": "number"},
		"deadline": {"type": "string"}
	},
	"required": ["risk_tier", "legal_basis", "obligations", "confidence", "deadline"]
}`)

// complianceDeadline is the Regulation 2024/1689 application date for
// high-risk obligations.
const complianceDeadline = "2026-08-02"

func obligationsForTier(tier string) []string {
	switch tier {
	case "HIGH_RISK":
		return []string{
			"Art. 9 - Risk Management System",
			"Art. 10 - Data Governance",
			"Art. 11 + Annex IV - Technical Documentation",
			"Art. 12 - Logging (min. 6 months)",
			"Art. 13 - Transparency / Instructions for Use",
			"Art. 14 - Human Oversight",
			"Art. 15 - Accuracy, Robustness, Cybersecurity",
			"Art. 43 - Conformity Assessment (Annex VI)",
			"Art. 27 - Fundamental Rights Impact Assessment",
		}
	case "LIMITED_RISK":
		return []string{"Art. 50 - Transparency obligations (chatbot disclosure)"}
	case "PROHIBITED":
		return []string{"Art. 5 - System must not be deployed"}
	default:
		return []string{}
	}
}

func (s *Suite) classifyRegistry() *tools.Registry {
	reg := tools.NewRegistry()

	reg.MustRegister(domain.ToolDefinition{
		Name:        "check_prohibited_practices",
		Description: "Screen the system purpose against the Article 5 prohibited practice list.",
		Schema: json.RawMessage(`{
			"type": "object",
			"properties": {"system_purpose": {"type": "string"}},
			"required": ["system_purpose"]
		}`),
		Handler: func(ctx context.Context, args map[string]any) (map[string]any, error) {
			return map[string]any{"result": "PASSED", "prohibited_matches": []any{}}, nil
		},
	})

	reg.MustRegister(domain.ToolDefinition{
		Name:        "check_annex_iii",
		Description: "Match the system purpose against the Annex III high-risk categories.",
		Schema: json.RawMessage(`{
			"type": "object",
			"properties": {
				"system_purpose": {"type": "string"},
				"deployment_context": {"type": "string"}
			},
			"required": ["system_purpose"]
		}`),
		Handler: func(ctx context.Context, args map[string]any) (map[string]any, error) {
			purpose := strings.ToLower(stringArg(args, "system_purpose"))
			deployCtx := strings.ToLower(stringArg(args, "deployment_context"))
			if strings.Contains(purpose, "credit") || strings.Contains(purpose, "creditworthiness") || strings.Contains(purpose, "loan") {
				return map[string]any{
					"match_found": true,
					"category":    "Annex III, Point 5(b)",
					"citation": "AI systems intended to be used to evaluate the creditworthiness " +
						"of natural persons or establish their credit score",
					"confidence": 0.97,
				}, nil
			}
			if strings.Contains(purpose, "fraud") && !strings.Contains(deployCtx, "credit") {
				return map[string]any{
					"match_found": false,
					"note":        "Possible Recital 58 fraud exemption - check_fraud_exemption",
				}, nil
			}
			return map[string]any{"match_found": false, "note": "No direct Annex III match"}, nil
		},
	})

	reg.MustRegister(domain.ToolDefinition{
		Name:        "check_fraud_exemption",
		Description: "Evaluate whether the Recital 58 fraud-detection exemption applies.",
		Schema: json.RawMessage(`{
			"type": "object",
			"properties": {"sole_purpose_fraud": {"type": "boolean"}},
			"required": ["sole_purpose_fraud"]
		}`),
		Handler: func(ctx context.Context, args map[string]any) (map[string]any, error) {
			sole := boolArg(args, "sole_purpose_fraud")
			reasoning := "Recital 58 exemption applies only when fraud/AML detection is the sole primary purpose."
			if sole {
				reasoning = "Recital 58 exemption applies - system is solely for fraud detection."
			}
			return map[string]any{"exemption_applies": sole, "reasoning": reasoning}, nil
		},
	})

	reg.MustRegister(domain.ToolDefinition{
		Name:        "generate_classification_report",
		Description: "Assemble the final structured classification report with the tier's obligations.",
		Schema: json.RawMessage(`{
			"type": "object",
			"properties": {
				"risk_tier": {"type": "string", "enum": ["PROHIBITED", "HIGH_RISK", "LIMITED_RISK", "MINIMAL_RISK"]},
				"legal_basis": {"type": "string"},
				"confidence": {"type": "number"}
			},
			"required": ["risk_tier", "legal_basis"]
		}`),
		Handler: func(ctx context.Context, args map[string]any) (map[string]any, error) {
			tier := stringArg(args, "risk_tier")
			confidence := floatArg(args, "confidence")
			if confidence == 0 {
				confidence = 0.9
			}
			obligations := make([]any, 0)
			for _, o := range obligationsForTier(tier) {
				obligations = append(obligations, o)
			}
			return map[string]any{
				"risk_tier":   tier,
				"legal_basis": stringArg(args, "legal_basis"),
				"confidence":  confidence,
				"obligations": obligations,
				"deadline":    complianceDeadline,
			}, nil
		},
	})

	return reg
}

// Classify classifies one AI system and returns the terminal result of
// the run. A Done result carries the classification report as Output.
func (s *Suite) Classify(ctx context.Context, desc SystemDescription) *domain.TerminalResult {
	return s.run(ctx, AgentClassify, domain.TaskRequest{
		Kind:         domain.TaskKindClassification,
		Instructions: classifyInstructions,
		Params:       toMap(desc),
		OutputSchema: classifyOutputSchema,
	})
}

// classifyScript is the mock-mode run: Article 5 screen, Annex III
// match, Recital 58 evaluation, then the structured report.
func classifyScript() backend.Backend {
	return backend.NewScripted(
		func(tr *domain.Transcript) (*backend.Reply, error) {
			params := taskParams(tr)
			return backend.Invoke(domain.ToolInvocation{
				Name: "check_prohibited_practices",
				Args: map[string]any{"system_purpose": stringArg(params, "purpose")},
			})(tr)
		},
		func(tr *domain.Transcript) (*backend.Reply, error) {
			params := taskParams(tr)
			return backend.Invoke(domain.ToolInvocation{
				Name: "check_annex_iii",
				Args: map[string]any{
					"system_purpose":     stringArg(params, "purpose"),
					"deployment_context": stringArg(params, "deployment_context"),
				},
			})(tr)
		},
		func(tr *domain.Transcript) (*backend.Reply, error) {
			params := taskParams(tr)
			return backend.Invoke(domain.ToolInvocation{
				Name: "check_fraud_exemption",
				Args: map[string]any{"sole_purpose_fraud": boolArg(params, "sole_purpose_fraud")},
			})(tr)
		},
		func(tr *domain.Transcript) (*backend.Reply, error) {
			// The Annex III result is two rounds back; re-derive the
			// tier from the recorded match.
			annex := map[string]any{}
			for _, e := range tr.Entries {
				if e.Kind != domain.EntryResults {
					continue
				}
				for _, r := range e.Results {
					if r.ToolName == "check_annex_iii" && r.Payload != nil {
						annex = r.Payload
					}
				}
			}
			tier := "MINIMAL_RISK"
			basis := "No Annex III category or Article 5 practice matched"
			confidence := 0.9
			if boolArg(annex, "match_found") {
				tier = "HIGH_RISK"
				basis = "Art. 6(2) + " + stringArg(annex, "category")
				confidence = floatArg(annex, "confidence")
			}
			return backend.Invoke(domain.ToolInvocation{
				Name: "generate_classification_report",
				Args: map[string]any{"risk_tier": tier, "legal_basis": basis, "confidence": confidence},
			})(tr)
		},
		func(tr *domain.Transcript) (*backend.Reply, error) {
			return backend.FinalJSON(lastPayload(tr))(tr)
		},
	)
}
