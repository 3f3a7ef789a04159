package agents

import (
	"context"
	"encoding/json"
	"fmt"
	"math"

	"github.com/finpulse/aicomply/internal/backend"
	"github.com/finpulse/aicomply/internal/domain"
	"github.com/finpulse/aicomply/internal/tools"
)

// ConformityRequest asks for an Annex VI conformity assessment of a
// high-risk AI system.
type ConformityRequest struct {
	SystemID       string `json:"system_id"`
	RepositoryPath string `json:"repository_path"`
	LogEndpoint    string `json:"log_endpoint,omitempty"`
	AssessmentType string `json:"assessment_type"`
}

func conformityRequestFromParams(params map[string]any) ConformityRequest {
	req := ConformityRequest{
		SystemID:       stringArg(params, "system_id"),
		RepositoryPath: stringArg(params, "repository_path"),
		LogEndpoint:    stringArg(params, "log_endpoint"),
		AssessmentType: stringArg(params, "assessment_type"),
	}
	if req.SystemID == "" {
		req.SystemID = "pulsecredit-v2.1"
	}
	if req.RepositoryPath == "" {
		req.RepositoryPath = "sharepoint://compliance/eu-ai-act/pulsecredit/"
	}
	if req.AssessmentType == "" {
		req.AssessmentType = "Monthly Spot Check"
	}
	return req
}

const conformityInstructions = "You are ConformityBot, an EU AI Act Annex VI conformity " +
	"assessment specialist. Systematically verify each Article 16 obligation by checking " +
	"document existence, log retention, and oversight implementation. For each check: " +
	"document the evidence found, assign status (PASS/PARTIAL/FAIL), and record notes. " +
	"Calculate the overall conformity score as percentage of obligations met. Generate a " +
	"structured conformity report with all Non-Conformity Reports (NCRs)."

var conformityOutputSchema = json.RawMessage(`{
	"type": "object",
	"properties": {
		"status": {"type": "string"},
		"output_path": {"type": "string"},
		"overall_score": {"type": "number"},
		"total_obligations": {"type": "integer"},
		"obligations_met": {"type": "integer"},
		"ncr_count": {"type": "integer"},
		"ncrs": {"type": "array"}
	},
	"required": ["status", "output_path", "overall_score", "total_obligations", "obligations_met", "ncr_count", "ncrs"]
}`)

// conformityChecklist maps each provider obligation to the repository
// evidence that proves it. Art. 12 is verified through the retention
// check instead of a document.
var conformityChecklist = []struct {
	Article      string
	Obligation   string
	DocumentType string
}{
	{"Art. 9", "Risk Management System documented and operational", "risk_management_system"},
	{"Art. 10", "Data governance policy and bias assessment completed", "bias_assessment"},
	{"Art. 11", "Annex IV technical documentation complete (>80%)", "technical_documentation"},
	{"Art. 12", "Logging configured with >=6-month retention", ""},
	{"Art. 13", "Instructions for use provided to deployers", "technical_documentation"},
	{"Art. 14", "Human oversight (HITL) mechanism deployed", "human_oversight_procedure"},
	{"Art. 27", "Fundamental Rights Impact Assessment completed", "fria"},
	{"Art. 43", "Declaration of Conformity issued", "conformity_declaration"},
}

// oversightCheckNames are the Article 14 controls verified against the
// oversight system.
var oversightCheckNames = []string{
	"override_mechanism_present",
	"override_logging_active",
	"shap_explanation_displayed",
	"training_records_complete",
	"hitl_workflow_deployed",
}

func (s *Suite) conformityRegistry() *tools.Registry {
	reg := tools.NewRegistry()

	reg.MustRegister(domain.ToolDefinition{
		Name:        "check_document_exists",
		Description: "Check the repository for one compliance document and report its completeness.",
		Schema: json.RawMessage(`{
			"type": "object",
			"properties": {
				"document_type": {"type": "string"},
				"repository_path": {"type": "string"}
			},
			"required": ["document_type"]
		}`),
		Handler: func(ctx context.Context, args map[string]any) (map[string]any, error) {
			state, err := s.store.DocumentState(ctx, stringArg(args, "document_type"))
			if err != nil {
				return nil, err
			}
			out := toMap(state)
			out["document_type"] = stringArg(args, "document_type")
			return out, nil
		},
	})

	reg.MustRegister(domain.ToolDefinition{
		Name:        "check_log_retention",
		Description: "Verify decision-log retention against the Article 12 minimum.",
		Schema: json.RawMessage(`{
			"type": "object",
			"properties": {"required_retention_days": {"type": "integer"}},
			"required": []
		}`),
		Handler: func(ctx context.Context, args map[string]any) (map[string]any, error) {
			retention, err := s.store.LogRetention(ctx)
			if err != nil {
				return nil, err
			}
			required := int(floatArg(args, "required_retention_days"))
			if required == 0 {
				required = retention.RequiredDays
			}
			compliant := retention.ConfiguredDays >= required
			status := "PASS"
			notes := "Retention meets the Article 12 minimum."
			if !compliant {
				status = "FAIL"
				notes = fmt.Sprintf("Retention %dx below minimum. Engineering remediation required.",
					required/max(retention.ConfiguredDays, 1))
			}
			return map[string]any{
				"configured_retention_days": retention.ConfiguredDays,
				"required_retention_days":   required,
				"compliant":                 compliant,
				"gap_days":                  max(required-retention.ConfiguredDays, 0),
				"status":                    status,
				"notes":                     notes,
			}, nil
		},
	})

	reg.MustRegister(domain.ToolDefinition{
		Name:        "verify_oversight_implementation",
		Description: "Verify which Article 14 human oversight controls are implemented.",
		Schema: json.RawMessage(`{
			"type": "object",
			"properties": {"checks": {"type": "array", "items": {"type": "string"}}},
			"required": ["checks"]
		}`),
		Handler: func(ctx context.Context, args map[string]any) (map[string]any, error) {
			names := make([]string, 0)
			for _, v := range sliceArg(args, "checks") {
				if name, ok := v.(string); ok {
					names = append(names, name)
				}
			}
			results, err := s.store.OversightChecks(ctx, names)
			if err != nil {
				return nil, err
			}
			passed := 0
			checks := make(map[string]any, len(results))
			for name, ok := range results {
				checks[name] = ok
				if ok {
					passed++
				}
			}
			status := "FAIL"
			if passed > 0 {
				status = "PARTIAL"
			}
			if passed == len(names) && len(names) > 0 {
				status = "PASS"
			}
			return map[string]any{
				"checks": checks,
				"passed": passed,
				"total":  len(names),
				"status": status,
			}, nil
		},
	})

	reg.MustRegister(domain.ToolDefinition{
		Name:        "generate_conformity_report",
		Description: "Assemble and publish the conformity report with NCR numbering and overall score.",
		Schema: json.RawMessage(`{
			"type": "object",
			"properties": {
				"system_id": {"type": "string"},
				"check_results": {"type": "array"}
			},
			"required": ["system_id", "check_results"]
		}`),
		Handler: func(ctx context.Context, args map[string]any) (map[string]any, error) {
			systemID := stringArg(args, "system_id")
			checkResults := sliceArg(args, "check_results")

			met, partial := 0, 0
			ncrs := make([]any, 0)
			for _, raw := range checkResults {
				result, ok := raw.(map[string]any)
				if !ok {
					continue
				}
				switch stringArg(result, "status") {
				case "PASS":
					met++
					continue
				case "PARTIAL":
					partial++
				}
				ncrs = append(ncrs, map[string]any{
					"id":         fmt.Sprintf("NCR-%03d", len(ncrs)+1),
					"article":    stringArg(result, "article"),
					"obligation": stringArg(result, "obligation"),
					"status":     stringArg(result, "status"),
					"notes":      stringArg(result, "notes"),
				})
			}

			total := len(checkResults)
			score := 0.0
			if total > 0 {
				score = math.Round(100 * (float64(met) + 0.5*float64(partial)) / float64(total))
			}

			reportID := "conformity-" + systemID
			locator, err := s.store.Publish(ctx, reportID, map[string]any{
				"system_id":     systemID,
				"check_results": checkResults,
				"ncrs":          ncrs,
				"overall_score": score,
			})
			if err != nil {
				return nil, err
			}

			return map[string]any{
				"status":            "REPORT_GENERATED",
				"output_path":       locator,
				"overall_score":     score,
				"total_obligations": total,
				"obligations_met":   met,
				"ncr_count":         len(ncrs),
				"ncrs":              ncrs,
			}, nil
		},
	})

	return reg
}

// RunConformityCheck runs an Annex VI assessment. A Done result carries
// the conformity report summary as Output.
func (s *Suite) RunConformityCheck(ctx context.Context, req ConformityRequest) *domain.TerminalResult {
	return s.run(ctx, AgentConformity, domain.TaskRequest{
		Kind:         domain.TaskKindConformity,
		Instructions: conformityInstructions,
		Params:       toMap(req),
		OutputSchema: conformityOutputSchema,
	})
}

// conformityScript is the mock-mode run: every checklist document in
// one round, the retention check, the oversight verification, then the
// report assembled from the recorded evidence.
func conformityScript() backend.Backend {
	return backend.NewScripted(
		func(tr *domain.Transcript) (*backend.Reply, error) {
			params := taskParams(tr)
			seen := make(map[string]bool)
			invocations := make([]domain.ToolInvocation, 0)
			for _, item := range conformityChecklist {
				if item.DocumentType == "" || seen[item.DocumentType] {
					continue
				}
				seen[item.DocumentType] = true
				invocations = append(invocations, domain.ToolInvocation{
					Name: "check_document_exists",
					Args: map[string]any{
						"document_type":   item.DocumentType,
						"repository_path": stringArg(params, "repository_path"),
					},
				})
			}
			return backend.Invoke(invocations...)(tr)
		},
		func(tr *domain.Transcript) (*backend.Reply, error) {
			return backend.Invoke(domain.ToolInvocation{
				Name: "check_log_retention",
				Args: map[string]any{"required_retention_days": 183},
			})(tr)
		},
		func(tr *domain.Transcript) (*backend.Reply, error) {
			checks := make([]any, 0, len(oversightCheckNames))
			for _, name := range oversightCheckNames {
				checks = append(checks, name)
			}
			return backend.Invoke(domain.ToolInvocation{
				Name: "verify_oversight_implementation",
				Args: map[string]any{"checks": checks},
			})(tr)
		},
		func(tr *domain.Transcript) (*backend.Reply, error) {
			params := taskParams(tr)

			docStates := make(map[string]map[string]any)
			var retention, oversight map[string]any
			for _, e := range tr.Entries {
				if e.Kind != domain.EntryResults {
					continue
				}
				for _, r := range e.Results {
					if r.Status != domain.ToolResultOK || r.Payload == nil {
						continue
					}
					switch r.ToolName {
					case "check_document_exists":
						docStates[stringArg(r.Payload, "document_type")] = r.Payload
					case "check_log_retention":
						retention = r.Payload
					case "verify_oversight_implementation":
						oversight = r.Payload
					}
				}
			}

			checkResults := make([]any, 0, len(conformityChecklist))
			for _, item := range conformityChecklist {
				entry := map[string]any{
					"article":    item.Article,
					"obligation": item.Obligation,
					"status":     "FAIL",
					"notes":      "No evidence located.",
				}
				switch {
				case item.Article == "Art. 12" && retention != nil:
					entry["status"] = stringArg(retention, "status")
					entry["notes"] = stringArg(retention, "notes")
				case item.Article == "Art. 14" && oversight != nil:
					entry["status"] = stringArg(oversight, "status")
					entry["notes"] = fmt.Sprintf("%v of %v oversight controls implemented.",
						oversight["passed"], oversight["total"])
				default:
					if state := docStates[item.DocumentType]; state != nil {
						entry["status"] = stringArg(state, "status")
						entry["notes"] = stringArg(state, "notes")
					}
				}
				checkResults = append(checkResults, entry)
			}

			return backend.Invoke(domain.ToolInvocation{
				Name: "generate_conformity_report",
				Args: map[string]any{
					"system_id":     stringArg(params, "system_id"),
					"check_results": checkResults,
				},
			})(tr)
		},
		func(tr *domain.Transcript) (*backend.Reply, error) {
			return backend.FinalJSON(lastPayload(tr))(tr)
		},
	)
}
