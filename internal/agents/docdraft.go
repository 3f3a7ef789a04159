package agents

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"strings"

	"github.com/finpulse/aicomply/internal/backend"
	"github.com/finpulse/aicomply/internal/domain"
	"github.com/finpulse/aicomply/internal/tools"
)

// DocumentationRequest asks for an Annex IV technical documentation
// draft sourced from the model registry and the data catalog.
type DocumentationRequest struct {
	RegistryURI       string `json:"registry_uri"`
	CatalogRef        string `json:"catalog_ref"`
	RiskTier          string `json:"risk_tier"`
	SystemOwner       string `json:"system_owner,omitempty"`
	TargetDate        string `json:"target_date,omitempty"`
	AdditionalContext string `json:"additional_context,omitempty"`
}

func documentationRequestFromParams(params map[string]any) DocumentationRequest {
	req := DocumentationRequest{
		RegistryURI:       stringArg(params, "registry_uri"),
		CatalogRef:        stringArg(params, "catalog_ref"),
		RiskTier:          stringArg(params, "risk_tier"),
		SystemOwner:       stringArg(params, "system_owner"),
		TargetDate:        stringArg(params, "target_date"),
		AdditionalContext: stringArg(params, "additional_context"),
	}
	if req.RiskTier == "" {
		req.RiskTier = "HIGH_RISK"
	}
	return req
}

const docDraftInstructions = "You are DocDraftAgent, an EU AI Act Annex IV documentation " +
	"specialist. Generate a structured technical documentation draft by querying the " +
	"model registry and data catalog systems. Map all retrieved metadata to the " +
	"corresponding Annex IV sections and clearly flag any fields that require human " +
	"completion. Aim for maximum automation."

var docDraftOutputSchema = json.RawMessage(`{
	"type": "object",
	"properties": {
		"status": {"type": "string"},
		"output_path": {"type": "string"},
		"completeness_pct": {"type": "number"},
		"fields_populated": {"type": "integer"},
		"fields_requiring_human_input": {"type": "integer"},
		"missing_fields": {"type": "array", "items": {"type": "string"}}
	},
	"required": ["status", "output_path", "completeness_pct", "fields_populated", "fields_requiring_human_input"]
}`)

// annexIVMissing lists the Annex IV sections no internal system can
// fill; they always require human completion.
var annexIVMissing = []string{
	"Section 2.3 - Known failure modes and edge cases",
	"Section 3.4 - Post-market monitoring plan",
	"Section 4.1 - Instructions for deployers",
	"Section 5.2 - Residual risk justification",
	"Section 6.1 - Cybersecurity test results",
	"Section 7.0 - Signatory and declaration",
}

func (s *Suite) docDraftRegistry() *tools.Registry {
	reg := tools.NewRegistry()

	reg.MustRegister(domain.ToolDefinition{
		Name:        "fetch_model_metadata",
		Description: "Query the model registry for architecture, training and performance metadata.",
		Schema: json.RawMessage(`{
			"type": "object",
			"properties": {"registry_uri": {"type": "string"}},
			"required": ["registry_uri"]
		}`),
		Handler: func(ctx context.Context, args map[string]any) (map[string]any, error) {
			md, err := s.store.ModelMetadata(ctx, stringArg(args, "registry_uri"))
			if err != nil {
				return nil, err
			}
			return toMap(md), nil
		},
	})

	reg.MustRegister(domain.ToolDefinition{
		Name:        "fetch_data_catalog",
		Description: "Query the data catalog for training data lineage and governance records.",
		Schema: json.RawMessage(`{
			"type": "object",
			"properties": {"catalog_ref": {"type": "string"}},
			"required": ["catalog_ref"]
		}`),
		Handler: func(ctx context.Context, args map[string]any) (map[string]any, error) {
			cat, err := s.store.DataCatalog(ctx, stringArg(args, "catalog_ref"))
			if err != nil {
				return nil, err
			}
			return toMap(cat), nil
		},
	})

	reg.MustRegister(domain.ToolDefinition{
		Name:        "populate_annex_iv_template",
		Description: "Map registry and catalog metadata onto the Annex IV section template.",
		Schema: json.RawMessage(`{
			"type": "object",
			"properties": {
				"registry_uri": {"type": "string"},
				"catalog_ref": {"type": "string"}
			},
			"required": ["registry_uri", "catalog_ref"]
		}`),
		Handler: func(ctx context.Context, args map[string]any) (map[string]any, error) {
			md, err := s.store.ModelMetadata(ctx, stringArg(args, "registry_uri"))
			if err != nil {
				return nil, err
			}
			cat, err := s.store.DataCatalog(ctx, stringArg(args, "catalog_ref"))
			if err != nil {
				return nil, err
			}

			sources := make([]string, 0, len(cat.Sources))
			var records int
			for _, src := range cat.Sources {
				sources = append(sources, src.Name)
				if src.Records > records {
					records = src.Records
				}
			}
			populated := map[string]any{
				"1_general_description": fmt.Sprintf("%s - AI credit scoring and loan origination", md.ModelID),
				"2_system_description":  md.Architecture,
				"3_training_data":       fmt.Sprintf("%d records, %s", records, strings.Join(sources, " + ")),
				"4_performance_metrics": fmt.Sprintf("AUC-ROC: %v | GINI: %v | KS: %v | PSI: %v", md.AUCROC, md.Gini, md.KSStatistic, md.PSI),
				"5_bias_assessment":     fmt.Sprintf("%s. Postcode feature removed: %v.", cat.BiasAssessment, cat.PostcodeRemoved),
				"6_logging_config":      "6-month retention - pending engineering implementation",
			}
			missing := make([]any, 0, len(annexIVMissing))
			for _, m := range annexIVMissing {
				missing = append(missing, m)
			}
			return map[string]any{
				"populated_fields": populated,
				"missing_fields":   missing,
				"completeness_pct": completenessPct(len(populated), len(missing)),
			}, nil
		},
	})

	reg.MustRegister(domain.ToolDefinition{
		Name:        "export_documentation_draft",
		Description: "Persist the documentation draft and report completeness and open action items.",
		Schema: json.RawMessage(`{
			"type": "object",
			"properties": {
				"populated_fields": {"type": "object"},
				"missing_fields": {"type": "array", "items": {"type": "string"}},
				"output_path": {"type": "string"}
			},
			"required": ["populated_fields", "missing_fields"]
		}`),
		Handler: func(ctx context.Context, args map[string]any) (map[string]any, error) {
			populated := mapArg(args, "populated_fields")
			missing := sliceArg(args, "missing_fields")

			path := stringArg(args, "output_path")
			if path == "" {
				path = "compliance/artifacts/annex-iv-draft.json"
			}
			draftID := strings.TrimSuffix(strings.TrimPrefix(path, "compliance/artifacts/"), ".json")
			locator, err := s.store.Publish(ctx, draftID, map[string]any{
				"populated_fields": populated,
				"missing_fields":   missing,
			})
			if err != nil {
				return nil, err
			}

			return map[string]any{
				"status":                       "DRAFT_SAVED",
				"output_path":                  locator,
				"completeness_pct":             completenessPct(len(populated), len(missing)),
				"fields_populated":             len(populated),
				"fields_requiring_human_input": len(missing),
				"missing_fields":               missing,
			}, nil
		},
	})

	return reg
}

func completenessPct(populated, missing int) float64 {
	total := populated + missing
	if total == 0 {
		return 0
	}
	return math.Round(1000*float64(populated)/float64(total)) / 10
}

// DraftDocumentation generates an Annex IV technical documentation
// draft. A Done result carries the draft summary as Output.
func (s *Suite) DraftDocumentation(ctx context.Context, req DocumentationRequest) *domain.TerminalResult {
	return s.run(ctx, AgentDocDraft, domain.TaskRequest{
		Kind:         domain.TaskKindDocumentation,
		Instructions: docDraftInstructions,
		Params:       toMap(req),
		OutputSchema: docDraftOutputSchema,
	})
}

// docDraftScript is the mock-mode run: registry fetch, catalog fetch,
// template population, then export.
func docDraftScript() backend.Backend {
	return backend.NewScripted(
		func(tr *domain.Transcript) (*backend.Reply, error) {
			params := taskParams(tr)
			return backend.Invoke(domain.ToolInvocation{
				Name: "fetch_model_metadata",
				Args: map[string]any{"registry_uri": stringArg(params, "registry_uri")},
			})(tr)
		},
		func(tr *domain.Transcript) (*backend.Reply, error) {
			params := taskParams(tr)
			return backend.Invoke(domain.ToolInvocation{
				Name: "fetch_data_catalog",
				Args: map[string]any{"catalog_ref": stringArg(params, "catalog_ref")},
			})(tr)
		},
		func(tr *domain.Transcript) (*backend.Reply, error) {
			params := taskParams(tr)
			return backend.Invoke(domain.ToolInvocation{
				Name: "populate_annex_iv_template",
				Args: map[string]any{
					"registry_uri": stringArg(params, "registry_uri"),
					"catalog_ref":  stringArg(params, "catalog_ref"),
				},
			})(tr)
		},
		func(tr *domain.Transcript) (*backend.Reply, error) {
			template := lastPayload(tr)
			return backend.Invoke(domain.ToolInvocation{
				Name: "export_documentation_draft",
				Args: map[string]any{
					"populated_fields": mapArg(template, "populated_fields"),
					"missing_fields":   sliceArg(template, "missing_fields"),
					"output_path":      "compliance/artifacts/pulsecredit-v2.1.3-annex-iv-draft.json",
				},
			})(tr)
		},
		func(tr *domain.Transcript) (*backend.Reply, error) {
			return backend.FinalJSON(lastPayload(tr))(tr)
		},
	)
}
