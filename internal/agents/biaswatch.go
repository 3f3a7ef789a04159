package agents

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"time"

	"github.com/finpulse/aicomply/internal/backend"
	"github.com/finpulse/aicomply/internal/domain"
	"github.com/finpulse/aicomply/internal/fairness"
	"github.com/finpulse/aicomply/internal/tools"
)

const biasWatchInstructions = "You are BiasWatchAgent, an EU AI Act Article 10 bias monitoring " +
	"specialist. Query the reporting period's PulseCredit decisions, compute all " +
	"configured fairness metrics, compare to thresholds, create incident tickets for " +
	"any breaches, and publish a fairness report. Protected attributes: gender, " +
	"age_bracket (18-30, 31-54, 55-75), nationality (Dutch/non-Dutch). Be precise " +
	"about metric values and threshold comparisons."

var biasWatchOutputSchema = json.RawMessage(`{
	"type": "object",
	"properties": {
		"status": {"type": "string"},
		"report_id": {"type": "string"},
		"locator": {"type": "string"},
		"breach_count": {"type": "integer"},
		"tickets": {"type": "array", "items": {"type": "string"}}
	},
	"required": ["status", "report_id", "locator", "breach_count", "tickets"]
}`)

func (s *Suite) biasWatchRegistry() *tools.Registry {
	reg := tools.NewRegistry()

	reg.MustRegister(domain.ToolDefinition{
		Name:        "query_decision_log",
		Description: "Fetch one reporting period of credit decisions grouped by protected attribute.",
		Schema: json.RawMessage(`{
			"type": "object",
			"properties": {
				"start_date": {"type": "string"},
				"end_date": {"type": "string"}
			},
			"required": ["start_date", "end_date"]
		}`),
		Handler: func(ctx context.Context, args map[string]any) (map[string]any, error) {
			log, err := s.store.DecisionLog(ctx, stringArg(args, "start_date"), stringArg(args, "end_date"))
			if err != nil {
				return nil, err
			}
			return toMap(log), nil
		},
	})

	reg.MustRegister(domain.ToolDefinition{
		Name:        "compute_fairness_metrics",
		Description: "Compute demographic parity, equalized odds, approval-rate CV and PSI over a decision log and classify each value against its threshold.",
		Schema: json.RawMessage(`{
			"type": "object",
			"properties": {"data": {"type": "object"}},
			"required": ["data"]
		}`),
		Handler: func(ctx context.Context, args map[string]any) (map[string]any, error) {
			return s.computeFairnessMetrics(mapArg(args, "data"))
		},
	})

	reg.MustRegister(domain.ToolDefinition{
		Name:        "create_incident_ticket",
		Description: "Open an incident ticket for one threshold breach and notify the data science lead.",
		Schema: json.RawMessage(`{
			"type": "object",
			"properties": {
				"severity": {"type": "string", "enum": ["MEDIUM", "HIGH"]},
				"metric": {"type": "string"},
				"value": {"type": "number"},
				"threshold": {"type": "number"}
			},
			"required": ["severity", "metric", "value", "threshold"]
		}`),
		Handler: func(ctx context.Context, args map[string]any) (map[string]any, error) {
			ticketID, err := s.store.CreateIncident(ctx,
				stringArg(args, "severity"), stringArg(args, "metric"),
				floatArg(args, "value"), floatArg(args, "threshold"))
			if err != nil {
				return nil, err
			}
			return map[string]any{
				"ticket_id": ticketID,
				"status":    "CREATED",
				"severity":  stringArg(args, "severity"),
				"metric":    stringArg(args, "metric"),
				"notified":  []any{"head_of_data_science@finpulse.nl"},
			}, nil
		},
	})

	reg.MustRegister(domain.ToolDefinition{
		Name:        "publish_fairness_report",
		Description: "Publish the period's fairness report under its deterministic report id.",
		Schema: json.RawMessage(`{
			"type": "object",
			"properties": {
				"report_id": {"type": "string"},
				"payload": {"type": "object"}
			},
			"required": ["report_id"]
		}`),
		Handler: func(ctx context.Context, args map[string]any) (map[string]any, error) {
			reportID := stringArg(args, "report_id")
			locator, err := s.store.Publish(ctx, reportID, mapArg(args, "payload"))
			if err != nil {
				return nil, err
			}
			return map[string]any{
				"status":    "PUBLISHED",
				"report_id": reportID,
				"locator":   locator,
			}, nil
		},
	})

	return reg
}

// computeFairnessMetrics evaluates all configured metrics over a
// decision log in its wire form. Output order is fixed: attributes
// sorted lexicographically, pairwise metrics in evaluation order, the
// attribute's approval-rate CV, then PSI last. Breach entries carry a
// qualified label (metric_attribute) used as the incident metric name.
func (s *Suite) computeFairnessMetrics(data map[string]any) (map[string]any, error) {
	demographics := mapArg(data, "demographics")
	attributes := make([]string, 0, len(demographics))
	for attr := range demographics {
		attributes = append(attributes, attr)
	}
	sort.Strings(attributes)

	metrics := make([]any, 0)
	breaches := make([]any, 0)
	record := func(attribute string, r fairness.MetricResult) {
		entry := toMap(r)
		if attribute != "" {
			entry["attribute"] = attribute
			entry["label"] = r.Metric + "_" + attribute
		} else {
			entry["label"] = r.Metric
		}
		metrics = append(metrics, entry)
		if r.Breach {
			breaches = append(breaches, entry)
		}
	}

	for _, attr := range attributes {
		samples := make(map[string]fairness.Sample)
		for group, raw := range mapArg(demographics, attr) {
			counts, ok := raw.(map[string]any)
			if !ok {
				continue
			}
			samples[group] = fairness.Sample{
				Group:     group,
				Favorable: int(floatArg(counts, "approved")),
				Total:     int(floatArg(counts, "total")),
			}
		}
		for _, r := range fairness.Evaluate(samples, s.thresholds) {
			record(attr, r)
		}
		if cv, ok := fairness.ApprovalRateCV(samples, s.thresholds); ok {
			record(attr, cv)
		}
	}

	if bins := mapArg(data, "score_bins"); bins != nil {
		reference := floatSlice(sliceArg(bins, "reference"))
		current := floatSlice(sliceArg(bins, "current"))
		if len(reference) > 0 {
			psi, err := fairness.PSI(reference, current, s.thresholds)
			if err != nil {
				return nil, fmt.Errorf("psi: %w", err)
			}
			record("", psi)
		}
	}

	return map[string]any{
		"metrics":    metrics,
		"breaches":   breaches,
		"thresholds": toMap(s.thresholds),
	}, nil
}

func floatSlice(vs []any) []float64 {
	out := make([]float64, 0, len(vs))
	for _, v := range vs {
		if f, ok := v.(float64); ok {
			out = append(out, f)
		}
	}
	return out
}

// BiasWatchReportID derives the deterministic report identifier for a
// period from the ISO week of its end date. Retried runs for the same
// period therefore publish under the same id.
func BiasWatchReportID(periodEnd string) string {
	t, err := time.Parse("2006-01-02", periodEnd)
	if err != nil {
		t = time.Now()
	}
	year, week := t.ISOWeek()
	return fmt.Sprintf("bias-watch-%04d-W%02d", year, week)
}

// RunBiasWatch executes one bias monitoring run for the given period.
// Empty period bounds default to the trailing seven days. This is the
// entry point an external scheduler calls once per period.
func (s *Suite) RunBiasWatch(ctx context.Context, periodStart, periodEnd string) *domain.TerminalResult {
	if periodEnd == "" {
		periodEnd = time.Now().Format("2006-01-02")
	}
	if periodStart == "" {
		if t, err := time.Parse("2006-01-02", periodEnd); err == nil {
			periodStart = t.AddDate(0, 0, -7).Format("2006-01-02")
		}
	}

	return s.run(ctx, AgentBiasWatch, domain.TaskRequest{
		Kind:         domain.TaskKindBiasMonitoring,
		Instructions: biasWatchInstructions,
		Params: map[string]any{
			"period_start": periodStart,
			"period_end":   periodEnd,
			"report_id":    BiasWatchReportID(periodEnd),
		},
		OutputSchema: biasWatchOutputSchema,
	})
}

// biasWatchScript is the mock-mode run: decision log query, metric
// computation, one ticket per breach plus the report publish in a
// single round, then the summary.
func biasWatchScript() backend.Backend {
	return backend.NewScripted(
		func(tr *domain.Transcript) (*backend.Reply, error) {
			params := taskParams(tr)
			return backend.Invoke(domain.ToolInvocation{
				Name: "query_decision_log",
				Args: map[string]any{
					"start_date": stringArg(params, "period_start"),
					"end_date":   stringArg(params, "period_end"),
				},
			})(tr)
		},
		func(tr *domain.Transcript) (*backend.Reply, error) {
			return backend.Invoke(domain.ToolInvocation{
				Name: "compute_fairness_metrics",
				Args: map[string]any{"data": lastPayload(tr)},
			})(tr)
		},
		func(tr *domain.Transcript) (*backend.Reply, error) {
			computed := lastPayload(tr)
			params := taskParams(tr)

			invocations := make([]domain.ToolInvocation, 0)
			for _, raw := range sliceArg(computed, "breaches") {
				breach, ok := raw.(map[string]any)
				if !ok {
					continue
				}
				invocations = append(invocations, domain.ToolInvocation{
					Name: "create_incident_ticket",
					Args: map[string]any{
						"severity":  stringArg(breach, "severity"),
						"metric":    stringArg(breach, "label"),
						"value":     floatArg(breach, "value"),
						"threshold": floatArg(breach, "threshold"),
					},
				})
			}
			invocations = append(invocations, domain.ToolInvocation{
				Name: "publish_fairness_report",
				Args: map[string]any{
					"report_id": stringArg(params, "report_id"),
					"payload": map[string]any{
						"period_start": stringArg(params, "period_start"),
						"period_end":   stringArg(params, "period_end"),
						"metrics":      sliceArg(computed, "metrics"),
						"breaches":     sliceArg(computed, "breaches"),
						"thresholds":   mapArg(computed, "thresholds"),
					},
				},
			})
			return backend.Invoke(invocations...)(tr)
		},
		func(tr *domain.Transcript) (*backend.Reply, error) {
			tickets := make([]any, 0)
			locator, reportID := "", ""
			for _, r := range tr.LastResults() {
				if r.Status != domain.ToolResultOK || r.Payload == nil {
					continue
				}
				switch r.ToolName {
				case "create_incident_ticket":
					tickets = append(tickets, stringArg(r.Payload, "ticket_id"))
				case "publish_fairness_report":
					locator = stringArg(r.Payload, "locator")
					reportID = stringArg(r.Payload, "report_id")
				}
			}
			return backend.FinalJSON(map[string]any{
				"status":       "PUBLISHED",
				"report_id":    reportID,
				"locator":      locator,
				"breach_count": len(tickets),
				"tickets":      tickets,
			})(tr)
		},
	)
}
