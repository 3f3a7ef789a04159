// Package agents defines the five compliance agents. Each agent is a
// tool menu plus an output shape plus an entry point that hands the
// task to the shared dispatch driver; all regulatory evaluation flows
// through the tool handlers bound to the store.
package agents

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/finpulse/aicomply/internal/backend"
	"github.com/finpulse/aicomply/internal/dispatch"
	"github.com/finpulse/aicomply/internal/domain"
	"github.com/finpulse/aicomply/internal/fairness"
	"github.com/finpulse/aicomply/internal/store"
	"github.com/finpulse/aicomply/internal/tools"
)

// Agent names, used by the transport layer and the CLI.
const (
	AgentClassify   = "classify"
	AgentDocDraft   = "docdraft"
	AgentBiasWatch  = "biaswatch"
	AgentFRIA       = "fria"
	AgentConformity = "conformity"
)

// Names lists the registered agent names.
func Names() []string {
	return []string{AgentClassify, AgentDocDraft, AgentBiasWatch, AgentFRIA, AgentConformity}
}

// BackendFactory returns a fresh reasoning backend for one run of the
// named agent. Scripted backends are stateful per run, so the factory
// is invoked once per run, never shared.
type BackendFactory func(agent string) backend.Backend

// Suite wires the five agents to the shared driver, the store, and a
// backend factory.
type Suite struct {
	driver     *dispatch.Driver
	store      store.Store
	newBackend BackendFactory
	thresholds fairness.Thresholds
	maxRounds  int
}

// Option configures a Suite.
type Option func(*Suite)

// WithThresholds overrides the fairness alert thresholds.
func WithThresholds(t fairness.Thresholds) Option {
	return func(s *Suite) { s.thresholds = t }
}

// WithMaxRounds overrides the per-run dispatch round cap.
func WithMaxRounds(n int) Option {
	return func(s *Suite) { s.maxRounds = n }
}

// NewSuite builds the agent suite.
func NewSuite(driver *dispatch.Driver, st store.Store, factory BackendFactory, opts ...Option) *Suite {
	s := &Suite{
		driver:     driver,
		store:      st,
		newBackend: factory,
		thresholds: fairness.DefaultThresholds(),
		maxRounds:  domain.DefaultMaxRounds,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Run executes the named agent once with loosely typed parameters.
// The transport layer and the CLI go through here.
func (s *Suite) Run(ctx context.Context, agent string, params map[string]any) (*domain.TerminalResult, error) {
	switch agent {
	case AgentClassify:
		return s.Classify(ctx, systemDescriptionFromParams(params)), nil
	case AgentDocDraft:
		return s.DraftDocumentation(ctx, documentationRequestFromParams(params)), nil
	case AgentBiasWatch:
		start, _ := params["period_start"].(string)
		end, _ := params["period_end"].(string)
		return s.RunBiasWatch(ctx, start, end), nil
	case AgentFRIA:
		return s.GenerateFRIA(ctx, friaRequestFromParams(params)), nil
	case AgentConformity:
		return s.RunConformityCheck(ctx, conformityRequestFromParams(params)), nil
	default:
		return nil, fmt.Errorf("unknown agent %q", agent)
	}
}

func (s *Suite) run(ctx context.Context, agent string, req domain.TaskRequest) *domain.TerminalResult {
	if req.MaxRounds == 0 {
		req.MaxRounds = s.maxRounds
	}
	reg := s.registryFor(agent)
	return s.driver.Run(ctx, req, reg, s.newBackend(agent))
}

func (s *Suite) registryFor(agent string) *tools.Registry {
	switch agent {
	case AgentClassify:
		return s.classifyRegistry()
	case AgentDocDraft:
		return s.docDraftRegistry()
	case AgentBiasWatch:
		return s.biasWatchRegistry()
	case AgentFRIA:
		return s.friaRegistry()
	case AgentConformity:
		return s.conformityRegistry()
	default:
		panic(fmt.Sprintf("unknown agent %q", agent))
	}
}

// Scripts returns the deterministic backend factory used in mock mode:
// each agent replays its scripted demo run against the fixture store,
// which keeps the whole module runnable offline.
func Scripts() BackendFactory {
	return func(agent string) backend.Backend {
		switch agent {
		case AgentClassify:
			return classifyScript()
		case AgentDocDraft:
			return docDraftScript()
		case AgentBiasWatch:
			return biasWatchScript()
		case AgentFRIA:
			return friaScript()
		case AgentConformity:
			return conformityScript()
		default:
			return backend.NewScripted()
		}
	}
}

// toMap converts a json-taggable value into the map form tool handlers
// return.
func toMap(v any) map[string]any {
	data, err := json.Marshal(v)
	if err != nil {
		return map[string]any{"error": err.Error()}
	}
	var out map[string]any
	if err := json.Unmarshal(data, &out); err != nil {
		return map[string]any{"error": err.Error()}
	}
	return out
}

// Loose accessors for script steps reading transcript payloads.

func stringArg(m map[string]any, key string) string {
	s, _ := m[key].(string)
	return s
}

func floatArg(m map[string]any, key string) float64 {
	switch v := m[key].(type) {
	case float64:
		return v
	case int:
		return float64(v)
	case json.Number:
		f, _ := v.Float64()
		return f
	default:
		return 0
	}
}

func boolArg(m map[string]any, key string) bool {
	b, _ := m[key].(bool)
	return b
}

func mapArg(m map[string]any, key string) map[string]any {
	mm, _ := m[key].(map[string]any)
	return mm
}

func sliceArg(m map[string]any, key string) []any {
	s, _ := m[key].([]any)
	return s
}

// taskParams returns the params of the seeding task entry of a
// transcript, for script steps deriving invocation arguments.
func taskParams(tr *domain.Transcript) map[string]any {
	if task := tr.Task(); task != nil && task.Params != nil {
		return task.Params
	}
	return map[string]any{}
}

// lastPayload returns the payload of the single result of the most
// recent round, or an empty map.
func lastPayload(tr *domain.Transcript) map[string]any {
	results := tr.LastResults()
	if len(results) == 0 || results[len(results)-1].Payload == nil {
		return map[string]any{}
	}
	return results[len(results)-1].Payload
}
