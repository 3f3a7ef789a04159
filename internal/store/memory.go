package store

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"
)

// Memory is the in-process Store implementation. Read surfaces serve
// the PulseCredit baseline dataset; incident and report writes are
// append-only maps, deduplicated by identity so retried runs do not
// double-publish.
type Memory struct {
	mu        sync.Mutex
	today     string
	incidents map[string]Incident // identity key -> incident
	reports   map[string]string   // report id -> locator
	payloads  map[string]map[string]any
	seq       int
}

// NewMemory creates a fixture store stamped with today's date for
// ticket identifiers.
func NewMemory() *Memory {
	return &Memory{
		today:     time.Now().Format("20060102"),
		incidents: make(map[string]Incident),
		reports:   make(map[string]string),
		payloads:  make(map[string]map[string]any),
	}
}

// NewMemoryAt creates a fixture store with a fixed date stamp, for
// reproducible identifiers in tests.
func NewMemoryAt(dateStamp string) *Memory {
	m := NewMemory()
	m.today = dateStamp
	return m
}

// Exists reports whether a compliance document of the given kind is
// present in the repository. The location is accepted for interface
// compatibility; the fixture repository has a single root.
func (m *Memory) Exists(ctx context.Context, kind, location string) (bool, error) {
	state, ok := documentStates[kind]
	if !ok {
		return false, nil
	}
	return state.Exists, nil
}

// CreateIncident records an incident ticket and returns its id. The
// same (metric, value, threshold, severity) tuple always yields the
// same ticket.
func (m *Memory) CreateIncident(ctx context.Context, severity, metric string, value, threshold float64) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	key := fmt.Sprintf("%s|%s|%.6f|%.6f", severity, metric, value, threshold)
	if inc, ok := m.incidents[key]; ok {
		return inc.TicketID, nil
	}

	m.seq++
	inc := Incident{
		TicketID:  fmt.Sprintf("BIAS-%s-%03d", m.today, m.seq),
		Severity:  severity,
		Metric:    metric,
		Value:     value,
		Threshold: threshold,
		Notified:  []string{"head_of_data_science@finpulse.nl"},
	}
	m.incidents[key] = inc
	return inc.TicketID, nil
}

// Publish stores a report payload under its id and returns the
// locator. Republishing an id returns the original locator unchanged.
func (m *Memory) Publish(ctx context.Context, reportID string, payload map[string]any) (string, error) {
	if reportID == "" {
		return "", fmt.Errorf("report id is required")
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if locator, ok := m.reports[reportID]; ok {
		return locator, nil
	}
	locator := "compliance/reports/" + reportID + ".json"
	m.reports[reportID] = locator
	m.payloads[reportID] = payload
	return locator, nil
}

// Incidents returns the recorded incidents ordered by ticket id.
func (m *Memory) Incidents() []Incident {
	m.mu.Lock()
	defer m.mu.Unlock()

	out := make([]Incident, 0, len(m.incidents))
	for _, inc := range m.incidents {
		out = append(out, inc)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].TicketID < out[j].TicketID })
	return out
}

// Reports returns the published report ids ordered lexicographically.
func (m *Memory) Reports() []string {
	m.mu.Lock()
	defer m.mu.Unlock()

	out := make([]string, 0, len(m.reports))
	for id := range m.reports {
		out = append(out, id)
	}
	sort.Strings(out)
	return out
}

// ReportPayload returns the payload published under the given id.
func (m *Memory) ReportPayload(reportID string) (map[string]any, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.payloads[reportID]
	return p, ok
}

// DecisionLog returns one week of PulseCredit decisions grouped by
// protected attribute.
func (m *Memory) DecisionLog(ctx context.Context, startDate, endDate string) (*DecisionLog, error) {
	log := weeklyDecisionLog
	log.Period = fmt.Sprintf("%s to %s", startDate, endDate)
	return &log, nil
}

// DocumentState returns the repository state of one compliance
// document type.
func (m *Memory) DocumentState(ctx context.Context, documentType string) (*DocumentState, error) {
	state, ok := documentStates[documentType]
	if !ok {
		return &DocumentState{Status: "FAIL", Notes: "Document type not recognised"}, nil
	}
	s := state
	return &s, nil
}

// LogRetention returns the decision-log retention configuration.
func (m *Memory) LogRetention(ctx context.Context) (*LogRetention, error) {
	return &LogRetention{ConfiguredDays: 30, RequiredDays: 183}, nil
}

// OversightChecks reports the implementation state of the named human
// oversight controls. Unknown check names report false.
func (m *Memory) OversightChecks(ctx context.Context, checks []string) (map[string]bool, error) {
	out := make(map[string]bool, len(checks))
	for _, c := range checks {
		out[c] = oversightStates[c]
	}
	return out, nil
}

// ModelMetadata returns the registry record for a model URI.
func (m *Memory) ModelMetadata(ctx context.Context, registryURI string) (*ModelMetadata, error) {
	md := registryMetadata
	return &md, nil
}

// DataCatalog returns the lineage record for a catalog reference.
func (m *Memory) DataCatalog(ctx context.Context, catalogRef string) (*DataCatalog, error) {
	cat := trainingCatalog
	cat.CatalogRef = catalogRef
	return &cat, nil
}

// RightImpact returns the assessed impact for one fundamental right.
func (m *Memory) RightImpact(ctx context.Context, right string) (*RightImpact, error) {
	impact, ok := rightImpacts[right]
	if !ok {
		return &RightImpact{Impact: "Unknown right", Likelihood: "UNKNOWN", Severity: "UNKNOWN"}, nil
	}
	i := impact
	return &i, nil
}

// Mitigations returns the mitigation measures for one fundamental
// right.
func (m *Memory) Mitigations(ctx context.Context, right string) ([]string, error) {
	ms, ok := rightMitigations[right]
	if !ok {
		return []string{"No specific mitigations identified"}, nil
	}
	return append([]string(nil), ms...), nil
}

// DPIAFindings returns the key findings of a GDPR DPIA.
func (m *Memory) DPIAFindings(ctx context.Context, dpiaRef string) ([]string, error) {
	return []string{
		dpiaRef + ": PulseCredit constitutes automated decision-making under GDPR Art. 22 for loans <=EUR 5k",
		dpiaRef + ": Art. 22(2)(a) applies - automated decision necessary for contract performance",
		dpiaRef + ": Ethnic origin data (nationality as proxy) processed under Art. 9(2)(g) for bias testing",
		dpiaRef + ": 6-year retention policy confirmed proportionate",
	}, nil
}
