// Package store defines the external collaborator boundary used by the
// agents' tool handlers: the compliance document repository, the
// decision-log system, the model registry / data catalog, and the
// incident-ticket and report-publishing surface. Persistence is not a
// concern of this module; the shipped implementation is an in-memory
// fixture store.
package store

import "context"

// GroupCounts is one demographic group's decision counts for a period.
type GroupCounts struct {
	Approved int `json:"approved"`
	Declined int `json:"declined"`
	Total    int `json:"total"`
}

// ScoreBins carries the discretized score distributions used for PSI.
type ScoreBins struct {
	Reference []float64 `json:"reference"`
	Current   []float64 `json:"current"`
}

// DecisionLog is one reporting period of credit decisions, grouped by
// protected attribute.
type DecisionLog struct {
	Period         string                            `json:"period"`
	TotalDecisions int                               `json:"total_decisions"`
	Demographics   map[string]map[string]GroupCounts `json:"demographics"`
	ScoreBins      ScoreBins                         `json:"score_bins"`
}

// DocumentState describes one compliance document in the repository.
type DocumentState struct {
	Exists       bool   `json:"exists"`
	Completeness int    `json:"completeness"`
	Status       string `json:"status"`
	Notes        string `json:"notes"`
}

// LogRetention is the decision-log retention configuration.
type LogRetention struct {
	ConfiguredDays int `json:"configured_retention_days"`
	RequiredDays   int `json:"required_retention_days"`
}

// ModelMetadata is a model-registry record.
type ModelMetadata struct {
	ModelID           string         `json:"model_id"`
	Architecture      string         `json:"architecture"`
	Framework         string         `json:"framework"`
	TrainingDate      string         `json:"training_date"`
	AUCROC            float64        `json:"auc_roc"`
	Gini              float64        `json:"gini"`
	KSStatistic       float64        `json:"ks_statistic"`
	PSI               float64        `json:"psi"`
	Hyperparameters   map[string]any `json:"hyperparameters"`
	TrainingRecords   int            `json:"training_records"`
	TrainValTestSplit string         `json:"train_val_test_split"`
}

// DataSource is one lineage entry of a data catalog record.
type DataSource struct {
	Name    string `json:"name"`
	Type    string `json:"type"`
	Records int    `json:"records"`
	Period  string `json:"period,omitempty"`
}

// DataCatalog is a data-catalog lineage record.
type DataCatalog struct {
	CatalogRef      string       `json:"catalog_ref"`
	Sources         []DataSource `json:"sources"`
	BiasAssessment  string       `json:"bias_assessment"`
	PostcodeRemoved bool         `json:"postcode_removed"`
	GDPRBasis       string       `json:"gdpr_basis"`
}

// RightImpact is the assessed impact on one fundamental right.
type RightImpact struct {
	Impact     string `json:"impact"`
	Likelihood string `json:"likelihood"`
	Severity   string `json:"severity"`
}

// Incident is a created incident ticket.
type Incident struct {
	TicketID  string   `json:"ticket_id"`
	Severity  string   `json:"severity"`
	Metric    string   `json:"metric"`
	Value     float64  `json:"value"`
	Threshold float64  `json:"threshold"`
	Notified  []string `json:"notified"`
}

// Store is the narrow interface the agents' tool handlers call through.
// Writes are append-only and idempotent by identifier: creating the
// same incident or publishing the same report twice returns the
// original identifier/locator.
type Store interface {
	Exists(ctx context.Context, kind, location string) (bool, error)
	CreateIncident(ctx context.Context, severity, metric string, value, threshold float64) (string, error)
	Publish(ctx context.Context, reportID string, payload map[string]any) (string, error)

	DecisionLog(ctx context.Context, startDate, endDate string) (*DecisionLog, error)
	DocumentState(ctx context.Context, documentType string) (*DocumentState, error)
	LogRetention(ctx context.Context) (*LogRetention, error)
	OversightChecks(ctx context.Context, checks []string) (map[string]bool, error)
	ModelMetadata(ctx context.Context, registryURI string) (*ModelMetadata, error)
	DataCatalog(ctx context.Context, catalogRef string) (*DataCatalog, error)
	RightImpact(ctx context.Context, right string) (*RightImpact, error)
	Mitigations(ctx context.Context, right string) ([]string, error)
	DPIAFindings(ctx context.Context, dpiaRef string) ([]string, error)
}
