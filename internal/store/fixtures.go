package store

// Baseline dataset served by the fixture store: one week of PulseCredit
// decisions, the February 2026 repository state from the last
// conformity assessment, the registry/catalog records for
// pulsecredit-v2.1.3, and the FRIA impact and mitigation tables.

var weeklyDecisionLog = DecisionLog{
	TotalDecisions: 347,
	Demographics: map[string]map[string]GroupCounts{
		"gender": {
			"male":   {Approved: 118, Declined: 62, Total: 180},
			"female": {Approved: 108, Declined: 59, Total: 167},
		},
		"age_bracket": {
			"18-30": {Approved: 58, Declined: 48, Total: 106},
			"31-54": {Approved: 126, Declined: 44, Total: 170},
			"55-75": {Approved: 42, Declined: 29, Total: 71},
		},
		"nationality": {
			"dutch":     {Approved: 198, Declined: 84, Total: 282},
			"non_dutch": {Approved: 28, Declined: 37, Total: 65},
		},
	},
	ScoreBins: ScoreBins{
		Reference: []float64{0.10, 0.22, 0.33, 0.25, 0.10},
		Current:   []float64{0.12, 0.20, 0.31, 0.26, 0.11},
	},
}

var documentStates = map[string]DocumentState{
	"risk_management_system": {
		Exists: false, Completeness: 0, Status: "FAIL",
		Notes: "No risk register located in repository. Action required immediately.",
	},
	"technical_documentation": {
		Exists: true, Completeness: 50, Status: "PARTIAL",
		Notes: "14/28 Annex IV items populated. Missing: failure modes, instructions for use.",
	},
	"bias_assessment": {
		Exists: false, Completeness: 0, Status: "FAIL",
		Notes: "No formal bias test report found in repository.",
	},
	"fria": {
		Exists: false, Completeness: 0, Status: "FAIL",
		Notes: "FRIA not initiated. Required before deployment.",
	},
	"conformity_declaration": {
		Exists: false, Completeness: 0, Status: "FAIL",
		Notes: "Declaration of Conformity not yet issued.",
	},
	"human_oversight_procedure": {
		Exists: true, Completeness: 40, Status: "PARTIAL",
		Notes: "Loans >EUR 5k reviewed by loan officers. Override logging absent.",
	},
	"logging_configuration": {
		Exists: true, Completeness: 100, Status: "FAIL",
		Notes: "Logging active but retention configured at 30 days (minimum: 183 days).",
	},
}

var oversightStates = map[string]bool{
	"override_mechanism_present": true,
	"override_logging_active":    false,
	"shap_explanation_displayed": false,
	"training_records_complete":  false,
	"hitl_workflow_deployed":     false,
}

var registryMetadata = ModelMetadata{
	ModelID:      "pulsecredit-v2.1.3",
	Architecture: "XGBoost ensemble (500 trees) + Logistic Regression calibration layer",
	Framework:    "XGBoost 2.0.3 + scikit-learn 1.4.0",
	TrainingDate: "2025-09-15",
	AUCROC:       0.799,
	Gini:         0.598,
	KSStatistic:  0.411,
	PSI:          0.09,
	Hyperparameters: map[string]any{
		"n_estimators":  500,
		"max_depth":     5,
		"learning_rate": 0.05,
		"subsample":     0.8,
	},
	TrainingRecords:   380000,
	TrainValTestSplit: "70/15/15",
}

var trainingCatalog = DataCatalog{
	CatalogRef: "datahub://credit/training-2024-q4",
	Sources: []DataSource{
		{Name: "BKR", Type: "credit_bureau", Records: 380000, Period: "2018-2024"},
		{Name: "PSD2 transaction feed", Type: "open_banking", Records: 247000, Period: "2022-2024"},
		{Name: "Loan application forms", Type: "user_input", Records: 380000},
	},
	BiasAssessment:  "Fairlearn v0.10 - September 2025",
	PostcodeRemoved: true,
	GDPRBasis:       "Art. 6(1)(b) contract necessity; Art. 9(2)(g) substantial public interest (bias testing)",
}

var rightImpacts = map[string]RightImpact{
	"non_discrimination": {
		Impact:     "Proxy discrimination via historical credit data encoding past lending bias",
		Likelihood: "MEDIUM",
		Severity:   "HIGH",
	},
	"privacy_data_protection": {
		Impact:     "Extensive personal data processing (BKR, PSD2, income) for automated credit decision",
		Likelihood: "LOW",
		Severity:   "MEDIUM",
	},
	"access_to_financial_services": {
		Impact:     "Thin-file applicants may be systematically excluded regardless of actual creditworthiness",
		Likelihood: "HIGH",
		Severity:   "MEDIUM",
	},
	"right_to_explanation": {
		Impact:     "Applicants receiving AI-influenced decisions have a legal right to explanation",
		Likelihood: "HIGH",
		Severity:   "HIGH",
	},
	"human_dignity": {
		Impact:     "Fully automated decline without human consideration may be experienced as dehumanising",
		Likelihood: "LOW",
		Severity:   "MEDIUM",
	},
	"freedom_from_manipulation": {
		Impact:     "Credit eligibility nudges may push applicants toward credit they would not otherwise seek",
		Likelihood: "MEDIUM",
		Severity:   "MEDIUM",
	},
}

var rightMitigations = map[string][]string{
	"non_discrimination": {
		"Postcode feature removed (v2.1 bias remediation)",
		"Weekly BiasWatchAgent demographic parity monitoring",
		"Fairness constraint in training (exponentiated gradient)",
		"Mandatory manual review for applicants aged 18-25",
	},
	"privacy_data_protection": {
		"GDPR DPIA-2025-003 safeguards applied",
		"Data minimisation: only necessary features used",
		"6-year retention aligned to consumer credit legal minimum",
		"PSD2 data used only with explicit user consent",
	},
	"access_to_financial_services": {
		"Thin-file routing to mandatory manual review (senior loan officer)",
		"Supplementary documentation accepted (employment contract, payslips)",
		"Minimum data threshold: insufficient data defaults to manual review, not automatic decline",
	},
	"right_to_explanation": {
		"SHAP-based reason codes: top 3 factors communicated to loan officer",
		"Plain-language rejection letter templates with factor-based explanation",
		"Disclosure of AI use in all credit decision communications",
		"Human review available on request for all automated decisions",
	},
	"human_dignity": {
		"Automated declines include plain-language explanation and invitation to contact human advisor",
		"Any applicant can request human review of automated decision",
		"Vulnerable customer protocol: flagging for enhanced review",
	},
	"freedom_from_manipulation": {
		"PulseConnect nudges include affordability warnings and responsible lending disclosures",
		"Over-indebtedness risk assessment integrated into PulseCredit (DTI ratio threshold)",
		"AFM consumer protection principles applied to all nudge communications",
	},
}
