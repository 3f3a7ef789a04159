// Package fairness implements the statistical fairness monitoring used
// by BiasWatchAgent: demographic parity, equalized odds, population
// stability index, and approval-rate coefficient of variation, each
// classified against a configured threshold. The package is pure
// computation and has no dependency on the dispatch driver.
package fairness

import (
	"fmt"
	"math"
	"sort"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"
)

// Metric names, also used as keys in published reports.
const (
	MetricDemographicParity = "demographic_parity"
	MetricEqualizedOdds     = "equalized_odds"
	MetricPSI               = "psi"
	MetricApprovalRateCV    = "approval_rate_cv"
)

// Breach severities.
const (
	SeverityHigh   = "HIGH"
	SeverityMedium = "MEDIUM"
)

// Thresholds holds the alert thresholds a metric value is compared
// against. A breach is recorded iff the value strictly exceeds the
// threshold.
type Thresholds struct {
	DemographicParity float64 `json:"demographic_parity" mapstructure:"demographic_parity"`
	EqualizedOdds     float64 `json:"equalized_odds" mapstructure:"equalized_odds"`
	PSI               float64 `json:"psi" mapstructure:"psi"`
	ApprovalRateCV    float64 `json:"approval_rate_cv" mapstructure:"approval_rate_cv"`
}

// DefaultThresholds returns the Article 10 aligned defaults.
func DefaultThresholds() Thresholds {
	return Thresholds{
		DemographicParity: 0.05,
		EqualizedOdds:     0.08,
		PSI:               0.25,
		ApprovalRateCV:    0.15,
	}
}

// OutcomeSplit extends a Sample with per-outcome-class counts, required
// for equalized odds: favorable decisions among actual positives and
// among actual negatives.
type OutcomeSplit struct {
	FavorablePositive int `json:"favorable_positive"`
	TotalPositive     int `json:"total_positive"`
	FavorableNegative int `json:"favorable_negative"`
	TotalNegative     int `json:"total_negative"`
}

// Sample is the per-group outcome count for one reporting period.
// Read-only once constructed. Total >= Favorable >= 0 must hold.
type Sample struct {
	Group     string        `json:"group"`
	Favorable int           `json:"favorable"`
	Total     int           `json:"total"`
	Split     *OutcomeSplit `json:"split,omitempty"`
}

// Rate returns the favorable-outcome rate. Callers must exclude
// zero-total samples before dividing.
func (s Sample) Rate() float64 {
	return float64(s.Favorable) / float64(s.Total)
}

// MetricResult is one computed metric value with its threshold
// classification. Groups carries the compared pair for pairwise
// metrics and is empty for distribution-level metrics.
type MetricResult struct {
	Metric    string   `json:"metric"`
	Groups    []string `json:"groups,omitempty"`
	Value     float64  `json:"value"`
	Threshold float64  `json:"threshold"`
	Breach    bool     `json:"breach"`
	Severity  string   `json:"severity,omitempty"`
}

// ParityDifference computes the demographic parity difference between
// two groups: |favorableA/totalA - favorableB/totalB|. Zero totals are
// rejected; Evaluate skips such pairings instead of calling this.
func ParityDifference(favorableA, totalA, favorableB, totalB int) (float64, error) {
	if totalA == 0 || totalB == 0 {
		return 0, fmt.Errorf("group totals must be greater than zero")
	}
	rateA := float64(favorableA) / float64(totalA)
	rateB := float64(favorableB) / float64(totalB)
	return math.Abs(rateA - rateB), nil
}

// Evaluate computes the pairwise metrics for every unordered pair of
// groups present in the input. Results are deterministic: pairs are
// ordered by sorted group-key pair, then by metric name. Groups with a
// zero total are excluded from all pairings; a pairing's equalized odds
// is additionally skipped when either side lacks an outcome split or
// has an empty outcome class.
func Evaluate(samplesByGroup map[string]Sample, th Thresholds) []MetricResult {
	keys := make([]string, 0, len(samplesByGroup))
	for k := range samplesByGroup {
		if samplesByGroup[k].Total == 0 {
			continue
		}
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var results []MetricResult
	for i := 0; i < len(keys); i++ {
		for j := i + 1; j < len(keys); j++ {
			a, b := samplesByGroup[keys[i]], samplesByGroup[keys[j]]
			pair := []string{keys[i], keys[j]}

			parity := round4(math.Abs(a.Rate() - b.Rate()))
			results = append(results, classify(MetricDemographicParity, pair, parity, th.DemographicParity))

			if odds, ok := equalizedOdds(a, b); ok {
				results = append(results, classify(MetricEqualizedOdds, pair, round4(odds), th.EqualizedOdds))
			}
		}
	}
	return results
}

// PSI computes the population stability index between a reference and a
// current distribution over the same score bins. Inputs may be raw
// counts; they are normalized to shares. Bins with zero share on either
// side are excluded from the sum.
func PSI(reference, current []float64, th Thresholds) (MetricResult, error) {
	if len(reference) != len(current) {
		return MetricResult{}, fmt.Errorf("bin count mismatch: reference %d, current %d", len(reference), len(current))
	}
	refSum, curSum := floats.Sum(reference), floats.Sum(current)
	if refSum == 0 || curSum == 0 {
		return MetricResult{}, fmt.Errorf("empty distribution")
	}

	psi := 0.0
	for i := range reference {
		refShare := reference[i] / refSum
		curShare := current[i] / curSum
		if refShare == 0 || curShare == 0 {
			continue
		}
		psi += (curShare - refShare) * math.Log(curShare/refShare)
	}
	return classify(MetricPSI, nil, round4(psi), th.PSI), nil
}

// ApprovalRateCV computes the coefficient of variation of the
// favorable-outcome rates across groups, a regional-drift signal. The
// second return is false when fewer than two non-empty groups exist or
// the mean rate is zero.
func ApprovalRateCV(samplesByGroup map[string]Sample, th Thresholds) (MetricResult, bool) {
	keys := make([]string, 0, len(samplesByGroup))
	for k := range samplesByGroup {
		if samplesByGroup[k].Total == 0 {
			continue
		}
		keys = append(keys, k)
	}
	if len(keys) < 2 {
		return MetricResult{}, false
	}
	sort.Strings(keys)

	rates := make([]float64, len(keys))
	for i, k := range keys {
		rates[i] = samplesByGroup[k].Rate()
	}
	mean := stat.Mean(rates, nil)
	if mean == 0 {
		return MetricResult{}, false
	}
	cv := stat.PopStdDev(rates, nil) / mean
	return classify(MetricApprovalRateCV, nil, round4(cv), th.ApprovalRateCV), true
}

// Breaches filters a result sequence down to the breaching subsequence,
// preserving order.
func Breaches(results []MetricResult) []MetricResult {
	var out []MetricResult
	for _, r := range results {
		if r.Breach {
			out = append(out, r)
		}
	}
	return out
}

// equalizedOdds returns the maximum absolute rate gap across the two
// outcome classes, or false when either group cannot supply both class
// rates.
func equalizedOdds(a, b Sample) (float64, bool) {
	if a.Split == nil || b.Split == nil {
		return 0, false
	}
	if a.Split.TotalPositive == 0 || a.Split.TotalNegative == 0 ||
		b.Split.TotalPositive == 0 || b.Split.TotalNegative == 0 {
		return 0, false
	}
	tprGap := math.Abs(classRate(a.Split.FavorablePositive, a.Split.TotalPositive) -
		classRate(b.Split.FavorablePositive, b.Split.TotalPositive))
	fprGap := math.Abs(classRate(a.Split.FavorableNegative, a.Split.TotalNegative) -
		classRate(b.Split.FavorableNegative, b.Split.TotalNegative))
	return math.Max(tprGap, fprGap), true
}

func classRate(favorable, total int) float64 {
	return float64(favorable) / float64(total)
}

func classify(metric string, groups []string, value, threshold float64) MetricResult {
	r := MetricResult{
		Metric:    metric,
		Groups:    groups,
		Value:     value,
		Threshold: threshold,
		Breach:    value > threshold,
	}
	if r.Breach {
		r.Severity = SeverityMedium
		if value > threshold*1.5 {
			r.Severity = SeverityHigh
		}
	}
	return r
}

func round4(v float64) float64 {
	return math.Round(v*10000) / 10000
}
