package azvalid

import (
	"math"
	"sort"

	"github.com/samber/lo"
)

// Stability score weights. The formula is a tunable default: the weights
// below satisfy the documented tier boundaries but are not a compatibility
// contract.
const (
	stabilityBase       = 50.0
	sharpeMeanWeight    = 15.0
	sharpeMeanClamp     = 2.0
	sharpeStdWeight     = 10.0
	sharpeStdCap        = 3.0
	drawdownWeight      = 80.0
	positiveFoldsWeight = 20.0
	positiveFoldsCenter = 0.5
)

// StabilityReport summarizes cross-fold consistency of out-of-sample
// performance. The worst-fold indices are nil when there are no folds.
type StabilityReport struct {
	FoldCount        int     `json:"fold_count"`
	SharpeMean       float64 `json:"sharpe_mean"`
	SharpeMedian     float64 `json:"sharpe_median"`
	SharpeStd        float64 `json:"sharpe_std"`
	MaxDrawdownWorst float64 `json:"max_drawdown_worst"`
	PctPositiveFolds float64 `json:"pct_positive_folds"`

	WorstFoldByDrawdown *int `json:"worst_fold_index_by_drawdown"`
	WorstFoldBySharpe   *int `json:"worst_fold_index_by_sharpe"`

	StabilityScore float64 `json:"stability_score"`
	StabilityTier  string  `json:"stability_tier"`
}

// ComputeStability aggregates per-fold test metrics into a stability report.
// An empty input yields all-zero statistics, tier "D" and nil indices; it
// never fails.
func ComputeStability(folds []FoldResult) StabilityReport {
	report := StabilityReport{FoldCount: len(folds), StabilityTier: "D"}
	if len(folds) == 0 {
		return report
	}

	sharpes := lo.Map(folds, func(f FoldResult, _ int) float64 { return orZero(f.TestMetrics.Sharpe) })
	drawdowns := lo.Map(folds, func(f FoldResult, _ int) float64 { return orZero(f.TestMetrics.MaxDrawdown) })
	pnls := lo.Map(folds, func(f FoldResult, _ int) float64 { return orZero(f.TestMetrics.TotalPnL) })

	report.SharpeMean = mean(sharpes)
	report.SharpeMedian = median(sharpes)
	report.SharpeStd = populationStd(sharpes, report.SharpeMean)

	worstDD := argMax(drawdowns)
	worstSharpe := argMin(sharpes)
	report.WorstFoldByDrawdown = &worstDD
	report.WorstFoldBySharpe = &worstSharpe
	report.MaxDrawdownWorst = drawdowns[worstDD]

	positives := lo.CountBy(pnls, func(p float64) bool { return p > 0 })
	report.PctPositiveFolds = float64(positives) / float64(len(folds))

	score := stabilityBase +
		sharpeMeanWeight*clamp(report.SharpeMean, -sharpeMeanClamp, sharpeMeanClamp) -
		sharpeStdWeight*math.Min(report.SharpeStd, sharpeStdCap) -
		drawdownWeight*report.MaxDrawdownWorst +
		positiveFoldsWeight*(report.PctPositiveFolds-positiveFoldsCenter)

	report.StabilityScore = clamp(score, 0, 100)
	report.StabilityTier = stabilityTier(report.StabilityScore)

	return report
}

func stabilityTier(score float64) string {
	switch {
	case score >= 70:
		return "A"
	case score >= 50:
		return "B"
	case score >= 25:
		return "C"
	default:
		return "D"
	}
}

func clamp(v, low, high float64) float64 {
	if v < low {
		return low
	}
	if v > high {
		return high
	}
	return v
}

func mean(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}
	return lo.Sum(values) / float64(len(values))
}

func median(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}
	sorted := make([]float64, len(values))
	copy(sorted, values)
	sort.Float64s(sorted)
	mid := len(sorted) / 2
	if len(sorted)%2 == 0 {
		return (sorted[mid-1] + sorted[mid]) / 2
	}
	return sorted[mid]
}

func populationStd(values []float64, mean float64) float64 {
	if len(values) == 0 {
		return 0
	}
	variance := 0.0
	for _, v := range values {
		diff := v - mean
		variance += diff * diff
	}
	return math.Sqrt(variance / float64(len(values)))
}

func argMax(values []float64) int {
	idx := 0
	for i, v := range values {
		if v > values[idx] {
			idx = i
		}
	}
	return idx
}

func argMin(values []float64) int {
	idx := 0
	for i, v := range values {
		if v < values[idx] {
			idx = i
		}
	}
	return idx
}
