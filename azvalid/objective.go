package azvalid

import (
	"math"

	"github.com/ezquant/azvalid/azvalid/plus/models"
)

// noSharpeScore ranks a candidate with no reported sharpe below every real
// one. It is a comparison value private to tuning and never appears in a
// FoldResult.
const noSharpeScore = -999.0

// Score maps a metrics record to a single comparable number for the given
// objective. It is total: any unrecognized objective falls back to sharpe
// scoring, and missing metrics score as documented defaults.
func Score(m Metrics, objective string) float64 {
	switch objective {
	case models.ObjectiveProfitFactor:
		return orZero(m.ProfitFactor)
	case models.ObjectiveCalmar:
		totalReturn := orZero(m.TotalReturn)
		drawdown := orZero(m.MaxDrawdown)
		if drawdown > 0 {
			return totalReturn / drawdown
		}
		if totalReturn > 0 {
			return math.Inf(1)
		}
		return 0
	default:
		if m.Sharpe == nil {
			return noSharpeScore
		}
		return *m.Sharpe
	}
}
