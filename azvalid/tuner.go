package azvalid

import (
	"context"
	"fmt"

	"github.com/ezquant/azvalid/azvalid/plus/models"
	log "github.com/sirupsen/logrus"
)

// defaultConvictionFloors is the legacy single-parameter sweep used when no
// tuning grid is configured.
var defaultConvictionFloors = []float64{0.5, 0.6, 0.7, 0.8, 0.9}

// candidateGrid expands the tuning grid into override sets, in the grid's
// declaration order, capped at MaxTuneCombinations. The cap is a hard limit
// on evaluator invocations: combinations past it are never generated.
func candidateGrid(cfg models.WalkForwardConfig) []map[string]interface{} {
	if len(cfg.TuneGrid) == 0 {
		candidates := make([]map[string]interface{}, 0, len(defaultConvictionFloors))
		for _, floor := range defaultConvictionFloors {
			candidates = append(candidates, map[string]interface{}{"conviction_floor": floor})
		}
		return candidates
	}

	limit := cfg.MaxTuneCombinations
	if limit < 1 {
		limit = 1
	}

	var candidates []map[string]interface{}
	current := make(map[string]interface{}, len(cfg.TuneGrid))

	var expand func(depth int)
	expand = func(depth int) {
		if len(candidates) >= limit {
			return
		}
		if depth == len(cfg.TuneGrid) {
			candidate := make(map[string]interface{}, len(current))
			for name, value := range current {
				candidate[name] = value
			}
			candidates = append(candidates, candidate)
			return
		}

		param := cfg.TuneGrid[depth]
		for _, value := range param.Values {
			if len(candidates) >= limit {
				return
			}
			current[param.Name] = value
			expand(depth + 1)
		}
		delete(current, param.Name)
	}
	expand(0)

	return candidates
}

// tuneOutcome is the result of tuning one fold's training window.
type tuneOutcome struct {
	// Params is what gets reported as optimized_params; Overrides is what
	// actually gets applied to the test-window config. They differ only on
	// the fallback path, where Params is the {"fallback": true} marker and
	// Overrides stays empty so the test run uses the unmodified base config.
	Params    map[string]interface{}
	Overrides map[string]interface{}
	Metrics   Metrics
	Sharpe    float64
	Fallback  bool
}

// tuneFold searches the candidate grid on the fold's training window and
// picks the best accepted candidate by objective score. Candidates whose run
// produces fewer than MinTradesPerFold trades are silently rejected. If every
// candidate is rejected, the base config is evaluated once more and used
// unconditionally, so a fold always produces a result.
func (r *Runner) tuneFold(ctx context.Context, req Request, fold Fold) (tuneOutcome, error) {
	candidates := candidateGrid(r.wfConfig)

	var (
		best        map[string]interface{}
		bestMetrics Metrics
		bestScore   float64
		found       bool
		rejected    int
	)

	for _, overrides := range candidates {
		candidate := r.baseConfig.WithOverrides(overrides)
		res, err := r.evaluate(ctx, req, fold.TrainStartEngine, fold.TrainEnd, candidate)
		if err != nil {
			return tuneOutcome{}, fmt.Errorf("train evaluation: %w", err)
		}

		if len(res.Trades) < r.wfConfig.MinTradesPerFold {
			rejected++
			continue
		}

		score := Score(res.Metrics, r.wfConfig.ObjectiveMetric)
		// Strict comparison keeps the first of equally scored candidates.
		if !found || score > bestScore {
			found = true
			bestScore = score
			best = overrides
			bestMetrics = res.Metrics
		}
	}

	if rejected > 0 {
		log.Debugf("[TUNE] %d/%d candidates below trade floor for train %s..%s",
			rejected, len(candidates),
			fold.TrainStart.Format("2006-01-02"), fold.TrainEnd.Format("2006-01-02"))
	}

	if !found {
		log.Warnf("[TUNE] no candidate met the trade floor for train %s..%s, falling back to base config",
			fold.TrainStart.Format("2006-01-02"), fold.TrainEnd.Format("2006-01-02"))

		res, err := r.evaluate(ctx, req, fold.TrainStartEngine, fold.TrainEnd, r.baseConfig)
		if err != nil {
			return tuneOutcome{}, fmt.Errorf("fallback evaluation: %w", err)
		}

		return tuneOutcome{
			Params:   map[string]interface{}{"fallback": true},
			Metrics:  res.Metrics,
			Sharpe:   orZero(res.Metrics.Sharpe),
			Fallback: true,
		}, nil
	}

	return tuneOutcome{
		Params:    best,
		Overrides: best,
		Metrics:   bestMetrics,
		Sharpe:    orZero(bestMetrics.Sharpe),
	}, nil
}
