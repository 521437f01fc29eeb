package azvalid

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ezquant/azvalid/azvalid/plus/localkv"
	"github.com/ezquant/azvalid/azvalid/plus/models"
	"github.com/ezquant/azvalid/azvalid/storage"
)

func constantEvaluator() *stubEvaluator {
	return &stubEvaluator{fn: func(req EvalRequest) (*EvalResult, error) {
		return evalResult(1.0, 10), nil
	}}
}

func sampleRequest() Request {
	return Request{
		Ticker:        "BTCUSDT",
		Start:         date(2024, 1, 1),
		End:           date(2024, 6, 30),
		InitialEquity: 10000,
	}
}

func sampleConfig() models.WalkForwardConfig {
	cfg := models.DefaultWalkForwardConfig()
	cfg.TrainDays = 30
	cfg.TestDays = 15
	cfg.StepDays = 15
	return cfg
}

func TestRunner_EndToEnd(t *testing.T) {
	evaluator := constantEvaluator()
	runner := newTestRunner(t, evaluator, sampleConfig(), models.StrategyConfig{})

	result, err := runner.Run(context.Background(), sampleRequest())
	require.NoError(t, err)
	require.NotEmpty(t, result.Folds)

	for _, fold := range result.Folds {
		assert.Equal(t, fold.TrainEnd.AddDate(0, 0, 1), fold.TestStart)
		assert.Equal(t, 10, fold.TradesCount)
		assert.False(t, fold.TuningFallback)
		assert.NotEqual(t, noSharpeScore, fold.TrainSharpe)
	}

	agg := result.AggregateMetrics
	assert.Equal(t, len(result.Folds), agg["total_folds"])
	assert.Equal(t, 1.0, agg["sharpe"])
	assert.Equal(t, 0.1, agg["max_drawdown"])

	// sharpe 1.0, std 0, worst DD 0.1, all folds positive: score 67, tier B.
	assert.InDelta(t, 67.0, agg["stability_score"].(float64), 1e-9)
	assert.Equal(t, "B", agg["stability_tier"])
}

func TestRunner_EmptyRangeYieldsEmptyResult(t *testing.T) {
	evaluator := constantEvaluator()
	runner := newTestRunner(t, evaluator, sampleConfig(), models.StrategyConfig{})

	req := sampleRequest()
	req.End = req.Start

	result, err := runner.Run(context.Background(), req)
	require.NoError(t, err)

	assert.Empty(t, result.Folds)
	assert.Empty(t, evaluator.calls)
	assert.Equal(t, 0, result.AggregateMetrics["total_folds"])
	assert.Equal(t, "D", result.AggregateMetrics["stability_tier"])
	assert.Equal(t, 0.0, result.AggregateMetrics["stability_score"])
	assert.NotContains(t, result.AggregateMetrics, "worst_fold_index_by_drawdown")
}

func TestRunner_TestWindowUsesWinningParams(t *testing.T) {
	evaluator := &stubEvaluator{fn: func(req EvalRequest) (*EvalResult, error) {
		// x=2 wins on sharpe.
		sharpe := 0.5
		if req.Config.Int("x", 0) == 2 {
			sharpe = 2.0
		}
		return evalResult(sharpe, 10), nil
	}}

	cfg := sampleConfig()
	cfg.TuneGrid = []models.TuneParameter{
		{Name: "x", Values: []interface{}{1, 2, 3}},
	}

	runner := newTestRunner(t, evaluator, cfg, models.StrategyConfig{})
	result, err := runner.Run(context.Background(), sampleRequest())
	require.NoError(t, err)
	require.NotEmpty(t, result.Folds)

	for _, fold := range result.Folds {
		assert.Equal(t, map[string]interface{}{"x": 2}, fold.OptimizedParams)
	}

	// Every 4th call (after the 3 candidates) is the test-window run.
	for i := 3; i < len(evaluator.calls); i += 4 {
		call := evaluator.calls[i]
		assert.Equal(t, 2, call.Config.Int("x", 0))
	}
}

func TestRunner_FallbackFoldStillProduced(t *testing.T) {
	evaluator := &stubEvaluator{fn: func(req EvalRequest) (*EvalResult, error) {
		return evalResult(1.0, 0), nil
	}}

	cfg := sampleConfig()
	cfg.MinTradesPerFold = 5

	runner := newTestRunner(t, evaluator, cfg, models.StrategyConfig{})
	result, err := runner.Run(context.Background(), sampleRequest())
	require.NoError(t, err)
	require.NotEmpty(t, result.Folds)

	for _, fold := range result.Folds {
		assert.True(t, fold.TuningFallback)
		assert.Equal(t, map[string]interface{}{"fallback": true}, fold.OptimizedParams)
		assert.NotEqual(t, noSharpeScore, fold.TrainSharpe)
	}
}

func TestRunner_EvaluatorErrorAbortsRun(t *testing.T) {
	evaluator := &stubEvaluator{fn: func(req EvalRequest) (*EvalResult, error) {
		return nil, assert.AnError
	}}

	runner := newTestRunner(t, evaluator, sampleConfig(), models.StrategyConfig{})
	_, err := runner.Run(context.Background(), sampleRequest())
	assert.Error(t, err)
}

func TestRunner_ResultCacheSkipsReevaluation(t *testing.T) {
	evaluator := constantEvaluator()

	kv, err := localkv.NewLocalKV(nil)
	require.NoError(t, err)
	defer kv.Close()

	runner, err := NewRunner(evaluator,
		WithWalkForwardConfig(sampleConfig()),
		WithResultCache(kv),
	)
	require.NoError(t, err)

	first, err := runner.Run(context.Background(), sampleRequest())
	require.NoError(t, err)
	callsAfterFirst := len(evaluator.calls)
	require.NotZero(t, callsAfterFirst)

	second, err := runner.Run(context.Background(), sampleRequest())
	require.NoError(t, err)

	assert.Len(t, evaluator.calls, callsAfterFirst, "cached run must not re-evaluate")
	assert.Equal(t, len(first.Folds), len(second.Folds))
}

func TestRunner_PersistsRun(t *testing.T) {
	evaluator := constantEvaluator()

	store, err := storage.FromMemory()
	require.NoError(t, err)

	runner, err := NewRunner(evaluator,
		WithWalkForwardConfig(sampleConfig()),
		WithStorage(store),
	)
	require.NoError(t, err)

	result, err := runner.Run(context.Background(), sampleRequest())
	require.NoError(t, err)

	runs, err := store.Runs()
	require.NoError(t, err)
	require.Len(t, runs, 1)

	assert.Equal(t, "BTCUSDT", runs[0].Ticker)
	assert.Equal(t, len(result.Folds), runs[0].TotalFolds)
	assert.Equal(t, "B", runs[0].StabilityTier)
	assert.NotEmpty(t, runs[0].Payload)

	// Persisted report and aggregate come from the same computation.
	assert.Equal(t, result.AggregateMetrics["stability_score"], runs[0].StabilityScore)
	assert.Equal(t, result.AggregateMetrics["stability_tier"], runs[0].StabilityTier)
}

func TestNewRunner_Validation(t *testing.T) {
	_, err := NewRunner(nil)
	assert.Error(t, err)

	cfg := models.DefaultWalkForwardConfig()
	cfg.MaxTuneCombinations = 0
	_, err = NewRunner(constantEvaluator(), WithWalkForwardConfig(cfg))
	assert.Error(t, err)
}
