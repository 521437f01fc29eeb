// Package azvalid evaluates a trading-strategy configuration across time
// using walk-forward validation: it splits a date range into successive
// train/test windows, tunes strategy parameters on each training window,
// measures out-of-sample performance on the matching test window and
// aggregates the per-fold results into a stability verdict.
package azvalid

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"github.com/ezquant/azvalid/azvalid/plus/localkv"
	"github.com/ezquant/azvalid/azvalid/plus/models"
	"github.com/ezquant/azvalid/azvalid/storage"

	"github.com/olekukonko/tablewriter"
	"github.com/samber/lo"
	"github.com/schollz/progressbar/v3"
	log "github.com/sirupsen/logrus"
)

func init() {
	log.SetFormatter(&log.TextFormatter{
		FullTimestamp:   true,
		TimestampFormat: "2006-01-02 15:04",
	})
}

// Request identifies what to validate and over which period.
type Request struct {
	Ticker        string           `json:"ticker"`
	Start         time.Time        `json:"start_date"`
	End           time.Time        `json:"end_date"`
	CostModel     models.CostModel `json:"cost_model"`
	Seed          int64            `json:"seed"`
	InitialEquity float64          `json:"initial_equity"`
}

// FoldResult extends a Fold with tuning and test outcomes. It is assembled
// once per fold and read-only afterwards.
type FoldResult struct {
	Fold
	OptimizedParams map[string]interface{} `json:"optimized_params"`
	TrainMetrics    Metrics                `json:"train_metrics"`
	TrainSharpe     float64                `json:"train_sharpe"`
	TestMetrics     Metrics                `json:"test_metrics"`
	TradesCount     int                    `json:"trades_count"`
	TuningFallback  bool                   `json:"tuning_fallback"`
}

// Result is the terminal artifact of one validation run.
type Result struct {
	Folds            []FoldResult           `json:"folds"`
	AggregateMetrics map[string]interface{} `json:"aggregate_metrics"`
}

// Runner orchestrates fold generation, per-fold tuning, test evaluation and
// stability aggregation. Folds are processed strictly in chronological order
// and candidates strictly in declared order, which makes parameter selection
// deterministic.
type Runner struct {
	evaluator  Evaluator
	wfConfig   models.WalkForwardConfig
	baseConfig models.StrategyConfig

	cache    *localkv.LocalKV
	store    storage.Storage
	progress bool
}

type Option func(*Runner)

// NewRunner creates a Runner around the given strategy evaluator.
func NewRunner(evaluator Evaluator, options ...Option) (*Runner, error) {
	if evaluator == nil {
		return nil, fmt.Errorf("evaluator is required")
	}

	runner := &Runner{
		evaluator: evaluator,
		wfConfig:  models.DefaultWalkForwardConfig(),
	}

	for _, option := range options {
		option(runner)
	}

	if err := runner.wfConfig.Validate(); err != nil {
		return nil, fmt.Errorf("invalid walk-forward config: %w", err)
	}

	return runner, nil
}

// WithWalkForwardConfig sets the fold cadence and tuning parameters.
func WithWalkForwardConfig(cfg models.WalkForwardConfig) Option {
	return func(r *Runner) {
		r.wfConfig = cfg
	}
}

// WithBaseConfig sets the strategy configuration that tuning candidates are
// derived from. The runner only ever works on copies of it.
func WithBaseConfig(cfg models.StrategyConfig) Option {
	return func(r *Runner) {
		r.baseConfig = cfg
	}
}

// WithResultCache reuses stored results for identical requests, keyed by the
// request digest.
func WithResultCache(kv *localkv.LocalKV) Option {
	return func(r *Runner) {
		r.cache = kv
	}
}

// WithStorage persists completed runs.
func WithStorage(store storage.Storage) Option {
	return func(r *Runner) {
		r.store = store
	}
}

// WithProgressBar renders a per-fold progress bar on stderr.
func WithProgressBar() Option {
	return func(r *Runner) {
		r.progress = true
	}
}

// WithLogLevel sets the log level. eg: log.DebugLevel, log.InfoLevel, log.WarnLevel
func WithLogLevel(level log.Level) Option {
	return func(r *Runner) {
		log.SetLevel(level)
	}
}

func (r *Runner) evaluate(ctx context.Context, req Request, start, end time.Time,
	cfg models.StrategyConfig) (*EvalResult, error) {

	res, err := r.evaluator.Evaluate(ctx, EvalRequest{
		Ticker:        req.Ticker,
		Start:         start,
		End:           end,
		Config:        cfg,
		CostModel:     req.CostModel,
		Seed:          req.Seed,
		InitialEquity: req.InitialEquity,
	})
	if err != nil {
		return nil, err
	}
	if res == nil {
		return nil, fmt.Errorf("evaluator returned no result for %s..%s",
			start.Format("2006-01-02"), end.Format("2006-01-02"))
	}
	return res, nil
}

// Run executes the full walk-forward pipeline for one request. An inverted
// date range is not an error: it yields an empty fold list and the empty
// aggregate defaults. Any evaluator failure aborts the run.
func (r *Runner) Run(ctx context.Context, req Request) (*Result, error) {
	req.Start, req.End = Day(req.Start), Day(req.End)

	digest, err := Digest(req, r.baseConfig, r.wfConfig)
	if err != nil {
		return nil, fmt.Errorf("compute request digest: %w", err)
	}

	if r.cache != nil {
		var cached Result
		ok, err := r.cache.GetJSON(digest, &cached)
		if err != nil {
			return nil, fmt.Errorf("read result cache: %w", err)
		}
		if ok {
			log.Infof("[RUN] reusing cached result %s", digest[:12])
			return &cached, nil
		}
	}

	folds := GenerateFolds(req.Start, req.End, r.wfConfig)
	log.Infof("[RUN] %s: %d folds over %s..%s", req.Ticker, len(folds),
		req.Start.Format("2006-01-02"), req.End.Format("2006-01-02"))

	var bar *progressbar.ProgressBar
	if r.progress && len(folds) > 0 {
		bar = progressbar.Default(int64(len(folds)))
	}

	results := make([]FoldResult, 0, len(folds))
	for _, fold := range folds {
		tuned, err := r.tuneFold(ctx, req, fold)
		if err != nil {
			return nil, err
		}

		testConfig := r.baseConfig.WithOverrides(tuned.Overrides)
		testRes, err := r.evaluate(ctx, req, fold.TestStart, fold.TestEnd, testConfig)
		if err != nil {
			return nil, fmt.Errorf("test evaluation: %w", err)
		}

		results = append(results, FoldResult{
			Fold:            fold,
			OptimizedParams: tuned.Params,
			TrainMetrics:    tuned.Metrics,
			TrainSharpe:     tuned.Sharpe,
			TestMetrics:     testRes.Metrics,
			TradesCount:     len(testRes.Trades),
			TuningFallback:  tuned.Fallback,
		})

		if bar != nil {
			if err := bar.Add(1); err != nil {
				log.Warnf("update progressbar fail: %v", err)
			}
		}
	}

	report := ComputeStability(results)
	result := &Result{
		Folds:            results,
		AggregateMetrics: aggregate(results, report),
	}

	if r.cache != nil {
		if err := r.cache.SetJSON(digest, result); err != nil {
			log.Warnf("[RUN] store result cache: %v", err)
		}
	}
	if r.store != nil {
		if err := r.persist(digest, req, result, report); err != nil {
			log.Warnf("[RUN] persist run: %v", err)
		}
	}

	return result, nil
}

// aggregate merges the stability report with the headline test statistics.
func aggregate(folds []FoldResult, report StabilityReport) map[string]interface{} {
	agg := map[string]interface{}{
		"total_folds":        len(folds),
		"sharpe":             report.SharpeMean,
		"max_drawdown":       report.MaxDrawdownWorst,
		"fold_count":         report.FoldCount,
		"sharpe_mean":        report.SharpeMean,
		"sharpe_median":      report.SharpeMedian,
		"sharpe_std":         report.SharpeStd,
		"max_drawdown_worst": report.MaxDrawdownWorst,
		"pct_positive_folds": report.PctPositiveFolds,
		"stability_score":    report.StabilityScore,
		"stability_tier":     report.StabilityTier,
	}
	if report.WorstFoldByDrawdown != nil {
		agg["worst_fold_index_by_drawdown"] = *report.WorstFoldByDrawdown
	}
	if report.WorstFoldBySharpe != nil {
		agg["worst_fold_index_by_sharpe"] = *report.WorstFoldBySharpe
	}

	return agg
}

func (r *Runner) persist(digest string, req Request, result *Result, report StabilityReport) error {
	payload, err := result.MarshalJSONString()
	if err != nil {
		return err
	}

	return r.store.SaveRun(&storage.Run{
		Digest:          digest,
		Ticker:          req.Ticker,
		StartDate:       req.Start,
		EndDate:         req.End,
		ObjectiveMetric: r.wfConfig.ObjectiveMetric,
		TotalFolds:      len(result.Folds),
		StabilityScore:  report.StabilityScore,
		StabilityTier:   report.StabilityTier,
		Payload:         payload,
	})
}

// Summary renders a per-fold table and the stability verdict to stdout.
func (result *Result) Summary() {
	buffer := bytes.NewBuffer(nil)
	table := tablewriter.NewWriter(buffer)
	table.SetHeader([]string{"Fold", "Train", "Test", "Train Sharpe", "Test Sharpe", "Max DD", "Trades", "Fallback"})
	table.SetFooterAlignment(tablewriter.ALIGN_RIGHT)

	fallbacks := 0
	for i, fold := range result.Folds {
		if fold.TuningFallback {
			fallbacks++
		}
		table.Append([]string{
			strconv.Itoa(i + 1),
			fmt.Sprintf("%s..%s", fold.TrainStart.Format("2006-01-02"), fold.TrainEnd.Format("2006-01-02")),
			fmt.Sprintf("%s..%s", fold.TestStart.Format("2006-01-02"), fold.TestEnd.Format("2006-01-02")),
			fmt.Sprintf("%.2f", fold.TrainSharpe),
			fmt.Sprintf("%.2f", orZero(fold.TestMetrics.Sharpe)),
			fmt.Sprintf("%.2f %%", orZero(fold.TestMetrics.MaxDrawdown)*100),
			strconv.Itoa(fold.TradesCount),
			strconv.FormatBool(fold.TuningFallback),
		})
	}

	trades := lo.SumBy(result.Folds, func(f FoldResult) int { return f.TradesCount })
	report := ComputeStability(result.Folds)
	table.SetFooter([]string{
		"TOTAL",
		strconv.Itoa(len(result.Folds)) + " folds",
		"",
		"",
		fmt.Sprintf("%.2f", report.SharpeMean),
		fmt.Sprintf("%.2f %%", report.MaxDrawdownWorst*100),
		strconv.Itoa(trades),
		strconv.Itoa(fallbacks),
	})
	table.Render()

	fmt.Println(buffer.String())
	fmt.Printf("STABILITY SCORE = %.1f (tier %s)\n", report.StabilityScore, report.StabilityTier)
	fmt.Printf("POSITIVE FOLDS  = %.0f %%\n", report.PctPositiveFolds*100)
}

// MarshalJSONString serializes the result for persistence and transport.
func (result *Result) MarshalJSONString() (string, error) {
	data, err := json.Marshal(result)
	if err != nil {
		return "", fmt.Errorf("encode result: %w", err)
	}
	return string(data), nil
}
