package azvalid

import (
	"time"

	"github.com/ezquant/azvalid/azvalid/plus/models"
)

// Fold is one train/test window pair. TrainStartEngine extends the training
// window backwards by the warmup period so the evaluator can seed rolling
// state, clamped so it never precedes the overall requested start.
type Fold struct {
	TrainStart       time.Time `json:"train_start"`
	TrainStartEngine time.Time `json:"train_start_engine"`
	TrainEnd         time.Time `json:"train_end"`
	TestStart        time.Time `json:"test_start"`
	TestEnd          time.Time `json:"test_end"`
}

// Day truncates a timestamp to a UTC calendar date. All fold arithmetic is
// done on whole days.
func Day(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}

// GenerateFolds partitions [start, end] into successive train/test windows.
// The gap between TrainEnd and TestStart is always exactly 1+EmbargoDays
// days, so training data can never leak into the test window. A fold whose
// test window would run past end is excluded and generation stops there.
// An empty or inverted range yields no folds.
func GenerateFolds(start, end time.Time, cfg models.WalkForwardConfig) []Fold {
	start, end = Day(start), Day(end)
	if !end.After(start) {
		return nil
	}

	step := cfg.StepDays
	if step < 1 {
		step = 1
	}

	var folds []Fold
	for trainStart := start; ; trainStart = trainStart.AddDate(0, 0, step) {
		trainEnd := trainStart.AddDate(0, 0, cfg.TrainDays-1)
		testStart := trainEnd.AddDate(0, 0, 1+cfg.EmbargoDays)
		testEnd := testStart.AddDate(0, 0, cfg.TestDays-1)
		if testEnd.After(end) {
			break
		}

		engineStart := trainStart.AddDate(0, 0, -cfg.WarmupDays)
		if engineStart.Before(start) {
			engineStart = start
		}

		folds = append(folds, Fold{
			TrainStart:       trainStart,
			TrainStartEngine: engineStart,
			TrainEnd:         trainEnd,
			TestStart:        testStart,
			TestEnd:          testEnd,
		})
	}

	return folds
}
