package azvalid

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ezquant/azvalid/azvalid/plus/models"
)

func date(year int, month time.Month, day int) time.Time {
	return time.Date(year, month, day, 0, 0, 0, 0, time.UTC)
}

func TestGenerateFolds_NoOverlapInvariant(t *testing.T) {
	start := date(2023, 1, 1)
	end := date(2024, 6, 30)

	for _, embargo := range []int{0, 1, 2, 5} {
		for _, warmup := range []int{0, 10, 60, 400} {
			cfg := models.DefaultWalkForwardConfig()
			cfg.TrainDays = 60
			cfg.TestDays = 20
			cfg.StepDays = 20
			cfg.EmbargoDays = embargo
			cfg.WarmupDays = warmup

			folds := GenerateFolds(start, end, cfg)
			require.NotEmpty(t, folds, "embargo=%d warmup=%d", embargo, warmup)

			for i, fold := range folds {
				// Anti-leakage gap is exactly 1+embargo days, warmup never changes it.
				assert.True(t, fold.TestStart.After(fold.TrainEnd),
					"fold %d: test starts before train ends", i)
				assert.Equal(t, fold.TrainEnd.AddDate(0, 0, 1+embargo), fold.TestStart,
					"fold %d: embargo=%d warmup=%d", i, embargo, warmup)
			}
		}
	}
}

func TestGenerateFolds_WarmupClamping(t *testing.T) {
	start := date(2024, 1, 1)
	cfg := models.DefaultWalkForwardConfig()
	cfg.TrainDays = 30
	cfg.TestDays = 10
	cfg.StepDays = 30
	cfg.WarmupDays = 45

	folds := GenerateFolds(start, date(2024, 12, 31), cfg)
	require.NotEmpty(t, folds)

	for _, fold := range folds {
		assert.False(t, fold.TrainStartEngine.Before(start), "warmup reached before requested start")
	}

	// First fold clamps to the overall start.
	assert.Equal(t, start, folds[0].TrainStartEngine)

	// A fold far enough in gets the full warmup.
	last := folds[len(folds)-1]
	assert.Equal(t, last.TrainStart.AddDate(0, 0, -45), last.TrainStartEngine)
}

func TestGenerateFolds_EmptyRange(t *testing.T) {
	cfg := models.DefaultWalkForwardConfig()

	assert.Empty(t, GenerateFolds(date(2024, 6, 1), date(2024, 6, 1), cfg))
	assert.Empty(t, GenerateFolds(date(2024, 6, 2), date(2024, 6, 1), cfg))
}

func TestGenerateFolds_TerminationAtRangeEnd(t *testing.T) {
	end := date(2024, 6, 30)
	cfg := models.DefaultWalkForwardConfig()
	cfg.TrainDays = 30
	cfg.TestDays = 15
	cfg.StepDays = 15

	folds := GenerateFolds(date(2024, 1, 1), end, cfg)
	require.NotEmpty(t, folds)

	for _, fold := range folds {
		assert.False(t, fold.TestEnd.After(end))
	}

	// One more step would push the test window past the range end.
	last := folds[len(folds)-1]
	overflow := last.TrainStart.AddDate(0, 0, 15+30-1).AddDate(0, 0, 1).AddDate(0, 0, 14)
	assert.True(t, overflow.After(end))
}

func TestGenerateFolds_WindowGeometry(t *testing.T) {
	cfg := models.DefaultWalkForwardConfig()
	cfg.TrainDays = 30
	cfg.TestDays = 15
	cfg.StepDays = 15

	folds := GenerateFolds(date(2024, 1, 1), date(2024, 6, 30), cfg)
	require.NotEmpty(t, folds)

	first := folds[0]
	assert.Equal(t, date(2024, 1, 1), first.TrainStart)
	assert.Equal(t, date(2024, 1, 30), first.TrainEnd)
	assert.Equal(t, date(2024, 1, 31), first.TestStart)
	assert.Equal(t, date(2024, 2, 14), first.TestEnd)

	if len(folds) > 1 {
		assert.Equal(t, date(2024, 1, 16), folds[1].TrainStart)
	}
}
