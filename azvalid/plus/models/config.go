package models

import (
	"fmt"
	"os"

	"github.com/StudioSol/set"
	"gopkg.in/yaml.v3"
)

// TuneParameter is one axis of the tuning grid. Parameters are kept in a
// slice so the grid preserves its declaration order; candidate combinations
// are enumerated in exactly this order.
type TuneParameter struct {
	Name   string        `yaml:"name" json:"name"`
	Values []interface{} `yaml:"values" json:"values"`
}

// Objective metric names accepted by WalkForwardConfig.
const (
	ObjectiveSharpe       = "sharpe"
	ObjectiveProfitFactor = "profit_factor"
	ObjectiveCalmar       = "calmar"
)

// WalkForwardConfig holds fold cadence and tuning parameters for one
// validation run. It is read once at run start and never mutated.
type WalkForwardConfig struct {
	TrainDays   int `yaml:"train_days" json:"train_days"`
	TestDays    int `yaml:"test_days" json:"test_days"`
	StepDays    int `yaml:"step_days" json:"step_days"`
	WarmupDays  int `yaml:"warmup_days" json:"warmup_days"`
	EmbargoDays int `yaml:"embargo_days" json:"embargo_days"`

	TuneGrid            []TuneParameter `yaml:"tune_grid,omitempty" json:"tune_grid,omitempty"`
	ObjectiveMetric     string          `yaml:"objective_metric" json:"objective_metric"`
	MinTradesPerFold    int             `yaml:"min_trades_per_fold" json:"min_trades_per_fold"`
	MaxTuneCombinations int             `yaml:"max_tune_combinations" json:"max_tune_combinations"`
}

// DefaultWalkForwardConfig returns the documented defaults. Runs are always
// parameterized by an explicit config value, never by package state.
func DefaultWalkForwardConfig() WalkForwardConfig {
	return WalkForwardConfig{
		TrainDays:           90,
		TestDays:            30,
		StepDays:            30,
		WarmupDays:          0,
		EmbargoDays:         0,
		ObjectiveMetric:     ObjectiveSharpe,
		MinTradesPerFold:    0,
		MaxTuneCombinations: 60,
	}
}

// Validate reports configuration errors before a run starts.
func (c WalkForwardConfig) Validate() error {
	if c.TrainDays < 0 || c.TestDays < 0 || c.StepDays < 0 ||
		c.WarmupDays < 0 || c.EmbargoDays < 0 {
		return fmt.Errorf("window sizes must be non-negative")
	}
	if c.MinTradesPerFold < 0 {
		return fmt.Errorf("min_trades_per_fold must be non-negative")
	}
	if c.MaxTuneCombinations < 1 {
		return fmt.Errorf("max_tune_combinations must be at least 1")
	}
	switch c.ObjectiveMetric {
	case "", ObjectiveSharpe, ObjectiveProfitFactor, ObjectiveCalmar:
	default:
		return fmt.Errorf("unknown objective metric %q", c.ObjectiveMetric)
	}

	names := set.NewLinkedHashSetString()
	for _, param := range c.TuneGrid {
		if param.Name == "" {
			return fmt.Errorf("tune_grid parameter with empty name")
		}
		names.Add(param.Name)
	}
	if names.Length() != len(c.TuneGrid) {
		return fmt.Errorf("tune_grid contains duplicate parameter names")
	}

	return nil
}

// StrategyConfig is an opaque named-parameter record for the strategy under
// validation. The engine never interprets the parameters, it only copies and
// overrides them per tuning candidate.
type StrategyConfig struct {
	Name   string                 `yaml:"name" json:"name"`
	Params map[string]interface{} `yaml:"params" json:"params"`
}

// WithOverrides returns a fresh copy with the given overrides applied.
// The receiver is never mutated.
func (c StrategyConfig) WithOverrides(overrides map[string]interface{}) StrategyConfig {
	out := StrategyConfig{
		Name:   c.Name,
		Params: make(map[string]interface{}, len(c.Params)+len(overrides)),
	}
	for k, v := range c.Params {
		out.Params[k] = v
	}
	for k, v := range overrides {
		out.Params[k] = v
	}
	return out
}

// Float reads a numeric parameter, tolerating int values from YAML.
func (c StrategyConfig) Float(key string, def float64) float64 {
	switch v := c.Params[key].(type) {
	case float64:
		return v
	case int:
		return float64(v)
	case int64:
		return float64(v)
	default:
		return def
	}
}

// Int reads an integer parameter, tolerating float values from YAML.
func (c StrategyConfig) Int(key string, def int) int {
	switch v := c.Params[key].(type) {
	case int:
		return v
	case int64:
		return int(v)
	case float64:
		return int(v)
	default:
		return def
	}
}

// Bool reads a boolean parameter.
func (c StrategyConfig) Bool(key string, def bool) bool {
	if v, ok := c.Params[key].(bool); ok {
		return v
	}
	return def
}

// CostModel carries the trading cost assumptions passed through to the
// strategy evaluator.
type CostModel struct {
	Fee      float64 `yaml:"fee" json:"fee"`
	Slippage float64 `yaml:"slippage" json:"slippage"`
}

// Config is the top-level YAML configuration file.
type Config struct {
	Strategy    StrategyConfig    `yaml:"strategy"`
	WalkForward WalkForwardConfig `yaml:"walk_forward"`

	BacktestConfig struct {
		InitialBalance float64 `yaml:"initial_balance"`
		Fee            float64 `yaml:"fee"`
		Slippage       float64 `yaml:"slippage"`
		Seed           int64   `yaml:"seed"`
	} `yaml:"backtest"`
}

// ReadConfig loads a Config from a YAML file.
func ReadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	config := &Config{WalkForward: DefaultWalkForwardConfig()}
	if err := yaml.Unmarshal(data, config); err != nil {
		return nil, err
	}

	return config, nil
}

// Save writes the config back to a YAML file.
func (c *Config) Save(path string) error {
	data, err := yaml.Marshal(c)
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0644)
}
