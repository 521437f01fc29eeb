package azvalid

import (
	"context"
	"time"

	"github.com/ezquant/azvalid/azvalid/plus/models"
)

// Evaluator simulates a strategy over a date range and reports its trades
// and metrics. The engine treats it as a black box: one blocking call per
// tuning candidate and one per test window, with no retries. Any error it
// returns is fatal to the whole run.
type Evaluator interface {
	Evaluate(ctx context.Context, req EvalRequest) (*EvalResult, error)
}

// EvalRequest describes one evaluation of a single configuration.
type EvalRequest struct {
	Ticker        string                `json:"ticker"`
	Start         time.Time             `json:"start_date"`
	End           time.Time             `json:"end_date"`
	Config        models.StrategyConfig `json:"config"`
	CostModel     models.CostModel      `json:"cost_model"`
	Seed          int64                 `json:"seed"`
	InitialEquity float64               `json:"initial_equity"`
}

// Trade is a completed simulated trade. The engine only ever counts trades;
// the fields exist for evaluator implementations and downstream consumers.
type Trade struct {
	EntryTime time.Time `json:"entry_time"`
	ExitTime  time.Time `json:"exit_time"`
	Side      string    `json:"side"`
	Size      float64   `json:"size"`
	PnL       float64   `json:"pnl"`
}

// Event is an auxiliary record emitted by an evaluator (signals, stops).
type Event struct {
	Time   time.Time `json:"time"`
	Type   string    `json:"type"`
	Detail string    `json:"detail,omitempty"`
}

// EvalResult is the evaluator's response for one run.
type EvalResult struct {
	Trades  []Trade `json:"trades"`
	Events  []Event `json:"events"`
	Metrics Metrics `json:"metrics"`
}
