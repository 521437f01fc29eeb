package azvalid

// Metrics is the performance record returned by a strategy evaluation.
// Known fields are optional pointers so an absent metric is distinguishable
// from a zero one; anything else the evaluator reports lands in Extra.
type Metrics struct {
	Sharpe       *float64 `json:"sharpe,omitempty"`
	MaxDrawdown  *float64 `json:"max_drawdown,omitempty"`
	ProfitFactor *float64 `json:"profit_factor,omitempty"`
	WinRate      *float64 `json:"win_rate,omitempty"`
	TotalPnL     *float64 `json:"total_pnl,omitempty"`
	TotalReturn  *float64 `json:"total_return,omitempty"`

	Extra map[string]float64 `json:"extra,omitempty"`
}

// Float returns a pointer to v, for building Metrics literals.
func Float(v float64) *float64 {
	return &v
}

func orZero(p *float64) float64 {
	if p == nil {
		return 0
	}
	return *p
}
