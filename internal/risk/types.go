package risk

import "errors"

// Sentinel admission errors. Callers match with errors.Is.
var (
	ErrBudgetExceeded = errors.New("risk budget exceeded")
	ErrMaxPositions   = errors.New("max positions reached")
	ErrSymbolOpen     = errors.New("symbol already has an open position")
)

// Limits is the static risk configuration consumed by the Ledger.
type Limits struct {
	RiskPerTradeUsd   float64
	MaxAllowedRiskUsd float64
	MaxPositions      int
	LotStep           float64
	MinQty            float64
}

// DefaultLimits returns conservative defaults: 4 USD risked per trade,
// an aggregate cap of two budgets, and two concurrent positions.
func DefaultLimits() Limits {
	perTrade := 4.0
	return Limits{
		RiskPerTradeUsd:   perTrade,
		MaxAllowedRiskUsd: 2 * perTrade,
		MaxPositions:      2,
		LotStep:           0.001,
		MinQty:            0.001,
	}
}

// Snapshot is a point-in-time view of the ledger used for one admission
// decision. Recomputed per request, never mutated.
type Snapshot struct {
	Balance           float64
	TotalOpenRiskUsd  float64
	MaxAllowedRiskUsd float64
	RiskPerTradeUsd   float64
	MaxPositions      int
	OpenPositions     int
}
