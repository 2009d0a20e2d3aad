package risk

import "math"

// ComputeRisk returns the per-unit risk of an entry/stop pair.
func ComputeRisk(entry, stop float64) float64 {
	return math.Abs(entry - stop)
}

// ComputeQty sizes a position so a stop-out loses the budgeted fraction of
// balance, floored to the venue's lot step. Never rounds up: the floored
// quantity can only lose less than the budget, never more. Returns 0 when
// the inputs cannot produce a tradable size.
func ComputeQty(balance, riskPct, entry, stop, lotStep float64) float64 {
	perUnit := ComputeRisk(entry, stop)
	if perUnit <= 0 || balance <= 0 || riskPct <= 0 || lotStep <= 0 {
		return 0
	}
	raw := balance * riskPct / perUnit
	return NormalizeQty(raw, lotStep)
}

// NormalizeQty floors qty to the step grid. Results below one step become
// zero; venues reject zero-size orders, so callers treat 0 as "no trade".
// Idempotent: normalizing an already-normalized quantity is a no-op.
func NormalizeQty(qty, step float64) float64 {
	if step <= 0 || qty <= 0 {
		return 0
	}
	steps := math.Floor(qty/step + 1e-9)
	if steps < 1 {
		return 0
	}
	return steps * step
}
