// Package signal defines the contract between strategy modules and the
// execution core. Strategies hand over immutable Signal values; the core
// never inspects strategy-specific internals.
package signal

import "time"

// Direction of a proposed trade.
type Direction string

const (
	DirectionLong  Direction = "long"
	DirectionShort Direction = "short"
	DirectionNone  Direction = "none"
)

// EntryZone is the price band a strategy considers a valid entry.
type EntryZone struct {
	High float64 `json:"high"`
	Low  float64 `json:"low"`
}

// Signal is a strategy's proposed trade for one symbol. Produced once per
// evaluation cycle, immutable, consumed exactly once by runtime admission.
type Signal struct {
	Symbol      string    `json:"symbol"`
	Direction   Direction `json:"direction"`
	HTFTrend    string    `json:"htfTrend"`
	EntryZone   EntryZone `json:"entryZone"`
	Invalidate  float64   `json:"invalidate"`
	GeneratedAt time.Time `json:"generatedAt"`
}

// Actionable reports whether the signal proposes a trade at all.
func (s Signal) Actionable() bool {
	return s.Direction == DirectionLong || s.Direction == DirectionShort
}

// Source produces at most one signal per symbol per evaluation cycle.
// A zero-value Signal (Direction none) means no setup.
type Source interface {
	Next(symbol string) (Signal, bool)
}
