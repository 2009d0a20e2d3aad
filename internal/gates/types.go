// Package gates turns per-symbol diagnostic facts into a single execution
// verdict: each configured gate resolves to one of four statuses, and the
// active profile folds them into an aggregate entry readiness.
package gates

// Status is the resolved state of one gate.
type Status string

const (
	StatusDisabled Status = "DISABLED"
	StatusWaiting  Status = "WAITING"
	StatusBlocked  Status = "BLOCKED"
	StatusAllowed  Status = "ALLOWED"
)

// Readiness is the aggregate entry verdict for a symbol.
type Readiness string

const (
	ReadinessReady   Readiness = "READY"
	ReadinessWaiting Readiness = "WAITING"
	ReadinessBlocked Readiness = "BLOCKED"
)

// RelayState is the upstream feed/relay classification for a symbol.
type RelayState string

const (
	RelayReady   RelayState = "READY"
	RelayWaiting RelayState = "WAITING"
	RelayBlocked RelayState = "BLOCKED"
	RelayPaused  RelayState = "PAUSED"
)

// Gate is one raw diagnostic fact. Pending means "not yet evaluable",
// which is distinct from failing.
type Gate struct {
	OK      bool   `json:"ok"`
	Pending bool   `json:"pending"`
	Detail  string `json:"detail"`
}

// Diagnostic is the per-symbol fact set, refreshed once per scan tick and
// read-only to the evaluator.
type Diagnostic struct {
	Symbol           string          `json:"symbol"`
	Gates            map[string]Gate `json:"gates"`
	RelayState       RelayState      `json:"relayState"`
	ExecutionAllowed *bool           `json:"executionAllowed"` // nil = unknown
	SignalActive     bool            `json:"signalActive"`
}

// Row is one evaluated gate in a report, for observability output.
type Row struct {
	Name   string `json:"name"`
	Status Status `json:"status"`
	Detail string `json:"detail"`
}

// Report is the full evaluation result for one symbol.
type Report struct {
	Symbol    string    `json:"symbol"`
	Rows      []Row     `json:"rows"`
	Passed    int       `json:"passed"`
	Required  int       `json:"required"`
	Total     int       `json:"total"`
	Readiness Readiness `json:"readiness"`
}
