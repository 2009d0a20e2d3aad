package gates

import "testing"

func boolPtr(b bool) *bool { return &b }

func fullProfile() Profile {
	return Profile{
		Name:     "default",
		Required: 3,
		Gates: map[string]GateConfig{
			"trend":     {Enabled: true},
			"liquidity": {Enabled: true},
			"freshness": {Enabled: true},
			"spread":    {Enabled: false},
		},
	}
}

func TestEvaluatePerGateStatuses(t *testing.T) {
	diag := Diagnostic{
		Symbol: "BTCUSDT",
		Gates: map[string]Gate{
			"trend":     {OK: true},
			"liquidity": {OK: false, Detail: "depth too thin"},
			"freshness": {Pending: true},
		},
		RelayState:   RelayReady,
		SignalActive: true,
	}

	rep := Evaluate(diag, fullProfile())
	want := map[string]Status{
		"trend":     StatusAllowed,
		"liquidity": StatusBlocked,
		"freshness": StatusWaiting,
		"spread":    StatusDisabled,
	}
	for _, row := range rep.Rows {
		if row.Status != want[row.Name] {
			t.Fatalf("gate %s: got %s, want %s", row.Name, row.Status, want[row.Name])
		}
	}
	if rep.Total != 3 {
		t.Fatalf("total %d, want 3 (disabled gates excluded)", rep.Total)
	}
}

func TestEvaluateMissingGateIsWaiting(t *testing.T) {
	diag := Diagnostic{
		Symbol:     "BTCUSDT",
		Gates:      map[string]Gate{"trend": {OK: true}},
		RelayState: RelayReady,
	}
	rep := Evaluate(diag, fullProfile())
	for _, row := range rep.Rows {
		if row.Name == "liquidity" && row.Status != StatusWaiting {
			t.Fatalf("missing gate: got %s, want WAITING", row.Status)
		}
	}
}

func TestEvaluateRelayBlockedWins(t *testing.T) {
	diag := Diagnostic{
		Symbol:       "BTCUSDT",
		Gates:        map[string]Gate{"trend": {OK: true}},
		RelayState:   RelayBlocked,
		SignalActive: true,
	}
	rep := Evaluate(diag, fullProfile())
	for _, row := range rep.Rows {
		if row.Name == "trend" && row.Status != StatusBlocked {
			t.Fatalf("relay blocked: got %s, want BLOCKED", row.Status)
		}
	}
}

func TestEvaluateRelayPausedWithoutSignalIsWaiting(t *testing.T) {
	diag := Diagnostic{
		Symbol:       "BTCUSDT",
		Gates:        map[string]Gate{"trend": {OK: true}},
		RelayState:   RelayPaused,
		SignalActive: false,
	}
	rep := Evaluate(diag, fullProfile())
	for _, row := range rep.Rows {
		if row.Name == "trend" && row.Status != StatusWaiting {
			t.Fatalf("relay paused, no signal: got %s, want WAITING", row.Status)
		}
	}
}

func TestAggregateReady(t *testing.T) {
	diag := Diagnostic{
		Symbol: "BTCUSDT",
		Gates: map[string]Gate{
			"trend":     {OK: true},
			"liquidity": {OK: true},
			"freshness": {OK: true},
		},
		RelayState:   RelayReady,
		SignalActive: true,
	}
	rep := Evaluate(diag, fullProfile())
	if rep.Readiness != ReadinessReady {
		t.Fatalf("got %s, want READY", rep.Readiness)
	}
	if rep.Passed != 3 {
		t.Fatalf("passed %d, want 3", rep.Passed)
	}
}

func TestAggregatePendingAlwaysWaits(t *testing.T) {
	// One pending gate plus a failing gate, signal active: pending holds
	// the verdict open, never BLOCKED.
	diag := Diagnostic{
		Symbol: "BTCUSDT",
		Gates: map[string]Gate{
			"trend":     {OK: true},
			"liquidity": {OK: false},
			"freshness": {Pending: true},
		},
		RelayState:   RelayReady,
		SignalActive: true,
	}
	rep := Evaluate(diag, fullProfile())
	if rep.Readiness != ReadinessWaiting {
		t.Fatalf("got %s, want WAITING", rep.Readiness)
	}
}

func TestAggregateBelowRequiredWithSignalBlocks(t *testing.T) {
	diag := Diagnostic{
		Symbol: "BTCUSDT",
		Gates: map[string]Gate{
			"trend":     {OK: true},
			"liquidity": {OK: false},
			"freshness": {OK: false},
		},
		RelayState:   RelayReady,
		SignalActive: true,
	}
	rep := Evaluate(diag, fullProfile())
	if rep.Readiness != ReadinessBlocked {
		t.Fatalf("got %s, want BLOCKED", rep.Readiness)
	}
}

func TestAggregateBelowRequiredWithoutSignalWaits(t *testing.T) {
	diag := Diagnostic{
		Symbol: "BTCUSDT",
		Gates: map[string]Gate{
			"trend":     {OK: true},
			"liquidity": {OK: false},
			"freshness": {OK: false},
		},
		RelayState:   RelayReady,
		SignalActive: false,
	}
	rep := Evaluate(diag, fullProfile())
	if rep.Readiness != ReadinessWaiting {
		t.Fatalf("got %s, want WAITING", rep.Readiness)
	}
}

func TestAggregateExecutionNotAllowedBlocksPassingProfile(t *testing.T) {
	diag := Diagnostic{
		Symbol: "BTCUSDT",
		Gates: map[string]Gate{
			"trend":     {OK: true},
			"liquidity": {OK: true},
			"freshness": {OK: true},
		},
		RelayState:       RelayReady,
		ExecutionAllowed: boolPtr(false),
		SignalActive:     true,
	}
	rep := Evaluate(diag, fullProfile())
	if rep.Readiness != ReadinessBlocked {
		t.Fatalf("got %s, want BLOCKED when execution disallowed", rep.Readiness)
	}
}
