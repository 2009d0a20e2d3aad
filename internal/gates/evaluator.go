package gates

import "sort"

// Evaluate resolves every gate in the profile against the diagnostic and
// folds the results into an aggregate readiness.
func Evaluate(diag Diagnostic, profile Profile) Report {
	names := make([]string, 0, len(profile.Gates))
	for name := range profile.Gates {
		names = append(names, name)
	}
	sort.Strings(names)

	report := Report{
		Symbol:   diag.Symbol,
		Rows:     make([]Row, 0, len(names)),
		Required: profile.Required,
	}

	anyPending := false
	for _, name := range names {
		status, detail := evaluateGate(name, profile.Gates[name], diag)
		report.Rows = append(report.Rows, Row{Name: name, Status: status, Detail: detail})
		switch status {
		case StatusDisabled:
			continue
		case StatusAllowed:
			report.Passed++
		case StatusWaiting:
			anyPending = true
		}
		report.Total++
	}

	report.Readiness = aggregate(report.Passed, profile.Required, anyPending, diag)
	return report
}

// evaluateGate resolves one gate. Precedence, most specific first:
// configuration off, missing/pending data, hard relay block, relay not
// ready before a signal, evaluated failure, pass.
func evaluateGate(name string, cfg GateConfig, diag Diagnostic) (Status, string) {
	if !cfg.Enabled {
		return StatusDisabled, "disabled by profile"
	}

	gate, present := diag.Gates[name]
	if !present {
		return StatusWaiting, "no data yet"
	}
	if gate.Pending {
		return StatusWaiting, orDetail(gate.Detail, "pending")
	}
	if diag.RelayState == RelayBlocked {
		return StatusBlocked, "relay blocked"
	}
	if (diag.RelayState == RelayWaiting || diag.RelayState == RelayPaused) && !diag.SignalActive {
		return StatusWaiting, "relay " + string(diag.RelayState)
	}
	if !gate.OK {
		return StatusBlocked, orDetail(gate.Detail, "check failed")
	}
	return StatusAllowed, gate.Detail
}

// aggregate folds counts into a verdict. A pending gate always downgrades
// to WAITING, never BLOCKED: "not yet evaluable" is not "failed", so a
// pending row holds the verdict open even while other gates fail.
func aggregate(passed, required int, anyPending bool, diag Diagnostic) Readiness {
	if anyPending {
		return ReadinessWaiting
	}
	if passed >= required {
		if diag.ExecutionAllowed != nil && !*diag.ExecutionAllowed {
			return ReadinessBlocked
		}
		return ReadinessReady
	}
	if diag.SignalActive {
		return ReadinessBlocked
	}
	return ReadinessWaiting
}

func orDetail(detail, fallback string) string {
	if detail != "" {
		return detail
	}
	return fallback
}
