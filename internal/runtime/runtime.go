// Package runtime owns the per-symbol position lifecycle: SCAN → PLACE →
// MANAGE → EXIT. All admission checks happen in RequestPlace, the single
// point where new risk enters the system.
package runtime

import (
	"errors"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/Adamcza88/ai-matic-bot-sub002/internal/events"
	"github.com/Adamcza88/ai-matic-bot-sub002/internal/risk"
	"github.com/Adamcza88/ai-matic-bot-sub002/internal/signal"
	"github.com/Adamcza88/ai-matic-bot-sub002/pkg/exchanges/common"
)

// PositionSink receives position snapshots for persistence. Failures are
// reported but never block a lifecycle transition.
type PositionSink interface {
	SavePosition(p PositionState) error
}

// machine is one symbol's lifecycle. Guarded by the runtime mutex.
type machine struct {
	state    State
	plan     *OrderPlan
	orderID  string
	position *PositionState
}

// Runtime sequences risk checks, placement, and position management for
// every traded symbol.
type Runtime struct {
	mu        sync.RWMutex
	machines  map[string]*machine
	seenFills map[string]bool

	ledger *risk.Ledger
	kill   *KillSwitch
	bus    *events.Bus
	sink   PositionSink
}

// New creates a runtime. The kill switch is injected so operators and
// tests share one cell; sink may be nil.
func New(ledger *risk.Ledger, kill *KillSwitch, bus *events.Bus, sink PositionSink) *Runtime {
	return &Runtime{
		machines:  make(map[string]*machine),
		seenFills: make(map[string]bool),
		ledger:    ledger,
		kill:      kill,
		bus:       bus,
		sink:      sink,
	}
}

func (r *Runtime) machineFor(symbol string) *machine {
	m, ok := r.machines[symbol]
	if !ok {
		m = &machine{state: StateScan}
		r.machines[symbol] = m
	}
	return m
}

func (r *Runtime) transition(symbol string, m *machine, to State) {
	from := m.state
	m.state = to
	r.bus.Publish(events.EventStateTransition, events.Transition{
		Symbol: symbol, From: string(from), To: string(to),
	})
	log.Printf("[runtime] %s %s -> %s", symbol, from, to)
}

// RequestPlace admits or rejects a new placement. Checks run in a fixed
// order — kill switch, budget, position count — and are deterministic for
// a given snapshot. On success the risk is reserved atomically and the
// symbol moves SCAN → PLACE.
func (r *Runtime) RequestPlace(sig signal.Signal, snap risk.Snapshot, entryType common.OrderType, invalidate float64) (OrderPlan, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.kill.Active() {
		r.bus.Publish(events.EventRiskRejected, sig.Symbol)
		return OrderPlan{}, fmt.Errorf("%s: %w", sig.Symbol, ErrKillSwitch)
	}

	newRisk := snap.RiskPerTradeUsd
	if snap.TotalOpenRiskUsd+newRisk > snap.MaxAllowedRiskUsd {
		r.bus.Publish(events.EventRiskRejected, sig.Symbol)
		return OrderPlan{}, fmt.Errorf("open %.2f + new %.2f > max %.2f: %w",
			snap.TotalOpenRiskUsd, newRisk, snap.MaxAllowedRiskUsd, risk.ErrBudgetExceeded)
	}
	if snap.OpenPositions >= snap.MaxPositions {
		r.bus.Publish(events.EventRiskRejected, sig.Symbol)
		return OrderPlan{}, fmt.Errorf("%d open: %w", snap.OpenPositions, risk.ErrMaxPositions)
	}

	m := r.machineFor(sig.Symbol)
	if m.state != StateScan {
		return OrderPlan{}, fmt.Errorf("%s in %s: %w", sig.Symbol, m.state, ErrIllegalTransition)
	}

	plan, err := r.buildPlan(sig, entryType, invalidate)
	if err != nil {
		return OrderPlan{}, err
	}

	// Atomic commit against the shared ledger; the snapshot checks above
	// make the decision, this guards against cross-symbol races.
	if err := r.ledger.Reserve(sig.Symbol, newRisk); err != nil {
		r.bus.Publish(events.EventRiskRejected, sig.Symbol)
		return OrderPlan{}, err
	}

	m.plan = &plan
	r.transition(sig.Symbol, m, StatePlace)
	return plan, nil
}

// buildPlan derives concrete order parameters from a signal: entry at the
// zone midpoint, stop at the invalidation price, take-profits at one and
// two multiples of the stop distance.
func (r *Runtime) buildPlan(sig signal.Signal, entryType common.OrderType, invalidate float64) (OrderPlan, error) {
	entry := (sig.EntryZone.High + sig.EntryZone.Low) / 2
	stop := invalidate
	if stop == 0 {
		stop = sig.Invalidate
	}

	riskDist := risk.ComputeRisk(entry, stop)
	var tps []common.TakeProfitLevel
	if riskDist > 0 {
		if sig.Direction == signal.DirectionLong {
			tps = []common.TakeProfitLevel{
				{Price: entry + riskDist, SizePct: 0.5},
				{Price: entry + 2*riskDist, SizePct: 0.5},
			}
		} else {
			tps = []common.TakeProfitLevel{
				{Price: entry - riskDist, SizePct: 0.5},
				{Price: entry - 2*riskDist, SizePct: 0.5},
			}
		}
	}
	return NewOrderPlan(sig.Symbol, sig.Direction, entryType, entry, stop, tps)
}

// HandleOrderAck records the venue order id against the pending plan.
// No state transition.
func (r *Runtime) HandleOrderAck(symbol, orderID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	m := r.machineFor(symbol)
	if m.state != StatePlace {
		return fmt.Errorf("%s ack in %s: %w", symbol, m.state, ErrIllegalTransition)
	}
	m.orderID = orderID
	return nil
}

// HandleFill creates the position and moves PLACE → MANAGE. Idempotent
// per order id: replayed fills are detected and ignored.
func (r *Runtime) HandleFill(orderID, symbol string, side common.Side, entryPrice, size, stopLoss float64) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.seenFills[orderID] {
		log.Printf("[runtime] %s duplicate fill %s ignored", symbol, orderID)
		return nil
	}

	m := r.machineFor(symbol)
	if m.state != StatePlace {
		return fmt.Errorf("%s fill in %s: %w", symbol, m.state, ErrIllegalTransition)
	}

	r.seenFills[orderID] = true
	m.position = &PositionState{
		Symbol:     symbol,
		Side:       side,
		EntryPrice: entryPrice,
		Size:       size,
		StopLoss:   stopLoss,
		Status:     PositionOpen,
		LastUpdate: time.Now(),
	}
	r.transition(symbol, m, StateManage)
	r.persist(*m.position)
	return nil
}

// AbortPlace unwinds a placement that produced no position (fill timeout,
// submit failure, or a force-closed unprotected fill): releases the risk
// reservation and returns the symbol to SCAN.
func (r *Runtime) AbortPlace(symbol string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	m := r.machineFor(symbol)
	if m.state != StatePlace {
		return fmt.Errorf("%s abort in %s: %w", symbol, m.state, ErrIllegalTransition)
	}
	m.plan = nil
	m.orderID = ""
	r.ledger.Release(symbol)
	r.transition(symbol, m, StateScan)
	return nil
}

// AdjustStop tightens the stop of a managed position. Direction-aware:
// for a long the stop may only rise, for a short only fall. A loosening
// proposal is rejected, never silently applied.
func (r *Runtime) AdjustStop(symbol string, newStop float64) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	m := r.machineFor(symbol)
	if m.state != StateManage || m.position == nil {
		return fmt.Errorf("%s adjust in %s: %w", symbol, m.state, ErrIllegalTransition)
	}
	if newStop <= 0 {
		return fmt.Errorf("%s: stop %.8f not positive", symbol, newStop)
	}

	pos := m.position
	if pos.Side == common.SideBuy && newStop < pos.StopLoss {
		return fmt.Errorf("%s: stop %.8f loosens long stop %.8f", symbol, newStop, pos.StopLoss)
	}
	if pos.Side == common.SideSell && newStop > pos.StopLoss {
		return fmt.Errorf("%s: stop %.8f loosens short stop %.8f", symbol, newStop, pos.StopLoss)
	}

	pos.StopLoss = newStop
	pos.LastUpdate = time.Now()
	r.bus.Publish(events.EventStopAdjusted, *pos)
	r.persist(*pos)
	return nil
}

// ExitPosition closes a managed position: MANAGE → EXIT, record closed,
// release the risk reservation, return to SCAN.
func (r *Runtime) ExitPosition(symbol string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	m := r.machineFor(symbol)
	if m.state != StateManage || m.position == nil {
		return fmt.Errorf("%s exit in %s: %w", symbol, m.state, ErrIllegalTransition)
	}

	r.transition(symbol, m, StateExit)
	m.position.Status = PositionClosed
	m.position.LastUpdate = time.Now()
	r.persist(*m.position)
	r.bus.Publish(events.EventPositionClosed, *m.position)

	r.ledger.Release(symbol)
	m.position = nil
	m.plan = nil
	m.orderID = ""
	r.transition(symbol, m, StateScan)
	return nil
}

// SetKillSwitch flips the injected cell and announces the change.
func (r *Runtime) SetKillSwitch(active bool) {
	r.kill.Set(active)
	r.bus.Publish(events.EventKillSwitch, active)
	log.Printf("[runtime] kill switch active=%v", active)
}

// KillSwitchActive reports the cell's state.
func (r *Runtime) KillSwitchActive() bool { return r.kill.Active() }

// StateOf returns the lifecycle state for a symbol; unknown symbols are
// in SCAN.
func (r *Runtime) StateOf(symbol string) State {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if m, ok := r.machines[symbol]; ok {
		return m.state
	}
	return StateScan
}

// Position returns a copy of the open position for a symbol.
func (r *Runtime) Position(symbol string) (PositionState, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	m, ok := r.machines[symbol]
	if !ok || m.position == nil {
		return PositionState{}, false
	}
	return *m.position, true
}

// Positions returns copies of all open positions.
func (r *Runtime) Positions() []PositionState {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]PositionState, 0, len(r.machines))
	for _, m := range r.machines {
		if m.position != nil {
			out = append(out, *m.position)
		}
	}
	return out
}

// PendingOrderID returns the venue order id recorded for a symbol in
// PLACE, if any.
func (r *Runtime) PendingOrderID(symbol string) (string, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	m, ok := r.machines[symbol]
	if !ok || m.orderID == "" {
		return "", false
	}
	return m.orderID, true
}

func (r *Runtime) persist(p PositionState) {
	if r.sink == nil {
		return
	}
	if err := r.sink.SavePosition(p); err != nil {
		log.Printf("[runtime] persist %s failed: %v", p.Symbol, err)
	}
}

// IsAdmissionError reports whether err is one of the synchronous
// admission rejections that the scan loop should treat as "do not place".
func IsAdmissionError(err error) bool {
	return errors.Is(err, ErrKillSwitch) ||
		errors.Is(err, risk.ErrBudgetExceeded) ||
		errors.Is(err, risk.ErrMaxPositions) ||
		errors.Is(err, risk.ErrSymbolOpen)
}
