// Package scan runs the per-symbol trading loop: refresh diagnostics,
// evaluate gates, admit signals through the runtime, drive the execution
// protocol, and trail stops on managed positions.
package scan

import (
	"context"
	"errors"
	"log"
	"sync"
	"time"

	"github.com/Adamcza88/ai-matic-bot-sub002/internal/exec"
	"github.com/Adamcza88/ai-matic-bot-sub002/internal/gates"
	"github.com/Adamcza88/ai-matic-bot-sub002/internal/market"
	"github.com/Adamcza88/ai-matic-bot-sub002/internal/monitor"
	"github.com/Adamcza88/ai-matic-bot-sub002/internal/risk"
	"github.com/Adamcza88/ai-matic-bot-sub002/internal/runtime"
	"github.com/Adamcza88/ai-matic-bot-sub002/internal/signal"
	"github.com/Adamcza88/ai-matic-bot-sub002/internal/state"
	"github.com/Adamcza88/ai-matic-bot-sub002/pkg/exchanges/common"
)

// Scanner drives one goroutine per symbol. Each symbol's machine has a
// single writer; only the ledger is shared, and it serializes itself.
type Scanner struct {
	symbols  []string
	interval time.Duration

	rt        *runtime.Runtime
	ledger    *risk.Ledger
	execc     *exec.Client
	profile   gates.Profile
	diags     DiagnosticsProvider
	source    signal.Source
	trailer   *risk.Trailer
	feed      market.Feed
	store     *state.Manager
	metrics   *monitor.Metrics
	reprotect bool

	mu      sync.RWMutex
	reports map[string]gates.Report
}

// Config wires a Scanner.
type Config struct {
	Symbols   []string
	Interval  time.Duration
	Runtime   *runtime.Runtime
	Ledger    *risk.Ledger
	Exec      *exec.Client
	Profile   gates.Profile
	Diags     DiagnosticsProvider
	Source    signal.Source
	Trailer   *risk.Trailer
	Feed      market.Feed
	Store     *state.Manager
	Metrics   *monitor.Metrics
	Reprotect bool // replace venue protection after stop adjustments
}

// New creates a scanner.
func New(cfg Config) *Scanner {
	if cfg.Interval <= 0 {
		cfg.Interval = 2 * time.Second
	}
	return &Scanner{
		symbols:   cfg.Symbols,
		interval:  cfg.Interval,
		rt:        cfg.Runtime,
		ledger:    cfg.Ledger,
		execc:     cfg.Exec,
		profile:   cfg.Profile,
		diags:     cfg.Diags,
		source:    cfg.Source,
		trailer:   cfg.Trailer,
		feed:      cfg.Feed,
		store:     cfg.Store,
		metrics:   cfg.Metrics,
		reprotect: cfg.Reprotect,
		reports:   make(map[string]gates.Report),
	}
}

// Start launches one loop per symbol and returns.
func (s *Scanner) Start(ctx context.Context) {
	for _, symbol := range s.symbols {
		go s.run(ctx, symbol)
	}
}

func (s *Scanner) run(ctx context.Context, symbol string) {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	log.Printf("[scan] %s loop started (interval %s)", symbol, s.interval)
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.tick(ctx, symbol)
		}
	}
}

// tick is one scan cycle for one symbol.
func (s *Scanner) tick(ctx context.Context, symbol string) {
	sig, hasSignal := s.source.Next(symbol)
	actionable := hasSignal && sig.Actionable()

	diag := s.diags.Diagnostics(symbol)
	diag.SignalActive = actionable
	report := gates.Evaluate(diag, s.profile)

	s.mu.Lock()
	s.reports[symbol] = report
	s.mu.Unlock()

	switch s.rt.StateOf(symbol) {
	case runtime.StateManage:
		s.manage(ctx, symbol)
	case runtime.StateScan:
		// Any prior position's water mark is stale once the symbol is
		// back in SCAN; a re-entry must trail from its own prices.
		s.trailer.Forget(symbol)
		if actionable && report.Readiness == gates.ReadinessReady {
			s.place(ctx, sig)
		}
	}
}

// place runs admission and the placement protocol for one signal.
func (s *Scanner) place(ctx context.Context, sig signal.Signal) {
	snap := s.ledger.Snapshot()
	plan, err := s.rt.RequestPlace(sig, snap, "", sig.Invalidate)
	if err != nil {
		if runtime.IsAdmissionError(err) {
			s.metrics.IncrementRiskRejection()
			s.store.JournalRiskEvent(sig.Symbol, "admission_rejected", err.Error())
			return
		}
		log.Printf("[scan] %s place request failed: %v", sig.Symbol, err)
		return
	}

	limits := s.ledger.Limits()
	qty := risk.ComputeQty(limits.RiskPerTradeUsd, 1, plan.EntryPrice, plan.StopLoss, limits.LotStep)
	if qty < limits.MinQty || qty == 0 {
		// Sub-step size is "no trade", not an error.
		s.store.JournalRiskEvent(sig.Symbol, "size_below_min", "computed qty below venue minimum")
		s.abort(sig.Symbol)
		return
	}

	res, err := s.execc.PlaceProtected(ctx, exec.Request{
		Symbol:      plan.Symbol,
		Side:        plan.Side(),
		EntryType:   plan.EntryType,
		EntryPrice:  plan.EntryPrice,
		Qty:         qty,
		StopLoss:    plan.StopLoss,
		TakeProfits: plan.TakeProfits,
	})
	if res.OrderID != "" {
		if aerr := s.rt.HandleOrderAck(sig.Symbol, res.OrderID); aerr != nil {
			log.Printf("[scan] %s ack record failed: %v", sig.Symbol, aerr)
		}
		s.store.RecordOrder(res.OrderID, res.ClientID, plan.Symbol, string(plan.Side()),
			string(plan.EntryType), qty, plan.EntryPrice, "submitted")
	}
	if err != nil {
		s.handlePlacementFailure(ctx, sig.Symbol, plan, res, err)
		return
	}

	if ferr := s.rt.HandleFill(res.OrderID, plan.Symbol, plan.Side(),
		res.Fill.Price, res.Fill.Qty, plan.StopLoss); ferr != nil {
		log.Printf("[scan] %s fill record failed: %v", plan.Symbol, ferr)
		return
	}
	s.store.UpdateOrderStatus(res.OrderID, "filled")
	log.Printf("[scan] %s filled and protected: qty=%v entry=%v stop=%v",
		plan.Symbol, res.Fill.Qty, res.Fill.Price, plan.StopLoss)
}

// handlePlacementFailure unwinds whatever state the failed protocol left
// behind. Protection failure on a live fill is the emergency path: the
// position is flattened with a reduce-only market order before the
// reservation is released.
func (s *Scanner) handlePlacementFailure(ctx context.Context, symbol string, plan runtime.OrderPlan, res exec.Result, err error) {
	switch {
	case errors.Is(err, exec.ErrProtectionFailed):
		log.Printf("[scan] %s UNPROTECTED FILL, force-closing: %v", symbol, err)
		s.store.JournalRiskEvent(symbol, "protection_failed", err.Error())
		if res.Fill.Qty > 0 {
			if cerr := s.execc.ClosePosition(ctx, symbol, plan.Side(), res.Fill.Qty); cerr != nil {
				// Close failed too: keep the reservation so no new risk
				// stacks on the orphan; reconciliation takes over.
				log.Printf("[scan] %s force-close FAILED, holding reservation: %v", symbol, cerr)
				return
			}
		}
		s.abort(symbol)

	case errors.Is(err, exec.ErrFillTimeout):
		if res.OrderID != "" && !res.Cancelled {
			// Cancel unconfirmed: the order may still fill venue-side.
			// Keep the reservation so no new risk stacks on it;
			// reconciliation resolves the symbol.
			log.Printf("[scan] %s fill timeout and cancel unconfirmed, holding reservation: %v", symbol, err)
			s.store.JournalRiskEvent(symbol, "fill_timeout_unresolved", err.Error())
			return
		}
		log.Printf("[scan] %s fill timeout, order cancelled: %v", symbol, err)
		s.store.JournalRiskEvent(symbol, "fill_timeout", err.Error())
		if res.OrderID != "" {
			s.store.UpdateOrderStatus(res.OrderID, "cancelled")
		}
		s.abort(symbol)

	default:
		log.Printf("[scan] %s placement failed: %v", symbol, err)
		s.metrics.IncrementErrors()
		s.abort(symbol)
	}
}

func (s *Scanner) abort(symbol string) {
	if err := s.rt.AbortPlace(symbol); err != nil {
		log.Printf("[scan] %s abort failed: %v", symbol, err)
	}
}

// manage trails the stop of an open position from the latest price.
func (s *Scanner) manage(ctx context.Context, symbol string) {
	pos, ok := s.rt.Position(symbol)
	if !ok {
		return
	}
	price, ok := s.feed.LastPrice(symbol)
	if !ok {
		return
	}

	long := pos.Side == common.SideBuy
	proposed, tighten := s.trailer.Observe(symbol, long, price, pos.StopLoss)
	if !tighten {
		return
	}
	if err := s.rt.AdjustStop(symbol, proposed); err != nil {
		log.Printf("[scan] %s stop adjust rejected: %v", symbol, err)
		return
	}
	log.Printf("[scan] %s stop trailed to %v (price %v)", symbol, proposed, price)

	if s.reprotect {
		if err := s.execc.Reprotect(ctx, symbol, pos.Side, pos.Size, proposed, nil); err != nil {
			log.Printf("[scan] %s reprotect failed: %v", symbol, err)
			s.store.JournalRiskEvent(symbol, "reprotect_failed", err.Error())
		}
	}
}

// Reports returns the latest gate reports for the observability API.
func (s *Scanner) Reports() map[string]gates.Report {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make(map[string]gates.Report, len(s.reports))
	for k, v := range s.reports {
		out[k] = v
	}
	return out
}
