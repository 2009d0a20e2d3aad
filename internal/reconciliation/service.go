// Package reconciliation periodically compares runtime state against the
// venue's position list. It closes out positions the venue no longer
// holds (stop or take-profit hit exchange-side) and flags orphans the
// runtime does not know about, which can appear after a failed cancel on
// fill timeout.
package reconciliation

import (
	"context"
	"log"
	"time"

	"github.com/Adamcza88/ai-matic-bot-sub002/internal/runtime"
	"github.com/Adamcza88/ai-matic-bot-sub002/internal/state"
	"github.com/Adamcza88/ai-matic-bot-sub002/pkg/exchanges/common"
)

// Service runs the periodic refresh.
type Service struct {
	lister   common.PositionLister
	rt       *runtime.Runtime
	store    *state.Manager
	interval time.Duration
}

// New creates a reconciliation service. lister may be nil (mock runs),
// in which case Start is a no-op.
func New(lister common.PositionLister, rt *runtime.Runtime, store *state.Manager, interval time.Duration) *Service {
	if interval <= 0 {
		interval = 30 * time.Second
	}
	return &Service{lister: lister, rt: rt, store: store, interval: interval}
}

// Start launches the refresh loop.
func (s *Service) Start(ctx context.Context) {
	if s.lister == nil {
		return
	}
	go func() {
		ticker := time.NewTicker(s.interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				if err := s.Reconcile(ctx); err != nil {
					log.Printf("[reconcile] refresh failed: %v", err)
				}
			}
		}
	}()
}

// Reconcile performs one comparison pass.
func (s *Service) Reconcile(ctx context.Context) error {
	venuePositions, err := s.lister.ListPositions(ctx, "")
	if err != nil {
		return err
	}

	venueBySymbol := make(map[string]common.PositionInfo, len(venuePositions))
	for _, p := range venuePositions {
		venueBySymbol[p.Symbol] = p
	}

	// Managed locally but gone on the venue: protection triggered
	// exchange-side. Close out and release the budget.
	for _, pos := range s.rt.Positions() {
		if pos.Status != runtime.PositionOpen {
			continue
		}
		if _, held := venueBySymbol[pos.Symbol]; held {
			continue
		}
		log.Printf("[reconcile] %s closed exchange-side, releasing", pos.Symbol)
		s.store.JournalRiskEvent(pos.Symbol, "closed_exchange_side", "position absent from venue list")
		if err := s.rt.ExitPosition(pos.Symbol); err != nil {
			log.Printf("[reconcile] %s exit failed: %v", pos.Symbol, err)
		}
	}

	// Held on the venue but unknown locally: orphan risk. Surfaced, never
	// silently adopted; an operator or the kill switch decides.
	known := make(map[string]bool)
	for _, pos := range s.rt.Positions() {
		known[pos.Symbol] = true
	}
	for _, p := range venuePositions {
		if known[p.Symbol] {
			continue
		}
		if s.rt.StateOf(p.Symbol) == runtime.StatePlace {
			// Placement still in flight for this symbol; not an orphan.
			continue
		}
		log.Printf("[reconcile] ORPHAN position on venue: %s %s qty=%v", p.Symbol, p.Side, p.Qty)
		s.store.JournalRiskEvent(p.Symbol, "orphan_position", "venue holds a position the runtime does not")
	}
	return nil
}
