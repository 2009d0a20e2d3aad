package api

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/Adamcza88/ai-matic-bot-sub002/internal/events"
	"github.com/Adamcza88/ai-matic-bot-sub002/internal/signal"
)

func (h *handlers) positions(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"positions": h.deps.Runtime.Positions()})
}

func (h *handlers) symbolState(c *gin.Context) {
	symbol := c.Param("symbol")
	resp := gin.H{
		"symbol": symbol,
		"state":  h.deps.Runtime.StateOf(symbol),
	}
	if pos, ok := h.deps.Runtime.Position(symbol); ok {
		resp["position"] = pos
	}
	if orderID, ok := h.deps.Runtime.PendingOrderID(symbol); ok {
		resp["pendingOrderId"] = orderID
	}
	c.JSON(http.StatusOK, resp)
}

func (h *handlers) gateReports(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"reports": h.deps.Scanner.Reports()})
}

func (h *handlers) riskSnapshot(c *gin.Context) {
	snap := h.deps.Ledger.Snapshot()
	c.JSON(http.StatusOK, gin.H{
		"balance":           snap.Balance,
		"totalOpenRiskUsd":  snap.TotalOpenRiskUsd,
		"maxAllowedRiskUsd": snap.MaxAllowedRiskUsd,
		"riskPerTradeUsd":   snap.RiskPerTradeUsd,
		"maxPositions":      snap.MaxPositions,
		"openPositions":     snap.OpenPositions,
		"killSwitch":        h.deps.Runtime.KillSwitchActive(),
	})
}

func (h *handlers) riskEvents(c *gin.Context) {
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "100"))
	rows, err := h.deps.Store.RecentRiskEvents(limit)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"events": rows})
}

func (h *handlers) metrics(c *gin.Context) {
	c.JSON(http.StatusOK, h.deps.Metrics.GetSnapshot())
}

type killSwitchRequest struct {
	Active bool `json:"active"`
}

// killSwitch is the one mutating endpoint: it only ever blocks new risk.
func (h *handlers) killSwitch(c *gin.Context) {
	var req killSwitchRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "body must be {\"active\": bool}"})
		return
	}
	h.deps.Runtime.SetKillSwitch(req.Active)
	c.JSON(http.StatusOK, gin.H{"killSwitch": req.Active})
}

// pushSignal is the data handoff from external strategy processes. The
// queue keeps the latest unconsumed signal per symbol.
func (h *handlers) pushSignal(c *gin.Context) {
	var sig signal.Signal
	if err := c.ShouldBindJSON(&sig); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if sig.Symbol == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "symbol required"})
		return
	}
	if sig.GeneratedAt.IsZero() {
		sig.GeneratedAt = time.Now()
	}
	h.deps.Signals.Push(sig)
	h.deps.Bus.Publish(events.EventSignal, sig)
	c.JSON(http.StatusAccepted, gin.H{"queued": sig.Symbol})
}
