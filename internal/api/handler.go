// Package api serves the read-only observability surface plus the
// kill-switch operator toggle. The core never depends on anything this
// layer returns.
package api

import (
	"time"

	"github.com/gin-gonic/gin"

	"github.com/Adamcza88/ai-matic-bot-sub002/internal/events"
	"github.com/Adamcza88/ai-matic-bot-sub002/internal/monitor"
	"github.com/Adamcza88/ai-matic-bot-sub002/internal/risk"
	"github.com/Adamcza88/ai-matic-bot-sub002/internal/runtime"
	"github.com/Adamcza88/ai-matic-bot-sub002/internal/scan"
	"github.com/Adamcza88/ai-matic-bot-sub002/internal/signal"
	"github.com/Adamcza88/ai-matic-bot-sub002/internal/state"
)

// Deps collects everything the handlers read from, plus the signal
// queue external strategies push into.
type Deps struct {
	Runtime   *runtime.Runtime
	Ledger    *risk.Ledger
	Scanner   *scan.Scanner
	Store     *state.Manager
	Metrics   *monitor.Metrics
	Bus       *events.Bus
	Signals   *signal.Queue
	JWTSecret string
}

// NewRouter builds the gin engine with the full middleware stack.
func NewRouter(deps Deps) *gin.Engine {
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(RequestIDMiddleware())
	router.Use(RequestLogger())
	router.Use(RateLimitMiddleware())
	router.Use(CORSMiddleware())

	h := &handlers{deps: deps}

	router.GET("/health", h.health)
	router.GET("/ws", h.websocket)

	protected := router.Group("/api")
	protected.Use(AuthMiddleware(deps.JWTSecret))
	{
		protected.GET("/positions", h.positions)
		protected.GET("/state/:symbol", h.symbolState)
		protected.GET("/gates", h.gateReports)
		protected.GET("/risk", h.riskSnapshot)
		protected.GET("/riskevents", h.riskEvents)
		protected.GET("/metrics", h.metrics)
		protected.POST("/killswitch", h.killSwitch)
		protected.POST("/signal", h.pushSignal)
	}

	return router
}

type handlers struct {
	deps Deps
}

func (h *handlers) health(c *gin.Context) {
	c.JSON(200, gin.H{
		"status": "ok",
		"time":   time.Now().UTC().Format(time.RFC3339),
	})
}
