package api

import (
	"log"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"

	"github.com/Adamcza88/ai-matic-bot-sub002/internal/events"
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

// wsEnvelope wraps a bus payload with its topic for stream consumers.
type wsEnvelope struct {
	Topic   string `json:"topic"`
	Payload any    `json:"payload"`
}

// websocket streams lifecycle events to the dashboard. Price ticks are
// deliberately excluded; the dashboard polls /api for point-in-time
// views and uses this stream for transitions and safety events.
func (h *handlers) websocket(c *gin.Context) {
	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		log.Printf("[api] ws upgrade error: %v", err)
		return
	}
	defer conn.Close()

	if h.deps.Bus == nil {
		_ = conn.WriteMessage(websocket.TextMessage, []byte(`{"error":"bus not ready"}`))
		return
	}

	topics := []events.Event{
		events.EventStateTransition,
		events.EventOrderFilled,
		events.EventPositionProtected,
		events.EventPositionClosed,
		events.EventStopAdjusted,
		events.EventRiskRejected,
		events.EventProtectionFailed,
		events.EventKillSwitch,
	}

	merged := make(chan wsEnvelope, 100)
	done := make(chan struct{})
	defer close(done)

	for _, topic := range topics {
		stream, unsub := h.deps.Bus.Subscribe(topic, 100)
		defer unsub()
		go func(topic events.Event, stream <-chan any) {
			for msg := range stream {
				select {
				case merged <- wsEnvelope{Topic: string(topic), Payload: msg}:
				case <-done:
					return
				}
			}
		}(topic, stream)
	}

	for env := range merged {
		if err := conn.WriteJSON(env); err != nil {
			log.Printf("[api] ws write error: %v", err)
			return
		}
	}
}
