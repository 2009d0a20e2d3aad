package events

// Event enumerates topics inside the execution core.
type Event string

const (
	EventPriceTick         Event = "price_tick"
	EventSignal            Event = "signal"
	EventStateTransition   Event = "state.transition"
	EventOrderSubmitted    Event = "order.submitted"
	EventOrderFilled       Event = "order.filled"
	EventOrderCancelled    Event = "order.cancelled"
	EventPositionProtected Event = "position.protected"
	EventPositionClosed    Event = "position.closed"
	EventStopAdjusted      Event = "stop.adjusted"
	EventRiskRejected      Event = "risk.rejected"
	EventProtectionFailed  Event = "protection.failed"
	EventKillSwitch        Event = "killswitch"
)

// PriceTick is the payload for EventPriceTick.
type PriceTick struct {
	Symbol string  `json:"symbol"`
	Price  float64 `json:"price"`
	TimeMs int64   `json:"timeMs"`
}

// Transition is the payload for EventStateTransition.
type Transition struct {
	Symbol string `json:"symbol"`
	From   string `json:"from"`
	To     string `json:"to"`
}
