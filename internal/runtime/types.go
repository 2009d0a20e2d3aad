package runtime

import (
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/Adamcza88/ai-matic-bot-sub002/internal/signal"
	"github.com/Adamcza88/ai-matic-bot-sub002/pkg/exchanges/common"
)

// ErrKillSwitch is returned by admission while the kill switch is active.
var ErrKillSwitch = errors.New("SAFE/KILL active")

// ErrIllegalTransition is returned when an operation is invoked outside
// the state that permits it.
var ErrIllegalTransition = errors.New("illegal state transition")

// State of one symbol's lifecycle machine.
type State string

const (
	StateScan   State = "SCAN"
	StatePlace  State = "PLACE"
	StateManage State = "MANAGE"
	StateExit   State = "EXIT"
)

// KillSwitch is an atomically-read cell injected into the runtime. When
// active it blocks new risk only; open positions keep their management.
type KillSwitch struct {
	active atomic.Bool
}

// NewKillSwitch returns an inactive switch.
func NewKillSwitch() *KillSwitch { return &KillSwitch{} }

// Set flips the switch.
func (k *KillSwitch) Set(active bool) { k.active.Store(active) }

// Active reports the current state.
func (k *KillSwitch) Active() bool { return k.active.Load() }

// OrderPlan is the concrete order derived from a signal and current
// price. Required fields are validated at construction; a malformed plan
// never reaches the venue.
type OrderPlan struct {
	Symbol      string
	Direction   signal.Direction
	EntryType   common.OrderType
	EntryPrice  float64
	StopLoss    float64
	TakeProfits []common.TakeProfitLevel
}

// NewOrderPlan validates required fields. EntryType defaults to limit.
func NewOrderPlan(symbol string, dir signal.Direction, entryType common.OrderType, entryPrice, stopLoss float64, tps []common.TakeProfitLevel) (OrderPlan, error) {
	if symbol == "" {
		return OrderPlan{}, errors.New("order plan: symbol required")
	}
	if dir != signal.DirectionLong && dir != signal.DirectionShort {
		return OrderPlan{}, fmt.Errorf("order plan %s: direction %q not tradable", symbol, dir)
	}
	if entryPrice <= 0 {
		return OrderPlan{}, fmt.Errorf("order plan %s: entry price required", symbol)
	}
	if stopLoss <= 0 {
		return OrderPlan{}, fmt.Errorf("order plan %s: stop loss required", symbol)
	}
	if entryType == "" {
		entryType = common.OrderTypeLimit
	}
	return OrderPlan{
		Symbol:      symbol,
		Direction:   dir,
		EntryType:   entryType,
		EntryPrice:  entryPrice,
		StopLoss:    stopLoss,
		TakeProfits: tps,
	}, nil
}

// Side maps the plan direction onto an order side.
func (p OrderPlan) Side() common.Side {
	if p.Direction == signal.DirectionShort {
		return common.SideSell
	}
	return common.SideBuy
}

// PositionStatus of a PositionState record.
type PositionStatus string

const (
	PositionOpen   PositionStatus = "open"
	PositionClosed PositionStatus = "closed"
)

// PositionState is the runtime-owned record of one position. Only the
// runtime mutates it; everything else sees copies.
type PositionState struct {
	Symbol     string         `json:"symbol"`
	Side       common.Side    `json:"side"`
	EntryPrice float64        `json:"entryPrice"`
	Size       float64        `json:"size"`
	StopLoss   float64        `json:"stopLoss"`
	Status     PositionStatus `json:"status"`
	LastUpdate time.Time      `json:"lastUpdate"`
}

// Protected reports whether the position carries a live stop.
func (p PositionState) Protected() bool {
	return p.Status == PositionOpen && p.StopLoss > 0
}
