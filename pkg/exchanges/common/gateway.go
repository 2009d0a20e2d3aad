package common

import (
	"context"
	"time"
)

// Gateway abstracts a derivatives venue. Expected business failures come
// back as errors carrying classification (see Error); implementations never
// panic on venue rejections.
type Gateway interface {
	// SubmitOrder places an order and returns the venue ack.
	SubmitOrder(ctx context.Context, req OrderRequest) (OrderResult, error)

	// CancelOrder cancels a resting order by symbol and exchange order id.
	CancelOrder(ctx context.Context, symbol, exchangeOrderID string) error

	// WaitForFill blocks until the order fills or the timeout elapses.
	// A timeout is reported as an error wrapping context.DeadlineExceeded;
	// the order may still be resting and must be cancelled by the caller.
	WaitForFill(ctx context.Context, symbol, exchangeOrderID string, timeout time.Duration) (Fill, error)

	// SetProtection attaches stop-loss/take-profit orders for a filled
	// position. All protection legs are reduce-only.
	SetProtection(ctx context.Context, req ProtectionRequest) error
}

// PositionLister is implemented by gateways that can report open positions;
// reconciliation uses it to resolve placement uncertainty out-of-band.
type PositionLister interface {
	ListPositions(ctx context.Context, symbol string) ([]PositionInfo, error)
}

// BalanceReader is implemented by gateways that expose account margin
// balances.
type BalanceReader interface {
	GetBalance(ctx context.Context) ([]AccountBalance, error)
}
