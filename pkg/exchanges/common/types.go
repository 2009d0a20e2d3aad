package common

// Side denotes order side.
type Side string

const (
	SideBuy  Side = "BUY"
	SideSell Side = "SELL"
)

// Opposite returns the closing side for a position opened with s.
func (s Side) Opposite() Side {
	if s == SideBuy {
		return SideSell
	}
	return SideBuy
}

// OrderType denotes basic order types.
type OrderType string

const (
	OrderTypeMarket           OrderType = "MARKET"
	OrderTypeLimit            OrderType = "LIMIT"
	OrderTypeStopMarket       OrderType = "STOP_MARKET"
	OrderTypeTakeProfitMarket OrderType = "TAKE_PROFIT_MARKET"
)

// TimeInForce captures TIF semantics.
type TimeInForce string

const (
	TIFGTC TimeInForce = "GTC" // Good Till Cancelled
	TIFIOC TimeInForce = "IOC" // Immediate Or Cancel
	TIFFOK TimeInForce = "FOK" // Fill Or Kill
	TIFGTX TimeInForce = "GTX" // Post Only / Maker Only
)

// OrderStatus normalizes exchange status into a small set.
type OrderStatus string

const (
	StatusNew      OrderStatus = "NEW"
	StatusPartial  OrderStatus = "PARTIAL"
	StatusFilled   OrderStatus = "FILLED"
	StatusCanceled OrderStatus = "CANCELED"
	StatusRejected OrderStatus = "REJECTED"
	StatusExpired  OrderStatus = "EXPIRED"
	StatusUnknown  OrderStatus = "UNKNOWN"
)

// OrderRequest captures an order intent to be sent to the venue.
type OrderRequest struct {
	Symbol      string
	Side        Side
	Type        OrderType
	Qty         float64
	Price       float64 // required for LIMIT
	StopPrice   float64 // required for STOP_MARKET/TAKE_PROFIT_MARKET
	TimeInForce TimeInForce
	ClientID    string // optional client order id
	ReduceOnly  bool
	WorkingType string // MARK_PRICE or CONTRACT_PRICE for trigger orders
}

// OrderResult returns the exchange ack.
type OrderResult struct {
	ExchangeOrderID string
	Status          OrderStatus
	ClientID        string
}

// Fill represents a confirmed trade fill. Fee is the commission charged
// in the margin asset; zero when the venue does not report it.
type Fill struct {
	ExchangeOrderID string
	TradeID         string
	Symbol          string
	Side            Side
	Qty             float64
	Price           float64
	Fee             float64
}

// TakeProfitLevel is one partial take-profit rung attached to a position.
type TakeProfitLevel struct {
	Price   float64
	SizePct float64 // fraction of position size closed at this level, 0..1
}

// ProtectionRequest attaches exchange-side stop-loss/take-profit to a
// filled order. StopLoss is mandatory; TakeProfits may be empty.
type ProtectionRequest struct {
	Symbol      string
	Side        Side // side of the POSITION being protected
	Qty         float64
	StopLoss    float64
	TakeProfits []TakeProfitLevel
	WorkingType string
}

// PositionInfo is a point-in-time view of one open position on the venue.
type PositionInfo struct {
	Symbol     string
	Side       Side
	Qty        float64
	EntryPrice float64
}

// AccountBalance is the venue-side margin balance.
type AccountBalance struct {
	Asset     string
	Available float64
	Total     float64
}
