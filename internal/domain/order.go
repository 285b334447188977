package domain

// Side is the direction of an order.
type Side string

// Side constants.
const (
	SideBuy  Side = "BUY"
	SideSell Side = "SELL"
)

// Order is one row of generated order output. The stub fields are filled by
// the order generator; venue/type/validity are attached by the strategy's
// finalization hook.
type Order struct {
	// Stub fields.
	InstrumentID  string `json:"instrument_id"`
	Account       string `json:"account"`
	Action        Side   `json:"action"`
	OrderRef      string `json:"order_ref"`      // grouping label, the strategy code
	TotalQuantity int64  `json:"total_quantity"` // absolute quantity, always > 0

	// Execution fields attached during finalization.
	Exchange   string   `json:"exchange"`
	OrderType  string   `json:"order_type"`
	Tif        string   `json:"tif"`
	LimitPrice *float64 `json:"limit_price,omitempty"` // set for limit orders, nil otherwise
}

// Default execution parameters applied by the default finalization hook.
const (
	DefaultExchange  = "SMART"
	DefaultOrderType = "MKT"
	DefaultTif       = "DAY"
)
