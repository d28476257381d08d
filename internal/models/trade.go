package models

import "time"

// TradeStatus is the outcome of one placement attempt.
type TradeStatus string

const (
	TradeSuccess TradeStatus = "success"
	TradeFailed  TradeStatus = "failed"
	TradeError   TradeStatus = "error"
)

// TradeAction generalizes the per-strategy reason a Trade was written:
// buy-wall's INITIAL_PLACE/REFILL/TOPUP_PARTIAL, stabilizer's laddered
// buys, and the single-shot action every other strategy performs.
type TradeAction string

const (
	ActionExecute      TradeAction = "EXECUTE"
	ActionLadder       TradeAction = "LADDER"
	ActionOscillate    TradeAction = "OSCILLATE"
	ActionInitialPlace TradeAction = "INITIAL_PLACE"
	ActionRefill       TradeAction = "REFILL"
	ActionTopUpPartial TradeAction = "TOPUP_PARTIAL"
	ActionGapBuy       TradeAction = "GAP_BUY"
	ActionLiquidity    TradeAction = "LIQUIDITY"
)

// Trade is an immutable record of one placement attempt. Strategies create
// Trades; nothing ever mutates one afterward.
type Trade struct {
	ID        int64       `json:"id"`
	BotID     int         `json:"botId"`
	BotKind   BotKind     `json:"botKind"`
	UserID    int         `json:"userId"`
	Symbol    string      `json:"symbol"`
	Side      string      `json:"side"`
	Type      string      `json:"type"`
	Price     float64     `json:"price"`
	Quantity  float64     `json:"quantity"`
	OrderID   *string     `json:"orderId,omitempty"`
	Status    TradeStatus `json:"status"`
	Action    TradeAction `json:"action"`
	Response  string      `json:"response,omitempty"`
	Timestamp time.Time   `json:"timestamp"`

	// OrderNumber/TotalOrders carry the stabilizer's ladder position
	// (e.g. order 2 of 4); zero for strategies that place a single order.
	OrderNumber int `json:"orderNumber,omitempty"`
	TotalOrders int `json:"totalOrders,omitempty"`
}
