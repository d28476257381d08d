// Package exchange provides a signed REST client abstraction over the two
// exchange header-signing families the engine trades against.
package exchange

import "context"

// Side is the direction of an order.
type Side string

const (
	SideBuy  Side = "BUY"
	SideSell Side = "SELL"
)

// TimeInForce controls how long a limit order rests on the book.
type TimeInForce string

const (
	TimeInForceGTC TimeInForce = "GTC"
)

// OrderType distinguishes limit from market orders.
type OrderType string

const (
	OrderTypeLimit  OrderType = "LIMIT"
	OrderTypeMarket OrderType = "MARKET"
)

// Ticker is the latest trade/24h summary for a symbol.
type Ticker struct {
	Symbol    string
	Last      float64
	High24h   float64
	Low24h    float64
	Volume24h float64
	Change24h float64
}

// Level is one price/quantity rung of an order book side.
type Level struct {
	Price    float64
	Quantity float64
}

// Depth is a normalized order book snapshot: bids descending by price,
// asks ascending by price.
type Depth struct {
	Symbol string
	Bids   []Level
	Asks   []Level
}

// BestAsk returns the lowest ask price, or false if the book is empty.
func (d *Depth) BestAsk() (float64, bool) {
	if len(d.Asks) == 0 {
		return 0, false
	}
	return d.Asks[0].Price, true
}

// BestBid returns the highest bid price, or false if the book is empty.
func (d *Depth) BestBid() (float64, bool) {
	if len(d.Bids) == 0 {
		return 0, false
	}
	return d.Bids[0].Price, true
}

// SymbolInfo carries the precision metadata used to format order prices
// and quantities so the exchange does not reject them.
type SymbolInfo struct {
	Symbol             string
	PricePrecision     int
	QuantityPrecision  int
	MinQuantity        float64
}

// Balance is one asset's free and locked amount in the user's account.
type Balance struct {
	Asset  string
	Free   float64
	Locked float64
}

// Order is an open order as reported by the exchange.
type Order struct {
	OrderID      string
	Symbol       string
	Side         Side
	Price        float64
	OrigQty      float64
	ExecutedQty  float64
	Status       string
}

// RemainingQty is the unfilled portion of the order.
func (o *Order) RemainingQty() float64 {
	r := o.OrigQty - o.ExecutedQty
	if r < 0 {
		return 0
	}
	return r
}

// PartiallyFilled reports whether the order has executed some but not all
// of its original quantity.
func (o *Order) PartiallyFilled() bool {
	return o.ExecutedQty > 0 && o.ExecutedQty < o.OrigQty
}

// OrderResult is the outcome of a successful placement.
type OrderResult struct {
	OrderID string
}

// OrderSpec describes one order to submit as part of a batch.
type OrderSpec struct {
	Symbol      string
	Side        Side
	Type        OrderType
	Price       float64
	Quantity    float64
	TimeInForce TimeInForce
	ClientOrderID string
}

// BatchResult is the per-item outcome of a batch placement.
type BatchResult struct {
	Spec    OrderSpec
	OrderID string
	Err     error
}

// Credentials binds a Client to one user's API key and secret.
type Credentials struct {
	APIKey    string
	APISecret string
}

// Client is the signed REST surface the engine needs from one exchange
// family. Every authenticated method is bound to the Credentials the
// client was constructed with. Methods never panic; all failures are
// returned as a typed error (see errors.go).
type Client interface {
	Ticker(ctx context.Context, symbol string) (*Ticker, error)
	Depth(ctx context.Context, symbol string, limit int) (*Depth, error)
	SymbolInfo(ctx context.Context, symbol string) (*SymbolInfo, error)
	ServerTime(ctx context.Context) (int64, error)

	Balances(ctx context.Context) (map[string]Balance, error)
	OpenOrders(ctx context.Context, symbol string, side Side) ([]Order, error)

	PlaceLimit(ctx context.Context, symbol string, side Side, price, qty float64, tif TimeInForce) (*OrderResult, error)
	PlaceMarketBuyQuote(ctx context.Context, symbol string, quoteAmount float64) (*OrderResult, error)
	CancelOrder(ctx context.Context, symbol, orderID string) error
	CancelAll(ctx context.Context, symbol string, side Side) (int, error)
	PlaceBatch(ctx context.Context, specs []OrderSpec) []BatchResult
}

// Factory builds a Client bound to one user's credentials for the exchange
// family configured for the engine's deployment.
type Factory interface {
	NewClient(creds Credentials) Client
}
