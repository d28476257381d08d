package strategy

import (
	"context"

	"tradebotengine/internal/exchange"
)

// fakeClient is a scripted exchange.Client double used by strategy tests so
// the observe->decide->act loop can be exercised without an HTTP server.
type fakeClient struct {
	ticker     *exchange.Ticker
	tickerErr  error
	depth      *exchange.Depth
	depthErr   error
	symbolInfo *exchange.SymbolInfo
	balances   map[string]exchange.Balance
	openOrders []exchange.Order

	placedLimit []placedLimitCall
	placedQuote []float64
	cancelled   []string
	batch       []exchange.OrderSpec

	placeLimitErr error
	placeQuoteErr error
	batchResults  []exchange.BatchResult
}

type placedLimitCall struct {
	symbol string
	side   exchange.Side
	price  float64
	qty    float64
}

func (f *fakeClient) Ticker(ctx context.Context, symbol string) (*exchange.Ticker, error) {
	return f.ticker, f.tickerErr
}

func (f *fakeClient) Depth(ctx context.Context, symbol string, limit int) (*exchange.Depth, error) {
	return f.depth, f.depthErr
}

func (f *fakeClient) SymbolInfo(ctx context.Context, symbol string) (*exchange.SymbolInfo, error) {
	if f.symbolInfo != nil {
		return f.symbolInfo, nil
	}
	return &exchange.SymbolInfo{PricePrecision: 6, QuantityPrecision: 4, MinQuantity: 0.0001}, nil
}

func (f *fakeClient) ServerTime(ctx context.Context) (int64, error) { return 0, nil }

func (f *fakeClient) Balances(ctx context.Context) (map[string]exchange.Balance, error) {
	return f.balances, nil
}

func (f *fakeClient) OpenOrders(ctx context.Context, symbol string, side exchange.Side) ([]exchange.Order, error) {
	var out []exchange.Order
	for _, o := range f.openOrders {
		if side == "" || o.Side == side {
			out = append(out, o)
		}
	}
	return out, nil
}

func (f *fakeClient) PlaceLimit(ctx context.Context, symbol string, side exchange.Side, price, qty float64, tif exchange.TimeInForce) (*exchange.OrderResult, error) {
	if f.placeLimitErr != nil {
		return nil, f.placeLimitErr
	}
	f.placedLimit = append(f.placedLimit, placedLimitCall{symbol, side, price, qty})
	return &exchange.OrderResult{OrderID: "order-1"}, nil
}

func (f *fakeClient) PlaceMarketBuyQuote(ctx context.Context, symbol string, quoteAmount float64) (*exchange.OrderResult, error) {
	if f.placeQuoteErr != nil {
		return nil, f.placeQuoteErr
	}
	f.placedQuote = append(f.placedQuote, quoteAmount)
	return &exchange.OrderResult{OrderID: "order-quote"}, nil
}

func (f *fakeClient) CancelOrder(ctx context.Context, symbol, orderID string) error {
	f.cancelled = append(f.cancelled, orderID)
	return nil
}

func (f *fakeClient) CancelAll(ctx context.Context, symbol string, side exchange.Side) (int, error) {
	n := len(f.openOrders)
	f.openOrders = nil
	return n, nil
}

func (f *fakeClient) PlaceBatch(ctx context.Context, specs []exchange.OrderSpec) []exchange.BatchResult {
	f.batch = append(f.batch, specs...)
	if f.batchResults != nil {
		return f.batchResults
	}
	results := make([]exchange.BatchResult, len(specs))
	for i, s := range specs {
		results[i] = exchange.BatchResult{Spec: s, OrderID: "batch-order"}
	}
	return results
}

type fakeFactory struct{ client exchange.Client }

func (f *fakeFactory) NewClient(creds exchange.Credentials) exchange.Client { return f.client }
