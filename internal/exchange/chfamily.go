package exchange

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"tradebotengine/internal/metrics"
	"tradebotengine/pkg/ratelimit"
	"tradebotengine/pkg/retry"
)

// chClient implements Client for the CH-header-signed family: requests are
// stamped with X-CH-APIKEY/X-CH-TS/X-CH-SIGN, and market-buy orders treat
// the "volume" field as a quote-currency (USDT) amount.
type chClient struct {
	baseURL    string
	creds      Credentials
	httpClient *http.Client
	limiter    *ratelimit.RateLimiter
	clock      *clockSync
	maxRetries int
}

// NewCHFamilyClient builds a Client for the CH-header family bound to one
// user's credentials.
func NewCHFamilyClient(baseURL string, creds Credentials, timeout time.Duration, maxRetries int) Client {
	if maxRetries <= 0 {
		maxRetries = 3
	}
	return &chClient{
		baseURL:    strings.TrimRight(baseURL, "/"),
		creds:      creds,
		httpClient: newHTTPClient(timeout),
		limiter:    newClientLimiter(),
		clock:      &clockSync{},
		maxRetries: maxRetries,
	}
}

type chEnvelope struct {
	Code int             `json:"code"`
	Msg  string          `json:"msg"`
	Data json.RawMessage `json:"data"`
}

// signedRequest performs one CH-family request, making up to maxRetries
// attempts in all while it fails with a transient error or a clock-skew
// auth rejection (AUTH_104/AUTH_105); after a clock-skew rejection it
// resyncs against /sapi/v1/time before the next attempt (spec §4.1, §7).
func (c *chClient) signedRequest(ctx context.Context, method, path string, query url.Values, body interface{}) (json.RawMessage, error) {
	var result json.RawMessage
	cfg := retry.Config{
		MaxRetries: c.maxRetries,
		RetryIf: func(err error) bool {
			exErr, ok := err.(*Error)
			return ok && (exErr.Kind == KindTransient || exErr.IsClockSkew())
		},
		OnRetry: func(attempt int, err error, delay time.Duration) {
			if exErr, ok := err.(*Error); !ok || !exErr.IsClockSkew() {
				return
			}
			if _, syncErr := c.ServerTime(ctx); syncErr == nil {
				metrics.RecordClockResync(string(FamilyCH))
			}
		},
	}

	err := retry.Do(ctx, func() error {
		if err := c.limiter.Wait(ctx); err != nil {
			return retry.Permanent(err)
		}
		data, err := c.doOnce(ctx, method, path, query, body)
		if err != nil {
			if exErr, ok := err.(*Error); ok {
				metrics.RecordExchangeError(string(FamilyCH), string(exErr.Kind))
			}
			return err
		}
		result = data
		return nil
	}, cfg)
	if err != nil {
		return nil, err
	}
	return result, nil
}

func (c *chClient) doOnce(ctx context.Context, method, path string, query url.Values, body interface{}) (json.RawMessage, error) {
	ts := strconv.FormatInt(c.clock.nowMillis(), 10)

	var bodyBytes []byte
	var err error
	if body != nil {
		bodyBytes, err = json.Marshal(body)
		if err != nil {
			return nil, newTransient("", "marshal body", err)
		}
	}

	queryStr := query.Encode()
	canonical := ts + method + path
	if queryStr != "" {
		canonical += "?" + queryStr
	}
	if len(bodyBytes) > 0 {
		canonical += string(bodyBytes)
	}
	signature := signHMACSHA256(c.creds.APISecret, canonical)

	fullURL := c.baseURL + path
	if queryStr != "" {
		fullURL += "?" + queryStr
	}

	var reqBody io.Reader
	if len(bodyBytes) > 0 {
		reqBody = bytes.NewReader(bodyBytes)
	}

	req, err := http.NewRequestWithContext(ctx, method, fullURL, reqBody)
	if err != nil {
		return nil, newTransient("", "build request", err)
	}
	req.Header.Set("X-CH-APIKEY", c.creds.APIKey)
	req.Header.Set("X-CH-TS", ts)
	req.Header.Set("X-CH-SIGN", signature)
	if len(bodyBytes) > 0 {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, newTransient("", err.Error(), err)
	}
	defer resp.Body.Close()

	respBytes, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, newTransient("", "read response", err)
	}

	if resp.StatusCode >= 500 {
		return nil, newTransient(strconv.Itoa(resp.StatusCode), "server error", nil)
	}

	var env chEnvelope
	if err := json.Unmarshal(respBytes, &env); err != nil {
		// Some endpoints return a bare array/object with no envelope.
		if resp.StatusCode >= 200 && resp.StatusCode < 300 {
			return respBytes, nil
		}
		return nil, newTransient(strconv.Itoa(resp.StatusCode), "malformed response", err)
	}

	if env.Code != 0 {
		code := strconv.Itoa(env.Code)
		if code == "104" || code == "105" {
			code = "AUTH_" + code
		}
		if clockSkewCodes[code] {
			return nil, newAuth(code, env.Msg)
		}
		if resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden {
			return nil, newAuth(code, env.Msg)
		}
		return nil, newRejected(code, env.Msg)
	}

	if len(env.Data) > 0 {
		return env.Data, nil
	}
	return respBytes, nil
}

func (c *chClient) ServerTime(ctx context.Context) (int64, error) {
	data, err := c.signedRequestUnauthenticated(ctx, "/sapi/v1/time")
	if err != nil {
		return 0, err
	}
	var out struct {
		ServerTime int64 `json:"serverTime"`
	}
	if err := json.Unmarshal(data, &out); err != nil {
		return 0, newTransient("", "decode serverTime", err)
	}
	c.clock.apply(out.ServerTime)
	return out.ServerTime, nil
}

// signedRequestUnauthenticated performs a GET without header signing, for
// the handful of public endpoints the family exposes.
func (c *chClient) signedRequestUnauthenticated(ctx context.Context, path string) (json.RawMessage, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return nil, newTransient("", "build request", err)
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, newTransient("", err.Error(), err)
	}
	defer resp.Body.Close()
	respBytes, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, newTransient("", "read response", err)
	}
	if resp.StatusCode >= 500 {
		return nil, newTransient(strconv.Itoa(resp.StatusCode), "server error", nil)
	}
	return respBytes, nil
}

func (c *chClient) Ticker(ctx context.Context, symbol string) (*Ticker, error) {
	q := url.Values{"symbol": {symbol}}
	data, err := c.signedRequest(ctx, http.MethodGet, "/sapi/v2/ticker", q, nil)
	if err != nil {
		return nil, err
	}
	var raw struct {
		Last      string `json:"last"`
		High      string `json:"high"`
		Low       string `json:"low"`
		Volume    string `json:"volume"`
		ChangeRate string `json:"changeRate"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, newTransient("", "decode ticker", err)
	}
	return &Ticker{
		Symbol:    symbol,
		Last:      parseFloat(raw.Last),
		High24h:   parseFloat(raw.High),
		Low24h:    parseFloat(raw.Low),
		Volume24h: parseFloat(raw.Volume),
		Change24h: parseFloat(raw.ChangeRate),
	}, nil
}

func (c *chClient) Depth(ctx context.Context, symbol string, limit int) (*Depth, error) {
	if limit <= 0 {
		limit = 20
	}
	q := url.Values{"symbol": {symbol}, "limit": {strconv.Itoa(limit)}}
	data, err := c.signedRequest(ctx, http.MethodGet, "/sapi/v2/depth", q, nil)
	if err != nil {
		return nil, err
	}
	var raw struct {
		Bids [][2]string `json:"bids"`
		Asks [][2]string `json:"asks"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, newTransient("", "decode depth", err)
	}
	return &Depth{
		Symbol: symbol,
		Bids:   toLevels(raw.Bids),
		Asks:   toLevels(raw.Asks),
	}, nil
}

func (c *chClient) SymbolInfo(ctx context.Context, symbol string) (*SymbolInfo, error) {
	data, err := c.signedRequest(ctx, http.MethodGet, "/sapi/v2/symbols", nil, nil)
	if err != nil {
		return nil, err
	}
	var raw []struct {
		Symbol            string `json:"symbol"`
		PricePrecision    int    `json:"pricePrecision"`
		QuantityPrecision int    `json:"quantityPrecision"`
		MinQty            string `json:"minQty"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, newTransient("", "decode symbols", err)
	}
	for _, s := range raw {
		if s.Symbol == symbol {
			minQty := parseFloat(s.MinQty)
			if minQty <= 0 {
				minQty = 0.01
			}
			return &SymbolInfo{
				Symbol:            symbol,
				PricePrecision:    s.PricePrecision,
				QuantityPrecision: s.QuantityPrecision,
				MinQuantity:       minQty,
			}, nil
		}
	}
	// Symbol not listed: fall back to price precision 6, quantity precision
	// 2 and minimum quantity 0.01 (spec §9 open question). The fallback is
	// fixed here; it is not configurable per symbol.
	return &SymbolInfo{Symbol: symbol, PricePrecision: 6, QuantityPrecision: 2, MinQuantity: 0.01}, nil
}

func (c *chClient) Balances(ctx context.Context) (map[string]Balance, error) {
	data, err := c.signedRequest(ctx, http.MethodGet, "/sapi/v1/account", nil, nil)
	if err != nil {
		return nil, err
	}
	var raw struct {
		Balances []struct {
			Asset  string `json:"asset"`
			Free   string `json:"free"`
			Locked string `json:"locked"`
		} `json:"balances"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, newTransient("", "decode account", err)
	}
	out := make(map[string]Balance, len(raw.Balances))
	for _, b := range raw.Balances {
		out[b.Asset] = Balance{Asset: b.Asset, Free: parseFloat(b.Free), Locked: parseFloat(b.Locked)}
	}
	return out, nil
}

func (c *chClient) OpenOrders(ctx context.Context, symbol string, side Side) ([]Order, error) {
	q := url.Values{"symbol": {symbol}}
	data, err := c.signedRequest(ctx, http.MethodGet, "/sapi/v2/openOrders", q, nil)
	if err != nil {
		return nil, err
	}
	var raw []struct {
		OrderID     string `json:"orderId"`
		Side        string `json:"side"`
		Price       string `json:"price"`
		OrigQty     string `json:"origQty"`
		ExecutedQty string `json:"executedQty"`
		Status      string `json:"status"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, newTransient("", "decode openOrders", err)
	}
	orders := make([]Order, 0, len(raw))
	for _, o := range raw {
		if side != "" && Side(o.Side) != side {
			continue
		}
		orders = append(orders, Order{
			OrderID:     o.OrderID,
			Symbol:      symbol,
			Side:        Side(o.Side),
			Price:       parseFloat(o.Price),
			OrigQty:     parseFloat(o.OrigQty),
			ExecutedQty: parseFloat(o.ExecutedQty),
			Status:      o.Status,
		})
	}
	return orders, nil
}

func (c *chClient) PlaceLimit(ctx context.Context, symbol string, side Side, price, qty float64, tif TimeInForce) (*OrderResult, error) {
	if tif == "" {
		tif = TimeInForceGTC
	}
	body := map[string]interface{}{
		"symbol":      symbol,
		"side":        string(side),
		"type":        string(OrderTypeLimit),
		"volume":      formatFloat(qty, 8),
		"price":       formatFloat(price, 8),
		"timeInForce": string(tif),
	}
	return c.submitOrder(ctx, body)
}

// PlaceMarketBuyQuote places a market buy where volume is a USDT amount —
// this family's native convention for market-buy orders (spec §4.1, §9).
func (c *chClient) PlaceMarketBuyQuote(ctx context.Context, symbol string, quoteAmount float64) (*OrderResult, error) {
	body := map[string]interface{}{
		"symbol": symbol,
		"side":   string(SideBuy),
		"type":   string(OrderTypeMarket),
		"volume": formatFloat(quoteAmount, 8),
	}
	return c.submitOrder(ctx, body)
}

func (c *chClient) submitOrder(ctx context.Context, body map[string]interface{}) (*OrderResult, error) {
	data, err := c.signedRequest(ctx, http.MethodPost, "/sapi/v2/order", nil, body)
	if err != nil {
		return nil, err
	}
	var raw struct {
		OrderID string `json:"orderId"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, newTransient("", "decode order response", err)
	}
	return &OrderResult{OrderID: raw.OrderID}, nil
}

func (c *chClient) CancelOrder(ctx context.Context, symbol, orderID string) error {
	body := map[string]interface{}{"symbol": symbol, "orderId": orderID}
	data, err := c.signedRequest(ctx, http.MethodPost, "/sapi/v2/cancel", nil, body)
	if err != nil {
		return err
	}
	var raw struct {
		Status  string `json:"status"`
		OrderID string `json:"orderId"`
	}
	_ = json.Unmarshal(data, &raw)
	switch raw.Status {
	case "", "CANCELED", "PENDING_CANCEL":
		return nil
	}
	if raw.OrderID == orderID {
		return nil
	}
	return nil
}

func (c *chClient) CancelAll(ctx context.Context, symbol string, side Side) (int, error) {
	orders, err := c.OpenOrders(ctx, symbol, side)
	if err != nil {
		return 0, err
	}
	count := 0
	for _, o := range orders {
		if err := c.CancelOrder(ctx, symbol, o.OrderID); err != nil {
			continue
		}
		count++
		time.Sleep(50 * time.Millisecond)
	}
	return count, nil
}

// PlaceBatch has no native batch endpoint in this family; orders are
// decomposed into serial placements with a short inter-order delay
// (spec §4.1).
func (c *chClient) PlaceBatch(ctx context.Context, specs []OrderSpec) []BatchResult {
	results := make([]BatchResult, 0, len(specs))
	for _, spec := range specs {
		var res *OrderResult
		var err error
		if spec.Type == OrderTypeMarket {
			res, err = c.PlaceMarketBuyQuote(ctx, spec.Symbol, spec.Quantity)
		} else {
			res, err = c.PlaceLimit(ctx, spec.Symbol, spec.Side, spec.Price, spec.Quantity, spec.TimeInForce)
		}
		br := BatchResult{Spec: spec, Err: err}
		if res != nil {
			br.OrderID = res.OrderID
		}
		results = append(results, br)
		time.Sleep(500 * time.Millisecond)
	}
	return results
}

func toLevels(raw [][2]string) []Level {
	out := make([]Level, 0, len(raw))
	for _, r := range raw {
		out = append(out, Level{Price: parseFloat(r[0]), Quantity: parseFloat(r[1])})
	}
	return out
}

func parseFloat(s string) float64 {
	v, _ := strconv.ParseFloat(strings.TrimSpace(s), 64)
	return v
}

func formatFloat(v float64, precision int) string {
	return strconv.FormatFloat(v, 'f', precision, 64)
}
