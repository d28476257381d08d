package exchange

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/url"
	"sort"
	"strconv"
	"strings"
	"time"

	"tradebotengine/internal/metrics"
	"tradebotengine/pkg/ratelimit"
	"tradebotengine/pkg/retry"
)

// xtClient implements Client for the XT-header-signed family: requests
// carry validate-* headers, and market-buy orders use an explicit
// quoteOrderQty field rather than overloading "volume" (spec §4.1, §9).
type xtClient struct {
	baseURL     string
	creds       Credentials
	httpClient  *http.Client
	limiter     *ratelimit.RateLimiter
	clock       *clockSync
	maxRetries  int
	recvWindow  string
}

// NewXTFamilyClient builds a Client for the XT-header family bound to one
// user's credentials.
func NewXTFamilyClient(baseURL string, creds Credentials, timeout time.Duration, maxRetries int) Client {
	if maxRetries <= 0 {
		maxRetries = 3
	}
	return &xtClient{
		baseURL:    strings.TrimRight(baseURL, "/"),
		creds:      creds,
		httpClient: newHTTPClient(timeout),
		limiter:    newClientLimiter(),
		clock:      &clockSync{},
		maxRetries: maxRetries,
		recvWindow: "5000",
	}
}

type xtError struct {
	ReturnCode int    `json:"returnCode"`
	ErrorCode  string `json:"error,omitempty"`
	Msg        string `json:"msg"`
}

func (c *xtClient) signedRequest(ctx context.Context, method, path string, query url.Values, body interface{}) (json.RawMessage, error) {
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
				metrics.RecordClockResync(string(FamilyXT))
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
				metrics.RecordExchangeError(string(FamilyXT), string(exErr.Kind))
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

// headerPrefix builds the canonicalized validate-* header block the
// signature is computed over, sorted by header name as the family
// requires.
func (c *xtClient) headerPrefix(ts string) string {
	headers := map[string]string{
		"validate-algorithms": "HmacSHA256",
		"validate-appkey":     c.creds.APIKey,
		"validate-recvwindow": c.recvWindow,
		"validate-timestamp":  ts,
	}
	names := make([]string, 0, len(headers))
	for k := range headers {
		names = append(names, k)
	}
	sort.Strings(names)

	var b strings.Builder
	for _, k := range names {
		b.WriteString(k)
		b.WriteString("=")
		b.WriteString(headers[k])
		b.WriteString("&")
	}
	return strings.TrimSuffix(b.String(), "&")
}

func (c *xtClient) doOnce(ctx context.Context, method, path string, query url.Values, body interface{}) (json.RawMessage, error) {
	ts := strconv.FormatInt(c.clock.nowMillis(), 10)

	var bodyBytes []byte
	var err error
	if body != nil {
		bodyBytes, err = json.Marshal(body)
		if err != nil {
			return nil, newTransient("", "marshal body", err)
		}
	}

	queryStr := ""
	if query != nil {
		queryStr = query.Encode()
	}

	canonical := c.headerPrefix(ts) + "#" + method + "#" + path
	if queryStr != "" {
		canonical += "#" + queryStr
	}
	if len(bodyBytes) > 0 {
		canonical += "#" + string(bodyBytes)
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
	req.Header.Set("validate-algorithms", "HmacSHA256")
	req.Header.Set("validate-appkey", c.creds.APIKey)
	req.Header.Set("validate-recvwindow", c.recvWindow)
	req.Header.Set("validate-timestamp", ts)
	req.Header.Set("validate-signature", signature)
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

	var xerr xtError
	if err := json.Unmarshal(respBytes, &xerr); err == nil && xerr.ErrorCode != "" {
		if clockSkewCodes[xerr.ErrorCode] {
			return nil, newAuth(xerr.ErrorCode, xerr.Msg)
		}
		if resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden {
			return nil, newAuth(xerr.ErrorCode, xerr.Msg)
		}
		return nil, newRejected(xerr.ErrorCode, xerr.Msg)
	}

	var env struct {
		RC     int             `json:"rc"`
		Result json.RawMessage `json:"result"`
	}
	if err := json.Unmarshal(respBytes, &env); err == nil && len(env.Result) > 0 {
		return env.Result, nil
	}
	return respBytes, nil
}

func (c *xtClient) ServerTime(ctx context.Context) (int64, error) {
	data, err := c.publicGet(ctx, "/v4/public/time")
	if err != nil {
		return 0, err
	}
	var out struct {
		ServerTime int64 `json:"serverTime"`
	}
	if err := json.Unmarshal(data, &out); err != nil {
		return 0, newTransient("", "decode time", err)
	}
	c.clock.apply(out.ServerTime)
	return out.ServerTime, nil
}

func (c *xtClient) publicGet(ctx context.Context, path string) (json.RawMessage, error) {
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

func (c *xtClient) Ticker(ctx context.Context, symbol string) (*Ticker, error) {
	q := url.Values{"symbol": {symbol}}
	data, err := c.publicGet(ctx, "/v4/public/ticker/price?"+q.Encode())
	if err != nil {
		return nil, err
	}
	var raw []struct {
		Symbol string `json:"s"`
		Price  string `json:"p"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, newTransient("", "decode ticker", err)
	}
	for _, t := range raw {
		if t.Symbol == symbol {
			return &Ticker{Symbol: symbol, Last: parseFloat(t.Price)}, nil
		}
	}
	return nil, newRejected("", "symbol not found")
}

func (c *xtClient) Depth(ctx context.Context, symbol string, limit int) (*Depth, error) {
	if limit <= 0 {
		limit = 20
	}
	q := url.Values{"symbol": {symbol}, "limit": {strconv.Itoa(limit)}}
	data, err := c.publicGet(ctx, "/v4/public/depth?"+q.Encode())
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
	return &Depth{Symbol: symbol, Bids: toLevels(raw.Bids), Asks: toLevels(raw.Asks)}, nil
}

func (c *xtClient) SymbolInfo(ctx context.Context, symbol string) (*SymbolInfo, error) {
	q := url.Values{"symbol": {symbol}}
	data, err := c.publicGet(ctx, "/v4/public/symbol?"+q.Encode())
	if err != nil {
		return nil, err
	}
	var raw []struct {
		Symbol           string `json:"symbol"`
		PricePrecision   int    `json:"pricePrecision"`
		QtyPrecision     int    `json:"quantityPrecision"`
		MinQty           string `json:"minQty"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, newTransient("", "decode symbol", err)
	}
	for _, s := range raw {
		if s.Symbol == symbol {
			minQty := parseFloat(s.MinQty)
			if minQty <= 0 {
				minQty = 0.01
			}
			return &SymbolInfo{Symbol: symbol, PricePrecision: s.PricePrecision, QuantityPrecision: s.QtyPrecision, MinQuantity: minQty}, nil
		}
	}
	return &SymbolInfo{Symbol: symbol, PricePrecision: 6, QuantityPrecision: 2, MinQuantity: 0.01}, nil
}

func (c *xtClient) Balances(ctx context.Context) (map[string]Balance, error) {
	data, err := c.signedRequest(ctx, http.MethodGet, "/v4/balances", nil, nil)
	if err != nil {
		return nil, err
	}
	var raw struct {
		Assets []struct {
			Currency  string `json:"currency"`
			Available string `json:"availableAmount"`
			Frozen    string `json:"frozenAmount"`
		} `json:"assets"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, newTransient("", "decode balances", err)
	}
	out := make(map[string]Balance, len(raw.Assets))
	for _, a := range raw.Assets {
		out[a.Currency] = Balance{Asset: a.Currency, Free: parseFloat(a.Available), Locked: parseFloat(a.Frozen)}
	}
	return out, nil
}

func (c *xtClient) OpenOrders(ctx context.Context, symbol string, side Side) ([]Order, error) {
	q := url.Values{"symbol": {symbol}, "bizType": {"SPOT"}}
	data, err := c.signedRequest(ctx, http.MethodGet, "/v4/open-order", q, nil)
	if err != nil {
		return nil, err
	}
	var raw []struct {
		OrderID     string `json:"orderId"`
		Side        string `json:"side"`
		Price       string `json:"price"`
		OrigQty     string `json:"origQty"`
		ExecutedQty string `json:"executedQty"`
		State       string `json:"state"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, newTransient("", "decode open-order", err)
	}
	orders := make([]Order, 0, len(raw))
	for _, o := range raw {
		if side != "" && Side(strings.ToUpper(o.Side)) != side {
			continue
		}
		orders = append(orders, Order{
			OrderID:     o.OrderID,
			Symbol:      symbol,
			Side:        Side(strings.ToUpper(o.Side)),
			Price:       parseFloat(o.Price),
			OrigQty:     parseFloat(o.OrigQty),
			ExecutedQty: parseFloat(o.ExecutedQty),
			Status:      o.State,
		})
	}
	return orders, nil
}

func (c *xtClient) PlaceLimit(ctx context.Context, symbol string, side Side, price, qty float64, tif TimeInForce) (*OrderResult, error) {
	if tif == "" {
		tif = TimeInForceGTC
	}
	body := map[string]interface{}{
		"symbol":      symbol,
		"side":        string(side),
		"type":        string(OrderTypeLimit),
		"bizType":     "SPOT",
		"price":       formatFloat(price, 8),
		"quantity":    formatFloat(qty, 8),
		"timeInForce": string(tif),
	}
	return c.submitOrder(ctx, body)
}

// PlaceMarketBuyQuote uses this family's explicit quoteOrderQty field for
// a market buy sized in quote currency (spec §4.1, §9).
func (c *xtClient) PlaceMarketBuyQuote(ctx context.Context, symbol string, quoteAmount float64) (*OrderResult, error) {
	body := map[string]interface{}{
		"symbol":        symbol,
		"side":          string(SideBuy),
		"type":          string(OrderTypeMarket),
		"bizType":       "SPOT",
		"quoteOrderQty": formatFloat(quoteAmount, 8),
	}
	return c.submitOrder(ctx, body)
}

func (c *xtClient) submitOrder(ctx context.Context, body map[string]interface{}) (*OrderResult, error) {
	data, err := c.signedRequest(ctx, http.MethodPost, "/v4/order", nil, body)
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

func (c *xtClient) CancelOrder(ctx context.Context, symbol, orderID string) error {
	_, err := c.signedRequest(ctx, http.MethodDelete, "/v4/order/"+orderID, nil, nil)
	return err
}

func (c *xtClient) CancelAll(ctx context.Context, symbol string, side Side) (int, error) {
	q := url.Values{"symbol": {symbol}}
	if side != "" {
		q.Set("side", string(side))
	}
	data, err := c.signedRequest(ctx, http.MethodDelete, "/v4/open-order", q, nil)
	if err != nil {
		return 0, err
	}
	var raw struct {
		Count int `json:"count"`
	}
	_ = json.Unmarshal(data, &raw)
	return raw.Count, nil
}

// PlaceBatch uses the family's native batch-order endpoint, submitting in
// chunks of ten with a 500ms inter-batch pace (spec §4.5.6 step 10).
func (c *xtClient) PlaceBatch(ctx context.Context, specs []OrderSpec) []BatchResult {
	results := make([]BatchResult, 0, len(specs))
	const chunkSize = 10

	for start := 0; start < len(specs); start += chunkSize {
		end := start + chunkSize
		if end > len(specs) {
			end = len(specs)
		}
		chunk := specs[start:end]

		items := make([]map[string]interface{}, 0, len(chunk))
		for _, s := range chunk {
			items = append(items, map[string]interface{}{
				"symbol":        s.Symbol,
				"side":          string(s.Side),
				"type":          string(s.Type),
				"bizType":       "SPOT",
				"price":         formatFloat(s.Price, 8),
				"quantity":      formatFloat(s.Quantity, 8),
				"timeInForce":   string(s.TimeInForce),
				"clientOrderId": s.ClientOrderID,
			})
		}

		data, err := c.signedRequest(ctx, http.MethodPost, "/v4/batch-order", nil, map[string]interface{}{"items": items})
		if err != nil {
			for _, s := range chunk {
				results = append(results, BatchResult{Spec: s, Err: err})
			}
		} else {
			var raw []struct {
				OrderID string `json:"orderId"`
				Error   string `json:"error"`
			}
			_ = json.Unmarshal(data, &raw)
			for i, s := range chunk {
				br := BatchResult{Spec: s}
				if i < len(raw) {
					br.OrderID = raw[i].OrderID
					if raw[i].Error != "" {
						br.Err = newRejected("", raw[i].Error)
					}
				}
				results = append(results, br)
			}
		}

		if end < len(specs) {
			time.Sleep(500 * time.Millisecond)
		}
	}
	return results
}
