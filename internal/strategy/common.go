// Package strategy implements the per-bot-kind observe → decide → act
// loops (spec §4.5). Each Strategy owns its own typed Store repo and is
// oblivious to how BotRunner schedules it — BotRunner only ever calls
// ActiveBotIDs and RunOnce.
package strategy

import (
	"context"
	"fmt"
	"math"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"tradebotengine/internal/clock"
	"tradebotengine/internal/enginerr"
	"tradebotengine/internal/exchange"
	"tradebotengine/internal/metrics"
	"tradebotengine/internal/models"
	"tradebotengine/internal/notifier"
	"tradebotengine/internal/ringlog"
	"tradebotengine/internal/store"
)

// Strategy is implemented once per bot kind and dispatched by a
// kind-dedicated BotRunner (spec §9 "Polymorphism over bot kinds").
type Strategy interface {
	Kind() models.BotKind
	DefaultInterval() time.Duration
	ActiveBotIDs(ctx context.Context) ([]int, error)
	RunOnce(ctx context.Context, botID int) error
	RecentMarketData() map[int]MarketSnapshot
}

// MarketSnapshot is the last ticker price a strategy observed for one bot,
// held in the process-local marketData cache the status API surfaces
// (spec §5 "Shared resource policy", §6 "engine.status()").
type MarketSnapshot struct {
	Symbol    string    `json:"symbol"`
	Price     float64   `json:"price"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// deps bundles the collaborators every strategy needs: persistence,
// logging, notification, and a way to build a user-bound ExchangeClient.
type deps struct {
	store         *store.Store
	exchange      exchange.Factory
	ring          *ringlog.RingLog
	notify        notifier.Notifier
	clock         clock.Clock
	log           *zap.SugaredLogger
	encryptionKey []byte

	marketMu   sync.Mutex
	marketData map[int]MarketSnapshot
}

// cacheMarketData records botID's latest observed ticker price. Callers
// hold no other lock across this call, so it's safe from the concurrent
// per-bot goroutines a BotRunner dispatches for the same strategy.
func (d *deps) cacheMarketData(botID int, symbol string, price float64) {
	d.marketMu.Lock()
	defer d.marketMu.Unlock()
	if d.marketData == nil {
		d.marketData = make(map[int]MarketSnapshot)
	}
	d.marketData[botID] = MarketSnapshot{Symbol: symbol, Price: price, UpdatedAt: time.Now()}
}

// RecentMarketData returns a copy of every bot's last cached ticker price
// (spec §6 "engine.status() returns ... recent marketData").
func (d *deps) RecentMarketData() map[int]MarketSnapshot {
	d.marketMu.Lock()
	defer d.marketMu.Unlock()
	out := make(map[int]MarketSnapshot, len(d.marketData))
	for id, snap := range d.marketData {
		out[id] = snap
	}
	return out
}

// clientFor resolves botUserID's credentials and returns a Client bound
// to them. Returns a ConfigError (via UserRepo.Get) if the user is
// missing, disabled, or has no credentials.
func (d *deps) clientFor(ctx context.Context, userID int) (exchange.Client, error) {
	user, err := d.store.Users.Get(ctx, userID, d.encryptionKey)
	if err != nil {
		return nil, err
	}
	secret, err := d.store.Users.DecryptedSecret(user, d.encryptionKey)
	if err != nil {
		return nil, enginerr.Config(err)
	}
	return d.exchange.NewClient(exchange.Credentials{APIKey: user.APIKey, APISecret: secret}), nil
}

// logEvent pushes to the RingLog unconditionally and, when persist is
// true, also writes an ActivityLog row (spec §3: "Persisted for strategies
// that require auditability... otherwise held only in RingLog").
func (d *deps) logEvent(ctx context.Context, kind models.BotKind, botID int, level models.LogLevel, msg string, data map[string]interface{}, persist bool) {
	d.ring.Push(botID, level, msg, data)
	if !persist {
		return
	}
	entry := &models.ActivityLog{BotID: botID, BotKind: kind, Level: level, Message: msg, Data: data, Timestamp: time.Now()}
	if err := d.store.Logs.Insert(ctx, entry); err != nil {
		d.log.Warnw("failed to persist activity log", "botId", botID, "err", err)
	}
}

// splitSymbol splits a trading pair like "GCBUSDT" into base and quote
// assets. Every pair in scope quotes against USDT; this is a pragmatic
// convention, not an exchange-reported fact, since neither header family's
// symbol metadata response in scope separates the two explicitly.
func splitSymbol(symbol string) (base, quote string) {
	if strings.HasSuffix(symbol, "USDT") {
		return strings.TrimSuffix(symbol, "USDT"), "USDT"
	}
	return symbol, "USDT"
}

// roundDown truncates v to precision decimal places without rounding up,
// so quantity formatting never exceeds the exchange's accepted size.
func roundDown(v float64, precision int) float64 {
	factor := math.Pow(10, float64(precision))
	return math.Floor(v*factor) / factor
}

// recordTrade writes a Trade and logs a matching RingLog entry. Trades are
// always persisted, successful or not (spec §3 "Trade... immutable record
// of one placement attempt").
func (d *deps) recordTrade(ctx context.Context, t *models.Trade) {
	if err := d.store.Trades.Insert(ctx, t); err != nil {
		d.log.Warnw("failed to persist trade", "botId", t.BotID, "err", err)
	}
	metrics.RecordTrade(string(t.BotKind), string(t.Status))
	level := models.LevelTrade
	if t.Status != models.TradeSuccess {
		level = models.LevelError
	}
	msg := fmt.Sprintf("%s %s %s qty=%.8f price=%.8f", t.Action, t.Side, t.Symbol, t.Quantity, t.Price)
	d.ring.Push(t.BotID, level, msg, nil)
}
