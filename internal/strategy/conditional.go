package strategy

import (
	"context"
	"fmt"
	"math"
	"time"

	"go.uber.org/zap"

	"tradebotengine/internal/clock"
	"tradebotengine/internal/exchange"
	"tradebotengine/internal/models"
	"tradebotengine/internal/notifier"
	"tradebotengine/internal/ringlog"
	"tradebotengine/internal/store"
)

const conditionalDefaultCooldown = 60 * time.Second

// Conditional fires a single order when a ticker field crosses a
// configured threshold (spec §4.5.1).
type Conditional struct {
	deps
}

func NewConditional(s *store.Store, ex exchange.Factory, ring *ringlog.RingLog, notify notifier.Notifier, clk clock.Clock, log *zap.SugaredLogger, encryptionKey []byte) *Conditional {
	return &Conditional{deps{store: s, exchange: ex, ring: ring, notify: notify, clock: clk, log: log, encryptionKey: encryptionKey}}
}

func (c *Conditional) Kind() models.BotKind            { return models.KindConditional }
func (c *Conditional) DefaultInterval() time.Duration  { return 100 * time.Second }

func (c *Conditional) ActiveBotIDs(ctx context.Context) ([]int, error) {
	bots, err := c.store.Conditional.ListActive(ctx)
	if err != nil {
		return nil, err
	}
	ids := make([]int, 0, len(bots))
	for _, b := range bots {
		ids = append(ids, b.ID)
	}
	return ids, nil
}

func (c *Conditional) RunOnce(ctx context.Context, botID int) error {
	bot, err := c.store.Conditional.Get(ctx, botID)
	if err != nil {
		return err
	}
	if !bot.Eligible() {
		return nil
	}

	cooldown := time.Duration(bot.CooldownSeconds) * time.Second
	if cooldown <= 0 {
		cooldown = conditionalDefaultCooldown
	}
	if bot.LastTriggered != nil && c.clock.Now().Sub(*bot.LastTriggered) < cooldown {
		return nil
	}

	client, err := c.clientFor(ctx, bot.UserID)
	if err != nil {
		return err
	}

	ticker, err := client.Ticker(ctx, bot.Symbol)
	if err != nil {
		// A missing ticker aborts silently until next tick (spec §4.5.1).
		return nil
	}
	c.cacheMarketData(botID, bot.Symbol, ticker.Last)

	currentValue := ticker.Last
	if !evaluateCondition(bot.ConditionOperator, currentValue, bot.ConditionValue) {
		return nil
	}

	side, orderType, price, qty, usdtAmount := conditionalOrderParams(bot, ticker.Last)

	now := c.clock.Now()
	trade := &models.Trade{
		BotID: bot.ID, BotKind: models.KindConditional, UserID: bot.UserID, Symbol: bot.Symbol,
		Side: string(side), Type: string(orderType), Price: price, Quantity: qty,
		Action: models.ActionExecute, Timestamp: now,
	}

	var orderID string
	var placeErr error
	switch {
	case bot.ActionType == models.ActionMarketBuy:
		res, e := client.PlaceMarketBuyQuote(ctx, bot.Symbol, usdtAmount)
		placeErr = e
		if res != nil {
			orderID = res.OrderID
		}
		trade.Quantity = usdtAmount
	default:
		// MARKET_SELL/LIMIT_SELL/LIMIT_BUY submitted as a limit order at the
		// current ticker price when no explicit limitPrice is configured —
		// the client contract has no dedicated market-sell primitive.
		limitPrice := ticker.Last
		if bot.LimitPrice != nil {
			limitPrice = *bot.LimitPrice
		}
		res, e := client.PlaceLimit(ctx, bot.Symbol, side, limitPrice, qty, exchange.TimeInForceGTC)
		placeErr = e
		if res != nil {
			orderID = res.OrderID
		}
		trade.Price = limitPrice
	}

	if placeErr != nil {
		trade.Status = models.TradeFailed
		trade.Response = placeErr.Error()
		c.recordTrade(ctx, trade)
		// A placement failure does not advance the cooldown (spec §4.5.1).
		return nil
	}

	trade.Status = models.TradeSuccess
	trade.OrderID = &orderID
	c.recordTrade(ctx, trade)

	err = c.store.Conditional.Mutate(ctx, bot.ID, func(b *models.ConditionalBot) error {
		b.LastTriggered = &now
		b.TriggerCount++
		return nil
	})
	if err != nil {
		c.log.Warnw("failed to update conditional bot after trigger", "botId", bot.ID, "err", err)
	}

	c.notify.Notify(ctx, fmt.Sprintf("Conditional bot %d triggered: %s %s", bot.ID, side, bot.Symbol))
	return nil
}

func evaluateCondition(op models.ConditionOperator, current, target float64) bool {
	switch op {
	case models.OperatorAbove:
		return current > target
	case models.OperatorBelow:
		return current < target
	case models.OperatorEqual:
		if target == 0 {
			// Boundary case (spec §8): tolerance collapses to zero, so EQUAL
			// degenerates into the NOT_EQUAL comparison.
			return math.Abs(current-target) > 1e-4
		}
		tolerance := math.Abs(target) * 0.001
		return math.Abs(current-target) <= tolerance
	case models.OperatorNotEqual:
		return math.Abs(current-target) > 1e-4
	default:
		return false
	}
}

func conditionalOrderParams(bot *models.ConditionalBot, last float64) (side exchange.Side, orderType exchange.OrderType, price, qty, usdtAmount float64) {
	switch bot.ActionType {
	case models.ActionMarketBuy:
		side, orderType = exchange.SideBuy, exchange.OrderTypeMarket
		if bot.ActionField == models.ActionFieldGCBQuantity {
			usdtAmount = bot.ActionValue * last
		} else {
			usdtAmount = bot.ActionValue
		}
		return side, orderType, last, 0, usdtAmount
	case models.ActionMarketSell:
		side, orderType = exchange.SideSell, exchange.OrderTypeMarket
	case models.ActionLimitBuy:
		side, orderType = exchange.SideBuy, exchange.OrderTypeLimit
	case models.ActionLimitSell:
		side, orderType = exchange.SideSell, exchange.OrderTypeLimit
	}

	if bot.ActionField == models.ActionFieldUSDTValue {
		qty = bot.ActionValue / last
	} else {
		qty = bot.ActionValue
	}
	return side, orderType, last, qty, 0
}
