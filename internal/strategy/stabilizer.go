package strategy

import (
	"context"
	"time"

	"go.uber.org/zap"

	"tradebotengine/internal/clock"
	"tradebotengine/internal/exchange"
	"tradebotengine/internal/models"
	"tradebotengine/internal/notifier"
	"tradebotengine/internal/ringlog"
	"tradebotengine/internal/store"
)

const (
	stabilizerSplits  = 4
	stabilizerGap     = 10 * time.Second
	stabilizerDefault = 10 * time.Second
)

// Stabilizer consumes the ask side of the book up to targetPrice by
// splitting a computed USDT budget into four serial market buys
// (spec §4.5.2).
type Stabilizer struct {
	deps
}

func NewStabilizer(s *store.Store, ex exchange.Factory, ring *ringlog.RingLog, notify notifier.Notifier, clk clock.Clock, log *zap.SugaredLogger, encryptionKey []byte) *Stabilizer {
	return &Stabilizer{deps{store: s, exchange: ex, ring: ring, notify: notify, clock: clk, log: log, encryptionKey: encryptionKey}}
}

func (s *Stabilizer) Kind() models.BotKind           { return models.KindStabilizer }
func (s *Stabilizer) DefaultInterval() time.Duration { return stabilizerDefault }

func (s *Stabilizer) ActiveBotIDs(ctx context.Context) ([]int, error) {
	bots, err := s.store.Stabilizer.ListActive(ctx)
	if err != nil {
		return nil, err
	}
	ids := make([]int, 0, len(bots))
	for _, b := range bots {
		ids = append(ids, b.ID)
	}
	return ids, nil
}

// requiredBudget sums price*qty over every ask at or below target,
// inclusive, which is the spec's "minimum USDT needed to consume every
// ask whose price ≤ targetPrice" (spec §4.5.2, §8 boundary case: a single
// ask exactly at target must be included).
func requiredBudget(asks []exchange.Level, target float64) float64 {
	var budget float64
	for _, a := range asks {
		if a.Price <= target {
			budget += a.Price * a.Quantity
		}
	}
	return budget
}

func (s *Stabilizer) RunOnce(ctx context.Context, botID int) error {
	bot, err := s.store.Stabilizer.Get(ctx, botID)
	if err != nil {
		return err
	}
	if !bot.Eligible() {
		return nil
	}

	client, err := s.clientFor(ctx, bot.UserID)
	if err != nil {
		return err
	}

	ticker, err := client.Ticker(ctx, bot.Symbol)
	if err != nil {
		return nil
	}
	s.cacheMarketData(botID, bot.Symbol, ticker.Last)
	if ticker.Last >= bot.TargetPrice {
		return nil
	}

	depth, err := client.Depth(ctx, bot.Symbol, 20)
	if err != nil {
		return nil
	}

	budget := requiredBudget(depth.Asks, bot.TargetPrice)
	if budget <= 0 {
		return nil
	}

	balances, err := client.Balances(ctx)
	if err != nil {
		return nil
	}
	free := balances["USDT"].Free
	if free < budget {
		s.logEvent(ctx, models.KindStabilizer, bot.ID, models.LevelWarning,
			"insufficient USDT for stabilizer run", map[string]interface{}{"required": budget, "free": free}, true)
		return nil
	}

	quote := budget / stabilizerSplits
	var spent float64
	var successCount, failCount int

	for i := 1; i <= stabilizerSplits; i++ {
		trade := &models.Trade{
			BotID: bot.ID, BotKind: models.KindStabilizer, UserID: bot.UserID, Symbol: bot.Symbol,
			Side: string(exchange.SideBuy), Type: string(exchange.OrderTypeMarket), Quantity: quote,
			Action: models.ActionLadder, OrderNumber: i, TotalOrders: stabilizerSplits, Timestamp: s.clock.Now(),
		}

		res, placeErr := client.PlaceMarketBuyQuote(ctx, bot.Symbol, quote)
		if placeErr != nil {
			trade.Status = models.TradeFailed
			trade.Response = placeErr.Error()
			s.recordTrade(ctx, trade)
			failCount++
			break // abort remaining sequence on failure (spec §4.5.2)
		}

		orderID := res.OrderID
		trade.OrderID = &orderID
		trade.Status = models.TradeSuccess
		s.recordTrade(ctx, trade)
		spent += quote
		successCount++

		if i == stabilizerSplits {
			break
		}

		if err := s.clock.Sleep(ctx, stabilizerGap); err != nil {
			break
		}

		recheck, err := client.Ticker(ctx, bot.Symbol)
		if err == nil && recheck.Last >= bot.TargetPrice {
			break
		}
	}

	now := s.clock.Now()
	err = s.store.Stabilizer.Mutate(ctx, bot.ID, func(b *models.StabilizerBot) error {
		b.ExecutionCount++
		b.TotalUSDTSpent += spent
		b.SuccessfulOrders += successCount
		b.FailedOrders += failCount
		b.LastExecutedAt = &now
		return nil
	})
	if err != nil {
		s.log.Warnw("failed to update stabilizer bot", "botId", bot.ID, "err", err)
	}
	return nil
}
