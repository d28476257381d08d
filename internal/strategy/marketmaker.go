package strategy

import (
	"context"
	"fmt"
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
	marketMakerDecreaseFactor = 0.97
	marketMakerIncreaseFactor = 1.03
	marketMakerMinRatio       = 0.40
	marketMakerMaxRatio       = 0.90
	marketMakerCancelWait     = 4 * time.Second
	marketMakerOrderGap       = 2 * time.Second
	marketMakerDefault        = 15 * time.Second
)

// MarketMaker quotes a symmetric, oscillating ladder around the market
// price until targetPrice is reached (spec §4.5.3).
type MarketMaker struct {
	deps
}

func NewMarketMaker(s *store.Store, ex exchange.Factory, ring *ringlog.RingLog, notify notifier.Notifier, clk clock.Clock, log *zap.SugaredLogger, encryptionKey []byte) *MarketMaker {
	return &MarketMaker{deps{store: s, exchange: ex, ring: ring, notify: notify, clock: clk, log: log, encryptionKey: encryptionKey}}
}

func (m *MarketMaker) Kind() models.BotKind           { return models.KindMarketMaker }
func (m *MarketMaker) DefaultInterval() time.Duration { return marketMakerDefault }

func (m *MarketMaker) ActiveBotIDs(ctx context.Context) ([]int, error) {
	bots, err := m.store.MarketMaker.ListActive(ctx)
	if err != nil {
		return nil, err
	}
	ids := make([]int, 0, len(bots))
	for _, b := range bots {
		ids = append(ids, b.ID)
	}
	return ids, nil
}

// clampOrderSize enforces the [40%, 90%] band around initial and reports
// whether the next tick should flip direction (spec §8 property 3).
func clampOrderSize(current, initial float64, decreasing bool) (next float64, flip bool) {
	if decreasing {
		next = current * marketMakerDecreaseFactor
	} else {
		next = current * marketMakerIncreaseFactor
	}

	lo, hi := marketMakerMinRatio*initial, marketMakerMaxRatio*initial
	if next <= lo {
		return lo, true
	}
	if next >= hi {
		return hi, true
	}
	return next, false
}

func (m *MarketMaker) RunOnce(ctx context.Context, botID int) error {
	bot, err := m.store.MarketMaker.Get(ctx, botID)
	if err != nil {
		return err
	}
	if !bot.Eligible() {
		return nil
	}

	client, err := m.clientFor(ctx, bot.UserID)
	if err != nil {
		return err
	}

	ticker, err := client.Ticker(ctx, bot.Symbol)
	if err != nil {
		return nil
	}
	m.cacheMarketData(botID, bot.Symbol, ticker.Last)
	market := ticker.Last

	if market >= bot.TargetPrice && !bot.TargetReached {
		client.CancelAll(ctx, bot.Symbol, "")
		err = m.store.MarketMaker.Mutate(ctx, bot.ID, func(b *models.MarketMakerBot) error {
			b.TargetReached = true
			b.IsRunning = false
			return nil
		})
		if err != nil {
			m.log.Warnw("failed to finalize market-maker target reach", "botId", bot.ID, "err", err)
		}
		m.notify.Notify(ctx, fmt.Sprintf("Market-maker bot %d reached target price on %s", bot.ID, bot.Symbol))
		return nil
	}

	client.CancelAll(ctx, bot.Symbol, "")
	if err := m.clock.Sleep(ctx, marketMakerCancelWait); err != nil {
		return nil
	}

	remaining, err := client.OpenOrders(ctx, bot.Symbol, "")
	if err == nil && len(remaining) > 0 {
		return nil // skip this cycle, cancellations have not settled yet
	}

	bid := market * (1 - bot.SpreadPercent)
	ask := market * (1 + bot.SpreadPercent)

	base, quote := splitSymbol(bot.Symbol)
	balances, err := client.Balances(ctx)
	if err != nil {
		return nil
	}

	if balances[base].Free >= bot.CurrentOrderSize {
		client.PlaceLimit(ctx, bot.Symbol, exchange.SideSell, ask, bot.CurrentOrderSize, exchange.TimeInForceGTC)
	}
	if err := m.clock.Sleep(ctx, marketMakerOrderGap); err != nil {
		return nil
	}
	if balances[quote].Free >= bid*bot.CurrentOrderSize {
		client.PlaceLimit(ctx, bot.Symbol, exchange.SideBuy, bid, bot.CurrentOrderSize, exchange.TimeInForceGTC)
	}

	next, flip := clampOrderSize(bot.CurrentOrderSize, bot.InitialOrderSize, bot.IsDecreasing)
	now := m.clock.Now()

	err = m.store.MarketMaker.Mutate(ctx, bot.ID, func(b *models.MarketMakerBot) error {
		b.CurrentOrderSize = next
		if flip {
			b.IsDecreasing = !b.IsDecreasing
		}
		b.ExecutionCount++
		b.LastExecutedAt = &now
		return nil
	})
	if err != nil {
		m.log.Warnw("failed to update market-maker bot", "botId", bot.ID, "err", err)
	}
	return nil
}
