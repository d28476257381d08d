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
	priceGapDefaultThreshold = 3.0
	priceGapDefault          = 10 * time.Second
)

// PriceGap watches the spread between the last trade and the best ask and
// fires a market buy once the gap widens past a threshold (spec §4.5.5).
type PriceGap struct {
	deps
}

func NewPriceGap(s *store.Store, ex exchange.Factory, ring *ringlog.RingLog, notify notifier.Notifier, clk clock.Clock, log *zap.SugaredLogger, encryptionKey []byte) *PriceGap {
	return &PriceGap{deps{store: s, exchange: ex, ring: ring, notify: notify, clock: clk, log: log, encryptionKey: encryptionKey}}
}

func (p *PriceGap) Kind() models.BotKind           { return models.KindPriceGap }
func (p *PriceGap) DefaultInterval() time.Duration { return priceGapDefault }

func (p *PriceGap) ActiveBotIDs(ctx context.Context) ([]int, error) {
	bots, err := p.store.PriceGap.ListActive(ctx)
	if err != nil {
		return nil, err
	}
	ids := make([]int, 0, len(bots))
	for _, b := range bots {
		ids = append(ids, b.ID)
	}
	return ids, nil
}

func (p *PriceGap) RunOnce(ctx context.Context, botID int) error {
	bot, err := p.store.PriceGap.Get(ctx, botID)
	if err != nil {
		return err
	}
	if !bot.Eligible() {
		return nil
	}

	cooldown := time.Duration(bot.CooldownSeconds) * time.Second
	if bot.LastExecutedAt != nil && p.clock.Now().Sub(*bot.LastExecutedAt) < cooldown {
		return nil
	}

	client, err := p.clientFor(ctx, bot.UserID)
	if err != nil {
		return err
	}

	ticker, err := client.Ticker(ctx, bot.Symbol)
	if err != nil {
		return nil
	}
	p.cacheMarketData(botID, bot.Symbol, ticker.Last)
	depth, err := client.Depth(ctx, bot.Symbol, 5)
	if err != nil {
		return nil
	}
	bestAsk, ok := depth.BestAsk()
	if !ok {
		return nil
	}

	gap := (bestAsk - ticker.Last) / ticker.Last * 100

	threshold := bot.GapThreshold
	if threshold <= 0 {
		threshold = priceGapDefaultThreshold
	}

	fire := gap >= threshold
	var spent float64
	var triggered bool
	now := p.clock.Now()

	if fire {
		balances, err := client.Balances(ctx)
		if err == nil && balances["USDT"].Free >= bot.OrderAmount {
			trade := &models.Trade{
				BotID: bot.ID, BotKind: models.KindPriceGap, UserID: bot.UserID, Symbol: bot.Symbol,
				Side: string(exchange.SideBuy), Type: string(exchange.OrderTypeMarket), Quantity: bot.OrderAmount,
				Action: models.ActionGapBuy, Timestamp: now,
			}
			res, placeErr := client.PlaceMarketBuyQuote(ctx, bot.Symbol, bot.OrderAmount)
			if placeErr != nil {
				trade.Status = models.TradeFailed
				trade.Response = placeErr.Error()
			} else {
				trade.Status = models.TradeSuccess
				trade.OrderID = &res.OrderID
				spent = bot.OrderAmount
				triggered = true
			}
			p.recordTrade(ctx, trade)
		}
	}

	err = p.store.PriceGap.Mutate(ctx, bot.ID, func(b *models.PriceGapBot) error {
		b.LastMarketPrice = ticker.Last
		b.LastBestAskPrice = bestAsk
		b.LastPriceGap = gap
		b.LastCheckedAt = &now
		if triggered {
			b.ExecutionCount++
			b.TotalUSDTSpent += spent
			b.LastExecutedAt = &now
		}
		return nil
	})
	if err != nil {
		p.log.Warnw("failed to update price-gap bot", "botId", bot.ID, "err", err)
	}

	if triggered {
		p.notify.Notify(ctx, fmt.Sprintf("Price-gap bot %d bought %.2f USDT of %s (gap %.2f%%)", bot.ID, spent, bot.Symbol, gap))
	}
	return nil
}
