package strategy

import (
	"context"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"tradebotengine/internal/clock"
	"tradebotengine/internal/exchange"
	"tradebotengine/internal/models"
	"tradebotengine/internal/notifier"
	"tradebotengine/internal/ringlog"
	"tradebotengine/internal/store"
)

const (
	buyWallPlacementPace = 500 * time.Millisecond
	buyWallDefault       = 5 * time.Second
)

// BuyWall places a ladder of limit buys once the market reaches a target
// price, then refills the ladder as orders fill (spec §4.5.4).
type BuyWall struct {
	deps
}

func NewBuyWall(s *store.Store, ex exchange.Factory, ring *ringlog.RingLog, notify notifier.Notifier, clk clock.Clock, log *zap.SugaredLogger, encryptionKey []byte) *BuyWall {
	return &BuyWall{deps{store: s, exchange: ex, ring: ring, notify: notify, clock: clk, log: log, encryptionKey: encryptionKey}}
}

func (bw *BuyWall) Kind() models.BotKind           { return models.KindBuyWall }
func (bw *BuyWall) DefaultInterval() time.Duration { return buyWallDefault }

func (bw *BuyWall) ActiveBotIDs(ctx context.Context) ([]int, error) {
	bots, err := bw.store.BuyWall.ListActive(ctx)
	if err != nil {
		return nil, err
	}
	ids := make([]int, 0, len(bots))
	for _, b := range bots {
		ids = append(ids, b.ID)
	}
	return ids, nil
}

func (bw *BuyWall) RunOnce(ctx context.Context, botID int) error {
	bot, err := bw.store.BuyWall.Get(ctx, botID)
	if err != nil {
		return err
	}
	if !bot.Eligible() {
		return nil
	}

	client, err := bw.clientFor(ctx, bot.UserID)
	if err != nil {
		return err
	}

	if !bot.OrdersPlaced {
		return bw.place(ctx, client, bot)
	}
	return bw.refill(ctx, client, bot)
}

func (bw *BuyWall) place(ctx context.Context, client exchange.Client, bot *models.BuyWallBot) error {
	ticker, err := client.Ticker(ctx, bot.Symbol)
	if err != nil {
		return nil
	}
	bw.cacheMarketData(bot.ID, bot.Symbol, ticker.Last)
	if ticker.Last > bot.TargetPrice {
		return nil // market hasn't reached the wall yet
	}

	won, err := bw.store.CompareAndSetOrdersPlaced(ctx, bot.ID)
	if err != nil {
		return err
	}
	if !won {
		// Another tick's CAS already placed the wall (spec §8 property 5).
		return nil
	}

	info, err := client.SymbolInfo(ctx, bot.Symbol)
	if err != nil {
		info = &exchange.SymbolInfo{PricePrecision: 6, QuantityPrecision: 2, MinQuantity: 0.01}
	}

	placed := make([]models.PlacedOrder, 0, len(bot.BuyOrders))
	for i, level := range bot.BuyOrders {
		qty := roundDown(level.USDTAmount/level.Price, info.QuantityPrecision)
		if qty < info.MinQuantity {
			qty = info.MinQuantity
		}
		clientOrderID := uuid.NewString()

		trade := &models.Trade{
			BotID: bot.ID, BotKind: models.KindBuyWall, UserID: bot.UserID, Symbol: bot.Symbol,
			Side: string(exchange.SideBuy), Type: string(exchange.OrderTypeLimit), Price: level.Price, Quantity: qty,
			Action: models.ActionInitialPlace, Timestamp: bw.clock.Now(),
		}

		res, placeErr := client.PlaceLimit(ctx, bot.Symbol, exchange.SideBuy, level.Price, qty, exchange.TimeInForceGTC)
		if placeErr != nil {
			trade.Status = models.TradeFailed
			trade.Response = placeErr.Error()
			bw.recordTrade(ctx, trade)
			placed = append(placed, models.PlacedOrder{Price: level.Price, USDTAmount: level.USDTAmount, ClientOrderID: clientOrderID, GCBQuantity: qty, Status: "FAILED"})
		} else {
			trade.Status = models.TradeSuccess
			trade.OrderID = &res.OrderID
			bw.recordTrade(ctx, trade)
			placed = append(placed, models.PlacedOrder{Price: level.Price, USDTAmount: level.USDTAmount, OrderID: res.OrderID, ClientOrderID: clientOrderID, GCBQuantity: qty, Status: "OPEN"})
		}

		if i < len(bot.BuyOrders)-1 {
			if err := bw.clock.Sleep(ctx, buyWallPlacementPace); err != nil {
				break
			}
		}
	}

	return bw.store.BuyWall.Mutate(ctx, bot.ID, func(b *models.BuyWallBot) error {
		b.OrdersPlaced = true
		b.PlacedOrders = placed
		return nil
	})
}

func (bw *BuyWall) refill(ctx context.Context, client exchange.Client, bot *models.BuyWallBot) error {
	openOrders, err := client.OpenOrders(ctx, bot.Symbol, exchange.SideBuy)
	if err != nil {
		return nil
	}
	openByID := make(map[string]exchange.Order, len(openOrders))
	for _, o := range openOrders {
		openByID[o.OrderID] = o
	}

	updated := make([]models.PlacedOrder, len(bot.PlacedOrders))
	copy(updated, bot.PlacedOrders)
	var extra []models.PlacedOrder
	refillCount := 0

	for idx, po := range bot.PlacedOrders {
		if po.OrderID == "" || po.Status != "OPEN" {
			continue
		}
		order, stillOpen := openByID[po.OrderID]

		if !stillOpen {
			qty := roundDown(po.USDTAmount/po.Price, 2)
			res, placeErr := client.PlaceLimit(ctx, bot.Symbol, exchange.SideBuy, po.Price, qty, exchange.TimeInForceGTC)
			trade := &models.Trade{
				BotID: bot.ID, BotKind: models.KindBuyWall, UserID: bot.UserID, Symbol: bot.Symbol,
				Side: string(exchange.SideBuy), Type: string(exchange.OrderTypeLimit), Price: po.Price, Quantity: qty,
				Action: models.ActionRefill, Timestamp: bw.clock.Now(),
			}
			if placeErr != nil {
				trade.Status = models.TradeFailed
				trade.Response = placeErr.Error()
				bw.recordTrade(ctx, trade)
				continue
			}
			trade.Status = models.TradeSuccess
			trade.OrderID = &res.OrderID
			bw.recordTrade(ctx, trade)
			updated[idx] = models.PlacedOrder{Price: po.Price, USDTAmount: po.USDTAmount, OrderID: res.OrderID, ClientOrderID: uuid.NewString(), GCBQuantity: qty, Status: "OPEN"}
			refillCount++
			continue
		}

		if order.PartiallyFilled() {
			executedUSDT := order.ExecutedQty * order.Price
			qty := roundDown(executedUSDT/po.Price, 2)
			if qty <= 0 {
				continue
			}
			res, placeErr := client.PlaceLimit(ctx, bot.Symbol, exchange.SideBuy, po.Price, qty, exchange.TimeInForceGTC)
			trade := &models.Trade{
				BotID: bot.ID, BotKind: models.KindBuyWall, UserID: bot.UserID, Symbol: bot.Symbol,
				Side: string(exchange.SideBuy), Type: string(exchange.OrderTypeLimit), Price: po.Price, Quantity: qty,
				Action: models.ActionTopUpPartial, Timestamp: bw.clock.Now(),
			}
			if placeErr != nil {
				trade.Status = models.TradeFailed
				trade.Response = placeErr.Error()
				bw.recordTrade(ctx, trade)
				continue
			}
			trade.Status = models.TradeSuccess
			trade.OrderID = &res.OrderID
			bw.recordTrade(ctx, trade)
			extra = append(extra, models.PlacedOrder{Price: po.Price, USDTAmount: executedUSDT, OrderID: res.OrderID, ClientOrderID: uuid.NewString(), GCBQuantity: qty, Status: "OPEN"})
			refillCount++
		}
	}

	if refillCount == 0 {
		return nil
	}

	updated = append(updated, extra...)
	return bw.store.BuyWall.Mutate(ctx, bot.ID, func(b *models.BuyWallBot) error {
		b.PlacedOrders = updated
		b.TotalRefills += refillCount
		return nil
	})
}
