package strategy

import (
	"context"
	"fmt"
	"math/rand"
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
	liquidityDefault       = 30 * time.Second
	liquidityMaxZoneOrders = 10
	liquidityMaxPruneCount = 3
	liquidityBatchSize     = 10
	liquidityBatchPace     = 500 * time.Millisecond
	liquidityMinBuyValue   = 0.50
	liquidityMinSellQty    = 0.5
)

// Liquidity maintains a configured minimum order-book depth and order
// count around the market price, on both sides of the book (spec §4.5.6).
type Liquidity struct {
	deps
	rng *rand.Rand
}

func NewLiquidity(s *store.Store, ex exchange.Factory, ring *ringlog.RingLog, notify notifier.Notifier, clk clock.Clock, log *zap.SugaredLogger, encryptionKey []byte) *Liquidity {
	return &Liquidity{deps{store: s, exchange: ex, ring: ring, notify: notify, clock: clk, log: log, encryptionKey: encryptionKey}, rand.New(rand.NewSource(1))}
}

func (l *Liquidity) Kind() models.BotKind           { return models.KindLiquidity }
func (l *Liquidity) DefaultInterval() time.Duration { return liquidityDefault }

func (l *Liquidity) ActiveBotIDs(ctx context.Context) ([]int, error) {
	bots, err := l.store.Liquidity.ListActive(ctx)
	if err != nil {
		return nil, err
	}
	ids := make([]int, 0, len(bots))
	for _, b := range bots {
		ids = append(ids, b.ID)
	}
	return ids, nil
}

func (l *Liquidity) RunOnce(ctx context.Context, botID int) error {
	return l.run(ctx, botID, false)
}

// ForceAdjust bypasses the scheduler's cooldown and temporarily enables
// autoManage for a single run (spec §4.5.6, "A forceAdjust entry point").
func (l *Liquidity) ForceAdjust(ctx context.Context, botID int) error {
	return l.run(ctx, botID, true)
}

func (l *Liquidity) run(ctx context.Context, botID int, force bool) error {
	bot, err := l.store.Liquidity.Get(ctx, botID)
	if err != nil {
		return err
	}
	if !bot.Eligible() {
		return nil
	}

	autoManage := bot.AutoManage || force

	client, err := l.clientFor(ctx, bot.UserID)
	if err != nil {
		return err
	}

	depth, err := client.Depth(ctx, bot.Symbol, 100)
	if err != nil {
		return nil
	}
	ticker, err := client.Ticker(ctx, bot.Symbol)
	if err != nil {
		return nil
	}
	l.cacheMarketData(botID, bot.Symbol, ticker.Last)
	mid := ticker.Last

	info, err := client.SymbolInfo(ctx, bot.Symbol)
	if err != nil {
		info = &exchange.SymbolInfo{PricePrecision: 6, QuantityPrecision: 2, MinQuantity: 0.01}
	}

	ownBids, _ := client.OpenOrders(ctx, bot.Symbol, exchange.SideBuy)
	ownAsks, _ := client.OpenOrders(ctx, bot.Symbol, exchange.SideSell)

	status := l.analyze(bot, depth, mid, ownBids, ownAsks)

	if !autoManage {
		l.persistStatus(ctx, bot, status)
		return nil
	}

	scale := bot.Scale()
	held := heldPrices(ownBids, ownAsks)

	pruned := l.pruneStale(ctx, client, bot, mid, ownBids, ownAsks)

	targetBuy, targetSell := targetCounts(bot.MinOrderCount, len(depth.Bids), len(depth.Asks))

	tightened := l.tightenSpread(ctx, client, bot, status, mid, ownBids, ownAsks, targetBuy, targetSell)

	placed := 0
	if needsMoreDepth(status.ownDepth2PctBuy, bot.MinDepth2Percent*scale) || len(ownBids)-pruned.buy-tightened.buy < targetBuy {
		placed += l.generateAndSubmit(ctx, client, bot, liquiditySideBuy, mid, info, held, targetBuy-(len(ownBids)-pruned.buy-tightened.buy), status.ownDepth2PctBuy, status.ownTop20Buy, scale)
	}
	if needsMoreDepth(status.ownDepth2PctSell, bot.MinDepth2Percent*scale) || len(ownAsks)-pruned.sell-tightened.sell < targetSell {
		placed += l.generateAndSubmit(ctx, client, bot, liquiditySideSell, mid, info, held, targetSell-(len(ownAsks)-pruned.sell-tightened.sell), status.ownDepth2PctSell, status.ownTop20Sell, scale)
	}

	now := l.clock.Now()
	err = l.store.Liquidity.Mutate(ctx, bot.ID, func(b *models.LiquidityBot) error {
		b.TotalOrdersPlaced += placed
		b.TotalMaintenance++
		b.LastCheckedAt = &now
		b.LastStatus = status.toMap()
		return nil
	})
	if err != nil {
		l.log.Warnw("failed to update liquidity bot", "botId", bot.ID, "err", err)
	}

	if placed > 0 {
		l.logEvent(ctx, models.KindLiquidity, bot.ID, models.LevelLiquidity,
			fmt.Sprintf("placed %d liquidity orders", placed), status.toMap(), true)
		l.notify.Notify(ctx, fmt.Sprintf("Liquidity bot %d placed %d orders on %s", bot.ID, placed, bot.Symbol))
	}
	return nil
}

type liquidityStatus struct {
	spread                                 float64
	marketDepth2PctBuy, marketDepth2PctSell float64
	marketTop20Buy, marketTop20Sell         float64
	ownDepth2PctBuy, ownDepth2PctSell       float64
	ownTop20Buy, ownTop20Sell               float64
	marketGapBuy, marketGapSell             float64
	ownGapBuy, ownGapSell                   float64
}

func (s *liquidityStatus) toMap() map[string]interface{} {
	return map[string]interface{}{
		"spread":             s.spread,
		"marketDepth2PctBuy": s.marketDepth2PctBuy, "marketDepth2PctSell": s.marketDepth2PctSell,
		"ownDepth2PctBuy": s.ownDepth2PctBuy, "ownDepth2PctSell": s.ownDepth2PctSell,
	}
}

func (l *Liquidity) analyze(bot *models.LiquidityBot, depth *exchange.Depth, mid float64, ownBids, ownAsks []exchange.Order) liquidityStatus {
	bestBid, _ := depth.BestBid()
	bestAsk, _ := depth.BestAsk()

	ownBidLevels := ordersToLevels(ownBids)
	ownAskLevels := ordersToLevels(ownAsks)

	return liquidityStatus{
		spread:              spreadPercent(bestBid, bestAsk, mid),
		marketDepth2PctBuy:  depthWithin(depth.Bids, mid*0.98, mid),
		marketDepth2PctSell: depthWithin(depth.Asks, mid, mid*1.02),
		marketTop20Buy:      top20Depth(depth.Bids),
		marketTop20Sell:     top20Depth(depth.Asks),
		ownDepth2PctBuy:     depthWithin(ownBidLevels, mid*0.98, mid),
		ownDepth2PctSell:    depthWithin(ownAskLevels, mid, mid*1.02),
		ownTop20Buy:         top20Depth(ownBidLevels),
		ownTop20Sell:        top20Depth(ownAskLevels),
		marketGapBuy:        maxAdjacentGap(depth.Bids, true),
		marketGapSell:       maxAdjacentGap(depth.Asks, false),
		ownGapBuy:           maxAdjacentGap(ownBidLevels, true),
		ownGapSell:          maxAdjacentGap(ownAskLevels, false),
	}
}

func (l *Liquidity) persistStatus(ctx context.Context, bot *models.LiquidityBot, status liquidityStatus) {
	now := l.clock.Now()
	err := l.store.Liquidity.Mutate(ctx, bot.ID, func(b *models.LiquidityBot) error {
		b.LastCheckedAt = &now
		b.LastStatus = status.toMap()
		return nil
	})
	if err != nil {
		l.log.Warnw("failed to persist liquidity status", "botId", bot.ID, "err", err)
	}
}

type pruneCounts struct{ buy, sell int }

func (l *Liquidity) pruneStale(ctx context.Context, client exchange.Client, bot *models.LiquidityBot, mid float64, ownBids, ownAsks []exchange.Order) pruneCounts {
	var counts pruneCounts
	for _, o := range ownBids {
		if o.Price < 0.75*mid || o.Price > 1.02*mid {
			if client.CancelOrder(ctx, bot.Symbol, o.OrderID) == nil {
				counts.buy++
			}
		}
	}
	for _, o := range ownAsks {
		if o.Price < 0.98*mid || o.Price > 1.25*mid {
			if client.CancelOrder(ctx, bot.Symbol, o.OrderID) == nil {
				counts.sell++
			}
		}
	}
	return counts
}

func targetCounts(minOrderCount, marketBidCount, marketAskCount int) (buy, sell int) {
	buy, sell = minOrderCount, minOrderCount
	if marketBidCount >= 10 {
		buy = 20
	}
	if marketAskCount >= 10 {
		sell = 20
	}
	return buy, sell
}

type tightenCounts struct{ buy, sell int }

func (l *Liquidity) tightenSpread(ctx context.Context, client exchange.Client, bot *models.LiquidityBot, status liquidityStatus, mid float64, ownBids, ownAsks []exchange.Order, targetBuy, targetSell int) tightenCounts {
	var counts tightenCounts
	if status.spread <= bot.MaxSpread {
		return counts
	}

	farBeyond := 1 + (bot.MaxSpread/2)/100

	if len(ownBids) >= targetBuy {
		counts.buy = cancelFarthest(ctx, client, bot.Symbol, ownBids, mid, farBeyond, true)
	}
	if len(ownAsks) >= targetSell {
		counts.sell = cancelFarthest(ctx, client, bot.Symbol, ownAsks, mid, farBeyond, false)
	}
	return counts
}

func cancelFarthest(ctx context.Context, client exchange.Client, symbol string, orders []exchange.Order, mid, farBeyond float64, bidSide bool) int {
	type candidate struct {
		order exchange.Order
		dist  float64
	}
	var candidates []candidate
	for _, o := range orders {
		var beyond bool
		if bidSide {
			beyond = o.Price < mid/farBeyond
		} else {
			beyond = o.Price > mid*farBeyond
		}
		if beyond {
			candidates = append(candidates, candidate{o, absFloat(o.Price - mid)})
		}
	}
	// farthest first
	for i := 0; i < len(candidates); i++ {
		for j := i + 1; j < len(candidates); j++ {
			if candidates[j].dist > candidates[i].dist {
				candidates[i], candidates[j] = candidates[j], candidates[i]
			}
		}
	}
	n := liquidityMaxPruneCount
	if n > len(candidates) {
		n = len(candidates)
	}
	cancelled := 0
	for i := 0; i < n; i++ {
		if client.CancelOrder(ctx, symbol, candidates[i].order.OrderID) == nil {
			cancelled++
		}
	}
	return cancelled
}

func absFloat(v float64) float64 {
	if v < 0 {
		return -v
	}
	return v
}

func needsMoreDepth(current, target float64) bool {
	return current < target
}

func heldPrices(ownBids, ownAsks []exchange.Order) map[float64]bool {
	held := make(map[float64]bool, len(ownBids)+len(ownAsks))
	for _, o := range ownBids {
		held[o.Price] = true
	}
	for _, o := range ownAsks {
		held[o.Price] = true
	}
	return held
}

func ordersToLevels(orders []exchange.Order) []exchange.Level {
	out := make([]exchange.Level, 0, len(orders))
	for _, o := range orders {
		out = append(out, exchange.Level{Price: o.Price, Quantity: o.RemainingQty()})
	}
	return out
}

// generateAndSubmit builds zone 1 + zone 2 orders for one side and submits
// them in batches (spec §4.5.6 steps 8-10). Returns the number placed.
func (l *Liquidity) generateAndSubmit(ctx context.Context, client exchange.Client, bot *models.LiquidityBot, side liquiditySide, mid float64, info *exchange.SymbolInfo, held map[float64]bool, countNeeded int, ownDepth2Pct, ownTop20 float64, scale float64) int {
	if countNeeded <= 0 {
		countNeeded = 1
	}

	var zone1Lo, zone1Hi, zone2Lo, zone2Hi float64
	if side == liquiditySideBuy {
		zone1Lo, zone1Hi = mid*0.98, mid
		zone2Lo, zone2Hi = mid*0.90, mid*0.98
	} else {
		zone1Lo, zone1Hi = mid, mid*1.02
		zone2Lo, zone2Hi = mid*1.02, mid*1.10
	}

	zone1Budget := bot.MinDepth2Percent*scale - ownDepth2Pct
	zone2Budget := (bot.MinDepthTop20-bot.MinDepth2Percent)*scale - (ownTop20 - ownDepth2Pct)
	if zone1Budget < 0 {
		zone1Budget = 0
	}
	if zone2Budget < 0 {
		zone2Budget = 0
	}

	zoneCount := liquidityMaxZoneOrders
	if countNeeded < zoneCount {
		zoneCount = countNeeded
	}
	zone1Prices := generateZonePrices(side, mid, zone1Lo, zone1Hi, zoneCount, false, held)
	zone2Prices := generateZonePrices(side, mid, zone2Lo, zone2Hi, zoneCount, true, held)

	orders := append(weightedSplit(zone1Prices, zone1Budget, l.rng), weightedSplit(zone2Prices, zone2Budget, l.rng)...)

	minValue := liquidityMinBuyValue
	if side == liquiditySideSell {
		minValue = liquidityMinSellQty * mid
	}

	balances, err := client.Balances(ctx)
	if err != nil {
		return 0
	}
	base, quote := splitSymbol(bot.Symbol)
	var available float64
	if side == liquiditySideBuy {
		available = balances[quote].Free
	} else {
		available = balances[base].Free * mid
	}

	allocated := allocateWithinBalance(orders, mid, available, minValue)
	if len(allocated) == 0 {
		return 0
	}

	specs := make([]exchange.OrderSpec, 0, len(allocated))
	exSide := exchange.SideBuy
	if side == liquiditySideSell {
		exSide = exchange.SideSell
	}
	for _, o := range allocated {
		qty := roundDown(o.USDValue/o.Price, info.QuantityPrecision)
		if qty < info.MinQuantity {
			continue
		}
		specs = append(specs, exchange.OrderSpec{
			Symbol: bot.Symbol, Side: exSide, Type: exchange.OrderTypeLimit,
			Price: o.Price, Quantity: qty, TimeInForce: exchange.TimeInForceGTC,
			ClientOrderID: uuid.NewString(),
		})
	}
	if len(specs) == 0 {
		return 0
	}

	results := client.PlaceBatch(ctx, specs)
	placed := 0
	for _, r := range results {
		trade := &models.Trade{
			BotID: bot.ID, BotKind: models.KindLiquidity, UserID: bot.UserID, Symbol: bot.Symbol,
			Side: string(r.Spec.Side), Type: string(r.Spec.Type), Price: r.Spec.Price, Quantity: r.Spec.Quantity,
			Action: models.ActionLiquidity, Timestamp: l.clock.Now(),
		}
		if r.Err != nil {
			trade.Status = models.TradeFailed
			trade.Response = r.Err.Error()
		} else {
			trade.Status = models.TradeSuccess
			orderID := r.OrderID
			trade.OrderID = &orderID
			placed++
		}
		l.recordTrade(ctx, trade)
	}
	return placed
}
