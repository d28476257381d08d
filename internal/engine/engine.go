// Package engine is the lifecycle owner of every BotRunner: one per
// strategy kind, all sharing the Store, ExchangeClient factory, Notifier,
// and clock (spec §4.6). Grounded on the teacher's bot.Engine struct,
// generalized from one event-driven arbitrage loop to six fixed-interval
// per-kind runners.
package engine

import (
	"context"
	"time"

	"go.uber.org/zap"

	"tradebotengine/internal/clock"
	"tradebotengine/internal/config"
	"tradebotengine/internal/exchange"
	"tradebotengine/internal/models"
	"tradebotengine/internal/notifier"
	"tradebotengine/internal/ringlog"
	"tradebotengine/internal/runner"
	"tradebotengine/internal/store"
	"tradebotengine/internal/strategy"
)

// kindRunner pairs a BotRunner with the RingLog its strategy writes to, so
// Engine can serve per-kind log snapshots without the runner exposing its
// internals.
type kindRunner struct {
	kind   models.BotKind
	run    *runner.BotRunner
	ring   *ringlog.RingLog
	strat  strategy.Strategy
}

// Engine holds one BotRunner per bot kind and owns their combined
// start/stop lifecycle.
type Engine struct {
	runners []kindRunner
	log     *zap.SugaredLogger
}

// New builds an Engine with one BotRunner per kind in models.AllKinds,
// wiring every strategy to the same Store, ExchangeClient factory,
// Notifier, and clock, each with its own RingLog and configured tick
// interval (spec §5.3, EngineConfig).
func New(st *store.Store, exFactory exchange.Factory, notify notifier.Notifier, clk clock.Clock, log *zap.SugaredLogger, encryptionKey []byte, cfg config.EngineConfig) *Engine {
	e := &Engine{log: log}

	intervals := map[models.BotKind]time.Duration{
		models.KindConditional: cfg.ConditionalInterval,
		models.KindStabilizer:  cfg.StabilizerInterval,
		models.KindMarketMaker: cfg.MarketMakerInterval,
		models.KindBuyWall:     cfg.BuyWallInterval,
		models.KindPriceGap:    cfg.PriceGapInterval,
		models.KindLiquidity:   cfg.LiquidityInterval,
	}

	for _, kind := range models.AllKinds {
		ring := ringlog.New(cfg.RingLogCapacity)
		var strat strategy.Strategy
		switch kind {
		case models.KindConditional:
			strat = strategy.NewConditional(st, exFactory, ring, notify, clk, log, encryptionKey)
		case models.KindStabilizer:
			strat = strategy.NewStabilizer(st, exFactory, ring, notify, clk, log, encryptionKey)
		case models.KindMarketMaker:
			strat = strategy.NewMarketMaker(st, exFactory, ring, notify, clk, log, encryptionKey)
		case models.KindBuyWall:
			strat = strategy.NewBuyWall(st, exFactory, ring, notify, clk, log, encryptionKey)
		case models.KindPriceGap:
			strat = strategy.NewPriceGap(st, exFactory, ring, notify, clk, log, encryptionKey)
		case models.KindLiquidity:
			strat = strategy.NewLiquidity(st, exFactory, ring, notify, clk, log, encryptionKey)
		}

		br := runner.New(strat, ring, log, intervals[kind], cfg.ShutdownGrace)
		e.runners = append(e.runners, kindRunner{kind: kind, run: br, ring: ring, strat: strat})
	}

	return e
}

// Start launches every BotRunner's tick loop.
func (e *Engine) Start(ctx context.Context) {
	for _, kr := range e.runners {
		kr.run.Start(ctx)
	}
	e.log.Infow("engine started", "kinds", len(e.runners))
}

// Stop cancels every BotRunner's ticker and waits for in-flight strategy
// tasks to finish, bounded by each runner's configured grace period
// (spec §4.6, §5).
func (e *Engine) Stop() {
	for _, kr := range e.runners {
		kr.run.Stop()
	}
	e.log.Infow("engine stopped")
}

// KindStatus reports one strategy kind's scheduling state for the status
// API: whether its runner is ticking, its recent activity volume, and its
// strategy's cached per-bot market data (spec §6 "engine.status() returns
// per-runner isRunning and recent marketData").
type KindStatus struct {
	Kind        models.BotKind                 `json:"kind"`
	IsRunning   bool                            `json:"isRunning"`
	RecentCount int                             `json:"recentLogCount"`
	MarketData  map[int]strategy.MarketSnapshot `json:"marketData"`
}

// Status returns a snapshot of every runner's kind, running state, recent
// activity volume, and cached market data.
func (e *Engine) Status() []KindStatus {
	out := make([]KindStatus, 0, len(e.runners))
	for _, kr := range e.runners {
		out = append(out, KindStatus{
			Kind:        kr.kind,
			IsRunning:   kr.run.IsRunning(),
			RecentCount: kr.ring.Len(),
			MarketData:  kr.run.MarketData(),
		})
	}
	return out
}

// Logs returns the latest limit RingLog entries for one bot kind, newest
// first (spec §6 "engine.logs(kind, limit)"). Returns nil if kind is
// unknown.
func (e *Engine) Logs(kind models.BotKind, limit int) []ringlog.Entry {
	for _, kr := range e.runners {
		if kr.kind == kind {
			return kr.ring.Snapshot(limit)
		}
	}
	return nil
}
