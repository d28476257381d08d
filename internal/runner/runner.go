// Package runner implements the per-bot-kind scheduler: a fixed-interval
// tick loop that loads active bots, enforces per-bot mutual exclusion, and
// dispatches each eligible bot to its Strategy (spec §4.4/§5). Grounded on
// the teacher's Engine.priceEventWorker/periodicTasks ticker pattern,
// generalized from event-driven dispatch to fixed-interval polling.
package runner

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"tradebotengine/internal/enginerr"
	"tradebotengine/internal/metrics"
	"tradebotengine/internal/models"
	"tradebotengine/internal/ringlog"
	"tradebotengine/internal/strategy"
)

// BotRunner owns one Strategy's tick loop: on each tick it lists active
// bots, tries to acquire each bot's in-memory lock non-blockingly, and runs
// the strategy to completion on a separate goroutine when the lock is won.
type BotRunner struct {
	strategy strategy.Strategy
	ring     *ringlog.RingLog
	log      *zap.SugaredLogger
	interval time.Duration
	grace    time.Duration

	mu       sync.Mutex
	inFlight map[int]struct{}

	running atomic.Bool

	wg     sync.WaitGroup
	cancel context.CancelFunc
	done   chan struct{}
}

// New builds a BotRunner for one strategy kind. interval overrides the
// strategy's DefaultInterval when non-zero.
func New(s strategy.Strategy, ring *ringlog.RingLog, log *zap.SugaredLogger, interval, grace time.Duration) *BotRunner {
	if interval <= 0 {
		interval = s.DefaultInterval()
	}
	return &BotRunner{
		strategy: s,
		ring:     ring,
		log:      log.With("kind", string(s.Kind())),
		interval: interval,
		grace:    grace,
		inFlight: make(map[int]struct{}),
	}
}

// Start launches the periodic tick loop. It returns immediately; the loop
// runs on its own goroutine until Stop is called.
func (r *BotRunner) Start(ctx context.Context) {
	runCtx, cancel := context.WithCancel(ctx)
	r.cancel = cancel
	r.done = make(chan struct{})
	r.running.Store(true)

	go func() {
		defer close(r.done)
		defer r.running.Store(false)
		ticker := time.NewTicker(r.interval)
		defer ticker.Stop()

		r.tick(runCtx)
		for {
			select {
			case <-runCtx.Done():
				return
			case <-ticker.C:
				r.tick(runCtx)
			}
		}
	}()
}

// Stop cancels the ticker immediately and waits for in-flight strategy
// tasks to finish, up to the configured grace period, before returning
// (spec §5 "bounded grace period").
func (r *BotRunner) Stop() {
	if r.cancel == nil {
		return
	}
	r.cancel()
	<-r.done

	waitDone := make(chan struct{})
	go func() {
		r.wg.Wait()
		close(waitDone)
	}()

	select {
	case <-waitDone:
	case <-time.After(r.grace):
		r.log.Warnw("shutdown grace period expired with strategy tasks still in flight")
	}
}

// IsRunning reports whether this runner's tick loop is currently active
// (spec §6 "engine.status() returns per-runner isRunning").
func (r *BotRunner) IsRunning() bool {
	return r.running.Load()
}

// MarketData returns the strategy's cached per-bot ticker snapshot, the
// "recent marketData" half of the status surface (spec §6).
func (r *BotRunner) MarketData() map[int]strategy.MarketSnapshot {
	return r.strategy.RecentMarketData()
}

// tick lists active bots for this kind and dispatches each eligible one
// that isn't already running.
func (r *BotRunner) tick(ctx context.Context) {
	ids, err := r.strategy.ActiveBotIDs(ctx)
	if err != nil {
		r.log.Warnw("failed to list active bots", "err", err)
		return
	}
	metrics.SetActiveBots(string(r.strategy.Kind()), len(ids))

	for _, id := range ids {
		if !r.tryLock(id) {
			metrics.RecordLockSkip(string(r.strategy.Kind()))
			continue
		}
		r.wg.Add(1)
		go r.runBot(ctx, id)
	}
}

func (r *BotRunner) tryLock(id int) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, busy := r.inFlight[id]; busy {
		return false
	}
	r.inFlight[id] = struct{}{}
	return true
}

func (r *BotRunner) unlock(id int) {
	r.mu.Lock()
	delete(r.inFlight, id)
	r.mu.Unlock()
}

// runBot executes one strategy task to completion, releasing the bot's
// lock on every exit path (spec §5 "released on every exit path").
func (r *BotRunner) runBot(ctx context.Context, botID int) {
	defer r.wg.Done()
	defer r.unlock(botID)

	start := time.Now()
	err := r.strategy.RunOnce(ctx, botID)
	duration := time.Since(start).Seconds()

	outcome := "ok"
	if err != nil {
		outcome = classify(err)
		r.log.Warnw("strategy tick failed", "botId", botID, "outcome", outcome, "err", err)
		r.ring.Push(botID, ringLevel(outcome), err.Error(), nil)
	}
	metrics.RecordTick(string(r.strategy.Kind()), outcome, duration)
}

// classify maps an error from the enginerr taxonomy to a metrics/log
// outcome label without string matching (spec §7).
func classify(err error) string {
	var transientErr *enginerr.ExchangeTransientError
	var authErr *enginerr.ExchangeAuthError
	var rejectedErr *enginerr.ExchangeRejectedError
	var storeErr *enginerr.StoreError
	var configErr *enginerr.ConfigError

	switch {
	case errors.As(err, &transientErr):
		return "exchange_transient"
	case errors.As(err, &authErr):
		return "exchange_auth"
	case errors.As(err, &rejectedErr):
		return "exchange_rejected"
	case errors.As(err, &storeErr):
		return "store_error"
	case errors.As(err, &configErr):
		return "config_error"
	default:
		return "error"
	}
}

func ringLevel(outcome string) models.LogLevel {
	if outcome == "config_error" {
		return models.LevelWarning
	}
	return models.LevelError
}
