// Package metrics exposes the engine's Prometheus gauges/counters,
// generalized from the teacher's internal/bot/metrics.go arbitrage
// gauges to the bot-scheduler domain: tick outcomes, lock contention,
// trade results, and exchange clock-resync activity.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// TicksTotal counts every bot RunOnce a BotRunner dispatches, per kind and
// outcome (ok, or the runner's error classification: exchange_transient,
// exchange_auth, exchange_rejected, store_error, config_error, error).
// Ticks skipped for lock contention are counted by LocksSkipped instead.
var TicksTotal = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: "tradebotengine",
		Subsystem: "runner",
		Name:      "ticks_total",
		Help:      "Total number of bot ticks processed, by kind and outcome",
	},
	[]string{"kind", "outcome"},
)

// TickDuration measures how long one bot's RunOnce takes.
var TickDuration = promauto.NewHistogramVec(
	prometheus.HistogramOpts{
		Namespace: "tradebotengine",
		Subsystem: "runner",
		Name:      "tick_duration_seconds",
		Help:      "Time spent in one bot's RunOnce call",
		Buckets:   []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1, 2, 5, 10},
	},
	[]string{"kind"},
)

// LocksSkipped counts ticks skipped because the previous tick for that
// bot id had not finished yet (spec §4.4 in-memory lock).
var LocksSkipped = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: "tradebotengine",
		Subsystem: "runner",
		Name:      "locks_skipped_total",
		Help:      "Ticks skipped because the bot's prior tick was still running",
	},
	[]string{"kind"},
)

// ActiveBots reports the number of eligible bots scheduled per kind on
// the most recent poll.
var ActiveBots = promauto.NewGaugeVec(
	prometheus.GaugeOpts{
		Namespace: "tradebotengine",
		Subsystem: "runner",
		Name:      "active_bots",
		Help:      "Number of active+running bots scheduled, by kind",
	},
	[]string{"kind"},
)

// TradesTotal counts placed orders by kind and outcome.
var TradesTotal = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: "tradebotengine",
		Subsystem: "trading",
		Name:      "trades_total",
		Help:      "Total number of order placements, by kind and status",
	},
	[]string{"kind", "status"},
)

// ClockResyncsTotal counts how often an exchange client has resynced its
// server-time offset after a clock-skew rejection (AUTH_104/AUTH_105).
var ClockResyncsTotal = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: "tradebotengine",
		Subsystem: "exchange",
		Name:      "clock_resyncs_total",
		Help:      "Number of clock resyncs performed after a clock-skew rejection",
	},
	[]string{"family"},
)

// ExchangeErrorsTotal counts normalized exchange.Error outcomes by kind.
var ExchangeErrorsTotal = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: "tradebotengine",
		Subsystem: "exchange",
		Name:      "errors_total",
		Help:      "Exchange client errors, by error kind (transient, auth, rejected)",
	},
	[]string{"family", "kind"},
)

// RecordTick records the outcome and duration of one bot tick.
func RecordTick(kind, outcome string, durationSeconds float64) {
	TicksTotal.WithLabelValues(kind, outcome).Inc()
	TickDuration.WithLabelValues(kind).Observe(durationSeconds)
}

// RecordLockSkip records a tick skipped due to lock contention.
func RecordLockSkip(kind string) {
	LocksSkipped.WithLabelValues(kind).Inc()
}

// SetActiveBots sets the active-bot gauge for a kind.
func SetActiveBots(kind string, count int) {
	ActiveBots.WithLabelValues(kind).Set(float64(count))
}

// RecordTrade records one placement outcome.
func RecordTrade(kind, status string) {
	TradesTotal.WithLabelValues(kind, status).Inc()
}

// RecordClockResync records a clock-skew resync for an exchange family.
func RecordClockResync(family string) {
	ClockResyncsTotal.WithLabelValues(family).Inc()
}

// RecordExchangeError records a normalized exchange error by kind.
func RecordExchangeError(family, kind string) {
	ExchangeErrorsTotal.WithLabelValues(family, kind).Inc()
}
