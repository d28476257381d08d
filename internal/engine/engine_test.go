package engine

import (
	"context"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"

	"tradebotengine/internal/clock"
	"tradebotengine/internal/config"
	"tradebotengine/internal/exchange"
	"tradebotengine/internal/models"
	"tradebotengine/internal/notifier"
	"tradebotengine/internal/obslog"
	"tradebotengine/internal/store"
)

func newTestEngine(t *testing.T) *Engine {
	t.Helper()
	db, _, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	st := store.New(db)
	exFactory := exchange.NewFactory(exchange.FamilyCH, "http://exchange.invalid", time.Second, 1)
	notify := notifier.NewLogNotifier(obslog.Noop())

	cfg := config.EngineConfig{
		// large intervals: this engine is never Start()-ed in these tests,
		// so the value only needs to be non-zero.
		ConditionalInterval: time.Hour,
		StabilizerInterval:  time.Hour,
		MarketMakerInterval: time.Hour,
		BuyWallInterval:     time.Hour,
		PriceGapInterval:    time.Hour,
		LiquidityInterval:   time.Hour,
		RingLogCapacity:     50,
		ShutdownGrace:       time.Second,
	}

	return New(st, exFactory, notify, clock.Real{}, obslog.Noop(), []byte("0123456789abcdef0123456789abcdef"), cfg)
}

func TestNewBuildsOneRunnerPerKind(t *testing.T) {
	eng := newTestEngine(t)
	if got, want := len(eng.runners), len(models.AllKinds); got != want {
		t.Fatalf("expected %d runners (one per kind), got %d", want, got)
	}
}

func TestStatusReportsEveryKind(t *testing.T) {
	eng := newTestEngine(t)
	statuses := eng.Status()
	if len(statuses) != len(models.AllKinds) {
		t.Fatalf("expected %d statuses, got %d", len(models.AllKinds), len(statuses))
	}
	seen := map[models.BotKind]bool{}
	for _, s := range statuses {
		seen[s.Kind] = true
		if s.RecentCount != 0 {
			t.Fatalf("expected a fresh engine to report 0 recent log entries, got %d for %s", s.RecentCount, s.Kind)
		}
		if s.IsRunning {
			t.Fatalf("expected isRunning=false before Start() for %s", s.Kind)
		}
		if len(s.MarketData) != 0 {
			t.Fatalf("expected an empty marketData cache before any tick for %s", s.Kind)
		}
	}
	for _, k := range models.AllKinds {
		if !seen[k] {
			t.Fatalf("Status() missing kind %s", k)
		}
	}
}

func TestLogsReturnsNilForUnknownKind(t *testing.T) {
	eng := newTestEngine(t)
	if got := eng.Logs(models.BotKind("not-a-kind"), 10); got != nil {
		t.Fatalf("expected nil for an unknown kind, got %v", got)
	}
}

func TestLogsReturnsEmptySliceForFreshKind(t *testing.T) {
	eng := newTestEngine(t)
	entries := eng.Logs(models.AllKinds[0], 10)
	if len(entries) != 0 {
		t.Fatalf("expected no log entries for a fresh engine, got %d", len(entries))
	}
}

func TestStartStopIsSafeWithNoActiveBots(t *testing.T) {
	eng := newTestEngine(t)
	// Every strategy's ActiveBotIDs will hit the (unmocked) sqlmock DB and
	// fail — BotRunner.tick must log and skip rather than panic. Start/Stop
	// must still return cleanly within the configured grace period.
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	eng.Start(ctx)
	time.Sleep(10 * time.Millisecond)

	for _, s := range eng.Status() {
		if !s.IsRunning {
			t.Fatalf("expected isRunning=true for %s while started", s.Kind)
		}
	}

	eng.Stop()

	for _, s := range eng.Status() {
		if s.IsRunning {
			t.Fatalf("expected isRunning=false for %s after Stop", s.Kind)
		}
	}
}

