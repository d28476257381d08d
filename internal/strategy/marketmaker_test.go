package strategy

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/require"

	"tradebotengine/internal/clock"
	"tradebotengine/internal/exchange"
	"tradebotengine/internal/models"
	"tradebotengine/internal/notifier"
	"tradebotengine/internal/obslog"
	"tradebotengine/internal/ringlog"
)

func TestClampOrderSize_FlipsAtLowerBand(t *testing.T) {
	next, flip := clampOrderSize(41, 100, true) // 41*0.97 = 39.77 <= 40 (lo)
	require.True(t, flip)
	require.Equal(t, 40.0, next)
}

func TestClampOrderSize_NoFlipAboveLowerBand(t *testing.T) {
	next, flip := clampOrderSize(50, 100, true) // 50*0.97 = 48.5, clear of both bands
	require.False(t, flip)
	require.Equal(t, 48.5, next)
}

func TestClampOrderSize_FlipsAtUpperBand(t *testing.T) {
	next, flip := clampOrderSize(89, 100, false) // 89*1.03 = 91.67 >= 90 (hi)
	require.True(t, flip)
	require.Equal(t, 90.0, next)
}

func TestClampOrderSize_NoFlipBelowUpperBand(t *testing.T) {
	next, flip := clampOrderSize(80, 100, false) // 80*1.03 = 82.4, clear of both bands
	require.False(t, flip)
	require.Equal(t, 82.4, next)
}

func TestMarketMakerRunOnce_TargetReachedFinalizesAndStops(t *testing.T) {
	st, mock := newTestStore(t)
	log := obslog.Noop()

	bot := &models.MarketMakerBot{
		BotBase:          models.BotBase{ID: 1, UserID: 7, Symbol: "GCBUSDT", IsActive: true, IsRunning: true},
		TargetPrice:      100,
		SpreadPercent:    0.01,
		InitialOrderSize: 100,
		CurrentOrderSize: 50,
	}
	raw, err := json.Marshal(bot)
	require.NoError(t, err)

	mock.ExpectQuery(`SELECT data FROM market_maker_bots WHERE id = \$1`).WithArgs(1).
		WillReturnRows(sqlmock.NewRows([]string{"data"}).AddRow(raw))
	expectUserRow(mock, 7, "secret-value")

	mock.ExpectBegin()
	mock.ExpectQuery(`SELECT data FROM market_maker_bots WHERE id = \$1 FOR UPDATE`).WithArgs(1).
		WillReturnRows(sqlmock.NewRows([]string{"data"}).AddRow(raw))
	mock.ExpectExec(`UPDATE market_maker_bots SET`).WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	client := &fakeClient{ticker: &exchange.Ticker{Last: 101}}
	m := NewMarketMaker(st, &fakeFactory{client}, ringlog.New(100), notifier.NewLogNotifier(log), clock.NewFake(time.Now()), log, testEncryptionKey)

	err = m.RunOnce(context.Background(), 1)
	require.NoError(t, err)
	require.Empty(t, client.placedLimit, "no new quotes once the target is reached")
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestMarketMakerRunOnce_QuotesBothSidesAndAdvancesOrderSize(t *testing.T) {
	st, mock := newTestStore(t)
	log := obslog.Noop()

	bot := &models.MarketMakerBot{
		BotBase:          models.BotBase{ID: 2, UserID: 7, Symbol: "GCBUSDT", IsActive: true, IsRunning: true},
		TargetPrice:      100,
		SpreadPercent:    0.01,
		InitialOrderSize: 100,
		CurrentOrderSize: 50,
		IsDecreasing:     true,
	}
	raw, err := json.Marshal(bot)
	require.NoError(t, err)

	mock.ExpectQuery(`SELECT data FROM market_maker_bots WHERE id = \$1`).WithArgs(2).
		WillReturnRows(sqlmock.NewRows([]string{"data"}).AddRow(raw))
	expectUserRow(mock, 7, "secret-value")

	mock.ExpectBegin()
	mock.ExpectQuery(`SELECT data FROM market_maker_bots WHERE id = \$1 FOR UPDATE`).WithArgs(2).
		WillReturnRows(sqlmock.NewRows([]string{"data"}).AddRow(raw))
	mock.ExpectExec(`UPDATE market_maker_bots SET`).WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	client := &fakeClient{
		ticker:   &exchange.Ticker{Last: 50},
		balances: map[string]exchange.Balance{"GCB": {Asset: "GCB", Free: 100}, "USDT": {Asset: "USDT", Free: 3000}},
	}
	m := NewMarketMaker(st, &fakeFactory{client}, ringlog.New(100), notifier.NewLogNotifier(log), clock.NewFake(time.Now()), log, testEncryptionKey)

	err = m.RunOnce(context.Background(), 2)
	require.NoError(t, err)
	require.Len(t, client.placedLimit, 2, "expected one sell quote and one buy quote")
	require.Equal(t, exchange.SideSell, client.placedLimit[0].side)
	require.Equal(t, exchange.SideBuy, client.placedLimit[1].side)
	require.NoError(t, mock.ExpectationsWereMet())
}
