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

func TestLiquidityRunOnce_AutoManageOffOnlyPersistsStatus(t *testing.T) {
	st, mock := newTestStore(t)
	log := obslog.Noop()

	bot := &models.LiquidityBot{
		BotBase:    models.BotBase{ID: 1, UserID: 7, Symbol: "GCBUSDT", IsActive: true, IsRunning: true},
		AutoManage: false,
	}
	raw, err := json.Marshal(bot)
	require.NoError(t, err)
	mock.ExpectQuery(`SELECT data FROM liquidity_bots WHERE id = \$1`).WithArgs(1).
		WillReturnRows(sqlmock.NewRows([]string{"data"}).AddRow(raw))
	expectUserRow(mock, 7, "secret")

	mock.ExpectBegin()
	mock.ExpectQuery(`SELECT data FROM liquidity_bots WHERE id = \$1 FOR UPDATE`).WithArgs(1).
		WillReturnRows(sqlmock.NewRows([]string{"data"}).AddRow(raw))
	mock.ExpectExec(`UPDATE liquidity_bots SET`).WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	client := &fakeClient{
		ticker: &exchange.Ticker{Last: 100},
		depth:  &exchange.Depth{},
	}
	l := NewLiquidity(st, &fakeFactory{client}, ringlog.New(100), notifier.NewLogNotifier(log), clock.NewFake(time.Now()), log, testEncryptionKey)

	err = l.RunOnce(context.Background(), 1)
	require.NoError(t, err)
	require.Empty(t, client.batch)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestLiquidityRunOnce_AutoManagePlacesBuyOrders(t *testing.T) {
	st, mock := newTestStore(t)
	log := obslog.Noop()

	bot := &models.LiquidityBot{
		BotBase:          models.BotBase{ID: 2, UserID: 7, Symbol: "GCBUSDT", IsActive: true, IsRunning: true},
		AutoManage:       true,
		MinOrderCount:    1,
		MinDepth2Percent: 50,
		MinDepthTop20:    80,
		MaxSpread:        5,
		ScaleFactor:      1,
	}
	raw, err := json.Marshal(bot)
	require.NoError(t, err)
	mock.ExpectQuery(`SELECT data FROM liquidity_bots WHERE id = \$1`).WithArgs(2).
		WillReturnRows(sqlmock.NewRows([]string{"data"}).AddRow(raw))
	expectUserRow(mock, 7, "secret")

	// Two buy-side orders are generated (one per zone); the sell side has
	// no base-asset balance so it contributes nothing.
	mock.ExpectQuery(`INSERT INTO bot_trades`).WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(1))
	mock.ExpectQuery(`INSERT INTO bot_trades`).WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(2))

	mock.ExpectBegin()
	mock.ExpectQuery(`SELECT data FROM liquidity_bots WHERE id = \$1 FOR UPDATE`).WithArgs(2).
		WillReturnRows(sqlmock.NewRows([]string{"data"}).AddRow(raw))
	mock.ExpectExec(`UPDATE liquidity_bots SET`).WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	mock.ExpectQuery(`INSERT INTO bot_logs`).WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(1))

	client := &fakeClient{
		ticker: &exchange.Ticker{Last: 100},
		depth:  &exchange.Depth{},
		balances: map[string]exchange.Balance{
			"USDT": {Free: 5000},
			"GCB":  {Free: 0},
		},
	}
	l := NewLiquidity(st, &fakeFactory{client}, ringlog.New(100), notifier.NewLogNotifier(log), clock.NewFake(time.Now()), log, testEncryptionKey)

	err = l.RunOnce(context.Background(), 2)
	require.NoError(t, err)
	require.Len(t, client.batch, 2)
	for _, spec := range client.batch {
		require.Equal(t, exchange.SideBuy, spec.Side)
	}
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestLiquidityForceAdjust_BypassesAutoManageFlag(t *testing.T) {
	st, mock := newTestStore(t)
	log := obslog.Noop()

	bot := &models.LiquidityBot{
		BotBase:    models.BotBase{ID: 3, UserID: 7, Symbol: "GCBUSDT", IsActive: true, IsRunning: true},
		AutoManage: false, MinOrderCount: 0, MaxSpread: 5, ScaleFactor: 1,
	}
	raw, err := json.Marshal(bot)
	require.NoError(t, err)
	mock.ExpectQuery(`SELECT data FROM liquidity_bots WHERE id = \$1`).WithArgs(3).
		WillReturnRows(sqlmock.NewRows([]string{"data"}).AddRow(raw))
	expectUserRow(mock, 7, "secret")

	mock.ExpectBegin()
	mock.ExpectQuery(`SELECT data FROM liquidity_bots WHERE id = \$1 FOR UPDATE`).WithArgs(3).
		WillReturnRows(sqlmock.NewRows([]string{"data"}).AddRow(raw))
	mock.ExpectExec(`UPDATE liquidity_bots SET`).WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	client := &fakeClient{
		ticker:   &exchange.Ticker{Last: 100},
		depth:    &exchange.Depth{},
		balances: map[string]exchange.Balance{"USDT": {Free: 0}, "GCB": {Free: 0}},
	}
	l := NewLiquidity(st, &fakeFactory{client}, ringlog.New(100), notifier.NewLogNotifier(log), clock.NewFake(time.Now()), log, testEncryptionKey)

	err = l.ForceAdjust(context.Background(), 3)
	require.NoError(t, err)
	require.Empty(t, client.batch)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestTargetCounts(t *testing.T) {
	buy, sell := targetCounts(5, 3, 3)
	require.Equal(t, 5, buy)
	require.Equal(t, 5, sell)

	buy, sell = targetCounts(5, 12, 2)
	require.Equal(t, 20, buy)
	require.Equal(t, 5, sell)
}
