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

func TestPriceGapRunOnce_FiresOnWideGap(t *testing.T) {
	st, mock := newTestStore(t)
	log := obslog.Noop()

	bot := &models.PriceGapBot{
		BotBase:      models.BotBase{ID: 1, UserID: 7, Symbol: "GCBUSDT", IsActive: true, IsRunning: true},
		GapThreshold: 3, OrderAmount: 25,
	}
	raw, err := json.Marshal(bot)
	require.NoError(t, err)
	mock.ExpectQuery(`SELECT data FROM price_gap_bots WHERE id = \$1`).WithArgs(1).
		WillReturnRows(sqlmock.NewRows([]string{"data"}).AddRow(raw))
	expectUserRow(mock, 7, "secret")
	mock.ExpectQuery(`INSERT INTO bot_trades`).WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(1))
	mock.ExpectBegin()
	mock.ExpectQuery(`SELECT data FROM price_gap_bots WHERE id = \$1 FOR UPDATE`).WithArgs(1).
		WillReturnRows(sqlmock.NewRows([]string{"data"}).AddRow(raw))
	mock.ExpectExec(`UPDATE price_gap_bots SET`).WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	client := &fakeClient{
		ticker:   &exchange.Ticker{Last: 100},
		depth:    &exchange.Depth{Asks: []exchange.Level{{Price: 105, Quantity: 1}}},
		balances: map[string]exchange.Balance{"USDT": {Free: 100}},
	}
	p := NewPriceGap(st, &fakeFactory{client}, ringlog.New(100), notifier.NewLogNotifier(log), clock.NewFake(time.Now()), log, testEncryptionKey)

	err = p.RunOnce(context.Background(), 1)
	require.NoError(t, err)
	require.Len(t, client.placedQuote, 1)
	require.Equal(t, 25.0, client.placedQuote[0])
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPriceGapRunOnce_NarrowGapOnlyUpdatesStats(t *testing.T) {
	st, mock := newTestStore(t)
	log := obslog.Noop()

	bot := &models.PriceGapBot{
		BotBase:      models.BotBase{ID: 2, UserID: 7, Symbol: "GCBUSDT", IsActive: true, IsRunning: true},
		GapThreshold: 3, OrderAmount: 25,
	}
	raw, err := json.Marshal(bot)
	require.NoError(t, err)
	mock.ExpectQuery(`SELECT data FROM price_gap_bots WHERE id = \$1`).WithArgs(2).
		WillReturnRows(sqlmock.NewRows([]string{"data"}).AddRow(raw))
	expectUserRow(mock, 7, "secret")
	mock.ExpectBegin()
	mock.ExpectQuery(`SELECT data FROM price_gap_bots WHERE id = \$1 FOR UPDATE`).WithArgs(2).
		WillReturnRows(sqlmock.NewRows([]string{"data"}).AddRow(raw))
	mock.ExpectExec(`UPDATE price_gap_bots SET`).WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	client := &fakeClient{
		ticker: &exchange.Ticker{Last: 100},
		depth:  &exchange.Depth{Asks: []exchange.Level{{Price: 100.5, Quantity: 1}}},
	}
	p := NewPriceGap(st, &fakeFactory{client}, ringlog.New(100), notifier.NewLogNotifier(log), clock.NewFake(time.Now()), log, testEncryptionKey)

	err = p.RunOnce(context.Background(), 2)
	require.NoError(t, err)
	require.Empty(t, client.placedQuote)
	require.NoError(t, mock.ExpectationsWereMet())
}
