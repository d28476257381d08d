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

func TestRequiredBudget_IncludesAskExactlyAtTarget(t *testing.T) {
	asks := []exchange.Level{
		{Price: 9, Quantity: 1},
		{Price: 10, Quantity: 2},
		{Price: 11, Quantity: 3},
	}
	// the ask at exactly target (10) must be included, the one above (11) must not.
	require.Equal(t, float64(9*1+10*2), requiredBudget(asks, 10))
}

func TestRequiredBudget_EmptyBookIsZero(t *testing.T) {
	require.Equal(t, 0.0, requiredBudget(nil, 10))
}

func TestRequiredBudget_NoAskUnderTargetIsZero(t *testing.T) {
	asks := []exchange.Level{{Price: 11, Quantity: 5}}
	require.Equal(t, 0.0, requiredBudget(asks, 10))
}

func TestStabilizerRunOnce_LaddersFullBudgetOverFourSplits(t *testing.T) {
	st, mock := newTestStore(t)
	log := obslog.Noop()

	bot := &models.StabilizerBot{
		BotBase:     models.BotBase{ID: 1, UserID: 7, Symbol: "GCBUSDT", IsActive: true, IsRunning: true},
		TargetPrice: 100,
	}
	raw, err := json.Marshal(bot)
	require.NoError(t, err)

	mock.ExpectQuery(`SELECT data FROM stabilizer_bots WHERE id = \$1`).WithArgs(1).
		WillReturnRows(sqlmock.NewRows([]string{"data"}).AddRow(raw))
	expectUserRow(mock, 7, "secret-value")

	for i := 0; i < stabilizerSplits; i++ {
		mock.ExpectQuery(`INSERT INTO bot_trades`).WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(int64(i + 1)))
	}

	mock.ExpectBegin()
	mock.ExpectQuery(`SELECT data FROM stabilizer_bots WHERE id = \$1 FOR UPDATE`).WithArgs(1).
		WillReturnRows(sqlmock.NewRows([]string{"data"}).AddRow(raw))
	mock.ExpectExec(`UPDATE stabilizer_bots SET`).WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	client := &fakeClient{
		ticker: &exchange.Ticker{Last: 90}, // below target, never reaches it on recheck
		depth: &exchange.Depth{Asks: []exchange.Level{
			{Price: 80, Quantity: 1}, // 80
			{Price: 100, Quantity: 1}, // 100, inclusive boundary
			{Price: 110, Quantity: 1}, // excluded, above target
		}},
		balances: map[string]exchange.Balance{"USDT": {Asset: "USDT", Free: 200}},
	}
	s := NewStabilizer(st, &fakeFactory{client}, ringlog.New(100), notifier.NewLogNotifier(log), clock.NewFake(time.Now()), log, testEncryptionKey)

	err = s.RunOnce(context.Background(), 1)
	require.NoError(t, err)
	require.Len(t, client.placedQuote, stabilizerSplits)
	for _, q := range client.placedQuote {
		require.Equal(t, 180.0/stabilizerSplits, q)
	}
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestStabilizerRunOnce_TickerAtOrAboveTargetSkips(t *testing.T) {
	st, mock := newTestStore(t)
	log := obslog.Noop()

	bot := &models.StabilizerBot{
		BotBase:     models.BotBase{ID: 2, UserID: 7, Symbol: "GCBUSDT", IsActive: true, IsRunning: true},
		TargetPrice: 100,
	}
	raw, err := json.Marshal(bot)
	require.NoError(t, err)
	mock.ExpectQuery(`SELECT data FROM stabilizer_bots WHERE id = \$1`).WithArgs(2).
		WillReturnRows(sqlmock.NewRows([]string{"data"}).AddRow(raw))
	expectUserRow(mock, 7, "secret-value")

	client := &fakeClient{ticker: &exchange.Ticker{Last: 100}}
	s := NewStabilizer(st, &fakeFactory{client}, ringlog.New(100), notifier.NewLogNotifier(log), clock.NewFake(time.Now()), log, testEncryptionKey)

	err = s.RunOnce(context.Background(), 2)
	require.NoError(t, err)
	require.Empty(t, client.placedQuote)
	require.NoError(t, mock.ExpectationsWereMet())
}
