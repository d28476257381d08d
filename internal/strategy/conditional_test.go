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
	"tradebotengine/internal/store"
	"tradebotengine/pkg/crypto"
)

var testEncryptionKey = []byte("01234567890123456789012345678901")[:32]

func newTestStore(t *testing.T) (*store.Store, sqlmock.Sqlmock) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return store.New(db), mock
}

func expectUserRow(mock sqlmock.Sqlmock, userID int, secret string) {
	enc, err := crypto.Encrypt(secret, testEncryptionKey)
	if err != nil {
		panic(err)
	}
	mock.ExpectQuery(`SELECT id, exchange, api_key, api_secret_encrypted, bot_enabled FROM users WHERE id = \$1`).
		WithArgs(userID).
		WillReturnRows(sqlmock.NewRows([]string{"id", "exchange", "api_key", "api_secret_encrypted", "bot_enabled"}).
			AddRow(userID, "ch", "key-1", enc, true))
}

func TestConditionalRunOnce_TriggersMarketBuy(t *testing.T) {
	st, mock := newTestStore(t)
	log := obslog.Noop()

	bot := &models.ConditionalBot{
		BotBase: models.BotBase{ID: 1, UserID: 7, Symbol: "GCBUSDT", IsActive: true, IsRunning: true},
		ConditionOperator: models.OperatorAbove, ConditionValue: 10,
		ActionType: models.ActionMarketBuy, ActionField: models.ActionFieldUSDTValue, ActionValue: 50,
	}
	raw, err := json.Marshal(bot)
	require.NoError(t, err)
	mock.ExpectQuery(`SELECT data FROM conditional_bots WHERE id = \$1`).WithArgs(1).
		WillReturnRows(sqlmock.NewRows([]string{"data"}).AddRow(raw))

	expectUserRow(mock, 7, "secret-value")

	mock.ExpectQuery(`INSERT INTO bot_trades`).WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(1))

	mock.ExpectBegin()
	mock.ExpectQuery(`SELECT data FROM conditional_bots WHERE id = \$1 FOR UPDATE`).WithArgs(1).
		WillReturnRows(sqlmock.NewRows([]string{"data"}).AddRow(raw))
	mock.ExpectExec(`UPDATE conditional_bots SET`).WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	client := &fakeClient{ticker: &exchange.Ticker{Last: 20}}
	c := NewConditional(st, &fakeFactory{client}, ringlog.New(100), notifier.NewLogNotifier(log), clock.NewFake(time.Now()), log, testEncryptionKey)

	err = c.RunOnce(context.Background(), 1)
	require.NoError(t, err)
	require.Len(t, client.placedQuote, 1)
	require.Equal(t, 50.0, client.placedQuote[0])
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestConditionalRunOnce_ConditionNotMetSkips(t *testing.T) {
	st, mock := newTestStore(t)
	log := obslog.Noop()

	bot := &models.ConditionalBot{
		BotBase:           models.BotBase{ID: 2, UserID: 7, Symbol: "GCBUSDT", IsActive: true, IsRunning: true},
		ConditionOperator: models.OperatorAbove, ConditionValue: 100,
		ActionType: models.ActionMarketBuy, ActionValue: 50,
	}
	raw, err := json.Marshal(bot)
	require.NoError(t, err)
	mock.ExpectQuery(`SELECT data FROM conditional_bots WHERE id = \$1`).WithArgs(2).
		WillReturnRows(sqlmock.NewRows([]string{"data"}).AddRow(raw))
	expectUserRow(mock, 7, "secret-value")

	client := &fakeClient{ticker: &exchange.Ticker{Last: 20}}
	c := NewConditional(st, &fakeFactory{client}, ringlog.New(100), notifier.NewLogNotifier(log), clock.NewFake(time.Now()), log, testEncryptionKey)

	err = c.RunOnce(context.Background(), 2)
	require.NoError(t, err)
	require.Empty(t, client.placedQuote)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestConditionalRunOnce_CooldownSkips(t *testing.T) {
	st, mock := newTestStore(t)
	log := obslog.Noop()

	last := time.Now().Add(-5 * time.Second)
	bot := &models.ConditionalBot{
		BotBase:           models.BotBase{ID: 3, UserID: 7, Symbol: "GCBUSDT", IsActive: true, IsRunning: true},
		ConditionOperator: models.OperatorAbove, ConditionValue: 10,
		ActionType: models.ActionMarketBuy, ActionValue: 50,
		CooldownSeconds: 60, LastTriggered: &last,
	}
	raw, err := json.Marshal(bot)
	require.NoError(t, err)
	mock.ExpectQuery(`SELECT data FROM conditional_bots WHERE id = \$1`).WithArgs(3).
		WillReturnRows(sqlmock.NewRows([]string{"data"}).AddRow(raw))

	client := &fakeClient{ticker: &exchange.Ticker{Last: 20}}
	c := NewConditional(st, &fakeFactory{client}, ringlog.New(100), notifier.NewLogNotifier(log), clock.NewFake(time.Now()), log, testEncryptionKey)

	err = c.RunOnce(context.Background(), 3)
	require.NoError(t, err)
	require.Empty(t, client.placedQuote)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestEvaluateCondition(t *testing.T) {
	require.True(t, evaluateCondition(models.OperatorAbove, 11, 10))
	require.False(t, evaluateCondition(models.OperatorAbove, 9, 10))
	require.True(t, evaluateCondition(models.OperatorBelow, 9, 10))
	require.True(t, evaluateCondition(models.OperatorEqual, 10, 10))
	require.True(t, evaluateCondition(models.OperatorEqual, 5, 0))
	require.False(t, evaluateCondition(models.OperatorEqual, 0, 0))
}
