package store

import (
	"context"
	"database/sql"

	"tradebotengine/internal/enginerr"
	"tradebotengine/internal/models"
)

// TradeRepo appends immutable Trade records (spec §4.2 insertTrade). Rows
// are never updated or deleted once written.
type TradeRepo struct {
	db *sql.DB
}

func (r *TradeRepo) Insert(ctx context.Context, t *models.Trade) error {
	query := `
		INSERT INTO bot_trades
			(bot_id, bot_kind, user_id, symbol, side, type, price, quantity, order_id, status, action, response, timestamp, order_number, total_orders)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15)
		RETURNING id
	`
	return r.db.QueryRowContext(ctx, query,
		t.BotID, t.BotKind, t.UserID, t.Symbol, t.Side, t.Type, t.Price, t.Quantity,
		t.OrderID, t.Status, t.Action, t.Response, t.Timestamp, t.OrderNumber, t.TotalOrders,
	).Scan(&t.ID)
}

// RecentForBot returns the most recent trades for a bot, newest first —
// used by the status API and by strategies reconciling placed orders.
func (r *TradeRepo) RecentForBot(ctx context.Context, botID, limit int) ([]models.Trade, error) {
	if limit <= 0 {
		limit = 50
	}
	query := `
		SELECT id, bot_id, bot_kind, user_id, symbol, side, type, price, quantity, order_id, status, action, response, timestamp, order_number, total_orders
		FROM bot_trades WHERE bot_id = $1 ORDER BY timestamp DESC LIMIT $2
	`
	rows, err := r.db.QueryContext(ctx, query, botID, limit)
	if err != nil {
		return nil, enginerr.Store(err)
	}
	defer rows.Close()

	var out []models.Trade
	for rows.Next() {
		var t models.Trade
		if err := rows.Scan(&t.ID, &t.BotID, &t.BotKind, &t.UserID, &t.Symbol, &t.Side, &t.Type, &t.Price, &t.Quantity,
			&t.OrderID, &t.Status, &t.Action, &t.Response, &t.Timestamp, &t.OrderNumber, &t.TotalOrders); err != nil {
			return nil, enginerr.Store(err)
		}
		out = append(out, t)
	}
	return out, rows.Err()
}
