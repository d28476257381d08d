package store

import (
	"context"
	"database/sql"
	"encoding/json"

	"tradebotengine/internal/enginerr"
	"tradebotengine/internal/models"
)

// LogRepo persists ActivityLog entries for strategies that require
// auditability (stabilizer, liquidity); other strategies keep entries in
// RingLog only (spec §3, §4.2 insertLog).
type LogRepo struct {
	db *sql.DB
}

func (r *LogRepo) Insert(ctx context.Context, l *models.ActivityLog) error {
	data, err := json.Marshal(l.Data)
	if err != nil {
		return enginerr.Store(err)
	}
	query := `
		INSERT INTO bot_logs (bot_id, bot_kind, level, message, data, timestamp)
		VALUES ($1,$2,$3,$4,$5,$6)
		RETURNING id
	`
	return r.db.QueryRowContext(ctx, query, l.BotID, l.BotKind, l.Level, l.Message, data, l.Timestamp).Scan(&l.ID)
}

func (r *LogRepo) RecentForKind(ctx context.Context, kind models.BotKind, limit int) ([]models.ActivityLog, error) {
	if limit <= 0 {
		limit = 100
	}
	query := `
		SELECT id, bot_id, bot_kind, level, message, data, timestamp
		FROM bot_logs WHERE bot_kind = $1 ORDER BY timestamp DESC LIMIT $2
	`
	rows, err := r.db.QueryContext(ctx, query, kind, limit)
	if err != nil {
		return nil, enginerr.Store(err)
	}
	defer rows.Close()

	var out []models.ActivityLog
	for rows.Next() {
		var l models.ActivityLog
		var raw []byte
		if err := rows.Scan(&l.ID, &l.BotID, &l.BotKind, &l.Level, &l.Message, &raw, &l.Timestamp); err != nil {
			return nil, enginerr.Store(err)
		}
		if len(raw) > 0 {
			_ = json.Unmarshal(raw, &l.Data)
		}
		out = append(out, l)
	}
	return out, rows.Err()
}
