// Package store provides typed Postgres-backed persistence for bots,
// trades, logs, and users.
//
// Every bot kind's table is shaped the same way — a handful of indexed
// columns (id, user_id, is_active, is_running, timestamps) plus a JSONB
// "data" column holding the full document — so one generic Repo[T]
// implementation serves all six kinds instead of six hand-written,
// near-identical repositories.
package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"tradebotengine/internal/enginerr"
	"tradebotengine/internal/models"
)

// Repo is a generic document repository for one bot kind's table. T is
// the concrete bot document type (e.g. *models.ConditionalBot); it must
// implement models.BotDoc so the repo can read/write the shared indexed
// columns without knowing the kind-specific fields.
type Repo[T models.BotDoc] struct {
	db    *sql.DB
	table string
	newT  func() T
}

// NewRepo builds a Repo backed by table, using newT to allocate a fresh
// zero-value document before unmarshaling a row into it.
func NewRepo[T models.BotDoc](db *sql.DB, table string, newT func() T) *Repo[T] {
	return &Repo[T]{db: db, table: table, newT: newT}
}

// ListActive returns every bot in the table with isActive ∧ isRunning
// (spec §4.2 listActiveBots).
func (r *Repo[T]) ListActive(ctx context.Context) ([]T, error) {
	query := fmt.Sprintf(`SELECT data FROM %s WHERE is_active AND is_running ORDER BY id`, r.table)
	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, enginerr.Store(err)
	}
	defer rows.Close()

	var out []T
	for rows.Next() {
		var raw []byte
		if err := rows.Scan(&raw); err != nil {
			return nil, enginerr.Store(err)
		}
		doc := r.newT()
		if err := json.Unmarshal(raw, doc); err != nil {
			return nil, enginerr.Store(err)
		}
		out = append(out, doc)
	}
	if err := rows.Err(); err != nil {
		return nil, enginerr.Store(err)
	}
	return out, nil
}

// Get re-reads a single bot document by id (spec §4.2 getBot — used to
// avoid acting on a stale document under concurrent ticks).
func (r *Repo[T]) Get(ctx context.Context, id int) (T, error) {
	var zero T
	query := fmt.Sprintf(`SELECT data FROM %s WHERE id = $1`, r.table)
	var raw []byte
	if err := r.db.QueryRowContext(ctx, query, id).Scan(&raw); err != nil {
		if err == sql.ErrNoRows {
			return zero, enginerr.Store(fmt.Errorf("bot %d not found in %s", id, r.table))
		}
		return zero, enginerr.Store(err)
	}
	doc := r.newT()
	if err := json.Unmarshal(raw, doc); err != nil {
		return zero, enginerr.Store(err)
	}
	return doc, nil
}

// Save upserts the full document, refreshing the indexed columns from the
// document's BotBase.
func (r *Repo[T]) Save(ctx context.Context, bot T) error {
	base := bot.Base()
	data, err := json.Marshal(bot)
	if err != nil {
		return enginerr.Store(err)
	}

	query := fmt.Sprintf(`
		INSERT INTO %s (id, user_id, symbol, is_active, is_running, created_at, updated_at, last_checked_at, data)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		ON CONFLICT (id) DO UPDATE SET
			user_id = EXCLUDED.user_id,
			symbol = EXCLUDED.symbol,
			is_active = EXCLUDED.is_active,
			is_running = EXCLUDED.is_running,
			updated_at = EXCLUDED.updated_at,
			last_checked_at = EXCLUDED.last_checked_at,
			data = EXCLUDED.data
	`, r.table)

	_, err = r.db.ExecContext(ctx, query,
		base.ID, base.UserID, base.Symbol, base.IsActive, base.IsRunning,
		base.CreatedAt, base.UpdatedAt, base.LastCheckedAt, data,
	)
	if err != nil {
		return enginerr.Store(err)
	}
	return nil
}

// Mutate performs a read-modify-write update under a row lock so
// concurrent ticks never clobber each other's stat increments (spec §4.2
// updateBotStats, "All writes are expected to be atomic at the document
// level").
func (r *Repo[T]) Mutate(ctx context.Context, id int, fn func(bot T) error) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return enginerr.Store(err)
	}
	defer tx.Rollback()

	query := fmt.Sprintf(`SELECT data FROM %s WHERE id = $1 FOR UPDATE`, r.table)
	var raw []byte
	if err := tx.QueryRowContext(ctx, query, id).Scan(&raw); err != nil {
		return enginerr.Store(err)
	}

	doc := r.newT()
	if err := json.Unmarshal(raw, doc); err != nil {
		return enginerr.Store(err)
	}

	if err := fn(doc); err != nil {
		return err
	}

	base := doc.Base()
	data, err := json.Marshal(doc)
	if err != nil {
		return enginerr.Store(err)
	}

	updateQuery := fmt.Sprintf(`
		UPDATE %s SET is_active=$1, is_running=$2, updated_at=$3, last_checked_at=$4, data=$5
		WHERE id=$6
	`, r.table)
	if _, err := tx.ExecContext(ctx, updateQuery, base.IsActive, base.IsRunning, base.UpdatedAt, base.LastCheckedAt, data, id); err != nil {
		return enginerr.Store(err)
	}

	if err := tx.Commit(); err != nil {
		return enginerr.Store(err)
	}
	return nil
}

// Delete removes the bot document and its logs (spec §4.2 deleteBot).
func (r *Repo[T]) Delete(ctx context.Context, id int) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return enginerr.Store(err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, fmt.Sprintf(`DELETE FROM %s WHERE id=$1`, r.table), id); err != nil {
		return enginerr.Store(err)
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM bot_logs WHERE bot_id=$1`, id); err != nil {
		return enginerr.Store(err)
	}

	if err := tx.Commit(); err != nil {
		return enginerr.Store(err)
	}
	return nil
}
