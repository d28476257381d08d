package store

import (
	"context"

	"tradebotengine/internal/enginerr"
)

// CompareAndSetOrdersPlaced flips buy_wall_bots.ordersPlaced from false to
// true atomically at the database level, so two engine instances (or two
// overlapping ticks) racing to place the initial wall can't both succeed
// (spec §4.5.4, §5 "Cross-process safety").
//
// Returns true iff this call performed the transition.
func (s *Store) CompareAndSetOrdersPlaced(ctx context.Context, botID int) (bool, error) {
	query := `
		UPDATE buy_wall_bots
		SET data = jsonb_set(data, '{ordersPlaced}', 'true'::jsonb)
		WHERE id = $1 AND (data->>'ordersPlaced')::boolean = false
	`
	res, err := s.db.ExecContext(ctx, query, botID)
	if err != nil {
		return false, enginerr.Store(err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return false, enginerr.Store(err)
	}
	return affected > 0, nil
}
