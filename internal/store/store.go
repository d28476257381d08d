package store

import (
	"context"
	"database/sql"

	_ "github.com/lib/pq"

	"tradebotengine/internal/models"
)

// Store aggregates every typed repository the engine needs: one Repo per
// bot kind, plus users, trades, and logs (spec §4.2, §2 "Store").
type Store struct {
	db *sql.DB

	Conditional *Repo[*models.ConditionalBot]
	Stabilizer  *Repo[*models.StabilizerBot]
	MarketMaker *Repo[*models.MarketMakerBot]
	BuyWall     *Repo[*models.BuyWallBot]
	PriceGap    *Repo[*models.PriceGapBot]
	Liquidity   *Repo[*models.LiquidityBot]

	Users  *UserRepo
	Trades *TradeRepo
	Logs   *LogRepo
}

// Open connects to Postgres via lib/pq and wires every repository.
func Open(dsn string) (*Store, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, err
	}
	if err := db.Ping(); err != nil {
		return nil, err
	}
	return New(db), nil
}

// New wires every repository over an already-open *sql.DB, letting tests
// inject a sqlmock connection.
func New(db *sql.DB) *Store {
	return &Store{
		db: db,

		Conditional: NewRepo(db, "conditional_bots", func() *models.ConditionalBot { return &models.ConditionalBot{} }),
		Stabilizer:  NewRepo(db, "stabilizer_bots", func() *models.StabilizerBot { return &models.StabilizerBot{} }),
		MarketMaker: NewRepo(db, "market_maker_bots", func() *models.MarketMakerBot { return &models.MarketMakerBot{} }),
		BuyWall:     NewRepo(db, "buy_wall_bots", func() *models.BuyWallBot { return &models.BuyWallBot{} }),
		PriceGap:    NewRepo(db, "price_gap_bots", func() *models.PriceGapBot { return &models.PriceGapBot{} }),
		Liquidity:   NewRepo(db, "liquidity_bots", func() *models.LiquidityBot { return &models.LiquidityBot{} }),

		Users:  &UserRepo{db: db},
		Trades: &TradeRepo{db: db},
		Logs:   &LogRepo{db: db},
	}
}

// Close releases the underlying connection pool.
func (s *Store) Close() error {
	return s.db.Close()
}

// Ping verifies database connectivity.
func (s *Store) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}
