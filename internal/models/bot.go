package models

import "time"

// BotKind identifies which strategy state machine a bot document belongs to.
type BotKind string

const (
	KindConditional BotKind = "conditional"
	KindStabilizer  BotKind = "stabilizer"
	KindMarketMaker BotKind = "market_maker"
	KindBuyWall     BotKind = "buy_wall"
	KindPriceGap    BotKind = "price_gap"
	KindLiquidity   BotKind = "liquidity"
)

// AllKinds lists every strategy kind the engine schedules, in the order
// the Engine starts their runners.
var AllKinds = []BotKind{
	KindConditional,
	KindStabilizer,
	KindMarketMaker,
	KindBuyWall,
	KindPriceGap,
	KindLiquidity,
}

// BotBase holds the attributes shared by every bot kind (spec §3).
// Per-kind documents embed this and add their own config/runtime fields.
type BotBase struct {
	ID            int        `json:"id"`
	UserID        int        `json:"userId"`
	Name          string     `json:"name"`
	Symbol        string     `json:"symbol"`
	IsActive      bool       `json:"isActive"`
	IsRunning     bool       `json:"isRunning"`
	CreatedAt     time.Time  `json:"createdAt"`
	UpdatedAt     time.Time  `json:"updatedAt"`
	LastCheckedAt *time.Time `json:"lastCheckedAt,omitempty"`
}

// Eligible reports whether the bot is schedulable: isActive ∧ isRunning (spec §3 invariant).
func (b *BotBase) Eligible() bool {
	return b.IsActive && b.IsRunning
}

// BotDoc is implemented by every per-kind bot document so the generic
// store (internal/store) can read and mutate the attributes every
// strategy and the scheduler need, without knowing the concrete kind.
type BotDoc interface {
	Base() *BotBase
}
