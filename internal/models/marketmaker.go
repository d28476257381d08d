package models

import "time"

// MarketMakerBot quotes a symmetric, oscillating ladder around the market
// price until the configured target price is reached.
type MarketMakerBot struct {
	BotBase

	TargetPrice      float64 `json:"targetPrice"`
	SpreadPercent    float64 `json:"spreadPercent"`
	InitialOrderSize float64 `json:"initialOrderSize"`
	CurrentOrderSize float64 `json:"currentOrderSize"`
	IsDecreasing     bool    `json:"isDecreasing"`

	ExecutionCount int        `json:"executionCount"`
	TargetReached  bool       `json:"targetReached"`
	LastExecutedAt *time.Time `json:"lastExecutedAt,omitempty"`
}

func (b *MarketMakerBot) Base() *BotBase { return &b.BotBase }
