package models

import "time"

// PriceGapBot watches the spread between the last trade price and the best
// ask and fires a market buy once the gap widens past a threshold.
type PriceGapBot struct {
	BotBase

	OrderAmount     float64 `json:"orderAmount"`
	CooldownSeconds int     `json:"cooldownSeconds"`
	GapThreshold    float64 `json:"gapThreshold"`

	LastExecutedAt  *time.Time `json:"lastExecutedAt,omitempty"`
	ExecutionCount  int        `json:"executionCount"`
	TotalUSDTSpent  float64    `json:"totalUsdtSpent"`

	LastMarketPrice float64    `json:"lastMarketPrice"`
	LastBestAskPrice float64   `json:"lastBestAskPrice"`
	LastPriceGap    float64    `json:"lastPriceGap"`
}

func (b *PriceGapBot) Base() *BotBase { return &b.BotBase }
