package models

import "time"

// StabilizerBot consumes the ask side of the book up to a target price by
// splitting a computed USDT budget into four serial market buys.
type StabilizerBot struct {
	BotBase

	TargetPrice float64 `json:"targetPrice"`

	ExecutionCount   int     `json:"executionCount"`
	TotalUSDTSpent   float64 `json:"totalUsdtSpent"`
	SuccessfulOrders int     `json:"successfulOrders"`
	FailedOrders     int     `json:"failedOrders"`

	LastExecutedAt *time.Time `json:"lastExecutedAt,omitempty"`
}

func (b *StabilizerBot) Base() *BotBase { return &b.BotBase }
