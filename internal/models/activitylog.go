package models

import "time"

// LogLevel classifies an ActivityLog / RingLog entry.
type LogLevel string

const (
	LevelInfo      LogLevel = "info"
	LevelSuccess   LogLevel = "success"
	LevelWarning   LogLevel = "warning"
	LevelError     LogLevel = "error"
	LevelTrade     LogLevel = "trade"
	LevelLiquidity LogLevel = "liquidity"
	LevelMonitor   LogLevel = "monitor"
	LevelCalculate LogLevel = "calculate"
)

// ActivityLog is a structured entry persisted for strategies that require
// auditability (stabilizer, liquidity). Every strategy also pushes the
// same entry into its RingLog regardless of persistence.
type ActivityLog struct {
	ID        int64                  `json:"id"`
	BotID     int                    `json:"botId"`
	BotKind   BotKind                `json:"botKind"`
	Level     LogLevel               `json:"level"`
	Message   string                 `json:"message"`
	Data      map[string]interface{} `json:"data,omitempty"`
	Timestamp time.Time              `json:"timestamp"`
}
