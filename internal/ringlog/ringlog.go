// Package ringlog provides a bounded in-memory activity buffer shared
// between a BotRunner and the read-only status API (spec §4.3).
package ringlog

import (
	"sync"
	"time"

	"tradebotengine/internal/models"
)

// Entry is one structured activity record.
type Entry struct {
	BotID     int                    `json:"botId"`
	Level     models.LogLevel        `json:"level"`
	Message   string                 `json:"message"`
	Data      map[string]interface{} `json:"data,omitempty"`
	Timestamp time.Time              `json:"timestamp"`
}

// RingLog is a process-local, mutex-guarded ring of the last N entries.
// Inserts evict the oldest entry once full; Snapshot returns a copy so
// callers never see a buffer mutated mid-read.
type RingLog struct {
	mu      sync.Mutex
	entries []Entry
	head    int
	size    int
	cap     int
}

// New creates a RingLog with the given capacity. Spec §4.3 suggests
// 500-1000; callers size per strategy kind's expected log volume.
func New(capacity int) *RingLog {
	if capacity <= 0 {
		capacity = 500
	}
	return &RingLog{entries: make([]Entry, capacity), cap: capacity}
}

// Push inserts a new entry at the head, evicting the oldest if full.
func (r *RingLog) Push(botID int, level models.LogLevel, msg string, data map[string]interface{}) {
	r.mu.Lock()
	defer r.mu.Unlock()

	entry := Entry{BotID: botID, Level: level, Message: msg, Data: data, Timestamp: time.Now()}
	r.entries[r.head] = entry
	r.head = (r.head + 1) % r.cap
	if r.size < r.cap {
		r.size++
	}
}

// Snapshot returns the most recent limit entries, newest first. limit <= 0
// returns every held entry.
func (r *RingLog) Snapshot(limit int) []Entry {
	r.mu.Lock()
	defer r.mu.Unlock()

	if limit <= 0 || limit > r.size {
		limit = r.size
	}

	out := make([]Entry, 0, limit)
	idx := (r.head - 1 + r.cap) % r.cap
	for i := 0; i < limit; i++ {
		out = append(out, r.entries[idx])
		idx = (idx - 1 + r.cap) % r.cap
	}
	return out
}

// Len returns the number of entries currently held.
func (r *RingLog) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.size
}
