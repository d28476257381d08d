package ringlog

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"tradebotengine/internal/models"
)

func TestRingLog_EvictsOldestWhenFull(t *testing.T) {
	r := New(3)
	r.Push(1, models.LevelInfo, "one", nil)
	r.Push(1, models.LevelInfo, "two", nil)
	r.Push(1, models.LevelInfo, "three", nil)
	r.Push(1, models.LevelInfo, "four", nil)

	snap := r.Snapshot(0)
	assert.Len(t, snap, 3)
	assert.Equal(t, "four", snap[0].Message)
	assert.Equal(t, "three", snap[1].Message)
	assert.Equal(t, "two", snap[2].Message)
}

func TestRingLog_SnapshotLimit(t *testing.T) {
	r := New(10)
	for i := 0; i < 5; i++ {
		r.Push(1, models.LevelInfo, "x", nil)
	}
	assert.Len(t, r.Snapshot(2), 2)
	assert.Equal(t, 5, r.Len())
}
