package domain

import (
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
)

func TestClampFuture(t *testing.T) {
	now := time.Date(2026, 8, 28, 12, 0, 0, 0, time.UTC)
	SetClock(clockwork.NewFakeClockAt(now))
	t.Cleanup(func() { SetClock(nil) })

	r := Reading{Timestamp: now.Add(45 * time.Minute)}
	assert.True(t, r.ClampFuture())
	assert.True(t, r.Timestamp.Equal(now))

	r = Reading{Timestamp: now.Add(-time.Minute)}
	assert.False(t, r.ClampFuture())
	assert.True(t, r.Timestamp.Equal(now.Add(-time.Minute)))

	// Exactly "now" is not in the future.
	r = Reading{Timestamp: now}
	assert.False(t, r.ClampFuture())
}
