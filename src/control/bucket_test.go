package control

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestTokenBucket_ConsumeAndRefill(t *testing.T) {
	start := time.Date(2025, 1, 1, 12, 0, 0, 0, time.UTC)

	// Capacity 2, one token per 100 seconds
	b := NewTokenBucket(2.0, 0.01)

	assert.Equal(t, 2.0, b.Tokens(start))

	assert.True(t, b.Consume(1.0, false, start))
	assert.Equal(t, 1.0, b.Tokens(start))

	assert.True(t, b.Consume(1.0, false, start))
	assert.Equal(t, 0.0, b.Tokens(start))

	// Empty: non-forced consume fails and leaves the balance alone
	assert.False(t, b.Consume(1.0, false, start))
	assert.Equal(t, 0.0, b.Tokens(start))

	// Forced consume always succeeds and goes negative
	assert.True(t, b.Consume(1.0, true, start))
	assert.Equal(t, -1.0, b.Tokens(start))

	// 100 seconds restores one token
	assert.Equal(t, 0.0, b.Tokens(start.Add(100*time.Second)))

	// Another 300 seconds would add three, capped at capacity
	assert.Equal(t, 2.0, b.Tokens(start.Add(400*time.Second)))
}

func TestTokenBucket_RefillNeverExceedsCapacity(t *testing.T) {
	start := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	b := NewTokenBucket(2.0, 1.0)

	assert.Equal(t, 2.0, b.Tokens(start))
	assert.Equal(t, 2.0, b.Tokens(start.Add(time.Hour)))
}

func TestTokenBucket_RefillIsContinuous(t *testing.T) {
	start := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	b := NewTokenBucket(2.0, 1.0/300.0)

	b.Consume(2.0, false, start)

	// Half a token after 150 seconds
	assert.InDelta(t, 0.5, b.Tokens(start.Add(150*time.Second)), 1e-9)
}
