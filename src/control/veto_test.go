package control

import (
	"io"
	"log"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func quietLogger() *log.Logger {
	return log.New(io.Discard, "", 0)
}

func newTestGate(capacity, refillRate float64) *VetoGate {
	return NewVetoGate(28.0, 1.0, NewTokenBucket(capacity, refillRate), quietLogger())
}

func TestVetoGate_EngagesAtHardLimit(t *testing.T) {
	g := newTestGate(2.0, 1.0/300.0)
	now := time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)

	assert.False(t, g.Evaluate(NewReading(25.0), NewReading(21.0), now, false))
	assert.True(t, g.Evaluate(NewReading(28.0), NewReading(21.0), now, false))
	assert.True(t, g.Active())
}

func TestVetoGate_MissingReadingFailsSafe(t *testing.T) {
	g := newTestGate(2.0, 1.0/300.0)
	now := time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)

	assert.True(t, g.Evaluate(Reading{}, NewReading(21.0), now, false), "absent floor reading vetoes")
	assert.True(t, g.Evaluate(NewReading(25.0), Reading{}, now, false), "absent room reading vetoes")

	// Fail-safe engagement does not spend toggle budget
	assert.Equal(t, 2.0, g.BudgetTokens(now))
}

func TestVetoGate_HysteresisBandHoldsPreviousState(t *testing.T) {
	g := newTestGate(10.0, 1.0)
	now := time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)

	// Engage at the limit
	assert.True(t, g.Evaluate(NewReading(28.0), NewReading(21.0), now, false))

	// Inside the band (27..28): stays vetoed
	assert.True(t, g.Evaluate(NewReading(27.5), NewReading(21.0), now, false))

	// Below the band: releases
	assert.False(t, g.Evaluate(NewReading(26.9), NewReading(21.0), now, false))

	// Back inside the band: stays allowed, no chatter
	assert.False(t, g.Evaluate(NewReading(27.5), NewReading(21.0), now, false))
}

func TestVetoGate_BypassHysteresisDecidesImmediately(t *testing.T) {
	g := newTestGate(10.0, 1.0)
	now := time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)

	assert.True(t, g.Evaluate(NewReading(28.0), NewReading(21.0), now, false))

	// 27.5 is inside the band, but a forced recompute decides now
	assert.False(t, g.Evaluate(NewReading(27.5), NewReading(21.0), now, true))
}

func TestVetoGate_ReleaseBudget(t *testing.T) {
	// Capacity 2 tokens, one token per 300 seconds
	g := newTestGate(2.0, 1.0/300.0)
	at := time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)

	// Engage at 29: always permitted, forced consume 2 -> 1
	assert.True(t, g.Evaluate(NewReading(29.0), NewReading(21.0), at, false))
	assert.Equal(t, 1.0, g.BudgetTokens(at))

	// Release at 26 (below 28-1): consume succeeds, 1 -> 0
	assert.False(t, g.Evaluate(NewReading(26.0), NewReading(21.0), at, false))
	assert.Equal(t, 0.0, g.BudgetTokens(at))

	// Re-engage at 29: forced, tokens go negative, 0 -> -1
	assert.True(t, g.Evaluate(NewReading(29.0), NewReading(21.0), at, false))
	assert.Equal(t, -1.0, g.BudgetTokens(at))

	// Thermally safe release is denied while the budget is in deficit
	assert.True(t, g.Evaluate(NewReading(26.0), NewReading(21.0), at, false),
		"release delayed: insufficient tokens")
	assert.True(t, g.Active())

	// 600 seconds later the refill has restored -1 -> 1 and the release
	// goes through
	later := at.Add(600 * time.Second)
	assert.False(t, g.Evaluate(NewReading(26.0), NewReading(21.0), later, false))
	assert.False(t, g.Active())
}
