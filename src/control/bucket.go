package control

import "time"

// TokenBucket rate-limits relay-wearing transitions. Tokens refill
// continuously and are capped at the capacity; a forced consume always
// succeeds and may drive the balance negative, which delays later
// non-forced consumes until refill catches up.
type TokenBucket struct {
	capacity   float64
	refillRate float64 // tokens per second
	tokens     float64
	lastRefill time.Time
}

// NewTokenBucket creates a full bucket.
func NewTokenBucket(capacity, refillRate float64) *TokenBucket {
	return &TokenBucket{
		capacity:   capacity,
		refillRate: refillRate,
		tokens:     capacity,
	}
}

func (b *TokenBucket) refill(now time.Time) {
	if b.lastRefill.IsZero() {
		b.lastRefill = now
		return
	}
	elapsed := now.Sub(b.lastRefill).Seconds()
	if elapsed <= 0 {
		return
	}
	b.tokens = min(b.capacity, b.tokens+elapsed*b.refillRate)
	b.lastRefill = now
}

// Consume refills, then takes amount from the bucket. Without force it
// fails and leaves the balance untouched when insufficient tokens remain;
// with force it always succeeds.
func (b *TokenBucket) Consume(amount float64, force bool, now time.Time) bool {
	b.refill(now)
	if !force && b.tokens < amount {
		return false
	}
	b.tokens -= amount
	return true
}

// Tokens returns the current balance after refilling up to now.
func (b *TokenBucket) Tokens(now time.Time) float64 {
	b.refill(now)
	return b.tokens
}
