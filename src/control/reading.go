// Package control implements the heating control core: sensor fusion,
// dual-PID demand calculation, the safety veto gate, and time-proportional
// relay actuation. It performs no IO; the host adapter feeds it readings
// and applies the relay commands it produces.
package control

import "math"

// Reading is an optional sensor sample. The zero value is an absent
// reading; absence is explicit, never a sentinel number.
type Reading struct {
	Value float64
	Valid bool
}

// NewReading wraps a raw sample. Non-finite values (NaN, ±Inf) produce
// an absent reading so they can never leak into the state estimate.
func NewReading(v float64) Reading {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return Reading{}
	}
	return Reading{Value: v, Valid: true}
}

// anyValid reports whether at least one reading in the slice is present.
func anyValid(readings []Reading) bool {
	for _, r := range readings {
		if r.Valid {
			return true
		}
	}
	return false
}

// clampDemand limits a demand percentage to [0, 100].
func clampDemand(demand float64) float64 {
	return max(0.0, min(100.0, demand))
}
