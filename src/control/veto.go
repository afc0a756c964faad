package control

import (
	"log"
	"time"
)

// VetoGate is the hard safety interlock on absolute floor temperature.
// It is independent of the comfort logic: the limit is the fixed maximum
// floor temperature, never the dynamic PID target. While vetoed, all
// demand is forced to zero upstream regardless of the PID result.
//
// Engaging the veto is always permitted (it protects hardware) but still
// consumes toggle budget; releasing it is gated on the token bucket, so a
// floor that chatters around the limit cannot wear out the relays.
type VetoGate struct {
	maxFloorTemp float64
	hysteresis   float64
	bucket       *TokenBucket
	logger       *log.Logger

	active bool
}

// NewVetoGate creates a gate in the ALLOWED state with a full budget.
func NewVetoGate(maxFloorTemp, hysteresis float64, bucket *TokenBucket, logger *log.Logger) *VetoGate {
	if logger == nil {
		logger = log.Default()
	}
	return &VetoGate{
		maxFloorTemp: maxFloorTemp,
		hysteresis:   hysteresis,
		bucket:       bucket,
		logger:       logger,
	}
}

// Evaluate runs the transition rule for one tick and returns whether the
// veto is active. bypassHysteresis is set only on forced recomputation
// (for example a user setpoint change) and makes the decision immediate
// instead of holding inside the hysteresis band.
func (g *VetoGate) Evaluate(floorTemp, roomTemp Reading, now time.Time, bypassHysteresis bool) bool {
	if !floorTemp.Valid || !roomTemp.Valid {
		// Fail safe: no trustworthy reading this tick, no heating.
		if !g.active {
			g.logger.Printf("SAFETY VETO: missing sensor data (floor valid: %v, room valid: %v), heating disabled",
				floorTemp.Valid, roomTemp.Valid)
		}
		g.active = true
		return true
	}

	shouldVeto := g.active
	switch {
	case floorTemp.Value >= g.maxFloorTemp:
		shouldVeto = true
	case !bypassHysteresis && floorTemp.Value > g.maxFloorTemp-g.hysteresis:
		// Hysteresis band: hold the previous decision.
	default:
		shouldVeto = false
	}

	if shouldVeto == g.active {
		return g.active
	}

	if shouldVeto {
		// Engaging: always allowed, but it counts against the budget.
		g.bucket.Consume(1.0, true, now)
		g.logger.Printf("SAFETY VETO ENGAGED: floor %.1f >= limit %.1f, heating off",
			floorTemp.Value, g.maxFloorTemp)
		g.active = true
		return true
	}

	// Releasing: subject to the toggle budget.
	if g.bucket.Consume(1.0, false, now) {
		g.logger.Printf("SAFETY VETO RELEASED: floor %.1f < %.1f, heating allowed",
			floorTemp.Value, g.maxFloorTemp-g.hysteresis)
		g.active = false
		return false
	}

	g.logger.Printf("SAFETY VETO RELEASE DELAYED: floor %.1f is safe but toggle budget exhausted",
		floorTemp.Value)
	return true
}

// Active returns the current veto state without evaluating.
func (g *VetoGate) Active() bool { return g.active }

// BudgetTokens returns the current toggle budget for diagnostics.
func (g *VetoGate) BudgetTokens(now time.Time) float64 {
	return g.bucket.Tokens(now)
}
