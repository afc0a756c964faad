package control

import "time"

// TPI converts a 0-100% demand into a binary relay schedule over fixed
// cycles. The on-duration is latched when a cycle starts: between latch
// points the relay state depends only on the cycle position, so a noisy
// or fast-changing demand signal cannot chatter the relay. Demand is
// re-sampled at the next cycle boundary or on an explicit ResetCycle.
type TPI struct {
	cyclePeriod      time.Duration
	minCycleDuration time.Duration

	cycleStart time.Time // zero = no cycle latched
	latchedOn  time.Duration
	rollovers  int
}

// NewTPI creates an actuator with the given cycle period and the
// minimum on/off window used for relay protection.
func NewTPI(cyclePeriod, minCycleDuration time.Duration) *TPI {
	return &TPI{
		cyclePeriod:      cyclePeriod,
		minCycleDuration: minCycleDuration,
	}
}

// latchOnDuration converts a demand percentage into this cycle's on
// window. Windows shorter than the minimum round down to fully off;
// windows leaving less than the minimum off-time round up to fully on.
func latchOnDuration(demandPercent float64, cyclePeriod, minCycleDuration time.Duration) time.Duration {
	on := time.Duration(clampDemand(demandPercent) / 100.0 * float64(cyclePeriod))
	if on < minCycleDuration {
		return 0
	}
	if on > cyclePeriod-minCycleDuration {
		return cyclePeriod
	}
	return on
}

// RelayState returns whether the relay should be on at now. On the first
// call, at each cycle boundary, and after ResetCycle it starts a new
// cycle and latches the on-duration from the current demand; otherwise
// the demand argument is ignored until the next latch point.
func (t *TPI) RelayState(demandPercent float64, now time.Time) bool {
	if t.cycleStart.IsZero() {
		t.cycleStart = now
		t.latchedOn = latchOnDuration(demandPercent, t.cyclePeriod, t.minCycleDuration)
	} else if now.Sub(t.cycleStart) >= t.cyclePeriod {
		t.cycleStart = now
		t.latchedOn = latchOnDuration(demandPercent, t.cyclePeriod, t.minCycleDuration)
		t.rollovers++
	}

	return now.Sub(t.cycleStart) < t.latchedOn
}

// ResetCycle forces an immediate relatch on the next RelayState call,
// used on forced recomputation for responsiveness. Calling it with no
// cycle pending is a no-op.
func (t *TPI) ResetCycle() {
	t.cycleStart = time.Time{}
	t.latchedOn = 0
}

// CycleInfo returns the position within the current cycle and the cycle
// period, for diagnostics.
func (t *TPI) CycleInfo(now time.Time) (timeInCycle, cyclePeriod time.Duration) {
	if t.cycleStart.IsZero() {
		return 0, t.cyclePeriod
	}
	elapsed := now.Sub(t.cycleStart)
	if elapsed >= t.cyclePeriod {
		elapsed %= t.cyclePeriod
	}
	return elapsed, t.cyclePeriod
}

// LatchedOnDuration returns the on window latched for the current cycle.
func (t *TPI) LatchedOnDuration() time.Duration {
	return t.latchedOn
}
