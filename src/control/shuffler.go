package control

import (
	"fmt"
	"log"
	"time"
)

// Heater describes one heater circuit. Power ratings only need to share
// a unit; the cascade works on ratios.
type Heater struct {
	ID    string
	Power float64
	Name  string
}

// HeaterState is the desired state of one heater for the current
// application of demand. It is recomputed every application, never
// persisted.
type HeaterState struct {
	ID         string
	ShouldBeOn bool
	DutyCycle  float64 // 0-100, fractional only for the cycle's TPI heater
}

// HeaterCommand is an actuation request for a heater whose desired state
// differs from its last known state.
type HeaterCommand struct {
	ID string
	On bool
}

// Shuffler distributes one aggregate demand across heaters of
// heterogeneous power rating with a cascading power bucket: demand is
// converted to required power, heaters are filled in priority order, and
// at most one heater per cycle carries a fractional duty through the TPI
// actuator while all others stay binary for the whole cycle. The
// priority order rotates by one position each cycle to balance wear.
type Shuffler struct {
	heaters       []Heater
	totalCapacity float64
	tpi           *TPI
	logger        *log.Logger

	rotation     int
	lastStates   map[string]bool
	toggleCounts map[string]int
}

// NewShuffler validates the heater set and creates a shuffler.
// initialToggleCounts restores persisted per-heater toggle counters and
// may be nil.
func NewShuffler(heaters []Heater, cyclePeriod, minCycleDuration time.Duration, initialToggleCounts map[string]int, logger *log.Logger) (*Shuffler, error) {
	if len(heaters) == 0 {
		return nil, fmt.Errorf("shuffler: at least one heater must be configured")
	}
	if logger == nil {
		logger = log.Default()
	}

	seen := make(map[string]bool, len(heaters))
	total := 0.0
	for _, h := range heaters {
		if h.ID == "" {
			return nil, fmt.Errorf("shuffler: heater with empty id")
		}
		if seen[h.ID] {
			return nil, fmt.Errorf("shuffler: duplicate heater id %q", h.ID)
		}
		if h.Power <= 0 {
			return nil, fmt.Errorf("shuffler: heater %q has non-positive power %.1f", h.ID, h.Power)
		}
		seen[h.ID] = true
		total += h.Power
	}

	s := &Shuffler{
		heaters:       heaters,
		totalCapacity: total,
		tpi:           NewTPI(cyclePeriod, minCycleDuration),
		logger:        logger,
		lastStates:    make(map[string]bool, len(heaters)),
		toggleCounts:  make(map[string]int, len(heaters)),
	}
	for _, h := range heaters {
		s.lastStates[h.ID] = false
		s.toggleCounts[h.ID] = initialToggleCounts[h.ID]
	}
	return s, nil
}

// prioritized returns the heaters in the current rotation order.
func (s *Shuffler) prioritized() []Heater {
	n := len(s.heaters)
	if n <= 1 {
		return s.heaters
	}
	idx := s.rotation % n
	out := make([]Heater, 0, n)
	out = append(out, s.heaters[idx:]...)
	out = append(out, s.heaters[:idx]...)
	return out
}

// Apply distributes demand across the heaters and returns the desired
// state of every heater plus commands for those whose desired state
// differs from the last known state. Each command increments that
// heater's toggle counter.
func (s *Shuffler) Apply(demandPercent float64, now time.Time) ([]HeaterState, []HeaterCommand) {
	if demandPercent < 0 || demandPercent > 100 {
		s.logger.Printf("shuffler: demand %.1f%% outside range, clamping", demandPercent)
		demandPercent = clampDemand(demandPercent)
	}

	requiredPower := s.totalCapacity * demandPercent / 100.0

	desired := make(map[string]HeaterState, len(s.heaters))
	fracID := ""
	fracDuty := 0.0
	for _, h := range s.prioritized() {
		switch {
		case requiredPower >= h.Power:
			desired[h.ID] = HeaterState{ID: h.ID, ShouldBeOn: true, DutyCycle: 100.0}
			requiredPower -= h.Power
		case requiredPower > 0:
			// The single fractional heater for this cycle; its on/off
			// state follows the latched TPI window below.
			fracID = h.ID
			fracDuty = requiredPower / h.Power * 100.0
			desired[h.ID] = HeaterState{ID: h.ID, DutyCycle: fracDuty}
			requiredPower = 0
		default:
			desired[h.ID] = HeaterState{ID: h.ID}
		}
	}

	// Advance the shared cycle even with no fractional heater so the
	// rotation keeps stepping once per cycle boundary.
	prevRollovers := s.tpi.rollovers
	tpiOn := s.tpi.RelayState(fracDuty, now)
	if s.tpi.rollovers > prevRollovers {
		s.rotation++
	}
	if fracID != "" {
		st := desired[fracID]
		st.ShouldBeOn = tpiOn
		desired[fracID] = st
	}

	states := make([]HeaterState, 0, len(s.heaters))
	var commands []HeaterCommand
	for _, h := range s.heaters {
		st := desired[h.ID]
		states = append(states, st)
		if st.ShouldBeOn != s.lastStates[h.ID] {
			commands = append(commands, HeaterCommand{ID: h.ID, On: st.ShouldBeOn})
			s.lastStates[h.ID] = st.ShouldBeOn
			s.toggleCounts[h.ID]++
		}
	}
	return states, commands
}

// ObserveRelayState records a host-reported relay state so the next
// application diffs against reality rather than the last command. This
// is how a failed or lost actuation gets retried on a later tick.
func (s *Shuffler) ObserveRelayState(id string, on bool) {
	if _, ok := s.lastStates[id]; ok {
		s.lastStates[id] = on
	}
}

// ResetCycle forces the TPI window to relatch on the next application.
func (s *Shuffler) ResetCycle() {
	s.tpi.ResetCycle()
}

// ToggleCount returns the cumulative toggle count for one heater.
func (s *Shuffler) ToggleCount(id string) int {
	return s.toggleCounts[id]
}

// TotalToggleCount returns the cumulative toggle count across heaters.
func (s *Shuffler) TotalToggleCount() int {
	total := 0
	for _, c := range s.toggleCounts {
		total += c
	}
	return total
}

// ToggleCounts returns a copy of the per-heater toggle counters.
func (s *Shuffler) ToggleCounts() map[string]int {
	out := make(map[string]int, len(s.toggleCounts))
	for id, c := range s.toggleCounts {
		out[id] = c
	}
	return out
}

// RotationIndex returns how many cycle boundaries have rotated the
// priority order.
func (s *Shuffler) RotationIndex() int {
	return s.rotation
}

// PriorityOrder returns heater IDs in the current priority order.
func (s *Shuffler) PriorityOrder() []string {
	order := s.prioritized()
	ids := make([]string, len(order))
	for i, h := range order {
		ids[i] = h.ID
	}
	return ids
}

// CycleInfo exposes the shared TPI cycle position for diagnostics.
func (s *Shuffler) CycleInfo(now time.Time) (timeInCycle, cyclePeriod time.Duration) {
	return s.tpi.CycleInfo(now)
}

// TotalCapacity returns the summed power rating of all heaters.
func (s *Shuffler) TotalCapacity() float64 {
	return s.totalCapacity
}
