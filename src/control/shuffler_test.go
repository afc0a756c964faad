package control

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestShuffler(t *testing.T) *Shuffler {
	t.Helper()
	s, err := NewShuffler(
		[]Heater{
			{ID: "switch.heater_1", Power: 2000},
			{ID: "switch.heater_2", Power: 1000},
			{ID: "switch.heater_3", Power: 500},
		},
		900*time.Second, 60*time.Second, nil, quietLogger(),
	)
	require.NoError(t, err)
	return s
}

func stateByID(states []HeaterState, id string) HeaterState {
	for _, st := range states {
		if st.ID == id {
			return st
		}
	}
	return HeaterState{}
}

func TestNewShuffler_RejectsBrokenConfiguration(t *testing.T) {
	_, err := NewShuffler(nil, 900*time.Second, 60*time.Second, nil, quietLogger())
	assert.Error(t, err, "zero heaters is a configuration error")

	_, err = NewShuffler(
		[]Heater{{ID: "a", Power: 100}, {ID: "a", Power: 100}},
		900*time.Second, 60*time.Second, nil, quietLogger(),
	)
	assert.Error(t, err, "duplicate heater ids rejected")

	_, err = NewShuffler(
		[]Heater{{ID: "a", Power: 0}},
		900*time.Second, 60*time.Second, nil, quietLogger(),
	)
	assert.Error(t, err, "non-positive power rejected")
}

func TestShuffler_CascadingPowerBucket(t *testing.T) {
	s := newTestShuffler(t)
	now := time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)

	// 80% of 3500W = 2800W: heater 1 fully on, heater 2 carries the
	// 800W remainder as the TPI heater, heater 3 off
	states, _ := s.Apply(80.0, now)

	h1 := stateByID(states, "switch.heater_1")
	assert.True(t, h1.ShouldBeOn)
	assert.Equal(t, 100.0, h1.DutyCycle)

	h2 := stateByID(states, "switch.heater_2")
	assert.InDelta(t, 80.0, h2.DutyCycle, 1e-9)
	assert.True(t, h2.ShouldBeOn, "80% duty latches a 720s window, on at cycle start")

	h3 := stateByID(states, "switch.heater_3")
	assert.False(t, h3.ShouldBeOn)
	assert.Equal(t, 0.0, h3.DutyCycle)
}

func TestShuffler_FullAndZeroDemand(t *testing.T) {
	s := newTestShuffler(t)
	now := time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)

	states, _ := s.Apply(100.0, now)
	for _, st := range states {
		assert.True(t, st.ShouldBeOn)
		assert.Equal(t, 100.0, st.DutyCycle)
	}

	states, _ = s.Apply(0.0, now.Add(time.Second))
	for _, st := range states {
		assert.False(t, st.ShouldBeOn)
		assert.Equal(t, 0.0, st.DutyCycle)
	}
}

func TestShuffler_AtMostOneFractionalHeater(t *testing.T) {
	s := newTestShuffler(t)
	now := time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)

	for _, demand := range []float64{10, 25, 40, 55, 70, 85, 99} {
		states, _ := s.Apply(demand, now)
		fractional := 0
		for _, st := range states {
			if st.DutyCycle > 0 && st.DutyCycle < 100 {
				fractional++
			}
		}
		assert.LessOrEqual(t, fractional, 1, "demand %.0f%%", demand)
		now = now.Add(time.Second)
	}
}

func TestShuffler_CommandsOnlyOnStateChange(t *testing.T) {
	s := newTestShuffler(t)
	now := time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)

	_, commands := s.Apply(100.0, now)
	assert.Len(t, commands, 3, "all three heaters turn on")

	// Same demand again: nothing to do
	_, commands = s.Apply(100.0, now.Add(time.Second))
	assert.Empty(t, commands)

	_, commands = s.Apply(0.0, now.Add(2*time.Second))
	assert.Len(t, commands, 3)

	assert.Equal(t, 2, s.ToggleCount("switch.heater_1"))
	assert.Equal(t, 6, s.TotalToggleCount())
}

func TestShuffler_ObserveRelayStateReconciles(t *testing.T) {
	s := newTestShuffler(t)
	now := time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)

	_, commands := s.Apply(100.0, now)
	require.Len(t, commands, 3)

	// Host reports heater 1 actually failed to switch on: the next
	// application re-commands it
	s.ObserveRelayState("switch.heater_1", false)
	_, commands = s.Apply(100.0, now.Add(time.Second))
	require.Len(t, commands, 1)
	assert.Equal(t, "switch.heater_1", commands[0].ID)
	assert.True(t, commands[0].On)
}

func TestShuffler_RotationAdvancesOncePerCycle(t *testing.T) {
	s := newTestShuffler(t)
	start := time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)
	original := s.PriorityOrder()

	s.Apply(50.0, start)
	assert.Equal(t, 0, s.RotationIndex(), "first cycle start is not a rotation")

	// Many applications within one cycle: no rotation
	for i := 1; i < 10; i++ {
		s.Apply(50.0, start.Add(time.Duration(i)*time.Second))
	}
	assert.Equal(t, 0, s.RotationIndex())

	// Each cycle boundary rotates exactly once
	s.Apply(50.0, start.Add(900*time.Second))
	assert.Equal(t, 1, s.RotationIndex())
	assert.Equal(t, []string{"switch.heater_2", "switch.heater_3", "switch.heater_1"}, s.PriorityOrder())

	s.Apply(50.0, start.Add(1800*time.Second))
	s.Apply(50.0, start.Add(2700*time.Second))
	assert.Equal(t, 3, s.RotationIndex())

	// After heater-count rotations the order is back to the original
	assert.Equal(t, original, s.PriorityOrder())
}

func TestShuffler_RotationAdvancesEvenAtBinaryDemand(t *testing.T) {
	s := newTestShuffler(t)
	start := time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)

	// 100% demand has no fractional heater, but the cycle still rolls
	s.Apply(100.0, start)
	s.Apply(100.0, start.Add(900*time.Second))
	assert.Equal(t, 1, s.RotationIndex())
}

func TestShuffler_RestoredToggleCounts(t *testing.T) {
	s, err := NewShuffler(
		[]Heater{{ID: "switch.heater_1", Power: 1000}},
		900*time.Second, 60*time.Second,
		map[string]int{"switch.heater_1": 42}, quietLogger(),
	)
	require.NoError(t, err)

	assert.Equal(t, 42, s.ToggleCount("switch.heater_1"))

	now := time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)
	s.Apply(100.0, now)
	assert.Equal(t, 43, s.ToggleCount("switch.heater_1"), "counter is cumulative, never resets")
}

func TestShuffler_OutOfRangeDemandClamped(t *testing.T) {
	s := newTestShuffler(t)
	now := time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)

	states, _ := s.Apply(140.0, now)
	for _, st := range states {
		assert.True(t, st.ShouldBeOn)
	}

	states, _ = s.Apply(-10.0, now.Add(time.Second))
	for _, st := range states {
		assert.False(t, st.ShouldBeOn)
	}
}
