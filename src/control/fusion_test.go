package control

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestFusion_ConvergesOnSteadyReadings(t *testing.T) {
	f := NewFusion(DefaultFusionTuning())

	for n := 0; n < 50; n++ {
		f.Predict(60.0, 0.0)
		f.Update([]Reading{NewReading(26.0)}, []Reading{NewReading(21.5)})
	}

	assert.InDelta(t, 26.0, f.FloorTemp(), 0.2)
	assert.InDelta(t, 21.5, f.RoomTemp(), 0.2)
}

func TestFusion_AllAbsentTickIsPredictOnly(t *testing.T) {
	f := NewFusion(DefaultFusionTuning())

	// Converge on known temperatures first
	for n := 0; n < 50; n++ {
		f.Predict(60.0, 0.0)
		f.Update([]Reading{NewReading(25.0)}, []Reading{NewReading(21.0)})
	}

	// With every reading absent, the estimate must equal the predicted
	// value exactly: no measurement update, nothing fabricated
	f.Predict(60.0, 0.0)
	floorPredicted := f.FloorTemp()
	roomPredicted := f.RoomTemp()

	f.Update([]Reading{{}, {}}, []Reading{{}})

	assert.Equal(t, floorPredicted, f.FloorTemp())
	assert.Equal(t, roomPredicted, f.RoomTemp())
}

func TestFusion_PartialDropoutUsesPresentSensorsOnly(t *testing.T) {
	f := NewFusion(DefaultFusionTuning())

	// Two floor sensors, one room sensor
	for n := 0; n < 50; n++ {
		f.Predict(60.0, 0.0)
		f.Update(
			[]Reading{NewReading(25.0), NewReading(25.4)},
			[]Reading{NewReading(21.0)},
		)
	}
	assert.InDelta(t, 25.2, f.FloorTemp(), 0.3, "duplicate sensors fuse toward their consensus")

	// One floor sensor drops out; the other keeps correcting the estimate
	for n := 0; n < 50; n++ {
		f.Predict(60.0, 0.0)
		f.Update([]Reading{NewReading(25.0), {}}, []Reading{NewReading(21.0)})
	}
	assert.InDelta(t, 25.0, f.FloorTemp(), 0.2)
}

func TestFusion_PowerDrivesFloorFasterThanRoom(t *testing.T) {
	f := NewFusion(DefaultFusionTuning())
	floorStart := f.FloorTemp()
	roomStart := f.RoomTemp()

	// Sustained heater power, no measurements: the model alone must show
	// the floor warming ahead of the room
	for n := 0; n < 30; n++ {
		f.Predict(60.0, 2000.0)
	}

	floorRise := f.FloorTemp() - floorStart
	roomRise := f.RoomTemp() - roomStart
	assert.Greater(t, floorRise, 0.0)
	assert.Greater(t, floorRise, roomRise*5, "floor gain dominates room gain")
}

func TestFusion_VelocityDampingPreventsRunaway(t *testing.T) {
	tuning := DefaultFusionTuning()
	f := NewFusion(tuning)

	// Long sustained power input; the damped velocity must approach a
	// bound instead of accumulating without limit
	for n := 0; n < 5000; n++ {
		f.Predict(60.0, 2000.0)
	}
	rateEarly := f.FloorRate()

	for n := 0; n < 1000; n++ {
		f.Predict(60.0, 2000.0)
	}
	rateLate := f.FloorRate()

	// Terminal velocity: gain*dt*power / (1-damping)
	bound := tuning.FloorPowerGain * 60.0 * 2000.0 / (1.0 - tuning.VelocityDamping)
	assert.LessOrEqual(t, rateLate, bound*1.01)
	assert.InDelta(t, rateEarly, rateLate, bound*0.01, "velocity settles rather than growing")
}

func TestFusion_NonFiniteReadingIsAbsent(t *testing.T) {
	nan := NewReading(0.0 / zeroForTest)
	assert.False(t, nan.Valid)

	inf := NewReading(1.0 / zeroForTest)
	assert.False(t, inf.Valid)

	ok := NewReading(21.5)
	assert.True(t, ok.Valid)
	assert.Equal(t, 21.5, ok.Value)
}

// zeroForTest defeats the compiler's constant division-by-zero check.
var zeroForTest = 0.0
