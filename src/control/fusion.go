package control

// FusionTuning holds the noise and input-gain parameters for the sensor
// fusion estimator. Lower power gains give a slower build-up from heater
// power, lower process variance makes the estimate stiffer against spikes,
// higher measurement variance increases immunity to sensor noise.
type FusionTuning struct {
	// Power input gains. The floor reacts first and much faster than the
	// room, so the floor gain is two orders of magnitude larger.
	FloorPowerGain float64
	RoomPowerGain  float64

	// Process noise variance per axis.
	FloorProcessVar float64
	RoomProcessVar  float64

	// Measurement noise variance per sensor class. Floor probes sit in
	// screed or under boards and pick up contact noise, so they are
	// trusted less than room sensors.
	FloorMeasVar float64
	RoomMeasVar  float64

	// VelocityDamping multiplies the velocity component each predict step.
	// Values slightly below 1 bleed off accumulated velocity so sustained
	// power input cannot launch the estimate ("rocket effect").
	VelocityDamping float64
}

// DefaultFusionTuning returns the tuning used for radiant floor zones.
func DefaultFusionTuning() FusionTuning {
	return FusionTuning{
		FloorPowerGain:  0.00001,
		RoomPowerGain:   0.000001,
		FloorProcessVar: 0.0001,
		RoomProcessVar:  0.00001,
		FloorMeasVar:    0.5,
		RoomMeasVar:     0.25,
		VelocityDamping: 0.999,
	}
}

// fusionAxis is one temperature/rate pair with its 2x2 covariance.
// The floor and room axes are decoupled in the transition model, so each
// is a small closed-form Kalman block instead of one dense 4x4 filter.
type fusionAxis struct {
	temp float64
	rate float64

	// Symmetric covariance: [[p00, p01], [p01, p11]].
	p00, p01, p11 float64
}

// predict propagates the axis through dt seconds with power as the
// control input, using a damped constant-velocity model.
func (a *fusionAxis) predict(dt, power, gain, processVar, damping float64) {
	// x' = F x + B u with F = [[1, dt], [0, d]], B = [g*dt^2/2, g*dt].
	a.temp += dt*a.rate + 0.5*gain*dt*dt*power
	a.rate = damping*a.rate + gain*dt*power

	// P' = F P F^T + Q, Q is discrete white noise for a 2-state model.
	p00 := a.p00 + 2*dt*a.p01 + dt*dt*a.p11
	p01 := damping * (a.p01 + dt*a.p11)
	p11 := damping * damping * a.p11

	dt2 := dt * dt
	a.p00 = p00 + processVar*dt2*dt2/4
	a.p01 = p01 + processVar*dt2*dt/2
	a.p11 = p11 + processVar*dt2
}

// update folds one measurement of the temperature component into the axis.
func (a *fusionAxis) update(z, measVar float64) {
	// H = [1, 0]; scalar innovation update.
	innovation := z - a.temp
	s := a.p00 + measVar
	if s <= 0 {
		return
	}
	k0 := a.p00 / s
	k1 := a.p01 / s

	a.temp += k0 * innovation
	a.rate += k1 * innovation

	a.p11 -= k1 * a.p01
	a.p01 = (1 - k0) * a.p01
	a.p00 = (1 - k0) * a.p00
}

// Fusion estimates floor and room temperature plus their rates of change
// from any number of floor/room sensors and the aggregate heater power.
// Duplicate sensors are fused rather than pre-averaged so each sensor's
// noise class is respected, and a sensor that drops out for a tick simply
// contributes nothing.
type Fusion struct {
	tuning FusionTuning
	floor  fusionAxis
	room   fusionAxis
}

// NewFusion creates an estimator starting from a mild indoor prior with
// enough initial uncertainty to converge quickly onto the first readings.
func NewFusion(tuning FusionTuning) *Fusion {
	return &Fusion{
		tuning: tuning,
		floor:  fusionAxis{temp: 20.0, p00: 5.0, p11: 5.0},
		room:   fusionAxis{temp: 20.0, p00: 5.0, p11: 5.0},
	}
}

// Predict propagates both axes through dt seconds of heater power input.
func (f *Fusion) Predict(dt, power float64) {
	if dt <= 0 {
		return
	}
	f.floor.predict(dt, power, f.tuning.FloorPowerGain, f.tuning.FloorProcessVar, f.tuning.VelocityDamping)
	f.room.predict(dt, power, f.tuning.RoomPowerGain, f.tuning.RoomProcessVar, f.tuning.VelocityDamping)
}

// Update folds the readings present this tick into the estimate, applied
// sequentially per valid reading. Absent readings contribute nothing; with
// zero valid readings the state is left at its predicted value.
func (f *Fusion) Update(floorReadings, roomReadings []Reading) {
	for _, r := range floorReadings {
		if r.Valid {
			f.floor.update(r.Value, f.tuning.FloorMeasVar)
		}
	}
	for _, r := range roomReadings {
		if r.Valid {
			f.room.update(r.Value, f.tuning.RoomMeasVar)
		}
	}
}

// FloorTemp returns the fused floor temperature.
func (f *Fusion) FloorTemp() float64 { return f.floor.temp }

// RoomTemp returns the fused room temperature.
func (f *Fusion) RoomTemp() float64 { return f.room.temp }

// FloorRate returns the estimated floor temperature rate of change in
// degrees per second.
func (f *Fusion) FloorRate() float64 { return f.floor.rate }

// RoomRate returns the estimated room temperature rate of change.
func (f *Fusion) RoomRate() float64 { return f.room.rate }
