package control

// PIDGains holds the three tuning gains for one PID loop.
type PIDGains struct {
	Kp float64
	Ki float64
	Kd float64
}

// PID is a proportional-integral-derivative loop producing a 0-100%
// heating demand. The derivative acts on the measurement rather than the
// error, so a setpoint step does not kick the output. The integral is
// clamped to [0, 100/Ki]: it can saturate the output on its own but never
// accumulates a cooling debt.
type PID struct {
	gains PIDGains
	name  string

	integralError float64
	lastPV        float64
	hasLastPV     bool
}

// NewPID creates a PID loop. The name is only used for diagnostics.
func NewPID(gains PIDGains, name string) *PID {
	return &PID{gains: gains, name: name}
}

// Calculate runs one PID step and returns the demand percentage.
// dt is the elapsed time in seconds since the previous step.
func (p *PID) Calculate(setpoint, processVariable, dt float64) float64 {
	err := setpoint - processVariable

	pTerm := p.gains.Kp * err

	p.integralError += err * dt
	maxIntegral := 0.0
	if p.gains.Ki > 0 {
		maxIntegral = 100.0 / p.gains.Ki
	}
	p.integralError = max(0.0, min(maxIntegral, p.integralError))
	iTerm := p.gains.Ki * p.integralError

	dTerm := 0.0
	if p.hasLastPV && dt > 0 {
		dTerm = -p.gains.Kd * (processVariable - p.lastPV) / dt
	}
	p.lastPV = processVariable
	p.hasLastPV = true

	return clampDemand(pTerm + iTerm + dTerm)
}

// PauseIntegration zeroes the accumulated integral. The coordinator calls
// this on whichever loop's output is currently not the binding constraint,
// so a suppressed loop cannot wind up.
func (p *PID) PauseIntegration() {
	p.integralError = 0.0
}

// IntegralError returns the accumulated integral for diagnostics.
func (p *PID) IntegralError() float64 {
	return p.integralError
}

// Name returns the loop's diagnostic name.
func (p *PID) Name() string {
	return p.name
}

// Reset clears all loop state, used on the OFF to HEAT mode transition.
func (p *PID) Reset() {
	p.integralError = 0.0
	p.lastPV = 0.0
	p.hasLastPV = false
}
