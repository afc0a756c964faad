package control

import (
	"fmt"
	"log"
	"math"
	"sync"
	"time"
)

// Mode is the operating mode of a zone.
type Mode string

const (
	ModeOff  Mode = "off"
	ModeHeat Mode = "heat"
)

// LoopConfig assembles everything needed to build a ControlLoop.
type LoopConfig struct {
	Heaters          []Heater
	CyclePeriod      time.Duration
	MinCycleDuration time.Duration

	MaxFloorTemp     float64
	ComfortOffset    float64
	SafetyHysteresis float64
	MaintainComfort  bool
	BoostMode        bool
	BoostTempDiff    float64

	BudgetCapacity   float64
	BudgetRefillRate float64 // tokens per second

	RoomPID  PIDGains
	FloorPID PIDGains
	Fusion   FusionTuning

	InitialTarget       float64
	InitialMode         Mode
	InitialToggleCounts map[string]int

	Logger *log.Logger
}

// StepInput is one tick's worth of raw inputs.
type StepInput struct {
	Now           time.Time
	FloorReadings []Reading
	RoomReadings  []Reading
	Power         Reading

	// Force marks a forced recomputation (setpoint, mode, or
	// configuration change): the veto hysteresis is bypassed and the
	// actuator cycle is relatched immediately.
	Force bool
}

// StepResult is the outcome of one control tick.
type StepResult struct {
	Active      bool
	FloorTemp   float64
	RoomTemp    float64
	RoomDemand  float64
	FloorDemand float64
	FinalDemand float64
	FloorTarget float64
	VetoActive  bool
}

// Diagnostics is a read-only snapshot of the loop's observable state,
// exposed to the host for sensors, the HTTP API, and metrics.
type Diagnostics struct {
	Active           bool
	Mode             Mode
	TargetTemp       float64
	FloorTemp        float64
	RoomTemp         float64
	FinalDemand      float64 // rounded to 0.1
	RoomDemand       float64
	FloorDemand      float64
	RoomIntegral     float64
	FloorIntegral    float64
	EffectiveLimit   float64
	VetoActive       bool
	BudgetTokens     float64
	ToggleCounts     map[string]int
	TotalToggleCount int
	RotationIndex    int
	PriorityOrder    []string
	TimeInCycle      time.Duration
	CyclePeriod      time.Duration
	MaintainComfort  bool
}

// ControlLoop is the free-standing control core for one heating zone. It
// owns the sensor fusion estimate, both PID loops, the safety veto gate
// and the heater shuffler, and serializes every tick behind one mutex so
// overlapping triggers can never interleave mutations.
type ControlLoop struct {
	mu sync.Mutex

	cfg      LoopConfig
	fusion   *Fusion
	dualPID  *DualPID
	veto     *VetoGate
	shuffler *Shuffler
	logger   *log.Logger

	mode            Mode
	targetTemp      float64
	maintainComfort bool

	active   bool
	lastStep time.Time
	lastDemand StepResult
}

// NewControlLoop validates the configuration and builds a loop. Missing
// heaters or obviously broken tuning are rejected here, before activation.
func NewControlLoop(cfg LoopConfig) (*ControlLoop, error) {
	if cfg.CyclePeriod <= 0 {
		return nil, fmt.Errorf("control: cycle period must be positive")
	}
	if cfg.MinCycleDuration < 0 || cfg.MinCycleDuration > cfg.CyclePeriod {
		return nil, fmt.Errorf("control: min cycle duration must be within [0, cycle period]")
	}
	if cfg.MaxFloorTemp <= 0 {
		return nil, fmt.Errorf("control: max floor temp must be positive")
	}

	logger := cfg.Logger
	if logger == nil {
		logger = log.Default()
	}

	shuffler, err := NewShuffler(cfg.Heaters, cfg.CyclePeriod, cfg.MinCycleDuration, cfg.InitialToggleCounts, logger)
	if err != nil {
		return nil, err
	}

	mode := cfg.InitialMode
	if mode == "" {
		mode = ModeOff
	}

	bucket := NewTokenBucket(cfg.BudgetCapacity, cfg.BudgetRefillRate)
	loop := &ControlLoop{
		cfg:             cfg,
		fusion:          NewFusion(cfg.Fusion),
		dualPID:         NewDualPID(NewPID(cfg.RoomPID, "room"), NewPID(cfg.FloorPID, "floor limiter")),
		veto:            NewVetoGate(cfg.MaxFloorTemp, cfg.SafetyHysteresis, bucket, logger),
		shuffler:        shuffler,
		logger:          logger,
		mode:            mode,
		targetTemp:      cfg.InitialTarget,
		maintainComfort: cfg.MaintainComfort,
	}
	return loop, nil
}

func (l *ControlLoop) controlConfig() Config {
	return Config{
		MaxFloorTemp:     l.cfg.MaxFloorTemp,
		ComfortOffset:    l.cfg.ComfortOffset,
		MaintainComfort:  l.maintainComfort,
		SafetyHysteresis: l.cfg.SafetyHysteresis,
		BoostMode:        l.cfg.BoostMode,
		BoostTempDiff:    l.cfg.BoostTempDiff,
	}
}

// Step runs one synchronous control tick: fusion predict/update, the
// safety veto gate, and the dual-PID demand calculation. It never blocks
// and never panics the tick loop; degraded inputs degrade toward zero
// demand.
func (l *ControlLoop) Step(in StepInput) StepResult {
	l.mu.Lock()
	defer l.mu.Unlock()

	dt := 0.0
	if !l.lastStep.IsZero() {
		dt = in.Now.Sub(l.lastStep).Seconds()
	}
	l.lastStep = in.Now

	power := 0.0
	if in.Power.Valid {
		power = in.Power.Value
	}
	l.fusion.Predict(dt, power)
	l.fusion.Update(in.FloorReadings, in.RoomReadings)

	hasFloor := anyValid(in.FloorReadings)
	hasRoom := anyValid(in.RoomReadings)
	floorTemp := l.fusion.FloorTemp()
	roomTemp := l.fusion.RoomTemp()

	if !l.active && hasFloor && hasRoom {
		l.active = true
		l.shuffler.ResetCycle()
		l.logger.Printf("control loop active: room %.1f, floor %.1f, target %.1f",
			roomTemp, floorTemp, l.targetTemp)
	}

	result := StepResult{
		Active:    l.active,
		FloorTemp: floorTemp,
		RoomTemp:  roomTemp,
	}

	if !l.active || l.mode == ModeOff {
		l.lastDemand = result
		return result
	}

	result.VetoActive = l.veto.Evaluate(
		Reading{Value: floorTemp, Valid: hasFloor},
		Reading{Value: roomTemp, Valid: hasRoom},
		in.Now,
		in.Force,
	)

	if !result.VetoActive {
		demand := l.dualPID.Calculate(roomTemp, l.targetTemp, floorTemp, l.controlConfig(), dt)
		result.RoomDemand = demand.RoomDemand
		result.FloorDemand = demand.FloorDemand
		result.FinalDemand = demand.FinalDemand
		result.FloorTarget = demand.FloorTarget
	}

	if in.Force {
		l.shuffler.ResetCycle()
	}

	l.lastDemand = result
	return result
}

// Commands produces the actuation schedule for now based on the demand
// from the most recent Step. It is the fixed-interval re-evaluation half
// of the tick model; issuing the returned commands is the caller's (and
// the only) IO boundary.
func (l *ControlLoop) Commands(now time.Time) ([]HeaterState, []HeaterCommand) {
	l.mu.Lock()
	defer l.mu.Unlock()

	demand := 0.0
	if l.active && l.mode == ModeHeat && !l.lastDemand.VetoActive {
		demand = l.lastDemand.FinalDemand
	}
	return l.shuffler.Apply(demand, now)
}

// ObserveRelayState feeds a host-reported relay state into the shuffler
// so failed or external toggles are reconciled on the next tick.
func (l *ControlLoop) ObserveRelayState(id string, on bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.shuffler.ObserveRelayState(id, on)
}

// SetTarget updates the room setpoint. The caller should follow with a
// forced Step so the change takes effect immediately.
func (l *ControlLoop) SetTarget(target float64) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.targetTemp = target
}

// SetMode switches the operating mode. The OFF to HEAT transition resets
// both PID loops so stale integral state cannot carry across.
func (l *ControlLoop) SetMode(mode Mode) error {
	if mode != ModeOff && mode != ModeHeat {
		return fmt.Errorf("control: unrecognized mode %q", mode)
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.mode == ModeOff && mode == ModeHeat {
		l.dualPID.Room.Reset()
		l.dualPID.Floor.Reset()
	}
	l.mode = mode
	return nil
}

// SetMaintainComfort toggles maintain-comfort mode at runtime.
func (l *ControlLoop) SetMaintainComfort(enabled bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.maintainComfort = enabled
}

// Mode returns the current operating mode.
func (l *ControlLoop) Mode() Mode {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.mode
}

// TargetTemp returns the current room setpoint.
func (l *ControlLoop) TargetTemp() float64 {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.targetTemp
}

// Diagnostics returns a snapshot of the loop's observable state.
func (l *ControlLoop) Diagnostics(now time.Time) Diagnostics {
	l.mu.Lock()
	defer l.mu.Unlock()

	timeInCycle, cyclePeriod := l.shuffler.CycleInfo(now)
	return Diagnostics{
		Active:           l.active,
		Mode:             l.mode,
		TargetTemp:       l.targetTemp,
		FloorTemp:        roundTenth(l.fusion.FloorTemp()),
		RoomTemp:         roundTenth(l.fusion.RoomTemp()),
		FinalDemand:      roundTenth(l.lastDemand.FinalDemand),
		RoomDemand:       roundTenth(l.lastDemand.RoomDemand),
		FloorDemand:      roundTenth(l.lastDemand.FloorDemand),
		RoomIntegral:     roundTenth(l.dualPID.Room.IntegralError()),
		FloorIntegral:    roundTenth(l.dualPID.Floor.IntegralError()),
		EffectiveLimit:   roundTenth(l.dualPID.FloorTarget(l.fusion.RoomTemp(), l.targetTemp, l.controlConfig())),
		VetoActive:       l.veto.Active(),
		BudgetTokens:     l.veto.BudgetTokens(now),
		ToggleCounts:     l.shuffler.ToggleCounts(),
		TotalToggleCount: l.shuffler.TotalToggleCount(),
		RotationIndex:    l.shuffler.RotationIndex(),
		PriorityOrder:    l.shuffler.PriorityOrder(),
		TimeInCycle:      timeInCycle,
		CyclePeriod:      cyclePeriod,
		MaintainComfort:  l.maintainComfort,
	}
}

func roundTenth(v float64) float64 {
	return math.Round(v*10) / 10
}
