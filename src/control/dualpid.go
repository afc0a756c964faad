package control

// Config is the per-tick control configuration snapshot. It is passed by
// value so a calculation can never observe a partially applied change.
type Config struct {
	// MaxFloorTemp is the absolute floor temperature limit. The safety
	// veto gate uses it directly; the dual-PID target stays a hysteresis
	// margin below it.
	MaxFloorTemp float64

	// ComfortOffset is how far above the room temperature the floor is
	// allowed to run.
	ComfortOffset float64

	// MaintainComfort keeps the floor itself warm once the room has
	// reached its setpoint, with the floor PID driving the system.
	MaintainComfort bool

	// SafetyHysteresis is the band below MaxFloorTemp in which the veto
	// gate holds its previous decision.
	SafetyHysteresis float64

	// BoostMode relaxes the comfort offset while the room is far from
	// its setpoint to accelerate large setpoint changes.
	BoostMode     bool
	BoostTempDiff float64
}

// DemandResult carries the outcome of one dual-PID calculation.
type DemandResult struct {
	RoomDemand  float64
	FloorDemand float64
	FinalDemand float64
	FloorTarget float64
}

// DualPID reconciles the room comfort loop against the floor limiter
// loop. The final demand is the min-selection of the two, except in
// maintain-comfort mode with the room at setpoint, where the floor loop
// drives alone. Whichever loop is suppressed has its integration paused
// so it cannot wind up while not in control.
type DualPID struct {
	Room  *PID
	Floor *PID
}

// NewDualPID creates a coordinator over a room loop and a floor limiter.
func NewDualPID(room, floor *PID) *DualPID {
	return &DualPID{Room: room, Floor: floor}
}

// FloorTarget computes the dynamic floor-temperature setpoint.
func (d *DualPID) FloorTarget(roomTemp, targetRoom float64, cfg Config) float64 {
	var floorTarget float64
	if cfg.MaintainComfort {
		// Once the room reaches its setpoint the target tracks the
		// current room temperature, letting the floor relax instead of
		// being held artificially warm against a frozen setpoint.
		if targetRoom > roomTemp {
			floorTarget = targetRoom + cfg.ComfortOffset
		} else {
			floorTarget = roomTemp + cfg.ComfortOffset
		}
	} else {
		floorTarget = roomTemp + cfg.ComfortOffset

		if cfg.BoostMode {
			tempError := targetRoom - roomTemp
			if tempError >= cfg.BoostTempDiff {
				relaxed := cfg.ComfortOffset + tempError
				floorTarget = roomTemp + min(relaxed, cfg.ComfortOffset*2.5)
			}
		}
	}

	// Absolute guard: stay a hysteresis margin under the hard limit so
	// the target never drives the floor into the veto band.
	if floorTarget >= cfg.MaxFloorTemp {
		return cfg.MaxFloorTemp - cfg.SafetyHysteresis
	}
	return floorTarget
}

// Calculate runs both loops and combines their outputs.
func (d *DualPID) Calculate(roomTemp, targetRoom, floorTemp float64, cfg Config, dt float64) DemandResult {
	floorTarget := d.FloorTarget(roomTemp, targetRoom, cfg)

	roomDemand := d.Room.Calculate(targetRoom, roomTemp, dt)
	floorDemand := d.Floor.Calculate(floorTarget, floorTemp, dt)

	var finalDemand float64
	if cfg.MaintainComfort && roomTemp >= targetRoom {
		// Floor loop drives; the room loop's output is ignored.
		finalDemand = floorDemand
		d.Room.PauseIntegration()
	} else {
		finalDemand = min(roomDemand, floorDemand)
		if finalDemand < roomDemand {
			// Floor limiter is the binding constraint.
			d.Room.PauseIntegration()
		}
	}

	return DemandResult{
		RoomDemand:  roomDemand,
		FloorDemand: floorDemand,
		FinalDemand: clampDemand(finalDemand),
		FloorTarget: floorTarget,
	}
}
