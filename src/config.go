package main

import (
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/hearthward/floorctl/src/control"
)

// Duration is a time.Duration that unmarshals from YAML strings like
// "900s" or "15m".
type Duration time.Duration

// UnmarshalYAML implements yaml.Unmarshaler.
func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	var s string
	if err := value.Decode(&s); err != nil {
		return err
	}
	parsed, err := time.ParseDuration(s)
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", s, err)
	}
	*d = Duration(parsed)
	return nil
}

// Std converts back to time.Duration.
func (d Duration) Std() time.Duration {
	return time.Duration(d)
}

// HeaterConfig describes one heater circuit in the zone file.
type HeaterConfig struct {
	ID    string  `yaml:"id"`
	Name  string  `yaml:"name"`
	Power float64 `yaml:"power"`

	// StateTopic carries the relay's reported on/off state, used to
	// diff commands against reality and to retry failed actuations.
	StateTopic string `yaml:"state_topic"`

	// GPIOPin switches the heater to the local GPIO backend instead of
	// a Home Assistant switch entity.
	GPIOPin   *int `yaml:"gpio_pin"`
	ActiveLow bool `yaml:"active_low"`
}

// TuningConfig holds the control tuning. Zero values fall back to the
// defaults below.
type TuningConfig struct {
	MaxFloorTemp     float64 `yaml:"max_floor_temp"`
	ComfortOffset    float64 `yaml:"comfort_offset"`
	SafetyHysteresis float64 `yaml:"safety_hysteresis"`
	MaintainComfort  bool    `yaml:"maintain_comfort"`
	BoostMode        bool    `yaml:"boost_mode"`
	BoostTempDiff    float64 `yaml:"boost_temp_diff"`

	CyclePeriod      Duration `yaml:"cycle_period"`
	MinCycleDuration Duration `yaml:"min_cycle_duration"`

	BudgetCapacity     float64  `yaml:"budget_capacity"`
	BudgetRefillPeriod Duration `yaml:"budget_refill_period"`

	RoomPID  PIDGainsConfig `yaml:"room_pid"`
	FloorPID PIDGainsConfig `yaml:"floor_pid"`
}

// PIDGainsConfig is the YAML shape of one PID's gains.
type PIDGainsConfig struct {
	Kp float64 `yaml:"kp"`
	Ki float64 `yaml:"ki"`
	Kd float64 `yaml:"kd"`
}

// ZoneConfig is the full zone file.
type ZoneConfig struct {
	Name string `yaml:"name"`

	FloorSensorTopics []string `yaml:"floor_sensors"`
	RoomSensorTopics  []string `yaml:"room_sensors"`
	PowerTopic        string   `yaml:"power_sensor"`

	Heaters []HeaterConfig `yaml:"heaters"`

	Tuning TuningConfig `yaml:"tuning"`

	// SensorTimeout expires a silent sensor into an absent reading.
	SensorTimeout Duration `yaml:"sensor_timeout"`

	// KeepAlive re-runs a full control step even with no sensor
	// changes. Zero disables.
	KeepAlive Duration `yaml:"keep_alive"`

	// GPIOChip names the chip for heaters with a gpio_pin.
	GPIOChip string `yaml:"gpio_chip"`

	InitialTarget float64 `yaml:"initial_target"`
}

// Default tuning, matching a typical electric radiant floor install.
const (
	defaultMaxFloorTemp     = 28.0
	defaultComfortOffset    = 5.0
	defaultSafetyHysteresis = 0.25
	defaultBoostTempDiff    = 1.5
	defaultCyclePeriod      = 900 * time.Second
	defaultMinCycleDuration = 60 * time.Second
	defaultBudgetCapacity   = 2.0
	defaultBudgetRefill     = 300 * time.Second
	defaultSensorTimeout    = 120 * time.Second
	defaultInitialTarget    = 21.0
	defaultGPIOChip         = "gpiochip0"
)

var (
	defaultRoomPID  = PIDGainsConfig{Kp: 80.0, Ki: 2.0, Kd: 15.0}
	defaultFloorPID = PIDGainsConfig{Kp: 20.0, Ki: 0.5, Kd: 10.0}
)

// LoadZoneConfig reads, defaults, and validates a zone file.
func LoadZoneConfig(path string) (*ZoneConfig, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read zone config: %w", err)
	}

	var cfg ZoneConfig
	if err := yaml.Unmarshal(raw, &cfg); err != nil {
		return nil, fmt.Errorf("parse zone config: %w", err)
	}

	cfg.applyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *ZoneConfig) applyDefaults() {
	t := &c.Tuning
	if t.MaxFloorTemp == 0 {
		t.MaxFloorTemp = defaultMaxFloorTemp
	}
	if t.ComfortOffset == 0 {
		t.ComfortOffset = defaultComfortOffset
	}
	if t.SafetyHysteresis == 0 {
		t.SafetyHysteresis = defaultSafetyHysteresis
	}
	if t.BoostTempDiff == 0 {
		t.BoostTempDiff = defaultBoostTempDiff
	}
	if t.CyclePeriod == 0 {
		t.CyclePeriod = Duration(defaultCyclePeriod)
	}
	if t.MinCycleDuration == 0 {
		t.MinCycleDuration = Duration(defaultMinCycleDuration)
	}
	if t.BudgetCapacity == 0 {
		t.BudgetCapacity = defaultBudgetCapacity
	}
	if t.BudgetRefillPeriod == 0 {
		t.BudgetRefillPeriod = Duration(defaultBudgetRefill)
	}
	if t.RoomPID == (PIDGainsConfig{}) {
		t.RoomPID = defaultRoomPID
	}
	if t.FloorPID == (PIDGainsConfig{}) {
		t.FloorPID = defaultFloorPID
	}

	if c.SensorTimeout == 0 {
		c.SensorTimeout = Duration(defaultSensorTimeout)
	}
	if c.GPIOChip == "" {
		c.GPIOChip = defaultGPIOChip
	}
	if c.InitialTarget == 0 {
		c.InitialTarget = defaultInitialTarget
	}
}

// Validate rejects configurations the control loop could not run with.
func (c *ZoneConfig) Validate() error {
	if c.Name == "" {
		return fmt.Errorf("zone config: name is required")
	}
	if len(c.FloorSensorTopics) == 0 {
		return fmt.Errorf("zone config: at least one floor sensor is required")
	}
	if len(c.RoomSensorTopics) == 0 {
		return fmt.Errorf("zone config: at least one room sensor is required")
	}
	if len(c.Heaters) == 0 {
		return fmt.Errorf("zone config: at least one heater is required")
	}
	for _, h := range c.Heaters {
		if h.ID == "" {
			return fmt.Errorf("zone config: heater with empty id")
		}
		if h.Power <= 0 {
			return fmt.Errorf("zone config: heater %s has non-positive power", h.ID)
		}
	}
	if c.Tuning.MinCycleDuration > c.Tuning.CyclePeriod {
		return fmt.Errorf("zone config: min_cycle_duration exceeds cycle_period")
	}
	return nil
}

// Slug derives the MQTT-safe zone identifier from the name.
func (c *ZoneConfig) Slug() string {
	return strings.ReplaceAll(strings.ToLower(c.Name), " ", "_")
}

// SensorTopics returns every topic the zone needs subscribed: sensors,
// heater state topics, and the power sensor.
func (c *ZoneConfig) SensorTopics() []string {
	var topics []string //nolint:prealloc // small slice, not worth preallocating
	topics = append(topics, c.FloorSensorTopics...)
	topics = append(topics, c.RoomSensorTopics...)
	if c.PowerTopic != "" {
		topics = append(topics, c.PowerTopic)
	}
	for _, h := range c.Heaters {
		if h.StateTopic != "" {
			topics = append(topics, h.StateTopic)
		}
	}
	return topics
}

// GPIOPins maps heaters with a gpio_pin to relay pins.
func (c *ZoneConfig) GPIOPins() []HeaterConfig {
	var pinned []HeaterConfig
	for _, h := range c.Heaters {
		if h.GPIOPin != nil {
			pinned = append(pinned, h)
		}
	}
	return pinned
}

// LoopConfig converts the zone file into the control core's config.
// Persisted state (target, mode, toggle counts) is layered on by the
// caller after restore.
func (c *ZoneConfig) LoopConfig() control.LoopConfig {
	heaters := make([]control.Heater, 0, len(c.Heaters))
	for _, h := range c.Heaters {
		heaters = append(heaters, control.Heater{ID: h.ID, Power: h.Power, Name: h.Name})
	}

	t := c.Tuning
	return control.LoopConfig{
		Heaters:          heaters,
		CyclePeriod:      t.CyclePeriod.Std(),
		MinCycleDuration: t.MinCycleDuration.Std(),
		MaxFloorTemp:     t.MaxFloorTemp,
		ComfortOffset:    t.ComfortOffset,
		SafetyHysteresis: t.SafetyHysteresis,
		MaintainComfort:  t.MaintainComfort,
		BoostMode:        t.BoostMode,
		BoostTempDiff:    t.BoostTempDiff,
		BudgetCapacity:   t.BudgetCapacity,
		BudgetRefillRate: 1.0 / t.BudgetRefillPeriod.Std().Seconds(),
		RoomPID:          control.PIDGains{Kp: t.RoomPID.Kp, Ki: t.RoomPID.Ki, Kd: t.RoomPID.Kd},
		FloorPID:         control.PIDGains{Kp: t.FloorPID.Kp, Ki: t.FloorPID.Ki, Kd: t.FloorPID.Kd},
		Fusion:           control.DefaultFusionTuning(),
		InitialTarget:    c.InitialTarget,
		InitialMode:      control.ModeOff,
	}
}
