package main

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeZoneFile(t *testing.T, contents string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "zone.yaml")
	require.NoError(t, os.WriteFile(path, []byte(contents), 0o600))
	return path
}

const minimalZoneYAML = `
name: Living Room
floor_sensors:
  - homeassistant/sensor/floor_temp_1/state
room_sensors:
  - homeassistant/sensor/room_temp/state
heaters:
  - id: switch.heater_1
    power: 2000
    state_topic: homeassistant/switch/heater_1/state
`

func TestLoadZoneConfig_AppliesDefaults(t *testing.T) {
	cfg, err := LoadZoneConfig(writeZoneFile(t, minimalZoneYAML))
	require.NoError(t, err)

	assert.Equal(t, "Living Room", cfg.Name)
	assert.Equal(t, "living_room", cfg.Slug())
	assert.Equal(t, 28.0, cfg.Tuning.MaxFloorTemp)
	assert.Equal(t, 5.0, cfg.Tuning.ComfortOffset)
	assert.Equal(t, 0.25, cfg.Tuning.SafetyHysteresis)
	assert.Equal(t, 900*time.Second, cfg.Tuning.CyclePeriod.Std())
	assert.Equal(t, 60*time.Second, cfg.Tuning.MinCycleDuration.Std())
	assert.Equal(t, 2.0, cfg.Tuning.BudgetCapacity)
	assert.Equal(t, 80.0, cfg.Tuning.RoomPID.Kp)
	assert.Equal(t, 0.5, cfg.Tuning.FloorPID.Ki)
	assert.Equal(t, 120*time.Second, cfg.SensorTimeout.Std())
	assert.Equal(t, time.Duration(0), cfg.KeepAlive.Std())
	assert.False(t, cfg.Tuning.MaintainComfort)
}

func TestLoadZoneConfig_ParsesDurationsAndOverrides(t *testing.T) {
	cfg, err := LoadZoneConfig(writeZoneFile(t, `
name: Bathroom
floor_sensors: [homeassistant/sensor/bath_floor/state]
room_sensors: [homeassistant/sensor/bath_room/state]
power_sensor: homeassistant/sensor/bath_power/state
heaters:
  - id: switch.bath_heater
    power: 800
    gpio_pin: 17
    active_low: true
tuning:
  max_floor_temp: 30
  cycle_period: 10m
  min_cycle_duration: 30s
  budget_refill_period: 5m
  room_pid: {kp: 60, ki: 1, kd: 5}
keep_alive: 5m
sensor_timeout: 90s
`))
	require.NoError(t, err)

	assert.Equal(t, 30.0, cfg.Tuning.MaxFloorTemp)
	assert.Equal(t, 10*time.Minute, cfg.Tuning.CyclePeriod.Std())
	assert.Equal(t, 30*time.Second, cfg.Tuning.MinCycleDuration.Std())
	assert.Equal(t, 5*time.Minute, cfg.Tuning.BudgetRefillPeriod.Std())
	assert.Equal(t, 60.0, cfg.Tuning.RoomPID.Kp)
	// Floor PID untouched by a partial tuning block
	assert.Equal(t, 20.0, cfg.Tuning.FloorPID.Kp)
	assert.Equal(t, 5*time.Minute, cfg.KeepAlive.Std())
	assert.Equal(t, 90*time.Second, cfg.SensorTimeout.Std())

	pinned := cfg.GPIOPins()
	require.Len(t, pinned, 1)
	assert.Equal(t, 17, *pinned[0].GPIOPin)
	assert.True(t, pinned[0].ActiveLow)
}

func TestLoadZoneConfig_Rejections(t *testing.T) {
	cases := []struct {
		name string
		yaml string
	}{
		{"missing name", `
floor_sensors: [a]
room_sensors: [b]
heaters: [{id: h, power: 100}]
`},
		{"no floor sensors", `
name: Z
room_sensors: [b]
heaters: [{id: h, power: 100}]
`},
		{"no heaters", `
name: Z
floor_sensors: [a]
room_sensors: [b]
`},
		{"non-positive power", `
name: Z
floor_sensors: [a]
room_sensors: [b]
heaters: [{id: h, power: 0}]
`},
		{"min cycle above period", `
name: Z
floor_sensors: [a]
room_sensors: [b]
heaters: [{id: h, power: 100}]
tuning:
  cycle_period: 60s
  min_cycle_duration: 120s
`},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := LoadZoneConfig(writeZoneFile(t, tc.yaml))
			assert.Error(t, err)
		})
	}
}

func TestZoneConfig_SensorTopics(t *testing.T) {
	cfg, err := LoadZoneConfig(writeZoneFile(t, minimalZoneYAML))
	require.NoError(t, err)

	topics := cfg.SensorTopics()
	assert.Contains(t, topics, "homeassistant/sensor/floor_temp_1/state")
	assert.Contains(t, topics, "homeassistant/sensor/room_temp/state")
	assert.Contains(t, topics, "homeassistant/switch/heater_1/state")
}

func TestZoneConfig_LoopConfig(t *testing.T) {
	cfg, err := LoadZoneConfig(writeZoneFile(t, minimalZoneYAML))
	require.NoError(t, err)

	lc := cfg.LoopConfig()
	require.Len(t, lc.Heaters, 1)
	assert.Equal(t, "switch.heater_1", lc.Heaters[0].ID)
	assert.Equal(t, 2000.0, lc.Heaters[0].Power)
	assert.Equal(t, 900*time.Second, lc.CyclePeriod)
	assert.InDelta(t, 1.0/300.0, lc.BudgetRefillRate, 1e-9)
}
