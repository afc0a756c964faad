package main

import "encoding/json"

// Home Assistant MQTT discovery for the zone's entity surface: a
// climate entity for setpoint/mode, diagnostic sensors for the demand
// breakdown and fused temperatures, a binary sensor for the safety
// veto, and a switch for maintain-comfort mode.

// haDeviceConfig groups every zone entity under one HA device.
type haDeviceConfig struct {
	Identifiers  []string `json:"identifiers"`
	Name         string   `json:"name"`
	Manufacturer string   `json:"manufacturer,omitempty"`
	Model        string   `json:"model,omitempty"`
}

// ZoneTopics derives every MQTT topic for one zone from its slug.
type ZoneTopics struct {
	Base string
}

// NewZoneTopics builds the topic set for a zone slug.
func NewZoneTopics(slug string) ZoneTopics {
	return ZoneTopics{Base: "floorctl/" + slug}
}

func (t ZoneTopics) TargetSet() string            { return t.Base + "/target/set" }
func (t ZoneTopics) TargetState() string          { return t.Base + "/target/state" }
func (t ZoneTopics) ModeSet() string              { return t.Base + "/mode/set" }
func (t ZoneTopics) ModeState() string            { return t.Base + "/mode/state" }
func (t ZoneTopics) ActionState() string          { return t.Base + "/action/state" }
func (t ZoneTopics) MaintainComfortSet() string   { return t.Base + "/maintain_comfort/set" }
func (t ZoneTopics) MaintainComfortState() string { return t.Base + "/maintain_comfort/state" }
func (t ZoneTopics) RoomTempState() string        { return t.Base + "/room_temp/state" }
func (t ZoneTopics) FloorTempState() string       { return t.Base + "/floor_temp/state" }
func (t ZoneTopics) DemandState() string          { return t.Base + "/demand/state" }
func (t ZoneTopics) RoomDemandState() string      { return t.Base + "/room_demand/state" }
func (t ZoneTopics) FloorDemandState() string     { return t.Base + "/floor_demand/state" }
func (t ZoneTopics) RoomIntegralState() string    { return t.Base + "/room_integral/state" }
func (t ZoneTopics) FloorIntegralState() string   { return t.Base + "/floor_integral/state" }
func (t ZoneTopics) EffectiveLimitState() string  { return t.Base + "/effective_limit/state" }
func (t ZoneTopics) VetoState() string            { return t.Base + "/safety_veto/state" }
func (t ZoneTopics) ToggleCountState() string     { return t.Base + "/toggle_count/state" }

// CommandTopics lists the topics the zone worker consumes.
func (t ZoneTopics) CommandTopics() []string {
	return []string{t.TargetSet(), t.ModeSet(), t.MaintainComfortSet()}
}

func zoneDevice(zoneName, slug string) haDeviceConfig {
	return haDeviceConfig{
		Identifiers:  []string{"floorctl_" + slug},
		Name:         zoneName,
		Manufacturer: "floorctl",
		Model:        "Radiant Floor Zone",
	}
}

// CreateZoneClimate creates the zone's climate entity via MQTT
// discovery. Home Assistant drives the setpoint and mode through the
// command topics; the zone worker publishes the state topics.
func (s *MQTTSender) CreateZoneClimate(zoneName, slug string, topics ZoneTopics, minTemp, maxTemp float64) error {
	type haClimateConfig struct {
		Name             string         `json:"name"`
		UniqueId         string         `json:"unique_id"`
		Modes            []string       `json:"modes"`
		ModeCommandTopic string         `json:"mode_command_topic"`
		ModeStateTopic   string         `json:"mode_state_topic"`
		TempCommandTopic string         `json:"temperature_command_topic"`
		TempStateTopic   string         `json:"temperature_state_topic"`
		CurrentTempTopic string         `json:"current_temperature_topic"`
		ActionTopic      string         `json:"action_topic"`
		MinTemp          float64        `json:"min_temp"`
		MaxTemp          float64        `json:"max_temp"`
		TempStep         float64        `json:"temp_step"`
		Precision        float64        `json:"precision"`
		Device           haDeviceConfig `json:"device"`
	}

	config := haClimateConfig{
		Name:             zoneName,
		UniqueId:         "floorctl_" + slug,
		Modes:            []string{"off", "heat"},
		ModeCommandTopic: topics.ModeSet(),
		ModeStateTopic:   topics.ModeState(),
		TempCommandTopic: topics.TargetSet(),
		TempStateTopic:   topics.TargetState(),
		CurrentTempTopic: topics.RoomTempState(),
		ActionTopic:      topics.ActionState(),
		MinTemp:          minTemp,
		MaxTemp:          maxTemp,
		TempStep:         0.5,
		Precision:        0.1,
		Device:           zoneDevice(zoneName, slug),
	}

	return s.sendDiscovery("homeassistant/climate/floorctl_"+slug+"/config", config)
}

// CreateZoneSensor creates one diagnostic sensor entity.
func (s *MQTTSender) CreateZoneSensor(
	zoneName, slug string,
	entityName, key, stateTopic string,
	deviceClass, unit string,
	displayPrecision int,
) error {
	type haSensorConfig struct {
		Name             string         `json:"name"`
		UniqueId         string         `json:"unique_id"`
		StateTopic       string         `json:"state_topic"`
		DeviceClass      string         `json:"device_class,omitempty"`
		UnitOfMeasure    string         `json:"unit_of_measurement,omitempty"`
		StateClass       string         `json:"state_class,omitempty"`
		DisplayPrecision int            `json:"suggested_display_precision,omitempty"`
		EntityCategory   string         `json:"entity_category,omitempty"`
		Device           haDeviceConfig `json:"device"`
	}

	config := haSensorConfig{
		Name:             entityName,
		UniqueId:         "floorctl_" + slug + "_" + key,
		StateTopic:       stateTopic,
		DeviceClass:      deviceClass,
		UnitOfMeasure:    unit,
		StateClass:       "measurement",
		DisplayPrecision: displayPrecision,
		EntityCategory:   "diagnostic",
		Device:           zoneDevice(zoneName, slug),
	}

	return s.sendDiscovery("homeassistant/sensor/floorctl_"+slug+"_"+key+"/config", config)
}

// CreateZoneVetoBinarySensor creates the safety-veto binary sensor.
func (s *MQTTSender) CreateZoneVetoBinarySensor(zoneName, slug string, topics ZoneTopics) error {
	type haBinarySensorConfig struct {
		Name        string         `json:"name"`
		UniqueId    string         `json:"unique_id"`
		StateTopic  string         `json:"state_topic"`
		DeviceClass string         `json:"device_class"`
		Device      haDeviceConfig `json:"device"`
	}

	config := haBinarySensorConfig{
		Name:        "Safety Veto",
		UniqueId:    "floorctl_" + slug + "_safety_veto",
		StateTopic:  topics.VetoState(),
		DeviceClass: "problem",
		Device:      zoneDevice(zoneName, slug),
	}

	return s.sendDiscovery("homeassistant/binary_sensor/floorctl_"+slug+"_safety_veto/config", config)
}

// CreateZoneComfortSwitch creates the maintain-comfort switch.
func (s *MQTTSender) CreateZoneComfortSwitch(zoneName, slug string, topics ZoneTopics) error {
	type haSwitchConfig struct {
		Name         string         `json:"name"`
		UniqueId     string         `json:"unique_id"`
		StateTopic   string         `json:"state_topic"`
		CommandTopic string         `json:"command_topic"`
		Icon         string         `json:"icon,omitempty"`
		Device       haDeviceConfig `json:"device"`
	}

	config := haSwitchConfig{
		Name:         "Maintain Comfort",
		UniqueId:     "floorctl_" + slug + "_maintain_comfort",
		StateTopic:   topics.MaintainComfortState(),
		CommandTopic: topics.MaintainComfortSet(),
		Icon:         "mdi:heat-wave",
		Device:       zoneDevice(zoneName, slug),
	}

	return s.sendDiscovery("homeassistant/switch/floorctl_"+slug+"_maintain_comfort/config", config)
}

// createZoneEntities creates the full discovery surface for a zone.
func createZoneEntities(sender *MQTTSender, cfg *ZoneConfig, topics ZoneTopics) error {
	slug := cfg.Slug()

	if err := sender.CreateZoneClimate(cfg.Name, slug, topics, 5.0, 35.0); err != nil {
		return err
	}

	sensors := []struct {
		name, key, topic, class, unit string
		precision                     int
	}{
		{"Floor Temperature", "floor_temp", topics.FloorTempState(), "temperature", "°C", 1},
		{"Final Demand", "demand", topics.DemandState(), "", "%", 1},
		{"Room Demand", "room_demand", topics.RoomDemandState(), "", "%", 1},
		{"Floor Demand", "floor_demand", topics.FloorDemandState(), "", "%", 1},
		{"Room Integral Error", "room_integral", topics.RoomIntegralState(), "", "", 1},
		{"Floor Integral Error", "floor_integral", topics.FloorIntegralState(), "", "", 1},
		{"Effective Floor Limit", "effective_limit", topics.EffectiveLimitState(), "temperature", "°C", 1},
		{"Relay Toggle Count", "toggle_count", topics.ToggleCountState(), "", "", 0},
	}
	for _, sensor := range sensors {
		err := sender.CreateZoneSensor(cfg.Name, slug, sensor.name, sensor.key, sensor.topic, sensor.class, sensor.unit, sensor.precision)
		if err != nil {
			return err
		}
	}

	if err := sender.CreateZoneVetoBinarySensor(cfg.Name, slug, topics); err != nil {
		return err
	}
	return sender.CreateZoneComfortSwitch(cfg.Name, slug, topics)
}

// sendDiscovery marshals and publishes one retained discovery config.
func (s *MQTTSender) sendDiscovery(configTopic string, config any) error {
	payload, err := json.Marshal(config)
	if err != nil {
		return err
	}

	s.Send(MQTTMessage{
		Topic:   configTopic,
		Payload: payload,
		QoS:     2,
		Retain:  true,
	})
	return nil
}
