package main

import (
	"context"
	"log"
	"strconv"
	"strings"
	"time"

	"github.com/hearthward/floorctl/src/control"
	"github.com/hearthward/floorctl/src/relay"
)

// Actuation re-evaluation interval. Demand is latched per TPI cycle;
// this only moves relays across on/off boundaries within the cycle.
const actuationInterval = time.Second

// ZoneWorkerConfig wires the zone worker to its collaborators.
type ZoneWorkerConfig struct {
	Zone   *ZoneConfig
	Topics ZoneTopics
	Loop   *control.ControlLoop
	Sender *MQTTSender

	// Commander actuates heaters with a gpio_pin; nil when the zone
	// has none.
	Commander relay.Commander

	// Store may be nil (tests); persistence is then skipped.
	Store *Store

	// Metrics may be nil (tests).
	Metrics *Metrics
}

// zoneWorker is the single goroutine that owns the zone's control
// cadence: sensor snapshots trigger a recompute, commands from Home
// Assistant trigger a forced recompute, and a fixed ticker re-evaluates
// actuation. Serializing everything here means overlapping triggers can
// never interleave.
func zoneWorker(
	ctx context.Context,
	cfg ZoneWorkerConfig,
	snapshotChan <-chan SensorSnapshot,
	cmdChan <-chan SensorMessage,
	diagChan chan<- control.Diagnostics,
) {
	gpioHeaters := make(map[string]bool)
	for _, h := range cfg.Zone.GPIOPins() {
		gpioHeaters[h.ID] = true
	}

	actuationTicker := time.NewTicker(actuationInterval)
	defer actuationTicker.Stop()

	var keepAliveC <-chan time.Time
	if cfg.Zone.KeepAlive.Std() > 0 {
		keepAliveTicker := time.NewTicker(cfg.Zone.KeepAlive.Std())
		defer keepAliveTicker.Stop()
		keepAliveC = keepAliveTicker.C
	}

	w := &zoneState{cfg: cfg, gpioHeaters: gpioHeaters, diagChan: diagChan}
	w.publishRetainedState()

	for {
		select {
		case snap := <-snapshotChan:
			w.lastSnapshot = snap
			w.haveSnapshot = true
			w.observeRelays(snap)
			w.runStep(false)

		case msg := <-cmdChan:
			w.handleCommand(msg)

		case <-actuationTicker.C:
			w.actuate(time.Now())

		case <-keepAliveC:
			w.runStep(false)

		case <-ctx.Done():
			log.Println("Zone worker stopped")
			return
		}
	}
}

type zoneState struct {
	cfg          ZoneWorkerConfig
	gpioHeaters  map[string]bool
	diagChan     chan<- control.Diagnostics
	lastSnapshot SensorSnapshot
	haveSnapshot bool
}

// observeRelays feeds reported relay states into the loop so the next
// actuation diffs against reality. A relay found on while it should be
// off (including at startup with mode off) gets commanded off on the
// next tick by the same diff.
func (w *zoneState) observeRelays(snap SensorSnapshot) {
	for _, h := range w.cfg.Zone.Heaters {
		if h.StateTopic == "" {
			continue
		}
		if on, known := snap.SwitchOn(h.StateTopic); known {
			w.cfg.Loop.ObserveRelayState(h.ID, on)
		}
	}
}

// runStep executes one control step from the latest snapshot and
// publishes the diagnostic surface.
func (w *zoneState) runStep(force bool) {
	if !w.haveSnapshot {
		return
	}
	zone := w.cfg.Zone
	snap := w.lastSnapshot

	in := control.StepInput{
		Now:           time.Now(),
		FloorReadings: snap.Readings(zone.FloorSensorTopics),
		RoomReadings:  snap.Readings(zone.RoomSensorTopics),
		Force:         force,
	}
	if zone.PowerTopic != "" {
		in.Power = snap.Reading(zone.PowerTopic)
	}

	w.cfg.Loop.Step(in)
	if force {
		// A forced step relatches the cycle; move relays right away
		// instead of waiting out the ticker
		w.actuate(time.Now())
	}
	w.publishDiagnostics()
}

// actuate applies the latest demand to the heaters and issues whatever
// commands the shuffler diffed out.
func (w *zoneState) actuate(now time.Time) {
	_, commands := w.cfg.Loop.Commands(now)
	for _, cmd := range commands {
		if w.gpioHeaters[cmd.ID] {
			if err := w.cfg.Commander.Set(cmd.ID, cmd.On); err != nil {
				log.Printf("Failed to set gpio relay %s: %v\n", cmd.ID, err)
			}
		} else {
			w.cfg.Sender.SwitchHeater(cmd.ID, cmd.On)
		}
		log.Printf("Heater %s -> %v\n", cmd.ID, cmd.On)
	}

	if len(commands) > 0 {
		diag := w.cfg.Loop.Diagnostics(now)
		w.persistToggleCounts(diag)
		w.cfg.Sender.PublishState(w.cfg.Topics.ToggleCountState(), strconv.Itoa(diag.TotalToggleCount))
	}
}

func (w *zoneState) persistToggleCounts(diag control.Diagnostics) {
	if w.cfg.Store == nil {
		return
	}
	if err := w.cfg.Store.SaveToggleCounts(diag.ToggleCounts); err != nil {
		log.Printf("Failed to persist toggle counts: %v\n", err)
	}
}

// handleCommand processes a setpoint, mode, or maintain-comfort command
// from Home Assistant, persists it, and forces a recompute.
func (w *zoneState) handleCommand(msg SensorMessage) {
	topics := w.cfg.Topics
	loop := w.cfg.Loop
	value := strings.TrimSpace(msg.Value)

	switch msg.Topic {
	case topics.TargetSet():
		target, err := strconv.ParseFloat(value, 64)
		if err != nil {
			log.Printf("Ignoring invalid target %q: %v\n", value, err)
			return
		}
		loop.SetTarget(target)
		if w.cfg.Store != nil {
			if err := w.cfg.Store.SaveTarget(target); err != nil {
				log.Printf("Failed to persist target: %v\n", err)
			}
		}
		log.Printf("Target set to %.1f\n", target)

	case topics.ModeSet():
		mode := control.Mode(strings.ToLower(value))
		if err := loop.SetMode(mode); err != nil {
			log.Printf("Ignoring mode command: %v\n", err)
			return
		}
		if w.cfg.Store != nil {
			if err := w.cfg.Store.SaveMode(mode); err != nil {
				log.Printf("Failed to persist mode: %v\n", err)
			}
		}
		log.Printf("Mode set to %s\n", mode)

	case topics.MaintainComfortSet():
		enabled := strings.EqualFold(value, "on")
		loop.SetMaintainComfort(enabled)
		log.Printf("Maintain comfort set to %v\n", enabled)

	default:
		log.Printf("Unhandled command topic %s\n", msg.Topic)
		return
	}

	w.runStep(true)
}

// publishRetainedState pushes the restored setpoint/mode/comfort states
// once at startup so Home Assistant reflects them before the first
// sensor tick.
func (w *zoneState) publishRetainedState() {
	diag := w.cfg.Loop.Diagnostics(time.Now())
	sender := w.cfg.Sender
	topics := w.cfg.Topics

	sender.PublishFloat(topics.TargetState(), diag.TargetTemp, 1)
	sender.PublishState(topics.ModeState(), string(diag.Mode))
	sender.PublishState(topics.MaintainComfortState(), strings.ToUpper(onOff(diag.MaintainComfort)))
	sender.PublishState(topics.ToggleCountState(), strconv.Itoa(diag.TotalToggleCount))
}

// publishDiagnostics mirrors one step's outcome onto the MQTT surface
// and the Prometheus gauges.
func (w *zoneState) publishDiagnostics() {
	diag := w.cfg.Loop.Diagnostics(time.Now())
	sender := w.cfg.Sender
	topics := w.cfg.Topics

	sender.PublishFloat(topics.RoomTempState(), diag.RoomTemp, 1)
	sender.PublishFloat(topics.FloorTempState(), diag.FloorTemp, 1)
	sender.PublishFloat(topics.DemandState(), diag.FinalDemand, 1)
	sender.PublishFloat(topics.RoomDemandState(), diag.RoomDemand, 1)
	sender.PublishFloat(topics.FloorDemandState(), diag.FloorDemand, 1)
	sender.PublishFloat(topics.RoomIntegralState(), diag.RoomIntegral, 1)
	sender.PublishFloat(topics.FloorIntegralState(), diag.FloorIntegral, 1)
	sender.PublishFloat(topics.EffectiveLimitState(), diag.EffectiveLimit, 1)
	sender.PublishFloat(topics.TargetState(), diag.TargetTemp, 1)
	sender.PublishState(topics.ModeState(), string(diag.Mode))
	sender.PublishState(topics.VetoState(), strings.ToUpper(onOff(diag.VetoActive)))
	sender.PublishState(topics.MaintainComfortState(), strings.ToUpper(onOff(diag.MaintainComfort)))
	sender.PublishState(topics.ActionState(), hvacAction(diag))

	if w.cfg.Metrics != nil {
		w.cfg.Metrics.Observe(diag)
	}
	if w.diagChan != nil {
		select {
		case w.diagChan <- diag:
		default:
		}
	}
}

// hvacAction maps the zone state onto HA climate actions.
func hvacAction(diag control.Diagnostics) string {
	switch {
	case diag.Mode == control.ModeOff:
		return "off"
	case diag.Active && diag.FinalDemand > 0:
		return "heating"
	default:
		return "idle"
	}
}

func onOff(b bool) string {
	if b {
		return "on"
	}
	return "off"
}
