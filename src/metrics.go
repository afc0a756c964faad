package main

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/hearthward/floorctl/src/control"
)

// Metrics exposes the zone's control state to Prometheus.
type Metrics struct {
	registry *prometheus.Registry

	roomTemp       prometheus.Gauge
	floorTemp      prometheus.Gauge
	targetTemp     prometheus.Gauge
	effectiveLimit prometheus.Gauge

	finalDemand prometheus.Gauge
	roomDemand  prometheus.Gauge
	floorDemand prometheus.Gauge

	vetoActive   prometheus.Gauge
	budgetTokens prometheus.Gauge
	modeHeat     prometheus.Gauge

	toggleCounts  *prometheus.GaugeVec
	rotationIndex prometheus.Gauge
}

// NewMetrics builds and registers every collector on a fresh registry.
func NewMetrics(zone string) *Metrics {
	labels := prometheus.Labels{"zone": zone}
	gauge := func(name, help string) prometheus.Gauge {
		return prometheus.NewGauge(prometheus.GaugeOpts{
			Name:        name,
			Help:        help,
			ConstLabels: labels,
		})
	}

	m := &Metrics{
		registry:       prometheus.NewRegistry(),
		roomTemp:       gauge("floorctl_room_temp_celsius", "Fused room temperature estimate."),
		floorTemp:      gauge("floorctl_floor_temp_celsius", "Fused floor temperature estimate."),
		targetTemp:     gauge("floorctl_target_temp_celsius", "Room setpoint."),
		effectiveLimit: gauge("floorctl_effective_floor_limit_celsius", "Current floor target passed to the limiter loop."),
		finalDemand:    gauge("floorctl_final_demand_percent", "Coordinated heating demand."),
		roomDemand:     gauge("floorctl_room_demand_percent", "Raw room loop demand."),
		floorDemand:    gauge("floorctl_floor_demand_percent", "Raw floor limiter demand."),
		vetoActive:     gauge("floorctl_safety_veto_active", "1 while the safety veto forces zero demand."),
		budgetTokens:   gauge("floorctl_veto_budget_tokens", "Remaining veto release budget tokens."),
		modeHeat:       gauge("floorctl_mode_heat", "1 when the zone mode is heat."),
		toggleCounts: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name:        "floorctl_relay_toggle_count",
			Help:        "Cumulative relay toggle count per heater.",
			ConstLabels: labels,
		}, []string{"heater"}),
		rotationIndex: gauge("floorctl_rotation_index", "Cycle boundaries that have rotated the heater priority."),
	}

	m.registry.MustRegister(
		m.roomTemp, m.floorTemp, m.targetTemp, m.effectiveLimit,
		m.finalDemand, m.roomDemand, m.floorDemand,
		m.vetoActive, m.budgetTokens, m.modeHeat,
		m.toggleCounts, m.rotationIndex,
	)
	return m
}

// Observe folds a diagnostics snapshot into the gauges.
func (m *Metrics) Observe(diag control.Diagnostics) {
	m.roomTemp.Set(diag.RoomTemp)
	m.floorTemp.Set(diag.FloorTemp)
	m.targetTemp.Set(diag.TargetTemp)
	m.effectiveLimit.Set(diag.EffectiveLimit)
	m.finalDemand.Set(diag.FinalDemand)
	m.roomDemand.Set(diag.RoomDemand)
	m.floorDemand.Set(diag.FloorDemand)
	m.budgetTokens.Set(diag.BudgetTokens)
	m.rotationIndex.Set(float64(diag.RotationIndex))

	m.vetoActive.Set(boolGauge(diag.VetoActive))
	m.modeHeat.Set(boolGauge(diag.Mode == control.ModeHeat))

	for heater, count := range diag.ToggleCounts {
		m.toggleCounts.WithLabelValues(heater).Set(float64(count))
	}
}

// Handler serves the registry in Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

func boolGauge(b bool) float64 {
	if b {
		return 1
	}
	return 0
}
