package main

import (
	"encoding/json"
	"log"
	"net/http"
	"time"

	"github.com/gorilla/mux"

	"github.com/hearthward/floorctl/src/control"
)

// statusResponse is the JSON shape of GET /api/status.
type statusResponse struct {
	Zone            string         `json:"zone"`
	Active          bool           `json:"active"`
	Mode            string         `json:"mode"`
	TargetTemp      float64        `json:"target_temp"`
	RoomTemp        float64        `json:"room_temp"`
	FloorTemp       float64        `json:"floor_temp"`
	FinalDemand     float64        `json:"final_demand"`
	RoomDemand      float64        `json:"room_demand"`
	FloorDemand     float64        `json:"floor_demand"`
	RoomIntegral    float64        `json:"room_integral"`
	FloorIntegral   float64        `json:"floor_integral"`
	EffectiveLimit  float64        `json:"effective_limit"`
	VetoActive      bool           `json:"veto_active"`
	BudgetTokens    float64        `json:"budget_tokens"`
	MaintainComfort bool           `json:"maintain_comfort"`
	ToggleCounts    map[string]int `json:"toggle_counts"`
	RotationIndex   int            `json:"rotation_index"`
	PriorityOrder   []string       `json:"priority_order"`
	TimeInCycleSec  float64        `json:"time_in_cycle_seconds"`
	CyclePeriodSec  float64        `json:"cycle_period_seconds"`
}

func statusFromDiagnostics(zone string, diag control.Diagnostics) statusResponse {
	return statusResponse{
		Zone:            zone,
		Active:          diag.Active,
		Mode:            string(diag.Mode),
		TargetTemp:      diag.TargetTemp,
		RoomTemp:        diag.RoomTemp,
		FloorTemp:       diag.FloorTemp,
		FinalDemand:     diag.FinalDemand,
		RoomDemand:      diag.RoomDemand,
		FloorDemand:     diag.FloorDemand,
		RoomIntegral:    diag.RoomIntegral,
		FloorIntegral:   diag.FloorIntegral,
		EffectiveLimit:  diag.EffectiveLimit,
		VetoActive:      diag.VetoActive,
		BudgetTokens:    diag.BudgetTokens,
		MaintainComfort: diag.MaintainComfort,
		ToggleCounts:    diag.ToggleCounts,
		RotationIndex:   diag.RotationIndex,
		PriorityOrder:   diag.PriorityOrder,
		TimeInCycleSec:  diag.TimeInCycle.Seconds(),
		CyclePeriodSec:  diag.CyclePeriod.Seconds(),
	}
}

// newRouter builds the diagnostics HTTP surface: a JSON status
// endpoint, Prometheus metrics, and a health probe.
func newRouter(zone string, loop *control.ControlLoop, metrics *Metrics) *mux.Router {
	r := mux.NewRouter()

	r.HandleFunc("/api/status", func(w http.ResponseWriter, req *http.Request) {
		status := statusFromDiagnostics(zone, loop.Diagnostics(time.Now()))
		w.Header().Set("Content-Type", "application/json")
		if err := json.NewEncoder(w).Encode(status); err != nil {
			log.Printf("Failed to encode status response: %v\n", err)
		}
	}).Methods(http.MethodGet)

	r.HandleFunc("/healthz", func(w http.ResponseWriter, req *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	}).Methods(http.MethodGet)

	r.Handle("/metrics", metrics.Handler()).Methods(http.MethodGet)

	return r
}
