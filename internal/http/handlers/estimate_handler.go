package handlers

import (
	"net/http"

	"voltflow/internal/charging"
)

type estimateRequest struct {
	BatteryCapacityKWh float64 `json:"battery_capacity_kwh"`
	CurrentLevel       float64 `json:"current_level"`
	TargetLevel        float64 `json:"target_level"`
	PowerKw            float64 `json:"power_kw"`
	PricePerKWh        float64 `json:"price_per_kwh"`
}

// NewEstimateHandler returns the POST /api/estimate handler projecting
// energy, duration and cost for a planned charge.
func NewEstimateHandler(params charging.Params) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req estimateRequest
		if !decodeBody(w, r, &req) {
			return
		}

		if req.CurrentLevel < 0 || req.CurrentLevel > 100 || req.TargetLevel < 0 || req.TargetLevel > 100 {
			writeError(w, http.StatusBadRequest, "battery levels must be between 0 and 100")
			return
		}
		if req.TargetLevel <= req.CurrentLevel {
			writeError(w, http.StatusBadRequest, "target level must exceed current level")
			return
		}

		estimate := charging.EstimateCharge(charging.EstimateInput{
			BatteryCapacityKWh: req.BatteryCapacityKWh,
			CurrentLevel:       req.CurrentLevel,
			TargetLevel:        req.TargetLevel,
			PowerKw:            req.PowerKw,
			PricePerKWh:        req.PricePerKWh,
		}, params)

		writeData(w, http.StatusOK, estimate)
	}
}
