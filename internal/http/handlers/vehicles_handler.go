package handlers

import (
	"net/http"

	"go.uber.org/zap"

	"voltflow/internal/models"
	"voltflow/internal/service"
)

// VehiclesHandlers exposes vehicle recognition.
type VehiclesHandlers struct {
	svc    *service.VehiclesService
	logger *zap.Logger
}

// NewVehiclesHandlers returns the handler set.
func NewVehiclesHandlers(svc *service.VehiclesService, logger *zap.Logger) *VehiclesHandlers {
	return &VehiclesHandlers{svc: svc, logger: logger}
}

type recognizeRequest struct {
	VIN   string `json:"vin"`
	Make  string `json:"make"`
	Model string `json:"model"`
	Year  int    `json:"year"`
}

// Recognize handles POST /api/vehicles/recognize. A VIN wins over a
// make/model/year triple when both are supplied.
func (h *VehiclesHandlers) Recognize(w http.ResponseWriter, r *http.Request) {
	var req recognizeRequest
	if !decodeBody(w, r, &req) {
		return
	}

	var (
		vehicle *models.Vehicle
		err     error
	)
	if req.VIN != "" {
		vehicle, err = h.svc.RecognizeByVIN(r.Context(), req.VIN)
	} else {
		vehicle, err = h.svc.RecognizeByModel(r.Context(), req.Make, req.Model, req.Year)
	}
	if err != nil {
		h.logger.Warn("vehicle recognition failed", zap.Error(err))
		writeServiceError(w, err)
		return
	}
	writeData(w, http.StatusOK, vehicle)
}
