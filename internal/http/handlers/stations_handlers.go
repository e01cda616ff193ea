package handlers

import (
	"net/http"
	"strconv"
	"strings"

	"go.uber.org/zap"

	"voltflow/internal/models"
	"voltflow/internal/service"
)

// StationsHandlers exposes the station directory.
type StationsHandlers struct {
	svc    *service.StationsService
	logger *zap.Logger
}

// NewStationsHandlers returns the handler set.
func NewStationsHandlers(svc *service.StationsService, logger *zap.Logger) *StationsHandlers {
	return &StationsHandlers{svc: svc, logger: logger}
}

// List handles GET /api/stations with optional connector_type/limit/offset.
func (h *StationsHandlers) List(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	limit, _ := strconv.Atoi(q.Get("limit"))
	offset, _ := strconv.Atoi(q.Get("offset"))

	stations, err := h.svc.SearchStations(r.Context(), q.Get("connector_type"), limit, offset)
	if err != nil {
		h.logger.Error("list stations failed", zap.Error(err))
		writeServiceError(w, err)
		return
	}
	writeData(w, http.StatusOK, stations)
}

// Get handles GET /api/stations/{id}.
func (h *StationsHandlers) Get(w http.ResponseWriter, r *http.Request) {
	id := strings.TrimPrefix(r.URL.Path, "/api/stations/")
	if id == "" || strings.Contains(id, "/") {
		writeError(w, http.StatusBadRequest, "invalid station id")
		return
	}

	station, err := h.svc.GetStationByID(r.Context(), id)
	if err != nil {
		h.logger.Error("get station failed", zap.String("station_id", id), zap.Error(err))
		writeServiceError(w, err)
		return
	}
	if station == nil {
		writeError(w, http.StatusNotFound, "station not found")
		return
	}
	writeData(w, http.StatusOK, station)
}

// Upsert handles PUT /api/stations.
func (h *StationsHandlers) Upsert(w http.ResponseWriter, r *http.Request) {
	var station models.Station
	if !decodeBody(w, r, &station) {
		return
	}

	if err := h.svc.UpsertStation(r.Context(), &station); err != nil {
		h.logger.Error("upsert station failed", zap.String("station_id", station.ID), zap.Error(err))
		writeServiceError(w, err)
		return
	}
	writeData(w, http.StatusOK, station)
}
