package service

import (
	"context"
	"strings"

	"go.uber.org/zap"

	"voltflow/internal/models"
)

// StationStore is the persistence contract for the station directory.
type StationStore interface {
	GetByID(ctx context.Context, id string) (*models.Station, error)
	List(ctx context.Context, connectorType string, limit, offset int) ([]models.Station, error)
	Upsert(ctx context.Context, station *models.Station) error
}

// StationsService exposes the station directory: lookups for the session
// engine, search for the app, upsert for directory maintenance.
type StationsService struct {
	store  StationStore
	logger *zap.Logger
}

// NewStationsService builds the directory service.
func NewStationsService(store StationStore, logger *zap.Logger) *StationsService {
	return &StationsService{store: store, logger: logger}
}

// GetStationByID resolves one station. Returns (nil, nil) when unknown,
// satisfying the StationDirectory contract of the session engine.
func (s *StationsService) GetStationByID(ctx context.Context, id string) (*models.Station, error) {
	if strings.TrimSpace(id) == "" {
		return nil, nil
	}
	station, err := s.store.GetByID(ctx, id)
	if err != nil {
		return nil, &DependencyError{Message: "station store lookup failed", Err: err}
	}
	return station, nil
}

// SearchStations lists stations, optionally filtered by connector type.
func (s *StationsService) SearchStations(ctx context.Context, connectorType string, limit, offset int) ([]models.Station, error) {
	if limit <= 0 || limit > 100 {
		limit = 50
	}
	if offset < 0 {
		offset = 0
	}
	stations, err := s.store.List(ctx, strings.TrimSpace(connectorType), limit, offset)
	if err != nil {
		return nil, &DependencyError{Message: "station store lookup failed", Err: err}
	}
	return stations, nil
}

// UpsertStation creates or updates a directory entry.
func (s *StationsService) UpsertStation(ctx context.Context, station *models.Station) error {
	if strings.TrimSpace(station.ID) == "" {
		return &ValidationError{Message: "station id is required"}
	}
	if station.PricePerKWh < 0 || station.PowerOutputKw < 0 {
		return &ValidationError{Message: "price and power output cannot be negative"}
	}
	if len(station.ConnectorTypes) == 0 {
		return &ValidationError{Message: "at least one connector type is required"}
	}
	if err := s.store.Upsert(ctx, station); err != nil {
		return &DependencyError{Message: "failed to save station", Err: err}
	}
	s.logger.Info("station upserted", zap.String("station_id", station.ID))
	return nil
}
