package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"voltflow/internal/models"
)

// StationRepository persists the station directory.
type StationRepository struct {
	db *sql.DB
}

// NewStationRepository returns the repository.
func NewStationRepository(db *sql.DB) *StationRepository {
	return &StationRepository{db: db}
}

const stationColumns = `
	id, name, address, latitude, longitude, price_per_kwh, power_output_kw,
	connector_types, amenities, created_at, updated_at
`

// GetByID returns one station, or (nil, nil) when unknown.
func (r *StationRepository) GetByID(ctx context.Context, id string) (*models.Station, error) {
	query := fmt.Sprintf(`SELECT %s FROM stations WHERE id = $1`, stationColumns)

	station, err := scanStation(r.db.QueryRowContext(ctx, query, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return station, nil
}

// List returns stations ordered by id. A non-empty connectorType filters
// to stations advertising that connector (jsonb containment).
func (r *StationRepository) List(ctx context.Context, connectorType string, limit, offset int) ([]models.Station, error) {
	if limit <= 0 {
		limit = 50
	}

	args := []interface{}{limit, offset}
	filter := ""
	if connectorType != "" {
		filter = "WHERE connector_types @> $3"
		encoded, err := json.Marshal([]string{connectorType})
		if err != nil {
			return nil, err
		}
		args = append(args, encoded)
	}
	query := fmt.Sprintf(`
		SELECT %s FROM stations
		%s
		ORDER BY id
		LIMIT $1 OFFSET $2
	`, stationColumns, filter)

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var stations []models.Station
	for rows.Next() {
		station, err := scanStation(rows)
		if err != nil {
			return nil, err
		}
		stations = append(stations, *station)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return stations, nil
}

// Upsert creates or refreshes a directory entry.
func (r *StationRepository) Upsert(ctx context.Context, station *models.Station) error {
	connectorTypes, err := json.Marshal(station.ConnectorTypes)
	if err != nil {
		return err
	}
	amenities, err := json.Marshal(station.Amenities)
	if err != nil {
		return err
	}

	const query = `
		INSERT INTO stations (id, name, address, latitude, longitude, price_per_kwh, power_output_kw, connector_types, amenities, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, NOW(), NOW())
		ON CONFLICT (id) DO UPDATE SET
			name = EXCLUDED.name,
			address = EXCLUDED.address,
			latitude = EXCLUDED.latitude,
			longitude = EXCLUDED.longitude,
			price_per_kwh = EXCLUDED.price_per_kwh,
			power_output_kw = EXCLUDED.power_output_kw,
			connector_types = EXCLUDED.connector_types,
			amenities = EXCLUDED.amenities,
			updated_at = NOW()
	`
	_, err = r.db.ExecContext(ctx, query,
		station.ID,
		station.Name,
		station.Address,
		station.Latitude,
		station.Longitude,
		station.PricePerKWh,
		station.PowerOutputKw,
		connectorTypes,
		amenities,
	)
	return err
}

func scanStation(row rowScanner) (*models.Station, error) {
	var (
		s              models.Station
		connectorTypes []byte
		amenities      []byte
	)
	err := row.Scan(
		&s.ID,
		&s.Name,
		&s.Address,
		&s.Latitude,
		&s.Longitude,
		&s.PricePerKWh,
		&s.PowerOutputKw,
		&connectorTypes,
		&amenities,
		&s.CreatedAt,
		&s.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	if len(connectorTypes) > 0 {
		if err := json.Unmarshal(connectorTypes, &s.ConnectorTypes); err != nil {
			return nil, fmt.Errorf("decode connector types: %w", err)
		}
	}
	if len(amenities) > 0 {
		if err := json.Unmarshal(amenities, &s.Amenities); err != nil {
			return nil, fmt.Errorf("decode amenities: %w", err)
		}
	}
	return &s, nil
}
