package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5/pgconn"

	"voltflow/internal/models"
)

// ErrSessionNotFound indicates a missing session row.
var ErrSessionNotFound = errors.New("session not found")

// ErrActiveSessionExists is returned when an insert loses the race against
// the partial unique index on active sessions.
var ErrActiveSessionExists = errors.New("active session already exists")

const uniqueViolationCode = "23505"

// SessionRepository persists charging sessions in Postgres.
//
// The one-active-session-per-user contract is backed by a partial unique
// index in the schema:
//
//	CREATE UNIQUE INDEX charging_sessions_one_active
//	    ON charging_sessions (user_id) WHERE status = 'active';
//
// so a racing double-start loses at insert time even though the service
// layer also performs a sequential read-then-write check.
type SessionRepository struct {
	db *sql.DB
}

// NewSessionRepository returns the repository.
func NewSessionRepository(db *sql.DB) *SessionRepository {
	return &SessionRepository{db: db}
}

const sessionColumns = `
	id, user_id, station_id, connector_id, connector_type, status,
	start_time, end_time, battery_level_start, battery_level, energy_kwh,
	total_cost, average_power_kw, duration_minutes, station_rating,
	snapshot_price_per_kwh, snapshot_power_kw, snapshot_address,
	snapshot_connector_types, snapshot_amenities, created_at, updated_at
`

// Create inserts a new session and reads back generated fields.
func (r *SessionRepository) Create(ctx context.Context, session *models.Session) (*models.Session, error) {
	connectorTypes, amenities, err := marshalSnapshotLists(session)
	if err != nil {
		return nil, err
	}

	const query = `
		INSERT INTO charging_sessions (
			user_id, station_id, connector_id, connector_type, status,
			start_time, battery_level_start, battery_level, energy_kwh,
			total_cost, average_power_kw, duration_minutes,
			snapshot_price_per_kwh, snapshot_power_kw, snapshot_address,
			snapshot_connector_types, snapshot_amenities, created_at, updated_at
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, NOW(), NOW())
		RETURNING id, created_at, updated_at
	`
	err = r.db.QueryRowContext(ctx, query,
		session.UserID,
		session.StationID,
		session.ConnectorID,
		session.ConnectorType,
		session.Status,
		session.StartTime,
		session.BatteryLevelStart,
		session.BatteryLevel,
		session.EnergyKWh,
		session.TotalCost,
		session.AveragePowerKw,
		session.DurationMinutes,
		session.Station.PricePerKWh,
		session.Station.PowerOutputKw,
		session.Station.Address,
		connectorTypes,
		amenities,
	).Scan(&session.ID, &session.CreatedAt, &session.UpdatedAt)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == uniqueViolationCode {
			return nil, ErrActiveSessionExists
		}
		return nil, err
	}
	return session, nil
}

// Save updates the mutable fields of an existing session.
func (r *SessionRepository) Save(ctx context.Context, session *models.Session) (*models.Session, error) {
	const query = `
		UPDATE charging_sessions
		SET status = $2,
		    end_time = $3,
		    battery_level = $4,
		    energy_kwh = $5,
		    total_cost = $6,
		    average_power_kw = $7,
		    duration_minutes = $8,
		    station_rating = $9,
		    updated_at = NOW()
		WHERE id = $1
		RETURNING updated_at
	`
	var rating sql.NullInt64
	if session.StationRating != nil {
		rating = sql.NullInt64{Int64: int64(*session.StationRating), Valid: true}
	}
	var endTime sql.NullTime
	if session.EndTime != nil {
		endTime = sql.NullTime{Time: *session.EndTime, Valid: true}
	}

	err := r.db.QueryRowContext(ctx, query,
		session.ID,
		session.Status,
		endTime,
		session.BatteryLevel,
		session.EnergyKWh,
		session.TotalCost,
		session.AveragePowerKw,
		session.DurationMinutes,
		rating,
	).Scan(&session.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrSessionNotFound
	}
	if err != nil {
		return nil, err
	}
	return session, nil
}

// FindActiveByUser returns the user's active session, or (nil, nil).
func (r *SessionRepository) FindActiveByUser(ctx context.Context, userID int64) (*models.Session, error) {
	query := fmt.Sprintf(`
		SELECT %s FROM charging_sessions
		WHERE user_id = $1 AND status = 'active'
		ORDER BY start_time DESC
		LIMIT 1
	`, sessionColumns)

	session, err := scanSession(r.db.QueryRowContext(ctx, query, userID))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return session, nil
}

// FindByID returns the session by id scoped to its owner, or (nil, nil).
func (r *SessionRepository) FindByID(ctx context.Context, id, userID int64) (*models.Session, error) {
	query := fmt.Sprintf(`
		SELECT %s FROM charging_sessions
		WHERE id = $1 AND user_id = $2
	`, sessionColumns)

	session, err := scanSession(r.db.QueryRowContext(ctx, query, id, userID))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return session, nil
}

// ListByUser returns the user's sessions newest-first, optionally filtered
// by status.
func (r *SessionRepository) ListByUser(ctx context.Context, userID int64, status string, limit, offset int) ([]models.Session, error) {
	if limit <= 0 {
		limit = 50
	}
	if offset < 0 {
		offset = 0
	}

	args := []interface{}{userID, limit, offset}
	filter := ""
	if status != "" {
		filter = "AND status = $4"
		args = append(args, status)
	}
	query := fmt.Sprintf(`
		SELECT %s FROM charging_sessions
		WHERE user_id = $1 %s
		ORDER BY start_time DESC
		LIMIT $2 OFFSET $3
	`, sessionColumns, filter)

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	return collectSessions(rows)
}

// ListByUserAndStatuses returns every session of the user in one of the
// given statuses, newest-first.
func (r *SessionRepository) ListByUserAndStatuses(ctx context.Context, userID int64, statuses []string) ([]models.Session, error) {
	if len(statuses) == 0 {
		return nil, nil
	}

	placeholders := make([]string, len(statuses))
	args := make([]interface{}, 0, len(statuses)+1)
	args = append(args, userID)
	for i, status := range statuses {
		placeholders[i] = fmt.Sprintf("$%d", i+2)
		args = append(args, status)
	}

	query := fmt.Sprintf(`
		SELECT %s FROM charging_sessions
		WHERE user_id = $1 AND status IN (%s)
		ORDER BY start_time DESC
	`, sessionColumns, strings.Join(placeholders, ", "))

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	return collectSessions(rows)
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanSession(row rowScanner) (*models.Session, error) {
	var (
		s              models.Session
		endTime        sql.NullTime
		rating         sql.NullInt64
		connectorTypes []byte
		amenities      []byte
	)
	err := row.Scan(
		&s.ID,
		&s.UserID,
		&s.StationID,
		&s.ConnectorID,
		&s.ConnectorType,
		&s.Status,
		&s.StartTime,
		&endTime,
		&s.BatteryLevelStart,
		&s.BatteryLevel,
		&s.EnergyKWh,
		&s.TotalCost,
		&s.AveragePowerKw,
		&s.DurationMinutes,
		&rating,
		&s.Station.PricePerKWh,
		&s.Station.PowerOutputKw,
		&s.Station.Address,
		&connectorTypes,
		&amenities,
		&s.CreatedAt,
		&s.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	if endTime.Valid {
		t := endTime.Time
		s.EndTime = &t
	}
	if rating.Valid {
		v := int(rating.Int64)
		s.StationRating = &v
	}
	if len(connectorTypes) > 0 {
		if err := json.Unmarshal(connectorTypes, &s.Station.ConnectorTypes); err != nil {
			return nil, fmt.Errorf("decode connector types: %w", err)
		}
	}
	if len(amenities) > 0 {
		if err := json.Unmarshal(amenities, &s.Station.Amenities); err != nil {
			return nil, fmt.Errorf("decode amenities: %w", err)
		}
	}
	return &s, nil
}

func collectSessions(rows *sql.Rows) ([]models.Session, error) {
	var sessions []models.Session
	for rows.Next() {
		s, err := scanSession(rows)
		if err != nil {
			return nil, err
		}
		sessions = append(sessions, *s)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return sessions, nil
}

func marshalSnapshotLists(session *models.Session) ([]byte, []byte, error) {
	connectorTypes, err := json.Marshal(session.Station.ConnectorTypes)
	if err != nil {
		return nil, nil, err
	}
	amenities, err := json.Marshal(session.Station.Amenities)
	if err != nil {
		return nil, nil, err
	}
	return connectorTypes, amenities, nil
}
