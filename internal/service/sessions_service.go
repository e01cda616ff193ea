package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"voltflow/internal/charging"
	"voltflow/internal/models"
	"voltflow/internal/repository"
)

// Rated-power tolerance before the plausibility warning fires.
const ratedPowerTolerance = 1.2

// SessionStore is the persistence contract for charging sessions. Lookups
// return (nil, nil) when no row matches; real failures come back as errors.
type SessionStore interface {
	Create(ctx context.Context, session *models.Session) (*models.Session, error)
	Save(ctx context.Context, session *models.Session) (*models.Session, error)
	FindActiveByUser(ctx context.Context, userID int64) (*models.Session, error)
	FindByID(ctx context.Context, id, userID int64) (*models.Session, error)
	ListByUser(ctx context.Context, userID int64, status string, limit, offset int) ([]models.Session, error)
	ListByUserAndStatuses(ctx context.Context, userID int64, statuses []string) ([]models.Session, error)
}

// StationDirectory resolves station metadata. Returns (nil, nil) for an
// unknown station id.
type StationDirectory interface {
	GetStationByID(ctx context.Context, id string) (*models.Station, error)
}

// ActiveSessionCache mirrors the current active session per user for quick
// lookups. All writes are best-effort; cache failures never fail an
// operation.
type ActiveSessionCache interface {
	Save(ctx context.Context, userID, sessionID int64, stationID string) error
	Delete(ctx context.Context, userID int64) error
}

// SessionsService owns the session state machine: start, telemetry
// updates with monotonic reconciliation, completion, cancellation and the
// non-mutating real-time view.
type SessionsService struct {
	store    SessionStore
	stations StationDirectory
	cache    ActiveSessionCache
	params   charging.Params
	logger   *zap.Logger
	now      func() time.Time
}

// NewSessionsService builds the engine. cache may be nil.
func NewSessionsService(
	store SessionStore,
	stations StationDirectory,
	cache ActiveSessionCache,
	params charging.Params,
	logger *zap.Logger,
) *SessionsService {
	return &SessionsService{
		store:    store,
		stations: stations,
		cache:    cache,
		params:   params.Normalize(),
		logger:   logger,
		now:      func() time.Time { return time.Now().UTC() },
	}
}

// StartSessionInput is the payload for starting a charge.
type StartSessionInput struct {
	StationID         string
	ConnectorID       int
	ConnectorType     string
	BatteryLevelStart float64
}

// UpdateSessionInput carries telemetry for an active session. EnergyKWh is
// optional; when omitted only the time-derived estimate applies.
type UpdateSessionInput struct {
	BatteryLevel float64
	EnergyKWh    *float64
}

// EndSessionInput finalizes a session. BatteryLevelEnd, when present, is
// authoritative. Rating optionally stamps the station 1-5.
type EndSessionInput struct {
	SessionID       int64
	BatteryLevelEnd *float64
	Rating          *int
}

// StartSession creates a new active session after checking that the user
// has none, that the station exists and that the connector is supported.
// Station attributes are snapshotted so later directory edits never change
// this session's billing.
func (s *SessionsService) StartSession(ctx context.Context, userID int64, input StartSessionInput) (*models.Session, error) {
	if input.BatteryLevelStart < 0 || input.BatteryLevelStart > 100 {
		return nil, &ValidationError{Message: "battery level must be between 0 and 100"}
	}
	if strings.TrimSpace(input.StationID) == "" {
		return nil, &ValidationError{Message: "station id is required"}
	}

	station, err := s.stations.GetStationByID(ctx, input.StationID)
	if err != nil {
		return nil, &DependencyError{Message: "station directory lookup failed", Err: err}
	}
	if station == nil {
		return nil, &ValidationError{Message: fmt.Sprintf("station %s not found", input.StationID)}
	}
	if station.ID != input.StationID {
		return nil, &ValidationError{Message: "station id mismatch"}
	}

	connectorType, err := resolveConnectorType(station, input.ConnectorID, input.ConnectorType)
	if err != nil {
		return nil, err
	}

	existing, err := s.store.FindActiveByUser(ctx, userID)
	if err != nil {
		return nil, &DependencyError{Message: "session store lookup failed", Err: err}
	}
	if existing != nil {
		return nil, &ConflictError{Message: "active session already exists"}
	}

	session := &models.Session{
		UserID:            userID,
		StationID:         station.ID,
		ConnectorID:       input.ConnectorID,
		ConnectorType:     connectorType,
		Status:            models.SessionStatusActive,
		StartTime:         s.now(),
		BatteryLevelStart: input.BatteryLevelStart,
		BatteryLevel:      input.BatteryLevelStart,
		Station:           station.Snapshot(),
	}

	session, err = s.store.Create(ctx, session)
	if err != nil {
		// A concurrent start for the same user loses at the store's
		// uniqueness constraint, not only at the sequential check above.
		if errors.Is(err, repository.ErrActiveSessionExists) {
			return nil, &ConflictError{Message: "active session already exists"}
		}
		return nil, &DependencyError{Message: "failed to create session", Err: err}
	}

	if s.cache != nil {
		if cacheErr := s.cache.Save(ctx, userID, session.ID, session.StationID); cacheErr != nil {
			s.logger.Warn("failed to cache active session", zap.Int64("user_id", userID), zap.Error(cacheErr))
		}
	}

	s.logger.Info("charging session started",
		zap.Int64("session_id", session.ID),
		zap.Int64("user_id", userID),
		zap.String("station_id", session.StationID),
	)
	return session, nil
}

// UpdateSession ingests telemetry for the user's active session. Stored
// battery level and energy only ever move up: each becomes the max of the
// caller-supplied value, the time-derived estimate and the stored value,
// so lagging or under-reporting telemetry can never regress a session.
func (s *SessionsService) UpdateSession(ctx context.Context, userID int64, input UpdateSessionInput) (*models.Session, error) {
	if input.BatteryLevel < 0 || input.BatteryLevel > 100 {
		return nil, &ValidationError{Message: "battery level must be between 0 and 100"}
	}
	if input.EnergyKWh != nil && *input.EnergyKWh < 0 {
		return nil, &ValidationError{Message: "energy delivered cannot be negative"}
	}

	session, err := s.store.FindActiveByUser(ctx, userID)
	if err != nil {
		return nil, &DependencyError{Message: "session store lookup failed", Err: err}
	}
	if session == nil {
		return nil, &NotFoundError{Message: "no active session"}
	}

	now := s.now()
	s.projectRealtime(session, now)

	if input.BatteryLevel > session.BatteryLevel {
		session.BatteryLevel = input.BatteryLevel
	}
	if input.EnergyKWh != nil && *input.EnergyKWh > session.EnergyKWh {
		session.EnergyKWh = *input.EnergyKWh
	}
	s.recomputeDerived(session, now)

	session, err = s.store.Save(ctx, session)
	if err != nil {
		return nil, &DependencyError{Message: "failed to save session", Err: err}
	}
	return session, nil
}

// EndSession completes the active session identified by id. An explicit
// final battery level is authoritative. Sessions that never reported
// energy fall back to a battery-delta estimate, then to rated power times
// duration, so a completed session always carries a defensible bill.
func (s *SessionsService) EndSession(ctx context.Context, userID int64, input EndSessionInput) (*models.Session, error) {
	if input.BatteryLevelEnd != nil && (*input.BatteryLevelEnd < 0 || *input.BatteryLevelEnd > 100) {
		return nil, &ValidationError{Message: "battery level must be between 0 and 100"}
	}
	if input.Rating != nil && (*input.Rating < 1 || *input.Rating > 5) {
		return nil, &ValidationError{Message: "rating must be between 1 and 5"}
	}

	session, err := s.store.FindByID(ctx, input.SessionID, userID)
	if err != nil {
		return nil, &DependencyError{Message: "session store lookup failed", Err: err}
	}
	if session == nil || session.Status != models.SessionStatusActive {
		return nil, &NotFoundError{Message: "active session not found"}
	}

	now := s.now()
	endTime := now

	if input.BatteryLevelEnd != nil {
		session.BatteryLevel = *input.BatteryLevelEnd
	}

	// Battery-delta fallback for sessions with no telemetry at all.
	if session.EnergyKWh == 0 && input.BatteryLevelEnd != nil {
		session.EnergyKWh = charging.EnergyFromLevels(
			session.BatteryLevelStart,
			*input.BatteryLevelEnd,
			s.params.AssumedCapacityKWh,
		)
	}

	session.DurationMinutes = charging.DurationMinutes(session.StartTime, endTime)

	rated := session.Station.PowerOutputKw
	if session.EnergyKWh == 0 && rated > 0 && session.DurationMinutes > 0 {
		session.EnergyKWh = rated * (session.DurationMinutes / 60)
		session.AveragePowerKw = rated
	} else {
		session.AveragePowerKw = charging.AveragePower(session.EnergyKWh, session.DurationMinutes)
	}

	session.TotalCost = charging.Cost(session.EnergyKWh, s.effectivePrice(session))

	if rated > 0 && session.AveragePowerKw > rated*ratedPowerTolerance {
		s.logger.Warn("average power exceeds station rating",
			zap.Int64("session_id", session.ID),
			zap.Float64("average_power_kw", session.AveragePowerKw),
			zap.Float64("rated_power_kw", rated),
		)
	}

	session.EndTime = &endTime
	session.Status = models.SessionStatusCompleted
	if input.Rating != nil {
		session.StationRating = input.Rating
	}

	session, err = s.store.Save(ctx, session)
	if err != nil {
		return nil, &DependencyError{Message: "failed to save session", Err: err}
	}

	s.dropActiveCache(ctx, userID)
	s.logger.Info("charging session completed",
		zap.Int64("session_id", session.ID),
		zap.Int64("user_id", userID),
		zap.Float64("energy_kwh", session.EnergyKWh),
		zap.Float64("total_cost", session.TotalCost),
	)
	return session, nil
}

// CancelSession abandons the active session identified by id without
// billing. Accrued telemetry stays on the record, the cost is zeroed.
func (s *SessionsService) CancelSession(ctx context.Context, userID, sessionID int64) (*models.Session, error) {
	session, err := s.store.FindByID(ctx, sessionID, userID)
	if err != nil {
		return nil, &DependencyError{Message: "session store lookup failed", Err: err}
	}
	if session == nil || session.Status != models.SessionStatusActive {
		return nil, &NotFoundError{Message: "active session not found"}
	}

	now := s.now()
	session.DurationMinutes = charging.DurationMinutes(session.StartTime, now)
	session.AveragePowerKw = charging.AveragePower(session.EnergyKWh, session.DurationMinutes)
	session.TotalCost = 0
	session.EndTime = &now
	session.Status = models.SessionStatusCancelled

	session, err = s.store.Save(ctx, session)
	if err != nil {
		return nil, &DependencyError{Message: "failed to save session", Err: err}
	}

	s.dropActiveCache(ctx, userID)
	s.logger.Info("charging session cancelled",
		zap.Int64("session_id", session.ID),
		zap.Int64("user_id", userID),
	)
	return session, nil
}

// GetActiveSession returns a real-time view of the user's active session
// with derived values projected from elapsed time. The projection is for
// display only and is never persisted. Returns (nil, nil) when the user
// has no active session.
func (s *SessionsService) GetActiveSession(ctx context.Context, userID int64) (*models.Session, error) {
	session, err := s.store.FindActiveByUser(ctx, userID)
	if err != nil {
		return nil, &DependencyError{Message: "session store lookup failed", Err: err}
	}
	if session == nil {
		return nil, nil
	}

	view := *session
	s.projectRealtime(&view, s.now())
	return &view, nil
}

// ListSessions returns the user's session history, newest first. status
// filters when non-empty.
func (s *SessionsService) ListSessions(ctx context.Context, userID int64, status string, limit, offset int) ([]models.Session, error) {
	sessions, err := s.store.ListByUser(ctx, userID, status, limit, offset)
	if err != nil {
		return nil, &DependencyError{Message: "session store lookup failed", Err: err}
	}
	return sessions, nil
}

// projectRealtime folds the time-derived estimate into the session's
// stored values using max, preserving monotonicity, then refreshes the
// derived fields. With no usable power or elapsed time the stored values
// stand.
func (s *SessionsService) projectRealtime(session *models.Session, now time.Time) {
	powerKw := session.Station.PowerOutputKw
	if powerKw <= 0 {
		powerKw = session.AveragePowerKw
	}

	elapsed := charging.ElapsedHours(session.StartTime, now)
	derivedEnergy := charging.EnergyDelivered(powerKw, elapsed, s.params.Efficiency)
	if derivedEnergy > session.EnergyKWh {
		session.EnergyKWh = derivedEnergy
	}

	derivedLevel := charging.BatteryLevel(session.BatteryLevelStart, session.EnergyKWh, s.params.AssumedCapacityKWh)
	if derivedLevel > session.BatteryLevel {
		session.BatteryLevel = derivedLevel
	}

	s.recomputeDerived(session, now)
}

func (s *SessionsService) recomputeDerived(session *models.Session, now time.Time) {
	session.DurationMinutes = charging.DurationMinutes(session.StartTime, now)
	session.AveragePowerKw = charging.AveragePower(session.EnergyKWh, session.DurationMinutes)
	session.TotalCost = charging.Cost(session.EnergyKWh, s.effectivePrice(session))
}

func (s *SessionsService) effectivePrice(session *models.Session) float64 {
	if session.Station.PricePerKWh > 0 {
		return session.Station.PricePerKWh
	}
	return s.params.DefaultPricePerKWh
}

func (s *SessionsService) dropActiveCache(ctx context.Context, userID int64) {
	if s.cache == nil {
		return
	}
	if err := s.cache.Delete(ctx, userID); err != nil {
		s.logger.Warn("failed to drop active session cache", zap.Int64("user_id", userID), zap.Error(err))
	}
}

// resolveConnectorType validates an explicit connector type against the
// station's list or infers one from the 1-based connector index.
func resolveConnectorType(station *models.Station, connectorID int, explicit string) (string, error) {
	available := strings.Join(station.ConnectorTypes, ", ")

	if explicit != "" {
		for _, ct := range station.ConnectorTypes {
			if strings.EqualFold(ct, explicit) {
				return ct, nil
			}
		}
		return "", &ValidationError{Message: fmt.Sprintf("connector type %s not supported, available: %s", explicit, available)}
	}

	if connectorID >= 1 && connectorID <= len(station.ConnectorTypes) {
		return station.ConnectorTypes[connectorID-1], nil
	}
	return "", &ValidationError{Message: fmt.Sprintf("unknown connector %d, available types: %s", connectorID, available)}
}
