package service

import (
	"context"
	"errors"
	"math"
	"strings"
	"testing"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	"voltflow/internal/charging"
	"voltflow/internal/models"
	"voltflow/internal/repository"
)

type fakeSessionStore struct {
	sessions  map[int64]models.Session
	nextID    int64
	saveCalls int
	failWith  error
	createErr error
}

func newFakeSessionStore() *fakeSessionStore {
	return &fakeSessionStore{sessions: make(map[int64]models.Session)}
}

func (f *fakeSessionStore) Create(_ context.Context, s *models.Session) (*models.Session, error) {
	if f.createErr != nil {
		return nil, f.createErr
	}
	if f.failWith != nil {
		return nil, f.failWith
	}
	f.nextID++
	s.ID = f.nextID
	s.CreatedAt = s.StartTime
	s.UpdatedAt = s.StartTime
	f.sessions[s.ID] = *s
	out := *s
	return &out, nil
}

func (f *fakeSessionStore) Save(_ context.Context, s *models.Session) (*models.Session, error) {
	if f.failWith != nil {
		return nil, f.failWith
	}
	f.saveCalls++
	if _, ok := f.sessions[s.ID]; !ok {
		return nil, errors.New("session missing")
	}
	f.sessions[s.ID] = *s
	out := *s
	return &out, nil
}

func (f *fakeSessionStore) FindActiveByUser(_ context.Context, userID int64) (*models.Session, error) {
	if f.failWith != nil {
		return nil, f.failWith
	}
	for _, s := range f.sessions {
		if s.UserID == userID && s.Status == models.SessionStatusActive {
			out := s
			return &out, nil
		}
	}
	return nil, nil
}

func (f *fakeSessionStore) FindByID(_ context.Context, id, userID int64) (*models.Session, error) {
	if f.failWith != nil {
		return nil, f.failWith
	}
	s, ok := f.sessions[id]
	if !ok || s.UserID != userID {
		return nil, nil
	}
	out := s
	return &out, nil
}

func (f *fakeSessionStore) ListByUser(_ context.Context, userID int64, status string, limit, offset int) ([]models.Session, error) {
	var out []models.Session
	for _, s := range f.sessions {
		if s.UserID == userID && (status == "" || s.Status == status) {
			out = append(out, s)
		}
	}
	return out, nil
}

func (f *fakeSessionStore) ListByUserAndStatuses(_ context.Context, userID int64, statuses []string) ([]models.Session, error) {
	if f.failWith != nil {
		return nil, f.failWith
	}
	var out []models.Session
	for _, s := range f.sessions {
		if s.UserID != userID {
			continue
		}
		for _, status := range statuses {
			if s.Status == status {
				out = append(out, s)
				break
			}
		}
	}
	return out, nil
}

type fakeDirectory struct {
	stations map[string]*models.Station
	err      error
}

func (f *fakeDirectory) GetStationByID(_ context.Context, id string) (*models.Station, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.stations[id], nil
}

type fakeCache struct {
	saves   int
	deletes int
}

func (f *fakeCache) Save(context.Context, int64, int64, string) error {
	f.saves++
	return nil
}

func (f *fakeCache) Delete(context.Context, int64) error {
	f.deletes++
	return nil
}

func testStation() *models.Station {
	return &models.Station{
		ID:             "st-1",
		Name:           "Main Street Fast Charger",
		Address:        "1 Main St",
		PricePerKWh:    165,
		PowerOutputKw:  50,
		ConnectorTypes: []string{"CCS2", "Type2"},
		Amenities:      []string{"cafe"},
	}
}

func newTestEngine(store *fakeSessionStore, station *models.Station) (*SessionsService, *time.Time) {
	dir := &fakeDirectory{stations: map[string]*models.Station{}}
	if station != nil {
		dir.stations[station.ID] = station
	}
	svc := NewSessionsService(store, dir, nil, charging.DefaultParams(), zap.NewNop())
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	clock := &now
	svc.now = func() time.Time { return *clock }
	return svc, clock
}

func almostEqual(a, b float64) bool {
	return math.Abs(a-b) < 0.01
}

func TestStartSessionSnapshotsStation(t *testing.T) {
	store := newFakeSessionStore()
	svc, _ := newTestEngine(store, testStation())

	session, err := svc.StartSession(context.Background(), 7, StartSessionInput{
		StationID:         "st-1",
		ConnectorID:       1,
		BatteryLevelStart: 20,
	})
	if err != nil {
		t.Fatalf("start failed: %v", err)
	}
	if session.ID == 0 {
		t.Fatal("expected a generated session id")
	}
	if session.Status != models.SessionStatusActive {
		t.Fatalf("expected active status, got %s", session.Status)
	}
	if session.Station.PricePerKWh != 165 || session.Station.PowerOutputKw != 50 {
		t.Fatalf("station snapshot not captured: %+v", session.Station)
	}
	if session.ConnectorType != "CCS2" {
		t.Fatalf("expected connector type inferred from connector id, got %q", session.ConnectorType)
	}
	if session.BatteryLevel != 20 || session.EnergyKWh != 0 || session.TotalCost != 0 {
		t.Fatalf("derived fields must start zeroed: %+v", session)
	}
}

func TestStartSessionConflict(t *testing.T) {
	store := newFakeSessionStore()
	svc, _ := newTestEngine(store, testStation())

	input := StartSessionInput{StationID: "st-1", ConnectorID: 1, BatteryLevelStart: 20}
	if _, err := svc.StartSession(context.Background(), 7, input); err != nil {
		t.Fatalf("first start failed: %v", err)
	}

	_, err := svc.StartSession(context.Background(), 7, input)
	if !IsConflict(err) {
		t.Fatalf("expected conflict error, got %v", err)
	}

	// A different user is unaffected.
	if _, err := svc.StartSession(context.Background(), 8, input); err != nil {
		t.Fatalf("start for second user failed: %v", err)
	}
}

func TestStartSessionLosesInsertRace(t *testing.T) {
	store := newFakeSessionStore()
	store.createErr = repository.ErrActiveSessionExists
	svc, _ := newTestEngine(store, testStation())

	_, err := svc.StartSession(context.Background(), 7, StartSessionInput{
		StationID:         "st-1",
		ConnectorID:       1,
		BatteryLevelStart: 20,
	})
	if !IsConflict(err) {
		t.Fatalf("a lost insert race must surface as conflict, got %v", err)
	}
}

func TestStartSessionUnknownStation(t *testing.T) {
	svc, _ := newTestEngine(newFakeSessionStore(), testStation())

	_, err := svc.StartSession(context.Background(), 7, StartSessionInput{
		StationID:         "st-missing",
		ConnectorID:       1,
		BatteryLevelStart: 20,
	})
	if !IsValidation(err) {
		t.Fatalf("expected validation error, got %v", err)
	}
}

func TestStartSessionUnsupportedConnector(t *testing.T) {
	svc, _ := newTestEngine(newFakeSessionStore(), testStation())

	_, err := svc.StartSession(context.Background(), 7, StartSessionInput{
		StationID:         "st-1",
		ConnectorID:       1,
		ConnectorType:     "CHAdeMO",
		BatteryLevelStart: 20,
	})
	if !IsValidation(err) {
		t.Fatalf("expected validation error, got %v", err)
	}
	if !strings.Contains(err.Error(), "CCS2") || !strings.Contains(err.Error(), "Type2") {
		t.Fatalf("error must list available connector types, got %q", err.Error())
	}
}

func TestStartSessionDirectoryDown(t *testing.T) {
	store := newFakeSessionStore()
	svc := NewSessionsService(store, &fakeDirectory{err: errors.New("dial timeout")}, nil, charging.DefaultParams(), zap.NewNop())

	_, err := svc.StartSession(context.Background(), 7, StartSessionInput{
		StationID:         "st-1",
		ConnectorID:       1,
		BatteryLevelStart: 20,
	})
	if !IsDependency(err) {
		t.Fatalf("expected dependency error, got %v", err)
	}
}

func TestUpdateSessionTimeDerivedValues(t *testing.T) {
	store := newFakeSessionStore()
	svc, clock := newTestEngine(store, testStation())

	if _, err := svc.StartSession(context.Background(), 7, StartSessionInput{
		StationID:         "st-1",
		ConnectorID:       1,
		BatteryLevelStart: 20,
	}); err != nil {
		t.Fatalf("start failed: %v", err)
	}

	*clock = clock.Add(time.Hour)

	// Telemetry lags far behind the 50 kW * 1 h * 0.9 derivation.
	session, err := svc.UpdateSession(context.Background(), 7, UpdateSessionInput{BatteryLevel: 25})
	if err != nil {
		t.Fatalf("update failed: %v", err)
	}
	if !almostEqual(session.EnergyKWh, 45) {
		t.Fatalf("expected 45 kWh time-derived, got %f", session.EnergyKWh)
	}
	if !almostEqual(session.BatteryLevel, 95) {
		t.Fatalf("expected 95%% time-derived, got %f", session.BatteryLevel)
	}
	if !almostEqual(session.TotalCost, 7425) {
		t.Fatalf("expected cost 7425, got %f", session.TotalCost)
	}
	if !almostEqual(session.AveragePowerKw, 45) {
		t.Fatalf("expected 45 kW average, got %f", session.AveragePowerKw)
	}
	if !almostEqual(session.DurationMinutes, 60) {
		t.Fatalf("expected 60 minutes, got %f", session.DurationMinutes)
	}
}

func TestUpdateSessionMonotonicity(t *testing.T) {
	store := newFakeSessionStore()
	svc, clock := newTestEngine(store, testStation())

	if _, err := svc.StartSession(context.Background(), 7, StartSessionInput{
		StationID:         "st-1",
		ConnectorID:       1,
		BatteryLevelStart: 20,
	}); err != nil {
		t.Fatalf("start failed: %v", err)
	}

	*clock = clock.Add(30 * time.Minute)
	energy := 30.0
	first, err := svc.UpdateSession(context.Background(), 7, UpdateSessionInput{BatteryLevel: 70, EnergyKWh: &energy})
	if err != nil {
		t.Fatalf("first update failed: %v", err)
	}

	// Regressing telemetry at the same instant must not move anything down.
	lowEnergy := 1.0
	second, err := svc.UpdateSession(context.Background(), 7, UpdateSessionInput{BatteryLevel: 5, EnergyKWh: &lowEnergy})
	if err != nil {
		t.Fatalf("second update failed: %v", err)
	}
	if second.EnergyKWh < first.EnergyKWh {
		t.Fatalf("energy regressed: %f -> %f", first.EnergyKWh, second.EnergyKWh)
	}
	if second.BatteryLevel < first.BatteryLevel {
		t.Fatalf("battery level regressed: %f -> %f", first.BatteryLevel, second.BatteryLevel)
	}

	// Telemetry ahead of the derivation is authoritative.
	highEnergy := 40.0
	third, err := svc.UpdateSession(context.Background(), 7, UpdateSessionInput{BatteryLevel: 99, EnergyKWh: &highEnergy})
	if err != nil {
		t.Fatalf("third update failed: %v", err)
	}
	if !almostEqual(third.EnergyKWh, 40) || !almostEqual(third.BatteryLevel, 99) {
		t.Fatalf("caller-supplied values should win when higher: %+v", third)
	}
}

func TestUpdateSessionNoActive(t *testing.T) {
	svc, _ := newTestEngine(newFakeSessionStore(), testStation())

	_, err := svc.UpdateSession(context.Background(), 7, UpdateSessionInput{BatteryLevel: 50})
	if !IsNotFound(err) {
		t.Fatalf("expected not found error, got %v", err)
	}
}

func TestEndSessionBatteryDeltaFallback(t *testing.T) {
	store := newFakeSessionStore()
	station := testStation()
	station.PowerOutputKw = 0 // no rated power, no time derivation
	station.PricePerKWh = 0   // force the documented default price
	svc, clock := newTestEngine(store, station)

	created, err := svc.StartSession(context.Background(), 7, StartSessionInput{
		StationID:         "st-1",
		ConnectorID:       1,
		BatteryLevelStart: 30,
	})
	if err != nil {
		t.Fatalf("start failed: %v", err)
	}

	*clock = clock.Add(time.Hour)
	levelEnd := 90.0
	session, err := svc.EndSession(context.Background(), 7, EndSessionInput{
		SessionID:       created.ID,
		BatteryLevelEnd: &levelEnd,
	})
	if err != nil {
		t.Fatalf("end failed: %v", err)
	}

	// (90-30)/100 * 60 kWh assumed capacity = 36 kWh.
	if !almostEqual(session.EnergyKWh, 36) {
		t.Fatalf("expected 36 kWh estimated, got %f", session.EnergyKWh)
	}
	if !almostEqual(session.TotalCost, 36*charging.DefaultPricePerKWh) {
		t.Fatalf("expected cost from estimate at default price, got %f", session.TotalCost)
	}
	if session.BatteryLevel != 90 {
		t.Fatalf("explicit end level is authoritative, got %f", session.BatteryLevel)
	}
	if session.Status != models.SessionStatusCompleted || session.EndTime == nil {
		t.Fatalf("expected completed session with end time: %+v", session)
	}
}

func TestEndSessionRatedPowerFallback(t *testing.T) {
	store := newFakeSessionStore()
	svc, clock := newTestEngine(store, testStation())

	created, err := svc.StartSession(context.Background(), 7, StartSessionInput{
		StationID:         "st-1",
		ConnectorID:       2,
		BatteryLevelStart: 20,
	})
	if err != nil {
		t.Fatalf("start failed: %v", err)
	}

	// No telemetry, no explicit end level: rated power * duration stands in.
	*clock = clock.Add(30 * time.Minute)
	session, err := svc.EndSession(context.Background(), 7, EndSessionInput{SessionID: created.ID})
	if err != nil {
		t.Fatalf("end failed: %v", err)
	}
	if !almostEqual(session.EnergyKWh, 25) {
		t.Fatalf("expected 50 kW * 0.5 h = 25 kWh, got %f", session.EnergyKWh)
	}
	if !almostEqual(session.AveragePowerKw, 50) {
		t.Fatalf("expected average power pinned to rated power, got %f", session.AveragePowerKw)
	}
	if !almostEqual(session.TotalCost, 25*165) {
		t.Fatalf("expected cost 4125, got %f", session.TotalCost)
	}
}

func TestEndSessionTerminality(t *testing.T) {
	store := newFakeSessionStore()
	svc, clock := newTestEngine(store, testStation())

	created, err := svc.StartSession(context.Background(), 7, StartSessionInput{
		StationID:         "st-1",
		ConnectorID:       1,
		BatteryLevelStart: 20,
	})
	if err != nil {
		t.Fatalf("start failed: %v", err)
	}

	*clock = clock.Add(10 * time.Minute)
	if _, err := svc.EndSession(context.Background(), 7, EndSessionInput{SessionID: created.ID}); err != nil {
		t.Fatalf("end failed: %v", err)
	}

	if _, err := svc.UpdateSession(context.Background(), 7, UpdateSessionInput{BatteryLevel: 50}); !IsNotFound(err) {
		t.Fatalf("update after end must be not found, got %v", err)
	}
	if _, err := svc.EndSession(context.Background(), 7, EndSessionInput{SessionID: created.ID}); !IsNotFound(err) {
		t.Fatalf("double end must be not found, got %v", err)
	}
}

func TestEndSessionRatingValidation(t *testing.T) {
	svc, _ := newTestEngine(newFakeSessionStore(), testStation())

	bad := 6
	_, err := svc.EndSession(context.Background(), 7, EndSessionInput{SessionID: 1, Rating: &bad})
	if !IsValidation(err) {
		t.Fatalf("expected validation error for rating 6, got %v", err)
	}
}

func TestEndSessionStampsRating(t *testing.T) {
	store := newFakeSessionStore()
	svc, clock := newTestEngine(store, testStation())

	created, err := svc.StartSession(context.Background(), 7, StartSessionInput{
		StationID:         "st-1",
		ConnectorID:       1,
		BatteryLevelStart: 20,
	})
	if err != nil {
		t.Fatalf("start failed: %v", err)
	}

	*clock = clock.Add(time.Minute)
	rating := 4
	session, err := svc.EndSession(context.Background(), 7, EndSessionInput{SessionID: created.ID, Rating: &rating})
	if err != nil {
		t.Fatalf("end failed: %v", err)
	}
	if session.StationRating == nil || *session.StationRating != 4 {
		t.Fatalf("expected rating 4 stamped, got %v", session.StationRating)
	}
}

func TestEndSessionWarnsOnImplausiblePower(t *testing.T) {
	core, logs := observer.New(zap.WarnLevel)
	store := newFakeSessionStore()
	station := testStation()
	station.PowerOutputKw = 10

	dir := &fakeDirectory{stations: map[string]*models.Station{station.ID: station}}
	svc := NewSessionsService(store, dir, nil, charging.DefaultParams(), zap.New(core))
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	clock := &now
	svc.now = func() time.Time { return *clock }

	created, err := svc.StartSession(context.Background(), 7, StartSessionInput{
		StationID:         "st-1",
		ConnectorID:       1,
		BatteryLevelStart: 20,
	})
	if err != nil {
		t.Fatalf("start failed: %v", err)
	}

	*clock = clock.Add(time.Hour)
	energy := 100.0
	if _, err := svc.UpdateSession(context.Background(), 7, UpdateSessionInput{BatteryLevel: 90, EnergyKWh: &energy}); err != nil {
		t.Fatalf("update failed: %v", err)
	}

	session, err := svc.EndSession(context.Background(), 7, EndSessionInput{SessionID: created.ID})
	if err != nil {
		t.Fatalf("end must never fail on the plausibility check: %v", err)
	}
	if session.Status != models.SessionStatusCompleted {
		t.Fatalf("expected completed session, got %s", session.Status)
	}
	if logs.FilterMessage("average power exceeds station rating").Len() != 1 {
		t.Fatal("expected a single rated-power warning")
	}
}

func TestGetActiveSessionDoesNotPersist(t *testing.T) {
	store := newFakeSessionStore()
	svc, clock := newTestEngine(store, testStation())

	if _, err := svc.StartSession(context.Background(), 7, StartSessionInput{
		StationID:         "st-1",
		ConnectorID:       1,
		BatteryLevelStart: 20,
	}); err != nil {
		t.Fatalf("start failed: %v", err)
	}
	savesBefore := store.saveCalls

	*clock = clock.Add(30 * time.Minute)
	first, err := svc.GetActiveSession(context.Background(), 7)
	if err != nil {
		t.Fatalf("get active failed: %v", err)
	}
	second, err := svc.GetActiveSession(context.Background(), 7)
	if err != nil {
		t.Fatalf("second get active failed: %v", err)
	}

	if store.saveCalls != savesBefore {
		t.Fatalf("get active must not persist, saw %d extra saves", store.saveCalls-savesBefore)
	}
	if first.EnergyKWh != second.EnergyKWh || first.BatteryLevel != second.BatteryLevel || first.TotalCost != second.TotalCost {
		t.Fatalf("same-instant reads must be identical: %+v vs %+v", first, second)
	}
	if !almostEqual(first.EnergyKWh, 22.5) {
		t.Fatalf("expected 50 kW * 0.5 h * 0.9 = 22.5 kWh projected, got %f", first.EnergyKWh)
	}

	// The store still holds the unprojected record.
	stored := store.sessions[1]
	if stored.EnergyKWh != 0 {
		t.Fatalf("projection leaked into the store: %f", stored.EnergyKWh)
	}
}

func TestGetActiveSessionNone(t *testing.T) {
	svc, _ := newTestEngine(newFakeSessionStore(), testStation())

	session, err := svc.GetActiveSession(context.Background(), 7)
	if err != nil {
		t.Fatalf("get active failed: %v", err)
	}
	if session != nil {
		t.Fatalf("expected nil session, got %+v", session)
	}
}

func TestCancelSessionSkipsBilling(t *testing.T) {
	store := newFakeSessionStore()
	svc, clock := newTestEngine(store, testStation())

	created, err := svc.StartSession(context.Background(), 7, StartSessionInput{
		StationID:         "st-1",
		ConnectorID:       1,
		BatteryLevelStart: 20,
	})
	if err != nil {
		t.Fatalf("start failed: %v", err)
	}

	*clock = clock.Add(20 * time.Minute)
	session, err := svc.CancelSession(context.Background(), 7, created.ID)
	if err != nil {
		t.Fatalf("cancel failed: %v", err)
	}
	if session.Status != models.SessionStatusCancelled {
		t.Fatalf("expected cancelled status, got %s", session.Status)
	}
	if session.TotalCost != 0 {
		t.Fatalf("cancelled sessions must not bill, got %f", session.TotalCost)
	}
	if session.EndTime == nil {
		t.Fatal("cancelled session must carry an end time")
	}

	if _, err := svc.UpdateSession(context.Background(), 7, UpdateSessionInput{BatteryLevel: 50}); !IsNotFound(err) {
		t.Fatalf("update after cancel must be not found, got %v", err)
	}
}

func TestActiveSessionCacheLifecycle(t *testing.T) {
	store := newFakeSessionStore()
	cache := &fakeCache{}
	dir := &fakeDirectory{stations: map[string]*models.Station{"st-1": testStation()}}
	svc := NewSessionsService(store, dir, cache, charging.DefaultParams(), zap.NewNop())
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	clock := &now
	svc.now = func() time.Time { return *clock }

	created, err := svc.StartSession(context.Background(), 7, StartSessionInput{
		StationID:         "st-1",
		ConnectorID:       1,
		BatteryLevelStart: 20,
	})
	if err != nil {
		t.Fatalf("start failed: %v", err)
	}
	if cache.saves != 1 {
		t.Fatalf("expected one cache save, got %d", cache.saves)
	}

	*clock = clock.Add(time.Minute)
	if _, err := svc.EndSession(context.Background(), 7, EndSessionInput{SessionID: created.ID}); err != nil {
		t.Fatalf("end failed: %v", err)
	}
	if cache.deletes != 1 {
		t.Fatalf("expected one cache delete, got %d", cache.deletes)
	}
}
