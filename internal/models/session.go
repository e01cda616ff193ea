package models

import "time"

// Session statuses. Only an active session may be mutated.
const (
	SessionStatusActive    = "active"
	SessionStatusCompleted = "completed"
	SessionStatusCancelled = "cancelled"
)

// StationSnapshot holds station attributes copied into the session when it
// starts. Later edits to the station directory never change a past
// session's billing.
type StationSnapshot struct {
	PricePerKWh    float64  `db:"price_per_kwh" json:"price_per_kwh"`
	PowerOutputKw  float64  `db:"power_output_kw" json:"power_output_kw"`
	Address        string   `db:"address" json:"address"`
	ConnectorTypes []string `db:"connector_types" json:"connector_types"`
	Amenities      []string `db:"amenities" json:"amenities"`
}

// Session represents one charging event for one user at one station
// connector. duration, average power and total cost are derived fields:
// they are always recomputable from start/end time, delivered energy and
// the snapshotted price, never independently authoritative.
type Session struct {
	ID                int64           `db:"id" json:"id"`
	UserID            int64           `db:"user_id" json:"user_id"`
	StationID         string          `db:"station_id" json:"station_id"`
	ConnectorID       int             `db:"connector_id" json:"connector_id"`
	ConnectorType     string          `db:"connector_type" json:"connector_type"`
	Status            string          `db:"status" json:"status"`
	StartTime         time.Time       `db:"start_time" json:"start_time"`
	EndTime           *time.Time      `db:"end_time" json:"end_time,omitempty"`
	BatteryLevelStart float64         `db:"battery_level_start" json:"battery_level_start"`
	BatteryLevel      float64         `db:"battery_level" json:"battery_level"`
	EnergyKWh         float64         `db:"energy_kwh" json:"energy_kwh"`
	TotalCost         float64         `db:"total_cost" json:"total_cost"`
	AveragePowerKw    float64         `db:"average_power_kw" json:"average_power_kw"`
	DurationMinutes   float64         `db:"duration_minutes" json:"duration_minutes"`
	StationRating     *int            `db:"station_rating" json:"station_rating,omitempty"`
	Station           StationSnapshot `db:"-" json:"station"`
	CreatedAt         time.Time       `db:"created_at" json:"created_at"`
	UpdatedAt         time.Time       `db:"updated_at" json:"updated_at"`
}

// IsTerminal reports whether the session reached a final status.
func (s *Session) IsTerminal() bool {
	return s.Status == SessionStatusCompleted || s.Status == SessionStatusCancelled
}
