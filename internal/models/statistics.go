package models

// MonthlyUsage is one YYYY-MM bucket of a user's charging history.
type MonthlyUsage struct {
	Month     string  `json:"month"`
	Sessions  int     `json:"sessions"`
	EnergyKWh float64 `json:"energy_kwh"`
	Spent     float64 `json:"spent"`
}

// UserStatistics is a recomputed-on-demand projection over a user's
// completed and cancelled sessions. It has no lifecycle of its own.
type UserStatistics struct {
	TotalSessions                 int            `json:"total_sessions"`
	TotalEnergyUsedKWh            float64        `json:"total_energy_used_kwh"`
	TotalSpent                    float64        `json:"total_spent"`
	AverageSessionDurationMinutes float64        `json:"average_session_duration_minutes"`
	FavoriteStation               string         `json:"favorite_station,omitempty"`
	MonthlyUsage                  []MonthlyUsage `json:"monthly_usage"`
}
