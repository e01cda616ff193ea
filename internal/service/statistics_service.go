package service

import (
	"context"
	"sort"

	"go.uber.org/zap"

	"voltflow/internal/models"
)

// Months of history kept in the per-month breakdown.
const monthlyUsageWindow = 12

// StatisticsService folds a user's terminal sessions into summary
// statistics. The result is a pure projection recomputed on demand;
// nothing is persisted.
type StatisticsService struct {
	store  SessionStore
	logger *zap.Logger
}

// NewStatisticsService builds the aggregator.
func NewStatisticsService(store SessionStore, logger *zap.Logger) *StatisticsService {
	return &StatisticsService{store: store, logger: logger}
}

// Compute aggregates the user's completed and cancelled sessions. Active
// sessions are excluded. An empty history yields all-zero statistics with
// no favorite station.
func (s *StatisticsService) Compute(ctx context.Context, userID int64) (*models.UserStatistics, error) {
	sessions, err := s.store.ListByUserAndStatuses(ctx, userID, []string{
		models.SessionStatusCompleted,
		models.SessionStatusCancelled,
	})
	if err != nil {
		return nil, &DependencyError{Message: "session store lookup failed", Err: err}
	}

	stats := &models.UserStatistics{MonthlyUsage: []models.MonthlyUsage{}}
	if len(sessions) == 0 {
		return stats, nil
	}

	var totalDuration float64
	stationCounts := make(map[string]int)
	monthly := make(map[string]*models.MonthlyUsage)

	for i := range sessions {
		sess := &sessions[i]

		stats.TotalSessions++
		stats.TotalEnergyUsedKWh += sess.EnergyKWh
		stats.TotalSpent += sess.TotalCost
		totalDuration += sess.DurationMinutes
		stationCounts[sess.StationID]++

		month := sess.StartTime.UTC().Format("2006-01")
		bucket, ok := monthly[month]
		if !ok {
			bucket = &models.MonthlyUsage{Month: month}
			monthly[month] = bucket
		}
		bucket.Sessions++
		bucket.EnergyKWh += sess.EnergyKWh
		bucket.Spent += sess.TotalCost
	}

	stats.AverageSessionDurationMinutes = totalDuration / float64(stats.TotalSessions)
	stats.FavoriteStation = favoriteStation(stationCounts)

	for _, bucket := range monthly {
		stats.MonthlyUsage = append(stats.MonthlyUsage, *bucket)
	}
	sort.Slice(stats.MonthlyUsage, func(i, j int) bool {
		return stats.MonthlyUsage[i].Month > stats.MonthlyUsage[j].Month
	})
	if len(stats.MonthlyUsage) > monthlyUsageWindow {
		stats.MonthlyUsage = stats.MonthlyUsage[:monthlyUsageWindow]
	}

	return stats, nil
}

// favoriteStation picks the most visited station id. Ties go to the
// lexicographically smaller id so the result is deterministic.
func favoriteStation(counts map[string]int) string {
	var best string
	bestCount := 0
	for id, count := range counts {
		if count > bestCount || (count == bestCount && (best == "" || id < best)) {
			best = id
			bestCount = count
		}
	}
	return best
}
