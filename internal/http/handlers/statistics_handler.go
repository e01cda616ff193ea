package handlers

import (
	"net/http"

	"go.uber.org/zap"

	"voltflow/internal/http/middleware"
	"voltflow/internal/service"
)

// NewStatisticsHandler returns the GET /api/statistics handler.
func NewStatisticsHandler(svc *service.StatisticsService, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID, ok := middleware.UserIDFromContext(r.Context())
		if !ok {
			writeError(w, http.StatusUnauthorized, "unauthorized")
			return
		}

		stats, err := svc.Compute(r.Context(), userID)
		if err != nil {
			logger.Error("compute statistics failed", zap.Int64("user_id", userID), zap.Error(err))
			writeServiceError(w, err)
			return
		}
		writeData(w, http.StatusOK, stats)
	}
}
