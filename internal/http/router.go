package httpserver

import "net/http"

// Routes groups the handlers wired by the app.
type Routes struct {
	Signup           http.HandlerFunc
	Login            http.HandlerFunc
	SessionStart     http.HandlerFunc
	SessionUpdate    http.HandlerFunc
	SessionEnd       http.HandlerFunc
	SessionCancel    http.HandlerFunc
	SessionActive    http.HandlerFunc
	SessionStream    http.HandlerFunc
	SessionHistory   http.HandlerFunc
	Statistics       http.HandlerFunc
	StationsList     http.HandlerFunc
	StationGet       http.HandlerFunc
	StationUpsert    http.HandlerFunc
	VehicleRecognize http.HandlerFunc
	Estimate         http.HandlerFunc
	Health           http.HandlerFunc
}

// NewRouter registers endpoints. authed wraps handlers that require a
// valid token.
func NewRouter(routes Routes, authed func(http.Handler) http.Handler) http.Handler {
	mux := http.NewServeMux()

	register := func(pattern, verb string, h http.HandlerFunc, protected bool) {
		if h == nil {
			return
		}
		var handler http.Handler = method(verb, h)
		if protected && authed != nil {
			handler = authed(handler)
		}
		mux.Handle(pattern, handler)
	}

	register("/api/auth/signup", http.MethodPost, routes.Signup, false)
	register("/api/auth/login", http.MethodPost, routes.Login, false)

	register("/api/sessions/start", http.MethodPost, routes.SessionStart, true)
	register("/api/sessions/update", http.MethodPut, routes.SessionUpdate, true)
	register("/api/sessions/end", http.MethodPost, routes.SessionEnd, true)
	register("/api/sessions/cancel", http.MethodPost, routes.SessionCancel, true)
	register("/api/sessions/active", http.MethodGet, routes.SessionActive, true)
	register("/api/sessions/active/stream", http.MethodGet, routes.SessionStream, true)
	register("/api/sessions", http.MethodGet, routes.SessionHistory, true)
	register("/api/statistics", http.MethodGet, routes.Statistics, true)

	register("/api/stations", http.MethodGet, routes.StationsList, false)
	register("/api/stations/", http.MethodGet, routes.StationGet, false)
	register("/api/stations/upsert", http.MethodPut, routes.StationUpsert, true)

	register("/api/vehicles/recognize", http.MethodPost, routes.VehicleRecognize, true)
	register("/api/estimate", http.MethodPost, routes.Estimate, true)

	register("/health", http.MethodGet, routes.Health, false)

	return mux
}

func method(expected string, handler http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != expected {
			w.Header().Set("Allow", expected)
			w.WriteHeader(http.StatusMethodNotAllowed)
			return
		}
		handler(w, r)
	}
}
