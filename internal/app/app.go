package app

import (
	"context"
	"database/sql"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"voltflow/internal/auth"
	"voltflow/internal/charging"
	"voltflow/internal/clients"
	"voltflow/internal/config"
	httpserver "voltflow/internal/http"
	"voltflow/internal/http/handlers"
	"voltflow/internal/http/middleware"
	"voltflow/internal/redisstore"
	"voltflow/internal/repository"
	"voltflow/internal/service"
	libdb "voltflow/libs/db"
	libredis "voltflow/libs/redis"
)

// App wires the voltflow dependency graph.
type App struct {
	server      *httpserver.Server
	db          *sql.DB
	redisClient *redis.Client
	logger      *zap.Logger
}

// New constructs the application graph.
func New(cfg *config.Config, logger *zap.Logger) (*App, error) {
	sqlDB, err := libdb.NewPostgres(cfg.Database.DSN)
	if err != nil {
		return nil, err
	}

	redisClient, err := libredis.NewClient(cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB)
	if err != nil {
		sqlDB.Close()
		return nil, err
	}

	sessionRepo := repository.NewSessionRepository(sqlDB)
	stationRepo := repository.NewStationRepository(sqlDB)
	userRepo := repository.NewUserRepository(sqlDB)
	activeCache := redisstore.NewActiveSessionCache(redisClient, cfg.ActiveSessionTTL())

	params := charging.Params{
		Efficiency:         cfg.Charging.Efficiency,
		AssumedCapacityKWh: cfg.Charging.AssumedCapacityKWh,
		DefaultPricePerKWh: cfg.Charging.DefaultPricePerKWh,
	}.Normalize()

	stationsService := service.NewStationsService(stationRepo, logger)
	sessionsService := service.NewSessionsService(sessionRepo, stationsService, activeCache, params, logger)
	statisticsService := service.NewStatisticsService(sessionRepo, logger)

	recognitionClient := clients.NewRecognitionClient(
		cfg.Recognition.BaseURL,
		cfg.Recognition.APIKey,
		cfg.Recognition.Model,
		clients.NewDefaultHTTPClient(cfg.Recognition.Timeout),
	)
	vehiclesService := service.NewVehiclesService(recognitionClient, logger)

	tokenService := auth.NewTokenService(cfg.Auth.Secret, cfg.Auth.TokenTTL)
	authService := auth.NewService(userRepo, auth.NewBcryptHasher(0), tokenService, logger)

	authHandlers := handlers.NewAuthHandlers(authService, logger)
	sessionsHandlers := handlers.NewSessionsHandlers(sessionsService, logger)
	stationsHandlers := handlers.NewStationsHandlers(stationsService, logger)
	vehiclesHandlers := handlers.NewVehiclesHandlers(vehiclesService, logger)
	streamHandler := handlers.NewSessionStreamHandler(sessionsService, cfg.Stream.Interval, logger)

	routes := httpserver.Routes{
		Signup:           authHandlers.Signup,
		Login:            authHandlers.Login,
		SessionStart:     sessionsHandlers.Start,
		SessionUpdate:    sessionsHandlers.Update,
		SessionEnd:       sessionsHandlers.End,
		SessionCancel:    sessionsHandlers.Cancel,
		SessionActive:    sessionsHandlers.Active,
		SessionStream:    streamHandler.Stream,
		SessionHistory:   sessionsHandlers.History,
		Statistics:       handlers.NewStatisticsHandler(statisticsService, logger),
		StationsList:     stationsHandlers.List,
		StationGet:       stationsHandlers.Get,
		StationUpsert:    stationsHandlers.Upsert,
		VehicleRecognize: vehiclesHandlers.Recognize,
		Estimate:         handlers.NewEstimateHandler(params),
		Health:           handlers.NewHealthHandler(),
	}

	router := httpserver.NewRouter(routes, middleware.Auth(tokenService))
	server := httpserver.NewServer(cfg.HTTPAddress(), router, logger)

	return &App{
		server:      server,
		db:          sqlDB,
		redisClient: redisClient,
		logger:      logger,
	}, nil
}

// Run starts the HTTP server.
func (a *App) Run(ctx context.Context) error {
	return a.server.Run(ctx)
}

// Close releases resources.
func (a *App) Close() {
	if a.db != nil {
		if err := a.db.Close(); err != nil {
			a.logger.Warn("failed to close db", zap.Error(err))
		}
	}
	if a.redisClient != nil {
		if err := a.redisClient.Close(); err != nil {
			a.logger.Warn("failed to close redis", zap.Error(err))
		}
	}
}
