package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/freeeve/roundscope/internal/auth"
	"github.com/freeeve/roundscope/internal/config"
	"github.com/freeeve/roundscope/internal/handler"
	"github.com/freeeve/roundscope/internal/logger"
	"github.com/freeeve/roundscope/internal/metrics"
	"github.com/freeeve/roundscope/internal/middleware"
	"github.com/freeeve/roundscope/internal/repository/postgres"
	redisrepo "github.com/freeeve/roundscope/internal/repository/redis"
	"github.com/freeeve/roundscope/internal/service"
	"github.com/freeeve/roundscope/pkg/mapcontrol"
	"github.com/freeeve/roundscope/pkg/navmesh"
	"github.com/freeeve/roundscope/pkg/spatial"
)

func main() {
	logger.Init("server")
	cfg := config.Load()
	log.Info().Str("navDir", cfg.NavDir).Str("dataDir", cfg.DataDir).Str("redisPrefix", cfg.RedisPrefix).Msg("Config loaded")
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Nav meshes
	meshes, err := navmesh.LoadDir(cfg.NavDir, navmesh.WithDistanceCache())
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to load nav meshes")
	}
	log.Info().Strs("maps", meshes.Names()).Msg("Nav meshes loaded")

	// Database
	db, err := postgres.Connect(ctx, cfg.DatabaseURL, cfg.DBMaxConns)
	if err != nil {
		log.Fatal().Err(err).Msg("Database connection failed")
	}
	defer db.Close()
	if err := postgres.Migrate(ctx, db, cfg.MigrationsDir); err != nil {
		log.Fatal().Err(err).Msg("Database migration failed")
	}

	// Redis
	redisClient, err := redisrepo.NewClient(ctx, cfg.RedisURL, cfg.RedisPrefix)
	if err != nil {
		log.Fatal().Err(err).Msg("Redis connection failed")
	}
	defer redisClient.Close()

	// Repos
	recordingRepo := postgres.NewRecordingRepo(db)
	metricRepo := postgres.NewMetricRepo(db)

	// Auth
	jwtMgr := auth.NewJWTManager(cfg.JWTSecret)
	apiKeys := auth.ParseAPIKeys(cfg.APIKeys)
	if apiKeys.Len() == 0 {
		log.Warn().Msg("No API_KEY configured, token exchange is disabled")
	}

	// WebSocket hub
	wsHub := handler.NewHub()

	// Services
	params := mapcontrol.Params{AreaThreshold: cfg.AreaThreshold, Steps: cfg.BFSSteps}
	analysisSvc := service.NewAnalysisService(meshes, recordingRepo, metricRepo, wsHub, params, mapcontrol.DefaultReduceOptions())
	trackerSvc := service.NewTrackerService(redisClient, meshes, cfg.AggregateWorkers)
	compactor := service.NewCompactor(trackerSvc, cfg.CompactInterval, cfg.CompactThreshold)

	// Handlers
	authHandler := handler.NewAuthHandler(apiKeys, jwtMgr)
	controlHandler := handler.NewControlHandler(analysisSvc)
	recordingHandler := handler.NewRecordingHandler(analysisSvc)
	trackerHandler := handler.NewTrackerHandler(trackerSvc, cfg.DataDir, spatial.Config{
		TileLength:    cfg.TileLength,
		RoutineLength: cfg.RoutineLength,
	})
	wsHandler := handler.NewWSHandler(wsHub, jwtMgr, analysisSvc)

	// Router
	mux := http.NewServeMux()
	authMw := auth.Middleware(jwtMgr)

	// Health
	mux.HandleFunc("GET /healthz", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		if err := db.PingContext(r.Context()); err != nil {
			log.Error().Err(err).Msg("Health check: postgres unreachable")
			w.WriteHeader(http.StatusServiceUnavailable)
			w.Write([]byte(`{"status":"postgres unavailable"}`))
			return
		}
		if err := redisClient.Ping(r.Context()); err != nil {
			log.Error().Err(err).Msg("Health check: redis unreachable")
			w.WriteHeader(http.StatusServiceUnavailable)
			w.Write([]byte(`{"status":"redis unavailable"}`))
			return
		}
		w.Write([]byte(`{"status":"ok"}`))
	})
	mux.Handle("GET /metrics", metrics.Handler())

	// Auth (public)
	mux.HandleFunc("POST /auth/token", authHandler.Token)
	mux.HandleFunc("POST /auth/refresh", authHandler.RefreshToken)

	// Protected API routes
	api := http.NewServeMux()
	api.HandleFunc("POST /maps/{map}/control", controlHandler.Control)
	api.HandleFunc("POST /recordings", recordingHandler.Create)
	api.HandleFunc("GET /recordings/{id}/series/{metric}", recordingHandler.Series)
	api.HandleFunc("POST /trackers", trackerHandler.Aggregate)
	api.HandleFunc("GET /trackers/{map}", trackerHandler.Combined)

	mux.Handle("/api/v1/", http.StripPrefix("/api/v1", middleware.Chain(api, authMw, middleware.MaxBody(cfg.MaxUploadBytes))))

	// WebSocket (auth via query param, not middleware)
	mux.HandleFunc("GET /api/v1/ws", wsHandler.ServeWS)

	// Apply global middleware
	root := middleware.Chain(mux, middleware.Metrics, middleware.Logger, middleware.CORS("*"), middleware.JSON)

	srv := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      root,
		ReadTimeout:  60 * time.Second,
		WriteTimeout: 5 * time.Minute,
		IdleTimeout:  60 * time.Second,
	}

	// Start tracker compactor
	go compactor.Start(ctx)

	go func() {
		log.Info().Str("port", cfg.Port).Msg("Server listening")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("Server error")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Info().Msg("Shutting down server")

	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Fatal().Err(err).Msg("Server shutdown error")
	}
	log.Info().Msg("Server stopped")
}
