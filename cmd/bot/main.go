// Package main is the entry point for the hattakip bot server.
// Its sole responsibility is wiring dependencies together and starting the
// server. No business logic belongs here.
package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/denizatli/hattakip/internal/config"
	"github.com/denizatli/hattakip/internal/handler"
	"github.com/denizatli/hattakip/internal/metrics"
	"github.com/denizatli/hattakip/internal/middleware"
	"github.com/denizatli/hattakip/internal/repo"
	"github.com/denizatli/hattakip/internal/service"
	"github.com/denizatli/hattakip/internal/telegram"
	"github.com/denizatli/hattakip/internal/transit"
)

const maxBodySize = 1 << 20 // 1 MiB

func main() {
	// --- Config -----------------------------------------------------------
	cfg, err := config.Load()
	if err != nil {
		slog.Error("configuration error", "error", err)
		os.Exit(1)
	}

	// --- Logger -----------------------------------------------------------
	var logLevel slog.Level
	if err := logLevel.UnmarshalText([]byte(cfg.LogLevel)); err != nil {
		logLevel = slog.LevelInfo
	}
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: logLevel,
	}))
	slog.SetDefault(logger)

	// --- Database ---------------------------------------------------------
	pool, err := pgxpool.New(context.Background(), cfg.DatabaseURL)
	if err != nil {
		slog.Error("failed to create database pool", "error", err)
		os.Exit(1)
	}
	defer pool.Close()

	// Verify the DB is reachable before accepting traffic.
	if err := pool.Ping(context.Background()); err != nil {
		slog.Error("failed to connect to database", "error", err)
		os.Exit(1)
	}
	slog.Info("database connection established")

	// --- Clients and services ----------------------------------------------
	transitClient := transit.NewClient(cfg.UpstreamBaseURL, nil)
	botClient := telegram.NewClient(cfg.BotToken, nil, "")

	collector := metrics.NewCollector()

	launcher := service.NewLauncher(
		repo.NewLockRepo(pool),
		service.NewHTTPTrigger(cfg.SelfBaseURL, cfg.WorkerSecret),
		logger,
		nil,
	)
	tracker := service.NewTracker(service.TrackerConfig{
		Requests:      repo.NewRequestRepo(pool),
		Sessions:      repo.NewSessionRepo(pool),
		Spawner:       launcher,
		Transit:       transitClient,
		Messenger:     botClient,
		Metrics:       collector,
		Logger:        logger,
		PollInterval:  cfg.PollInterval,
		MaxIterations: cfg.MaxIterations,
	})
	planner := service.NewPlanner(transitClient, transitClient, tracker, logger)
	places := service.NewPlaceService(repo.NewPlaceRepo(pool), nil)
	schedule := service.NewScheduleService(repo.NewLineRepo(pool), transitClient, botClient, logger, nil)
	users := service.NewUserService(repo.NewUserRepo(pool), nil)

	// --- Router -----------------------------------------------------------
	// Middleware is applied in order: RequestID → RealIP → Logger → Recoverer.
	r := chi.NewRouter()
	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(middleware.NewSlogLogger(logger))
	r.Use(chimiddleware.Recoverer)

	srv := handler.NewServer(handler.ServerConfig{
		Tracker:      tracker,
		Planner:      planner,
		Places:       places,
		Schedule:     schedule,
		Users:        users,
		Notifier:     botClient,
		Logger:       logger,
		WorkerSecret: cfg.WorkerSecret,
	})
	srv.Routes(r,
		middleware.NewCORSHandler(cfg.CORSOrigins),
		middleware.NewMaxBodySizeHandler(maxBodySize),
	)

	// --- Metrics server -----------------------------------------------------
	var metricsSrv *http.Server
	if cfg.MetricsAddr != "" {
		metricsSrv = collector.Serve(cfg.MetricsAddr, logger)
	}

	// --- HTTP Server --------------------------------------------------------
	// WriteTimeout stays unset: the worker endpoint keeps its response open
	// for the whole tracking loop, up to PollInterval * MaxIterations.
	httpSrv := &http.Server{
		Addr:        ":" + cfg.Port,
		Handler:     r,
		ReadTimeout: 10 * time.Second,
		IdleTimeout: 60 * time.Second,
	}

	// Graceful shutdown: wait for OS signal, then give in-flight requests
	// up to 15 seconds to complete before forcefully closing.
	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		slog.Info("server starting", "addr", httpSrv.Addr)
		if err := httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("server error", "error", err)
			os.Exit(1)
		}
	}()

	<-stop
	slog.Info("shutting down server")

	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	if metricsSrv != nil {
		if err := metricsSrv.Shutdown(ctx); err != nil {
			slog.Error("metrics shutdown error", "error", err)
		}
	}
	if err := httpSrv.Shutdown(ctx); err != nil {
		slog.Error("shutdown error", "error", err)
		os.Exit(1)
	}
	slog.Info("server stopped")
}
