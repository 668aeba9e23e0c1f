package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/icehouse-dev/curling-server/config"
	"github.com/icehouse-dev/curling-server/coordination"
	"github.com/icehouse-dev/curling-server/db"
	"github.com/icehouse-dev/curling-server/handlers"
	"github.com/icehouse-dev/curling-server/pubsub"
	"github.com/icehouse-dev/curling-server/repositories"
	api "github.com/icehouse-dev/curling-server/routes"
	"github.com/icehouse-dev/curling-server/services"
	"github.com/icehouse-dev/curling-server/simulator"
)

func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo}))

	cfg, err := config.Load()
	if err != nil {
		logger.Error("failed to load configuration", slog.Any("error", err))
		os.Exit(1)
	}
	logger.Info("configuration loaded", slog.Int("port", cfg.ServerPort))

	dbConn, err := db.Connect(cfg.DatabaseURL, 5*time.Second)
	if err != nil {
		logger.Error("failed to connect to database", slog.Any("error", err))
		os.Exit(1)
	}
	defer func() {
		if err := dbConn.Close(); err != nil {
			logger.Error("failed to close database connection", slog.Any("error", err))
		}
	}()
	logger.Info("database connection established")

	broker, err := pubsub.NewRedisBroker(cfg.RedisURL, 5*time.Second)
	if err != nil {
		logger.Error("failed to connect to redis", slog.Any("error", err))
		os.Exit(1)
	}
	defer func() {
		if err := broker.Close(); err != nil {
			logger.Error("failed to close redis connection", slog.Any("error", err))
		}
	}()
	logger.Info("redis connection established")

	coordinator := coordination.New(broker, logger)

	simulator.Register(simulator.NewLinear())
	logger.Info("simulators registered", slog.Any("names", simulator.Names()))

	userRepo := repositories.NewPostgresUserRepository(dbConn)
	bindingRepo := repositories.NewPostgresBindingRepository(dbConn)
	matchRepo := repositories.NewPostgresMatchRepository(dbConn)
	scoreRepo := repositories.NewPostgresScoreRepository(dbConn)
	layoutRepo := repositories.NewPostgresStoneLayoutRepository(dbConn)
	stateRepo := repositories.NewPostgresStateRepository(dbConn)
	playerRepo := repositories.NewPostgresPlayerRepository(dbConn)
	shotRepo := repositories.NewPostgresShotRepository(dbConn)
	setupRepo := repositories.NewPostgresEndSetupRepository(dbConn)
	txRunner := repositories.NewSQLTxRunner(dbConn, logger)
	logger.Info("repositories initialized")

	authService := services.NewAuthService(userRepo)
	matchService := services.NewMatchService(
		txRunner,
		matchRepo,
		scoreRepo,
		layoutRepo,
		stateRepo,
		playerRepo,
		bindingRepo,
		setupRepo,
		shotRepo,
		coordinator,
		logger,
	)
	shotService := services.NewShotService(
		txRunner,
		matchService,
		stateRepo,
		layoutRepo,
		scoreRepo,
		playerRepo,
		shotRepo,
		setupRepo,
		matchRepo,
		coordinator,
		logger,
	)
	endSetupService := services.NewEndSetupService(
		txRunner,
		matchService,
		stateRepo,
		layoutRepo,
		setupRepo,
		coordinator,
		logger,
	)
	logger.Info("services initialized")

	authHandler := handlers.NewAuthHandler(authService, cfg.JWTSecretKey)
	matchHandler := handlers.NewMatchHandler(matchService, shotService, endSetupService)
	streamHandler := handlers.NewStreamHandler(matchService, coordinator, logger)

	router := chi.NewRouter()
	api.SetupRoutes(router, authHandler, matchHandler, streamHandler, cfg.JWTSecretKey)
	logger.Info("routes configured")

	server := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.ServerPort),
		Handler:      router,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 0, // streams write for the lifetime of the connection
		IdleTimeout:  120 * time.Second,
		ErrorLog:     slog.NewLogLogger(logger.Handler(), slog.LevelError),
	}

	serverErrors := make(chan error, 1)
	go func() {
		logger.Info("starting server", slog.String("address", server.Addr))
		serverErrors <- server.ListenAndServe()
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-serverErrors:
		if !errors.Is(err, http.ErrServerClosed) {
			logger.Error("server error", slog.Any("error", err))
			os.Exit(1)
		}
		logger.Info("server stopped gracefully")
	case sig := <-quit:
		logger.Info("shutdown signal received", slog.String("signal", sig.String()))
		shutdownCtx, cancelShutdown := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancelShutdown()

		if err := server.Shutdown(shutdownCtx); err != nil {
			logger.Error("graceful shutdown failed", slog.Any("error", err))
			if closeErr := server.Close(); closeErr != nil {
				logger.Error("failed to force close server", slog.Any("error", closeErr))
			}
		}
		logger.Info("server shut down")
	}
}
