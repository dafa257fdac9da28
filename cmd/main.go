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

	"github.com/nrc-robotics/tournament-system/config"
	"github.com/nrc-robotics/tournament-system/db"
	"github.com/nrc-robotics/tournament-system/handlers"
	"github.com/nrc-robotics/tournament-system/live"
	"github.com/nrc-robotics/tournament-system/middleware"
	"github.com/nrc-robotics/tournament-system/repositories"
	"github.com/nrc-robotics/tournament-system/routes"
	"github.com/nrc-robotics/tournament-system/services"
	"github.com/nrc-robotics/tournament-system/storage"
)

const schedulerInterval = 30 * time.Second

func main() {
	// Настройка логгера
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo}))
	slog.SetDefault(logger)

	// Загрузка конфигурации
	cfg, err := config.Load()
	if err != nil {
		logger.Error("failed to load configuration", slog.Any("error", err))
		os.Exit(1)
	}
	logger.Info("configuration loaded", slog.Int("port", cfg.ServerPort))

	// Подключение к базе данных
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

	// Хранилище логотипов (Cloudflare R2)
	uploader, err := storage.NewCloudflareR2Uploader(storage.CloudflareR2UploaderConfig{
		AccountID:       cfg.R2AccountID,
		AccessKeyID:     cfg.R2AccessKeyID,
		SecretAccessKey: cfg.R2SecretAccessKey,
		BucketName:      cfg.R2BucketName,
		PublicBaseURL:   cfg.R2PublicBaseURL,
	})
	if err != nil {
		logger.Error("failed to initialize Cloudflare R2 uploader", slog.Any("error", err))
		os.Exit(1)
	}

	// WebSocket hub для live-трансляции турниров
	hub := live.NewHub(logger)
	go hub.Run()

	// Репозитории
	userRepo := repositories.NewPostgresUserRepository(dbConn)
	teamRepo := repositories.NewPostgresTeamRepository(dbConn)
	rosterRepo := repositories.NewPostgresRosterRepository(dbConn)
	tournamentRepo := repositories.NewPostgresTournamentRepository(dbConn)
	matchRepo := repositories.NewPostgresMatchRepository(dbConn)
	roundRepo := repositories.NewPostgresRoundRepository(dbConn)

	// Сервисы. Единый набор замков сериализует мутации турнира.
	locks := services.NewTournamentLocks()
	authService := services.NewAuthService(userRepo, cfg.JWTSecretKey)
	classService := services.NewRobotClassService(rosterRepo)
	teamService := services.NewTeamService(teamRepo, rosterRepo, tournamentRepo, uploader)
	tournamentService := services.NewTournamentService(
		tournamentRepo, teamRepo, matchRepo, roundRepo, uploader, hub, locks, logger)
	bracketService := services.NewBracketService(
		dbConn, tournamentRepo, teamRepo, matchRepo, roundRepo, hub, locks, logger)
	matchService := services.NewMatchService(
		dbConn, matchRepo, teamRepo, tournamentRepo, hub, locks, logger)
	importService := services.NewCSVImportService(
		dbConn, teamRepo, rosterRepo, tournamentRepo, logger)

	// Планировщик: открывает бои по дате старта
	go func() {
		ticker := time.NewTicker(schedulerInterval)
		defer ticker.Stop()
		logger.Info("tournament scheduler started", slog.Duration("interval", schedulerInterval))
		for range ticker.C {
			if n := tournamentService.AutoAdvanceDue(context.Background()); n > 0 {
				logger.Info("scheduler advanced tournaments", slog.Int("count", n))
			}
		}
	}()

	// HTTP-обработчики и маршруты
	auth := middleware.NewAuthenticator(cfg.JWTSecretKey)
	router := routes.InitRoutes(routes.Handlers{
		Auth:       handlers.NewAuthHandler(authService),
		Tournament: handlers.NewTournamentHandler(tournamentService, bracketService),
		Team:       handlers.NewTeamHandler(teamService),
		Match:      handlers.NewMatchHandler(matchService),
		RobotClass: handlers.NewRobotClassHandler(classService),
		Import:     handlers.NewImportHandler(importService),
		WebSocket:  handlers.NewWebSocketHandler(hub, tournamentService),
	}, auth)

	server := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.ServerPort),
		Handler:      router,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
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
			os.Exit(1)
		}
		logger.Info("server shutdown complete")
	}
}
