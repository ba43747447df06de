package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/riverqueue/river"
	"github.com/riverqueue/river/riverdriver/riverpgxv5"
	"github.com/riverqueue/river/rivermigrate"
	"github.com/rs/cors"

	"github.com/lexbridge/backend/internal/auth"
	"github.com/lexbridge/backend/internal/cases"
	"github.com/lexbridge/backend/internal/config"
	"github.com/lexbridge/backend/internal/dashboard"
	"github.com/lexbridge/backend/internal/middleware"
	"github.com/lexbridge/backend/internal/notify"
	"github.com/lexbridge/backend/internal/rabbitmq"
	"github.com/lexbridge/backend/internal/registry"
	"github.com/lexbridge/backend/internal/repository"
	"github.com/lexbridge/backend/internal/reservation"
	"github.com/lexbridge/backend/internal/router"
	"github.com/lexbridge/backend/internal/services"
	"github.com/lexbridge/backend/internal/sweeper"
)

func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))
	slog.SetDefault(logger)

	cfg := config.Load()

	ctx := context.Background()
	pool, err := pgxpool.New(ctx, cfg.DatabaseURL)
	if err != nil {
		slog.Error("Unable to create database pool", "error", err)
		os.Exit(1)
	}
	defer pool.Close()

	if err := pool.Ping(ctx); err != nil {
		slog.Error("Cannot reach PostgreSQL. Ensure Postgres is running, e.g. make dev-up or docker-compose up -d", "error", err)
		os.Exit(1)
	}
	slog.Info("Connected to PostgreSQL")

	// River migrations
	migrator, err := rivermigrate.New(riverpgxv5.New(pool), nil)
	if err != nil {
		slog.Error("Failed to create River migrator", "error", err)
		os.Exit(1)
	}
	if _, err := migrator.Migrate(ctx, rivermigrate.DirectionUp, nil); err != nil {
		slog.Error("River migrate up failed. If the error is 'connection refused', start PostgreSQL first", "error", err)
		os.Exit(1)
	}
	slog.Info("River migrations applied")

	// Repositories
	accountRepo := repository.NewAccountRepo(pool)
	jurisRepo := repository.NewJurisRepo(pool)
	notifRepo := repository.NewNotificationRepo(pool)
	reservationRepo := reservation.NewRepository(pool)
	casesRepo := cases.NewRepository(pool)
	lawyerRepo := registry.NewRepository(pool)

	// Reservation manager: the single writer for Juris balances.
	manager := reservation.NewManager(pool, accountRepo, jurisRepo, reservationRepo, casesRepo, cfg.ReservationTTL, logger)

	// Broker producer; outbox rows stay unpublished when no broker is set.
	var producer rabbitmq.Publisher
	if cfg.RabbitMQURL != "" {
		p, err := rabbitmq.NewEventProducer(cfg.RabbitMQURL, logger)
		if err != nil {
			slog.Warn("RabbitMQ unavailable, notification publishing disabled", "error", err)
			producer = rabbitmq.NewFallbackProducer(logger)
		} else {
			producer = p
			defer p.Close()
		}
	} else {
		producer = rabbitmq.NewFallbackProducer(logger)
	}

	// Background workers
	workers := river.NewWorkers()
	river.AddWorker(workers, sweeper.NewSweepWorker(manager, logger))
	river.AddWorker(workers, notify.NewPublishWorker(notifRepo, producer, logger))

	riverClient, err := river.NewClient(riverpgxv5.New(pool), &river.Config{
		Queues: map[string]river.QueueConfig{
			river.QueueDefault: {MaxWorkers: 10},
		},
		Workers: workers,
		PeriodicJobs: []*river.PeriodicJob{
			sweeper.PeriodicJob(cfg.SweepInterval),
		},
	})
	if err != nil {
		slog.Error("Failed to create River client", "error", err)
		os.Exit(1)
	}

	outbox := notify.NewOutbox(notifRepo, func(ctx context.Context, args notify.PublishNotificationArgs) error {
		_, err := riverClient.Insert(ctx, args, nil)
		return err
	}, logger)

	// Auth
	authRepo := auth.NewRepository(pool)
	authSvc := auth.NewService(authRepo, cfg.JWTSecret)
	authHandler := auth.NewHandler(authSvc, logger)

	// Lawyer directory
	registrySvc := registry.NewService(lawyerRepo)
	registryHandler := registry.NewHandler(registrySvc, authSvc, logger)

	// Cases
	casesSvc := cases.NewService(casesRepo, manager, outbox, lawyerRepo, cfg.JurisReserveCost, cfg.JurisHireCost, cfg.RatingWindow, logger)
	casesHandler := cases.NewHandler(casesSvc, authSvc, logger)

	// Dashboard
	dashHandler := dashboard.NewHandler(authSvc, accountRepo, jurisRepo, notifRepo, manager, logger)

	// Matching
	matcher := services.NewMatcher(lawyerRepo)

	// POST /cases/{id}/interest runs behind JWT auth + the free-tier cap.
	jwtAuth := middleware.JWTAuth(authSvc, accountRepo)
	reserveLimit := middleware.ReserveLimit(pool, cfg.FreeTierDailyReservations)
	expressInterest := jwtAuth(reserveLimit(http.HandlerFunc(casesHandler.ExpressInterest)))

	apiRouter := router.New(
		authHandler,
		registryHandler,
		casesHandler,
		dashHandler,
		expressInterest,
		suggestionsHandler(casesSvc, matcher, authSvc, logger),
	)

	mux := http.NewServeMux()
	mux.Handle("/api/", apiRouter)

	corsHandler := cors.New(cors.Options{
		AllowedOrigins:   cfg.AllowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-CSRF-Token"},
		AllowCredentials: true,
	}).Handler(mux)

	// Start River client (runs the sweep and notification publishing)
	riverCtx, stopRiver := context.WithCancel(ctx)
	defer stopRiver()
	go func() {
		if err := riverClient.Start(riverCtx); err != nil && riverCtx.Err() == nil {
			slog.Error("River client stopped", "error", err)
		}
	}()

	serverAddr := "0.0.0.0:" + cfg.Port
	slog.Info("Starting HTTP server", "addr", serverAddr)
	if err := http.ListenAndServe(serverAddr, corsHandler); err != nil {
		slog.Error("HTTP server failed", "error", err)
		os.Exit(1)
	}
}
