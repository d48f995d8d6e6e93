package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gioe/aiq-sub010/internal/config"
	"github.com/gioe/aiq-sub010/internal/database"
	"github.com/gioe/aiq-sub010/internal/handler"
	"github.com/gioe/aiq-sub010/internal/logger"
	"github.com/gioe/aiq-sub010/internal/oneshot"
	"github.com/gioe/aiq-sub010/internal/progress"
	"github.com/gioe/aiq-sub010/internal/repository"
	"github.com/gioe/aiq-sub010/internal/router"
	"github.com/gioe/aiq-sub010/internal/scoring"
	"github.com/gioe/aiq-sub010/internal/service"
	"github.com/gioe/aiq-sub010/internal/timer"
	"github.com/gioe/aiq-sub010/internal/validator"
	"github.com/gioe/aiq-sub010/internal/worker"
	"github.com/rs/zerolog"
)

func main() {
	// ─── Load Configuration ────────────────────────────────────────────
	cfg := config.Load()

	// ─── Initialize Logger ─────────────────────────────────────────────
	log := logger.Setup(cfg.LogLevel, cfg.LogFormat)
	log.Info().
		Str("port", cfg.ServerPort).
		Str("mode", cfg.GinMode).
		Str("log_level", cfg.LogLevel).
		Msg("Starting AIQ Session Backend")

	// ─── Initialize Validator ──────────────────────────────────────────
	validator.Setup()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// ─── Connect to PostgreSQL ─────────────────────────────────────────
	pool, err := database.NewPostgresPool(ctx, cfg, log)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to connect to PostgreSQL")
	}
	defer pool.Close()

	// ─── Connect to Redis ──────────────────────────────────────────────
	rdb, err := database.NewRedisClient(ctx, cfg, log)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to connect to Redis")
	}
	defer rdb.Close()

	// ─── Initialize Repositories ───────────────────────────────────────
	sessionRepo := repository.NewSessionRepository(pool)
	answerRepo := repository.NewAnswerRepository(pool)
	resultRepo := repository.NewResultRepository(pool)

	// ─── Initialize Scoring Client ─────────────────────────────────────
	scorer := scoring.New(scoring.Config{
		BaseURL: cfg.ScorerBaseURL,
		APIKey:  cfg.ScorerAPIKey,
		Timeout: cfg.ScorerTimeout,
	}, log)

	// ─── Initialize Services ──────────────────────────────────────────
	snapshots := progress.NewRedisStore(rdb)
	// The guard outlives the session window so a second submission attempt
	// after expiry still hits the completed-session path, not a fresh guard.
	guard := oneshot.NewRedisGuard(rdb, 2*timer.SessionDuration)
	queue := worker.NewRedisQueue(rdb)

	authService := service.NewAuthService(cfg)
	sessionService := service.NewSessionService(sessionRepo, answerRepo, resultRepo, scorer, snapshots, guard, queue)
	opsService := service.NewOpsService(sessionRepo, resultRepo)

	// ─── Initialize Handlers ──────────────────────────────────────────
	handlers := &router.Handlers{
		Session: handler.NewSessionHandler(sessionService),
		Live:    handler.NewLiveHandler(sessionService, log, cfg.AllowedOrigins),
		Ops:     handler.NewOpsHandler(opsService),
		System:  handler.NewSystemHandler(pool, rdb),
	}

	// ─── Start Background Workers ─────────────────────────────────────
	workerCtx, workerCancel := context.WithCancel(context.Background())

	for i := 0; i < cfg.PersistWorkers; i++ {
		persistWorker := worker.NewPersistWorker(answerRepo, rdb, cfg.PersistBatchSize, log)
		go persistWorker.Start(workerCtx)
	}

	expiryWorker := worker.NewExpiryWorker(sessionService, log)
	expiryWorker.Start()

	// ─── Setup Router ──────────────────────────────────────────────────
	r := router.SetupRouter(authService, handlers, cfg)

	// ─── Create HTTP Server ────────────────────────────────────────────
	srv := &http.Server{
		Addr:    ":" + cfg.ServerPort,
		Handler: r,
	}

	// ─── Start Server in Goroutine ─────────────────────────────────────
	go func() {
		log.Info().Str("addr", ":"+cfg.ServerPort).Msg("Server listening")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("Server error")
		}
	}()

	// ─── Graceful Shutdown ─────────────────────────────────────────────
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	sig := <-quit

	log.Info().Str("signal", sig.String()).Msg("Shutting down gracefully...")

	// 1. Stop accepting new HTTP requests (5s timeout).
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("HTTP server shutdown error")
	}

	// 2. Stop the sweeper and persist workers, then wait for the queue drain.
	expiryWorker.Stop()
	workerCancel()
	time.Sleep(2 * time.Second) // Allow workers to drain.

	log.Info().Msg("Shutdown complete")
}

// init sets zerolog global defaults before main runs.
func init() {
	zerolog.TimeFieldFormat = time.RFC3339
}
