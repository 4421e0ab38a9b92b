package main

import (
	"context"
	"database/sql"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/aws/aws-sdk-go-v2/service/sqs"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/joho/godotenv"
	_ "github.com/lib/pq"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"

	"github.com/docadesk/booking-ai-platform/cmd/mainconfig"
	"github.com/docadesk/booking-ai-platform/internal/api/router"
	"github.com/docadesk/booking-ai-platform/internal/audit"
	"github.com/docadesk/booking-ai-platform/internal/availability"
	"github.com/docadesk/booking-ai-platform/internal/booking"
	"github.com/docadesk/booking-ai-platform/internal/clinic"
	appconfig "github.com/docadesk/booking-ai-platform/internal/config"
	"github.com/docadesk/booking-ai-platform/internal/dialog"
	"github.com/docadesk/booking-ai-platform/internal/http/handlers"
	"github.com/docadesk/booking-ai-platform/internal/nlu"
	"github.com/docadesk/booking-ai-platform/internal/notify"
	"github.com/docadesk/booking-ai-platform/internal/observability/metrics"
	"github.com/docadesk/booking-ai-platform/internal/session"
	"github.com/docadesk/booking-ai-platform/pkg/logging"
)

func main() {
	// .env is optional; deployments configure through the environment
	_ = godotenv.Load()

	// Load configuration
	cfg := appconfig.Load()

	// Initialize logger
	logger := logging.New(cfg.LogLevel)
	logger.Info("starting booking-ai-platform API server",
		"env", cfg.Env,
		"port", cfg.Port,
	)

	ctx := context.Background()

	// Postgres pool for the booking and clinic repositories
	pool, err := pgxpool.New(ctx, cfg.DatabaseURL)
	if err != nil {
		logger.Error("failed to create postgres pool", "error", err)
		os.Exit(1)
	}
	defer pool.Close()

	// Separate database/sql handle for the append-only audit trail
	auditDB, err := sql.Open("postgres", cfg.DatabaseURL)
	if err != nil {
		logger.Error("failed to open audit db", "error", err)
		os.Exit(1)
	}
	defer func() { _ = auditDB.Close() }()

	redisClient := redis.NewClient(&redis.Options{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
		DB:       cfg.RedisDB,
	})
	defer func() { _ = redisClient.Close() }()

	// Session state with TTL-based expiry plus a periodic sweep for
	// abandoned conversations
	sessionStore := session.NewStore(redisClient, cfg.SessionTTL)
	sweeper := session.NewSweeper(sessionStore, cfg.SessionSweepSchedule, logger)
	if err := sweeper.Start(); err != nil {
		logger.Error("failed to start session sweeper", "error", err)
		os.Exit(1)
	}
	defer sweeper.Stop()

	clinicRepo := clinic.NewRepository(pool)
	bookingRepo := booking.NewRepository(pool)
	calculator := availability.NewCalculator(clinicRepo, bookingRepo,
		availability.WithHorizonDays(cfg.SearchHorizonDays),
	)
	recorder := audit.NewRecorder(auditDB)

	var emailSender notify.EmailSender
	if sg := notify.NewSendGridSender(notify.SendGridConfig{
		APIKey:    cfg.SendGridAPIKey,
		FromEmail: cfg.SendGridFromEmail,
		FromName:  cfg.SendGridFromName,
	}, logger); sg != nil {
		emailSender = sg
	} else {
		emailSender = notify.NewStubEmailSender(logger)
	}
	notifier := notify.NewService(emailSender, clinicRepo, cfg.ClinicEmail, logger)

	manager := booking.NewManager(bookingRepo, calculator, notifier, logger,
		booking.WithNoticeWindow(cfg.MinNoticeWindow),
	)

	conversationMetrics := metrics.NewConversationMetrics(nil)

	// NLU: Gemini when configured, heuristics otherwise. The failover
	// client downgrades to heuristics on timeout or low confidence.
	var primary nlu.Client
	if cfg.GeminiAPIKey != "" {
		gemini, err := nlu.NewGeminiClient(ctx, cfg.GeminiAPIKey, cfg.GeminiModelID)
		if err != nil {
			logger.Error("failed to create gemini client", "error", err)
			os.Exit(1)
		}
		defer func() { _ = gemini.Close() }()
		primary = gemini
	}
	heuristic := nlu.NewHeuristicClient(cfg.DefaultRegion, nil)
	nluClient := nlu.NewFailoverClient(primary, heuristic, logger,
		nlu.WithTimeout(cfg.NLUTimeout),
		nlu.WithConfidenceThresholds(cfg.IntentConfidenceMin, cfg.ExtractionConfidenceMin),
		nlu.WithFallbackObserver(conversationMetrics.ObserveFallback),
	)

	engine := dialog.NewEngine(sessionStore, clinicRepo, calculator, manager, nluClient, logger,
		dialog.WithMetrics(conversationMetrics),
	)

	// Conversation turns flow through a queue so the HTTP handler never
	// talks to the engine directly
	var dispatcher *dialog.Dispatcher
	if cfg.UseMemoryQueue {
		dispatcher = dialog.NewDispatcher(engine, dialog.NewMemoryQueue(cfg.WorkerCount*16), logger,
			dialog.WithWorkerCount(cfg.WorkerCount),
		)
	} else {
		awsCfg, err := mainconfig.LoadAWSConfig(ctx, cfg)
		if err != nil {
			logger.Error("failed to load AWS config", "error", err)
			os.Exit(1)
		}
		sqsQueue := dialog.NewSQSQueue(sqs.NewFromConfig(awsCfg), cfg.ConversationQueueURL)
		dispatcher = dialog.NewDispatcher(engine, sqsQueue, logger,
			dialog.WithWorkerCount(cfg.WorkerCount),
		)
	}

	conversationHandler := dialog.NewHandler(dispatcher, logger)
	appointmentHandler := booking.NewHandler(manager, recorder, logger)
	healthHandler := handlers.NewHealthHandler(map[string]handlers.Check{
		"postgres": func(ctx context.Context) error { return pool.Ping(ctx) },
		"redis":    func(ctx context.Context) error { return redisClient.Ping(ctx).Err() },
	}, logger)

	r := router.New(&router.Config{
		Logger:              logger,
		ConversationHandler: conversationHandler,
		AppointmentHandler:  appointmentHandler,
		HealthHandler:       healthHandler,
		MetricsHandler:      promhttp.Handler(),
		CORSAllowedOrigins:  cfg.CORSAllowedOrigins,
		ConversationRPS:     cfg.ConversationRPS,
		ConversationBurst:   cfg.ConversationBurst,
	})

	srv := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      r,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Start server in a goroutine
	go func() {
		logger.Info("server listening", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("server error", "error", err)
			os.Exit(1)
		}
	}()

	// Wait for interrupt signal to gracefully shutdown the server
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("shutting down server...")

	// Graceful shutdown with timeout
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("server forced to shutdown", "error", err)
		os.Exit(1)
	}
	if err := dispatcher.Shutdown(shutdownCtx); err != nil {
		logger.Error("dispatcher shutdown", "error", err)
	}

	logger.Info("server stopped")
	fmt.Println("Server exited gracefully")
}
