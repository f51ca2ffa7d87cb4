package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-migrate/migrate/v4"
	migratepg "github.com/golang-migrate/migrate/v4/database/postgres"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	"github.com/joho/godotenv"

	"github.com/cuongbtq/transcriber-be/internal/config"
	"github.com/cuongbtq/transcriber-be/internal/media"
	"github.com/cuongbtq/transcriber-be/internal/worker"
	"github.com/cuongbtq/transcriber-be/internal/worker/storage"
	"github.com/cuongbtq/transcriber-be/migrations"
	"github.com/cuongbtq/transcriber-be/shared/logger"
	"github.com/cuongbtq/transcriber-be/shared/pgmq"
	"github.com/cuongbtq/transcriber-be/shared/postgresql"
)

func main() {
	if err := run(); err != nil {
		log.Fatal(err)
	}
}

func run() error {
	// Load .env file if it exists
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, using environment variables or flags")
	}

	// Parse command-line flags
	defaultConfigPath := os.Getenv("WORKER_SERVICE_CONFIG_PATH")
	if defaultConfigPath == "" {
		defaultConfigPath = "configs/worker-service/config.yaml"
	}
	configPath := flag.String("config", defaultConfigPath, "Path to configuration file")
	runMigrations := flag.Bool("migrate", false, "Run pending database migrations before starting")
	flag.Parse()

	// Load configuration
	cfg, err := config.Load(*configPath)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	if err := cfg.ValidateWorkerConfig(); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}

	// Initialize logger
	appLogger, err := initLogger(&cfg.Logging)
	if err != nil {
		return fmt.Errorf("failed to initialize logger: %w", err)
	}

	appLogger.Info("Starting worker service",
		slog.String("app", cfg.App.Name),
		slog.String("version", cfg.App.Version),
		slog.String("environment", cfg.App.Environment),
	)

	// Initialize PostgreSQL client
	dbClient, err := initPostgreSQL(&cfg.Database, appLogger.Logger)
	if err != nil {
		return fmt.Errorf("failed to initialize database: %w", err)
	}

	appLogger.Info("Database connection established")

	if *runMigrations {
		if err := migrateUp(dbClient); err != nil {
			return fmt.Errorf("failed to run migrations: %w", err)
		}
		appLogger.Info("Database migrations applied")
	}

	// Initialize queue client and make sure the queue exists
	queueClient, err := pgmq.NewClient(dbClient.GetDB(), &pgmq.Config{
		QueueName: cfg.Queue.Name,
	}, appLogger.Logger)
	if err != nil {
		return fmt.Errorf("failed to initialize queue client: %w", err)
	}

	if err := queueClient.EnsureQueue(context.Background()); err != nil {
		return fmt.Errorf("failed to ensure queue: %w", err)
	}

	// Document storage. Stale claims become reclaimable after the
	// visibility timeout, in step with message redelivery.
	docStorage := storage.NewStorage(dbClient, cfg.Queue.VisibilityTimeout, appLogger.Logger)

	extractor := initExtractor(&cfg.Media, appLogger.Logger)
	transcriber, err := initTranscriber(&cfg.Media, appLogger.Logger)
	if err != nil {
		return err
	}

	// Create worker instance
	workerInstance := worker.NewWorker(&worker.Config{
		Queue:                queueClient,
		Store:                docStorage,
		Extractor:            extractor,
		Transcriber:          transcriber,
		Logger:               appLogger.Logger,
		QueueName:            cfg.Queue.Name,
		MaxConcurrentJobs:    cfg.Worker.MaxConcurrentJobs,
		BatchSize:            cfg.Queue.BatchSize,
		VisibilityTimeout:    cfg.Queue.VisibilityTimeout,
		MaxRetries:           cfg.Worker.MaxRetries,
		BasePollInterval:     cfg.Worker.BasePollInterval,
		MaxPollInterval:      cfg.Worker.MaxPollInterval,
		StartupDelay:         cfg.Worker.StartupDelay,
		ShutdownDrainTimeout: cfg.Worker.ShutdownDrainTimeout,
	})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if err := workerInstance.Start(ctx); err != nil {
		return fmt.Errorf("failed to start worker: %w", err)
	}

	// Operational endpoint: health and worker status
	srv := startOpsServer(cfg, appLogger.Logger, workerInstance)

	appLogger.Info("Worker service started successfully")

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	sig := <-quit

	appLogger.Info("Received signal, shutting down gracefully",
		slog.String("signal", sig.String()),
	)

	cancel()
	workerInstance.Stop()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		appLogger.Warn("Ops server shutdown error", slog.Any("error", err))
	}

	if dbClient != nil {
		dbClient.Close()
	}

	appLogger.Info("Worker service shutdown complete")
	return nil
}

// initLogger initializes and configures the application logger
func initLogger(cfg *config.LoggingConfig) (*logger.Logger, error) {
	loggerCfg := &logger.Config{
		Level:        cfg.Level,
		Format:       cfg.Format,
		Output:       cfg.Output,
		EnableSource: cfg.EnableCaller,
		TimeFormat:   time.RFC3339,
	}

	return logger.New(loggerCfg)
}

// initPostgreSQL initializes the PostgreSQL database client
func initPostgreSQL(cfg *config.DatabaseConfig, logger *slog.Logger) (*postgresql.Client, error) {
	dbConfig := &postgresql.Config{
		Host:            cfg.Host,
		Port:            cfg.Port,
		User:            cfg.User,
		Password:        cfg.Password,
		Database:        cfg.Database,
		SSLMode:         cfg.SSLMode,
		MaxOpenConns:    cfg.MaxOpenConns,
		MaxIdleConns:    cfg.MaxIdleConns,
		ConnMaxLifetime: cfg.ConnMaxLifetime,
		ConnMaxIdleTime: cfg.ConnMaxIdleTime,
	}

	return postgresql.NewClient(dbConfig, logger)
}

// initExtractor builds the yt-dlp audio extractor
func initExtractor(cfg *config.MediaConfig, logger *slog.Logger) media.Extractor {
	return media.NewYtdlpExtractor(&media.YtdlpConfig{
		Binary:        cfg.YtdlpBinary,
		CookiesFile:   cfg.CookiesFile,
		AudioCacheDir: cfg.AudioCacheDir,
		Timeout:       cfg.ExtractTimeout,
	}, logger)
}

// initTranscriber selects the transcription provider from config
func initTranscriber(cfg *config.MediaConfig, logger *slog.Logger) (media.Transcriber, error) {
	switch cfg.Provider {
	case "local":
		return media.NewWhisperTranscriber(&media.WhisperConfig{
			Binary:    cfg.WhisperBinary,
			ModelPath: cfg.WhisperModel,
			Timeout:   cfg.TranscribeTimeout,
		}, logger), nil
	case "openai":
		return media.NewOpenAITranscriber(&media.OpenAIConfig{
			BaseURL: cfg.OpenAI.BaseURL,
			Model:   cfg.OpenAI.Model,
			APIKey:  os.Getenv(cfg.OpenAI.APIKeyEnv),
			Timeout: cfg.TranscribeTimeout,
		}, logger), nil
	default:
		return nil, fmt.Errorf("unknown media provider: %q", cfg.Provider)
	}
}

// migrateUp applies pending migrations from the embedded SQL files
func migrateUp(dbClient *postgresql.Client) error {
	src, err := iofs.New(migrations.FS, ".")
	if err != nil {
		return fmt.Errorf("migration source: %w", err)
	}

	driver, err := migratepg.WithInstance(dbClient.GetDB().DB, &migratepg.Config{})
	if err != nil {
		return fmt.Errorf("migration driver: %w", err)
	}

	m, err := migrate.NewWithInstance("iofs", src, "postgres", driver)
	if err != nil {
		return fmt.Errorf("migrate init: %w", err)
	}

	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("migrate up: %w", err)
	}

	return nil
}

// startOpsServer exposes /healthz and /worker/status on the configured port
func startOpsServer(cfg *config.Config, logger *slog.Logger, w *worker.Worker) *http.Server {
	if cfg.App.Environment == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()
	r.Use(gin.Recovery())

	r.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"status":  "healthy",
			"service": "transcriber-worker-service",
		})
	})

	r.GET("/worker/status", func(c *gin.Context) {
		c.JSON(http.StatusOK, w.Status())
	})

	addr := fmt.Sprintf(":%d", cfg.Server.Port)
	srv := &http.Server{
		Addr:         addr,
		Handler:      r,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("Ops server failed", slog.Any("error", err))
		}
	}()

	logger.Info("Ops endpoint listening", slog.String("address", addr))
	return srv
}
