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

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/postgres"
	_ "github.com/golang-migrate/migrate/v4/source/file"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"mpesapay/internal/app/payments"
	"mpesapay/internal/config"
	"mpesapay/internal/daraja"
	payments_http "mpesapay/internal/handler/http/payments"
	"mpesapay/internal/infrastructure/database"
	kafka_infra "mpesapay/internal/infrastructure/kafka"
	"mpesapay/internal/repository/status_repo"
	status_memory "mpesapay/internal/repository/status_repo/memory"
	status_postgres "mpesapay/internal/repository/status_repo/postgres"
)

func main() {
	cfg, err := config.LoadConfig()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error loading configuration: %v\n", err)
		os.Exit(1)
	}

	zapConfig := zap.NewProductionConfig()
	zapConfig.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	zapConfig.EncoderConfig.TimeKey = "timestamp"

	appLogger, err := zapConfig.Build()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to create zap logger: %v\n", err)
		os.Exit(1)
	}
	appLogger.Info("M-Pesa payment service starting...")

	statusRepo, db, err := buildStatusRepo(cfg, appLogger)
	if err != nil {
		appLogger.Fatal("Failed to initialize status store", zap.Error(err))
	}
	if db != nil {
		defer func() {
			if err := db.Close(); err != nil {
				appLogger.Error("Error closing database connection", zap.Error(err))
			}
		}()
	}

	var producer kafka_infra.Producer
	if cfg.KafkaEnabled() {
		producer = kafka_infra.NewProducer(
			cfg.GetKafkaBrokers(),
			cfg.KafkaPaymentStatusTopic,
			appLogger.With(zap.String("component", "KafkaProducer")),
		)
		defer func() {
			if err := producer.Close(); err != nil {
				appLogger.Error("Error closing Kafka producer", zap.Error(err))
			}
		}()
		appLogger.Info("Kafka status event publishing enabled",
			zap.String("topic", cfg.KafkaPaymentStatusTopic))
	} else {
		appLogger.Info("Kafka status event publishing disabled (no brokers configured)")
	}

	gateway := daraja.NewClient(daraja.Options{
		ConsumerKey:     cfg.Daraja.ConsumerKey,
		ConsumerSecret:  cfg.Daraja.ConsumerSecret,
		ShortCode:       cfg.Daraja.ShortCode,
		Passkey:         cfg.Daraja.Passkey,
		TillNumber:      cfg.Daraja.TillNumber,
		CallbackURL:     cfg.Daraja.CallbackURL,
		OAuthURL:        cfg.Daraja.OAuthURL,
		STKPushURL:      cfg.Daraja.STKPushURL,
		AccountRef:      cfg.Daraja.AccountRef,
		TransactionDesc: cfg.Daraja.TransactionDesc,
	}, appLogger.With(zap.String("component", "DarajaClient")))

	paymentService := payments.NewPaymentService(
		gateway,
		statusRepo,
		producer,
		appLogger.With(zap.String("component", "PaymentService")),
	)
	appLogger.Info("Payment service initialized.")

	router := chi.NewRouter()
	router.Use(middleware.RequestID)
	router.Use(middleware.Logger)
	router.Use(middleware.Recoverer)
	router.Use(middleware.Timeout(30 * time.Second))
	router.Use(cors.Handler(cors.Options{
		AllowedOrigins:   cfg.AllowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		AllowCredentials: false,
		MaxAge:           300,
	}))
	payments_http.RegisterRoutes(router, paymentService, appLogger)

	httpServer := &http.Server{
		Addr:    cfg.HTTPAddr,
		Handler: router,
	}

	go func() {
		appLogger.Info("Starting HTTP server", zap.String("address", httpServer.Addr))
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			appLogger.Fatal("HTTP server failed", zap.Error(err))
		}
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	<-sigChan
	appLogger.Info("Shutting down...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer shutdownCancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		appLogger.Error("HTTP server graceful shutdown failed", zap.Error(err))
	} else {
		appLogger.Info("HTTP server gracefully shut down.")
	}
}

// buildStatusRepo picks the configured status store backend. The returned
// *sql.DB is non-nil only for the postgres backend and must be closed by the
// caller.
func buildStatusRepo(cfg *config.Config, logger *zap.Logger) (status_repo.Repository, *sql.DB, error) {
	if cfg.StoreBackend == config.StoreBackendMemory {
		logger.Info("Using in-memory status store")
		return status_memory.NewStatusRepository(), nil, nil
	}

	dbConfig := database.DBConfig{
		Host:     cfg.DBConfig.Host,
		Port:     cfg.DBConfig.Port,
		User:     cfg.DBConfig.User,
		Password: cfg.DBConfig.Password,
		DBName:   cfg.DBConfig.Name,
		SSLMode:  cfg.DBConfig.SSLMode,
	}

	var db *sql.DB
	var err error
	maxRetries := 10
	retryDelay := 5 * time.Second

	for i := 0; i < maxRetries; i++ {
		db, err = database.NewPostgresDB(dbConfig)
		if err == nil {
			logger.Info("Connected to PostgreSQL.")
			break
		}
		logger.Warn(fmt.Sprintf("Failed to connect to database (attempt %d/%d): %v. Retrying in %s...",
			i+1, maxRetries, err, retryDelay))
		time.Sleep(retryDelay)
	}
	if db == nil {
		return nil, nil, fmt.Errorf("could not connect to database after %d attempts: %w", maxRetries, err)
	}

	logger.Info("Running database migrations...")
	m, err := migrate.New(cfg.MigrationsURL, cfg.GetDBMigrationConnectionString())
	if err != nil {
		db.Close()
		return nil, nil, fmt.Errorf("failed to create migrate instance: %w", err)
	}
	if err := m.Up(); err != nil && err != migrate.ErrNoChange {
		db.Close()
		return nil, nil, fmt.Errorf("failed to run database migrations: %w", err)
	}
	logger.Info("Database migrations completed.")

	return status_postgres.NewStatusRepository(db), db, nil
}
