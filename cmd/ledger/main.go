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
	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/postgres"
	_ "github.com/golang-migrate/migrate/v4/source/file"
	"github.com/joho/godotenv"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"ledger/internal/config"
	ledger_http "ledger/internal/handler/http/ledger"
	"ledger/internal/infrastructure/database"
	kafka_infra "ledger/internal/infrastructure/kafka"
	"ledger/internal/journal"
	"ledger/internal/ledger"
	"ledger/internal/loan"
	accounts_pg "ledger/internal/repository/accounts_repo/postgres"
	loans_pg "ledger/internal/repository/loans_repo/postgres"
	movements_pg "ledger/internal/repository/movements_repo/postgres"
)

func main() {
	_ = godotenv.Load()

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
	appLogger.Info("Ledger Service starting...")

	appLogger.Info("Waiting for database to be available...")
	dbConfig := database.DBConfig{
		Host:     cfg.DBConfig.Host,
		Port:     cfg.DBConfig.Port,
		User:     cfg.DBConfig.User,
		Password: cfg.DBConfig.Password,
		DBName:   cfg.DBConfig.Name,
		SSLMode:  cfg.DBConfig.SSLMode,
	}

	var db *sql.DB
	maxRetries := 10
	retryDelay := 5 * time.Second

	for i := 0; i < maxRetries; i++ {
		db, err = database.NewPostgresDB(dbConfig)
		if err == nil {
			appLogger.Info("Successfully connected to PostgreSQL database!")
			break
		}
		appLogger.Warn(fmt.Sprintf("Failed to connect to database (attempt %d/%d): %v. Retrying in %s...", i+1, maxRetries, err, retryDelay))
		time.Sleep(retryDelay)
	}

	if db == nil {
		appLogger.Fatal("Could not connect to database after multiple retries. Exiting.", zap.Error(err))
	}
	defer func() {
		if err := db.Close(); err != nil {
			appLogger.Error("Error closing database connection", zap.Error(err))
		} else {
			appLogger.Info("Database connection closed.")
		}
	}()

	appLogger.Info("Running database migrations...")
	m, err := migrate.New("file://migrations", cfg.GetDBMigrationConnectionString())
	if err != nil {
		appLogger.Fatal("Failed to create migrate instance", zap.Error(err))
	}
	if err := m.Up(); err != nil && err != migrate.ErrNoChange {
		appLogger.Fatal("Failed to run database migrations", zap.Error(err))
	}
	appLogger.Info("Database migrations completed successfully (or no new migrations).")

	accountRepository := accounts_pg.NewAccountRepository()
	movementRepository := movements_pg.NewMovementRepository()
	loanRepository := loans_pg.NewLoanRepository()

	kafkaProducer := kafka_infra.NewProducer(
		cfg.GetKafkaBrokers(),
		cfg.KafkaMovementEventsTopic,
		appLogger.With(zap.String("component", "KafkaProducer")),
	)
	defer func() {
		if err := kafkaProducer.Close(); err != nil {
			appLogger.Error("Error closing Kafka producer", zap.Error(err))
		} else {
			appLogger.Info("Kafka producer closed.")
		}
	}()

	journalProcessor := journal.NewProcessor(
		db,
		accountRepository,
		movementRepository,
		loanRepository,
		kafkaProducer,
		cfg.JournalBufferSize,
		appLogger.With(zap.String("component", "JournalProcessor")),
	)

	accountStore := ledger.NewAccountStore()
	ledgerEngine := ledger.NewEngine(accountStore, journalProcessor, appLogger.With(zap.String("component", "LedgerEngine")))
	loanEngine := loan.NewEngine(ledgerEngine, journalProcessor, cfg.LoanDefaultRateBps, appLogger.With(zap.String("component", "LoanEngine")))

	appLogger.Info("Restoring engine state from database...")
	restoreCtx, restoreCancel := context.WithTimeout(context.Background(), 30*time.Second)
	accounts, err := accountRepository.GetAll(restoreCtx, db)
	if err != nil {
		appLogger.Fatal("Failed to load accounts", zap.Error(err))
	}
	movements, err := movementRepository.GetAll(restoreCtx, db)
	if err != nil {
		appLogger.Fatal("Failed to load movements", zap.Error(err))
	}
	loans, err := loanRepository.GetAll(restoreCtx, db)
	if err != nil {
		appLogger.Fatal("Failed to load loans", zap.Error(err))
	}
	restoreCancel()
	ledgerEngine.Restore(accounts, movements)
	loanEngine.Restore(loans)
	appLogger.Info("Engine state restored.",
		zap.Int("accounts", len(accounts)),
		zap.Int("movements", len(movements)),
		zap.Int("loans", len(loans)))

	router := chi.NewRouter()
	router.Use(middleware.Logger)
	router.Use(middleware.Recoverer)
	ledger_http.RegisterRoutes(router, ledgerEngine, loanEngine, appLogger.With(zap.String("component", "HTTPHandler")))

	httpServer := &http.Server{
		Addr:    fmt.Sprintf(":%d", cfg.HTTPPort),
		Handler: router,
	}

	ctxMain, cancelMain := context.WithCancel(context.Background())

	go func() {
		appLogger.Info("Starting journal processor...")
		journalProcessor.Start(ctxMain)
	}()

	go func() {
		appLogger.Info("Starting HTTP server", zap.String("address", httpServer.Addr))
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			appLogger.Fatal("HTTP server failed", zap.Error(err))
		}
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	<-sigChan
	appLogger.Info("Shutting down application...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.ShutdownGracePeriod)
	defer shutdownCancel()

	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		appLogger.Error("HTTP server graceful shutdown failed", zap.Error(err))
	} else {
		appLogger.Info("HTTP server gracefully shut down.")
	}

	// Stop accepting journal entries and flush what is buffered.
	cancelMain()
	journalProcessor.Wait()

	appLogger.Info("Application gracefully shut down.")
}
