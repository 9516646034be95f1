package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"sort"
	"strings"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"

	"lending_gateway/internal/config"
	"lending_gateway/internal/identity"
	"lending_gateway/internal/logger"
	"lending_gateway/internal/messaging"
	"lending_gateway/internal/repository"
	"lending_gateway/internal/server"
	"lending_gateway/internal/service"
	"lending_gateway/internal/storage"
)

func runMigrations(db *pgxpool.Pool, log *zap.Logger) error {
	log.Info("Running database migrations")

	migrationsDir := "migrations"
	files, err := os.ReadDir(migrationsDir)
	if err != nil {
		return fmt.Errorf("failed to read migrations directory: %w", err)
	}

	var migrationFiles []string
	for _, file := range files {
		if strings.HasSuffix(file.Name(), ".sql") {
			migrationFiles = append(migrationFiles, file.Name())
		}
	}

	sort.Strings(migrationFiles)

	for _, filename := range migrationFiles {
		log.Info("Running migration", zap.String("file", filename))

		content, err := os.ReadFile(filepath.Join(migrationsDir, filename))
		if err != nil {
			return fmt.Errorf("failed to read migration file %s: %w", filename, err)
		}

		_, err = db.Exec(context.Background(), string(content))
		if err != nil {
			return fmt.Errorf("failed to execute migration %s: %w", filename, err)
		}

		log.Info("Migration completed", zap.String("file", filename))
	}

	log.Info("All migrations completed successfully")
	return nil
}

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Printf("Failed to load config: %v\n", err)
		os.Exit(1)
	}

	log, err := logger.New(cfg.Log.Level, cfg.Log.JSON)
	if err != nil {
		fmt.Printf("Failed to create logger: %v\n", err)
		os.Exit(1)
	}
	defer log.Sync()

	log.Info("Starting loan origination gateway")

	db, err := pgxpool.New(context.Background(), cfg.DatabaseDSN())
	if err != nil {
		log.Fatal("Failed to connect to database", zap.Error(err))
	}
	defer db.Close()

	log.Info("Connected to database")

	if err := runMigrations(db, log); err != nil {
		log.Fatal("Failed to run migrations", zap.Error(err))
	}

	natsClient, err := messaging.NewNATSClient(cfg.NATS.URL, log)
	if err != nil {
		log.Fatal("Failed to connect to NATS", zap.Error(err))
	}
	defer natsClient.Close()

	artifactStore, err := storage.NewFSStore(cfg.Storage.Root, cfg.Storage.BaseURL, log)
	if err != nil {
		log.Fatal("Failed to initialize artifact store", zap.Error(err))
	}

	sessions := identity.NewSessionRegistry(log)
	profileRepo := repository.NewProfileRepository(db, log)
	loanRepo := repository.NewLoanRepository(db, log)

	pipeline := service.NewSubmissionPipeline(artifactStore, profileRepo, natsClient, log, cfg.Upload.MaxParallel)
	offerService := service.NewOfferService(loanRepo, natsClient, log)

	// Review verdicts come back asynchronously from the compliance side.
	err = natsClient.SubscribeToVerificationReviewed(context.Background(), func(msg messaging.VerificationReviewedMessage) {
		log.Info("Received verification review verdict",
			zap.String("principal_id", msg.PrincipalID),
			zap.String("status", msg.Status))
	})
	if err != nil {
		log.Error("Failed to subscribe to verification reviewed", zap.Error(err))
	}

	handlers := server.NewHandlers(log, sessions, profileRepo, pipeline, offerService, cfg.Upload.MaxFileBytes)
	router := server.NewRouter(log, server.RouterDependencies{
		API:         handlers,
		ArtifactDir: artifactStore.Root(),
	})

	srv := server.New(log, cfg.Server, router)

	go func() {
		if err := srv.Start(); err != nil {
			log.Fatal("Failed to start server", zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info("Shutting down server")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		log.Error("Server forced to shutdown", zap.Error(err))
	}

	log.Info("Server exited")
}
