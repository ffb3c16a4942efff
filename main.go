package main

import (
	"context"
	"log"

	"github.com/jmoiron/sqlx"
	"github.com/joho/godotenv"
	_ "github.com/lib/pq"

	"gordd/adapters/postgres"
	"gordd/adapters/regression"
	"gordd/app"
	"gordd/internal"
	"gordd/internal/config"
	"gordd/internal/migration"
	"gordd/ports"
	"gordd/ui"
)

// initDatabase connects to PostgreSQL and applies the schema.
func initDatabase(cfg *config.Config) (*sqlx.DB, error) {
	db, err := sqlx.Connect("postgres", cfg.Database.URL)
	if err != nil {
		return nil, err
	}

	migrator := migration.NewRunner()
	if err := migrator.Run(context.Background(), db); err != nil {
		db.Close()
		return nil, err
	}

	return db, nil
}

func main() {
	// Load environment variables from .env file
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, using system environment variables")
	}

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	logger := internal.NewLogger(internal.ParseLevel(cfg.LogLevel))

	// Persistence is optional: without DATABASE_URL the service runs analyses
	// without storing them.
	var repo ports.AnalysisRepository
	if cfg.PersistenceEnabled() {
		db, err := initDatabase(cfg)
		if err != nil {
			log.Fatalf("Failed to initialize database: %v", err)
		}
		defer db.Close()
		repo = postgres.NewAnalysisRepository(db)
		logger.Info("Persistence enabled (schema version %s)", migration.NewRunner().Version())
	}

	service := app.NewAnalysisService(regression.NewOLS(), repo, cfg.Analysis, logger)

	server := ui.NewApp(service, logger)
	logger.Info("Starting server on port %s", cfg.Server.Port)
	log.Fatal(server.Start(cfg.Server.Port))
}
