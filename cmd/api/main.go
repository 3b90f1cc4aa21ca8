package main

import (
	"context"
	"log"
	"net/http"

	"infodyn/adapters/excel"
	"infodyn/adapters/memory"
	"infodyn/adapters/postgres"
	"infodyn/adapters/rng"
	"infodyn/app"
	"infodyn/internal"
	"infodyn/internal/api"
	"infodyn/internal/config"
	"infodyn/ports"

	"github.com/jmoiron/sqlx"
	"github.com/joho/godotenv"

	_ "github.com/lib/pq"
)

func main() {
	// Load environment variables from .env file
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, using system environment variables")
	}

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}
	if cfg.Paths.DataFile == "" {
		log.Fatal("DATA_FILE is required: the API serves analyses over one recording")
	}

	ledger, closeLedger, err := openLedger(cfg)
	if err != nil {
		log.Fatalf("Failed to open run ledger: %v", err)
	}
	defer closeLedger()

	logger := internal.NewDefaultLogger()
	randomness := rng.New()

	server := api.NewServer(
		excel.NewDataReader(cfg.Paths.DataFile),
		ledger,
		app.NewAnalysisService(ledger, randomness, logger),
		app.NewSweepService(ledger, randomness, logger),
		cfg.Analysis,
		logger,
	)

	addr := ":" + cfg.Server.Port
	log.Printf("infodyn API listening on %s (ledger: %s, data: %s)", addr, cfg.Ledger.Backend, cfg.Paths.DataFile)
	if err := http.ListenAndServe(addr, server.Router()); err != nil {
		log.Fatalf("Server failed: %v", err)
	}
}

// openLedger selects the run store configured by LEDGER_BACKEND and
// prepares its schema when it is the postgres backend.
func openLedger(cfg *config.Config) (ports.LedgerPort, func(), error) {
	if cfg.Ledger.Backend != "postgres" {
		return memory.NewLedger(), func() {}, nil
	}
	db, err := sqlx.Connect("postgres", cfg.Ledger.URL)
	if err != nil {
		return nil, nil, err
	}
	if err := postgres.EnsureSchema(context.Background(), db); err != nil {
		db.Close()
		return nil, nil, err
	}
	return postgres.NewRunRepository(db), func() { db.Close() }, nil
}
