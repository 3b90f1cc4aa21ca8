package main

import (
	"context"
	"log"
	"os"

	"infodyn/adapters/postgres"

	"github.com/jmoiron/sqlx"
	"github.com/joho/godotenv"

	_ "github.com/lib/pq"
)

func main() {
	_ = godotenv.Load()

	databaseURL := os.Getenv("DATABASE_URL")
	if len(os.Args) > 1 {
		databaseURL = os.Args[1]
	}
	if databaseURL == "" {
		log.Fatal("Usage: migrate [database-url]  (or set DATABASE_URL)")
	}

	db, err := sqlx.Connect("postgres", databaseURL)
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
	defer db.Close()

	log.Println("Applying run ledger schema...")
	if err := postgres.EnsureSchema(context.Background(), db); err != nil {
		log.Fatalf("Schema migration failed: %v", err)
	}
	log.Println("Migration complete")
}
