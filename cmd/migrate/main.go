package main

import (
	"context"
	"database/sql"
	"log"
	"time"

	"code_clash/internal/platform/config"
	"code_clash/internal/platform/database"

	_ "github.com/jackc/pgx/v5/stdlib"
)

// Applies the schema once at deploy time. The API server assumes the
// schema exists and refuses to start without it.
func main() {
	config.Load()

	db, err := sql.Open("pgx", config.AppConfig.DBConnStr)
	if err != nil {
		log.Fatalf("Error opening database: %v", err)
	}
	defer db.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 60*time.Second)
	defer cancel()

	if err := db.PingContext(ctx); err != nil {
		log.Fatalf("Error connecting to database: %v", err)
	}

	if err := database.Migrate(ctx, db); err != nil {
		log.Fatalf("Migration failed: %v", err)
	}

	log.Println("Schema applied successfully.")
}
