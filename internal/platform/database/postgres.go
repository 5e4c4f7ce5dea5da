package database

import (
	"database/sql"
	"fmt"
	"log"
	"time"

	"code_clash/internal/platform/config"

	_ "github.com/jackc/pgx/v5/stdlib" // PostgreSQL driver
)

var DB *sql.DB

func Connect() {
	var err error
	DB, err = sql.Open("pgx", config.AppConfig.DBConnStr)
	if err != nil {
		log.Fatalf("Error opening database: %v", err)
	}

	DB.SetMaxOpenConns(25)
	DB.SetMaxIdleConns(25)
	DB.SetConnMaxLifetime(5 * time.Minute)

	// Verify connection
	if err = DB.Ping(); err != nil {
		log.Fatalf("Error connecting to database: %v", err)
	}

	// The schema is applied by cmd/migrate at deploy time. A missing
	// relation here is a configuration error, not something to retry.
	var n int
	if err = DB.QueryRow(`SELECT COUNT(*) FROM battles WHERE FALSE`).Scan(&n); err != nil {
		log.Fatalf("Schema not provisioned (run cmd/migrate first): %v", err)
	}

	fmt.Println("Successfully connected to PostgreSQL database!")
}

func Close() {
	if DB != nil {
		DB.Close()
		fmt.Println("Database connection closed.")
	}
}
