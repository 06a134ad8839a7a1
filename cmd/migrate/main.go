package main

import (
	"context"
	"database/sql"
	"fmt"
	"log"
	"os"

	_ "github.com/lib/pq"

	"BetLedger/internal/persistence"
)

const usage = `Usage: migrate <up|down>

  up    apply all pending migrations
  down  roll back the last applied migration

Environment:
  BET_POSTGRES_DSN    Postgres connection string
  BET_MIGRATIONS_DIR  migrations directory (default: migrations)
`

func main() {
	if len(os.Args) != 2 {
		fmt.Fprint(os.Stderr, usage)
		os.Exit(1)
	}

	dsn := os.Getenv("BET_POSTGRES_DSN")
	if dsn == "" {
		dsn = "postgres://localhost:5432/betledger?sslmode=disable"
	}
	dir := os.Getenv("BET_MIGRATIONS_DIR")
	if dir == "" {
		dir = "migrations"
	}

	db, err := sql.Open("postgres", dsn)
	if err != nil {
		log.Fatalf("FATAL: open db: %v", err)
	}
	defer db.Close()

	migrator := persistence.NewMigrator(db, dir)
	ctx := context.Background()

	switch os.Args[1] {
	case "up":
		if err := migrator.Up(ctx); err != nil {
			log.Fatalf("FATAL: migrate up: %v", err)
		}
		log.Println("INFO: all migrations applied")
	case "down":
		if err := migrator.Down(ctx); err != nil {
			log.Fatalf("FATAL: migrate down: %v", err)
		}
		log.Println("INFO: last migration rolled back")
	default:
		fmt.Fprint(os.Stderr, usage)
		os.Exit(1)
	}
}
