package persistence

import (
	"context"
	"database/sql"
	"os"
	"testing"
	"time"

	_ "github.com/lib/pq"
)

func TestPostgresRepository_Contract(t *testing.T) {
	runRepositoryContractTests(t, func(t *testing.T) Repository {
		t.Helper()
		db := openTestPostgresDB(t)
		return NewPostgresRepository(db)
	})
}

func openTestPostgresDB(t *testing.T) *sql.DB {
	t.Helper()

	dsn := os.Getenv("TEST_DATABASE_URL")
	if dsn == "" {
		t.Skip("TEST_DATABASE_URL is not set")
	}

	db, err := sql.Open("postgres", dsn)
	if err != nil {
		t.Fatalf("sql.Open failed: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := db.PingContext(ctx); err != nil {
		t.Fatalf("PingContext failed: %v", err)
	}
	if err := MigratePostgres(ctx, db); err != nil {
		t.Fatalf("MigratePostgres failed: %v", err)
	}
	resetPostgresTables(t, db)

	return db
}

func resetPostgresTables(t *testing.T, db *sql.DB) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if _, err := db.ExecContext(ctx, `TRUNCATE TABLE actions, hands, sessions RESTART IDENTITY CASCADE`); err != nil {
		t.Fatalf("truncate tables failed: %v", err)
	}
}
