// Command gateway is the HTTP bootstrap binary: it wires internal/api's
// Server to a Postgres-backed audit repository, an optional Redis session
// status cache, and an optional rules feed, then serves the external
// interface over HTTP. Configuration mirrors the wider retrieval pack's own
// control-plane binaries: required settings fail fast, optional ones fall
// back to sane defaults.
package main

import (
	"context"
	"database/sql"
	"flag"
	"fmt"
	"net/http"
	"os"
	"strconv"
	"time"

	_ "github.com/lib/pq"
	"github.com/redis/go-redis/v9"

	"github.com/edgecount/blackjack-engine/internal/api"
	"github.com/edgecount/blackjack-engine/internal/orchestrator"
	"github.com/edgecount/blackjack-engine/internal/persistence"
	"github.com/edgecount/blackjack-engine/internal/rules"
	"github.com/edgecount/blackjack-engine/internal/rulesfeed"
	"github.com/edgecount/blackjack-engine/internal/sessionstore"
)

func main() {
	addr := flag.String("addr", ":8080", "HTTP listen address")
	flag.Parse()

	databaseURL := os.Getenv("DATABASE_URL")
	if databaseURL == "" {
		fmt.Fprintln(os.Stderr, "DATABASE_URL is required")
		os.Exit(1)
	}

	maxOpenConns := parsePositiveIntEnvOrDefault("DATABASE_MAX_OPEN_CONNS", 10)
	maxIdleConns := parsePositiveIntEnvOrDefault("DATABASE_MAX_IDLE_CONNS", 5)
	connMaxLifetimeSec := parsePositiveIntEnvOrDefault("DATABASE_CONN_MAX_LIFETIME_SEC", 300)

	if !hasSQLDriver("postgres") {
		fmt.Fprintln(os.Stderr, "postgres driver not registered")
		os.Exit(1)
	}

	db, err := sql.Open("postgres", databaseURL)
	if err != nil {
		fmt.Fprintf(os.Stderr, "sql.Open failed: %v\n", err)
		os.Exit(1)
	}
	db.SetMaxOpenConns(maxOpenConns)
	db.SetMaxIdleConns(maxIdleConns)
	db.SetConnMaxLifetime(time.Duration(connMaxLifetimeSec) * time.Second)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := db.PingContext(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "database ping failed: %v\n", err)
		os.Exit(1)
	}
	if err := persistence.MigratePostgres(ctx, db); err != nil {
		fmt.Fprintf(os.Stderr, "migration failed: %v\n", err)
		os.Exit(1)
	}
	repo := persistence.NewPostgresRepository(db)

	table, err := rules.LoadStrategyTable()
	if err != nil {
		fmt.Fprintf(os.Stderr, "load strategy table failed: %v\n", err)
		os.Exit(1)
	}
	registry := orchestrator.NewRegistry(table, nil)

	if redisAddr := os.Getenv("REDIS_ADDR"); redisAddr != "" {
		client := redis.NewClient(&redis.Options{
			Addr:     redisAddr,
			Password: os.Getenv("REDIS_PASSWORD"),
		})
		store := sessionstore.New(client)
		pingCtx, pingCancel := context.WithTimeout(context.Background(), 2*time.Second)
		if err := store.Ping(pingCtx); err != nil {
			pingCancel()
			fmt.Fprintf(os.Stderr, "redis ping failed: %v\n", err)
			os.Exit(1)
		}
		pingCancel()
		registry.SetStatusCache(store)
	}

	var feed api.RulesFeed
	if feedEndpoint := os.Getenv("RULES_FEED_ENDPOINT"); feedEndpoint != "" {
		timeoutMs := parsePositiveIntEnvOrDefault("RULES_FEED_TIMEOUT_MS", 2000)
		client := rulesfeed.New(feedEndpoint, time.Duration(timeoutMs)*time.Millisecond)
		feed = client
	}

	server := api.NewServer(registry, repo, feed)
	fmt.Fprintf(os.Stdout, "listening on %s\n", *addr)
	if err := http.ListenAndServe(*addr, server); err != nil {
		fmt.Fprintf(os.Stderr, "server failed: %v\n", err)
		os.Exit(1)
	}
}

func parsePositiveIntEnvOrDefault(key string, fallback int) int {
	raw := os.Getenv(key)
	if raw == "" {
		return fallback
	}
	value, err := strconv.Atoi(raw)
	if err != nil || value <= 0 {
		return fallback
	}
	return value
}

func hasSQLDriver(name string) bool {
	for _, driver := range sql.Drivers() {
		if driver == name {
			return true
		}
	}
	return false
}
