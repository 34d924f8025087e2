package main

import (
	"context"
	"flag"
	"os"
	"time"

	"github.com/joho/godotenv"

	"github.com/dvloznov/simplefin-sync/internal/logger"
	"github.com/dvloznov/simplefin-sync/internal/reconcile"
	"github.com/dvloznov/simplefin-sync/internal/simplefin"
	"github.com/dvloznov/simplefin-sync/internal/store"
)

func main() {
	// Initialize structured logger
	log := logger.New()

	// Credentials come from the environment, optionally via a .env file.
	_ = godotenv.Load()

	// Parse CLI flags
	dbPath := flag.String("db", "simplefin.db", "Path to the SQLite database")
	days := flag.Int("days", 90, "How many days of transactions to fetch")
	staleWindow := flag.Int("stale-window", reconcile.DefaultStaleWindowDays,
		"Window in days inside which transactions missing from the fetch are evicted (0 disables)")
	pending := flag.Bool("pending", true, "Include pending transactions")
	flag.Parse()

	accessURL := os.Getenv("SIMPLEFIN_URL")
	if accessURL == "" {
		log.Fatal().Msg("Error: SIMPLEFIN_URL is required (claim one with cmd/claim-token)")
	}

	auth, err := simplefin.ParseAccessURL(accessURL)
	if err != nil {
		log.Fatal().Err(err).Msg("Error: invalid SIMPLEFIN_URL")
	}

	st, err := store.Open(*dbPath)
	if err != nil {
		log.Fatal().Err(err).Str("db", *dbPath).Msg("Failed to open database")
	}
	defer st.Close()

	// Create context with timeout so the CLI doesn't hang
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Minute)
	defer cancel()
	ctx = logger.WithContext(ctx, log)

	client := simplefin.NewClient(auth)
	syncer := reconcile.New(st)

	until := time.Now()
	since := until.AddDate(0, 0, -*days)

	if err := syncer.SyncFromSource(ctx, client, since, until, *pending, *staleWindow); err != nil {
		log.Fatal().Err(err).Msg("Sync failed")
	}
}
