package main

import (
	"context"
	"flag"
	"fmt"
	"os"

	"github.com/joho/godotenv"

	"vigil/internal/config"
	"vigil/internal/domain"
	"vigil/internal/infra/db"
)

func runPeek(args []string) int {
	fs := flag.NewFlagSet("peek", flag.ContinueOnError)
	fs.SetOutput(os.Stderr)

	var limit int
	var sessionID string

	fs.IntVar(&limit, "limit", 10, "maximum records to print")
	fs.StringVar(&sessionID, "session", "", "filter by session id")

	if err := fs.Parse(args); err != nil {
		return 1
	}

	_ = godotenv.Load()
	cfg := config.FromEnv()
	store, err := db.NewStore(cfg)
	if err != nil {
		fmt.Fprintf(os.Stderr, "open store: %v\n", err)
		return 1
	}
	if !store.Enabled() {
		fmt.Fprintln(os.Stderr, "POSTGRES_DSN not set; nothing to peek")
		return 1
	}

	ctx := context.Background()
	var records []domain.ImageRecord
	if sessionID != "" {
		records, err = store.Images.ListBySession(ctx, sessionID, limit)
	} else {
		records, err = store.Images.ListRecent(ctx, limit)
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "list images: %v\n", err)
		return 1
	}

	if len(records) == 0 {
		fmt.Println("no image records")
		return 0
	}
	for _, rec := range records {
		score := "n/a"
		if rec.DriftScore != nil {
			score = fmt.Sprintf("%.4f", *rec.DriftScore)
		}
		fmt.Printf("%s  %s  provider=%s  drift=%s/%s breached=%t  session=%s\n  prompt: %s\n  url: %s\n",
			rec.CreatedAt.Format("2006-01-02 15:04:05"), rec.ID, rec.Provider,
			score, rec.DriftMethod, rec.DriftBreached, rec.SessionID, rec.Prompt, rec.URL)
	}
	return 0
}
