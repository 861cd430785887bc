package main

import (
	"context"
	"database/sql"
	"encoding/csv"
	"flag"
	"fmt"
	"io"
	"log"
	"os"
	"strings"
	"time"

	"chapterwatch/internal/tracker"
	"chapterwatch/pkg/database"
	"chapterwatch/pkg/models"
)

// Seeds the watchlist table from a CSV so a fresh deployment starts
// tracking a known set of titles. Expected columns:
//
//	key,manga_id,title
//
// A header row is detected and skipped. Blank keys are rejected;
// blank manga ids are allowed (the server marks those unknown).
func main() {
	in := flag.String("in", "data/watchlist.csv", "input CSV path")
	flag.Parse()

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	db := database.MustOpen(database.DefaultConfig())
	defer db.Close()

	if err := database.Migrate(db); err != nil {
		log.Fatalf("db migrate failed: %v", err)
	}

	n, err := importWatchlist(ctx, db, *in)
	if err != nil {
		log.Fatalf("import watchlist failed: %v", err)
	}
	log.Printf("imported %d watchlist items from %s", n, *in)
}

func importWatchlist(ctx context.Context, db *sql.DB, path string) (int, error) {
	f, err := os.Open(path)
	if err != nil {
		return 0, fmt.Errorf("open %s: %w", path, err)
	}
	defer f.Close()

	repo := tracker.NewRepo(db)
	r := csv.NewReader(f)
	r.FieldsPerRecord = -1

	count := 0
	line := 0
	for {
		rec, err := r.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return count, fmt.Errorf("read csv: %w", err)
		}
		line++

		if len(rec) < 2 {
			return count, fmt.Errorf("line %d: want key,manga_id[,title], got %d fields", line, len(rec))
		}

		key := strings.TrimSpace(rec[0])
		if line == 1 && strings.EqualFold(key, "key") {
			continue // header row
		}
		if key == "" {
			return count, fmt.Errorf("line %d: empty key", line)
		}

		entry := models.WatchEntry{
			Key:     key,
			MangaID: strings.TrimSpace(rec[1]),
		}
		if len(rec) > 2 {
			entry.Title = strings.TrimSpace(rec[2])
		}

		if err := repo.UpsertItem(ctx, entry); err != nil {
			return count, fmt.Errorf("line %d: %w", line, err)
		}
		count++
	}
	return count, nil
}
