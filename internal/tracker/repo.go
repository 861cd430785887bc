package tracker

import (
	"context"
	"database/sql"
	"fmt"
	"strconv"

	"chapterwatch/pkg/models"
)

const minChapterKey = "min_chapter"

type Repo struct {
	DB *sql.DB
}

func NewRepo(db *sql.DB) *Repo {
	return &Repo{DB: db}
}

// UpsertItem stores (or refreshes) one watchlist row.
func (r *Repo) UpsertItem(ctx context.Context, e models.WatchEntry) error {
	_, err := r.DB.ExecContext(ctx, `
		INSERT INTO watch_items (key, manga_id, title)
		VALUES (?, ?, ?)
		ON CONFLICT(key) DO UPDATE SET
			manga_id = excluded.manga_id,
			title = excluded.title
	`, e.Key, e.MangaID, e.Title)
	if err != nil {
		return fmt.Errorf("upsert watch item: %w", err)
	}
	return nil
}

func (r *Repo) DeleteItem(ctx context.Context, key string) (bool, error) {
	res, err := r.DB.ExecContext(ctx, `
		DELETE FROM watch_items
		WHERE key = ?
	`, key)
	if err != nil {
		return false, fmt.Errorf("delete watch item: %w", err)
	}
	n, _ := res.RowsAffected()
	return n > 0, nil
}

// ListItems returns the whole watchlist, oldest first, so startup
// re-admission preserves discovery order.
func (r *Repo) ListItems(ctx context.Context) ([]models.WatchEntry, error) {
	rows, err := r.DB.QueryContext(ctx, `
		SELECT key, manga_id, title, created_at
		FROM watch_items
		ORDER BY created_at ASC, key ASC
	`)
	if err != nil {
		return nil, fmt.Errorf("list watch items: %w", err)
	}
	defer rows.Close()

	var out []models.WatchEntry
	for rows.Next() {
		var e models.WatchEntry
		if err := rows.Scan(&e.Key, &e.MangaID, &e.Title, &e.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan watch item: %w", err)
		}
		out = append(out, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("watch items rows: %w", err)
	}
	return out, nil
}

// GetMinChapter reads the persisted filter threshold; a missing row
// means no filtering.
func (r *Repo) GetMinChapter(ctx context.Context) (float64, error) {
	row := r.DB.QueryRowContext(ctx, `
		SELECT value FROM settings WHERE key = ?
	`, minChapterKey)

	var raw string
	if err := row.Scan(&raw); err != nil {
		if err == sql.ErrNoRows {
			return 0, nil
		}
		return 0, fmt.Errorf("get min chapter: %w", err)
	}

	v, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return 0, fmt.Errorf("parse min chapter %q: %w", raw, err)
	}
	return v, nil
}

func (r *Repo) SetMinChapter(ctx context.Context, min float64) error {
	_, err := r.DB.ExecContext(ctx, `
		INSERT INTO settings (key, value)
		VALUES (?, ?)
		ON CONFLICT(key) DO UPDATE SET value = excluded.value
	`, minChapterKey, strconv.FormatFloat(min, 'f', -1, 64))
	if err != nil {
		return fmt.Errorf("set min chapter: %w", err)
	}
	return nil
}
