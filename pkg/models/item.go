package models

import "time"

// ChapterState is the resolution state of a tracked item.
type ChapterState string

const (
	StatePending  ChapterState = "pending"
	StateResolved ChapterState = "resolved"
	StateUnknown  ChapterState = "unknown"
)

// Item is the API view of one tracked listing entry.
//
// Chapter holds the normalized chapter token while State is "resolved"
// and is empty otherwise. Visible reflects the minimum-chapter filter
// at the time the item was serialized.
type Item struct {
	Key     string       `json:"key"`
	MangaID string       `json:"manga_id,omitempty"`
	Title   string       `json:"title,omitempty"`
	State   ChapterState `json:"state"`
	Chapter string       `json:"chapter,omitempty"`
	Visible bool         `json:"visible"`
}

// WatchEntry is the persisted form of a watchlist row. Resolution
// state is intentionally not stored; entries are re-resolved from
// scratch on startup.
type WatchEntry struct {
	Key       string    `json:"key"`
	MangaID   string    `json:"manga_id"`
	Title     string    `json:"title,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}
