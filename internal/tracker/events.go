package tracker

import (
	"time"

	"chapterwatch/pkg/models"
)

const (
	EventItemDiscovered = "item.discovered"
	EventItemUpdate     = "item.update"
	EventFilterUpdate   = "filter.update"
)

// ItemEvent is pushed to render clients on every admission and state
// change. Visible is pre-computed against the threshold at send time.
type ItemEvent struct {
	Type    string              `json:"type"`
	Key     string              `json:"key"`
	MangaID string              `json:"manga_id,omitempty"`
	Title   string              `json:"title,omitempty"`
	State   models.ChapterState `json:"state"`
	Chapter string              `json:"chapter,omitempty"`
	Visible bool                `json:"visible"`
	At      time.Time           `json:"at"`
}

// FilterEvent signals a threshold change; clients re-apply the
// predicate to the items they already hold.
type FilterEvent struct {
	Type       string    `json:"type"`
	MinChapter float64   `json:"min_chapter"`
	At         time.Time `json:"at"`
}
