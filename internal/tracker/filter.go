package tracker

import (
	"log"
	"strconv"
	"time"

	"chapterwatch/pkg/models"
)

// visible applies the minimum-chapter predicate. Only a resolved,
// numeric chapter can hide an item; pending and unknown items (and
// oddball non-numeric tokens) always stay visible.
func visible(state models.ChapterState, chapter string, min float64) bool {
	if state != models.StateResolved || min <= 0 {
		return true
	}
	v, err := strconv.ParseFloat(chapter, 64)
	if err != nil {
		return true
	}
	return v >= min
}

// MinChapter returns the current filter threshold.
func (t *Tracker) MinChapter() float64 {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.minChapter
}

// SetMinChapter updates the filter threshold and tells renderers to
// re-apply the visibility predicate against every item they hold.
func (t *Tracker) SetMinChapter(min float64) {
	if min < 0 {
		min = 0
	}

	t.mu.Lock()
	changed := t.minChapter != min
	t.minChapter = min
	t.mu.Unlock()

	if !changed {
		return
	}

	log.Printf("[tracker] min chapter filter set to %g", min)
	if t.hub != nil {
		t.hub.BroadcastJSON(FilterEvent{
			Type:       EventFilterUpdate,
			MinChapter: min,
			At:         time.Now().UTC(),
		})
	}
}
