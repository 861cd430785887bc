package tracker

import (
	"context"
	"log"
	"sort"
	"sync"
	"time"

	"chapterwatch/internal/resolver"
	"chapterwatch/pkg/models"
)

// ChapterResolver resolves a manga id to a normalized chapter token,
// returning resolver.Unresolved when the upstream could not be
// reached. *resolver.Resolver is the production implementation.
type ChapterResolver interface {
	Resolve(ctx context.Context, mangaID string) string
}

// Broadcaster receives every state and filter change as a JSON-able
// event. *renderhub.Hub is the production implementation.
type Broadcaster interface {
	BroadcastJSON(v any)
}

// ResolvedNotifier is pinged once per item when its chapter first
// resolves. The UDP notify server implements it.
type ResolvedNotifier interface {
	NotifyResolved(key, mangaID, chapter string)
}

// Options control the session-level (long horizon) retry schedule.
// Delay before re-run n+1 is LongBase * 2^n; after LongRetryMax
// re-runs the item settles as unknown.
type Options struct {
	LongRetryMax int
	LongBase     time.Duration
}

func DefaultOptions() Options {
	return Options{LongRetryMax: 6, LongBase: 5 * time.Second}
}

type item struct {
	key     string
	mangaID string
	title   string
	state   models.ChapterState
	chapter string
	cancel  context.CancelFunc // nil when no session is running
}

// Tracker owns the set of watched items and one resolution session
// per item. All state lives in memory; persistence of the watchlist
// is the caller's concern.
type Tracker struct {
	mu    sync.Mutex
	items map[string]*item

	resolver ChapterResolver
	hub      Broadcaster
	notify   ResolvedNotifier
	opts     Options

	minChapter float64

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

func New(res ChapterResolver, hub Broadcaster, notify ResolvedNotifier, opts Options) *Tracker {
	if opts.LongBase <= 0 {
		opts.LongBase = DefaultOptions().LongBase
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Tracker{
		items:    make(map[string]*item),
		resolver: res,
		hub:      hub,
		notify:   notify,
		opts:     opts,
		ctx:      ctx,
		cancel:   cancel,
	}
}

// Discover admits a listing item. It is idempotent: a key already
// tracked with the same manga id is a no-op. A key re-appearing with
// a different manga id supersedes the old handle (its session is
// cancelled and never acts again). An item with no manga id is
// immediately terminal unknown and never hits the network.
//
// Reports whether a new item was admitted.
func (t *Tracker) Discover(key, mangaID, title string) bool {
	t.mu.Lock()

	if old, ok := t.items[key]; ok {
		if old.mangaID == mangaID {
			t.mu.Unlock()
			return false
		}
		if old.cancel != nil {
			old.cancel()
		}
	}

	it := &item{key: key, mangaID: mangaID, title: title}

	if mangaID == "" {
		it.state = models.StateUnknown
		t.items[key] = it
		t.mu.Unlock()
		log.Printf("[tracker] %s: no manga id, marking unknown", key)
		t.broadcast(it, true)
		return true
	}

	it.state = models.StatePending
	ctx, cancel := context.WithCancel(t.ctx)
	it.cancel = cancel
	t.items[key] = it
	t.mu.Unlock()

	t.broadcast(it, true)

	t.wg.Add(1)
	go t.runSession(ctx, it)
	return true
}

// Remove marks the handle dead. The session observes this before its
// next step; a backoff timer already pending never produces another
// attempt for the key.
func (t *Tracker) Remove(key string) bool {
	t.mu.Lock()
	it, ok := t.items[key]
	if ok {
		delete(t.items, key)
		if it.cancel != nil {
			it.cancel()
		}
	}
	t.mu.Unlock()

	if ok {
		log.Printf("[tracker] %s: removed", key)
	}
	return ok
}

// IsLive reports whether the key is still tracked.
func (t *Tracker) IsLive(key string) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.items[key] != nil
}

// current reports whether it is still the registered item for its
// key. A superseded or removed handle fails this check even though a
// newer item may exist under the same key.
func (t *Tracker) current(it *item) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.items[it.key] == it
}

// backoffDelay returns the wait before re-run n+1: the base doubled
// n times.
func backoffDelay(base time.Duration, n int) time.Duration {
	return base << n
}

// runSession drives the resolver for one item until it settles.
// Every step re-checks that the handle is still live, so removal at
// any point stops the session without an explicit signal.
func (t *Tracker) runSession(ctx context.Context, it *item) {
	defer t.wg.Done()

	for longTry := 0; ; longTry++ {
		if ctx.Err() != nil || !t.current(it) {
			return
		}

		token := t.resolver.Resolve(ctx, it.mangaID)

		// the item may have vanished while the resolve was in flight
		if ctx.Err() != nil || !t.current(it) {
			return
		}

		if token != resolver.Unresolved {
			t.setState(it, models.StateResolved, token)
			return
		}

		if longTry >= t.opts.LongRetryMax {
			log.Printf("[tracker] %s: giving up after %d long retries", it.key, longTry)
			t.setState(it, models.StateUnknown, "")
			return
		}

		// keep the pending indicator fresh for renderers
		t.setState(it, models.StatePending, "")

		delay := backoffDelay(t.opts.LongBase, longTry)
		log.Printf("[tracker] %s: unresolved, retrying in %s", it.key, delay)

		timer := time.NewTimer(delay)
		select {
		case <-timer.C:
		case <-ctx.Done():
			timer.Stop()
			return
		}
	}
}

// setState records a transition and fans it out. Transitions on a
// dead handle are dropped.
func (t *Tracker) setState(it *item, state models.ChapterState, chapter string) {
	t.mu.Lock()
	if t.items[it.key] != it {
		t.mu.Unlock()
		return
	}
	prev := it.state
	it.state = state
	it.chapter = chapter
	t.mu.Unlock()

	if state == models.StateResolved && prev != models.StateResolved {
		log.Printf("[tracker] %s: resolved chapter %s", it.key, chapter)
		if t.notify != nil {
			t.notify.NotifyResolved(it.key, it.mangaID, chapter)
		}
	}
	t.broadcast(it, false)
}

func (t *Tracker) broadcast(it *item, discovered bool) {
	if t.hub == nil {
		return
	}
	t.mu.Lock()
	ev := ItemEvent{
		Type:    EventItemUpdate,
		Key:     it.key,
		MangaID: it.mangaID,
		Title:   it.title,
		State:   it.state,
		Chapter: it.chapter,
		Visible: visible(it.state, it.chapter, t.minChapter),
		At:      time.Now().UTC(),
	}
	if discovered {
		ev.Type = EventItemDiscovered
	}
	t.mu.Unlock()
	t.hub.BroadcastJSON(ev)
}

// Get returns the API view of one item.
func (t *Tracker) Get(key string) (models.Item, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	it, ok := t.items[key]
	if !ok {
		return models.Item{}, false
	}
	return t.viewLocked(it), true
}

// Items returns all tracked items, stably ordered by key. With
// visibleOnly set, items hidden by the minimum-chapter filter are
// skipped.
func (t *Tracker) Items(visibleOnly bool) []models.Item {
	t.mu.Lock()
	defer t.mu.Unlock()

	out := make([]models.Item, 0, len(t.items))
	for _, it := range t.items {
		v := t.viewLocked(it)
		if visibleOnly && !v.Visible {
			continue
		}
		out = append(out, v)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Key < out[j].Key })
	return out
}

func (t *Tracker) viewLocked(it *item) models.Item {
	return models.Item{
		Key:     it.key,
		MangaID: it.mangaID,
		Title:   it.title,
		State:   it.state,
		Chapter: it.chapter,
		Visible: visible(it.state, it.chapter, t.minChapter),
	}
}

// Counts reports per-state totals for the debug endpoint.
func (t *Tracker) Counts() map[models.ChapterState]int {
	t.mu.Lock()
	defer t.mu.Unlock()
	counts := make(map[models.ChapterState]int, 3)
	for _, it := range t.items {
		counts[it.state]++
	}
	return counts
}

// Close cancels every session and waits for them to exit.
func (t *Tracker) Close() {
	t.cancel()
	t.wg.Wait()
}
