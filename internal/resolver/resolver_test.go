package resolver

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"net/url"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"chapterwatch/internal/runner"
)

func testOptions() Options {
	return Options{
		ShortRetries:   3,
		ShortBase:      time.Millisecond,
		AttemptTimeout: time.Second,
	}
}

func newTestResolver(baseURL string) *Resolver {
	return New(baseURL, runner.New(2), testOptions())
}

func TestNormalizeChapter(t *testing.T) {
	cases := []struct {
		name string
		raw  any
		want string
	}{
		{"null", nil, "1"},
		{"empty string", "", "1"},
		{"oneshot", "Oneshot", "1"},
		{"one-shot", "One-Shot", "1"},
		{"one shot", "one shot", "1"},
		{"upper", "ONESHOT", "1"},
		{"underscore", "one_shot", "1"},
		{"decimal", "87.5", "87.5"},
		{"integer string", "12", "12"},
		{"json number", float64(87.5), "87.5"},
		{"json integer", float64(104), "104"},
		{"oneshot prefix is not a oneshot", "oneshot 2", "oneshot 2"},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, NormalizeChapter(tc.raw))
		})
	}
}

func TestResolveSuccessFirstAttempt(t *testing.T) {
	var gotQuery atomic.Value
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotQuery.Store(r.URL.Query())
		fmt.Fprint(w, `{"result":"ok","data":[{"id":"c1","attributes":{"chapter":"87.5"}}]}`)
	}))
	defer srv.Close()

	r := newTestResolver(srv.URL)
	got := r.Resolve(context.Background(), "manga-123")
	require.Equal(t, "87.5", got)

	q := gotQuery.Load().(url.Values)
	assert.Equal(t, "manga-123", q.Get("manga"))
	assert.Equal(t, "en", q.Get("translatedLanguage[]"))
	assert.Equal(t, "desc", q.Get("order[chapter]"))
	assert.Equal(t, "1", q.Get("limit"))
}

func TestResolveNullChapterIsOne(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"result":"ok","data":[{"id":"c1","attributes":{"chapter":null,"title":"Oneshot"}}]}`)
	}))
	defer srv.Close()

	assert.Equal(t, "1", newTestResolver(srv.URL).Resolve(context.Background(), "id"))
}

func TestResolveEmptyFeedIsOne(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"result":"ok","data":[]}`)
	}))
	defer srv.Close()

	assert.Equal(t, "1", newTestResolver(srv.URL).Resolve(context.Background(), "id"))
}

func TestBackoffDelayDoubles(t *testing.T) {
	assert.Equal(t, time.Second, backoffDelay(time.Second, 0))
	assert.Equal(t, 2*time.Second, backoffDelay(time.Second, 1))
	assert.Equal(t, 4*time.Second, backoffDelay(time.Second, 2))
	assert.Equal(t, 200*time.Millisecond, backoffDelay(50*time.Millisecond, 2))
}

func TestShortRetryDelaysGrow(t *testing.T) {
	var (
		mu    sync.Mutex
		times []time.Time
	)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		mu.Lock()
		times = append(times, time.Now())
		mu.Unlock()
		http.Error(w, "upstream down", http.StatusBadGateway)
	}))
	defer srv.Close()

	base := 50 * time.Millisecond
	r := New(srv.URL, runner.New(2), Options{
		ShortRetries:   3,
		ShortBase:      base,
		AttemptTimeout: time.Second,
	})
	require.Equal(t, Unresolved, r.Resolve(context.Background(), "id"))

	mu.Lock()
	defer mu.Unlock()
	require.Len(t, times, 3)

	// the backoff timer never fires early: base before attempt 2,
	// doubled before attempt 3
	assert.GreaterOrEqual(t, times[1].Sub(times[0]), base)
	assert.GreaterOrEqual(t, times[2].Sub(times[1]), 2*base)
}

func TestResolveExhaustsShortRetries(t *testing.T) {
	var attempts atomic.Int64
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		attempts.Add(1)
		http.Error(w, "upstream down", http.StatusBadGateway)
	}))
	defer srv.Close()

	got := newTestResolver(srv.URL).Resolve(context.Background(), "id")
	assert.Equal(t, Unresolved, got)
	assert.Equal(t, int64(3), attempts.Load(), "one request per short retry")
}

func TestResolveMalformedBodyCountsAsFailure(t *testing.T) {
	var attempts atomic.Int64
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		attempts.Add(1)
		fmt.Fprint(w, `{"result":"ok","data":[`)
	}))
	defer srv.Close()

	got := newTestResolver(srv.URL).Resolve(context.Background(), "id")
	assert.Equal(t, Unresolved, got)
	assert.Equal(t, int64(3), attempts.Load())
}

func TestResolveRecoversAfterFailures(t *testing.T) {
	var attempts atomic.Int64
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if attempts.Add(1) < 3 {
			http.Error(w, "not yet", http.StatusInternalServerError)
			return
		}
		fmt.Fprint(w, `{"result":"ok","data":[{"id":"c1","attributes":{"chapter":"12"}}]}`)
	}))
	defer srv.Close()

	got := newTestResolver(srv.URL).Resolve(context.Background(), "id")
	assert.Equal(t, "12", got)
	assert.Equal(t, int64(3), attempts.Load())
}
