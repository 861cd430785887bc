package resolver

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"regexp"
	"strconv"
	"time"

	"chapterwatch/internal/runner"
)

// Unresolved is returned when every attempt failed. It is a value,
// not an error: callers decide whether to schedule another round.
const Unresolved = "?"

// Options are the per-attempt retry tunables.
type Options struct {
	ShortRetries   int           // attempts per Resolve call
	ShortBase      time.Duration // backoff before attempt n+1 is ShortBase * 2^n
	AttemptTimeout time.Duration // per-request deadline
}

func DefaultOptions() Options {
	return Options{
		ShortRetries:   3,
		ShortBase:      time.Second,
		AttemptTimeout: 10 * time.Second,
	}
}

// Resolver fetches the latest translated chapter number for a manga
// from the MangaDex chapter feed. Every network attempt goes through
// the shared runner so a burst of items cannot flood the upstream.
type Resolver struct {
	BaseURL string
	Lang    string
	Client  *http.Client
	Runner  *runner.Runner
	Opts    Options
}

func New(baseURL string, run *runner.Runner, opts Options) *Resolver {
	if opts.ShortRetries < 1 {
		opts.ShortRetries = 1
	}
	return &Resolver{
		BaseURL: baseURL,
		Lang:    "en",
		Client:  &http.Client{},
		Runner:  run,
		Opts:    opts,
	}
}

// feed mirrors the slice of the chapter endpoint response we care
// about. The chapter attribute is a string, a number, or null
// depending on the title, hence `any`.
type feedResponse struct {
	Result string `json:"result"`
	Data   []struct {
		ID         string `json:"id"`
		Attributes struct {
			Chapter any    `json:"chapter"`
			Title   string `json:"title"`
		} `json:"attributes"`
	} `json:"data"`
}

// Resolve returns the normalized latest-chapter token for mangaID, or
// Unresolved after all short retries failed. It never returns an
// error; transient upstream trouble is the caller's signal to retry
// on a longer horizon.
func (r *Resolver) Resolve(ctx context.Context, mangaID string) string {
	for attempt := 0; attempt < r.Opts.ShortRetries; attempt++ {
		if attempt > 0 {
			delay := backoffDelay(r.Opts.ShortBase, attempt-1)
			timer := time.NewTimer(delay)
			select {
			case <-timer.C:
			case <-ctx.Done():
				timer.Stop()
				return Unresolved
			}
		}

		res := r.Runner.Do(ctx, func(ctx context.Context) (any, error) {
			return r.fetchLatest(ctx, mangaID)
		})
		if token, ok := res.(string); ok {
			return token
		}
		// nil result: request failed or was cancelled; next attempt
	}
	return Unresolved
}

// backoffDelay returns the wait before attempt n+1: the base doubled
// n times.
func backoffDelay(base time.Duration, n int) time.Duration {
	return base << n
}

// fetchLatest performs one request for the single most recent chapter
// in the configured language.
func (r *Resolver) fetchLatest(ctx context.Context, mangaID string) (string, error) {
	u, err := url.Parse(r.BaseURL + "/chapter")
	if err != nil {
		return "", fmt.Errorf("chapter feed: base url: %w", err)
	}
	q := u.Query()
	q.Set("manga", mangaID)
	q.Add("translatedLanguage[]", r.Lang)
	q.Set("order[chapter]", "desc")
	q.Set("limit", "1")
	u.RawQuery = q.Encode()

	ctx, cancel := context.WithTimeout(ctx, r.Opts.AttemptTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return "", fmt.Errorf("chapter feed: build request: %w", err)
	}

	resp, err := r.Client.Do(req)
	if err != nil {
		return "", fmt.Errorf("chapter feed: request: %w", err)
	}

	body, _ := io.ReadAll(resp.Body)
	resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("chapter feed: status %d", resp.StatusCode)
	}

	var feed feedResponse
	if err := json.Unmarshal(body, &feed); err != nil {
		return "", fmt.Errorf("chapter feed: decode: %w", err)
	}

	if len(feed.Data) == 0 {
		// nothing published in this language: treat like a missing
		// chapter attribute
		return NormalizeChapter(nil), nil
	}
	return NormalizeChapter(feed.Data[0].Attributes.Chapter), nil
}

var oneShotPattern = regexp.MustCompile(`(?i)^one[\s_-]?shot$`)

// NormalizeChapter maps the upstream chapter attribute to the token
// we track. One-shots carry no real chapter number upstream, either
// as a null attribute or as a "Oneshot"-style label; both count as
// chapter 1. Everything else keeps its string form verbatim.
func NormalizeChapter(raw any) string {
	switch v := raw.(type) {
	case nil:
		return "1"
	case string:
		if v == "" || oneShotPattern.MatchString(v) {
			return "1"
		}
		return v
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64)
	case json.Number:
		return v.String()
	default:
		return fmt.Sprintf("%v", v)
	}
}
