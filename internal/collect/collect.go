// Package collect runs one digest pass over the configured feeds: fetch,
// decode, window and dedup each source in turn, then merge the new posts.
package collect

import (
	"context"
	"slices"
	"time"

	"github.com/ppiankov/readdigest/internal/digest"
	"github.com/ppiankov/readdigest/internal/feed"
	"github.com/ppiankov/readdigest/internal/logger"
	"github.com/ppiankov/readdigest/internal/normalize"
	"github.com/ppiankov/readdigest/internal/privacy"
	"github.com/ppiankov/readdigest/internal/seen"
	"github.com/ppiankov/readdigest/internal/source"
	"github.com/ppiankov/readdigest/internal/state"
)

// Defaults matching the daily reading digest.
const (
	DefaultLookback     = 30 * time.Hour
	DefaultGrace        = 2 * time.Hour
	DefaultMaxPerSource = 5
)

// Fetcher downloads one feed document.
type Fetcher interface {
	Fetch(ctx context.Context, url string) ([]byte, error)
}

// Ranker supplies the ranked story list shown next to the feeds.
type Ranker interface {
	Top(ctx context.Context, n int) ([]source.Story, error)
}

// Config wires a Collector.
type Config struct {
	Sources []source.Source
	Fetcher Fetcher
	Ranker  Ranker // optional

	Lookback     time.Duration // first-run window
	Grace        time.Duration // overlap before the last run
	MaxPerSource int
	RankLimit    int // stories requested from Ranker; 0 disables it
	ExcerptLen   int
	MaxSeen      int

	Redactor *privacy.Redactor // optional
	Now      func() time.Time  // defaults to time.Now
}

// Collector runs digest passes. It holds no state between runs.
type Collector struct {
	cfg Config
}

// New returns a Collector with defaults filled in for zero values.
func New(cfg Config) *Collector {
	if cfg.Lookback <= 0 {
		cfg.Lookback = DefaultLookback
	}
	if cfg.Grace < 0 {
		cfg.Grace = 0
	}
	if cfg.MaxPerSource <= 0 {
		cfg.MaxPerSource = DefaultMaxPerSource
	}
	if cfg.ExcerptLen == 0 {
		cfg.ExcerptLen = normalize.DefaultExcerptLen
	}
	if cfg.MaxSeen <= 0 {
		cfg.MaxSeen = seen.DefaultLimit
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	return &Collector{cfg: cfg}
}

// Run processes every source against st and returns the digest plus the
// state to persist next. st is not modified; saving the returned state is
// left to the caller. Source failures are recorded on their report and
// never abort the run.
func (c *Collector) Run(ctx context.Context, st state.State) (digest.Result, state.State) {
	now := c.cfg.Now().UTC()
	windowStart := seen.Window(st.LastRun, now, c.cfg.Grace, c.cfg.Lookback)
	set := seen.NewSet(st.SeenURLs)

	result := digest.Result{
		GeneratedAt: now,
		WindowStart: windowStart,
		Sources:     make([]digest.SourceReport, 0, len(c.cfg.Sources)),
	}

	var posts []digest.Post
	for _, src := range c.cfg.Sources {
		report := c.collectSource(ctx, src, set, windowStart)
		result.Sources = append(result.Sources, report)
		posts = append(posts, report.NewPosts...)
	}
	sortPosts(posts)
	result.NewPosts = posts
	result.NewPostsTotal = len(posts)

	if c.cfg.Ranker != nil && c.cfg.RankLimit > 0 {
		stories, err := c.cfg.Ranker.Top(ctx, c.cfg.RankLimit)
		if err != nil {
			logger.Warnf("ranked stories unavailable: %v", err)
		}
		result.HNTop = stories
	}

	next := state.State{
		LastRun:  &now,
		SeenURLs: set.Next(st.SeenURLs, c.cfg.MaxSeen),
	}
	return result, next
}

func (c *Collector) collectSource(ctx context.Context, src source.Source, set *seen.Set, windowStart time.Time) digest.SourceReport {
	report := digest.SourceReport{
		SourceID:   src.ID,
		SourceName: src.Name,
		Feed:       src.FeedURL,
		NewPosts:   []digest.Post{},
	}

	body, err := c.cfg.Fetcher.Fetch(ctx, src.FeedURL)
	if err != nil {
		report.Error = err.Error()
		logger.Warnf("%s: %v", src.ID, err)
		return report
	}

	entries, err := feed.Decode(body, feed.Options{ExcerptLen: c.cfg.ExcerptLen})
	if err != nil {
		report.Error = err.Error()
		logger.Warnf("%s: %v", src.ID, err)
		return report
	}
	report.FetchedCount = len(entries)

	slices.SortStableFunc(entries, func(a, b feed.Entry) int {
		return compareNewestFirst(a.PublishedAt, b.PublishedAt)
	})

	for _, e := range entries {
		if set.Consider(e.URL, e.PublishedAt, windowStart) != seen.Recent {
			continue
		}
		if len(report.NewPosts) >= c.cfg.MaxPerSource {
			continue
		}
		report.NewPosts = append(report.NewPosts, digest.Post{
			SourceID:    src.ID,
			SourceName:  src.Name,
			Title:       e.Title,
			URL:         e.URL,
			PublishedAt: e.PublishedAt,
			Excerpt:     c.cfg.Redactor.Apply(e.Excerpt),
		})
	}
	report.NewCount = len(report.NewPosts)

	logger.Infof("%s: fetched %d, new %d", src.ID, report.FetchedCount, report.NewCount)
	return report
}

// sortPosts orders posts most recent first; posts without a timestamp go last.
func sortPosts(posts []digest.Post) {
	slices.SortStableFunc(posts, func(a, b digest.Post) int {
		return compareNewestFirst(a.PublishedAt, b.PublishedAt)
	})
}

func compareNewestFirst(a, b *time.Time) int {
	switch {
	case a == nil && b == nil:
		return 0
	case a == nil:
		return 1
	case b == nil:
		return -1
	default:
		return b.Compare(*a)
	}
}
