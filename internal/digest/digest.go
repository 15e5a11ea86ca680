package digest

import (
	"fmt"
	"io"
	"time"

	"github.com/ppiankov/readdigest/internal/source"
)

// Post is a new feed entry attributed to its source.
type Post struct {
	SourceID    string     `json:"source_id"`
	SourceName  string     `json:"source_name"`
	Title       string     `json:"title"`
	URL         string     `json:"url"`
	PublishedAt *time.Time `json:"published_at"`
	Excerpt     string     `json:"excerpt"`
}

// SourceReport is the per-source outcome of a run. Error is set when the
// source could not be fetched or decoded.
type SourceReport struct {
	SourceID     string `json:"source_id"`
	SourceName   string `json:"source_name"`
	Feed         string `json:"feed"`
	FetchedCount int    `json:"fetched_count"`
	NewCount     int    `json:"new_count"`
	NewPosts     []Post `json:"new_posts"`
	Error        string `json:"error,omitempty"`
}

// Result is the digest of one run. NewPosts is ordered most recent first,
// posts without a timestamp last.
type Result struct {
	GeneratedAt   time.Time      `json:"generated_at"`
	WindowStart   time.Time      `json:"window_start"`
	NewPostsTotal int            `json:"new_posts_total"`
	NewPosts      []Post         `json:"new_posts"`
	Sources       []SourceReport `json:"sources"`
	HNTop         []source.Story `json:"hn_top"`
}

// Failed returns the reports that carry an error.
func (r Result) Failed() []SourceReport {
	var out []SourceReport
	for _, s := range r.Sources {
		if s.Error != "" {
			out = append(out, s)
		}
	}
	return out
}

// Formatter writes a formatted digest to w.
type Formatter interface {
	Format(w io.Writer, r Result) error
}

// Output formats.
const (
	FormatJSON     = "json"
	FormatMarkdown = "markdown"
	FormatTerminal = "terminal"
)

// Layout selects how posts are grouped in text output.
type Layout string

const (
	// LayoutTimeline lists all posts in recency order.
	LayoutTimeline Layout = "timeline"
	// LayoutBySource groups posts under their source.
	LayoutBySource Layout = "by-source"
)

// Options tune the text formatters.
type Options struct {
	Title  string // heading, followed by the run date
	Layout Layout
	Color  bool // terminal only
}

// DefaultTitle heads text output when no title is configured.
const DefaultTitle = "Daily reading digest"

// New returns the formatter for format.
func New(format string, opts Options) (Formatter, error) {
	if opts.Title == "" {
		opts.Title = DefaultTitle
	}
	if opts.Layout == "" {
		opts.Layout = LayoutTimeline
	}
	switch opts.Layout {
	case LayoutTimeline, LayoutBySource:
	default:
		return nil, fmt.Errorf("unknown layout %q (want timeline or by-source)", opts.Layout)
	}

	switch format {
	case FormatJSON, "":
		return NewJSON(), nil
	case FormatMarkdown:
		return NewMarkdown(opts), nil
	case FormatTerminal:
		return NewTerminal(opts), nil
	default:
		return nil, fmt.Errorf("unknown format %q (want json, markdown or terminal)", format)
	}
}

// sourceGroup is the posts of one source, in first-appearance order.
type sourceGroup struct {
	name  string
	posts []Post
}

func groupBySource(posts []Post) []sourceGroup {
	var groups []sourceGroup
	index := make(map[string]int)
	for _, p := range posts {
		i, ok := index[p.SourceID]
		if !ok {
			name := p.SourceName
			if name == "" {
				name = p.SourceID
			}
			i = len(groups)
			index[p.SourceID] = i
			groups = append(groups, sourceGroup{name: name})
		}
		groups[i].posts = append(groups[i].posts, p)
	}
	return groups
}

func dateLabel(t *time.Time) string {
	if t == nil {
		return "unknown-date"
	}
	return t.UTC().Format(time.DateOnly)
}
