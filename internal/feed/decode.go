// Package feed decodes RSS/RDF, Atom and JSON Feed documents into an ordered
// list of canonical entries.
//
// Field extraction looks at direct children only and takes the first match
// from an ordered list of synonymous element names, so unusual nesting
// degrades to a missing field rather than a wrong one.
package feed

import (
	"bytes"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/ppiankov/readdigest/internal/normalize"
)

var (
	// ErrUnsupportedFormat is returned when the document root is not an
	// RSS/RDF channel, an Atom feed or a JSON Feed.
	ErrUnsupportedFormat = errors.New("unsupported feed format")

	// ErrMalformedDocument is returned when the bytes are not well-formed.
	ErrMalformedDocument = errors.New("malformed feed document")
)

// Untitled is the title given to entries without one.
const Untitled = "(untitled)"

// Entry is one decoded feed item. URL is canonical and Excerpt sanitized;
// a nil PublishedAt means the timestamp is unknown.
type Entry struct {
	Title       string
	URL         string
	Excerpt     string
	PublishedAt *time.Time
}

// Options tune entry normalization.
type Options struct {
	ExcerptLen int // max excerpt runes; <= 0 keeps the full text
}

var (
	rssSummaryNames = []string{"description", "summary", "encoded"}
	rssTimeNames    = []string{"pubDate", "published", "updated", "date"}

	atomSummaryNames = []string{"summary", "content"}
	atomTimeNames    = []string{"published", "updated", "created", "date"}
)

// Decode detects the feed dialect of data and returns its entries in
// document order.
func Decode(data []byte, opts Options) ([]Entry, error) {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 {
		return nil, fmt.Errorf("%w: empty document", ErrMalformedDocument)
	}
	if trimmed[0] == '{' {
		return decodeJSON(trimmed, opts)
	}

	root, err := parseTree(data)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedDocument, err)
	}

	switch strings.ToLower(root.name) {
	case "rss", "rdf":
		return decodeRSS(root, opts), nil
	case "feed":
		return decodeAtom(root, opts), nil
	default:
		return nil, fmt.Errorf("%w: root element <%s>", ErrUnsupportedFormat, root.name)
	}
}

func decodeRSS(root *element, opts Options) []Entry {
	var items []*element
	if channel := root.child("channel"); channel != nil {
		items = channel.childrenNamed("item")
	}
	// RSS 1.0 places items beside the channel rather than inside it.
	if strings.EqualFold(root.name, "rdf") {
		items = append(items, root.childrenNamed("item")...)
	}

	entries := make([]Entry, 0, len(items))
	for _, item := range items {
		link := item.firstText("link")
		if link == "" {
			link = item.firstText("guid")
		}
		entries = append(entries, newEntry(
			item.firstText("title"),
			link,
			item.firstText(rssSummaryNames...),
			item.firstText(rssTimeNames...),
			opts,
		))
	}
	return entries
}

func decodeAtom(root *element, opts Options) []Entry {
	items := root.childrenNamed("entry")
	entries := make([]Entry, 0, len(items))
	for _, item := range items {
		entries = append(entries, newEntry(
			item.firstText("title"),
			atomLink(item),
			item.firstText(atomSummaryNames...),
			item.firstText(atomTimeNames...),
			opts,
		))
	}
	return entries
}

// atomLink prefers a rel="alternate" link (rel defaults to alternate) and
// otherwise falls back to the first link with any href.
func atomLink(entry *element) string {
	fallback := ""
	for _, l := range entry.childrenNamed("link") {
		href := strings.TrimSpace(l.attrs["href"])
		if href == "" {
			continue
		}
		rel := strings.ToLower(strings.TrimSpace(l.attrs["rel"]))
		if rel == "" {
			rel = "alternate"
		}
		if rel == "alternate" {
			return href
		}
		if fallback == "" {
			fallback = href
		}
	}
	return fallback
}

func newEntry(title, link, summary, published string, opts Options) Entry {
	if title == "" {
		title = Untitled
	}
	return Entry{
		Title:       title,
		URL:         normalize.CanonicalURL(link),
		Excerpt:     normalize.Excerpt(summary, opts.ExcerptLen),
		PublishedAt: normalize.ParseTime(published),
	}
}
