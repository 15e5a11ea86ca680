package config

import (
	"fmt"
	"sort"
	"strings"
)

const (
	PresetReading    = "reading"
	PresetNewsletter = "newsletter"
)

type preset struct {
	title      string
	statePath  string
	sources    []SourceConfig
	since      string
	grace      string
	hnLimit    int
	excerptLen int
	format     string
	layout     string
}

var presets = map[string]preset{
	PresetReading: {
		title:     "Daily reading digest",
		statePath: "~/.readdigest/reading.json",
		sources: []SourceConfig{
			{ID: "paul-graham", Name: "Paul Graham", Feed: "http://www.aaronsw.com/2002/feeds/pgessays.rss"},
			{ID: "vitalik", Name: "Vitalik Buterin", Feed: "https://vitalik.eth.limo/feed.xml"},
			{ID: "chamath", Name: "Chamath Palihapitiya", Feed: "https://chamath.substack.com/feed"},
			{ID: "dwarkesh", Name: "Dwarkesh Patel", Feed: "https://www.dwarkesh.com/feed"},
			{ID: "steipete", Name: "Peter Steinberger", Feed: "https://steipete.me/rss.xml"},
		},
		since:      "30h",
		grace:      "2h",
		hnLimit:    10,
		excerptLen: 240,
		format:     "markdown",
		layout:     "timeline",
	},
	PresetNewsletter: {
		title:     "Newsletter digest",
		statePath: "~/.readdigest/newsletter.json",
		sources: []SourceConfig{
			{ID: "chamath", Name: "Chamath Palihapitiya", Feed: "https://chamath.substack.com/feed"},
			{ID: "sahil-bloom", Name: "Sahil Bloom", Feed: "https://sahilbloom.substack.com/feed"},
		},
		since:      "168h",
		grace:      "4h",
		hnLimit:    0,
		excerptLen: 300,
		format:     "markdown",
		layout:     "by-source",
	},
}

// Presets lists the names accepted by Preset.
func Presets() []string {
	names := make([]string, 0, len(presets))
	for name := range presets {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Preset renders an example config.yaml for the named preset.
func Preset(name string) (string, error) {
	p, ok := presets[name]
	if !ok {
		return "", fmt.Errorf("unknown preset %q (want %s)", name, strings.Join(Presets(), " or "))
	}

	var b strings.Builder
	fmt.Fprintf(&b, "# readdigest configuration (%s preset)\n\n", name)

	b.WriteString("sources:\n")
	for _, s := range p.sources {
		fmt.Fprintf(&b, "  - id: %s\n    name: %q\n    feed: %q\n", s.ID, s.Name, s.Feed)
	}

	fmt.Fprintf(&b, `
state:
  backend: file
  path: %s
  max_seen: %d
  redis:
    addr_env: READDIGEST_REDIS_ADDR
    password_env: READDIGEST_REDIS_PASSWORD
    key: %s

window:
  since: %s
  grace: %s

digest:
  title: %q
  max_posts_per_source: %d
  hn_limit: %d
  excerpt_len: %d
  format: %s
  layout: %s

fetch:
  timeout: %s

archive:
  path: ""
  # path: .readdigest/archive.db
  retain_days: %d

privacy:
  redact:
    enabled: false
    patterns: []

log:
  level: info
  file: ""
`,
		p.statePath, DefaultMaxSeen, DefaultRedisKey,
		p.since, p.grace,
		p.title, DefaultMaxPerSource, p.hnLimit, p.excerptLen, p.format, p.layout,
		DefaultTimeout, DefaultRetainDays,
	)
	return b.String(), nil
}
