// Package seen decides which feed entries are new for a run and computes the
// bounded list of URLs to remember for the next one.
package seen

import "time"

// DefaultLimit is the number of URLs retained between runs.
const DefaultLimit = 2500

// Decision is the outcome of considering one entry.
type Decision int

const (
	// Discarded means the entry had no usable URL.
	Discarded Decision = iota
	// Seen means the URL was already known before this entry.
	Seen
	// Stale means the URL is new but published before the window.
	Stale
	// Recent means the URL is new and inside the window.
	Recent
)

func (d Decision) String() string {
	switch d {
	case Discarded:
		return "discarded"
	case Seen:
		return "seen"
	case Stale:
		return "stale"
	case Recent:
		return "recent"
	default:
		return "unknown"
	}
}

// Window returns the earliest publish time still considered new.
// With a previous run it is lastRun-grace, otherwise now-lookback.
// The result is never after now.
func Window(lastRun *time.Time, now time.Time, grace, lookback time.Duration) time.Time {
	now = now.UTC()
	var start time.Time
	if lastRun != nil {
		start = lastRun.UTC().Add(-grace)
	} else {
		start = now.Add(-lookback)
	}
	if start.After(now) {
		return now
	}
	return start
}

// Set is the working seen-set for one run. It is not safe for concurrent use.
type Set struct {
	members  map[string]struct{}
	observed []string
}

// NewSet seeds the set with the URLs remembered from earlier runs.
func NewSet(prior []string) *Set {
	s := &Set{members: make(map[string]struct{}, len(prior))}
	for _, u := range prior {
		if u != "" {
			s.members[u] = struct{}{}
		}
	}
	return s
}

// Consider classifies an entry and records it. Every non-empty URL is logged
// as observed, even when already seen. A new URL is marked seen before the
// recency check, so entries outside the window never come back as new.
// An unknown publish time counts as recent.
func (s *Set) Consider(url string, publishedAt *time.Time, windowStart time.Time) Decision {
	if url == "" {
		return Discarded
	}
	s.observed = append(s.observed, url)

	if _, ok := s.members[url]; ok {
		return Seen
	}
	s.members[url] = struct{}{}

	if publishedAt != nil && publishedAt.Before(windowStart) {
		return Stale
	}
	return Recent
}

// Next returns the seen list to persist: this run's observations ahead of
// prior, deduplicated and capped to limit.
func (s *Set) Next(prior []string, limit int) []string {
	return Prune(s.observed, prior, limit)
}

// Prune merges observed ahead of prior, keeps the first occurrence of each
// non-empty URL and stops at limit entries. A limit <= 0 means DefaultLimit.
func Prune(observed, prior []string, limit int) []string {
	if limit <= 0 {
		limit = DefaultLimit
	}

	out := make([]string, 0, min(limit, len(observed)+len(prior)))
	kept := make(map[string]struct{}, cap(out))
	for _, list := range [][]string{observed, prior} {
		for _, u := range list {
			if len(out) >= limit {
				return out
			}
			if u == "" {
				continue
			}
			if _, dup := kept[u]; dup {
				continue
			}
			kept[u] = struct{}{}
			out = append(out, u)
		}
	}
	return out
}
