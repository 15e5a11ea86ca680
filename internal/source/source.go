package source

import "time"

// Source is one tracked feed.
type Source struct {
	ID      string // stable identifier, e.g. "paul-graham"
	Name    string // display name
	FeedURL string // RSS, Atom or JSON Feed URL
}

// Story is one entry of the Hacker News top list.
type Story struct {
	Rank     int       `json:"rank"`
	ID       int       `json:"id"`
	Title    string    `json:"title"`
	URL      string    `json:"url"`
	Score    int       `json:"score"`
	Comments int       `json:"comments"`
	By       string    `json:"by"`
	PostedAt time.Time `json:"posted_at"`
}
