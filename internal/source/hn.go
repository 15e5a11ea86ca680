package source

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/ppiankov/readdigest/internal/logger"
	"github.com/ppiankov/readdigest/internal/normalize"
)

const (
	hnAPIBase      = "https://hacker-news.firebaseio.com/v0"
	hnItemPage     = "https://news.ycombinator.com/item?id=%d"
	hnFetchTimeout = 30 * time.Second
	hnMaxStories   = 100
	hnMaxWorkers   = 5
	hnUntitled     = "(untitled)"
)

// hnAPIBaseURL allows tests to override the API endpoint.
var hnAPIBaseURL = hnAPIBase

// HN reads the Hacker News top stories list via the Firebase API.
type HN struct {
	client *http.Client
}

// NewHN creates a Hacker News client whose requests time out after timeout.
func NewHN(timeout time.Duration) *HN {
	return &HN{client: newClient(timeout, "application/json")}
}

// hnItem represents a Hacker News story from the API.
type hnItem struct {
	ID          int    `json:"id"`
	Type        string `json:"type"`
	Title       string `json:"title"`
	URL         string `json:"url"`
	Score       int    `json:"score"`
	Time        int64  `json:"time"`
	Descendants int    `json:"descendants"`
	By          string `json:"by"`
}

// Top returns up to n stories in list order. Rank is the 1-based position in
// the top list; items that fail to load are skipped without renumbering.
func (h *HN) Top(ctx context.Context, n int) ([]Story, error) {
	if n <= 0 {
		return nil, nil
	}
	if n > hnMaxStories {
		logger.Warnf("hn: limit %d capped at %d stories", n, hnMaxStories)
		n = hnMaxStories
	}

	ctx, cancel := context.WithTimeout(ctx, hnFetchTimeout)
	defer cancel()

	ids, err := h.fetchTopStories(ctx)
	if err != nil {
		return nil, fmt.Errorf("hn: fetch top stories: %w", err)
	}
	if len(ids) > n {
		ids = ids[:n]
	}

	type job struct {
		rank int
		id   int
	}
	type result struct {
		rank  int
		story *Story
		err   error
	}

	jobs := make(chan job, len(ids))
	results := make(chan result, len(ids))

	workers := min(hnMaxWorkers, len(ids))

	var wg sync.WaitGroup
	for range workers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := range jobs {
				item, err := h.fetchItem(ctx, j.id)
				if err != nil {
					results <- result{rank: j.rank, err: err}
					continue
				}
				story := storyFromItem(j.rank, j.id, item)
				results <- result{rank: j.rank, story: &story}
			}
		}()
	}

	for i, id := range ids {
		jobs <- job{rank: i + 1, id: id}
	}
	close(jobs)

	go func() {
		wg.Wait()
		close(results)
	}()

	byRank := make([]*Story, len(ids)+1)
	for r := range results {
		if r.err != nil {
			logger.Warnf("hn: %v", r.err)
			continue
		}
		byRank[r.rank] = r.story
	}

	stories := make([]Story, 0, len(ids))
	for _, s := range byRank {
		if s != nil {
			stories = append(stories, *s)
		}
	}
	return stories, nil
}

func storyFromItem(rank, id int, item *hnItem) Story {
	title := item.Title
	if title == "" {
		title = hnUntitled
	}
	link := item.URL
	if link == "" {
		link = fmt.Sprintf(hnItemPage, id)
	}
	return Story{
		Rank:     rank,
		ID:       id,
		Title:    title,
		URL:      normalize.CanonicalURL(link),
		Score:    item.Score,
		Comments: item.Descendants,
		By:       item.By,
		PostedAt: time.Unix(item.Time, 0).UTC(),
	}
}

func (h *HN) fetchTopStories(ctx context.Context) ([]int, error) {
	var ids []int
	if err := h.getJSON(ctx, hnAPIBaseURL+"/topstories.json", &ids); err != nil {
		return nil, fmt.Errorf("topstories: %w", err)
	}
	return ids, nil
}

func (h *HN) fetchItem(ctx context.Context, id int) (*hnItem, error) {
	var item *hnItem
	if err := h.getJSON(ctx, fmt.Sprintf("%s/item/%d.json", hnAPIBaseURL, id), &item); err != nil {
		return nil, fmt.Errorf("item %d: %w", id, err)
	}
	if item == nil {
		return nil, fmt.Errorf("item %d: not found", id)
	}
	return item, nil
}

func (h *HN) getJSON(ctx context.Context, url string, v any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return err
	}

	resp, err := h.client.Do(req)
	if err != nil {
		return err
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return &StatusError{URL: url, StatusCode: resp.StatusCode}
	}
	return json.NewDecoder(resp.Body).Decode(v)
}
